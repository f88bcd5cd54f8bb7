package models

import "time"

// SessionState is the lifecycle state of a training session.
type SessionState string

const (
	SessionStateCreated   SessionState = "created"
	SessionStateRunning   SessionState = "running"
	SessionStateCompleted SessionState = "completed"
	SessionStateAborted   SessionState = "aborted"
	SessionStateFaulted   SessionState = "faulted"
)

// sessionTransitions lists the legal lifecycle moves. Terminal states have
// no outgoing edges.
var sessionTransitions = map[SessionState][]SessionState{
	SessionStateCreated: {SessionStateRunning, SessionStateAborted},
	SessionStateRunning: {SessionStateCompleted, SessionStateAborted, SessionStateFaulted},
}

// CanTransitionTo reports whether moving to next is a legal lifecycle step.
func (s SessionState) CanTransitionTo(next SessionState) bool {
	for _, allowed := range sessionTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether the state has no outgoing transitions.
func (s SessionState) Terminal() bool {
	return len(sessionTransitions[s]) == 0
}

// TrainingSession is one guided or free-motion practice run on the device.
type TrainingSession struct {
	ID           string       `json:"id" db:"id"`
	TraineeID    string       `json:"traineeId" db:"trainee_id"`
	Task         string       `json:"task" db:"task"`
	TrajectoryID string       `json:"trajectoryId,omitempty" db:"trajectory_id"`
	Mode         string       `json:"mode" db:"mode"` // "full", "adaptive", "fade", "off"
	Manipulator  string       `json:"manipulator" db:"manipulator"`
	State        SessionState `json:"state" db:"state"`
	FaultReason  string       `json:"faultReason,omitempty" db:"fault_reason"`
	SampleCount  int64        `json:"sampleCount" db:"sample_count"`
	StartedAt    *time.Time   `json:"startedAt,omitempty" db:"started_at"`
	EndedAt      *time.Time   `json:"endedAt,omitempty" db:"ended_at"`
	CreatedAt    time.Time    `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time    `json:"updatedAt" db:"updated_at"`
}

// Active reports whether the session still owns the device.
func (s *TrainingSession) Active() bool {
	return s.State == SessionStateCreated || s.State == SessionStateRunning
}

// LiveSession is the transient per-session state kept in Redis while a
// session runs: updated on every status tick, gone after expiry.
type LiveSession struct {
	SessionID     string    `json:"sessionId"`
	State         string    `json:"state"`
	Progress      float64   `json:"progress"`
	TrackingErrMm float64   `json:"trackingErrMm"`
	Stiffness     float64   `json:"stiffness"`
	Samples       uint64    `json:"samples"`
	PathLength    float64   `json:"pathLength"`
	MeanSpeed     float64   `json:"meanSpeed"`
	UpdatedAt     time.Time `json:"updatedAt"`
}
