// internal/workflow/launcher.go

// Package workflow starts BPMN process instances on the Zeebe broker. The
// daemon launches session-scoring when a session ends; the trajectory import
// tool launches reference-ingest for each expert recording it loads.
package workflow

import (
	"context"
	"time"

	"haptic-trainer/internal/common/logger"
	"haptic-trainer/internal/models"
)

// Default process IDs, matching the BPMN definitions shipped with the broker
// deployment.
const (
	ProcessSessionScoring  = "session-scoring"
	ProcessReferenceIngest = "reference-ingest"
)

const defaultLaunchTimeout = 15 * time.Second

// ProcessStarter is the slice of the Camunda client the launcher needs.
type ProcessStarter interface {
	CreateProcessInstance(ctx context.Context, processID string, variables map[string]interface{}) (int64, error)
}

// Config overrides the deployed process IDs. Zero values keep the defaults.
type Config struct {
	ScoringProcess   string
	ReferenceProcess string
	LaunchTimeout    time.Duration
}

// Launcher translates domain events into process instances.
type Launcher struct {
	starter   ProcessStarter
	scoring   string
	reference string
	timeout   time.Duration
	log       logger.Logger
}

// NewLauncher creates a launcher over an established broker connection.
func NewLauncher(starter ProcessStarter, cfg Config, log logger.Logger) *Launcher {
	if cfg.ScoringProcess == "" {
		cfg.ScoringProcess = ProcessSessionScoring
	}
	if cfg.ReferenceProcess == "" {
		cfg.ReferenceProcess = ProcessReferenceIngest
	}
	if cfg.LaunchTimeout <= 0 {
		cfg.LaunchTimeout = defaultLaunchTimeout
	}
	return &Launcher{
		starter:   starter,
		scoring:   cfg.ScoringProcess,
		reference: cfg.ReferenceProcess,
		timeout:   cfg.LaunchTimeout,
		log:       log,
	}
}

// LaunchPostSession starts the scoring pipeline for an ended session. The
// variables carry everything the first worker needs to load the session.
func (l *Launcher) LaunchPostSession(ctx context.Context, session *models.TrainingSession) error {
	variables := map[string]interface{}{
		"sessionId": session.ID,
		"traineeId": session.TraineeID,
		"task":      session.Task,
		"state":     string(session.State),
	}
	if session.FaultReason != "" {
		variables["faultReason"] = session.FaultReason
	}
	return l.launch(ctx, l.scoring, variables)
}

// LaunchReferenceIngest starts the reference preparation pipeline for a
// freshly imported expert trajectory.
func (l *Launcher) LaunchReferenceIngest(ctx context.Context, trajectoryID, task string) error {
	return l.launch(ctx, l.reference, map[string]interface{}{
		"trajectoryId": trajectoryID,
		"task":         task,
	})
}

func (l *Launcher) launch(ctx context.Context, processID string, variables map[string]interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	key, err := l.starter.CreateProcessInstance(ctx, processID, variables)
	if err != nil {
		return err
	}
	l.log.Info("Process instance started", map[string]interface{}{
		"processId":          processID,
		"processInstanceKey": key,
	})
	return nil
}
