// internal/workers/reference/prepare-reference-trajectory/models.go
package preparereferencetrajectory

// Input names either a raw recording to prepare (kinematicsUrl, optionally
// with a gesture transcript) or a stored trajectory to re-prepare.
type Input struct {
	TrajectoryID  string  `json:"trajectoryId,omitempty"`
	KinematicsURL string  `json:"kinematicsUrl,omitempty"`
	TranscriptURL string  `json:"transcriptUrl,omitempty"`
	Task          string  `json:"task"`
	Manipulator   string  `json:"manipulator,omitempty"`
	TargetRateHz  float64 `json:"targetRateHz,omitempty"`
	SmoothWindow  int     `json:"smoothWindow,omitempty"`
}

type PreparedTrajectory struct {
	TrajectoryID   string `json:"trajectoryId"`
	Gesture        string `json:"gesture,omitempty"`
	Waypoints      int    `json:"waypoints"`
	DurationMs     int64  `json:"durationMs"`
	GestureWindows int    `json:"gestureWindows,omitempty"`
}

type Output struct {
	Task         string               `json:"task"`
	RateHz       float64              `json:"rateHz"`
	Trajectories []PreparedTrajectory `json:"trajectories"`
}
