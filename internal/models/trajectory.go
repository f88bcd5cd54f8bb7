package models

import "time"

// TrajectoryMeta is the catalog entry for one imported expert recording.
// The waypoint payload itself is stored separately and loaded on demand.
type TrajectoryMeta struct {
	ID          string    `json:"id" db:"id"`
	Task        string    `json:"task" db:"task"`
	Gesture     string    `json:"gesture,omitempty" db:"gesture"`
	Manipulator string    `json:"manipulator" db:"manipulator"`
	SourceFile  string    `json:"sourceFile" db:"source_file"`
	Frames      int       `json:"frames" db:"frames"`
	DurationMs  int64     `json:"durationMs" db:"duration_ms"`
	Rate        float64   `json:"rate" db:"rate"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}
