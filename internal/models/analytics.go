// internal/models/analytics.go
package models

import "time"

type QueryType string

const (
	QueryTypeSessionsByTrainee QueryType = "sessions_by_trainee"
	QueryTypeSessionsByTask    QueryType = "sessions_by_task"
	QueryTypeTraineeProgress   QueryType = "trainee_progress"
	QueryTypeTaskLeaderboard   QueryType = "task_leaderboard"
	QueryTypeMetricHistogram   QueryType = "metric_histogram"
)

// SessionAnalyticsDoc is the flattened per-session document indexed to
// Elasticsearch for cross-session queries.
type SessionAnalyticsDoc struct {
	SessionID          string    `json:"sessionId"`
	TraineeID          string    `json:"traineeId"`
	Task               string    `json:"task"`
	Gesture            string    `json:"gesture,omitempty"`
	Mode               string    `json:"mode"`
	SPARC              float64   `json:"sparc"`
	LDLJ               float64   `json:"ldlj"`
	PathEfficiency     float64   `json:"pathEfficiency"`
	ReferenceDeviation float64   `json:"referenceDeviation"`
	ForceCV            float64   `json:"forceCv"`
	ForceReversals     int       `json:"forceReversals"`
	HighFreqRatio      float64   `json:"highFreqRatio"`
	CompletionTimeMs   int64     `json:"completionTimeMs"`
	PathLength         float64   `json:"pathLength"`
	MeanSpeed          float64   `json:"meanSpeed"`
	PeakSpeed          float64   `json:"peakSpeed"`
	OverallScore       float64   `json:"overallScore"`
	Level              string    `json:"level"`
	CompletedAt        time.Time `json:"completedAt"`
	IndexedAt          time.Time `json:"indexedAt"`
}
