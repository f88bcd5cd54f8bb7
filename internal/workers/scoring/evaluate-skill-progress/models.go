// internal/workers/scoring/evaluate-skill-progress/models.go
package evaluateskillprogress

type Input struct {
	SessionID string `json:"sessionId"`
}

// MetricScore pairs a raw metric value with its grade against the task
// baseline. ZScore is relative to the expert distribution, Score maps the
// novice-to-expert span onto 0-100.
type MetricScore struct {
	Value  float64 `json:"value"`
	ZScore float64 `json:"zScore"`
	Score  float64 `json:"score"`
}

type Output struct {
	SessionID    string                 `json:"sessionId"`
	TraineeID    string                 `json:"traineeId"`
	Task         string                 `json:"task"`
	OverallScore float64                `json:"overallScore"`
	Level        string                 `json:"level"`
	Trend        string                 `json:"trend"`
	MetricScores map[string]MetricScore `json:"metricScores"`
}
