package models

import "time"

// Baseline is the population statistic a metric is scored against, one row
// per task and metric.
type Baseline struct {
	Task       string    `json:"task" db:"task"`
	Metric     string    `json:"metric" db:"metric"`
	ExpertMean float64   `json:"expertMean" db:"expert_mean"`
	ExpertStd  float64   `json:"expertStd" db:"expert_std"`
	NoviceMean float64   `json:"noviceMean" db:"novice_mean"`
	NoviceStd  float64   `json:"noviceStd" db:"novice_std"`
	UpdatedAt  time.Time `json:"updatedAt" db:"updated_at"`
}

// Skill levels assigned from the overall score.
const (
	SkillLevelNovice       = "novice"
	SkillLevelIntermediate = "intermediate"
	SkillLevelProficient   = "proficient"
	SkillLevelExpert       = "expert"
)

// Progress trends across recent sessions.
const (
	TrendImproving = "improving"
	TrendSteady    = "steady"
	TrendDeclining = "declining"
)

// SkillScore is the graded outcome of one session: metric scores normalized
// against the task baseline, rolled up to a 0-100 overall.
type SkillScore struct {
	SessionID    string             `json:"sessionId" db:"session_id"`
	TraineeID    string             `json:"traineeId" db:"trainee_id"`
	Task         string             `json:"task" db:"task"`
	OverallScore float64            `json:"overallScore" db:"overall_score"`
	MetricScores map[string]float64 `json:"metricScores"`
	Level        string             `json:"level" db:"level"`
	Trend        string             `json:"trend,omitempty" db:"trend"`
	ComputedAt   time.Time          `json:"computedAt" db:"computed_at"`
}
