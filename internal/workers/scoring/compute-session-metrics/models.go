// internal/workers/scoring/compute-session-metrics/models.go
package computesessionmetrics

type Input struct {
	SessionID string `json:"sessionId"`
}

type Output struct {
	SessionID          string  `json:"sessionId"`
	Sparc              float64 `json:"sparc"`
	Ldlj               float64 `json:"ldlj"`
	PathEfficiency     float64 `json:"pathEfficiency"`
	ReferenceDeviation float64 `json:"referenceDeviation"`
	ForceCv            float64 `json:"forceCv"`
	ForceReversals     int     `json:"forceReversals"`
	HighFreqRatio      float64 `json:"highFreqRatio"`
	CompletionTimeMs   int64   `json:"completionTimeMs"`
	PathLength         float64 `json:"pathLength"`
	MeanSpeed          float64 `json:"meanSpeed"`
	PeakSpeed          float64 `json:"peakSpeed"`
	SampleCount        int     `json:"sampleCount"`
	SampleRateHz       float64 `json:"sampleRateHz"`
	GestureReports     int     `json:"gestureReports"`
}
