package motion

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/stat"

	"haptic-trainer/internal/common/errors"
	"haptic-trainer/internal/control"
	"haptic-trainer/internal/device"
)

// minAnalysisSamples is the floor below which spectral metrics are
// meaningless.
const minAnalysisSamples = 32

// speedPeakFloorFrac: a local speed maximum only counts as a peak above this
// fraction of the window's peak speed.
const speedPeakFloorFrac = 0.05

// Smoothness holds the two smoothness scores of the speed profile.
type Smoothness struct {
	SPARC float64 `json:"sparc"`
	LDLJ  float64 `json:"ldlj"`
}

// Report is the full metric profile of one analysis window, either a whole
// session or one gesture segment.
type Report struct {
	SessionID       string          `json:"sessionId"`
	Task            string          `json:"task"`
	Gesture         string          `json:"gesture,omitempty"`
	WindowStart     time.Time       `json:"windowStart"`
	WindowEnd       time.Time       `json:"windowEnd"`
	SampleCount     int             `json:"sampleCount"`
	Smoothness      Smoothness      `json:"smoothness"`
	PathEfficiency  PathEfficiency  `json:"pathEfficiency"`
	ForceModulation ForceModulation `json:"forceModulation"`
	CompletionTime  time.Duration   `json:"completionTime"`
	PathLength      float64         `json:"pathLength"`
	MeanSpeed       float64         `json:"meanSpeed"`
	PeakSpeed       float64         `json:"peakSpeed"`
	SpeedPeaks      int             `json:"speedPeaks"`
	Bounds          BoundingBox     `json:"bounds"`
	ComputedAt      time.Time       `json:"computedAt"`
}

// GestureSpan is one labelled slice of a session timeline.
type GestureSpan struct {
	Gesture string        `json:"gesture"`
	Start   time.Duration `json:"start"`
	End     time.Duration `json:"end"`
}

// Analyzer computes metric reports from sample windows. Analyses are pure
// computations; one analyzer can serve concurrent callers.
type Analyzer struct {
	rateHz float64
}

// NewAnalyzer builds an analyzer for samples recorded at rateHz.
func NewAnalyzer(rateHz float64) (*Analyzer, error) {
	if rateHz <= 0 {
		return nil, fmt.Errorf("analysis sample rate must be positive, got %f", rateHz)
	}
	return &Analyzer{rateHz: rateHz}, nil
}

// Analyze computes the full metric profile of a sample window. ref may be
// nil for free-motion sessions; the reference-deviation metric is then zero.
// Identity fields (SessionID, Task, Gesture) are left for the caller.
func (a *Analyzer) Analyze(samples []device.Sample, ref *control.Trajectory) (*Report, error) {
	if len(samples) < minAnalysisSamples {
		return nil, errors.NewInsufficientSamplesError(len(samples), minAnalysisSamples)
	}

	speed := make([]float64, len(samples))
	forceMag := make([]float64, len(samples))
	for i, s := range samples {
		speed[i] = s.Velocity.Norm()
		forceMag[i] = s.Force.Norm()
	}

	length := pathLength(samples)
	peak := 0.0
	for _, v := range speed {
		if v > peak {
			peak = v
		}
	}

	first, last := samples[0], samples[len(samples)-1]
	return &Report{
		WindowStart: first.T,
		WindowEnd:   last.T,
		SampleCount: len(samples),
		Smoothness: Smoothness{
			SPARC: sparc(speed, a.rateHz),
			LDLJ:  ldlj(speed, a.rateHz),
		},
		PathEfficiency: PathEfficiency{
			Straightline:       straightlineEfficiency(samples, length),
			ReferenceDeviation: referenceDeviation(samples, ref),
		},
		ForceModulation: forceModulation(forceMag, a.rateHz),
		CompletionTime:  last.Elapsed - first.Elapsed,
		PathLength:      length,
		MeanSpeed:       stat.Mean(speed, nil),
		PeakSpeed:       peak,
		SpeedPeaks:      countSpeedPeaks(speed, peak*speedPeakFloorFrac),
		Bounds:          boundingBox(samples),
		ComputedAt:      time.Now().UTC(),
	}, nil
}

// AnalyzeSegments runs one analysis per gesture span. Spans with too few
// samples are skipped rather than failing the whole batch.
func (a *Analyzer) AnalyzeSegments(samples []device.Sample, spans []GestureSpan, ref *control.Trajectory) ([]*Report, error) {
	if len(spans) == 0 {
		return nil, fmt.Errorf("no gesture spans to analyze")
	}
	reports := make([]*Report, 0, len(spans))
	for _, span := range spans {
		window := sliceWindow(samples, span.Start, span.End)
		report, err := a.Analyze(window, ref)
		if err != nil {
			if stdErr, ok := err.(*errors.StandardError); ok && stdErr.Code == errors.ErrCodeInsufficientSamples {
				continue
			}
			return nil, err
		}
		report.Gesture = span.Gesture
		reports = append(reports, report)
	}
	return reports, nil
}

// sliceWindow returns the samples whose elapsed time falls in [start, end].
// Samples are time-ordered, so this is two scans from the ends.
func sliceWindow(samples []device.Sample, start, end time.Duration) []device.Sample {
	lo := 0
	for lo < len(samples) && samples[lo].Elapsed < start {
		lo++
	}
	hi := len(samples)
	for hi > lo && samples[hi-1].Elapsed > end {
		hi--
	}
	return samples[lo:hi]
}

// countSpeedPeaks counts strict local maxima of the speed profile above the
// floor.
func countSpeedPeaks(speed []float64, floor float64) int {
	count := 0
	for i := 1; i < len(speed)-1; i++ {
		if speed[i] > floor && speed[i] > speed[i-1] && speed[i] >= speed[i+1] {
			count++
		}
	}
	return count
}
