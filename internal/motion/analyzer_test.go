// internal/motion/analyzer_test.go
package motion

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"haptic-trainer/internal/common/errors"
	"haptic-trainer/internal/control"
	"haptic-trainer/internal/device"
)

const testRateHz = 100.0

// ==========================
// Test Helper Functions
// ==========================

// createTestSamples synthesizes a window at testRateHz. The shape function
// maps elapsed seconds to position, velocity and force.
func createTestSamples(n int, shape func(t float64) (pos, vel, force device.Vec3)) []device.Sample {
	base := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	dt := time.Second / time.Duration(testRateHz)
	samples := make([]device.Sample, n)
	for i := 0; i < n; i++ {
		t := float64(i) / testRateHz
		pos, vel, force := shape(t)
		samples[i] = device.Sample{
			Seq:     uint64(i + 1),
			T:       base.Add(time.Duration(i) * dt),
			Elapsed: time.Duration(i) * dt,
			State:   device.State{Position: pos, Velocity: vel},
			Force:   force,
		}
	}
	return samples
}

// straightMove is a constant-velocity move along +X at 100 mm/s.
func straightMove(t float64) (device.Vec3, device.Vec3, device.Vec3) {
	return device.Vec3{100 * t, 0, 0}, device.Vec3{100, 0, 0}, device.Vec3{1, 0, 0}
}

func createTestAnalyzer(t *testing.T) *Analyzer {
	a, err := NewAnalyzer(testRateHz)
	require.NoError(t, err)
	return a
}

// createReferenceAlongX builds a reference trajectory matching straightMove.
func createReferenceAlongX(duration time.Duration) *control.Trajectory {
	tr := &control.Trajectory{ID: "ref-x", Task: "Suturing", Rate: 10}
	steps := int(duration/(100*time.Millisecond)) + 1
	for i := 0; i < steps; i++ {
		t := time.Duration(i) * 100 * time.Millisecond
		tr.Waypoints = append(tr.Waypoints, control.Waypoint{
			Elapsed:  t,
			Position: device.Vec3{100 * t.Seconds(), 0, 0},
			Velocity: device.Vec3{100, 0, 0},
		})
	}
	return tr
}

// ==========================
// Analyzer Construction Tests
// ==========================

func TestNewAnalyzer_RejectsBadRate(t *testing.T) {
	_, err := NewAnalyzer(0)
	assert.ErrorContains(t, err, "must be positive")
}

func TestAnalyzer_RejectsShortWindows(t *testing.T) {
	a := createTestAnalyzer(t)
	_, err := a.Analyze(createTestSamples(5, straightMove), nil)

	stdErr, ok := err.(*errors.StandardError)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeInsufficientSamples, stdErr.Code)
}

// ==========================
// Smoothness Tests
// ==========================

func TestAnalyzer_SmoothScoresBetterThanJerky(t *testing.T) {
	a := createTestAnalyzer(t)

	// A single bell-shaped speed hump against the same hump with an 8 Hz
	// ripple riding on it.
	bell := func(t float64) (device.Vec3, device.Vec3, device.Vec3) {
		v := 100 * math.Pow(math.Sin(math.Pi*t/2), 2)
		return device.Vec3{}, device.Vec3{v, 0, 0}, device.Vec3{}
	}
	rippled := func(t float64) (device.Vec3, device.Vec3, device.Vec3) {
		v := 100*math.Pow(math.Sin(math.Pi*t/2), 2) + 30*math.Sin(2*math.Pi*8*t)
		return device.Vec3{}, device.Vec3{v, 0, 0}, device.Vec3{}
	}

	smooth, err := a.Analyze(createTestSamples(200, bell), nil)
	require.NoError(t, err)
	jerky, err := a.Analyze(createTestSamples(200, rippled), nil)
	require.NoError(t, err)

	assert.Greater(t, smooth.Smoothness.SPARC, jerky.Smoothness.SPARC)
	assert.Greater(t, smooth.Smoothness.LDLJ, jerky.Smoothness.LDLJ)
	assert.Negative(t, smooth.Smoothness.SPARC)
	assert.Negative(t, jerky.Smoothness.SPARC)
}

// ==========================
// Path Efficiency Tests
// ==========================

func TestAnalyzer_StraightMoveIsEfficient(t *testing.T) {
	a := createTestAnalyzer(t)

	report, err := a.Analyze(createTestSamples(200, straightMove), nil)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, report.PathEfficiency.Straightline, 1e-6)
}

func TestAnalyzer_DetourLowersEfficiency(t *testing.T) {
	a := createTestAnalyzer(t)

	// Same endpoints, but bowed 30mm sideways on the way.
	detour := func(t float64) (device.Vec3, device.Vec3, device.Vec3) {
		return device.Vec3{100 * t, 30 * math.Sin(math.Pi * t / 2), 0},
			device.Vec3{100, 0, 0}, device.Vec3{}
	}
	report, err := a.Analyze(createTestSamples(200, detour), nil)
	require.NoError(t, err)
	assert.Less(t, report.PathEfficiency.Straightline, 0.95)
	assert.Greater(t, report.PathEfficiency.Straightline, 0.0)
}

func TestAnalyzer_ReferenceDeviation(t *testing.T) {
	a := createTestAnalyzer(t)

	// Trainee rides 5mm above the reference the whole way.
	offset := func(t float64) (device.Vec3, device.Vec3, device.Vec3) {
		return device.Vec3{100 * t, 5, 0}, device.Vec3{100, 0, 0}, device.Vec3{}
	}
	samples := createTestSamples(200, offset)
	ref := createReferenceAlongX(2 * time.Second)

	report, err := a.Analyze(samples, ref)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, report.PathEfficiency.ReferenceDeviation, 0.1)

	// Without a reference the metric reads zero.
	report, err = a.Analyze(samples, nil)
	require.NoError(t, err)
	assert.Zero(t, report.PathEfficiency.ReferenceDeviation)
}

// ==========================
// Supporting Metric Tests
// ==========================

func TestAnalyzer_PathAndTiming(t *testing.T) {
	a := createTestAnalyzer(t)

	report, err := a.Analyze(createTestSamples(201, straightMove), nil)
	require.NoError(t, err)

	// 200 steps of 1mm each over 2 seconds.
	assert.InDelta(t, 200.0, report.PathLength, 1e-6)
	assert.Equal(t, 2*time.Second, report.CompletionTime)
	assert.InDelta(t, 100.0, report.MeanSpeed, 1e-9)
	assert.InDelta(t, 100.0, report.PeakSpeed, 1e-9)
	assert.Equal(t, 201, report.SampleCount)
	assert.False(t, report.ComputedAt.IsZero())
}

func TestAnalyzer_SpeedPeaks(t *testing.T) {
	a := createTestAnalyzer(t)

	// Two bell humps over the window.
	humps := func(t float64) (device.Vec3, device.Vec3, device.Vec3) {
		v := 100 * math.Pow(math.Sin(math.Pi*t), 2)
		return device.Vec3{}, device.Vec3{v, 0, 0}, device.Vec3{}
	}
	report, err := a.Analyze(createTestSamples(200, humps), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, report.SpeedPeaks)
}

func TestAnalyzer_BoundsCoverTheMove(t *testing.T) {
	a := createTestAnalyzer(t)

	report, err := a.Analyze(createTestSamples(201, straightMove), nil)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, report.Bounds.Min[0], 1e-9)
	assert.InDelta(t, 200.0, report.Bounds.Max[0], 1e-9)
	assert.InDelta(t, 200.0, report.Bounds.Extent()[0], 1e-9)
}

// ==========================
// Segmentation Tests
// ==========================

func TestAnalyzer_AnalyzeSegments(t *testing.T) {
	a := createTestAnalyzer(t)
	samples := createTestSamples(200, straightMove)

	spans := []GestureSpan{
		{Gesture: "G1", Start: 0, End: time.Second},
		{Gesture: "G2", Start: time.Second, End: 2 * time.Second},
		{Gesture: "G3", Start: 1990 * time.Millisecond, End: 2 * time.Second}, // too short, skipped
	}

	reports, err := a.AnalyzeSegments(samples, spans, nil)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, "G1", reports[0].Gesture)
	assert.Equal(t, "G2", reports[1].Gesture)
	assert.Greater(t, reports[0].SampleCount, minAnalysisSamples)
}

func TestAnalyzer_AnalyzeSegmentsEmpty(t *testing.T) {
	a := createTestAnalyzer(t)
	_, err := a.AnalyzeSegments(createTestSamples(100, straightMove), nil, nil)
	assert.ErrorContains(t, err, "no gesture spans")
}

func TestSliceWindow(t *testing.T) {
	samples := createTestSamples(100, straightMove)

	window := sliceWindow(samples, 100*time.Millisecond, 300*time.Millisecond)
	require.NotEmpty(t, window)
	assert.Equal(t, 100*time.Millisecond, window[0].Elapsed)
	assert.Equal(t, 300*time.Millisecond, window[len(window)-1].Elapsed)

	assert.Empty(t, sliceWindow(samples, 10*time.Second, 11*time.Second))
}
