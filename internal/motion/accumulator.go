package motion

import (
	"context"
	"sync"
	"time"

	"haptic-trainer/internal/device"
)

// LiveStats is the running view of a session in flight, cheap enough to
// serve from a status endpoint on every poll.
type LiveStats struct {
	Samples    uint64        `json:"samples"`
	Duration   time.Duration `json:"duration"`
	PathLength float64       `json:"pathLength"`
	MeanSpeed  float64       `json:"meanSpeed"`
	PeakSpeed  float64       `json:"peakSpeed"`
	MeanForce  float64       `json:"meanForce"`
	PeakForce  float64       `json:"peakForce"`
}

// Accumulator consumes the sampler stream for one session. It keeps running
// aggregates for live status and retains a decimated copy of the window for
// the final analysis, so a long session does not hold every servo tick in
// memory.
type Accumulator struct {
	mu        sync.Mutex
	keepEvery int

	count       uint64
	kept        []device.Sample
	havePrev    bool
	prevPos     device.Vec3
	pathLen     float64
	speedSum    float64
	peakSpeed   float64
	forceSum    float64
	peakForce   float64
	lastElapsed time.Duration
	firstSet    bool
	firstOffset time.Duration
}

// NewAccumulator retains every keepEvery-th sample for final analysis;
// keepEvery 1 keeps everything.
func NewAccumulator(keepEvery int) *Accumulator {
	if keepEvery < 1 {
		keepEvery = 1
	}
	return &Accumulator{keepEvery: keepEvery}
}

// Run drains the channel until it closes or the context ends.
func (a *Accumulator) Run(ctx context.Context, ch <-chan device.Sample) {
	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-ch:
			if !ok {
				return
			}
			a.Consume(s)
		}
	}
}

// Consume folds one sample into the running aggregates.
func (a *Accumulator) Consume(s device.Sample) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.firstSet {
		a.firstSet = true
		a.firstOffset = s.Elapsed
	}
	a.lastElapsed = s.Elapsed

	if a.havePrev {
		a.pathLen += s.Position.Sub(a.prevPos).Norm()
	}
	a.prevPos = s.Position
	a.havePrev = true

	speed := s.Velocity.Norm()
	a.speedSum += speed
	if speed > a.peakSpeed {
		a.peakSpeed = speed
	}
	force := s.Force.Norm()
	a.forceSum += force
	if force > a.peakForce {
		a.peakForce = force
	}

	if a.count%uint64(a.keepEvery) == 0 {
		a.kept = append(a.kept, s)
	}
	a.count++
}

// Live returns the running aggregates.
func (a *Accumulator) Live() LiveStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	stats := LiveStats{
		Samples:    a.count,
		PathLength: a.pathLen,
		PeakSpeed:  a.peakSpeed,
		PeakForce:  a.peakForce,
	}
	if a.firstSet {
		stats.Duration = a.lastElapsed - a.firstOffset
	}
	if a.count > 0 {
		stats.MeanSpeed = a.speedSum / float64(a.count)
		stats.MeanForce = a.forceSum / float64(a.count)
	}
	return stats
}

// Samples returns a copy of the retained window for analysis.
func (a *Accumulator) Samples() []device.Sample {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]device.Sample, len(a.kept))
	copy(out, a.kept)
	return out
}

// EffectiveRate converts the servo rate to the retained sample rate.
func (a *Accumulator) EffectiveRate(servoRateHz float64) float64 {
	return servoRateHz / float64(a.keepEvery)
}

// Reset clears all state so the accumulator can serve the next session.
func (a *Accumulator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.count = 0
	a.kept = nil
	a.havePrev = false
	a.pathLen = 0
	a.speedSum = 0
	a.peakSpeed = 0
	a.forceSum = 0
	a.peakForce = 0
	a.firstSet = false
	a.lastElapsed = 0
	a.firstOffset = 0
}
