package device

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"haptic-trainer/internal/common/errors"
	"haptic-trainer/internal/common/logger"
	"haptic-trainer/internal/common/metrics"
)

// ForceSource computes the force command for one tick. The stiffness
// controller implements this; a nil source commands zero force.
type ForceSource interface {
	Force(elapsed time.Duration, st State) Vec3
}

// SamplerOptions tunes the servo loop.
type SamplerOptions struct {
	Interval         time.Duration
	WatchdogTicks    int // consecutive device failures before fault
	SubscriberBuffer int
}

// SamplerStats is a point-in-time counter snapshot.
type SamplerStats struct {
	Ticks          uint64 `json:"ticks"`
	MissedTicks    uint64 `json:"missedTicks"`
	ForceClamps    uint64 `json:"forceClamps"`
	DroppedSamples uint64 `json:"droppedSamples"`
}

type subscriber struct {
	name string
	ch   chan Sample
}

// Sampler runs the fixed-interval servo loop: read device state, ask the
// bound force source for a command, clamp it against the device profile,
// write it back, and fan the sample out to subscribers. Slow subscribers
// lose samples; they never stall the loop.
type Sampler struct {
	dev     Device
	profile Profile
	opts    SamplerOptions
	log     logger.Logger

	mu     sync.Mutex
	source ForceSource
	subs   []subscriber

	// sustained-force watchdog ring buffer
	sustain    []float64
	sustainSum float64
	sustainIdx int
	sustainN   int

	ticks   atomic.Uint64
	missed  atomic.Uint64
	clamps  atomic.Uint64
	dropped atomic.Uint64
}

func NewSampler(dev Device, profile Profile, opts SamplerOptions, log logger.Logger) (*Sampler, error) {
	if opts.Interval <= 0 {
		return nil, fmt.Errorf("sampler interval must be positive")
	}
	if opts.WatchdogTicks <= 0 {
		opts.WatchdogTicks = 50
	}
	if opts.SubscriberBuffer <= 0 {
		opts.SubscriberBuffer = 256
	}

	s := &Sampler{
		dev:     dev,
		profile: profile,
		opts:    opts,
		log:     log,
	}

	if w := int(profile.SustainWindow() / opts.Interval); w > 0 {
		s.sustain = make([]float64, w)
	}
	return s, nil
}

// Subscribe registers a named sample consumer. Safe to call while the loop
// is running; the consumer starts seeing samples from the next tick.
func (s *Sampler) Subscribe(name string, buffer int) <-chan Sample {
	if buffer <= 0 {
		buffer = s.opts.SubscriberBuffer
	}
	ch := make(chan Sample, buffer)

	s.mu.Lock()
	s.subs = append(s.subs, subscriber{name: name, ch: ch})
	s.mu.Unlock()
	return ch
}

// Unsubscribe removes a consumer and closes its channel. Samples already
// buffered remain readable; the consumer then sees the close.
func (s *Sampler) Unsubscribe(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, sub := range s.subs {
		if sub.name == name {
			close(sub.ch)
			s.subs = append(s.subs[:i], s.subs[i+1:]...)
			return
		}
	}
}

// SetSource binds a force source; nil unbinds and commands zero force.
func (s *Sampler) SetSource(src ForceSource) {
	s.mu.Lock()
	s.source = src
	s.mu.Unlock()
}

func (s *Sampler) Stats() SamplerStats {
	return SamplerStats{
		Ticks:          s.ticks.Load(),
		MissedTicks:    s.missed.Load(),
		ForceClamps:    s.clamps.Load(),
		DroppedSamples: s.dropped.Load(),
	}
}

// Run drives the servo loop until the context is canceled or the device
// faults. Subscriber channels are closed on return.
func (s *Sampler) Run(ctx context.Context) error {
	if err := s.dev.Open(ctx); err != nil {
		return errors.NewDeviceFaultError(fmt.Sprintf("open: %s", err.Error()))
	}
	defer s.dev.Close()
	defer s.closeSubscribers()

	s.log.Info("servo loop started", map[string]interface{}{
		"device":   s.dev.Info().Name,
		"interval": s.opts.Interval.String(),
		"maxForce": s.profile.MaxForceN,
	})

	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	start := time.Now()
	last := start
	tolerance := s.opts.Interval / 2
	var seq uint64
	var deviceFailures int

	for {
		select {
		case <-ctx.Done():
			s.quiesce()
			return ctx.Err()

		case now := <-ticker.C:
			if now.Sub(last)-s.opts.Interval > tolerance {
				s.missed.Add(1)
				metrics.ServoMissedTicks.Inc()
			}
			last = now
			tickStart := time.Now()

			st, err := s.dev.ReadState(ctx)
			if err != nil {
				deviceFailures++
				if deviceFailures >= s.opts.WatchdogTicks {
					s.quiesce()
					metrics.ServoDeviceFaults.WithLabelValues("read").Inc()
					return errors.NewDeviceFaultError(
						fmt.Sprintf("%d consecutive read failures, last: %s", deviceFailures, err.Error()))
				}
				continue
			}
			deviceFailures = 0

			elapsed := now.Sub(start)
			f := s.commandForce(elapsed, st)

			if err := s.checkSustained(f); err != nil {
				s.quiesce()
				metrics.ServoDeviceFaults.WithLabelValues("sustained_force").Inc()
				return err
			}

			if err := s.dev.WriteForce(ctx, f); err != nil {
				deviceFailures++
				if deviceFailures >= s.opts.WatchdogTicks {
					metrics.ServoDeviceFaults.WithLabelValues("write").Inc()
					return errors.NewDeviceFaultError(
						fmt.Sprintf("%d consecutive write failures, last: %s", deviceFailures, err.Error()))
				}
				continue
			}

			seq++
			s.ticks.Add(1)
			s.publish(Sample{
				Seq:     seq,
				T:       now,
				Elapsed: elapsed,
				State:   st,
				Force:   f,
			})
			metrics.ServoTickDuration.Observe(time.Since(tickStart).Seconds())
		}
	}
}

// commandForce asks the bound source for a command and clamps it to the
// profile's force limit.
func (s *Sampler) commandForce(elapsed time.Duration, st State) Vec3 {
	s.mu.Lock()
	src := s.source
	s.mu.Unlock()

	if src == nil {
		return Vec3{}
	}

	f := src.Force(elapsed, st)
	if !f.IsFinite() {
		s.log.Warn("non-finite force command zeroed", map[string]interface{}{
			"elapsed": elapsed.String(),
		})
		return Vec3{}
	}

	clamped, wasClamped := f.ClampNorm(s.profile.MaxForceN)
	if wasClamped {
		s.clamps.Add(1)
		metrics.ServoForceClamps.Inc()
	}
	return clamped
}

// checkSustained updates the sliding mean of command magnitude and errors
// when it exceeds the profile's sustained-force limit.
func (s *Sampler) checkSustained(f Vec3) error {
	if len(s.sustain) == 0 {
		return nil
	}

	mag := f.Norm()
	s.sustainSum += mag - s.sustain[s.sustainIdx]
	s.sustain[s.sustainIdx] = mag
	s.sustainIdx = (s.sustainIdx + 1) % len(s.sustain)
	if s.sustainN < len(s.sustain) {
		s.sustainN++
		return nil
	}

	if mean := s.sustainSum / float64(len(s.sustain)); mean > s.profile.SustainForceN {
		return errors.NewSafetyLimitExceededError(fmt.Sprintf(
			"mean force %.3fN over %s exceeds sustained limit %.3fN",
			mean, s.profile.SustainWindow(), s.profile.SustainForceN))
	}
	return nil
}

// publish fans the sample out under the lock so an Unsubscribe close cannot
// race a send. Sends are non-blocking; a full subscriber loses the sample.
func (s *Sampler) publish(sample Sample) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sub := range s.subs {
		select {
		case sub.ch <- sample:
		default:
			s.dropped.Add(1)
			metrics.SamplesDropped.WithLabelValues(sub.name).Inc()
		}
	}
}

// quiesce commands zero force so the device de-energizes before the loop
// exits.
func (s *Sampler) quiesce() {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := s.dev.WriteForce(ctx, Vec3{}); err != nil {
		s.log.Warn("zero-force write on shutdown failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func (s *Sampler) closeSubscribers() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subs {
		close(sub.ch)
	}
	s.subs = nil
}
