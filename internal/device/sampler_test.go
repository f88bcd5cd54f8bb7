// internal/device/sampler_test.go
package device

import (
	"context"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"haptic-trainer/internal/common/errors"
	"haptic-trainer/internal/common/logger"
)

// ==========================
// Test Helper Functions
// ==========================

// scriptDevice is a scriptable in-memory Device for loop tests.
type scriptDevice struct {
	mu        sync.Mutex
	state     State
	writes    []Vec3
	failReads int
	openErr   error
}

func (d *scriptDevice) Open(ctx context.Context) error { return d.openErr }
func (d *scriptDevice) Close() error                   { return nil }

func (d *scriptDevice) ReadState(ctx context.Context) (State, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failReads > 0 {
		d.failReads--
		return State{}, fmt.Errorf("scripted read failure")
	}
	return d.state, nil
}

func (d *scriptDevice) WriteForce(ctx context.Context, f Vec3) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.writes = append(d.writes, f)
	return nil
}

func (d *scriptDevice) Info() Info {
	return Info{Name: "script", Model: "test", Axes: 3}
}

func (d *scriptDevice) lastWrite() Vec3 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.writes) == 0 {
		return Vec3{}
	}
	return d.writes[len(d.writes)-1]
}

// constantForce always commands the same vector.
type constantForce struct {
	f Vec3
}

func (c constantForce) Force(elapsed time.Duration, st State) Vec3 { return c.f }

func createTestSampler(t *testing.T, dev Device, profile Profile) *Sampler {
	s, err := NewSampler(dev, profile, SamplerOptions{
		Interval:      time.Millisecond,
		WatchdogTicks: 5,
	}, logger.NewNoOpLogger())
	require.NoError(t, err)
	return s
}

// ==========================
// Core Functionality Tests
// ==========================

func TestSampler_PublishesSequencedSamples(t *testing.T) {
	dev := &scriptDevice{state: State{Position: Vec3{1, 2, 3}}}
	s := createTestSampler(t, dev, createTestProfile())
	samples := s.Subscribe("test", 64)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	var got []Sample
	for sample := range samples {
		got = append(got, sample)
		if len(got) == 20 {
			cancel()
			break
		}
	}
	err := <-done
	assert.ErrorIs(t, err, context.Canceled)

	require.GreaterOrEqual(t, len(got), 20)
	for i := 1; i < len(got); i++ {
		assert.Equal(t, got[i-1].Seq+1, got[i].Seq, "sequence must be gapless")
	}
	assert.Equal(t, Vec3{1, 2, 3}, got[0].Position)
	assert.Equal(t, Vec3{}, got[0].Force, "no bound source commands zero force")
}

func TestSampler_AppliesAndClampsSourceForce(t *testing.T) {
	dev := &scriptDevice{}
	profile := createTestProfile()
	s := createTestSampler(t, dev, profile)
	samples := s.Subscribe("test", 64)

	// 10N exceeds the 3.3N envelope and must be clamped, keeping direction.
	s.SetSource(constantForce{f: Vec3{10, 0, 0}})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	var sample Sample
	for i := 0; i < 5; i++ {
		sample = <-samples
	}
	cancel()
	<-done
	for range samples {
	}

	assert.InDelta(t, profile.MaxForceN, sample.Force.Norm(), 1e-9)
	assert.InDelta(t, profile.MaxForceN, sample.Force[0], 1e-9)
	assert.Greater(t, s.Stats().ForceClamps, uint64(0))
}

func TestSampler_WatchdogFaultsOnReadFailures(t *testing.T) {
	dev := &scriptDevice{failReads: 1000}
	s := createTestSampler(t, dev, createTestProfile())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := s.Run(ctx)

	var stdErr *errors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, errors.ErrCodeDeviceFault, stdErr.Code)

	// The fault path must leave the device de-energized.
	assert.Equal(t, Vec3{}, dev.lastWrite())
}

func TestSampler_SustainedForceFault(t *testing.T) {
	dev := &scriptDevice{}
	profile := createTestProfile()
	profile.SustainForceN = 0.5
	profile.SustainWindowMs = 20 // 20 ticks at 1ms

	s := createTestSampler(t, dev, profile)
	s.SetSource(constantForce{f: Vec3{0, 1.0, 0}})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := s.Run(ctx)

	var stdErr *errors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, errors.ErrCodeSafetyLimitExceeded, stdErr.Code)
}

func TestSampler_RecoversFromTransientReadFailures(t *testing.T) {
	// Fewer failures than the watchdog threshold: the loop must keep going.
	dev := &scriptDevice{failReads: 3}
	s := createTestSampler(t, dev, createTestProfile())
	samples := s.Subscribe("test", 64)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	<-samples
	cancel()
	err := <-done
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSampler_UnsubscribeClosesChannelMidRun(t *testing.T) {
	dev := &scriptDevice{}
	s := createTestSampler(t, dev, createTestProfile())
	first := s.Subscribe("first", 64)
	second := s.Subscribe("second", 64)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	<-first
	s.Unsubscribe("first")

	// The removed channel drains and closes; the survivor keeps receiving.
	for range first {
	}
	var after Sample
	for i := 0; i < 5; i++ {
		after = <-second
	}
	assert.Greater(t, after.Seq, uint64(0))

	cancel()
	<-done

	// Unknown names and repeat calls are no-ops.
	s.Unsubscribe("first")
	s.Unsubscribe("never-registered")
}

func TestSampler_NonFiniteSourceZeroed(t *testing.T) {
	dev := &scriptDevice{}
	s := createTestSampler(t, dev, createTestProfile())
	samples := s.Subscribe("test", 64)
	s.SetSource(constantForce{f: Vec3{math.NaN(), 0, 0}})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	sample := <-samples
	cancel()
	<-done

	assert.Equal(t, Vec3{}, sample.Force)
}

func TestSampler_SlowSubscriberDropsNotStalls(t *testing.T) {
	dev := &scriptDevice{}
	s := createTestSampler(t, dev, createTestProfile())
	_ = s.Subscribe("slow", 1) // never drained

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	assert.Eventually(t, func() bool {
		return s.Stats().DroppedSamples > 0
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

// ==========================
// Benchmarks
// ==========================

func BenchmarkSampler_CommandForce(b *testing.B) {
	s, err := NewSampler(&scriptDevice{}, createTestProfile(), SamplerOptions{
		Interval: time.Millisecond,
	}, logger.NewNoOpLogger())
	if err != nil {
		b.Fatal(err)
	}
	s.SetSource(constantForce{f: Vec3{1, 1, 1}})
	st := State{Position: Vec3{5, 5, 5}}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.commandForce(time.Duration(i)*time.Millisecond, st)
	}
}
