package device

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"
)

// SimParams tunes the synthetic trainee backend.
type SimParams struct {
	Seed            int64
	MassKg          float64
	DragNsPerMm     float64 // viscous drag, N per mm/s
	HandAmplitudeMm float64
	HandPeriod      time.Duration
	NoiseMm         float64       // gaussian read noise on position
	Step            time.Duration // integration step, normally the servo interval
}

// Sim is a synthetic haptic device: a point mass driven by the commanded
// force plus a scripted hand-motion term. Physics advance by one Step per
// WriteForce, which matches the read-compute-write cadence of the servo loop
// and keeps runs deterministic under a fixed seed.
type Sim struct {
	mu     sync.Mutex
	params SimParams
	rng    *rand.Rand

	open    bool
	elapsed time.Duration
	pos     Vec3
	vel     Vec3

	// hand spring pulls the mass toward the scripted path
	handStiffness float64 // N/mm
	handDamping   float64 // N per mm/s
}

// NewSim creates a simulated device. Zero-value params get workable defaults.
func NewSim(params SimParams) *Sim {
	if params.MassKg == 0 {
		params.MassKg = 0.05
	}
	if params.DragNsPerMm == 0 {
		params.DragNsPerMm = 0.002
	}
	if params.HandAmplitudeMm == 0 {
		params.HandAmplitudeMm = 40
	}
	if params.HandPeriod == 0 {
		params.HandPeriod = 4 * time.Second
	}
	if params.Step == 0 {
		params.Step = time.Millisecond
	}

	return &Sim{
		params:        params,
		rng:           rand.New(rand.NewSource(params.Seed)),
		handStiffness: 0.08,
		handDamping:   0.004,
	}
}

func (s *Sim) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open {
		return fmt.Errorf("sim device already open")
	}
	s.open = true
	s.elapsed = 0
	s.pos = s.handTarget(0)
	s.vel = Vec3{}
	return nil
}

func (s *Sim) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = false
	return nil
}

func (s *Sim) ReadState(ctx context.Context) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return State{}, fmt.Errorf("sim device not open")
	}

	st := State{
		Position: s.pos,
		Velocity: s.vel,
		Gripper:  s.gripperAngle(),
	}
	if s.params.NoiseMm > 0 {
		for i := 0; i < 3; i++ {
			st.Position[i] += s.rng.NormFloat64() * s.params.NoiseMm
		}
	}
	return st, nil
}

// WriteForce applies the commanded force and advances the physics by one Step.
func (s *Sim) WriteForce(ctx context.Context, f Vec3) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return fmt.Errorf("sim device not open")
	}
	if !f.IsFinite() {
		return fmt.Errorf("non-finite force command %v", f)
	}

	dt := s.params.Step.Seconds()
	target := s.handTarget(s.elapsed)

	// Hand spring toward the scripted path, commanded force, viscous drag.
	total := f
	total = total.Add(target.Sub(s.pos).Scale(s.handStiffness))
	total = total.Sub(s.vel.Scale(s.handDamping + s.params.DragNsPerMm))

	// a = F/m, converted from m/s^2 to mm/s^2.
	accel := total.Scale(1000.0 / s.params.MassKg)
	s.vel = s.vel.Add(accel.Scale(dt))
	s.pos = s.pos.Add(s.vel.Scale(dt))
	s.elapsed += s.params.Step
	return nil
}

func (s *Sim) Info() Info {
	return Info{
		Name:   "sim",
		Model:  "synthetic-trainee",
		Serial: fmt.Sprintf("sim-%d", s.params.Seed),
		Axes:   3,
	}
}

// handTarget is the scripted hand path: a lissajous-style figure spanning the
// configured amplitude.
func (s *Sim) handTarget(elapsed time.Duration) Vec3 {
	t := elapsed.Seconds()
	w := 2 * math.Pi / s.params.HandPeriod.Seconds()
	a := s.params.HandAmplitudeMm
	return Vec3{
		a * math.Sin(w*t),
		0.5 * a * math.Sin(2*w*t+math.Pi/3),
		0.3 * a * math.Cos(w*t),
	}
}

func (s *Sim) gripperAngle() float64 {
	t := s.elapsed.Seconds()
	w := 2 * math.Pi / (2 * s.params.HandPeriod.Seconds())
	return 15 * (1 + math.Sin(w*t)) // 0..30 degrees
}
