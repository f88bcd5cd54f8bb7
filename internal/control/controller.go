package control

import (
	"fmt"
	"math"
	"sync"
	"time"

	"haptic-trainer/internal/device"
)

// virtualMassKg is the effective end-effector mass used to derive damping
// from stiffness. Matches the inertia of the Touch gimbal assembly.
const virtualMassKg = 0.05

// Params configure one controller instance for one session.
type Params struct {
	Mode            string        // guidance mode, see Mode* constants
	StiffnessMin    float64       // N/mm
	StiffnessMax    float64       // N/mm
	DampingRatio    float64       // dimensionless, 1.0 = critically damped
	StiffnessSlew   float64       // max |dK/dt| in N/mm per second
	ForceRamp       time.Duration // fault ramp-down span
	AdaptiveErrorMm float64       // error magnitude where adaptive guidance saturates
	MaxForceN       float64       // output clamp, from the device profile
}

func (p Params) validate() error {
	if p.MaxForceN <= 0 {
		return fmt.Errorf("max force must be positive, got %f", p.MaxForceN)
	}
	if p.DampingRatio < 0 || p.DampingRatio > 2 {
		return fmt.Errorf("damping ratio %f out of range [0, 2]", p.DampingRatio)
	}
	if p.StiffnessSlew <= 0 {
		return fmt.Errorf("stiffness slew must be positive, got %f", p.StiffnessSlew)
	}
	if p.ForceRamp <= 0 {
		return fmt.Errorf("force ramp must be positive, got %s", p.ForceRamp)
	}
	return nil
}

// Snapshot is a point-in-time view of controller state for status reporting.
type Snapshot struct {
	Elapsed       time.Duration `json:"elapsed"`
	Progress      float64       `json:"progress"`
	TrackingErrMm float64       `json:"trackingErrMm"`
	Stiffness     float64       `json:"stiffness"`
	Done          bool          `json:"done"`
	Faulted       bool          `json:"faulted"`
	FaultReason   string        `json:"faultReason,omitempty"`
	Clamps        uint64        `json:"clamps"`
}

// Controller computes guidance forces from the gap between the trainee's
// state and the reference trajectory:
//
//	F = K(t)·(x_ref − x) + D(t)·(v_ref − v)
//
// Stiffness follows the schedule under a slew-rate limit, damping is derived
// from stiffness by the damping ratio, and the output is magnitude-clamped to
// the device force limit. Once faulted the output ramps to zero and latches
// there until Reset.
type Controller struct {
	mu       sync.Mutex
	traj     *Trajectory
	schedule Schedule
	params   Params

	elapsed     time.Duration
	lastK       float64
	kPrimed     bool
	lastErr     float64
	lastForce   device.Vec3
	done        bool
	clamps      uint64
	faulted     bool
	faultReason string
	faultAt     time.Duration
	faultForce  device.Vec3
}

// NewController binds a validated trajectory to a gain schedule.
func NewController(traj *Trajectory, p Params) (*Controller, error) {
	if err := traj.Validate(); err != nil {
		return nil, err
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	sched, err := NewSchedule(p.Mode, p.StiffnessMin, p.StiffnessMax, traj.Duration(), p.AdaptiveErrorMm)
	if err != nil {
		return nil, err
	}
	return &Controller{traj: traj, schedule: sched, params: p}, nil
}

// Force implements device.ForceSource. Called once per servo tick.
func (c *Controller) Force(elapsed time.Duration, st device.State) device.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()

	dt := elapsed - c.elapsed
	c.elapsed = elapsed

	if c.faulted {
		return c.rampDown(elapsed)
	}

	ref, done := c.traj.At(elapsed)
	if done {
		c.done = true
	}

	posErr := ref.Position.Sub(st.Position)
	velErr := ref.Velocity.Sub(st.Velocity)
	c.lastErr = posErr.Norm()

	k := c.slewLimit(c.schedule.Stiffness(elapsed, c.lastErr), dt)
	d := dampingFor(k, c.params.DampingRatio)

	f := posErr.Scale(k).Add(velErr.Scale(d))
	f, clamped := f.ClampNorm(c.params.MaxForceN)
	if clamped {
		c.clamps++
	}
	c.lastForce = f
	return f
}

// slewLimit bounds how fast the applied stiffness may change per tick.
func (c *Controller) slewLimit(target float64, dt time.Duration) float64 {
	if !c.kPrimed {
		c.kPrimed = true
		c.lastK = target
		return target
	}
	maxDelta := c.params.StiffnessSlew * dt.Seconds()
	delta := target - c.lastK
	if delta > maxDelta {
		target = c.lastK + maxDelta
	} else if delta < -maxDelta {
		target = c.lastK - maxDelta
	}
	c.lastK = target
	return target
}

// rampDown scales the force captured at fault time linearly to zero across
// the configured ramp span.
func (c *Controller) rampDown(elapsed time.Duration) device.Vec3 {
	frac := float64(elapsed-c.faultAt) / float64(c.params.ForceRamp)
	if frac >= 1 {
		c.lastForce = device.Vec3{}
		return device.Vec3{}
	}
	f := c.faultForce.Scale(1 - frac)
	c.lastForce = f
	return f
}

// Fault latches the controller into its ramp-to-zero state. Safe to call from
// any goroutine; repeated calls keep the first reason.
func (c *Controller) Fault(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.faulted {
		return
	}
	c.faulted = true
	c.faultReason = reason
	c.faultAt = c.elapsed
	c.faultForce = c.lastForce
}

// Reset clears a fault latch so the controller can resume guiding.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.faulted = false
	c.faultReason = ""
	c.faultForce = device.Vec3{}
}

// Done reports whether the trajectory has been fully traversed.
func (c *Controller) Done() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// Snapshot returns the current controller state for status endpoints.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	progress := 0.0
	if d := c.traj.Duration(); d > 0 {
		progress = math.Min(float64(c.elapsed)/float64(d), 1)
	}
	return Snapshot{
		Elapsed:       c.elapsed,
		Progress:      progress,
		TrackingErrMm: c.lastErr,
		Stiffness:     c.lastK,
		Done:          c.done,
		Faulted:       c.faulted,
		FaultReason:   c.faultReason,
		Clamps:        c.clamps,
	}
}

// Trajectory returns the bound reference trajectory.
func (c *Controller) Trajectory() *Trajectory {
	return c.traj
}

// dampingFor derives the damping coefficient from stiffness so the coupled
// mass stays at the configured damping ratio: D = 2ζ·sqrt(K·m), converted
// between N/mm and N/m scales.
func dampingFor(stiffness, ratio float64) float64 {
	if stiffness <= 0 {
		return 0
	}
	return 2 * ratio * math.Sqrt(stiffness*1000*virtualMassKg) / 1000
}
