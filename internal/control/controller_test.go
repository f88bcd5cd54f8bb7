// internal/control/controller_test.go
package control

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"haptic-trainer/internal/device"
)

// ==========================
// Test Helper Functions
// ==========================

func createTestParams() Params {
	return Params{
		Mode:            ModeFull,
		StiffnessMin:    0.05,
		StiffnessMax:    0.5,
		DampingRatio:    0.7,
		StiffnessSlew:   2.0,
		ForceRamp:       250 * time.Millisecond,
		AdaptiveErrorMm: 15,
		MaxForceN:       3.3,
	}
}

func createTestController(t *testing.T, p Params) *Controller {
	c, err := NewController(createTestTrajectory(), p)
	require.NoError(t, err)
	return c
}

// ==========================
// Construction Tests
// ==========================

func TestNewController_Validation(t *testing.T) {
	t.Run("rejects invalid trajectory", func(t *testing.T) {
		tr := createTestTrajectory()
		tr.Waypoints = nil
		_, err := NewController(tr, createTestParams())
		assert.Error(t, err)
	})

	t.Run("rejects zero max force", func(t *testing.T) {
		p := createTestParams()
		p.MaxForceN = 0
		_, err := NewController(createTestTrajectory(), p)
		assert.ErrorContains(t, err, "max force")
	})

	t.Run("rejects unknown mode", func(t *testing.T) {
		p := createTestParams()
		p.Mode = "assertive"
		_, err := NewController(createTestTrajectory(), p)
		assert.ErrorContains(t, err, "unknown guidance mode")
	})

	t.Run("rejects zero ramp", func(t *testing.T) {
		p := createTestParams()
		p.ForceRamp = 0
		_, err := NewController(createTestTrajectory(), p)
		assert.ErrorContains(t, err, "force ramp")
	})
}

// ==========================
// Force Computation Tests
// ==========================

func TestController_PullsTowardReference(t *testing.T) {
	c := createTestController(t, createTestParams())

	// At t=500ms the reference sits at (50,0,0); the trainee lags behind and
	// below, so the spring must pull toward +X and +Y.
	f := c.Force(500*time.Millisecond, device.State{
		Position: device.Vec3{40, -10, 0},
		Velocity: device.Vec3{100, 0, 0},
	})
	assert.Greater(t, f[0], 0.0)
	assert.Greater(t, f[1], 0.0)
	assert.InDelta(t, 0.0, f[2], 1e-9)
}

func TestController_OnPathForceIsSmall(t *testing.T) {
	c := createTestController(t, createTestParams())

	// Exactly on the reference with matching velocity: no correction.
	f := c.Force(500*time.Millisecond, device.State{
		Position: device.Vec3{50, 0, 0},
		Velocity: device.Vec3{100, 0, 0},
	})
	assert.InDelta(t, 0.0, f.Norm(), 1e-9)
}

func TestController_DampingOpposesVelocityError(t *testing.T) {
	c := createTestController(t, createTestParams())

	// On the path but rushing ahead at double speed: pure damping, braking
	// against +X motion.
	f := c.Force(500*time.Millisecond, device.State{
		Position: device.Vec3{50, 0, 0},
		Velocity: device.Vec3{200, 0, 0},
	})
	assert.Less(t, f[0], 0.0)
	assert.InDelta(t, 0.0, f[1], 1e-9)
}

func TestController_ClampsToMaxForce(t *testing.T) {
	p := createTestParams()
	c := createTestController(t, p)

	// 500mm of error at K=0.5 wants 250N; the clamp caps it at the profile
	// limit without changing direction.
	f := c.Force(500*time.Millisecond, device.State{
		Position: device.Vec3{-450, 0, 0},
		Velocity: device.Vec3{100, 0, 0},
	})
	assert.InDelta(t, p.MaxForceN, f.Norm(), 1e-9)
	assert.Greater(t, f[0], 0.0)
	assert.Greater(t, c.Snapshot().Clamps, uint64(0))
}

func TestController_OffModeCommandsNothing(t *testing.T) {
	p := createTestParams()
	p.Mode = ModeOff
	c := createTestController(t, p)

	f := c.Force(500*time.Millisecond, device.State{
		Position: device.Vec3{-450, 0, 0},
	})
	assert.Equal(t, device.Vec3{}, f)
}

func TestController_SlewLimitsStiffnessChanges(t *testing.T) {
	p := createTestParams()
	p.Mode = ModeAdaptive
	c := createTestController(t, p)

	// Prime on-path, then inject a large error one tick later. The adaptive
	// target jumps, but applied stiffness may move at most slew*dt.
	c.Force(time.Millisecond, device.State{Position: device.Vec3{0.1, 0, 0}})
	k0 := c.Snapshot().Stiffness

	c.Force(2*time.Millisecond, device.State{Position: device.Vec3{-100, 0, 0}})
	k1 := c.Snapshot().Stiffness

	maxDelta := p.StiffnessSlew * 0.001
	assert.LessOrEqual(t, k1-k0, maxDelta+1e-12)
}

// ==========================
// Fault Handling Tests
// ==========================

func TestController_FaultRampsForceToZero(t *testing.T) {
	p := createTestParams()
	c := createTestController(t, p)

	st := device.State{Position: device.Vec3{40, 0, 0}, Velocity: device.Vec3{100, 0, 0}}
	before := c.Force(500*time.Millisecond, st)
	require.Greater(t, before.Norm(), 0.0)

	c.Fault("stale samples")

	mid := c.Force(500*time.Millisecond+p.ForceRamp/2, st)
	assert.InDelta(t, before.Norm()/2, mid.Norm(), 1e-9)
	assert.Greater(t, mid[0], 0.0, "ramp keeps the original direction")

	after := c.Force(500*time.Millisecond+2*p.ForceRamp, st)
	assert.Equal(t, device.Vec3{}, after)

	// Latched: still zero regardless of how large the error grows.
	later := c.Force(2*time.Second, device.State{Position: device.Vec3{-400, 0, 0}})
	assert.Equal(t, device.Vec3{}, later)

	snap := c.Snapshot()
	assert.True(t, snap.Faulted)
	assert.Equal(t, "stale samples", snap.FaultReason)
}

func TestController_ResetClearsFault(t *testing.T) {
	c := createTestController(t, createTestParams())

	c.Force(100*time.Millisecond, device.State{Position: device.Vec3{0, 0, 0}})
	c.Fault("device fault")
	c.Reset()

	f := c.Force(500*time.Millisecond, device.State{
		Position: device.Vec3{40, 0, 0},
		Velocity: device.Vec3{100, 0, 0},
	})
	assert.Greater(t, f.Norm(), 0.0)
	assert.False(t, c.Snapshot().Faulted)
}

func TestController_FaultKeepsFirstReason(t *testing.T) {
	c := createTestController(t, createTestParams())
	c.Fault("first")
	c.Fault("second")
	assert.Equal(t, "first", c.Snapshot().FaultReason)
}

// ==========================
// Progress Tests
// ==========================

func TestController_DoneAfterTraversal(t *testing.T) {
	c := createTestController(t, createTestParams())

	c.Force(500*time.Millisecond, device.State{})
	assert.False(t, c.Done())
	assert.InDelta(t, 0.5, c.Snapshot().Progress, 1e-9)

	c.Force(1500*time.Millisecond, device.State{})
	assert.True(t, c.Done())
	assert.InDelta(t, 1.0, c.Snapshot().Progress, 1e-9)
}

func TestDampingFor(t *testing.T) {
	assert.Equal(t, 0.0, dampingFor(0, 0.7))
	assert.Greater(t, dampingFor(0.5, 0.7), dampingFor(0.1, 0.7))
	assert.InDelta(t, 0.007, dampingFor(0.5, 0.7), 1e-9)
}
