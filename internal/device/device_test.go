// internal/device/device_test.go
package device

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

func createTestProfile() Profile {
	return Profile{
		Name:   "touch-bench",
		Model:  "3D Systems Touch",
		Serial: "TST-0001",
		Workspace: [3]AxisRange{
			{Min: -80, Max: 80},
			{Min: -60, Max: 60},
			{Min: -35, Max: 35},
		},
		MaxForceN:       3.3,
		SustainForceN:   1.5,
		SustainWindowMs: 2000,
		NominalRateHz:   1000,
	}
}

// ==========================
// Vec3 Tests
// ==========================

func TestVec3_Arithmetic(t *testing.T) {
	a := Vec3{1, 2, 3}
	b := Vec3{4, -2, 0.5}

	assert.Equal(t, Vec3{5, 0, 3.5}, a.Add(b))
	assert.Equal(t, Vec3{-3, 4, 2.5}, a.Sub(b))
	assert.Equal(t, Vec3{2, 4, 6}, a.Scale(2))
	assert.InDelta(t, 1.5, a.Dot(b), 1e-12)
}

func TestVec3_ClampNorm(t *testing.T) {
	v := Vec3{3, 4, 0}

	clamped, was := v.ClampNorm(2.5)
	assert.True(t, was)
	assert.InDelta(t, 2.5, clamped.Norm(), 1e-12)
	assert.InDelta(t, 1.5, clamped[0], 1e-12)
	assert.InDelta(t, 2.0, clamped[1], 1e-12)

	same, was := v.ClampNorm(10)
	assert.False(t, was)
	assert.Equal(t, v, same)

	zero, was := Vec3{}.ClampNorm(1)
	assert.False(t, was)
	assert.Equal(t, Vec3{}, zero)
}

// ==========================
// Profile Tests
// ==========================

func TestProfile_Validate(t *testing.T) {
	p := createTestProfile()
	assert.NoError(t, p.Validate())

	bad := p
	bad.MaxForceN = 0
	assert.Error(t, bad.Validate())

	bad = p
	bad.SustainForceN = p.MaxForceN * 2
	assert.Error(t, bad.Validate())

	bad = p
	bad.Workspace[1] = AxisRange{Min: 10, Max: -10}
	assert.Error(t, bad.Validate())
}

func TestProfile_InWorkspace(t *testing.T) {
	p := createTestProfile()

	assert.True(t, p.InWorkspace(Vec3{0, 0, 0}))
	assert.True(t, p.InWorkspace(Vec3{79.9, -59.9, 34.9}))
	assert.False(t, p.InWorkspace(Vec3{81, 0, 0}))
	assert.False(t, p.InWorkspace(Vec3{0, 0, -36}))
}

func TestLoadProfile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "touch.json")

	good := `{
		"name": "touch-lab",
		"model": "3D Systems Touch",
		"serial": "TST-0002",
		"workspace": [
			{"min": -80, "max": 80},
			{"min": -60, "max": 60},
			{"min": -35, "max": 35}
		],
		"max_force_n": 3.3,
		"sustain_force_n": 1.5,
		"sustain_window_ms": 2000,
		"nominal_rate_hz": 1000
	}`
	require.NoError(t, os.WriteFile(path, []byte(good), 0o644))

	p, err := LoadProfile(path)
	require.NoError(t, err)
	assert.Equal(t, "touch-lab", p.Name)
	assert.Equal(t, 3.3, p.MaxForceN)
	assert.Equal(t, 2*time.Second, p.SustainWindow())
}

func TestLoadProfile_UnknownField(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")

	// A typo in a limit name must not silently pass.
	bad := `{
		"name": "touch-lab",
		"max_forc_n": 3.3,
		"sustain_force_n": 1.5,
		"sustain_window_ms": 2000,
		"nominal_rate_hz": 1000,
		"workspace": [
			{"min": -80, "max": 80},
			{"min": -60, "max": 60},
			{"min": -35, "max": 35}
		]
	}`
	require.NoError(t, os.WriteFile(path, []byte(bad), 0o644))

	_, err := LoadProfile(path)
	assert.Error(t, err)
}

func TestLoadProfile_Missing(t *testing.T) {
	_, err := LoadProfile(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

// ==========================
// Sim Backend Tests
// ==========================

func TestSim_OpenReadWrite(t *testing.T) {
	sim := NewSim(SimParams{Seed: 1})
	ctx := context.Background()

	_, err := sim.ReadState(ctx)
	assert.Error(t, err, "read before open must fail")

	require.NoError(t, sim.Open(ctx))
	defer sim.Close()

	st, err := sim.ReadState(ctx)
	require.NoError(t, err)
	assert.True(t, st.Position.IsFinite())
	assert.GreaterOrEqual(t, st.Gripper, 0.0)
	assert.LessOrEqual(t, st.Gripper, 30.0)

	require.NoError(t, sim.WriteForce(ctx, Vec3{0.1, 0, 0}))
}

func TestSim_Deterministic(t *testing.T) {
	ctx := context.Background()
	a := NewSim(SimParams{Seed: 42, NoiseMm: 0.05})
	b := NewSim(SimParams{Seed: 42, NoiseMm: 0.05})
	require.NoError(t, a.Open(ctx))
	require.NoError(t, b.Open(ctx))

	for i := 0; i < 200; i++ {
		sa, err := a.ReadState(ctx)
		require.NoError(t, err)
		sb, err := b.ReadState(ctx)
		require.NoError(t, err)
		assert.Equal(t, sa, sb, "tick %d", i)

		f := Vec3{0.05, -0.02, 0.01}
		require.NoError(t, a.WriteForce(ctx, f))
		require.NoError(t, b.WriteForce(ctx, f))
	}
}

func TestSim_ForceMovesTheMass(t *testing.T) {
	ctx := context.Background()
	pushed := NewSim(SimParams{Seed: 7})
	free := NewSim(SimParams{Seed: 7})
	require.NoError(t, pushed.Open(ctx))
	require.NoError(t, free.Open(ctx))

	for i := 0; i < 500; i++ {
		require.NoError(t, pushed.WriteForce(ctx, Vec3{0.5, 0, 0}))
		require.NoError(t, free.WriteForce(ctx, Vec3{}))
	}

	sp, err := pushed.ReadState(ctx)
	require.NoError(t, err)
	sf, err := free.ReadState(ctx)
	require.NoError(t, err)

	assert.Greater(t, sp.Position[0], sf.Position[0],
		"a constant +X force must displace the mass in +X relative to the free run")
}

func TestSim_RejectsNonFiniteForce(t *testing.T) {
	ctx := context.Background()
	sim := NewSim(SimParams{Seed: 1})
	require.NoError(t, sim.Open(ctx))

	err := sim.WriteForce(ctx, Vec3{math.NaN(), 0, 0})
	assert.Error(t, err)
}

// ==========================
// Playback Backend Tests
// ==========================

func TestPlayback_HoldsFrames(t *testing.T) {
	ctx := context.Background()
	states := []State{
		{Position: Vec3{1, 0, 0}},
		{Position: Vec3{2, 0, 0}},
		{Position: Vec3{3, 0, 0}},
	}

	// 100ms frames driven at a 50ms step: each frame spans two ticks.
	pb, err := NewPlayback(states, 100*time.Millisecond, 50*time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, pb.Open(ctx))

	var seen []float64
	for i := 0; i < 8; i++ {
		st, err := pb.ReadState(ctx)
		require.NoError(t, err)
		seen = append(seen, st.Position[0])
		require.NoError(t, pb.WriteForce(ctx, Vec3{}))
	}

	assert.Equal(t, []float64{1, 1, 2, 2, 3, 3, 3, 3}, seen)
	assert.True(t, pb.Done())
}

func TestPlayback_Empty(t *testing.T) {
	_, err := NewPlayback(nil, time.Millisecond, time.Millisecond)
	assert.Error(t, err)
}
