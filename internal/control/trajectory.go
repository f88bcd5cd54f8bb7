// Package control implements the collaborative stiffness controller: a
// variable-stiffness spring-damper that pulls the trainee's hand toward an
// expert reference trajectory. The controller is bound to the device sampler
// as its force source and is the only component that commands guidance forces.
package control

import (
	"fmt"
	"sort"
	"time"

	"haptic-trainer/internal/device"
)

// Waypoint is one time-indexed point of a reference trajectory.
type Waypoint struct {
	Elapsed  time.Duration `json:"elapsed"`
	Position device.Vec3   `json:"position"`
	Velocity device.Vec3   `json:"velocity"`
	Gripper  float64       `json:"gripper"`
}

// GestureWindow is one annotated span of the reference timeline. Whole-trial
// trajectories imported with a transcript carry their gesture annotation this
// way; gesture-scoped exemplars carry none.
type GestureWindow struct {
	Gesture string        `json:"gesture"`
	Start   time.Duration `json:"start"`
	End     time.Duration `json:"end"`
}

// Trajectory is an expert reference recording resampled onto a fixed rate.
// Waypoints must be sorted by Elapsed; lookups interpolate linearly between
// bracketing waypoints and hold the last waypoint after the end.
type Trajectory struct {
	ID        string          `json:"id"`
	Task      string          `json:"task"`
	Gesture   string          `json:"gesture,omitempty"`
	Rate      float64         `json:"rate"`
	Waypoints []Waypoint      `json:"waypoints"`
	Segments  []GestureWindow `json:"segments,omitempty"`
}

// Validate checks structural soundness before a trajectory is accepted for a
// session.
func (tr *Trajectory) Validate() error {
	if tr.ID == "" {
		return fmt.Errorf("trajectory id is required")
	}
	if len(tr.Waypoints) < 2 {
		return fmt.Errorf("trajectory %s: need at least 2 waypoints, got %d", tr.ID, len(tr.Waypoints))
	}
	if tr.Rate <= 0 {
		return fmt.Errorf("trajectory %s: rate must be positive, got %f", tr.ID, tr.Rate)
	}
	for i := 1; i < len(tr.Waypoints); i++ {
		if tr.Waypoints[i].Elapsed <= tr.Waypoints[i-1].Elapsed {
			return fmt.Errorf("trajectory %s: waypoint %d is not after waypoint %d", tr.ID, i, i-1)
		}
	}
	for i, wp := range tr.Waypoints {
		if !wp.Position.IsFinite() || !wp.Velocity.IsFinite() {
			return fmt.Errorf("trajectory %s: waypoint %d has non-finite values", tr.ID, i)
		}
	}
	return nil
}

// Duration returns the elapsed time of the final waypoint.
func (tr *Trajectory) Duration() time.Duration {
	if len(tr.Waypoints) == 0 {
		return 0
	}
	return tr.Waypoints[len(tr.Waypoints)-1].Elapsed
}

// At returns the reference state for elapsed time t. Before the first
// waypoint it holds the first; after the last it holds the last and reports
// done=true. In between it interpolates position, velocity and gripper
// linearly across the bracketing pair.
func (tr *Trajectory) At(t time.Duration) (Waypoint, bool) {
	wps := tr.Waypoints
	if len(wps) == 0 {
		return Waypoint{}, true
	}
	if t <= wps[0].Elapsed {
		return wps[0], false
	}
	last := wps[len(wps)-1]
	if t >= last.Elapsed {
		return last, true
	}

	// First waypoint with Elapsed > t; its predecessor brackets from below.
	i := sort.Search(len(wps), func(i int) bool { return wps[i].Elapsed > t })
	a, b := wps[i-1], wps[i]
	span := b.Elapsed - a.Elapsed
	frac := float64(t-a.Elapsed) / float64(span)

	return Waypoint{
		Elapsed:  t,
		Position: lerpVec(a.Position, b.Position, frac),
		Velocity: lerpVec(a.Velocity, b.Velocity, frac),
		Gripper:  a.Gripper + (b.Gripper-a.Gripper)*frac,
	}, false
}

func lerpVec(a, b device.Vec3, frac float64) device.Vec3 {
	return device.Vec3{
		a[0] + (b[0]-a[0])*frac,
		a[1] + (b[1]-a[1])*frac,
		a[2] + (b[2]-a[2])*frac,
	}
}
