// internal/control/resample.go
package control

import (
	"time"

	"haptic-trainer/internal/device"
)

// Resample rebuilds the trajectory on a fixed-rate time grid, interpolating
// between the original waypoints. The original end point is kept so the
// duration survives rates that do not divide it evenly.
func (tr *Trajectory) Resample(rateHz float64) *Trajectory {
	out := &Trajectory{ID: tr.ID, Task: tr.Task, Gesture: tr.Gesture, Rate: rateHz, Segments: tr.Segments}
	if rateHz <= 0 || len(tr.Waypoints) == 0 {
		return out
	}
	step := time.Duration(float64(time.Second) / rateHz)
	end := tr.Duration()
	for t := time.Duration(0); t < end; t += step {
		wp, _ := tr.At(t)
		wp.Elapsed = t
		out.Waypoints = append(out.Waypoints, wp)
	}
	out.Waypoints = append(out.Waypoints, tr.Waypoints[len(tr.Waypoints)-1])
	return out
}

// Smooth applies a centered moving average to position, velocity and gripper.
// The window shrinks toward the ends so the endpoints stay anchored to the
// recording. Windows below 2 return the trajectory unchanged.
func (tr *Trajectory) Smooth(window int) *Trajectory {
	if window < 2 || len(tr.Waypoints) < 3 {
		return tr
	}
	half := window / 2
	out := &Trajectory{
		ID: tr.ID, Task: tr.Task, Gesture: tr.Gesture, Rate: tr.Rate,
		Waypoints: make([]Waypoint, len(tr.Waypoints)),
		Segments:  tr.Segments,
	}
	for i := range tr.Waypoints {
		lo := i - half
		if lo < 0 {
			lo = 0
		}
		hi := i + half
		if hi > len(tr.Waypoints)-1 {
			hi = len(tr.Waypoints) - 1
		}
		var pos, vel device.Vec3
		var grip float64
		for j := lo; j <= hi; j++ {
			pos = pos.Add(tr.Waypoints[j].Position)
			vel = vel.Add(tr.Waypoints[j].Velocity)
			grip += tr.Waypoints[j].Gripper
		}
		n := float64(hi - lo + 1)
		out.Waypoints[i] = Waypoint{
			Elapsed:  tr.Waypoints[i].Elapsed,
			Position: pos.Scale(1 / n),
			Velocity: vel.Scale(1 / n),
			Gripper:  grip / n,
		}
	}
	return out
}
