package jigsaws

import (
	"fmt"
	"time"

	"haptic-trainer/internal/control"
)

// ToTrajectory converts one manipulator channel into a reference trajectory
// at the dataset frame rate, ready to bind to a controller.
func ToTrajectory(id, task, gesture string, frames []Frame) (*control.Trajectory, error) {
	if len(frames) < 2 {
		return nil, fmt.Errorf("recording too short: %d frames", len(frames))
	}
	tr := &control.Trajectory{
		ID:        id,
		Task:      task,
		Gesture:   gesture,
		Rate:      FrameRateHz,
		Waypoints: make([]control.Waypoint, len(frames)),
	}
	for i, f := range frames {
		tr.Waypoints[i] = control.Waypoint{
			Elapsed:  time.Duration(i) * FrameDuration,
			Position: f.Position,
			Velocity: f.Velocity,
			Gripper:  f.Gripper,
		}
	}
	if err := tr.Validate(); err != nil {
		return nil, err
	}
	return tr, nil
}

// GestureWindows converts transcript segments to trajectory gesture windows,
// clipped to a recording of the given frame count. Segments entirely outside
// the recording are dropped.
func GestureWindows(segments []Segment, frames int) []control.GestureWindow {
	total := time.Duration(frames) * FrameDuration
	var windows []control.GestureWindow
	for _, seg := range segments {
		start, end := seg.Window()
		if start >= total {
			continue
		}
		if end > total {
			end = total
		}
		windows = append(windows, control.GestureWindow{
			Gesture: seg.Gesture,
			Start:   start,
			End:     end,
		})
	}
	return windows
}
