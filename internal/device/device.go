// Package device defines the interface to a 3-degree-of-freedom force-feedback
// haptic device: position/velocity sensing in, commanded force vectors out.
// The coordinate frame is right-handed with the origin at the workspace
// center, +X right, +Y up, +Z toward the operator. Positions are millimeters,
// velocities mm/s, forces newtons, gripper angles degrees.
package device

import (
	"context"
	"math"
	"time"
)

// Vec3 is a 3-component vector. It marshals as a JSON array.
type Vec3 [3]float64

func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{v[0] + o[0], v[1] + o[1], v[2] + o[2]}
}

func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{v[0] - o[0], v[1] - o[1], v[2] - o[2]}
}

func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{v[0] * s, v[1] * s, v[2] * s}
}

func (v Vec3) Dot(o Vec3) float64 {
	return v[0]*o[0] + v[1]*o[1] + v[2]*o[2]
}

func (v Vec3) Norm() float64 {
	return math.Sqrt(v.Dot(v))
}

// ClampNorm limits the vector magnitude to max. The second return reports
// whether clamping was applied.
func (v Vec3) ClampNorm(max float64) (Vec3, bool) {
	n := v.Norm()
	if n <= max || n == 0 {
		return v, false
	}
	return v.Scale(max / n), true
}

// IsFinite reports whether all components are finite numbers.
func (v Vec3) IsFinite() bool {
	for _, c := range v {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// State is one device reading.
type State struct {
	Position Vec3    `json:"position"`
	Velocity Vec3    `json:"velocity"`
	Gripper  float64 `json:"gripper"` // degrees, 0 when the stylus has no pinch sensor
	Buttons  uint8   `json:"buttons"`
}

// Sample is one servo-tick record: the state read plus the force command
// written on that tick.
type Sample struct {
	Seq     uint64        `json:"seq"`
	T       time.Time     `json:"t"`
	Elapsed time.Duration `json:"elapsed"`
	State
	Force Vec3 `json:"force"`
}

// Info describes an opened device.
type Info struct {
	Name   string `json:"name"`
	Model  string `json:"model"`
	Serial string `json:"serial"`
	Axes   int    `json:"axes"`
}

// Device is a 3-DOF force-feedback haptic device backend. Implementations
// must be safe for use from a single servo goroutine; Open and Close may be
// called from elsewhere.
type Device interface {
	Open(ctx context.Context) error
	Close() error
	ReadState(ctx context.Context) (State, error)
	WriteForce(ctx context.Context, f Vec3) error
	Info() Info
}
