// internal/stream/frames.go
package stream

import (
	"time"

	"haptic-trainer/internal/device"
)

// Frame type discriminators. Every broadcast message carries one in its
// "type" field so clients can demux telemetry from lifecycle events.
const (
	FrameTelemetry = "telemetry"
	FrameStatus    = "status"
)

// TelemetryFrame is one decimated servo sample as sent to subscribers.
// Stiffness and tracking error are zero outside a guided session.
type TelemetryFrame struct {
	Type          string      `json:"type"`
	SessionID     string      `json:"sessionId,omitempty"`
	Seq           uint64      `json:"seq"`
	T             time.Time   `json:"t"`
	Pos           device.Vec3 `json:"pos"`
	Vel           device.Vec3 `json:"vel"`
	Force         device.Vec3 `json:"force"`
	Gripper       float64     `json:"gripper"`
	Stiffness     float64     `json:"stiffness"`
	TrackingErrMm float64     `json:"error"`
}

// StatusEvent announces a session lifecycle change to subscribers: a session
// binding to the device, a state transition, or the terminal state after the
// session releases it.
type StatusEvent struct {
	Type      string    `json:"type"`
	SessionID string    `json:"sessionId"`
	State     string    `json:"state"`
	Reason    string    `json:"reason,omitempty"`
	At        time.Time `json:"at"`
}
