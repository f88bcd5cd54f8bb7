// internal/stream/feeder.go
package stream

import (
	"context"
	"encoding/json"
	"time"

	"haptic-trainer/internal/common/config"
	"haptic-trainer/internal/common/logger"
	"haptic-trainer/internal/common/metrics"
	"haptic-trainer/internal/device"
	"haptic-trainer/internal/models"
)

const (
	subscriberName = "stream"
	feederBuffer   = 256

	// lookupTimeout bounds the store read for a just-ended session.
	lookupTimeout = 2 * time.Second
)

// Broadcaster receives the marshaled frames. The hub implements it.
type Broadcaster interface {
	Broadcast(message []byte)
}

// SampleSource is the sampler subscription surface the feeder consumes.
type SampleSource interface {
	Subscribe(name string, buffer int) <-chan device.Sample
	Unsubscribe(name string)
}

// SessionView exposes the live-session fields attached to outgoing frames.
// The session service implements it.
type SessionView interface {
	ActiveID() string
	LiveSnapshot(ctx context.Context, sessionID string) (*models.LiveSession, error)
	Get(ctx context.Context, sessionID string) (*models.TrainingSession, error)
}

// Feeder subscribes to the servo sample stream, decimates it to the
// broadcast rate, and publishes telemetry frames plus session status events
// to the hub.
type Feeder struct {
	hub    Broadcaster
	source SampleSource
	view   SessionView
	every  uint64
	log    logger.Logger

	lastID    string
	lastState string
}

// NewFeeder wires the telemetry bridge. cfg.StreamEvery picks every Nth
// servo tick for broadcast; at the default 1 kHz servo rate the stock value
// lands near 30 Hz.
func NewFeeder(hub Broadcaster, source SampleSource, view SessionView, cfg config.SamplingConfig, log logger.Logger) *Feeder {
	every := cfg.StreamEvery
	if every < 1 {
		every = 1
	}
	return &Feeder{
		hub:    hub,
		source: source,
		view:   view,
		every:  uint64(every),
		log:    log,
	}
}

// Run forwards samples until the context is canceled or the sampler closes
// the subscription.
func (f *Feeder) Run(ctx context.Context) error {
	samples := f.source.Subscribe(subscriberName, feederBuffer)
	defer f.source.Unsubscribe(subscriberName)

	f.log.Info("Telemetry feeder started", map[string]interface{}{
		"streamEvery": f.every,
	})

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sample, ok := <-samples:
			if !ok {
				f.log.Info("Sample stream closed, stopping feeder", nil)
				return nil
			}
			if sample.Seq%f.every != 0 {
				continue
			}
			f.forward(ctx, sample)
		}
	}
}

// forward publishes one telemetry frame, stamping it with the active
// session's controller state when a session owns the device.
func (f *Feeder) forward(ctx context.Context, sample device.Sample) {
	frame := TelemetryFrame{
		Type:    FrameTelemetry,
		Seq:     sample.Seq,
		T:       sample.T,
		Pos:     sample.Position,
		Vel:     sample.Velocity,
		Force:   sample.Force,
		Gripper: sample.Gripper,
	}

	sessionID := f.view.ActiveID()
	state := ""
	if sessionID != "" {
		if snap, err := f.view.LiveSnapshot(ctx, sessionID); err == nil {
			frame.Stiffness = snap.Stiffness
			frame.TrackingErrMm = snap.TrackingErrMm
			state = snap.State
		}
	}
	frame.SessionID = sessionID

	f.announce(ctx, sessionID, state)

	payload, err := json.Marshal(frame)
	if err != nil {
		return
	}
	f.hub.Broadcast(payload)
	metrics.StreamFramesSent.Inc()
}

// announce emits status events when the bound session or its state changed
// since the last forwarded frame.
func (f *Feeder) announce(ctx context.Context, sessionID, state string) {
	if sessionID == f.lastID && state == f.lastState {
		return
	}
	if f.lastID != "" && sessionID != f.lastID {
		f.announceEnded(ctx, f.lastID)
	}
	if sessionID != "" && state != "" {
		f.publishStatus(StatusEvent{
			Type:      FrameStatus,
			SessionID: sessionID,
			State:     state,
			At:        time.Now().UTC(),
		})
	}
	f.lastID, f.lastState = sessionID, state
}

// announceEnded looks up the terminal state of a session that released the
// device between frames and broadcasts it, fault reason included.
func (f *Feeder) announceEnded(ctx context.Context, sessionID string) {
	lookupCtx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	session, err := f.view.Get(lookupCtx, sessionID)
	if err != nil {
		f.log.Debug("Ended session lookup failed", map[string]interface{}{
			"sessionId": sessionID,
			"error":     err.Error(),
		})
		return
	}
	f.publishStatus(StatusEvent{
		Type:      FrameStatus,
		SessionID: session.ID,
		State:     string(session.State),
		Reason:    session.FaultReason,
		At:        time.Now().UTC(),
	})
}

func (f *Feeder) publishStatus(event StatusEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	f.hub.Broadcast(payload)
}
