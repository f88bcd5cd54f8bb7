package device

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Playback replays a recorded state sequence as the hand motion. Commanded
// forces are accepted and discarded; the replayed hand does not react. One
// recorded state is consumed per WriteForce, clock-stretched to the step the
// sampler runs at: a 30 Hz recording driven at 1 kHz holds each frame for 33
// ticks.
type Playback struct {
	mu     sync.Mutex
	states []State
	step   time.Duration // servo step
	frame  time.Duration // recording frame period

	open    bool
	elapsed time.Duration
}

// NewPlayback creates a playback device from recorded states captured at the
// given frame period.
func NewPlayback(states []State, frame, step time.Duration) (*Playback, error) {
	if len(states) == 0 {
		return nil, fmt.Errorf("playback requires at least one state")
	}
	if frame <= 0 || step <= 0 {
		return nil, fmt.Errorf("playback frame and step must be positive")
	}
	return &Playback{states: states, frame: frame, step: step}, nil
}

func (p *Playback) Open(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.open {
		return fmt.Errorf("playback device already open")
	}
	p.open = true
	p.elapsed = 0
	return nil
}

func (p *Playback) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.open = false
	return nil
}

func (p *Playback) ReadState(ctx context.Context) (State, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.open {
		return State{}, fmt.Errorf("playback device not open")
	}

	idx := int(p.elapsed / p.frame)
	if idx >= len(p.states) {
		idx = len(p.states) - 1 // hold the final frame
	}
	return p.states[idx], nil
}

func (p *Playback) WriteForce(ctx context.Context, f Vec3) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.open {
		return fmt.Errorf("playback device not open")
	}
	p.elapsed += p.step
	return nil
}

// Done reports whether the recording has been fully replayed.
func (p *Playback) Done() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.elapsed >= time.Duration(len(p.states))*p.frame
}

func (p *Playback) Info() Info {
	return Info{
		Name:   "playback",
		Model:  "recorded-hand",
		Serial: fmt.Sprintf("playback-%d", len(p.states)),
		Axes:   3,
	}
}
