package control

import (
	"fmt"
	"math"
	"time"
)

// Guidance modes. The mode decides how stiffness evolves over a session.
const (
	ModeFull     = "full"     // stiffness pinned at the configured maximum
	ModeAdaptive = "adaptive" // stiffness scales with tracking error
	ModeFade     = "fade"     // stiffness decays linearly across the trajectory
	ModeOff      = "off"      // no guidance force (assessment-only)
)

// Gains are the spring-damper coefficients applied on one tick.
// Stiffness is N/mm, Damping is N·s/mm.
type Gains struct {
	Stiffness float64 `json:"stiffness"`
	Damping   float64 `json:"damping"`
}

// Schedule decides the target stiffness for a tick given the elapsed session
// time and the current positional tracking error in mm. Implementations are
// called from the servo goroutine only.
type Schedule interface {
	Stiffness(elapsed time.Duration, trackingErrMm float64) float64
}

// NewSchedule builds the schedule for a guidance mode.
// fade needs the trajectory duration to know its decay span; adaptive needs
// the error magnitude at which guidance saturates.
func NewSchedule(mode string, min, max float64, duration time.Duration, saturationErrMm float64) (Schedule, error) {
	if min < 0 || max <= 0 || min > max {
		return nil, fmt.Errorf("invalid stiffness bounds [%f, %f]", min, max)
	}
	switch mode {
	case ModeFull:
		return fullSchedule{k: max}, nil
	case ModeOff:
		return fullSchedule{k: 0}, nil
	case ModeFade:
		if duration <= 0 {
			return nil, fmt.Errorf("fade schedule needs a positive trajectory duration")
		}
		return &fadeSchedule{min: min, max: max, duration: duration}, nil
	case ModeAdaptive:
		if saturationErrMm <= 0 {
			return nil, fmt.Errorf("adaptive schedule needs a positive saturation error")
		}
		return &adaptiveSchedule{min: min, max: max, saturation: saturationErrMm, alpha: 0.05}, nil
	default:
		return nil, fmt.Errorf("unknown guidance mode %q", mode)
	}
}

// fullSchedule holds a constant stiffness. Also serves mode "off" with k=0.
type fullSchedule struct {
	k float64
}

func (s fullSchedule) Stiffness(time.Duration, float64) float64 { return s.k }

// fadeSchedule withdraws guidance linearly from max to min across the
// trajectory duration, then stays at min.
type fadeSchedule struct {
	min, max float64
	duration time.Duration
}

func (s *fadeSchedule) Stiffness(elapsed time.Duration, _ float64) float64 {
	frac := float64(elapsed) / float64(s.duration)
	if frac >= 1 {
		return s.min
	}
	return s.max - (s.max-s.min)*frac
}

// adaptiveSchedule raises stiffness with tracking error: min when on-path,
// max once the error reaches the saturation magnitude. The raw target is
// smoothed with an exponential moving average so noisy error estimates do not
// chatter the gain.
type adaptiveSchedule struct {
	min, max   float64
	saturation float64
	alpha      float64
	smoothed   float64
	primed     bool
}

func (s *adaptiveSchedule) Stiffness(_ time.Duration, trackingErrMm float64) float64 {
	frac := math.Min(trackingErrMm/s.saturation, 1)
	target := s.min + (s.max-s.min)*frac
	if !s.primed {
		s.smoothed = target
		s.primed = true
		return target
	}
	s.smoothed += s.alpha * (target - s.smoothed)
	return s.smoothed
}
