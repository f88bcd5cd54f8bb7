package device

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// AxisRange is a per-axis workspace bound in millimeters.
type AxisRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Profile describes a device model and its safety envelope. Profiles are
// JSON files; unknown fields are rejected so a typo cannot silently relax a
// limit.
type Profile struct {
	Name            string       `json:"name"`
	Model           string       `json:"model"`
	Serial          string       `json:"serial"`
	Workspace       [3]AxisRange `json:"workspace"`
	MaxForceN       float64      `json:"max_force_n"`
	SustainForceN   float64      `json:"sustain_force_n"`
	SustainWindowMs int          `json:"sustain_window_ms"`
	NominalRateHz   int          `json:"nominal_rate_hz"`
}

// SustainWindow returns the sustained-force watchdog window.
func (p Profile) SustainWindow() time.Duration {
	return time.Duration(p.SustainWindowMs) * time.Millisecond
}

// InWorkspace reports whether a position lies inside the workspace bounds.
func (p Profile) InWorkspace(pos Vec3) bool {
	for i := 0; i < 3; i++ {
		if pos[i] < p.Workspace[i].Min || pos[i] > p.Workspace[i].Max {
			return false
		}
	}
	return true
}

// Validate checks the profile's safety envelope for internal consistency.
func (p Profile) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("profile name is required")
	}
	if p.MaxForceN <= 0 {
		return fmt.Errorf("max_force_n must be positive, got %v", p.MaxForceN)
	}
	if p.SustainForceN <= 0 || p.SustainForceN > p.MaxForceN {
		return fmt.Errorf("sustain_force_n must be in (0, max_force_n], got %v", p.SustainForceN)
	}
	if p.SustainWindowMs <= 0 {
		return fmt.Errorf("sustain_window_ms must be positive, got %d", p.SustainWindowMs)
	}
	if p.NominalRateHz <= 0 {
		return fmt.Errorf("nominal_rate_hz must be positive, got %d", p.NominalRateHz)
	}
	for i := 0; i < 3; i++ {
		if p.Workspace[i].Min >= p.Workspace[i].Max {
			return fmt.Errorf("workspace axis %d: min %v >= max %v", i, p.Workspace[i].Min, p.Workspace[i].Max)
		}
	}
	return nil
}

// LoadProfile reads and validates a device profile from a JSON file.
func LoadProfile(path string) (Profile, error) {
	var p Profile

	data, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("failed to read device profile %s: %w", path, err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return p, fmt.Errorf("failed to parse device profile %s: %w", path, err)
	}

	if err := p.Validate(); err != nil {
		return p, fmt.Errorf("invalid device profile %s: %w", path, err)
	}

	return p, nil
}
