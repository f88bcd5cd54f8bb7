// internal/workers/reference/prepare-reference-trajectory/config.go
package preparereferencetrajectory

import "time"

type Config struct {
	FetchTimeout time.Duration
	Timeout      time.Duration
	TargetRateHz float64
	SmoothWindow int
}

func LoadConfig() *Config {
	return &Config{
		FetchTimeout: 30 * time.Second,
		Timeout:      60 * time.Second,
		TargetRateHz: 100,
		SmoothWindow: 5,
	}
}
