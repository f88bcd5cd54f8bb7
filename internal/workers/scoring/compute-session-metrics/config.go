// internal/workers/scoring/compute-session-metrics/config.go
package computesessionmetrics

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 30 * time.Second,
	}
}
