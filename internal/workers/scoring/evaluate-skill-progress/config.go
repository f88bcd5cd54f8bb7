// internal/workers/scoring/evaluate-skill-progress/config.go
package evaluateskillprogress

import "time"

type Config struct {
	CacheTTL     time.Duration
	Timeout      time.Duration
	HistoryDepth int
}

func LoadConfig() *Config {
	return &Config{
		CacheTTL:     24 * time.Hour,
		Timeout:      30 * time.Second,
		HistoryDepth: 5,
	}
}
