// internal/workers/analytics/index-session-analytics/config.go
package indexsessionanalytics

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 30 * time.Second,
	}
}
