// internal/workers/notification/send-training-report/config.go
package sendtrainingreport

import "time"

type Config struct {
	EmailEnabled     bool
	AlertsEnabled    bool
	FromEmail        string
	AlertTopicARN    string
	AWSRegion        string
	TemplateRegistry string
	Timeout          time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 30 * time.Second,
	}
}
