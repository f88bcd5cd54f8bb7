// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct, shared by the daemon,
// the worker-manager, and the tools.
type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Database      DatabaseConfig          `mapstructure:"database"`
	Device        DeviceConfig            `mapstructure:"device"`
	Sampling      SamplingConfig          `mapstructure:"sampling"`
	Control       ControlConfig           `mapstructure:"control"`
	Stream        StreamConfig            `mapstructure:"stream"`
	Server        ServerConfig            `mapstructure:"server"`
	Auth          AuthConfig              `mapstructure:"auth"`
	Catalog       CatalogConfig           `mapstructure:"catalog"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	Notifications NotificationConfig      `mapstructure:"notifications"`
	Logging       LoggingConfig           `mapstructure:"logging"`
	Observability ObservabilityConfig     `mapstructure:"observability"`
}

// --- Core App/Infrastructure Config ---

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type CamundaConfig struct {
	BrokerAddress    string `mapstructure:"broker_address"`
	MaxJobsActive    int    `mapstructure:"max_jobs_active"`
	Timeout          int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout   int    `mapstructure:"request_timeout"` // milliseconds
	ScoringProcess   string `mapstructure:"scoring_process"`
	ReferenceProcess string `mapstructure:"reference_process"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses  []string `mapstructure:"addresses"`
	Username   string   `mapstructure:"username"`
	Password   string   `mapstructure:"password"`
	SSLEnabled bool     `mapstructure:"ssl_enabled"`
	URL        string   `mapstructure:"url"`
	Index      string   `mapstructure:"index"`
}

// GetURL returns the first address or the URL field
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// --- Device / Servo Loop Config ---

// DeviceConfig selects the haptic device backend and its profile.
type DeviceConfig struct {
	Backend      string    `mapstructure:"backend"`       // "sim" or "playback"
	ProfilePath  string    `mapstructure:"profile_path"`  // JSON device profile
	PlaybackPath string    `mapstructure:"playback_path"` // trajectory JSON for the playback backend
	Sim          SimConfig `mapstructure:"sim"`
}

// SimConfig tunes the synthetic trainee backend.
type SimConfig struct {
	Seed            int64   `mapstructure:"seed"`
	MassKg          float64 `mapstructure:"mass_kg"`
	DragNsPerMm     float64 `mapstructure:"drag_ns_per_mm"`
	HandAmplitudeMm float64 `mapstructure:"hand_amplitude_mm"`
	HandPeriodMs    int     `mapstructure:"hand_period_ms"`
	NoiseMm         float64 `mapstructure:"noise_mm"`
}

// SamplingConfig governs the fixed-interval servo loop.
type SamplingConfig struct {
	RateHz        int `mapstructure:"rate_hz"`
	RecordEvery   int `mapstructure:"record_every"`   // persist every Nth tick
	StreamEvery   int `mapstructure:"stream_every"`   // broadcast every Nth tick
	WatchdogTicks int `mapstructure:"watchdog_ticks"` // consecutive stale reads before fault
	RecordBatch   int `mapstructure:"record_batch"`   // samples per insert batch
}

// ControlConfig holds the variable-stiffness controller defaults. The task
// catalog may override gains per task.
type ControlConfig struct {
	Mode            string  `mapstructure:"mode"`              // full, adaptive, fade, off
	StiffnessMin    float64 `mapstructure:"stiffness_min"`     // N/mm
	StiffnessMax    float64 `mapstructure:"stiffness_max"`     // N/mm
	DampingRatio    float64 `mapstructure:"damping_ratio"`
	StiffnessSlew   float64 `mapstructure:"stiffness_slew"`    // N/mm per second
	ForceRampMs     int     `mapstructure:"force_ramp_ms"`     // fault ramp-down
	AdaptiveErrorMm float64 `mapstructure:"adaptive_error_mm"` // error at which adaptive K saturates
}

// StreamConfig tunes the websocket telemetry gateway.
type StreamConfig struct {
	Enabled        bool `mapstructure:"enabled"`
	SendBuffer     int  `mapstructure:"send_buffer"`
	MaxClients     int  `mapstructure:"max_clients"`
	PingIntervalMs int  `mapstructure:"ping_interval_ms"`
}

type ServerConfig struct {
	Address       string `mapstructure:"address"`        // daemon API + metrics
	HealthAddress string `mapstructure:"health_address"` // worker-manager health + metrics
}

// AuthConfig holds the API token settings. Tokens are HS256 JWTs minted
// against a shared API key.
type AuthConfig struct {
	APIKey    string `mapstructure:"api_key"`
	JWTSecret string `mapstructure:"jwt_secret"`
	TokenTTL  int    `mapstructure:"token_ttl"` // milliseconds
	Issuer    string `mapstructure:"issuer"`
}

// CatalogConfig locates the task catalog, its schemas, and device profiles.
type CatalogConfig struct {
	Path       string `mapstructure:"path"`        // tasks.yaml
	SchemaDir  string `mapstructure:"schema_dir"`  // JSON schemas
	ProfileDir string `mapstructure:"profile_dir"` // device profile JSONs
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// NotificationConfig holds settings for the send-training-report worker.
type NotificationConfig struct {
	Email struct {
		Enabled   bool   `mapstructure:"enabled"`
		FromEmail string `mapstructure:"from_email"`
	} `mapstructure:"email"`
	Alerts struct {
		Enabled  bool   `mapstructure:"enabled"`
		TopicARN string `mapstructure:"topic_arn"`
	} `mapstructure:"alerts"`
	AWS struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"aws"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// ObservabilityConfig holds tracing settings. Metrics are always on.
type ObservabilityConfig struct {
	TracingEnabled bool    `mapstructure:"tracing_enabled"`
	JaegerEndpoint string  `mapstructure:"jaeger_endpoint"`
	SampleRatio    float64 `mapstructure:"sample_ratio"`
}
