// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	loadEnvFile()

	// Base config
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../../configs")
	viper.AddConfigPath(".")

	// Enable ENV override like DB_PASSWORD, JWT_SECRET
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	// Environment overlay, e.g. config.production.yaml
	envConfigFile := fmt.Sprintf("config.%s", env)
	viper.SetConfigName(envConfigFile)
	_ = viper.MergeInConfig() // ignore error if not found

	expandEnvVars(viper.GetViper())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if cfg.Database.Elasticsearch.URL == "" && len(cfg.Database.Elasticsearch.Addresses) > 0 {
		cfg.Database.Elasticsearch.URL = cfg.Database.Elasticsearch.Addresses[0]
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadEnvFile probes the usual locations so binaries and tests can run from
// any directory inside the module.
func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
		"../../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				fmt.Printf("loaded .env from %s\n", path)
				return
			}
		}
	}

	fmt.Printf(".env not found, using system environment variables\n")
}

// Find project root by looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// expandEnvVars resolves ${VAR} placeholders left in config values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		val := v.Get(key)

		if strVal, ok := val.(string); ok {
			if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
				expanded := os.ExpandEnv(strVal)
				if expanded != strVal && expanded != "" {
					v.Set(key, expanded)
				}
			}
		}
	}
}

// overrideEmptyConfig fills secrets from the environment when the YAML left
// them empty.
func overrideEmptyConfig(cfg *Config) {
	if cfg.Database.Postgres.User == "" {
		if val := os.Getenv("DB_USER"); val != "" {
			cfg.Database.Postgres.User = val
		}
	}
	if cfg.Database.Postgres.Password == "" {
		if val := os.Getenv("DB_PASSWORD"); val != "" {
			cfg.Database.Postgres.Password = val
		}
	}

	if cfg.Auth.JWTSecret == "" {
		if val := os.Getenv("JWT_SECRET"); val != "" {
			cfg.Auth.JWTSecret = val
		}
	}
	if cfg.Auth.APIKey == "" {
		if val := os.Getenv("API_KEY"); val != "" {
			cfg.Auth.APIKey = val
		}
	}

	if cfg.Notifications.AWS.Region == "" {
		if val := os.Getenv("AWS_REGION"); val != "" {
			cfg.Notifications.AWS.Region = val
		}
	}

	if cfg.Observability.JaegerEndpoint == "" {
		if val := os.Getenv("JAEGER_ENDPOINT"); val != "" {
			cfg.Observability.JaegerEndpoint = val
		}
	}
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	expandEnvVars(viper.GetViper())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	// Camunda defaults
	if cfg.Camunda.MaxJobsActive == 0 {
		cfg.Camunda.MaxJobsActive = 10
	}
	if cfg.Camunda.Timeout == 0 {
		cfg.Camunda.Timeout = 30000
	}
	if cfg.Camunda.RequestTimeout == 0 {
		cfg.Camunda.RequestTimeout = 30000
	}
	if cfg.Camunda.ScoringProcess == "" {
		cfg.Camunda.ScoringProcess = "session-scoring"
	}
	if cfg.Camunda.ReferenceProcess == "" {
		cfg.Camunda.ReferenceProcess = "reference-ingest"
	}

	// Database defaults
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Elasticsearch.URL == "" && len(cfg.Database.Elasticsearch.Addresses) > 0 {
		cfg.Database.Elasticsearch.URL = cfg.Database.Elasticsearch.Addresses[0]
	}
	if cfg.Database.Elasticsearch.Index == "" {
		cfg.Database.Elasticsearch.Index = "training-analytics"
	}

	// Device defaults
	if cfg.Device.Backend == "" {
		cfg.Device.Backend = "sim"
	}
	if cfg.Device.Sim.MassKg == 0 {
		cfg.Device.Sim.MassKg = 0.05
	}
	if cfg.Device.Sim.DragNsPerMm == 0 {
		cfg.Device.Sim.DragNsPerMm = 0.002
	}
	if cfg.Device.Sim.HandAmplitudeMm == 0 {
		cfg.Device.Sim.HandAmplitudeMm = 40
	}
	if cfg.Device.Sim.HandPeriodMs == 0 {
		cfg.Device.Sim.HandPeriodMs = 4000
	}

	// Sampling defaults
	if cfg.Sampling.RateHz == 0 {
		cfg.Sampling.RateHz = 1000
	}
	if cfg.Sampling.RecordEvery == 0 {
		cfg.Sampling.RecordEvery = 5
	}
	if cfg.Sampling.StreamEvery == 0 {
		cfg.Sampling.StreamEvery = 33
	}
	if cfg.Sampling.WatchdogTicks == 0 {
		cfg.Sampling.WatchdogTicks = 50
	}
	if cfg.Sampling.RecordBatch == 0 {
		cfg.Sampling.RecordBatch = 200
	}

	// Control defaults
	if cfg.Control.Mode == "" {
		cfg.Control.Mode = "adaptive"
	}
	if cfg.Control.StiffnessMin == 0 {
		cfg.Control.StiffnessMin = 0.05
	}
	if cfg.Control.StiffnessMax == 0 {
		cfg.Control.StiffnessMax = 0.5
	}
	if cfg.Control.DampingRatio == 0 {
		cfg.Control.DampingRatio = 0.7
	}
	if cfg.Control.StiffnessSlew == 0 {
		cfg.Control.StiffnessSlew = 2.0
	}
	if cfg.Control.ForceRampMs == 0 {
		cfg.Control.ForceRampMs = 250
	}
	if cfg.Control.AdaptiveErrorMm == 0 {
		cfg.Control.AdaptiveErrorMm = 15
	}

	// Stream defaults
	if cfg.Stream.SendBuffer == 0 {
		cfg.Stream.SendBuffer = 64
	}
	if cfg.Stream.MaxClients == 0 {
		cfg.Stream.MaxClients = 32
	}
	if cfg.Stream.PingIntervalMs == 0 {
		cfg.Stream.PingIntervalMs = 30000
	}

	// Server defaults
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Server.HealthAddress == "" {
		cfg.Server.HealthAddress = ":8081"
	}

	// Auth defaults
	if cfg.Auth.TokenTTL == 0 {
		cfg.Auth.TokenTTL = 3600000
	}
	if cfg.Auth.Issuer == "" {
		cfg.Auth.Issuer = "haptic-trainer"
	}

	// Catalog defaults
	if cfg.Catalog.Path == "" {
		cfg.Catalog.Path = "configs/tasks.yaml"
	}
	if cfg.Catalog.SchemaDir == "" {
		cfg.Catalog.SchemaDir = "configs/schemas"
	}
	if cfg.Catalog.ProfileDir == "" {
		cfg.Catalog.ProfileDir = "configs/devices"
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	// Observability defaults
	if cfg.Observability.SampleRatio == 0 {
		cfg.Observability.SampleRatio = 0.1
	}

	// Worker defaults
	for key, worker := range cfg.Workers {
		if worker.MaxJobsActive == 0 {
			worker.MaxJobsActive = 5
		}
		if worker.Timeout == 0 {
			worker.Timeout = 30000
		}
		if worker.MaxRetries == 0 {
			worker.MaxRetries = 3
		}
		cfg.Workers[key] = worker
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if cfg.Camunda.BrokerAddress == "" {
		return fmt.Errorf("camunda.broker_address is required")
	}

	if cfg.Database.Postgres.Host == "" {
		return fmt.Errorf("database.postgres.host is required")
	}
	if cfg.Database.Postgres.Database == "" {
		return fmt.Errorf("database.postgres.database is required")
	}
	if cfg.Database.Postgres.User == "" {
		return fmt.Errorf("database.postgres.user is required")
	}

	if len(cfg.Database.Elasticsearch.Addresses) == 0 && cfg.Database.Elasticsearch.URL == "" {
		return fmt.Errorf("database.elasticsearch.addresses or url is required")
	}

	if cfg.Database.Redis.Address == "" {
		return fmt.Errorf("database.redis.address is required")
	}

	if cfg.Sampling.RateHz < 100 || cfg.Sampling.RateHz > 2000 {
		return fmt.Errorf("sampling.rate_hz must be between 100 and 2000")
	}

	switch cfg.Control.Mode {
	case "full", "adaptive", "fade", "off":
	default:
		return fmt.Errorf("control.mode must be one of full, adaptive, fade, off")
	}
	if cfg.Control.StiffnessMin < 0 || cfg.Control.StiffnessMax < cfg.Control.StiffnessMin {
		return fmt.Errorf("control stiffness bounds invalid: min=%v max=%v",
			cfg.Control.StiffnessMin, cfg.Control.StiffnessMax)
	}

	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// TickInterval returns the servo tick period for the configured rate.
func (s SamplingConfig) TickInterval() time.Duration {
	return time.Second / time.Duration(s.RateHz)
}

// GetWorkerConfig retrieves worker-specific configuration with fallback to defaults
func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker
	}

	return WorkerConfig{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       30000,
		MaxRetries:    3,
	}
}

// IsWorkerEnabled checks if a specific worker is enabled
func IsWorkerEnabled(cfg *Config, workerName string) bool {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker.Enabled
	}
	return true
}
