// cmd/haptic-daemon/main.go
package main

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"haptic-trainer/internal/analytics"
	"haptic-trainer/internal/api"
	"haptic-trainer/internal/common/auth"
	"haptic-trainer/internal/common/camunda"
	"haptic-trainer/internal/common/config"
	"haptic-trainer/internal/common/database"
	apperrors "haptic-trainer/internal/common/errors"
	"haptic-trainer/internal/common/logger"
	"haptic-trainer/internal/common/observability"
	"haptic-trainer/internal/control"
	"haptic-trainer/internal/device"
	"haptic-trainer/internal/models"
	"haptic-trainer/internal/session"
	"haptic-trainer/internal/stream"
	"haptic-trainer/internal/workflow"
	"haptic-trainer/pkg/catalog"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	zapLog := logger.New("info", "console")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	zapLog = logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting haptic daemon...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New("haptic-daemon", cfg.Observability)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Load task catalog and device profile ---
	cat, err := catalog.Load(cfg.Catalog)
	if err != nil {
		zapLog.Fatal("catalog load failed", zap.Error(err))
	}
	zapLog.Info("Task catalog loaded",
		zap.Strings("tasks", cat.TaskNames()),
		zap.Int("profiles", len(cat.Profiles)),
	)

	profile, err := device.LoadProfile(cfg.Device.ProfilePath)
	if err != nil {
		zapLog.Fatal("device profile load failed", zap.Error(err))
	}
	zapLog.Info("Device profile loaded",
		zap.String("name", profile.Name),
		zap.String("model", profile.Model),
		zap.Float64("maxForceN", profile.MaxForceN),
	)

	// --- Build the device backend and servo sampler ---
	servoInterval := time.Second / time.Duration(cfg.Sampling.RateHz)

	dev, err := buildDevice(cfg.Device, servoInterval)
	if err != nil {
		zapLog.Fatal("device backend init failed", zap.Error(err))
	}

	sampler, err := device.NewSampler(dev, profile, device.SamplerOptions{
		Interval:      servoInterval,
		WatchdogTicks: cfg.Sampling.WatchdogTicks,
	}, log)
	if err != nil {
		zapLog.Fatal("sampler init failed", zap.Error(err))
	}
	zapLog.Info("Servo sampler ready",
		zap.String("backend", cfg.Device.Backend),
		zap.Int("rateHz", cfg.Sampling.RateHz),
	)

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		// Test the connection with context
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	store := session.NewStore(pg.DB)
	if err := store.Migrate(ctx); err != nil {
		zapLog.Fatal("schema migration failed", zap.Error(err))
	}
	if err := seedBaselines(ctx, store, cat, zapLog); err != nil {
		zapLog.Fatal("baseline seeding failed", zap.Error(err))
	}

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		// Test the connection with context
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	live := session.NewLive(redis.Client, 0)

	// --- Init Elasticsearch with retry ---
	var esClient *database.ElasticsearchClient
	err = retryWithBackoff(func() error {
		var err error
		esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		// Test the connection
		return esClient.Ping()
	}, 15, 2*time.Second, zapLog, "Elasticsearch connection")

	if err != nil {
		zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
	}
	zapLog.Info("Elasticsearch connected successfully")

	indexer := analytics.NewIndexer(esClient, cfg.Database.Elasticsearch.Index, log)
	if err := indexer.EnsureIndex(ctx); err != nil {
		zapLog.Fatal("analytics index setup failed", zap.Error(err))
	}

	// --- Init Zeebe client with retry ---
	var camundaClient *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		camundaClient, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
			GatewayAddress:         cfg.Camunda.BrokerAddress,
			UsePlaintextConnection: true,
			ConnectionTimeout:      10 * time.Second,
			RequestTimeout:         time.Duration(cfg.Camunda.RequestTimeout) * time.Millisecond,
		})
		if err != nil {
			return err
		}
		return camundaClient.HealthCheck(ctx)
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")

	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	defer camundaClient.Close()
	zapLog.Info("Zeebe client connected successfully")

	launcher := workflow.NewLauncher(camundaClient, workflow.Config{
		ScoringProcess:   cfg.Camunda.ScoringProcess,
		ReferenceProcess: cfg.Camunda.ReferenceProcess,
	}, log)

	// --- Session service ---
	sessions := session.NewService(store, live, sampler, launcher, log, session.ServiceConfig{
		Control:     controlParams(cfg.Control, profile),
		TaskControl: taskControlParams(cfg.Control, profile, cat),
		Recorder: session.RecorderConfig{
			KeepEvery: cfg.Sampling.RecordEvery,
			BatchSize: cfg.Sampling.RecordBatch,
		},
	})

	if recovered, err := sessions.RecoverOrphans(ctx); err != nil {
		zapLog.Warn("orphaned session sweep failed", zap.Error(err))
	} else if recovered > 0 {
		zapLog.Info("recovered orphaned sessions", zap.Int("count", recovered))
	}

	// --- Auth tokens ---
	tokens, err := auth.NewTokenService(cfg.Auth)
	if err != nil {
		zapLog.Fatal("token service init failed", zap.Error(err))
	}

	// --- Telemetry stream ---
	var hub *stream.Hub
	var feeder *stream.Feeder
	var gateway *stream.Gateway
	if cfg.Stream.Enabled {
		hub = stream.NewHub(cfg.Stream, log)
		feeder = stream.NewFeeder(hub, sampler, sessions, cfg.Sampling, log)
		gateway = stream.NewGateway(hub, tokens, cfg.Stream, log)
	}

	// --- HTTP API ---
	deps := api.Deps{
		Sessions: sessions,
		Reports:  store,
		Trainees: store.Trainees(),
		Search:   indexer,
		Tokens:   tokens,
		Probes: map[string]api.Probe{
			"postgres": pg.Ping,
			"redis":    redis.Ping,
			"elasticsearch": func(ctx context.Context) error {
				return esClient.Ping()
			},
			"zeebe": camundaClient.HealthCheck,
		},
	}
	if gateway != nil {
		deps.Stream = gateway.Handle
	}
	server := api.NewServer(cfg.Server, cfg.Auth, deps, log)

	// --- Run everything until a signal or a device fault ---
	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		err := sampler.Run(gctx)
		if err != nil && !stderrors.Is(err, context.Canceled) {
			// The servo loop is down. Fault the active session so its state
			// and the scoring pipeline reflect the abort before we exit.
			faultCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if _, ferr := sessions.FaultActive(faultCtx, err.Error()); ferr != nil {
				zapLog.Error("Failed to fault active session", zap.Error(ferr))
			}
			return err
		}
		return nil
	})

	if hub != nil {
		g.Go(func() error {
			return hub.Run(gctx)
		})
		g.Go(func() error {
			return feeder.Run(gctx)
		})
	}

	g.Go(func() error {
		return server.Run(gctx)
	})

	zapLog.Info("Haptic daemon running", zap.String("address", cfg.Server.Address))

	if err := g.Wait(); err != nil && !stderrors.Is(err, context.Canceled) {
		zapLog.Fatal("Daemon failed", zap.Error(err))
	}
	zapLog.Info("Haptic daemon stopped gracefully")
}

// buildDevice constructs the configured backend. The sim integrates at the
// servo step; playback replays a recorded trajectory file.
func buildDevice(cfg config.DeviceConfig, step time.Duration) (device.Device, error) {
	switch cfg.Backend {
	case "sim", "":
		return device.NewSim(device.SimParams{
			Seed:            cfg.Sim.Seed,
			MassKg:          cfg.Sim.MassKg,
			DragNsPerMm:     cfg.Sim.DragNsPerMm,
			HandAmplitudeMm: cfg.Sim.HandAmplitudeMm,
			HandPeriod:      time.Duration(cfg.Sim.HandPeriodMs) * time.Millisecond,
			NoiseMm:         cfg.Sim.NoiseMm,
			Step:            step,
		}), nil
	case "playback":
		states, frame, err := loadPlaybackStates(cfg.PlaybackPath)
		if err != nil {
			return nil, err
		}
		return device.NewPlayback(states, frame, step)
	default:
		return nil, fmt.Errorf("unsupported device backend %q", cfg.Backend)
	}
}

// loadPlaybackStates reads a reference trajectory JSON and flattens its
// waypoints into device states for the playback backend.
func loadPlaybackStates(path string) ([]device.State, time.Duration, error) {
	if path == "" {
		return nil, 0, fmt.Errorf("playback backend requires device.playback_path")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("read playback trajectory: %w", err)
	}
	var trajectory control.Trajectory
	if err := json.Unmarshal(raw, &trajectory); err != nil {
		return nil, 0, fmt.Errorf("decode playback trajectory: %w", err)
	}
	if err := trajectory.Validate(); err != nil {
		return nil, 0, fmt.Errorf("playback trajectory %s: %w", path, err)
	}

	states := make([]device.State, len(trajectory.Waypoints))
	for i, wp := range trajectory.Waypoints {
		states[i] = device.State{
			Position: wp.Position,
			Velocity: wp.Velocity,
			Gripper:  wp.Gripper,
		}
	}
	frame := time.Duration(float64(time.Second) / trajectory.Rate)
	return states, frame, nil
}

// controlParams merges the configured gains with the device force ceiling.
func controlParams(cfg config.ControlConfig, profile device.Profile) control.Params {
	return control.Params{
		Mode:            cfg.Mode,
		StiffnessMin:    cfg.StiffnessMin,
		StiffnessMax:    cfg.StiffnessMax,
		DampingRatio:    cfg.DampingRatio,
		StiffnessSlew:   cfg.StiffnessSlew,
		ForceRamp:       time.Duration(cfg.ForceRampMs) * time.Millisecond,
		AdaptiveErrorMm: cfg.AdaptiveErrorMm,
		MaxForceN:       profile.MaxForceN,
	}
}

// taskControlParams overlays each catalog task's guidance tuning on the
// global gains. Zero catalog fields keep the configured value.
func taskControlParams(cfg config.ControlConfig, profile device.Profile, cat *catalog.Catalog) map[string]control.Params {
	overrides := make(map[string]control.Params, len(cat.Tasks))
	for _, task := range cat.Tasks {
		params := controlParams(cfg, profile)
		if task.Guidance.Mode != "" {
			params.Mode = task.Guidance.Mode
		}
		if task.Guidance.StiffnessMin > 0 {
			params.StiffnessMin = task.Guidance.StiffnessMin
		}
		if task.Guidance.StiffnessMax > 0 {
			params.StiffnessMax = task.Guidance.StiffnessMax
		}
		if task.Guidance.DampingRatio > 0 {
			params.DampingRatio = task.Guidance.DampingRatio
		}
		overrides[task.Name] = params
	}
	return overrides
}

// seedBaselines writes the catalog's expert baselines for tasks that have
// none persisted yet. Baselines refined from imported recordings win over
// the shipped defaults, so existing rows are left alone.
func seedBaselines(ctx context.Context, store *session.Store, cat *catalog.Catalog, log *zap.Logger) error {
	for _, task := range cat.Tasks {
		existing, err := store.Baselines(ctx, task.Name)
		if err != nil {
			var stdErr *apperrors.StandardError
			if !stderrors.As(err, &stdErr) || stdErr.Code != apperrors.ErrCodeBaselineNotFound {
				return err
			}
		}
		if len(existing) > 0 {
			continue
		}

		now := time.Now().UTC()
		for metric, baseline := range task.Baselines {
			err := store.UpsertBaseline(ctx, &models.Baseline{
				Task:       task.Name,
				Metric:     metric,
				ExpertMean: baseline.ExpertMean,
				ExpertStd:  baseline.ExpertStd,
				NoviceMean: baseline.NoviceMean,
				NoviceStd:  baseline.NoviceStd,
				UpdatedAt:  now,
			})
			if err != nil {
				return err
			}
		}
		log.Info("Seeded catalog baselines",
			zap.String("task", task.Name),
			zap.Int("metrics", len(task.Baselines)),
		)
	}
	return nil
}
