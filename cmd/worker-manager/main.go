// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"haptic-trainer/internal/analytics"
	"haptic-trainer/internal/common/camunda"
	"haptic-trainer/internal/common/config"
	"haptic-trainer/internal/common/database"
	commonhttp "haptic-trainer/internal/common/http"
	"haptic-trainer/internal/common/logger"
	"haptic-trainer/internal/common/observability"
	"haptic-trainer/internal/session"

	// Post-session scoring pipeline (session-scoring process)
	cm "haptic-trainer/internal/workers/scoring/compute-session-metrics"
	esp "haptic-trainer/internal/workers/scoring/evaluate-skill-progress"

	isa "haptic-trainer/internal/workers/analytics/index-session-analytics"
	str "haptic-trainer/internal/workers/notification/send-training-report"

	// Reference ingest pipeline (reference-ingest process)
	prt "haptic-trainer/internal/workers/reference/prepare-reference-trajectory"
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

	zapLog.Info("Starting worker manager...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New("worker-manager", cfg.Observability)
	defer obs.Shutdown()

	ctx := context.Background()

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
	zapLog.Info("Zeebe client connected successfully")

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

	// The daemon owns schema migration; workers only assume it ran.
	store := session.NewStore(pg.DB)

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

	// --- Register workers ---
	var workers []*camunda.Worker
	zeebeClient := camundaClient.GetClient()

	startWorker := func(taskType string, handler camunda.JobHandler) {
		wcfg := cfg.Workers[taskType]
		w := camunda.NewWorker(zeebeClient, taskType, observed(taskType, handler, obs), camunda.WorkerOptions{
			MaxJobsActive: wcfg.MaxJobsActive,
			Timeout:       time.Duration(wcfg.Timeout) * time.Millisecond,
		}, log)
		workers = append(workers, w)
	}

	// --- Scoring pipeline ---
	if cfg.Workers[cm.TaskType].Enabled {
		handler := cm.NewHandler(
			&cm.Config{
				Timeout: time.Duration(cfg.Workers[cm.TaskType].Timeout) * time.Millisecond,
			},
			store, log,
		)
		startWorker(cm.TaskType, handler)
	}

	if cfg.Workers[esp.TaskType].Enabled {
		handler := esp.NewHandler(
			&esp.Config{
				CacheTTL:     24 * time.Hour,
				Timeout:      time.Duration(cfg.Workers[esp.TaskType].Timeout) * time.Millisecond,
				HistoryDepth: 5,
			},
			store, redis.Client, log,
		)
		startWorker(esp.TaskType, handler)
	}

	// --- Analytics ---
	if cfg.Workers[isa.TaskType].Enabled {
		handler := isa.NewHandler(
			&isa.Config{
				Timeout: time.Duration(cfg.Workers[isa.TaskType].Timeout) * time.Millisecond,
			},
			store, indexer, log,
		)
		startWorker(isa.TaskType, handler)
	}

	// --- Notification ---
	if cfg.Workers[str.TaskType].Enabled {
		handler, err := str.NewHandler(
			&str.Config{
				EmailEnabled:  cfg.Notifications.Email.Enabled,
				AlertsEnabled: cfg.Notifications.Alerts.Enabled,
				FromEmail:     cfg.Notifications.Email.FromEmail,
				AlertTopicARN: cfg.Notifications.Alerts.TopicARN,
				AWSRegion:     cfg.Notifications.AWS.Region,
				Timeout:       time.Duration(cfg.Workers[str.TaskType].Timeout) * time.Millisecond,
			},
			store, log,
		)
		if err != nil {
			zapLog.Fatal("failed to create send-training-report handler", zap.Error(err))
		}
		startWorker(str.TaskType, handler)
	}

	// --- Reference ingest pipeline ---
	if cfg.Workers[prt.TaskType].Enabled {
		fetcher := commonhttp.NewClient(30 * time.Second)
		handler := prt.NewHandler(
			&prt.Config{
				FetchTimeout: 30 * time.Second,
				Timeout:      time.Duration(cfg.Workers[prt.TaskType].Timeout) * time.Millisecond,
				TargetRateHz: 100,
				SmoothWindow: 5,
			},
			store, fetcher, log,
		)
		startWorker(prt.TaskType, handler)
	}

	zapLog.Info("All workers registered", zap.Int("count", len(workers)))

	// --- Health & Metrics Server ---
	go func() {
		http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "healthy",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			probeCtx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
			defer cancel()

			status := "ready"
			code := http.StatusOK
			if err := pg.Ping(probeCtx); err != nil {
				status, code = "postgres unavailable", http.StatusServiceUnavailable
			} else if err := redis.Ping(probeCtx); err != nil {
				status, code = "redis unavailable", http.StatusServiceUnavailable
			} else if err := esClient.Ping(); err != nil {
				status, code = "elasticsearch unavailable", http.StatusServiceUnavailable
			}

			w.WriteHeader(code)
			json.NewEncoder(w).Encode(map[string]string{
				"status": status,
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.Handle("/metrics", promhttp.Handler())
		zapLog.Info("Health/Metrics server listening", zap.String("address", cfg.Server.HealthAddress))
		if err := http.ListenAndServe(cfg.Server.HealthAddress, nil); err != nil {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")

	for _, w := range workers {
		w.Close()
	}

	if err := camundaClient.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}

// observedHandler wraps a job handler with a span and the OTel job meters.
// Completion versus failure is the handler's business; the manager only sees
// that the job was handled.
type observedHandler struct {
	taskType string
	inner    camunda.JobHandler
	obs      *observability.Observability
}

func observed(taskType string, inner camunda.JobHandler, obs *observability.Observability) camunda.JobHandler {
	return &observedHandler{taskType: taskType, inner: inner, obs: obs}
}

func (h *observedHandler) Handle(client worker.JobClient, job entities.Job) {
	ctx, span := h.obs.StartSpan(context.Background(), h.taskType)
	defer span.End()

	start := time.Now()
	h.inner.Handle(client, job)

	h.obs.RecordJobDuration(ctx, time.Since(start), "handled")
	h.obs.RecordJobProcessed(ctx, "handled")
}
