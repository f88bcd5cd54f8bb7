// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// --- Servo loop ---

	ServoTickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "servo_tick_duration_seconds",
			Help:    "Duration of one servo tick (read, control, write)",
			Buckets: prometheus.ExponentialBuckets(0.00005, 2, 12),
		},
	)

	ServoMissedTicks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "servo_missed_ticks_total",
			Help: "Total ticks that fired later than the jitter tolerance",
		},
	)

	ServoForceClamps = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "servo_force_clamps_total",
			Help: "Total force commands clamped to the device safety limit",
		},
	)

	ServoDeviceFaults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "servo_device_faults_total",
			Help: "Total device faults by reason",
		},
		[]string{"reason"},
	)

	SamplesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "servo_samples_dropped_total",
			Help: "Samples dropped per slow subscriber",
		},
		[]string{"subscriber"},
	)

	// --- Sessions ---

	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "training_sessions_active",
			Help: "Number of sessions currently running",
		},
	)

	SessionsStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "training_sessions_started_total",
			Help: "Sessions started, by task and guidance mode",
		},
		[]string{"task", "mode"},
	)

	SessionsEnded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "training_sessions_ended_total",
			Help: "Sessions ended, by task and final state",
		},
		[]string{"task", "state"},
	)

	SamplesRecorded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "training_samples_recorded_total",
			Help: "Total samples persisted by the recorder",
		},
	)

	// --- Telemetry stream ---

	StreamClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "telemetry_stream_clients",
			Help: "Connected websocket telemetry clients",
		},
	)

	StreamFramesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "telemetry_frames_sent_total",
			Help: "Telemetry frames broadcast to clients",
		},
	)

	// --- Workers ---

	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)
)
