// internal/common/camunda/worker.go
package camunda

import (
	"time"

	"haptic-trainer/internal/common/logger"
	"haptic-trainer/internal/common/metrics"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
)

// JobHandler processes one activated job. Handlers complete or fail the job
// themselves through the JobClient.
type JobHandler interface {
	Handle(client worker.JobClient, job entities.Job)
}

// WorkerOptions tunes one job worker subscription.
type WorkerOptions struct {
	MaxJobsActive int
	Timeout       time.Duration
}

// Worker is one open job subscription. It instruments every activation with
// the shared worker metrics before delegating to the handler.
type Worker struct {
	worker   worker.JobWorker
	log      logger.Logger
	taskType string
}

// NewWorker opens a job subscription for taskType.
func NewWorker(client zbc.Client, taskType string, handler JobHandler, opts WorkerOptions, log logger.Logger) *Worker {
	if opts.MaxJobsActive <= 0 {
		opts.MaxJobsActive = 5
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	jobWorker := client.NewJobWorker().
		JobType(taskType).
		Handler(func(jobClient worker.JobClient, job entities.Job) {
			metrics.WorkerJobsActive.WithLabelValues(taskType).Inc()
			start := time.Now()
			handler.Handle(jobClient, job)
			metrics.WorkerJobDuration.WithLabelValues(taskType).Observe(time.Since(start).Seconds())
			metrics.WorkerJobsActive.WithLabelValues(taskType).Dec()
		}).
		MaxJobsActive(opts.MaxJobsActive).
		Timeout(opts.Timeout).
		Open()

	log.Info("Worker started", map[string]interface{}{
		"taskType":      taskType,
		"maxJobsActive": opts.MaxJobsActive,
		"timeout":       opts.Timeout.String(),
	})

	return &Worker{
		worker:   jobWorker,
		log:      log,
		taskType: taskType,
	}
}

// Close stops polling and waits for in-flight jobs to hand back.
func (w *Worker) Close() {
	w.log.Info("Stopping worker", map[string]interface{}{"taskType": w.taskType})
	w.worker.Close()
}
