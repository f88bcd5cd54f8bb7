// internal/workers/scoring/compute-session-metrics/handler.go
package computesessionmetrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	apperrors "haptic-trainer/internal/common/errors"
	"haptic-trainer/internal/common/logger"
	"haptic-trainer/internal/control"
	"haptic-trainer/internal/device"
	"haptic-trainer/internal/models"
	"haptic-trainer/internal/motion"
	"haptic-trainer/internal/session"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "compute-session-metrics"
)

var (
	ErrSessionNotFound     = errors.New("SESSION_NOT_FOUND")
	ErrSamplesMissing      = errors.New("SESSION_SAMPLES_MISSING")
	ErrInsufficientSamples = errors.New("INSUFFICIENT_SAMPLES")
	ErrMetricComputeFailed = errors.New("METRIC_COMPUTE_FAILED")
	ErrReportPersistFailed = errors.New("DATABASE_INSERT_FAILED")
)

type Handler struct {
	store  *session.Store
	logger logger.Logger
}

func NewHandler(config *Config, store *session.Store, log logger.Logger) *Handler {
	return &Handler{
		store:  store,
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.failJob(client, job, "PARSE_ERROR", fmt.Sprintf("parse input: %v", err), 0)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		errorCode := "UNKNOWN_ERROR"
		retries := int32(0)
		if errors.Is(err, ErrSessionNotFound) {
			errorCode = "SESSION_NOT_FOUND"
			retries = 0
		} else if errors.Is(err, ErrSamplesMissing) {
			errorCode = "SESSION_SAMPLES_MISSING"
			retries = 0
		} else if errors.Is(err, ErrInsufficientSamples) {
			errorCode = "INSUFFICIENT_SAMPLES"
			retries = 0
		} else if errors.Is(err, ErrMetricComputeFailed) {
			errorCode = "METRIC_COMPUTE_FAILED"
			retries = 0
		} else if errors.Is(err, ErrReportPersistFailed) {
			errorCode = "DATABASE_INSERT_FAILED"
			retries = 3
		}
		h.failJob(client, job, errorCode, err.Error(), retries)
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input.SessionID == "" {
		return nil, fmt.Errorf("%w: sessionId is required", ErrSessionNotFound)
	}

	sess, err := h.store.FindByID(ctx, input.SessionID)
	if err != nil {
		if isCode(err, apperrors.ErrCodeSessionNotFound) {
			return nil, fmt.Errorf("%w: %v", ErrSessionNotFound, err)
		}
		return nil, fmt.Errorf("%w: load session: %v", ErrMetricComputeFailed, err)
	}

	samples, err := h.store.SamplesBySession(ctx, input.SessionID)
	if err != nil {
		if isCode(err, apperrors.ErrCodeSessionSamplesMissing) {
			return nil, fmt.Errorf("%w: %v", ErrSamplesMissing, err)
		}
		return nil, fmt.Errorf("%w: load samples: %v", ErrMetricComputeFailed, err)
	}

	reference := h.loadReference(ctx, sess.TrajectoryID)

	span := samples[len(samples)-1].Elapsed - samples[0].Elapsed
	if span <= 0 || len(samples) < 2 {
		return nil, fmt.Errorf("%w: degenerate sample window for session %s",
			ErrMetricComputeFailed, input.SessionID)
	}
	rateHz := float64(len(samples)-1) / span.Seconds()

	analyzer, err := motion.NewAnalyzer(rateHz)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMetricComputeFailed, err)
	}
	report, err := analyzer.Analyze(samples, reference)
	if err != nil {
		if isCode(err, apperrors.ErrCodeInsufficientSamples) {
			return nil, fmt.Errorf("%w: %v", ErrInsufficientSamples, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrMetricComputeFailed, err)
	}

	report.SessionID = sess.ID
	report.Task = sess.Task
	base := sess.CreatedAt
	if sess.StartedAt != nil {
		base = *sess.StartedAt
	}
	report.WindowStart = base.Add(samples[0].Elapsed)
	report.WindowEnd = base.Add(samples[len(samples)-1].Elapsed)

	if err := h.store.SaveReport(ctx, report); err != nil {
		return nil, fmt.Errorf("%w: save report: %v", ErrReportPersistFailed, err)
	}

	gestureReports, err := h.analyzeGestures(ctx, sess, samples, reference, analyzer)
	if err != nil {
		return nil, err
	}

	h.logger.Info("session metrics computed", map[string]interface{}{
		"sessionId":      sess.ID,
		"task":           sess.Task,
		"samples":        report.SampleCount,
		"rateHz":         rateHz,
		"sparc":          report.Smoothness.SPARC,
		"ldlj":           report.Smoothness.LDLJ,
		"pathLength":     report.PathLength,
		"gestureReports": gestureReports,
	})

	return &Output{
		SessionID:          sess.ID,
		Sparc:              report.Smoothness.SPARC,
		Ldlj:               report.Smoothness.LDLJ,
		PathEfficiency:     report.PathEfficiency.Straightline,
		ReferenceDeviation: report.PathEfficiency.ReferenceDeviation,
		ForceCv:            report.ForceModulation.CV,
		ForceReversals:     report.ForceModulation.Reversals,
		HighFreqRatio:      report.ForceModulation.HighFreqRatio,
		CompletionTimeMs:   report.CompletionTime.Milliseconds(),
		PathLength:         report.PathLength,
		MeanSpeed:          report.MeanSpeed,
		PeakSpeed:          report.PeakSpeed,
		SampleCount:        report.SampleCount,
		SampleRateHz:       rateHz,
		GestureReports:     gestureReports,
	}, nil
}

// analyzeGestures writes one report per gesture window of the reference
// trajectory. References without windows (gesture exemplars, free recordings)
// produce none. Windows with too few samples are skipped by the analyzer.
func (h *Handler) analyzeGestures(ctx context.Context, sess *models.TrainingSession, samples []device.Sample, reference *control.Trajectory, analyzer *motion.Analyzer) (int, error) {
	if reference == nil || len(reference.Segments) == 0 {
		return 0, nil
	}

	spans := make([]motion.GestureSpan, len(reference.Segments))
	for i, window := range reference.Segments {
		spans[i] = motion.GestureSpan{Gesture: window.Gesture, Start: window.Start, End: window.End}
	}
	reports, err := analyzer.AnalyzeSegments(samples, spans, reference)
	if err != nil {
		h.logger.Warn("gesture segmentation failed", map[string]interface{}{
			"sessionId": sess.ID,
			"error":     err.Error(),
		})
		return 0, nil
	}

	for _, report := range reports {
		report.SessionID = sess.ID
		report.Task = sess.Task
		if err := h.store.SaveReport(ctx, report); err != nil {
			return 0, fmt.Errorf("%w: save gesture report %s: %v", ErrReportPersistFailed, report.Gesture, err)
		}
	}
	return len(reports), nil
}

// loadReference fetches the session's reference trajectory. Metrics that need
// a reference degrade to zero without one, so load failures only warn.
func (h *Handler) loadReference(ctx context.Context, trajectoryID string) *control.Trajectory {
	if trajectoryID == "" {
		return nil
	}
	_, payload, err := h.store.FindTrajectoryByID(ctx, trajectoryID)
	if err != nil {
		h.logger.Warn("reference trajectory unavailable", map[string]interface{}{
			"trajectoryId": trajectoryID,
			"error":        err.Error(),
		})
		return nil
	}
	var trajectory control.Trajectory
	if err := json.Unmarshal(payload, &trajectory); err != nil {
		h.logger.Warn("reference trajectory payload invalid", map[string]interface{}{
			"trajectoryId": trajectoryID,
			"error":        err.Error(),
		})
		return nil
	}
	return &trajectory
}

func isCode(err error, code apperrors.ErrorCode) bool {
	stdErr, ok := err.(*apperrors.StandardError)
	return ok && stdErr.Code == code
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	_, err = cmd.Send(context.Background())
	if err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
	} else {
		h.logger.Info("job completed successfully", map[string]interface{}{
			"jobKey": job.Key,
		})
	}
}

func (h *Handler) failJob(client worker.JobClient, job entities.Job, errorCode, errorMessage string, retries int32) {
	h.logger.Error("job failed", map[string]interface{}{
		"jobKey":       job.Key,
		"errorCode":    errorCode,
		"errorMessage": errorMessage,
		"retries":      retries,
	})

	_, err := client.NewThrowErrorCommand().
		JobKey(job.Key).
		ErrorCode(errorCode).
		ErrorMessage(errorMessage).
		Send(context.Background())
	if err != nil {
		h.logger.Error("failed to throw error", map[string]interface{}{
			"error": err,
		})
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
