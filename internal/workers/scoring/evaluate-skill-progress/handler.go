// internal/workers/scoring/evaluate-skill-progress/handler.go
package evaluateskillprogress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	apperrors "haptic-trainer/internal/common/errors"
	"haptic-trainer/internal/common/logger"
	"haptic-trainer/internal/models"
	"haptic-trainer/internal/motion"
	"haptic-trainer/internal/session"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/redis/go-redis/v9"
)

const (
	TaskType = "evaluate-skill-progress"
)

var (
	ErrSessionNotFound    = errors.New("SESSION_NOT_FOUND")
	ErrReportNotFound     = errors.New("REPORT_NOT_FOUND")
	ErrBaselineNotFound   = errors.New("BASELINE_NOT_FOUND")
	ErrEvaluationFailed   = errors.New("SKILL_EVALUATION_FAILED")
	ErrScorePersistFailed = errors.New("DATABASE_INSERT_FAILED")
)

// Headline metric weights. Metrics that have a baseline row but no entry
// here still count with the default weight.
var metricWeights = map[string]float64{
	"sparc":           0.30,
	"path_efficiency": 0.25,
	"completion_s":    0.20,
	"force_cv":        0.15,
	"ldlj":            0.10,
}

const defaultMetricWeight = 0.10

type Handler struct {
	config *Config
	store  *session.Store
	redis  *redis.Client
	logger logger.Logger
}

func NewHandler(config *Config, store *session.Store, redisClient *redis.Client, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		store:  store,
		redis:  redisClient,
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
		errorCode := "SKILL_EVALUATION_FAILED"
		retries := int32(0)
		if errors.Is(err, ErrSessionNotFound) {
			errorCode = "SESSION_NOT_FOUND"
		} else if errors.Is(err, ErrReportNotFound) {
			errorCode = "REPORT_NOT_FOUND"
		} else if errors.Is(err, ErrBaselineNotFound) {
			errorCode = "BASELINE_NOT_FOUND"
		} else if errors.Is(err, ErrScorePersistFailed) {
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
		return nil, fmt.Errorf("%w: load session: %v", ErrEvaluationFailed, err)
	}

	report, err := h.wholeSessionReport(ctx, sess.ID)
	if err != nil {
		return nil, err
	}

	baselines, err := h.store.Baselines(ctx, sess.Task)
	if err != nil {
		if isCode(err, apperrors.ErrCodeBaselineNotFound) {
			return nil, fmt.Errorf("%w: %v", ErrBaselineNotFound, err)
		}
		return nil, fmt.Errorf("%w: load baselines: %v", ErrEvaluationFailed, err)
	}

	metricScores := make(map[string]MetricScore, len(baselines))
	persisted := make(map[string]float64, len(baselines))
	var weightedSum, weightTotal float64
	for _, baseline := range baselines {
		value, ok := metricValue(report, baseline.Metric)
		if !ok {
			h.logger.Warn("baseline for unknown metric", map[string]interface{}{
				"task":   sess.Task,
				"metric": baseline.Metric,
			})
			continue
		}
		ms := scoreMetric(value, baseline)
		metricScores[baseline.Metric] = ms
		persisted[baseline.Metric] = ms.Score

		weight, found := metricWeights[baseline.Metric]
		if !found {
			weight = defaultMetricWeight
		}
		weightedSum += ms.Score * weight
		weightTotal += weight
	}
	if weightTotal == 0 {
		return nil, fmt.Errorf("%w: no scorable metrics for task %s",
			ErrEvaluationFailed, sess.Task)
	}
	overall := weightedSum / weightTotal

	trend := models.TrendSteady
	history, err := h.store.SkillHistory(ctx, sess.TraineeID, sess.Task, h.config.HistoryDepth)
	if err != nil {
		h.logger.Warn("skill history unavailable", map[string]interface{}{
			"traineeId": sess.TraineeID,
			"error":     err.Error(),
		})
	} else {
		trend = trendFor(history, sess.ID, overall)
	}

	score := &models.SkillScore{
		SessionID:    sess.ID,
		TraineeID:    sess.TraineeID,
		Task:         sess.Task,
		OverallScore: overall,
		MetricScores: persisted,
		Level:        levelFor(overall),
		Trend:        trend,
		ComputedAt:   time.Now().UTC(),
	}
	if err := h.store.UpsertSkillScore(ctx, score); err != nil {
		return nil, fmt.Errorf("%w: save score: %v", ErrScorePersistFailed, err)
	}

	data, _ := json.Marshal(score)
	h.redis.Set(ctx, "trainee:skill:"+sess.TraineeID, data, h.config.CacheTTL)

	h.logger.Info("skill progress evaluated", map[string]interface{}{
		"sessionId": sess.ID,
		"traineeId": sess.TraineeID,
		"task":      sess.Task,
		"overall":   overall,
		"level":     score.Level,
		"trend":     trend,
	})

	return &Output{
		SessionID:    sess.ID,
		TraineeID:    sess.TraineeID,
		Task:         sess.Task,
		OverallScore: overall,
		Level:        score.Level,
		Trend:        trend,
		MetricScores: metricScores,
	}, nil
}

// wholeSessionReport returns the session-wide metric report, skipping any
// per-gesture rows.
func (h *Handler) wholeSessionReport(ctx context.Context, sessionID string) (*motion.Report, error) {
	reports, err := h.store.ReportsBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: load reports: %v", ErrEvaluationFailed, err)
	}
	for _, report := range reports {
		if report.Gesture == "" {
			return report, nil
		}
	}
	return nil, fmt.Errorf("%w: no whole-session report for %s", ErrReportNotFound, sessionID)
}

func metricValue(report *motion.Report, metric string) (float64, bool) {
	switch metric {
	case "sparc":
		return report.Smoothness.SPARC, true
	case "ldlj":
		return report.Smoothness.LDLJ, true
	case "path_efficiency":
		return report.PathEfficiency.Straightline, true
	case "force_cv":
		return report.ForceModulation.CV, true
	case "completion_s":
		return report.CompletionTime.Seconds(), true
	}
	return 0, false
}

// scoreMetric grades one metric. The novice-to-expert span orients itself:
// for lower-is-better metrics the expert mean sits below the novice mean and
// the fraction still grades toward 100.
func scoreMetric(value float64, baseline *models.Baseline) MetricScore {
	ms := MetricScore{Value: value}
	if baseline.ExpertStd > 0 {
		ms.ZScore = (value - baseline.ExpertMean) / baseline.ExpertStd
	}
	span := baseline.ExpertMean - baseline.NoviceMean
	if span == 0 {
		ms.Score = 50
		return ms
	}
	frac := (value - baseline.NoviceMean) / span
	if frac < 0 {
		frac = 0
	} else if frac > 1 {
		frac = 1
	}
	ms.Score = frac * 100
	return ms
}

func levelFor(overall float64) string {
	switch {
	case overall >= 85:
		return models.SkillLevelExpert
	case overall >= 70:
		return models.SkillLevelProficient
	case overall >= 50:
		return models.SkillLevelIntermediate
	default:
		return models.SkillLevelNovice
	}
}

// trendFor compares the new overall score with the mean of earlier sessions.
// Re-runs of the same session are excluded from the history.
func trendFor(history []*models.SkillScore, sessionID string, overall float64) string {
	var sum float64
	var count int
	for _, prev := range history {
		if prev.SessionID == sessionID {
			continue
		}
		sum += prev.OverallScore
		count++
	}
	if count == 0 {
		return models.TrendSteady
	}
	delta := overall - sum/float64(count)
	switch {
	case delta > 2:
		return models.TrendImproving
	case delta < -2:
		return models.TrendDeclining
	default:
		return models.TrendSteady
	}
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
			"error": err.Error(),
		})
		return
	}
	_, err = cmd.Send(context.Background())
	if err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err.Error(),
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
			"error": err.Error(),
		})
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
