// internal/workers/analytics/index-session-analytics/handler.go
package indexsessionanalytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"haptic-trainer/internal/analytics"
	apperrors "haptic-trainer/internal/common/errors"
	"haptic-trainer/internal/common/logger"
	"haptic-trainer/internal/models"
	"haptic-trainer/internal/session"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "index-session-analytics"
)

var (
	ErrSessionNotFound  = errors.New("SESSION_NOT_FOUND")
	ErrReportNotFound   = errors.New("REPORT_NOT_FOUND")
	ErrConnectionFailed = errors.New("ELASTICSEARCH_CONNECTION_FAILED")
	ErrIndexWriteFailed = errors.New("INDEX_WRITE_FAILED")
	ErrStoreQueryFailed = errors.New("QUERY_EXECUTION_FAILED")
)

type Handler struct {
	config  *Config
	store   *session.Store
	indexer *analytics.Indexer
	logger  logger.Logger
}

func NewHandler(config *Config, store *session.Store, indexer *analytics.Indexer, log logger.Logger) *Handler {
	return &Handler{
		config:  config,
		store:   store,
		indexer: indexer,
		logger:  log.WithFields(map[string]interface{}{"taskType": TaskType}),
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

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		errorCode := h.mapErrorToCode(err)
		retries := h.getRetryCount(err)
		h.failJob(client, job, errorCode, err.Error(), retries)
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil || input.SessionID == "" {
		return nil, fmt.Errorf("%w: sessionId is required", ErrSessionNotFound)
	}

	sess, err := h.store.FindByID(ctx, input.SessionID)
	if err != nil {
		if isCode(err, apperrors.ErrCodeSessionNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, input.SessionID)
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreQueryFailed, err)
	}

	reports, err := h.store.ReportsBySession(ctx, sess.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreQueryFailed, err)
	}
	if len(reports) == 0 {
		return nil, fmt.Errorf("%w: session %s has no metric reports", ErrReportNotFound, sess.ID)
	}

	// Guided playback sessions are never graded; their documents go out
	// without score fields.
	score, err := h.store.SkillScoreBySession(ctx, sess.ID)
	if err != nil {
		if !isCode(err, apperrors.ErrCodeSkillScoreNotFound) {
			return nil, fmt.Errorf("%w: %v", ErrStoreQueryFailed, err)
		}
		h.logger.Warn("session not graded, indexing without score", map[string]interface{}{
			"sessionId": sess.ID,
		})
		score = nil
	}

	docs := analytics.BuildDocs(sess, reports, score)
	for _, doc := range docs {
		if err := h.indexer.IndexDoc(ctx, doc); err != nil {
			return nil, h.mapIndexError(err, doc)
		}
	}

	h.logger.Info("session indexed", map[string]interface{}{
		"sessionId": sess.ID,
		"index":     h.indexer.Index(),
		"docs":      len(docs),
	})

	return &Output{
		SessionID:   sess.ID,
		Index:       h.indexer.Index(),
		DocsIndexed: len(docs),
	}, nil
}

func (h *Handler) mapIndexError(err error, doc *models.SessionAnalyticsDoc) error {
	if isCode(err, apperrors.ErrCodeElasticsearchConnectionFailed) {
		return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	return fmt.Errorf("%w: doc %s: %v", ErrIndexWriteFailed, analytics.DocID(doc), err)
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

func (h *Handler) mapErrorToCode(err error) string {
	if errors.Is(err, ErrSessionNotFound) {
		return "SESSION_NOT_FOUND"
	} else if errors.Is(err, ErrReportNotFound) {
		return "REPORT_NOT_FOUND"
	} else if errors.Is(err, ErrConnectionFailed) {
		return "ELASTICSEARCH_CONNECTION_FAILED"
	} else if errors.Is(err, ErrIndexWriteFailed) {
		return "INDEX_WRITE_FAILED"
	} else if errors.Is(err, ErrStoreQueryFailed) {
		return "QUERY_EXECUTION_FAILED"
	}
	return "UNKNOWN_ERROR"
}

func (h *Handler) getRetryCount(err error) int32 {
	if errors.Is(err, ErrConnectionFailed) || errors.Is(err, ErrStoreQueryFailed) {
		return 3
	} else if errors.Is(err, ErrIndexWriteFailed) {
		return 2
	}
	return 0
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
