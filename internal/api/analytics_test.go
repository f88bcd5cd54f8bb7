// internal/api/analytics_test.go
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"haptic-trainer/internal/analytics"
	"haptic-trainer/internal/common/errors"
	"haptic-trainer/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Analytics Search Tests
// ==========================

func TestServer_AnalyticsSearch_PassesParams(t *testing.T) {
	var got analytics.SearchParams
	search := &fakeSearch{
		SearchFunc: func(ctx context.Context, params analytics.SearchParams) (*analytics.SearchResult, error) {
			got = params
			return &analytics.SearchResult{
				Data:      []map[string]interface{}{{"traineeId": "trainee-3", "avgScore": 81.2}},
				TotalHits: 1,
				Took:      4,
			}, nil
		},
	}
	server, tokens := createTestServer(t, Deps{Search: search})
	token := issueRole(t, tokens, "instructor-1", models.RoleInstructor)

	rec := do(t, server, http.MethodGet, "/api/analytics/search?type=task_leaderboard&task=Suturing&size=10", token, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.QueryTypeTaskLeaderboard, got.Type)
	assert.Equal(t, "Suturing", got.Task)
	assert.Equal(t, 10, got.Size)
	assert.Zero(t, got.From)

	var result analytics.SearchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, int64(1), result.TotalHits)
	require.Len(t, result.Data, 1)
	assert.Equal(t, "trainee-3", result.Data[0]["traineeId"])
}

func TestServer_AnalyticsSearch_HistogramParams(t *testing.T) {
	var got analytics.SearchParams
	search := &fakeSearch{
		SearchFunc: func(ctx context.Context, params analytics.SearchParams) (*analytics.SearchResult, error) {
			got = params
			return &analytics.SearchResult{TotalHits: 0}, nil
		},
	}
	server, tokens := createTestServer(t, Deps{Search: search})
	token := issueRole(t, tokens, "instructor-1", models.RoleInstructor)

	rec := do(t, server, http.MethodGet, "/api/analytics/search?type=metric_histogram&metric=sparc&interval=0.5", token, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.QueryTypeMetricHistogram, got.Type)
	assert.Equal(t, "sparc", got.Metric)
	assert.Equal(t, 0.5, got.Interval)
}

func TestServer_AnalyticsSearch_BadInterval(t *testing.T) {
	server, tokens := createTestServer(t, Deps{Search: &fakeSearch{}})
	token := issueRole(t, tokens, "instructor-1", models.RoleInstructor)

	rec := do(t, server, http.MethodGet, "/api/analytics/search?type=metric_histogram&interval=wide", token, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INPUT_VALIDATION_FAILED", decodeErrorBody(t, rec).Code)
}

func TestServer_AnalyticsSearch_BuilderRejection(t *testing.T) {
	search := &fakeSearch{
		SearchFunc: func(ctx context.Context, params analytics.SearchParams) (*analytics.SearchResult, error) {
			return nil, errors.NewInputValidationFailedError("unknown query type: made_up")
		},
	}
	server, tokens := createTestServer(t, Deps{Search: search})
	token := issueRole(t, tokens, "instructor-1", models.RoleInstructor)

	rec := do(t, server, http.MethodGet, "/api/analytics/search?type=made_up", token, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeErrorBody(t, rec)
	assert.Equal(t, "INPUT_VALIDATION_FAILED", body.Code)
	assert.Contains(t, body.Details, "unknown query type")
}
