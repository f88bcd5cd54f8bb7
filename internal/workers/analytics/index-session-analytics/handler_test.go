// internal/workers/analytics/index-session-analytics/handler_test.go
package indexsessionanalytics

import (
	"context"
	"database/sql"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"haptic-trainer/internal/analytics"
	"haptic-trainer/internal/common/config"
	"haptic-trainer/internal/common/database"
	"haptic-trainer/internal/common/logger"
	"haptic-trainer/internal/session"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

var testTime = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

type indexedDoc struct {
	method string
	path   string
	body   string
}

// createTestHandler wires the handler against sqlmock and a local server
// standing in for Elasticsearch.
func createTestHandler(t *testing.T, respond http.HandlerFunc) (*Handler, sqlmock.Sqlmock, *[]indexedDoc) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	indexed := &[]indexedDoc{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		*indexed = append(*indexed, indexedDoc{
			method: r.Method,
			path:   r.URL.Path,
			body:   string(body),
		})
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		respond(w, r)
	}))
	t.Cleanup(server.Close)

	es, err := database.NewElasticsearch(config.ElasticsearchConfig{
		Addresses: []string{server.URL},
	})
	require.NoError(t, err)

	log := logger.NewTestLogger(t)
	indexer := analytics.NewIndexer(es, "", log)
	handler := NewHandler(LoadConfig(), session.NewStore(db), indexer, log)
	return handler, mock, indexed
}

func respondCreated(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusCreated)
	w.Write([]byte(`{"result":"created"}`))
}

func sessionRow(id string) *sqlmock.Rows {
	endedAt := testTime.Add(2 * time.Minute)
	return sqlmock.NewRows([]string{"id", "trainee_id", "task", "trajectory_id",
		"mode", "manipulator", "state", "fault_reason", "sample_count",
		"started_at", "ended_at", "created_at", "updated_at"}).
		AddRow(id, "trainee-1", "Suturing", "traj-1", "adaptive", "master_left",
			"completed", "", int64(12000), testTime, endedAt, testTime, endedAt)
}

func reportColumns() []string {
	return []string{"session_id", "task", "gesture", "window_start", "window_end",
		"sample_count", "sparc", "ldlj", "path_efficiency", "reference_deviation",
		"force_cv", "force_reversals", "high_freq_ratio", "completion_time_ms",
		"path_length", "mean_speed", "peak_speed", "speed_peaks", "computed_at"}
}

func reportRow(rows *sqlmock.Rows, sessionID, gesture string) *sqlmock.Rows {
	return rows.AddRow(sessionID, "Suturing", gesture, int64(0), int64(120000), int64(12000),
		-1.6, -6.0, 0.9, 2.5,
		0.3, 4, 0.08, int64(120000),
		150.0, 1.25, 4.1, 6, testTime)
}

func skillScoreRow(sessionID string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"session_id", "trainee_id", "task",
		"overall_score", "metric_scores", "level", "trend", "computed_at"}).
		AddRow(sessionID, "trainee-1", "Suturing", 85.9,
			[]byte(`{"sparc":90.0}`), "expert", "improving", testTime)
}

func expectSessionLookup(mock sqlmock.Sqlmock, sessionID string, rows *sqlmock.Rows) {
	mock.ExpectQuery("SELECT id, trainee_id, task, trajectory_id").
		WithArgs(sessionID).
		WillReturnRows(rows)
}

func expectReportLookup(mock sqlmock.Sqlmock, sessionID string, rows *sqlmock.Rows) {
	mock.ExpectQuery("SELECT session_id, task, gesture, window_start").
		WithArgs(sessionID).
		WillReturnRows(rows)
}

func expectSkillLookup(mock sqlmock.Sqlmock, sessionID string, rows *sqlmock.Rows) {
	mock.ExpectQuery("SELECT session_id, trainee_id, task, overall_score").
		WithArgs(sessionID).
		WillReturnRows(rows)
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_Success(t *testing.T) {
	handler, mock, indexed := createTestHandler(t, respondCreated)

	expectSessionLookup(mock, "sess-1", sessionRow("sess-1"))
	expectReportLookup(mock, "sess-1",
		reportRow(reportRow(sqlmock.NewRows(reportColumns()), "sess-1", ""), "sess-1", "G2"))
	expectSkillLookup(mock, "sess-1", skillScoreRow("sess-1"))

	output, err := handler.Execute(context.Background(), &Input{SessionID: "sess-1"})
	require.NoError(t, err)

	assert.Equal(t, "sess-1", output.SessionID)
	assert.Equal(t, "training-sessions", output.Index)
	assert.Equal(t, 2, output.DocsIndexed)

	require.Len(t, *indexed, 2)
	whole := (*indexed)[0]
	assert.Equal(t, http.MethodPut, whole.method)
	assert.Equal(t, "/training-sessions/_doc/sess-1", whole.path)
	assert.Contains(t, whole.body, `"overallScore":85.9`)
	assert.Contains(t, whole.body, `"level":"expert"`)
	assert.Contains(t, whole.body, `"completionTimeMs":120000`)

	gesture := (*indexed)[1]
	assert.Equal(t, "/training-sessions/_doc/sess-1-g2", gesture.path)
	assert.Contains(t, gesture.body, `"gesture":"G2"`)
	assert.Contains(t, gesture.body, `"level":"expert"`,
		"score fields repeat on gesture rows")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_UngradedSessionIndexesWithoutScore(t *testing.T) {
	handler, mock, indexed := createTestHandler(t, respondCreated)

	expectSessionLookup(mock, "sess-1", sessionRow("sess-1"))
	expectReportLookup(mock, "sess-1",
		reportRow(sqlmock.NewRows(reportColumns()), "sess-1", ""))
	mock.ExpectQuery("SELECT session_id, trainee_id, task, overall_score").
		WithArgs("sess-1").
		WillReturnError(sql.ErrNoRows)

	output, err := handler.Execute(context.Background(), &Input{SessionID: "sess-1"})
	require.NoError(t, err)

	assert.Equal(t, 1, output.DocsIndexed)
	require.Len(t, *indexed, 1)
	assert.Contains(t, (*indexed)[0].body, `"overallScore":0`)
	assert.Contains(t, (*indexed)[0].body, `"level":""`)
}

// ==========================
// Error Handling Tests
// ==========================

func TestHandler_Execute_Errors(t *testing.T) {
	tests := []struct {
		name        string
		input       *Input
		respond     http.HandlerFunc
		mockQuery   func(mock sqlmock.Sqlmock)
		expectedErr error
	}{
		{
			name:        "missing session id",
			input:       &Input{},
			respond:     respondCreated,
			mockQuery:   func(mock sqlmock.Sqlmock) {},
			expectedErr: ErrSessionNotFound,
		},
		{
			name:    "session not found",
			input:   &Input{SessionID: "ghost"},
			respond: respondCreated,
			mockQuery: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT id, trainee_id, task, trajectory_id").
					WithArgs("ghost").
					WillReturnError(sql.ErrNoRows)
			},
			expectedErr: ErrSessionNotFound,
		},
		{
			name:    "session has no reports",
			input:   &Input{SessionID: "sess-1"},
			respond: respondCreated,
			mockQuery: func(mock sqlmock.Sqlmock) {
				expectSessionLookup(mock, "sess-1", sessionRow("sess-1"))
				expectReportLookup(mock, "sess-1", sqlmock.NewRows(reportColumns()))
			},
			expectedErr: ErrReportNotFound,
		},
		{
			name:  "index write rejected",
			input: &Input{SessionID: "sess-1"},
			respond: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte(`{"error":"disk full"}`))
			},
			mockQuery: func(mock sqlmock.Sqlmock) {
				expectSessionLookup(mock, "sess-1", sessionRow("sess-1"))
				expectReportLookup(mock, "sess-1",
					reportRow(sqlmock.NewRows(reportColumns()), "sess-1", ""))
				expectSkillLookup(mock, "sess-1", skillScoreRow("sess-1"))
			},
			expectedErr: ErrIndexWriteFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, mock, _ := createTestHandler(t, tt.respond)
			tt.mockQuery(mock)

			_, err := handler.Execute(context.Background(), tt.input)
			assert.ErrorIs(t, err, tt.expectedErr)
		})
	}
}
