// internal/analytics/docs_test.go
package analytics

import (
	"testing"
	"time"

	"haptic-trainer/internal/models"
	"haptic-trainer/internal/motion"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

var testTime = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

func createScoredSession() (*models.TrainingSession, []*motion.Report, *models.SkillScore) {
	ended := testTime.Add(2 * time.Minute)
	sess := &models.TrainingSession{
		ID:        "sess-1",
		TraineeID: "trainee-1",
		Task:      "Suturing",
		Mode:      "adaptive",
		State:     models.SessionStateCompleted,
		EndedAt:   &ended,
		CreatedAt: testTime,
	}
	reports := []*motion.Report{
		{
			SessionID:      "sess-1",
			Task:           "Suturing",
			Smoothness:     motion.Smoothness{SPARC: -1.6, LDLJ: -6.0},
			PathEfficiency: motion.PathEfficiency{Straightline: 0.9},
			CompletionTime: 2 * time.Minute,
			PathLength:     150,
		},
		{
			SessionID:      "sess-1",
			Task:           "Suturing",
			Gesture:        "G2",
			Smoothness:     motion.Smoothness{SPARC: -1.4},
			CompletionTime: 20 * time.Second,
		},
	}
	score := &models.SkillScore{
		SessionID:    "sess-1",
		TraineeID:    "trainee-1",
		Task:         "Suturing",
		OverallScore: 85.9,
		Level:        models.SkillLevelExpert,
	}
	return sess, reports, score
}

// ==========================
// Document Building Tests
// ==========================

func TestBuildDocs_FlattensReports(t *testing.T) {
	sess, reports, score := createScoredSession()

	docs := BuildDocs(sess, reports, score)
	require.Len(t, docs, 2)

	whole := docs[0]
	assert.Equal(t, "sess-1", whole.SessionID)
	assert.Equal(t, "trainee-1", whole.TraineeID)
	assert.Empty(t, whole.Gesture)
	assert.Equal(t, "adaptive", whole.Mode)
	assert.InDelta(t, -1.6, whole.SPARC, 1e-9)
	assert.Equal(t, int64(120000), whole.CompletionTimeMs)
	assert.Equal(t, *sess.EndedAt, whole.CompletedAt)
	assert.False(t, whole.IndexedAt.IsZero())

	gesture := docs[1]
	assert.Equal(t, "G2", gesture.Gesture)
	assert.InDelta(t, -1.4, gesture.SPARC, 1e-9)

	// Score fields repeat on both rows.
	for _, doc := range docs {
		assert.InDelta(t, 85.9, doc.OverallScore, 1e-9)
		assert.Equal(t, models.SkillLevelExpert, doc.Level)
	}
}

func TestBuildDocs_WithoutScore(t *testing.T) {
	sess, reports, _ := createScoredSession()

	docs := BuildDocs(sess, reports, nil)
	require.Len(t, docs, 2)
	assert.Zero(t, docs[0].OverallScore)
	assert.Empty(t, docs[0].Level)
}

func TestBuildDocs_FallsBackToCreatedAt(t *testing.T) {
	sess, reports, score := createScoredSession()
	sess.EndedAt = nil

	docs := BuildDocs(sess, reports, score)
	assert.Equal(t, sess.CreatedAt, docs[0].CompletedAt)
}

func TestDocID(t *testing.T) {
	assert.Equal(t, "sess-1", DocID(&models.SessionAnalyticsDoc{SessionID: "sess-1"}))
	assert.Equal(t, "sess-1-g2", DocID(&models.SessionAnalyticsDoc{SessionID: "sess-1", Gesture: "G2"}))
}
