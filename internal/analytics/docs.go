// internal/analytics/docs.go

// Package analytics flattens scored sessions into Elasticsearch documents and
// answers the cross-session queries exposed by the API.
package analytics

import (
	"strings"
	"time"

	"haptic-trainer/internal/models"
	"haptic-trainer/internal/motion"
)

// BuildDocs flattens one session into index documents, one per metric report
// row, whole-session row first. Score fields repeat on every row so
// leaderboard aggregations never need a join.
func BuildDocs(sess *models.TrainingSession, reports []*motion.Report, score *models.SkillScore) []*models.SessionAnalyticsDoc {
	now := time.Now().UTC()
	completed := sess.CreatedAt
	if sess.EndedAt != nil {
		completed = *sess.EndedAt
	}

	docs := make([]*models.SessionAnalyticsDoc, 0, len(reports))
	for _, report := range reports {
		doc := &models.SessionAnalyticsDoc{
			SessionID:          sess.ID,
			TraineeID:          sess.TraineeID,
			Task:               sess.Task,
			Gesture:            report.Gesture,
			Mode:               sess.Mode,
			SPARC:              report.Smoothness.SPARC,
			LDLJ:               report.Smoothness.LDLJ,
			PathEfficiency:     report.PathEfficiency.Straightline,
			ReferenceDeviation: report.PathEfficiency.ReferenceDeviation,
			ForceCV:            report.ForceModulation.CV,
			ForceReversals:     report.ForceModulation.Reversals,
			HighFreqRatio:      report.ForceModulation.HighFreqRatio,
			CompletionTimeMs:   report.CompletionTime.Milliseconds(),
			PathLength:         report.PathLength,
			MeanSpeed:          report.MeanSpeed,
			PeakSpeed:          report.PeakSpeed,
			CompletedAt:        completed,
			IndexedAt:          now,
		}
		if score != nil {
			doc.OverallScore = score.OverallScore
			doc.Level = score.Level
		}
		docs = append(docs, doc)
	}
	return docs
}

// DocID is the stable index id for a document, so re-indexing a session
// overwrites instead of duplicating.
func DocID(doc *models.SessionAnalyticsDoc) string {
	if doc.Gesture == "" {
		return doc.SessionID
	}
	return doc.SessionID + "-" + strings.ToLower(doc.Gesture)
}
