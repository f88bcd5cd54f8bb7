// internal/session/reports.go
package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"haptic-trainer/internal/common/errors"
	"haptic-trainer/internal/models"
	"haptic-trainer/internal/motion"
)

// SaveReport upserts one metric report. The primary key is (session, gesture)
// so worker retries overwrite rather than duplicate.
func (s *Store) SaveReport(ctx context.Context, report *motion.Report) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO metric_reports (session_id, task, gesture, window_start, window_end,
		       sample_count, sparc, ldlj, path_efficiency, reference_deviation,
		       force_cv, force_reversals, high_freq_ratio, completion_time_ms,
		       path_length, mean_speed, peak_speed, speed_peaks, computed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		ON CONFLICT (session_id, gesture) DO UPDATE SET
		       window_start = EXCLUDED.window_start,
		       window_end = EXCLUDED.window_end,
		       sample_count = EXCLUDED.sample_count,
		       sparc = EXCLUDED.sparc,
		       ldlj = EXCLUDED.ldlj,
		       path_efficiency = EXCLUDED.path_efficiency,
		       reference_deviation = EXCLUDED.reference_deviation,
		       force_cv = EXCLUDED.force_cv,
		       force_reversals = EXCLUDED.force_reversals,
		       high_freq_ratio = EXCLUDED.high_freq_ratio,
		       completion_time_ms = EXCLUDED.completion_time_ms,
		       path_length = EXCLUDED.path_length,
		       mean_speed = EXCLUDED.mean_speed,
		       peak_speed = EXCLUDED.peak_speed,
		       speed_peaks = EXCLUDED.speed_peaks,
		       computed_at = EXCLUDED.computed_at`,
		report.SessionID, report.Task, report.Gesture,
		report.WindowStart, report.WindowEnd, report.SampleCount,
		report.Smoothness.SPARC, report.Smoothness.LDLJ,
		report.PathEfficiency.Straightline, report.PathEfficiency.ReferenceDeviation,
		report.ForceModulation.CV, report.ForceModulation.Reversals,
		report.ForceModulation.HighFreqRatio,
		report.CompletionTime.Milliseconds(),
		report.PathLength, report.MeanSpeed, report.PeakSpeed, report.SpeedPeaks,
		report.ComputedAt,
	)
	if err != nil {
		return errors.NewDatabaseInsertFailedError(err)
	}
	return nil
}

// ReportsBySession returns the session's metric reports, whole-session row
// first, gesture rows after.
func (s *Store) ReportsBySession(ctx context.Context, sessionID string) ([]*motion.Report, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, task, gesture, window_start, window_end, sample_count,
		       sparc, ldlj, path_efficiency, reference_deviation,
		       force_cv, force_reversals, high_freq_ratio, completion_time_ms,
		       path_length, mean_speed, peak_speed, speed_peaks, computed_at
		FROM metric_reports
		WHERE session_id = $1
		ORDER BY gesture`, sessionID)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("reports_by_session", err)
	}
	defer rows.Close()

	var reports []*motion.Report
	for rows.Next() {
		var report motion.Report
		var completionMs int64
		err := rows.Scan(&report.SessionID, &report.Task, &report.Gesture,
			&report.WindowStart, &report.WindowEnd, &report.SampleCount,
			&report.Smoothness.SPARC, &report.Smoothness.LDLJ,
			&report.PathEfficiency.Straightline, &report.PathEfficiency.ReferenceDeviation,
			&report.ForceModulation.CV, &report.ForceModulation.Reversals,
			&report.ForceModulation.HighFreqRatio, &completionMs,
			&report.PathLength, &report.MeanSpeed, &report.PeakSpeed, &report.SpeedPeaks,
			&report.ComputedAt,
		)
		if err != nil {
			return nil, errors.NewQueryExecutionFailedError("reports_by_session", err)
		}
		report.CompletionTime = time.Duration(completionMs) * time.Millisecond
		reports = append(reports, &report)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewQueryExecutionFailedError("reports_by_session", err)
	}
	return reports, nil
}

// UpsertSkillScore writes the graded outcome of one session.
func (s *Store) UpsertSkillScore(ctx context.Context, score *models.SkillScore) error {
	metricScores, err := json.Marshal(score.MetricScores)
	if err != nil {
		return errors.NewDatabaseInsertFailedError(err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO skill_scores (session_id, trainee_id, task, overall_score,
		       metric_scores, level, trend, computed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (session_id) DO UPDATE SET
		       overall_score = EXCLUDED.overall_score,
		       metric_scores = EXCLUDED.metric_scores,
		       level = EXCLUDED.level,
		       trend = EXCLUDED.trend,
		       computed_at = EXCLUDED.computed_at`,
		score.SessionID, score.TraineeID, score.Task, score.OverallScore,
		metricScores, score.Level, score.Trend, score.ComputedAt,
	)
	if err != nil {
		return errors.NewDatabaseInsertFailedError(err)
	}
	return nil
}

// SkillHistory returns the trainee's recent scores for a task, newest first.
func (s *Store) SkillHistory(ctx context.Context, traineeID, task string, limit int) ([]*models.SkillScore, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, trainee_id, task, overall_score, metric_scores,
		       level, trend, computed_at
		FROM skill_scores
		WHERE trainee_id = $1 AND task = $2
		ORDER BY computed_at DESC
		LIMIT $3`, traineeID, task, limit)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("skill_history", err)
	}
	defer rows.Close()

	var scores []*models.SkillScore
	for rows.Next() {
		var score models.SkillScore
		var metricScores []byte
		err := rows.Scan(&score.SessionID, &score.TraineeID, &score.Task,
			&score.OverallScore, &metricScores, &score.Level, &score.Trend,
			&score.ComputedAt,
		)
		if err != nil {
			return nil, errors.NewQueryExecutionFailedError("skill_history", err)
		}
		if len(metricScores) > 0 {
			if err := json.Unmarshal(metricScores, &score.MetricScores); err != nil {
				return nil, errors.NewQueryExecutionFailedError("skill_history", err)
			}
		}
		scores = append(scores, &score)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewQueryExecutionFailedError("skill_history", err)
	}
	return scores, nil
}

// SkillScoreBySession loads the graded outcome of one session.
func (s *Store) SkillScoreBySession(ctx context.Context, sessionID string) (*models.SkillScore, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT session_id, trainee_id, task, overall_score, metric_scores,
		       level, trend, computed_at
		FROM skill_scores
		WHERE session_id = $1`, sessionID)

	var score models.SkillScore
	var metricScores []byte
	err := row.Scan(&score.SessionID, &score.TraineeID, &score.Task,
		&score.OverallScore, &metricScores, &score.Level, &score.Trend,
		&score.ComputedAt,
	)
	if err == sql.ErrNoRows {
		return nil, errors.NewSkillScoreNotFoundError(sessionID)
	}
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("skill_score_by_session", err)
	}
	if len(metricScores) > 0 {
		if err := json.Unmarshal(metricScores, &score.MetricScores); err != nil {
			return nil, errors.NewQueryExecutionFailedError("skill_score_by_session", err)
		}
	}
	return &score, nil
}

// Baselines loads the population statistics a task is scored against.
func (s *Store) Baselines(ctx context.Context, task string) ([]*models.Baseline, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT task, metric, expert_mean, expert_std, novice_mean, novice_std, updated_at
		FROM baselines
		WHERE task = $1
		ORDER BY metric`, task)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("baselines", err)
	}
	defer rows.Close()

	var baselines []*models.Baseline
	for rows.Next() {
		var baseline models.Baseline
		err := rows.Scan(&baseline.Task, &baseline.Metric,
			&baseline.ExpertMean, &baseline.ExpertStd,
			&baseline.NoviceMean, &baseline.NoviceStd, &baseline.UpdatedAt,
		)
		if err != nil {
			return nil, errors.NewQueryExecutionFailedError("baselines", err)
		}
		baselines = append(baselines, &baseline)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewQueryExecutionFailedError("baselines", err)
	}
	if len(baselines) == 0 {
		return nil, errors.NewBaselineNotFoundError(task)
	}
	return baselines, nil
}

// UpsertBaseline seeds or refreshes one baseline row.
func (s *Store) UpsertBaseline(ctx context.Context, baseline *models.Baseline) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO baselines (task, metric, expert_mean, expert_std,
		       novice_mean, novice_std, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (task, metric) DO UPDATE SET
		       expert_mean = EXCLUDED.expert_mean,
		       expert_std = EXCLUDED.expert_std,
		       novice_mean = EXCLUDED.novice_mean,
		       novice_std = EXCLUDED.novice_std,
		       updated_at = EXCLUDED.updated_at`,
		baseline.Task, baseline.Metric, baseline.ExpertMean, baseline.ExpertStd,
		baseline.NoviceMean, baseline.NoviceStd, baseline.UpdatedAt,
	)
	if err != nil {
		return errors.NewDatabaseInsertFailedError(err)
	}
	return nil
}
