package session

import (
	"context"
	"fmt"
)

// Schema statements applied at startup. Idempotent so the daemon can run
// against a fresh or existing database.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS trainees (
		id           TEXT PRIMARY KEY,
		email        TEXT UNIQUE NOT NULL,
		name         TEXT NOT NULL,
		handedness   TEXT NOT NULL DEFAULT 'right',
		experience   TEXT NOT NULL DEFAULT 'novice',
		status       TEXT NOT NULL DEFAULT 'active',
		created_at   TIMESTAMPTZ NOT NULL,
		updated_at   TIMESTAMPTZ NOT NULL,
		last_session TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS trajectories (
		id          TEXT PRIMARY KEY,
		task        TEXT NOT NULL,
		gesture     TEXT NOT NULL DEFAULT '',
		manipulator TEXT NOT NULL,
		source_file TEXT NOT NULL,
		frames      INTEGER NOT NULL,
		duration_ms BIGINT NOT NULL,
		rate        DOUBLE PRECISION NOT NULL,
		payload     JSONB NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS training_sessions (
		id            TEXT PRIMARY KEY,
		trainee_id    TEXT NOT NULL REFERENCES trainees(id),
		task          TEXT NOT NULL,
		trajectory_id TEXT NOT NULL DEFAULT '',
		mode          TEXT NOT NULL,
		manipulator   TEXT NOT NULL DEFAULT 'master_left',
		state         TEXT NOT NULL,
		fault_reason  TEXT NOT NULL DEFAULT '',
		sample_count  BIGINT NOT NULL DEFAULT 0,
		started_at    TIMESTAMPTZ,
		ended_at      TIMESTAMPTZ,
		created_at    TIMESTAMPTZ NOT NULL,
		updated_at    TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_trainee ON training_sessions(trainee_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS session_samples (
		session_id TEXT NOT NULL REFERENCES training_sessions(id),
		seq        BIGINT NOT NULL,
		elapsed_ms DOUBLE PRECISION NOT NULL,
		px DOUBLE PRECISION NOT NULL, py DOUBLE PRECISION NOT NULL, pz DOUBLE PRECISION NOT NULL,
		vx DOUBLE PRECISION NOT NULL, vy DOUBLE PRECISION NOT NULL, vz DOUBLE PRECISION NOT NULL,
		fx DOUBLE PRECISION NOT NULL, fy DOUBLE PRECISION NOT NULL, fz DOUBLE PRECISION NOT NULL,
		gripper DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (session_id, seq)
	)`,
	`CREATE TABLE IF NOT EXISTS metric_reports (
		session_id          TEXT NOT NULL REFERENCES training_sessions(id),
		task                TEXT NOT NULL,
		gesture             TEXT NOT NULL DEFAULT '',
		window_start        TIMESTAMPTZ NOT NULL,
		window_end          TIMESTAMPTZ NOT NULL,
		sample_count        INTEGER NOT NULL,
		sparc               DOUBLE PRECISION NOT NULL,
		ldlj                DOUBLE PRECISION NOT NULL,
		path_efficiency     DOUBLE PRECISION NOT NULL,
		reference_deviation DOUBLE PRECISION NOT NULL,
		force_cv            DOUBLE PRECISION NOT NULL,
		force_reversals     INTEGER NOT NULL,
		high_freq_ratio     DOUBLE PRECISION NOT NULL,
		completion_time_ms  BIGINT NOT NULL,
		path_length         DOUBLE PRECISION NOT NULL,
		mean_speed          DOUBLE PRECISION NOT NULL,
		peak_speed          DOUBLE PRECISION NOT NULL,
		speed_peaks         INTEGER NOT NULL,
		computed_at         TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (session_id, gesture)
	)`,
	`CREATE TABLE IF NOT EXISTS skill_scores (
		session_id    TEXT PRIMARY KEY REFERENCES training_sessions(id),
		trainee_id    TEXT NOT NULL,
		task          TEXT NOT NULL,
		overall_score DOUBLE PRECISION NOT NULL,
		metric_scores JSONB NOT NULL,
		level         TEXT NOT NULL,
		trend         TEXT NOT NULL DEFAULT '',
		computed_at   TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS baselines (
		task        TEXT NOT NULL,
		metric      TEXT NOT NULL,
		expert_mean DOUBLE PRECISION NOT NULL,
		expert_std  DOUBLE PRECISION NOT NULL,
		novice_mean DOUBLE PRECISION NOT NULL,
		novice_std  DOUBLE PRECISION NOT NULL,
		updated_at  TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (task, metric)
	)`,
}

// Migrate applies the schema. Safe to call on every startup.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
