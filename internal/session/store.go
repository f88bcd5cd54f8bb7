// internal/session/store.go
package session

import (
	"context"
	"database/sql"
	"time"

	"haptic-trainer/internal/common/errors"
	"haptic-trainer/internal/device"
	"haptic-trainer/internal/models"
)

// Store persists sessions, samples, reports, and scores in PostgreSQL.
type Store struct {
	db *sql.DB
}

// NewStore creates a store on an open database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Create inserts a new training session row.
func (s *Store) Create(ctx context.Context, session *models.TrainingSession) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO training_sessions (id, trainee_id, task, trajectory_id, mode,
		       manipulator, state, fault_reason, sample_count,
		       started_at, ended_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		session.ID, session.TraineeID, session.Task, session.TrajectoryID,
		session.Mode, session.Manipulator, string(session.State),
		session.FaultReason, session.SampleCount,
		session.StartedAt, session.EndedAt, session.CreatedAt, session.UpdatedAt,
	)
	if err != nil {
		return errors.NewDatabaseInsertFailedError(err)
	}
	return nil
}

// FindByID loads one session by ID.
func (s *Store) FindByID(ctx context.Context, sessionID string) (*models.TrainingSession, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, trainee_id, task, trajectory_id, mode, manipulator, state,
		       fault_reason, sample_count, started_at, ended_at, created_at, updated_at
		FROM training_sessions
		WHERE id = $1`, sessionID)

	session, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewSessionNotFoundError(sessionID)
	}
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("session_by_id", err)
	}
	return session, nil
}

// FindByTrainee returns the trainee's most recent sessions, newest first.
func (s *Store) FindByTrainee(ctx context.Context, traineeID string, limit int) ([]*models.TrainingSession, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, trainee_id, task, trajectory_id, mode, manipulator, state,
		       fault_reason, sample_count, started_at, ended_at, created_at, updated_at
		FROM training_sessions
		WHERE trainee_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, traineeID, limit)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("sessions_by_trainee", err)
	}
	defer rows.Close()

	return collectSessions(rows)
}

// FindActive returns sessions that are created or running.
func (s *Store) FindActive(ctx context.Context) ([]*models.TrainingSession, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, trainee_id, task, trajectory_id, mode, manipulator, state,
		       fault_reason, sample_count, started_at, ended_at, created_at, updated_at
		FROM training_sessions
		WHERE state IN ('created', 'running')
		ORDER BY created_at`)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("active_sessions", err)
	}
	defer rows.Close()

	return collectSessions(rows)
}

// Update writes the mutable session fields back.
func (s *Store) Update(ctx context.Context, session *models.TrainingSession) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE training_sessions
		SET state = $2, fault_reason = $3, sample_count = $4,
		    started_at = $5, ended_at = $6, updated_at = $7
		WHERE id = $1`,
		session.ID, string(session.State), session.FaultReason,
		session.SampleCount, session.StartedAt, session.EndedAt, session.UpdatedAt,
	)
	if err != nil {
		return errors.NewQueryExecutionFailedError("update_session", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return errors.NewQueryExecutionFailedError("update_session", err)
	}
	if affected == 0 {
		return errors.NewSessionNotFoundError(session.ID)
	}
	return nil
}

// AddSampleCount bumps the persisted sample counter after a batch insert.
func (s *Store) AddSampleCount(ctx context.Context, sessionID string, n int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE training_sessions
		SET sample_count = sample_count + $2, updated_at = NOW()
		WHERE id = $1`, sessionID, n)
	if err != nil {
		return errors.NewQueryExecutionFailedError("add_sample_count", err)
	}
	return nil
}

// InsertSampleBatch writes one recorder batch inside a transaction.
func (s *Store) InsertSampleBatch(ctx context.Context, sessionID string, samples []device.Sample) error {
	if len(samples) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewDatabaseInsertFailedError(err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO session_samples (session_id, seq, elapsed_ms,
		       px, py, pz, vx, vy, vz, fx, fy, fz, gripper)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`)
	if err != nil {
		tx.Rollback()
		return errors.NewDatabaseInsertFailedError(err)
	}
	defer stmt.Close()

	for _, sample := range samples {
		elapsedMs := float64(sample.Elapsed) / float64(time.Millisecond)
		_, err = stmt.ExecContext(ctx, sessionID, sample.Seq, elapsedMs,
			sample.Position[0], sample.Position[1], sample.Position[2],
			sample.Velocity[0], sample.Velocity[1], sample.Velocity[2],
			sample.Force[0], sample.Force[1], sample.Force[2],
			sample.Gripper,
		)
		if err != nil {
			tx.Rollback()
			return errors.NewDatabaseInsertFailedError(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.NewDatabaseInsertFailedError(err)
	}
	return nil
}

// SamplesBySession loads the recorded samples in tick order. A session with
// no recorded samples is an error so metric workers can raise it over BPMN.
func (s *Store) SamplesBySession(ctx context.Context, sessionID string) ([]device.Sample, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, elapsed_ms, px, py, pz, vx, vy, vz, fx, fy, fz, gripper
		FROM session_samples
		WHERE session_id = $1
		ORDER BY seq`, sessionID)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("samples_by_session", err)
	}
	defer rows.Close()

	var samples []device.Sample
	for rows.Next() {
		var sm device.Sample
		var elapsedMs float64
		err := rows.Scan(&sm.Seq, &elapsedMs,
			&sm.Position[0], &sm.Position[1], &sm.Position[2],
			&sm.Velocity[0], &sm.Velocity[1], &sm.Velocity[2],
			&sm.Force[0], &sm.Force[1], &sm.Force[2],
			&sm.Gripper,
		)
		if err != nil {
			return nil, errors.NewQueryExecutionFailedError("samples_by_session", err)
		}
		sm.Elapsed = time.Duration(elapsedMs * float64(time.Millisecond))
		samples = append(samples, sm)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewQueryExecutionFailedError("samples_by_session", err)
	}
	if len(samples) == 0 {
		return nil, errors.NewSessionSamplesMissingError(sessionID)
	}
	return samples, nil
}

func scanSession(row *sql.Row) (*models.TrainingSession, error) {
	var session models.TrainingSession
	var state string
	var startedAt, endedAt sql.NullTime

	err := row.Scan(&session.ID, &session.TraineeID, &session.Task,
		&session.TrajectoryID, &session.Mode, &session.Manipulator, &state,
		&session.FaultReason, &session.SampleCount,
		&startedAt, &endedAt, &session.CreatedAt, &session.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	session.State = models.SessionState(state)
	if startedAt.Valid {
		t := startedAt.Time
		session.StartedAt = &t
	}
	if endedAt.Valid {
		t := endedAt.Time
		session.EndedAt = &t
	}
	return &session, nil
}

func collectSessions(rows *sql.Rows) ([]*models.TrainingSession, error) {
	var sessions []*models.TrainingSession
	for rows.Next() {
		var session models.TrainingSession
		var state string
		var startedAt, endedAt sql.NullTime

		err := rows.Scan(&session.ID, &session.TraineeID, &session.Task,
			&session.TrajectoryID, &session.Mode, &session.Manipulator, &state,
			&session.FaultReason, &session.SampleCount,
			&startedAt, &endedAt, &session.CreatedAt, &session.UpdatedAt,
		)
		if err != nil {
			return nil, errors.NewQueryExecutionFailedError("scan_session", err)
		}
		session.State = models.SessionState(state)
		if startedAt.Valid {
			t := startedAt.Time
			session.StartedAt = &t
		}
		if endedAt.Valid {
			t := endedAt.Time
			session.EndedAt = &t
		}
		sessions = append(sessions, &session)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewQueryExecutionFailedError("scan_session", err)
	}
	return sessions, nil
}
