// internal/session/trajectories.go
package session

import (
	"context"
	"database/sql"

	"haptic-trainer/internal/common/errors"
	"haptic-trainer/internal/models"
)

// CreateTrajectory stores reference trajectory metadata plus its JSON payload.
func (s *Store) CreateTrajectory(ctx context.Context, meta *models.TrajectoryMeta, payload []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trajectories (id, task, gesture, manipulator, source_file,
		       frames, duration_ms, rate, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
		       task = EXCLUDED.task,
		       gesture = EXCLUDED.gesture,
		       manipulator = EXCLUDED.manipulator,
		       source_file = EXCLUDED.source_file,
		       frames = EXCLUDED.frames,
		       duration_ms = EXCLUDED.duration_ms,
		       rate = EXCLUDED.rate,
		       payload = EXCLUDED.payload`,
		meta.ID, meta.Task, meta.Gesture, meta.Manipulator, meta.SourceFile,
		meta.Frames, meta.DurationMs, meta.Rate, payload, meta.CreatedAt,
	)
	if err != nil {
		return errors.NewDatabaseInsertFailedError(err)
	}
	return nil
}

// FindTrajectoryByID loads one trajectory with its payload.
func (s *Store) FindTrajectoryByID(ctx context.Context, trajectoryID string) (*models.TrajectoryMeta, []byte, error) {
	var meta models.TrajectoryMeta
	var payload []byte

	err := s.db.QueryRowContext(ctx, `
		SELECT id, task, gesture, manipulator, source_file, frames,
		       duration_ms, rate, payload, created_at
		FROM trajectories
		WHERE id = $1`, trajectoryID).Scan(
		&meta.ID, &meta.Task, &meta.Gesture, &meta.Manipulator, &meta.SourceFile,
		&meta.Frames, &meta.DurationMs, &meta.Rate, &payload, &meta.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil, errors.NewTrajectoryNotFoundError(trajectoryID)
	}
	if err != nil {
		return nil, nil, errors.NewQueryExecutionFailedError("trajectory_by_id", err)
	}
	return &meta, payload, nil
}

// FindTrajectoriesByTask lists trajectory metadata for a task, without payloads.
func (s *Store) FindTrajectoriesByTask(ctx context.Context, task string) ([]*models.TrajectoryMeta, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, task, gesture, manipulator, source_file, frames,
		       duration_ms, rate, created_at
		FROM trajectories
		WHERE task = $1
		ORDER BY id`, task)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("trajectories_by_task", err)
	}
	defer rows.Close()

	var metas []*models.TrajectoryMeta
	for rows.Next() {
		var meta models.TrajectoryMeta
		err := rows.Scan(&meta.ID, &meta.Task, &meta.Gesture, &meta.Manipulator,
			&meta.SourceFile, &meta.Frames, &meta.DurationMs, &meta.Rate,
			&meta.CreatedAt,
		)
		if err != nil {
			return nil, errors.NewQueryExecutionFailedError("trajectories_by_task", err)
		}
		metas = append(metas, &meta)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewQueryExecutionFailedError("trajectories_by_task", err)
	}
	return metas, nil
}
