// internal/session/trainees.go
package session

import (
	"context"
	"database/sql"

	"haptic-trainer/internal/common/errors"
	"haptic-trainer/internal/models"
)

// CreateTrainee inserts a new trainee row.
func (s *Store) CreateTrainee(ctx context.Context, trainee *models.Trainee) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trainees (id, email, name, handedness, experience, status,
		       created_at, updated_at, last_session)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		trainee.ID, trainee.Email, trainee.Name, trainee.Handedness,
		trainee.Experience, trainee.Status, trainee.CreatedAt, trainee.UpdatedAt,
		trainee.LastSession,
	)
	if err != nil {
		return errors.NewDatabaseInsertFailedError(err)
	}
	return nil
}

// FindTraineeByID loads one trainee.
func (s *Store) FindTraineeByID(ctx context.Context, traineeID string) (*models.Trainee, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, email, name, handedness, experience, status,
		       created_at, updated_at, last_session
		FROM trainees
		WHERE id = $1`, traineeID)

	trainee, err := scanTrainee(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewResourceNotFoundError("trainee", traineeID)
	}
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("trainee_by_id", err)
	}
	return trainee, nil
}

// FindTraineeByEmail loads one trainee by login email.
func (s *Store) FindTraineeByEmail(ctx context.Context, email string) (*models.Trainee, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, email, name, handedness, experience, status,
		       created_at, updated_at, last_session
		FROM trainees
		WHERE email = $1`, email)

	trainee, err := scanTrainee(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewResourceNotFoundError("trainee", email)
	}
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("trainee_by_email", err)
	}
	return trainee, nil
}

// UpdateTrainee writes the mutable trainee fields back.
func (s *Store) UpdateTrainee(ctx context.Context, trainee *models.Trainee) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE trainees
		SET email = $2, name = $3, handedness = $4, experience = $5,
		    status = $6, updated_at = $7
		WHERE id = $1`,
		trainee.ID, trainee.Email, trainee.Name, trainee.Handedness,
		trainee.Experience, trainee.Status, trainee.UpdatedAt,
	)
	if err != nil {
		return errors.NewQueryExecutionFailedError("update_trainee", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return errors.NewQueryExecutionFailedError("update_trainee", err)
	}
	if affected == 0 {
		return errors.NewResourceNotFoundError("trainee", trainee.ID)
	}
	return nil
}

// TouchTraineeLastSession stamps the trainee's most recent session time.
func (s *Store) TouchTraineeLastSession(ctx context.Context, traineeID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE trainees
		SET last_session = NOW(), updated_at = NOW()
		WHERE id = $1`, traineeID)
	if err != nil {
		return errors.NewQueryExecutionFailedError("touch_last_session", err)
	}
	return nil
}

func scanTrainee(row *sql.Row) (*models.Trainee, error) {
	var trainee models.Trainee
	var lastSession sql.NullTime

	err := row.Scan(&trainee.ID, &trainee.Email, &trainee.Name,
		&trainee.Handedness, &trainee.Experience, &trainee.Status,
		&trainee.CreatedAt, &trainee.UpdatedAt, &lastSession,
	)
	if err != nil {
		return nil, err
	}
	if lastSession.Valid {
		t := lastSession.Time
		trainee.LastSession = &t
	}
	return &trainee, nil
}

// traineeStore adapts Store to models.TraineeRepository.
type traineeStore struct {
	store *Store
}

// Trainees returns the store's trainee repository view.
func (s *Store) Trainees() models.TraineeRepository {
	return traineeStore{store: s}
}

func (r traineeStore) Create(ctx context.Context, trainee *models.Trainee) error {
	return r.store.CreateTrainee(ctx, trainee)
}

func (r traineeStore) FindByID(ctx context.Context, traineeID string) (*models.Trainee, error) {
	return r.store.FindTraineeByID(ctx, traineeID)
}

func (r traineeStore) FindByEmail(ctx context.Context, email string) (*models.Trainee, error) {
	return r.store.FindTraineeByEmail(ctx, email)
}

func (r traineeStore) Update(ctx context.Context, trainee *models.Trainee) error {
	return r.store.UpdateTrainee(ctx, trainee)
}

func (r traineeStore) TouchLastSession(ctx context.Context, traineeID string) error {
	return r.store.TouchTraineeLastSession(ctx, traineeID)
}
