package models

import (
	"context"
	"time"
)

// Trainee is a registered practitioner working through the curriculum.
type Trainee struct {
	ID          string                 `json:"id" db:"id"`
	Email       string                 `json:"email" db:"email"`
	Name        string                 `json:"name" db:"name"`
	Handedness  string                 `json:"handedness" db:"handedness"` // "left", "right"
	Experience  string                 `json:"experience" db:"experience"` // "novice", "intermediate", "expert"
	Status      string                 `json:"status" db:"status"`
	CreatedAt   time.Time              `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time              `json:"updatedAt" db:"updated_at"`
	LastSession *time.Time             `json:"lastSession,omitempty" db:"last_session"`
	Metadata    map[string]interface{} `json:"metadata,omitempty" db:"metadata"`
}

// TraineeRepository defines trainee data access.
type TraineeRepository interface {
	Create(ctx context.Context, trainee *Trainee) error
	FindByID(ctx context.Context, traineeID string) (*Trainee, error)
	FindByEmail(ctx context.Context, email string) (*Trainee, error)
	Update(ctx context.Context, trainee *Trainee) error
	TouchLastSession(ctx context.Context, traineeID string) error
}
