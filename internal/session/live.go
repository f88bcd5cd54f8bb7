// internal/session/live.go
package session

import (
	"context"
	"encoding/json"
	"time"

	"haptic-trainer/internal/common/errors"
	"haptic-trainer/internal/models"

	"github.com/redis/go-redis/v9"
)

const defaultLiveTTL = 30 * time.Second

// Live publishes the in-flight session snapshot to Redis so API and stream
// consumers can read it without touching the servo path.
type Live struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewLive creates a live-state publisher. TTL <= 0 falls back to the default,
// sized so a crashed daemon's snapshot ages out on its own.
func NewLive(client *redis.Client, ttl time.Duration) *Live {
	if ttl <= 0 {
		ttl = defaultLiveTTL
	}
	return &Live{redis: client, ttl: ttl}
}

func liveKey(sessionID string) string {
	return "session:live:" + sessionID
}

// Publish overwrites the session's live snapshot.
func (l *Live) Publish(ctx context.Context, snapshot *models.LiveSession) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return errors.NewCacheUnavailableError(err)
	}
	if err := l.redis.Set(ctx, liveKey(snapshot.SessionID), data, l.ttl).Err(); err != nil {
		return errors.NewCacheUnavailableError(err)
	}
	return nil
}

// Get reads the session's live snapshot. A missing key means the session is
// not currently publishing.
func (l *Live) Get(ctx context.Context, sessionID string) (*models.LiveSession, error) {
	val, err := l.redis.Get(ctx, liveKey(sessionID)).Result()
	if err == redis.Nil {
		return nil, errors.NewSessionNotFoundError(sessionID)
	}
	if err != nil {
		return nil, errors.NewCacheUnavailableError(err)
	}

	var snapshot models.LiveSession
	if err := json.Unmarshal([]byte(val), &snapshot); err != nil {
		return nil, errors.NewCacheUnavailableError(err)
	}
	return &snapshot, nil
}

// Clear removes the snapshot when a session leaves the running state.
func (l *Live) Clear(ctx context.Context, sessionID string) error {
	if err := l.redis.Del(ctx, liveKey(sessionID)).Err(); err != nil {
		return errors.NewCacheUnavailableError(err)
	}
	return nil
}
