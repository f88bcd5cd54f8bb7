// internal/session/live_test.go
package session

import (
	"context"
	"testing"
	"time"

	"haptic-trainer/internal/common/errors"
	"haptic-trainer/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

func createTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func createLiveSnapshot(sessionID string) *models.LiveSession {
	return &models.LiveSession{
		SessionID:     sessionID,
		State:         "running",
		Progress:      0.42,
		TrackingErrMm: 6.8,
		Stiffness:     0.31,
		Samples:       12400,
		PathLength:    215.7,
		MeanSpeed:     18.2,
		UpdatedAt:     time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
	}
}

// ==========================
// Live Snapshot Tests
// ==========================

func TestLive_PublishAndGet(t *testing.T) {
	client, _ := createTestRedis(t)
	live := NewLive(client, time.Minute)
	ctx := context.Background()

	require.NoError(t, live.Publish(ctx, createLiveSnapshot("sess-1")))

	got, err := live.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "sess-1", got.SessionID)
	assert.Equal(t, 0.42, got.Progress)
	assert.Equal(t, 6.8, got.TrackingErrMm)
	assert.Equal(t, uint64(12400), got.Samples)
}

func TestLive_GetMissing(t *testing.T) {
	client, _ := createTestRedis(t)
	live := NewLive(client, time.Minute)

	_, err := live.Get(context.Background(), "nobody")
	assertErrorCode(t, err, errors.ErrCodeSessionNotFound)
}

func TestLive_SnapshotExpires(t *testing.T) {
	client, mr := createTestRedis(t)
	live := NewLive(client, 10*time.Second)
	ctx := context.Background()

	require.NoError(t, live.Publish(ctx, createLiveSnapshot("sess-1")))

	// A daemon crash stops the publisher; the snapshot must age out.
	mr.FastForward(11 * time.Second)

	_, err := live.Get(ctx, "sess-1")
	assertErrorCode(t, err, errors.ErrCodeSessionNotFound)
}

func TestLive_Clear(t *testing.T) {
	client, _ := createTestRedis(t)
	live := NewLive(client, time.Minute)
	ctx := context.Background()

	require.NoError(t, live.Publish(ctx, createLiveSnapshot("sess-1")))
	require.NoError(t, live.Clear(ctx, "sess-1"))

	_, err := live.Get(ctx, "sess-1")
	assertErrorCode(t, err, errors.ErrCodeSessionNotFound)
}

func TestLive_PublishOverwrites(t *testing.T) {
	client, _ := createTestRedis(t)
	live := NewLive(client, time.Minute)
	ctx := context.Background()

	first := createLiveSnapshot("sess-1")
	require.NoError(t, live.Publish(ctx, first))

	second := createLiveSnapshot("sess-1")
	second.Progress = 0.9
	second.Samples = 30000
	require.NoError(t, live.Publish(ctx, second))

	got, err := live.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, 0.9, got.Progress)
	assert.Equal(t, uint64(30000), got.Samples)
}
