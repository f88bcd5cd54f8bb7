// internal/session/recorder.go
package session

import (
	"context"
	"sync"
	"time"

	"haptic-trainer/internal/common/logger"
	"haptic-trainer/internal/common/metrics"
	"haptic-trainer/internal/device"
)

// RecorderConfig tunes how servo samples are persisted.
type RecorderConfig struct {
	KeepEvery     int           // persist every Nth sample
	BatchSize     int           // flush when this many samples are buffered
	FlushInterval time.Duration // flush at least this often
}

// DefaultRecorderConfig keeps a 200 Hz trace from a 1 kHz servo loop and
// flushes about once a second.
func DefaultRecorderConfig() RecorderConfig {
	return RecorderConfig{
		KeepEvery:     5,
		BatchSize:     200,
		FlushInterval: time.Second,
	}
}

// Recorder drains a sampler subscription, decimates it, and writes batches
// to the store. Flush failures drop the batch rather than stall the drain;
// the servo path must never back up behind the database.
type Recorder struct {
	store  *Store
	log    logger.Logger
	config RecorderConfig

	mu       sync.Mutex
	recorded uint64
	dropped  uint64
}

// NewRecorder creates a recorder writing through the given store.
func NewRecorder(store *Store, log logger.Logger, config RecorderConfig) *Recorder {
	if config.KeepEvery < 1 {
		config.KeepEvery = 1
	}
	if config.BatchSize < 1 {
		config.BatchSize = 200
	}
	if config.FlushInterval <= 0 {
		config.FlushInterval = time.Second
	}
	return &Recorder{store: store, log: log, config: config}
}

// Recorded returns how many samples have been persisted.
func (r *Recorder) Recorded() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recorded
}

// Dropped returns how many samples were lost to failed flushes.
func (r *Recorder) Dropped() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// Run consumes the channel until it closes or ctx is cancelled, then flushes
// whatever is buffered. The channel is expected to come from a sampler
// subscription bound to the given session.
func (r *Recorder) Run(ctx context.Context, sessionID string, samples <-chan device.Sample) error {
	batch := make([]device.Sample, 0, r.config.BatchSize)
	ticker := time.NewTicker(r.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case sample, ok := <-samples:
			if !ok {
				r.flush(ctx, sessionID, batch)
				return nil
			}
			if sample.Seq%uint64(r.config.KeepEvery) != 0 {
				continue
			}
			batch = append(batch, sample)
			if len(batch) >= r.config.BatchSize {
				r.flush(ctx, sessionID, batch)
				batch = batch[:0]
			}

		case <-ticker.C:
			if len(batch) > 0 {
				r.flush(ctx, sessionID, batch)
				batch = batch[:0]
			}

		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			r.flush(flushCtx, sessionID, batch)
			cancel()
			return ctx.Err()
		}
	}
}

func (r *Recorder) flush(ctx context.Context, sessionID string, batch []device.Sample) {
	if len(batch) == 0 {
		return
	}
	if err := r.store.InsertSampleBatch(ctx, sessionID, batch); err != nil {
		r.mu.Lock()
		r.dropped += uint64(len(batch))
		r.mu.Unlock()
		r.log.Error("Failed to flush sample batch", map[string]interface{}{
			"sessionId": sessionID,
			"samples":   len(batch),
			"error":     err.Error(),
		})
		return
	}
	if err := r.store.AddSampleCount(ctx, sessionID, len(batch)); err != nil {
		r.log.Warn("Failed to bump sample count", map[string]interface{}{
			"sessionId": sessionID,
			"error":     err.Error(),
		})
	}
	metrics.SamplesRecorded.Add(float64(len(batch)))
	r.mu.Lock()
	r.recorded += uint64(len(batch))
	r.mu.Unlock()
}
