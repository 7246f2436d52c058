/*
Package activity records the durable audit trail of a collaboration session.

This file defines the Logger, which publishes each activity to its room
immediately and persists records through a background worker, so a slow or
failing store never blocks presence or broadcast latency. Failed writes are
logged and dropped; the in-memory view of connected peers stays authoritative.
*/
package activity

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"collabhub/internal/pkg/logx"
)

const (
	// jobQueueSize bounds the persistence backlog. When the queue is full,
	// further records are dropped from durable storage rather than blocking
	// the event path.
	jobQueueSize = 1024

	// persistTimeout bounds a single store write.
	persistTimeout = 5 * time.Second
)

// job is one pending persistence write: exactly one of the fields is set.
type job struct {
	activity *Activity
	delta    *DocumentDelta
}

// Logger is the activity recorder for the hub. Record and RecordDelta are
// fire-and-forget from the caller's perspective.
type Logger struct {
	store     Store
	publisher Publisher

	jobs chan job
	wg   sync.WaitGroup

	logger zerolog.Logger
}

// NewLogger constructs a Logger and starts its persistence worker.
func NewLogger(store Store, publisher Publisher) *Logger {
	l := &Logger{
		store:     store,
		publisher: publisher,
		jobs:      make(chan job, jobQueueSize),
		logger:    logx.Logger().With().Str("component", "ActivityLogger").Logger(),
	}

	l.wg.Add(1)
	go l.runPersistLoop()

	return l
}

// Record publishes the activity to every occupant of its room (including the
// triggering user) and queues it for persistence.
func (l *Logger) Record(act Activity) {
	l.publisher.PublishActivity(act)

	l.enqueue(job{activity: &act})
}

// RecordDelta queues an accepted document change for persistence. Deltas are
// not republished; the document-changed broadcast already happened.
func (l *Logger) RecordDelta(delta DocumentDelta) {
	l.enqueue(job{delta: &delta})
}

// GetRecent reads up to limit activities for the room from the store, newest
// first. Pure query, no side effects.
func (l *Logger) GetRecent(ctx context.Context, roomID string, limit int) ([]Activity, error) {
	return l.store.RecentActivities(ctx, roomID, limit)
}

// Close stops accepting new records, drains the pending queue, and waits for
// the persistence worker to finish.
func (l *Logger) Close() {
	close(l.jobs)
	l.wg.Wait()

	l.logger.Info().Msg("Activity logger stopped.")
}

func (l *Logger) enqueue(j job) {
	select {
	case l.jobs <- j:
	default:
		l.logger.Warn().
			Int("queue_len", len(l.jobs)).
			Msg("Persistence queue full, dropping record from durable storage.")
	}
}

// runPersistLoop consumes the job queue and writes records to the store.
// Store failures are logged and dropped, never retried or rolled back into
// the broadcast state.
func (l *Logger) runPersistLoop() {
	defer l.wg.Done()

	l.logger.Info().Msg("Persistence loop started.")

	for j := range l.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)

		switch {
		case j.activity != nil:
			if err := l.store.AppendActivity(ctx, *j.activity); err != nil {
				l.logger.Error().
					Err(err).
					Str("activity_id", j.activity.ID).
					Str("room_id", j.activity.RoomID).
					Msg("Failed to persist activity.")
			}

		case j.delta != nil:
			if err := l.store.AppendDocumentDelta(ctx, *j.delta); err != nil {
				l.logger.Error().
					Err(err).
					Str("room_id", j.delta.RoomID).
					Uint64("version", j.delta.Version).
					Msg("Failed to persist document delta.")
			}
		}

		cancel()
	}

	l.logger.Info().Msg("Persistence loop stopped.")
}
