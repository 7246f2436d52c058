/*
Package activity records the durable audit trail of a collaboration session.

This file implements the PostgreSQL-backed Store on top of a pgx connection
pool. Activity appends are idempotent on the record id.
*/
package activity

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"collabhub/internal/app/db"
)

// PGStore persists activities and document deltas in PostgreSQL.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore returns a Store backed by the given connection pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// AppendActivity inserts a single activity record. Re-inserting an id that is
// already present is treated as success, so retried appends stay idempotent.
func (s *PGStore) AppendActivity(ctx context.Context, act Activity) error {
	var metadata []byte
	if act.Metadata != nil {
		var err error
		metadata, err = json.Marshal(act.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal activity metadata: %w", err)
		}
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO activities (id, room_id, user_id, type, description, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		act.ID, act.RoomID, act.UserID, string(act.Type), act.Description, metadata, act.Timestamp,
	)

	if db.IsUniqueViolation(err) {
		return nil
	}

	return err
}

// AppendDocumentDelta inserts an accepted document change keyed by
// (room, subject, version).
func (s *PGStore) AppendDocumentDelta(ctx context.Context, delta DocumentDelta) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO document_deltas (room_id, subject_id, version, changes)
		 VALUES ($1, $2, $3, $4)`,
		delta.RoomID, delta.SubjectID, delta.Version, []byte(delta.Changes),
	)

	if db.IsUniqueViolation(err) {
		return nil
	}

	return err
}

// RecentActivities returns up to limit activity records for the room, newest first.
func (s *PGStore) RecentActivities(ctx context.Context, roomID string, limit int) ([]Activity, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, room_id, user_id, type, description, metadata, created_at
		 FROM activities
		 WHERE room_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2`,
		roomID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	activities := make([]Activity, 0, limit)

	for rows.Next() {
		var act Activity
		var actType string
		var metadata []byte

		if err := rows.Scan(&act.ID, &act.RoomID, &act.UserID, &actType, &act.Description, &metadata, &act.Timestamp); err != nil {
			return nil, err
		}

		act.Type = Type(actType)

		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &act.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal activity metadata for %s: %w", act.ID, err)
			}
		}

		activities = append(activities, act)
	}

	return activities, rows.Err()
}
