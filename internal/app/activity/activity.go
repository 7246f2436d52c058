/*
Package activity records the durable, human-readable audit trail of a
collaboration session and republishes each entry to the room it belongs to.

This file defines the Activity and DocumentDelta records together with the
boundary interfaces toward the persistence store and the broadcast layer.
*/
package activity

import (
	"context"
	"encoding/json"
	"time"
)

// Type classifies an activity feed entry.
type Type string

const (
	TypeJoin       Type = "join"
	TypeLeave      Type = "leave"
	TypeEdit       Type = "edit"
	TypeComment    Type = "comment"
	TypeWhiteboard Type = "whiteboard"
	TypeAnnotation Type = "annotation"
)

// Activity is a persisted audit entry describing a state-changing event in a
// room. Records are append-only and never mutated.
type Activity struct {
	ID          string         `json:"id"`
	RoomID      string         `json:"roomId"`
	UserID      string         `json:"userId"`
	Type        Type           `json:"type"`
	Description string         `json:"description"`
	Timestamp   time.Time      `json:"timestamp"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// DocumentDelta is an accepted document change, persisted keyed by
// (room, subject, version).
type DocumentDelta struct {
	RoomID    string          `json:"roomId"`
	SubjectID string          `json:"subjectId"`
	Version   uint64          `json:"version"`
	Changes   json.RawMessage `json:"changes"`
}

// Store abstracts the persistence layer consumed by the Logger.
type Store interface {
	AppendActivity(ctx context.Context, act Activity) error
	AppendDocumentDelta(ctx context.Context, delta DocumentDelta) error
	RecentActivities(ctx context.Context, roomID string, limit int) ([]Activity, error)
}

// Publisher delivers a recorded activity to every current occupant of its
// room, including the user that triggered it.
type Publisher interface {
	PublishActivity(act Activity)
}
