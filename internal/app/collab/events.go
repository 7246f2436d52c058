/*
Package collab contains the core logic of the real-time collaboration hub.

This file defines the wire-level event envelope exchanged with clients over the
WebSocket transport, the event type constants for both directions, and the typed
payload structures carried inside the envelope.
*/
package collab

import (
	"encoding/json"
	"time"

	"collabhub/internal/app/activity"
	"collabhub/internal/app/user"
	"collabhub/internal/pkg/randx"
)

// EventType identifies the kind of an inbound or outbound event.
type EventType string

// Inbound event types (client -> hub).
const (
	EventJoinRoom         EventType = "join-room"
	EventLeaveRoom        EventType = "leave-room"
	EventCursorMove       EventType = "cursor-move"
	EventElementSelect    EventType = "element-select"
	EventDocumentChange   EventType = "document-change"
	EventWhiteboardStroke EventType = "whiteboard-stroke"
	EventWhiteboardShape  EventType = "whiteboard-shape"
	EventAddAnnotation    EventType = "add-annotation"
	EventRemoveAnnotation EventType = "remove-annotation"
	EventRequestSync      EventType = "request-sync"
)

// Outbound event types (hub -> client).
const (
	EventRoomJoined        EventType = "room-joined"
	EventUserJoined        EventType = "user-joined"
	EventUserLeft          EventType = "user-left"
	EventCursorMoved       EventType = "cursor-moved"
	EventElementSelected   EventType = "element-selected"
	EventDocumentChanged   EventType = "document-changed"
	EventDocumentConflict  EventType = "document-conflict"
	EventStrokeAdded       EventType = "whiteboard-stroke-added"
	EventShapeAdded        EventType = "whiteboard-shape-added"
	EventAnnotationAdded   EventType = "annotation-added"
	EventAnnotationRemoved EventType = "annotation-removed"
	EventSyncResponse      EventType = "sync-response"
	EventActivity          EventType = "activity"
)

// Event is the envelope for every message exchanged with clients.
// Inbound events carry only Type and Payload; outbound events are stamped with
// an id and a millisecond timestamp by the hub.
type Event struct {
	ID        string          `json:"id,omitempty"`
	Type      EventType       `json:"type"`
	RoomID    string          `json:"roomId,omitempty"`
	Timestamp int64           `json:"timestamp,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// NewEvent builds an outbound Event with a fresh id and timestamp, marshaling
// the given payload into the envelope.
func NewEvent(eventType EventType, roomID string, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}

	return Event{
		ID:        randx.EventID(),
		Type:      eventType,
		RoomID:    roomID,
		Timestamp: time.Now().UnixMilli(),
		Payload:   raw,
	}, nil
}

// Inbound payloads.

type JoinRoomPayload struct {
	RoomID    string    `json:"roomId"`
	SubjectID string    `json:"subjectId"`
	User      user.User `json:"user"`
}

type LeaveRoomPayload struct {
	RoomID string `json:"roomId"`
}

type CursorMovePayload struct {
	RoomID string        `json:"roomId"`
	Cursor user.Position `json:"cursor"`
}

type ElementSelectPayload struct {
	RoomID    string `json:"roomId"`
	ElementID string `json:"elementId"`
}

type DocumentChangePayload struct {
	RoomID  string          `json:"roomId"`
	Changes json.RawMessage `json:"changes"`
	Version uint64          `json:"version"`
}

type WhiteboardStrokePayload struct {
	RoomID string `json:"roomId"`
	Stroke Stroke `json:"stroke"`
}

type WhiteboardShapePayload struct {
	RoomID string `json:"roomId"`
	Shape  Shape  `json:"shape"`
}

type AddAnnotationPayload struct {
	RoomID     string     `json:"roomId"`
	Annotation Annotation `json:"annotation"`
}

type RemoveAnnotationPayload struct {
	RoomID       string `json:"roomId"`
	AnnotationID string `json:"annotationId"`
}

type RequestSyncPayload struct {
	RoomID string `json:"roomId"`
}

// Outbound payloads.

// RoomSnapshot is the full current room state, sent to a joiner and on sync.
type RoomSnapshot struct {
	Users           []user.User           `json:"users"`
	Whiteboard      Whiteboard            `json:"whiteboard"`
	Annotations     map[string]Annotation `json:"annotations"`
	DocumentVersion uint64                `json:"documentVersion"`
}

type RoomJoinedPayload struct {
	RoomID string    `json:"roomId"`
	User   user.User `json:"user"`
	RoomSnapshot
}

type UserJoinedPayload struct {
	User user.User `json:"user"`
}

type UserLeftPayload struct {
	UserID string `json:"userId"`
}

type CursorMovedPayload struct {
	UserID string        `json:"userId"`
	Cursor user.Position `json:"cursor"`
}

type ElementSelectedPayload struct {
	UserID    string `json:"userId"`
	ElementID string `json:"elementId"`
}

type DocumentChangedPayload struct {
	UserID  string          `json:"userId"`
	Changes json.RawMessage `json:"changes"`
	Version uint64          `json:"version"`
}

type DocumentConflictPayload struct {
	CurrentVersion uint64          `json:"currentVersion"`
	Changes        json.RawMessage `json:"changes"`
}

type StrokeAddedPayload struct {
	Stroke Stroke `json:"stroke"`
}

type ShapeAddedPayload struct {
	Shape Shape `json:"shape"`
}

type AnnotationAddedPayload struct {
	Annotation Annotation `json:"annotation"`
}

type AnnotationRemovedPayload struct {
	AnnotationID string `json:"annotationId"`
}

// ActivityPayload republishes a persisted activity record to room occupants.
type ActivityPayload struct {
	Activity activity.Activity `json:"activity"`
}
