/*
Package collab contains the core logic of the real-time collaboration hub.

This file defines the Room struct, the unit of a single collaborative session.
A Room owns its participants, whiteboard, annotations, and document version
counter for its whole lifetime; all mutation is serialized by the room's mutex,
so concurrent events against different rooms never contend with each other.
*/
package collab

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"collabhub/internal/app/user"
	"collabhub/internal/pkg/logx"
	"collabhub/internal/pkg/randx"
)

// Subscriber is an outbound-channel handle for one room occupant. It decouples
// the fan-out logic from the transport so rooms are testable without sockets.
type Subscriber interface {
	// ConnID returns the transport-level connection identifier.
	ConnID() string

	// Enqueue offers an event to the subscriber without blocking. It reports
	// false when the event was dropped (queue full or connection gone).
	Enqueue(ev Event) bool
}

// Room represents a single active collaboration session, scoped to one
// business subject.
type Room struct {
	// ID is the unique identifier of the room.
	ID string

	// SubjectID is the business entity being collaborated on.
	SubjectID string

	// mu serializes all access to the mutable session state below.
	mu sync.RWMutex

	// users maps connection id to the participant occupying it.
	users map[string]*user.User

	// subs maps connection id to the occupant's outbound handle.
	subs map[string]Subscriber

	// whiteboard holds the append-only stroke and shape lists.
	whiteboard Whiteboard

	// annotations is keyed by annotation id; last write wins on collision.
	annotations map[string]Annotation

	// documentVersion increases by exactly 1 per accepted document change.
	documentVersion uint64

	// structured logger with room context.
	logger zerolog.Logger
}

// NewRoom creates an empty Room for the given id and subject, with
// documentVersion 0.
func NewRoom(roomID, subjectID string) *Room {
	roomLogger := logx.Logger().With().
		Str("room_id", roomID).
		Str("subject_id", subjectID).
		Logger()

	return &Room{
		ID:          roomID,
		SubjectID:   subjectID,
		users:       make(map[string]*user.User),
		subs:        make(map[string]Subscriber),
		annotations: make(map[string]Annotation),
		logger:      roomLogger,
	}
}

// join registers the connection's participant and outbound handle, assigns a
// presence color from the fixed palette by join order, and returns the stored
// user together with a snapshot that already includes the joiner.
func (r *Room) join(sub Subscriber, u user.User) (user.User, RoomSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	connID := sub.ConnID()

	if u.ID == "" {
		u.ID = randx.EventID()
	}

	if existing, ok := r.users[connID]; ok {
		// The connection re-joined the same room; keep its color stable.
		u.Color = existing.Color
	} else {
		u.Color = colorForJoinOrder(len(r.users))
	}

	r.users[connID] = &u
	r.subs[connID] = sub

	r.logger.Info().
		Str("user_id", u.ID).
		Str("color", u.Color).
		Int("total_users", len(r.users)).
		Msg("User joined room.")

	return u, r.snapshotLocked()
}

// leave removes the connection's participant and outbound handle. It returns
// the removed user, the remaining occupancy, and whether anything was removed.
func (r *Room) leave(connID string) (user.User, int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[connID]
	if !ok {
		return user.User{}, len(r.users), false
	}

	delete(r.users, connID)
	delete(r.subs, connID)

	r.logger.Info().
		Str("user_id", u.ID).
		Int("total_users", len(r.users)).
		Msg("User left room.")

	return *u, len(r.users), true
}

// userByConn returns a copy of the participant bound to the connection.
func (r *Room) userByConn(connID string) (user.User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[connID]
	if !ok {
		return user.User{}, false
	}
	return *u, true
}

// hasConn reports whether the connection currently occupies this room.
func (r *Room) hasConn(connID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.users[connID]
	return ok
}

// setCursor updates the connection's live cursor position.
func (r *Room) setCursor(connID string, pos user.Position) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[connID]
	if !ok {
		return "", false
	}

	cursor := pos
	u.Cursor = &cursor
	return u.ID, true
}

// setActiveElement updates the connection's current element selection.
func (r *Room) setActiveElement(connID string, elementID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[connID]
	if !ok {
		return "", false
	}

	u.ActiveElementID = elementID
	return u.ID, true
}

// applyDocumentChange performs the optimistic version check. When the caller's
// version matches, the counter is incremented by exactly 1 and the new version
// is returned with accepted=true. On mismatch nothing changes and the current
// version is returned with accepted=false.
func (r *Room) applyDocumentChange(version uint64) (uint64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if version != r.documentVersion {
		return r.documentVersion, false
	}

	r.documentVersion++
	return r.documentVersion, true
}

// addStroke appends a stroke to the whiteboard, stamping missing id/timestamp.
func (r *Room) addStroke(s Stroke) Stroke {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s.ID == "" {
		s.ID = randx.EventID()
	}
	if s.Timestamp.IsZero() {
		s.Timestamp = time.Now()
	}

	r.whiteboard.Strokes = append(r.whiteboard.Strokes, s)
	return s
}

// addShape appends a shape to the whiteboard, stamping missing id/timestamp.
func (r *Room) addShape(s Shape) Shape {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s.ID == "" {
		s.ID = randx.EventID()
	}
	if s.Timestamp.IsZero() {
		s.Timestamp = time.Now()
	}

	r.whiteboard.Shapes = append(r.whiteboard.Shapes, s)
	return s
}

// putAnnotation inserts an annotation keyed by its id, overwriting on
// collision (last write wins).
func (r *Room) putAnnotation(a Annotation) Annotation {
	r.mu.Lock()
	defer r.mu.Unlock()

	if a.ID == "" {
		a.ID = randx.EventID()
	}
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now()
	}

	r.annotations[a.ID] = a
	return a
}

// deleteAnnotation removes an annotation by id, reporting whether it existed.
func (r *Room) deleteAnnotation(annotationID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.annotations[annotationID]; !ok {
		return false
	}

	delete(r.annotations, annotationID)
	return true
}

// snapshot returns the full current room state for room-joined/sync-response.
func (r *Room) snapshot() RoomSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.snapshotLocked()
}

// snapshotLocked copies the session state. Callers must hold r.mu.
func (r *Room) snapshotLocked() RoomSnapshot {
	users := make([]user.User, 0, len(r.users))
	for _, u := range r.users {
		users = append(users, *u)
	}

	annotations := make(map[string]Annotation, len(r.annotations))
	for id, a := range r.annotations {
		annotations[id] = a
	}

	wb := Whiteboard{
		Strokes: append([]Stroke(nil), r.whiteboard.Strokes...),
		Shapes:  append([]Shape(nil), r.whiteboard.Shapes...),
	}

	return RoomSnapshot{
		Users:           users,
		Whiteboard:      wb,
		Annotations:     annotations,
		DocumentVersion: r.documentVersion,
	}
}

// broadcastExcept delivers the event to every occupant except the named
// connection. Delivery is non-blocking; events to saturated subscribers are
// dropped with a warning.
func (r *Room) broadcastExcept(ev Event, exceptConnID string) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for connID, sub := range r.subs {
		if connID == exceptConnID {
			continue
		}

		if !sub.Enqueue(ev) {
			r.logger.Warn().
				Str("conn_id", connID).
				Str("event_type", string(ev.Type)).
				Msg("Subscriber queue full or closed, event dropped.")
		}
	}
}

// broadcastAll delivers the event to every current occupant.
func (r *Room) broadcastAll(ev Event) {
	r.broadcastExcept(ev, "")
}

// Empty reports whether the room has no occupants.
func (r *Room) Empty() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.users) == 0
}

// UserCount returns the current occupancy.
func (r *Room) UserCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.users)
}
