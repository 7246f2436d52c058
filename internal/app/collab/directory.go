/*
Package collab contains the core logic of the real-time collaboration hub.

This file defines the Directory, the process-wide container of active rooms.
It creates rooms lazily on first join, garbage-collects rooms that become
empty, and routes every inbound event to the right room: mutating its state,
fanning the result out to other occupants, replying to the sender where the
protocol says so, and handing activity records to the recorder.
*/
package collab

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"collabhub/internal/app/activity"
	"collabhub/internal/app/user"
	"collabhub/internal/pkg/logx"
	"collabhub/internal/pkg/randx"
)

// ActivityRecorder receives state-changing events for the durable activity
// feed. Recording is fire-and-forget: failures never surface to the event path.
type ActivityRecorder interface {
	Record(act activity.Activity)
	RecordDelta(delta activity.DocumentDelta)
}

// Directory coordinates all active rooms. It is constructed once at service
// start and torn down at shutdown.
type Directory struct {
	// mu protects concurrent access to the rooms map.
	mu sync.RWMutex

	// rooms stores all active Room instances, keyed by room id.
	rooms map[string]*Room

	// registry tracks connection -> room membership.
	registry *Registry

	// recorder is the activity feed sink, wired after construction because the
	// activity logger publishes back through the Directory.
	recorder ActivityRecorder

	// structured logger with Directory context.
	logger zerolog.Logger
}

// NewDirectory constructs an empty Directory.
func NewDirectory() *Directory {
	return &Directory{
		rooms:    make(map[string]*Room),
		registry: NewRegistry(),
		logger:   logx.Logger().With().Str("component", "Directory").Logger(),
	}
}

// SetRecorder wires the activity recorder. Must be called before serving
// connections.
func (d *Directory) SetRecorder(recorder ActivityRecorder) {
	d.recorder = recorder
}

// GetOrCreate returns the existing Room for roomID, or atomically constructs
// and registers a fresh one. Exactly one Room is ever created per id, even
// under simultaneous first-joins.
func (d *Directory) GetOrCreate(roomID, subjectID string) *Room {
	d.mu.RLock()
	room, ok := d.rooms[roomID]
	d.mu.RUnlock()

	if ok {
		return room
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if room, ok = d.rooms[roomID]; ok {
		return room
	}

	room = NewRoom(roomID, subjectID)
	d.rooms[roomID] = room

	d.logger.Info().Str("room_id", roomID).Str("subject_id", subjectID).Msg("Room created.")
	return room
}

// ensureRegistered confirms that room is still the directory's live entry for
// roomID after an occupant has been added to it. A missing entry means
// RemoveIfEmpty won the race while the room was momentarily empty; the caller
// just re-populated it, so it is re-inserted. Returns false when a different
// Room has taken over the id, in which case the caller must back out and join
// the live one.
func (d *Directory) ensureRegistered(roomID string, room *Room) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	current, ok := d.rooms[roomID]
	if !ok {
		d.rooms[roomID] = room
		return true
	}
	return current == room
}

// Get retrieves a Room by id. It never creates.
func (d *Directory) Get(roomID string) *Room {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return d.rooms[roomID]
}

// RemoveIfEmpty deletes the room entry if and only if its user set is
// currently empty. Called after every leave/disconnect.
func (d *Directory) RemoveIfEmpty(roomID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	room, ok := d.rooms[roomID]
	if !ok || !room.Empty() {
		return
	}

	delete(d.rooms, roomID)
	d.logger.Info().Str("room_id", roomID).Msg("Empty room removed.")
}

// Stats returns the current number of rooms and connected participants.
func (d *Directory) Stats() (rooms, users int) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rooms = len(d.rooms)
	for _, room := range d.rooms {
		users += room.UserCount()
	}
	return rooms, users
}

// Shutdown tears down the Directory at service stop.
func (d *Directory) Shutdown() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.rooms = make(map[string]*Room)
	d.logger.Info().Msg("Directory shutdown complete.")
}

// Join admits a connection into a room, creating the room on first join.
// Side effects, in order: unicast the full room snapshot to the joiner,
// broadcast user-joined to the other occupants, record a join activity.
//
// A join races with a concurrent last-occupant leave: the Room returned by
// GetOrCreate may be garbage-collected before the joiner lands in it, which
// would strand the occupant in a room the Directory no longer routes to. After
// joining, registration is re-validated under the directory lock and the join
// is replayed against whichever Room now owns the id.
func (d *Directory) Join(sub Subscriber, p JoinRoomPayload) {
	var (
		room     *Room
		joined   user.User
		snapshot RoomSnapshot
	)

	for {
		room = d.GetOrCreate(p.RoomID, p.SubjectID)
		joined, snapshot = room.join(sub, p.User)

		if d.ensureRegistered(p.RoomID, room) {
			break
		}

		room.leave(sub.ConnID())
	}

	d.registry.Bind(sub.ConnID(), p.RoomID)

	d.unicast(sub, EventRoomJoined, p.RoomID, RoomJoinedPayload{
		RoomID:       p.RoomID,
		User:         joined,
		RoomSnapshot: snapshot,
	})

	d.broadcast(room, sub.ConnID(), EventUserJoined, UserJoinedPayload{User: joined})

	d.record(activity.TypeJoin, room, joined,
		fmt.Sprintf("%s joined the session", joined.DisplayName), nil)
}

// Leave removes the connection's participant from the room. Unknown rooms or
// connections are a silent no-op, so the operation stays idempotent under
// races with a concurrent leave.
func (d *Directory) Leave(sub Subscriber, roomID string) {
	room := d.Get(roomID)
	if room == nil {
		return
	}

	left, _, ok := room.leave(sub.ConnID())
	if !ok {
		return
	}

	d.registry.Unbind(sub.ConnID())

	d.broadcast(room, sub.ConnID(), EventUserLeft, UserLeftPayload{UserID: left.ID})

	d.record(activity.TypeLeave, room, left,
		fmt.Sprintf("%s left the session", left.DisplayName), nil)

	d.RemoveIfEmpty(roomID)
}

// Disconnect handles transport-level connection loss, which arrives with no
// explicit room id. The bound room is left first; the remaining rooms are
// scanned defensively, since Leave is idempotent either way.
func (d *Directory) Disconnect(sub Subscriber) {
	if roomID, ok := d.registry.RoomOf(sub.ConnID()); ok {
		d.Leave(sub, roomID)
	}

	d.mu.RLock()
	var stale []string
	for roomID, room := range d.rooms {
		if room.hasConn(sub.ConnID()) {
			stale = append(stale, roomID)
		}
	}
	d.mu.RUnlock()

	for _, roomID := range stale {
		d.Leave(sub, roomID)
	}
}

// CursorMove updates the sender's live cursor and relays it to the other
// occupants. No persistence, no reply to the sender; dropped silently when the
// room or user is gone.
func (d *Directory) CursorMove(sub Subscriber, p CursorMovePayload) {
	room := d.Get(p.RoomID)
	if room == nil {
		return
	}

	userID, ok := room.setCursor(sub.ConnID(), p.Cursor)
	if !ok {
		return
	}

	d.broadcast(room, sub.ConnID(), EventCursorMoved, CursorMovedPayload{
		UserID: userID,
		Cursor: p.Cursor,
	})
}

// ElementSelect updates the sender's element selection and relays it to the
// other occupants.
func (d *Directory) ElementSelect(sub Subscriber, p ElementSelectPayload) {
	room := d.Get(p.RoomID)
	if room == nil {
		return
	}

	userID, ok := room.setActiveElement(sub.ConnID(), p.ElementID)
	if !ok {
		return
	}

	d.broadcast(room, sub.ConnID(), EventElementSelected, ElementSelectedPayload{
		UserID:    userID,
		ElementID: p.ElementID,
	})
}

// DocumentChange applies optimistic version control. A matching version bumps
// the counter by exactly 1, broadcasts document-changed to the other
// occupants, and persists the delta plus an edit activity. A stale version
// yields a document-conflict reply to the sender alone: no mutation, no
// broadcast, no persistence. The caller re-fetches and retries; this hub never
// merges.
func (d *Directory) DocumentChange(sub Subscriber, p DocumentChangePayload) {
	room := d.Get(p.RoomID)
	if room == nil {
		return
	}

	sender, ok := room.userByConn(sub.ConnID())
	if !ok {
		return
	}

	version, accepted := room.applyDocumentChange(p.Version)
	if !accepted {
		d.unicast(sub, EventDocumentConflict, p.RoomID, DocumentConflictPayload{
			CurrentVersion: version,
			Changes:        p.Changes,
		})
		return
	}

	d.broadcast(room, sub.ConnID(), EventDocumentChanged, DocumentChangedPayload{
		UserID:  sender.ID,
		Changes: p.Changes,
		Version: version,
	})

	if d.recorder != nil {
		d.recorder.RecordDelta(activity.DocumentDelta{
			RoomID:    room.ID,
			SubjectID: room.SubjectID,
			Version:   version,
			Changes:   p.Changes,
		})
	}

	d.record(activity.TypeEdit, room, sender,
		fmt.Sprintf("%s edited the document", sender.DisplayName),
		map[string]any{"version": version})
}

// WhiteboardStroke appends a stroke and relays it to the other occupants.
// Whiteboard state is append-only and does not touch the document version.
func (d *Directory) WhiteboardStroke(sub Subscriber, p WhiteboardStrokePayload) {
	room := d.Get(p.RoomID)
	if room == nil {
		return
	}

	sender, ok := room.userByConn(sub.ConnID())
	if !ok {
		return
	}

	p.Stroke.UserID = sender.ID
	stroke := room.addStroke(p.Stroke)

	d.broadcast(room, sub.ConnID(), EventStrokeAdded, StrokeAddedPayload{Stroke: stroke})

	d.record(activity.TypeWhiteboard, room, sender,
		fmt.Sprintf("%s drew on the whiteboard", sender.DisplayName), nil)
}

// WhiteboardShape appends a shape and relays it to the other occupants.
func (d *Directory) WhiteboardShape(sub Subscriber, p WhiteboardShapePayload) {
	room := d.Get(p.RoomID)
	if room == nil {
		return
	}

	sender, ok := room.userByConn(sub.ConnID())
	if !ok {
		return
	}

	p.Shape.UserID = sender.ID
	shape := room.addShape(p.Shape)

	d.broadcast(room, sub.ConnID(), EventShapeAdded, ShapeAddedPayload{Shape: shape})

	d.record(activity.TypeWhiteboard, room, sender,
		fmt.Sprintf("%s added a %s to the whiteboard", sender.DisplayName, shape.Type), nil)
}

// AddAnnotation inserts an annotation keyed by id (last write wins) and relays
// it to the other occupants.
func (d *Directory) AddAnnotation(sub Subscriber, p AddAnnotationPayload) {
	room := d.Get(p.RoomID)
	if room == nil {
		return
	}

	sender, ok := room.userByConn(sub.ConnID())
	if !ok {
		return
	}

	p.Annotation.UserID = sender.ID
	annotation := room.putAnnotation(p.Annotation)

	d.broadcast(room, sub.ConnID(), EventAnnotationAdded, AnnotationAddedPayload{Annotation: annotation})

	d.record(activity.TypeAnnotation, room, sender,
		fmt.Sprintf("%s added an annotation", sender.DisplayName),
		map[string]any{"elementId": annotation.ElementID})
}

// RemoveAnnotation deletes an annotation by id. Removing an absent id is an
// idempotent no-op with no broadcast. Removal intentionally records no
// activity, mirroring the asymmetry of the original feed.
func (d *Directory) RemoveAnnotation(sub Subscriber, p RemoveAnnotationPayload) {
	room := d.Get(p.RoomID)
	if room == nil {
		return
	}

	if !room.hasConn(sub.ConnID()) {
		return
	}

	if !room.deleteAnnotation(p.AnnotationID) {
		return
	}

	d.broadcast(room, sub.ConnID(), EventAnnotationRemoved, AnnotationRemovedPayload{
		AnnotationID: p.AnnotationID,
	})
}

// RequestSync replies to the requesting connection alone with the full current
// room snapshot. Used for reconnection catch-up; mutates nothing.
func (d *Directory) RequestSync(sub Subscriber, roomID string) {
	room := d.Get(roomID)
	if room == nil {
		return
	}

	if !room.hasConn(sub.ConnID()) {
		return
	}

	d.unicast(sub, EventSyncResponse, roomID, room.snapshot())
}

// PublishActivity delivers a recorded activity to every occupant of its room,
// including the user that triggered it. Implements activity.Publisher.
func (d *Directory) PublishActivity(act activity.Activity) {
	room := d.Get(act.RoomID)
	if room == nil {
		return
	}

	ev, err := NewEvent(EventActivity, act.RoomID, ActivityPayload{Activity: act})
	if err != nil {
		d.logger.Error().Err(err).Str("activity_id", act.ID).Msg("Failed to build activity event.")
		return
	}

	room.broadcastAll(ev)
}

// broadcast fans an event out to every room occupant except the sender.
func (d *Directory) broadcast(room *Room, exceptConnID string, eventType EventType, payload any) {
	ev, err := NewEvent(eventType, room.ID, payload)
	if err != nil {
		d.logger.Error().Err(err).Str("event_type", string(eventType)).Msg("Failed to build broadcast event.")
		return
	}

	room.broadcastExcept(ev, exceptConnID)
}

// unicast sends a private reply to a single subscriber.
func (d *Directory) unicast(sub Subscriber, eventType EventType, roomID string, payload any) {
	ev, err := NewEvent(eventType, roomID, payload)
	if err != nil {
		d.logger.Error().Err(err).Str("event_type", string(eventType)).Msg("Failed to build reply event.")
		return
	}

	if !sub.Enqueue(ev) {
		d.logger.Warn().
			Str("conn_id", sub.ConnID()).
			Str("event_type", string(eventType)).
			Msg("Subscriber queue full or closed, reply dropped.")
	}
}

// record hands a state-changing event to the activity recorder.
func (d *Directory) record(actType activity.Type, room *Room, u user.User, description string, metadata map[string]any) {
	if d.recorder == nil {
		return
	}

	d.recorder.Record(activity.Activity{
		ID:          randx.EventID(),
		RoomID:      room.ID,
		UserID:      u.ID,
		Type:        actType,
		Description: description,
		Timestamp:   time.Now(),
		Metadata:    metadata,
	})
}
