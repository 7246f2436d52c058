package collab

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collabhub/internal/app/activity"
	"collabhub/internal/app/user"
)

// mockSub implements Subscriber and records every event it receives.
type mockSub struct {
	id     string
	mu     sync.Mutex
	events []Event
}

func newMockSub(id string) *mockSub {
	return &mockSub{id: id}
}

func (m *mockSub) ConnID() string { return m.id }

func (m *mockSub) Enqueue(ev Event) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return true
}

func (m *mockSub) received() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}

func (m *mockSub) ofType(t EventType) []Event {
	var out []Event
	for _, ev := range m.received() {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

// requireOne asserts exactly one event of the given type was received and
// decodes its payload into dst.
func (m *mockSub) requireOne(t *testing.T, eventType EventType, dst any) {
	t.Helper()
	events := m.ofType(eventType)
	require.Len(t, events, 1, "expected exactly one %s event", eventType)
	require.NoError(t, json.Unmarshal(events[0].Payload, dst))
}

// mockRecorder implements ActivityRecorder and captures records in memory.
type mockRecorder struct {
	mu         sync.Mutex
	activities []activity.Activity
	deltas     []activity.DocumentDelta
}

func (m *mockRecorder) Record(act activity.Activity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activities = append(m.activities, act)
}

func (m *mockRecorder) RecordDelta(delta activity.DocumentDelta) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deltas = append(m.deltas, delta)
}

func (m *mockRecorder) activitiesOfType(t activity.Type) []activity.Activity {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []activity.Activity
	for _, act := range m.activities {
		if act.Type == t {
			out = append(out, act)
		}
	}
	return out
}

func newTestDirectory() (*Directory, *mockRecorder) {
	d := NewDirectory()
	rec := &mockRecorder{}
	d.SetRecorder(rec)
	return d, rec
}

func join(d *Directory, sub *mockSub, roomID, userID, name string) {
	d.Join(sub, JoinRoomPayload{
		RoomID:    roomID,
		SubjectID: "subject-1",
		User:      user.User{ID: userID, DisplayName: name},
	})
}

func TestDirectory_GetOrCreate(t *testing.T) {
	d, _ := newTestDirectory()

	r1 := d.GetOrCreate("r1", "s1")
	r2 := d.GetOrCreate("r1", "s-other")

	assert.Same(t, r1, r2, "one Room per id")
	assert.Equal(t, "s1", r2.SubjectID, "first creation wins")
	assert.Nil(t, d.Get("unknown"))
}

func TestDirectory_GetOrCreateConcurrent(t *testing.T) {
	d, _ := newTestDirectory()

	const goroutines = 32
	rooms := make([]*Room, goroutines)

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rooms[i] = d.GetOrCreate("r1", "s1")
		}(i)
	}
	wg.Wait()

	for i := 1; i < goroutines; i++ {
		require.Same(t, rooms[0], rooms[i])
	}
}

func TestDirectory_JoinScenario(t *testing.T) {
	d, rec := newTestDirectory()

	a := newMockSub("conn-a")
	join(d, a, "r1", "alice", "Alice")

	var joinedA RoomJoinedPayload
	a.requireOne(t, EventRoomJoined, &joinedA)
	assert.Equal(t, "r1", joinedA.RoomID)
	assert.Equal(t, uint64(0), joinedA.DocumentVersion)
	assert.Empty(t, joinedA.Whiteboard.Strokes)
	assert.Empty(t, joinedA.Annotations)
	require.Len(t, joinedA.Users, 1)

	b := newMockSub("conn-b")
	join(d, b, "r1", "bob", "Bob")

	// A learns about B; B's snapshot shows A already present.
	var userJoined UserJoinedPayload
	a.requireOne(t, EventUserJoined, &userJoined)
	assert.Equal(t, "bob", userJoined.User.ID)

	var joinedB RoomJoinedPayload
	b.requireOne(t, EventRoomJoined, &joinedB)
	assert.Len(t, joinedB.Users, 2)
	assert.Empty(t, b.ofType(EventUserJoined), "joiner must not see its own user-joined")

	joins := rec.activitiesOfType(activity.TypeJoin)
	assert.Len(t, joins, 2)
}

func TestDirectory_DocumentChangeScenario(t *testing.T) {
	d, rec := newTestDirectory()

	a := newMockSub("conn-a")
	b := newMockSub("conn-b")
	join(d, a, "r1", "alice", "Alice")
	join(d, b, "r1", "bob", "Bob")

	changes := json.RawMessage(`{"op":"insert","text":"hi"}`)

	// A's change against the current version is accepted.
	d.DocumentChange(a, DocumentChangePayload{RoomID: "r1", Changes: changes, Version: 0})

	var changed DocumentChangedPayload
	b.requireOne(t, EventDocumentChanged, &changed)
	assert.Equal(t, "alice", changed.UserID)
	assert.Equal(t, uint64(1), changed.Version)
	assert.Empty(t, a.ofType(EventDocumentChanged), "sender gets no echo")
	assert.Empty(t, a.ofType(EventDocumentConflict))

	// B's stale change is rejected; only B hears about it.
	d.DocumentChange(b, DocumentChangePayload{RoomID: "r1", Changes: changes, Version: 0})

	var conflict DocumentConflictPayload
	b.requireOne(t, EventDocumentConflict, &conflict)
	assert.Equal(t, uint64(1), conflict.CurrentVersion)
	assert.Empty(t, a.ofType(EventDocumentConflict))

	// Exactly one delta and one edit activity: the rejected change persisted nothing.
	require.Len(t, rec.deltas, 1)
	assert.Equal(t, uint64(1), rec.deltas[0].Version)
	assert.Equal(t, "subject-1", rec.deltas[0].SubjectID)
	assert.Len(t, rec.activitiesOfType(activity.TypeEdit), 1)
}

func TestDirectory_WhiteboardFanout(t *testing.T) {
	d, rec := newTestDirectory()

	a := newMockSub("conn-a")
	b := newMockSub("conn-b")
	join(d, a, "r1", "alice", "Alice")
	join(d, b, "r1", "bob", "Bob")

	const strokes = 10
	for i := 0; i < strokes; i++ {
		d.WhiteboardStroke(a, WhiteboardStrokePayload{
			RoomID: "r1",
			Stroke: Stroke{ID: fmt.Sprintf("s%d", i), Points: []Point{{X: float64(i)}}},
		})
	}

	added := b.ofType(EventStrokeAdded)
	require.Len(t, added, strokes)
	for i, ev := range added {
		var p StrokeAddedPayload
		require.NoError(t, json.Unmarshal(ev.Payload, &p))
		assert.Equal(t, fmt.Sprintf("s%d", i), p.Stroke.ID, "stroke order must match append order")
		assert.Equal(t, "alice", p.Stroke.UserID)
	}
	assert.Empty(t, a.ofType(EventStrokeAdded))

	d.WhiteboardShape(a, WhiteboardShapePayload{
		RoomID: "r1",
		Shape:  Shape{ID: "sh1", Type: ShapeRectangle, Size: Size{Width: 5, Height: 5}},
	})

	var shape ShapeAddedPayload
	b.requireOne(t, EventShapeAdded, &shape)
	assert.Equal(t, ShapeRectangle, shape.Shape.Type)

	assert.Len(t, rec.activitiesOfType(activity.TypeWhiteboard), strokes+1)
}

func TestDirectory_AnnotationLifecycle(t *testing.T) {
	d, rec := newTestDirectory()

	a := newMockSub("conn-a")
	b := newMockSub("conn-b")
	join(d, a, "r1", "alice", "Alice")
	join(d, b, "r1", "bob", "Bob")

	d.AddAnnotation(a, AddAnnotationPayload{
		RoomID:     "r1",
		Annotation: Annotation{ID: "a1", ElementID: "para-3", Text: "check this"},
	})

	var added AnnotationAddedPayload
	b.requireOne(t, EventAnnotationAdded, &added)
	assert.Equal(t, "alice", added.Annotation.UserID)

	d.RemoveAnnotation(a, RemoveAnnotationPayload{RoomID: "r1", AnnotationID: "a1"})
	d.RemoveAnnotation(a, RemoveAnnotationPayload{RoomID: "r1", AnnotationID: "a1"})
	d.RemoveAnnotation(a, RemoveAnnotationPayload{RoomID: "r1", AnnotationID: "never"})

	// Idempotence: repeated and unknown removals broadcast nothing further.
	removed := b.ofType(EventAnnotationRemoved)
	require.Len(t, removed, 1)

	// Adds are logged as activities, removals are not.
	assert.Len(t, rec.activitiesOfType(activity.TypeAnnotation), 1)
}

func TestDirectory_PresenceRelay(t *testing.T) {
	d, _ := newTestDirectory()

	a := newMockSub("conn-a")
	b := newMockSub("conn-b")
	join(d, a, "r1", "alice", "Alice")
	join(d, b, "r1", "bob", "Bob")

	d.CursorMove(a, CursorMovePayload{RoomID: "r1", Cursor: user.Position{X: 3, Y: 4}})

	var moved CursorMovedPayload
	b.requireOne(t, EventCursorMoved, &moved)
	assert.Equal(t, "alice", moved.UserID)
	assert.Equal(t, 3.0, moved.Cursor.X)
	assert.Empty(t, a.ofType(EventCursorMoved))

	d.ElementSelect(b, ElementSelectPayload{RoomID: "r1", ElementID: "fig-2"})

	var selected ElementSelectedPayload
	a.requireOne(t, EventElementSelected, &selected)
	assert.Equal(t, "bob", selected.UserID)
	assert.Equal(t, "fig-2", selected.ElementID)

	// Events against unknown rooms or departed users are dropped silently.
	stranger := newMockSub("conn-x")
	d.CursorMove(stranger, CursorMovePayload{RoomID: "r1", Cursor: user.Position{}})
	d.CursorMove(a, CursorMovePayload{RoomID: "no-such-room", Cursor: user.Position{}})
	assert.Len(t, b.ofType(EventCursorMoved), 1)
}

func TestDirectory_LeaveAndRoomGC(t *testing.T) {
	d, rec := newTestDirectory()

	a := newMockSub("conn-a")
	b := newMockSub("conn-b")
	join(d, a, "r1", "alice", "Alice")
	join(d, b, "r1", "bob", "Bob")

	d.Leave(a, "r1")

	var left UserLeftPayload
	b.requireOne(t, EventUserLeft, &left)
	assert.Equal(t, "alice", left.UserID)
	assert.NotNil(t, d.Get("r1"), "room survives while occupied")

	// Leaving twice is a silent no-op.
	d.Leave(a, "r1")
	assert.Len(t, b.ofType(EventUserLeft), 1)
	assert.Len(t, rec.activitiesOfType(activity.TypeLeave), 1)

	d.Leave(b, "r1")
	assert.Nil(t, d.Get("r1"), "empty room is not retained")

	// A fresh join with the same id starts from scratch.
	c := newMockSub("conn-c")
	join(d, c, "r1", "carol", "Carol")

	var rejoined RoomJoinedPayload
	c.requireOne(t, EventRoomJoined, &rejoined)
	assert.Equal(t, uint64(0), rejoined.DocumentVersion)
	assert.Len(t, rejoined.Users, 1)
	assert.Equal(t, palette[0], rejoined.User.Color)
}

func TestDirectory_Disconnect(t *testing.T) {
	d, _ := newTestDirectory()

	a := newMockSub("conn-a")
	b := newMockSub("conn-b")
	join(d, a, "r1", "alice", "Alice")
	join(d, b, "r1", "bob", "Bob")

	d.Disconnect(a)

	var left UserLeftPayload
	b.requireOne(t, EventUserLeft, &left)
	assert.Equal(t, "alice", left.UserID)

	rooms, users := d.Stats()
	assert.Equal(t, 1, rooms)
	assert.Equal(t, 1, users)

	// Sole remaining occupant disconnecting deletes the room.
	d.Disconnect(b)
	rooms, users = d.Stats()
	assert.Equal(t, 0, rooms)
	assert.Equal(t, 0, users)

	// Disconnect of an unknown connection is harmless.
	d.Disconnect(newMockSub("conn-x"))
}

func TestDirectory_RequestSync(t *testing.T) {
	d, _ := newTestDirectory()

	a := newMockSub("conn-a")
	join(d, a, "r1", "alice", "Alice")

	d.WhiteboardStroke(a, WhiteboardStrokePayload{RoomID: "r1", Stroke: Stroke{ID: "s1"}})
	d.DocumentChange(a, DocumentChangePayload{RoomID: "r1", Changes: json.RawMessage(`{}`), Version: 0})

	d.RequestSync(a, "r1")

	var sync RoomSnapshot
	a.requireOne(t, EventSyncResponse, &sync)
	assert.Equal(t, uint64(1), sync.DocumentVersion)
	assert.Len(t, sync.Whiteboard.Strokes, 1)
	assert.Len(t, sync.Users, 1)

	// Sync against a room the caller does not occupy replies nothing.
	stranger := newMockSub("conn-x")
	d.RequestSync(stranger, "r1")
	assert.Empty(t, stranger.received())
}

func TestDirectory_PublishActivity(t *testing.T) {
	d, _ := newTestDirectory()

	a := newMockSub("conn-a")
	b := newMockSub("conn-b")
	join(d, a, "r1", "alice", "Alice")
	join(d, b, "r1", "bob", "Bob")

	act := activity.Activity{
		ID:          "act-1",
		RoomID:      "r1",
		UserID:      "alice",
		Type:        activity.TypeEdit,
		Description: "Alice edited the document",
	}

	d.PublishActivity(act)

	// The activity reaches every occupant, including the triggering user.
	var fromA, fromB ActivityPayload
	a.requireOne(t, EventActivity, &fromA)
	b.requireOne(t, EventActivity, &fromB)
	assert.Equal(t, "act-1", fromA.Activity.ID)
	assert.Equal(t, "act-1", fromB.Activity.ID)

	// Activities for unknown rooms are dropped.
	d.PublishActivity(activity.Activity{ID: "act-2", RoomID: "gone"})
	assert.Len(t, a.ofType(EventActivity), 1)
}

func TestDirectory_JoinRevivesRoomRemovedMidJoin(t *testing.T) {
	d, _ := newTestDirectory()
	a := newMockSub("conn-a")

	// Replay the interleaving where a last-occupant leave garbage-collects the
	// room between the joiner's lookup and its membership insert.
	room := d.GetOrCreate("r1", "subject-1")
	d.RemoveIfEmpty("r1")
	require.Nil(t, d.Get("r1"))

	room.join(a, user.User{ID: "u-a", DisplayName: "Alice"})

	require.True(t, d.ensureRegistered("r1", room))
	assert.Same(t, room, d.Get("r1"), "populated room re-inserted")

	// The occupant is routable again.
	d.RequestSync(a, "r1")
	var snapshot RoomSnapshot
	a.requireOne(t, EventSyncResponse, &snapshot)
	assert.Len(t, snapshot.Users, 1)
}

func TestDirectory_JoinBacksOffStaleRoom(t *testing.T) {
	d, _ := newTestDirectory()

	stale := d.GetOrCreate("r1", "subject-1")
	d.RemoveIfEmpty("r1")

	b := newMockSub("conn-b")
	join(d, b, "r1", "u-b", "Bob")
	successor := d.Get("r1")
	require.NotSame(t, stale, successor)

	a := newMockSub("conn-a")
	stale.join(a, user.User{ID: "u-a", DisplayName: "Alice"})

	assert.False(t, d.ensureRegistered("r1", stale), "a live successor owns the id")
}

func TestDirectory_ConcurrentJoinLeaveNeverStrandsJoiner(t *testing.T) {
	d, _ := newTestDirectory()

	const (
		workers    = 8
		iterations = 50
	)

	subs := make([]*mockSub, workers)
	for i := range subs {
		subs[i] = newMockSub(fmt.Sprintf("conn-%d", i))
	}

	var wg sync.WaitGroup
	for _, sub := range subs {
		wg.Add(1)
		go func(sub *mockSub) {
			defer wg.Done()
			for n := 0; n < iterations; n++ {
				join(d, sub, "r1", sub.ConnID(), sub.ConnID())
				d.RequestSync(sub, "r1")
				d.Leave(sub, "r1")
			}
		}(sub)
	}
	wg.Wait()

	// Every join must leave the participant routable: a joiner parked in a
	// garbage-collected room would miss its sync replies.
	for _, sub := range subs {
		assert.Len(t, sub.ofType(EventSyncResponse), iterations, "%s missed sync replies", sub.ConnID())
	}

	rooms, users := d.Stats()
	assert.Zero(t, rooms)
	assert.Zero(t, users)
}
