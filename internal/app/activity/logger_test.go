package activity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockStore struct {
	mu         sync.Mutex
	activities []Activity
	deltas     []DocumentDelta
	appendErr  error
	appended   chan struct{}
}

func newMockStore() *mockStore {
	return &mockStore{appended: make(chan struct{}, 64)}
}

func (m *mockStore) AppendActivity(ctx context.Context, act Activity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	defer func() { m.appended <- struct{}{} }()

	if m.appendErr != nil {
		return m.appendErr
	}
	m.activities = append(m.activities, act)
	return nil
}

func (m *mockStore) AppendDocumentDelta(ctx context.Context, delta DocumentDelta) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	defer func() { m.appended <- struct{}{} }()

	if m.appendErr != nil {
		return m.appendErr
	}
	m.deltas = append(m.deltas, delta)
	return nil
}

func (m *mockStore) RecentActivities(ctx context.Context, roomID string, limit int) ([]Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Activity
	for i := len(m.activities) - 1; i >= 0 && len(out) < limit; i-- {
		if m.activities[i].RoomID == roomID {
			out = append(out, m.activities[i])
		}
	}
	return out, nil
}

func (m *mockStore) persisted() ([]Activity, []DocumentDelta) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Activity(nil), m.activities...), append([]DocumentDelta(nil), m.deltas...)
}

func (m *mockStore) waitAppend(t *testing.T) {
	t.Helper()
	select {
	case <-m.appended:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for store append")
	}
}

type mockPublisher struct {
	mu        sync.Mutex
	published []Activity
}

func (m *mockPublisher) PublishActivity(act Activity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, act)
}

func (m *mockPublisher) all() []Activity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Activity(nil), m.published...)
}

func TestLogger_RecordPublishesThenPersists(t *testing.T) {
	store := newMockStore()
	publisher := &mockPublisher{}
	logger := NewLogger(store, publisher)
	defer logger.Close()

	act := Activity{ID: "a1", RoomID: "r1", UserID: "alice", Type: TypeJoin, Description: "Alice joined the session"}
	logger.Record(act)

	// Publication happens synchronously on the event path.
	published := publisher.all()
	require.Len(t, published, 1)
	assert.Equal(t, "a1", published[0].ID)

	store.waitAppend(t)
	activities, _ := store.persisted()
	require.Len(t, activities, 1)
	assert.Equal(t, TypeJoin, activities[0].Type)
}

func TestLogger_StoreFailureDoesNotAffectPublish(t *testing.T) {
	store := newMockStore()
	store.appendErr = errors.New("connection refused")
	publisher := &mockPublisher{}
	logger := NewLogger(store, publisher)
	defer logger.Close()

	logger.Record(Activity{ID: "a1", RoomID: "r1", Type: TypeEdit})

	assert.Len(t, publisher.all(), 1, "broadcast view stays correct when the store fails")

	// The failed write is logged and dropped, never retried.
	store.waitAppend(t)
	activities, _ := store.persisted()
	assert.Empty(t, activities)
}

func TestLogger_RecordDelta(t *testing.T) {
	store := newMockStore()
	publisher := &mockPublisher{}
	logger := NewLogger(store, publisher)
	defer logger.Close()

	logger.RecordDelta(DocumentDelta{RoomID: "r1", SubjectID: "s1", Version: 3})

	store.waitAppend(t)
	_, deltas := store.persisted()
	require.Len(t, deltas, 1)
	assert.Equal(t, uint64(3), deltas[0].Version)

	// Deltas are persistence-only; nothing is republished.
	assert.Empty(t, publisher.all())
}

func TestLogger_GetRecentNewestFirst(t *testing.T) {
	store := newMockStore()
	logger := NewLogger(store, &mockPublisher{})
	defer logger.Close()

	for _, id := range []string{"a1", "a2", "a3"} {
		logger.Record(Activity{ID: id, RoomID: "r1", Type: TypeWhiteboard})
		store.waitAppend(t)
	}

	recent, err := logger.GetRecent(context.Background(), "r1", 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "a3", recent[0].ID)
	assert.Equal(t, "a2", recent[1].ID)
}

func TestLogger_CloseDrainsQueue(t *testing.T) {
	store := newMockStore()
	logger := NewLogger(store, &mockPublisher{})

	for i := 0; i < 10; i++ {
		logger.RecordDelta(DocumentDelta{RoomID: "r1", Version: uint64(i)})
	}

	logger.Close()

	_, deltas := store.persisted()
	assert.Len(t, deltas, 10)
}
