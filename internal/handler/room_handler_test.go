package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collabhub/internal/app/activity"
)

// feedStore implements activity.Store over an in-memory slice.
type feedStore struct {
	activities []activity.Activity
}

func (s *feedStore) AppendActivity(_ context.Context, act activity.Activity) error {
	s.activities = append(s.activities, act)
	return nil
}

func (s *feedStore) AppendDocumentDelta(context.Context, activity.DocumentDelta) error {
	return nil
}

func (s *feedStore) RecentActivities(_ context.Context, roomID string, limit int) ([]activity.Activity, error) {
	var out []activity.Activity
	for _, act := range s.activities {
		if act.RoomID == roomID {
			out = append(out, act)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type noopPublisher struct{}

func (noopPublisher) PublishActivity(activity.Activity) {}

func newActivitiesServer(t *testing.T, store activity.Store) http.Handler {
	t.Helper()

	logger := activity.NewLogger(store, noopPublisher{})
	t.Cleanup(logger.Close)

	r := chi.NewRouter()
	r.Get("/api/rooms/{roomID}/activities", HandleRoomActivities(&AppDeps{Activities: logger}))
	return r
}

func TestHandleRoomActivities_ServesSocketCreatedRoomIDs(t *testing.T) {
	// Room ids are whatever participants join under, not only the 8-char
	// base62 ids minted by POST /api/rooms. The feed must serve both.
	store := &feedStore{activities: []activity.Activity{
		{ID: "act-1", RoomID: "design-review", UserID: "u-a", Type: activity.TypeJoin, Timestamp: time.Now()},
		{ID: "act-2", RoomID: "design-review", UserID: "u-a", Type: activity.TypeEdit, Timestamp: time.Now()},
		{ID: "act-3", RoomID: "other", UserID: "u-b", Type: activity.TypeJoin, Timestamp: time.Now()},
	}}
	server := newActivitiesServer(t, store)

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/rooms/design-review/activities", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Code int `json:"code"`
		Data struct {
			RoomID     string              `json:"roomId"`
			Activities []activity.Activity `json:"activities"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Zero(t, body.Code)
	assert.Equal(t, "design-review", body.Data.RoomID)
	require.Len(t, body.Data.Activities, 2)
	assert.Equal(t, "act-1", body.Data.Activities[0].ID)
}

func TestHandleRoomActivities_LimitValidation(t *testing.T) {
	store := &feedStore{}
	for i := 0; i < 10; i++ {
		store.activities = append(store.activities, activity.Activity{
			ID:     string(rune('a' + i)),
			RoomID: "r1",
			Type:   activity.TypeEdit,
		})
	}
	server := newActivitiesServer(t, store)

	tests := []struct {
		name       string
		target     string
		wantStatus int
		wantCount  int
	}{
		{"default limit", "/api/rooms/r1/activities", http.StatusOK, 10},
		{"explicit limit", "/api/rooms/r1/activities?limit=3", http.StatusOK, 3},
		{"zero limit rejected", "/api/rooms/r1/activities?limit=0", http.StatusBadRequest, 0},
		{"malformed limit rejected", "/api/rooms/r1/activities?limit=abc", http.StatusBadRequest, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.target, nil))

			require.Equal(t, tc.wantStatus, rec.Code)
			if tc.wantStatus != http.StatusOK {
				return
			}

			var body struct {
				Data struct {
					Activities []activity.Activity `json:"activities"`
				} `json:"data"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Len(t, body.Data.Activities, tc.wantCount)
		})
	}
}
