package randx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomID(t *testing.T) {
	seen := make(map[string]struct{})

	for i := 0; i < 100; i++ {
		id, err := RoomID()
		require.NoError(t, err)
		assert.True(t, IsValidRoomID(id), "generated id %q must validate", id)
		seen[id] = struct{}{}
	}

	assert.Len(t, seen, 100, "ids should not collide in practice")
}

func TestIsValidRoomID(t *testing.T) {
	tests := []struct {
		name string
		id   string
		want bool
	}{
		{name: "valid", id: "Ab3xY9Qz", want: true},
		{name: "too short", id: "Ab3xY9Q", want: false},
		{name: "too long", id: "Ab3xY9Qz0", want: false},
		{name: "illegal character", id: "Ab3xY9Q!", want: false},
		{name: "empty", id: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidRoomID(tt.id))
		})
	}
}

func TestEventIDUnique(t *testing.T) {
	assert.NotEqual(t, EventID(), EventID())
}
