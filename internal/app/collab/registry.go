/*
Package collab contains the core logic of the real-time collaboration hub.

This file defines the connection Registry, a weak lookup from transport-level
connection id to room membership. It never owns User records; closing a
connection tears the User down only through the explicit leave path.
*/
package collab

import "sync"

// Registry maps a connection id to the room it currently occupies. A
// connection is a member of at most one room at a time in this design.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]string
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]string)}
}

// Bind records that the connection occupies the given room.
func (reg *Registry) Bind(connID, roomID string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	reg.rooms[connID] = roomID
}

// Unbind forgets the connection's room membership, if any.
func (reg *Registry) Unbind(connID string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	delete(reg.rooms, connID)
}

// RoomOf returns the room the connection occupies, if bound.
func (reg *Registry) RoomOf(connID string) (string, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	roomID, ok := reg.rooms[connID]
	return roomID, ok
}

// Len returns the number of bound connections.
func (reg *Registry) Len() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	return len(reg.rooms)
}
