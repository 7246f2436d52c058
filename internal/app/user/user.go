/*
Package user contains core data structures related to participant identity and presence.

It defines the basic representation of a participant within a collaboration session
(the User struct), used for passing user information both internally and to clients.
*/
package user

// Position is a cursor location within the shared document view.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// User represents a participant in a collaboration session. One User exists per
// active connection; it is created on join and discarded on leave/disconnect.
// Fields use JSON tags for serialization in WebSocket events.
type User struct {
	// ID is the unique identifier for the user, provided by the caller or generated on join.
	ID string `json:"id"`

	// DisplayName is the name shown to other participants.
	DisplayName string `json:"displayName"`

	// Email is the participant's account email.
	Email string `json:"email,omitempty"`

	// Color is the presence color assigned from the fixed palette by join order.
	Color string `json:"color"`

	// Cursor is the user's last reported cursor position, if any.
	Cursor *Position `json:"cursorPosition,omitempty"`

	// ActiveElementID is the document element the user currently has selected, if any.
	ActiveElementID string `json:"activeElementId,omitempty"`
}
