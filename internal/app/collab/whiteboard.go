/*
Package collab contains the core logic of the real-time collaboration hub: rooms,
presence, the shared whiteboard, inline annotations, and optimistic document
version control, together with the per-room broadcast fan-out.

This file defines the whiteboard and annotation data model. Strokes and shapes
are append-only for the lifetime of a room session; annotations support removal
by id.
*/
package collab

import "time"

// Point is a single coordinate of a whiteboard stroke or shape.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Size is the bounding box of a shape.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ShapeType enumerates the supported whiteboard shape kinds.
type ShapeType string

const (
	ShapeRectangle ShapeType = "rectangle"
	ShapeCircle    ShapeType = "circle"
	ShapeText      ShapeType = "text"
)

// Stroke is a freehand whiteboard drawing. Once appended to a room it is never
// mutated, only discarded when the room is destroyed.
type Stroke struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Points    []Point   `json:"points"`
	Color     string    `json:"color"`
	Width     float64   `json:"width"`
	Timestamp time.Time `json:"timestamp"`
}

// Shape is a structured whiteboard element. Same append-only discipline as Stroke.
type Shape struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Type      ShapeType `json:"type"`
	Position  Point     `json:"position"`
	Size      Size      `json:"size"`
	Color     string    `json:"color"`
	Text      string    `json:"text,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Annotation is an inline comment attached to a document element. Annotations
// are keyed by id within a room and may be removed.
type Annotation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	ElementID string    `json:"elementId"`
	Text      string    `json:"text"`
	Position  Point     `json:"position"`
	Timestamp time.Time `json:"timestamp"`
}

// Whiteboard holds the ordered stroke and shape lists of a room.
type Whiteboard struct {
	Strokes []Stroke `json:"strokes"`
	Shapes  []Shape  `json:"shapes"`
}
