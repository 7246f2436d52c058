package collab

// palette is the fixed, ordered list of presence colors. A participant joining
// a room with N existing occupants receives palette[N % len(palette)], so the
// first joiner gets palette[0] and colors cycle once the room outgrows the
// palette.
var palette = []string{
	"#E53E3E", // red
	"#DD6B20", // orange
	"#D69E2E", // yellow
	"#38A169", // green
	"#319795", // teal
	"#3182CE", // blue
	"#805AD5", // purple
	"#D53F8C", // pink
}

// colorForJoinOrder returns the presence color for a participant joining a
// room that currently has occupancy existing users.
func colorForJoinOrder(occupancy int) string {
	return palette[occupancy%len(palette)]
}
