package store

// Key naming scheme shared by every server process behind the same Redis.
// A room's pub/sub channel, history log and membership set are derived from
// its name; the active-room set and per-user records are fixed keys.

// RoomChannel returns the pub/sub channel for a room.
func RoomChannel(room string) string {
	return "room:" + room
}

// HistoryKey returns the bounded history log key for a room.
func HistoryKey(room string) string {
	return "history:" + room
}

// MembersKey returns the membership set key for a room.
func MembersKey(room string) string {
	return "members:" + room
}

// RoomsSetKey is the global set of active rooms.
const RoomsSetKey = "rooms:set"
