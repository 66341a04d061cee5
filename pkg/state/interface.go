package state

import "github.com/google/uuid"

// Registry maps sessions to the rooms they belong to and rooms to their
// member sessions. Implementations must serialize every mutation and read;
// callers never see partially applied membership.
type Registry interface {
	// --- Session lifecycle ---
	Register(sess *Session) error
	// Deregister removes the session from every room and forgets it.
	// Idempotent, and safe for sessions that never joined anything.
	Deregister(sessID uuid.UUID) error
	Get(sessID uuid.UUID) (*Session, bool)
	Sessions() []*Session
	Count() int

	// --- Membership ---
	// Join adds the session to the room, creating the room on first join.
	// Joining a room twice is a no-op.
	Join(sessID uuid.UUID, room string) error
	// Leave removes the session from the room. Leaving a room the session
	// is not in is a no-op.
	Leave(sessID uuid.UUID, room string) error
	// MembersOf returns a snapshot of the room's member sessions. Unknown
	// rooms yield an empty slice, never an error.
	MembersOf(room string) []*Session
	RoomsOf(sessID uuid.UUID) []string
}

// Room name helpers. Rooms are "kind:scopeId" strings created implicitly on
// first join.

func DiscussionRoom(discussionID string) string {
	return "discussion:" + discussionID
}

func IdentityRoom(identityID string) string {
	return "identity:" + identityID
}
