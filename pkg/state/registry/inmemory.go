package registry

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/karimzahran/agora/pkg/state"
)

// InMemory is the single-process membership registry. One mutex serializes
// all membership mutations and reads, which keeps a session's removal atomic
// with its disconnect: once Deregister returns, no fan-out can reach it.
type InMemory struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*state.Session
	rooms    map[string]map[uuid.UUID]*state.Session
	joined   map[uuid.UUID]map[string]struct{}

	logger *slog.Logger
}

// compile-time check to ensure InMemory implements Registry.
var _ state.Registry = (*InMemory)(nil)

func NewInMemory(logger *slog.Logger) *InMemory {
	return &InMemory{
		sessions: make(map[uuid.UUID]*state.Session),
		rooms:    make(map[string]map[uuid.UUID]*state.Session),
		joined:   make(map[uuid.UUID]map[string]struct{}),
		logger:   logger.With(slog.String("component", "registry")),
	}
}

func (r *InMemory) Register(sess *state.Session) error {
	if sess == nil {
		return errors.New("cannot register nil session")
	}
	if sess.Status() != state.StatusActive {
		return errors.New("cannot register session before authentication completes")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[sess.ID]; exists {
		return errors.New("session is already registered")
	}
	r.sessions[sess.ID] = sess
	r.logger.Debug("session registered",
		slog.String("sessID", sess.ID.String()),
		slog.String("identityID", sess.Identity().ID),
	)
	return nil
}

func (r *InMemory) Deregister(sessID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[sessID]; !ok {
		// already deregistered, or never admitted
		return nil
	}
	for room := range r.joined[sessID] {
		r.removeMember(sessID, room)
	}
	delete(r.joined, sessID)
	delete(r.sessions, sessID)

	r.logger.Debug("session deregistered", slog.String("sessID", sessID.String()))
	return nil
}

func (r *InMemory) Get(sessID uuid.UUID) (*state.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[sessID]
	return sess, ok
}

func (r *InMemory) Sessions() []*state.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]*state.Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		all = append(all, sess)
	}
	return all
}

func (r *InMemory) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *InMemory) Join(sessID uuid.UUID, room string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[sessID]
	if !ok {
		return errors.New("cannot join room: session not registered")
	}
	if sess.Status() != state.StatusActive {
		return errors.New("cannot join room: session is not active")
	}

	members, exists := r.rooms[room]
	if !exists {
		members = make(map[uuid.UUID]*state.Session)
		r.rooms[room] = members
	}
	if _, already := members[sessID]; already {
		return nil
	}
	members[sessID] = sess

	joined, exists := r.joined[sessID]
	if !exists {
		joined = make(map[string]struct{})
		r.joined[sessID] = joined
	}
	joined[room] = struct{}{}

	r.logger.Debug("session joined room",
		slog.String("sessID", sessID.String()), slog.String("room", room))
	return nil
}

func (r *InMemory) Leave(sessID uuid.UUID, room string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if joined, ok := r.joined[sessID]; ok {
		delete(joined, room)
	}
	r.removeMember(sessID, room)

	r.logger.Debug("session left room",
		slog.String("sessID", sessID.String()), slog.String("room", room))
	return nil
}

func (r *InMemory) MembersOf(room string) []*state.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.rooms[room]
	out := make([]*state.Session, 0, len(members))
	for _, sess := range members {
		out = append(out, sess)
	}
	return out
}

func (r *InMemory) RoomsOf(sessID uuid.UUID) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	joined := r.joined[sessID]
	out := make([]string, 0, len(joined))
	for room := range joined {
		out = append(out, room)
	}
	return out
}

// removeMember drops the session from a room's member set and deletes the
// room when it empties. Caller holds the write lock.
func (r *InMemory) removeMember(sessID uuid.UUID, room string) {
	members, ok := r.rooms[room]
	if !ok {
		return
	}
	delete(members, sessID)
	if len(members) == 0 {
		delete(r.rooms, room)
	}
}
