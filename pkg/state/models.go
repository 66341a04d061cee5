package state

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/karimzahran/agora/internal/identity"
)

// Transport is the send side of one live bidirectional channel.
// *transport.Connection satisfies it; tests substitute recorders.
type Transport interface {
	ID() uuid.UUID
	Send(message []byte)
	Close(err error)
}

// Status tracks a session through its lifecycle. Transitions only move
// forward; Closed is terminal.
type Status int32

const (
	StatusConnecting Status = iota
	StatusAuthenticating
	StatusActive
	StatusClosed
)

func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusAuthenticating:
		return "authenticating"
	case StatusActive:
		return "active"
	case StatusClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session is the per-connection record owned by the lifecycle manager. The
// identity binds exactly once, on successful authentication, and is
// referenced everywhere else.
type Session struct {
	ID        uuid.UUID
	IPAddress string
	CreatedAt time.Time

	status    atomic.Int32
	identity  *identity.Identity
	transport Transport
	limiter   *rate.Limiter
}

// NewSession creates a session in the Connecting state.
func NewSession(ipAddr string, eventRate float64, eventBurst int) *Session {
	if eventRate <= 0 {
		eventRate = 20
	}
	if eventBurst <= 0 {
		eventBurst = 40
	}
	return &Session{
		ID:        uuid.New(),
		IPAddress: ipAddr,
		CreatedAt: time.Now(),
		limiter:   rate.NewLimiter(rate.Limit(eventRate), eventBurst),
	}
}

// BeginAuth marks the session as Authenticating. Returns false if the
// session already moved past Connecting.
func (s *Session) BeginAuth() bool {
	return s.status.CompareAndSwap(int32(StatusConnecting), int32(StatusAuthenticating))
}

// Activate binds the resolved identity and transport and marks the session
// Active. Only valid from Authenticating.
func (s *Session) Activate(ident *identity.Identity, t Transport) bool {
	if ident == nil || t == nil {
		return false
	}
	// Bind before publishing the state so no reader observes an Active
	// session without an identity.
	s.identity = ident
	s.transport = t
	return s.status.CompareAndSwap(int32(StatusAuthenticating), int32(StatusActive))
}

// MarkClosed transitions the session to the terminal state. Returns true for
// exactly one caller, which must run the cleanup path.
func (s *Session) MarkClosed() bool {
	for {
		cur := s.status.Load()
		if cur == int32(StatusClosed) {
			return false
		}
		if s.status.CompareAndSwap(cur, int32(StatusClosed)) {
			return true
		}
	}
}

func (s *Session) Status() Status {
	return Status(s.status.Load())
}

// Identity returns the bound identity, nil before activation.
func (s *Session) Identity() *identity.Identity {
	return s.identity
}

// Transport returns the bound transport, nil before activation.
func (s *Session) Transport() Transport {
	return s.transport
}

// AllowEvent reports whether the per-session inbound budget admits another
// event right now.
func (s *Session) AllowEvent() bool {
	return s.limiter.Allow()
}

// Send forwards a message to the session's transport if it is active.
func (s *Session) Send(message []byte) {
	if s.Status() != StatusActive || s.transport == nil {
		return
	}
	s.transport.Send(message)
}
