// Package auth admits or rejects inbound connection attempts. A credential is
// extracted from the handshake, verified, and resolved to a full identity
// before the connection is allowed anywhere near the event layer.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/karimzahran/agora/internal/identity"
)

// ErrAuthentication is the umbrella failure for a rejected connection
// attempt. Every specific cause wraps it, so callers match once.
var (
	ErrAuthentication   = errors.New("authentication failed")
	ErrNoCredential     = fmt.Errorf("%w: no credential presented", ErrAuthentication)
	ErrInvalidToken     = fmt.Errorf("%w: invalid or expired token", ErrAuthentication)
	ErrIdentityNotFound = fmt.Errorf("%w: identity no longer exists", ErrAuthentication)
)

// Authenticator validates connection credentials and resolves identities.
// It runs exactly once per connection attempt, before event handling is
// wired up.
type Authenticator struct {
	verifier   Verifier
	store      identity.Store
	extractors []TokenExtractor
	timeout    time.Duration
	logger     *slog.Logger
}

func New(verifier Verifier, store identity.Store, timeout time.Duration, logger *slog.Logger) *Authenticator {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Authenticator{
		verifier:   verifier,
		store:      store,
		extractors: DefaultExtractors(),
		timeout:    timeout,
		logger:     logger.With(slog.String("component", "authenticator")),
	}
}

// Authenticate resolves the request's credential to an identity. Any failure,
// including an unreachable identity store, rejects the attempt: the relay
// never admits on uncertainty.
func (a *Authenticator) Authenticate(ctx context.Context, r *http.Request) (*identity.Identity, error) {
	token := ExtractToken(r, a.extractors)
	if token == "" {
		return nil, ErrNoCredential
	}

	subject, err := a.verifier.Verify(token)
	if err != nil {
		a.logger.Warn("credential verification failed", slog.Any("error", err))
		return nil, err
	}

	lookupCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	ident, err := a.store.Lookup(lookupCtx, subject)
	if errors.Is(err, identity.ErrNotFound) {
		a.logger.Warn("token subject has no identity record", slog.String("subject", subject))
		return nil, ErrIdentityNotFound
	}
	if err != nil {
		// fail closed
		a.logger.Error("identity store lookup failed", slog.Any("error", err))
		return nil, fmt.Errorf("%w: identity store unavailable", ErrAuthentication)
	}
	return ident, nil
}
