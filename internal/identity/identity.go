// Package identity resolves authenticated subject IDs to user records. The
// relay only reads identities; account management lives in the surrounding
// application.
package identity

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a subject ID has no identity record, e.g. a
// deleted account presenting a still-valid token.
var ErrNotFound = errors.New("identity not found")

// Identity is the authenticated principal behind one or more connections.
// Resolved once at connection admission and immutable afterwards.
type Identity struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Store is the read-only lookup interface backed by the application's user
// database.
type Store interface {
	Lookup(ctx context.Context, id string) (*Identity, error)
}
