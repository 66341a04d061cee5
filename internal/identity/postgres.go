package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore looks identities up in the application's Postgres user table.
type PGStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PGStore)(nil)

func NewPGStore(ctx context.Context, databaseURL string) (*PGStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create identity pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach identity database: %w", err)
	}
	return &PGStore{pool: pool}, nil
}

func (s *PGStore) Lookup(ctx context.Context, id string) (*Identity, error) {
	var ident Identity
	err := s.pool.QueryRow(ctx,
		`SELECT id, username, email FROM users WHERE id = $1`, id,
	).Scan(&ident.ID, &ident.Username, &ident.Email)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("identity lookup for '%s' failed: %w", id, err)
	}
	return &ident, nil
}

func (s *PGStore) Close() {
	s.pool.Close()
}
