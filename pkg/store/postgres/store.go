package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/amrmuhaffez/muhaffez/pkg/store"
)

var (
	_ store.LineIndex  = (*LineIndex)(nil)
	_ store.SessionLog = (*SessionLog)(nil)
)

// Store owns the connection pool and hands out the two stores built on it.
type Store struct {
	pool     *pgxpool.Pool
	lines    *LineIndex
	sessions *SessionLog
}

// NewStore connects to dsn, registers pgvector types on every connection,
// and runs [Migrate].
func NewStore(ctx context.Context, dsn string, dims int) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: parse dsn: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}
	if err := Migrate(ctx, pool, dims); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: migrate: %w", err)
	}

	return &Store{
		pool:     pool,
		lines:    &LineIndex{pool: pool},
		sessions: &SessionLog{pool: pool},
	}, nil
}

// Lines returns the vector index over corpus lines.
func (s *Store) Lines() *LineIndex { return s.lines }

// Sessions returns the session summary log.
func (s *Store) Sessions() *SessionLog { return s.sessions }

// Ping checks connectivity. Used by the readiness probe.
func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// Close releases all pooled connections.
func (s *Store) Close() { s.pool.Close() }
