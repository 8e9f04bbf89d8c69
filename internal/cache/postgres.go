package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// Postgres implements Store against a shared Postgres database, so a
// code minted by one process survives a restart and is redeemable by
// any other process sharing the database. Adapted from the teacher's
// internal/storage/invite_tokens.go single-use invite-token pattern
// (a row with a nullable used_at column) generalized from "invite
// acceptance" to a generic opaque-handle cache.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to dsn, runs this package's migration, and
// returns a ready-to-use Store.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("cache: connect to postgres: %w", err)
	}
	p := &Postgres{pool: pool}
	if err := runMigrations(ctx, p); err != nil {
		pool.Close()
		return nil, err
	}
	log.Info().Msg("Postgres single-use cache initialized")
	return p, nil
}

// Put implements Store with an upsert: a handle collision (astronomically
// unlikely for 256-bit random handles) overwrites the prior entry and
// resets consumed_at, matching §4.3's "overwrite-allowed" contract.
func (p *Postgres) Put(handle, blob string, expiresAt time.Time) error {
	ctx := context.Background()
	_, err := p.pool.Exec(ctx, `
		INSERT INTO token_cache_entries (handle, blob, expires_at, consumed_at)
		VALUES ($1, $2, $3, NULL)
		ON CONFLICT (handle) DO UPDATE SET
			blob = EXCLUDED.blob,
			expires_at = EXCLUDED.expires_at,
			consumed_at = NULL
	`, handle, blob, expiresAt)
	if err != nil {
		return fmt.Errorf("cache: postgres put: %w", err)
	}
	return nil
}

// Take implements Store's atomic get-and-remove via a single UPDATE ...
// RETURNING guarded by `consumed_at IS NULL`: only the first concurrent
// caller's UPDATE matches the row, satisfying P3.
func (p *Postgres) Take(handle string) (string, bool) {
	ctx := context.Background()
	var blob string
	err := p.pool.QueryRow(ctx, `
		UPDATE token_cache_entries
		SET consumed_at = NOW()
		WHERE handle = $1 AND consumed_at IS NULL AND expires_at > NOW()
		RETURNING blob
	`, handle).Scan(&blob)
	if err != nil {
		if err != pgx.ErrNoRows {
			log.Warn().Err(err).Msg("cache: postgres take failed")
		}
		return "", false
	}
	return blob, true
}

// Remove implements Store.
func (p *Postgres) Remove(handle string) {
	ctx := context.Background()
	if _, err := p.pool.Exec(ctx, `DELETE FROM token_cache_entries WHERE handle = $1`, handle); err != nil {
		log.Warn().Err(err).Msg("cache: postgres remove failed")
	}
}

// Close releases the underlying connection pool.
func (p *Postgres) Close() {
	p.pool.Close()
}
