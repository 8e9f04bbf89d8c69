package cache

import (
	"context"
	"embed"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// runMigrations applies every embedded migration that has not yet run,
// tracked in a schema_migrations table. Adapted from the teacher's
// internal/storage/migrations.go, scoped down to this package's single
// table instead of the whole application's schema.
func runMigrations(ctx context.Context, p *Postgres) error {
	if _, err := p.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS token_cache_schema_migrations (
			filename TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`); err != nil {
		return fmt.Errorf("cache: create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("cache: read migrations dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	rows, err := p.pool.Query(ctx, `SELECT filename FROM token_cache_schema_migrations`)
	if err != nil {
		return fmt.Errorf("cache: query applied migrations: %w", err)
	}
	applied := make(map[string]bool)
	for rows.Next() {
		var f string
		if err := rows.Scan(&f); err != nil {
			rows.Close()
			return fmt.Errorf("cache: scan applied migration: %w", err)
		}
		applied[f] = true
	}
	rows.Close()

	for _, file := range files {
		if applied[file] {
			continue
		}
		content, err := migrationsFS.ReadFile("migrations/" + file)
		if err != nil {
			return fmt.Errorf("cache: read migration %s: %w", file, err)
		}

		tx, err := p.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("cache: begin tx for %s: %w", file, err)
		}
		if _, err := tx.Exec(ctx, string(content)); err != nil {
			tx.Rollback(ctx)
			return fmt.Errorf("cache: apply migration %s: %w", file, err)
		}
		if _, err := tx.Exec(ctx, `INSERT INTO token_cache_schema_migrations (filename) VALUES ($1)`, file); err != nil {
			tx.Rollback(ctx)
			return fmt.Errorf("cache: record migration %s: %w", file, err)
		}
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("cache: commit migration %s: %w", file, err)
		}
		log.Info().Str("file", file).Msg("cache: migration applied")
	}

	return nil
}
