// Package migrations embeds the schema and applies it with goose.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"path"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	"github.com/pressly/goose/v3/lock"
	"github.com/rs/zerolog/log"
)

//go:embed *.sql
var files embed.FS

// newProvider holds a Postgres advisory lock for the whole run so that
// concurrent starters apply each version once.
func newProvider(db *sql.DB) (*goose.Provider, error) {
	locker, err := lock.NewPostgresSessionLocker()
	if err != nil {
		return nil, fmt.Errorf("create migration locker: %w", err)
	}
	return goose.NewProvider(goose.DialectPostgres, db, files, goose.WithSessionLocker(locker))
}

// Apply brings the schema up to the newest embedded version. Versions are
// recorded in goose_db_version; each file runs in its own transaction.
func Apply(ctx context.Context, db *sqlx.DB) error {
	provider, err := newProvider(db.DB)
	if err != nil {
		return err
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	for _, r := range results {
		log.Info().
			Int64("version", r.Source.Version).
			Str("migration", path.Base(r.Source.Path)).
			Dur("duration", r.Duration).
			Msg("Migration applied")
	}
	return nil
}
