package history

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion tracks schema.sql. Ledgers from another version are refused
// rather than migrated; deleting the file starts a fresh one.
const schemaVersion = 1

// ErrSchemaMismatch reports a ledger written with a different schemaVersion.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// ensureSchema creates the tables in a fresh database, or checks the
// recorded version of an existing one.
func (s *Store) ensureSchema(ctx context.Context) error {
	version, found, err := s.storedVersion(ctx)
	switch {
	case err != nil:
		return err
	case !found:
		return s.withTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
				return fmt.Errorf("create schema: %w", err)
			}
			_, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion)
			return err
		})
	case version != schemaVersion:
		return fmt.Errorf("%w: %s is at version %d, this build expects %d",
			ErrSchemaMismatch, s.path, version, schemaVersion)
	}
	return nil
}

func (s *Store) storedVersion(ctx context.Context) (version int, found bool, err error) {
	var tables int
	err = s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type = 'table' AND name = 'schema_version'",
	).Scan(&tables)
	if err != nil {
		return 0, false, fmt.Errorf("inspect schema: %w", err)
	}
	if tables == 0 {
		return 0, false, nil
	}
	err = s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, fmt.Errorf("read schema version: %s has an empty schema_version table", s.path)
	}
	if err != nil {
		return 0, false, fmt.Errorf("read schema version: %w", err)
	}
	return version, true, nil
}
