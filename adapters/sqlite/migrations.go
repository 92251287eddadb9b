package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"
)

// Schema version tracking (PRAGMA user_version):
// 0 - empty database
// 1 - audios table with created_at and source_text indexes
// 2 - translation, voice_profile and duration_seconds columns
const currentSchemaVersion = 2

// migrate brings the database schema up to currentSchemaVersion. Each
// step is idempotent when re-entered after a partial upgrade.
func migrate(ctx context.Context, db *sql.DB, logger *zap.Logger) error {
	var version int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}
	if version >= currentSchemaVersion {
		return nil
	}

	logger.Info("Upgrading database schema",
		zap.Int("from", version),
		zap.Int("to", currentSchemaVersion))

	if version < 1 {
		if err := migrateToV1(ctx, db); err != nil {
			return err
		}
	}
	if version < 2 {
		if err := migrateToV2(ctx, db); err != nil {
			return err
		}
	}

	if _, err := db.ExecContext(ctx,
		fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

func migrateToV1(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS audios (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			audio_data BLOB NOT NULL,
			source_text TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			byte_size INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audios_created_at ON audios(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_audios_source_text ON audios(source_text)`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate to v1: %w", err)
		}
	}
	return nil
}

// migrateToV2 adds the columns introduced after the first release.
// ALTER TABLE ADD COLUMN has no IF NOT EXISTS, so existing columns are
// checked first to keep the step re-entrant.
func migrateToV2(ctx context.Context, db *sql.DB) error {
	columns := map[string]string{
		"translation":      `ALTER TABLE audios ADD COLUMN translation TEXT NOT NULL DEFAULT ''`,
		"voice_profile":    `ALTER TABLE audios ADD COLUMN voice_profile TEXT NOT NULL DEFAULT 'af_heart'`,
		"duration_seconds": `ALTER TABLE audios ADD COLUMN duration_seconds REAL`,
	}
	existing, err := tableColumns(ctx, db, "audios")
	if err != nil {
		return fmt.Errorf("migrate to v2: %w", err)
	}
	for name, stmt := range columns {
		if existing[name] {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate to v2: add %s: %w", name, err)
		}
	}
	return nil
}

func tableColumns(ctx context.Context, db *sql.DB, table string) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns := make(map[string]bool)
	for rows.Next() {
		var (
			cid        int
			name       string
			colType    string
			notNull    int
			defaultVal sql.NullString
			primaryKey int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &defaultVal, &primaryKey); err != nil {
			return nil, err
		}
		columns[name] = true
	}
	return columns, rows.Err()
}
