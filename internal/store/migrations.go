package store

import (
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "impressions: per-user relationship and dialogue counter",
		SQL: `
CREATE TABLE impressions (
    user_id        TEXT PRIMARY KEY,
    name           TEXT NOT NULL,
    relationship   TEXT,
    impression     TEXT,
    dialogue_count INTEGER NOT NULL DEFAULT 0 CHECK (dialogue_count >= 0),
    created_at     INTEGER NOT NULL,
    updated_at     INTEGER NOT NULL
);
`,
	},
	{
		Version:     2,
		Description: "messages: append-only merged exchange log",
		SQL: `
CREATE TABLE messages (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id    TEXT NOT NULL,
    message    TEXT NOT NULL,
    created_at INTEGER NOT NULL
);

CREATE INDEX idx_messages_user_time ON messages(user_id, created_at DESC, id DESC);
`,
	},
	{
		Version:     3,
		Description: "dynamic_personas: rendered system prompts per persona",
		SQL: `
CREATE TABLE dynamic_personas (
    id            INTEGER PRIMARY KEY,
    persona_id    TEXT NOT NULL UNIQUE,
    system_prompt TEXT NOT NULL,
    begin_dialogs TEXT,
    tools         TEXT,
    created_at    INTEGER NOT NULL,
    updated_at    INTEGER NOT NULL
);
`,
	},
}

func (db *DB) migrate() error {
	// Create schema_versions table if it doesn't exist
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the current schema version.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}
