package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Impression is one user's relationship record as seen by the persona.
type Impression struct {
	UserID        string
	Name          string
	Relationship  *string
	Impression    *string
	DialogueCount int
	CreatedAt     int64
	UpdatedAt     int64
}

// HasRecord reports whether a summarization has ever populated the row.
func (i *Impression) HasRecord() bool {
	return i.Relationship != nil || i.Impression != nil
}

const impressionColumns = `user_id, name, relationship, impression, dialogue_count, created_at, updated_at`

func scanImpression(row interface{ Scan(...any) error }) (*Impression, error) {
	var imp Impression
	var rel, text sql.NullString
	if err := row.Scan(&imp.UserID, &imp.Name, &rel, &text, &imp.DialogueCount, &imp.CreatedAt, &imp.UpdatedAt); err != nil {
		return nil, err
	}
	if rel.Valid {
		imp.Relationship = &rel.String
	}
	if text.Valid {
		imp.Impression = &text.String
	}
	return &imp, nil
}

// GetImpression returns the record for userID, or nil if there is none.
func (db *DB) GetImpression(userID string) (*Impression, error) {
	imp, err := scanImpression(db.QueryRow(
		`SELECT `+impressionColumns+` FROM impressions WHERE user_id = ?`, userID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get impression: %w", err)
	}
	return imp, nil
}

// UpsertImpression creates the record with a zero dialogue count, or updates
// the name of an existing one. Relationship and impression are only written
// when non-nil, so a plain upsert never clears a prior summary.
func (db *DB) UpsertImpression(userID, name string, relationship, impression *string) error {
	now := time.Now().UnixMilli()
	return db.write(func() error {
		_, err := db.Exec(`
			INSERT INTO impressions (user_id, name, relationship, impression, dialogue_count, created_at, updated_at)
			VALUES (?, ?, ?, ?, 0, ?, ?)
			ON CONFLICT(user_id) DO UPDATE SET
				name         = excluded.name,
				relationship = COALESCE(excluded.relationship, impressions.relationship),
				impression   = COALESCE(excluded.impression, impressions.impression),
				updated_at   = excluded.updated_at
		`, userID, name, relationship, impression, now, now)
		if err != nil {
			return fmt.Errorf("upsert impression: %w", err)
		}
		return nil
	})
}

// EnsureImpression inserts a fresh record for userID if none exists, or
// renames the existing one when the observed name changed. Relationship and
// impression are never touched. Reports whether a row was created.
func (db *DB) EnsureImpression(userID, name string) (bool, error) {
	var created bool
	err := db.withTx(func(tx *sql.Tx) error {
		now := time.Now().UnixMilli()

		var stored string
		err := tx.QueryRow(`SELECT name FROM impressions WHERE user_id = ?`, userID).Scan(&stored)
		switch {
		case err == sql.ErrNoRows:
			if _, err := tx.Exec(`
				INSERT INTO impressions (user_id, name, dialogue_count, created_at, updated_at)
				VALUES (?, ?, 0, ?, ?)
			`, userID, name, now, now); err != nil {
				return fmt.Errorf("insert impression: %w", err)
			}
			created = true
			return nil
		case err != nil:
			return fmt.Errorf("check impression: %w", err)
		}

		if stored == name {
			return nil
		}
		if _, err := tx.Exec(`UPDATE impressions SET name = ?, updated_at = ? WHERE user_id = ?`, name, now, userID); err != nil {
			return fmt.Errorf("rename impression: %w", err)
		}
		return nil
	})
	return created, err
}

// IncrementDialogueCount adds one to the user's counter and returns the new value.
func (db *DB) IncrementDialogueCount(userID string) (int, error) {
	var count int
	err := db.write(func() error {
		err := db.QueryRow(`
			UPDATE impressions SET dialogue_count = dialogue_count + 1, updated_at = ?
			WHERE user_id = ?
			RETURNING dialogue_count
		`, time.Now().UnixMilli(), userID).Scan(&count)
		if err == sql.ErrNoRows {
			return fmt.Errorf("increment dialogue count for %s: %w", userID, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("increment dialogue count: %w", err)
		}
		return nil
	})
	return count, err
}

// SetRelationship overwrites the summarized relationship and impression.
func (db *DB) SetRelationship(userID, relationship, impression string) error {
	return db.write(func() error {
		result, err := db.Exec(`
			UPDATE impressions SET relationship = ?, impression = ?, updated_at = ?
			WHERE user_id = ?
		`, relationship, impression, time.Now().UnixMilli(), userID)
		if err != nil {
			return fmt.Errorf("set relationship: %w", err)
		}
		rows, _ := result.RowsAffected()
		if rows == 0 {
			return fmt.Errorf("set relationship for %s: %w", userID, ErrNotFound)
		}
		return nil
	})
}

// ListImpressions returns every record, oldest first.
func (db *DB) ListImpressions() ([]Impression, error) {
	rows, err := db.Query(`SELECT ` + impressionColumns + ` FROM impressions ORDER BY created_at ASC, user_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list impressions: %w", err)
	}
	defer rows.Close()

	var out []Impression
	for rows.Next() {
		imp, err := scanImpression(rows)
		if err != nil {
			return nil, fmt.Errorf("scan impression: %w", err)
		}
		out = append(out, *imp)
	}
	return out, rows.Err()
}

// DeleteUser removes the user's impression and every logged message in one
// transaction. Reports false when the user had no impression row.
func (db *DB) DeleteUser(userID string) (bool, error) {
	var found bool
	err := db.withTx(func(tx *sql.Tx) error {
		result, err := tx.Exec(`DELETE FROM impressions WHERE user_id = ?`, userID)
		if err != nil {
			return fmt.Errorf("delete impression: %w", err)
		}
		rows, _ := result.RowsAffected()
		found = rows > 0
		if !found {
			return nil
		}
		if _, err := tx.Exec(`DELETE FROM messages WHERE user_id = ?`, userID); err != nil {
			return fmt.Errorf("delete messages: %w", err)
		}
		return nil
	})
	return found, err
}
