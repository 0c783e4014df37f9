package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// DynamicPersona is a base persona's system prompt with impressions rendered in.
type DynamicPersona struct {
	ID           int64
	PersonaID    string
	SystemPrompt string
	BeginDialogs json.RawMessage
	Tools        json.RawMessage
	CreatedAt    int64
	UpdatedAt    int64
}

// GetDynamicPersona returns the stored persona, or nil if there is none.
func (db *DB) GetDynamicPersona(personaID string) (*DynamicPersona, error) {
	var p DynamicPersona
	var dialogs, tools sql.NullString
	err := db.QueryRow(`
		SELECT id, persona_id, system_prompt, begin_dialogs, tools, created_at, updated_at
		FROM dynamic_personas WHERE persona_id = ?
	`, personaID).Scan(&p.ID, &p.PersonaID, &p.SystemPrompt, &dialogs, &tools, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get dynamic persona: %w", err)
	}
	if dialogs.Valid {
		p.BeginDialogs = json.RawMessage(dialogs.String)
	}
	if tools.Valid {
		p.Tools = json.RawMessage(tools.String)
	}
	return &p, nil
}

// UpsertDynamicPersona writes prompt as the persona's system prompt. A new row
// copies beginDialogs and tools verbatim; an existing row only has its prompt
// and updated_at replaced. Reports whether a row was created.
func (db *DB) UpsertDynamicPersona(personaID, prompt string, beginDialogs, tools json.RawMessage) (bool, error) {
	var created bool
	err := db.withTx(func(tx *sql.Tx) error {
		now := time.Now().UnixMilli()

		result, err := tx.Exec(`
			UPDATE dynamic_personas SET system_prompt = ?, updated_at = ?
			WHERE persona_id = ?
		`, prompt, now, personaID)
		if err != nil {
			return fmt.Errorf("update dynamic persona: %w", err)
		}
		if rows, _ := result.RowsAffected(); rows > 0 {
			return nil
		}

		if _, err := tx.Exec(`
			INSERT INTO dynamic_personas (persona_id, system_prompt, begin_dialogs, tools, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, personaID, prompt, nullableJSON(beginDialogs), nullableJSON(tools), now, now); err != nil {
			return fmt.Errorf("insert dynamic persona: %w", err)
		}
		created = true
		return nil
	})
	return created, err
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
