package store

import (
	"fmt"
	"time"

	"github.com/samber/lo"
)

// AppendMessage logs one merged exchange line for userID.
func (db *DB) AppendMessage(userID, text string) error {
	return db.write(func() error {
		_, err := db.Exec(`
			INSERT INTO messages (user_id, message, created_at)
			VALUES (?, ?, ?)
		`, userID, text, time.Now().UnixMilli())
		if err != nil {
			return fmt.Errorf("append message: %w", err)
		}
		return nil
	})
}

// RecentMessages returns up to limit of the user's most recent log lines,
// oldest first.
func (db *DB) RecentMessages(userID string, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := db.Query(`
		SELECT message FROM messages
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent messages: %w", err)
	}
	defer rows.Close()

	var messages []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return lo.Reverse(messages), nil
}
