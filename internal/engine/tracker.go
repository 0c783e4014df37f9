package engine

import (
	"context"
	"fmt"
)

// Exchange is one user message and the AI reply to it.
type Exchange struct {
	UserID   string
	Name     string
	UserText string
	AIText   string
	Provider string
}

// FormatExchange merges an exchange into the single line stored in the log.
// Texts are quoted as-is, without escaping.
func FormatExchange(name, userText, personaName, aiText string) string {
	return fmt.Sprintf("%s: \"%s\" %s: \"%s\"", name, userText, personaName, aiText)
}

// ShouldSummarize reports whether the post-increment count lands on a
// threshold multiple. A zero count never triggers.
func ShouldSummarize(count, threshold int) bool {
	if threshold <= 0 {
		return false
	}
	return count > 0 && count%threshold == 0
}

// Record logs the exchange, creates or renames the user's row and bumps the
// dialogue counter. It returns the counter after the increment.
func (e *Engine) Record(ctx context.Context, ex Exchange) (int, error) {
	db, err := e.db.Get(ctx)
	if err != nil {
		return 0, err
	}

	line := FormatExchange(ex.Name, ex.UserText, e.displayName, ex.AIText)
	if err := db.AppendMessage(ex.UserID, line); err != nil {
		return 0, err
	}

	created, err := db.EnsureImpression(ex.UserID, ex.Name)
	if err != nil {
		return 0, err
	}
	if created {
		e.log.Debug("new user", "user_id", ex.UserID, "name", ex.Name)
	}

	return db.IncrementDialogueCount(ex.UserID)
}
