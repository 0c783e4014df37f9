package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lazypower/personaflow/internal/llm"
	"github.com/lazypower/personaflow/internal/store"
)

// ErrNoResult means every summarization attempt failed. State is unchanged.
var ErrNoResult = errors.New("summarization produced no result")

// Summarize asks the model for the user's relationship and impression,
// persists them, and returns the one-line summary. Each attempt runs under
// the configured LLM timeout; a transport error, timeout or unparseable
// reply consumes one attempt.
func (e *Engine) Summarize(ctx context.Context, ex Exchange) (string, error) {
	db, err := e.db.Get(ctx)
	if err != nil {
		return "", err
	}

	history, err := db.RecentMessages(ex.UserID, e.cfg.SummaryHistoryCount)
	if err != nil {
		return "", fmt.Errorf("load history: %w", err)
	}
	imp, err := db.GetImpression(ex.UserID)
	if err != nil {
		return "", fmt.Errorf("load prior impression: %w", err)
	}

	req := llm.Request{
		System:   e.personaFraming(ctx),
		Prompt:   llm.SummaryPrompt(ex.Name, history, priorText(imp)),
		Provider: ex.Provider,
	}

	logger := e.log.With("user_id", ex.UserID)
	logger.Info("summarizing relationship", "name", ex.Name, "history", len(history))

	attempts := e.cfg.SummaryMaxRetries
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			logger.Info("retrying summarization", "attempt", attempt+1, "of", attempts)
			if err := sleepCtx(ctx, e.cfg.RetryBackoff.Duration); err != nil {
				return "", err
			}
		}

		s, err := e.attempt(ctx, req)
		if err != nil {
			lastErr = err
			logger.Warn("summarization attempt failed", "attempt", attempt+1, "err", err)
			continue
		}

		if err := db.SetRelationship(ex.UserID, s.Relationship, s.Impression); err != nil {
			return "", fmt.Errorf("store summary: %w", err)
		}
		logger.Info("relationship updated", "relationship", s.Relationship)
		return FormatSummary(ex.Name, ex.UserID, s), nil
	}

	logger.Error("summarization exhausted retries, skipping this cycle", "attempts", attempts, "err", lastErr)
	return "", fmt.Errorf("%w after %d attempts: %v", ErrNoResult, attempts, lastErr)
}

func (e *Engine) attempt(ctx context.Context, req llm.Request) (Summary, error) {
	if d := e.cfg.LLMTimeout.Duration; d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	resp, err := e.llm.Complete(ctx, req)
	if err != nil {
		return Summary{}, err
	}
	if resp == nil {
		return Summary{}, errors.New("empty llm response")
	}

	result := ParseSummary(resp.Content, e.literal)
	if !result.OK {
		return Summary{}, fmt.Errorf("unparseable summary: %.80q", resp.Content)
	}
	e.log.Debug("parsed summary", "tier", result.Tier)
	return validateSummary(result.Summary, e.log), nil
}

// FormatSummary renders a stored verdict as a single line.
func FormatSummary(name, userID string, s Summary) string {
	return fmt.Sprintf("%s(%s)%s impression: %s.", name, s.Relationship, userID, s.Impression)
}

func priorText(imp *store.Impression) string {
	if imp == nil || !imp.HasRecord() {
		return ""
	}
	return fmt.Sprintf("relationship: %s, impression: %s", deref(imp.Relationship), deref(imp.Impression))
}

func deref(s *string) string {
	if s == nil {
		return "none"
	}
	return *s
}

// personaFraming is the system prompt the model summarizes as: the current
// dynamic prompt, else the base template, else nothing.
func (e *Engine) personaFraming(ctx context.Context) string {
	base := e.cfg.PersonasName
	if base == "" {
		return ""
	}
	p, ok, err := e.DynamicPrompt(ctx)
	if err != nil {
		e.log.Warn("load dynamic prompt for framing", "err", err)
	}
	if ok {
		return p
	}
	if tpl, ok := e.templates.Template(base); ok {
		return tpl.SystemPrompt
	}
	return ""
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
