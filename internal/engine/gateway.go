package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/lazypower/personaflow/internal/llm"
	"github.com/lazypower/personaflow/internal/persona"
	"github.com/lazypower/personaflow/internal/store"
)

// Event is one host callback. Completion is empty for pre-request events.
type Event struct {
	SessionID  string `json:"session_id"`
	SenderName string `json:"sender_name"`
	SenderID   string `json:"sender_id"`
	Message    string `json:"message"`
	Completion string `json:"completion"`
	ProviderID string `json:"provider_id"`
}

// Injection tells the host which system prompt to use. When Applied is
// false the host keeps its default persona.
type Injection struct {
	Applied      bool   `json:"applied"`
	SystemPrompt string `json:"system_prompt,omitempty"`
	PersonaID    string `json:"persona_id,omitempty"`
	Reason       string `json:"reason,omitempty"`
}

// Outcome reports what a post-response event did. Failures are described in
// Error; they are never returned to the host.
type Outcome struct {
	EventID   string `json:"event_id"`
	Recorded  bool   `json:"recorded"`
	Count     int    `json:"count,omitempty"`
	Triggered bool   `json:"triggered"`
	Summary   string `json:"summary,omitempty"`
	Merged    bool   `json:"merged"`
	Skipped   string `json:"skipped,omitempty"`
	Stage     string `json:"stage,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Skip reasons.
const (
	skipSession  = "session not enabled"
	skipInternal = "internal prompt"
	skipEmpty    = "empty exchange"
	skipNoBase   = "no persona configured"
	skipNoPrompt = "no dynamic prompt"
)

func (e *Engine) allowed(sessionID string) bool {
	if len(e.cfg.ApplyToGroupChat) == 0 {
		return true
	}
	return lo.Contains(e.cfg.ApplyToGroupChat, sessionID)
}

func isInternal(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), llm.InternalSentinel)
}

// BeforeRequest returns the dynamic persona prompt to inject for ev. It never
// fails; any problem leaves the host's persona untouched.
func (e *Engine) BeforeRequest(ctx context.Context, ev Event) (inj Injection) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("before request panic", "panic", r)
			inj = Injection{Reason: "internal error"}
		}
	}()

	if !e.allowed(ev.SessionID) {
		return Injection{Reason: skipSession}
	}
	if isInternal(ev.Message) {
		return Injection{Reason: skipInternal}
	}
	id := e.PersonaID()
	if id == "" {
		e.log.Warn("personas_name is not set, leaving host persona alone")
		return Injection{Reason: skipNoBase}
	}

	prompt, ok, err := e.DynamicPrompt(ctx)
	if err != nil {
		e.log.Error("load dynamic prompt", "persona_id", id, "err", err)
		return Injection{PersonaID: id, Reason: "lookup failed"}
	}
	if !ok {
		return Injection{PersonaID: id, Reason: skipNoPrompt}
	}
	return Injection{Applied: true, SystemPrompt: prompt, PersonaID: id}
}

// AfterResponse records the exchange and, on a threshold multiple, refreshes
// the user's relationship and the dynamic persona. Each stage failure is
// logged and stops the stages after it; writes already committed stay.
func (e *Engine) AfterResponse(ctx context.Context, ev Event) (out Outcome) {
	out.EventID = uuid.NewString()
	logger := e.log.With("event_id", out.EventID, "user_id", ev.SenderID)

	fail := func(stage string, err error) Outcome {
		logger.Error("stage failed", "stage", stage, "err", err)
		out.Stage = stage
		out.Error = err.Error()
		return out
	}

	defer func() {
		if r := recover(); r != nil {
			out = fail("panic", fmt.Errorf("%v", r))
		}
	}()

	if !e.allowed(ev.SessionID) {
		logger.Debug("session not enabled", "session_id", ev.SessionID)
		out.Skipped = skipSession
		return out
	}
	if ev.Message == "" || ev.Completion == "" || ev.SenderID == "" {
		out.Skipped = skipEmpty
		return out
	}
	if isInternal(ev.Message) {
		out.Skipped = skipInternal
		return out
	}

	ex := Exchange{
		UserID:   ev.SenderID,
		Name:     ev.SenderName,
		UserText: ev.Message,
		AIText:   ev.Completion,
		Provider: ev.ProviderID,
	}
	if ex.Name == "" {
		ex.Name = "unknown user"
	}

	count, err := e.Record(ctx, ex)
	if err != nil {
		return fail("record", err)
	}
	out.Recorded = true
	out.Count = count

	if !ShouldSummarize(count, e.cfg.SummaryTriggerThreshold) {
		return out
	}
	out.Triggered = true
	logger.Info("summary threshold reached", "count", count)

	summary, err := e.Summarize(ctx, ex)
	if err != nil {
		return fail("summarize", err)
	}
	out.Summary = summary

	base := e.cfg.PersonasName
	if base == "" {
		logger.Warn("personas_name is not set, skipping persona merge")
		out.Skipped = skipNoBase
		return out
	}

	db, err := e.db.Get(ctx)
	if err != nil {
		return fail("merge", err)
	}
	all, err := db.ListImpressions()
	if err != nil {
		return fail("merge", err)
	}
	if _, err := e.merger.Merge(ctx, db, base, persona.FormatRoster(all)); err != nil {
		if errors.Is(err, persona.ErrTemplateNotFound) {
			logger.Warn("base persona not found, skipping merge", "persona", base)
			out.Skipped = err.Error()
			return out
		}
		return fail("merge", err)
	}
	out.Merged = true
	return out
}

// DynamicPrompt returns the dynamic persona prompt, from cache when possible.
func (e *Engine) DynamicPrompt(ctx context.Context) (string, bool, error) {
	id := e.PersonaID()
	if id == "" {
		return "", false, nil
	}
	return e.cache.Load(ctx, id, func(ctx context.Context) (string, bool, error) {
		db, err := e.db.Get(ctx)
		if err != nil {
			return "", false, err
		}
		p, err := db.GetDynamicPersona(id)
		if err != nil {
			return "", false, err
		}
		if p == nil {
			return "", false, nil
		}
		return p.SystemPrompt, true, nil
	})
}

// Impressions lists every stored user record.
func (e *Engine) Impressions(ctx context.Context) ([]store.Impression, error) {
	db, err := e.db.Get(ctx)
	if err != nil {
		return nil, err
	}
	return db.ListImpressions()
}

// DeleteImpression forgets a user: their impression row and every logged
// message. The prompt cache is dropped because the rendered prompt was built
// from all users. Returns store.ErrNotFound for an unknown user.
func (e *Engine) DeleteImpression(ctx context.Context, userID string) error {
	db, err := e.db.Get(ctx)
	if err != nil {
		return err
	}
	found, err := db.DeleteUser(userID)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("user %s: %w", userID, store.ErrNotFound)
	}
	e.cache.InvalidateAll()
	e.log.Info("deleted user data", "user_id", userID)
	return nil
}
