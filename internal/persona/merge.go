package persona

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/lazypower/personaflow/internal/cache"
	"github.com/lazypower/personaflow/internal/store"
)

// ImpressionPlaceholder is replaced with the rendered impressions.
const ImpressionPlaceholder = "{Impression}"

// fallbackLabel introduces impressions appended to a template without a
// placeholder.
const fallbackLabel = "Impressions of users: "

// ErrTemplateNotFound is returned when the base persona does not exist.
var ErrTemplateNotFound = errors.New("persona template not found")

// Render substitutes summary for every placeholder in tpl, or appends it as
// a labelled block when tpl has none. It reports whether the placeholder was
// found.
func Render(tpl, summary string) (string, bool) {
	if strings.Contains(tpl, ImpressionPlaceholder) {
		return strings.ReplaceAll(tpl, ImpressionPlaceholder, summary), true
	}
	return tpl + "\n\n" + fallbackLabel + summary, false
}

// DynamicID is the persona id the rendered variant of baseID is stored under.
func DynamicID(baseID, suffix string) string {
	return baseID + suffix
}

// Store is the write side the merger needs.
type Store interface {
	UpsertDynamicPersona(personaID, prompt string, beginDialogs, tools json.RawMessage) (bool, error)
}

// Merger renders impressions into a base template and persists the result.
type Merger struct {
	Templates Templates
	Cache     *cache.PromptCache
	Suffix    string
	Log       *log.Logger
}

// Merge writes the dynamic variant of baseID with summary rendered in and
// returns the merged prompt. The cache is only updated after the write
// succeeds.
func (m *Merger) Merge(ctx context.Context, st Store, baseID, summary string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	tpl, ok := m.Templates.Template(baseID)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrTemplateNotFound, baseID)
	}

	merged, found := Render(tpl.SystemPrompt, summary)
	if !found && m.Log != nil {
		m.Log.Warn("template has no impression placeholder, appending", "persona", baseID, "placeholder", ImpressionPlaceholder)
	}

	id := DynamicID(baseID, m.Suffix)
	created, err := st.UpsertDynamicPersona(id, merged, tpl.BeginDialogs, tpl.Tools)
	if err != nil {
		return "", fmt.Errorf("persist dynamic persona: %w", err)
	}
	if m.Cache != nil {
		m.Cache.Set(id, merged)
	}
	if m.Log != nil {
		m.Log.Info("dynamic persona updated", "persona_id", id, "created", created)
	}
	return merged, nil
}

// FormatRoster renders every user's relationship as the block merged into
// the persona prompt.
func FormatRoster(impressions []store.Impression) string {
	if len(impressions) == 0 {
		return "No known relationships or impressions yet."
	}
	lines := make([]string, 0, len(impressions)+1)
	lines = append(lines, "Known relationships:")
	for _, imp := range impressions {
		lines = append(lines, fmt.Sprintf("%s(%s), relationship: %s, impression: %s.",
			imp.Name, imp.UserID, orNone(imp.Relationship), orNone(imp.Impression)))
	}
	return strings.Join(lines, "\n")
}

// FormatReport renders the administrative listing of stored impressions.
func FormatReport(impressions []store.Impression) string {
	if len(impressions) == 0 {
		return "No impressions stored."
	}
	sep := strings.Repeat("-", 20)
	var b strings.Builder
	b.WriteString("Stored impressions:\n")
	b.WriteString(strings.Repeat("=", 20))
	for _, imp := range impressions {
		name := imp.Name
		if name == "" {
			name = "unknown"
		}
		fmt.Fprintf(&b, "\nUser: %s (%s)\nRelationship: %s\nImpression: %s\nDialogues: %d\n%s",
			name, imp.UserID, orNone(imp.Relationship), orNone(imp.Impression), imp.DialogueCount, sep)
	}
	return b.String()
}

func orNone(s *string) string {
	if s == nil || *s == "" {
		return "none"
	}
	return *s
}
