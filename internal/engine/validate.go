package engine

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/charmbracelet/log"
)

// Size limits for summarized fields. Models occasionally ramble; the stored
// values are injected into every prompt.
const (
	maxRelationshipChars = 200
	maxImpressionChars   = 2000
)

// validateSummary trims a parsed summary and truncates oversized fields.
func validateSummary(s Summary, logger *log.Logger) Summary {
	s.Relationship = strings.TrimSpace(s.Relationship)
	s.Impression = strings.TrimSpace(s.Impression)

	if len(s.Relationship) > maxRelationshipChars {
		logger.Warn("validate: truncating relationship", "from", len(s.Relationship), "to", maxRelationshipChars)
		s.Relationship = truncateClean(s.Relationship, maxRelationshipChars)
	}
	if len(s.Impression) > maxImpressionChars {
		logger.Warn("validate: truncating impression", "from", len(s.Impression), "to", maxImpressionChars)
		s.Impression = truncateClean(s.Impression, maxImpressionChars)
	}
	return s
}

// truncateClean truncates a string to at most maxLen bytes, cutting at the
// last word boundary when one is close and never inside a rune.
func truncateClean(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}

	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	truncated := s[:cut]
	if idx := strings.LastIndexFunc(truncated, unicode.IsSpace); idx > cut-50 {
		truncated = truncated[:idx]
	}
	return strings.TrimSpace(truncated)
}
