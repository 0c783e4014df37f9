package engine

import (
	"bytes"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/lazypower/personaflow/internal/logging"
)

func TestValidateSummaryTrims(t *testing.T) {
	got := validateSummary(Summary{Relationship: "  friend \n", Impression: "\tkind "}, logging.Discard())
	if got.Relationship != "friend" || got.Impression != "kind" {
		t.Errorf("got %+v", got)
	}
}

func TestValidateSummaryTruncates(t *testing.T) {
	var buf bytes.Buffer
	long := strings.Repeat("word ", 1000)
	got := validateSummary(Summary{Relationship: long, Impression: long}, logging.New("warn", &buf))
	if len(got.Relationship) > maxRelationshipChars {
		t.Errorf("relationship len = %d", len(got.Relationship))
	}
	if len(got.Impression) > maxImpressionChars {
		t.Errorf("impression len = %d", len(got.Impression))
	}
	if strings.HasSuffix(got.Impression, "wor") {
		t.Error("truncation should not cut mid-word")
	}
	if !strings.Contains(buf.String(), "truncating impression") {
		t.Errorf("truncation not logged to the given logger: %q", buf.String())
	}
}

func TestValidateSummaryRespectsLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	validateSummary(Summary{Impression: strings.Repeat("x", maxImpressionChars+1)}, logging.New("error", &buf))
	if buf.Len() != 0 {
		t.Errorf("warn written at error level: %q", buf.String())
	}
}

func TestTruncateCleanShort(t *testing.T) {
	if got := truncateClean("short", 100); got != "short" {
		t.Errorf("got %q", got)
	}
}

func TestTruncateCleanRuneSafe(t *testing.T) {
	s := strings.Repeat("印象", 50)
	got := truncateClean(s, 10)
	if !utf8.ValidString(got) {
		t.Errorf("truncation split a rune: %q", got)
	}
	if len(got) > 10 {
		t.Errorf("len = %d, want <= 10", len(got))
	}
}
