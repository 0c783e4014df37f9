package llm

import (
	"fmt"
	"strings"
)

// InternalSentinel prefixes every prompt personaflow sends to a model. When
// the host routes those calls back through its own hooks, the gateway sees
// the prefix and skips them.
const InternalSentinel = "[personaflow-internal]"

// NoPriorRecord stands in for the prior impression of a user who has never
// been summarized.
const NoPriorRecord = "No prior record."

// SummaryPrompt asks the model, speaking as the persona, to characterize its
// relationship with user from the recent conversation lines.
func SummaryPrompt(user string, history []string, prior string) string {
	if prior == "" {
		prior = NoPriorRecord
	}
	transcript := "(no conversation recorded)"
	if len(history) > 0 {
		transcript = strings.Join(history, "\n")
	}

	return fmt.Sprintf(`%s
Summarize the relationship between the user %s and you (the AI).

CONVERSATION HISTORY:
%s

PREVIOUS IMPRESSION:
%s

Requirements:
1. relationship: decide what you are to each other, e.g. stranger, friend, best friend, teacher and student.
2. impression: a short description of the user, e.g. proud, learned, likes to joke.
3. Output strictly one JSON object. Do not use any Markdown formatting.

Example:
{"relationship": "friend", "impression": "very humorous"}`, InternalSentinel, user, transcript, prior)
}
