package hooks

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// RequestOutput is what the host reads on stdout after a pre-request hook.
// An empty SystemPrompt means keep the default persona.
type RequestOutput struct {
	SystemPrompt string `json:"system_prompt"`
	PersonaID    string `json:"persona_id,omitempty"`
}

// WriteRequestOutput writes the pre-request response.
func WriteRequestOutput(w io.Writer, prompt, personaID string) error {
	return json.NewEncoder(w).Encode(RequestOutput{SystemPrompt: prompt, PersonaID: personaID})
}

// logError reports a hook failure on stderr. Hooks always exit 0 so the host
// pipeline never breaks on our account.
func logError(err error) {
	fmt.Fprintf(os.Stderr, "personaflow hook: %v\n", err)
}
