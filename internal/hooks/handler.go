package hooks

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/lazypower/personaflow/internal/llm"
)

// Handle reads HookInput from stdin, forwards it to the server for the given
// event ("request" or "response") and writes any output to stdout. It never
// fails: problems go to stderr and the request hook prints an empty prompt.
func Handle(event string, stdin io.Reader, stdout io.Writer) {
	HandleWith(NewClient(), event, stdin, stdout)
}

// HandleWith is Handle against an explicit client.
func HandleWith(client *Client, event string, stdin io.Reader, stdout io.Writer) {
	var input HookInput
	if err := json.NewDecoder(stdin).Decode(&input); err != nil {
		logError(fmt.Errorf("decode stdin: %w", err))
		if event == "request" {
			WriteRequestOutput(stdout, "", "")
		}
		return
	}

	switch event {
	case "request":
		handleRequest(client, &input, stdout)
	case "response":
		handleResponse(client, &input)
	default:
		logError(fmt.Errorf("unknown hook event: %s", event))
	}
}

// isInternalPrompt reports whether the message is one of our own summary
// prompts coming back through the host. Only the prefix counts, so a user
// quoting the sentinel mid-message is still recorded.
func isInternalPrompt(msg string) bool {
	return strings.HasPrefix(strings.TrimSpace(msg), llm.InternalSentinel)
}

func handleRequest(client *Client, input *HookInput, stdout io.Writer) {
	if isInternalPrompt(input.Message) {
		WriteRequestOutput(stdout, "", "")
		return
	}

	body, _ := json.Marshal(input)
	data, err := client.Post("/api/hooks/request", body)
	if err != nil {
		logError(err)
		WriteRequestOutput(stdout, "", "")
		return
	}

	var inj struct {
		Applied      bool   `json:"applied"`
		SystemPrompt string `json:"system_prompt"`
		PersonaID    string `json:"persona_id"`
	}
	if err := json.Unmarshal(data, &inj); err != nil {
		logError(fmt.Errorf("decode injection: %w", err))
		WriteRequestOutput(stdout, "", "")
		return
	}
	if !inj.Applied {
		WriteRequestOutput(stdout, "", "")
		return
	}
	WriteRequestOutput(stdout, inj.SystemPrompt, inj.PersonaID)
}

func handleResponse(client *Client, input *HookInput) {
	if !input.HasExchange() || isInternalPrompt(input.Message) {
		return
	}

	body, _ := json.Marshal(input)
	if _, err := client.Post("/api/hooks/response", body); err != nil {
		logError(err)
	}
}
