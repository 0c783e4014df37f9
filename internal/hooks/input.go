package hooks

import "strings"

// HookInput is the JSON the chat host writes on stdin for each hook call.
// Pre-request calls leave Completion empty.
type HookInput struct {
	SessionID  string `json:"session_id"`
	SenderName string `json:"sender_name"`
	SenderID   string `json:"sender_id"`
	Message    string `json:"message"`
	Completion string `json:"completion,omitempty"`
	ProviderID string `json:"provider_id,omitempty"`
}

// HasExchange reports whether the input carries both sides of a conversation
// turn from an identified sender.
func (h *HookInput) HasExchange() bool {
	return h.SenderID != "" && strings.TrimSpace(h.Message) != "" && strings.TrimSpace(h.Completion) != ""
}
