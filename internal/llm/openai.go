package llm

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// DefaultOpenAIModel is used when no openai_model is configured.
const DefaultOpenAIModel = openai.GPT4oMini

// OpenAI calls the chat completions API of OpenAI or any compatible server.
type OpenAI struct {
	client *openai.Client
	model  string
}

// NewOpenAI creates a client. An empty baseURL targets api.openai.com.
func NewOpenAI(apiKey, baseURL, model string) *OpenAI {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAI{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

// Complete sends the system and user prompt as a two-message chat.
func (o *OpenAI) Complete(ctx context.Context, req Request) (*Response, error) {
	var messages []openai.ChatCompletionMessage
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Messages:    messages,
		Temperature: 0.3,
		MaxTokens:   2048,
	})
	if err != nil {
		return nil, fmt.Errorf("openai api: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai api: no choices returned")
	}

	return &Response{
		Content:    resp.Choices[0].Message.Content,
		Provider:   "openai",
		TokensUsed: resp.Usage.TotalTokens,
	}, nil
}
