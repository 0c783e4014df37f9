package llm

import (
	"context"
	"fmt"

	"github.com/lazypower/personaflow/internal/config"
)

// Client is the interface for LLM providers.
type Client interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// Request is one completion call. System frames the model as the persona;
// Provider names the host's chat provider and is only consulted by Router.
type Request struct {
	System   string
	Prompt   string
	Provider string
}

// Response holds the result of an LLM completion.
type Response struct {
	Content    string
	Provider   string
	TokensUsed int
}

// NewClient creates an LLM client based on the config provider setting.
func NewClient(cfg config.LLMConfig) (Client, error) {
	return newProvider(cfg.Provider, cfg)
}

func newProvider(name string, cfg config.LLMConfig) (Client, error) {
	switch name {
	case "claude-cli":
		model := cfg.Model
		if model == "" || cfg.Provider != "claude-cli" {
			model = "haiku"
		}
		return NewClaudeCLI(model), nil
	case "anthropic":
		if cfg.AnthropicKey == "" {
			return nil, fmt.Errorf("anthropic provider requires ANTHROPIC_API_KEY or config")
		}
		model := cfg.Model
		if model == "" || cfg.Provider != "anthropic" {
			model = "claude-haiku-4-5-20251001"
		}
		return NewAnthropic(cfg.AnthropicKey, model), nil
	case "ollama":
		url := cfg.OllamaURL
		if url == "" {
			url = "http://localhost:11434"
		}
		model := cfg.OllamaModel
		if model == "" {
			model = "llama3.2"
		}
		return NewOllama(url, model), nil
	case "openai":
		if cfg.OpenAIKey == "" {
			return nil, fmt.Errorf("openai provider requires OPENAI_API_KEY or config")
		}
		model := cfg.OpenAIModel
		if model == "" {
			model = DefaultOpenAIModel
		}
		return NewOpenAI(cfg.OpenAIKey, cfg.OpenAIURL, model), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", name)
	}
}
