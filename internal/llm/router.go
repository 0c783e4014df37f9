package llm

import (
	"context"
	"fmt"
	"sort"

	"github.com/lazypower/personaflow/internal/config"
)

// Router sends each request to the client registered under its Provider,
// or to the fallback client when none matches.
type Router struct {
	fallback Client
	named    map[string]Client
}

// NewRouter returns a Router that uses fallback for unknown providers.
func NewRouter(fallback Client) *Router {
	return &Router{fallback: fallback, named: make(map[string]Client)}
}

// NewRouterFromConfig builds the configured provider as the fallback and
// registers every other provider whose credentials are present.
func NewRouterFromConfig(cfg config.LLMConfig) (*Router, error) {
	fallback, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}
	r := NewRouter(fallback)
	r.Register(cfg.Provider, fallback)

	for _, name := range []string{"anthropic", "openai", "ollama"} {
		if name == cfg.Provider {
			continue
		}
		if name == "anthropic" && cfg.AnthropicKey == "" {
			continue
		}
		if name == "openai" && cfg.OpenAIKey == "" {
			continue
		}
		if name == "ollama" && cfg.OllamaURL == "" {
			continue
		}
		c, err := newProvider(name, cfg)
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", name, err)
		}
		r.Register(name, c)
	}
	return r, nil
}

// Register maps a provider id to a client.
func (r *Router) Register(name string, c Client) {
	r.named[name] = c
}

// Providers lists the registered provider ids.
func (r *Router) Providers() []string {
	names := make([]string, 0, len(r.named))
	for n := range r.named {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Complete dispatches req by its Provider field.
func (r *Router) Complete(ctx context.Context, req Request) (*Response, error) {
	if c, ok := r.named[req.Provider]; ok {
		return c.Complete(ctx, req)
	}
	if r.fallback == nil {
		return nil, fmt.Errorf("no client for provider %q", req.Provider)
	}
	return r.fallback.Complete(ctx, req)
}
