package engine

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/lazypower/personaflow/internal/cache"
	"github.com/lazypower/personaflow/internal/config"
	"github.com/lazypower/personaflow/internal/llm"
	"github.com/lazypower/personaflow/internal/persona"
	"github.com/lazypower/personaflow/internal/store"
)

// Engine keeps per-user relationship state in sync with the conversation and
// renders it into the configured persona. One Engine owns the store handle
// and prompt cache for the life of the process.
type Engine struct {
	cfg         config.PersonaConfig
	displayName string

	db        *store.Lazy
	cache     *cache.PromptCache
	llm       llm.Client
	templates persona.Templates
	merger    *persona.Merger
	literal   LiteralParser
	log       *log.Logger
}

// Options configures New. Store, LLM and Templates are required.
type Options struct {
	Config      config.PersonaConfig
	DisplayName string // the AI's name in recorded exchanges
	Store       *store.Lazy
	LLM         llm.Client
	Templates   persona.Templates
	Cache       *cache.PromptCache
	Literal     LiteralParser
	Logger      *log.Logger
}

// New creates an Engine. Nothing touches the database until the first event.
func New(opts Options) (*Engine, error) {
	var errs []error
	if opts.Store == nil {
		errs = append(errs, errors.New("store is required"))
	}
	if opts.LLM == nil {
		errs = append(errs, errors.New("llm client is required"))
	}
	if opts.Templates == nil {
		errs = append(errs, errors.New("persona templates are required"))
	}
	if opts.Config.SummaryTriggerThreshold <= 0 {
		errs = append(errs, fmt.Errorf("summary trigger threshold must be positive, got %d", opts.Config.SummaryTriggerThreshold))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	if opts.Cache == nil {
		opts.Cache = cache.New()
	}
	if opts.Literal == nil {
		opts.Literal = YAMLLiteral{}
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.DisplayName == "" {
		opts.DisplayName = "AI"
	}
	if opts.Config.DynamicSuffix == "" {
		opts.Config.DynamicSuffix = "-dynamic"
	}
	if opts.Config.SummaryMaxRetries <= 0 {
		opts.Config.SummaryMaxRetries = 1
	}

	return &Engine{
		cfg:         opts.Config,
		displayName: opts.DisplayName,
		db:          opts.Store,
		cache:       opts.Cache,
		llm:         opts.LLM,
		templates:   opts.Templates,
		merger: &persona.Merger{
			Templates: opts.Templates,
			Cache:     opts.Cache,
			Suffix:    opts.Config.DynamicSuffix,
			Log:       opts.Logger,
		},
		literal: opts.Literal,
		log:     opts.Logger,
	}, nil
}

// Close releases the database if it was opened.
func (e *Engine) Close() error {
	return e.db.Close()
}

// Cache exposes the prompt cache.
func (e *Engine) Cache() *cache.PromptCache {
	return e.cache
}

// PersonaID is the dynamic persona id served to the host, or "" when no base
// persona is configured.
func (e *Engine) PersonaID() string {
	if e.cfg.PersonasName == "" {
		return ""
	}
	return persona.DynamicID(e.cfg.PersonasName, e.cfg.DynamicSuffix)
}

// StoreOpened reports whether the database has been opened yet.
func (e *Engine) StoreOpened() bool {
	return e.db.Opened()
}
