package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Config holds all personaflow configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	LLM      LLMConfig      `toml:"llm"`
	Hooks    HooksConfig    `toml:"hooks"`
	Persona  PersonaConfig  `toml:"persona"`
	Log      LogConfig      `toml:"log"`
}

type ServerConfig struct {
	Bind string `toml:"bind"`
	Port int    `toml:"port"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type LLMConfig struct {
	Provider     string `toml:"provider"` // "claude-cli", "anthropic", "ollama", "openai"
	Model        string `toml:"model"`
	OllamaURL    string `toml:"ollama_url"`
	OllamaModel  string `toml:"ollama_model"`
	AnthropicKey string `toml:"anthropic_key"`
	OpenAIKey    string `toml:"openai_key"`
	OpenAIURL    string `toml:"openai_url"` // any OpenAI-compatible endpoint
	OpenAIModel  string `toml:"openai_model"`
}

type HooksConfig struct {
	Enabled bool `toml:"enabled"`
	Timeout int  `toml:"timeout"` // seconds
}

// PersonaConfig carries the options recognized by the persona engine. Key
// names match the plugin options hosts already ship.
type PersonaConfig struct {
	ApplyToGroupChat        []string `toml:"apply_to_group_chat"`
	PersonasName            string   `toml:"personas_name"`
	DisplayName             string   `toml:"persona_display_name"`
	SummaryTriggerThreshold int      `toml:"summary_trigger_threshold"`
	SummaryMaxRetries       int      `toml:"summary_max_retries"`
	SummaryHistoryCount     int      `toml:"summary_history_count"`
	RetryBackoff            Duration `toml:"retry_backoff"`
	LLMTimeout              Duration `toml:"llm_timeout"`
	DynamicSuffix           string   `toml:"dynamic_suffix"`
	TemplatesPath           string   `toml:"templates_path"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

// Duration is a time.Duration that reads "1s"-style strings from TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", text, err)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 37778,
		},
		Database: DatabaseConfig{
			Path: "", // resolved at runtime via store.DefaultDBPath()
		},
		LLM: LLMConfig{
			Provider: "claude-cli",
			Model:    "haiku",
		},
		Hooks: HooksConfig{
			Enabled: true,
			Timeout: 120,
		},
		Persona: PersonaConfig{
			SummaryTriggerThreshold: 5,
			SummaryMaxRetries:       3,
			SummaryHistoryCount:     20,
			RetryBackoff:            Duration{time.Second},
			LLMTimeout:              Duration{60 * time.Second},
			DynamicSuffix:           "-dynamic",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads .env (if present), then the TOML file at path on top of the
// defaults, then environment overrides. An empty path skips the file.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PERSONAFLOW_DB"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("PERSONAFLOW_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("PERSONAFLOW_PERSONA"); v != "" {
		c.Persona.PersonasName = v
	}
	if v := os.Getenv("PERSONAFLOW_SESSIONS"); v != "" {
		c.Persona.ApplyToGroupChat = splitList(v)
	}
	c.Persona.SummaryTriggerThreshold = getEnvInt("PERSONAFLOW_SUMMARY_THRESHOLD", c.Persona.SummaryTriggerThreshold)
	c.Persona.SummaryMaxRetries = getEnvInt("PERSONAFLOW_SUMMARY_RETRIES", c.Persona.SummaryMaxRetries)
	c.Persona.SummaryHistoryCount = getEnvInt("PERSONAFLOW_SUMMARY_HISTORY", c.Persona.SummaryHistoryCount)

	// An API key in the environment selects the matching provider.
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		c.LLM.Provider = "anthropic"
		c.LLM.AnthropicKey = key
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.LLM.Provider = "openai"
		c.LLM.OpenAIKey = key
		if url := os.Getenv("OPENAI_BASE_URL"); url != "" {
			c.LLM.OpenAIURL = url
		}
	}
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Persona.SummaryTriggerThreshold <= 0 {
		errs = append(errs, fmt.Errorf("summary_trigger_threshold must be positive, got %d", c.Persona.SummaryTriggerThreshold))
	}
	if c.Persona.SummaryMaxRetries <= 0 {
		errs = append(errs, fmt.Errorf("summary_max_retries must be positive, got %d", c.Persona.SummaryMaxRetries))
	}
	if c.Persona.SummaryHistoryCount <= 0 {
		errs = append(errs, fmt.Errorf("summary_history_count must be positive, got %d", c.Persona.SummaryHistoryCount))
	}
	if c.Persona.RetryBackoff.Duration < 0 {
		errs = append(errs, fmt.Errorf("retry_backoff must not be negative"))
	}
	if c.Persona.DynamicSuffix == "" {
		errs = append(errs, fmt.Errorf("dynamic_suffix must not be empty"))
	}
	return errors.Join(errs...)
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}

// PersonaDisplayName is the name the AI goes by in recorded exchanges.
func (c *Config) PersonaDisplayName() string {
	if c.Persona.DisplayName != "" {
		return c.Persona.DisplayName
	}
	if c.Persona.PersonasName != "" {
		return c.Persona.PersonasName
	}
	return "AI"
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
