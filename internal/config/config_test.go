package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"PERSONAFLOW_DB", "PERSONAFLOW_LOG_LEVEL", "PERSONAFLOW_PERSONA", "PERSONAFLOW_SESSIONS",
		"PERSONAFLOW_SUMMARY_THRESHOLD", "PERSONAFLOW_SUMMARY_RETRIES", "PERSONAFLOW_SUMMARY_HISTORY",
		"ANTHROPIC_API_KEY", "OPENAI_API_KEY", "OPENAI_BASE_URL",
	} {
		t.Setenv(k, "")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Persona.SummaryTriggerThreshold != 5 {
		t.Errorf("threshold = %d, want 5", cfg.Persona.SummaryTriggerThreshold)
	}
	if cfg.Persona.SummaryMaxRetries != 3 {
		t.Errorf("retries = %d, want 3", cfg.Persona.SummaryMaxRetries)
	}
	if cfg.Persona.SummaryHistoryCount != 20 {
		t.Errorf("history = %d, want 20", cfg.Persona.SummaryHistoryCount)
	}
	if cfg.Persona.RetryBackoff.Duration != time.Second {
		t.Errorf("backoff = %v, want 1s", cfg.Persona.RetryBackoff.Duration)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestListenAddr(t *testing.T) {
	cfg := Default()
	if got := cfg.ListenAddr(); got != "127.0.0.1:37778" {
		t.Errorf("ListenAddr = %q", got)
	}
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "personaflow.toml")
	data := `
[persona]
apply_to_group_chat = ["group:1", "group:2"]
personas_name = "Luna"
summary_trigger_threshold = 3
retry_backoff = "250ms"

[llm]
provider = "ollama"
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Persona.PersonasName != "Luna" {
		t.Errorf("personas_name = %q, want Luna", cfg.Persona.PersonasName)
	}
	if len(cfg.Persona.ApplyToGroupChat) != 2 {
		t.Errorf("apply_to_group_chat = %v", cfg.Persona.ApplyToGroupChat)
	}
	if cfg.Persona.SummaryTriggerThreshold != 3 {
		t.Errorf("threshold = %d, want 3", cfg.Persona.SummaryTriggerThreshold)
	}
	if cfg.Persona.SummaryMaxRetries != 3 {
		t.Errorf("unset retries should keep default, got %d", cfg.Persona.SummaryMaxRetries)
	}
	if cfg.Persona.RetryBackoff.Duration != 250*time.Millisecond {
		t.Errorf("backoff = %v, want 250ms", cfg.Persona.RetryBackoff.Duration)
	}
	if cfg.LLM.Provider != "ollama" {
		t.Errorf("provider = %q, want ollama", cfg.LLM.Provider)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PERSONAFLOW_SESSIONS", "a, b,,c")
	t.Setenv("PERSONAFLOW_SUMMARY_THRESHOLD", "7")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Persona.ApplyToGroupChat) != 3 {
		t.Errorf("sessions = %v, want 3 entries", cfg.Persona.ApplyToGroupChat)
	}
	if cfg.Persona.SummaryTriggerThreshold != 7 {
		t.Errorf("threshold = %d, want 7", cfg.Persona.SummaryTriggerThreshold)
	}
	if cfg.LLM.Provider != "openai" || cfg.LLM.OpenAIKey != "sk-test" {
		t.Errorf("llm = %+v, want openai with key", cfg.LLM)
	}
}

func TestValidateRejectsNonPositive(t *testing.T) {
	tests := []struct {
		name string
		mut  func(*Config)
	}{
		{"threshold", func(c *Config) { c.Persona.SummaryTriggerThreshold = 0 }},
		{"retries", func(c *Config) { c.Persona.SummaryMaxRetries = -1 }},
		{"history", func(c *Config) { c.Persona.SummaryHistoryCount = 0 }},
		{"suffix", func(c *Config) { c.Persona.DynamicSuffix = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mut(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestPersonaDisplayName(t *testing.T) {
	cfg := Default()
	if got := cfg.PersonaDisplayName(); got != "AI" {
		t.Errorf("empty config display name = %q, want AI", got)
	}
	cfg.Persona.PersonasName = "Luna"
	if got := cfg.PersonaDisplayName(); got != "Luna" {
		t.Errorf("display name = %q, want Luna", got)
	}
	cfg.Persona.DisplayName = "Luna-chan"
	if got := cfg.PersonaDisplayName(); got != "Luna-chan" {
		t.Errorf("display name = %q, want Luna-chan", got)
	}
}
