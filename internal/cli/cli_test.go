package cli

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/lazypower/personaflow/internal/config"
	"github.com/lazypower/personaflow/internal/hooks"
)

func TestResolveConfigPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("PERSONAFLOW_CONFIG", "")

	if got := resolveConfigPath(""); got != "" {
		t.Errorf("no config anywhere: got %q, want empty", got)
	}

	def := filepath.Join(home, ".personaflow", "config.toml")
	if err := os.MkdirAll(filepath.Dir(def), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(def, []byte("[server]\nport = 1\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if got := resolveConfigPath(""); got != def {
		t.Errorf("default file: got %q, want %q", got, def)
	}

	t.Setenv("PERSONAFLOW_CONFIG", "/etc/pf.toml")
	if got := resolveConfigPath(""); got != "/etc/pf.toml" {
		t.Errorf("env: got %q", got)
	}

	if got := resolveConfigPath("/flag.toml"); got != "/flag.toml" {
		t.Errorf("flag: got %q", got)
	}
}

func TestCommandTree(t *testing.T) {
	want := [][]string{
		{"serve"},
		{"hook", "request"},
		{"hook", "response"},
		{"impressions", "list"},
		{"impressions", "delete"},
		{"personas", "show"},
		{"version"},
	}
	for _, path := range want {
		cmd, _, err := rootCmd.Find(path)
		if err != nil || cmd.Name() != path[len(path)-1] {
			t.Errorf("command %v not registered", path)
		}
	}
}

func hookServer(t *testing.T, hits *atomic.Int32) *hooks.Client {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"applied":true,"system_prompt":"You are Luna.","persona_id":"luna-dynamic"}`))
	}))
	t.Cleanup(ts.Close)
	return hooks.NewClientURL(ts.URL)
}

const hookEvent = `{"session_id":"g1","sender_name":"Alice","sender_id":"10001","message":"hi","completion":"hello"}`

func TestRunHookDisabled(t *testing.T) {
	var hits atomic.Int32
	client := hookServer(t, &hits)

	var out bytes.Buffer
	runHook(false, client, "request", strings.NewReader(hookEvent), &out)
	runHook(false, client, "response", strings.NewReader(hookEvent), &out)

	if n := hits.Load(); n != 0 {
		t.Errorf("disabled hooks reached the server %d times", n)
	}
	if got := strings.TrimSpace(out.String()); got != `{"system_prompt":""}` {
		t.Errorf("disabled request output = %q", got)
	}
}

func TestRunHookEnabled(t *testing.T) {
	var hits atomic.Int32
	client := hookServer(t, &hits)

	var out bytes.Buffer
	runHook(true, client, "request", strings.NewReader(hookEvent), &out)

	if n := hits.Load(); n != 1 {
		t.Errorf("server hits = %d, want 1", n)
	}
	if !strings.Contains(out.String(), "You are Luna.") {
		t.Errorf("output = %q", out.String())
	}
}

func TestHooksEnabledFromConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[hooks]\nenabled = false\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Hooks.Enabled {
		t.Error("hooks.enabled = false was not honored")
	}
	if !config.Default().Hooks.Enabled {
		t.Error("hooks should be enabled by default")
	}
}
