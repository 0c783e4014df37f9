package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lazypower/personaflow/internal/config"
	"github.com/lazypower/personaflow/internal/engine"
	"github.com/lazypower/personaflow/internal/llm"
	"github.com/lazypower/personaflow/internal/logging"
	"github.com/lazypower/personaflow/internal/persona"
	"github.com/lazypower/personaflow/internal/store"
)

type testEnv struct {
	srv  *Server
	db   *store.DB
	mock *llm.MockClient
}

func testServer(t *testing.T) *testEnv {
	t.Helper()
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cfg := config.Default().Persona
	cfg.PersonasName = "luna"
	cfg.SummaryTriggerThreshold = 2
	cfg.RetryBackoff = config.Duration{Duration: time.Millisecond}

	mock := &llm.MockClient{Response: &llm.Response{Content: `{"relationship":"friend","impression":"cheerful"}`}}
	eng, err := engine.New(engine.Options{
		Config:      cfg,
		DisplayName: "Luna",
		Store:       store.NewLazyWith(func() (*store.DB, error) { return db, nil }),
		LLM:         mock,
		Templates:   persona.NewRegistry(persona.Template{Name: "luna", SystemPrompt: "You are Luna.\n{Impression}"}),
		Logger:      logging.Discard(),
	})
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	return &testEnv{srv: New(eng, logging.Discard(), "test-version"), db: db, mock: mock}
}

func TestHealthEndpoint(t *testing.T) {
	env := testServer(t)

	req := httptest.NewRequest("GET", "/api/health", nil)
	w := httptest.NewRecorder()
	env.srv.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}

	if body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}
	if body["version"] != "test-version" {
		t.Errorf("version = %v, want test-version", body["version"])
	}
	if body["persona_id"] != "luna-dynamic" {
		t.Errorf("persona_id = %v, want luna-dynamic", body["persona_id"])
	}
	if body["db_open"] != false {
		t.Errorf("db_open = %v, want false before first use", body["db_open"])
	}
}

func TestUnknownRoute(t *testing.T) {
	env := testServer(t)

	req := httptest.NewRequest("GET", "/api/nope", nil)
	w := httptest.NewRecorder()
	env.srv.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}
