package hooks

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/lazypower/personaflow/internal/llm"
)

type recorded struct {
	mu    sync.Mutex
	paths []string
	body  map[string]any
}

func (r *recorded) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.paths)
}

func testHookServer(t *testing.T, injection map[string]any) (*Client, *recorded) {
	t.Helper()
	rec := &recorded{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.mu.Lock()
		rec.paths = append(rec.paths, r.URL.Path)
		data, _ := io.ReadAll(r.Body)
		json.Unmarshal(data, &rec.body)
		rec.mu.Unlock()

		switch r.URL.Path {
		case "/api/health":
			json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
		case "/api/hooks/request":
			json.NewEncoder(w).Encode(injection)
		case "/api/hooks/response":
			w.WriteHeader(http.StatusAccepted)
			json.NewEncoder(w).Encode(map[string]string{"status": "accepted"})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(ts.Close)
	return NewClientURL(ts.URL), rec
}

func decodeOutput(t *testing.T, out *bytes.Buffer) RequestOutput {
	t.Helper()
	var got RequestOutput
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatalf("stdout is not JSON: %q", out.String())
	}
	return got
}

func TestHandleRequestApplied(t *testing.T) {
	client, rec := testHookServer(t, map[string]any{
		"applied":       true,
		"system_prompt": "You are Luna. Alice is cheerful.",
		"persona_id":    "luna-dynamic",
	})

	var out bytes.Buffer
	HandleWith(client, "request", strings.NewReader(`{"session_id":"g1","sender_id":"1","message":"hi"}`), &out)

	got := decodeOutput(t, &out)
	if got.SystemPrompt != "You are Luna. Alice is cheerful." {
		t.Errorf("system_prompt = %q", got.SystemPrompt)
	}
	if got.PersonaID != "luna-dynamic" {
		t.Errorf("persona_id = %q", got.PersonaID)
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.body["session_id"] != "g1" {
		t.Errorf("forwarded body = %v", rec.body)
	}
}

func TestHandleRequestNotApplied(t *testing.T) {
	client, _ := testHookServer(t, map[string]any{"applied": false, "reason": "no dynamic prompt"})

	var out bytes.Buffer
	HandleWith(client, "request", strings.NewReader(`{"session_id":"g1","message":"hi"}`), &out)

	if got := decodeOutput(t, &out); got.SystemPrompt != "" {
		t.Errorf("system_prompt = %q, want empty", got.SystemPrompt)
	}
}

func TestHandleRequestServerDown(t *testing.T) {
	client := NewClientURL("http://127.0.0.1:1")

	var out bytes.Buffer
	HandleWith(client, "request", strings.NewReader(`{"message":"hi"}`), &out)

	if got := decodeOutput(t, &out); got.SystemPrompt != "" {
		t.Errorf("system_prompt = %q, want empty", got.SystemPrompt)
	}
}

func TestHandleRequestBadStdin(t *testing.T) {
	client, rec := testHookServer(t, nil)

	var out bytes.Buffer
	HandleWith(client, "request", strings.NewReader(`not json`), &out)

	if got := decodeOutput(t, &out); got.SystemPrompt != "" {
		t.Errorf("system_prompt = %q, want empty", got.SystemPrompt)
	}
	if rec.count() != 0 {
		t.Errorf("server should not be called on bad input")
	}
}

func TestHandleRequestSkipsInternal(t *testing.T) {
	client, rec := testHookServer(t, map[string]any{"applied": true, "system_prompt": "x"})

	var out bytes.Buffer
	HandleWith(client, "request", strings.NewReader(`{"message":"`+llm.InternalSentinel+` summarize"}`), &out)

	if got := decodeOutput(t, &out); got.SystemPrompt != "" {
		t.Errorf("internal prompt should get an empty system prompt, got %q", got.SystemPrompt)
	}
	if rec.count() != 0 {
		t.Errorf("server called for internal prompt")
	}
}

func TestHandleResponse(t *testing.T) {
	client, rec := testHookServer(t, nil)

	var out bytes.Buffer
	HandleWith(client, "response", strings.NewReader(
		`{"session_id":"g1","sender_name":"Alice","sender_id":"1","message":"hi","completion":"hello"}`), &out)

	if out.Len() != 0 {
		t.Errorf("response hook should be silent, wrote %q", out.String())
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.paths) != 1 || rec.paths[0] != "/api/hooks/response" {
		t.Fatalf("paths = %v", rec.paths)
	}
	if rec.body["completion"] != "hello" {
		t.Errorf("forwarded body = %v", rec.body)
	}
}

func TestHandleResponseSkipsEmpty(t *testing.T) {
	client, rec := testHookServer(t, nil)

	HandleWith(client, "response", strings.NewReader(`{"sender_id":"1","message":"hi","completion":""}`), io.Discard)
	HandleWith(client, "response", strings.NewReader(`{"sender_id":"1","message":"  ","completion":"x"}`), io.Discard)

	if rec.count() != 0 {
		t.Errorf("empty exchanges should not reach the server")
	}
}

func TestHandleUnknownEvent(t *testing.T) {
	client, rec := testHookServer(t, nil)

	var out bytes.Buffer
	HandleWith(client, "bogus", strings.NewReader(`{}`), &out)
	if out.Len() != 0 || rec.count() != 0 {
		t.Errorf("unknown event should do nothing, out=%q", out.String())
	}
}

func TestIsInternalPrompt(t *testing.T) {
	tests := []struct {
		msg  string
		want bool
	}{
		{llm.InternalSentinel + " summarize", true},
		{"  " + llm.InternalSentinel, true},
		{"hello", false},
		{"quoting " + llm.InternalSentinel, false},
		{"", false},
	}
	for _, tt := range tests {
		if got := isInternalPrompt(tt.msg); got != tt.want {
			t.Errorf("isInternalPrompt(%q) = %v, want %v", tt.msg, got, tt.want)
		}
	}
}

func TestClientDeleteStatusError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("method = %s", r.Method)
		}
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"no record"}`))
	}))
	defer ts.Close()

	_, err := NewClientURL(ts.URL).Delete("/api/impressions/42")
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *StatusError", err)
	}
	if se.Code != http.StatusNotFound {
		t.Errorf("code = %d, want 404", se.Code)
	}
}

func TestClientHealthy(t *testing.T) {
	client, _ := testHookServer(t, nil)
	if !client.Healthy() {
		t.Error("expected healthy server")
	}
	if NewClientURL("http://127.0.0.1:1").Healthy() {
		t.Error("expected unreachable server to be unhealthy")
	}
}

func TestNewClientEnv(t *testing.T) {
	t.Setenv("PERSONAFLOW_URL", "http://example:9999")
	if got := NewClient().URL(); got != "http://example:9999" {
		t.Errorf("URL = %q", got)
	}
	t.Setenv("PERSONAFLOW_URL", "")
	if got := NewClient().URL(); got != defaultServerURL {
		t.Errorf("URL = %q, want default", got)
	}
}

func TestImpressionPathEscapesUserID(t *testing.T) {
	tests := map[string]string{
		"10001":    "/api/impressions/10001",
		"a?b":      "/api/impressions/a%3Fb",
		"a#b":      "/api/impressions/a%23b",
		"group/42": "/api/impressions/group%2F42",
	}
	for id, want := range tests {
		if got := ImpressionPath(id); got != want {
			t.Errorf("ImpressionPath(%q) = %q, want %q", id, got, want)
		}
	}
}
