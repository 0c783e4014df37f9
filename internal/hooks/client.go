package hooks

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"
)

const (
	defaultServerURL = "http://127.0.0.1:37778"
	httpTimeout      = 5 * time.Second
)

// Client talks to the personaflow server.
type Client struct {
	http      *http.Client
	serverURL string
}

// NewClient creates a new hook HTTP client.
// Respects PERSONAFLOW_URL env var, falls back to http://127.0.0.1:37778.
func NewClient() *Client {
	serverURL := os.Getenv("PERSONAFLOW_URL")
	if serverURL == "" {
		serverURL = defaultServerURL
	}
	return NewClientURL(serverURL)
}

// NewClientURL creates a client for an explicit server URL.
func NewClientURL(serverURL string) *Client {
	return &Client{
		http:      &http.Client{Timeout: httpTimeout},
		serverURL: serverURL,
	}
}

// URL returns the server base URL.
func (c *Client) URL() string {
	return c.serverURL
}

// Post sends a POST request with JSON body. Returns response body.
func (c *Client) Post(path string, body []byte) ([]byte, error) {
	req, err := http.NewRequest(http.MethodPost, c.serverURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("POST %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, path)
}

// Get sends a GET request. Returns response body.
func (c *Client) Get(path string) ([]byte, error) {
	req, err := http.NewRequest(http.MethodGet, c.serverURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	return c.do(req, path)
}

// Delete sends a DELETE request. Returns response body.
func (c *Client) Delete(path string) ([]byte, error) {
	req, err := http.NewRequest(http.MethodDelete, c.serverURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("DELETE %s: %w", path, err)
	}
	return c.do(req, path)
}

// ImpressionPath is the API path for one user's impression. User ids are
// opaque, so the id is escaped as a single path segment.
func ImpressionPath(userID string) string {
	return "/api/impressions/" + url.PathEscape(userID)
}

// StatusError is returned for 4xx/5xx responses.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Code, bytes.TrimSpace(e.Body))
}

func (c *Client) do(req *http.Request, path string) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response %s: %w", path, err)
	}
	if resp.StatusCode >= 400 {
		return data, &StatusError{Method: req.Method, Path: path, Code: resp.StatusCode, Body: data}
	}
	return data, nil
}

// Healthy checks if the server is reachable.
func (c *Client) Healthy() bool {
	resp, err := c.http.Get(c.serverURL + "/api/health")
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
