package llm

import (
	"context"
	"fmt"
	"sync"
)

// MockClient is a test double for the LLM Client interface.
// Scripted Responses and Errs are consumed one per call; once both queues
// are empty every call returns Response and Err.
type MockClient struct {
	Response  *Response
	Err       error
	Responses []string
	Errs      []error

	mu    sync.Mutex
	Calls []Request
}

// Complete records the call and returns the next scripted result.
func (m *MockClient) Complete(ctx context.Context, req Request) (*Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, req)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(m.Errs) > 0 {
		err := m.Errs[0]
		m.Errs = m.Errs[1:]
		if err != nil {
			return nil, err
		}
	}
	if len(m.Responses) > 0 {
		content := m.Responses[0]
		m.Responses = m.Responses[1:]
		return &Response{Content: content, Provider: "mock"}, nil
	}
	if m.Response == nil && m.Err == nil {
		return nil, fmt.Errorf("mock: no response scripted")
	}
	return m.Response, m.Err
}

// CallCount reports how many times Complete ran.
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// LastCall returns the most recent request.
func (m *MockClient) LastCall() (Request, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Calls) == 0 {
		return Request{}, false
	}
	return m.Calls[len(m.Calls)-1], true
}
