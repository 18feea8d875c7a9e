package environment

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	transport "github.com/hanpama/ghcard/internal/transport"
	"github.com/vektah/gqlparser/v2/gqlerror"
)

// Call records one Execute invocation.
type Call struct {
	OperationName string
	Query         string
	Variables     map[string]any
}

// MockResponse is one seeded outcome of MockTransport.Execute.
type MockResponse struct {
	Response *transport.Response
	Err      error
}

// MockData seeds a successful response with the given JSON data.
func MockData(data string) MockResponse {
	return MockResponse{Response: &transport.Response{Data: json.RawMessage(data)}}
}

// MockErrors seeds a response carrying data and a GraphQL errors array.
func MockErrors(data string, messages ...string) MockResponse {
	list := make(gqlerror.List, len(messages))
	for i, m := range messages {
		list[i] = &gqlerror.Error{Message: m}
	}
	return MockResponse{Response: &transport.Response{Data: json.RawMessage(data), Errors: list}}
}

// MockFailure seeds a transport failure.
func MockFailure(err error) MockResponse { return MockResponse{Err: err} }

// MockTransport implements Executor with seeded outcomes returned in order,
// recording calls for inspection. Block holds calls until released.
type MockTransport struct {
	mu        sync.Mutex
	responses []MockResponse
	idx       int
	calls     []Call
	gate      chan struct{}
}

func NewMockTransport(responses ...MockResponse) *MockTransport {
	return &MockTransport{responses: append([]MockResponse(nil), responses...)}
}

// Push appends outcomes for later calls.
func (m *MockTransport) Push(responses ...MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, responses...)
}

// Block makes subsequent calls wait until release is called.
func (m *MockTransport) Block() (release func()) {
	gate := make(chan struct{})
	m.mu.Lock()
	m.gate = gate
	m.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			if m.gate == gate {
				m.gate = nil
			}
			m.mu.Unlock()
			close(gate)
		})
	}
}

// Calls returns a copy of the recorded calls.
func (m *MockTransport) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

func (m *MockTransport) Execute(ctx context.Context, operationName, query string, vars map[string]any) (*transport.Response, error) {
	m.mu.Lock()
	m.calls = append(m.calls, Call{OperationName: operationName, Query: query, Variables: vars})
	gate := m.gate
	m.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.idx >= len(m.responses) {
		return nil, fmt.Errorf("mock transport: no more responses")
	}
	r := m.responses[m.idx]
	m.idx++
	return r.Response, r.Err
}
