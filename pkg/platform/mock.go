package platform

import (
	"context"
	"sync"
)

// MockClient is a scripted Client for tests. Responses are consumed per
// entity in FIFO order; entities without a script succeed with the
// requested value.
type MockClient struct {
	mu       sync.Mutex
	scripts  map[string][]mockResponse
	calls    []*ChangeRequest
	oldValue map[string]float64
}

type mockResponse struct {
	result *ChangeResult
	err    error
}

// NewMockClient creates an empty mock.
func NewMockClient() *MockClient {
	return &MockClient{
		scripts:  make(map[string][]mockResponse),
		oldValue: make(map[string]float64),
	}
}

// SetOldValue sets the pre-change value the mock reports for an entity.
func (m *MockClient) SetOldValue(entityID string, value float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.oldValue[entityID] = value
}

// ScriptError queues an error response for the entity's next call.
func (m *MockClient) ScriptError(entityID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripts[entityID] = append(m.scripts[entityID], mockResponse{err: err})
}

// ScriptResult queues a success response for the entity's next call.
func (m *MockClient) ScriptResult(entityID string, result *ChangeResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripts[entityID] = append(m.scripts[entityID], mockResponse{result: result})
}

// Apply consumes the entity's next scripted response, or synthesizes a
// confirmation when nothing is scripted.
func (m *MockClient) Apply(ctx context.Context, req *ChangeRequest) (*ChangeResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, req)

	if queue := m.scripts[req.EntityID]; len(queue) > 0 {
		next := queue[0]
		m.scripts[req.EntityID] = queue[1:]
		if next.err != nil {
			return nil, next.err
		}
		return next.result, nil
	}

	return &ChangeResult{
		Success:  true,
		OldValue: m.oldValue[req.EntityID],
		NewValue: req.NewValue,
	}, nil
}

// Calls returns the requests received so far.
func (m *MockClient) Calls() []*ChangeRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*ChangeRequest, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns the number of calls for one entity.
func (m *MockClient) CallCount(entityID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, call := range m.calls {
		if call.EntityID == entityID {
			n++
		}
	}
	return n
}
