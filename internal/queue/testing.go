// testing.go provides an in-memory queue client for tests.
package queue

import (
	"context"
	"sync"

	"github.com/waterdeep/usersync/internal/errors"
)

// MockClient is an in-memory Client that records published batches and lets
// tests drive deliveries to a subscribed handler.
type MockClient struct {
	mu        sync.Mutex
	connected bool
	handler   Handler

	// BatchLimit mirrors the transport cap; defaults to 10 when zero.
	BatchLimit int

	// ConnectErr, when set, is returned by Connect.
	ConnectErr error

	// FailBatchIndex makes the Nth PublishBatch call fail (0-based) after
	// FailAfterEntries entries of that batch were accepted. -1 disables.
	FailBatchIndex   int
	FailAfterEntries int

	// Batches records every successfully accepted publish group.
	Batches [][]Entry

	publishCalls int
}

// NewMockClient returns a connected-on-demand mock with no failures armed.
func NewMockClient() *MockClient {
	return &MockClient{FailBatchIndex: -1}
}

// Connect implements Client.
func (m *MockClient) Connect(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ConnectErr != nil {
		return m.ConnectErr
	}
	m.connected = true
	return nil
}

// PublishBatch implements Client.
func (m *MockClient) PublishBatch(_ context.Context, entries []Entry) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	limit := m.BatchLimit
	if limit == 0 {
		limit = 10
	}
	if len(entries) > limit {
		return 0, errors.Newf("publish batch of %d exceeds transport limit %d", len(entries), limit).
			Category(errors.CategoryValidation).
			Build()
	}

	call := m.publishCalls
	m.publishCalls++

	if m.FailBatchIndex >= 0 && call == m.FailBatchIndex {
		accepted := m.FailAfterEntries
		if accepted > len(entries) {
			accepted = len(entries)
		}
		if accepted > 0 {
			m.Batches = append(m.Batches, entries[:accepted])
		}
		return accepted, errors.Newf("injected publish failure for batch %d", call).
			Category(errors.CategoryQueuePublish).
			Build()
	}

	m.Batches = append(m.Batches, entries)
	return len(entries), nil
}

// Subscribe implements Client.
func (m *MockClient) Subscribe(_ context.Context, handler Handler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = handler
	return nil
}

// Subscribed reports whether a handler has been registered.
func (m *MockClient) Subscribed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handler != nil
}

// IsConnected implements Client.
func (m *MockClient) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// Disconnect implements Client.
func (m *MockClient) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
}

// PublishedBodies flattens the recorded batches into message bodies in
// publish order.
func (m *MockClient) PublishedBodies() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var bodies []string
	for _, batch := range m.Batches {
		for _, entry := range batch {
			bodies = append(bodies, entry.Body)
		}
	}
	return bodies
}

// MockMessage is a delivered message whose ack state tests can observe.
type MockMessage struct {
	mu      sync.Mutex
	body    string
	ackedCh chan struct{}
	acked   bool
}

// NewMockMessage builds a deliverable message with the given body.
func NewMockMessage(body string) *MockMessage {
	return &MockMessage{body: body, ackedCh: make(chan struct{})}
}

// Body implements Message.
func (m *MockMessage) Body() string { return m.body }

// Ack implements Message.
func (m *MockMessage) Ack() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.acked {
		m.acked = true
		close(m.ackedCh)
	}
}

// Acked reports whether Ack was called.
func (m *MockMessage) Acked() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.acked
}

// Deliver invokes the subscribed handler with the given message and returns
// it for ack inspection.
func (m *MockClient) Deliver(body string) *MockMessage {
	m.mu.Lock()
	handler := m.handler
	m.mu.Unlock()

	msg := NewMockMessage(body)
	if handler != nil {
		handler(msg)
	}
	return msg
}
