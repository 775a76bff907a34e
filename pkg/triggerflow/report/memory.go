package report

import (
	"sync"
)

// MemorySink is an in-memory sink for testing and examples.
// Records are lost when the process exits.
type MemorySink struct {
	mu      sync.RWMutex
	records []*InvocationRecord
	byID    map[string]*InvocationRecord
	closed  bool
}

// NewMemorySink creates a new in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{
		byID: make(map[string]*InvocationRecord),
	}
}

// Record implements Sink.
func (m *MemorySink) Record(record *InvocationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrSinkClosed
	}

	m.records = append(m.records, record)
	m.byID[record.ID] = record
	return nil
}

// Get returns the record for an invocation id.
func (m *MemorySink) Get(id string) (*InvocationRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrSinkClosed
	}

	record, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return record, nil
}

// Invocations returns all recorded invocations in arrival order.
func (m *MemorySink) Invocations() []*InvocationRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*InvocationRecord, len(m.records))
	copy(out, m.records)
	return out
}

// Len returns the number of recorded invocations.
func (m *MemorySink) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// Close implements Sink.
func (m *MemorySink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
