package events

import (
	"context"
	"sync"

	"pat-settlement/internal/domain"
)

// MemorySink keeps every published record. Safe for concurrent use.
type MemorySink struct {
	mu      sync.Mutex
	records []*domain.EventRecord
	err     error
}

// NewMemorySink creates an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

var _ Sink = (*MemorySink)(nil)

// Name implements Sink.
func (s *MemorySink) Name() string { return "memory" }

// Publish implements Sink.
func (s *MemorySink) Publish(_ context.Context, records []*domain.EventRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, records...)
	return nil
}

// FailWith makes every following Publish return err. nil restores delivery.
func (s *MemorySink) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Records returns a copy of everything published so far.
func (s *MemorySink) Records() []*domain.EventRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.EventRecord, len(s.records))
	copy(out, s.records)
	return out
}

// Kinds returns the kinds of everything published so far, in order.
func (s *MemorySink) Kinds() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.records))
	for i, r := range s.records {
		out[i] = r.Kind
	}
	return out
}
