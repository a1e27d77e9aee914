// Package events delivers committed event records to external consumers.
// Sinks run after the committing transaction and never affect its outcome.
package events

import (
	"context"
	"encoding/json"
	"time"

	"pat-settlement/internal/domain"
)

// Sink receives the records of one committed operation, in (seq, index) order.
// Operations are delivered one at a time in seq order. Publish must not call
// back into the engine: the next writer waits for it to return.
type Sink interface {
	Name() string
	Publish(ctx context.Context, records []*domain.EventRecord) error
}

// Message is the wire form of an event record.
type Message struct {
	ID         string            `json:"id"`
	Seq        uint64            `json:"seq"`
	Index      int               `json:"index"`
	Kind       string            `json:"kind"`
	Time       time.Time         `json:"time"`
	Attributes map[string]string `json:"attributes"`
}

// NewMessage converts a record to its wire form.
func NewMessage(r *domain.EventRecord) Message {
	return Message{
		ID:         r.ID,
		Seq:        r.Seq,
		Index:      r.Index,
		Kind:       r.Kind,
		Time:       time.Unix(r.Time, 0).UTC(),
		Attributes: r.Attributes,
	}
}

// Record converts a wire message back to a record.
func (m Message) Record() *domain.EventRecord {
	return &domain.EventRecord{
		ID:         m.ID,
		Seq:        m.Seq,
		Index:      m.Index,
		Kind:       m.Kind,
		Time:       m.Time.Unix(),
		Attributes: m.Attributes,
	}
}

// Encode marshals a record as JSON.
func Encode(r *domain.EventRecord) ([]byte, error) {
	return json.Marshal(NewMessage(r))
}
