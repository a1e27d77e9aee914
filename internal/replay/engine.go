// Package replay re-delivers the committed event log to sinks, e.g. to
// backfill the analytics archive or an event bus after an outage.
package replay

import (
	"context"

	"pat-settlement/internal/domain"
)

// Target receives replayed records, one committed operation at a time.
// events.Sink satisfies it.
type Target interface {
	Name() string
	Publish(ctx context.Context, records []*domain.EventRecord) error
}

// Range bounds a replay by sequence number. Zero To means the end of the log.
type Range struct {
	From uint64 // first seq replayed (inclusive)
	To   uint64 // last seq replayed (inclusive)
}

func (r Range) contains(seq uint64) bool {
	return seq >= r.From && (r.To == 0 || seq <= r.To)
}

func (r Range) past(seq uint64) bool {
	return r.To != 0 && seq > r.To
}

// Stats summarises a replay.
type Stats struct {
	Operations int
	Records    int
	LastSeq    uint64
}
