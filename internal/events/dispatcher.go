package events

import (
	"context"
	"log/slog"
	"time"

	"pat-settlement/internal/domain"
	"pat-settlement/internal/observability"
)

// Dispatcher fans committed records out to every sink in order.
// Sink failures are logged and counted, never returned.
type Dispatcher struct {
	sinks  []Sink
	logger *slog.Logger
}

// NewDispatcher creates a dispatcher over sinks.
func NewDispatcher(logger *slog.Logger, sinks ...Sink) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{sinks: sinks, logger: logger}
}

// Add appends a sink.
func (d *Dispatcher) Add(s Sink) {
	d.sinks = append(d.sinks, s)
}

// Dispatch delivers records to every sink.
func (d *Dispatcher) Dispatch(ctx context.Context, records []*domain.EventRecord) {
	if d == nil || len(records) == 0 {
		return
	}
	for _, s := range d.sinks {
		start := time.Now()
		err := s.Publish(ctx, records)
		observability.RecordSinkPublish(s.Name(), time.Since(start).Seconds(), err)
		if err != nil {
			d.logger.Warn("event sink publish failed",
				"sink", s.Name(),
				"seq", records[0].Seq,
				"events", len(records),
				"error", err)
		}
	}
}
