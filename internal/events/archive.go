package events

import (
	"context"
	"fmt"

	"pat-settlement/internal/domain"
	"pat-settlement/internal/storage"
)

// ArchiveSink copies records into the analytics archive.
type ArchiveSink struct {
	archive storage.EventArchive
}

// NewArchiveSink creates a sink over archive.
func NewArchiveSink(archive storage.EventArchive) *ArchiveSink {
	return &ArchiveSink{archive: archive}
}

var _ Sink = (*ArchiveSink)(nil)

// Name implements Sink.
func (s *ArchiveSink) Name() string { return "archive" }

// Publish implements Sink. Replayed records are skipped by the archive.
func (s *ArchiveSink) Publish(ctx context.Context, records []*domain.EventRecord) error {
	if len(records) == 0 {
		return nil
	}
	if err := s.archive.InsertBulk(ctx, records); err != nil {
		return fmt.Errorf("archive events: %w", err)
	}
	return nil
}
