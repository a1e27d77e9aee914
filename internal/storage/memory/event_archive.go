package memory

import (
	"context"
	"sort"
	"sync"

	"cosmossdk.io/math"

	"pat-settlement/internal/domain"
	"pat-settlement/internal/storage"
)

type eventKey struct {
	seq   uint64
	index int
}

// EventArchive is an in-memory implementation of storage.EventArchive.
type EventArchive struct {
	mu   sync.RWMutex
	data map[eventKey]*domain.EventRecord
}

// NewEventArchive creates a new in-memory event archive.
func NewEventArchive() *EventArchive {
	return &EventArchive{
		data: make(map[eventKey]*domain.EventRecord),
	}
}

// Compile-time interface check.
var _ storage.EventArchive = (*EventArchive)(nil)

// InsertBulk stores records not yet archived.
func (s *EventArchive) InsertBulk(_ context.Context, records []*domain.EventRecord) error {
	seen := make(map[eventKey]struct{}, len(records))
	for _, r := range records {
		if r == nil || r.ID == "" {
			return storage.ErrInvalidInput
		}
		k := eventKey{r.Seq, r.Index}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range records {
		k := eventKey{r.Seq, r.Index}
		if _, exists := s.data[k]; exists {
			continue
		}
		s.data[k] = copyRecord(r)
	}
	return nil
}

// GetByKind retrieves all records of a kind.
func (s *EventArchive) GetByKind(_ context.Context, kind string) ([]*domain.EventRecord, error) {
	return s.filter(func(r *domain.EventRecord) bool { return r.Kind == kind }), nil
}

// GetBySegment retrieves all records referring to a segment.
func (s *EventArchive) GetBySegment(_ context.Context, segmentID uint64) ([]*domain.EventRecord, error) {
	return s.filter(func(r *domain.EventRecord) bool { return r.SegmentID() == segmentID }), nil
}

// GetByTimeRange retrieves records within [start, end] (inclusive).
func (s *EventArchive) GetByTimeRange(_ context.Context, start, end int64) ([]*domain.EventRecord, error) {
	return s.filter(func(r *domain.EventRecord) bool { return r.Time >= start && r.Time <= end }), nil
}

// SettlementVolume sums SegmentPurchased records within [start, end].
func (s *EventArchive) SettlementVolume(_ context.Context, start, end int64) (*storage.SettlementVolume, error) {
	vol := &storage.SettlementVolume{
		Volume:         math.ZeroInt(),
		ProviderPayout: math.ZeroInt(),
		BrokerSpread:   math.ZeroInt(),
	}

	records := s.filter(func(r *domain.EventRecord) bool {
		return r.Kind == domain.EventSegmentPurchased && r.Time >= start && r.Time <= end
	})
	for _, r := range records {
		vol.Purchases++
		vol.Volume = vol.Volume.Add(r.Amount())
		vol.ProviderPayout = vol.ProviderPayout.Add(attrInt(r, domain.AttrProviderPayout))
		vol.BrokerSpread = vol.BrokerSpread.Add(attrInt(r, domain.AttrBrokerSpread))
	}
	return vol, nil
}

func attrInt(r *domain.EventRecord, key string) math.Int {
	v, ok := math.NewIntFromString(r.Attr(key))
	if !ok {
		return math.ZeroInt()
	}
	return v
}

// filter returns matching copies ordered by (seq, index).
func (s *EventArchive) filter(match func(*domain.EventRecord) bool) []*domain.EventRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.EventRecord
	for _, r := range s.data {
		if match(r) {
			result = append(result, copyRecord(r))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Seq != result[j].Seq {
			return result[i].Seq < result[j].Seq
		}
		return result[i].Index < result[j].Index
	})
	return result
}
