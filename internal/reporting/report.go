package reporting

import (
	"time"

	"cosmossdk.io/math"
)

// Report summarizes archived settlement activity over a time window.
type Report struct {
	GeneratedAt time.Time
	From        int64 // unix seconds, inclusive
	To          int64 // unix seconds, inclusive
	Decimals    int32

	Volume VolumeSummary

	// EventCounts is sorted by kind.
	EventCounts []KindCountRow

	// Providers is sorted by volume descending, then address.
	Providers []ProviderRow

	// Segments is sorted by segment ID.
	Segments []SegmentRow

	DataQuality DataQualitySection
}

// VolumeSummary is the settlement total for the window.
type VolumeSummary struct {
	Purchases      uint64
	Volume         math.Int
	ProviderPayout math.Int
	BrokerSpread   math.Int
	Withdrawn      math.Int
}

// DataQualitySection lists cross-checks between archive aggregates and
// the raw records.
type DataQualitySection struct {
	IntegrityErrors []string
}

// Passed reports whether every check held.
func (d DataQualitySection) Passed() bool {
	return len(d.IntegrityErrors) == 0
}

// KindCountRow counts records of one event kind.
type KindCountRow struct {
	Kind  string
	Count int
}

// ProviderRow aggregates purchases credited to one provider.
type ProviderRow struct {
	Provider  string
	Purchases int
	Volume    math.Int
	Payout    math.Int
	Withdrawn math.Int
}

// SegmentRow aggregates purchases of one segment.
type SegmentRow struct {
	SegmentID uint64
	Provider  string
	Type      string
	Purchases int
	Volume    math.Int
}
