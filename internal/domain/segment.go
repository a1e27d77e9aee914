package domain

import (
	"fmt"
	"strconv"

	"cosmossdk.io/math"
)

// SegmentType is the intent category a segment sells access to.
// Ordinals are part of the persisted schema and must not be reordered.
type SegmentType uint8

const (
	SegmentTypePurchaseIntent SegmentType = iota
	SegmentTypeResearchIntent
	SegmentTypeComparisonIntent
	SegmentTypeEngagementIntent
	SegmentTypeNavigationIntent
)

var segmentTypeNames = [...]string{
	SegmentTypePurchaseIntent:   "PURCHASE_INTENT",
	SegmentTypeResearchIntent:   "RESEARCH_INTENT",
	SegmentTypeComparisonIntent: "COMPARISON_INTENT",
	SegmentTypeEngagementIntent: "ENGAGEMENT_INTENT",
	SegmentTypeNavigationIntent: "NAVIGATION_INTENT",
}

// String returns the string representation of SegmentType.
func (t SegmentType) String() string {
	if !t.IsValid() {
		return fmt.Sprintf("SegmentType(%d)", uint8(t))
	}
	return segmentTypeNames[t]
}

// IsValid checks if the type is a member of the closed set.
func (t SegmentType) IsValid() bool {
	return int(t) < len(segmentTypeNames)
}

// ParseSegmentType accepts either the name or the ordinal.
func ParseSegmentType(s string) (SegmentType, bool) {
	for i, name := range segmentTypeNames {
		if name == s {
			return SegmentType(i), true
		}
	}
	if n, err := strconv.ParseUint(s, 10, 8); err == nil && SegmentType(n).IsValid() {
		return SegmentType(n), true
	}
	return 0, false
}

// MarshalText implements encoding.TextMarshaler.
func (t SegmentType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *SegmentType) UnmarshalText(text []byte) error {
	parsed, ok := ParseSegmentType(string(text))
	if !ok {
		return fmt.Errorf("unknown segment type %q", string(text))
	}
	*t = parsed
	return nil
}

// Segment limits.
const (
	MinWindowDays    = 1
	MaxWindowDays    = 30
	MaxConfidenceBps = 10000
)

// Segment is a listed, purchasable unit of time-boxed, confidence-scored data access.
type Segment struct {
	ID            uint64
	Provider      Address
	Type          SegmentType
	WindowDays    uint16
	ConfidenceBps uint16
	AskPrice      math.Int
	Active        bool
	CreatedAt     int64 // unix seconds
	UpdatedAt     int64 // unix seconds
}

// Label renders the marketplace listing label, e.g. "PURCHASE_INTENT|7D|0.70".
func (s *Segment) Label() string {
	return fmt.Sprintf("%s|%dD|%d.%02d", s.Type, s.WindowDays, s.ConfidenceBps/BpsDenominator, (s.ConfidenceBps%BpsDenominator)/100)
}

// SegmentFilter narrows registry listings. Zero values match everything.
type SegmentFilter struct {
	Provider   *Address
	Type       *SegmentType
	ActiveOnly bool
	AfterID    uint64
	Limit      int
}

// Matches reports whether s passes the filter (ignoring pagination).
func (f SegmentFilter) Matches(s *Segment) bool {
	if f.Provider != nil && s.Provider != *f.Provider {
		return false
	}
	if f.Type != nil && s.Type != *f.Type {
		return false
	}
	if f.ActiveOnly && !s.Active {
		return false
	}
	return s.ID > f.AfterID
}

// Split is the division of one ask price between provider and broker.
type Split struct {
	AskPrice       math.Int
	ProviderPayout math.Int
	BrokerSpread   math.Int
}

// Settlement describes a completed purchase.
type Settlement struct {
	SegmentID uint64
	Consumer  Address
	Provider  Address
	Split
	SettledAt int64
}
