package reporting

import (
	"context"
	"fmt"
	"sort"
	"time"

	"cosmossdk.io/math"

	"pat-settlement/internal/domain"
	"pat-settlement/internal/storage"
)

// Generator produces reports from the event archive.
type Generator struct {
	archive  storage.EventArchive
	decimals int32
	now      func() time.Time
}

// NewGenerator creates a report generator. decimals controls how amounts
// are rendered in Markdown.
func NewGenerator(archive storage.EventArchive, decimals int32) *Generator {
	return &Generator{
		archive:  archive,
		decimals: decimals,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate builds the report for records with Time in [from, to].
func (g *Generator) Generate(ctx context.Context, from, to int64) (*Report, error) {
	if to < from {
		return nil, fmt.Errorf("%w: window end %d before start %d", storage.ErrInvalidInput, to, from)
	}

	vol, err := g.archive.SettlementVolume(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("settlement volume: %w", err)
	}
	records, err := g.archive.GetByTimeRange(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("get records: %w", err)
	}
	created, err := g.archive.GetByKind(ctx, domain.EventSegmentCreated)
	if err != nil {
		return nil, fmt.Errorf("get segments: %w", err)
	}

	segmentTypes := make(map[uint64]string, len(created))
	for _, r := range created {
		segmentTypes[r.SegmentID()] = r.Attr(domain.AttrType)
	}

	report := &Report{
		GeneratedAt: g.now(),
		From:        from,
		To:          to,
		Decimals:    g.decimals,
		Volume: VolumeSummary{
			Purchases:      vol.Purchases,
			Volume:         vol.Volume,
			ProviderPayout: vol.ProviderPayout,
			BrokerSpread:   vol.BrokerSpread,
			Withdrawn:      math.ZeroInt(),
		},
	}

	report.EventCounts = countKinds(records)
	report.Providers, report.Segments = g.aggregate(records, segmentTypes, &report.Volume)
	report.DataQuality.IntegrityErrors = checkIntegrity(records, vol)

	return report, nil
}

func countKinds(records []*domain.EventRecord) []KindCountRow {
	counts := make(map[string]int)
	for _, r := range records {
		counts[r.Kind]++
	}
	rows := make([]KindCountRow, 0, len(counts))
	for kind, n := range counts {
		rows = append(rows, KindCountRow{Kind: kind, Count: n})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Kind < rows[j].Kind })
	return rows
}

func (g *Generator) aggregate(records []*domain.EventRecord, segmentTypes map[uint64]string, summary *VolumeSummary) ([]ProviderRow, []SegmentRow) {
	providers := make(map[string]*ProviderRow)
	segments := make(map[uint64]*SegmentRow)

	provider := func(addr string) *ProviderRow {
		p, ok := providers[addr]
		if !ok {
			p = &ProviderRow{Provider: addr, Volume: math.ZeroInt(), Payout: math.ZeroInt(), Withdrawn: math.ZeroInt()}
			providers[addr] = p
		}
		return p
	}

	for _, r := range records {
		switch r.Kind {
		case domain.EventSegmentPurchased:
			p := provider(r.Attr(domain.AttrProvider))
			p.Purchases++
			p.Volume = p.Volume.Add(r.Amount())
			p.Payout = p.Payout.Add(attrInt(r, domain.AttrProviderPayout))

			id := r.SegmentID()
			s, ok := segments[id]
			if !ok {
				s = &SegmentRow{
					SegmentID: id,
					Provider:  r.Attr(domain.AttrProvider),
					Type:      segmentTypes[id],
					Volume:    math.ZeroInt(),
				}
				segments[id] = s
			}
			s.Purchases++
			s.Volume = s.Volume.Add(r.Amount())

		case domain.EventWithdrawal:
			amount := r.Amount()
			summary.Withdrawn = summary.Withdrawn.Add(amount)
			p := provider(r.Attr(domain.AttrOwner))
			p.Withdrawn = p.Withdrawn.Add(amount)
		}
	}

	providerRows := make([]ProviderRow, 0, len(providers))
	for _, p := range providers {
		providerRows = append(providerRows, *p)
	}
	sort.Slice(providerRows, func(i, j int) bool {
		if c := providerRows[i].Volume.BigInt().Cmp(providerRows[j].Volume.BigInt()); c != 0 {
			return c > 0
		}
		return providerRows[i].Provider < providerRows[j].Provider
	})

	segmentRows := make([]SegmentRow, 0, len(segments))
	for _, s := range segments {
		segmentRows = append(segmentRows, *s)
	}
	sort.Slice(segmentRows, func(i, j int) bool { return segmentRows[i].SegmentID < segmentRows[j].SegmentID })

	return providerRows, segmentRows
}

// checkIntegrity cross-checks the archive aggregate against the raw records
// and verifies every purchase settled in full within its transaction.
func checkIntegrity(records []*domain.EventRecord, vol *storage.SettlementVolume) []string {
	var errs []string

	payouts := make(map[uint64][]*domain.EventRecord)
	for _, r := range records {
		if r.Kind == domain.EventPayoutRecorded {
			payouts[r.Seq] = append(payouts[r.Seq], r)
		}
	}

	var purchases uint64
	volume := math.ZeroInt()
	for _, r := range records {
		if r.Kind != domain.EventSegmentPurchased {
			continue
		}
		purchases++
		ask := r.Amount()
		volume = volume.Add(ask)

		payout := attrInt(r, domain.AttrProviderPayout)
		spread := attrInt(r, domain.AttrBrokerSpread)
		if !payout.Add(spread).Equal(ask) {
			errs = append(errs, fmt.Sprintf("seq %d segment %d: payout %s + spread %s != ask %s",
				r.Seq, r.SegmentID(), payout, spread, ask))
		}

		if !hasPayout(payouts[r.Seq], r.Attr(domain.AttrProvider), r.SegmentID(), payout) {
			errs = append(errs, fmt.Sprintf("seq %d segment %d: no matching PayoutRecorded", r.Seq, r.SegmentID()))
		}
	}

	if purchases != vol.Purchases {
		errs = append(errs, fmt.Sprintf("archive reports %d purchases, records show %d", vol.Purchases, purchases))
	}
	if !volume.Equal(vol.Volume) {
		errs = append(errs, fmt.Sprintf("archive reports volume %s, records sum to %s", vol.Volume, volume))
	}
	return errs
}

func hasPayout(candidates []*domain.EventRecord, provider string, segmentID uint64, amount math.Int) bool {
	for _, p := range candidates {
		if p.Attr(domain.AttrProvider) == provider && p.SegmentID() == segmentID && p.Amount().Equal(amount) {
			return true
		}
	}
	return false
}

func attrInt(r *domain.EventRecord, key string) math.Int {
	v, ok := math.NewIntFromString(r.Attr(key))
	if !ok {
		return math.ZeroInt()
	}
	return v
}
