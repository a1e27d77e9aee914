package events

import (
	"context"

	"cosmossdk.io/math"

	"pat-settlement/internal/domain"
	"pat-settlement/internal/observability"
)

// MetricsSink derives Prometheus counters from committed records.
type MetricsSink struct {
	decimals int32
}

// NewMetricsSink creates a sink rendering amounts with the token's decimals.
func NewMetricsSink(decimals int32) *MetricsSink {
	return &MetricsSink{decimals: decimals}
}

var _ Sink = (*MetricsSink)(nil)

// Name implements Sink.
func (s *MetricsSink) Name() string { return "metrics" }

// Publish implements Sink.
func (s *MetricsSink) Publish(_ context.Context, records []*domain.EventRecord) error {
	for _, r := range records {
		observability.RecordEvent(r.Kind)

		switch r.Kind {
		case domain.EventSegmentPurchased:
			observability.RecordPurchase(
				s.tokens(r.Attr(domain.AttrAskPrice)),
				s.tokens(r.Attr(domain.AttrProviderPayout)),
				s.tokens(r.Attr(domain.AttrBrokerSpread)),
			)
		case domain.EventWithdrawal:
			observability.RecordWithdrawal(s.tokens(r.Attr(domain.AttrAmount)))
		case domain.EventSegmentCreated:
			observability.RecordSegmentCreated(r.Attr(domain.AttrType))
		}
	}
	return nil
}

func (s *MetricsSink) tokens(raw string) float64 {
	v, ok := math.NewIntFromString(raw)
	if !ok {
		return 0
	}
	return domain.TokensFloat(v, s.decimals)
}
