package events

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"pat-settlement/internal/domain"
	"pat-settlement/internal/observability"
	"pat-settlement/internal/storage/memory"
)

func sampleRecords(seq uint64) []*domain.EventRecord {
	return []*domain.EventRecord{
		{
			ID: "a", Seq: seq, Index: 0, Kind: domain.EventSegmentPurchased, Time: 1_700_000_000,
			Attributes: map[string]string{
				domain.AttrSegmentID:      "1",
				domain.AttrAskPrice:       "100",
				domain.AttrProviderPayout: "70",
				domain.AttrBrokerSpread:   "30",
			},
		},
		{
			ID: "b", Seq: seq, Index: 1, Kind: domain.EventPayoutRecorded, Time: 1_700_000_000,
			Attributes: map[string]string{domain.AttrSegmentID: "1", domain.AttrAmount: "70"},
		},
	}
}

func TestDispatcher_FailingSinkDoesNotStopOthers(t *testing.T) {
	failing := NewMemorySink()
	failing.FailWith(errors.New("down"))
	healthy := NewMemorySink()

	d := NewDispatcher(nil, failing, healthy)
	d.Dispatch(context.Background(), sampleRecords(1))

	if got := len(healthy.Records()); got != 2 {
		t.Errorf("healthy sink got %d records, want 2", got)
	}
	if got := len(failing.Records()); got != 0 {
		t.Errorf("failing sink kept %d records, want 0", got)
	}
}

func TestDispatcher_NilAndEmpty(t *testing.T) {
	var d *Dispatcher
	d.Dispatch(context.Background(), sampleRecords(1))

	sink := NewMemorySink()
	NewDispatcher(nil, sink).Dispatch(context.Background(), nil)
	if len(sink.Records()) != 0 {
		t.Error("empty dispatch reached the sink")
	}
}

func TestArchiveSink(t *testing.T) {
	archive := memory.NewEventArchive()
	sink := NewArchiveSink(archive)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := sink.Publish(ctx, sampleRecords(3)); err != nil {
			t.Fatalf("Publish %d failed: %v", i, err)
		}
	}

	got, err := archive.GetBySegment(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("archived %d records, want 2 (replay skipped)", len(got))
	}
}

func TestMetricsSink(t *testing.T) {
	m := observability.DefaultMetrics
	beforePurchases := testutil.ToFloat64(m.PurchasesTotal)
	beforeSpread := testutil.ToFloat64(m.BrokerSpreadTotal)
	beforeKind := testutil.ToFloat64(m.EventsEmitted.WithLabelValues(domain.EventPayoutRecorded))

	sink := NewMetricsSink(0)
	if err := sink.Publish(context.Background(), sampleRecords(1)); err != nil {
		t.Fatal(err)
	}

	if got := testutil.ToFloat64(m.PurchasesTotal) - beforePurchases; got != 1 {
		t.Errorf("purchases delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.BrokerSpreadTotal) - beforeSpread; got != 30 {
		t.Errorf("spread delta = %v, want 30", got)
	}
	if got := testutil.ToFloat64(m.EventsEmitted.WithLabelValues(domain.EventPayoutRecorded)) - beforeKind; got != 1 {
		t.Errorf("payout events delta = %v, want 1", got)
	}
}

func TestMessage_RoundTrip(t *testing.T) {
	r := sampleRecords(9)[0]
	back := NewMessage(r).Record()
	if back.ID != r.ID || back.Seq != r.Seq || back.Time != r.Time || back.Attr(domain.AttrAskPrice) != "100" {
		t.Errorf("round trip mismatch: %+v", back)
	}
}
