package memory

import (
	"context"
	"errors"
	"testing"

	"pat-settlement/internal/domain"
	"pat-settlement/internal/storage"
)

func purchase(seq uint64, segmentID, ask, payout, spread string, at int64) *domain.EventRecord {
	return &domain.EventRecord{
		ID:   "p" + segmentID,
		Seq:  seq,
		Kind: domain.EventSegmentPurchased,
		Time: at,
		Attributes: map[string]string{
			domain.AttrSegmentID:      segmentID,
			domain.AttrAskPrice:       ask,
			domain.AttrProviderPayout: payout,
			domain.AttrBrokerSpread:   spread,
		},
	}
}

func TestEventArchive_InsertAndQuery(t *testing.T) {
	archive := NewEventArchive()
	ctx := context.Background()

	err := archive.InsertBulk(ctx, []*domain.EventRecord{
		purchase(2, "5", "100", "70", "30", 200),
		purchase(1, "4", "10", "7", "3", 100),
		{ID: "t", Seq: 1, Index: 1, Kind: domain.EventTransfer, Time: 100},
	})
	if err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	bySeg, _ := archive.GetBySegment(ctx, 5)
	if len(bySeg) != 1 || bySeg[0].Seq != 2 {
		t.Errorf("unexpected segment records: %+v", bySeg)
	}

	byKind, _ := archive.GetByKind(ctx, domain.EventSegmentPurchased)
	if len(byKind) != 2 || byKind[0].Seq != 1 {
		t.Errorf("records not ordered by seq: %+v", byKind)
	}

	inRange, _ := archive.GetByTimeRange(ctx, 100, 100)
	if len(inRange) != 2 {
		t.Errorf("Expected 2 records at t=100, got %d", len(inRange))
	}
}

func TestEventArchive_ReplayAndDuplicates(t *testing.T) {
	archive := NewEventArchive()
	ctx := context.Background()

	r := purchase(1, "1", "100", "70", "30", 100)
	_ = archive.InsertBulk(ctx, []*domain.EventRecord{r})

	// Redelivery is skipped
	if err := archive.InsertBulk(ctx, []*domain.EventRecord{r}); err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	all, _ := archive.GetByTimeRange(ctx, 0, 1000)
	if len(all) != 1 {
		t.Errorf("Expected 1 record after replay, got %d", len(all))
	}

	err := archive.InsertBulk(ctx, []*domain.EventRecord{r, r})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestEventArchive_SettlementVolume(t *testing.T) {
	archive := NewEventArchive()
	ctx := context.Background()

	_ = archive.InsertBulk(ctx, []*domain.EventRecord{
		purchase(1, "1", "100", "70", "30", 100),
		purchase(2, "2", "99", "70", "29", 150),
		purchase(3, "3", "1", "1", "0", 900),
	})

	vol, err := archive.SettlementVolume(ctx, 0, 500)
	if err != nil {
		t.Fatalf("SettlementVolume failed: %v", err)
	}
	if vol.Purchases != 2 {
		t.Errorf("Purchases mismatch: got %d, want 2", vol.Purchases)
	}
	if vol.Volume.String() != "199" || vol.ProviderPayout.String() != "140" || vol.BrokerSpread.String() != "59" {
		t.Errorf("unexpected volume: %+v", vol)
	}
}
