package clickhouse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pat-settlement/internal/domain"
	"pat-settlement/internal/storage"
)

func purchaseRecord(seq uint64, segmentID, ask, payout, spread string, at int64) *domain.EventRecord {
	return &domain.EventRecord{
		ID:    "purchase-" + segmentID + "-" + ask,
		Seq:   seq,
		Index: 0,
		Kind:  domain.EventSegmentPurchased,
		Time:  at,
		Attributes: map[string]string{
			domain.AttrSegmentID:      segmentID,
			domain.AttrConsumer:       "consumer",
			domain.AttrProvider:       "provider",
			domain.AttrAskPrice:       ask,
			domain.AttrProviderPayout: payout,
			domain.AttrBrokerSpread:   spread,
		},
	}
}

func TestEventArchive_InsertBulk(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	archive := NewEventArchive(conn)
	ctx := context.Background()

	// Test empty insert
	assert.NoError(t, archive.InsertBulk(ctx, nil))

	records := []*domain.EventRecord{
		purchaseRecord(1, "7", "100", "70", "30", 1000),
		{
			ID: "transfer-1", Seq: 1, Index: 1, Kind: domain.EventTransfer, Time: 1000,
			Attributes: map[string]string{domain.AttrFrom: "a", domain.AttrTo: "b", domain.AttrAmount: "30"},
		},
	}
	require.NoError(t, archive.InsertBulk(ctx, records))

	got, err := archive.GetBySegment(ctx, 7)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "consumer", got[0].Attr(domain.AttrConsumer))
	assert.Equal(t, uint64(1), got[0].Seq)
	assert.Equal(t, int64(1000), got[0].Time)

	transfers, err := archive.GetByKind(ctx, domain.EventTransfer)
	require.NoError(t, err)
	require.Len(t, transfers, 1)
	assert.Equal(t, 1, transfers[0].Index)

	// Replaying the same records is a no-op
	require.NoError(t, archive.InsertBulk(ctx, records))
	all, err := archive.GetByTimeRange(ctx, 0, 2000)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestEventArchive_IntraBatchDuplicate(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	archive := NewEventArchive(conn)
	ctx := context.Background()

	r := purchaseRecord(1, "1", "100", "70", "30", 1000)
	err := archive.InsertBulk(ctx, []*domain.EventRecord{r, r})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestEventArchive_SettlementVolume(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	archive := NewEventArchive(conn)
	ctx := context.Background()

	require.NoError(t, archive.InsertBulk(ctx, []*domain.EventRecord{
		purchaseRecord(1, "1", "100", "70", "30", 1000),
		purchaseRecord(2, "2", "1000000000000000000000", "700000000000000000000", "300000000000000000000", 1500),
		purchaseRecord(3, "3", "5", "5", "0", 5000),
	}))

	vol, err := archive.SettlementVolume(ctx, 0, 2000)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), vol.Purchases)
	assert.Equal(t, "1000000000000000000100", vol.Volume.String())
	assert.Equal(t, "700000000000000000070", vol.ProviderPayout.String())
	assert.Equal(t, "300000000000000000030", vol.BrokerSpread.String())
}
