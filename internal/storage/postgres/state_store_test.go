package postgres

import (
	"context"
	"errors"
	"sync"
	"testing"

	"cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pat-settlement/internal/domain"
	"pat-settlement/internal/storage"
)

var (
	testProvider = domain.Address{0x11}
	testConsumer = domain.Address{0x22}
	testOperator = domain.Address{0x33}
)

func mustAmount(t *testing.T, s string) math.Int {
	t.Helper()
	v, ok := math.NewIntFromString(s)
	require.True(t, ok)
	return v
}

func TestStateStore_BalancesRoundTrip(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewStateStore(pool)
	ctx := context.Background()

	// Larger than int64 to exercise NUMERIC(78,0).
	big := mustAmount(t, "555222888000000000000000000")

	err := store.Atomic(ctx, func(tx storage.Tx) error {
		assert.Equal(t, uint64(1), tx.Seq())
		if err := tx.SetBalance(ctx, testProvider, big); err != nil {
			return err
		}
		if err := tx.SetAllowance(ctx, testConsumer, testOperator, math.NewInt(100)); err != nil {
			return err
		}
		return tx.SetEarnings(ctx, testProvider, math.NewInt(70))
	})
	require.NoError(t, err)

	err = store.View(ctx, func(tx storage.ReadTx) error {
		bal, err := tx.Balance(ctx, testProvider)
		require.NoError(t, err)
		assert.True(t, big.Equal(bal))

		missing, err := tx.Balance(ctx, testConsumer)
		require.NoError(t, err)
		assert.True(t, missing.IsZero())

		allow, err := tx.Allowance(ctx, testConsumer, testOperator)
		require.NoError(t, err)
		assert.Equal(t, "100", allow.String())

		all, err := tx.AllEarnings(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 1)
		assert.Equal(t, "70", all[testProvider].String())
		return nil
	})
	require.NoError(t, err)
}

func TestStateStore_RollbackOnError(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewStateStore(pool)
	ctx := context.Background()

	boom := errors.New("boom")
	err := store.Atomic(ctx, func(tx storage.Tx) error {
		require.NoError(t, tx.SetBalance(ctx, testConsumer, math.NewInt(5)))
		require.NoError(t, tx.InsertSegment(ctx, &domain.Segment{
			ID: 1, Provider: testProvider, WindowDays: 7, AskPrice: math.NewInt(100), Active: true,
		}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	err = store.View(ctx, func(tx storage.ReadTx) error {
		bal, err := tx.Balance(ctx, testConsumer)
		require.NoError(t, err)
		assert.True(t, bal.IsZero())

		_, err = tx.Segment(ctx, 1)
		assert.ErrorIs(t, err, storage.ErrNotFound)
		return nil
	})
	require.NoError(t, err)

	// The sequence bump was rolled back too.
	err = store.Atomic(ctx, func(tx storage.Tx) error {
		assert.Equal(t, uint64(1), tx.Seq())
		return nil
	})
	require.NoError(t, err)
}

func TestStateStore_SegmentsAndAccess(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewStateStore(pool)
	ctx := context.Background()

	err := store.Atomic(ctx, func(tx storage.Tx) error {
		for i := 0; i < 3; i++ {
			id, err := tx.NextSegmentID(ctx)
			require.NoError(t, err)
			require.Equal(t, uint64(i+1), id)
			require.NoError(t, tx.InsertSegment(ctx, &domain.Segment{
				ID:            id,
				Provider:      testProvider,
				Type:          domain.SegmentTypeComparisonIntent,
				WindowDays:    uint16(i + 1),
				ConfidenceBps: 7000,
				AskPrice:      math.NewInt(100),
				Active:        true,
				CreatedAt:     1700000000,
				UpdatedAt:     1700000000,
			}))
		}
		return tx.GrantAccess(ctx, testConsumer, 2, 1700000100)
	})
	require.NoError(t, err)

	err = store.Atomic(ctx, func(tx storage.Tx) error {
		seg, err := tx.Segment(ctx, 3)
		require.NoError(t, err)
		seg.Active = false
		seg.AskPrice = math.NewInt(250)
		seg.UpdatedAt = 1700000200
		return tx.UpdateSegment(ctx, seg)
	})
	require.NoError(t, err)

	err = store.Atomic(ctx, func(tx storage.Tx) error {
		return tx.GrantAccess(ctx, testConsumer, 2, 1700000300)
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	err = store.View(ctx, func(tx storage.ReadTx) error {
		seg, err := tx.Segment(ctx, 3)
		require.NoError(t, err)
		assert.False(t, seg.Active)
		assert.Equal(t, "250", seg.AskPrice.String())
		assert.Equal(t, domain.SegmentTypeComparisonIntent, seg.Type)
		assert.Equal(t, uint16(3), seg.WindowDays)
		assert.Equal(t, uint16(7000), seg.ConfidenceBps)
		assert.Equal(t, testProvider, seg.Provider)

		active, err := tx.Segments(ctx, domain.SegmentFilter{Provider: ptr(testProvider), ActiveOnly: true})
		require.NoError(t, err)
		require.Len(t, active, 2)
		assert.Equal(t, uint64(1), active[0].ID)

		page, err := tx.Segments(ctx, domain.SegmentFilter{AfterID: 1, Limit: 1})
		require.NoError(t, err)
		require.Len(t, page, 1)
		assert.Equal(t, uint64(2), page[0].ID)

		ok, err := tx.HasAccess(ctx, testConsumer, 2)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = tx.HasAccess(ctx, testConsumer, 1)
		require.NoError(t, err)
		assert.False(t, ok)

		rights, err := tx.AccessRights(ctx)
		require.NoError(t, err)
		require.Len(t, rights, 1)
		assert.Equal(t, int64(1700000100), rights[0].GrantedAt)
		return nil
	})
	require.NoError(t, err)
}

func TestStateStore_ConfigAndToken(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewStateStore(pool)
	ctx := context.Background()

	err := store.View(ctx, func(tx storage.ReadTx) error {
		_, err := tx.Config(ctx)
		assert.ErrorIs(t, err, storage.ErrNotFound)
		_, err = tx.TokenInfo(ctx)
		assert.ErrorIs(t, err, storage.ErrNotFound)
		_, err = tx.Distribution(ctx)
		assert.ErrorIs(t, err, storage.ErrNotFound)
		_, err = tx.VestingSchedule(ctx)
		assert.ErrorIs(t, err, storage.ErrNotFound)
		return nil
	})
	require.NoError(t, err)

	cfg := &domain.GlobalConfig{
		Operator:     testOperator,
		SpreadBps:    3000,
		BrokerWallet: domain.Address{0x44},
		BrokerPool:   domain.Address{0x55},
		Phase:        domain.PhaseForwards,
		Version:      "v1",
		ProgramID:    domain.Address{0x66},
		Custody:      domain.Address{0x77},
	}
	schedule := &domain.VestingSchedule{
		Beneficiary: domain.Address{0x88},
		Start:       1700000000,
		Duration:    domain.MinVestingDuration,
		Total:       math.NewInt(1000),
		Released:    math.NewInt(10),
	}
	dist := &domain.Distribution{
		Treasury:          domain.Address{1},
		Ecosystem:         domain.Address{2},
		ICO:               domain.Address{3},
		TeamVestingTarget: domain.Address{4},
		DistributedAt:     1700000000,
	}

	err = store.Atomic(ctx, func(tx storage.Tx) error {
		require.NoError(t, tx.SetTokenInfo(ctx, &domain.TokenInfo{
			Name: "Pattern Token", Symbol: "PAT", Decimals: 18, TotalSupply: math.NewInt(1000), Issuer: testOperator,
		}))
		require.NoError(t, tx.SetConfig(ctx, cfg))
		require.NoError(t, tx.SetVestingSchedule(ctx, schedule))
		return tx.SetDistribution(ctx, dist)
	})
	require.NoError(t, err)

	err = store.Atomic(ctx, func(tx storage.Tx) error {
		return tx.SetDistribution(ctx, dist)
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	err = store.View(ctx, func(tx storage.ReadTx) error {
		got, err := tx.Config(ctx)
		require.NoError(t, err)
		assert.Equal(t, cfg, got)

		info, err := tx.TokenInfo(ctx)
		require.NoError(t, err)
		assert.Equal(t, "PAT", info.Symbol)
		assert.Equal(t, "1000", info.TotalSupply.String())

		v, err := tx.VestingSchedule(ctx)
		require.NoError(t, err)
		assert.Equal(t, schedule.Beneficiary, v.Beneficiary)
		assert.Equal(t, "10", v.Released.String())

		d, err := tx.Distribution(ctx)
		require.NoError(t, err)
		assert.Equal(t, dist, d)
		return nil
	})
	require.NoError(t, err)
}

func TestStateStore_Events(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewStateStore(pool)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		err := store.Atomic(ctx, func(tx storage.Tx) error {
			return tx.AppendEvents(ctx, []*domain.EventRecord{
				{ID: "evt-" + string(rune('a'+i)) + "0", Seq: tx.Seq(), Index: 0, Kind: domain.EventSegmentCreated, Time: 1700000000, Attributes: map[string]string{"segment_id": "1"}},
				{ID: "evt-" + string(rune('a'+i)) + "1", Seq: tx.Seq(), Index: 1, Kind: domain.EventTransfer, Time: 1700000000},
			})
		})
		require.NoError(t, err)
	}

	err := store.View(ctx, func(tx storage.ReadTx) error {
		all, err := tx.Events(ctx, 0, 0)
		require.NoError(t, err)
		require.Len(t, all, 4)
		assert.Equal(t, "1", all[0].Attr("segment_id"))
		assert.Equal(t, uint64(2), all[3].Seq)
		assert.Equal(t, 1, all[3].Index)

		after, err := tx.Events(ctx, 1, 1)
		require.NoError(t, err)
		require.Len(t, after, 1)
		assert.Equal(t, "evt-b0", after[0].ID)
		return nil
	})
	require.NoError(t, err)
}

func TestStateStore_SerializedWriters(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewStateStore(pool)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.Atomic(ctx, func(tx storage.Tx) error {
				bal, err := tx.Balance(ctx, testConsumer)
				if err != nil {
					return err
				}
				return tx.SetBalance(ctx, testConsumer, bal.AddRaw(1))
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	err := store.View(ctx, func(tx storage.ReadTx) error {
		bal, err := tx.Balance(ctx, testConsumer)
		require.NoError(t, err)
		assert.Equal(t, "20", bal.String())
		return nil
	})
	require.NoError(t, err)
}
