package settlement

import (
	"testing"
	"time"

	"cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pat-settlement/internal/domain"
)

func TestCreateSegment_Validation(t *testing.T) {
	f := newFixture(t, 1_000, 3000)

	valid := SegmentParams{
		Type:          domain.SegmentTypeResearchIntent,
		WindowDays:    30,
		ConfidenceBps: 10000,
		AskPrice:      math.NewInt(1),
	}
	tests := []struct {
		name    string
		mutate  func(p *SegmentParams)
		wantErr error
	}{
		{"bad type", func(p *SegmentParams) { p.Type = 5 }, domain.ErrInvalidSegmentType},
		{"zero window", func(p *SegmentParams) { p.WindowDays = 0 }, domain.ErrInvalidWindow},
		{"window 31", func(p *SegmentParams) { p.WindowDays = 31 }, domain.ErrInvalidWindow},
		{"confidence 10001", func(p *SegmentParams) { p.ConfidenceBps = 10001 }, domain.ErrInvalidConfidence},
		{"zero price", func(p *SegmentParams) { p.AskPrice = math.ZeroInt() }, domain.ErrInvalidPrice},
		{"nil price", func(p *SegmentParams) { p.AskPrice = math.Int{} }, domain.ErrInvalidPrice},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			tt.mutate(&p)
			_, err := f.engine.CreateSegment(f.ctx, provider, p)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, domain.CategoryValidation, domain.CategoryOf(err))
		})
	}

	id, err := f.engine.CreateSegment(f.ctx, provider, valid)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), id, "failed creations must not consume ids")

	seg, err := f.engine.GetSegment(f.ctx, id)
	require.NoError(t, err)
	assert.True(t, seg.Active)
	assert.Equal(t, provider, seg.Provider)
	assert.Equal(t, f.now.Unix(), seg.CreatedAt)
	assert.Equal(t, "RESEARCH_INTENT|30D|1.00", seg.Label())
}

func TestCreateSegment_SequentialIDs(t *testing.T) {
	f := newFixture(t, 1_000, 3000)
	for want := uint64(1); want <= 5; want++ {
		owner := provider
		if want%2 == 0 {
			owner = provider2
		}
		assert.Equal(t, want, f.listSegment(owner, int64(want)))
	}

	mine, err := f.engine.ListSegments(f.ctx, domain.SegmentFilter{Provider: &provider})
	require.NoError(t, err)
	require.Len(t, mine, 3)
	assert.Equal(t, []uint64{1, 3, 5}, []uint64{mine[0].ID, mine[1].ID, mine[2].ID})

	require.NoError(t, f.engine.DeactivateSegment(f.ctx, provider, 3))
	active, err := f.engine.ListSegments(f.ctx, domain.SegmentFilter{Provider: &provider, ActiveOnly: true})
	require.NoError(t, err)
	assert.Len(t, active, 2)

	page, err := f.engine.ListSegments(f.ctx, domain.SegmentFilter{AfterID: 2, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, uint64(3), page[0].ID)
}

func TestUpdateSegmentPrice(t *testing.T) {
	f := newFixture(t, 1_000, 3000)
	id := f.listSegment(provider, 100)

	err := f.engine.UpdateSegmentPrice(f.ctx, provider, 77, math.NewInt(5))
	require.ErrorIs(t, err, domain.ErrSegmentNotFound)

	err = f.engine.UpdateSegmentPrice(f.ctx, outsider, id, math.NewInt(5))
	require.ErrorIs(t, err, domain.ErrNotProvider)
	assert.Equal(t, domain.CategoryAuthorization, domain.CategoryOf(err))

	err = f.engine.UpdateSegmentPrice(f.ctx, provider, id, math.ZeroInt())
	require.ErrorIs(t, err, domain.ErrInvalidPrice)

	f.now = f.now.Add(time.Hour)
	require.NoError(t, f.engine.UpdateSegmentPrice(f.ctx, provider, id, math.NewInt(250)))

	seg, err := f.engine.GetSegment(f.ctx, id)
	require.NoError(t, err)
	requireAmount(t, 250, seg.AskPrice)
	assert.Equal(t, f.now.Unix(), seg.UpdatedAt)
	assert.Less(t, seg.CreatedAt, seg.UpdatedAt)

	records := f.sink.Records()
	last := records[len(records)-1]
	assert.Equal(t, domain.EventSegmentPriceUpdated, last.Kind)
	assert.Equal(t, "250", last.Attr(domain.AttrAskPrice))
}

func TestDeactivateSegment(t *testing.T) {
	f := newFixture(t, 1_000, 3000)
	id := f.listSegment(provider, 100)
	f.fund(consumer, 100)
	f.approveCustody(consumer, 100)
	_, err := f.engine.BuySegment(f.ctx, consumer, id)
	require.NoError(t, err)

	require.ErrorIs(t, f.engine.DeactivateSegment(f.ctx, outsider, id), domain.ErrNotProvider)
	require.ErrorIs(t, f.engine.DeactivateSegment(f.ctx, provider, 9), domain.ErrSegmentNotFound)
	require.NoError(t, f.engine.DeactivateSegment(f.ctx, provider, id))

	// Access already granted survives deactivation.
	has, err := f.engine.HasAccess(f.ctx, consumer, id)
	require.NoError(t, err)
	assert.True(t, has)
}

func TestPause_BlocksCreateAndBuyOnly(t *testing.T) {
	f := newFixture(t, 1_000_000, 3000)
	id := f.listSegment(provider, 100)
	f.fund(consumer, 200)
	f.approveCustody(consumer, 200)
	_, err := f.engine.BuySegment(f.ctx, consumer, id)
	require.NoError(t, err)
	other := f.listSegment(provider, 100)

	require.NoError(t, f.engine.SetPaused(f.ctx, operator, true))

	_, err = f.engine.CreateSegment(f.ctx, provider, SegmentParams{Type: 0, WindowDays: 1, AskPrice: math.NewInt(1)})
	require.ErrorIs(t, err, domain.ErrMarketPaused)
	_, err = f.engine.BuySegment(f.ctx, consumer, other)
	require.ErrorIs(t, err, domain.ErrMarketPaused)

	require.NoError(t, f.engine.UpdateSegmentPrice(f.ctx, provider, other, math.NewInt(120)))
	require.NoError(t, f.engine.WithdrawEarnings(f.ctx, provider, math.NewInt(10)))
	require.NoError(t, f.engine.DeactivateSegment(f.ctx, provider, other))

	require.NoError(t, f.engine.SetPaused(f.ctx, operator, false))
	f.listSegment(provider, 1)
	f.checkInvariants()
}

func TestWithdrawEarnings(t *testing.T) {
	f := newFixture(t, 1_000_000, 3000)
	id := f.listSegment(provider, 100)
	f.fund(consumer, 100)
	f.approveCustody(consumer, 100)
	_, err := f.engine.BuySegment(f.ctx, consumer, id)
	require.NoError(t, err)
	requireAmount(t, 70, f.earnings(provider))

	before := f.snapshot()
	err = f.engine.WithdrawEarnings(f.ctx, provider, math.NewInt(100))
	require.ErrorIs(t, err, domain.ErrInsufficientEarnings)
	f.requireUnchanged(before)
	requireAmount(t, 70, f.earnings(provider))

	require.ErrorIs(t, f.engine.WithdrawEarnings(f.ctx, provider, math.ZeroInt()), domain.ErrInvalidAmount)
	require.ErrorIs(t, f.engine.WithdrawEarnings(f.ctx, outsider, math.NewInt(1)), domain.ErrInsufficientEarnings)

	require.NoError(t, f.engine.WithdrawEarnings(f.ctx, provider, math.NewInt(20)))
	requireAmount(t, 50, f.earnings(provider))
	requireAmount(t, 20, f.balance(provider))
	f.checkInvariants()

	all, err := f.engine.WithdrawAllEarnings(f.ctx, provider)
	require.NoError(t, err)
	requireAmount(t, 50, all)
	requireAmount(t, 0, f.earnings(provider))
	requireAmount(t, 70, f.balance(provider))
	requireAmount(t, 0, f.balance(f.cfg.Custody))

	_, err = f.engine.WithdrawAllEarnings(f.ctx, provider)
	require.ErrorIs(t, err, domain.ErrInsufficientEarnings)

	kinds := f.sink.Kinds()
	assert.Equal(t, []string{domain.EventWithdrawal, domain.EventTransfer}, kinds[len(kinds)-2:])
	f.checkInvariants()
}

func TestEventLog(t *testing.T) {
	f := newFixture(t, 1_000, 3000)
	f.listSegment(provider, 100)
	f.listSegment(provider, 200)

	records, err := f.engine.Events(f.ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, records, 3, "genesis mint plus two listings")

	seen := make(map[string]bool)
	for i, r := range records {
		assert.False(t, seen[r.ID], "duplicate event id %s", r.ID)
		seen[r.ID] = true
		if i > 0 {
			assert.Greater(t, r.Seq, records[i-1].Seq)
		}
		assert.Equal(t, f.now.Unix(), r.Time)
	}
	assert.Equal(t, f.sink.Records()[1].ID, records[1].ID)

	page, err := f.engine.Events(f.ctx, records[1].Seq, 10)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "200", page[0].Attr(domain.AttrAskPrice))
}
