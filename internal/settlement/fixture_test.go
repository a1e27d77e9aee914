package settlement

import (
	"context"
	"testing"
	"time"

	"cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"pat-settlement/internal/domain"
	"pat-settlement/internal/events"
	"pat-settlement/internal/storage/memory"
	"pat-settlement/internal/verification"
)

var (
	operator  = domain.Address{0x01}
	broker    = domain.Address{0x02}
	pool      = domain.Address{0x03}
	provider  = domain.Address{0x10}
	provider2 = domain.Address{0x11}
	consumer  = domain.Address{0x20}
	consumer2 = domain.Address{0x21}
	outsider  = domain.Address{0x30}
	programID = domain.Address{0x50, 0x41, 0x54}
)

type fixture struct {
	t      *testing.T
	ctx    context.Context
	engine *Engine
	store  *memory.StateStore
	sink   *events.MemorySink
	now    time.Time
	cfg    *domain.GlobalConfig
}

func newFixture(t *testing.T, supply int64, spreadBps uint32) *fixture {
	t.Helper()
	f := &fixture{
		t:     t,
		ctx:   context.Background(),
		store: memory.NewStateStore(),
		sink:  events.NewMemorySink(),
		now:   time.Unix(1_700_000_000, 0),
	}
	f.engine = New(Options{
		Store:      f.store,
		Dispatcher: events.NewDispatcher(nil, f.sink),
		Clock:      func() time.Time { return f.now },
	})

	cfg, err := f.engine.Genesis(f.ctx, operator, GenesisParams{
		TokenName:    "Pattern Token",
		TokenSymbol:  "PAT",
		TotalSupply:  math.NewInt(supply),
		SpreadBps:    spreadBps,
		BrokerWallet: broker,
		BrokerPool:   pool,
		ProgramID:    programID,
	})
	require.NoError(t, err)
	f.cfg = cfg
	f.checkInvariants()
	return f
}

// fund gives addr tokens from the operator.
func (f *fixture) fund(addr domain.Address, amount int64) {
	f.t.Helper()
	require.NoError(f.t, f.engine.Transfer(f.ctx, operator, addr, math.NewInt(amount)))
}

func (f *fixture) approveCustody(addr domain.Address, amount int64) {
	f.t.Helper()
	require.NoError(f.t, f.engine.Approve(f.ctx, addr, f.cfg.Custody, math.NewInt(amount)))
}

func (f *fixture) listSegment(owner domain.Address, price int64) uint64 {
	f.t.Helper()
	id, err := f.engine.CreateSegment(f.ctx, owner, SegmentParams{
		Type:          domain.SegmentTypePurchaseIntent,
		WindowDays:    7,
		ConfidenceBps: 7000,
		AskPrice:      math.NewInt(price),
	})
	require.NoError(f.t, err)
	return id
}

func (f *fixture) balance(addr domain.Address) math.Int {
	f.t.Helper()
	b, err := f.engine.BalanceOf(f.ctx, addr)
	require.NoError(f.t, err)
	return b
}

func (f *fixture) earnings(addr domain.Address) math.Int {
	f.t.Helper()
	e, err := f.engine.GetEarnings(f.ctx, addr)
	require.NoError(f.t, err)
	return e
}

func (f *fixture) snapshot() *verification.Snapshot {
	f.t.Helper()
	snap, err := verification.Capture(f.ctx, f.store)
	require.NoError(f.t, err)
	return snap
}

func (f *fixture) checkInvariants() {
	f.t.Helper()
	require.Empty(f.t, verification.CheckInvariants(f.snapshot()))
}

// requireUnchanged asserts that the committed state equals before.
func (f *fixture) requireUnchanged(before *verification.Snapshot) {
	f.t.Helper()
	require.Empty(f.t, verification.CompareSnapshots(before, f.snapshot()))
}

func requireAmount(t *testing.T, want int64, got math.Int) {
	t.Helper()
	require.True(t, got.Equal(math.NewInt(want)), "want %d, got %s", want, got)
}

func verificationDiff(before, after *verification.Snapshot) []verification.FieldDivergence {
	return verification.CompareSnapshots(before, after, "Config.Version", "EventCount")
}
