package token

import (
	"context"
	"errors"
	"testing"

	"cosmossdk.io/math"

	"pat-settlement/internal/domain"
	"pat-settlement/internal/storage"
	"pat-settlement/internal/storage/memory"
)

var (
	issuer    = domain.Address{0xA0}
	treasury  = domain.Address{0xA1}
	ecosystem = domain.Address{0xA2}
	ico       = domain.Address{0xA3}
	team      = domain.Address{0xA4}
	holder    = domain.Address{0xB1}
	spender   = domain.Address{0xB2}
)

const t0 = int64(1_700_000_000)

type harness struct {
	t         *testing.T
	store     *memory.StateStore
	receivers *Receivers
	events    []domain.Event
}

func newHarness(t *testing.T, supply int64) *harness {
	t.Helper()
	h := &harness{t: t, store: memory.NewStateStore(), receivers: NewReceivers()}
	err := h.run(func(l *Ledger) error {
		return l.MintGenesis(context.Background(), domain.TokenInfo{
			Name: "Pattern Token", Symbol: "PAT", Decimals: 0, TotalSupply: math.NewInt(supply), Issuer: issuer,
		})
	})
	if err != nil {
		t.Fatalf("MintGenesis failed: %v", err)
	}
	return h
}

// run executes fn in one transaction and keeps its events on success.
func (h *harness) run(fn func(l *Ledger) error) error {
	journal := &domain.Journal{}
	err := h.store.Atomic(context.Background(), func(tx storage.Tx) error {
		return fn(NewLedger(tx, journal, h.receivers))
	})
	if err == nil {
		h.events = append(h.events, journal.Events()...)
	}
	return err
}

func (h *harness) balance(addr domain.Address) math.Int {
	h.t.Helper()
	var bal math.Int
	err := h.store.View(context.Background(), func(tx storage.ReadTx) error {
		var err error
		bal, err = tx.Balance(context.Background(), addr)
		return err
	})
	if err != nil {
		h.t.Fatalf("Balance failed: %v", err)
	}
	return bal
}

func (h *harness) supply() math.Int {
	h.t.Helper()
	sum := math.ZeroInt()
	var total math.Int
	_ = h.store.View(context.Background(), func(tx storage.ReadTx) error {
		info, err := tx.TokenInfo(context.Background())
		if err != nil {
			return err
		}
		total = info.TotalSupply
		all, err := tx.Balances(context.Background())
		for _, b := range all {
			sum = sum.Add(b)
		}
		return err
	})
	if !sum.Equal(total) {
		h.t.Fatalf("supply invariant broken: balances sum %s, supply %s", sum, total)
	}
	return total
}

func (h *harness) distribute(duration int64) (domain.AllocationAmounts, error) {
	var amounts domain.AllocationAmounts
	err := h.run(func(l *Ledger) error {
		var err error
		amounts, err = l.DistributeAllocation(context.Background(), Allocation{
			Treasury: treasury, Ecosystem: ecosystem, ICO: ico, TeamVestingTarget: team, VestingDuration: duration,
		}, t0)
		return err
	})
	return amounts, err
}

func TestMintGenesis_Once(t *testing.T) {
	h := newHarness(t, 1000)

	if got := h.balance(issuer); !got.Equal(math.NewInt(1000)) {
		t.Errorf("issuer balance = %s, want 1000", got)
	}
	h.supply()

	err := h.run(func(l *Ledger) error {
		return l.MintGenesis(context.Background(), domain.TokenInfo{TotalSupply: math.NewInt(1), Issuer: holder})
	})
	if !errors.Is(err, domain.ErrAlreadyInitialized) {
		t.Errorf("Expected ErrAlreadyInitialized, got %v", err)
	}
}

func TestTransfer(t *testing.T) {
	h := newHarness(t, 1000)
	ctx := context.Background()

	if err := h.run(func(l *Ledger) error { return l.Transfer(ctx, issuer, holder, math.NewInt(300)) }); err != nil {
		t.Fatalf("Transfer failed: %v", err)
	}
	if got := h.balance(holder); !got.Equal(math.NewInt(300)) {
		t.Errorf("holder balance = %s, want 300", got)
	}

	tests := []struct {
		name    string
		from    domain.Address
		to      domain.Address
		amount  math.Int
		wantErr error
	}{
		{"exceeds balance", holder, spender, math.NewInt(301), domain.ErrInsufficientBalance},
		{"zero amount", holder, spender, math.ZeroInt(), domain.ErrInvalidAmount},
		{"negative amount", holder, spender, math.NewInt(-1), domain.ErrInvalidAmount},
		{"zero recipient", holder, domain.ZeroAddress, math.NewInt(1), domain.ErrInvalidRecipient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := h.run(func(l *Ledger) error { return l.Transfer(ctx, tt.from, tt.to, tt.amount) })
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
		})
	}
	h.supply()
}

func TestTransferFrom(t *testing.T) {
	h := newHarness(t, 1000)
	ctx := context.Background()

	_ = h.run(func(l *Ledger) error { return l.Transfer(ctx, issuer, holder, math.NewInt(500)) })
	_ = h.run(func(l *Ledger) error { return l.Approve(ctx, holder, spender, math.NewInt(100)) })

	err := h.run(func(l *Ledger) error { return l.TransferFrom(ctx, spender, holder, treasury, math.NewInt(101)) })
	if !errors.Is(err, domain.ErrInsufficientAllowance) {
		t.Errorf("Expected ErrInsufficientAllowance, got %v", err)
	}

	err = h.run(func(l *Ledger) error { return l.TransferFrom(ctx, spender, holder, treasury, math.NewInt(60)) })
	if err != nil {
		t.Fatalf("TransferFrom failed: %v", err)
	}

	var remaining math.Int
	_ = h.run(func(l *Ledger) error {
		var err error
		remaining, err = l.Allowance(ctx, holder, spender)
		return err
	})
	if !remaining.Equal(math.NewInt(40)) {
		t.Errorf("allowance = %s, want 40", remaining)
	}
	if got := h.balance(treasury); !got.Equal(math.NewInt(60)) {
		t.Errorf("treasury balance = %s, want 60", got)
	}
}

func TestBurn(t *testing.T) {
	h := newHarness(t, 1000)
	ctx := context.Background()

	_ = h.run(func(l *Ledger) error { return l.Transfer(ctx, issuer, holder, math.NewInt(100)) })

	err := h.run(func(l *Ledger) error { return l.Burn(ctx, holder, math.NewInt(101)) })
	if !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Errorf("Expected ErrInsufficientBalance, got %v", err)
	}

	if err := h.run(func(l *Ledger) error { return l.Burn(ctx, holder, math.NewInt(40)) }); err != nil {
		t.Fatalf("Burn failed: %v", err)
	}
	if got := h.supply(); !got.Equal(math.NewInt(960)) {
		t.Errorf("supply = %s, want 960", got)
	}
	if last := h.events[len(h.events)-1]; last.Kind() != domain.EventBurn {
		t.Errorf("last event = %s, want Burn", last.Kind())
	}
}

func TestReceiverHook(t *testing.T) {
	h := newHarness(t, 1000)
	ctx := context.Background()

	var seen math.Int
	h.receivers.Register(holder, ReceiverFunc(func(_ context.Context, from domain.Address, amount math.Int) error {
		if from != issuer {
			t.Errorf("hook from = %s, want issuer", from)
		}
		seen = amount
		return nil
	}))
	_ = h.run(func(l *Ledger) error { return l.Transfer(ctx, issuer, holder, math.NewInt(7)) })
	if !seen.Equal(math.NewInt(7)) {
		t.Errorf("hook saw %s, want 7", seen)
	}

	reject := errors.New("rejected")
	h.receivers.Register(spender, ReceiverFunc(func(context.Context, domain.Address, math.Int) error { return reject }))
	err := h.run(func(l *Ledger) error { return l.Transfer(ctx, issuer, spender, math.NewInt(5)) })
	if !errors.Is(err, reject) {
		t.Fatalf("Expected hook error, got %v", err)
	}
	if got := h.balance(spender); !got.IsZero() {
		t.Errorf("rejected transfer left balance %s", got)
	}
	h.supply()
}
