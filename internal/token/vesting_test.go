package token

import (
	"context"
	"errors"
	"testing"

	"cosmossdk.io/math"

	"pat-settlement/internal/domain"
)

func TestDistributeAllocation_ExampleSupply(t *testing.T) {
	h := newHarness(t, 555_222_888)

	amounts, err := h.distribute(domain.DefaultVestingDuration)
	if err != nil {
		t.Fatalf("DistributeAllocation failed: %v", err)
	}

	want := map[string]int64{
		"treasury":  277_611_444,
		"ecosystem": 166_566_866,
		"ico":       55_522_288,
		"team":      55_522_290,
	}
	got := map[string]math.Int{
		"treasury":  amounts.Treasury,
		"ecosystem": amounts.Ecosystem,
		"ico":       amounts.ICO,
		"team":      amounts.Team,
	}
	sum := math.ZeroInt()
	for k, v := range got {
		if !v.Equal(math.NewInt(want[k])) {
			t.Errorf("%s = %s, want %d", k, v, want[k])
		}
		sum = sum.Add(v)
	}
	if !sum.Equal(math.NewInt(555_222_888)) {
		t.Errorf("allocation sum = %s, want total supply", sum)
	}

	if b := h.balance(treasury); !b.Equal(amounts.Treasury) {
		t.Errorf("treasury balance = %s", b)
	}
	// Team share stays with the issuer until released.
	if b := h.balance(issuer); !b.Equal(amounts.Team) {
		t.Errorf("issuer balance = %s, want team share %s", b, amounts.Team)
	}
	if b := h.balance(team); !b.IsZero() {
		t.Errorf("team balance = %s, want 0", b)
	}
	h.supply()
}

func TestDistributeAllocation_EighteenDecimals(t *testing.T) {
	supply, err := domain.ParseTokens("555222888", domain.TokenDecimals)
	if err != nil {
		t.Fatal(err)
	}
	amounts := domain.SplitAllocation(supply)

	if got := domain.FormatTokens(amounts.Ecosystem, domain.TokenDecimals); got != "166566866.4" {
		t.Errorf("ecosystem = %s, want 166566866.4", got)
	}
	if got := domain.FormatTokens(amounts.ICO, domain.TokenDecimals); got != "55522288.8" {
		t.Errorf("ico = %s, want 55522288.8", got)
	}
	if got := domain.FormatTokens(amounts.Team, domain.TokenDecimals); got != "55522288.8" {
		t.Errorf("team = %s, want 55522288.8", got)
	}
}

func TestDistributeAllocation_Once(t *testing.T) {
	h := newHarness(t, 1000)

	if _, err := h.distribute(domain.MinVestingDuration); err != nil {
		t.Fatalf("first distribution failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := h.distribute(domain.MinVestingDuration); !errors.Is(err, domain.ErrAlreadyDistributed) {
			t.Errorf("call %d: expected ErrAlreadyDistributed, got %v", i+2, err)
		}
	}
}

func TestDistributeAllocation_Validation(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		alloc   Allocation
		wantErr error
	}{
		{
			name:    "zero treasury",
			alloc:   Allocation{Ecosystem: ecosystem, ICO: ico, TeamVestingTarget: team, VestingDuration: domain.MinVestingDuration},
			wantErr: domain.ErrInvalidRecipient,
		},
		{
			name:    "zero team target",
			alloc:   Allocation{Treasury: treasury, Ecosystem: ecosystem, ICO: ico, VestingDuration: domain.MinVestingDuration},
			wantErr: domain.ErrInvalidRecipient,
		},
		{
			name:    "duration below 180 days",
			alloc:   Allocation{Treasury: treasury, Ecosystem: ecosystem, ICO: ico, TeamVestingTarget: team, VestingDuration: domain.MinVestingDuration - 1},
			wantErr: domain.ErrVestingDurationOutOfRange,
		},
		{
			name:    "duration above 365 days",
			alloc:   Allocation{Treasury: treasury, Ecosystem: ecosystem, ICO: ico, TeamVestingTarget: team, VestingDuration: domain.MaxVestingDuration + 1},
			wantErr: domain.ErrVestingDurationOutOfRange,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, 1000)
			err := h.run(func(l *Ledger) error {
				_, err := l.DistributeAllocation(ctx, tt.alloc, t0)
				return err
			})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
			if b := h.balance(issuer); !b.Equal(math.NewInt(1000)) {
				t.Errorf("failed distribution moved tokens: issuer balance %s", b)
			}
		})
	}
}

func TestVesting_LockedTeamShare(t *testing.T) {
	h := newHarness(t, 1000)
	ctx := context.Background()

	if _, err := h.distribute(domain.MinVestingDuration); err != nil {
		t.Fatal(err)
	}

	// The issuer holds exactly the locked team share and cannot spend it.
	err := h.run(func(l *Ledger) error { return l.Transfer(ctx, issuer, holder, math.NewInt(1)) })
	if !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Errorf("Expected ErrInsufficientBalance, got %v", err)
	}
	err = h.run(func(l *Ledger) error { return l.Burn(ctx, issuer, math.NewInt(1)) })
	if !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Errorf("Expected ErrInsufficientBalance, got %v", err)
	}
}

func TestReleasableAmount_Monotonic(t *testing.T) {
	h := newHarness(t, 1_000_003)
	ctx := context.Background()
	duration := int64(domain.MinVestingDuration)

	amounts, err := h.distribute(duration)
	if err != nil {
		t.Fatal(err)
	}

	prev := math.ZeroInt()
	for _, offset := range []int64{-10, 0, 1, duration / 7, duration / 3, duration / 2, duration - 1, duration, duration + 1, 10 * duration} {
		var got math.Int
		_ = h.run(func(l *Ledger) error {
			var err error
			got, err = l.ReleasableAmount(ctx, t0+offset)
			return err
		})
		if got.LT(prev) {
			t.Errorf("releasable decreased at offset %d: %s < %s", offset, got, prev)
		}
		if offset >= duration && !got.Equal(amounts.Team) {
			t.Errorf("releasable at offset %d = %s, want full %s", offset, got, amounts.Team)
		}
		prev = got
	}
}

func TestRelease(t *testing.T) {
	h := newHarness(t, 1000)
	ctx := context.Background()
	duration := int64(domain.MinVestingDuration)

	// Before distribution there is no schedule.
	err := h.run(func(l *Ledger) error { _, err := l.Release(ctx, t0); return err })
	if !errors.Is(err, domain.ErrNotDistributed) {
		t.Errorf("Expected ErrNotDistributed, got %v", err)
	}

	amounts, err := h.distribute(duration)
	if err != nil {
		t.Fatal(err)
	}

	err = h.run(func(l *Ledger) error { _, err := l.Release(ctx, t0); return err })
	if !errors.Is(err, domain.ErrNothingToRelease) {
		t.Errorf("Expected ErrNothingToRelease at start, got %v", err)
	}

	var first math.Int
	err = h.run(func(l *Ledger) error {
		var err error
		first, err = l.Release(ctx, t0+duration/2)
		return err
	})
	if err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if !first.Equal(amounts.Team.QuoRaw(2)) {
		t.Errorf("half-way release = %s, want %s", first, amounts.Team.QuoRaw(2))
	}

	err = h.run(func(l *Ledger) error { _, err := l.Release(ctx, t0+duration/2); return err })
	if !errors.Is(err, domain.ErrNothingToRelease) {
		t.Errorf("Expected ErrNothingToRelease on repeat, got %v", err)
	}

	var rest math.Int
	_ = h.run(func(l *Ledger) error {
		var err error
		rest, err = l.Release(ctx, t0+2*duration)
		return err
	})
	if !first.Add(rest).Equal(amounts.Team) {
		t.Errorf("total released %s, want %s", first.Add(rest), amounts.Team)
	}
	if b := h.balance(team); !b.Equal(amounts.Team) {
		t.Errorf("team balance = %s, want %s", b, amounts.Team)
	}
	if b := h.balance(issuer); !b.IsZero() {
		t.Errorf("issuer balance = %s, want 0", b)
	}
	h.supply()
}
