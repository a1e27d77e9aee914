package token

import (
	"context"
	"errors"
	"fmt"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/math"

	"pat-settlement/internal/domain"
	"pat-settlement/internal/storage"
)

// Allocation names the recipients of the one-time distribution.
type Allocation struct {
	Treasury          domain.Address
	Ecosystem         domain.Address
	ICO               domain.Address
	TeamVestingTarget domain.Address
	VestingDuration   int64 // seconds
}

// DistributeAllocation performs the one-time 50/30/10/10 split of the
// supply. Treasury, ecosystem and ICO are paid immediately. The team share
// stays with the issuer, locked, and vests linearly to TeamVestingTarget
// from now.
func (l *Ledger) DistributeAllocation(ctx context.Context, alloc Allocation, now int64) (domain.AllocationAmounts, error) {
	var amounts domain.AllocationAmounts

	existing, err := l.tx.Distribution(ctx)
	switch {
	case err == nil && existing.IsDone():
		return amounts, domain.ErrAlreadyDistributed
	case err != nil && !errors.Is(err, storage.ErrNotFound):
		return amounts, fmt.Errorf("get distribution: %w", err)
	}

	for _, r := range []struct {
		name string
		addr domain.Address
	}{
		{"treasury", alloc.Treasury},
		{"ecosystem", alloc.Ecosystem},
		{"ico", alloc.ICO},
		{"team vesting target", alloc.TeamVestingTarget},
	} {
		if r.addr.IsZero() {
			return amounts, errorsmod.Wrapf(domain.ErrInvalidRecipient, "%s is zero address", r.name)
		}
	}

	if alloc.VestingDuration < domain.MinVestingDuration || alloc.VestingDuration > domain.MaxVestingDuration {
		return amounts, errorsmod.Wrapf(domain.ErrVestingDurationOutOfRange,
			"%d seconds not in [%d, %d]", alloc.VestingDuration, domain.MinVestingDuration, domain.MaxVestingDuration)
	}

	info, err := l.Info(ctx)
	if err != nil {
		return amounts, err
	}
	issuerBalance, err := l.tx.Balance(ctx, info.Issuer)
	if err != nil {
		return amounts, fmt.Errorf("get issuer balance: %w", err)
	}
	// The team share stays with the issuer until released, so distribution
	// needs the whole supply in hand.
	if issuerBalance.LT(info.TotalSupply) {
		return amounts, errorsmod.Wrapf(domain.ErrInsufficientBalance,
			"issuer holds %s of supply %s; return transferred tokens before distributing", issuerBalance, info.TotalSupply)
	}

	amounts = domain.SplitAllocation(info.TotalSupply)

	for _, payout := range []struct {
		to     domain.Address
		amount math.Int
	}{
		{alloc.Treasury, amounts.Treasury},
		{alloc.Ecosystem, amounts.Ecosystem},
		{alloc.ICO, amounts.ICO},
	} {
		if payout.amount.IsZero() {
			continue
		}
		if err := l.Transfer(ctx, info.Issuer, payout.to, payout.amount); err != nil {
			return amounts, err
		}
	}

	dist := &domain.Distribution{
		Treasury:          alloc.Treasury,
		Ecosystem:         alloc.Ecosystem,
		ICO:               alloc.ICO,
		TeamVestingTarget: alloc.TeamVestingTarget,
		DistributedAt:     now,
	}
	if err := l.tx.SetDistribution(ctx, dist); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			return amounts, domain.ErrAlreadyDistributed
		}
		return amounts, fmt.Errorf("set distribution: %w", err)
	}

	schedule := &domain.VestingSchedule{
		Beneficiary: alloc.TeamVestingTarget,
		Start:       now,
		Duration:    alloc.VestingDuration,
		Total:       amounts.Team,
		Released:    math.ZeroInt(),
	}
	if err := l.tx.SetVestingSchedule(ctx, schedule); err != nil {
		return amounts, fmt.Errorf("set vesting schedule: %w", err)
	}

	l.journal.Emit(domain.AllocationDistributed{Distribution: *dist, Amounts: amounts})
	return amounts, nil
}

// Schedule returns the team vesting schedule. ErrNotDistributed if none.
func (l *Ledger) Schedule(ctx context.Context) (*domain.VestingSchedule, error) {
	schedule, err := l.tx.VestingSchedule(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, domain.ErrNotDistributed
		}
		return nil, fmt.Errorf("get vesting schedule: %w", err)
	}
	return schedule, nil
}

// ReleasableAmount returns what Release would transfer at now.
// Zero before the distribution.
func (l *Ledger) ReleasableAmount(ctx context.Context, now int64) (math.Int, error) {
	schedule, err := l.Schedule(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNotDistributed) {
			return math.ZeroInt(), nil
		}
		return math.Int{}, err
	}
	return schedule.ReleasableAt(now), nil
}

// Release transfers the releasable team allocation from the issuer to
// the vesting target.
func (l *Ledger) Release(ctx context.Context, now int64) (math.Int, error) {
	schedule, err := l.Schedule(ctx)
	if err != nil {
		return math.Int{}, err
	}
	releasable := schedule.ReleasableAt(now)
	if !releasable.IsPositive() {
		return math.Int{}, domain.ErrNothingToRelease
	}
	info, err := l.Info(ctx)
	if err != nil {
		return math.Int{}, err
	}

	// Record the release first so the unlocked amount is what moves.
	schedule.Released = schedule.Released.Add(releasable)
	if err := l.tx.SetVestingSchedule(ctx, schedule); err != nil {
		return math.Int{}, fmt.Errorf("set vesting schedule: %w", err)
	}
	if err := l.move(ctx, info.Issuer, schedule.Beneficiary, releasable, false); err != nil {
		return math.Int{}, err
	}
	l.journal.Emit(domain.TokensReleased{Beneficiary: schedule.Beneficiary, Amount: releasable})

	if err := l.notify(ctx, info.Issuer, schedule.Beneficiary, releasable); err != nil {
		return math.Int{}, err
	}
	return releasable, nil
}
