package settlement

import (
	"fmt"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/math"

	"pat-settlement/internal/domain"
)

// LogicV1 is the initial marketplace logic: single-segment purchases.
type LogicV1 struct{}

var _ Logic = LogicV1{}

// Version implements Logic.
func (LogicV1) Version() string { return "v1" }

// CreateSegment lists a new active segment owned by the caller.
func (LogicV1) CreateSegment(env *Env, p SegmentParams) (uint64, error) {
	if _, err := env.RequireNotPaused(); err != nil {
		return 0, err
	}
	if !p.Type.IsValid() {
		return 0, errorsmod.Wrapf(domain.ErrInvalidSegmentType, "type %d", p.Type)
	}
	if p.WindowDays < domain.MinWindowDays || p.WindowDays > domain.MaxWindowDays {
		return 0, errorsmod.Wrapf(domain.ErrInvalidWindow, "%d days not in [%d, %d]",
			p.WindowDays, domain.MinWindowDays, domain.MaxWindowDays)
	}
	if p.ConfidenceBps > domain.MaxConfidenceBps {
		return 0, errorsmod.Wrapf(domain.ErrInvalidConfidence, "%d bps exceeds %d", p.ConfidenceBps, domain.MaxConfidenceBps)
	}
	if p.AskPrice.IsNil() || !p.AskPrice.IsPositive() {
		return 0, errorsmod.Wrapf(domain.ErrInvalidPrice, "ask price %s", p.AskPrice)
	}

	id, err := env.Tx().NextSegmentID(env.Context())
	if err != nil {
		return 0, fmt.Errorf("next segment id: %w", err)
	}
	seg := &domain.Segment{
		ID:            id,
		Provider:      env.Caller(),
		Type:          p.Type,
		WindowDays:    p.WindowDays,
		ConfidenceBps: p.ConfidenceBps,
		AskPrice:      p.AskPrice,
		Active:        true,
		CreatedAt:     env.Now(),
		UpdatedAt:     env.Now(),
	}
	if err := env.Tx().InsertSegment(env.Context(), seg); err != nil {
		return 0, fmt.Errorf("insert segment: %w", err)
	}

	env.Emit(domain.SegmentCreated{ID: id, Provider: seg.Provider, Type: seg.Type, AskPrice: seg.AskPrice})
	return id, nil
}

// UpdateSegmentPrice changes the ask price of one of the caller's segments.
func (LogicV1) UpdateSegmentPrice(env *Env, id uint64, price math.Int) error {
	seg, err := env.Segment(id)
	if err != nil {
		return err
	}
	if err := env.RequireProvider(seg); err != nil {
		return err
	}
	if price.IsNil() || !price.IsPositive() {
		return errorsmod.Wrapf(domain.ErrInvalidPrice, "ask price %s", price)
	}

	seg.AskPrice = price
	seg.UpdatedAt = env.Now()
	if err := env.Tx().UpdateSegment(env.Context(), seg); err != nil {
		return fmt.Errorf("update segment: %w", err)
	}
	env.Emit(domain.SegmentPriceUpdated{ID: id, Provider: seg.Provider, AskPrice: price})
	return nil
}

// DeactivateSegment stops further sales of one of the caller's segments.
// Existing access rights are unaffected.
func (LogicV1) DeactivateSegment(env *Env, id uint64) error {
	seg, err := env.Segment(id)
	if err != nil {
		return err
	}
	if err := env.RequireProvider(seg); err != nil {
		return err
	}

	seg.Active = false
	seg.UpdatedAt = env.Now()
	if err := env.Tx().UpdateSegment(env.Context(), seg); err != nil {
		return fmt.Errorf("update segment: %w", err)
	}
	env.Emit(domain.SegmentDeactivated{ID: id, Provider: seg.Provider})
	return nil
}

// BuySegment settles one purchase by the caller. The ask is pulled into
// custody, the provider payout is credited to earnings and access is
// granted before the broker spread leaves custody, which is the only
// step that can run foreign code.
func (LogicV1) BuySegment(env *Env, id uint64) (*domain.Settlement, error) {
	ctx := env.Context()
	consumer := env.Caller()

	cfg, err := env.RequireNotPaused()
	if err != nil {
		return nil, err
	}
	seg, err := env.Segment(id)
	if err != nil {
		return nil, err
	}
	if !seg.Active {
		return nil, errorsmod.Wrapf(domain.ErrSegmentNotActive, "segment %d", id)
	}
	has, err := env.Tx().HasAccess(ctx, consumer, id)
	if err != nil {
		return nil, fmt.Errorf("check access: %w", err)
	}
	if has {
		return nil, errorsmod.Wrapf(domain.ErrAlreadyHasAccess, "%s already holds segment %d", consumer, id)
	}

	split := ComputeSplit(seg.AskPrice, cfg.SpreadBps)

	ledger := env.Ledger()
	allowance, err := ledger.Allowance(ctx, consumer, cfg.Custody)
	if err != nil {
		return nil, err
	}
	if allowance.LT(split.AskPrice) {
		return nil, errorsmod.Wrapf(domain.ErrInsufficientAllowance, "allowance %s, ask %s", allowance, split.AskPrice)
	}
	if err := ledger.TransferFrom(ctx, cfg.Custody, consumer, cfg.Custody, split.AskPrice); err != nil {
		return nil, err
	}

	earned, err := env.Tx().Earnings(ctx, seg.Provider)
	if err != nil {
		return nil, fmt.Errorf("get earnings: %w", err)
	}
	if err := env.Tx().SetEarnings(ctx, seg.Provider, earned.Add(split.ProviderPayout)); err != nil {
		return nil, fmt.Errorf("credit earnings: %w", err)
	}
	if err := env.Tx().GrantAccess(ctx, consumer, id, env.Now()); err != nil {
		return nil, fmt.Errorf("grant access: %w", err)
	}

	env.Emit(domain.SegmentPurchased{
		ID:             id,
		Consumer:       consumer,
		Provider:       seg.Provider,
		AskPrice:       split.AskPrice,
		ProviderPayout: split.ProviderPayout,
		BrokerSpread:   split.BrokerSpread,
	})
	env.Emit(domain.PayoutRecorded{
		Provider:  seg.Provider,
		Amount:    split.ProviderPayout,
		SegmentID: id,
		Time:      env.Now(),
	})

	if split.BrokerSpread.IsPositive() {
		if err := ledger.Transfer(ctx, cfg.Custody, cfg.BrokerWallet, split.BrokerSpread); err != nil {
			return nil, fmt.Errorf("pay broker spread: %w", err)
		}
	}

	return &domain.Settlement{
		SegmentID: id,
		Consumer:  consumer,
		Provider:  seg.Provider,
		Split:     split,
		SettledAt: env.Now(),
	}, nil
}

// BuySegments is not available in v1.
func (LogicV1) BuySegments(*Env, []uint64) ([]*domain.Settlement, error) {
	return nil, errorsmod.Wrap(domain.ErrUnsupportedOperation, "batch purchase requires v2")
}

// WithdrawEarnings pays amount of the caller's earnings out of custody.
func (LogicV1) WithdrawEarnings(env *Env, amount math.Int) error {
	ctx := env.Context()
	owner := env.Caller()

	if amount.IsNil() || !amount.IsPositive() {
		return errorsmod.Wrapf(domain.ErrInvalidAmount, "withdraw amount %s", amount)
	}
	earned, err := env.Tx().Earnings(ctx, owner)
	if err != nil {
		return fmt.Errorf("get earnings: %w", err)
	}
	if earned.LT(amount) {
		return errorsmod.Wrapf(domain.ErrInsufficientEarnings, "earned %s, requested %s", earned, amount)
	}
	cfg, err := env.Config()
	if err != nil {
		return err
	}

	if err := env.Tx().SetEarnings(ctx, owner, earned.Sub(amount)); err != nil {
		return fmt.Errorf("debit earnings: %w", err)
	}
	env.Emit(domain.Withdrawal{Owner: owner, Amount: amount, Time: env.Now()})

	return env.Ledger().Transfer(ctx, cfg.Custody, owner, amount)
}
