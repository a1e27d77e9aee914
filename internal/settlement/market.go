package settlement

import (
	"context"

	"cosmossdk.io/math"

	"pat-settlement/internal/domain"
	"pat-settlement/internal/observability"
)

// CreateSegment lists a segment owned by caller and returns its id.
func (e *Engine) CreateSegment(ctx context.Context, caller domain.Address, params SegmentParams) (uint64, error) {
	var id uint64
	err := e.mutate(ctx, "create_segment", caller, func(env *Env) error {
		logic, err := env.Logic()
		if err != nil {
			return err
		}
		id, err = logic.CreateSegment(env, params)
		return err
	})
	return id, err
}

// UpdateSegmentPrice changes the ask price of a segment owned by caller.
func (e *Engine) UpdateSegmentPrice(ctx context.Context, caller domain.Address, id uint64, price math.Int) error {
	return e.mutate(ctx, "update_segment_price", caller, func(env *Env) error {
		logic, err := env.Logic()
		if err != nil {
			return err
		}
		return logic.UpdateSegmentPrice(env, id, price)
	})
}

// DeactivateSegment stops sales of a segment owned by caller.
func (e *Engine) DeactivateSegment(ctx context.Context, caller domain.Address, id uint64) error {
	return e.mutate(ctx, "deactivate_segment", caller, func(env *Env) error {
		logic, err := env.Logic()
		if err != nil {
			return err
		}
		return logic.DeactivateSegment(env, id)
	})
}

// BuySegment purchases access to a segment for caller.
func (e *Engine) BuySegment(ctx context.Context, caller domain.Address, id uint64) (*domain.Settlement, error) {
	var settlement *domain.Settlement
	err := e.mutate(ctx, "buy_segment", caller, func(env *Env) error {
		logic, err := env.Logic()
		if err != nil {
			return err
		}
		settlement, err = logic.BuySegment(env, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return settlement, nil
}

// BuySegments purchases several segments for caller, all or nothing.
func (e *Engine) BuySegments(ctx context.Context, caller domain.Address, ids []uint64) ([]*domain.Settlement, error) {
	var settlements []*domain.Settlement
	err := e.mutate(ctx, "buy_segments", caller, func(env *Env) error {
		logic, err := env.Logic()
		if err != nil {
			return err
		}
		settlements, err = logic.BuySegments(env, ids)
		return err
	})
	if err != nil {
		return nil, err
	}
	return settlements, nil
}

// WithdrawEarnings pays amount of caller's earnings to caller.
func (e *Engine) WithdrawEarnings(ctx context.Context, caller domain.Address, amount math.Int) error {
	return e.mutate(ctx, "withdraw_earnings", caller, func(env *Env) error {
		logic, err := env.Logic()
		if err != nil {
			return err
		}
		return logic.WithdrawEarnings(env, amount)
	})
}

// WithdrawAllEarnings pays out everything caller has earned and returns
// the amount. InsufficientEarnings if there is nothing.
func (e *Engine) WithdrawAllEarnings(ctx context.Context, caller domain.Address) (math.Int, error) {
	var amount math.Int
	err := e.mutate(ctx, "withdraw_all_earnings", caller, func(env *Env) error {
		logic, err := env.Logic()
		if err != nil {
			return err
		}
		earned, err := env.Tx().Earnings(env.Context(), caller)
		if err != nil {
			return err
		}
		if !earned.IsPositive() {
			return domain.ErrInsufficientEarnings
		}
		amount = earned
		return logic.WithdrawEarnings(env, earned)
	})
	if err != nil {
		return math.Int{}, err
	}
	return amount, nil
}

// CalculateSplit returns how ask would be divided at the current spread.
func (e *Engine) CalculateSplit(ctx context.Context, ask math.Int) (domain.Split, error) {
	if ask.IsNil() || ask.IsNegative() {
		return domain.Split{}, domain.ErrInvalidPrice
	}
	cfg, err := e.Config(ctx)
	if err != nil {
		return domain.Split{}, err
	}
	return ComputeSplit(ask, cfg.SpreadBps), nil
}

func (e *Engine) refreshMarketGauges(cfg *domain.GlobalConfig) {
	observability.UpdateMarketState(int(cfg.Phase), cfg.Paused, cfg.SpreadBps)
}
