package settlement

import (
	"context"
	"errors"
	"fmt"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/math"

	"pat-settlement/internal/domain"
	"pat-settlement/internal/storage"
)

// Config returns the global configuration. NotInitialized before genesis.
func (e *Engine) Config(ctx context.Context) (*domain.GlobalConfig, error) {
	var cfg *domain.GlobalConfig
	err := e.view(ctx, func(tx storage.ReadTx) error {
		var err error
		cfg, err = tx.Config(ctx)
		return err
	})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, domain.ErrNotInitialized
		}
		return nil, fmt.Errorf("get config: %w", err)
	}
	return cfg, nil
}

// GetSegment returns a segment. SegmentNotFound for unknown ids.
func (e *Engine) GetSegment(ctx context.Context, id uint64) (*domain.Segment, error) {
	var seg *domain.Segment
	err := e.view(ctx, func(tx storage.ReadTx) error {
		var err error
		seg, err = tx.Segment(ctx, id)
		return err
	})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, errorsmod.Wrapf(domain.ErrSegmentNotFound, "segment %d", id)
		}
		return nil, fmt.Errorf("get segment: %w", err)
	}
	return seg, nil
}

// ListSegments returns segments matching filter ordered by id.
func (e *Engine) ListSegments(ctx context.Context, filter domain.SegmentFilter) ([]*domain.Segment, error) {
	var segs []*domain.Segment
	err := e.view(ctx, func(tx storage.ReadTx) error {
		var err error
		segs, err = tx.Segments(ctx, filter)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list segments: %w", err)
	}
	return segs, nil
}

// HasAccess reports whether consumer bought segment id.
func (e *Engine) HasAccess(ctx context.Context, consumer domain.Address, id uint64) (bool, error) {
	var has bool
	err := e.view(ctx, func(tx storage.ReadTx) error {
		var err error
		has, err = tx.HasAccess(ctx, consumer, id)
		return err
	})
	return has, err
}

// GetEarnings returns the unwithdrawn earnings of addr.
func (e *Engine) GetEarnings(ctx context.Context, addr domain.Address) (math.Int, error) {
	var earned math.Int
	err := e.view(ctx, func(tx storage.ReadTx) error {
		var err error
		earned, err = tx.Earnings(ctx, addr)
		return err
	})
	return earned, err
}

// BalanceOf returns the token balance of addr.
func (e *Engine) BalanceOf(ctx context.Context, addr domain.Address) (math.Int, error) {
	var bal math.Int
	err := e.view(ctx, func(tx storage.ReadTx) error {
		var err error
		bal, err = tx.Balance(ctx, addr)
		return err
	})
	return bal, err
}

// Allowance returns how much spender may move from owner.
func (e *Engine) Allowance(ctx context.Context, owner, spender domain.Address) (math.Int, error) {
	var amt math.Int
	err := e.view(ctx, func(tx storage.ReadTx) error {
		var err error
		amt, err = tx.Allowance(ctx, owner, spender)
		return err
	})
	return amt, err
}

// TokenInfo returns the token metadata. NotInitialized before genesis.
func (e *Engine) TokenInfo(ctx context.Context) (*domain.TokenInfo, error) {
	var info *domain.TokenInfo
	err := e.view(ctx, func(tx storage.ReadTx) error {
		var err error
		info, err = tx.TokenInfo(ctx)
		return err
	})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, domain.ErrNotInitialized
		}
		return nil, fmt.Errorf("get token info: %w", err)
	}
	return info, nil
}

// TotalSupply returns the current supply.
func (e *Engine) TotalSupply(ctx context.Context) (math.Int, error) {
	info, err := e.TokenInfo(ctx)
	if err != nil {
		return math.Int{}, err
	}
	return info.TotalSupply, nil
}

// VestingSchedule returns the team vesting schedule. NotDistributed if none.
func (e *Engine) VestingSchedule(ctx context.Context) (*domain.VestingSchedule, error) {
	var schedule *domain.VestingSchedule
	err := e.view(ctx, func(tx storage.ReadTx) error {
		var err error
		schedule, err = tx.VestingSchedule(ctx)
		return err
	})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, domain.ErrNotDistributed
		}
		return nil, fmt.Errorf("get vesting schedule: %w", err)
	}
	return schedule, nil
}

// Distribution returns the allocation record. NotDistributed if none.
func (e *Engine) Distribution(ctx context.Context) (*domain.Distribution, error) {
	var dist *domain.Distribution
	err := e.view(ctx, func(tx storage.ReadTx) error {
		var err error
		dist, err = tx.Distribution(ctx)
		return err
	})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, domain.ErrNotDistributed
		}
		return nil, fmt.Errorf("get distribution: %w", err)
	}
	return dist, nil
}

// ReleasableAmount returns what Release would move now. Zero without a schedule.
func (e *Engine) ReleasableAmount(ctx context.Context) (math.Int, error) {
	schedule, err := e.VestingSchedule(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNotDistributed) {
			return math.ZeroInt(), nil
		}
		return math.Int{}, err
	}
	return schedule.ReleasableAt(e.clock().Unix()), nil
}

// Events returns a page of the event log after seq.
func (e *Engine) Events(ctx context.Context, afterSeq uint64, limit int) ([]*domain.EventRecord, error) {
	var records []*domain.EventRecord
	err := e.view(ctx, func(tx storage.ReadTx) error {
		var err error
		records, err = tx.Events(ctx, afterSeq, limit)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return records, nil
}

// Status summarises the market for operators.
type Status struct {
	Config      *domain.GlobalConfig
	Token       *domain.TokenInfo
	Segments    int
	Versions    []string
	Distributed bool
}

// Status returns a summary of the market.
func (e *Engine) Status(ctx context.Context) (*Status, error) {
	st := &Status{Versions: e.registry.Versions()}
	err := e.view(ctx, func(tx storage.ReadTx) error {
		cfg, err := tx.Config(ctx)
		if err != nil {
			return err
		}
		st.Config = cfg
		if st.Token, err = tx.TokenInfo(ctx); err != nil {
			return err
		}
		segs, err := tx.Segments(ctx, domain.SegmentFilter{})
		if err != nil {
			return err
		}
		st.Segments = len(segs)
		dist, err := tx.Distribution(ctx)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		st.Distributed = dist.IsDone()
		return nil
	})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, domain.ErrNotInitialized
		}
		return nil, fmt.Errorf("get status: %w", err)
	}
	return st, nil
}
