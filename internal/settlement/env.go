package settlement

import (
	"context"
	"errors"
	"fmt"

	errorsmod "cosmossdk.io/errors"

	"pat-settlement/internal/domain"
	"pat-settlement/internal/storage"
	"pat-settlement/internal/token"
)

// Env is the execution environment of one operation. It is valid only
// inside the callback it was handed to.
type Env struct {
	ctx         context.Context
	tx          storage.Tx
	caller      domain.Address
	now         int64
	journal     *domain.Journal
	ledger      *token.Ledger
	registry    *Registry
	cfg         *domain.GlobalConfig
	afterCommit []func()
}

// Context returns the operation context. Receivers get this context.
func (env *Env) Context() context.Context { return env.ctx }

// Tx returns the operation's transaction.
func (env *Env) Tx() storage.Tx { return env.tx }

// Caller returns the identity the operation runs for.
func (env *Env) Caller() domain.Address { return env.caller }

// Now returns the operation time in unix seconds.
func (env *Env) Now() int64 { return env.now }

// Ledger returns the token ledger bound to the transaction.
func (env *Env) Ledger() *token.Ledger { return env.ledger }

// Emit records an event for the log.
func (env *Env) Emit(e domain.Event) { env.journal.Emit(e) }

// OnCommit registers f to run after a successful commit.
func (env *Env) OnCommit(f func()) { env.afterCommit = append(env.afterCommit, f) }

// Config returns the global configuration, loaded once per operation.
// The returned value may be modified and written back with SaveConfig.
func (env *Env) Config() (*domain.GlobalConfig, error) {
	if env.cfg != nil {
		return env.cfg, nil
	}
	cfg, err := env.tx.Config(env.ctx)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, domain.ErrNotInitialized
		}
		return nil, fmt.Errorf("get config: %w", err)
	}
	env.cfg = cfg
	return cfg, nil
}

// SaveConfig writes cfg back to the store.
func (env *Env) SaveConfig(cfg *domain.GlobalConfig) error {
	if err := env.tx.SetConfig(env.ctx, cfg); err != nil {
		return fmt.Errorf("set config: %w", err)
	}
	env.cfg = cfg
	return nil
}

// RequireOperator fails NotAuthorized unless the caller is the operator.
func (env *Env) RequireOperator() (*domain.GlobalConfig, error) {
	cfg, err := env.Config()
	if err != nil {
		return nil, err
	}
	if env.caller != cfg.Operator {
		return nil, errorsmod.Wrapf(domain.ErrNotAuthorized, "%s is not the operator", env.caller)
	}
	return cfg, nil
}

// RequireProvider fails NotProvider unless the caller listed seg.
func (env *Env) RequireProvider(seg *domain.Segment) error {
	if env.caller != seg.Provider {
		return errorsmod.Wrapf(domain.ErrNotProvider, "segment %d belongs to %s", seg.ID, seg.Provider)
	}
	return nil
}

// RequireNotPaused fails MarketPaused while the market is paused.
func (env *Env) RequireNotPaused() (*domain.GlobalConfig, error) {
	cfg, err := env.Config()
	if err != nil {
		return nil, err
	}
	if cfg.Paused {
		return nil, domain.ErrMarketPaused
	}
	return cfg, nil
}

// Segment loads a segment, failing SegmentNotFound for unknown ids.
func (env *Env) Segment(id uint64) (*domain.Segment, error) {
	seg, err := env.tx.Segment(env.ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, errorsmod.Wrapf(domain.ErrSegmentNotFound, "segment %d", id)
		}
		return nil, fmt.Errorf("get segment: %w", err)
	}
	return seg, nil
}

// Logic returns the logic version the configuration points at.
func (env *Env) Logic() (Logic, error) {
	cfg, err := env.Config()
	if err != nil {
		return nil, err
	}
	l, ok := env.registry.Lookup(cfg.Version)
	if !ok {
		return nil, errorsmod.Wrapf(domain.ErrInvalidVersion, "running version %q is not registered", cfg.Version)
	}
	return l, nil
}
