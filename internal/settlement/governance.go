package settlement

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/math"

	"pat-settlement/internal/domain"
	"pat-settlement/internal/observability"
	"pat-settlement/internal/storage"
	"pat-settlement/internal/token"
)

// CustodySeed is the derivation seed of the custody account.
const CustodySeed = "custody"

// GenesisParams initialise a market.
type GenesisParams struct {
	TokenName    string
	TokenSymbol  string
	Decimals     int32
	TotalSupply  math.Int
	SpreadBps    uint32
	BrokerWallet domain.Address
	BrokerPool   domain.Address
	ProgramID    domain.Address
	Version      string // empty means DefaultVersion
}

// Genesis mints the whole supply to caller, who becomes issuer and
// operator, and writes the initial configuration. It succeeds once.
func (e *Engine) Genesis(ctx context.Context, caller domain.Address, p GenesisParams) (*domain.GlobalConfig, error) {
	var cfg *domain.GlobalConfig
	err := e.mutate(ctx, "genesis", caller, func(env *Env) error {
		_, err := env.Tx().Config(env.Context())
		switch {
		case err == nil:
			return domain.ErrAlreadyInitialized
		case !errors.Is(err, storage.ErrNotFound):
			return fmt.Errorf("get config: %w", err)
		}

		if p.SpreadBps > domain.MaxSpreadBps {
			return errorsmod.Wrapf(domain.ErrInvalidConfiguration, "spread %d bps exceeds %d", p.SpreadBps, domain.MaxSpreadBps)
		}
		if p.BrokerWallet.IsZero() {
			return errorsmod.Wrap(domain.ErrInvalidRecipient, "broker wallet is zero address")
		}
		if p.ProgramID.IsZero() {
			return errorsmod.Wrap(domain.ErrInvalidConfiguration, "program id is zero address")
		}
		version := p.Version
		if version == "" {
			version = DefaultVersion
		}
		if _, ok := e.registry.Lookup(version); !ok {
			return errorsmod.Wrapf(domain.ErrInvalidVersion, "version %q is not registered", version)
		}
		custody, _, err := domain.DeriveProgramAddress([][]byte{[]byte(CustodySeed)}, p.ProgramID)
		if err != nil {
			return errorsmod.Wrap(domain.ErrInvalidConfiguration, err.Error())
		}

		if err := env.Ledger().MintGenesis(env.Context(), domain.TokenInfo{
			Name:        p.TokenName,
			Symbol:      p.TokenSymbol,
			Decimals:    p.Decimals,
			TotalSupply: p.TotalSupply,
			Issuer:      caller,
		}); err != nil {
			return err
		}

		cfg = &domain.GlobalConfig{
			Operator:     caller,
			SpreadBps:    p.SpreadBps,
			BrokerWallet: p.BrokerWallet,
			BrokerPool:   p.BrokerPool,
			Phase:        domain.PhaseUtility,
			Version:      version,
			ProgramID:    p.ProgramID,
			Custody:      custody,
		}
		if err := env.SaveConfig(cfg); err != nil {
			return err
		}

		env.OnCommit(func() {
			e.refreshMarketGauges(cfg)
			observability.UpdateLogicVersion("", version)
			observability.UpdateTokenState(domain.TokensFloat(p.TotalSupply, p.Decimals), 0, 0)
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// DistributeAllocation performs the one-time token allocation. Operator only.
func (e *Engine) DistributeAllocation(ctx context.Context, caller domain.Address, alloc token.Allocation) (domain.AllocationAmounts, error) {
	var amounts domain.AllocationAmounts
	err := e.mutate(ctx, "distribute_allocation", caller, func(env *Env) error {
		if _, err := env.RequireOperator(); err != nil {
			return err
		}
		var err error
		amounts, err = env.Ledger().DistributeAllocation(env.Context(), alloc, env.Now())
		if err != nil {
			return err
		}
		e.onTokenChange(env)
		return nil
	})
	return amounts, err
}

// Release moves the vested team allocation to its target. Anyone may call it.
func (e *Engine) Release(ctx context.Context, caller domain.Address) (math.Int, error) {
	var released math.Int
	err := e.mutate(ctx, "release", caller, func(env *Env) error {
		var err error
		released, err = env.Ledger().Release(env.Context(), env.Now())
		if err != nil {
			return err
		}
		e.onTokenChange(env)
		return nil
	})
	if err != nil {
		return math.Int{}, err
	}
	return released, nil
}

func (e *Engine) onTokenChange(env *Env) {
	info, err := env.Ledger().Info(env.Context())
	if err != nil {
		return
	}
	total, released := math.ZeroInt(), math.ZeroInt()
	if schedule, err := env.Tx().VestingSchedule(env.Context()); err == nil {
		total, released = schedule.Total, schedule.Released
	}
	env.OnCommit(func() {
		observability.UpdateTokenState(
			domain.TokensFloat(info.TotalSupply, info.Decimals),
			domain.TokensFloat(total, info.Decimals),
			domain.TokensFloat(released, info.Decimals),
		)
	})
}

// governed runs an operator-only configuration change.
func (e *Engine) governed(ctx context.Context, op string, caller domain.Address, fn func(env *Env, cfg *domain.GlobalConfig) error) error {
	return e.mutate(ctx, op, caller, func(env *Env) error {
		cfg, err := env.RequireOperator()
		if err != nil {
			return err
		}
		oldVersion := cfg.Version
		if err := fn(env, cfg); err != nil {
			return err
		}
		if err := env.SaveConfig(cfg); err != nil {
			return err
		}
		snapshot := *cfg
		env.OnCommit(func() {
			e.refreshMarketGauges(&snapshot)
			observability.UpdateLogicVersion(oldVersion, snapshot.Version)
		})
		return nil
	})
}

// SetSpreadBps sets the broker spread. At most 5000 bps.
func (e *Engine) SetSpreadBps(ctx context.Context, caller domain.Address, bps uint32) error {
	return e.governed(ctx, "set_spread_bps", caller, func(env *Env, cfg *domain.GlobalConfig) error {
		return setSpreadBps(env, cfg, bps)
	})
}

// SetBrokerWallet sets the account receiving broker spreads.
func (e *Engine) SetBrokerWallet(ctx context.Context, caller domain.Address, addr domain.Address) error {
	return e.governed(ctx, "set_broker_wallet", caller, func(env *Env, cfg *domain.GlobalConfig) error {
		return setAddress(env, cfg, domain.ConfigKeyBrokerWallet, &cfg.BrokerWallet, addr)
	})
}

// SetBrokerPool sets the broker pool account.
func (e *Engine) SetBrokerPool(ctx context.Context, caller domain.Address, addr domain.Address) error {
	return e.governed(ctx, "set_broker_pool", caller, func(env *Env, cfg *domain.GlobalConfig) error {
		return setAddress(env, cfg, domain.ConfigKeyBrokerPool, &cfg.BrokerPool, addr)
	})
}

// SetOperator hands governance to another identity.
func (e *Engine) SetOperator(ctx context.Context, caller domain.Address, addr domain.Address) error {
	return e.governed(ctx, "set_operator", caller, func(env *Env, cfg *domain.GlobalConfig) error {
		return setAddress(env, cfg, domain.ConfigKeyOperator, &cfg.Operator, addr)
	})
}

// AdvancePhase moves the market one phase forward.
func (e *Engine) AdvancePhase(ctx context.Context, caller domain.Address) (domain.Phase, error) {
	var phase domain.Phase
	err := e.governed(ctx, "advance_phase", caller, func(env *Env, cfg *domain.GlobalConfig) error {
		next, ok := cfg.Phase.Next()
		if !ok || !cfg.Phase.CanTransitionTo(next) {
			return errorsmod.Wrapf(domain.ErrAlreadyAtFinalPhase, "phase %s", cfg.Phase)
		}
		cfg.Phase = next
		phase = next
		env.Emit(domain.PhaseAdvanced{NewPhase: next})
		return nil
	})
	return phase, err
}

// SetPaused pauses or resumes segment creation and purchases.
func (e *Engine) SetPaused(ctx context.Context, caller domain.Address, paused bool) error {
	return e.governed(ctx, "set_paused", caller, func(env *Env, cfg *domain.GlobalConfig) error {
		cfg.Paused = paused
		env.Emit(domain.MarketPaused{Paused: paused})
		return nil
	})
}

// SwapImplementation points the market at another registered logic
// version. Stored state is untouched.
func (e *Engine) SwapImplementation(ctx context.Context, caller domain.Address, version string) error {
	return e.governed(ctx, "swap_implementation", caller, func(env *Env, cfg *domain.GlobalConfig) error {
		if version == "" {
			return errorsmod.Wrap(domain.ErrInvalidVersion, "empty version")
		}
		if _, ok := e.registry.Lookup(version); !ok {
			return errorsmod.Wrapf(domain.ErrInvalidVersion, "version %q is not registered", version)
		}
		old := cfg.Version
		cfg.Version = version
		env.Emit(domain.ImplementationSwapped{Old: old, New: version})
		return nil
	})
}

// UpdateConfig sets one configuration value by key.
// Unknown keys and unparseable values fail InvalidConfiguration.
func (e *Engine) UpdateConfig(ctx context.Context, caller domain.Address, key, value string) error {
	return e.governed(ctx, "update_config", caller, func(env *Env, cfg *domain.GlobalConfig) error {
		switch key {
		case domain.ConfigKeySpreadBps:
			bps, err := strconv.ParseUint(value, 10, 32)
			if err != nil {
				return errorsmod.Wrapf(domain.ErrInvalidConfiguration, "%s: %q is not a number", key, value)
			}
			return setSpreadBps(env, cfg, uint32(bps))
		case domain.ConfigKeyBrokerWallet, domain.ConfigKeyBrokerPool, domain.ConfigKeyOperator:
			addr, err := domain.ParseAddress(value)
			if err != nil {
				return errorsmod.Wrapf(domain.ErrInvalidConfiguration, "%s: %v", key, err)
			}
			target := map[string]*domain.Address{
				domain.ConfigKeyBrokerWallet: &cfg.BrokerWallet,
				domain.ConfigKeyBrokerPool:   &cfg.BrokerPool,
				domain.ConfigKeyOperator:     &cfg.Operator,
			}[key]
			return setAddress(env, cfg, key, target, addr)
		default:
			return errorsmod.Wrapf(domain.ErrInvalidConfiguration, "unknown key %q", key)
		}
	})
}

func setSpreadBps(env *Env, cfg *domain.GlobalConfig, bps uint32) error {
	if bps > domain.MaxSpreadBps {
		return errorsmod.Wrapf(domain.ErrInvalidConfiguration, "spread %d bps exceeds %d", bps, domain.MaxSpreadBps)
	}
	cfg.SpreadBps = bps
	env.Emit(domain.ConfigUpdated{Key: domain.ConfigKeySpreadBps, Value: strconv.FormatUint(uint64(bps), 10)})
	return nil
}

// setAddress rejects the custody account: spreads paid to it would stay
// in custody and no signer controls it as operator.
func setAddress(env *Env, cfg *domain.GlobalConfig, key string, field *domain.Address, addr domain.Address) error {
	if addr.IsZero() {
		return errorsmod.Wrapf(domain.ErrInvalidRecipient, "%s is zero address", key)
	}
	if addr == cfg.Custody {
		return errorsmod.Wrapf(domain.ErrInvalidRecipient, "%s cannot be the custody account", key)
	}
	*field = addr
	env.Emit(domain.ConfigUpdated{Key: key, Value: addr.String()})
	return nil
}
