package settlement

import (
	"context"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/math"

	"pat-settlement/internal/domain"
)

// rejectCustody keeps the custody balance equal to the sum of unwithdrawn
// earnings: only settlement may credit the custody account.
func rejectCustody(env *Env, to domain.Address) error {
	cfg, err := env.Config()
	if err != nil {
		return err
	}
	if to == cfg.Custody {
		return errorsmod.Wrap(domain.ErrInvalidRecipient, "custody account only receives settlements")
	}
	return nil
}

// Transfer moves caller's tokens to to.
func (e *Engine) Transfer(ctx context.Context, caller, to domain.Address, amount math.Int) error {
	return e.mutate(ctx, "transfer", caller, func(env *Env) error {
		if err := rejectCustody(env, to); err != nil {
			return err
		}
		return env.Ledger().Transfer(env.Context(), caller, to, amount)
	})
}

// Approve lets spender move up to amount of caller's tokens. Consumers
// approve the custody account before buying.
func (e *Engine) Approve(ctx context.Context, caller, spender domain.Address, amount math.Int) error {
	return e.mutate(ctx, "approve", caller, func(env *Env) error {
		return env.Ledger().Approve(env.Context(), caller, spender, amount)
	})
}

// TransferFrom spends caller's allowance on owner.
func (e *Engine) TransferFrom(ctx context.Context, caller, owner, to domain.Address, amount math.Int) error {
	return e.mutate(ctx, "transfer_from", caller, func(env *Env) error {
		if err := rejectCustody(env, to); err != nil {
			return err
		}
		return env.Ledger().TransferFrom(env.Context(), caller, owner, to, amount)
	})
}

// Burn destroys amount of caller's tokens.
func (e *Engine) Burn(ctx context.Context, caller domain.Address, amount math.Int) error {
	return e.mutate(ctx, "burn", caller, func(env *Env) error {
		if err := env.Ledger().Burn(env.Context(), caller, amount); err != nil {
			return err
		}
		e.onTokenChange(env)
		return nil
	})
}
