// Package token implements the fixed-supply PAT token: genesis mint,
// transfers and allowances, burns, and the one-time allocation with linear
// team vesting.
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

// Ledger applies token operations inside one storage transaction.
// Every state change is written to tx and every event to journal, so
// nothing is visible until the enclosing transaction commits.
type Ledger struct {
	tx        storage.Tx
	journal   *domain.Journal
	receivers *Receivers
}

// NewLedger binds a ledger to a transaction. receivers may be nil.
func NewLedger(tx storage.Tx, journal *domain.Journal, receivers *Receivers) *Ledger {
	return &Ledger{tx: tx, journal: journal, receivers: receivers}
}

// MintGenesis records the token and credits the issuer with the whole
// supply. It succeeds once per store.
func (l *Ledger) MintGenesis(ctx context.Context, info domain.TokenInfo) error {
	if info.TotalSupply.IsNil() || !info.TotalSupply.IsPositive() {
		return errorsmod.Wrap(domain.ErrInvalidAmount, "total supply must be positive")
	}
	if info.Issuer.IsZero() {
		return errorsmod.Wrap(domain.ErrInvalidRecipient, "issuer")
	}

	_, err := l.tx.TokenInfo(ctx)
	switch {
	case err == nil:
		return domain.ErrAlreadyInitialized
	case !errors.Is(err, storage.ErrNotFound):
		return fmt.Errorf("get token info: %w", err)
	}

	if err := l.tx.SetTokenInfo(ctx, &info); err != nil {
		return fmt.Errorf("set token info: %w", err)
	}
	if err := l.tx.SetBalance(ctx, info.Issuer, info.TotalSupply); err != nil {
		return fmt.Errorf("mint: %w", err)
	}
	l.journal.Emit(domain.Transfer{From: domain.ZeroAddress, To: info.Issuer, Amount: info.TotalSupply})
	return nil
}

// Info returns the token metadata. ErrNotInitialized before genesis.
func (l *Ledger) Info(ctx context.Context) (*domain.TokenInfo, error) {
	info, err := l.tx.TokenInfo(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, domain.ErrNotInitialized
		}
		return nil, fmt.Errorf("get token info: %w", err)
	}
	return info, nil
}

// Locked returns the part of addr's balance held back by vesting. Only the
// issuer ever has a locked amount: the unreleased team allocation.
func (l *Ledger) Locked(ctx context.Context, addr domain.Address) (math.Int, error) {
	info, err := l.Info(ctx)
	if err != nil {
		return math.Int{}, err
	}
	if addr != info.Issuer {
		return math.ZeroInt(), nil
	}
	schedule, err := l.tx.VestingSchedule(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return math.ZeroInt(), nil
		}
		return math.Int{}, fmt.Errorf("get vesting schedule: %w", err)
	}
	return schedule.Locked(), nil
}

// Spendable returns balance minus locked.
func (l *Ledger) Spendable(ctx context.Context, addr domain.Address) (math.Int, error) {
	balance, err := l.tx.Balance(ctx, addr)
	if err != nil {
		return math.Int{}, fmt.Errorf("get balance: %w", err)
	}
	locked, err := l.Locked(ctx, addr)
	if err != nil {
		return math.Int{}, err
	}
	spendable := balance.Sub(locked)
	if spendable.IsNegative() {
		return math.ZeroInt(), nil
	}
	return spendable, nil
}

// Transfer moves amount from from to to, then runs the recipient's hook.
func (l *Ledger) Transfer(ctx context.Context, from, to domain.Address, amount math.Int) error {
	if err := l.move(ctx, from, to, amount, true); err != nil {
		return err
	}
	return l.notify(ctx, from, to, amount)
}

// move updates both balances and emits Transfer. checkLock is false only
// when vesting itself moves the released portion.
func (l *Ledger) move(ctx context.Context, from, to domain.Address, amount math.Int, checkLock bool) error {
	if amount.IsNil() || !amount.IsPositive() {
		return errorsmod.Wrapf(domain.ErrInvalidAmount, "transfer amount %s", amount)
	}
	if to.IsZero() {
		return errorsmod.Wrap(domain.ErrInvalidRecipient, "transfer to zero address")
	}

	available, err := l.tx.Balance(ctx, from)
	if err != nil {
		return fmt.Errorf("get balance: %w", err)
	}
	if checkLock {
		if available, err = l.Spendable(ctx, from); err != nil {
			return err
		}
	}
	if available.LT(amount) {
		return errorsmod.Wrapf(domain.ErrInsufficientBalance, "available %s, need %s", available, amount)
	}

	fromBalance, err := l.tx.Balance(ctx, from)
	if err != nil {
		return fmt.Errorf("get balance: %w", err)
	}
	if err := l.tx.SetBalance(ctx, from, fromBalance.Sub(amount)); err != nil {
		return fmt.Errorf("debit: %w", err)
	}
	toBalance, err := l.tx.Balance(ctx, to)
	if err != nil {
		return fmt.Errorf("get balance: %w", err)
	}
	if err := l.tx.SetBalance(ctx, to, toBalance.Add(amount)); err != nil {
		return fmt.Errorf("credit: %w", err)
	}

	l.journal.Emit(domain.Transfer{From: from, To: to, Amount: amount})
	return nil
}

func (l *Ledger) notify(ctx context.Context, from, to domain.Address, amount math.Int) error {
	recv, ok := l.receivers.Lookup(to)
	if !ok {
		return nil
	}
	if err := recv.OnTokensReceived(ctx, from, amount); err != nil {
		return fmt.Errorf("receiver %s rejected transfer: %w", to, err)
	}
	return nil
}

// Approve sets how much spender may move out of owner's balance.
func (l *Ledger) Approve(ctx context.Context, owner, spender domain.Address, amount math.Int) error {
	if amount.IsNil() || amount.IsNegative() {
		return errorsmod.Wrapf(domain.ErrInvalidAmount, "allowance %s", amount)
	}
	if spender.IsZero() {
		return errorsmod.Wrap(domain.ErrInvalidRecipient, "spender is zero address")
	}
	if err := l.tx.SetAllowance(ctx, owner, spender, amount); err != nil {
		return fmt.Errorf("set allowance: %w", err)
	}
	l.journal.Emit(domain.Approval{Owner: owner, Spender: spender, Amount: amount})
	return nil
}

// Allowance returns how much spender may still move from owner.
func (l *Ledger) Allowance(ctx context.Context, owner, spender domain.Address) (math.Int, error) {
	allowance, err := l.tx.Allowance(ctx, owner, spender)
	if err != nil {
		return math.Int{}, fmt.Errorf("get allowance: %w", err)
	}
	return allowance, nil
}

// TransferFrom spends spender's allowance on owner to move amount to to.
func (l *Ledger) TransferFrom(ctx context.Context, spender, owner, to domain.Address, amount math.Int) error {
	allowance, err := l.Allowance(ctx, owner, spender)
	if err != nil {
		return err
	}
	if !amount.IsNil() && allowance.LT(amount) {
		return errorsmod.Wrapf(domain.ErrInsufficientAllowance, "allowance %s, need %s", allowance, amount)
	}
	if err := l.move(ctx, owner, to, amount, true); err != nil {
		return err
	}
	if err := l.tx.SetAllowance(ctx, owner, spender, allowance.Sub(amount)); err != nil {
		return fmt.Errorf("spend allowance: %w", err)
	}
	return l.notify(ctx, owner, to, amount)
}

// Burn destroys amount of owner's spendable balance and shrinks the supply.
func (l *Ledger) Burn(ctx context.Context, owner domain.Address, amount math.Int) error {
	if amount.IsNil() || !amount.IsPositive() {
		return errorsmod.Wrapf(domain.ErrInvalidAmount, "burn amount %s", amount)
	}
	info, err := l.Info(ctx)
	if err != nil {
		return err
	}

	spendable, err := l.Spendable(ctx, owner)
	if err != nil {
		return err
	}
	if spendable.LT(amount) {
		return errorsmod.Wrapf(domain.ErrInsufficientBalance, "available %s, need %s", spendable, amount)
	}

	balance, err := l.tx.Balance(ctx, owner)
	if err != nil {
		return fmt.Errorf("get balance: %w", err)
	}
	if err := l.tx.SetBalance(ctx, owner, balance.Sub(amount)); err != nil {
		return fmt.Errorf("debit: %w", err)
	}
	info.TotalSupply = info.TotalSupply.Sub(amount)
	if err := l.tx.SetTokenInfo(ctx, info); err != nil {
		return fmt.Errorf("shrink supply: %w", err)
	}

	l.journal.Emit(domain.Burn{Owner: owner, Amount: amount})
	return nil
}
