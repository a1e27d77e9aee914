package token

import (
	"context"
	"sync"

	"cosmossdk.io/math"

	"pat-settlement/internal/domain"
)

// Receiver is implemented by accounts that run code when they are credited.
// The hook runs after balances are updated and inside the same operation:
// returning an error rolls the whole operation back.
//
// A hook that calls back into the engine must pass the ctx it was given,
// which makes the call fail with ReentrantCall. Calling in with a fresh
// context deadlocks: the store's writer lock is still held by the
// operation that invoked the hook.
type Receiver interface {
	OnTokensReceived(ctx context.Context, from domain.Address, amount math.Int) error
}

// ReceiverFunc adapts a function to Receiver.
type ReceiverFunc func(ctx context.Context, from domain.Address, amount math.Int) error

// OnTokensReceived calls f.
func (f ReceiverFunc) OnTokensReceived(ctx context.Context, from domain.Address, amount math.Int) error {
	return f(ctx, from, amount)
}

// Receivers maps addresses to their hooks. Safe for concurrent use.
type Receivers struct {
	mu    sync.RWMutex
	hooks map[domain.Address]Receiver
}

// NewReceivers creates an empty registry.
func NewReceivers() *Receivers {
	return &Receivers{hooks: make(map[domain.Address]Receiver)}
}

// Register installs r as the hook of addr, replacing any previous one.
func (r *Receivers) Register(addr domain.Address, recv Receiver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks[addr] = recv
}

// Unregister removes the hook of addr.
func (r *Receivers) Unregister(addr domain.Address) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.hooks, addr)
}

// Lookup returns the hook of addr. A nil registry has no hooks.
func (r *Receivers) Lookup(addr domain.Address) (Receiver, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	recv, ok := r.hooks[addr]
	return recv, ok
}
