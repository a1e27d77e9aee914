// Package settlement implements the segment marketplace: the segment
// registry, atomic purchase settlement, the earnings ledger and the
// operator governance state machine, on top of the PAT token ledger.
//
// Every mutating operation is one storage transaction. Its effects and its
// events become visible together on commit or not at all.
package settlement

import (
	"context"
	"log/slog"
	"sync"
	"time"

	errorsmod "cosmossdk.io/errors"

	"pat-settlement/internal/domain"
	"pat-settlement/internal/events"
	"pat-settlement/internal/idhash"
	"pat-settlement/internal/observability"
	"pat-settlement/internal/storage"
	"pat-settlement/internal/token"
)

// Options contains configuration for creating an Engine.
type Options struct {
	Store      storage.Store
	Registry   *Registry          // nil uses DefaultRegistry
	Receivers  *token.Receivers   // transfer hooks; may be nil
	Dispatcher *events.Dispatcher // post-commit delivery; may be nil
	Logger     *slog.Logger
	Clock      func() time.Time
}

// Engine runs marketplace operations against a Store.
type Engine struct {
	store      storage.Store
	registry   *Registry
	receivers  *token.Receivers
	dispatcher *events.Dispatcher
	logger     *slog.Logger
	clock      func() time.Time

	// dispatchMu is taken before commit and released after dispatch, so
	// sinks see records in seq order.
	dispatchMu sync.Mutex
}

// New creates a new Engine.
func New(opts Options) *Engine {
	e := &Engine{
		store:      opts.Store,
		registry:   opts.Registry,
		receivers:  opts.Receivers,
		dispatcher: opts.Dispatcher,
		logger:     opts.Logger,
		clock:      opts.Clock,
	}
	if e.registry == nil {
		e.registry = DefaultRegistry()
	}
	if e.receivers == nil {
		e.receivers = token.NewReceivers()
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.clock == nil {
		e.clock = time.Now
	}
	e.logger = e.logger.With("component", "settlement")
	return e
}

// Receivers returns the transfer hook registry.
func (e *Engine) Receivers() *token.Receivers { return e.receivers }

// Registry returns the logic version registry.
func (e *Engine) Registry() *Registry { return e.registry }

type inFlightKey struct{}

// inFlight marks a context as belonging to a running operation. Reads made
// with such a context see the operation's uncommitted state.
type inFlight struct {
	op string
	tx storage.Tx
}

func inFlightFrom(ctx context.Context) (*inFlight, bool) {
	f, ok := ctx.Value(inFlightKey{}).(*inFlight)
	return f, ok
}

// mutate runs fn as one atomic operation on behalf of caller, appends the
// events it emitted to the log, and hands them to the sinks after commit.
func (e *Engine) mutate(ctx context.Context, op string, caller domain.Address, fn func(env *Env) error) error {
	start := time.Now()

	if running, ok := inFlightFrom(ctx); ok {
		err := errorsmod.Wrapf(domain.ErrReentrantCall, "%s during %s", op, running.op)
		e.observe(op, caller, start, err)
		return err
	}

	now := e.clock().Unix()
	var (
		records     []*domain.EventRecord
		afterCommit []func()
		ordered     bool
	)
	err := e.store.Atomic(ctx, func(tx storage.Tx) error {
		txCtx := context.WithValue(ctx, inFlightKey{}, &inFlight{op: op, tx: tx})
		journal := &domain.Journal{}
		env := &Env{
			ctx:      txCtx,
			tx:       tx,
			caller:   caller,
			now:      now,
			journal:  journal,
			ledger:   token.NewLedger(tx, journal, e.receivers),
			registry: e.registry,
		}
		if err := fn(env); err != nil {
			return err
		}

		records = buildRecords(tx.Seq(), now, journal.Events())
		afterCommit = env.afterCommit
		if len(records) == 0 {
			return nil
		}
		if err := tx.AppendEvents(txCtx, records); err != nil {
			return err
		}
		// The store serializes writers, so taking the lock here orders
		// dispatch the same way commits are ordered.
		e.dispatchMu.Lock()
		ordered = true
		return nil
	})
	if ordered {
		defer e.dispatchMu.Unlock()
	}
	e.observe(op, caller, start, err)
	if err != nil {
		return err
	}

	for _, f := range afterCommit {
		f()
	}
	e.dispatcher.Dispatch(ctx, records)
	return nil
}

func buildRecords(seq uint64, now int64, evts []domain.Event) []*domain.EventRecord {
	records := make([]*domain.EventRecord, len(evts))
	for i, ev := range evts {
		records[i] = &domain.EventRecord{
			ID:         idhash.ComputeEventID(seq, i, ev.Kind()),
			Seq:        seq,
			Index:      i,
			Kind:       ev.Kind(),
			Time:       now,
			Attributes: ev.Attributes(),
		}
	}
	return records
}

func (e *Engine) observe(op string, caller domain.Address, start time.Time, err error) {
	elapsed := time.Since(start)
	if err == nil {
		observability.RecordOperation(op, "ok", elapsed.Seconds())
		observability.RecordSuccess(e.clock().Unix())
		e.logger.Debug("operation committed", "op", op, "caller", caller.String(), "duration", elapsed)
		return
	}

	category := domain.CategoryOf(err)
	observability.RecordOperation(op, string(category), elapsed.Seconds())
	codespace, code, _ := errorsmod.ABCIInfo(err, false)
	if category == domain.CategoryInternal {
		e.logger.Error("operation failed", "op", op, "caller", caller.String(), "error", err)
		return
	}
	e.logger.Info("operation rejected",
		"op", op,
		"caller", caller.String(),
		"codespace", codespace,
		"code", code,
		"error", err)
}

// view runs fn against committed state, or against the running
// operation's state when ctx belongs to one.
func (e *Engine) view(ctx context.Context, fn func(tx storage.ReadTx) error) error {
	if running, ok := inFlightFrom(ctx); ok {
		return fn(running.tx)
	}
	return e.store.View(ctx, fn)
}
