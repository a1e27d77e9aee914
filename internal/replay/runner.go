package replay

import (
	"context"
	"fmt"
	"log/slog"

	"pat-settlement/internal/domain"
	"pat-settlement/internal/storage"
)

// DefaultPageSize is the number of records read per page.
const DefaultPageSize = 500

// Runner pages through the event log and hands each operation's records
// to a target in log order.
type Runner struct {
	store    storage.Store
	pageSize int
	logger   *slog.Logger
}

// NewRunner creates a new replay runner. pageSize <= 0 uses DefaultPageSize.
func NewRunner(store storage.Store, pageSize int, logger *slog.Logger) *Runner {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{store: store, pageSize: pageSize, logger: logger.With("component", "replay")}
}

// Run replays operations whose seq lies in rng. It stops at the first
// target error; Stats.LastSeq is then the last operation delivered.
func (r *Runner) Run(ctx context.Context, rng Range, target Target) (Stats, error) {
	var (
		stats  Stats
		prev   *domain.EventRecord
		cursor uint64
		limit  = r.pageSize
	)
	if rng.From > 0 {
		cursor = rng.From - 1
	}

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		page, err := r.page(ctx, cursor, limit)
		if err != nil {
			return stats, err
		}
		if len(page) == 0 {
			return stats, nil
		}
		if err := CheckOrder(prev, page); err != nil {
			return stats, err
		}

		groups := GroupBySeq(page)
		full := len(page) == limit
		// A full page may end inside an operation; keep its tail for the next read.
		if full {
			if len(groups) == 1 {
				limit *= 2
				continue
			}
			groups = groups[:len(groups)-1]
		}
		limit = r.pageSize

		for _, g := range groups {
			seq := g[0].Seq
			if rng.past(seq) {
				return stats, nil
			}
			if rng.contains(seq) {
				if err := target.Publish(ctx, g); err != nil {
					return stats, fmt.Errorf("replay seq %d to %s: %w", seq, target.Name(), err)
				}
				stats.Operations++
				stats.Records += len(g)
				stats.LastSeq = seq
			}
			prev = g[len(g)-1]
			cursor = seq
		}

		r.logger.Debug("replay progress", "target", target.Name(), "seq", cursor, "operations", stats.Operations)

		if !full {
			return stats, nil
		}
	}
}

func (r *Runner) page(ctx context.Context, afterSeq uint64, limit int) ([]*domain.EventRecord, error) {
	var records []*domain.EventRecord
	err := r.store.View(ctx, func(tx storage.ReadTx) error {
		var err error
		records, err = tx.Events(ctx, afterSeq, limit)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("read event log after seq %d: %w", afterSeq, err)
	}
	return records, nil
}
