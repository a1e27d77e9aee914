// Package verification captures complete market state and checks it:
// field-by-field comparison of two snapshots, and the accounting
// invariants every committed state must satisfy.
package verification

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"cosmossdk.io/math"

	"pat-settlement/internal/domain"
	"pat-settlement/internal/storage"
)

// Snapshot is a copy of every persistent structure at one commit.
type Snapshot struct {
	Token        *domain.TokenInfo
	Balances     map[domain.Address]math.Int
	Distribution *domain.Distribution
	Vesting      *domain.VestingSchedule
	Segments     []*domain.Segment
	Access       []storage.AccessRight
	Earnings     map[domain.Address]math.Int
	Config       *domain.GlobalConfig
	EventCount   int
}

// Capture reads a snapshot from the committed state of store.
func Capture(ctx context.Context, store storage.Store) (*Snapshot, error) {
	var snap *Snapshot
	err := store.View(ctx, func(tx storage.ReadTx) error {
		var err error
		snap, err = CaptureTx(ctx, tx)
		return err
	})
	return snap, err
}

// CaptureTx reads a snapshot through tx. Missing singletons stay nil.
func CaptureTx(ctx context.Context, tx storage.ReadTx) (*Snapshot, error) {
	s := &Snapshot{}
	var err error

	if s.Token, err = tx.TokenInfo(ctx); notFoundOK(err) != nil {
		return nil, fmt.Errorf("token info: %w", err)
	}
	if s.Distribution, err = tx.Distribution(ctx); notFoundOK(err) != nil {
		return nil, fmt.Errorf("distribution: %w", err)
	}
	if s.Vesting, err = tx.VestingSchedule(ctx); notFoundOK(err) != nil {
		return nil, fmt.Errorf("vesting schedule: %w", err)
	}
	if s.Config, err = tx.Config(ctx); notFoundOK(err) != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if s.Balances, err = tx.Balances(ctx); err != nil {
		return nil, fmt.Errorf("balances: %w", err)
	}
	if s.Earnings, err = tx.AllEarnings(ctx); err != nil {
		return nil, fmt.Errorf("earnings: %w", err)
	}
	if s.Segments, err = tx.Segments(ctx, domain.SegmentFilter{}); err != nil {
		return nil, fmt.Errorf("segments: %w", err)
	}
	if s.Access, err = tx.AccessRights(ctx); err != nil {
		return nil, fmt.Errorf("access rights: %w", err)
	}
	records, err := tx.Events(ctx, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("events: %w", err)
	}
	s.EventCount = len(records)
	return s, nil
}

func notFoundOK(err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	return err
}

func sortedAddresses(m ...map[domain.Address]math.Int) []domain.Address {
	seen := make(map[domain.Address]bool)
	var out []domain.Address
	for _, mm := range m {
		for a := range mm {
			if !seen[a] {
				seen[a] = true
				out = append(out, a)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].String() < out[j].String()
	})
	return out
}
