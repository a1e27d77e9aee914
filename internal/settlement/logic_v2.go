package settlement

import (
	errorsmod "cosmossdk.io/errors"

	"pat-settlement/internal/domain"
)

// MaxBatchSize bounds the number of segments bought in one batch.
const MaxBatchSize = 64

// LogicV2 adds all-or-nothing batch purchases to v1.
type LogicV2 struct {
	LogicV1
}

var _ Logic = LogicV2{}

// Version implements Logic.
func (LogicV2) Version() string { return "v2" }

// BuySegments buys every id in order. Any failure aborts the whole batch,
// including repeated ids, which fail AlreadyHasAccess on their second use.
func (l LogicV2) BuySegments(env *Env, ids []uint64) ([]*domain.Settlement, error) {
	if len(ids) == 0 {
		return nil, errorsmod.Wrap(domain.ErrInvalidAmount, "empty batch")
	}
	if len(ids) > MaxBatchSize {
		return nil, errorsmod.Wrapf(domain.ErrInvalidAmount, "batch of %d exceeds %d", len(ids), MaxBatchSize)
	}

	out := make([]*domain.Settlement, 0, len(ids))
	for _, id := range ids {
		s, err := l.BuySegment(env, id)
		if err != nil {
			return nil, errorsmod.Wrapf(err, "segment %d", id)
		}
		out = append(out, s)
	}
	return out, nil
}
