package replay

import (
	"fmt"

	"pat-settlement/internal/domain"
)

// CheckOrder verifies records are strictly increasing by (seq, index)
// and follow prev, the last record already seen (nil at the start).
func CheckOrder(prev *domain.EventRecord, records []*domain.EventRecord) error {
	for _, r := range records {
		if prev != nil && !after(r, prev) {
			return fmt.Errorf("%w: (%d,%d) after (%d,%d)", ErrInvalidOrdering, r.Seq, r.Index, prev.Seq, prev.Index)
		}
		prev = r
	}
	return nil
}

func after(a, b *domain.EventRecord) bool {
	if a.Seq != b.Seq {
		return a.Seq > b.Seq
	}
	return a.Index > b.Index
}

// GroupBySeq splits ordered records into one slice per operation.
func GroupBySeq(records []*domain.EventRecord) [][]*domain.EventRecord {
	var groups [][]*domain.EventRecord
	for i := 0; i < len(records); {
		j := i + 1
		for j < len(records) && records[j].Seq == records[i].Seq {
			j++
		}
		groups = append(groups, records[i:j])
		i = j
	}
	return groups
}
