package verification

import (
	"fmt"

	"cosmossdk.io/math"

	"pat-settlement/internal/domain"
)

// Violation is a broken accounting invariant.
type Violation struct {
	Invariant string
	Detail    string
}

func (v Violation) Error() string {
	return v.Invariant + ": " + v.Detail
}

// CheckInvariants returns every invariant s violates. A snapshot taken
// before genesis trivially passes.
func CheckInvariants(s *Snapshot) []Violation {
	var out []Violation
	add := func(name, format string, args ...interface{}) {
		out = append(out, Violation{Invariant: name, Detail: fmt.Sprintf(format, args...)})
	}

	if s.Token == nil {
		return nil
	}

	balances := math.ZeroInt()
	for addr, b := range s.Balances {
		if b.IsNegative() {
			add("non_negative_balance", "%s holds %s", addr, b)
		}
		balances = balances.Add(b)
	}
	if !balances.Equal(s.Token.TotalSupply) {
		add("supply_conservation", "balances sum to %s, supply is %s", balances, s.Token.TotalSupply)
	}

	earnings := math.ZeroInt()
	for addr, e := range s.Earnings {
		if e.IsNegative() {
			add("non_negative_earnings", "%s has %s", addr, e)
		}
		earnings = earnings.Add(e)
	}
	if s.Config != nil {
		custody := valueOrZero(s.Balances, s.Config.Custody)
		if !custody.Equal(earnings) {
			add("custody_backs_earnings", "custody holds %s, earnings total %s", custody, earnings)
		}
		if s.Config.SpreadBps > domain.MaxSpreadBps {
			add("spread_cap", "spread %d bps", s.Config.SpreadBps)
		}
		if !s.Config.Phase.IsValid() {
			add("phase_valid", "phase %d", s.Config.Phase)
		}
	}

	if s.Vesting != nil {
		if s.Vesting.Released.GT(s.Vesting.Total) {
			add("vesting_released_bounded", "released %s of %s", s.Vesting.Released, s.Vesting.Total)
		}
		issuer := valueOrZero(s.Balances, s.Token.Issuer)
		if issuer.LT(s.Vesting.Locked()) {
			add("locked_team_share_held", "issuer holds %s, locked %s", issuer, s.Vesting.Locked())
		}
	}
	if s.Vesting != nil && !s.Distribution.IsDone() {
		add("vesting_after_distribution", "schedule exists without distribution")
	}

	segments := make(map[uint64]bool, len(s.Segments))
	for i, seg := range s.Segments {
		if seg.ID != uint64(i+1) {
			add("sequential_segment_ids", "position %d holds id %d", i, seg.ID)
		}
		if !seg.AskPrice.IsPositive() {
			add("positive_ask", "segment %d asks %s", seg.ID, seg.AskPrice)
		}
		segments[seg.ID] = true
	}
	for _, right := range s.Access {
		if !segments[right.SegmentID] {
			add("access_refers_to_segment", "%s holds unknown segment %d", right.Consumer, right.SegmentID)
		}
	}

	return out
}
