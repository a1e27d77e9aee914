package verification

import (
	"fmt"

	"cosmossdk.io/math"

	"pat-settlement/internal/domain"
)

// FieldDivergence represents a mismatch between two snapshots.
type FieldDivergence struct {
	Field    string      // dotted path, e.g. "Config.Version" or "Balances[<addr>]"
	Expected interface{} // value in the first snapshot
	Actual   interface{} // value in the second snapshot
}

func (d FieldDivergence) String() string {
	return fmt.Sprintf("%s: expected %v, got %v", d.Field, d.Expected, d.Actual)
}

// CompareSnapshots compares two snapshots and returns divergences.
// Fields named in ignore (e.g. "Config.Version", "EventCount") are skipped.
func CompareSnapshots(expected, actual *Snapshot, ignore ...string) []FieldDivergence {
	c := &comparer{skip: make(map[string]bool, len(ignore))}
	for _, f := range ignore {
		c.skip[f] = true
	}

	c.compareToken(expected.Token, actual.Token)
	c.compareAmounts("Balances", expected.Balances, actual.Balances)
	c.compareAmounts("Earnings", expected.Earnings, actual.Earnings)
	c.compareDistribution(expected.Distribution, actual.Distribution)
	c.compareVesting(expected.Vesting, actual.Vesting)
	c.compareSegments(expected.Segments, actual.Segments)
	c.compareAccess(expected, actual)
	c.compareConfig(expected.Config, actual.Config)
	c.check("EventCount", expected.EventCount, actual.EventCount)

	return c.divergences
}

type comparer struct {
	skip        map[string]bool
	divergences []FieldDivergence
}

func (c *comparer) check(field string, expected, actual interface{}) {
	if c.skip[field] || expected == actual {
		return
	}
	c.divergences = append(c.divergences, FieldDivergence{Field: field, Expected: expected, Actual: actual})
}

func (c *comparer) checkInt(field string, expected, actual math.Int) {
	if c.skip[field] || intEquals(expected, actual) {
		return
	}
	c.divergences = append(c.divergences, FieldDivergence{Field: field, Expected: intString(expected), Actual: intString(actual)})
}

// presence reports whether both sides are set; a one-sided value is a divergence.
func (c *comparer) presence(field string, expectedNil, actualNil bool) bool {
	if expectedNil && actualNil {
		return false
	}
	if expectedNil != actualNil {
		c.check(field, !expectedNil, !actualNil)
		return false
	}
	return true
}

func (c *comparer) compareToken(e, a *domain.TokenInfo) {
	if !c.presence("Token", e == nil, a == nil) {
		return
	}
	c.check("Token.Name", e.Name, a.Name)
	c.check("Token.Symbol", e.Symbol, a.Symbol)
	c.check("Token.Decimals", e.Decimals, a.Decimals)
	c.checkInt("Token.TotalSupply", e.TotalSupply, a.TotalSupply)
	c.check("Token.Issuer", e.Issuer, a.Issuer)
}

func (c *comparer) compareAmounts(name string, e, a map[domain.Address]math.Int) {
	for _, addr := range sortedAddresses(e, a) {
		c.checkInt(fmt.Sprintf("%s[%s]", name, addr), valueOrZero(e, addr), valueOrZero(a, addr))
	}
}

func (c *comparer) compareDistribution(e, a *domain.Distribution) {
	if !c.presence("Distribution", e == nil, a == nil) {
		return
	}
	c.check("Distribution.Treasury", e.Treasury, a.Treasury)
	c.check("Distribution.Ecosystem", e.Ecosystem, a.Ecosystem)
	c.check("Distribution.ICO", e.ICO, a.ICO)
	c.check("Distribution.TeamVestingTarget", e.TeamVestingTarget, a.TeamVestingTarget)
	c.check("Distribution.DistributedAt", e.DistributedAt, a.DistributedAt)
}

func (c *comparer) compareVesting(e, a *domain.VestingSchedule) {
	if !c.presence("Vesting", e == nil, a == nil) {
		return
	}
	c.check("Vesting.Beneficiary", e.Beneficiary, a.Beneficiary)
	c.check("Vesting.Start", e.Start, a.Start)
	c.check("Vesting.Duration", e.Duration, a.Duration)
	c.checkInt("Vesting.Total", e.Total, a.Total)
	c.checkInt("Vesting.Released", e.Released, a.Released)
}

func (c *comparer) compareSegments(e, a []*domain.Segment) {
	c.check("Segments.Len", len(e), len(a))
	for i := 0; i < len(e) && i < len(a); i++ {
		prefix := fmt.Sprintf("Segments[%d].", e[i].ID)
		c.check(prefix+"ID", e[i].ID, a[i].ID)
		c.check(prefix+"Provider", e[i].Provider, a[i].Provider)
		c.check(prefix+"Type", e[i].Type, a[i].Type)
		c.check(prefix+"WindowDays", e[i].WindowDays, a[i].WindowDays)
		c.check(prefix+"ConfidenceBps", e[i].ConfidenceBps, a[i].ConfidenceBps)
		c.checkInt(prefix+"AskPrice", e[i].AskPrice, a[i].AskPrice)
		c.check(prefix+"Active", e[i].Active, a[i].Active)
		c.check(prefix+"CreatedAt", e[i].CreatedAt, a[i].CreatedAt)
		c.check(prefix+"UpdatedAt", e[i].UpdatedAt, a[i].UpdatedAt)
	}
}

func (c *comparer) compareAccess(e, a *Snapshot) {
	c.check("Access.Len", len(e.Access), len(a.Access))
	for i := 0; i < len(e.Access) && i < len(a.Access); i++ {
		c.check(fmt.Sprintf("Access[%d]", i), e.Access[i], a.Access[i])
	}
}

func (c *comparer) compareConfig(e, a *domain.GlobalConfig) {
	if !c.presence("Config", e == nil, a == nil) {
		return
	}
	c.check("Config.Operator", e.Operator, a.Operator)
	c.check("Config.SpreadBps", e.SpreadBps, a.SpreadBps)
	c.check("Config.BrokerWallet", e.BrokerWallet, a.BrokerWallet)
	c.check("Config.BrokerPool", e.BrokerPool, a.BrokerPool)
	c.check("Config.Phase", e.Phase, a.Phase)
	c.check("Config.Paused", e.Paused, a.Paused)
	c.check("Config.Version", e.Version, a.Version)
	c.check("Config.ProgramID", e.ProgramID, a.ProgramID)
	c.check("Config.Custody", e.Custody, a.Custody)
}

func valueOrZero(m map[domain.Address]math.Int, addr domain.Address) math.Int {
	if v, ok := m[addr]; ok {
		return v
	}
	return math.ZeroInt()
}

// intEquals treats a nil Int as zero.
func intEquals(a, b math.Int) bool {
	if a.IsNil() {
		a = math.ZeroInt()
	}
	if b.IsNil() {
		b = math.ZeroInt()
	}
	return a.Equal(b)
}

func intString(v math.Int) string {
	if v.IsNil() {
		return "0"
	}
	return v.String()
}
