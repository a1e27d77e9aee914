package domain

import "cosmossdk.io/math"

// Allocation split of the genesis supply, in basis points of total supply.
// The team share is whatever remains after the other three so that integer
// rounding never loses value.
const (
	TreasuryShareBps  = 5000
	EcosystemShareBps = 3000
	ICOShareBps       = 1000
	TeamShareBps      = 1000
)

// Vesting duration bounds in seconds.
const (
	SecondsPerDay          = 24 * 60 * 60
	MinVestingDuration     = 180 * SecondsPerDay
	MaxVestingDuration     = 365 * SecondsPerDay
	DefaultVestingDuration = MaxVestingDuration
)

// TokenInfo describes the fixed-supply token.
type TokenInfo struct {
	Name        string
	Symbol      string
	Decimals    int32
	TotalSupply math.Int
	Issuer      Address
}

// Distribution records the one-time allocation. A non-zero Treasury means
// the distribution already happened.
type Distribution struct {
	Treasury          Address
	Ecosystem         Address
	ICO               Address
	TeamVestingTarget Address
	DistributedAt     int64
}

// IsDone reports whether the distribution has been performed.
func (d *Distribution) IsDone() bool {
	return d != nil && !d.Treasury.IsZero()
}

// AllocationAmounts is the per-recipient result of splitting the supply.
type AllocationAmounts struct {
	Treasury  math.Int
	Ecosystem math.Int
	ICO       math.Int
	Team      math.Int
}

// SplitAllocation divides supply 50/30/10 with the team share absorbing
// the integer remainder.
func SplitAllocation(supply math.Int) AllocationAmounts {
	treasury := MulBps(supply, TreasuryShareBps)
	ecosystem := MulBps(supply, EcosystemShareBps)
	ico := MulBps(supply, ICOShareBps)
	team := supply.Sub(treasury).Sub(ecosystem).Sub(ico)
	return AllocationAmounts{Treasury: treasury, Ecosystem: ecosystem, ICO: ico, Team: team}
}

// VestingSchedule linearly releases Total to Beneficiary over Duration
// seconds starting at Start. Released never decreases.
type VestingSchedule struct {
	Beneficiary Address
	Start       int64
	Duration    int64
	Total       math.Int
	Released    math.Int
}

// VestedAt returns the amount vested at unix time now.
func (v *VestingSchedule) VestedAt(now int64) math.Int {
	if now <= v.Start || v.Duration <= 0 {
		if v.Duration <= 0 && now >= v.Start {
			return v.Total
		}
		return math.ZeroInt()
	}
	elapsed := now - v.Start
	if elapsed >= v.Duration {
		return v.Total
	}
	return v.Total.MulRaw(elapsed).QuoRaw(v.Duration)
}

// ReleasableAt returns vested minus released, floored at zero.
func (v *VestingSchedule) ReleasableAt(now int64) math.Int {
	r := v.VestedAt(now).Sub(v.Released)
	if r.IsNegative() {
		return math.ZeroInt()
	}
	return r
}

// Locked returns the part of Total not yet released.
func (v *VestingSchedule) Locked() math.Int {
	return v.Total.Sub(v.Released)
}
