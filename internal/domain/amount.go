package domain

import (
	"fmt"

	"cosmossdk.io/math"
	"github.com/shopspring/decimal"
)

// TokenDecimals is the number of fractional digits of the PAT token.
const TokenDecimals = 18

// BpsDenominator is 100% in basis points.
const BpsDenominator = 10000

// ParseAmount parses an integer amount in the smallest unit.
// Negative values are rejected.
func ParseAmount(s string) (math.Int, error) {
	amt, ok := math.NewIntFromString(s)
	if !ok {
		return math.Int{}, fmt.Errorf("invalid amount %q", s)
	}
	if amt.IsNegative() {
		return math.Int{}, fmt.Errorf("negative amount %q", s)
	}
	return amt, nil
}

// ParseTokens converts a whole-token decimal string ("555222888", "0.5")
// into smallest units at the given number of decimals. Values with more
// fractional digits than decimals are rejected rather than truncated.
func ParseTokens(s string, decimals int32) (math.Int, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return math.Int{}, fmt.Errorf("parse token amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return math.Int{}, fmt.Errorf("negative token amount %q", s)
	}
	scaled := d.Shift(decimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return math.Int{}, fmt.Errorf("token amount %q has more than %d decimals", s, decimals)
	}
	return math.NewIntFromBigInt(scaled.BigInt()), nil
}

// FormatTokens renders a smallest-unit amount as a whole-token decimal string.
func FormatTokens(amount math.Int, decimals int32) string {
	if amount.IsNil() {
		return "0"
	}
	return decimal.NewFromBigInt(amount.BigInt(), -decimals).String()
}

// TokensFloat is a lossy float rendering used only for metrics.
func TokensFloat(amount math.Int, decimals int32) float64 {
	if amount.IsNil() {
		return 0
	}
	f, _ := decimal.NewFromBigInt(amount.BigInt(), -decimals).Float64()
	return f
}

// MulBps returns floor(amount * bps / 10000).
func MulBps(amount math.Int, bps uint32) math.Int {
	return amount.MulRaw(int64(bps)).QuoRaw(BpsDenominator)
}
