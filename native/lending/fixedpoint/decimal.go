package fixedpoint

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// DivisionPrecision is the number of decimal places kept by Quo and PowInt.
const DivisionPrecision int32 = 36

// U64Max is the largest unsigned 64-bit value, used as the "no limit" sentinel
// by on-chain caps.
var U64Max = decimal.NewFromBigInt(new(big.Int).SetUint64(^uint64(0)), 0)

// DecimalFromUint64 converts without going through int64.
func DecimalFromUint64(v uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0)
}

// Quo divides a by b at DivisionPrecision decimal places. A zero divisor
// yields zero so that "no position yet" cases stay total.
func Quo(a, b decimal.Decimal) decimal.Decimal {
	if b.IsZero() {
		return decimal.Zero
	}
	return a.DivRound(b, DivisionPrecision)
}

// PositiveOrZero clamps negative decimals to zero.
func PositiveOrZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// Pow10 returns 10^n, the mint factor of a token with n decimals.
func Pow10(n uint8) decimal.Decimal {
	return decimal.New(1, int32(n))
}

// PowInt raises base to an integer power by squaring, rounding every
// intermediate product to DivisionPrecision places.
func PowInt(base decimal.Decimal, exp uint64) decimal.Decimal {
	result := decimal.NewFromInt(1)
	for exp > 0 {
		if exp&1 == 1 {
			result = result.Mul(base).Round(DivisionPrecision)
		}
		base = base.Mul(base).Round(DivisionPrecision)
		exp >>= 1
	}
	return result
}
