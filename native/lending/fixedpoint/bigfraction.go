package fixedpoint

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// BigFractionLimbs is the number of 64-bit limbs in a BigFraction.
const BigFractionLimbs = 4

var errBigFractionRange = errors.New("fixedpoint: value out of big fraction range")

// BigFraction is the multi-limb accumulator used on chain for cumulative
// borrow rates. Limbs are little-endian: limb i carries weight 2^(64*i) and the
// folded integer is a mantissa at the Fraction scale.
type BigFraction [BigFractionLimbs]uint64

// NewBigFraction splits a non-negative fraction into limbs.
func NewBigFraction(f Fraction) (BigFraction, error) {
	if f.IsNegative() {
		return BigFraction{}, errBigFractionRange
	}
	u, overflow := uint256.FromBig(f.raw())
	if overflow {
		return BigFraction{}, errBigFractionRange
	}
	return BigFraction(*u), nil
}

// Reduce folds the limbs from the most significant down, acc = acc<<64 + limb,
// and returns the resulting mantissa as a Fraction.
func (b BigFraction) Reduce() Fraction {
	acc := new(uint256.Int)
	for i := BigFractionLimbs - 1; i >= 0; i-- {
		acc.Lsh(acc, 64)
		acc.Add(acc, uint256.NewInt(b[i]))
	}
	return Fraction{v: acc.ToBig()}
}

// Scaled returns the folded mantissa.
func (b BigFraction) Scaled() *big.Int {
	return b.Reduce().raw()
}

// Decimal returns the decimal value of the reduced accumulator.
func (b BigFraction) Decimal() decimal.Decimal {
	return b.Reduce().Decimal()
}

func (b BigFraction) IsZero() bool {
	return b == BigFraction{}
}
