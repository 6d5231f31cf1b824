package fixedpoint

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// FractionalBits is the binary scale used by the on-chain fixed-point
// representation. A Fraction with mantissa m represents m / 2^60.
const FractionalBits = 60

var (
	scale        = new(big.Int).Lsh(big.NewInt(1), FractionalBits)
	pow5         = new(big.Int).Exp(big.NewInt(5), big.NewInt(FractionalBits), nil)
	decimalScale = decimal.NewFromBigInt(scale, 0)
)

// Fraction is a signed fixed-point number stored as an integer mantissa at a
// scale of 2^60. The zero value is a valid zero. Fractions are immutable; every
// operation returns a new value.
type Fraction struct {
	v *big.Int
}

// Zero returns the zero fraction.
func Zero() Fraction { return Fraction{} }

// One returns the fraction representing 1.
func One() Fraction { return Fraction{v: new(big.Int).Set(scale)} }

// FromScaled wraps an already scaled mantissa.
func FromScaled(v *big.Int) Fraction {
	if v == nil {
		return Fraction{}
	}
	return Fraction{v: new(big.Int).Set(v)}
}

// FromScaledUint64 wraps a scaled mantissa that fits in 64 bits.
func FromScaledUint64(v uint64) Fraction {
	return Fraction{v: new(big.Int).SetUint64(v)}
}

// ParseScaled parses a base-10 scaled mantissa such as the "...Sf" fields of
// decoded accounts.
func ParseScaled(s string) (Fraction, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return Fraction{}, nil
	}
	v, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return Fraction{}, fmt.Errorf("fixedpoint: invalid scaled value %q", s)
	}
	return Fraction{v: v}, nil
}

// FromInt returns the fraction for an integer.
func FromInt(n int64) Fraction {
	return Fraction{v: new(big.Int).Lsh(big.NewInt(n), FractionalBits)}
}

// FromUint64 returns the fraction for an unsigned integer.
func FromUint64(n uint64) Fraction {
	return Fraction{v: new(big.Int).Lsh(new(big.Int).SetUint64(n), FractionalBits)}
}

// FromDecimal converts a decimal into a fraction, truncating toward zero below
// 2^-60.
func FromDecimal(d decimal.Decimal) Fraction {
	return Fraction{v: d.Mul(decimalScale).BigInt()}
}

// Parse converts a decimal string such as "0.05" into a fraction.
func Parse(s string) (Fraction, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Fraction{}, fmt.Errorf("fixedpoint: parse %q: %w", s, err)
	}
	return FromDecimal(d), nil
}

// FromFloat converts a float64 into a fraction.
func FromFloat(f float64) Fraction {
	return FromDecimal(decimal.NewFromFloat(f))
}

func (f Fraction) raw() *big.Int {
	if f.v == nil {
		return new(big.Int)
	}
	return f.v
}

// Scaled returns a copy of the scaled mantissa.
func (f Fraction) Scaled() *big.Int {
	return new(big.Int).Set(f.raw())
}

// Decimal returns the exact decimal value of the fraction. Every multiple of
// 2^-60 has a finite decimal expansion, so no precision is lost.
func (f Fraction) Decimal() decimal.Decimal {
	if f.v == nil || f.v.Sign() == 0 {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(new(big.Int).Mul(f.v, pow5), -FractionalBits)
}

// String renders the decimal value.
func (f Fraction) String() string {
	return f.Decimal().String()
}

func (f Fraction) Sign() int { return f.raw().Sign() }

func (f Fraction) IsZero() bool { return f.raw().Sign() == 0 }

func (f Fraction) IsNegative() bool { return f.raw().Sign() < 0 }

// Cmp compares f and g and returns -1, 0 or +1.
func (f Fraction) Cmp(g Fraction) int { return f.raw().Cmp(g.raw()) }

func (f Fraction) Equal(g Fraction) bool { return f.Cmp(g) == 0 }

func (f Fraction) Add(g Fraction) Fraction {
	return Fraction{v: new(big.Int).Add(f.raw(), g.raw())}
}

func (f Fraction) Sub(g Fraction) Fraction {
	return Fraction{v: new(big.Int).Sub(f.raw(), g.raw())}
}

func (f Fraction) Neg() Fraction {
	return Fraction{v: new(big.Int).Neg(f.raw())}
}

// Mul multiplies and reduces by one scale shift (floor).
func (f Fraction) Mul(g Fraction) Fraction {
	product := new(big.Int).Mul(f.raw(), g.raw())
	return Fraction{v: product.Rsh(product, FractionalBits)}
}

// Div divides, truncating toward zero. Division by zero yields zero.
func (f Fraction) Div(g Fraction) Fraction {
	if g.IsZero() {
		return Fraction{}
	}
	numerator := new(big.Int).Lsh(f.raw(), FractionalBits)
	return Fraction{v: numerator.Quo(numerator, g.raw())}
}

// MulUint64 multiplies by an integer without rescaling.
func (f Fraction) MulUint64(n uint64) Fraction {
	return Fraction{v: new(big.Int).Mul(f.raw(), new(big.Int).SetUint64(n))}
}

func (f Fraction) Min(g Fraction) Fraction {
	if f.Cmp(g) <= 0 {
		return f
	}
	return g
}

func (f Fraction) Max(g Fraction) Fraction {
	if f.Cmp(g) >= 0 {
		return f
	}
	return g
}

// PositiveOrZero clamps negative values to zero.
func (f Fraction) PositiveOrZero() Fraction {
	if f.IsNegative() {
		return Fraction{}
	}
	return f
}

// SaturatingSub subtracts and clamps the result at zero.
func (f Fraction) SaturatingSub(g Fraction) Fraction {
	return f.Sub(g).PositiveOrZero()
}

// Floor returns the integer part, rounding toward negative infinity.
func (f Fraction) Floor() *big.Int {
	return new(big.Int).Rsh(f.raw(), FractionalBits)
}

// MarshalText renders the scaled mantissa, matching the on-chain encoding.
func (f Fraction) MarshalText() ([]byte, error) {
	return []byte(f.raw().String()), nil
}

// UnmarshalText parses a scaled mantissa.
func (f *Fraction) UnmarshalText(text []byte) error {
	parsed, err := ParseScaled(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// MarshalJSON encodes the scaled mantissa as a JSON string so values above
// 2^53 survive JavaScript consumers.
func (f Fraction) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.raw().String())
}

// UnmarshalJSON accepts the scaled mantissa either quoted or as a bare number.
func (f *Fraction) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*f = Fraction{}
		return nil
	}
	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("fixedpoint: decode scaled value: %w", err)
		}
		trimmed = s
	}
	return f.UnmarshalText([]byte(trimmed))
}
