package ratecurve

import (
	"github.com/shopspring/decimal"

	"klendrisk/native/lending/fixedpoint"
)

// OneHundredPctBps is full utilization expressed in basis points.
const OneHundredPctBps = 10_000

var bpsDenominator = decimal.NewFromInt(OneHundredPctBps)

// Point is one configured (utilization, borrow rate) pair in basis points.
type Point struct {
	UtilizationRateBps uint32 `json:"utilizationRateBps"`
	BorrowRateBps      uint32 `json:"borrowRateBps"`
}

type point struct {
	utilization decimal.Decimal
	rate        decimal.Decimal
}

// Curve is a piecewise-linear utilization to annual borrow rate mapping.
type Curve struct {
	points []point
}

// New builds a curve from configured points. The list is truncated at the first
// point that reaches 100% utilization; trailing padding points are ignored.
func New(points []Point) Curve {
	curve := Curve{points: make([]point, 0, len(points))}
	for _, p := range points {
		curve.points = append(curve.points, point{
			utilization: decimal.NewFromInt(int64(p.UtilizationRateBps)).Div(bpsDenominator),
			rate:        decimal.NewFromInt(int64(p.BorrowRateBps)).Div(bpsDenominator),
		})
		if p.UtilizationRateBps == OneHundredPctBps {
			break
		}
	}
	return curve
}

// Len reports the number of points kept after truncation.
func (c Curve) Len() int { return len(c.points) }

// Rate interpolates the annual borrow rate for a utilization fraction.
// Utilization below the first point scales that point's rate from the origin,
// utilization beyond the last point clamps to its rate.
func (c Curve) Rate(utilization decimal.Decimal) decimal.Decimal {
	if len(c.points) == 0 {
		return decimal.Zero
	}
	if utilization.IsNegative() {
		utilization = decimal.Zero
	}
	first := c.points[0]
	if utilization.LessThanOrEqual(first.utilization) {
		if first.utilization.IsZero() || utilization.Equal(first.utilization) {
			return first.rate
		}
		return fixedpoint.Quo(first.rate.Mul(utilization), first.utilization)
	}
	for i := 1; i < len(c.points); i++ {
		next := c.points[i]
		if utilization.GreaterThan(next.utilization) {
			continue
		}
		prev := c.points[i-1]
		if utilization.Equal(next.utilization) {
			return next.rate
		}
		span := next.utilization.Sub(prev.utilization)
		if span.IsZero() {
			return next.rate
		}
		slope := fixedpoint.Quo(next.rate.Sub(prev.rate), span)
		return prev.rate.Add(slope.Mul(utilization.Sub(prev.utilization)))
	}
	return c.points[len(c.points)-1].rate
}

// BorrowRate applies the slot adjustment factor to the interpolated rate.
func (c Curve) BorrowRate(utilization, slotAdjustment decimal.Decimal) decimal.Decimal {
	return c.Rate(utilization).Mul(slotAdjustment)
}
