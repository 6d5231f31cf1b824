package lending

import (
	"github.com/shopspring/decimal"

	"klendrisk/native/lending/fixedpoint"
)

// Slot cadence assumed by the on-chain program.
const (
	SlotsPerSecond = 2
	SlotsPerMinute = SlotsPerSecond * 60
	SlotsPerHour   = SlotsPerMinute * 60
	SlotsPerDay    = SlotsPerHour * 24
	SlotsPerYear   = SlotsPerDay * 365
)

var (
	one         = decimal.NewFromInt(1)
	oneHundred  = decimal.NewFromInt(100)
	tenThousand = decimal.NewFromInt(10_000)
	slotsYear   = decimal.NewFromInt(SlotsPerYear)

	// InitialCollateralRate is the collateral exchange rate of an empty reserve.
	InitialCollateralRate = decimal.NewFromInt(1)

	withdrawSafetyMargin = decimal.RequireFromString("0.999")
)

func pct(v uint64) decimal.Decimal {
	return fixedpoint.DecimalFromUint64(v).Div(oneHundred)
}

func bps(v uint64) decimal.Decimal {
	return fixedpoint.DecimalFromUint64(v).Div(tenThousand)
}

func signed(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

// CalculateAPYFromAPR compounds an annual rate once per slot:
// (1 + apr/SLOTS_PER_YEAR)^SLOTS_PER_YEAR - 1.
func CalculateAPYFromAPR(apr decimal.Decimal) decimal.Decimal {
	perSlot := one.Add(fixedpoint.Quo(apr, slotsYear))
	return fixedpoint.PowInt(perSlot, SlotsPerYear).Sub(one)
}

func elapsedSlots(current, last uint64) uint64 {
	if current <= last {
		return 0
	}
	return current - last
}
