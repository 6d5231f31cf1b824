package lending

import (
	"github.com/shopspring/decimal"

	"klendrisk/native/lending/fixedpoint"
)

// CollateralDebtCap limits debt taken from a reserve against one collateral
// reserve inside one elevation group.
type CollateralDebtCap struct {
	CollateralReserve Address         `json:"collateralReserve"`
	ElevationGroup    uint32          `json:"elevationGroup"`
	MaxDebt           decimal.Decimal `json:"maxDebt"`
	CurrentValue      decimal.Decimal `json:"currentValue"`
}

// BorrowCaps captures the independent throttles that limit borrowing from a
// reserve. It is a read of configuration and counters with no projection.
type BorrowCaps struct {
	// UtilizationCap blocks borrowing above this utilization. One when unset.
	UtilizationCap          decimal.Decimal `json:"utilizationCap"`
	UtilizationCurrentValue decimal.Decimal `json:"utilizationCurrentValue"`
	// NetWithdrawal* describe the rolling debt outflow window.
	NetWithdrawalCap                     decimal.Decimal `json:"netWithdrawalCap"`
	NetWithdrawalCurrentValue            decimal.Decimal `json:"netWithdrawalCurrentValue"`
	NetWithdrawalLastUpdateTs            uint64          `json:"netWithdrawalLastUpdateTs"`
	NetWithdrawalIntervalDurationSeconds uint64          `json:"netWithdrawalIntervalDurationSeconds"`
	// GlobalDebtCap bounds total debt of the reserve.
	GlobalDebtCap       decimal.Decimal `json:"globalDebtCap"`
	GlobalTotalBorrowed decimal.Decimal `json:"globalTotalBorrowed"`
	// DebtOutsideEmodeCap bounds debt taken in cross mode.
	DebtOutsideEmodeCap  decimal.Decimal `json:"debtOutsideEmodeCap"`
	BorrowedOutsideEmode decimal.Decimal `json:"borrowedOutsideEmode"`
	// DebtAgainstCollateralReserveCaps has one entry per collateral of every
	// group whose debt reserve is this reserve.
	DebtAgainstCollateralReserveCaps []CollateralDebtCap `json:"debtAgainstCollateralReserveCaps"`
}

// BorrowCaps reads every borrow limit of reserve.
func (m *Market) BorrowCaps(reserve *Reserve) (BorrowCaps, error) {
	cfg := reserve.state.Config
	utilizationCap := one
	if cfg.UtilizationLimitBlockBorrowingAbove > 0 {
		utilizationCap = pct(uint64(cfg.UtilizationLimitBlockBorrowingAbove))
	}

	collateralCaps := make([]CollateralDebtCap, 0)
	for _, desc := range m.descriptions {
		if desc.DebtReserve != reserve.Address() {
			continue
		}
		for _, addr := range desc.CollateralReserves {
			collateral, err := m.reserve(addr)
			if err != nil {
				return BorrowCaps{}, err
			}
			collateralCaps = append(collateralCaps, CollateralDebtCap{
				CollateralReserve: addr,
				ElevationGroup:    desc.ID,
				MaxDebt:           collateral.BorrowLimitAgainstCollateralInElevationGroup(desc.ID),
				CurrentValue:      collateral.BorrowedAmountAgainstCollateralInElevationGroup(desc.ID),
			})
		}
	}

	return BorrowCaps{
		UtilizationCap:                       utilizationCap,
		UtilizationCurrentValue:              reserve.Utilization(),
		NetWithdrawalCap:                     signed(cfg.DebtWithdrawalCap.ConfigCapacity),
		NetWithdrawalCurrentValue:            signed(cfg.DebtWithdrawalCap.CurrentTotal),
		NetWithdrawalLastUpdateTs:            cfg.DebtWithdrawalCap.LastIntervalStartTimestamp,
		NetWithdrawalIntervalDurationSeconds: cfg.DebtWithdrawalCap.ConfigIntervalLengthSeconds,
		GlobalDebtCap:                        fixedpoint.DecimalFromUint64(cfg.BorrowLimit),
		GlobalTotalBorrowed:                  reserve.BorrowedAmount(),
		DebtOutsideEmodeCap:                  reserve.BorrowLimitOutsideElevationGroup(),
		BorrowedOutsideEmode:                 reserve.BorrowedAmountOutsideElevationGroup(),
		DebtAgainstCollateralReserveCaps:     collateralCaps,
	}, nil
}

// LiquidityAvailable returns, for each requested group, the amount that can
// still be borrowed from reserve: the tightest of available liquidity, the
// group specific remainder, the debt withdrawal window, the global cap and
// the utilization cap, each clamped at zero. A group with no collateral caps
// has nothing available.
func (m *Market) LiquidityAvailable(reserve *Reserve, groups []uint32) ([]decimal.Decimal, error) {
	caps, err := m.BorrowCaps(reserve)
	if err != nil {
		return nil, err
	}
	liquidity := fixedpoint.PositiveOrZero(reserve.LiquidityAvailableAmount())
	fromUtilization := fixedpoint.PositiveOrZero(reserve.TotalSupply().Mul(caps.UtilizationCap.Sub(reserve.Utilization())))

	remainingWindow := fixedpoint.U64Max
	if caps.NetWithdrawalIntervalDurationSeconds != 0 {
		remainingWindow = caps.NetWithdrawalCap.Sub(caps.NetWithdrawalCurrentValue)
	}
	remainingWindow = fixedpoint.PositiveOrZero(remainingWindow)
	remainingGlobal := fixedpoint.PositiveOrZero(caps.GlobalDebtCap.Sub(caps.GlobalTotalBorrowed))
	remainingOutside := fixedpoint.PositiveOrZero(caps.DebtOutsideEmodeCap.Sub(caps.BorrowedOutsideEmode))

	out := make([]decimal.Decimal, 0, len(groups))
	for _, group := range groups {
		groupRemaining := remainingOutside
		if group != 0 {
			groupRemaining = remainingInGroup(caps.DebtAgainstCollateralReserveCaps, group)
		}
		out = append(out, decimal.Min(liquidity, groupRemaining, remainingWindow, remainingGlobal, fromUtilization))
	}
	return out, nil
}

func remainingInGroup(caps []CollateralDebtCap, group uint32) decimal.Decimal {
	var (
		remaining decimal.Decimal
		found     bool
	)
	for _, c := range caps {
		if c.ElevationGroup != group {
			continue
		}
		left := c.MaxDebt.Sub(c.CurrentValue)
		if !found || left.LessThan(remaining) {
			remaining = left
			found = true
		}
	}
	if !found {
		return decimal.Zero
	}
	return fixedpoint.PositiveOrZero(remaining)
}
