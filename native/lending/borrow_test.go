package lending

import (
	"testing"

	"github.com/stretchr/testify/require"

	"klendrisk/native/lending/fixedpoint"
)

func depositOnly(t *testing.T, m *Market, group uint32) *Obligation {
	return newTestObligation(t, m, testObligation(group, []ObligationCollateral{deposit(reserveA, 5*units)}, nil))
}

func TestBorrowPowerByGroup(t *testing.T) {
	m := newTestMarket(t)
	o := depositOnly(t, m, 0)

	power, err := o.BorrowPower(m, mintB, testSlot, 0)
	require.NoError(t, err)
	requireDecimal(t, dec("3500000"), power)

	power, err = o.BorrowPower(m, mintB, testSlot, 1)
	require.NoError(t, err)
	requireDecimal(t, dec("4500000"), power)
}

func TestBorrowPowerDeductsExistingDebtAndFee(t *testing.T) {
	reserves := testReserves(t)
	reserves[1].Config.Fees.BorrowFeeSf = fixedpoint.FromDecimal(dec("0.25"))
	reserves[1].Config.BorrowFactorPct = 200
	m := newTestMarket(t, reserves...)
	o := newTestObligation(t, m, testObligation(0,
		[]ObligationCollateral{deposit(reserveA, 5*units)},
		[]ObligationLiquidity{borrow(t, reserveB, units/2)},
	))

	// headroom 3.5 - 0.5*2 = 2.5, divided by the borrow factor: 1.25 units,
	// less the inclusive 0.25/1.25 fee
	power, err := o.BorrowPower(m, mintB, testSlot, 0)
	require.NoError(t, err)
	requireDecimal(t, dec("1000000"), power)
}

func TestBorrowPowerZeroWhenCollateralRestricted(t *testing.T) {
	reserves := testReserves(t)
	reserves[0].Config.DisableUsageAsCollOutsideEmode = true
	m := newTestMarket(t, reserves...)
	o := depositOnly(t, m, 0)

	power, err := o.BorrowPower(m, mintB, testSlot, 0)
	require.NoError(t, err)
	require.True(t, power.IsZero())

	power, err = o.BorrowPower(m, mintB, testSlot, 1)
	require.NoError(t, err)
	requireDecimal(t, dec("4500000"), power)

	power, err = o.BorrowPower(m, mintC, testSlot, 1)
	require.NoError(t, err)
	require.True(t, power.IsZero())
}

func TestBorrowPowerNeverNegative(t *testing.T) {
	m := newTestMarket(t)
	o := newTestObligation(t, m, testObligation(0,
		[]ObligationCollateral{deposit(reserveA, 5*units)},
		[]ObligationLiquidity{borrow(t, reserveB, 4*units)},
	))
	power, err := o.BorrowPower(m, mintB, testSlot, 0)
	require.NoError(t, err)
	require.True(t, power.IsZero())

	_, err = o.BorrowPower(m, "unknown", testSlot, 0)
	require.ErrorIs(t, err, ErrReferenceNotFound)
}

func TestMaxBorrowAmountBoundByLiquidity(t *testing.T) {
	m := newTestMarket(t)
	o := depositOnly(t, m, 0)
	amount, err := o.MaxBorrowAmount(m, mintB, testSlot, 0)
	require.NoError(t, err)
	requireDecimal(t, dec("3500000"), amount)

	reserves := testReserves(t)
	reserves[1].Liquidity.AvailableAmount = 2 * units
	m = newTestMarket(t, reserves...)
	o = depositOnly(t, m, 0)
	amount, err = o.MaxBorrowAmount(m, mintB, testSlot, 0)
	require.NoError(t, err)
	requireDecimal(t, dec("2000000"), amount)
}

func TestMaxBorrowAmountAcrossGroups(t *testing.T) {
	reserves := testReserves(t)
	reserves[0].Config.BorrowLimitAgainstThisCollateralInElevationGroup = []uint64{3 * units}
	reserves[0].BorrowedAmountsAgainstThisReserveInElevationGroups = []uint64{0}
	m := newTestMarket(t, reserves...)

	o := newTestObligation(t, m, testObligation(0,
		[]ObligationCollateral{deposit(reserveA, 5*units)},
		[]ObligationLiquidity{borrow(t, reserveB, units)},
	))
	// moving to group 1 carries the existing unit of debt into the group cap
	amount, err := o.MaxBorrowAmount(m, mintB, testSlot, 1)
	require.NoError(t, err)
	requireDecimal(t, dec("2000000"), amount)

	// a group without caps for the debt reserve has nothing available
	amount, err = o.MaxBorrowAmount(m, mintC, testSlot, 1)
	require.NoError(t, err)
	require.True(t, amount.IsZero())
}

func TestMaxWithdrawAmount(t *testing.T) {
	m := newTestMarket(t)

	free := depositOnly(t, m, 0)
	amount, err := free.MaxWithdrawAmount(m, mintA, testSlot)
	require.NoError(t, err)
	requireDecimal(t, dec("5000000"), amount)

	levered := newTestObligation(t, m, testObligation(0,
		[]ObligationCollateral{deposit(reserveA, 5*units)},
		[]ObligationLiquidity{borrow(t, reserveB, units)},
	))
	amount, err = levered.MaxWithdrawAmount(m, mintA, testSlot)
	require.NoError(t, err)
	// (3.5 - 1) / 0.7 * 0.999 units
	value := fixedpoint.Quo(dec("2.5"), dec("0.7")).Mul(withdrawSafetyMargin)
	want := fixedpoint.Quo(value, dec("1")).Mul(dec("1000000"))
	requireDecimal(t, want, amount)

	_, err = levered.MaxWithdrawAmount(m, mintB, testSlot)
	require.ErrorIs(t, err, ErrReferenceNotFound)

	underwater := newTestObligation(t, m, testObligation(0,
		[]ObligationCollateral{deposit(reserveA, 5*units)},
		[]ObligationLiquidity{borrow(t, reserveB, 4*units)},
	))
	amount, err = underwater.MaxWithdrawAmount(m, mintA, testSlot)
	require.NoError(t, err)
	require.True(t, amount.IsZero())
}

func TestMaxWithdrawRespectsWithdrawalCap(t *testing.T) {
	reserves := testReserves(t)
	reserves[0].Config.DepositWithdrawalCap = WithdrawalCaps{
		ConfigCapacity:              int64(2 * units),
		CurrentTotal:                int64(units),
		ConfigIntervalLengthSeconds: 3_600,
	}
	m := newTestMarket(t, reserves...)
	o := newTestObligation(t, m, testObligation(0,
		[]ObligationCollateral{deposit(reserveA, 5*units)},
		[]ObligationLiquidity{borrow(t, reserveB, units)},
	))
	amount, err := o.MaxWithdrawAmount(m, mintA, testSlot)
	require.NoError(t, err)
	requireDecimal(t, dec("1000000"), amount)

	// the window has rolled over a day later
	amount, err = o.MaxWithdrawAmount(m, mintA, testSlot+SlotsPerDay+1)
	require.NoError(t, err)
	requireDecimal(t, dec("2000000"), amount)
}

func TestMaxWithdrawIgnoresCapWithoutInterval(t *testing.T) {
	state := testObligation(0,
		[]ObligationCollateral{deposit(reserveA, 5*units)},
		[]ObligationLiquidity{borrow(t, reserveB, units)},
	)
	uncapped := newTestMarket(t)
	o := newTestObligation(t, uncapped, state)
	want, err := o.MaxWithdrawAmount(uncapped, mintA, testSlot)
	require.NoError(t, err)
	require.True(t, want.GreaterThan(dec("1")))

	reserves := testReserves(t)
	reserves[0].Config.DepositWithdrawalCap = WithdrawalCaps{ConfigCapacity: 1, CurrentTotal: 1}
	m := newTestMarket(t, reserves...)
	o = newTestObligation(t, m, state)
	amount, err := o.MaxWithdrawAmount(m, mintA, testSlot)
	require.NoError(t, err)
	requireDecimal(t, want, amount)
}
