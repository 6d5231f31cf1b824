package lending

import (
	"testing"

	"github.com/stretchr/testify/require"

	"klendrisk/native/lending/fixedpoint"
)

func TestObligationStats(t *testing.T) {
	m := newTestMarket(t)
	o := newTestObligation(t, m, testObligation(0,
		[]ObligationCollateral{deposit(reserveA, 5*units)},
		[]ObligationLiquidity{borrow(t, reserveB, units)},
	))
	stats := o.Stats()
	requireDecimal(t, dec("5"), stats.TotalDeposit)
	requireDecimal(t, dec("1"), stats.TotalBorrow)
	requireDecimal(t, dec("1"), stats.TotalBorrowBorrowFactorAdjusted)
	requireDecimal(t, dec("3.5"), stats.BorrowLimit)
	requireDecimal(t, dec("4"), stats.LiquidationLimit)
	requireDecimal(t, dec("0.8"), stats.LiquidationLtv)
	requireDecimal(t, dec("0.2"), stats.LoanToValue)
	requireDecimal(t, dec("4"), stats.NetAccountValue)
	requireDecimal(t, dec("1.25"), stats.Leverage)
	requireDecimal(t, fixedpoint.Quo(dec("1"), dec("3.5")), stats.BorrowUtilization)

	require.Equal(t, 2, o.NumberOfPositions())
	position, ok := o.DepositByMint(mintA)
	require.True(t, ok)
	requireDecimal(t, dec("5000000"), position.Amount)
	requireDecimal(t, dec("5"), position.MarketValue)
}

func TestObligationPositionLookups(t *testing.T) {
	m := newTestMarket(t)
	o := newTestObligation(t, m, testObligation(0,
		[]ObligationCollateral{deposit(reserveA, 5*units)},
		[]ObligationLiquidity{borrow(t, reserveB, units)},
	))

	debt, ok := o.BorrowByMint(mintB)
	require.True(t, ok)
	require.Equal(t, reserveB, debt.Reserve)
	requireDecimal(t, dec("1000000"), debt.Amount)
	requireDecimal(t, dec("1"), debt.MarketValue)

	byReserve, ok := o.BorrowByReserve(reserveB)
	require.True(t, ok)
	require.Equal(t, debt, byReserve)

	// deposit and borrow sides are looked up independently
	_, ok = o.BorrowByMint(mintA)
	require.False(t, ok)
	_, ok = o.DepositByMint(mintB)
	require.False(t, ok)

	collateral, ok := o.DepositByReserve(reserveA)
	require.True(t, ok)
	require.Equal(t, mintA, collateral.Mint)
	_, ok = o.DepositByReserve(reserveC)
	require.False(t, ok)
}

func TestObligationStatsUnderGroup(t *testing.T) {
	m := newTestMarket(t)
	o := newTestObligation(t, m, testObligation(1,
		[]ObligationCollateral{deposit(reserveA, 5*units)},
		[]ObligationLiquidity{borrow(t, reserveB, units)},
	))
	requireDecimal(t, dec("4.5"), o.Stats().BorrowLimit)
	requireDecimal(t, dec("4.75"), o.Stats().LiquidationLimit)

	ltv, err := o.MaxLoanLtvGivenElevationGroup(m, 0, testSlot)
	require.NoError(t, err)
	requireDecimal(t, dec("0.7"), ltv)
}

func TestEmptyObligationIsTotal(t *testing.T) {
	m := newTestMarket(t)
	o := newTestObligation(t, m, testObligation(0, nil, nil))
	stats := o.Stats()
	require.True(t, stats.TotalDeposit.IsZero())
	require.True(t, stats.LoanToValue.IsZero())
	require.True(t, stats.Leverage.IsZero())
	require.True(t, stats.BorrowUtilization.IsZero())
	require.Zero(t, o.NumberOfPositions())
}

func TestObligationSkipsNullSlots(t *testing.T) {
	m := newTestMarket(t)
	o := newTestObligation(t, m, testObligation(0,
		[]ObligationCollateral{deposit(reserveA, 5*units), deposit(systemAddress, 0)},
		[]ObligationLiquidity{{BorrowReserve: systemAddress}},
	))
	require.Equal(t, 1, o.Deposits().Len())
	require.Zero(t, o.Borrows().Len())
}

func TestObligationUnknownReserve(t *testing.T) {
	m := newTestMarket(t)
	_, err := NewObligation(m, testObligation(0, []ObligationCollateral{deposit("missing", 1)}, nil), testSlot)
	require.ErrorIs(t, err, ErrReferenceNotFound)

	_, err = NewObligation(nil, testObligation(0, nil, nil), testSlot)
	require.Error(t, err)
}

func TestBorrowAccruesWithReserveRate(t *testing.T) {
	reserves := testReserves(t)
	grown, err := fixedpoint.NewBigFraction(fixedpoint.FromDecimal(dec("1.5")))
	require.NoError(t, err)
	reserves[1].Liquidity.CumulativeBorrowRateBsf = grown
	m := newTestMarket(t, reserves...)

	o := newTestObligation(t, m, testObligation(0,
		[]ObligationCollateral{deposit(reserveA, 5*units)},
		[]ObligationLiquidity{borrow(t, reserveB, 2*units)},
	))
	position, ok := o.BorrowByReserve(reserveB)
	require.True(t, ok)
	requireDecimal(t, dec("3000000"), position.Amount)
	requireDecimal(t, dec("3"), o.Stats().TotalBorrow)

	b, _ := m.ReserveByAddress(reserveB)
	rate := o.EstimateObligationInterestRate(m, b, o.State().Borrows[0], testSlot)
	requireDecimal(t, dec("1.5"), rate)
}
