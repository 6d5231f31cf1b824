package lending

import (
	"testing"

	"github.com/stretchr/testify/require"

	"klendrisk/native/lending/fixedpoint"
)

func TestEmptyReserveHasZeroUtilization(t *testing.T) {
	state := testReserve(t, reserveA, mintA, 70, 80)
	state.Liquidity.AvailableAmount = 0
	r := NewReserve(state, dec("1"), DefaultConfig())

	require.True(t, r.TotalSupply().IsZero())
	require.True(t, r.Utilization().IsZero())
	require.True(t, r.EstimatedUtilization(testSlot+SlotsPerDay, 0).IsZero())
	require.True(t, r.CollateralExchangeRate().Equal(InitialCollateralRate))
	require.True(t, r.BorrowRate().IsZero())
}

func TestReserveRatios(t *testing.T) {
	state := testReserve(t, reserveA, mintA, 70, 80)
	state.Config.BorrowFactorPct = 125
	state.Config.HostFixedInterestRateBps = 50
	state.Config.Fees.BorrowFeeSf = fixedpoint.FromDecimal(dec("0.001"))
	r := NewReserve(state, dec("2"), DefaultConfig())

	requireDecimal(t, dec("0.7"), r.LoanToValue())
	requireDecimal(t, dec("0.8"), r.LiquidationThreshold())
	requireDecimal(t, dec("1.25"), r.BorrowFactor())
	requireDecimal(t, dec("0.005"), r.FixedHostInterestRate())
	requireDecimal(t, dec("0.1"), r.ProtocolTakeRate())
	requireDecimal(t, dec("1000000"), r.MintFactor())
	// 0.001 is not representable at 2^-60; the decoded fee is within one ulp
	require.True(t, r.BorrowFee().Sub(dec("0.001")).Abs().LessThan(dec("1e-18")))
	requireDecimal(t, dec("2000"), r.DepositTVL())
}

func TestFlashLoanFeeSentinel(t *testing.T) {
	state := testReserve(t, reserveA, mintA, 70, 80)
	state.Config.Fees.FlashLoanFeeSf = fixedpoint.FromScaledUint64(^uint64(0))
	r := NewReserve(state, dec("1"), DefaultConfig())
	require.True(t, r.FlashLoanFee().IsZero())

	state.Config.Fees.FlashLoanFeeSf = fixedpoint.FromDecimal(dec("0.5"))
	r = NewReserve(state, dec("1"), DefaultConfig())
	requireDecimal(t, dec("0.5"), r.FlashLoanFee())
}

func TestExchangeRateTracksSupply(t *testing.T) {
	state := testReserve(t, reserveA, mintA, 70, 80)
	state.Liquidity.AvailableAmount = 1_000_000_000
	state.Collateral.MintTotalSupply = 500_000_000
	r := NewReserve(state, dec("1"), DefaultConfig())
	requireDecimal(t, dec("0.5"), r.CollateralExchangeRate())
	requireDecimal(t, dec("0.5"), r.EstimatedCollateralExchangeRate(testSlot, 0))
}

func TestWithdrawalCapWindowResets(t *testing.T) {
	state := testReserve(t, reserveA, mintA, 70, 80)
	state.Config.DepositWithdrawalCap = WithdrawalCaps{ConfigCapacity: 1_000, CurrentTotal: 400, ConfigIntervalLengthSeconds: 3_600}
	state.Config.DebtWithdrawalCap = WithdrawalCaps{ConfigCapacity: 2_000, CurrentTotal: -50, ConfigIntervalLengthSeconds: 3_600}
	r := NewReserve(state, dec("1"), DefaultConfig())

	requireDecimal(t, dec("1000"), r.DepositWithdrawalCapCapacity())
	requireDecimal(t, dec("400"), r.DepositWithdrawalCapCurrent(testSlot+SlotsPerDay))
	require.True(t, r.DepositWithdrawalCapCurrent(testSlot+SlotsPerDay+1).IsZero())
	requireDecimal(t, dec("-50"), r.DebtWithdrawalCapCurrent(testSlot))
	require.True(t, r.DebtWithdrawalCapCurrent(testSlot+SlotsPerDay+1).IsZero())
}

func TestGroupCountersIndexedFromOne(t *testing.T) {
	state := testReserve(t, reserveA, mintA, 70, 80, 1, 2)
	state.Config.BorrowLimitAgainstThisCollateralInElevationGroup = []uint64{10, 20}
	state.BorrowedAmountsAgainstThisReserveInElevationGroups = []uint64{3, 4}
	r := NewReserve(state, dec("1"), DefaultConfig())

	requireDecimal(t, dec("20"), r.BorrowLimitAgainstCollateralInElevationGroup(2))
	requireDecimal(t, dec("3"), r.BorrowedAmountAgainstCollateralInElevationGroup(1))
	require.True(t, r.BorrowLimitAgainstCollateralInElevationGroup(0).IsZero())
	require.True(t, r.BorrowLimitAgainstCollateralInElevationGroup(9).IsZero())
	require.True(t, r.InGroup(0))
	require.True(t, r.InGroup(2))
	require.False(t, r.InGroup(3))
}

func TestReserveIsolatedFromCaller(t *testing.T) {
	state := testReserve(t, reserveA, mintA, 70, 80, 1)
	r := NewReserve(state, dec("1"), DefaultConfig())
	state.Config.ElevationGroups[0] = 7
	require.True(t, r.InGroup(1))
	require.False(t, r.InGroup(7))

	snapshot := r.State()
	snapshot.Config.ElevationGroups[0] = 9
	require.True(t, r.InGroup(1))
}

func TestSummaryAtStoredSlot(t *testing.T) {
	r := borrowedReserve(t)
	summary := r.Summary(testSlot, 0)
	requireDecimal(t, dec("0.5"), summary.Utilization)
	requireDecimal(t, r.TotalSupply(), summary.TotalSupply)
	requireDecimal(t, r.BorrowedAmount(), summary.TotalBorrow)
	require.Equal(t, mintA, summary.LiquidityMint)
	require.True(t, summary.BorrowAPY.GreaterThan(summary.BorrowAPR))
}

func TestSlotAdjustmentScalesRates(t *testing.T) {
	state := testReserve(t, reserveA, mintA, 70, 80)
	state.Liquidity.AvailableAmount = 1_000_000_000
	state.Liquidity.BorrowedAmountSf = fixedpoint.FromUint64(1_000_000_000)

	nominal := NewReserve(state, dec("1"), Config{RecentSlotDurationMs: 500})
	requireDecimal(t, dec("0.0625"), nominal.BorrowRate())

	fast := NewReserve(state, dec("1"), Config{RecentSlotDurationMs: 250})
	requireDecimal(t, dec("0.125"), fast.BorrowRate())
}
