package lending

import (
	"testing"

	"github.com/shopspring/decimal"

	"klendrisk/native/lending/fixedpoint"
	"klendrisk/native/lending/ratecurve"
)

const (
	reserveA Address = "reserveA"
	reserveB Address = "reserveB"
	reserveC Address = "reserveC"
	mintA    Address = "mintA"
	mintB    Address = "mintB"
	mintC    Address = "mintC"

	testSlot uint64 = 1_000
	units    uint64 = 1_000_000
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func requireDecimal(t *testing.T, want, got decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	if !want.Equal(got) {
		t.Fatalf("expected %s, got %s %v", want, got, msgAndArgs)
	}
}

func oneBsf(t testing.TB) fixedpoint.BigFraction {
	t.Helper()
	b, err := fixedpoint.NewBigFraction(fixedpoint.One())
	if err != nil {
		t.Fatalf("big fraction: %v", err)
	}
	return b
}

func testReserve(t testing.TB, addr, mint Address, ltv, threshold uint8, groups ...uint32) ReserveState {
	return ReserveState{
		Address:        addr,
		LendingMarket:  "market",
		LastUpdateSlot: testSlot,
		Liquidity: ReserveLiquidity{
			MintPubkey:              mint,
			MintDecimals:            6,
			AvailableAmount:         1_000_000_000,
			CumulativeBorrowRateBsf: oneBsf(t),
			MarketPriceSf:           fixedpoint.One(),
		},
		Collateral: ReserveCollateral{MintPubkey: mint + "-collateral"},
		Config: ReserveConfig{
			TokenName:               string(mint),
			LoanToValuePct:          ltv,
			LiquidationThresholdPct: threshold,
			ProtocolTakeRatePct:     10,
			BorrowFactorPct:         100,
			DepositLimit:            1_000_000_000_000,
			BorrowLimit:             1_000_000_000_000,
			BorrowRateCurve: []ratecurve.Point{
				{UtilizationRateBps: 0, BorrowRateBps: 0},
				{UtilizationRateBps: 8000, BorrowRateBps: 1000},
				{UtilizationRateBps: 10000, BorrowRateBps: 5000},
			},
			ElevationGroups:                                  groups,
			BorrowLimitOutsideElevationGroup:                 1_000_000_000_000,
			BorrowLimitAgainstThisCollateralInElevationGroup: []uint64{1_000_000_000_000},
		},
		BorrowedAmountsAgainstThisReserveInElevationGroups: []uint64{0},
	}
}

func testMarketState() MarketState {
	return MarketState{
		Address:        "market",
		ReferralFeeBps: 2000,
		ElevationGroups: []ElevationGroup{{
			ID:                      1,
			LtvPct:                  90,
			LiquidationThresholdPct: 95,
			AllowNewLoans:           true,
			MaxReservesAsCollateral: 1,
			DebtReserve:             reserveB,
		}},
	}
}

func testPrices() Prices {
	return Prices{mintA: dec("1"), mintB: dec("1"), mintC: dec("1")}
}

// testReserves returns A (collateral of group 1), B (debt of group 1) and C
// (outside every group).
func testReserves(t testing.TB) []ReserveState {
	return []ReserveState{
		testReserve(t, reserveA, mintA, 70, 80, 1),
		testReserve(t, reserveB, mintB, 0, 0, 1),
		testReserve(t, reserveC, mintC, 50, 60),
	}
}

func newTestMarket(t testing.TB, reserves ...ReserveState) *Market {
	t.Helper()
	if len(reserves) == 0 {
		reserves = testReserves(t)
	}
	m, err := NewMarket(DefaultConfig(), testMarketState(), reserves, testPrices())
	if err != nil {
		t.Fatalf("new market: %v", err)
	}
	return m
}

func deposit(reserve Address, amount uint64) ObligationCollateral {
	return ObligationCollateral{DepositReserve: reserve, DepositedAmount: amount}
}

func borrow(t testing.TB, reserve Address, amount uint64) ObligationLiquidity {
	return ObligationLiquidity{
		BorrowReserve:           reserve,
		CumulativeBorrowRateBsf: oneBsf(t),
		BorrowedAmountSf:        fixedpoint.FromUint64(amount),
	}
}

func testObligation(group uint32, deposits []ObligationCollateral, borrows []ObligationLiquidity) ObligationState {
	return ObligationState{
		Address:        "obligation",
		LendingMarket:  "market",
		Owner:          "owner",
		LastUpdateSlot: testSlot,
		ElevationGroup: group,
		Deposits:       deposits,
		Borrows:        borrows,
	}
}

func newTestObligation(t testing.TB, m *Market, state ObligationState) *Obligation {
	t.Helper()
	o, err := NewObligation(m, state, testSlot)
	if err != nil {
		t.Fatalf("new obligation: %v", err)
	}
	return o
}
