package lending

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewMarketValidatesSnapshot(t *testing.T) {
	reserves := testReserves(t)

	_, err := NewMarket(DefaultConfig(), testMarketState(), reserves, Prices{mintA: dec("1")})
	require.ErrorIs(t, err, ErrPriceNotFound)

	_, err = NewMarket(DefaultConfig(), testMarketState(), append(reserves, reserves[0]), testPrices())
	require.ErrorIs(t, err, ErrDuplicateReserve)

	stray := testReserve(t, "reserveD", "mintD", 60, 70, 7)
	prices := testPrices()
	prices["mintD"] = dec("1")
	_, err = NewMarket(DefaultConfig(), testMarketState(), append(reserves, stray), prices)
	require.ErrorIs(t, err, ErrUnknownElevationGroup)

	_, err = NewMarket(Config{RecentSlotDurationMs: -1}, testMarketState(), reserves, testPrices())
	require.Error(t, err)
}

func TestMarketLookups(t *testing.T) {
	m := newTestMarket(t)

	reserves := m.Reserves()
	require.Len(t, reserves, 3)
	require.Equal(t, reserveA, reserves[0].Address())
	require.Equal(t, reserveC, reserves[2].Address())

	r, ok := m.ReserveByMint(mintB)
	require.True(t, ok)
	require.Equal(t, reserveB, r.Address())

	_, err := m.reserveForMint("unknown")
	require.ErrorIs(t, err, ErrReferenceNotFound)

	_, err = m.ElevationGroup(3)
	require.ErrorIs(t, err, ErrUnknownElevationGroup)
}

func TestElevationGroupDescriptionsExcludeDebtReserve(t *testing.T) {
	m := newTestMarket(t)
	descriptions := m.ElevationGroupDescriptions()
	require.Len(t, descriptions, 1)

	desc := descriptions[0]
	require.Equal(t, uint32(1), desc.ID)
	require.Equal(t, []Address{reserveA}, desc.CollateralReserves)
	require.Equal(t, []Address{mintA}, desc.CollateralLiquidityMints)
	require.Equal(t, reserveB, desc.DebtReserve)
	require.Equal(t, mintB, desc.DebtLiquidityMint)

	descriptions[0].CollateralReserves[0] = "mutated"
	again, err := m.ElevationGroupDescription(1)
	require.NoError(t, err)
	require.Equal(t, reserveA, again.CollateralReserves[0])
}

func TestGroupsForReserveCombination(t *testing.T) {
	m := newTestMarket(t)

	groups, err := m.GroupsForReserveCombination([]Address{reserveA}, reserveB)
	require.NoError(t, err)
	require.Len(t, groups, 1)

	groups, err = m.GroupsForReserveCombination([]Address{reserveA}, "")
	require.NoError(t, err)
	require.Len(t, groups, 1)

	groups, err = m.GroupsForReserveCombination([]Address{reserveA}, reserveC)
	require.NoError(t, err)
	require.Empty(t, groups)

	groups, err = m.GroupsForReserveCombination([]Address{reserveA, reserveC}, "")
	require.NoError(t, err)
	require.Empty(t, groups)

	_, err = m.GroupsForReserveCombination(nil, reserveB)
	require.ErrorIs(t, err, ErrEmptyCollateralSet)

	_, err = m.GroupsForReserveCombination([]Address{"missing"}, reserveB)
	require.ErrorIs(t, err, ErrReferenceNotFound)
}

func TestLtvAndBorrowFactorUnderGroups(t *testing.T) {
	m := newTestMarket(t)
	a, _ := m.ReserveByAddress(reserveA)
	c, _ := m.ReserveByAddress(reserveC)

	ltv := m.LtvForReserve(a, 0)
	requireDecimal(t, dec("0.7"), ltv.MaxLtv)
	requireDecimal(t, dec("0.8"), ltv.LiquidationLtv)

	ltv = m.LtvForReserve(a, 1)
	requireDecimal(t, dec("0.9"), ltv.MaxLtv)
	requireDecimal(t, dec("0.95"), ltv.LiquidationLtv)

	// outside the group the standalone ratios apply
	ltv = m.LtvForReserve(c, 1)
	requireDecimal(t, dec("0.5"), ltv.MaxLtv)

	state := testReserve(t, reserveC, mintC, 50, 60)
	state.Config.BorrowFactorPct = 150
	heavy := NewReserve(state, dec("1"), DefaultConfig())
	requireDecimal(t, dec("1.5"), BorrowFactor(heavy, 0))
	requireDecimal(t, dec("1.5"), BorrowFactor(heavy, 1))

	state = testReserve(t, reserveB, mintB, 0, 0, 1)
	state.Config.BorrowFactorPct = 150
	member := NewReserve(state, dec("1"), DefaultConfig())
	requireDecimal(t, dec("1.5"), BorrowFactor(member, 0))
	requireDecimal(t, one, BorrowFactor(member, 1))
}

func TestEligibility(t *testing.T) {
	m := newTestMarket(t)

	single := newTestObligation(t, m, testObligation(0,
		[]ObligationCollateral{deposit(reserveA, 5*units)},
		[]ObligationLiquidity{borrow(t, reserveB, units)},
	))
	result, err := single.CheckGroupEligibility(m, 1, testSlot)
	require.NoError(t, err)
	require.True(t, result.Eligible, result.Reason)
	require.True(t, single.IsEligibleForGroup(m, 0, testSlot))

	groups, err := single.GroupsForObligation(m)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	require.Equal(t, uint32(1), groups[0].ID)

	candidates, err := single.CandidateElevationGroups(m)
	require.NoError(t, err)
	require.Equal(t, []uint32{1}, candidates)

	wrongDebt := newTestObligation(t, m, testObligation(0,
		[]ObligationCollateral{deposit(reserveA, 5*units)},
		[]ObligationLiquidity{borrow(t, reserveC, units)},
	))
	result, err = wrongDebt.CheckGroupEligibility(m, 1, testSlot)
	require.NoError(t, err)
	require.False(t, result.Eligible)
	require.Equal(t, reasonDebtOutside, result.Reason)

	wrongCollateral := newTestObligation(t, m, testObligation(0,
		[]ObligationCollateral{deposit(reserveC, 5*units)},
		[]ObligationLiquidity{borrow(t, reserveB, units)},
	))
	result, err = wrongCollateral.CheckGroupEligibility(m, 1, testSlot)
	require.NoError(t, err)
	require.Equal(t, reasonCollateralOutside, result.Reason)

	_, err = single.CheckGroupEligibility(m, 4, testSlot)
	require.ErrorIs(t, err, ErrUnknownElevationGroup)
	require.False(t, single.IsEligibleForGroup(m, 4, testSlot))
}

func TestMultipleBorrowsAreIneligible(t *testing.T) {
	m := newTestMarket(t)
	o := newTestObligation(t, m, testObligation(0,
		[]ObligationCollateral{deposit(reserveA, 5*units)},
		[]ObligationLiquidity{borrow(t, reserveB, units), borrow(t, reserveC, units)},
	))
	for _, group := range []uint32{0, 1} {
		result, err := o.CheckGroupEligibility(m, group, testSlot)
		require.NoError(t, err)
		require.False(t, result.Eligible)
		require.Equal(t, reasonMultipleBorrows, result.Reason)
	}
	groups, err := o.GroupsForObligation(m)
	require.NoError(t, err)
	require.Empty(t, groups)
}

func TestEligibilityRejectsOverLeveragedMove(t *testing.T) {
	m := newTestMarket(t)
	// 4 units of debt against 5 units of A fits under 0.9 but not under 0.7
	o := newTestObligation(t, m, testObligation(1,
		[]ObligationCollateral{deposit(reserveA, 5*units)},
		[]ObligationLiquidity{borrow(t, reserveB, 4*units)},
	))
	result, err := o.CheckGroupEligibility(m, 0, testSlot)
	require.NoError(t, err)
	require.False(t, result.Eligible)
	require.Equal(t, reasonLtv, result.Reason)
}

func TestEmptyObligationGroups(t *testing.T) {
	m := newTestMarket(t)
	o := newTestObligation(t, m, testObligation(0, nil, nil))
	_, err := o.GroupsForObligation(m)
	require.True(t, errors.Is(err, ErrEmptyCollateralSet))
}

// newEmodeMarket lays out two groups where B is the debt reserve of group 1
// and a collateral of group 2, whose debt reserve is C.
func newEmodeMarket(t *testing.T) *Market {
	t.Helper()
	state := testMarketState()
	state.ElevationGroups = append(state.ElevationGroups, ElevationGroup{
		ID:                      2,
		LtvPct:                  80,
		LiquidationThresholdPct: 85,
		AllowNewLoans:           true,
		MaxReservesAsCollateral: 1,
		DebtReserve:             reserveC,
	})
	reserves := []ReserveState{
		testReserve(t, reserveA, mintA, 70, 80, 1),
		testReserve(t, reserveB, mintB, 70, 80, 1, 2),
		testReserve(t, reserveC, mintC, 50, 60, 2),
	}
	m, err := NewMarket(DefaultConfig(), state, reserves, testPrices())
	require.NoError(t, err)
	return m
}

func TestGroupsForReserveCombinationSkipsDebtReserve(t *testing.T) {
	m := newEmodeMarket(t)

	cases := []struct {
		name       string
		collateral []Address
		debt       Address
		want       []uint32
	}{
		{"debt of one group, collateral of another", []Address{reserveB}, "", []uint32{2}},
		{"debt reserve as its own collateral", []Address{reserveB}, reserveB, nil},
		{"collateral with matching debt", []Address{reserveB}, reserveC, []uint32{2}},
		{"plain collateral", []Address{reserveA}, "", []uint32{1}},
		{"debt-only member", []Address{reserveC}, "", nil},
		{"collateral of different groups", []Address{reserveA, reserveB}, "", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			groups, err := m.GroupsForReserveCombination(tc.collateral, tc.debt)
			require.NoError(t, err)
			var ids []uint32
			for _, g := range groups {
				ids = append(ids, g.ID)
			}
			require.Equal(t, tc.want, ids)
		})
	}
}

func TestGroupsForObligationAgreeWithEligibility(t *testing.T) {
	m := newEmodeMarket(t)
	states := []ObligationState{
		testObligation(0, []ObligationCollateral{deposit(reserveA, 5*units)}, []ObligationLiquidity{borrow(t, reserveB, units)}),
		testObligation(0, []ObligationCollateral{deposit(reserveB, 5*units)}, []ObligationLiquidity{borrow(t, reserveC, units)}),
		testObligation(0, []ObligationCollateral{deposit(reserveB, 5*units)}, nil),
		testObligation(0, []ObligationCollateral{deposit(reserveA, 5*units)}, nil),
		testObligation(0, []ObligationCollateral{deposit(reserveC, 5*units)}, nil),
		testObligation(0, []ObligationCollateral{deposit(reserveA, 5*units), deposit(reserveB, 5*units)}, nil),
	}
	offered := 0
	for i, state := range states {
		o := newTestObligation(t, m, state)
		groups, err := o.GroupsForObligation(m)
		require.NoError(t, err)
		for _, g := range groups {
			offered++
			result, err := o.CheckGroupEligibility(m, g.ID, testSlot)
			require.NoError(t, err)
			require.True(t, result.Eligible, "obligation %d offered group %d: %s", i, g.ID, result.Reason)
		}
	}
	require.Equal(t, 4, offered)

	depositOnly := newTestObligation(t, m, states[2])
	result, err := depositOnly.CheckGroupEligibility(m, 1, testSlot)
	require.NoError(t, err)
	require.Equal(t, reasonCollateralOutside, result.Reason)
	require.False(t, depositOnly.IsEligibleForGroup(m, 1, testSlot))
}
