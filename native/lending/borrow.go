package lending

import (
	"fmt"

	"github.com/shopspring/decimal"

	"klendrisk/native/lending/fixedpoint"
)

// BorrowPower is how much more of mint the obligation could borrow under group
// before reaching its max LTV, ignoring liquidity and caps. The origination
// fee is deducted inclusively. It is zero when any deposit reserve refuses to
// act as collateral outside a group and group does not apply to the debt
// reserve.
func (o *Obligation) BorrowPower(m *Market, mint Address, slot uint64, group uint32) (decimal.Decimal, error) {
	reserve, err := m.reserveForMint(mint)
	if err != nil {
		return decimal.Zero, err
	}
	groupActivated := group != 0 && reserve.InGroup(group)
	borrowFactor := BorrowFactor(reserve, group)

	exchangeRates, cumulativeRates, err := RatesForObligation(m, o.state, slot)
	if err != nil {
		return decimal.Zero, err
	}
	deposits, err := ValueDeposits(m, o.state, exchangeRates, group, OraclePrice)
	if err != nil {
		return decimal.Zero, err
	}
	borrows, err := ValueBorrows(m, o.state, cumulativeRates, group, OraclePrice)
	if err != nil {
		return decimal.Zero, err
	}

	headroom := deposits.BorrowLimit.Sub(borrows.TotalBorrowBorrowFactorAdjusted)
	power := fixedpoint.Quo(fixedpoint.Quo(headroom, borrowFactor), reserve.Price()).Mul(reserve.MintFactor())

	for _, addr := range o.deposits.Keys() {
		depositReserve, err := m.reserve(addr)
		if err != nil {
			return decimal.Zero, err
		}
		if depositReserve.state.Config.DisableUsageAsCollOutsideEmode && !groupActivated {
			return decimal.Zero, nil
		}
	}

	feeRate := reserve.BorrowFee()
	inclusiveFeeRate := fixedpoint.Quo(feeRate, feeRate.Add(one))
	net := power.Sub(power.Mul(inclusiveFeeRate))
	return decimal.Max(decimal.Zero, net), nil
}

// MaxBorrowAmount bounds BorrowPower by the reserve liquidity available to
// group. When group differs from the obligation's current group the existing
// debt in the reserve must first fit under the new group's caps.
func (o *Obligation) MaxBorrowAmount(m *Market, mint Address, slot uint64, group uint32) (decimal.Decimal, error) {
	reserve, err := m.reserveForMint(mint)
	if err != nil {
		return decimal.Zero, err
	}
	available, err := m.LiquidityAvailable(reserve, []uint32{group})
	if err != nil {
		return decimal.Zero, err
	}
	liquidity := available[0]
	power, err := o.BorrowPower(m, mint, slot, group)
	if err != nil {
		return decimal.Zero, err
	}
	if group == o.state.ElevationGroup {
		return decimal.Min(power, liquidity), nil
	}
	debt := decimal.Zero
	if position, ok := o.borrows.Get(reserve.Address()); ok {
		debt = position.Amount
	}
	postMigration := decimal.Max(decimal.Zero, liquidity.Sub(debt))
	return decimal.Min(power, postMigration), nil
}

// MaxWithdrawAmount is how much of the deposit in mint's reserve can be
// withdrawn without exceeding the borrow limit, keeping a 0.1% margin, and
// within the reserve's liquidity and deposit withdrawal cap.
func (o *Obligation) MaxWithdrawAmount(m *Market, mint Address, slot uint64) (decimal.Decimal, error) {
	reserve, err := m.reserveForMint(mint)
	if err != nil {
		return decimal.Zero, err
	}
	position, ok := o.deposits.Get(reserve.Address())
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: obligation %s has no deposit in reserve %s", ErrReferenceNotFound, o.state.Address, reserve.Address())
	}
	stats := o.stats
	if stats.TotalBorrowBorrowFactorAdjusted.IsZero() {
		return position.Amount, nil
	}
	if stats.TotalBorrowBorrowFactorAdjusted.GreaterThanOrEqual(stats.BorrowLimit) {
		return decimal.Zero, nil
	}

	var maxWithdraw decimal.Decimal
	ltv := o.LtvForReserve(m, reserve)
	if ltv.MaxLtv.IsZero() {
		// the deposit backs none of the debt
		maxWithdraw = position.Amount
	} else {
		value := fixedpoint.Quo(stats.BorrowLimit.Sub(stats.TotalBorrowBorrowFactorAdjusted), ltv.MaxLtv).Mul(withdrawSafetyMargin)
		maxWithdraw = fixedpoint.Quo(value, reserve.Price()).Mul(reserve.MintFactor())
	}

	candidates := []decimal.Decimal{maxWithdraw, reserve.LiquidityAvailableAmount()}
	// A zero interval length leaves the cap unconfigured, whatever its
	// capacity; the window itself is tracked by DepositWithdrawalCapCurrent.
	if reserve.state.Config.DepositWithdrawalCap.ConfigIntervalLengthSeconds != 0 {
		remaining := reserve.DepositWithdrawalCapCapacity().Sub(reserve.DepositWithdrawalCapCurrent(slot))
		candidates = append(candidates, remaining)
	}
	return decimal.Max(decimal.Zero, decimal.Min(position.Amount, candidates...)), nil
}
