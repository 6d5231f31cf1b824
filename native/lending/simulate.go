package lending

import (
	"fmt"

	"github.com/shopspring/decimal"

	"klendrisk/native/lending/fixedpoint"
)

// SimulationResult is the projected state of an obligation after an action.
// The position maps are fresh values; the obligation is never modified.
type SimulationResult struct {
	Stats    ObligationStats `json:"stats"`
	Deposits PositionMap     `json:"deposits"`
	Borrows  PositionMap     `json:"borrows"`
}

// Baseline is the refreshed state of the obligation as a simulation result.
func (o *Obligation) Baseline() SimulationResult {
	return SimulationResult{Stats: o.stats, Deposits: o.deposits, Borrows: o.borrows}
}

// Simulate projects the obligation's refreshed state through action.
func (o *Obligation) Simulate(m *Market, action Action) (SimulationResult, error) {
	return o.SimulateFrom(m, o.Baseline(), action)
}

// SimulateFrom applies action on top of a previous result. Composite actions
// apply their legs in order, each leg seeing the stats left by the previous
// one.
func (o *Obligation) SimulateFrom(m *Market, base SimulationResult, action Action) (SimulationResult, error) {
	if m == nil {
		return SimulationResult{}, errNilMarket
	}
	next := base
	var err error
	switch a := action.(type) {
	case Deposit:
		next.Stats, next.Deposits, err = o.ApplyDeposit(m, base.Stats, base.Deposits, a.Amount, a.Mint)
	case Withdraw:
		next.Stats, next.Deposits, err = o.ApplyDeposit(m, base.Stats, base.Deposits, a.Amount.Neg(), a.Mint)
	case Borrow:
		next.Stats, next.Borrows, err = o.ApplyBorrow(m, base.Stats, base.Borrows, a.Amount, a.Mint)
	case Repay:
		next.Stats, next.Borrows, err = o.ApplyBorrow(m, base.Stats, base.Borrows, a.Amount.Neg(), a.Mint)
	case DepositAndBorrow:
		next.Stats, next.Deposits, err = o.ApplyDeposit(m, base.Stats, base.Deposits, a.DepositAmount, a.DepositMint)
		if err == nil {
			next.Stats, next.Borrows, err = o.ApplyBorrow(m, next.Stats, base.Borrows, a.BorrowAmount, a.BorrowMint)
		}
	case RepayAndWithdraw:
		next.Stats, next.Borrows, err = o.ApplyBorrow(m, base.Stats, base.Borrows, a.RepayAmount.Neg(), a.RepayMint)
		if err == nil {
			next.Stats, next.Deposits, err = o.ApplyDeposit(m, next.Stats, base.Deposits, a.WithdrawAmount.Neg(), a.WithdrawMint)
		}
	case nil:
		return SimulationResult{}, fmt.Errorf("%w: nil action", ErrInvalidActionArguments)
	default:
		return SimulationResult{}, fmt.Errorf("%w: unsupported action %T", ErrInvalidActionArguments, action)
	}
	if err != nil {
		return SimulationResult{}, err
	}
	next.Stats = finalizeSimulatedStats(next.Stats)
	return next, nil
}

func finalizeSimulatedStats(stats ObligationStats) ObligationStats {
	stats.NetAccountValue = stats.TotalDeposit.Sub(stats.TotalBorrow)
	stats.LoanToValue = fixedpoint.Quo(stats.TotalBorrowBorrowFactorAdjusted, stats.TotalDeposit)
	stats.Leverage = fixedpoint.Quo(stats.TotalDeposit, stats.NetAccountValue)
	stats.BorrowUtilization = fixedpoint.Quo(stats.TotalBorrowBorrowFactorAdjusted, stats.BorrowLimit)
	return stats
}

// ApplyDeposit adds a signed amount of mint to the collateral side. The value
// is taken at the oracle price without exchange rate and weighted by the
// reserve's group aware ratios. Running totals are clamped at zero.
func (o *Obligation) ApplyDeposit(m *Market, stats ObligationStats, deposits PositionMap, amount decimal.Decimal, mint Address) (ObligationStats, PositionMap, error) {
	reserve, position, err := o.simulatedPosition(m, deposits, mint)
	if err != nil {
		return stats, deposits, err
	}
	ltv := o.LtvForReserve(m, reserve)
	valueUsd := fixedpoint.Quo(amount.Mul(reserve.Price()), reserve.MintFactor())

	stats.TotalDeposit = fixedpoint.PositiveOrZero(stats.TotalDeposit.Add(valueUsd))
	stats.BorrowLimit = fixedpoint.PositiveOrZero(stats.BorrowLimit.Add(valueUsd.Mul(ltv.MaxLtv)))
	stats.LiquidationLimit = fixedpoint.PositiveOrZero(stats.LiquidationLimit.Add(valueUsd.Mul(ltv.LiquidationLtv)))
	stats.LiquidationLtv = fixedpoint.Quo(stats.LiquidationLimit, stats.TotalDeposit)

	position.Amount = fixedpoint.PositiveOrZero(position.Amount.Add(amount))
	position.MarketValue = fixedpoint.PositiveOrZero(position.MarketValue.Add(valueUsd))
	return stats, deposits.Set(position), nil
}

// ApplyBorrow adds a signed amount of mint to the debt side, weighting the
// value by the reserve's borrow factor under the obligation's group.
func (o *Obligation) ApplyBorrow(m *Market, stats ObligationStats, borrows PositionMap, amount decimal.Decimal, mint Address) (ObligationStats, PositionMap, error) {
	reserve, position, err := o.simulatedPosition(m, borrows, mint)
	if err != nil {
		return stats, borrows, err
	}
	valueUsd := fixedpoint.Quo(amount.Mul(reserve.Price()), reserve.MintFactor())
	adjusted := valueUsd.Mul(o.BorrowFactorForReserve(reserve))

	stats.TotalBorrow = fixedpoint.PositiveOrZero(stats.TotalBorrow.Add(valueUsd))
	stats.TotalBorrowBorrowFactorAdjusted = fixedpoint.PositiveOrZero(stats.TotalBorrowBorrowFactorAdjusted.Add(adjusted))

	position.Amount = fixedpoint.PositiveOrZero(position.Amount.Add(amount))
	position.MarketValue = fixedpoint.PositiveOrZero(position.MarketValue.Add(valueUsd))
	return stats, borrows.Set(position), nil
}

func (o *Obligation) simulatedPosition(m *Market, positions PositionMap, mint Address) (*Reserve, Position, error) {
	reserve, err := m.reserveForMint(mint)
	if err != nil {
		return nil, Position{}, err
	}
	if !reserve.InGroup(o.state.ElevationGroup) {
		return nil, Position{}, fmt.Errorf("%w: reserve %s does not list group %d", ErrElevationGroupIncompatible, reserve.Address(), o.state.ElevationGroup)
	}
	position, ok := positions.ByMint(mint)
	if !ok {
		position = Position{
			Reserve:     reserve.Address(),
			Mint:        mint,
			Amount:      decimal.Zero,
			MarketValue: decimal.Zero,
		}
	}
	return reserve, position, nil
}
