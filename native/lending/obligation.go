package lending

import (
	"github.com/shopspring/decimal"

	"klendrisk/native/lending/fixedpoint"
)

// PriceFunc selects the price used to value a reserve.
type PriceFunc func(*Reserve) decimal.Decimal

// OraclePrice values reserves at their oracle price.
func OraclePrice(r *Reserve) decimal.Decimal { return r.Price() }

// ObligationStats are the aggregate risk figures of an obligation. They are
// always rebuilt from the full position set.
type ObligationStats struct {
	TotalDeposit                    decimal.Decimal `json:"userTotalDeposit"`
	TotalBorrow                     decimal.Decimal `json:"userTotalBorrow"`
	TotalBorrowBorrowFactorAdjusted decimal.Decimal `json:"userTotalBorrowBorrowFactorAdjusted"`
	BorrowLimit                     decimal.Decimal `json:"borrowLimit"`
	LiquidationLimit                decimal.Decimal `json:"borrowLiquidationLimit"`
	BorrowUtilization               decimal.Decimal `json:"borrowUtilization"`
	NetAccountValue                 decimal.Decimal `json:"netAccountValue"`
	LoanToValue                     decimal.Decimal `json:"loanToValue"`
	LiquidationLtv                  decimal.Decimal `json:"liquidationLtv"`
	Leverage                        decimal.Decimal `json:"leverage"`
}

// DepositValuation is the collateral side of an obligation.
type DepositValuation struct {
	Deposits     PositionMap
	TotalDeposit decimal.Decimal
	// TotalCollateralDeposit only counts deposits with a non-zero max LTV.
	TotalCollateralDeposit decimal.Decimal
	BorrowLimit            decimal.Decimal
	LiquidationLimit       decimal.Decimal
	LiquidationLtv         decimal.Decimal
}

// BorrowValuation is the debt side of an obligation.
type BorrowValuation struct {
	Borrows                         PositionMap
	TotalBorrow                     decimal.Decimal
	TotalBorrowBorrowFactorAdjusted decimal.Decimal
	// Positions counts borrows with a non-zero amount.
	Positions int
}

// RatesForObligation projects the collateral exchange rate of every deposit
// reserve and the cumulative borrow rate of every borrow reserve to slot.
func RatesForObligation(m *Market, state ObligationState, slot uint64) (exchangeRates, cumulativeRates map[Address]decimal.Decimal, err error) {
	exchangeRates = make(map[Address]decimal.Decimal)
	cumulativeRates = make(map[Address]decimal.Decimal)
	for _, deposit := range state.Deposits {
		if deposit.DepositReserve.IsNull() {
			continue
		}
		if _, ok := exchangeRates[deposit.DepositReserve]; ok {
			continue
		}
		reserve, err := m.reserve(deposit.DepositReserve)
		if err != nil {
			return nil, nil, err
		}
		exchangeRates[deposit.DepositReserve] = reserve.EstimatedCollateralExchangeRate(slot, m.ReferralFeeBps())
	}
	for _, borrow := range state.Borrows {
		if borrow.BorrowReserve.IsNull() {
			continue
		}
		if _, ok := cumulativeRates[borrow.BorrowReserve]; ok {
			continue
		}
		reserve, err := m.reserve(borrow.BorrowReserve)
		if err != nil {
			return nil, nil, err
		}
		cumulativeRates[borrow.BorrowReserve] = reserve.EstimatedCumulativeBorrowRate(slot, m.ReferralFeeBps())
	}
	return exchangeRates, cumulativeRates, nil
}

// ValueDeposits values every deposit slot under group. A nil or incomplete
// rate map falls back to the stored exchange rate.
func ValueDeposits(m *Market, state ObligationState, exchangeRates map[Address]decimal.Decimal, group uint32, price PriceFunc) (DepositValuation, error) {
	out := DepositValuation{
		Deposits:               NewPositionMap(),
		TotalDeposit:           decimal.Zero,
		TotalCollateralDeposit: decimal.Zero,
		BorrowLimit:            decimal.Zero,
		LiquidationLimit:       decimal.Zero,
	}
	for _, deposit := range state.Deposits {
		if deposit.DepositReserve.IsNull() {
			continue
		}
		reserve, err := m.reserve(deposit.DepositReserve)
		if err != nil {
			return DepositValuation{}, err
		}
		ltv := m.LtvForReserve(reserve, group)

		rate, ok := exchangeRates[reserve.Address()]
		if !ok {
			rate = reserve.CollateralExchangeRate()
		}
		supplyAmount := fixedpoint.Quo(fixedpoint.DecimalFromUint64(deposit.DepositedAmount), rate)
		valueUsd := fixedpoint.Quo(supplyAmount.Mul(price(reserve)), reserve.MintFactor())

		out.TotalDeposit = out.TotalDeposit.Add(valueUsd)
		if !ltv.MaxLtv.IsZero() {
			out.TotalCollateralDeposit = out.TotalCollateralDeposit.Add(valueUsd)
		}
		out.BorrowLimit = out.BorrowLimit.Add(valueUsd.Mul(ltv.MaxLtv))
		out.LiquidationLimit = out.LiquidationLimit.Add(valueUsd.Mul(ltv.LiquidationLtv))

		out.Deposits = out.Deposits.Set(Position{
			Reserve:     reserve.Address(),
			Mint:        reserve.LiquidityMint(),
			Amount:      supplyAmount,
			MarketValue: valueUsd,
		})
	}
	out.LiquidationLtv = fixedpoint.Quo(out.LiquidationLimit, out.TotalDeposit)
	return out, nil
}

// ValueBorrows values every borrow slot under group, accruing stored debt by
// the ratio of the reserve's cumulative rate to the slot's stored rate.
func ValueBorrows(m *Market, state ObligationState, cumulativeRates map[Address]decimal.Decimal, group uint32, price PriceFunc) (BorrowValuation, error) {
	out := BorrowValuation{
		Borrows:                         NewPositionMap(),
		TotalBorrow:                     decimal.Zero,
		TotalBorrowBorrowFactorAdjusted: decimal.Zero,
	}
	for _, borrow := range state.Borrows {
		if borrow.BorrowReserve.IsNull() {
			continue
		}
		reserve, err := m.reserve(borrow.BorrowReserve)
		if err != nil {
			return BorrowValuation{}, err
		}
		rate, ok := cumulativeRates[reserve.Address()]
		if !ok {
			rate = reserve.CumulativeBorrowRate()
		}
		amount := fixedpoint.Quo(borrow.BorrowAmount().Decimal().Mul(rate), borrow.CumulativeBorrowRateBsf.Decimal())
		valueUsd := fixedpoint.Quo(amount.Mul(price(reserve)), reserve.MintFactor())
		adjusted := valueUsd.Mul(BorrowFactor(reserve, group))

		if !amount.IsZero() {
			out.Positions++
		}
		out.TotalBorrow = out.TotalBorrow.Add(valueUsd)
		out.TotalBorrowBorrowFactorAdjusted = out.TotalBorrowBorrowFactorAdjusted.Add(adjusted)

		out.Borrows = out.Borrows.Set(Position{
			Reserve:     reserve.Address(),
			Mint:        reserve.LiquidityMint(),
			Amount:      amount,
			MarketValue: valueUsd,
		})
	}
	return out, nil
}

// ComputeStats combines both sides of a valuation.
func ComputeStats(deposits DepositValuation, borrows BorrowValuation) ObligationStats {
	nav := deposits.TotalDeposit.Sub(borrows.TotalBorrow)
	return ObligationStats{
		TotalDeposit:                    deposits.TotalDeposit,
		TotalBorrow:                     borrows.TotalBorrow,
		TotalBorrowBorrowFactorAdjusted: borrows.TotalBorrowBorrowFactorAdjusted,
		BorrowLimit:                     deposits.BorrowLimit,
		LiquidationLimit:                deposits.LiquidationLimit,
		BorrowUtilization:               fixedpoint.Quo(borrows.TotalBorrowBorrowFactorAdjusted, deposits.BorrowLimit),
		NetAccountValue:                 nav,
		LoanToValue:                     fixedpoint.Quo(borrows.TotalBorrowBorrowFactorAdjusted, deposits.TotalDeposit),
		LiquidationLtv:                  deposits.LiquidationLtv,
		Leverage:                        fixedpoint.Quo(deposits.TotalDeposit, nav),
	}
}

// Obligation is an obligation valued against a market at one slot.
type Obligation struct {
	state    ObligationState
	slot     uint64
	deposits PositionMap
	borrows  PositionMap
	stats    ObligationStats
}

// NewObligation values the obligation with rates projected to slot, under its
// own elevation group and at oracle prices.
func NewObligation(m *Market, state ObligationState, slot uint64) (*Obligation, error) {
	if m == nil {
		return nil, errNilMarket
	}
	snapshot := state.Clone()
	exchangeRates, cumulativeRates, err := RatesForObligation(m, snapshot, slot)
	if err != nil {
		return nil, err
	}
	deposits, err := ValueDeposits(m, snapshot, exchangeRates, snapshot.ElevationGroup, OraclePrice)
	if err != nil {
		return nil, err
	}
	borrows, err := ValueBorrows(m, snapshot, cumulativeRates, snapshot.ElevationGroup, OraclePrice)
	if err != nil {
		return nil, err
	}
	return &Obligation{
		state:    snapshot,
		slot:     slot,
		deposits: deposits.Deposits,
		borrows:  borrows.Borrows,
		stats:    ComputeStats(deposits, borrows),
	}, nil
}

func (o *Obligation) Address() Address { return o.state.Address }

// State returns a copy of the decoded obligation.
func (o *Obligation) State() ObligationState { return o.state.Clone() }

func (o *Obligation) Owner() Address { return o.state.Owner }

func (o *Obligation) Tag() uint64 { return o.state.Tag }

// Slot is the slot the obligation was valued at.
func (o *Obligation) Slot() uint64 { return o.slot }

func (o *Obligation) ElevationGroup() uint32 { return o.state.ElevationGroup }

func (o *Obligation) Deposits() PositionMap { return o.deposits }

func (o *Obligation) Borrows() PositionMap { return o.borrows }

// Stats returns the refreshed statistics.
func (o *Obligation) Stats() ObligationStats { return o.stats }

func (o *Obligation) DepositByReserve(reserve Address) (Position, bool) {
	return o.deposits.Get(reserve)
}

func (o *Obligation) BorrowByReserve(reserve Address) (Position, bool) {
	return o.borrows.Get(reserve)
}

func (o *Obligation) DepositByMint(mint Address) (Position, bool) {
	return o.deposits.ByMint(mint)
}

// BorrowByMint finds the borrow whose reserve lends mint.
func (o *Obligation) BorrowByMint(mint Address) (Position, bool) {
	return o.borrows.ByMint(mint)
}

// NumberOfPositions counts deposits and borrows.
func (o *Obligation) NumberOfPositions() int {
	return o.deposits.Len() + o.borrows.Len()
}

// LoanToValue is the borrow factor adjusted debt over total deposits.
func (o *Obligation) LoanToValue() decimal.Decimal {
	return fixedpoint.Quo(o.stats.TotalBorrowBorrowFactorAdjusted, o.stats.TotalDeposit)
}

func (o *Obligation) NetAccountValue() decimal.Decimal {
	return o.stats.NetAccountValue
}

// LtvForReserve resolves collateral ratios under the obligation's group.
func (o *Obligation) LtvForReserve(m *Market, reserve *Reserve) LTV {
	return m.LtvForReserve(reserve, o.state.ElevationGroup)
}

// BorrowFactorForReserve resolves the debt weight under the obligation's group.
func (o *Obligation) BorrowFactorForReserve(reserve *Reserve) decimal.Decimal {
	return BorrowFactor(reserve, o.state.ElevationGroup)
}

// MaxLoanLtvGivenElevationGroup is the borrow limit over total deposits with
// deposits valued under group at slot.
func (o *Obligation) MaxLoanLtvGivenElevationGroup(m *Market, group uint32, slot uint64) (decimal.Decimal, error) {
	exchangeRates, _, err := RatesForObligation(m, o.state, slot)
	if err != nil {
		return decimal.Zero, err
	}
	deposits, err := ValueDeposits(m, o.state, exchangeRates, group, OraclePrice)
	if err != nil {
		return decimal.Zero, err
	}
	if deposits.BorrowLimit.IsZero() || deposits.TotalDeposit.IsZero() {
		return decimal.Zero, nil
	}
	return fixedpoint.Quo(deposits.BorrowLimit, deposits.TotalDeposit), nil
}

// EstimateObligationInterestRate is the growth of a borrow slot's debt since
// its last refresh, or zero when the reserve accumulator has not moved past
// the slot's stored rate.
func (o *Obligation) EstimateObligationInterestRate(m *Market, reserve *Reserve, borrow ObligationLiquidity, slot uint64) decimal.Decimal {
	estimated := reserve.EstimatedCumulativeBorrowRate(slot, m.ReferralFeeBps())
	stored := borrow.CumulativeBorrowRateBsf.Decimal()
	if estimated.GreaterThan(stored) {
		return fixedpoint.Quo(estimated, stored)
	}
	return decimal.Zero
}
