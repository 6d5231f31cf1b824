package lending

import (
	"fmt"

	"github.com/shopspring/decimal"

	"klendrisk/native/lending/fixedpoint"
)

var (
	two = decimal.NewFromInt(2)
	six = decimal.NewFromInt(6)
)

// ApproximateCompoundedInterest returns the growth multiplier of an annual
// rate compounded per slot over elapsedSlots. Up to four slots the exact
// power is used; beyond that the binomial expansion is truncated after the
// cubic term, as the on-chain program does.
func ApproximateCompoundedInterest(rate decimal.Decimal, elapsedSlots uint64) decimal.Decimal {
	base := fixedpoint.Quo(rate, slotsYear)
	step := one.Add(base)
	switch elapsedSlots {
	case 0:
		return one
	case 1:
		return step
	case 2:
		return step.Mul(step)
	case 3:
		return step.Mul(step).Mul(step)
	case 4:
		pow2 := step.Mul(step)
		return pow2.Mul(pow2)
	}
	return taylorCompoundedInterest(base, elapsedSlots)
}

// taylorCompoundedInterest evaluates
// 1 + b*n + b^2*n*(n-1)/2 + b^3*n*(n-1)*(n-2)/6 for a per-slot rate b.
func taylorCompoundedInterest(base decimal.Decimal, n uint64) decimal.Decimal {
	exp := fixedpoint.DecimalFromUint64(n)
	expMinus1 := exp.Sub(one)
	expMinus2 := exp.Sub(two)

	basePow2 := base.Mul(base)
	basePow3 := basePow2.Mul(base)

	firstTerm := base.Mul(exp)
	secondTerm := fixedpoint.Quo(basePow2.Mul(exp).Mul(expMinus1), two)
	thirdTerm := fixedpoint.Quo(basePow3.Mul(exp).Mul(expMinus1).Mul(expMinus2), six)

	return one.Add(firstTerm).Add(secondTerm).Add(thirdTerm)
}

// Accrual is a reserve's debt and fee counters projected over elapsed slots.
type Accrual struct {
	NewDebt                    decimal.Decimal `json:"newDebt"`
	NetNewDebt                 decimal.Decimal `json:"netNewDebt"`
	VariableProtocolFee        decimal.Decimal `json:"variableProtocolFee"`
	FixedHostFee               decimal.Decimal `json:"fixedHostFee"`
	AbsoluteReferralRate       decimal.Decimal `json:"absoluteReferralRate"`
	MaxReferralFees            decimal.Decimal `json:"maxReferralFees"`
	NewAccumulatedProtocolFees decimal.Decimal `json:"newAccumulatedProtocolFees"`
	PendingReferralFees        decimal.Decimal `json:"pendingReferralFees"`
}

// CompoundInterest compounds the stored borrow rate plus the host rate over
// elapsedSlots and splits the new interest between the protocol, the host
// and pending referrer fees. The variable rate uses the stored utilization.
func (r *Reserve) CompoundInterest(elapsedSlots uint64, referralFeeBps uint16) Accrual {
	takeRate := r.ProtocolTakeRate()
	referralRate := bps(uint64(referralFeeBps))
	fixedHostRate := r.FixedHostInterestRate()

	compoundedRate := ApproximateCompoundedInterest(r.BorrowRate().Add(fixedHostRate), elapsedSlots)
	compoundedFixed := ApproximateCompoundedInterest(fixedHostRate, elapsedSlots)

	previousDebt := r.BorrowedAmount()
	newDebt := previousDebt.Mul(compoundedRate)
	fixedHostFee := previousDebt.Mul(compoundedFixed).Sub(previousDebt)
	netNewDebt := newDebt.Sub(previousDebt).Sub(fixedHostFee)

	variableProtocolFee := netNewDebt.Mul(takeRate)
	absoluteReferralRate := takeRate.Mul(referralRate)
	maxReferralFees := netNewDebt.Mul(absoluteReferralRate)

	return Accrual{
		NewDebt:              newDebt,
		NetNewDebt:           netNewDebt,
		VariableProtocolFee:  variableProtocolFee,
		FixedHostFee:         fixedHostFee,
		AbsoluteReferralRate: absoluteReferralRate,
		MaxReferralFees:      maxReferralFees,
		NewAccumulatedProtocolFees: variableProtocolFee.
			Add(fixedHostFee).
			Sub(maxReferralFees).
			Add(r.AccumulatedProtocolFees()),
		PendingReferralFees: r.PendingReferrerFees().Add(maxReferralFees),
	}
}

// EstimatedDebtAndSupply projects total borrow and total supply to slot. With
// no elapsed slots the stored values are returned unchanged.
func (r *Reserve) EstimatedDebtAndSupply(slot uint64, referralFeeBps uint16) (totalBorrow, totalSupply decimal.Decimal) {
	elapsed := r.slotsElapsed(slot)
	if elapsed == 0 {
		return r.BorrowedAmount(), r.TotalSupply()
	}
	accrual := r.CompoundInterest(elapsed, referralFeeBps)
	totalSupply = r.LiquidityAvailableAmount().
		Add(accrual.NewDebt).
		Sub(accrual.NewAccumulatedProtocolFees).
		Sub(r.AccumulatedReferrerFees()).
		Sub(accrual.PendingReferralFees)
	return accrual.NewDebt, totalSupply
}

// ProtocolFees is the projected protocol fee position of a reserve.
type ProtocolFees struct {
	Accumulated         decimal.Decimal `json:"accumulated"`
	CompoundedVariable  decimal.Decimal `json:"compoundedVariable"`
	CompoundedFixedHost decimal.Decimal `json:"compoundedFixedHost"`
}

// EstimatedAccumulatedProtocolFees projects the protocol fee counters to slot.
func (r *Reserve) EstimatedAccumulatedProtocolFees(slot uint64, referralFeeBps uint16) ProtocolFees {
	elapsed := r.slotsElapsed(slot)
	if elapsed == 0 {
		return ProtocolFees{
			Accumulated:         r.AccumulatedProtocolFees(),
			CompoundedVariable:  decimal.Zero,
			CompoundedFixedHost: decimal.Zero,
		}
	}
	accrual := r.CompoundInterest(elapsed, referralFeeBps)
	return ProtocolFees{
		Accumulated:         accrual.NewAccumulatedProtocolFees,
		CompoundedVariable:  accrual.VariableProtocolFee,
		CompoundedFixedHost: accrual.FixedHostFee,
	}
}

// SimulatedUtilization is the utilization the reserve would have after an
// action of the given kind. outflow is the second leg of composite actions.
func (r *Reserve) SimulatedUtilization(kind ActionKind, amount, outflow decimal.Decimal, slot uint64, referralFeeBps uint16) (decimal.Decimal, error) {
	borrowed, supply := r.EstimatedDebtAndSupply(slot, referralFeeBps)
	switch kind {
	case ActionDeposit, ActionMint:
		return fixedpoint.Quo(borrowed, supply.Add(amount)), nil
	case ActionWithdraw, ActionRedeem:
		return fixedpoint.Quo(borrowed, supply.Sub(amount)), nil
	case ActionBorrow:
		return fixedpoint.Quo(borrowed.Add(amount), supply), nil
	case ActionRepay:
		return fixedpoint.Quo(borrowed.Sub(amount), supply), nil
	case ActionDepositAndBorrow:
		return fixedpoint.Quo(borrowed.Add(outflow), supply.Add(amount)), nil
	case ActionRepayAndWithdraw:
		return fixedpoint.Quo(borrowed.Sub(amount), supply.Sub(outflow)), nil
	default:
		return decimal.Zero, fmt.Errorf("%w: unsupported action %q", ErrInvalidActionArguments, kind)
	}
}

// SimulatedBorrowAPR is the borrow APR, host add-on included, after the action.
func (r *Reserve) SimulatedBorrowAPR(kind ActionKind, amount, outflow decimal.Decimal, slot uint64, referralFeeBps uint16) (decimal.Decimal, error) {
	utilization, err := r.SimulatedUtilization(kind, amount, outflow, slot, referralFeeBps)
	if err != nil {
		return decimal.Zero, err
	}
	return r.BorrowRateAt(utilization).Add(r.FixedHostInterestRate()), nil
}

// SimulatedSupplyAPR is utilization x simulated borrow APR x (1 - take rate)
// after the action.
func (r *Reserve) SimulatedSupplyAPR(kind ActionKind, amount, outflow decimal.Decimal, slot uint64, referralFeeBps uint16) (decimal.Decimal, error) {
	utilization, err := r.SimulatedUtilization(kind, amount, outflow, slot, referralFeeBps)
	if err != nil {
		return decimal.Zero, err
	}
	borrowAPR := r.BorrowRateAt(utilization).Add(r.FixedHostInterestRate())
	return utilization.Mul(borrowAPR).Mul(one.Sub(r.ProtocolTakeRate())), nil
}
