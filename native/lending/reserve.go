package lending

import (
	"github.com/shopspring/decimal"

	"klendrisk/native/lending/fixedpoint"
	"klendrisk/native/lending/ratecurve"
)

// Reserve is an immutable view of one pool valued at an oracle price. Every
// derived figure is computed on demand from the snapshot; nothing is cached
// across slots.
type Reserve struct {
	state          ReserveState
	price          decimal.Decimal
	curve          ratecurve.Curve
	slotAdjustment decimal.Decimal
	mintFactor     decimal.Decimal
}

// NewReserve wraps a decoded reserve. The state is deep-copied.
func NewReserve(state ReserveState, price decimal.Decimal, cfg Config) *Reserve {
	cfg.EnsureDefaults()
	snapshot := state.Clone()
	return &Reserve{
		state:          snapshot,
		price:          price,
		curve:          ratecurve.New(snapshot.Config.BorrowRateCurve),
		slotAdjustment: cfg.SlotAdjustmentFactor(),
		mintFactor:     fixedpoint.Pow10(snapshot.Liquidity.MintDecimals),
	}
}

func (r *Reserve) Address() Address { return r.state.Address }

// State returns a copy of the decoded reserve.
func (r *Reserve) State() ReserveState { return r.state.Clone() }

// Price is the oracle price in USD per whole token.
func (r *Reserve) Price() decimal.Decimal { return r.price }

// CachedPrice is the price stored on chain at the last refresh.
func (r *Reserve) CachedPrice() decimal.Decimal { return r.state.Liquidity.MarketPriceSf.Decimal() }

func (r *Reserve) LiquidityMint() Address  { return r.state.Liquidity.MintPubkey }
func (r *Reserve) CollateralMint() Address { return r.state.Collateral.MintPubkey }
func (r *Reserve) Symbol() string          { return r.state.Config.TokenName }
func (r *Reserve) Decimals() uint8         { return r.state.Liquidity.MintDecimals }

// MintFactor is 10^decimals.
func (r *Reserve) MintFactor() decimal.Decimal { return r.mintFactor }

// InGroup reports whether the reserve lists the elevation group. Every reserve
// belongs to the default group 0.
func (r *Reserve) InGroup(group uint32) bool {
	if group == 0 {
		return true
	}
	for _, id := range r.state.Config.ElevationGroups {
		if id == group {
			return true
		}
	}
	return false
}

// BorrowedAmount is the outstanding debt at the last refresh.
func (r *Reserve) BorrowedAmount() decimal.Decimal {
	return fixedpoint.PositiveOrZero(r.state.Liquidity.BorrowedAmountSf.Decimal())
}

// LiquidityAvailableAmount is the idle liquidity in lamports.
func (r *Reserve) LiquidityAvailableAmount() decimal.Decimal {
	return fixedpoint.DecimalFromUint64(r.state.Liquidity.AvailableAmount)
}

func (r *Reserve) AccumulatedProtocolFees() decimal.Decimal {
	return r.state.Liquidity.AccumulatedProtocolFeesSf.Decimal()
}

func (r *Reserve) AccumulatedReferrerFees() decimal.Decimal {
	return r.state.Liquidity.AccumulatedReferrerFeesSf.Decimal()
}

func (r *Reserve) PendingReferrerFees() decimal.Decimal {
	return r.state.Liquidity.PendingReferrerFeesSf.Decimal()
}

// BorrowFee is the origination fee fraction.
func (r *Reserve) BorrowFee() decimal.Decimal {
	return r.state.Config.Fees.BorrowFeeSf.Decimal()
}

// FlashLoanFee is the flash loan fee fraction. The U64_MAX sentinel disables
// flash loans and reports zero.
func (r *Reserve) FlashLoanFee() decimal.Decimal {
	fee := r.state.Config.Fees.FlashLoanFeeSf
	if scaled := fee.Scaled(); scaled.IsUint64() && scaled.Uint64() == ^uint64(0) {
		return decimal.Zero
	}
	return fee.Decimal()
}

// FixedHostInterestRate is the annual add-on paid to the host.
func (r *Reserve) FixedHostInterestRate() decimal.Decimal {
	return bps(uint64(r.state.Config.HostFixedInterestRateBps))
}

// ProtocolTakeRate is the share of variable interest kept by the protocol.
func (r *Reserve) ProtocolTakeRate() decimal.Decimal {
	return pct(uint64(r.state.Config.ProtocolTakeRatePct))
}

// BorrowFactor is the configured debt weight outside elevation groups.
func (r *Reserve) BorrowFactor() decimal.Decimal {
	return pct(r.state.Config.BorrowFactorPct)
}

// LoanToValue and LiquidationThreshold are the standalone ratios.
func (r *Reserve) LoanToValue() decimal.Decimal {
	return pct(uint64(r.state.Config.LoanToValuePct))
}

func (r *Reserve) LiquidationThreshold() decimal.Decimal {
	return pct(uint64(r.state.Config.LiquidationThresholdPct))
}

// TotalSupply is available + borrowed - accumulated protocol fees -
// accumulated referrer fees - pending referrer fees, at the last refresh.
func (r *Reserve) TotalSupply() decimal.Decimal {
	return r.LiquidityAvailableAmount().
		Add(r.BorrowedAmount()).
		Sub(r.AccumulatedProtocolFees()).
		Sub(r.AccumulatedReferrerFees()).
		Sub(r.PendingReferrerFees())
}

// EstimatedTotalSupply projects the total supply to slot.
func (r *Reserve) EstimatedTotalSupply(slot uint64, referralFeeBps uint16) decimal.Decimal {
	_, supply := r.EstimatedDebtAndSupply(slot, referralFeeBps)
	return supply
}

// Utilization is borrowed / total supply, zero for an empty reserve.
func (r *Reserve) Utilization() decimal.Decimal {
	supply := r.TotalSupply()
	if supply.IsZero() {
		return decimal.Zero
	}
	return fixedpoint.Quo(r.BorrowedAmount(), supply)
}

// EstimatedUtilization is the utilization after projecting accrual to slot.
func (r *Reserve) EstimatedUtilization(slot uint64, referralFeeBps uint16) decimal.Decimal {
	borrow, supply := r.EstimatedDebtAndSupply(slot, referralFeeBps)
	if supply.IsZero() {
		return decimal.Zero
	}
	return fixedpoint.Quo(borrow, supply)
}

// BorrowRateAt evaluates the curve at a utilization and applies the slot
// adjustment. The host add-on is not included.
func (r *Reserve) BorrowRateAt(utilization decimal.Decimal) decimal.Decimal {
	return r.curve.BorrowRate(utilization, r.slotAdjustment)
}

// BorrowRate is the variable rate at the stored utilization.
func (r *Reserve) BorrowRate() decimal.Decimal {
	return r.BorrowRateAt(r.Utilization())
}

// EstimatedBorrowRate is the variable rate at the projected utilization.
func (r *Reserve) EstimatedBorrowRate(slot uint64, referralFeeBps uint16) decimal.Decimal {
	return r.BorrowRateAt(r.EstimatedUtilization(slot, referralFeeBps))
}

// BorrowAPR is the projected variable rate plus the host add-on.
func (r *Reserve) BorrowAPR(slot uint64, referralFeeBps uint16) decimal.Decimal {
	return r.EstimatedBorrowRate(slot, referralFeeBps).Add(r.FixedHostInterestRate())
}

// SupplyAPR is utilization x estimated borrow rate x (1 - take rate).
func (r *Reserve) SupplyAPR(slot uint64, referralFeeBps uint16) decimal.Decimal {
	return r.Utilization().
		Mul(r.EstimatedBorrowRate(slot, referralFeeBps)).
		Mul(one.Sub(r.ProtocolTakeRate()))
}

func (r *Reserve) SupplyAPY(slot uint64) decimal.Decimal {
	return CalculateAPYFromAPR(r.SupplyAPR(slot, 0))
}

func (r *Reserve) BorrowAPY(slot uint64) decimal.Decimal {
	return CalculateAPYFromAPR(r.BorrowAPR(slot, 0))
}

// CumulativeBorrowRate is the stored accumulator.
func (r *Reserve) CumulativeBorrowRate() decimal.Decimal {
	return r.state.Liquidity.CumulativeBorrowRateBsf.Decimal()
}

// EstimatedCumulativeBorrowRate compounds the projected borrow APR over the
// slots elapsed since the last refresh onto the stored accumulator.
func (r *Reserve) EstimatedCumulativeBorrowRate(slot uint64, referralFeeBps uint16) decimal.Decimal {
	rate := r.BorrowAPR(slot, referralFeeBps)
	factor := ApproximateCompoundedInterest(rate, r.slotsElapsed(slot))
	return r.CumulativeBorrowRate().Mul(factor)
}

// CollateralExchangeRate is collateral tokens per liquidity token at the last
// refresh.
func (r *Reserve) CollateralExchangeRate() decimal.Decimal {
	return r.exchangeRate(r.TotalSupply())
}

// EstimatedCollateralExchangeRate is the exchange rate against the projected
// total supply.
func (r *Reserve) EstimatedCollateralExchangeRate(slot uint64, referralFeeBps uint16) decimal.Decimal {
	return r.exchangeRate(r.EstimatedTotalSupply(slot, referralFeeBps))
}

func (r *Reserve) exchangeRate(totalSupply decimal.Decimal) decimal.Decimal {
	mintSupply := r.state.Collateral.MintTotalSupply
	if mintSupply == 0 || totalSupply.IsZero() {
		return InitialCollateralRate
	}
	return fixedpoint.Quo(fixedpoint.DecimalFromUint64(mintSupply), totalSupply)
}

// DepositTVL is the USD value of the total supply.
func (r *Reserve) DepositTVL() decimal.Decimal {
	return fixedpoint.Quo(r.TotalSupply().Mul(r.price), r.mintFactor)
}

// BorrowTVL is the USD value of the outstanding debt.
func (r *Reserve) BorrowTVL() decimal.Decimal {
	return fixedpoint.Quo(r.BorrowedAmount().Mul(r.price), r.mintFactor)
}

func (r *Reserve) DepositLimitCrossed() bool {
	return r.TotalSupply().GreaterThan(fixedpoint.DecimalFromUint64(r.state.Config.DepositLimit))
}

func (r *Reserve) BorrowLimitCrossed() bool {
	return r.BorrowedAmount().GreaterThan(fixedpoint.DecimalFromUint64(r.state.Config.BorrowLimit))
}

func (r *Reserve) DepositWithdrawalCapCapacity() decimal.Decimal {
	return signed(r.state.Config.DepositWithdrawalCap.ConfigCapacity)
}

// DepositWithdrawalCapCurrent is the recorded outflow, reset to zero once more
// than a day of slots has passed since the last refresh.
func (r *Reserve) DepositWithdrawalCapCurrent(slot uint64) decimal.Decimal {
	return r.windowCurrent(r.state.Config.DepositWithdrawalCap, slot)
}

func (r *Reserve) DebtWithdrawalCapCapacity() decimal.Decimal {
	return signed(r.state.Config.DebtWithdrawalCap.ConfigCapacity)
}

func (r *Reserve) DebtWithdrawalCapCurrent(slot uint64) decimal.Decimal {
	return r.windowCurrent(r.state.Config.DebtWithdrawalCap, slot)
}

func (r *Reserve) windowCurrent(cap WithdrawalCaps, slot uint64) decimal.Decimal {
	if r.slotsElapsed(slot) > SlotsPerDay {
		return decimal.Zero
	}
	return signed(cap.CurrentTotal)
}

func (r *Reserve) BorrowLimitOutsideElevationGroup() decimal.Decimal {
	return fixedpoint.DecimalFromUint64(r.state.Config.BorrowLimitOutsideElevationGroup)
}

func (r *Reserve) BorrowedAmountOutsideElevationGroup() decimal.Decimal {
	return fixedpoint.DecimalFromUint64(r.state.BorrowedAmountOutsideElevationGroup)
}

// BorrowLimitAgainstCollateralInElevationGroup reads the per-group debt limit
// for debt taken against this reserve. Missing entries read as zero.
func (r *Reserve) BorrowLimitAgainstCollateralInElevationGroup(group uint32) decimal.Decimal {
	return groupCounter(r.state.Config.BorrowLimitAgainstThisCollateralInElevationGroup, group)
}

func (r *Reserve) BorrowedAmountAgainstCollateralInElevationGroup(group uint32) decimal.Decimal {
	return groupCounter(r.state.BorrowedAmountsAgainstThisReserveInElevationGroups, group)
}

func groupCounter(values []uint64, group uint32) decimal.Decimal {
	if group == 0 || int(group) > len(values) {
		return decimal.Zero
	}
	return fixedpoint.DecimalFromUint64(values[group-1])
}

func (r *Reserve) slotsElapsed(slot uint64) uint64 {
	return elapsedSlots(slot, r.state.LastUpdateSlot)
}

// ReserveStats are the display ratios of a reserve.
type ReserveStats struct {
	Status                  uint8           `json:"status"`
	Symbol                  string          `json:"symbol"`
	MintAddress             Address         `json:"mintAddress"`
	Decimals                uint8           `json:"decimals"`
	LoanToValue             decimal.Decimal `json:"loanToValue"`
	LiquidationThreshold    decimal.Decimal `json:"liquidationThreshold"`
	MinLiquidationBonus     decimal.Decimal `json:"minLiquidationBonus"`
	MaxLiquidationBonus     decimal.Decimal `json:"maxLiquidationBonus"`
	ProtocolTakeRate        decimal.Decimal `json:"protocolTakeRate"`
	BorrowFactor            decimal.Decimal `json:"borrowFactor"`
	DepositLimit            decimal.Decimal `json:"depositLimit"`
	BorrowLimit             decimal.Decimal `json:"borrowLimit"`
	AccumulatedProtocolFees decimal.Decimal `json:"accumulatedProtocolFees"`
	MintTotalSupply         decimal.Decimal `json:"mintTotalSupply"`
	DepositLimitCrossedSlot uint64          `json:"depositLimitCrossedSlot"`
	BorrowLimitCrossedSlot  uint64          `json:"borrowLimitCrossedSlot"`
}

// Stats formats the configuration as ratios and whole-token amounts.
func (r *Reserve) Stats() ReserveStats {
	cfg := r.state.Config
	return ReserveStats{
		Status:                  cfg.Status,
		Symbol:                  cfg.TokenName,
		MintAddress:             r.state.Liquidity.MintPubkey,
		Decimals:                r.state.Liquidity.MintDecimals,
		LoanToValue:             r.LoanToValue(),
		LiquidationThreshold:    r.LiquidationThreshold(),
		MinLiquidationBonus:     bps(uint64(cfg.MinLiquidationBonusBps)),
		MaxLiquidationBonus:     bps(uint64(cfg.MaxLiquidationBonusBps)),
		ProtocolTakeRate:        r.ProtocolTakeRate(),
		BorrowFactor:            r.BorrowFactor(),
		DepositLimit:            fixedpoint.DecimalFromUint64(cfg.DepositLimit),
		BorrowLimit:             fixedpoint.DecimalFromUint64(cfg.BorrowLimit),
		AccumulatedProtocolFees: fixedpoint.Quo(r.AccumulatedProtocolFees(), r.mintFactor),
		MintTotalSupply:         fixedpoint.Quo(fixedpoint.DecimalFromUint64(r.state.Collateral.MintTotalSupply), r.mintFactor),
		DepositLimitCrossedSlot: r.state.Liquidity.DepositLimitCrossedSlot,
		BorrowLimitCrossedSlot:  r.state.Liquidity.BorrowLimitCrossedSlot,
	}
}

// ReserveSummary is the projected state of a reserve at a slot.
type ReserveSummary struct {
	Address                Address         `json:"address"`
	Symbol                 string          `json:"symbol"`
	LiquidityMint          Address         `json:"liquidityMint"`
	Price                  decimal.Decimal `json:"price"`
	Slot                   uint64          `json:"slot"`
	TotalSupply            decimal.Decimal `json:"totalSupply"`
	TotalBorrow            decimal.Decimal `json:"totalBorrow"`
	Utilization            decimal.Decimal `json:"utilization"`
	BorrowAPR              decimal.Decimal `json:"borrowApr"`
	SupplyAPR              decimal.Decimal `json:"supplyApr"`
	BorrowAPY              decimal.Decimal `json:"borrowApy"`
	SupplyAPY              decimal.Decimal `json:"supplyApy"`
	DepositTVL             decimal.Decimal `json:"depositTvl"`
	BorrowTVL              decimal.Decimal `json:"borrowTvl"`
	CollateralExchangeRate decimal.Decimal `json:"collateralExchangeRate"`
	CumulativeBorrowRate   decimal.Decimal `json:"cumulativeBorrowRate"`
	BorrowFee              decimal.Decimal `json:"borrowFee"`
	FlashLoanFee           decimal.Decimal `json:"flashLoanFee"`
	DepositLimitCrossed    bool            `json:"depositLimitCrossed"`
	BorrowLimitCrossed     bool            `json:"borrowLimitCrossed"`
	Stats                  ReserveStats    `json:"stats"`
}

// Summary projects the reserve to slot using the market referral fee.
func (r *Reserve) Summary(slot uint64, referralFeeBps uint16) ReserveSummary {
	borrow, supply := r.EstimatedDebtAndSupply(slot, referralFeeBps)
	return ReserveSummary{
		Address:                r.Address(),
		Symbol:                 r.Symbol(),
		LiquidityMint:          r.LiquidityMint(),
		Price:                  r.price,
		Slot:                   slot,
		TotalSupply:            supply,
		TotalBorrow:            borrow,
		Utilization:            r.EstimatedUtilization(slot, referralFeeBps),
		BorrowAPR:              r.BorrowAPR(slot, referralFeeBps),
		SupplyAPR:              r.SupplyAPR(slot, referralFeeBps),
		BorrowAPY:              r.BorrowAPY(slot),
		SupplyAPY:              r.SupplyAPY(slot),
		DepositTVL:             r.DepositTVL(),
		BorrowTVL:              r.BorrowTVL(),
		CollateralExchangeRate: r.EstimatedCollateralExchangeRate(slot, referralFeeBps),
		CumulativeBorrowRate:   r.EstimatedCumulativeBorrowRate(slot, referralFeeBps),
		BorrowFee:              r.BorrowFee(),
		FlashLoanFee:           r.FlashLoanFee(),
		DepositLimitCrossed:    r.DepositLimitCrossed(),
		BorrowLimitCrossed:     r.BorrowLimitCrossed(),
		Stats:                  r.Stats(),
	}
}
