package lending

import (
	"klendrisk/native/lending/fixedpoint"
	"klendrisk/native/lending/ratecurve"
)

// Address is a base58 account key as produced by the account decoder.
type Address string

// systemAddress is the all-zero key that marks unused account slots.
const systemAddress Address = "11111111111111111111111111111111"

// IsNull reports whether the address marks an empty slot.
func (a Address) IsNull() bool {
	return a == "" || a == systemAddress
}

func (a Address) String() string { return string(a) }

// WithdrawalCaps is a rolling-window outflow limit.
type WithdrawalCaps struct {
	// ConfigCapacity is the maximum net outflow allowed in one interval.
	ConfigCapacity int64 `json:"configCapacity"`
	// CurrentTotal is the net outflow recorded in the current interval.
	CurrentTotal int64 `json:"currentTotal"`
	// LastIntervalStartTimestamp is the unix time the current interval began.
	LastIntervalStartTimestamp uint64 `json:"lastIntervalStartTimestamp"`
	// ConfigIntervalLengthSeconds is the interval length. Zero means no cap is
	// configured.
	ConfigIntervalLengthSeconds uint64 `json:"configIntervalLengthSeconds"`
}

// ReserveFees carries the scaled fee fractions charged by a reserve.
type ReserveFees struct {
	BorrowFeeSf    fixedpoint.Fraction `json:"borrowFeeSf"`
	FlashLoanFeeSf fixedpoint.Fraction `json:"flashLoanFeeSf"`
}

// ReserveLiquidity describes the liquidity side of a reserve.
type ReserveLiquidity struct {
	// MintPubkey identifies the liquidity token.
	MintPubkey   Address `json:"mintPubkey"`
	MintDecimals uint8   `json:"mintDecimals"`
	// AvailableAmount is the idle liquidity held by the reserve in lamports.
	AvailableAmount uint64 `json:"availableAmount"`
	// BorrowedAmountSf is the outstanding debt including accrued interest.
	BorrowedAmountSf fixedpoint.Fraction `json:"borrowedAmountSf"`
	// MarketPriceSf is the price cached on chain at the last refresh.
	MarketPriceSf fixedpoint.Fraction `json:"marketPriceSf"`
	// CumulativeBorrowRateBsf is the compounded interest accumulator.
	CumulativeBorrowRateBsf   fixedpoint.BigFraction `json:"cumulativeBorrowRateBsf"`
	AccumulatedProtocolFeesSf fixedpoint.Fraction    `json:"accumulatedProtocolFeesSf"`
	AccumulatedReferrerFeesSf fixedpoint.Fraction    `json:"accumulatedReferrerFeesSf"`
	PendingReferrerFeesSf     fixedpoint.Fraction    `json:"pendingReferrerFeesSf"`
	DepositLimitCrossedSlot   uint64                 `json:"depositLimitCrossedSlot"`
	BorrowLimitCrossedSlot    uint64                 `json:"borrowLimitCrossedSlot"`
}

// ReserveCollateral describes the collateral token minted for deposits.
type ReserveCollateral struct {
	MintPubkey      Address `json:"mintPubkey"`
	MintTotalSupply uint64  `json:"mintTotalSupply"`
}

// ReserveConfig groups the governance controlled parameters of a reserve.
type ReserveConfig struct {
	Status    uint8  `json:"status"`
	TokenName string `json:"tokenName"`
	// LoanToValuePct is the share of a deposit's value that may be borrowed
	// against outside an elevation group.
	LoanToValuePct uint8 `json:"loanToValuePct"`
	// LiquidationThresholdPct is the LTV above which positions can be
	// liquidated outside an elevation group.
	LiquidationThresholdPct uint8  `json:"liquidationThresholdPct"`
	MinLiquidationBonusBps  uint16 `json:"minLiquidationBonusBps"`
	MaxLiquidationBonusBps  uint16 `json:"maxLiquidationBonusBps"`
	ProtocolTakeRatePct     uint8  `json:"protocolTakeRatePct"`
	// BorrowFactorPct weights debt in this reserve outside an elevation group.
	BorrowFactorPct uint64 `json:"borrowFactorPct"`
	DepositLimit    uint64 `json:"depositLimit"`
	BorrowLimit     uint64 `json:"borrowLimit"`
	// UtilizationLimitBlockBorrowingAbove blocks borrowing above this
	// utilization percentage. Zero disables the limit.
	UtilizationLimitBlockBorrowingAbove uint8             `json:"utilizationLimitBlockBorrowingAbove"`
	HostFixedInterestRateBps            uint16            `json:"hostFixedInterestRateBps"`
	Fees                                ReserveFees       `json:"fees"`
	BorrowRateCurve                     []ratecurve.Point `json:"borrowRateCurve"`
	// ElevationGroups lists the groups this reserve participates in. Zero
	// entries are padding.
	ElevationGroups                  []uint32 `json:"elevationGroups"`
	BorrowLimitOutsideElevationGroup uint64   `json:"borrowLimitOutsideElevationGroup"`
	// BorrowLimitAgainstThisCollateralInElevationGroup is indexed by group id
	// minus one.
	BorrowLimitAgainstThisCollateralInElevationGroup []uint64       `json:"borrowLimitAgainstThisCollateralInElevationGroup"`
	DisableUsageAsCollOutsideEmode                   bool           `json:"disableUsageAsCollOutsideEmode"`
	DepositWithdrawalCap                             WithdrawalCaps `json:"depositWithdrawalCap"`
	DebtWithdrawalCap                                WithdrawalCaps `json:"debtWithdrawalCap"`
}

// ReserveState is the decoded reserve account.
type ReserveState struct {
	Address        Address           `json:"address"`
	LendingMarket  Address           `json:"lendingMarket"`
	LastUpdateSlot uint64            `json:"lastUpdateSlot"`
	Liquidity      ReserveLiquidity  `json:"liquidity"`
	Collateral     ReserveCollateral `json:"collateral"`
	Config         ReserveConfig     `json:"config"`
	// BorrowedAmountOutsideElevationGroup counts debt taken in cross mode.
	BorrowedAmountOutsideElevationGroup uint64 `json:"borrowedAmountOutsideElevationGroup"`
	// BorrowedAmountsAgainstThisReserveInElevationGroups counts debt taken
	// against this reserve as collateral, indexed by group id minus one.
	BorrowedAmountsAgainstThisReserveInElevationGroups []uint64 `json:"borrowedAmountsAgainstThisReserveInElevationGroups"`
}

// Clone returns a deep copy of the reserve state.
func (s ReserveState) Clone() ReserveState {
	clone := s
	clone.Config.BorrowRateCurve = append([]ratecurve.Point(nil), s.Config.BorrowRateCurve...)
	clone.Config.ElevationGroups = append([]uint32(nil), s.Config.ElevationGroups...)
	clone.Config.BorrowLimitAgainstThisCollateralInElevationGroup = append([]uint64(nil), s.Config.BorrowLimitAgainstThisCollateralInElevationGroup...)
	clone.BorrowedAmountsAgainstThisReserveInElevationGroups = append([]uint64(nil), s.BorrowedAmountsAgainstThisReserveInElevationGroups...)
	return clone
}

// ElevationGroup is one risk tier configured on the market.
type ElevationGroup struct {
	ID                      uint32  `json:"id"`
	LtvPct                  uint8   `json:"ltvPct"`
	LiquidationThresholdPct uint8   `json:"liquidationThresholdPct"`
	MaxLiquidationBonusBps  uint16  `json:"maxLiquidationBonusBps"`
	AllowNewLoans           bool    `json:"allowNewLoans"`
	MaxReservesAsCollateral uint8   `json:"maxReservesAsCollateral"`
	DebtReserve             Address `json:"debtReserve"`
}

// MarketState is the decoded lending market account.
type MarketState struct {
	Address         Address          `json:"address"`
	Name            string           `json:"name,omitempty"`
	ReferralFeeBps  uint16           `json:"referralFeeBps"`
	ElevationGroups []ElevationGroup `json:"elevationGroups"`
}

// Clone returns a deep copy of the market state.
func (s MarketState) Clone() MarketState {
	clone := s
	clone.ElevationGroups = append([]ElevationGroup(nil), s.ElevationGroups...)
	return clone
}

// ObligationCollateral is one deposit slot of an obligation.
type ObligationCollateral struct {
	DepositReserve Address `json:"depositReserve"`
	// DepositedAmount is denominated in collateral tokens.
	DepositedAmount uint64              `json:"depositedAmount"`
	MarketValueSf   fixedpoint.Fraction `json:"marketValueSf"`
}

// ObligationLiquidity is one borrow slot of an obligation.
type ObligationLiquidity struct {
	BorrowReserve Address `json:"borrowReserve"`
	// CumulativeBorrowRateBsf is the reserve accumulator at the last refresh
	// of this slot.
	CumulativeBorrowRateBsf           fixedpoint.BigFraction `json:"cumulativeBorrowRateBsf"`
	BorrowedAmountSf                  fixedpoint.Fraction    `json:"borrowedAmountSf"`
	MarketValueSf                     fixedpoint.Fraction    `json:"marketValueSf"`
	BorrowFactorAdjustedMarketValueSf fixedpoint.Fraction    `json:"borrowFactorAdjustedMarketValueSf"`
}

// BorrowAmount is the stored debt of the slot before lazy accrual.
func (l ObligationLiquidity) BorrowAmount() fixedpoint.Fraction {
	return l.BorrowedAmountSf
}

// ObligationState is the decoded obligation account.
type ObligationState struct {
	Address        Address `json:"address"`
	LendingMarket  Address `json:"lendingMarket"`
	Owner          Address `json:"owner"`
	Tag            uint64  `json:"tag"`
	LastUpdateSlot uint64  `json:"lastUpdateSlot"`
	// ElevationGroup is the active tier; zero means cross mode.
	ElevationGroup                  uint32                 `json:"elevationGroup"`
	Deposits                        []ObligationCollateral `json:"deposits"`
	Borrows                         []ObligationLiquidity  `json:"borrows"`
	DepositedValueSf                fixedpoint.Fraction    `json:"depositedValueSf"`
	BorrowedAssetsMarketValueSf     fixedpoint.Fraction    `json:"borrowedAssetsMarketValueSf"`
	AllowedBorrowValueSf            fixedpoint.Fraction    `json:"allowedBorrowValueSf"`
	UnhealthyBorrowValueSf          fixedpoint.Fraction    `json:"unhealthyBorrowValueSf"`
	BorrowFactorAdjustedDebtValueSf fixedpoint.Fraction    `json:"borrowFactorAdjustedDebtValueSf"`
}

// Clone returns a deep copy of the obligation state.
func (s ObligationState) Clone() ObligationState {
	clone := s
	clone.Deposits = append([]ObligationCollateral(nil), s.Deposits...)
	clone.Borrows = append([]ObligationLiquidity(nil), s.Borrows...)
	return clone
}
