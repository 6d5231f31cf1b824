package lending

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ElevationGroupDescription is a group joined with the reserves that
// reference it. It is derived from reserve membership lists, never stored.
type ElevationGroupDescription struct {
	ID                       uint32    `json:"elevationGroup"`
	LtvPct                   uint8     `json:"ltvPct"`
	LiquidationThresholdPct  uint8     `json:"liquidationThresholdPct"`
	MaxLiquidationBonusBps   uint16    `json:"maxLiquidationBonusBps"`
	AllowNewLoans            bool      `json:"allowNewLoans"`
	MaxReservesAsCollateral  uint8     `json:"maxReservesAsCollateral"`
	DebtReserve              Address   `json:"debtReserve"`
	DebtLiquidityMint        Address   `json:"debtLiquidityMint"`
	CollateralReserves       []Address `json:"collateralReserves"`
	CollateralLiquidityMints []Address `json:"collateralLiquidityMints"`
}

// HasCollateral reports whether reserve is an eligible collateral of the group.
func (d ElevationGroupDescription) HasCollateral(reserve Address) bool {
	for _, addr := range d.CollateralReserves {
		if addr == reserve {
			return true
		}
	}
	return false
}

func (d ElevationGroupDescription) clone() ElevationGroupDescription {
	d.CollateralReserves = append([]Address(nil), d.CollateralReserves...)
	d.CollateralLiquidityMints = append([]Address(nil), d.CollateralLiquidityMints...)
	return d
}

// describeElevationGroups scans every reserve's membership list against the
// market's groups. The debt reserve of a group is recorded as its debt side
// and never as collateral.
func (m *Market) describeElevationGroups() ([]ElevationGroupDescription, error) {
	index := make(map[uint32]int, len(m.groups))
	descriptions := make([]ElevationGroupDescription, 0, len(m.groups))
	for _, group := range m.state.ElevationGroups {
		if group.ID == 0 {
			continue
		}
		if _, seen := index[group.ID]; seen {
			continue
		}
		index[group.ID] = len(descriptions)
		descriptions = append(descriptions, ElevationGroupDescription{
			ID:                      group.ID,
			LtvPct:                  group.LtvPct,
			LiquidationThresholdPct: group.LiquidationThresholdPct,
			MaxLiquidationBonusBps:  group.MaxLiquidationBonusBps,
			AllowNewLoans:           group.AllowNewLoans,
			MaxReservesAsCollateral: group.MaxReservesAsCollateral,
			DebtReserve:             group.DebtReserve,
		})
	}
	for _, reserve := range m.Reserves() {
		seen := make(map[uint32]struct{})
		for _, id := range reserve.state.Config.ElevationGroups {
			if id == 0 {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			pos, ok := index[id]
			if !ok {
				return nil, fmt.Errorf("%w: %d listed by reserve %s", ErrUnknownElevationGroup, id, reserve.Address())
			}
			desc := &descriptions[pos]
			if desc.DebtReserve == reserve.Address() {
				desc.DebtLiquidityMint = reserve.LiquidityMint()
				continue
			}
			desc.CollateralReserves = append(desc.CollateralReserves, reserve.Address())
			desc.CollateralLiquidityMints = append(desc.CollateralLiquidityMints, reserve.LiquidityMint())
		}
	}
	return descriptions, nil
}

// ElevationGroupDescriptions returns every non-default group of the market.
func (m *Market) ElevationGroupDescriptions() []ElevationGroupDescription {
	out := make([]ElevationGroupDescription, 0, len(m.descriptions))
	for _, d := range m.descriptions {
		out = append(out, d.clone())
	}
	return out
}

// ElevationGroupDescription returns the description of a non-default group.
func (m *Market) ElevationGroupDescription(id uint32) (ElevationGroupDescription, error) {
	for _, d := range m.descriptions {
		if d.ID == id {
			return d.clone(), nil
		}
	}
	return ElevationGroupDescription{}, fmt.Errorf("%w: %d", ErrUnknownElevationGroup, id)
}

// GroupsForReserveCombination returns the non-default groups that accept
// every reserve in collateral as collateral and whose debt reserve is debt.
// An empty debt matches any group.
func (m *Market) GroupsForReserveCombination(collateral []Address, debt Address) ([]ElevationGroupDescription, error) {
	if len(collateral) == 0 {
		return nil, ErrEmptyCollateralSet
	}
	for _, addr := range collateral {
		if _, err := m.reserve(addr); err != nil {
			return nil, err
		}
	}
	out := make([]ElevationGroupDescription, 0)
	for _, d := range m.descriptions {
		if !debt.IsNull() && d.DebtReserve != debt {
			continue
		}
		// The debt reserve lists the group too but is never its collateral.
		eligible := true
		for _, addr := range collateral {
			if !d.HasCollateral(addr) {
				eligible = false
				break
			}
		}
		if eligible {
			out = append(out, d.clone())
		}
	}
	return out, nil
}

// LTV is the pair of collateral ratios applied to a deposit.
type LTV struct {
	MaxLtv         decimal.Decimal `json:"maxLtv"`
	LiquidationLtv decimal.Decimal `json:"liquidationLtv"`
}

// LtvForReserve resolves the collateral ratios of reserve under group. Inside
// a group the reserve belongs to, the group's uniform ratios apply.
func (m *Market) LtvForReserve(reserve *Reserve, group uint32) LTV {
	if group != 0 && reserve.InGroup(group) {
		if g, ok := m.groups[group]; ok {
			return LTV{
				MaxLtv:         pct(uint64(g.LtvPct)),
				LiquidationLtv: pct(uint64(g.LiquidationThresholdPct)),
			}
		}
	}
	return LTV{MaxLtv: reserve.LoanToValue(), LiquidationLtv: reserve.LiquidationThreshold()}
}

// BorrowFactor is 1 for a reserve inside the active group and the configured
// borrow factor otherwise.
func BorrowFactor(reserve *Reserve, group uint32) decimal.Decimal {
	if group != 0 && reserve.InGroup(group) {
		return one
	}
	return reserve.BorrowFactor()
}

// Eligibility is the outcome of a migration check. Ineligibility is a value,
// not an error.
type Eligibility struct {
	Group    uint32 `json:"elevationGroup"`
	Eligible bool   `json:"eligible"`
	Reason   string `json:"reason,omitempty"`
}

const (
	reasonMultipleBorrows   = "obligation borrows from more than one reserve"
	reasonCollateralOutside = "deposit reserve is not a collateral of the group"
	reasonDebtOutside       = "borrow reserve is not the debt reserve of the group"
	reasonLtv               = "borrow factor adjusted debt exceeds the borrow limit under the group"
)

// CheckGroupEligibility reports whether the obligation could move to group at
// slot. Group 0 has no membership constraint but still needs the debt to fit
// under the recomputed borrow limit.
func (o *Obligation) CheckGroupEligibility(m *Market, group uint32, slot uint64) (Eligibility, error) {
	result := Eligibility{Group: group}
	if o.borrows.Len() > 1 {
		result.Reason = reasonMultipleBorrows
		return result, nil
	}
	if group > 0 {
		desc, err := m.ElevationGroupDescription(group)
		if err != nil {
			return result, err
		}
		for _, reserve := range o.deposits.Keys() {
			if !desc.HasCollateral(reserve) {
				result.Reason = reasonCollateralOutside
				return result, nil
			}
		}
		for _, reserve := range o.borrows.Keys() {
			if reserve != desc.DebtReserve {
				result.Reason = reasonDebtOutside
				return result, nil
			}
		}
	}
	exchangeRates, _, err := RatesForObligation(m, o.state, slot)
	if err != nil {
		return result, err
	}
	deposits, err := ValueDeposits(m, o.state, exchangeRates, group, OraclePrice)
	if err != nil {
		return result, err
	}
	if o.stats.TotalBorrowBorrowFactorAdjusted.GreaterThan(deposits.BorrowLimit) {
		result.Reason = reasonLtv
		return result, nil
	}
	result.Eligible = true
	return result, nil
}

// IsEligibleForGroup is CheckGroupEligibility reduced to a boolean. Errors
// count as ineligible.
func (o *Obligation) IsEligibleForGroup(m *Market, group uint32, slot uint64) bool {
	result, err := o.CheckGroupEligibility(m, group, slot)
	return err == nil && result.Eligible
}

// GroupsForObligation returns the groups the obligation's current reserves
// qualify for. An obligation with more than one borrow qualifies for none.
func (o *Obligation) GroupsForObligation(m *Market) ([]ElevationGroupDescription, error) {
	if o.borrows.Len() > 1 {
		return []ElevationGroupDescription{}, nil
	}
	var debt Address
	if keys := o.borrows.Keys(); len(keys) == 1 {
		debt = keys[0]
	}
	return m.GroupsForReserveCombination(o.deposits.Keys(), debt)
}

// CandidateElevationGroups returns the ids of the non-default groups listed by
// every reserve the obligation touches.
func (o *Obligation) CandidateElevationGroups(m *Market) ([]uint32, error) {
	seen := make(map[Address]struct{})
	var reserves []*Reserve
	collect := func(addr Address) error {
		if _, ok := seen[addr]; ok {
			return nil
		}
		seen[addr] = struct{}{}
		reserve, err := m.reserve(addr)
		if err != nil {
			return err
		}
		reserves = append(reserves, reserve)
		return nil
	}
	for _, addr := range o.deposits.Keys() {
		if err := collect(addr); err != nil {
			return nil, err
		}
	}
	for _, addr := range o.borrows.Keys() {
		if err := collect(addr); err != nil {
			return nil, err
		}
	}
	out := make([]uint32, 0)
	for _, d := range m.descriptions {
		member := true
		for _, reserve := range reserves {
			if !reserve.InGroup(d.ID) {
				member = false
				break
			}
		}
		if member && len(reserves) > 0 {
			out = append(out, d.ID)
		}
	}
	return out, nil
}
