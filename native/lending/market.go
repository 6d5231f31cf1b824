package lending

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Prices maps liquidity mints to oracle prices in USD per whole token.
type Prices map[Address]decimal.Decimal

// Market is an immutable snapshot of a lending market and its reserves,
// valued at one set of oracle prices. It is safe for concurrent use.
type Market struct {
	cfg      Config
	state    MarketState
	order    []Address
	reserves map[Address]*Reserve
	byMint   map[Address]*Reserve
	groups   map[uint32]ElevationGroup
	// descriptions is indexed by the position of the group in the market
	// account, skipping the unused id 0.
	descriptions []ElevationGroupDescription
}

// NewMarket validates the snapshot and derives the elevation group
// descriptions. Every reserve needs a price for its liquidity mint.
func NewMarket(cfg Config, state MarketState, reserves []ReserveState, prices Prices) (*Market, error) {
	cfg.EnsureDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m := &Market{
		cfg:      cfg,
		state:    state.Clone(),
		reserves: make(map[Address]*Reserve, len(reserves)),
		byMint:   make(map[Address]*Reserve, len(reserves)),
		groups:   make(map[uint32]ElevationGroup, len(state.ElevationGroups)),
	}
	for _, group := range m.state.ElevationGroups {
		if group.ID == 0 {
			continue
		}
		m.groups[group.ID] = group
	}
	for _, rs := range reserves {
		if _, exists := m.reserves[rs.Address]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateReserve, rs.Address)
		}
		price, ok := prices[rs.Liquidity.MintPubkey]
		if !ok {
			return nil, fmt.Errorf("%w: reserve %s mint %s", ErrPriceNotFound, rs.Address, rs.Liquidity.MintPubkey)
		}
		reserve := NewReserve(rs, price, cfg)
		m.order = append(m.order, rs.Address)
		m.reserves[rs.Address] = reserve
		m.byMint[rs.Liquidity.MintPubkey] = reserve
	}
	descriptions, err := m.describeElevationGroups()
	if err != nil {
		return nil, err
	}
	m.descriptions = descriptions
	return m, nil
}

func (m *Market) Address() Address { return m.state.Address }

func (m *Market) Config() Config { return m.cfg }

// State returns a copy of the decoded market.
func (m *Market) State() MarketState { return m.state.Clone() }

// ReferralFeeBps is the referrer share of protocol fees.
func (m *Market) ReferralFeeBps() uint16 { return m.state.ReferralFeeBps }

// Reserves returns the reserves in snapshot order.
func (m *Market) Reserves() []*Reserve {
	out := make([]*Reserve, 0, len(m.order))
	for _, addr := range m.order {
		out = append(out, m.reserves[addr])
	}
	return out
}

func (m *Market) ReserveByAddress(addr Address) (*Reserve, bool) {
	r, ok := m.reserves[addr]
	return r, ok
}

func (m *Market) ReserveByMint(mint Address) (*Reserve, bool) {
	r, ok := m.byMint[mint]
	return r, ok
}

func (m *Market) reserve(addr Address) (*Reserve, error) {
	r, ok := m.reserves[addr]
	if !ok {
		return nil, fmt.Errorf("%w: reserve %s", ErrReferenceNotFound, addr)
	}
	return r, nil
}

func (m *Market) reserveForMint(mint Address) (*Reserve, error) {
	r, ok := m.byMint[mint]
	if !ok {
		return nil, fmt.Errorf("%w: no reserve for mint %s", ErrReferenceNotFound, mint)
	}
	return r, nil
}

// ElevationGroup returns the configured group with the given id.
func (m *Market) ElevationGroup(id uint32) (ElevationGroup, error) {
	group, ok := m.groups[id]
	if !ok {
		return ElevationGroup{}, fmt.Errorf("%w: %d", ErrUnknownElevationGroup, id)
	}
	return group, nil
}
