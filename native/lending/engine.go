package lending

import (
	"time"

	"github.com/shopspring/decimal"
)

type engineState interface {
	Market(address Address) (*Market, error)
	ObligationState(market, obligation Address) (ObligationState, error)
}

// Observer receives the outcome of every engine query.
type Observer interface {
	ObserveQuery(operation string, elapsed time.Duration, err error)
}

// Query addresses one obligation at one slot. A nil Group selects the
// obligation's active group.
type Query struct {
	Market     Address
	Obligation Address
	Mint       Address
	Slot       uint64
	Group      *uint32
}

func (q Query) group(o *Obligation) uint32 {
	if q.Group == nil {
		return o.ElevationGroup()
	}
	return *q.Group
}

// Engine resolves queries against the snapshots held by its state. It keeps no
// mutable state of its own; every call values the obligation afresh.
type Engine struct {
	state    engineState
	observer Observer
}

// NewEngine constructs an engine. SetState must be called before queries.
func NewEngine() *Engine {
	return &Engine{}
}

// SetState wires the engine to the snapshot registry.
func (e *Engine) SetState(state engineState) {
	if e == nil {
		return
	}
	e.state = state
}

func (e *Engine) SetObserver(o Observer) {
	if e == nil {
		return
	}
	e.observer = o
}

func (e *Engine) observe(operation string, started time.Time, err *error) {
	if e == nil || e.observer == nil {
		return
	}
	e.observer.ObserveQuery(operation, time.Since(started), *err)
}

func (e *Engine) market(addr Address) (*Market, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.state.Market(addr)
}

func (e *Engine) load(q Query) (*Market, *Obligation, error) {
	m, err := e.market(q.Market)
	if err != nil {
		return nil, nil, err
	}
	state, err := e.state.ObligationState(q.Market, q.Obligation)
	if err != nil {
		return nil, nil, err
	}
	o, err := NewObligation(m, state, q.Slot)
	if err != nil {
		return nil, nil, err
	}
	return m, o, nil
}

// Obligation values the addressed obligation.
func (e *Engine) Obligation(q Query) (m *Market, o *Obligation, err error) {
	defer e.observe("obligation", time.Now(), &err)
	return e.load(q)
}

// Simulate projects the addressed obligation through action.
func (e *Engine) Simulate(q Query, action Action) (result SimulationResult, err error) {
	defer e.observe("simulate", time.Now(), &err)
	m, o, err := e.load(q)
	if err != nil {
		return SimulationResult{}, err
	}
	return o.Simulate(m, action)
}

func (e *Engine) BorrowPower(q Query) (amount decimal.Decimal, err error) {
	defer e.observe("borrow_power", time.Now(), &err)
	m, o, err := e.load(q)
	if err != nil {
		return decimal.Zero, err
	}
	return o.BorrowPower(m, q.Mint, q.Slot, q.group(o))
}

func (e *Engine) MaxBorrowAmount(q Query) (amount decimal.Decimal, err error) {
	defer e.observe("max_borrow", time.Now(), &err)
	m, o, err := e.load(q)
	if err != nil {
		return decimal.Zero, err
	}
	return o.MaxBorrowAmount(m, q.Mint, q.Slot, q.group(o))
}

func (e *Engine) MaxWithdrawAmount(q Query) (amount decimal.Decimal, err error) {
	defer e.observe("max_withdraw", time.Now(), &err)
	m, o, err := e.load(q)
	if err != nil {
		return decimal.Zero, err
	}
	return o.MaxWithdrawAmount(m, q.Mint, q.Slot)
}

func (e *Engine) Eligibility(q Query) (result Eligibility, err error) {
	defer e.observe("eligibility", time.Now(), &err)
	m, o, err := e.load(q)
	if err != nil {
		return Eligibility{}, err
	}
	return o.CheckGroupEligibility(m, q.group(o), q.Slot)
}

func (e *Engine) ObligationGroups(q Query) (groups []ElevationGroupDescription, err error) {
	defer e.observe("obligation_groups", time.Now(), &err)
	m, o, err := e.load(q)
	if err != nil {
		return nil, err
	}
	return o.GroupsForObligation(m)
}

// ReserveSummary projects one reserve of a market to slot.
func (e *Engine) ReserveSummary(market, reserve Address, slot uint64) (summary ReserveSummary, err error) {
	defer e.observe("reserve_summary", time.Now(), &err)
	m, err := e.market(market)
	if err != nil {
		return ReserveSummary{}, err
	}
	r, err := m.reserve(reserve)
	if err != nil {
		return ReserveSummary{}, err
	}
	return r.Summary(slot, m.ReferralFeeBps()), nil
}

// ReserveCaps returns the caps of a reserve and the liquidity available to
// each requested group.
func (e *Engine) ReserveCaps(market, reserve Address, groups []uint32) (caps BorrowCaps, available []decimal.Decimal, err error) {
	defer e.observe("reserve_caps", time.Now(), &err)
	m, err := e.market(market)
	if err != nil {
		return BorrowCaps{}, nil, err
	}
	r, err := m.reserve(reserve)
	if err != nil {
		return BorrowCaps{}, nil, err
	}
	caps, err = m.BorrowCaps(r)
	if err != nil {
		return BorrowCaps{}, nil, err
	}
	available, err = m.LiquidityAvailable(r, groups)
	if err != nil {
		return BorrowCaps{}, nil, err
	}
	return caps, available, nil
}

// ElevationGroups lists the derived group descriptions of a market.
func (e *Engine) ElevationGroups(market Address) ([]ElevationGroupDescription, error) {
	m, err := e.market(market)
	if err != nil {
		return nil, err
	}
	return m.ElevationGroupDescriptions(), nil
}
