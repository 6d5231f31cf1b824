package lending

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Position is a valued deposit or borrow. Amount is in liquidity lamports:
// post exchange rate for deposits, post cumulative rate for borrows.
type Position struct {
	Reserve     Address         `json:"reserve"`
	Mint        Address         `json:"mint"`
	Amount      decimal.Decimal `json:"amount"`
	MarketValue decimal.Decimal `json:"marketValue"`
}

// PositionMap is an immutable, insertion-ordered map of positions keyed by
// reserve. Set returns a new map and never modifies the receiver, so results
// derived from one snapshot can be shared freely.
type PositionMap struct {
	keys    []Address
	entries map[Address]Position
}

// NewPositionMap builds a map from positions; later duplicates replace
// earlier ones.
func NewPositionMap(positions ...Position) PositionMap {
	m := PositionMap{entries: make(map[Address]Position, len(positions))}
	for _, p := range positions {
		if _, ok := m.entries[p.Reserve]; !ok {
			m.keys = append(m.keys, p.Reserve)
		}
		m.entries[p.Reserve] = p
	}
	return m
}

func (m PositionMap) Len() int { return len(m.keys) }

func (m PositionMap) Get(reserve Address) (Position, bool) {
	p, ok := m.entries[reserve]
	return p, ok
}

// ByMint returns the last position whose liquidity mint matches.
func (m PositionMap) ByMint(mint Address) (Position, bool) {
	var (
		found Position
		ok    bool
	)
	for _, key := range m.keys {
		if p := m.entries[key]; p.Mint == mint {
			found, ok = p, true
		}
	}
	return found, ok
}

// Set returns a copy of the map with the position stored under its reserve.
func (m PositionMap) Set(p Position) PositionMap {
	next := PositionMap{
		keys:    make([]Address, len(m.keys), len(m.keys)+1),
		entries: make(map[Address]Position, len(m.entries)+1),
	}
	copy(next.keys, m.keys)
	for k, v := range m.entries {
		next.entries[k] = v
	}
	if _, ok := next.entries[p.Reserve]; !ok {
		next.keys = append(next.keys, p.Reserve)
	}
	next.entries[p.Reserve] = p
	return next
}

// Keys returns the reserves in insertion order.
func (m PositionMap) Keys() []Address {
	return append([]Address(nil), m.keys...)
}

// Values returns the positions in insertion order.
func (m PositionMap) Values() []Position {
	out := make([]Position, 0, len(m.keys))
	for _, key := range m.keys {
		out = append(out, m.entries[key])
	}
	return out
}

// MarshalJSON encodes the positions as an ordered array.
func (m PositionMap) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Values())
}

// UnmarshalJSON decodes an array of positions.
func (m *PositionMap) UnmarshalJSON(data []byte) error {
	var positions []Position
	if err := json.Unmarshal(data, &positions); err != nil {
		return err
	}
	*m = NewPositionMap(positions...)
	return nil
}
