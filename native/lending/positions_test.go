package lending

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPositionMapSetIsCopyOnWrite(t *testing.T) {
	base := NewPositionMap(
		Position{Reserve: reserveA, Mint: mintA, Amount: dec("1"), MarketValue: dec("1")},
	)
	next := base.Set(Position{Reserve: reserveB, Mint: mintB, Amount: dec("2"), MarketValue: dec("2")})
	updated := next.Set(Position{Reserve: reserveA, Mint: mintA, Amount: dec("3"), MarketValue: dec("3")})

	require.Equal(t, 1, base.Len())
	require.Equal(t, 2, next.Len())
	require.Equal(t, []Address{reserveA, reserveB}, updated.Keys())

	p, _ := base.Get(reserveA)
	requireDecimal(t, dec("1"), p.Amount)
	p, _ = next.Get(reserveA)
	requireDecimal(t, dec("1"), p.Amount)
	p, _ = updated.Get(reserveA)
	requireDecimal(t, dec("3"), p.Amount)

	keys := updated.Keys()
	keys[0] = "mutated"
	require.Equal(t, reserveA, updated.Keys()[0])
}

func TestPositionMapByMintReturnsLastMatch(t *testing.T) {
	m := NewPositionMap(
		Position{Reserve: reserveA, Mint: mintA, Amount: dec("1")},
		Position{Reserve: reserveC, Mint: mintA, Amount: dec("7")},
	)
	p, ok := m.ByMint(mintA)
	require.True(t, ok)
	require.Equal(t, reserveC, p.Reserve)

	_, ok = m.ByMint(mintB)
	require.False(t, ok)

	var empty PositionMap
	require.Zero(t, empty.Len())
	_, ok = empty.Get(reserveA)
	require.False(t, ok)
	require.Equal(t, 1, empty.Set(Position{Reserve: reserveA}).Len())
}

func TestPositionMapJSONKeepsOrder(t *testing.T) {
	m := NewPositionMap(
		Position{Reserve: reserveC, Mint: mintC, Amount: dec("1"), MarketValue: dec("0.5")},
		Position{Reserve: reserveA, Mint: mintA, Amount: dec("2"), MarketValue: dec("4")},
	)
	raw, err := json.Marshal(m)
	require.NoError(t, err)

	var decoded PositionMap
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Equal(t, []Address{reserveC, reserveA}, decoded.Keys())
	p, ok := decoded.Get(reserveA)
	require.True(t, ok)
	requireDecimal(t, dec("4"), p.MarketValue)
}
