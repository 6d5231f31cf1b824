package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"klendrisk/native/lending"
	"klendrisk/native/lending/snapshot"
)

var (
	ErrMarketNotFound     = errors.New("registry: market not loaded")
	ErrObligationNotFound = errors.New("registry: obligation not loaded")
	ErrInvalidSnapshot    = errors.New("registry: invalid snapshot")
)

// Entry is one loaded market snapshot. Entries are immutable once published.
type Entry struct {
	Market      *lending.Market
	Slot        uint64
	Digest      string
	LoadedAt    time.Time
	obligations map[lending.Address]lending.ObligationState
}

// Obligations returns the sorted obligation addresses in the snapshot.
func (e *Entry) Obligations() []lending.Address {
	out := make([]lending.Address, 0, len(e.obligations))
	for addr := range e.obligations {
		out = append(out, addr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Summary describes a loaded market.
type Summary struct {
	Market      lending.Address `json:"market"`
	Name        string          `json:"name,omitempty"`
	Slot        uint64          `json:"slot"`
	Reserves    int             `json:"reserves"`
	Obligations int             `json:"obligations"`
	Digest      string          `json:"digest"`
	LoadedAt    time.Time       `json:"loadedAt"`
}

// Registry holds the active snapshot of every market. Readers see either the
// old or the new snapshot of a market, never a mix.
type Registry struct {
	mu      sync.RWMutex
	markets map[lending.Address]*Entry
	now     func() time.Time
}

func New() *Registry {
	return &Registry{markets: make(map[lending.Address]*Entry), now: time.Now}
}

// Build validates snap and prepares an entry without publishing it.
func (r *Registry) Build(snap *snapshot.Snapshot) (*Entry, error) {
	if snap == nil {
		return nil, fmt.Errorf("%w: nil snapshot", ErrInvalidSnapshot)
	}
	market, err := snap.Build()
	if err != nil {
		return nil, err
	}
	digest, err := snap.Digest()
	if err != nil {
		return nil, fmt.Errorf("registry: digest: %w", err)
	}
	obligations := make(map[lending.Address]lending.ObligationState, len(snap.Obligations))
	for _, o := range snap.Obligations {
		if o.LendingMarket != "" && o.LendingMarket != market.Address() {
			return nil, fmt.Errorf("%w: obligation %s belongs to market %s", ErrInvalidSnapshot, o.Address, o.LendingMarket)
		}
		obligations[o.Address] = o.Clone()
	}
	return &Entry{
		Market:      market,
		Slot:        snap.Slot,
		Digest:      digest,
		LoadedAt:    r.now().UTC(),
		obligations: obligations,
	}, nil
}

// Publish swaps the entry in and returns the one it replaced, if any.
func (r *Registry) Publish(entry *Entry) *Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	addr := entry.Market.Address()
	previous := r.markets[addr]
	r.markets[addr] = entry
	return previous
}

// Put builds and publishes snap.
func (r *Registry) Put(snap *snapshot.Snapshot) (*Entry, error) {
	entry, err := r.Build(snap)
	if err != nil {
		return nil, err
	}
	r.Publish(entry)
	return entry, nil
}

// Get returns the active entry of a market.
func (r *Registry) Get(market lending.Address) (*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.markets[market]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMarketNotFound, market)
	}
	return entry, nil
}

// Market implements the engine state lookup.
func (r *Registry) Market(market lending.Address) (*lending.Market, error) {
	entry, err := r.Get(market)
	if err != nil {
		return nil, err
	}
	return entry.Market, nil
}

// ObligationState implements the engine state lookup.
func (r *Registry) ObligationState(market, obligation lending.Address) (lending.ObligationState, error) {
	entry, err := r.Get(market)
	if err != nil {
		return lending.ObligationState{}, err
	}
	state, ok := entry.obligations[obligation]
	if !ok {
		return lending.ObligationState{}, fmt.Errorf("%w: %s", ErrObligationNotFound, obligation)
	}
	return state.Clone(), nil
}

// List summarises every loaded market ordered by address.
func (r *Registry) List() []Summary {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Summary, 0, len(r.markets))
	for addr, entry := range r.markets {
		out = append(out, Summary{
			Market:      addr,
			Name:        entry.Market.State().Name,
			Slot:        entry.Slot,
			Reserves:    len(entry.Market.Reserves()),
			Obligations: len(entry.obligations),
			Digest:      entry.Digest,
			LoadedAt:    entry.LoadedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Market < out[j].Market })
	return out
}
