package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"klendrisk/native/lending"
	"klendrisk/services/riskd/registry"
)

type obligationResponse struct {
	Market            lending.Address         `json:"market"`
	Obligation        lending.Address         `json:"obligation"`
	Owner             lending.Address         `json:"owner"`
	Slot              uint64                  `json:"slot"`
	ElevationGroup    uint32                  `json:"elevationGroup"`
	NumberOfPositions int                     `json:"numberOfPositions"`
	Stats             lending.ObligationStats `json:"stats"`
	Deposits          lending.PositionMap     `json:"deposits"`
	Borrows           lending.PositionMap     `json:"borrows"`
}

type amountResponse struct {
	Market     lending.Address `json:"market"`
	Obligation lending.Address `json:"obligation"`
	Mint       lending.Address `json:"mint"`
	Slot       uint64          `json:"slot"`
	Group      *uint32         `json:"elevationGroup,omitempty"`
	Amount     decimal.Decimal `json:"amount"`
}

type simulateRequest struct {
	lending.ActionRequest
	Slot *uint64 `json:"slot,omitempty"`
}

type groupLiquidity struct {
	Group     uint32          `json:"elevationGroup"`
	Available decimal.Decimal `json:"liquidityAvailable"`
}

type capsResponse struct {
	Reserve   lending.Address    `json:"reserve"`
	Caps      lending.BorrowCaps `json:"caps"`
	Liquidity []groupLiquidity   `json:"liquidity"`
}

// query resolves the market entry and common parameters of an obligation
// route.
func (s *Server) query(r *http.Request, withMint, withGroup bool) (lending.Query, *registry.Entry, error) {
	market := pathAddress(r, "market")
	entry, err := s.registry.Get(market)
	if err != nil {
		return lending.Query{}, nil, err
	}
	q := lending.Query{Market: market, Obligation: pathAddress(r, "obligation")}
	if q.Slot, err = slotParam(r, entry); err != nil {
		return lending.Query{}, nil, err
	}
	if withMint {
		if q.Mint, err = mintParam(r); err != nil {
			return lending.Query{}, nil, err
		}
	}
	if withGroup {
		if q.Group, err = groupParam(r); err != nil {
			return lending.Query{}, nil, err
		}
	}
	return q, entry, nil
}

func (s *Server) handleListMarkets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"markets": s.registry.List()})
}

func (s *Server) handleMarketGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := s.engine.ElevationGroups(pathAddress(r, "market"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"elevationGroups": groups})
}

func (s *Server) handleReserve(w http.ResponseWriter, r *http.Request) {
	market := pathAddress(r, "market")
	entry, err := s.registry.Get(market)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	slot, err := slotParam(r, entry)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	summary, err := s.engine.ReserveSummary(market, pathAddress(r, "reserve"), slot)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleReserveCaps(w http.ResponseWriter, r *http.Request) {
	groups, err := groupsParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	reserve := pathAddress(r, "reserve")
	caps, available, err := s.engine.ReserveCaps(pathAddress(r, "market"), reserve, groups)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	liquidity := make([]groupLiquidity, len(groups))
	for i, group := range groups {
		liquidity[i] = groupLiquidity{Group: group, Available: available[i]}
	}
	writeJSON(w, http.StatusOK, capsResponse{Reserve: reserve, Caps: caps, Liquidity: liquidity})
}

func (s *Server) handleObligation(w http.ResponseWriter, r *http.Request) {
	q, entry, err := s.query(r, false, false)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	_, o, err := s.engine.Obligation(q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if s.store != nil {
		if _, err := s.store.RecordStats(r.Context(), q.Market, entry.Digest, o); err != nil {
			s.logError(r.Context(), "persist obligation stats", err,
				slog.String("obligation", q.Obligation.String()), ownerAttr(o.Owner()))
		}
	}
	writeJSON(w, http.StatusOK, obligationResponse{
		Market:            q.Market,
		Obligation:        o.Address(),
		Owner:             o.Owner(),
		Slot:              o.Slot(),
		ElevationGroup:    o.ElevationGroup(),
		NumberOfPositions: o.NumberOfPositions(),
		Stats:             o.Stats(),
		Deposits:          o.Deposits(),
		Borrows:           o.Borrows(),
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, r, errPersistenceDisabled)
		return
	}
	limit, err := limitParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	records, err := s.store.StatsHistory(r.Context(), pathAddress(r, "market"), pathAddress(r, "obligation"), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": records})
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	q, _, err := s.query(r, false, false)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req simulateRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: decode body: %v", errBadRequest, err))
		return
	}
	action, err := req.Decode()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Slot != nil {
		q.Slot = *req.Slot
	}
	result, err := s.engine.Simulate(q, action)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"market":     q.Market,
		"obligation": q.Obligation,
		"slot":       q.Slot,
		"action":     lending.Request(action),
		"result":     result,
	})
}

func (s *Server) handleAmount(w http.ResponseWriter, r *http.Request, withGroup bool, fn func(lending.Query) (decimal.Decimal, error)) {
	q, _, err := s.query(r, true, withGroup)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	amount, err := fn(q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, amountResponse{
		Market:     q.Market,
		Obligation: q.Obligation,
		Mint:       q.Mint,
		Slot:       q.Slot,
		Group:      q.Group,
		Amount:     amount,
	})
}

func (s *Server) handleBorrowPower(w http.ResponseWriter, r *http.Request) {
	s.handleAmount(w, r, true, s.engine.BorrowPower)
}

func (s *Server) handleMaxBorrow(w http.ResponseWriter, r *http.Request) {
	s.handleAmount(w, r, true, s.engine.MaxBorrowAmount)
}

func (s *Server) handleMaxWithdraw(w http.ResponseWriter, r *http.Request) {
	s.handleAmount(w, r, false, s.engine.MaxWithdrawAmount)
}

func (s *Server) handleObligationGroups(w http.ResponseWriter, r *http.Request) {
	q, _, err := s.query(r, false, false)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	groups, err := s.engine.ObligationGroups(q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"elevationGroups": groups})
}

func (s *Server) handleEligibility(w http.ResponseWriter, r *http.Request) {
	q, _, err := s.query(r, false, true)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	result, err := s.engine.Eligibility(q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
