package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/fundops/compliance-engine/internal/compliance/tradeservice"
	"github.com/fundops/compliance-engine/internal/domain"
)

type submitTradeRequest struct {
	FundID    int64                 `json:"fund_id"`
	Ticker    string                `json:"ticker"`
	Direction domain.TradeDirection `json:"direction"`
	Shares    int64                 `json:"shares"`
}

// tradeSubmission is the response shape for a submit/override result: the
// trade plus whatever rule results that pass evaluated, so the caller can
// show either the ALERT reasons or a clean bill on the same response.
type tradeSubmission struct {
	Trade   domain.Trade `json:"trade"`
	Results any          `json:"rule_results,omitempty"`
}

func (s *Server) handleSubmitTrade(w http.ResponseWriter, r *http.Request) {
	var req submitTradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondBadRequest(w, "invalid request body: "+err.Error())
		return
	}

	trade, results, err := s.deps.Trades.SubmitTrade(r.Context(), tradeservice.SubmitInput{
		FundID: req.FundID, Ticker: req.Ticker, Direction: req.Direction, Shares: req.Shares,
	})
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, tradeSubmission{Trade: trade, Results: results})
}

func (s *Server) tradeIDParam(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "tradeID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, domain.NewValidationError("tradeID must be an integer")
	}
	return id, nil
}

func (s *Server) handleGetTrade(w http.ResponseWriter, r *http.Request) {
	tradeID, err := s.tradeIDParam(r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	trade, err := s.deps.TradeRepo.Get(r.Context(), tradeID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if trade == nil {
		s.respondError(w, domain.NewNotFoundError("trade", tradeID))
		return
	}
	s.respondJSON(w, http.StatusOK, trade)
}

type overrideTradeRequest struct {
	// Reasons maps an alert id to its override reason. Every alert still
	// pending on this trade must be present or the override is refused.
	Reasons map[int64]string `json:"reasons"`
}

func (s *Server) handleOverrideTrade(w http.ResponseWriter, r *http.Request) {
	tradeID, err := s.tradeIDParam(r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	var req overrideTradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondBadRequest(w, "invalid request body: "+err.Error())
		return
	}
	trade, err := s.deps.Trades.Override(r.Context(), tradeID, req.Reasons)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, trade)
}

func (s *Server) handleCancelTrade(w http.ResponseWriter, r *http.Request) {
	tradeID, err := s.tradeIDParam(r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	trade, err := s.deps.Trades.Cancel(r.Context(), tradeID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, trade)
}
