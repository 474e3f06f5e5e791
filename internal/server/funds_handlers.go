package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/fundops/compliance-engine/internal/compliance/valuator"
	"github.com/fundops/compliance-engine/internal/domain"
)

func (s *Server) handleListFunds(w http.ResponseWriter, r *http.Request) {
	funds, err := s.deps.Funds.List(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, funds)
}

func (s *Server) fundIDParam(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "fundID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, domain.NewValidationError("fundID must be an integer")
	}
	return id, nil
}

func (s *Server) handleFundSummary(w http.ResponseWriter, r *http.Request) {
	fundID, err := s.fundIDParam(r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	fund, err := s.deps.Funds.Get(r.Context(), fundID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if fund == nil {
		s.respondError(w, domain.NewNotFoundError("fund", fundID))
		return
	}
	s.respondJSON(w, http.StatusOK, fund)
}

// holdingView is one fund holding enriched with its latest price and
// market value — nil Price/MarketValue means the position is currently
// unpriced.
type holdingView struct {
	Ticker      string           `json:"ticker"`
	Shares      int64            `json:"shares"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	MarketValue *decimal.Decimal `json:"market_value,omitempty"`
}

func (s *Server) handleFundHoldings(w http.ResponseWriter, r *http.Request) {
	fundID, err := s.fundIDParam(r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	fund, err := s.deps.Funds.Get(r.Context(), fundID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if fund == nil {
		s.respondError(w, domain.NewNotFoundError("fund", fundID))
		return
	}

	holdings, err := s.deps.Holdings.HoldingsForFund(r.Context(), fundID)
	if err != nil {
		s.respondError(w, err)
		return
	}

	views := make([]holdingView, 0, len(holdings))
	for _, h := range holdings {
		view := holdingView{Ticker: h.Ticker, Shares: h.Shares}
		price, err := s.deps.Oracle.LatestPrice(r.Context(), h.Ticker)
		if err != nil {
			s.respondError(w, err)
			return
		}
		if price != nil {
			view.Price = price
			mv := price.Mul(decimal.NewFromInt(h.Shares))
			view.MarketValue = &mv
		}
		views = append(views, view)
	}
	s.respondJSON(w, http.StatusOK, views)
}

func (s *Server) handleFundAssets(w http.ResponseWriter, r *http.Request) {
	fundID, err := s.fundIDParam(r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	fund, err := s.deps.Funds.Get(r.Context(), fundID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if fund == nil {
		s.respondError(w, domain.NewNotFoundError("fund", fundID))
		return
	}

	holdings, err := s.deps.Holdings.HoldingsForFund(r.Context(), fundID)
	if err != nil {
		s.respondError(w, err)
		return
	}

	values := make([]valuator.HoldingValue, 0, len(holdings))
	for _, h := range holdings {
		hv := valuator.HoldingValue{Ticker: h.Ticker, Shares: h.Shares}
		price, err := s.deps.Oracle.LatestPrice(r.Context(), h.Ticker)
		if err != nil {
			s.respondError(w, err)
			return
		}
		if price != nil {
			hv.Price = *price
			hv.HasPrice = true
		}
		values = append(values, hv)
	}

	s.respondJSON(w, http.StatusOK, valuator.Aggregate(fund.Cash, values))
}

func (s *Server) handleRunPortfolioCompliance(w http.ResponseWriter, r *http.Request) {
	fundID, err := s.fundIDParam(r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	results, err := s.deps.Trades.RunPortfolioCompliance(r.Context(), fundID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, results)
}
