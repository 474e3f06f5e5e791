package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/fundops/compliance-engine/internal/domain"
)

func (s *Server) handleSearchSecurities(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	securities, err := s.deps.Securities.Search(r.Context(), query)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, securities)
}

// securityDetail is a Security plus its issuer and current price.
type securityDetail struct {
	domain.Security
	Issuer *domain.Issuer   `json:"issuer,omitempty"`
	Price  *decimal.Decimal `json:"price,omitempty"`
}

func (s *Server) handleSecurityDetail(w http.ResponseWriter, r *http.Request) {
	ticker := chi.URLParam(r, "ticker")
	security, err := s.deps.Securities.Get(r.Context(), ticker)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if security == nil {
		s.respondError(w, domain.NewNotFoundError("security", ticker))
		return
	}

	detail := securityDetail{Security: *security}

	issuer, err := s.deps.Securities.GetIssuer(r.Context(), security.IssuerID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	detail.Issuer = issuer

	price, err := s.deps.Oracle.LatestPrice(r.Context(), ticker)
	if err != nil {
		s.respondError(w, err)
		return
	}
	detail.Price = price

	s.respondJSON(w, http.StatusOK, detail)
}
