package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/fundops/compliance-engine/internal/compliance/staging"
	"github.com/fundops/compliance-engine/internal/domain"
)

func (s *Server) ruleIDParam(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "ruleID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, domain.NewValidationError("ruleID must be an integer")
	}
	return id, nil
}

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := s.deps.Rules.List(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, rules)
}

func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var rule domain.Rule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		s.respondBadRequest(w, "invalid request body: "+err.Error())
		return
	}
	created, err := s.deps.Rules.Create(r.Context(), rule)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetRule(w http.ResponseWriter, r *http.Request) {
	ruleID, err := s.ruleIDParam(r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	rule, err := s.deps.Rules.Get(r.Context(), ruleID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if rule == nil {
		s.respondError(w, domain.NewNotFoundError("rule", ruleID))
		return
	}
	s.respondJSON(w, http.StatusOK, rule)
}

func (s *Server) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	ruleID, err := s.ruleIDParam(r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	var rule domain.Rule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		s.respondBadRequest(w, "invalid request body: "+err.Error())
		return
	}
	rule.RuleID = ruleID
	updated, err := s.deps.Rules.Update(r.Context(), rule)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	ruleID, err := s.ruleIDParam(r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if err := s.deps.Rules.Delete(r.Context(), ruleID); err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

type ruleAttachmentRequest struct {
	FundID int64 `json:"fund_id"`
}

func (s *Server) handleAttachRule(w http.ResponseWriter, r *http.Request) {
	ruleID, err := s.ruleIDParam(r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	var req ruleAttachmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondBadRequest(w, "invalid request body: "+err.Error())
		return
	}
	attachment, err := s.deps.Rules.Attach(r.Context(), ruleID, req.FundID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, attachment)
}

func (s *Server) handleDetachRule(w http.ResponseWriter, r *http.Request) {
	ruleID, err := s.ruleIDParam(r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	var req ruleAttachmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondBadRequest(w, "invalid request body: "+err.Error())
		return
	}
	if err := s.deps.Rules.Detach(r.Context(), ruleID, req.FundID); err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]bool{"detached": true})
}

type dryRunRequest struct {
	FundID int64 `json:"fund_id"`
}

// dryRunTradeID offsets a fund's scratch trade-id scope for the dry-run
// path into negative space so it can never collide with a real trade-id
// (always positive, autoincrement) or the portfolio-compliance sweep's
// reserved id 0.
func dryRunTradeID(fundID int64) int64 {
	return -fundID
}

// handleDryRunRule evaluates one rule against a fund's current holdings
// (no hypothetical trade applied) without creating any Alert row, letting
// an operator preview a rule before attaching it.
func (s *Server) handleDryRunRule(w http.ResponseWriter, r *http.Request) {
	ruleID, err := s.ruleIDParam(r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	var req dryRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondBadRequest(w, "invalid request body: "+err.Error())
		return
	}

	rule, err := s.deps.Rules.Get(r.Context(), ruleID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if rule == nil {
		s.respondError(w, domain.NewNotFoundError("rule", ruleID))
		return
	}

	scratch := dryRunTradeID(req.FundID)
	if _, err := s.deps.Staging.Project(r.Context(), staging.TradeDelta{TradeID: scratch, FundID: req.FundID}); err != nil {
		s.respondError(w, err)
		return
	}
	defer s.deps.Staging.Drain(r.Context(), req.FundID, scratch)

	result, err := s.deps.RuleEngine.Evaluate(r.Context(), req.FundID, scratch, *rule)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}
