package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"gonum.org/v1/gonum/stat"

	"github.com/fundops/compliance-engine/internal/compliance/alertregistry"
	"github.com/fundops/compliance-engine/internal/domain"
)

func (s *Server) alertIDParam(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "alertID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, domain.NewValidationError("alertID must be an integer")
	}
	return id, nil
}

// parseFilterInt64 parses an optional int64 query parameter, returning nil
// when absent so it is excluded from the filter rather than matched as 0.
func parseFilterInt64(r *http.Request, key string) (*int64, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, domain.NewValidationError(key + " must be an integer")
	}
	return &v, nil
}

func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	fundID, err := parseFilterInt64(r, "fund_id")
	if err != nil {
		s.respondError(w, err)
		return
	}
	ruleID, err := parseFilterInt64(r, "rule_id")
	if err != nil {
		s.respondError(w, err)
		return
	}
	tradeID, err := parseFilterInt64(r, "trade_id")
	if err != nil {
		s.respondError(w, err)
		return
	}

	f := alertregistry.Filter{FundID: fundID, RuleID: ruleID, TradeID: tradeID}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := domain.AlertStatus(raw)
		f.Status = &status
	}
	if raw := r.URL.Query().Get("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			s.respondBadRequest(w, "from must be an RFC3339 timestamp")
			return
		}
		f.From = &t
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			s.respondBadRequest(w, "to must be an RFC3339 timestamp")
			return
		}
		f.To = &t
	}

	alerts, err := s.deps.Alerts.List(r.Context(), f)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, alerts)
}

// alertSummaryView is alertregistry.Summary's counters plus the mean/stddev
// of calculated percentages, computed here (not in alertregistry) to keep
// that package free of a numerics dependency.
type alertSummaryView struct {
	Pending     int     `json:"pending"`
	Overridden  int     `json:"overridden"`
	Cancelled   int     `json:"cancelled"`
	Last24Hours int     `json:"last_24_hours"`
	MeanPercent float64 `json:"mean_percent,omitempty"`
	StdDevPct   float64 `json:"stddev_percent,omitempty"`
}

func (s *Server) handleAlertsSummary(w http.ResponseWriter, r *http.Request) {
	fundID, err := parseFilterInt64(r, "fund_id")
	if err != nil {
		s.respondError(w, err)
		return
	}
	summary, err := s.deps.Alerts.Summarize(r.Context(), fundID)
	if err != nil {
		s.respondError(w, err)
		return
	}

	view := alertSummaryView{
		Pending: summary.Pending, Overridden: summary.Overridden,
		Cancelled: summary.Cancelled, Last24Hours: summary.Last24Hours,
	}
	if len(summary.Percentages) > 0 {
		mean, std := stat.MeanStdDev(summary.Percentages, nil)
		view.MeanPercent = mean
		view.StdDevPct = std
	}
	s.respondJSON(w, http.StatusOK, view)
}

func (s *Server) handleGetAlert(w http.ResponseWriter, r *http.Request) {
	alertID, err := s.alertIDParam(r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	alert, err := s.deps.Alerts.Get(r.Context(), alertID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, alert)
}

type overrideAlertRequest struct {
	Reason string `json:"reason"`
}

// handleOverrideAlert resolves a single alert directly through the
// registry, independent of the trade-level override endpoint: useful for
// portfolio-compliance alerts, which are never tied to a trade.
func (s *Server) handleOverrideAlert(w http.ResponseWriter, r *http.Request) {
	alertID, err := s.alertIDParam(r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	var req overrideAlertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondBadRequest(w, "invalid request body: "+err.Error())
		return
	}
	if err := s.deps.Alerts.Override(r.Context(), alertID, req.Reason); err != nil {
		s.respondError(w, err)
		return
	}
	alert, err := s.deps.Alerts.Get(r.Context(), alertID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, alert)
}

func (s *Server) handleCancelAlert(w http.ResponseWriter, r *http.Request) {
	alertID, err := s.alertIDParam(r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if err := s.deps.Alerts.Cancel(r.Context(), alertID); err != nil {
		s.respondError(w, err)
		return
	}
	alert, err := s.deps.Alerts.Get(r.Context(), alertID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, alert)
}
