// Package server provides the HTTP surface for the compliance engine: fund,
// security, trade, rule and alert endpoints, a live alert websocket stream,
// and a liveness/readiness health check.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/fundops/compliance-engine/internal/compliance/alertregistry"
	"github.com/fundops/compliance-engine/internal/compliance/priceoracle"
	"github.com/fundops/compliance-engine/internal/compliance/ruleengine"
	"github.com/fundops/compliance-engine/internal/compliance/staging"
	"github.com/fundops/compliance-engine/internal/compliance/tradeservice"
	"github.com/fundops/compliance-engine/internal/config"
	"github.com/fundops/compliance-engine/internal/database/repositories"
	"github.com/fundops/compliance-engine/internal/events"
)

// Dependencies is everything the HTTP layer needs, wired by internal/di.
type Dependencies struct {
	Funds      *repositories.FundRepository
	Securities *repositories.SecurityRepository
	Holdings   *repositories.HoldingRepository
	Rules      *repositories.RuleRepository
	TradeRepo  *repositories.TradeRepository
	RuleEngine *ruleengine.Engine
	Staging    *staging.Projector
	Oracle     *priceoracle.Oracle
	Trades     *tradeservice.Service
	Alerts     *alertregistry.Registry
	Bus        *events.Manager
}

// Config holds server configuration.
type Config struct {
	Log     zerolog.Logger
	Cfg     *config.Config
	Deps    Dependencies
	Port    int
	DevMode bool
}

// Server is the compliance engine's HTTP server.
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger
	cfg    *config.Config
	deps   Dependencies
}

// New builds a Server, wiring middleware and routes.
func New(c Config) *Server {
	s := &Server{
		router: chi.NewRouter(),
		log:    c.Log.With().Str("component", "server").Logger(),
		cfg:    c.Cfg,
		deps:   c.Deps,
	}

	s.setupMiddleware(c.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", c.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/system/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/funds", func(r chi.Router) {
			r.Get("/", s.handleListFunds)
			r.Get("/{fundID}", s.handleFundSummary)
			r.Get("/{fundID}/holdings", s.handleFundHoldings)
			r.Get("/{fundID}/assets", s.handleFundAssets)
			r.Post("/{fundID}/portfolio-compliance", s.handleRunPortfolioCompliance)
		})

		r.Route("/securities", func(r chi.Router) {
			r.Get("/", s.handleSearchSecurities)
			r.Get("/{ticker}", s.handleSecurityDetail)
		})

		r.Route("/trades", func(r chi.Router) {
			r.Post("/", s.handleSubmitTrade)
			r.Get("/{tradeID}", s.handleGetTrade)
			r.Post("/{tradeID}/override", s.handleOverrideTrade)
			r.Post("/{tradeID}/cancel", s.handleCancelTrade)
		})

		r.Route("/rules", func(r chi.Router) {
			r.Get("/", s.handleListRules)
			r.Post("/", s.handleCreateRule)
			r.Get("/{ruleID}", s.handleGetRule)
			r.Put("/{ruleID}", s.handleUpdateRule)
			r.Delete("/{ruleID}", s.handleDeleteRule)
			r.Post("/{ruleID}/attachments", s.handleAttachRule)
			r.Delete("/{ruleID}/attachments", s.handleDetachRule)
			r.Post("/{ruleID}/dry-run", s.handleDryRunRule)
		})

		r.Route("/alerts", func(r chi.Router) {
			r.Get("/", s.handleListAlerts)
			r.Get("/summary", s.handleAlertsSummary)
			r.Get("/{alertID}", s.handleGetAlert)
			r.Post("/{alertID}/override", s.handleOverrideAlert)
			r.Post("/{alertID}/cancel", s.handleCancelAlert)
		})
	})

	s.router.Get("/ws/alerts", s.handleAlertsStream)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}

// Start begins serving HTTP traffic; blocks until the server stops.
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("shutting down HTTP server")
	return s.server.Shutdown(ctx)
}
