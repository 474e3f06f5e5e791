package di

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/fundops/compliance-engine/internal/config"
	"github.com/fundops/compliance-engine/internal/database"
	"github.com/fundops/compliance-engine/internal/server"
)

// Wire builds the full dependency graph in order: database, repositories,
// compliance components, HTTP server, scheduler jobs.
func Wire(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Container, error) {
	db, err := database.New(database.Config{
		Path: filepath.Join(cfg.DataDir, "compliance.db"),
		// Trades, holdings, and alerts are the audit trail a compliance
		// desk is built to produce — fsync every write, never auto-vacuum.
		Profile: database.ProfileLedger,
		Name:    "compliance",
	})
	if err != nil {
		return nil, fmt.Errorf("di: open database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("di: migrate database: %w", err)
	}

	funds, securities, holdings, rules, trades, alerts, ruleEngineRepo, settingsRepo := initRepositories(db, log)

	if err := cfg.UpdateFromSettings(settingsRepo); err != nil {
		db.Close()
		return nil, fmt.Errorf("di: load settings overrides: %w", err)
	}

	oracle, projector, engine, registry, w, desk, bus := initCompliance(db, funds, securities, holdings, rules, trades, alerts, ruleEngineRepo, log)

	httpServer := server.New(server.Config{
		Log: log,
		Cfg: cfg,
		Deps: server.Dependencies{
			Funds:      funds,
			Securities: securities,
			Holdings:   holdings,
			Rules:      rules,
			TradeRepo:  trades,
			RuleEngine: engine,
			Staging:    projector,
			Oracle:     oracle,
			Trades:     desk,
			Alerts:     registry,
			Bus:        bus,
		},
		Port:    cfg.Port,
		DevMode: cfg.DevMode,
	})

	sched, err := registerJobs(ctx, cfg, db, funds, securities, desk, registry, log)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("di: register scheduler jobs: %w", err)
	}

	log.Info().Msg("dependency graph wired")

	return &Container{
		DB:         db,
		Funds:      funds,
		Securities: securities,
		Holdings:   holdings,
		Rules:      rules,
		Trades:     trades,
		Alerts:     alerts,
		Settings:   settingsRepo,
		Oracle:     oracle,
		Staging:    projector,
		Engine:     engine,
		Registry:   registry,
		Writer:     w,
		TradeDesk:  desk,
		Bus:        bus,
		Server:     httpServer,
		Scheduler:  sched,
	}, nil
}
