// Package di wires the compliance engine's dependency graph: the
// database, its repositories, the eight compliance components, the HTTP
// server, and the background scheduler.
package di

import (
	"github.com/rs/zerolog"

	"github.com/fundops/compliance-engine/internal/compliance/alertregistry"
	"github.com/fundops/compliance-engine/internal/compliance/priceoracle"
	"github.com/fundops/compliance-engine/internal/compliance/ruleengine"
	"github.com/fundops/compliance-engine/internal/compliance/staging"
	"github.com/fundops/compliance-engine/internal/compliance/tradeservice"
	"github.com/fundops/compliance-engine/internal/compliance/writer"
	"github.com/fundops/compliance-engine/internal/database"
	"github.com/fundops/compliance-engine/internal/database/repositories"
	"github.com/fundops/compliance-engine/internal/events"
	"github.com/fundops/compliance-engine/internal/modules/settings"
	"github.com/fundops/compliance-engine/internal/scheduler"
	"github.com/fundops/compliance-engine/internal/server"
)

// Container holds every wired dependency, kept around so cmd/server can
// shut it down cleanly.
type Container struct {
	DB *database.DB

	Funds      *repositories.FundRepository
	Securities *repositories.SecurityRepository
	Holdings   *repositories.HoldingRepository
	Rules      *repositories.RuleRepository
	Trades     *repositories.TradeRepository
	Alerts     *repositories.AlertRepository
	Settings   *settings.Repository

	Oracle     *priceoracle.Oracle
	Staging    *staging.Projector
	Engine     *ruleengine.Engine
	Registry   *alertregistry.Registry
	Writer     *writer.Writer
	TradeDesk  *tradeservice.Service
	Bus        *events.Manager

	Server    *server.Server
	Scheduler *scheduler.Scheduler
}

// Close releases everything that owns an OS resource.
func (c *Container) Close() error {
	return c.DB.Close()
}

func initRepositories(db *database.DB, log zerolog.Logger) (
	funds *repositories.FundRepository,
	securities *repositories.SecurityRepository,
	holdings *repositories.HoldingRepository,
	rules *repositories.RuleRepository,
	trades *repositories.TradeRepository,
	alerts *repositories.AlertRepository,
	ruleEngineRepo *repositories.RuleEngineRepository,
	settingsRepo *settings.Repository,
) {
	conn := db.Conn()
	funds = repositories.NewFundRepository(conn, log)
	securities = repositories.NewSecurityRepository(conn, log)
	holdings = repositories.NewHoldingRepository(conn, log)
	rules = repositories.NewRuleRepository(conn, log)
	trades = repositories.NewTradeRepository(conn, log)
	alerts = repositories.NewAlertRepository(conn, log)
	ruleEngineRepo = repositories.NewRuleEngineRepository(conn, log)
	settingsRepo = settings.NewRepository(conn, log)
	return
}

func initCompliance(
	db *database.DB,
	funds *repositories.FundRepository,
	securities *repositories.SecurityRepository,
	holdings *repositories.HoldingRepository,
	rules *repositories.RuleRepository,
	trades *repositories.TradeRepository,
	alerts *repositories.AlertRepository,
	ruleEngineRepo *repositories.RuleEngineRepository,
	log zerolog.Logger,
) (*priceoracle.Oracle, *staging.Projector, *ruleengine.Engine, *alertregistry.Registry, *writer.Writer, *tradeservice.Service, *events.Manager) {
	oracle := priceoracle.New(securities)
	projector := staging.New(holdings)
	engine := ruleengine.New(ruleEngineRepo)
	registry := alertregistry.New(alerts)
	w := writer.New(repositories.NewTxManager(db.Conn()), repositories.NewWriterRepository(holdings, funds, trades))
	bus := events.NewManager()

	desk := tradeservice.New(funds, securities, holdings, trades, rules, oracle, projector, engine, registry, w, bus, log)

	return oracle, projector, engine, registry, w, desk, bus
}
