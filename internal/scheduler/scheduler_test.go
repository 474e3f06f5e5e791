package scheduler

import (
	"context"
	"database/sql"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"

	"github.com/fundops/compliance-engine/internal/compliance/alertregistry"
	"github.com/fundops/compliance-engine/internal/compliance/priceoracle"
	"github.com/fundops/compliance-engine/internal/compliance/ruleengine"
	"github.com/fundops/compliance-engine/internal/compliance/staging"
	"github.com/fundops/compliance-engine/internal/compliance/tradeservice"
	"github.com/fundops/compliance-engine/internal/compliance/writer"
	"github.com/fundops/compliance-engine/internal/database"
	"github.com/fundops/compliance-engine/internal/database/repositories"
	"github.com/fundops/compliance-engine/internal/events"
)

type countingJob struct {
	name string
	runs int32
}

func (j *countingJob) Name() string { return j.name }
func (j *countingJob) Run(ctx context.Context) error {
	atomic.AddInt32(&j.runs, 1)
	return nil
}

func TestScheduler_RunNowExecutesJobImmediately(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{name: "test_job"}

	require.NoError(t, s.RunNow(context.Background(), job))

	assert.EqualValues(t, 1, atomic.LoadInt32(&job.runs))
}

func TestScheduler_AddJobRunsOnSchedule(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{name: "every_second"}

	require.NoError(t, s.AddJob("@every 1s", job))
	s.Start()
	defer s.Stop()

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&job.runs) >= 1
	}, 3*time.Second, 50*time.Millisecond)
}

func TestScheduler_AddJobRejectsInvalidSchedule(t *testing.T) {
	s := New(zerolog.Nop())
	err := s.AddJob("not a schedule", &countingJob{name: "bad"})
	assert.Error(t, err)
}

func setupSchedulerTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
	CREATE TABLE funds (
		fund_id INTEGER PRIMARY KEY AUTOINCREMENT,
		fund_name TEXT NOT NULL UNIQUE,
		cash TEXT NOT NULL DEFAULT '0',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE TABLE issuers (
		issr_id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		gics_sector TEXT NOT NULL DEFAULT '',
		gics_industry_grp TEXT NOT NULL DEFAULT '',
		gics_industry TEXT NOT NULL DEFAULT ''
	);
	CREATE TABLE securities (
		ticker TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		type TEXT NOT NULL DEFAULT 'equity',
		shares_outstanding INTEGER,
		market_cap INTEGER,
		issr_id INTEGER NOT NULL REFERENCES issuers(issr_id),
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE TABLE securities_price (
		ticker TEXT NOT NULL REFERENCES securities(ticker),
		price_date DATE NOT NULL,
		price TEXT NOT NULL,
		PRIMARY KEY (ticker, price_date)
	);
	CREATE TABLE holdings (
		fund_id INTEGER NOT NULL REFERENCES funds(fund_id),
		ticker TEXT NOT NULL REFERENCES securities(ticker),
		shares INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (fund_id, ticker)
	);
	CREATE TABLE holdings_staging (
		fund_id INTEGER NOT NULL,
		trade_id INTEGER NOT NULL,
		ticker TEXT NOT NULL,
		shares INTEGER NOT NULL,
		PRIMARY KEY (fund_id, trade_id, ticker)
	);
	CREATE TABLE rules (
		rule_id INTEGER PRIMARY KEY AUTOINCREMENT,
		rule_name TEXT NOT NULL UNIQUE,
		denominator TEXT NOT NULL,
		threshold_pct TEXT,
		expression TEXT NOT NULL DEFAULT '',
		alert_message TEXT NOT NULL DEFAULT '',
		active INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE TABLE rules_attachments (
		rule_id INTEGER NOT NULL REFERENCES rules(rule_id),
		fund_id INTEGER NOT NULL REFERENCES funds(fund_id),
		PRIMARY KEY (rule_id, fund_id)
	);
	CREATE TABLE trades (
		trade_id INTEGER PRIMARY KEY AUTOINCREMENT,
		fund_id INTEGER NOT NULL REFERENCES funds(fund_id),
		ticker TEXT NOT NULL REFERENCES securities(ticker),
		direction TEXT NOT NULL,
		shares INTEGER NOT NULL,
		price TEXT,
		total_value TEXT,
		status TEXT NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE TABLE alerts (
		alert_id INTEGER PRIMARY KEY AUTOINCREMENT,
		rule_id INTEGER NOT NULL REFERENCES rules(rule_id),
		fund_id INTEGER NOT NULL REFERENCES funds(fund_id),
		trade_id INTEGER,
		calculated_percentage TEXT,
		holdings_triggered TEXT NOT NULL DEFAULT '[]',
		status TEXT NOT NULL,
		override_reason TEXT,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	`)
	require.NoError(t, err)
	return db
}

func TestStalePriceDetectorJob_RunSucceedsRegardlessOfStaleness(t *testing.T) {
	db := setupSchedulerTestDB(t)
	log := zerolog.Nop()
	securities := repositories.NewSecurityRepository(db, log)

	_, err := db.Exec(`INSERT INTO issuers (name) VALUES ('Acme Corp')`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO securities (ticker, name, issr_id) VALUES ('ACME', 'Acme Corp', 1)`)
	require.NoError(t, err)

	job := NewStalePriceDetectorJob(securities, 24*time.Hour, log)
	assert.Equal(t, "stale_price_detector", job.Name())
	require.NoError(t, job.Run(context.Background()))
}

func TestPortfolioSweepJob_RunSweepsEveryFund(t *testing.T) {
	db := setupSchedulerTestDB(t)
	log := zerolog.Nop()

	funds := repositories.NewFundRepository(db, log)
	securities := repositories.NewSecurityRepository(db, log)
	holdings := repositories.NewHoldingRepository(db, log)
	rules := repositories.NewRuleRepository(db, log)
	tradeRepo := repositories.NewTradeRepository(db, log)
	alertRepo := repositories.NewAlertRepository(db, log)
	ruleEngineRepo := repositories.NewRuleEngineRepository(db, log)

	oracle := priceoracle.New(securities)
	projector := staging.New(holdings)
	engine := ruleengine.New(ruleEngineRepo)
	alerts := alertregistry.New(alertRepo)
	w := writer.New(repositories.NewTxManager(db), repositories.NewWriterRepository(holdings, funds, tradeRepo))
	bus := events.NewManager()
	trades := tradeservice.New(funds, securities, holdings, tradeRepo, rules, oracle, projector, engine, alerts, w, bus, log)

	_, err := db.Exec(`INSERT INTO funds (fund_name, cash) VALUES ('Sweep Fund', '50000.00')`)
	require.NoError(t, err)

	job := NewPortfolioSweepJob(funds, trades, log)
	assert.Equal(t, "portfolio_sweep", job.Name())
	require.NoError(t, job.Run(context.Background()))
}

func TestWALCheckpointJob_RunCheckpointsCleanly(t *testing.T) {
	dir := t.TempDir()
	db, err := database.New(database.Config{
		Path:    dir + "/test.db",
		Profile: database.ProfileStandard,
		Name:    "scheduler_test",
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	job := NewWALCheckpointJob(db, zerolog.Nop())
	assert.Equal(t, "wal_checkpoint", job.Name())
	require.NoError(t, job.Run(context.Background()))
}
