package di

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/fundops/compliance-engine/internal/compliance/alertregistry"
	"github.com/fundops/compliance-engine/internal/compliance/tradeservice"
	"github.com/fundops/compliance-engine/internal/config"
	"github.com/fundops/compliance-engine/internal/database"
	"github.com/fundops/compliance-engine/internal/database/repositories"
	"github.com/fundops/compliance-engine/internal/scheduler"
)

// registerJobs builds the Scheduler and attaches every background job on
// its configured cadence. The scheduler is returned unstarted; cmd/server
// decides when to call Start.
func registerJobs(
	ctx context.Context,
	cfg *config.Config,
	db *database.DB,
	funds *repositories.FundRepository,
	securities *repositories.SecurityRepository,
	desk *tradeservice.Service,
	registry *alertregistry.Registry,
	log zerolog.Logger,
) (*scheduler.Scheduler, error) {
	sched := scheduler.New(log)

	sweepJob := scheduler.NewPortfolioSweepJob(funds, desk, log)
	if err := sched.AddJob(everySeconds(cfg.PortfolioSweepInterval), sweepJob); err != nil {
		return nil, err
	}

	walJob := scheduler.NewWALCheckpointJob(db, log)
	if err := sched.AddJob(everySeconds(cfg.WALCheckpointInterval), walJob); err != nil {
		return nil, err
	}

	staleJob := scheduler.NewStalePriceDetectorJob(securities, cfg.PriceStalenessWindow, log)
	if err := sched.AddJob("@every 15m", staleJob); err != nil {
		return nil, err
	}

	if cfg.AuditArchivalEnabled && cfg.AuditArchivalBucket != "" {
		archivalJob, err := scheduler.NewAuditArchivalJob(ctx, registry, cfg.AuditArchivalBucket, cfg.AuditArchivalRegion, log)
		if err != nil {
			return nil, err
		}
		schedule := dailyAt(cfg.AuditArchivalHour)
		if err := sched.AddJob(schedule, archivalJob); err != nil {
			return nil, err
		}
	} else {
		log.Info().Msg("audit archival disabled or no bucket configured, skipping job registration")
	}

	return sched, nil
}

// everySeconds converts a duration into a robfig/cron "@every" expression.
func everySeconds(d time.Duration) string {
	return "@every " + d.String()
}

// dailyAt builds a seconds-precision cron expression firing once a day at
// the given hour (0-23), minute and second zero.
func dailyAt(hour int) string {
	return fmt.Sprintf("0 0 %d * * *", hour)
}
