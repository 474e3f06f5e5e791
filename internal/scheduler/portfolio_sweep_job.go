package scheduler

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/fundops/compliance-engine/internal/compliance/tradeservice"
	"github.com/fundops/compliance-engine/internal/database/repositories"
)

// PortfolioSweepJob re-evaluates every active rule against every fund's
// resting portfolio, independent of any trade. It catches drift a trade
// never causes directly: a security downgrade, an issuer merger, or a
// rule newly attached to a fund that already breaches it.
type PortfolioSweepJob struct {
	funds  *repositories.FundRepository
	trades *tradeservice.Service
	log    zerolog.Logger
}

// NewPortfolioSweepJob builds a PortfolioSweepJob.
func NewPortfolioSweepJob(funds *repositories.FundRepository, trades *tradeservice.Service, log zerolog.Logger) *PortfolioSweepJob {
	return &PortfolioSweepJob{
		funds:  funds,
		trades: trades,
		log:    log.With().Str("job", "portfolio_sweep").Logger(),
	}
}

func (j *PortfolioSweepJob) Name() string { return "portfolio_sweep" }

func (j *PortfolioSweepJob) Run(ctx context.Context) error {
	funds, err := j.funds.List(ctx)
	if err != nil {
		return err
	}

	alerted := 0
	for _, fund := range funds {
		results, err := j.trades.RunPortfolioCompliance(ctx, fund.FundID)
		if err != nil {
			j.log.Error().Err(err).Int64("fund_id", fund.FundID).Msg("portfolio sweep failed for fund")
			continue
		}
		for _, r := range results {
			if r.Alerted {
				alerted++
			}
		}
	}

	j.log.Info().Int("funds_swept", len(funds)).Int("alerts_raised", alerted).Msg("portfolio sweep completed")
	return nil
}
