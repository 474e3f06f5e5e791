package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/fundops/compliance-engine/internal/database/repositories"
	"github.com/fundops/compliance-engine/internal/domain"
)

// StalePriceDetectorJob flags securities whose latest price point has
// fallen behind the configured staleness window and logs them. The Price
// Oracle does not check staleness itself; this job and /system/health are
// where stale prices are reported.
type StalePriceDetectorJob struct {
	securities *repositories.SecurityRepository
	window     time.Duration
	log        zerolog.Logger
}

// NewStalePriceDetectorJob builds a StalePriceDetectorJob.
func NewStalePriceDetectorJob(securities *repositories.SecurityRepository, window time.Duration, log zerolog.Logger) *StalePriceDetectorJob {
	return &StalePriceDetectorJob{
		securities: securities,
		window:     window,
		log:        log.With().Str("job", "stale_price_detector").Logger(),
	}
}

func (j *StalePriceDetectorJob) Name() string { return "stale_price_detector" }

func (j *StalePriceDetectorJob) Run(ctx context.Context) error {
	cutoff := domain.Now().Add(-j.window)
	stale, err := j.securities.StaleTickers(ctx, cutoff)
	if err != nil {
		return err
	}

	if len(stale) == 0 {
		j.log.Debug().Msg("no stale tickers")
		return nil
	}

	j.log.Warn().Strs("tickers", stale).Int("count", len(stale)).Msg("tickers have stale prices")
	return nil
}
