package renewal

import (
	"context"
	"time"

	"app/internal/model"
	"app/internal/repository"

	"github.com/rs/zerolog"
)

// periodLength is how long one quota period lasts before a fresh row
// supersedes it.
const periodLength = 31 * 24 * time.Hour

// Run periodically inserts fresh subscription-usage rows for accounts whose
// current period has lapsed. Old rows are superseded, never deleted, so the
// audit trail of past periods stays intact.
func Run(ctx context.Context, logger zerolog.Logger, usage repository.UsageRepository, interval time.Duration) error {
	logger.Info().Dur("interval", interval).Msg("Starting renewal worker")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// First sweep immediately on startup.
	sweep(ctx, logger, usage)
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("Shutting down renewal worker")
			return nil
		case <-ticker.C:
			sweep(ctx, logger, usage)
		}
	}
}

func sweep(ctx context.Context, logger zerolog.Logger, usage repository.UsageRepository) {
	cutoff := time.Now().Add(-periodLength)
	for _, kind := range []model.ResourceKind{model.ResourceCallMinutes, model.ResourceSMSSegments} {
		lapsed, err := usage.ListLapsedAccounts(ctx, kind, cutoff)
		if err != nil {
			logger.Error().Err(err).Str("resource", string(kind)).Msg("Failed to list lapsed accounts")
			continue
		}
		for _, la := range lapsed {
			if err := usage.CreatePeriod(ctx, la.AccountID, kind, la.QuotaLimit); err != nil {
				logger.Error().Err(err).
					Str("account_id", la.AccountID).
					Str("resource", string(kind)).
					Msg("Failed to renew quota period")
				continue
			}
			logger.Info().
				Str("account_id", la.AccountID).
				Str("resource", string(kind)).
				Int64("quota_limit", la.QuotaLimit).
				Msg("Renewed quota period")
		}
	}
}
