package guard

import (
	"context"
	"encoding/json"
	"time"

	"app/internal/config"
	"app/internal/pgmq"
	"app/internal/service"

	"github.com/rs/zerolog"
)

// Run consumes guard jobs from the pgmq queue and halts provider-side spend
// for each. Jobs are deleted once processed; the guard itself is best-effort,
// so a job is never retried after its strategies ran.
func Run(ctx context.Context, logger zerolog.Logger, cfg *config.Config, client *pgmq.Client, campaignGuard service.CampaignGuard) error {
	queue := cfg.GuardQueueName
	logger.Info().Str("queue", queue).Msg("Starting guard worker")
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("Shutting down guard worker")
			return nil
		default:
		}

		msgs, err := client.ReadWithPoll(ctx, queue, cfg.GuardPollTimeoutSec, cfg.GuardPollMaxMsg)
		if err != nil {
			logger.Error().Err(err).Msg("Error reading guard queue")
			time.Sleep(time.Second)
			continue
		}
		if len(msgs) == 0 {
			continue
		}

		for _, msg := range msgs {
			var job service.GuardJob
			if err := json.Unmarshal(msg.Data, &job); err != nil {
				logger.Error().Err(err).Int64("msg_id", msg.ID).Msg("Failed to unmarshal guard job; deleting message")
				_ = client.Delete(ctx, queue, []int64{msg.ID})
				continue
			}

			logger.Info().
				Int64("msg_id", msg.ID).
				Str("account_id", job.AccountID).
				Str("number", job.Number).
				Msg("Processing guard job")
			campaignGuard.HaltSpend(ctx, job.AccountID, job.Number)

			if err := client.Delete(ctx, queue, []int64{msg.ID}); err != nil {
				logger.Error().Err(err).Int64("msg_id", msg.ID).Msg("Failed to delete guard job")
			}
		}
	}
}
