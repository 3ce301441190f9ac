package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
)

// GuardJob is the queue payload asking the worker to halt spend for an
// account/number pair.
type GuardJob struct {
	AccountID string `json:"account_id"`
	Number    string `json:"number"`
}

// GuardDispatcher hands campaign-guard work off the webhook response path.
type GuardDispatcher interface {
	Dispatch(accountID, number string)
}

// guardQueue is the subset of the pgmq client the dispatcher needs.
type guardQueue interface {
	Send(ctx context.Context, queue string, payload []byte) error
}

type queueGuardDispatcher struct {
	queue     guardQueue
	queueName string
	guard     CampaignGuard
	timeout   time.Duration
	logger    zerolog.Logger
}

// NewGuardDispatcher dispatches guard jobs onto the pgmq queue consumed by
// the worker. When the enqueue fails (or no queue is configured) it falls
// back to running the guard in-process on a detached goroutine with a hard
// timeout, so a provider hang can never block the webhook caller.
func NewGuardDispatcher(queue guardQueue, queueName string, guard CampaignGuard, timeout time.Duration, logger zerolog.Logger) GuardDispatcher {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &queueGuardDispatcher{
		queue:     queue,
		queueName: queueName,
		guard:     guard,
		timeout:   timeout,
		logger:    logger.With().Str("service", "GuardDispatcher").Logger(),
	}
}

func (d *queueGuardDispatcher) Dispatch(accountID, number string) {
	if d.queue != nil {
		payload, err := json.Marshal(GuardJob{AccountID: accountID, Number: number})
		if err == nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err = d.queue.Send(ctx, d.queueName, payload)
			cancel()
			if err == nil {
				return
			}
		}
		d.logger.Warn().Err(err).
			Str("account_id", accountID).
			Msg("Guard enqueue failed; running guard in-process")
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		d.guard.HaltSpend(ctx, accountID, number)
	}()
}
