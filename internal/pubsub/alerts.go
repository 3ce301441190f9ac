package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// BalanceAlert notifies downstream consumers (email, in-app notifications)
// that an account's wallet has run out.
type BalanceAlert struct {
	AccountID    string    `json:"account_id"`
	BalanceCents int64     `json:"balance_cents"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// AlertPublisher publishes balance alerts to a fixed topic.
type AlertPublisher struct {
	pub   Publisher
	topic string
}

// NewAlertPublisher wraps a Publisher with the alert topic.
func NewAlertPublisher(pub Publisher, topic string) *AlertPublisher {
	return &AlertPublisher{pub: pub, topic: topic}
}

// LowBalance publishes a funds-exhausted alert for the account.
func (a *AlertPublisher) LowBalance(ctx context.Context, accountID string, balanceCents int64) error {
	payload, err := json.Marshal(BalanceAlert{
		AccountID:    accountID,
		BalanceCents: balanceCents,
		OccurredAt:   time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal balance alert: %w", err)
	}
	if _, err := a.pub.Publish(ctx, a.topic, payload); err != nil {
		return fmt.Errorf("publish balance alert for account %s: %w", accountID, err)
	}
	return nil
}
