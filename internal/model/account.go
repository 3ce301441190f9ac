package model

import "time"

// Account represents a billable tenant of the platform.
type Account struct {
	ID                 string    `db:"id" json:"id"`
	Name               string    `db:"name" json:"name"`
	Email              string    `db:"email" json:"email"`
	BalanceCents       int64     `db:"balance_cents" json:"balance_cents"`
	LifetimeSpendCents int64     `db:"lifetime_spend_cents" json:"lifetime_spend_cents"`
	StripeCustomerID   *string   `db:"stripe_customer_id" json:"stripe_customer_id,omitempty"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

// PhoneNumber is a provisioned number owned by an account.
type PhoneNumber struct {
	Number     string    `db:"number" json:"number"`
	AccountID  string    `db:"account_id" json:"account_id"`
	Active     bool      `db:"active" json:"active"`
	SMSEnabled bool      `db:"sms_enabled" json:"sms_enabled"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
