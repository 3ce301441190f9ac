package dto

import "time"

// WalletResponseDTO is the authenticated account's wallet state together
// with the remaining quota of each metered resource.
type WalletResponseDTO struct {
	AccountID          string           `json:"account_id"`
	BalanceCents       int64            `json:"balance_cents"`
	LifetimeSpendCents int64            `json:"lifetime_spend_cents"`
	Quotas             []QuotaStatusDTO `json:"quotas"`
}

// QuotaStatusDTO is one resource's current-period quota counter.
type QuotaStatusDTO struct {
	Resource       string `json:"resource_kind"`
	QuotaLimit     int64  `json:"quota_limit"`
	QuotaUsed      int64  `json:"quota_used"`
	RemainingUnits int64  `json:"remaining_units"`
}

// UsageEventDTO is one audited billing occurrence.
type UsageEventDTO struct {
	ID              string    `json:"id"`
	Counterpart     string    `json:"counterpart"`
	Resource        string    `json:"resource_kind"`
	RawQuantity     int64     `json:"raw_quantity"`
	UnitsFromQuota  int64     `json:"units_from_quota"`
	UnitsPaid       int64     `json:"units_paid"`
	BilledCostCents int64     `json:"billed_cost_cents"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
}

// UsageHistoryResponseDTO is a page of the account's usage events.
type UsageHistoryResponseDTO struct {
	Events []UsageEventDTO `json:"events"`
}

// TopupRequestDTO asks for a Stripe Checkout session crediting the wallet.
type TopupRequestDTO struct {
	AmountCents int64 `json:"amount_cents" validate:"required,gt=0"`
}
