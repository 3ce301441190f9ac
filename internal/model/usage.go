package model

import "time"

// ResourceKind identifies a metered resource type.
type ResourceKind string

const (
	ResourceCallMinutes ResourceKind = "call_minutes"
	ResourceSMSSegments ResourceKind = "sms_segments"
)

// SubscriptionPlan describes a plan and the quotas it grants per period.
type SubscriptionPlan struct {
	ID                  string `db:"id" json:"id"`
	Name                string `db:"name" json:"name"`
	PriceCents          int64  `db:"price_cents" json:"price_cents"`
	BillingPeriod       string `db:"billing_period" json:"billing_period"`
	IncludedCallMinutes int64  `db:"included_call_minutes" json:"included_call_minutes"`
	IncludedSMSSegments int64  `db:"included_sms_segments" json:"included_sms_segments"`
}

// SubscriptionUsage is one quota counter for an account, resource kind and
// billing period. A new row supersedes the old one when a period renews;
// rows are never deleted. The current row is the most recent by created_at.
type SubscriptionUsage struct {
	ID         string       `db:"id" json:"id"`
	AccountID  string       `db:"account_id" json:"account_id"`
	Resource   ResourceKind `db:"resource_kind" json:"resource_kind"`
	QuotaLimit int64        `db:"quota_limit" json:"quota_limit"`
	QuotaUsed  int64        `db:"quota_used" json:"quota_used"`
	CreatedAt  time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time    `db:"updated_at" json:"updated_at"`
}

// AvailableQuota returns the units still covered by the subscription.
func (u *SubscriptionUsage) AvailableQuota() int64 {
	if u == nil {
		return 0
	}
	if remaining := u.QuotaLimit - u.QuotaUsed; remaining > 0 {
		return remaining
	}
	return 0
}

// UsageEvent statuses.
const (
	EventStatusBilled     = "billed"
	EventStatusPartial    = "partial"    // quota applied but the balance write failed
	EventStatusUnresolved = "unresolved" // counterpart number not in the registry
)

// UsageEvent is the immutable audit record of one billed occurrence.
// AccountID is nil for unresolved-number anomalies.
type UsageEvent struct {
	ID              string       `db:"id" json:"id"`
	AccountID       *string      `db:"account_id" json:"account_id,omitempty"`
	Counterpart     string       `db:"counterpart" json:"counterpart"`
	Resource        ResourceKind `db:"resource_kind" json:"resource_kind"`
	RawQuantity     int64        `db:"raw_quantity" json:"raw_quantity"`
	UnitsFromQuota  int64        `db:"units_from_quota" json:"units_from_quota"`
	UnitsPaid       int64        `db:"units_paid" json:"units_paid"`
	BilledCostCents int64        `db:"billed_cost_cents" json:"billed_cost_cents"`
	Status          string       `db:"status" json:"status"`
	Payload         []byte       `db:"payload" json:"payload,omitempty"`
	CreatedAt       time.Time    `db:"created_at" json:"created_at"`
}

// PricedQuantity is the transient result of one reconciliation. It is never
// persisted; the ingestion handler folds it into the UsageEvent it writes.
type PricedQuantity struct {
	TotalUnits      int64
	UnitsFromQuota  int64
	UnitsToPay      int64
	CostCents       int64
	NewBalanceCents int64
	// QuotaExhausted is true when part of the usage had to be wallet-billed.
	QuotaExhausted bool
	// FundsExhausted is true when the wallet was charged and the resulting
	// balance is zero or negative. Only meaningful when UnitsToPay > 0.
	FundsExhausted bool
}

// Campaign is an outbound-calling batch job tracked against the provider.
type Campaign struct {
	ID             string    `db:"id" json:"id"`
	AccountID      string    `db:"account_id" json:"account_id"`
	Number         string    `db:"number" json:"number"`
	ProviderListID string    `db:"provider_list_id" json:"provider_list_id"`
	Status         string    `db:"status" json:"status"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}
