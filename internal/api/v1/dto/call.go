package dto

// CallCompletionDTO is the provider's call-completion webhook payload.
// DurationSeconds is a pointer so a missing field can be told apart from an
// explicit zero; both are rejected.
type CallCompletionDTO struct {
	CallerNumber    string `json:"caller_number" validate:"required"`
	CalleeNumber    string `json:"callee_number"`
	DurationSeconds *int64 `json:"duration_seconds" validate:"required"`
	RecordingURL    string `json:"recording_url,omitempty"`
	Direction       string `json:"direction"`
	Status          string `json:"status"`
}

// CallCompletionResponseDTO acknowledges an ingested call.
type CallCompletionResponseDTO struct {
	EventID        string `json:"event_id"`
	BilledMinutes  int64  `json:"billed_minutes"`
	UnitsFromQuota int64  `json:"units_from_quota"`
	UnitsPaid      int64  `json:"units_paid"`
	CostCents      int64  `json:"cost_cents"`
}
