package dto

// SMSSendDTO is an authenticated batch-send request.
type SMSSendDTO struct {
	SourceNumber       string   `json:"source_number" validate:"required"`
	DestinationNumbers []string `json:"destination_numbers" validate:"required,min=1,dive,required"`
	Text               string   `json:"text" validate:"required"`
}

// SMSRecipientDTO is the per-recipient outcome of a batch send.
type SMSRecipientDTO struct {
	Destination string `json:"destination"`
	MessageID   string `json:"message_id,omitempty"`
	Error       string `json:"error,omitempty"`
	Success     bool   `json:"success"`
}

// SMSSendResponseDTO reports per-recipient results and aggregate billing.
type SMSSendResponseDTO struct {
	Results        []SMSRecipientDTO `json:"results"`
	Sent           int               `json:"sent"`
	Failed         int               `json:"failed"`
	BilledSegments int64             `json:"billed_segments"`
	CostCents      int64             `json:"cost_cents"`
}
