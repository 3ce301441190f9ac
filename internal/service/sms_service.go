package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"app/internal/model"
	"app/internal/pricing"
	"app/internal/provider"
	"app/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrNumberNotOwned = errors.New("source number is not provisioned for this account")
	ErrNumberInactive = errors.New("source number is deactivated")
	ErrSMSDisabled    = errors.New("source number does not have SMS enabled")
	ErrMessageTooLong = errors.New("message text exceeds the provider length ceiling")
)

// SMSSendInput is one authenticated SMS batch request.
type SMSSendInput struct {
	AccountID    string
	SourceNumber string
	Destinations []string
	Text         string
}

// RecipientResult is the per-recipient outcome of a batch send.
type RecipientResult struct {
	Destination string `json:"destination"`
	MessageID   string `json:"message_id,omitempty"`
	Error       string `json:"error,omitempty"`
	Success     bool   `json:"success"`
}

// SMSSendResult aggregates a batch send and its billing outcome.
type SMSSendResult struct {
	Results        []RecipientResult
	Sent           int
	Failed         int
	BilledSegments int64
	Priced         *model.PricedQuantity
	EventID        string
}

// SMSService sends message batches through the provider and bills the
// aggregate segments of the recipients that succeeded. Sends are already
// complete by the time billing runs, so there is no campaign to halt.
type SMSService interface {
	Send(ctx context.Context, in SMSSendInput) (*SMSSendResult, error)
}

type smsService struct {
	numbers      repository.NumberRepository
	events       repository.EventRepository
	billing      BillingService
	provider     provider.Client
	maxSMSLength int
	logger       zerolog.Logger
}

// NewSMSService creates an SMSService with a scoped logger.
func NewSMSService(
	numbers repository.NumberRepository,
	events repository.EventRepository,
	billing BillingService,
	providerClient provider.Client,
	maxSMSLength int,
	logger zerolog.Logger,
) SMSService {
	return &smsService{
		numbers:      numbers,
		events:       events,
		billing:      billing,
		provider:     providerClient,
		maxSMSLength: maxSMSLength,
		logger:       logger.With().Str("service", "SMSService").Logger(),
	}
}

func (s *smsService) Send(ctx context.Context, in SMSSendInput) (*SMSSendResult, error) {
	textLen := int64(utf8.RuneCountInString(in.Text))
	if s.maxSMSLength > 0 && textLen > int64(s.maxSMSLength) {
		return nil, ErrMessageTooLong
	}

	num, err := s.numbers.GetByNumber(ctx, in.SourceNumber)
	if err != nil {
		return nil, err
	}
	switch {
	case num.AccountID != in.AccountID:
		return nil, ErrNumberNotOwned
	case !num.Active:
		return nil, ErrNumberInactive
	case !num.SMSEnabled:
		return nil, ErrSMSDisabled
	}

	// Each recipient is independent: one failed dispatch never aborts the
	// batch, and only successes are billed.
	result := &SMSSendResult{Results: make([]RecipientResult, 0, len(in.Destinations))}
	var succeeded []string
	for _, dest := range in.Destinations {
		receipt, sendErr := s.provider.SendMessage(ctx, in.SourceNumber, dest, in.Text)
		if sendErr != nil {
			s.logger.Warn().Err(sendErr).
				Str("source", in.SourceNumber).
				Str("destination", dest).
				Msg("SMS dispatch failed for recipient")
			result.Results = append(result.Results, RecipientResult{Destination: dest, Error: sendErr.Error()})
			result.Failed++
			continue
		}
		result.Results = append(result.Results, RecipientResult{
			Destination: dest,
			MessageID:   receipt.MessageID,
			Success:     true,
		})
		result.Sent++
		succeeded = append(succeeded, dest)
	}

	if result.Sent == 0 {
		return result, nil
	}

	segmentsPerMessage := pricing.QuantityToUnits(textLen, pricing.CharsPerSegment)
	result.BilledSegments = segmentsPerMessage * int64(result.Sent)

	priced, recErr := s.billing.Reconcile(ctx, in.AccountID, model.ResourceSMSSegments, result.BilledSegments)
	status := model.EventStatusBilled
	if recErr != nil {
		if !errors.Is(recErr, ErrBalanceWrite) {
			return nil, recErr
		}
		status = model.EventStatusPartial
	}
	result.Priced = priced

	payload, err := json.Marshal(map[string]any{
		"recipients":           succeeded,
		"failed":               result.Failed,
		"text_length":          textLen,
		"segments_per_message": segmentsPerMessage,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal sms payload: %w", err)
	}
	ev := &model.UsageEvent{
		ID:              uuid.NewString(),
		AccountID:       &in.AccountID,
		Counterpart:     strings.Join(succeeded, ","),
		Resource:        model.ResourceSMSSegments,
		RawQuantity:     textLen,
		UnitsFromQuota:  priced.UnitsFromQuota,
		UnitsPaid:       priced.UnitsToPay,
		BilledCostCents: priced.CostCents,
		Status:          status,
		Payload:         payload,
	}
	if err := s.events.InsertUsageEvent(ctx, ev); err != nil {
		return nil, err
	}
	result.EventID = ev.ID
	return result, nil
}
