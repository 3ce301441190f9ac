package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"app/internal/archive"
	"app/internal/model"
	"app/internal/pricing"
	"app/internal/pubsub"
	"app/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrInvalidDuration is returned for call completions with a missing, zero or
// negative duration. The ledger is never touched in that case.
var ErrInvalidDuration = errors.New("call duration must be a positive number of seconds")

// CallCompletion is the provider-reported outcome of a finished call.
type CallCompletion struct {
	CallerNumber    string
	CalleeNumber    string
	DurationSeconds int64
	RecordingURL    string
	Direction       string
	Status          string
}

// CallService ingests call-completion webhooks: it converts the reported
// duration into billed minutes, reconciles quota and wallet, triggers the
// campaign guard on funds exhaustion and always writes an audit event.
type CallService interface {
	IngestCompletion(ctx context.Context, cc CallCompletion) (*model.UsageEvent, error)
}

type callService struct {
	numbers  repository.NumberRepository
	events   repository.EventRepository
	billing  BillingService
	guard    GuardDispatcher
	alerts   *pubsub.AlertPublisher
	archiver archive.Archiver
	logger   zerolog.Logger
}

// NewCallService creates a CallService. alerts and archiver may be nil when
// the deployment runs without Pub/Sub or an S3 archive.
func NewCallService(
	numbers repository.NumberRepository,
	events repository.EventRepository,
	billing BillingService,
	guard GuardDispatcher,
	alerts *pubsub.AlertPublisher,
	archiver archive.Archiver,
	logger zerolog.Logger,
) CallService {
	return &callService{
		numbers:  numbers,
		events:   events,
		billing:  billing,
		guard:    guard,
		alerts:   alerts,
		archiver: archiver,
		logger:   logger.With().Str("service", "CallService").Logger(),
	}
}

func (s *callService) IngestCompletion(ctx context.Context, cc CallCompletion) (*model.UsageEvent, error) {
	if cc.DurationSeconds <= 0 {
		return nil, ErrInvalidDuration
	}

	payload, err := json.Marshal(map[string]any{
		"callee_number": cc.CalleeNumber,
		"recording_url": cc.RecordingURL,
		"direction":     cc.Direction,
		"call_status":   cc.Status,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal call payload: %w", err)
	}

	num, err := s.numbers.GetByNumber(ctx, cc.CallerNumber)
	if errors.Is(err, repository.ErrNumberNotFound) {
		// An unresolved number is itself an auditable anomaly: record it
		// without touching any balance or quota, then report not-found.
		s.logger.Warn().
			Str("caller_number", cc.CallerNumber).
			Msg("Call completion for a number not in the registry")
		anomaly := &model.UsageEvent{
			ID:          uuid.NewString(),
			Counterpart: cc.CallerNumber,
			Resource:    model.ResourceCallMinutes,
			RawQuantity: cc.DurationSeconds,
			Status:      model.EventStatusUnresolved,
			Payload:     payload,
		}
		if insErr := s.events.InsertUsageEvent(ctx, anomaly); insErr != nil {
			s.logger.Error().Err(insErr).Msg("Failed to record unresolved-number anomaly")
		}
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("resolve caller number %s: %w", cc.CallerNumber, err)
	}

	minutes := pricing.QuantityToUnits(cc.DurationSeconds, pricing.SecondsPerMinute)
	priced, recErr := s.billing.Reconcile(ctx, num.AccountID, model.ResourceCallMinutes, minutes)
	status := model.EventStatusBilled
	if recErr != nil {
		if !errors.Is(recErr, ErrBalanceWrite) {
			return nil, recErr
		}
		// Quota portion already applied; record what happened and move on.
		status = model.EventStatusPartial
	}

	ev := &model.UsageEvent{
		ID:              uuid.NewString(),
		AccountID:       &num.AccountID,
		Counterpart:     cc.CallerNumber,
		Resource:        model.ResourceCallMinutes,
		RawQuantity:     cc.DurationSeconds,
		UnitsFromQuota:  priced.UnitsFromQuota,
		UnitsPaid:       priced.UnitsToPay,
		BilledCostCents: priced.CostCents,
		Status:          status,
		Payload:         payload,
	}
	if err := s.events.InsertUsageEvent(ctx, ev); err != nil {
		return nil, err
	}

	if s.archiver != nil && cc.RecordingURL != "" {
		// Best-effort; never blocks the webhook response.
		go s.archiveRecording(ev.ID, payload)
	}

	if priced.FundsExhausted {
		s.logger.Info().
			Str("account_id", num.AccountID).
			Int64("balance_cents", priced.NewBalanceCents).
			Msg("Funds exhausted; dispatching campaign guard")
		s.guard.Dispatch(num.AccountID, cc.CallerNumber)
		if s.alerts != nil {
			if err := s.alerts.LowBalance(ctx, num.AccountID, priced.NewBalanceCents); err != nil {
				s.logger.Warn().Err(err).Str("account_id", num.AccountID).Msg("Failed to publish balance alert")
			}
		}
	}

	return ev, nil
}

func (s *callService) archiveRecording(eventID string, payload []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), archive.UploadTimeout)
	defer cancel()
	if err := s.archiver.StoreCallPayload(ctx, eventID, payload); err != nil {
		s.logger.Warn().Err(err).Str("event_id", eventID).Msg("Failed to archive call payload")
	}
}
