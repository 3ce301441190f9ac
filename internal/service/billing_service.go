package service

import (
	"context"
	"errors"
	"fmt"

	"app/internal/model"
	"app/internal/pricing"
	"app/internal/repository"

	"github.com/rs/zerolog"
)

// ErrBalanceWrite marks a reconciliation where the quota claim succeeded but
// the wallet debit did not. The claim is deliberately not rolled back: a
// quota-without-charge log entry is an auditable degraded state, whereas
// double-charging the wallet never is. Callers must still record the event.
var ErrBalanceWrite = errors.New("balance write failed after quota claim")

// BillingService is the usage reconciler: it splits billed units between the
// subscription quota and the wallet and applies both ledger updates. It never
// calls the provider or any other external service, which keeps it
// independently testable.
type BillingService interface {
	// Reconcile applies totalUnits of usage for the account. The returned
	// PricedQuantity is non-nil whenever any ledger mutation happened, even
	// when err is ErrBalanceWrite.
	Reconcile(ctx context.Context, accountID string, kind model.ResourceKind, totalUnits int64) (*model.PricedQuantity, error)
}

type billingService struct {
	accounts repository.AccountRepository
	usage    repository.UsageRepository
	prices   pricing.Table
	logger   zerolog.Logger
}

// NewBillingService creates a BillingService with a scoped logger.
func NewBillingService(accounts repository.AccountRepository, usage repository.UsageRepository, prices pricing.Table, logger zerolog.Logger) BillingService {
	return &billingService{
		accounts: accounts,
		usage:    usage,
		prices:   prices,
		logger:   logger.With().Str("service", "BillingService").Logger(),
	}
}

func (s *billingService) pricePerUnit(kind model.ResourceKind) (int64, error) {
	switch kind {
	case model.ResourceCallMinutes:
		return s.prices.CallPerMinuteCents, nil
	case model.ResourceSMSSegments:
		return s.prices.SMSPerSegmentCents, nil
	default:
		return 0, fmt.Errorf("no price configured for resource %q", kind)
	}
}

func (s *billingService) Reconcile(ctx context.Context, accountID string, kind model.ResourceKind, totalUnits int64) (*model.PricedQuantity, error) {
	if totalUnits <= 0 {
		// Zero usage never touches the ledger.
		return &model.PricedQuantity{}, nil
	}
	pricePerUnit, err := s.pricePerUnit(kind)
	if err != nil {
		return nil, err
	}

	usage, err := s.usage.GetCurrentUsage(ctx, accountID, kind)
	if err != nil {
		return nil, fmt.Errorf("reconcile %s for account %s: %w", kind, accountID, err)
	}

	var claimed int64
	if usage != nil {
		// The claim is a single conditional update: under concurrent events
		// for the same account each claim serializes against the row and
		// takes only what is still available. The pure split over the read
		// snapshot predicts the claim; a mismatch means another event took
		// quota in between, which is worth surfacing on contended accounts.
		snapshotClaim, _ := pricing.SplitUnits(usage.QuotaLimit, usage.QuotaUsed, totalUnits)
		claimed, err = s.usage.ClaimQuota(ctx, usage.ID, totalUnits)
		if err != nil {
			return nil, fmt.Errorf("reconcile %s for account %s: %w", kind, accountID, err)
		}
		if claimed != snapshotClaim {
			s.logger.Debug().
				Str("account_id", accountID).
				Str("resource", string(kind)).
				Int64("claimed", claimed).
				Int64("snapshot_claim", snapshotClaim).
				Msg("Quota claim differs from read snapshot; concurrent usage on this account")
		}
	} else {
		// Degraded but safe: no quota row means everything is wallet-billed.
		s.logger.Warn().
			Str("account_id", accountID).
			Str("resource", string(kind)).
			Msg("No subscription usage record found; billing entire usage to wallet")
	}

	result := &model.PricedQuantity{
		TotalUnits:     totalUnits,
		UnitsFromQuota: claimed,
		UnitsToPay:     totalUnits - claimed,
		QuotaExhausted: totalUnits-claimed > 0,
	}
	if result.UnitsToPay == 0 {
		return result, nil
	}

	result.CostCents = pricing.UnitsToCost(result.UnitsToPay, pricePerUnit)
	newBalance, err := s.accounts.Debit(ctx, accountID, result.CostCents)
	if err != nil {
		// Quota portion is already applied and stays applied; surface the
		// discrepancy for manual reconciliation.
		s.logger.Error().Err(err).
			Str("account_id", accountID).
			Str("resource", string(kind)).
			Int64("units_from_quota", result.UnitsFromQuota).
			Int64("units_to_pay", result.UnitsToPay).
			Int64("cost_cents", result.CostCents).
			Msg("Balance debit failed after quota claim; ledger needs manual reconciliation")
		return result, fmt.Errorf("%w: %w", ErrBalanceWrite, err)
	}

	result.NewBalanceCents = newBalance
	result.FundsExhausted = newBalance <= 0
	return result, nil
}
