package service

import (
	"context"
	"encoding/json"
	"fmt"

	"app/internal/config"
	"app/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v82"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"
	customerpkg "github.com/stripe/stripe-go/v82/customer"
	"github.com/stripe/stripe-go/v82/webhook"
)

// PaymentService manages wallet top-ups through Stripe. Wallet credits are
// the only balance mutation outside the reconciler, and they always go
// through AccountRepository.Credit.
type PaymentService struct {
	cfg      *config.Config
	accounts repository.AccountRepository
	logger   zerolog.Logger
}

// NewPaymentService initializes the Stripe key and returns the service with a
// scoped logger.
func NewPaymentService(cfg *config.Config, accounts repository.AccountRepository, logger zerolog.Logger) *PaymentService {
	stripe.Key = cfg.StripeSecretKey
	lg := logger.With().Str("service", "PaymentService").Logger()
	return &PaymentService{cfg: cfg, accounts: accounts, logger: lg}
}

// getOrCreateCustomer ensures a Stripe customer exists for the account.
func (s *PaymentService) getOrCreateCustomer(ctx context.Context, accountID string) (string, error) {
	account, err := s.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return "", fmt.Errorf("fetch account: %w", err)
	}
	if account.StripeCustomerID != nil && *account.StripeCustomerID != "" {
		return *account.StripeCustomerID, nil
	}

	s.logger.Warn().Str("account_id", accountID).Msg("No Stripe customer ID found, creating customer")
	params := &stripe.CustomerParams{
		Email:    stripe.String(account.Email),
		Name:     stripe.String(account.Name),
		Metadata: map[string]string{"account_id": accountID},
	}
	cust, err := customerpkg.New(params)
	if err != nil {
		return "", fmt.Errorf("create stripe customer: %w", err)
	}
	if err := s.accounts.UpdateStripeCustomerID(ctx, accountID, cust.ID); err != nil {
		return "", fmt.Errorf("store stripe customer id: %w", err)
	}
	return cust.ID, nil
}

// CreateTopupSession creates a Stripe Checkout session that credits the
// wallet with amountCents once paid.
func (s *PaymentService) CreateTopupSession(ctx context.Context, accountID string, amountCents int64) (string, error) {
	if amountCents <= 0 {
		return "", fmt.Errorf("top-up amount must be positive, got %d", amountCents)
	}
	customerID, err := s.getOrCreateCustomer(ctx, accountID)
	if err != nil {
		s.logger.Error().Err(err).Str("account_id", accountID).Msg("Failed to resolve Stripe customer for top-up")
		return "", err
	}

	sessParams := &stripe.CheckoutSessionParams{
		Customer:           stripe.String(customerID),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String("usd"),
				UnitAmount: stripe.Int64(amountCents),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String("Wallet top-up"),
				},
			},
		}},
		SuccessURL: stripe.String(s.cfg.StripeTopupSuccessURL + "?status=success"),
		CancelURL:  stripe.String(s.cfg.StripeTopupSuccessURL + "?status=cancel"),
		Metadata:   map[string]string{"account_id": accountID},
	}
	sess, err := checkoutsession.New(sessParams)
	if err != nil {
		s.logger.Error().Err(err).Str("account_id", accountID).Msg("Failed to create Stripe checkout session")
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	return sess.URL, nil
}

// HandleWebhook verifies and processes a Stripe webhook payload. Completed
// checkout sessions credit the wallet of the account in the metadata.
func (s *PaymentService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := webhook.ConstructEvent(payload, signature, s.cfg.StripeWebhookSecret)
	if err != nil {
		return fmt.Errorf("verify stripe webhook signature: %w", err)
	}

	if event.Type != "checkout.session.completed" {
		s.logger.Debug().Str("type", string(event.Type)).Msg("Ignoring unhandled Stripe event")
		return nil
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return fmt.Errorf("unmarshal checkout session: %w", err)
	}
	accountID, ok := sess.Metadata["account_id"]
	if !ok || accountID == "" {
		return fmt.Errorf("checkout session %s has no account_id metadata", sess.ID)
	}
	if sess.AmountTotal <= 0 {
		return fmt.Errorf("checkout session %s has non-positive amount %d", sess.ID, sess.AmountTotal)
	}

	newBalance, err := s.accounts.Credit(ctx, accountID, sess.AmountTotal)
	if err != nil {
		s.logger.Error().Err(err).
			Str("account_id", accountID).
			Int64("amount_cents", sess.AmountTotal).
			Msg("Failed to credit wallet after checkout")
		return err
	}
	s.logger.Info().
		Str("account_id", accountID).
		Int64("amount_cents", sess.AmountTotal).
		Int64("balance_cents", newBalance).
		Msg("Wallet topped up")
	return nil
}
