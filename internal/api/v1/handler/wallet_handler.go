package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"app/internal/api/v1/dto"
	"app/internal/middleware"
	"app/internal/model"
	"app/internal/repository"
	"app/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// WalletHandler exposes wallet balance, usage history and Stripe top-up
// endpoints.
type WalletHandler struct {
	accounts   repository.AccountRepository
	usage      repository.UsageRepository
	events     repository.EventRepository
	paymentSvc *service.PaymentService
	validate   *validator.Validate
	logger     zerolog.Logger
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(
	accounts repository.AccountRepository,
	usage repository.UsageRepository,
	events repository.EventRepository,
	paymentSvc *service.PaymentService,
	validate *validator.Validate,
	logger zerolog.Logger,
) *WalletHandler {
	return &WalletHandler{
		accounts:   accounts,
		usage:      usage,
		events:     events,
		paymentSvc: paymentSvc,
		validate:   validate,
		logger:     logger,
	}
}

// RegisterRoutes registers the wallet endpoints. The Stripe webhook is
// unauthenticated; its payload is verified by signature instead.
func (h *WalletHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware func(http.Handler) http.Handler) {
	mux.Handle("GET /wallet", authMiddleware(http.HandlerFunc(h.Get)))
	mux.Handle("GET /wallet/events", authMiddleware(http.HandlerFunc(h.Events)))
	mux.Handle("POST /wallet/topup", authMiddleware(http.HandlerFunc(h.Topup)))
	mux.HandleFunc("POST /webhooks/stripe", h.StripeWebhook)
}

// Get godoc
// @Summary Get the authenticated account's wallet
// @Tags wallet
// @Produce json
// @Success 200 {object} dto.WalletResponseDTO
// @Failure 401 {string} string "unauthorized"
// @Router /wallet [get]
func (h *WalletHandler) Get(w http.ResponseWriter, r *http.Request) {
	accountID, ok := r.Context().Value(middleware.AccountContextKey).(string)
	if !ok || accountID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	account, err := h.accounts.GetAccount(r.Context(), accountID)
	if err != nil {
		h.logger.Error().Err(err).Str("account_id", accountID).Msg("Failed to fetch wallet")
		http.Error(w, "failed to fetch wallet", http.StatusInternalServerError)
		return
	}
	resp := dto.WalletResponseDTO{
		AccountID:          account.ID,
		BalanceCents:       account.BalanceCents,
		LifetimeSpendCents: account.LifetimeSpendCents,
		Quotas:             make([]dto.QuotaStatusDTO, 0, 2),
	}
	for _, kind := range []model.ResourceKind{model.ResourceCallMinutes, model.ResourceSMSSegments} {
		row, err := h.usage.GetCurrentUsage(r.Context(), accountID, kind)
		if err != nil {
			h.logger.Error().Err(err).Str("account_id", accountID).Str("resource", string(kind)).Msg("Failed to fetch quota status")
			http.Error(w, "failed to fetch wallet", http.StatusInternalServerError)
			return
		}
		if row == nil {
			continue
		}
		resp.Quotas = append(resp.Quotas, dto.QuotaStatusDTO{
			Resource:       string(kind),
			QuotaLimit:     row.QuotaLimit,
			QuotaUsed:      row.QuotaUsed,
			RemainingUnits: row.AvailableQuota(),
		})
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error().Err(err).Msg("failed to encode response")
	}
}

// Events godoc
// @Summary List the authenticated account's usage events
// @Description Newest first. Supports limit (max 200, default 50) and offset query parameters.
// @Tags wallet
// @Produce json
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {object} dto.UsageHistoryResponseDTO
// @Failure 401 {string} string "unauthorized"
// @Router /wallet/events [get]
func (h *WalletHandler) Events(w http.ResponseWriter, r *http.Request) {
	accountID, ok := r.Context().Value(middleware.AccountContextKey).(string)
	if !ok || accountID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	offset := 0
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			offset = n
		}
	}

	events, err := h.events.ListEventsByAccount(r.Context(), accountID, limit, offset)
	if err != nil {
		h.logger.Error().Err(err).Str("account_id", accountID).Msg("Failed to list usage events")
		http.Error(w, "failed to list usage events", http.StatusInternalServerError)
		return
	}

	resp := dto.UsageHistoryResponseDTO{Events: make([]dto.UsageEventDTO, 0, len(events))}
	for _, ev := range events {
		resp.Events = append(resp.Events, dto.UsageEventDTO{
			ID:              ev.ID,
			Counterpart:     ev.Counterpart,
			Resource:        string(ev.Resource),
			RawQuantity:     ev.RawQuantity,
			UnitsFromQuota:  ev.UnitsFromQuota,
			UnitsPaid:       ev.UnitsPaid,
			BilledCostCents: ev.BilledCostCents,
			Status:          ev.Status,
			CreatedAt:       ev.CreatedAt,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error().Err(err).Msg("failed to encode response")
	}
}

// Topup godoc
// @Summary Create a Stripe Checkout session for a wallet top-up
// @Tags wallet
// @Accept json
// @Produce json
// @Param topup body dto.TopupRequestDTO true "Top-up request"
// @Success 200 {object} map[string]string "URL of the Checkout session"
// @Failure 400 {string} string "invalid request payload"
// @Failure 401 {string} string "unauthorized"
// @Router /wallet/topup [post]
func (h *WalletHandler) Topup(w http.ResponseWriter, r *http.Request) {
	accountID, ok := r.Context().Value(middleware.AccountContextKey).(string)
	if !ok || accountID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	var req dto.TopupRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		http.Error(w, "invalid request payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	url, err := h.paymentSvc.CreateTopupSession(r.Context(), accountID, req.AmountCents)
	if err != nil {
		h.logger.Error().Err(err).Str("account_id", accountID).Msg("Failed to create top-up session")
		http.Error(w, "failed to create top-up session", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]string{"url": url}); err != nil {
		h.logger.Error().Err(err).Msg("failed to encode response")
	}
}

// StripeWebhook godoc
// @Summary Stripe webhook for completed top-up payments
// @Tags wallet
// @Accept json
// @Success 200 {string} string "ok"
// @Failure 400 {string} string "webhook verification failed"
// @Router /webhooks/stripe [post]
func (h *WalletHandler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "failed to read payload", http.StatusBadRequest)
		return
	}
	if err := h.paymentSvc.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature")); err != nil {
		h.logger.Error().Err(err).Msg("Stripe webhook processing failed")
		http.Error(w, "webhook verification failed", http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)
}
