package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"app/internal/api/v1/dto"
	"app/internal/middleware"
	"app/internal/repository"
	"app/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// SMSHandler handles authenticated SMS batch sends.
type SMSHandler struct {
	smsSvc   service.SMSService
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewSMSHandler creates a new SMSHandler.
func NewSMSHandler(smsSvc service.SMSService, validate *validator.Validate, logger zerolog.Logger) *SMSHandler {
	return &SMSHandler{smsSvc: smsSvc, validate: validate, logger: logger}
}

// RegisterRoutes registers the SMS endpoints.
func (h *SMSHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware func(http.Handler) http.Handler) {
	mux.Handle("POST /messages", authMiddleware(http.HandlerFunc(h.Send)))
}

// Send godoc
// @Summary Send an SMS to one or more recipients
// @Description Dispatches the message per recipient and bills the segments of the successful sends.
// @Tags messages
// @Accept json
// @Produce json
// @Param message body dto.SMSSendDTO true "SMS send request"
// @Success 200 {object} dto.SMSSendResponseDTO
// @Failure 400 {object} dto.SMSSendResponseDTO "no recipient succeeded"
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "source number not usable by this account"
// @Router /messages [post]
func (h *SMSHandler) Send(w http.ResponseWriter, r *http.Request) {
	accountID, ok := r.Context().Value(middleware.AccountContextKey).(string)
	if !ok || accountID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req dto.SMSSendDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		http.Error(w, "invalid request payload: "+err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.smsSvc.Send(r.Context(), service.SMSSendInput{
		AccountID:    accountID,
		SourceNumber: req.SourceNumber,
		Destinations: req.DestinationNumbers,
		Text:         req.Text,
	})
	switch {
	case errors.Is(err, service.ErrMessageTooLong):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, repository.ErrNumberNotFound),
		errors.Is(err, service.ErrNumberNotOwned),
		errors.Is(err, service.ErrNumberInactive),
		errors.Is(err, service.ErrSMSDisabled):
		http.Error(w, "source number not usable by this account", http.StatusForbidden)
		return
	case err != nil:
		h.logger.Error().Err(err).Str("account_id", accountID).Msg("Failed to send SMS batch")
		http.Error(w, "failed to send messages", http.StatusInternalServerError)
		return
	}

	resp := dto.SMSSendResponseDTO{
		Results:        make([]dto.SMSRecipientDTO, 0, len(result.Results)),
		Sent:           result.Sent,
		Failed:         result.Failed,
		BilledSegments: result.BilledSegments,
	}
	if result.Priced != nil {
		resp.CostCents = result.Priced.CostCents
	}
	for _, rr := range result.Results {
		resp.Results = append(resp.Results, dto.SMSRecipientDTO{
			Destination: rr.Destination,
			MessageID:   rr.MessageID,
			Error:       rr.Error,
			Success:     rr.Success,
		})
	}

	// Partial success still reports 200; only a batch with zero successful
	// recipients is an error response.
	status := http.StatusOK
	if result.Sent == 0 {
		status = http.StatusBadRequest
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error().Err(err).Msg("failed to encode response")
	}
}
