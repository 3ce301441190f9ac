package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"app/internal/api/v1/dto"
	"app/internal/repository"
	"app/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// CallHandler ingests call-completion webhooks from the telephony provider.
type CallHandler struct {
	callSvc  service.CallService
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewCallHandler creates a new CallHandler.
func NewCallHandler(callSvc service.CallService, validate *validator.Validate, logger zerolog.Logger) *CallHandler {
	return &CallHandler{callSvc: callSvc, validate: validate, logger: logger}
}

// RegisterRoutes registers the call webhook endpoint.
func (h *CallHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /calls/completed", h.Completed)
}

// Completed godoc
// @Summary Ingest a call-completion webhook
// @Description Bills the completed call against the owning account's quota and wallet.
// @Tags calls
// @Accept json
// @Produce json
// @Param call body dto.CallCompletionDTO true "Call completion payload"
// @Success 200 {object} dto.CallCompletionResponseDTO
// @Failure 400 {string} string "invalid request payload"
// @Failure 404 {string} string "caller number not found"
// @Failure 500 {string} string "failed to record usage event"
// @Router /calls/completed [post]
func (h *CallHandler) Completed(w http.ResponseWriter, r *http.Request) {
	var req dto.CallCompletionDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		http.Error(w, "invalid request payload: "+err.Error(), http.StatusBadRequest)
		return
	}

	ev, err := h.callSvc.IngestCompletion(r.Context(), service.CallCompletion{
		CallerNumber:    req.CallerNumber,
		CalleeNumber:    req.CalleeNumber,
		DurationSeconds: *req.DurationSeconds,
		RecordingURL:    req.RecordingURL,
		Direction:       req.Direction,
		Status:          req.Status,
	})
	switch {
	case errors.Is(err, service.ErrInvalidDuration):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, repository.ErrNumberNotFound):
		http.Error(w, "caller number not found", http.StatusNotFound)
		return
	case err != nil:
		h.logger.Error().Err(err).Str("caller_number", req.CallerNumber).Msg("Failed to ingest call completion")
		http.Error(w, "failed to record usage event", http.StatusInternalServerError)
		return
	}

	resp := dto.CallCompletionResponseDTO{
		EventID:        ev.ID,
		BilledMinutes:  ev.UnitsFromQuota + ev.UnitsPaid,
		UnitsFromQuota: ev.UnitsFromQuota,
		UnitsPaid:      ev.UnitsPaid,
		CostCents:      ev.BilledCostCents,
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error().Err(err).Msg("failed to encode response")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
}
