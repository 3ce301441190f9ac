package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"app/internal/api/v1/dto"
	"app/internal/middleware"
	"app/internal/model"
	"app/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSMSService struct {
	result *service.SMSSendResult
	err    error

	got service.SMSSendInput
}

func (s *stubSMSService) Send(ctx context.Context, in service.SMSSendInput) (*service.SMSSendResult, error) {
	s.got = in
	return s.result, s.err
}

func postSMS(t *testing.T, h *SMSHandler, accountID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	buf, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/messages", bytes.NewReader(buf))
	if accountID != "" {
		req = req.WithContext(context.WithValue(req.Context(), middleware.AccountContextKey, accountID))
	}
	rec := httptest.NewRecorder()
	h.Send(rec, req)
	return rec
}

func TestSMSSendOK(t *testing.T) {
	svc := &stubSMSService{result: &service.SMSSendResult{
		Results: []service.RecipientResult{
			{Destination: "+15551110001", MessageID: "m-1", Success: true},
			{Destination: "+15551110002", MessageID: "m-2", Success: true},
		},
		Sent:           2,
		BilledSegments: 2,
		Priced:         &model.PricedQuantity{TotalUnits: 2, UnitsToPay: 2, CostCents: 150},
		EventID:        "ev-1",
	}}
	h := NewSMSHandler(svc, validator.New(), zerolog.Nop())

	rec := postSMS(t, h, "acct-1", dto.SMSSendDTO{
		SourceNumber:       "+15550001111",
		DestinationNumbers: []string{"+15551110001", "+15551110002"},
		Text:               "hello",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "acct-1", svc.got.AccountID)

	var resp dto.SMSSendResponseDTO
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 2, resp.Sent)
	assert.Equal(t, int64(2), resp.BilledSegments)
	assert.Equal(t, int64(150), resp.CostCents)
	assert.Len(t, resp.Results, 2)
}

func TestSMSSendPartialSuccessIsStillOK(t *testing.T) {
	svc := &stubSMSService{result: &service.SMSSendResult{
		Results: []service.RecipientResult{
			{Destination: "+15551110001", MessageID: "m-1", Success: true},
			{Destination: "+15551110002", Error: "carrier rejected", Success: false},
		},
		Sent:           1,
		Failed:         1,
		BilledSegments: 1,
		Priced:         &model.PricedQuantity{TotalUnits: 1, UnitsFromQuota: 1},
	}}
	h := NewSMSHandler(svc, validator.New(), zerolog.Nop())

	rec := postSMS(t, h, "acct-1", dto.SMSSendDTO{
		SourceNumber:       "+15550001111",
		DestinationNumbers: []string{"+15551110001", "+15551110002"},
		Text:               "hello",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSMSSendAllFailedIsBadRequest(t *testing.T) {
	svc := &stubSMSService{result: &service.SMSSendResult{
		Results: []service.RecipientResult{
			{Destination: "+15551110001", Error: "unreachable"},
		},
		Failed: 1,
	}}
	h := NewSMSHandler(svc, validator.New(), zerolog.Nop())

	rec := postSMS(t, h, "acct-1", dto.SMSSendDTO{
		SourceNumber:       "+15550001111",
		DestinationNumbers: []string{"+15551110001"},
		Text:               "hello",
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	// The per-recipient breakdown is still in the body.
	var resp dto.SMSSendResponseDTO
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 1, resp.Failed)
}

func TestSMSSendUnauthenticated(t *testing.T) {
	h := NewSMSHandler(&stubSMSService{}, validator.New(), zerolog.Nop())

	rec := postSMS(t, h, "", dto.SMSSendDTO{
		SourceNumber:       "+15550001111",
		DestinationNumbers: []string{"+15551110001"},
		Text:               "hello",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSMSSendEmptyDestinations(t *testing.T) {
	h := NewSMSHandler(&stubSMSService{}, validator.New(), zerolog.Nop())

	rec := postSMS(t, h, "acct-1", dto.SMSSendDTO{
		SourceNumber: "+15550001111",
		Text:         "hello",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSMSSendCapabilityErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"not owned", service.ErrNumberNotOwned, http.StatusForbidden},
		{"inactive", service.ErrNumberInactive, http.StatusForbidden},
		{"sms disabled", service.ErrSMSDisabled, http.StatusForbidden},
		{"too long", service.ErrMessageTooLong, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewSMSHandler(&stubSMSService{err: tc.err}, validator.New(), zerolog.Nop())
			rec := postSMS(t, h, "acct-1", dto.SMSSendDTO{
				SourceNumber:       "+15550001111",
				DestinationNumbers: []string{"+15551110001"},
				Text:               "hello",
			})
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}
