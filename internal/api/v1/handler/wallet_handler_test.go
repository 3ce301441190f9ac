package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"app/internal/api/v1/dto"
	"app/internal/config"
	"app/internal/middleware"
	"app/internal/model"
	"app/internal/repository"
	"app/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAccountReader struct {
	account *model.Account
}

func (f *fakeAccountReader) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	if f.account == nil || f.account.ID != id {
		return nil, repository.ErrAccountNotFound
	}
	return f.account, nil
}

func (f *fakeAccountReader) Debit(ctx context.Context, id string, amountCents int64) (int64, error) {
	return 0, nil
}

func (f *fakeAccountReader) Credit(ctx context.Context, id string, amountCents int64) (int64, error) {
	return 0, nil
}

func (f *fakeAccountReader) UpdateStripeCustomerID(ctx context.Context, id, customerID string) error {
	return nil
}

type fakeUsageReader struct {
	rows map[model.ResourceKind]*model.SubscriptionUsage
}

func (f *fakeUsageReader) GetCurrentUsage(ctx context.Context, accountID string, kind model.ResourceKind) (*model.SubscriptionUsage, error) {
	return f.rows[kind], nil
}

func (f *fakeUsageReader) ClaimQuota(ctx context.Context, usageID string, want int64) (int64, error) {
	return 0, nil
}

func (f *fakeUsageReader) CreatePeriod(ctx context.Context, accountID string, kind model.ResourceKind, quotaLimit int64) error {
	return nil
}

func (f *fakeUsageReader) ListLapsedAccounts(ctx context.Context, kind model.ResourceKind, cutoff time.Time) ([]repository.LapsedAccount, error) {
	return nil, nil
}

type fakeEventLister struct {
	events    []model.UsageEvent
	gotLimit  int
	gotOffset int
}

func (f *fakeEventLister) InsertUsageEvent(ctx context.Context, ev *model.UsageEvent) error {
	return nil
}

func (f *fakeEventLister) ListEventsByAccount(ctx context.Context, accountID string, limit, offset int) ([]model.UsageEvent, error) {
	f.gotLimit = limit
	f.gotOffset = offset
	return f.events, nil
}

func newWalletUnderTest(accounts *fakeAccountReader, usage *fakeUsageReader, events *fakeEventLister) *WalletHandler {
	paymentSvc := service.NewPaymentService(&config.Config{}, accounts, zerolog.Nop())
	return NewWalletHandler(accounts, usage, events, paymentSvc, validator.New(), zerolog.Nop())
}

func getAuthed(h http.HandlerFunc, accountID, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if accountID != "" {
		req = req.WithContext(context.WithValue(req.Context(), middleware.AccountContextKey, accountID))
	}
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestWalletGetIncludesQuotaStatus(t *testing.T) {
	accounts := &fakeAccountReader{account: &model.Account{
		ID: "acct-1", BalanceCents: 2_500, LifetimeSpendCents: 10_000,
	}}
	usage := &fakeUsageReader{rows: map[model.ResourceKind]*model.SubscriptionUsage{
		model.ResourceCallMinutes: {ID: "u1", AccountID: "acct-1", Resource: model.ResourceCallMinutes, QuotaLimit: 100, QuotaUsed: 95},
	}}
	h := newWalletUnderTest(accounts, usage, &fakeEventLister{})

	rec := getAuthed(h.Get, "acct-1", "/wallet")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp dto.WalletResponseDTO
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, int64(2_500), resp.BalanceCents)
	// Only the resource with a quota row is reported.
	require.Len(t, resp.Quotas, 1)
	assert.Equal(t, "call_minutes", resp.Quotas[0].Resource)
	assert.Equal(t, int64(5), resp.Quotas[0].RemainingUnits)
}

func TestWalletGetUnauthenticated(t *testing.T) {
	h := newWalletUnderTest(&fakeAccountReader{}, &fakeUsageReader{}, &fakeEventLister{})
	rec := getAuthed(h.Get, "", "/wallet")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWalletEvents(t *testing.T) {
	accountID := "acct-1"
	events := &fakeEventLister{events: []model.UsageEvent{
		{ID: "ev-2", AccountID: &accountID, Counterpart: "+15550001111", Resource: model.ResourceCallMinutes, RawQuantity: 361, UnitsFromQuota: 5, UnitsPaid: 2, BilledCostCents: 300, Status: model.EventStatusBilled, CreatedAt: time.Now()},
		{ID: "ev-1", AccountID: &accountID, Counterpart: "+15559990000", Resource: model.ResourceSMSSegments, RawQuantity: 140, UnitsFromQuota: 2, Status: model.EventStatusBilled, CreatedAt: time.Now().Add(-time.Hour)},
	}}
	h := newWalletUnderTest(&fakeAccountReader{}, &fakeUsageReader{}, events)

	rec := getAuthed(h.Events, "acct-1", "/wallet/events")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 50, events.gotLimit)
	assert.Equal(t, 0, events.gotOffset)

	var resp dto.UsageHistoryResponseDTO
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Events, 2)
	assert.Equal(t, "ev-2", resp.Events[0].ID)
	assert.Equal(t, int64(300), resp.Events[0].BilledCostCents)
}

func TestWalletEventsPagination(t *testing.T) {
	events := &fakeEventLister{}
	h := newWalletUnderTest(&fakeAccountReader{}, &fakeUsageReader{}, events)

	rec := getAuthed(h.Events, "acct-1", "/wallet/events?limit=10&offset=30")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 10, events.gotLimit)
	assert.Equal(t, 30, events.gotOffset)

	// Out-of-range values fall back to the defaults.
	rec = getAuthed(h.Events, "acct-1", "/wallet/events?limit=9999&offset=-2")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 50, events.gotLimit)
	assert.Equal(t, 0, events.gotOffset)
}
