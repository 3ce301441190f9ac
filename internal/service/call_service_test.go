package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"app/internal/model"
	"app/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNumberRepo struct {
	numbers map[string]*model.PhoneNumber
}

func (f *fakeNumberRepo) GetByNumber(ctx context.Context, number string) (*model.PhoneNumber, error) {
	n, ok := f.numbers[number]
	if !ok {
		return nil, repository.ErrNumberNotFound
	}
	return n, nil
}

type fakeEventRepo struct {
	mu        sync.Mutex
	events    []*model.UsageEvent
	insertErr error
}

func (f *fakeEventRepo) InsertUsageEvent(ctx context.Context, ev *model.UsageEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeEventRepo) ListEventsByAccount(ctx context.Context, accountID string, limit, offset int) ([]model.UsageEvent, error) {
	return nil, nil
}

func (f *fakeEventRepo) all() []*model.UsageEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*model.UsageEvent(nil), f.events...)
}

// stubBilling returns a canned result instead of exercising the ledger.
type stubBilling struct {
	result *model.PricedQuantity
	err    error

	gotAccount string
	gotKind    model.ResourceKind
	gotUnits   int64
}

func (s *stubBilling) Reconcile(ctx context.Context, accountID string, kind model.ResourceKind, totalUnits int64) (*model.PricedQuantity, error) {
	s.gotAccount = accountID
	s.gotKind = kind
	s.gotUnits = totalUnits
	return s.result, s.err
}

type recordingDispatcher struct {
	dispatched [][2]string
}

func (r *recordingDispatcher) Dispatch(accountID, number string) {
	r.dispatched = append(r.dispatched, [2]string{accountID, number})
}

func registeredNumbers() *fakeNumberRepo {
	return &fakeNumberRepo{numbers: map[string]*model.PhoneNumber{
		"+15550001111": {AccountID: "acct-1", Number: "+15550001111", Active: true, SMSEnabled: true},
	}}
}

func TestIngestCompletionBillsCeilingMinutes(t *testing.T) {
	events := &fakeEventRepo{}
	billing := &stubBilling{result: &model.PricedQuantity{
		TotalUnits: 7, UnitsFromQuota: 7,
	}}
	dispatcher := &recordingDispatcher{}
	svc := NewCallService(registeredNumbers(), events, billing, dispatcher, nil, nil, zerolog.Nop())

	ev, err := svc.IngestCompletion(context.Background(), CallCompletion{
		CallerNumber:    "+15550001111",
		CalleeNumber:    "+15559990000",
		DurationSeconds: 361, // 6m01s rounds up to 7 minutes
		Direction:       "outbound",
		Status:          "completed",
	})
	require.NoError(t, err)

	assert.Equal(t, "acct-1", billing.gotAccount)
	assert.Equal(t, model.ResourceCallMinutes, billing.gotKind)
	assert.Equal(t, int64(7), billing.gotUnits)

	require.NotNil(t, ev)
	require.NotNil(t, ev.AccountID)
	assert.Equal(t, "acct-1", *ev.AccountID)
	assert.Equal(t, int64(361), ev.RawQuantity)
	assert.Equal(t, model.EventStatusBilled, ev.Status)
	assert.Len(t, events.all(), 1)
	assert.Empty(t, dispatcher.dispatched)
}

func TestIngestCompletionRejectsNonPositiveDuration(t *testing.T) {
	events := &fakeEventRepo{}
	svc := NewCallService(registeredNumbers(), events, &stubBilling{}, &recordingDispatcher{}, nil, nil, zerolog.Nop())

	for _, dur := range []int64{0, -30} {
		_, err := svc.IngestCompletion(context.Background(), CallCompletion{
			CallerNumber:    "+15550001111",
			DurationSeconds: dur,
		})
		require.ErrorIs(t, err, ErrInvalidDuration)
	}
	// No ledger or audit writes for rejected completions.
	assert.Empty(t, events.all())
}

func TestIngestCompletionUnresolvedNumberWritesAnomaly(t *testing.T) {
	events := &fakeEventRepo{}
	billing := &stubBilling{}
	svc := NewCallService(registeredNumbers(), events, billing, &recordingDispatcher{}, nil, nil, zerolog.Nop())

	_, err := svc.IngestCompletion(context.Background(), CallCompletion{
		CallerNumber:    "+15557770000",
		DurationSeconds: 90,
	})
	require.ErrorIs(t, err, repository.ErrNumberNotFound)

	// Billing never ran, but the anomaly landed in the audit log.
	assert.Empty(t, billing.gotAccount)
	stored := events.all()
	require.Len(t, stored, 1)
	assert.Nil(t, stored[0].AccountID)
	assert.Equal(t, model.EventStatusUnresolved, stored[0].Status)
	assert.Equal(t, "+15557770000", stored[0].Counterpart)
	assert.Equal(t, int64(90), stored[0].RawQuantity)
}

func TestIngestCompletionPartialBillingStillRecordsEvent(t *testing.T) {
	events := &fakeEventRepo{}
	billing := &stubBilling{
		result: &model.PricedQuantity{TotalUnits: 2, UnitsFromQuota: 1, UnitsToPay: 1, CostCents: 150},
		err:    fmt.Errorf("%w: %w", ErrBalanceWrite, errors.New("db down")),
	}
	svc := NewCallService(registeredNumbers(), events, billing, &recordingDispatcher{}, nil, nil, zerolog.Nop())

	ev, err := svc.IngestCompletion(context.Background(), CallCompletion{
		CallerNumber:    "+15550001111",
		DurationSeconds: 61,
	})
	require.NoError(t, err)
	assert.Equal(t, model.EventStatusPartial, ev.Status)
	assert.Equal(t, int64(1), ev.UnitsFromQuota)
	assert.Equal(t, int64(1), ev.UnitsPaid)
}

func TestIngestCompletionFundsExhaustedDispatchesGuard(t *testing.T) {
	events := &fakeEventRepo{}
	billing := &stubBilling{result: &model.PricedQuantity{
		TotalUnits: 3, UnitsToPay: 3, CostCents: 450, NewBalanceCents: -50, FundsExhausted: true, QuotaExhausted: true,
	}}
	dispatcher := &recordingDispatcher{}
	svc := NewCallService(registeredNumbers(), events, billing, dispatcher, nil, nil, zerolog.Nop())

	_, err := svc.IngestCompletion(context.Background(), CallCompletion{
		CallerNumber:    "+15550001111",
		DurationSeconds: 180,
	})
	require.NoError(t, err)
	require.Len(t, dispatcher.dispatched, 1)
	assert.Equal(t, [2]string{"acct-1", "+15550001111"}, dispatcher.dispatched[0])
}

func TestIngestCompletionEventWriteFailureSurfaces(t *testing.T) {
	events := &fakeEventRepo{insertErr: errors.New("insert failed")}
	billing := &stubBilling{result: &model.PricedQuantity{TotalUnits: 1, UnitsFromQuota: 1}}
	svc := NewCallService(registeredNumbers(), events, billing, &recordingDispatcher{}, nil, nil, zerolog.Nop())

	_, err := svc.IngestCompletion(context.Background(), CallCompletion{
		CallerNumber:    "+15550001111",
		DurationSeconds: 10,
	})
	require.Error(t, err)
}
