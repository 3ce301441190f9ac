package repository

import (
	"context"
	"fmt"

	"app/internal/model"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EventRepository appends immutable usage audit records. Events are never
// updated or deleted.
type EventRepository interface {
	InsertUsageEvent(ctx context.Context, ev *model.UsageEvent) error
	ListEventsByAccount(ctx context.Context, accountID string, limit, offset int) ([]model.UsageEvent, error)
}

type eventRepo struct {
	pool *pgxpool.Pool
}

// NewEventRepo creates a new EventRepository.
func NewEventRepo(pool *pgxpool.Pool) EventRepository {
	return &eventRepo{pool: pool}
}

func (r *eventRepo) InsertUsageEvent(ctx context.Context, ev *model.UsageEvent) error {
	const q = `
        INSERT INTO usage_events
            (id, account_id, counterpart, resource_kind, raw_quantity,
             units_from_quota, units_paid, billed_cost_cents, status, payload, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
    `
	_, err := r.pool.Exec(ctx, q,
		ev.ID,
		ev.AccountID,
		ev.Counterpart,
		ev.Resource,
		ev.RawQuantity,
		ev.UnitsFromQuota,
		ev.UnitsPaid,
		ev.BilledCostCents,
		ev.Status,
		ev.Payload,
	)
	if err != nil {
		return fmt.Errorf("insert usage event %s: %w", ev.ID, err)
	}
	return nil
}

func (r *eventRepo) ListEventsByAccount(ctx context.Context, accountID string, limit, offset int) ([]model.UsageEvent, error) {
	const q = `
        SELECT id, account_id, counterpart, resource_kind, raw_quantity,
               units_from_quota, units_paid, billed_cost_cents, status, payload, created_at
        FROM usage_events
        WHERE account_id = $1
        ORDER BY created_at DESC
        LIMIT $2 OFFSET $3
    `
	rows, err := r.pool.Query(ctx, q, accountID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list usage events for account %s: %w", accountID, err)
	}
	defer rows.Close()

	var events []model.UsageEvent
	for rows.Next() {
		var ev model.UsageEvent
		if err := rows.Scan(
			&ev.ID,
			&ev.AccountID,
			&ev.Counterpart,
			&ev.Resource,
			&ev.RawQuantity,
			&ev.UnitsFromQuota,
			&ev.UnitsPaid,
			&ev.BilledCostCents,
			&ev.Status,
			&ev.Payload,
			&ev.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan usage event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate usage events: %w", err)
	}
	return events, nil
}
