package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"app/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UsageRepository tracks per-period subscription quota counters.
type UsageRepository interface {
	// GetCurrentUsage returns the account's current quota row for the given
	// resource kind: the most recent by creation time, since renewals
	// supersede rather than delete. Returns (nil, nil) when the account has
	// no quota row at all.
	GetCurrentUsage(ctx context.Context, accountID string, kind model.ResourceKind) (*model.SubscriptionUsage, error)
	// ClaimQuota atomically takes up to want units from the row's remaining
	// quota and returns how many were actually claimed. The update is a
	// single conditional statement, so concurrent claims against the same
	// row serialize without lost updates and used never exceeds limit.
	ClaimQuota(ctx context.Context, usageID string, want int64) (int64, error)
	// CreatePeriod inserts a fresh quota row, superseding any earlier one.
	CreatePeriod(ctx context.Context, accountID string, kind model.ResourceKind, quotaLimit int64) error
	// ListLapsedAccounts returns accounts whose newest quota row for the
	// given resource is older than cutoff, together with their plan's
	// included allowance for that resource.
	ListLapsedAccounts(ctx context.Context, kind model.ResourceKind, cutoff time.Time) ([]LapsedAccount, error)
}

// LapsedAccount pairs an account with the allowance its plan grants.
type LapsedAccount struct {
	AccountID  string
	QuotaLimit int64
}

type usageRepo struct {
	pool *pgxpool.Pool
}

// NewUsageRepo creates a new UsageRepository.
func NewUsageRepo(pool *pgxpool.Pool) UsageRepository {
	return &usageRepo{pool: pool}
}

func (r *usageRepo) GetCurrentUsage(ctx context.Context, accountID string, kind model.ResourceKind) (*model.SubscriptionUsage, error) {
	const q = `
        SELECT id, account_id, resource_kind, quota_limit, quota_used, created_at, updated_at
        FROM subscription_usage
        WHERE account_id = $1
          AND resource_kind = $2
        ORDER BY created_at DESC
        LIMIT 1
    `
	var u model.SubscriptionUsage
	err := r.pool.QueryRow(ctx, q, accountID, kind).Scan(
		&u.ID,
		&u.AccountID,
		&u.Resource,
		&u.QuotaLimit,
		&u.QuotaUsed,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch current usage for account %s resource %s: %w", accountID, kind, err)
	}
	return &u, nil
}

// ClaimQuota claims min(want, limit-used) in one statement. The CTE locks the
// row and exposes its pre-update values so RETURNING can report the delta.
func (r *usageRepo) ClaimQuota(ctx context.Context, usageID string, want int64) (int64, error) {
	if want <= 0 {
		return 0, nil
	}
	const q = `
        WITH cur AS (
            SELECT id, quota_limit, quota_used
            FROM subscription_usage
            WHERE id = $1
            FOR UPDATE
        )
        UPDATE subscription_usage u
        SET quota_used = LEAST(cur.quota_limit, cur.quota_used + $2),
            updated_at = NOW()
        FROM cur
        WHERE u.id = cur.id
        RETURNING GREATEST(0, LEAST(cur.quota_limit, cur.quota_used + $2) - cur.quota_used)
    `
	var claimed int64
	err := r.pool.QueryRow(ctx, q, usageID, want).Scan(&claimed)
	if errors.Is(err, pgx.ErrNoRows) {
		// Row disappeared between lookup and claim; bill everything to the wallet.
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("claim %d units on usage %s: %w", want, usageID, err)
	}
	return claimed, nil
}

func (r *usageRepo) CreatePeriod(ctx context.Context, accountID string, kind model.ResourceKind, quotaLimit int64) error {
	const q = `
        INSERT INTO subscription_usage (id, account_id, resource_kind, quota_limit, quota_used, created_at, updated_at)
        VALUES (gen_random_uuid(), $1, $2, $3, 0, NOW(), NOW())
    `
	if _, err := r.pool.Exec(ctx, q, accountID, kind, quotaLimit); err != nil {
		return fmt.Errorf("create %s period for account %s: %w", kind, accountID, err)
	}
	return nil
}

func (r *usageRepo) ListLapsedAccounts(ctx context.Context, kind model.ResourceKind, cutoff time.Time) ([]LapsedAccount, error) {
	const q = `
        SELECT a.id,
               CASE WHEN $1 = 'call_minutes' THEN p.included_call_minutes
                    ELSE p.included_sms_segments END AS quota_limit
        FROM accounts a
        JOIN subscription_plans p ON p.id = a.plan_id
        WHERE NOT EXISTS (
            SELECT 1
            FROM subscription_usage u
            WHERE u.account_id = a.id
              AND u.resource_kind = $1
              AND u.created_at >= $2
        )
    `
	rows, err := r.pool.Query(ctx, q, kind, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list lapsed accounts for resource %s: %w", kind, err)
	}
	defer rows.Close()

	var out []LapsedAccount
	for rows.Next() {
		var la LapsedAccount
		if err := rows.Scan(&la.AccountID, &la.QuotaLimit); err != nil {
			return nil, fmt.Errorf("scan lapsed account: %w", err)
		}
		out = append(out, la)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lapsed accounts: %w", err)
	}
	return out, nil
}
