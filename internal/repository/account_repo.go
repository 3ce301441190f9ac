package repository

import (
	"context"
	"errors"
	"fmt"

	"app/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrAccountNotFound is returned when no account matches the given id.
var ErrAccountNotFound = errors.New("account not found")

// AccountRepository is the only component allowed to touch wallet balances.
type AccountRepository interface {
	GetAccount(ctx context.Context, id string) (*model.Account, error)
	// Debit atomically subtracts amountCents from the account balance and adds
	// it to lifetime spend, returning the new balance. The balance may go
	// negative; that is the signal a due payment exists.
	Debit(ctx context.Context, id string, amountCents int64) (int64, error)
	// Credit atomically adds amountCents to the account balance (top-up or
	// refund), returning the new balance.
	Credit(ctx context.Context, id string, amountCents int64) (int64, error)
	UpdateStripeCustomerID(ctx context.Context, id, customerID string) error
}

type accountRepo struct {
	pool *pgxpool.Pool
}

// NewAccountRepo creates a new AccountRepository.
func NewAccountRepo(pool *pgxpool.Pool) AccountRepository {
	return &accountRepo{pool: pool}
}

func (r *accountRepo) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	const q = `
        SELECT id, name, email, balance_cents, lifetime_spend_cents, stripe_customer_id, created_at, updated_at
        FROM accounts
        WHERE id = $1
    `
	var a model.Account
	err := r.pool.QueryRow(ctx, q, id).Scan(
		&a.ID,
		&a.Name,
		&a.Email,
		&a.BalanceCents,
		&a.LifetimeSpendCents,
		&a.StripeCustomerID,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch account %s: %w", id, err)
	}
	return &a, nil
}

// Debit runs as a single conditional update so that concurrent debits against
// the same account never lose each other's writes.
func (r *accountRepo) Debit(ctx context.Context, id string, amountCents int64) (int64, error) {
	const q = `
        UPDATE accounts
        SET balance_cents = balance_cents - $2,
            lifetime_spend_cents = lifetime_spend_cents + $2,
            updated_at = NOW()
        WHERE id = $1
        RETURNING balance_cents
    `
	var newBalance int64
	err := r.pool.QueryRow(ctx, q, id, amountCents).Scan(&newBalance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrAccountNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("debit account %s by %d: %w", id, amountCents, err)
	}
	return newBalance, nil
}

func (r *accountRepo) Credit(ctx context.Context, id string, amountCents int64) (int64, error) {
	const q = `
        UPDATE accounts
        SET balance_cents = balance_cents + $2,
            updated_at = NOW()
        WHERE id = $1
        RETURNING balance_cents
    `
	var newBalance int64
	err := r.pool.QueryRow(ctx, q, id, amountCents).Scan(&newBalance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrAccountNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("credit account %s by %d: %w", id, amountCents, err)
	}
	return newBalance, nil
}

func (r *accountRepo) UpdateStripeCustomerID(ctx context.Context, id, customerID string) error {
	const q = `
        UPDATE accounts
        SET stripe_customer_id = $2, updated_at = NOW()
        WHERE id = $1
    `
	if _, err := r.pool.Exec(ctx, q, id, customerID); err != nil {
		return fmt.Errorf("store stripe customer id for account %s: %w", id, err)
	}
	return nil
}
