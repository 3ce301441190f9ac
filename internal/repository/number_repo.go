package repository

import (
	"context"
	"errors"
	"fmt"

	"app/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNumberNotFound is returned when a number is absent from the registry.
var ErrNumberNotFound = errors.New("phone number not found")

// NumberRepository resolves phone numbers to the accounts that own them.
type NumberRepository interface {
	GetByNumber(ctx context.Context, number string) (*model.PhoneNumber, error)
}

type numberRepo struct {
	pool *pgxpool.Pool
}

// NewNumberRepo creates a new NumberRepository.
func NewNumberRepo(pool *pgxpool.Pool) NumberRepository {
	return &numberRepo{pool: pool}
}

func (r *numberRepo) GetByNumber(ctx context.Context, number string) (*model.PhoneNumber, error) {
	const q = `
        SELECT number, account_id, active, sms_enabled, created_at
        FROM phone_numbers
        WHERE number = $1
    `
	var n model.PhoneNumber
	err := r.pool.QueryRow(ctx, q, number).Scan(
		&n.Number,
		&n.AccountID,
		&n.Active,
		&n.SMSEnabled,
		&n.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNumberNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch phone number %s: %w", number, err)
	}
	return &n, nil
}
