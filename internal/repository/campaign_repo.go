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

// CampaignRepository tracks outbound-calling campaigns handed to the provider.
type CampaignRepository interface {
	// GetRecentActive returns the newest campaign for the account and number
	// that is still marked active and was created after since.
	// Returns (nil, nil) when there is none.
	GetRecentActive(ctx context.Context, accountID, number string, since time.Time) (*model.Campaign, error)
	MarkStopped(ctx context.Context, campaignID string) error
}

type campaignRepo struct {
	pool *pgxpool.Pool
}

// NewCampaignRepo creates a new CampaignRepository.
func NewCampaignRepo(pool *pgxpool.Pool) CampaignRepository {
	return &campaignRepo{pool: pool}
}

func (r *campaignRepo) GetRecentActive(ctx context.Context, accountID, number string, since time.Time) (*model.Campaign, error) {
	const q = `
        SELECT id, account_id, number, provider_list_id, status, created_at
        FROM campaigns
        WHERE account_id = $1
          AND number = $2
          AND status = 'active'
          AND created_at >= $3
        ORDER BY created_at DESC
        LIMIT 1
    `
	var c model.Campaign
	err := r.pool.QueryRow(ctx, q, accountID, number, since).Scan(
		&c.ID,
		&c.AccountID,
		&c.Number,
		&c.ProviderListID,
		&c.Status,
		&c.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch recent active campaign for account %s number %s: %w", accountID, number, err)
	}
	return &c, nil
}

func (r *campaignRepo) MarkStopped(ctx context.Context, campaignID string) error {
	const q = `
        UPDATE campaigns
        SET status = 'stopped'
        WHERE id = $1
    `
	if _, err := r.pool.Exec(ctx, q, campaignID); err != nil {
		return fmt.Errorf("mark campaign %s stopped: %w", campaignID, err)
	}
	return nil
}
