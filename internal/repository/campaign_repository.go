package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	appErrors "github.com/unclebandit/notification-campaigns/internal/errors"
	"github.com/unclebandit/notification-campaigns/internal/model"
)

type CampaignRepositoryInterface interface {
	Create(ctx context.Context, c *model.Campaign, recipientIDs []int) error
	GetByID(ctx context.Context, id int) (*model.Campaign, error)
	ListCampaigns(ctx context.Context, offset, limit int) ([]*model.Campaign, int, error)
}

type CampaignRepository struct {
	DB *sql.DB
}

// ====================== Campaign CRUD ======================

// Create inserts the campaign and one pending ledger row per recipient in a
// single transaction. recipientIDs keep their order through the position column.
func (r *CampaignRepository) Create(ctx context.Context, c *model.Campaign, recipientIDs []int) (err error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin campaign tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	query := `
        INSERT INTO campaigns (text, created_at)
        VALUES ($1, NOW())
        RETURNING id, created_at
    `
	if err = tx.QueryRowContext(ctx, query, c.Text).Scan(&c.ID, &c.CreatedAt); err != nil {
		return fmt.Errorf("insert campaign: %w", err)
	}

	keys := make([]int64, len(recipientIDs))
	for i, id := range recipientIDs {
		keys[i] = int64(id)
	}

	ledger := `
        INSERT INTO campaign_recipients (campaign_id, recipient_id, position, status, created_at)
        SELECT $1, r.id, r.pos, 'pending', $2
        FROM unnest($3::int[]) WITH ORDINALITY AS r(id, pos)
    `
	if _, err = tx.ExecContext(ctx, ledger, c.ID, c.CreatedAt, pq.Array(keys)); err != nil {
		if pgCode(err) == pgForeignKeyViolation {
			return appErrors.New(appErrors.KindNotFound, "campaign references a recipient that no longer exists", err)
		}
		return fmt.Errorf("insert delivery records: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit campaign: %w", err)
	}
	return nil
}

func (r *CampaignRepository) GetByID(ctx context.Context, id int) (*model.Campaign, error) {
	query := `SELECT id, text, created_at FROM campaigns WHERE id = $1`

	var c model.Campaign
	err := r.DB.QueryRowContext(ctx, query, id).Scan(&c.ID, &c.Text, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewCampaignNotFound(id)
		}
		return nil, err
	}
	return &c, nil
}

func (r *CampaignRepository) ListCampaigns(ctx context.Context, offset, limit int) ([]*model.Campaign, int, error) {
	campaigns := []*model.Campaign{}

	query := `SELECT id, text, created_at FROM campaigns ORDER BY id DESC LIMIT $1 OFFSET $2`
	rows, err := r.DB.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	for rows.Next() {
		c := &model.Campaign{}
		if err := rows.Scan(&c.ID, &c.Text, &c.CreatedAt); err != nil {
			return nil, 0, err
		}
		campaigns = append(campaigns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	// Count total
	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM campaigns`).Scan(&total); err != nil {
		return nil, 0, err
	}

	return campaigns, total, nil
}

var _ CampaignRepositoryInterface = (*CampaignRepository)(nil)
