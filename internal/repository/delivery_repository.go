package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/unclebandit/notification-campaigns/internal/model"
)

// DeliveryRepositoryInterface is the recipient ledger.
type DeliveryRepositoryInterface interface {
	ListTargets(ctx context.Context, campaignID int) ([]model.DeliveryTarget, error)
	MarkSent(ctx context.Context, campaignID, recipientID int, sentAt time.Time) error
	MarkFailed(ctx context.Context, campaignID, recipientID int, reason string) error
	CountByStatus(ctx context.Context, campaignID int) (map[model.DeliveryStatus]int, error)
}

type DeliveryRepository struct {
	DB *sql.DB
}

// ListTargets returns every ledger row of the campaign joined with its
// recipient, in the order recipients were given at creation.
func (r *DeliveryRepository) ListTargets(ctx context.Context, campaignID int) ([]model.DeliveryTarget, error) {
	query := `
        SELECT cr.campaign_id, cr.recipient_id, cr.status, cr.last_error, cr.created_at, cr.sent_at,
               r.id, r.email, r.telegram_id, r.created_at
        FROM campaign_recipients cr
        JOIN recipients r ON r.id = cr.recipient_id
        WHERE cr.campaign_id = $1
        ORDER BY cr.position
    `
	rows, err := r.DB.QueryContext(ctx, query, campaignID)
	if err != nil {
		return nil, fmt.Errorf("list delivery targets: %w", err)
	}
	defer rows.Close()

	targets := []model.DeliveryTarget{}
	for rows.Next() {
		var t model.DeliveryTarget
		if err := rows.Scan(
			&t.Record.CampaignID, &t.Record.RecipientID, &t.Record.Status,
			&t.Record.LastError, &t.Record.CreatedAt, &t.Record.SentAt,
			&t.Recipient.ID, &t.Recipient.Email, &t.Recipient.TelegramID, &t.Recipient.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan delivery target: %w", err)
		}
		targets = append(targets, t)
	}
	return targets, rows.Err()
}

// MarkSent moves a pending row to sent. Rows already terminal are left alone
// and ErrNotPending is returned.
func (r *DeliveryRepository) MarkSent(ctx context.Context, campaignID, recipientID int, sentAt time.Time) error {
	query := `
        UPDATE campaign_recipients
        SET status = 'sent', sent_at = $1, last_error = NULL
        WHERE campaign_id = $2 AND recipient_id = $3 AND status = 'pending'
    `
	res, err := r.DB.ExecContext(ctx, query, sentAt, campaignID, recipientID)
	if err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}
	return expectOneRow(res)
}

// MarkFailed moves a pending row to failed, keeping sent_at null.
func (r *DeliveryRepository) MarkFailed(ctx context.Context, campaignID, recipientID int, reason string) error {
	query := `
        UPDATE campaign_recipients
        SET status = 'failed', last_error = $1
        WHERE campaign_id = $2 AND recipient_id = $3 AND status = 'pending'
    `
	res, err := r.DB.ExecContext(ctx, query, reason, campaignID, recipientID)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return expectOneRow(res)
}

func (r *DeliveryRepository) CountByStatus(ctx context.Context, campaignID int) (map[model.DeliveryStatus]int, error) {
	query := `SELECT status, COUNT(*) FROM campaign_recipients WHERE campaign_id = $1 GROUP BY status`
	rows, err := r.DB.QueryContext(ctx, query, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := map[model.DeliveryStatus]int{
		model.DeliveryPending: 0,
		model.DeliverySent:    0,
		model.DeliveryFailed:  0,
	}
	for rows.Next() {
		var status model.DeliveryStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotPending
	}
	return nil
}

var _ DeliveryRepositoryInterface = (*DeliveryRepository)(nil)
