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

// RecipientRepositoryInterface defines methods used by services
type RecipientRepositoryInterface interface {
	Create(ctx context.Context, r *model.Recipient) error
	GetByID(ctx context.Context, id int) (*model.Recipient, error)
	GetByEmail(ctx context.Context, email string) (*model.Recipient, error)
	ListAll(ctx context.Context) ([]model.Recipient, error)
	ExistingIDs(ctx context.Context, ids []int) (map[int]bool, error)
	Update(ctx context.Context, r *model.Recipient) error
}

// RecipientRepository is the Postgres implementation
type RecipientRepository struct {
	DB *sql.DB
}

func (r *RecipientRepository) Create(ctx context.Context, rec *model.Recipient) error {
	query := `
        INSERT INTO recipients (email, telegram_id, created_at)
        VALUES ($1, $2, NOW())
        RETURNING id, created_at
    `
	err := r.DB.QueryRowContext(ctx, query, rec.Email, rec.TelegramID).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		if pgCode(err) == pgUniqueViolation {
			return appErrors.NewConflict("recipient with email %s already exists", rec.Email)
		}
		return fmt.Errorf("insert recipient: %w", err)
	}
	return nil
}

// GetByID fetches a recipient by ID
func (r *RecipientRepository) GetByID(ctx context.Context, id int) (*model.Recipient, error) {
	query := `SELECT id, email, telegram_id, created_at FROM recipients WHERE id = $1`

	var rec model.Recipient
	err := r.DB.QueryRowContext(ctx, query, id).Scan(&rec.ID, &rec.Email, &rec.TelegramID, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewRecipientNotFound(id)
		}
		return nil, err
	}
	return &rec, nil
}

// GetByEmail returns nil, nil when no recipient uses the address.
func (r *RecipientRepository) GetByEmail(ctx context.Context, email string) (*model.Recipient, error) {
	query := `SELECT id, email, telegram_id, created_at FROM recipients WHERE email = $1`

	var rec model.Recipient
	err := r.DB.QueryRowContext(ctx, query, email).Scan(&rec.ID, &rec.Email, &rec.TelegramID, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

func (r *RecipientRepository) ListAll(ctx context.Context) ([]model.Recipient, error) {
	query := `SELECT id, email, telegram_id, created_at FROM recipients ORDER BY id`
	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	recipients := []model.Recipient{}
	for rows.Next() {
		var rec model.Recipient
		if err := rows.Scan(&rec.ID, &rec.Email, &rec.TelegramID, &rec.CreatedAt); err != nil {
			return nil, err
		}
		recipients = append(recipients, rec)
	}
	return recipients, rows.Err()
}

// ExistingIDs reports which of ids are present in the registry.
func (r *RecipientRepository) ExistingIDs(ctx context.Context, ids []int) (map[int]bool, error) {
	query := `SELECT id FROM recipients WHERE id = ANY($1)`

	keys := make([]int64, len(ids))
	for i, id := range ids {
		keys[i] = int64(id)
	}

	rows, err := r.DB.QueryContext(ctx, query, pq.Array(keys))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	found := make(map[int]bool, len(ids))
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		found[id] = true
	}
	return found, rows.Err()
}

func (r *RecipientRepository) Update(ctx context.Context, rec *model.Recipient) error {
	query := `UPDATE recipients SET email = $1, telegram_id = $2 WHERE id = $3`
	res, err := r.DB.ExecContext(ctx, query, rec.Email, rec.TelegramID, rec.ID)
	if err != nil {
		if pgCode(err) == pgUniqueViolation {
			return appErrors.NewConflict("recipient with email %s already exists", rec.Email)
		}
		return fmt.Errorf("update recipient: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return appErrors.NewRecipientNotFound(rec.ID)
	}
	return nil
}

var _ RecipientRepositoryInterface = (*RecipientRepository)(nil)
