package service

import (
	"context"
	"strings"

	appErrors "github.com/unclebandit/notification-campaigns/internal/errors"
	"github.com/unclebandit/notification-campaigns/internal/model"
	"github.com/unclebandit/notification-campaigns/internal/repository"
)

type RecipientService struct {
	RecipientRepo repository.RecipientRepositoryInterface
}

type recipientInput struct {
	Email      string  `json:"email" validate:"required,email,max=255"`
	TelegramID *string `json:"telegram_id" validate:"omitempty,min=1,max=64"`
}

func (s *RecipientService) Create(ctx context.Context, email string, telegramID *string) (*model.Recipient, error) {
	in := recipientInput{Email: strings.TrimSpace(email), TelegramID: trimHandle(telegramID)}
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	existing, err := s.RecipientRepo.GetByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, appErrors.NewConflict("recipient with email %s already exists", in.Email)
	}

	rec := &model.Recipient{Email: in.Email, TelegramID: in.TelegramID}
	if err := s.RecipientRepo.Create(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *RecipientService) Get(ctx context.Context, id int) (*model.Recipient, error) {
	return s.RecipientRepo.GetByID(ctx, id)
}

func (s *RecipientService) List(ctx context.Context) ([]model.Recipient, error) {
	return s.RecipientRepo.ListAll(ctx)
}

// Update applies the named fields of upd. Changing the email to one used by
// another recipient is a Conflict.
func (s *RecipientService) Update(ctx context.Context, id int, upd model.RecipientUpdate) (*model.Recipient, error) {
	if upd.Empty() {
		return nil, appErrors.NewValidation("no fields to update")
	}

	rec, err := s.RecipientRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if upd.Email != nil {
		email := strings.TrimSpace(*upd.Email)
		upd.Email = &email
	}
	if !upd.ClearTelegramID && upd.TelegramID != nil {
		// a blank handle removes the one on record
		upd.TelegramID = trimHandle(upd.TelegramID)
		upd.ClearTelegramID = upd.TelegramID == nil
	}
	upd.Apply(rec)

	if err := validateStruct(recipientInput{Email: rec.Email, TelegramID: rec.TelegramID}); err != nil {
		return nil, err
	}

	if upd.Email != nil {
		other, err := s.RecipientRepo.GetByEmail(ctx, rec.Email)
		if err != nil {
			return nil, err
		}
		if other != nil && other.ID != rec.ID {
			return nil, appErrors.NewConflict("recipient with email %s already exists", rec.Email)
		}
	}

	if err := s.RecipientRepo.Update(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// trimHandle treats a blank handle as absent.
func trimHandle(h *string) *string {
	if h == nil {
		return nil
	}
	v := strings.TrimSpace(*h)
	if v == "" {
		return nil
	}
	return &v
}
