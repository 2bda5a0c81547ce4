package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/unclebandit/notification-campaigns/internal/errors"
	"github.com/unclebandit/notification-campaigns/internal/model"
	"github.com/unclebandit/notification-campaigns/internal/service"
)

func TestRecipientCreate(t *testing.T) {
	store := NewMockStore()
	svc := &service.RecipientService{RecipientRepo: store}

	rec, err := svc.Create(context.Background(), " alice@example.com ", strPtr(" 12345 "))
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", rec.Email)
	require.NotNil(t, rec.TelegramID)
	assert.Equal(t, "12345", *rec.TelegramID)
	assert.NotZero(t, rec.ID)
}

func TestRecipientCreateBlankHandleIsAbsent(t *testing.T) {
	svc := &service.RecipientService{RecipientRepo: NewMockStore()}

	rec, err := svc.Create(context.Background(), "alice@example.com", strPtr("   "))
	require.NoError(t, err)
	assert.False(t, rec.HasHandle())
}

func TestRecipientCreateInvalidEmail(t *testing.T) {
	svc := &service.RecipientService{RecipientRepo: NewMockStore()}

	for _, email := range []string{"", "not-an-email", "a@"} {
		_, err := svc.Create(context.Background(), email, nil)
		assert.True(t, appErrors.IsKind(err, appErrors.KindValidation), email)
	}
}

func TestRecipientCreateDuplicateEmail(t *testing.T) {
	store := NewMockStore()
	store.addRecipient("alice@example.com", nil)
	svc := &service.RecipientService{RecipientRepo: store}

	_, err := svc.Create(context.Background(), "alice@example.com", nil)
	assert.True(t, appErrors.IsKind(err, appErrors.KindConflict))
}

func TestRecipientGetAndList(t *testing.T) {
	store := NewMockStore()
	a := store.addRecipient("a@example.com", nil)
	store.addRecipient("b@example.com", nil)
	svc := &service.RecipientService{RecipientRepo: store}

	got, err := svc.Get(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", got.Email)

	_, err = svc.Get(context.Background(), 99)
	assert.True(t, appErrors.IsKind(err, appErrors.KindNotFound))

	all, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestRecipientUpdate(t *testing.T) {
	store := NewMockStore()
	a := store.addRecipient("a@example.com", strPtr("111"))
	svc := &service.RecipientService{RecipientRepo: store}

	rec, err := svc.Update(context.Background(), a.ID, model.RecipientUpdate{Email: strPtr("new@example.com")})
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", rec.Email)
	assert.Equal(t, "111", *rec.TelegramID)

	rec, err = svc.Update(context.Background(), a.ID, model.RecipientUpdate{ClearTelegramID: true})
	require.NoError(t, err)
	assert.Nil(t, rec.TelegramID)

	stored, err := store.GetByID(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", stored.Email)
	assert.False(t, stored.HasHandle())
}

func TestRecipientUpdateBlankHandleClears(t *testing.T) {
	store := NewMockStore()
	a := store.addRecipient("a@example.com", strPtr("111"))
	svc := &service.RecipientService{RecipientRepo: store}

	rec, err := svc.Update(context.Background(), a.ID, model.RecipientUpdate{TelegramID: strPtr("   ")})
	require.NoError(t, err)
	assert.False(t, rec.HasHandle())

	stored, err := store.GetByID(context.Background(), a.ID)
	require.NoError(t, err)
	assert.False(t, stored.HasHandle())
}

func TestRecipientUpdateErrors(t *testing.T) {
	store := NewMockStore()
	a := store.addRecipient("a@example.com", nil)
	store.addRecipient("b@example.com", nil)
	svc := &service.RecipientService{RecipientRepo: store}
	ctx := context.Background()

	_, err := svc.Update(ctx, a.ID, model.RecipientUpdate{})
	assert.True(t, appErrors.IsKind(err, appErrors.KindValidation))

	_, err = svc.Update(ctx, 99, model.RecipientUpdate{Email: strPtr("x@example.com")})
	assert.True(t, appErrors.IsKind(err, appErrors.KindNotFound))

	_, err = svc.Update(ctx, a.ID, model.RecipientUpdate{Email: strPtr("b@example.com")})
	assert.True(t, appErrors.IsKind(err, appErrors.KindConflict))

	_, err = svc.Update(ctx, a.ID, model.RecipientUpdate{Email: strPtr("broken")})
	assert.True(t, appErrors.IsKind(err, appErrors.KindValidation))

	// keeping the own address is not a conflict
	_, err = svc.Update(ctx, a.ID, model.RecipientUpdate{Email: strPtr("a@example.com")})
	assert.NoError(t, err)
}
