// internal/model/recipient.go
package model

import "time"

type Recipient struct {
	ID         int       `db:"id" json:"id"`
	Email      string    `db:"email" json:"email"`
	TelegramID *string   `db:"telegram_id" json:"telegram_id,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// HasHandle reports whether the recipient can receive direct messages.
func (r *Recipient) HasHandle() bool {
	return r.TelegramID != nil && *r.TelegramID != ""
}

// RecipientUpdate lists the fields a caller may change on a recipient.
// Nil pointers leave the field untouched; ClearTelegramID removes the handle.
type RecipientUpdate struct {
	Email           *string
	TelegramID      *string
	ClearTelegramID bool
}

// Empty reports whether the update would change nothing.
func (u RecipientUpdate) Empty() bool {
	return u.Email == nil && u.TelegramID == nil && !u.ClearTelegramID
}

// Apply copies the set fields onto r.
func (u RecipientUpdate) Apply(r *Recipient) {
	if u.Email != nil {
		r.Email = *u.Email
	}
	switch {
	case u.ClearTelegramID:
		r.TelegramID = nil
	case u.TelegramID != nil:
		handle := *u.TelegramID
		r.TelegramID = &handle
	}
}
