// internal/model/delivery.go
package model

import "time"

type DeliveryStatus string

const (
	DeliveryPending DeliveryStatus = "pending"
	DeliverySent    DeliveryStatus = "sent"
	DeliveryFailed  DeliveryStatus = "failed"
)

// Terminal reports whether no further transition can happen.
func (s DeliveryStatus) Terminal() bool {
	return s == DeliverySent || s == DeliveryFailed
}

// DeliveryRecord is the ledger entry of one recipient in one campaign.
type DeliveryRecord struct {
	CampaignID  int            `db:"campaign_id" json:"campaign_id"`
	RecipientID int            `db:"recipient_id" json:"recipient_id"`
	Status      DeliveryStatus `db:"status" json:"status"`
	LastError   *string        `db:"last_error" json:"last_error,omitempty"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	SentAt      *time.Time     `db:"sent_at" json:"sent_at,omitempty"`
}

// DeliveryTarget joins a ledger entry with the recipient it addresses.
type DeliveryTarget struct {
	Recipient Recipient      `json:"recipient"`
	Record    DeliveryRecord `json:"delivery"`
}
