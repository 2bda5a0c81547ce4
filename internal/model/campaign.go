// internal/model/campaign.go
package model

import "time"

const (
	MaxCampaignTextLength = 1000
	MaxCampaignRecipients = 1000
)

type Campaign struct {
	ID        int       `db:"id" json:"id"`
	Text      string    `db:"text" json:"text"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// CampaignDetails is a campaign together with the delivery row of every recipient.
type CampaignDetails struct {
	Campaign
	Recipients []DeliveryTarget `json:"recipients"`
}

type CampaignStatus string

const (
	CampaignPending    CampaignStatus = "pending"
	CampaignInProgress CampaignStatus = "in_progress"
	CampaignCompleted  CampaignStatus = "completed"
	CampaignFailed     CampaignStatus = "failed"
)

// StatusSummary is computed from the ledger on every read, never stored.
type StatusSummary struct {
	ID        int            `json:"id"`
	Status    CampaignStatus `json:"status"`
	Total     int            `json:"total_notifications"`
	Sent      int            `json:"sent_notifications"`
	Failed    int            `json:"failed_notifications"`
	Pending   int            `json:"pending_notifications"`
	CreatedAt time.Time      `json:"created_at"`
}

// DeriveCampaignStatus applies the overall status rules in priority order.
func DeriveCampaignStatus(total, sent, failed int) CampaignStatus {
	switch {
	case failed == total:
		return CampaignFailed
	case sent == total:
		return CampaignCompleted
	case sent > 0 || failed > 0:
		return CampaignInProgress
	default:
		return CampaignPending
	}
}

// NewStatusSummary builds a summary from per-status record counts.
func NewStatusSummary(c *Campaign, counts map[DeliveryStatus]int) *StatusSummary {
	sent := counts[DeliverySent]
	failed := counts[DeliveryFailed]
	pending := counts[DeliveryPending]
	total := sent + failed + pending

	return &StatusSummary{
		ID:        c.ID,
		Status:    DeriveCampaignStatus(total, sent, failed),
		Total:     total,
		Sent:      sent,
		Failed:    failed,
		Pending:   pending,
		CreatedAt: c.CreatedAt,
	}
}
