package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/unclebandit/notification-campaigns/internal/errors"
	"github.com/unclebandit/notification-campaigns/internal/metrics"
	"github.com/unclebandit/notification-campaigns/internal/model"
	"github.com/unclebandit/notification-campaigns/internal/repository"
	"github.com/unclebandit/notification-campaigns/internal/transport"
)

// CampaignFinder is the part of the campaign store the engine reads.
type CampaignFinder interface {
	GetByID(ctx context.Context, id int) (*model.Campaign, error)
}

// Report summarises one delivery run.
type Report struct {
	CampaignID int
	Found      bool
	Attempted  int
	Sent       int
	Failed     int
	Skipped    int
}

// Engine delivers a campaign to every pending recipient, one at a time.
type Engine struct {
	Campaigns   CampaignFinder
	Ledger      repository.DeliveryRepositoryInterface
	Email       transport.EmailSender
	Direct      transport.DirectMessageSender
	Logger      *zap.Logger
	SendTimeout time.Duration
	Now         func() time.Time
}

func NewEngine(
	campaigns CampaignFinder,
	ledger repository.DeliveryRepositoryInterface,
	email transport.EmailSender,
	direct transport.DirectMessageSender,
	log *zap.Logger,
) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		Campaigns: campaigns,
		Ledger:    ledger,
		Email:     email,
		Direct:    direct,
		Logger:    log,
		Now:       func() time.Time { return time.Now().UTC() },
	}
}

// Deliver runs the campaign. Send failures are recorded on the ledger and
// never returned; ledger errors abort the run so the queue can redeliver.
// Terminal records are skipped, which makes a second run a no-op.
func (e *Engine) Deliver(ctx context.Context, campaignID int) (*Report, error) {
	report := &Report{CampaignID: campaignID}
	log := e.Logger.With(zap.Int("campaign_id", campaignID))

	campaign, err := e.Campaigns.GetByID(ctx, campaignID)
	if err != nil {
		if appErrors.IsKind(err, appErrors.KindNotFound) {
			log.Warn("campaign not found, nothing to deliver")
			return report, nil
		}
		return report, fmt.Errorf("load campaign %d: %w", campaignID, err)
	}
	report.Found = true

	targets, err := e.Ledger.ListTargets(ctx, campaignID)
	if err != nil {
		return report, fmt.Errorf("load recipients of campaign %d: %w", campaignID, err)
	}

	for _, target := range targets {
		if target.Record.Status.Terminal() {
			report.Skipped++
			continue
		}
		report.Attempted++

		recipient := target.Recipient
		rlog := log.With(zap.Int("recipient_id", recipient.ID))

		if sendErr := e.sendTo(ctx, campaign.Text, &recipient); sendErr != nil {
			rlog.Warn("delivery failed", zap.Error(sendErr))
			err = e.Ledger.MarkFailed(ctx, campaignID, recipient.ID, sendErr.Error())
			if err == nil {
				report.Failed++
			}
		} else {
			err = e.Ledger.MarkSent(ctx, campaignID, recipient.ID, e.Now())
			if err == nil {
				report.Sent++
			}
		}

		switch {
		case errors.Is(err, repository.ErrNotPending):
			// another run already finished this recipient
			rlog.Warn("delivery record no longer pending, left untouched")
			report.Skipped++
		case err != nil:
			return report, fmt.Errorf("update delivery record %d/%d: %w", campaignID, recipient.ID, err)
		}
	}

	log.Info("campaign delivery finished",
		zap.Int("attempted", report.Attempted),
		zap.Int("sent", report.Sent),
		zap.Int("failed", report.Failed),
		zap.Int("skipped", report.Skipped),
	)
	return report, nil
}

// sendTo treats email and direct message as one unit: the first failure stops
// the recipient.
func (e *Engine) sendTo(ctx context.Context, text string, r *model.Recipient) error {
	err := e.withTimeout(ctx, func(ctx context.Context) error {
		return e.Email.SendEmail(ctx, r.Email, text)
	})
	metrics.ObserveDelivery(transport.ChannelEmail, err)
	if err != nil {
		return appErrors.NewTransportFailure(transport.ChannelEmail, err)
	}

	if !r.HasHandle() {
		return nil
	}

	err = e.withTimeout(ctx, func(ctx context.Context) error {
		return e.Direct.SendDirectMessage(ctx, *r.TelegramID, text)
	})
	metrics.ObserveDelivery(transport.ChannelTelegram, err)
	if err != nil {
		return appErrors.NewTransportFailure(transport.ChannelTelegram, err)
	}
	return nil
}

func (e *Engine) withTimeout(ctx context.Context, send func(context.Context) error) error {
	if e.SendTimeout <= 0 {
		return send(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, e.SendTimeout)
	defer cancel()
	return send(ctx)
}
