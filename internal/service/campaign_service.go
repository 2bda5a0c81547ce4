// internal/service/campaign_service.go
package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	appErrors "github.com/unclebandit/notification-campaigns/internal/errors"
	"github.com/unclebandit/notification-campaigns/internal/model"
	"github.com/unclebandit/notification-campaigns/internal/repository"
)

// Dispatcher hands a campaign to the delivery queue.
type Dispatcher interface {
	Enqueue(ctx context.Context, campaignID int) error
}

type CampaignService struct {
	CampaignRepo  repository.CampaignRepositoryInterface
	RecipientRepo repository.RecipientRepositoryInterface
	DeliveryRepo  repository.DeliveryRepositoryInterface
	Dispatcher    Dispatcher
	Logger        *zap.Logger
}

type createCampaignInput struct {
	Text         string `json:"text" validate:"required,max=1000"`
	RecipientIDs []int  `json:"recipient_ids" validate:"min=1,max=1000"`
}

// CreateCampaign validates the input, stores the campaign with one pending
// delivery record per recipient and enqueues it for delivery. Nothing is
// stored when validation or the recipient lookup fails. The returned details
// are read before the job is enqueued, so every record is still pending.
func (s *CampaignService) CreateCampaign(ctx context.Context, text string, recipientIDs []int) (*model.CampaignDetails, error) {
	in := createCampaignInput{Text: strings.TrimSpace(text), RecipientIDs: recipientIDs}
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	ids := uniqueIDs(in.RecipientIDs)

	found, err := s.RecipientRepo.ExistingIDs(ctx, ids)
	if err != nil {
		return nil, appErrors.NewInternal("look up recipients", err)
	}
	for _, id := range ids {
		if !found[id] {
			return nil, appErrors.NewRecipientNotFound(id)
		}
	}

	c := &model.Campaign{Text: in.Text}
	if err := s.CampaignRepo.Create(ctx, c, ids); err != nil {
		return nil, err
	}

	details := &model.CampaignDetails{Campaign: *c, Recipients: []model.DeliveryTarget{}}
	if s.DeliveryRepo != nil {
		targets, err := s.DeliveryRepo.ListTargets(ctx, c.ID)
		if err != nil {
			s.logger().Warn("failed to load created recipients", zap.Int("campaign_id", c.ID), zap.Error(err))
		} else {
			details.Recipients = targets
		}
	}

	// the campaign is stored; a lost job can be re-sent via Dispatch
	if s.Dispatcher != nil {
		if err := s.Dispatcher.Enqueue(ctx, c.ID); err != nil {
			s.logger().Error("failed to enqueue campaign", zap.Int("campaign_id", c.ID), zap.Error(err))
		}
	}

	return details, nil
}

// GetCampaign returns the campaign with the delivery record of every recipient.
func (s *CampaignService) GetCampaign(ctx context.Context, id int) (*model.CampaignDetails, error) {
	campaign, err := s.CampaignRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	targets, err := s.DeliveryRepo.ListTargets(ctx, id)
	if err != nil {
		return nil, err
	}

	return &model.CampaignDetails{Campaign: *campaign, Recipients: targets}, nil
}

// ListCampaigns fetches campaigns with pagination
func (s *CampaignService) ListCampaigns(ctx context.Context, page, pageSize int) ([]model.Campaign, map[string]int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	offset := (page - 1) * pageSize

	ptrs, total, err := s.CampaignRepo.ListCampaigns(ctx, offset, pageSize)
	if err != nil {
		return nil, nil, err
	}

	campaigns := make([]model.Campaign, len(ptrs))
	for i, c := range ptrs {
		campaigns[i] = *c
	}

	totalPages := (total + pageSize - 1) / pageSize
	pagination := map[string]int{
		"page":        page,
		"page_size":   pageSize,
		"total_count": total,
		"total_pages": totalPages,
	}

	return campaigns, pagination, nil
}

// Dispatch enqueues an existing campaign again. Recipients already delivered
// are skipped by the worker.
func (s *CampaignService) Dispatch(ctx context.Context, id int) error {
	if _, err := s.CampaignRepo.GetByID(ctx, id); err != nil {
		return err
	}
	if s.Dispatcher == nil {
		return appErrors.NewInternal("delivery queue not configured", nil)
	}
	if err := s.Dispatcher.Enqueue(ctx, id); err != nil {
		return appErrors.NewInternal("enqueue campaign", err)
	}
	return nil
}

func (s *CampaignService) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

// uniqueIDs drops repeated ids, keeping the first occurrence.
func uniqueIDs(ids []int) []int {
	seen := make(map[int]struct{}, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
