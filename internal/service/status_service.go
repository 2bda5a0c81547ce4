package service

import (
	"context"

	"github.com/unclebandit/notification-campaigns/internal/model"
	"github.com/unclebandit/notification-campaigns/internal/repository"
)

type StatusService struct {
	CampaignRepo repository.CampaignRepositoryInterface
	DeliveryRepo repository.DeliveryRepositoryInterface
}

// GetStatus counts the campaign's delivery records and derives the overall status.
func (s *StatusService) GetStatus(ctx context.Context, campaignID int) (*model.StatusSummary, error) {
	campaign, err := s.CampaignRepo.GetByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	counts, err := s.DeliveryRepo.CountByStatus(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	return model.NewStatusSummary(campaign, counts), nil
}
