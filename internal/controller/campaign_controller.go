// internal/controller/campaign_controller.go
package controller

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/unclebandit/notification-campaigns/internal/response"
	"github.com/unclebandit/notification-campaigns/internal/service"
)

type CampaignController struct {
	CampaignService *service.CampaignService
	Logger          *zap.Logger
}

func (c *CampaignController) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Text         string `json:"text"`
		RecipientIDs []int  `json:"recipient_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid body")
		return
	}

	campaign, err := c.CampaignService.CreateCampaign(r.Context(), body.Text, body.RecipientIDs)
	if err != nil {
		response.FromError(w, c.Logger, err)
		return
	}

	response.JSON(w, http.StatusCreated, campaign)
}

func (c *CampaignController) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	// Parse query parameters
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))

	campaigns, pagination, err := c.CampaignService.ListCampaigns(r.Context(), page, pageSize)
	if err != nil {
		response.FromError(w, c.Logger, err)
		return
	}

	response.JSON(w, http.StatusOK, map[string]interface{}{
		"campaigns":  campaigns,
		"pagination": pagination, // total_count, total_pages, page, page_size
	})
}

func (c *CampaignController) GetCampaign(w http.ResponseWriter, r *http.Request) {
	id, ok := CampaignID(w, r)
	if !ok {
		return
	}

	details, err := c.CampaignService.GetCampaign(r.Context(), id)
	if err != nil {
		response.FromError(w, c.Logger, err)
		return
	}

	response.JSON(w, http.StatusOK, details)
}

// DispatchCampaign re-enqueues delivery; only pending recipients are contacted.
func (c *CampaignController) DispatchCampaign(w http.ResponseWriter, r *http.Request) {
	id, ok := CampaignID(w, r)
	if !ok {
		return
	}

	if err := c.CampaignService.Dispatch(r.Context(), id); err != nil {
		response.FromError(w, c.Logger, err)
		return
	}

	response.JSON(w, http.StatusAccepted, map[string]interface{}{
		"campaign_id": id,
		"status":      "queued",
	})
}

// CampaignID parses the {id} path parameter and writes 400 when it is not a
// positive integer.
func CampaignID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id < 1 {
		response.Error(w, http.StatusBadRequest, "invalid campaign id")
		return 0, false
	}
	return id, true
}
