// internal/handler/status_handler.go
package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/unclebandit/notification-campaigns/internal/controller"
	"github.com/unclebandit/notification-campaigns/internal/response"
	"github.com/unclebandit/notification-campaigns/internal/service"
)

// StatusHandler serves delivery progress of a campaign.
type StatusHandler struct {
	Service *service.StatusService
	Logger  *zap.Logger
}

func (h *StatusHandler) GetCampaignStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := controller.CampaignID(w, r)
	if !ok {
		return
	}

	summary, err := h.Service.GetStatus(r.Context(), id)
	if err != nil {
		response.FromError(w, h.Logger, err)
		return
	}

	response.JSON(w, http.StatusOK, summary)
}

// Healthz reports liveness.
func Healthz(w http.ResponseWriter, _ *http.Request) {
	response.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
