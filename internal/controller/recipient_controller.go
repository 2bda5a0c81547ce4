package controller

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/unclebandit/notification-campaigns/internal/model"
	"github.com/unclebandit/notification-campaigns/internal/response"
	"github.com/unclebandit/notification-campaigns/internal/service"
)

type RecipientController struct {
	RecipientService *service.RecipientService
	Logger           *zap.Logger
}

func (c *RecipientController) CreateRecipient(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email      string  `json:"email"`
		TelegramID *string `json:"telegram_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid body")
		return
	}

	rec, err := c.RecipientService.Create(r.Context(), body.Email, body.TelegramID)
	if err != nil {
		response.FromError(w, c.Logger, err)
		return
	}

	response.JSON(w, http.StatusCreated, rec)
}

func (c *RecipientController) ListRecipients(w http.ResponseWriter, r *http.Request) {
	recipients, err := c.RecipientService.List(r.Context())
	if err != nil {
		response.FromError(w, c.Logger, err)
		return
	}
	response.JSON(w, http.StatusOK, recipients)
}

func (c *RecipientController) GetRecipient(w http.ResponseWriter, r *http.Request) {
	id, ok := recipientID(w, r)
	if !ok {
		return
	}

	rec, err := c.RecipientService.Get(r.Context(), id)
	if err != nil {
		response.FromError(w, c.Logger, err)
		return
	}
	response.JSON(w, http.StatusOK, rec)
}

// UpdateRecipient applies a partial update. A JSON null telegram_id removes
// the handle; an absent field is left unchanged.
func (c *RecipientController) UpdateRecipient(w http.ResponseWriter, r *http.Request) {
	id, ok := recipientID(w, r)
	if !ok {
		return
	}

	var body map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid body")
		return
	}

	upd, err := decodeRecipientUpdate(body)
	if err != nil {
		response.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := c.RecipientService.Update(r.Context(), id, upd)
	if err != nil {
		response.FromError(w, c.Logger, err)
		return
	}
	response.JSON(w, http.StatusOK, rec)
}

type unknownFieldError string

func (e unknownFieldError) Error() string { return "field " + string(e) + " cannot be updated" }

func decodeRecipientUpdate(body map[string]json.RawMessage) (model.RecipientUpdate, error) {
	var upd model.RecipientUpdate
	for field, raw := range body {
		switch field {
		case "email":
			var email string
			if err := json.Unmarshal(raw, &email); err != nil {
				return upd, unknownFieldError(field)
			}
			upd.Email = &email
		case "telegram_id":
			if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
				upd.ClearTelegramID = true
				continue
			}
			var handle string
			if err := json.Unmarshal(raw, &handle); err != nil {
				return upd, unknownFieldError(field)
			}
			upd.TelegramID = &handle
		default:
			return upd, unknownFieldError(field)
		}
	}
	return upd, nil
}

func recipientID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id < 1 {
		response.Error(w, http.StatusBadRequest, "invalid recipient id")
		return 0, false
	}
	return id, true
}
