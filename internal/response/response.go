package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	appErrors "github.com/unclebandit/notification-campaigns/internal/errors"
)

type APIResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := APIResponse{
		Status: "success",
		Data:   data,
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func Error(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := APIResponse{
		Status:  "error",
		Message: msg,
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// StatusCode maps an app error kind to its HTTP status.
func StatusCode(err error) int {
	switch appErrors.KindOf(err) {
	case appErrors.KindValidation:
		return http.StatusBadRequest
	case appErrors.KindNotFound:
		return http.StatusNotFound
	case appErrors.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// FromError writes err with the status of its kind. Internal errors are
// logged and their details are not sent to the client.
func FromError(w http.ResponseWriter, log *zap.Logger, err error) {
	status := StatusCode(err)
	if status == http.StatusInternalServerError {
		if log != nil {
			log.Error("request failed", zap.Error(err))
		}
		Error(w, status, "internal server error")
		return
	}

	msg := err.Error()
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		msg = appErr.Reason
	}
	Error(w, status, msg)
}
