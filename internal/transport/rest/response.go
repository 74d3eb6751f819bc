package rest

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Meixii/thesis-production-sub001/internal/domain"
)

type APIResponse struct {
	ErrorCode int         `json:"error_code"`
	Status    string      `json:"status"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data"`
}

func Response(w http.ResponseWriter, message string, data interface{}, errorCode int, status string, httpStatus int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)

	response := APIResponse{
		ErrorCode: errorCode,
		Status:    status,
		Message:   message,
		Data:      data,
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("write response failed", "error", err)
	}
}

func Success(w http.ResponseWriter, message string, data interface{}) {
	Response(w, message, data, 0, "success", http.StatusOK)
}

func SuccessCreated(w http.ResponseWriter, message string, data interface{}) {
	Response(w, message, data, 0, "success", http.StatusCreated)
}

func Error(w http.ResponseWriter, message string, errorCode int, httpStatus int) {
	Response(w, message, nil, errorCode, "error", httpStatus)
}

func ErrorBadRequest(w http.ResponseWriter, message string) {
	Error(w, message, 400, http.StatusBadRequest)
}

func ErrorUnauthorized(w http.ResponseWriter, message string) {
	Error(w, message, 401, http.StatusUnauthorized)
}

func ErrorNotFound(w http.ResponseWriter, message string) {
	Error(w, message, 404, http.StatusNotFound)
}

func ErrorInternal(w http.ResponseWriter, message string) {
	Error(w, message, 500, http.StatusInternalServerError)
}

// ErrorFrom maps the service error taxonomy onto HTTP statuses. Anything
// outside the taxonomy is an internal error and gets logged with its cause;
// the client sees a generic message.
func ErrorFrom(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		Error(w, err.Error(), 400, http.StatusBadRequest)
	case errors.Is(err, domain.ErrUnauthorized):
		Error(w, err.Error(), 403, http.StatusForbidden)
	case errors.Is(err, domain.ErrNotFound):
		Error(w, err.Error(), 404, http.StatusNotFound)
	case errors.Is(err, domain.ErrConflict):
		Error(w, err.Error(), 409, http.StatusConflict)
	case errors.Is(err, domain.ErrInsufficientBalance):
		Error(w, err.Error(), 422, http.StatusUnprocessableEntity)
	default:
		slog.Error("request failed", "error", err)
		ErrorInternal(w, "internal error")
	}
}
