package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"skin-casino/internal/service"
)

// Error codes carried in the error envelope.
const (
	CodeInvalidInput        = "INVALID_INPUT"
	CodeInsufficientBalance = "INSUFFICIENT_BALANCE"
	CodeUserNotFound        = "USER_NOT_FOUND"
	CodeRecordNotFound      = "RECORD_NOT_FOUND"
	CodeRoundNotFound       = "ROUND_NOT_FOUND"
	CodeRoundClosed         = "ROUND_CLOSED"
	CodeStorageUnavailable  = "STORAGE_UNAVAILABLE"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeRateLimited         = "RATE_LIMITED"
	CodeNotFound            = "NOT_FOUND"
	CodeInternal            = "INTERNAL_ERROR"
)

type dataEnvelope struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

type errorEnvelope struct {
	Success bool      `json:"success"`
	Error   errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, dataEnvelope{Success: true, Data: data})
}

func writeFailure(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorEnvelope{Error: errorBody{Code: code, Message: message}})
}

// writeError maps a service error to its status code. Storage failures are
// logged and reported without their cause.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
		message = "storage unavailable, please retry"
	}
	writeFailure(w, status, code, message)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest, CodeInvalidInput
	case errors.Is(err, service.ErrInsufficientBalance):
		return http.StatusBadRequest, CodeInsufficientBalance
	case errors.Is(err, service.ErrUserNotFound):
		return http.StatusNotFound, CodeUserNotFound
	case errors.Is(err, service.ErrRecordNotFound):
		return http.StatusNotFound, CodeRecordNotFound
	case errors.Is(err, service.ErrRoundNotFound):
		return http.StatusNotFound, CodeRoundNotFound
	case errors.Is(err, service.ErrRoundClosed):
		return http.StatusConflict, CodeRoundClosed
	default:
		return http.StatusInternalServerError, CodeStorageUnavailable
	}
}
