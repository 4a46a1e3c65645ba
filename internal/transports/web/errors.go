package web

import (
	"context"
	"errors"
	"net/http"

	"coffeeshop/internal/auth"
	"coffeeshop/internal/core"
)

var (
	errMalformedBody = errors.New("malformed request body")
	errBodyTooLarge  = errors.New("request body too large")
)

var statusMessages = map[int]string{
	http.StatusBadRequest:            "Bad request",
	http.StatusNotFound:              "resource not found",
	http.StatusMethodNotAllowed:      "Method not allowed",
	http.StatusRequestEntityTooLarge: "payload too large",
	http.StatusUnprocessableEntity:   "unprocessable",
	http.StatusTooManyRequests:       "too many requests",
	http.StatusServiceUnavailable:    "service unavailable",
	http.StatusGatewayTimeout:        "request timeout",
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   int    `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func writeError(w http.ResponseWriter, r *http.Request, statusCode int) {
	msg, ok := statusMessages[statusCode]
	if !ok {
		msg = http.StatusText(statusCode)
	}
	writeJSON(w, r, statusCode, errorResponse{Error: statusCode, Message: msg})
}

func writeAuthError(w http.ResponseWriter, r *http.Request, statusCode int, code, description string) {
	writeJSON(w, r, statusCode, errorResponse{Error: statusCode, Message: description, Code: code})
}

// statusFor переводит ошибку операции в HTTP-статус.
// Ложный second означает непредвиденную ошибку, которую нужно залогировать.
func statusFor(err error) (int, bool) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound, true
	case errors.Is(err, core.ErrInvalid), errors.Is(err, core.ErrConflict):
		return http.StatusUnprocessableEntity, true
	case errors.Is(err, errBodyTooLarge):
		return http.StatusRequestEntityTooLarge, true
	case errors.Is(err, errMalformedBody):
		return http.StatusBadRequest, true
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, true
	default:
		return http.StatusBadRequest, false
	}
}

// writeFailure отвечает конвертом ошибки, не раскрывая внутренние детали.
func (a *Adapter) writeFailure(w http.ResponseWriter, r *http.Request, action string, err error) {
	status, expected := statusFor(err)
	if !expected {
		a.logger.Error("request failed", "action", action, "request_id", requestIDFromContext(r.Context()), "err", err)
	} else {
		a.logger.Debug("request rejected", "action", action, "status", status, "err", err)
	}
	writeError(w, r, status)
}

func authErrorResponse(err error) (int, string, string) {
	var aerr *auth.Error
	if errors.As(err, &aerr) {
		return aerr.Status, aerr.Code, aerr.Description
	}
	switch {
	case errors.Is(err, core.ErrPermissionsMissing):
		return http.StatusForbidden, auth.CodeInvalidClaims, "Permissions not included in JWT."
	case errors.Is(err, core.ErrPermissionDenied):
		return http.StatusForbidden, auth.CodeUnauthorized, "Permission not found."
	default:
		return http.StatusUnauthorized, auth.CodeInvalidHeader, "Unable to verify authentication token."
	}
}
