package web

// errors.go maps service errors onto HTTP responses.
//
// Every error is logged with its technical detail and request ID, and the
// client receives the catalogued user message and code from core.MapError.

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/mastersync/internal/core"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// statusFor picks the HTTP status for a service error.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrUnknownTool), errors.Is(err, core.ErrUnknownMaster):
		return http.StatusNotFound
	case errors.Is(err, core.ErrRefreshBusy):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}

	if kind, ok := core.KindOf(err); ok {
		switch kind {
		case core.KindDownload:
			return http.StatusBadGateway
		case core.KindPersistence:
			return http.StatusServiceUnavailable
		}
	}
	return http.StatusInternalServerError
}

// respondError logs err and writes its user-facing JSON form.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	userMsg := core.MapError(err)

	slog.Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", userMsg.Code,
		"request_id", middleware.GetReqID(r.Context()),
	)

	writeJSONStatus(w, status, ErrorResponse{
		Error:   userMsg.Message,
		Message: userMsg.Message,
		Action:  userMsg.Action,
		Code:    userMsg.Code,
	})
}

// badRequest reports an invalid parameter without going through MapError.
func badRequest(w http.ResponseWriter, message string) {
	writeJSONStatus(w, http.StatusBadRequest, ErrorResponse{
		Error:   message,
		Message: message,
		Code:    "REQ003",
	})
}
