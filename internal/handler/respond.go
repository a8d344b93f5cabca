package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"pollengine/internal/domain"
	apperrors "pollengine/pkg/errors"
)

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

// respondError maps domain and application errors onto the wire shape.
// Unknown errors become opaque 500s; internals never leak to clients.
func respondError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	appErr := toAppError(err)

	if appErr.StatusCode >= http.StatusInternalServerError {
		log.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", chimw.GetReqID(r.Context())),
			zap.Error(err))
	}

	var resp apperrors.ErrorResponse
	resp.Error.Type = appErr.Type
	resp.Error.Message = appErr.Message
	resp.Error.Reason = appErr.Reason
	resp.Error.Details = appErr.Details
	resp.Error.RequestID = chimw.GetReqID(r.Context())
	resp.Error.Timestamp = time.Now().UTC().Format(time.RFC3339)

	respondJSON(w, appErr.StatusCode, resp)
}

func toAppError(err error) *apperrors.AppError {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	if rej, ok := domain.AsRejection(err); ok {
		return apperrors.NewRejectionError(rej)
	}
	switch {
	case errors.Is(err, domain.ErrPollNotFound):
		return apperrors.NewNotFoundError("poll not found")
	case errors.Is(err, domain.ErrVoteNotFound):
		return apperrors.NewNotFoundError("vote not found")
	case errors.Is(err, domain.ErrVersionConflict):
		return apperrors.NewConflictError("poll was modified concurrently, re-read and retry")
	case errors.Is(err, domain.ErrForbidden):
		return apperrors.NewAuthorizationError("insufficient permissions")
	default:
		return apperrors.NewFaultError("internal error", err)
	}
}

func decodeJSON(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperrors.NewValidationError("invalid JSON body", nil)
	}
	return nil
}
