package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"pollengine/internal/middleware"
	"pollengine/internal/service"
)

// AuditHandler serves the poll audit trail.
type AuditHandler struct {
	polls *service.PollService
	audit *service.AuditService
	log   *zap.Logger
}

func NewAuditHandler(polls *service.PollService, audit *service.AuditService, log *zap.Logger) *AuditHandler {
	return &AuditHandler{polls: polls, audit: audit, log: log}
}

// Trail handles GET /api/polls/{pollID}/audit. Owner and admins always
// see the trail; everyone else only when the poll published it.
func (h *AuditHandler) Trail(w http.ResponseWriter, r *http.Request) {
	poll, err := h.polls.Get(r.Context(), chi.URLParam(r, "pollID"))
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}

	viewer := middleware.IdentityFrom(r.Context()).ViewerContext()
	entries, err := h.audit.Trail(r.Context(), poll, viewer)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"poll_id": poll.ID,
		"entries": entries,
	})
}
