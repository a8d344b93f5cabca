package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"pollengine/internal/middleware"
	"pollengine/internal/service"
)

// PollHandler serves poll CRUD and lifecycle endpoints.
type PollHandler struct {
	polls *service.PollService
	log   *zap.Logger
}

func NewPollHandler(polls *service.PollService, log *zap.Logger) *PollHandler {
	return &PollHandler{polls: polls, log: log}
}

// Create handles POST /api/polls
func (h *PollHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.CreatePollRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, h.log, err)
		return
	}

	actor := middleware.IdentityFrom(r.Context()).ViewerContext()
	poll, err := h.polls.Create(r.Context(), actor, req)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}

	respondJSON(w, http.StatusCreated, h.polls.View(poll))
}

// List handles GET /api/polls
func (h *PollHandler) List(w http.ResponseWriter, r *http.Request) {
	polls, err := h.polls.List(r.Context())
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}

	views := make([]service.PollView, 0, len(polls))
	for _, poll := range polls {
		views = append(views, h.polls.View(poll))
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"polls": views})
}

// Get handles GET /api/polls/{pollID}
func (h *PollHandler) Get(w http.ResponseWriter, r *http.Request) {
	poll, err := h.polls.Get(r.Context(), chi.URLParam(r, "pollID"))
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, h.polls.View(poll))
}

// Update handles PUT /api/polls/{pollID}
func (h *PollHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req service.UpdatePollRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, h.log, err)
		return
	}

	actor := middleware.IdentityFrom(r.Context()).ViewerContext()
	poll, err := h.polls.Update(r.Context(), actor, chi.URLParam(r, "pollID"), req)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, h.polls.View(poll))
}

// Close handles POST /api/polls/{pollID}/close
func (h *PollHandler) Close(w http.ResponseWriter, r *http.Request) {
	actor := middleware.IdentityFrom(r.Context()).ViewerContext()
	poll, err := h.polls.Close(r.Context(), actor, chi.URLParam(r, "pollID"))
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, h.polls.View(poll))
}
