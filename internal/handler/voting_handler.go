package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"pollengine/internal/domain"
	"pollengine/internal/middleware"
	"pollengine/internal/service"
)

// VotingHandler serves vote submission and lookup endpoints.
type VotingHandler struct {
	voting *service.VotingService
	log    *zap.Logger
}

func NewVotingHandler(voting *service.VotingService, log *zap.Logger) *VotingHandler {
	return &VotingHandler{voting: voting, log: log}
}

// Vote handles POST /api/polls/{pollID}/vote. An Idempotency-Key header
// makes retries safe: the replay returns the original outcome.
func (h *VotingHandler) Vote(w http.ResponseWriter, r *http.Request) {
	var req domain.VoteRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, h.log, err)
		return
	}

	voter := middleware.IdentityFrom(r.Context()).VoterContext()
	idemToken := r.Header.Get("Idempotency-Key")

	resp, err := h.voting.Submit(r.Context(), chi.URLParam(r, "pollID"), voter, req, idemToken)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}

	status := http.StatusCreated
	if resp.Duplicate {
		status = http.StatusOK
	}
	respondJSON(w, status, resp)
}

// MyVote handles GET /api/polls/{pollID}/my-vote
func (h *VotingHandler) MyVote(w http.ResponseWriter, r *http.Request) {
	voter := middleware.IdentityFrom(r.Context()).VoterContext()

	resp, err := h.voting.MyVote(r.Context(), chi.URLParam(r, "pollID"), voter)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// Verify handles GET /api/votes/{voteID}/verify?receipt=...
func (h *VotingHandler) Verify(w http.ResponseWriter, r *http.Request) {
	ok, err := h.voting.Verify(r.Context(), chi.URLParam(r, "voteID"), r.URL.Query().Get("receipt"))
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"valid": ok})
}
