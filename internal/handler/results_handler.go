package handler

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"pollengine/internal/middleware"
	"pollengine/internal/service"
)

// ResultsHandler serves the poll results endpoint.
type ResultsHandler struct {
	results *service.ResultsService
	log     *zap.Logger
}

func NewResultsHandler(results *service.ResultsService, log *zap.Logger) *ResultsHandler {
	return &ResultsHandler{results: results, log: log}
}

// Get handles GET /api/polls/{pollID}/results. Responses carry a weak
// ETag over the payload so pollers can skip unchanged tallies.
func (h *ResultsHandler) Get(w http.ResponseWriter, r *http.Request) {
	viewer := middleware.IdentityFrom(r.Context()).ViewerContext()

	results, err := h.results.Get(r.Context(), chi.URLParam(r, "pollID"), viewer)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}

	payload, err := json.Marshal(results)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}

	// The tag ignores LastUpdate so an unchanged tally keeps its ETag.
	stable := *results
	stable.LastUpdate = time.Time{}
	stablePayload, err := json.Marshal(stable)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	etag := generateETag(stablePayload)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

func generateETag(payload []byte) string {
	sum := sha256.Sum256(payload)
	return fmt.Sprintf(`W/"%x"`, sum[:8])
}
