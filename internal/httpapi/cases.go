package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"ai-patient-sim-service/internal/app"
)

// listCases returns the full case catalog. Scripts are excluded from the
// JSON encoding so they never cross the wire ahead of the encounter.
func listCases(application *app.Application) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, application.Catalog.All())
	}
}

// getCase returns a single case by ID, or 404 for unknown IDs.
func getCase(application *app.Application) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.Atoi(chi.URLParam(r, "id"))
		if err != nil {
			respondError(w, http.StatusBadRequest, "case id must be an integer")
			return
		}
		pcase, ok := application.Catalog.ByID(id)
		if !ok {
			respondError(w, http.StatusNotFound, "unknown case")
			return
		}
		respondJSON(w, http.StatusOK, pcase)
	}
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Warn().Err(err).Msg("Failed to encode response body")
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
