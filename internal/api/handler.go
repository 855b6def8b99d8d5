// internal/api/handler.go
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github-metrics/internal/config"
	"github-metrics/internal/model"
)

// defaultRangeDays is how far back /metrics reaches when no from date is given.
const defaultRangeDays = 30

// MetricsReader is the read side of the store the API serves from.
type MetricsReader interface {
	ListDailyMetrics(ctx context.Context, repo, from, to string) ([]model.DailyMetric, error)
	LookupCheckpoint(ctx context.Context, org, repo string) (time.Time, bool, error)
}

// Handler is the container for API dependencies.
type Handler struct {
	db     MetricsReader
	logger *slog.Logger
	org    string
	now    func() time.Time
}

type checkpointResponse struct {
	Repo     string    `json:"repo"`
	LastSync time.Time `json:"last_sync"`
}

// NewRouter creates and configures a new chi router with all API routes.
func NewRouter(db MetricsReader, logger *slog.Logger, org string) http.Handler {
	return newRouter(&Handler{
		db:     db,
		logger: logger,
		org:    org,
		now:    time.Now,
	})
}

func newRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", h.healthCheck)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/repos/{name}/metrics", h.getMetrics)
		r.Get("/repos/{name}/checkpoint", h.getCheckpoint)
	})

	return r
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// getMetrics returns the daily metrics rows of one repository.
// GET /v1/repos/{name}/metrics?from=YYYY-MM-DD&to=YYYY-MM-DD
func (h *Handler) getMetrics(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	today := h.now().UTC().Truncate(24 * time.Hour)
	to, ok := parseDateParam(w, r, "to", today)
	if !ok {
		return
	}
	from, ok := parseDateParam(w, r, "from", to.AddDate(0, 0, -defaultRangeDays))
	if !ok {
		return
	}
	if from.After(to) {
		respondWithError(w, http.StatusBadRequest, "'from' must not be after 'to'")
		return
	}

	rows, err := h.db.ListDailyMetrics(r.Context(), name, from.Format(config.DateLayout), to.Format(config.DateLayout))
	if err != nil {
		h.logger.Error("Failed to list daily metrics", "repo", name, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if len(rows) == 0 {
		_, synced, err := h.db.LookupCheckpoint(r.Context(), h.org, name)
		if err != nil {
			h.logger.Error("Failed to read checkpoint", "repo", name, "error", err)
			respondWithError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		if !synced {
			respondWithError(w, http.StatusNotFound, "Repository not found")
			return
		}
		rows = []model.DailyMetric{}
	}

	respondWithJSON(w, http.StatusOK, rows)
}

// getCheckpoint reports when a repository last synced successfully.
// GET /v1/repos/{name}/checkpoint
func (h *Handler) getCheckpoint(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	at, ok, err := h.db.LookupCheckpoint(r.Context(), h.org, name)
	if err != nil {
		h.logger.Error("Failed to read checkpoint", "repo", name, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if !ok {
		respondWithError(w, http.StatusNotFound, "Repository has never been synced")
		return
	}

	respondWithJSON(w, http.StatusOK, checkpointResponse{Repo: name, LastSync: at})
}

// parseDateParam reads a YYYY-MM-DD query parameter, answering 400 itself
// when the value is malformed.
func parseDateParam(w http.ResponseWriter, r *http.Request, key string, fallback time.Time) (time.Time, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, true
	}
	t, err := time.Parse(config.DateLayout, raw)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid '"+key+"' parameter. Must be a date in YYYY-MM-DD format.")
		return time.Time{}, false
	}
	return t, true
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
