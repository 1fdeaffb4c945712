package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"replaywatch/internal/logging"
	"replaywatch/internal/models"
	"replaywatch/internal/storage"
)

// Handlers holds dependencies for the API handlers.
type Handlers struct {
	store  storage.Storer
	logger *slog.Logger
}

// NewHandlers creates a new Handlers struct.
func NewHandlers(store storage.Storer) *Handlers {
	return &Handlers{store: store, logger: logging.New("api")}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func parseLimit(r *http.Request, fallback, ceiling int) int {
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= ceiling {
			return v
		}
	}
	return fallback
}

// ListRuns handles listing stored runs with pagination.
func (h *Handlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 50, 500)

	var afterTime time.Time
	var afterID string
	if token := r.URL.Query().Get("page_token"); token != "" {
		// token is base64 of "<rfc3339nano>|<id>"
		decoded, err := base64.URLEncoding.DecodeString(token)
		parts := strings.SplitN(string(decoded), "|", 2)
		if err != nil || len(parts) != 2 {
			http.Error(w, "invalid page_token", http.StatusBadRequest)
			return
		}
		t, err := time.Parse(time.RFC3339Nano, parts[0])
		if err != nil {
			http.Error(w, "invalid page_token", http.StatusBadRequest)
			return
		}
		afterTime, afterID = t, parts[1]
	}

	items, err := h.store.ListRuns(r.Context(), storage.ListRunsParams{
		AfterTime: afterTime,
		AfterID:   afterID,
		Limit:     limit,
	})
	if err != nil {
		h.logger.Error("list runs failed", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	if items == nil {
		items = []models.Run{}
	}

	resp := struct {
		Items         []models.Run `json:"items"`
		NextPageToken string       `json:"next_page_token"`
	}{
		Items: items,
	}

	if len(items) == limit {
		last := items[len(items)-1]
		cursor := last.StartedAt.UTC().Format(time.RFC3339Nano) + "|" + last.ID
		resp.NextPageToken = base64.URLEncoding.EncodeToString([]byte(cursor))
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetRun returns a single run.
func (h *Handlers) GetRun(w http.ResponseWriter, r *http.Request) {
	run, ok := h.lookupRun(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// ListReports handles listing the per-entry outcomes of a run. Pages are
// keyed by index position; failed=true keeps only entries that could not be
// compared.
func (h *Handlers) ListReports(w http.ResponseWriter, r *http.Request) {
	run, ok := h.lookupRun(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	limit := parseLimit(r, 100, 1000)
	after := -1
	if token := q.Get("page_token"); token != "" {
		v, err := strconv.Atoi(token)
		if err != nil || v < 0 {
			http.Error(w, "invalid page_token", http.StatusBadRequest)
			return
		}
		after = v
	}
	failedOnly, _ := strconv.ParseBool(q.Get("failed"))

	items, err := h.store.ListOutcomesByRunID(r.Context(), storage.ListOutcomesParams{
		RunID:         run.ID,
		AfterPosition: after,
		FailedOnly:    failedOnly,
		Limit:         limit,
	})
	if err != nil {
		h.logger.Error("list reports failed", "run_id", run.ID, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	if items == nil {
		items = []models.EntryOutcome{}
	}

	resp := struct {
		Items         []models.EntryOutcome `json:"items"`
		NextPageToken string                `json:"next_page_token"`
	}{Items: items}
	if len(items) == limit {
		resp.NextPageToken = strconv.Itoa(items[len(items)-1].Entry.Position)
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) lookupRun(w http.ResponseWriter, r *http.Request) (*models.Run, bool) {
	runID := r.PathValue("run_id")
	run, err := h.store.GetRunByID(r.Context(), runID)
	if errors.Is(err, storage.ErrNotFound) {
		http.Error(w, "run not found", http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		h.logger.Error("get run failed", "run_id", runID, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return nil, false
	}
	return run, true
}

// Healthz is a simple health check endpoint.
func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
