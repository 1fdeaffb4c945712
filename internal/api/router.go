package api

import (
	"net/http"

	"replaywatch/internal/storage"
)

// NewRouter creates a new http.ServeMux and registers the API handlers.
func NewRouter(store storage.Storer) *http.ServeMux {
	mux := http.NewServeMux()
	h := NewHandlers(store)

	mux.HandleFunc("GET /v1/runs", h.ListRuns)
	mux.HandleFunc("GET /v1/runs/{run_id}", h.GetRun)
	mux.HandleFunc("GET /v1/runs/{run_id}/reports", h.ListReports)
	mux.HandleFunc("GET /healthz", h.Healthz)

	return mux
}
