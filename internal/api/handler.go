// Package api exposes the service's JSON status surface: run state, history
// and a stop control.
package api

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/sunovault/sunovault/internal/catalog"
	"github.com/sunovault/sunovault/internal/domain"
	"github.com/sunovault/sunovault/internal/ingest"
	"github.com/sunovault/sunovault/internal/logger"
	"github.com/sunovault/sunovault/internal/store"
)

// RunControl is the slice of the controller the API needs.
type RunControl interface {
	ID() string
	Stop()
	Stopped() bool
	Summary() ingest.Summary
}

type Handler struct {
	DB      *store.DB
	Catalog *catalog.Client
	log     *logger.Logger

	mu     sync.Mutex
	active RunControl
}

func NewHandler(db *store.DB, client *catalog.Client, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Default()
	}
	return &Handler{DB: db, Catalog: client, log: log.WithComponent("api")}
}

// SetActive registers the running controller; pass nil when it finishes.
func (h *Handler) SetActive(run RunControl) {
	h.mu.Lock()
	h.active = run
	h.mu.Unlock()
}

func (h *Handler) activeRun() RunControl {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.active
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/api/status", h.Status)
	r.Post("/api/stop", h.StopRun)
	r.Get("/api/runs", h.ListRuns)
	r.Get("/api/runs/{id}/downloads", h.RunDownloads)
	r.Get("/api/downloads", h.RecentDownloads)
	r.Get("/api/collections", h.Collections)
}

type statusResponse struct {
	Active  bool           `json:"active"`
	RunID   string         `json:"run_id,omitempty"`
	Summary *ingest.Summary `json:"summary,omitempty"`
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	run := h.activeRun()
	if run == nil {
		writeJSON(w, http.StatusOK, statusResponse{Active: false})
		return
	}
	s := run.Summary()
	writeJSON(w, http.StatusOK, statusResponse{
		Active:  !run.Stopped(),
		RunID:   run.ID(),
		Summary: &s,
	})
}

func (h *Handler) StopRun(w http.ResponseWriter, r *http.Request) {
	run := h.activeRun()
	if run == nil {
		http.Error(w, "no active run", http.StatusConflict)
		return
	}
	run.Stop()
	h.log.Info("stop requested", "run_id", run.ID())
	writeJSON(w, http.StatusAccepted, map[string]string{"run_id": run.ID(), "status": "stopping"})
}

func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.DB.ListRuns(50)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (h *Handler) RunDownloads(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	run, err := h.DB.GetRun(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if run == nil {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}
	downloads, err := h.DB.ListDownloads(id, 500)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, downloads)
}

func (h *Handler) RecentDownloads(w http.ResponseWriter, r *http.Request) {
	downloads, err := h.DB.ListRecentDownloads(100)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, downloads)
}

// Collections lists the user's projects and playlists so the collaborator
// can pick a collection to ingest.
func (h *Handler) Collections(w http.ResponseWriter, r *http.Request) {
	if h.Catalog == nil {
		http.Error(w, "catalog not configured", http.StatusServiceUnavailable)
		return
	}

	projects, err := h.Catalog.ListProjects(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	playlists, err := h.Catalog.ListPlaylists(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	collections := make([]domain.Collection, 0, len(projects)+len(playlists))
	collections = append(collections, projects...)
	collections = append(collections, playlists...)
	writeJSON(w, http.StatusOK, collections)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
