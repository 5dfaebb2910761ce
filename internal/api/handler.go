// Package api provides the studio's REST surface: presence rosters,
// proxied AI calls, cache controls, project files and suggestion diffs.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/themateplatform/codemate/internal/backend"
	"github.com/themateplatform/codemate/internal/hub"
	"github.com/themateplatform/codemate/internal/log"
	"github.com/themateplatform/codemate/internal/presence"
	"github.com/themateplatform/codemate/internal/proxy"
	"github.com/themateplatform/codemate/internal/suggest"
)

// Handler provides the studio's HTTP endpoints.
type Handler struct {
	tracker presence.Tracker
	ai      *proxy.Client
	files   backend.FileStore
}

// NewHandler creates a Handler. All three dependencies are required;
// the files store may be the unconfigured stand-in.
func NewHandler(tracker presence.Tracker, ai *proxy.Client, files backend.FileStore) *Handler {
	return &Handler{
		tracker: tracker,
		ai:      ai,
		files:   files,
	}
}

// RegisterAPIRoutes registers the API routes on the provided mux.
func (h *Handler) RegisterAPIRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", h.Health)
	mux.HandleFunc("GET /api/roster", h.Roster)

	// Proxied provider endpoints
	mux.HandleFunc("GET /api/models", h.ListModels)
	mux.HandleFunc("POST /api/chat", h.Chat)
	mux.HandleFunc("GET /api/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/cache/clear", h.ClearCache)

	// Project file endpoints
	mux.HandleFunc("GET /api/files", h.ListFiles)
	mux.HandleFunc("GET /api/file", h.GetFile)
	mux.HandleFunc("PUT /api/file", h.PutFile)
	mux.HandleFunc("DELETE /api/file", h.DeleteFile)

	// Suggestion rendering
	mux.HandleFunc("POST /api/suggest", h.Suggest)
}

// Health returns a simple health check response.
// GET /api/health
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Roster returns a room's current collaborators.
// GET /api/roster?room=main
func (h *Handler) Roster(w http.ResponseWriter, r *http.Request) {
	room := r.URL.Query().Get("room")
	if room == "" {
		room = hub.DefaultRoom
	}
	h.writeJSON(w, http.StatusOK, presence.Snapshot{
		Room:          room,
		Collaborators: h.tracker.Roster(room),
	})
}

// ListModels returns the models available through the proxy.
// GET /api/models
func (h *Handler) ListModels(w http.ResponseWriter, r *http.Request) {
	models, err := h.ai.ListModels(r.Context())
	if err != nil {
		h.writeProxyError(w, err, "models_failed", "Failed to list models")
		return
	}
	h.writeJSON(w, http.StatusOK, models)
}

// Chat runs a chat completion through the proxy.
// POST /api/chat
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req proxy.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_json", "Invalid JSON body", err.Error())
		return
	}

	result, err := h.ai.ChatCompletion(r.Context(), req)
	if err != nil {
		h.writeProxyError(w, err, "chat_failed", "Chat completion failed")
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// CacheStats reports the proxy cache contents.
// GET /api/cache/stats
func (h *Handler) CacheStats(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, h.ai.CacheStats())
}

// ClearCache drops cached proxy responses, scoped to one provider when
// the body names one.
// POST /api/cache/clear
func (h *Handler) ClearCache(w http.ResponseWriter, r *http.Request) {
	var req CacheClearRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.writeError(w, http.StatusBadRequest, "invalid_json", "Invalid JSON body", err.Error())
		return
	}

	if req.Provider == "" {
		h.ai.ClearAllCaches()
		h.writeJSON(w, http.StatusOK, CacheClearResponse{Cleared: "all"})
		return
	}
	h.ai.ClearCache(proxy.Provider(req.Provider))
	h.writeJSON(w, http.StatusOK, CacheClearResponse{Cleared: req.Provider})
}

// ListFiles returns a project's files.
// GET /api/files?project=demo
func (h *Handler) ListFiles(w http.ResponseWriter, r *http.Request) {
	project := r.URL.Query().Get("project")
	if project == "" {
		h.writeError(w, http.StatusBadRequest, "validation_error", "project query parameter is required", "")
		return
	}

	files, err := h.files.ListFiles(r.Context(), project)
	if err != nil {
		h.writeBackendError(w, err)
		return
	}
	if files == nil {
		files = []backend.File{}
	}
	h.writeJSON(w, http.StatusOK, files)
}

// GetFile returns one project file.
// GET /api/file?project=demo&path=main.go
func (h *Handler) GetFile(w http.ResponseWriter, r *http.Request) {
	project := r.URL.Query().Get("project")
	path := r.URL.Query().Get("path")
	if project == "" || path == "" {
		h.writeError(w, http.StatusBadRequest, "validation_error", "project and path query parameters are required", "")
		return
	}

	file, err := h.files.GetFile(r.Context(), project, path)
	if err != nil {
		h.writeBackendError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, file)
}

// PutFile creates or replaces a project file.
// PUT /api/file
func (h *Handler) PutFile(w http.ResponseWriter, r *http.Request) {
	var req PutFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_json", "Invalid JSON body", err.Error())
		return
	}
	if req.Project == "" || req.Path == "" {
		h.writeError(w, http.StatusBadRequest, "validation_error", "project and path are required", "")
		return
	}

	file, err := h.files.PutFile(r.Context(), req.Project, req.Path, req.Content)
	if err != nil {
		h.writeBackendError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, file)
}

// DeleteFile removes a project file.
// DELETE /api/file?project=demo&path=main.go
func (h *Handler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	project := r.URL.Query().Get("project")
	path := r.URL.Query().Get("path")
	if project == "" || path == "" {
		h.writeError(w, http.StatusBadRequest, "validation_error", "project and path query parameters are required", "")
		return
	}

	if err := h.files.DeleteFile(r.Context(), project, path); err != nil {
		h.writeBackendError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Suggest renders a proposed change as a unified diff with counts.
// POST /api/suggest
func (h *Handler) Suggest(w http.ResponseWriter, r *http.Request) {
	var req suggest.Suggestion
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_json", "Invalid JSON body", err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, SuggestResponse{
		Diff:  req.UnifiedDiff(),
		Stats: req.Stats(),
	})
}

// writeProxyError maps proxy error types onto HTTP statuses.
func (h *Handler) writeProxyError(w http.ResponseWriter, err error, code, message string) {
	var validationErr *proxy.ValidationError
	switch {
	case proxy.IsAuthenticationRequired(err):
		h.writeError(w, http.StatusUnauthorized, "authentication_required", "Sign in to call providers", err.Error())
	case errors.As(err, &validationErr):
		h.writeError(w, http.StatusBadRequest, "validation_error", validationErr.Error(), "")
	default:
		h.writeError(w, http.StatusBadGateway, code, message, err.Error())
	}
}

// writeBackendError maps backend error types onto HTTP statuses.
func (h *Handler) writeBackendError(w http.ResponseWriter, err error) {
	var ncErr *backend.NotConfiguredError
	var nfErr *backend.FileNotFoundError
	switch {
	case errors.As(err, &ncErr):
		h.writeError(w, http.StatusServiceUnavailable, "backend_unconfigured", "Project backend is not configured", ncErr.Error())
	case errors.As(err, &nfErr):
		h.writeError(w, http.StatusNotFound, "not_found", "File not found", nfErr.Error())
	default:
		h.writeError(w, http.StatusInternalServerError, "backend_error", "Backend operation failed", err.Error())
	}
}

// writeJSON writes a JSON response with the given status code.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error(log.CatAPI, "Failed to encode JSON response", "error", err)
	}
}

// writeError writes an error response in the standard APIError format.
func (h *Handler) writeError(w http.ResponseWriter, status int, code, message, details string) {
	h.writeJSON(w, status, APIError{
		Error:   message,
		Code:    code,
		Details: details,
	})
}
