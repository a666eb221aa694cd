// Package httpapi exposes the sync service over HTTP/JSON.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/lskl-cc/souzou/internal/logging"
	"github.com/lskl-cc/souzou/internal/server/services"
	"github.com/lskl-cc/souzou/internal/syncapi"
)

// Handler serves the sync endpoints:
//
//	GET  /api/sync/pull?since=<cursor>
//	POST /api/sync/push
//	GET  /api/health
type Handler struct {
	sync *services.SyncService
	log  logging.Logger
}

func NewHandler(sync *services.SyncService, log logging.Logger) *Handler {
	return &Handler{sync: sync, log: log}
}

// Routes builds the mux with auth applied to the sync endpoints. An empty
// secret disables auth entirely (single-user deployments).
func (h *Handler) Routes(secretKey []byte) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /api/sync/pull", WithAuth(secretKey, h.log, http.HandlerFunc(h.Pull)))
	mux.Handle("POST /api/sync/push", WithAuth(secretKey, h.log, http.HandlerFunc(h.Push)))
	mux.HandleFunc("GET /api/health", h.Health)
	return mux
}

func (h *Handler) Pull(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	since := r.URL.Query().Get("since")

	resp, err := h.sync.Pull(ctx, UserID(ctx), since)
	if err != nil {
		h.log.Error(ctx, "pull failed", "error", err)
		writeError(w, http.StatusInternalServerError, "pull failed")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) Push(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req syncapi.PushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed body")
		return
	}

	resp, err := h.sync.Push(ctx, UserID(ctx), &req)
	if err != nil {
		h.log.Error(ctx, "push failed", "error", err)
		writeError(w, http.StatusInternalServerError, "push failed")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
