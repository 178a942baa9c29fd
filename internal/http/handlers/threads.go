package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/palinopr/leadrouter/internal/identity"
	"github.com/palinopr/leadrouter/internal/store"
	"github.com/palinopr/leadrouter/pkg/logging"
)

// ThreadsHandler exposes read-only thread state for debugging and support.
type ThreadsHandler struct {
	store  store.Store
	logger *logging.Logger
}

func NewThreadsHandler(st store.Store, logger *logging.Logger) *ThreadsHandler {
	if st == nil {
		panic("handlers: threads needs a store")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &ThreadsHandler{store: st, logger: logger}
}

// Get serves GET /threads/{key}.
func (h *ThreadsHandler) Get(w http.ResponseWriter, r *http.Request) {
	key := identity.ThreadKey(chi.URLParam(r, "key"))
	if key == "" {
		http.Error(w, "thread key is required", http.StatusBadRequest)
		return
	}

	state, err := h.store.Load(r.Context(), key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "thread not found", http.StatusNotFound)
			return
		}
		h.logger.Error("thread lookup failed", "thread_key", key.String(), "error", err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, state)
}

// HealthCheck serves GET /health.
func HealthCheck(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
