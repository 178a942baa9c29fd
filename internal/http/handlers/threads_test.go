package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palinopr/leadrouter/internal/identity"
	"github.com/palinopr/leadrouter/internal/store"
)

func TestThreadsGet(t *testing.T) {
	st := store.NewMemoryStore()
	state := store.NewState(identity.ThreadKey("contact-t1"))
	state.Score = 5
	require.NoError(t, st.Save(context.Background(), state))

	r := chi.NewRouter()
	r.Get("/threads/{key}", NewThreadsHandler(st, nil).Get)

	req := httptest.NewRequest(http.MethodGet, "/threads/contact-t1", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got store.State
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, identity.ThreadKey("contact-t1"), got.ThreadKey)
	assert.Equal(t, 5, got.Score)
}

func TestThreadsGetNotFound(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/threads/{key}", NewThreadsHandler(store.NewMemoryStore(), nil).Get)

	req := httptest.NewRequest(http.MethodGet, "/threads/contact-missing", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthCheck(t *testing.T) {
	rec := httptest.NewRecorder()
	HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}
