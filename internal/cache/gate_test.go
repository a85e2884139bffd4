package cache_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-commerce/internal/cache"
	"github.com/noah-isme/toko-commerce/internal/httpx"
)

func newStore(t *testing.T) (*cache.Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return cache.NewStore(client, time.Minute), mr
}

func TestGateHitSkipsDownstream(t *testing.T) {
	store, _ := newStore(t)
	require.NoError(t, store.SetJSON(context.Background(), "courier:providers:active", []map[string]any{{"code": "pathao"}}))

	called := false
	gate := cache.Gate{Store: store, Errors: httpx.ErrorHandler{Logger: zerolog.Nop()}}
	h := gate.For("courier:providers:active")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/courier/providers", nil))

	require.False(t, called)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"fromCache":true,"data":[{"code":"pathao"}]}`, rec.Body.String())
}

func TestGateMissCallsDownstream(t *testing.T) {
	store, _ := newStore(t)
	gate := cache.Gate{Store: store, Errors: httpx.ErrorHandler{Logger: zerolog.Nop()}}
	h := gate.For("missing")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusTeapot, rec.Code)
}

func TestGateStoreFailureGoesToClassifier(t *testing.T) {
	store, mr := newStore(t)
	mr.SetError("READONLY boom")
	called := false
	gate := cache.Gate{Store: store, Errors: httpx.ErrorHandler{Logger: zerolog.Nop()}}
	h := gate.For("k")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.False(t, called)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGateCorruptValue(t *testing.T) {
	store, mr := newStore(t)
	require.NoError(t, mr.Set("k", "{not json"))
	gate := cache.Gate{Store: store, Errors: httpx.ErrorHandler{Logger: zerolog.Nop()}}
	h := gate.For("k")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}
