package courier

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-commerce/internal/httpx"
)

func newGuards(store Store) Guards {
	return Guards{Store: store, Errors: httpx.ErrorHandler{Logger: zerolog.Nop()}}
}

func TestRequireProviderRejectsMissingAndInactive(t *testing.T) {
	guards := newGuards(newFakeStore())
	for name, id := range map[string]string{
		"nonexistent": missingID,
		"inactive":    inactiveProviderID,
		"malformed":   "not-a-uuid",
	} {
		t.Run(name, func(t *testing.T) {
			called := false
			h := guards.RequireProvider(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/courier/consignments?courierProviderId="+id, nil))
			require.Equal(t, http.StatusNotFound, rec.Code)
			require.False(t, called)
		})
	}
}

func TestRequireProviderMissingIdentifier(t *testing.T) {
	store := newFakeStore()
	h := newGuards(store).RequireProvider(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("next must not run")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/courier/consignments", strings.NewReader(`{"orderId":"o1"}`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Zero(t, store.lookups)
}

func TestRequireProviderAttachesProviderAndRestoresBody(t *testing.T) {
	var seen Provider
	var body string
	h := newGuards(newFakeStore()).RequireProvider(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = ProviderFrom(r.Context())
		raw, _ := io.ReadAll(r.Body)
		body = string(raw)
		w.WriteHeader(http.StatusNoContent)
	}))
	payload := `{"courierProviderId":"` + activeProviderID + `","orderId":"o1"}`
	req := httptest.NewRequest(http.MethodPost, "/courier/consignments", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "steadfast", seen.Code)
	require.Equal(t, payload, body)
}

func TestRequireProviderForwardsStoreErrors(t *testing.T) {
	store := newFakeStore()
	store.err = errors.New("connection refused")
	h := newGuards(store).RequireProvider(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("next must not run")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?courierProviderId="+activeProviderID, nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var env map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.Equal(t, "internal server error", strings.ToLower(env["message"].(string)))
}

func TestRequireCredentialsMustBelongToProvider(t *testing.T) {
	guards := newGuards(newFakeStore())
	var seen Credential
	chain := guards.RequireProvider(guards.RequireCredentials(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = CredentialFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})))

	rec := httptest.NewRecorder()
	chain.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?courierProviderId="+activeProviderID+"&credentialId="+activeCredentialID, nil))
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, activeCredentialID, seen.ID)

	rec = httptest.NewRecorder()
	chain.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?courierProviderId="+activeProviderID+"&credentialId="+foreignCredential, nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	chain.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?courierProviderId="+activeProviderID, nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
