package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-commerce/internal/common"
	"github.com/noah-isme/toko-commerce/internal/httpx"
)

func newTestTokens(t *testing.T, now time.Time) *Tokens {
	t.Helper()
	tokens, err := NewTokens(TokensConfig{
		Secret:   "test-secret",
		Issuer:   "toko",
		Audience: "toko-api",
		TTL:      time.Minute,
		Now:      func() time.Time { return now },
	})
	require.NoError(t, err)
	return tokens
}

func TestIssueAndVerify(t *testing.T) {
	tokens := newTestTokens(t, time.Now())
	raw, err := tokens.Issue("user-1")
	require.NoError(t, err)

	sub, err := tokens.Verify(raw)
	require.NoError(t, err)
	require.Equal(t, "user-1", sub)
}

func TestVerifyRejectsExpiredAndForeignTokens(t *testing.T) {
	issuedAt := time.Now().Add(-time.Hour)
	old := newTestTokens(t, issuedAt)
	raw, err := old.Issue("user-1")
	require.NoError(t, err)

	current := newTestTokens(t, time.Now())
	_, err = current.Verify(raw)
	require.Equal(t, common.KindUnauthorized, common.KindOf(err))

	other, err := NewTokens(TokensConfig{Secret: "other-secret", Issuer: "toko", Audience: "toko-api"})
	require.NoError(t, err)
	foreign, err := other.Issue("user-1")
	require.NoError(t, err)
	_, err = current.Verify(foreign)
	require.Equal(t, common.KindUnauthorized, common.KindOf(err))
}

func TestRequireAuth(t *testing.T) {
	tokens := newTestTokens(t, time.Now())
	mw := Middleware{Tokens: tokens, Errors: httpx.ErrorHandler{Logger: zerolog.Nop()}}

	var seen string
	handler := mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = common.UserID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/addresses", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, false, body["success"])

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/addresses", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	raw, err := tokens.Issue("user-42")
	require.NoError(t, err)
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/addresses", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "user-42", seen)
}
