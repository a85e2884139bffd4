package courier

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/noah-isme/toko-commerce/internal/common"
	"github.com/noah-isme/toko-commerce/internal/httpx"
)

const (
	providerIDField   = "courierProviderId"
	credentialIDField = "credentialId"
)

// Guards verify that the courier provider and credentials referenced by a
// request exist and are active before the handler runs.
type Guards struct {
	Store  Store
	Errors httpx.ErrorHandler
}

// RequireProvider resolves courierProviderId from the body or query string.
func (g Guards) RequireProvider(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := requestIdentifier(r, providerIDField)
		if err != nil {
			g.Errors.Handle(w, r, err)
			return
		}
		if id == "" {
			common.JSONError(w, http.StatusBadRequest, providerIDField+" is required", "MISSING_IDENTIFIER")
			return
		}
		if _, err := uuid.Parse(id); err != nil {
			common.JSONError(w, http.StatusNotFound, "courier provider not found", "NOT_FOUND")
			return
		}
		provider, err := g.Store.ProviderByID(r.Context(), id)
		if err != nil {
			if common.KindOf(err) == common.KindNotFound {
				common.JSONError(w, http.StatusNotFound, "courier provider not found", "NOT_FOUND")
				return
			}
			g.Errors.Handle(w, r, err)
			return
		}
		if !provider.IsActive {
			common.JSONError(w, http.StatusNotFound, "courier provider not found", "NOT_FOUND")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithProvider(r.Context(), provider)))
	})
}

// RequireCredentials resolves credentialId from the body or query string.
// When a provider is already in the context the credential must belong to it.
func (g Guards) RequireCredentials(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := requestIdentifier(r, credentialIDField)
		if err != nil {
			g.Errors.Handle(w, r, err)
			return
		}
		if id == "" {
			common.JSONError(w, http.StatusBadRequest, credentialIDField+" is required", "MISSING_IDENTIFIER")
			return
		}
		if _, err := uuid.Parse(id); err != nil {
			common.JSONError(w, http.StatusNotFound, "courier credentials not found", "NOT_FOUND")
			return
		}
		cred, err := g.Store.CredentialByID(r.Context(), id)
		if err != nil {
			if common.KindOf(err) == common.KindNotFound {
				common.JSONError(w, http.StatusNotFound, "courier credentials not found", "NOT_FOUND")
				return
			}
			g.Errors.Handle(w, r, err)
			return
		}
		provider, hasProvider := ProviderFrom(r.Context())
		if !cred.IsActive || (hasProvider && cred.ProviderID != provider.ID) {
			common.JSONError(w, http.StatusNotFound, "courier credentials not found", "NOT_FOUND")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithCredential(r.Context(), cred)))
	})
}

// requestIdentifier reads field from a JSON body first and then from the query
// string. The body is restored so downstream handlers can decode it again.
func requestIdentifier(r *http.Request, field string) (string, error) {
	if r.Body != nil && r.Body != http.NoBody && isJSON(r) {
		raw, err := io.ReadAll(r.Body)
		_ = r.Body.Close()
		if err != nil {
			return "", common.Validation("unable to read request body")
		}
		r.Body = io.NopCloser(bytes.NewReader(raw))
		r.GetBody = func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(raw)), nil }

		var body map[string]any
		if json.Unmarshal(raw, &body) == nil {
			if v, ok := body[field].(string); ok && strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v), nil
			}
		}
	}
	return strings.TrimSpace(r.URL.Query().Get(field)), nil
}

func isJSON(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	return ct == "" || strings.Contains(strings.ToLower(ct), "json")
}
