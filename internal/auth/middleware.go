package auth

import (
	"net/http"
	"strings"

	"github.com/noah-isme/toko-commerce/internal/common"
	"github.com/noah-isme/toko-commerce/internal/httpx"
)

// Middleware wires authentication context into HTTP handlers.
type Middleware struct {
	Tokens *Tokens
	Errors httpx.ErrorHandler
}

// RequireAuth rejects requests without a valid bearer token and stores the
// token subject as the caller identity.
func (m Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			m.Errors.Handle(w, r, common.Unauthorized("missing or invalid token"))
			return
		}
		userID, err := m.Tokens.Verify(token)
		if err != nil {
			m.Errors.Handle(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(common.WithUserID(r.Context(), userID)))
	})
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}
