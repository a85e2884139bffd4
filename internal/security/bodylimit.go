package security

import (
	"bytes"
	"io"
	"net/http"

	"github.com/noah-isme/toko-commerce/internal/common"
)

// BodyLimit rejects request bodies larger than Max bytes with 413. The body
// is buffered so handlers and the webhook signature check can both read it.
type BodyLimit struct {
	Max int64
}

func tooLarge(w http.ResponseWriter) {
	common.JSONError(w, http.StatusRequestEntityTooLarge, "request entity too large", "PAYLOAD_TOO_LARGE")
}

// Middleware enforces the limit.
func (b BodyLimit) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if b.Max <= 0 || r.Body == nil || r.Body == http.NoBody {
			next.ServeHTTP(w, r)
			return
		}
		if r.ContentLength > b.Max {
			tooLarge(w)
			return
		}
		buf, err := io.ReadAll(io.LimitReader(r.Body, b.Max+1))
		_ = r.Body.Close()
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if int64(len(buf)) > b.Max {
			tooLarge(w)
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(buf))
		r.ContentLength = int64(len(buf))
		next.ServeHTTP(w, r)
	})
}
