package common

import (
	"context"
	"net/http"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Idem provides an Idempotency-Key middleware backed by Redis.
type Idem struct {
	R   *redis.Client
	TTL time.Duration
}

func idemKey(userID, key string) string {
	return "idem:" + Fingerprint(userID, key)
}

// Middleware rejects a replayed Idempotency-Key within the TTL with 409.
func (i Idem) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Idempotency-Key")
		if header == "" || i.R == nil {
			next.ServeHTTP(w, r)
			return
		}
		ttl := i.TTL
		if ttl <= 0 {
			ttl = 24 * time.Hour
		}
		userID, _ := UserID(r.Context())
		key := idemKey(userID, header)
		ok, err := i.R.SetNX(r.Context(), key, "locked", ttl).Result()
		if err != nil {
			JSONError(w, http.StatusInternalServerError, "idempotency store error", nil)
			return
		}
		if !ok {
			JSONError(w, http.StatusConflict, "duplicate request", "IDEMPOTENT_REPLAY")
			return
		}
		defer func() {
			// the key must expire even if the handler panics
			_ = i.R.Expire(context.Background(), key, ttl).Err()
		}()
		next.ServeHTTP(w, r)
	})
}
