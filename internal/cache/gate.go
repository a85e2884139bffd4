package cache

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/noah-isme/toko-commerce/internal/common"
	"github.com/noah-isme/toko-commerce/internal/httpx"
	"github.com/noah-isme/toko-commerce/internal/obs"
)

// Hit is the response body written when a gated route is served from cache.
type Hit struct {
	FromCache bool            `json:"fromCache"`
	Data      json.RawMessage `json:"data"`
}

// Gate short-circuits requests whose precomputed response is cached.
type Gate struct {
	Store  *Store
	Errors httpx.ErrorHandler
}

// For returns middleware bound to a single key fixed at route registration.
// Every request to the route shares that key, so the route caches one global
// value rather than one per request parameter. The gate never writes to the
// cache; the downstream handler is responsible for populating it on a miss.
func (g Gate) For(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			data, ok, err := g.Store.GetRaw(r.Context(), key)
			if err != nil {
				obs.Inc(obs.CacheGateTotal, key, "error")
				g.Errors.Handle(w, r, fmt.Errorf("cache lookup %q: %w", key, err))
				return
			}
			if !ok {
				obs.Inc(obs.CacheGateTotal, key, "miss")
				next.ServeHTTP(w, r)
				return
			}
			if !json.Valid(data) {
				g.Errors.Handle(w, r, common.NewAppError(common.KindInternal, "CACHE_CORRUPT", fmt.Sprintf("cached value under %q is not valid JSON", key), nil))
				return
			}
			obs.Inc(obs.CacheGateTotal, key, "hit")
			common.JSON(w, http.StatusOK, Hit{FromCache: true, Data: data})
		})
	}
}
