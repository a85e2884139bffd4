package ratelimit

import (
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/noah-isme/toko-commerce/internal/common"
)

// NewAPIMiddleware builds the API-wide fixed-window limiter. rate uses the
// limiter format, e.g. "300-M" for 300 requests per minute per client.
func NewAPIMiddleware(client *redis.Client, rate string) (func(http.Handler) http.Handler, error) {
	parsed, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, fmt.Errorf("parse api rate %q: %w", rate, err)
	}
	store, err := limiterredis.NewStoreWithOptions(client, limiter.StoreOptions{Prefix: "ratelimit:api"})
	if err != nil {
		return nil, fmt.Errorf("limiter store: %w", err)
	}
	mw := stdlib.NewMiddleware(limiter.New(store, parsed),
		stdlib.WithKeyGetter(ByClientIP),
		stdlib.WithLimitReachedHandler(func(w http.ResponseWriter, _ *http.Request) {
			common.JSONError(w, http.StatusTooManyRequests, "too many requests", "RATE_LIMITED")
		}),
		stdlib.WithErrorHandler(func(w http.ResponseWriter, r *http.Request, err error) {
			zerolog.Ctx(r.Context()).Warn().Err(err).Str("limit", "api").Msg("rate_limiter_unavailable")
			common.JSONError(w, http.StatusServiceUnavailable, "rate limiter unavailable", nil)
		}),
	)
	return mw.Handler, nil
}
