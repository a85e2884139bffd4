package ratelimit

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-commerce/internal/common"
)

// Config describes how to derive a rate limit key and thresholds.
type Config struct {
	Name   string
	Key    func(*http.Request) string
	Window time.Duration
	Max    int
}

// ByClientIP keys the limit on the caller's source address.
func ByClientIP(r *http.Request) string {
	return common.ClientIP(r)
}

// Handler enforces rate limits before delegating to the next handler. Limiter
// failures fail open.
type Handler struct {
	Limiter Allower
	Config  Config
	OnError func(*http.Request, error)
}

// Middleware implements the http.Handler middleware interface.
func (h Handler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.Limiter == nil || h.Config.Key == nil {
			next.ServeHTTP(w, r)
			return
		}
		key := h.Config.Name + ":" + h.Config.Key(r)
		allowed, remaining, resetAt, err := h.Limiter.Allow(r.Context(), key, h.Config.Window, h.Config.Max)
		if err != nil {
			h.onError(r, err)
			next.ServeHTTP(w, r)
			return
		}

		headers := w.Header()
		headers.Set("X-RateLimit-Limit", strconv.Itoa(max(h.Config.Max, 0)))
		headers.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

		if !allowed {
			retryAfter := int(math.Ceil(time.Until(resetAt).Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			headers.Set("Retry-After", strconv.Itoa(retryAfter))
			common.JSONError(w, http.StatusTooManyRequests, "too many requests", "RATE_LIMITED")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (h Handler) onError(r *http.Request, err error) {
	if h.OnError != nil {
		h.OnError(r, err)
		return
	}
	zerolog.Ctx(r.Context()).Warn().Err(err).Str("limit", h.Config.Name).Msg("rate_limiter_unavailable")
}
