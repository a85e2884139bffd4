// Package health serves the liveness and readiness endpoints.
package health

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/toko-commerce/internal/common"
)

var ready atomic.Bool

func init() { ready.Store(true) }

// SetReady flips readiness. The API clears it when shutdown starts so load
// balancers drain the instance before the listener closes.
func SetReady(v bool) { ready.Store(v) }

// Check tests one dependency.
type Check func(ctx context.Context) error

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck pings anything with a Ping method.
func PingCheck(p Pinger) Check {
	return p.Ping
}

// RedisCheck pings a redis client.
func RedisCheck(c redis.UniversalClient) Check {
	return func(ctx context.Context) error { return c.Ping(ctx).Err() }
}

// Handler exposes /health/live and /health/ready.
type Handler struct {
	Checks  map[string]Check
	Timeout time.Duration
}

// Live always answers 200 while the process runs.
func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	common.OK(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready runs every check concurrently and answers 503 when any fails or the
// instance is draining.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if !ready.Load() {
		common.JSONError(w, http.StatusServiceUnavailable, "shutting down", nil)
		return
	}
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = 500 * time.Millisecond
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	names := make([]string, 0, len(h.Checks))
	for name := range h.Checks {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make([]string, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = "ok"
			if err := h.Checks[name](ctx); err != nil {
				results[i] = err.Error()
			}
		}()
	}
	wg.Wait()

	status := make(map[string]string, len(names))
	healthy := true
	for i, name := range names {
		status[name] = results[i]
		healthy = healthy && results[i] == "ok"
	}
	if !healthy {
		common.JSON(w, http.StatusServiceUnavailable, common.ErrorEnvelope{Message: "dependencies unavailable", Details: status})
		return
	}
	common.OK(w, http.StatusOK, status)
}
