package obs

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type routePatternKey struct{}

// WithRoutePattern records the matched chi pattern on ctx.
func WithRoutePattern(ctx context.Context, pattern string) context.Context {
	return context.WithValue(ctx, routePatternKey{}, pattern)
}

// Route returns the pattern recorded with WithRoutePattern, else the pattern
// chi has matched so far, else fallback. Called after the handler returns it
// sees the full pattern of nested routers such as /payment/status/{orderId}.
func Route(r *http.Request, fallback string) string {
	ctx := r.Context()
	if v, ok := ctx.Value(routePatternKey{}).(string); ok && v != "" {
		return v
	}
	if rc := chi.RouteContext(ctx); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return fallback
}
