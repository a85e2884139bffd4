package main

import (
	"crypto/subtle"
	"net/http"
	"net/http/pprof"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-commerce/internal/address"
	"github.com/noah-isme/toko-commerce/internal/auth"
	"github.com/noah-isme/toko-commerce/internal/cache"
	"github.com/noah-isme/toko-commerce/internal/common"
	"github.com/noah-isme/toko-commerce/internal/config"
	"github.com/noah-isme/toko-commerce/internal/courier"
	"github.com/noah-isme/toko-commerce/internal/health"
	"github.com/noah-isme/toko-commerce/internal/httpx"
	"github.com/noah-isme/toko-commerce/internal/obs"
	"github.com/noah-isme/toko-commerce/internal/payment"
	"github.com/noah-isme/toko-commerce/internal/ratelimit"
	"github.com/noah-isme/toko-commerce/internal/sanitize"
	"github.com/noah-isme/toko-commerce/internal/security"
)

type routerDeps struct {
	Config       *config.Config
	Logger       zerolog.Logger
	Errors       httpx.ErrorHandler
	Redis        *redis.Client
	Auth         auth.Middleware
	Payment      *payment.Service
	Address      *address.Service
	Courier      *courier.Service
	CourierStore courier.Store
	Queue        courier.Enqueuer
	Health       health.Handler
	HTTPMetrics  *obs.HTTPMetrics
	Tracing      bool
	APILimit     func(http.Handler) http.Handler
}

func newRouter(d routerDeps) http.Handler {
	cfg := d.Config
	errs := d.Errors

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if d.Tracing {
		r.Use(obs.TracingMiddleware)
	}
	if d.HTTPMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: d.HTTPMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: d.Logger, LogStart: true}.Middleware)
	r.Use(security.Headers{HSTS: !cfg.DevMode}.Middleware)
	r.Use(security.BodyLimit{Max: cfg.BodyLimitBytes}.Middleware)

	if cfg.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	if cfg.PprofEnabled {
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), cfg.PprofUser, cfg.PprofPass))
	}
	r.Get("/health/live", d.Health.Live)
	r.Get("/health/ready", d.Health.Ready)

	// Courier callbacks carry their own CORS policy and signature check, so
	// they sit outside the browser-facing group.
	r.Route("/webhooks/courier/{provider}", func(w chi.Router) {
		w.Use(courier.WebhookCORS)
		w.Use(ratelimit.Handler{
			Limiter: ratelimit.SlidingWindow{Client: d.Redis, Prefix: "ratelimit:webhook"},
			Config:  ratelimit.Config{Name: "courier_webhook", Key: ratelimit.ByClientIP, Window: cfg.WebhookRateWindow, Max: cfg.WebhookRateLimit},
			OnError: func(req *http.Request, err error) {
				zerolog.Ctx(req.Context()).Warn().Err(err).Msg("webhook_rate_limiter_unavailable")
			},
		}.Middleware)
		w.Use(courier.SignatureVerifier{Store: d.CourierStore, Errors: errs}.Middleware)
		w.Post("/", errs.Wrap(courier.Webhook{Queue: d.Queue, Replay: d.Redis, ReplayTTL: cfg.ReplayTTL}.Handle))
	})

	r.Group(func(api chi.Router) {
		api.Use(cors.Handler(cors.Options{
			AllowedOrigins:   allowedOrigins(cfg),
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID", "Retry-After"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
		api.Use(sanitize.Middleware)
		if d.APILimit != nil {
			api.Use(d.APILimit)
		}

		idem := common.Idem{R: d.Redis, TTL: cfg.IdempotencyTTL}
		api.Route("/payment", func(p chi.Router) {
			payment.Handler{Svc: d.Payment}.Routes(p, errs, d.Auth.RequireAuth, idem.Middleware)
		})

		api.Route("/addresses", func(a chi.Router) {
			a.Use(d.Auth.RequireAuth)
			address.Handler{Svc: d.Address}.Routes(a, errs)
		})

		courierHandler := courier.Handler{Svc: d.Courier}
		guards := courier.Guards{Store: d.CourierStore, Errors: errs}
		gate := cache.Gate{Store: d.Courier.Cache, Errors: errs}
		api.Route("/courier", func(c chi.Router) {
			c.With(gate.For(courier.ProvidersCacheKey)).Get("/providers", errs.Wrap(courierHandler.Providers))
			c.Group(func(g chi.Router) {
				g.Use(d.Auth.RequireAuth)
				g.With(idem.Middleware, guards.RequireProvider, guards.RequireCredentials).
					Post("/consignments", errs.Wrap(courierHandler.CreateConsignment))
				g.Get("/consignments/{id}", errs.Wrap(courierHandler.Consignment))
			})
		})
	})

	return r
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	for _, name := range []string{"allocs", "block", "goroutine", "heap", "mutex", "threadcreate"} {
		mux.Handle("/"+name, pprof.Handler(name))
	}
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			common.JSONError(w, http.StatusUnauthorized, "unauthorised", nil)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
