package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/noah-isme/toko-commerce/internal/address"
	"github.com/noah-isme/toko-commerce/internal/auth"
	"github.com/noah-isme/toko-commerce/internal/cache"
	"github.com/noah-isme/toko-commerce/internal/config"
	"github.com/noah-isme/toko-commerce/internal/courier"
	"github.com/noah-isme/toko-commerce/internal/db"
	"github.com/noah-isme/toko-commerce/internal/health"
	"github.com/noah-isme/toko-commerce/internal/httpx"
	"github.com/noah-isme/toko-commerce/internal/lock"
	"github.com/noah-isme/toko-commerce/internal/obs"
	"github.com/noah-isme/toko-commerce/internal/payment"
	"github.com/noah-isme/toko-commerce/internal/ratelimit"
	"github.com/noah-isme/toko-commerce/internal/upstream"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("env", cfg.AppEnv).Str("svc", "api").Logger()

	obs.MustRegisterDomainMetrics(cfg.MetricsNamespace, nil)
	upstream.RegisterMetrics(nil)

	tracingEnabled := cfg.TracingEnabled
	if tracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "toko-commerce-api",
			Endpoint:      cfg.OTLPEndpoint,
			Exporter:      cfg.TracingExporter,
			SamplingRatio: cfg.TracingSampling,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	if cfg.MigrateOnStart {
		if err := db.Migrate(cfg.DatabaseURL); err != nil {
			logger.Fatal().Err(err).Msg("run migrations")
		}
		logger.Info().Msg("migrations applied")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, "toko-commerce-api")
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if cfg.MetricsEnabled {
		if err := redisotel.InstrumentMetrics(redisClient); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}

	queue := asynq.NewClient(asynq.RedisClientOpt{Addr: redisOpts.Addr, Password: redisOpts.Password, DB: redisOpts.DB})
	defer func() {
		if err := queue.Close(); err != nil {
			logger.Error().Err(err).Msg("close task queue")
		}
	}()

	tokens, err := auth.NewTokens(auth.TokensConfig{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer, Audience: cfg.JWTAudience})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise tokens")
	}

	errs := httpx.ErrorHandler{Logger: logger, DevMode: cfg.DevMode}
	httpClient := upstream.NewHTTPClient(cfg.UpstreamTimeout)

	gateway := payment.SSLCommerz{
		Client: &upstream.Client{
			Name:    "sslcommerz",
			BaseURL: cfg.PaymentBaseURL,
			HTTP:    httpClient,
			Breaker: upstream.NewBreaker("sslcommerz", 5, 0.5, 30*time.Second).WithLogger(logger),
			Limiter: rate.NewLimiter(rate.Limit(cfg.UpstreamRPS), max(1, int(cfg.UpstreamRPS))),
			Timeout: cfg.UpstreamTimeout,
		},
		StoreID:       cfg.PaymentStoreID,
		StorePassword: cfg.PaymentStorePassword,
	}
	paymentSvc := &payment.Service{
		Store:           payment.PGStore{Pool: pool},
		Gateway:         gateway,
		Locker:          lock.Locker{R: redisClient, Prefix: "lock:"},
		CallbackBaseURL: cfg.PaymentCallbackBaseURL,
		NewID:           func() string { return "TXN" + uuid.NewString() },
	}

	courierStore := courier.PGStore{Pool: pool}
	courierSvc := &courier.Service{
		Store: courierStore,
		API:   &courier.Client{HTTP: httpClient, Timeout: cfg.UpstreamTimeout, RPS: cfg.UpstreamRPS, Logger: logger},
		Cache: cache.NewStore(redisClient, 10*time.Minute),
	}

	apiLimit, err := ratelimit.NewAPIMiddleware(redisClient, cfg.APIRateLimit)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise api rate limiter")
	}

	var httpMetrics *obs.HTTPMetrics
	if cfg.MetricsEnabled {
		httpMetrics = obs.NewHTTPMetrics(cfg.MetricsNamespace, obs.ParseBucketsCSV(cfg.MetricsBuckets), nil)
	}

	router := newRouter(routerDeps{
		Config:       cfg,
		Logger:       logger,
		Errors:       errs,
		Redis:        redisClient,
		Auth:         auth.Middleware{Tokens: tokens, Errors: errs},
		Payment:      paymentSvc,
		Address:      &address.Service{Store: address.NewPGStore(pool)},
		Courier:      courierSvc,
		CourierStore: courierStore,
		Queue:        queue,
		Health: health.Handler{Checks: map[string]health.Check{
			"postgres": health.PingCheck(pool),
			"redis":    health.RedisCheck(redisClient),
		}},
		HTTPMetrics: httpMetrics,
		Tracing:     tracingEnabled,
		APILimit:    apiLimit,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	health.SetReady(false)
	logger.Info().Msg("shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown")
	}
}
