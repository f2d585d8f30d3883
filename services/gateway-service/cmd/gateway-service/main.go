package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/Bobtechma/schonheitslokal2/libs/config"
	"github.com/Bobtechma/schonheitslokal2/libs/httpx"
	otelx "github.com/Bobtechma/schonheitslokal2/libs/otel"
	"github.com/Bobtechma/schonheitslokal2/libs/runtime"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var errMissingHost = errors.New("scheme and host required")

type settings struct {
	service        string
	port           string
	jwtSecret      string
	up             upstreams
	bodyLimit      int
	requestTimeout time.Duration
	ratePerMinute  int
	rateFailOpen   bool
	redisAddr      string
	redisPassword  string
	redisDB        int
	corsOrigins    []string
	corsMaxAge     time.Duration
}

func loadSettings() (settings, error) {
	var (
		s   settings
		err error
	)
	s.service = config.String("SERVICE_NAME", "gateway-service")
	if s.port, err = config.Port("PORT", "8080"); err != nil {
		return s, err
	}
	s.jwtSecret = config.String("JWT_SECRET", "")
	if s.up.auth, err = parseUpstream(config.String("AUTH_URL", "http://auth-service:8081")); err != nil {
		return s, err
	}
	if s.up.booking, err = parseUpstream(config.String("BOOKING_URL", "http://booking-service:8083")); err != nil {
		return s, err
	}
	if s.bodyLimit, err = config.PositiveInt("REQUEST_BODY_LIMIT_BYTES", 1<<20); err != nil {
		return s, err
	}
	if s.requestTimeout, err = config.Duration("REQUEST_TIMEOUT", 15*time.Second); err != nil {
		return s, err
	}
	if s.ratePerMinute, err = config.PositiveInt("RATE_LIMIT_PER_MINUTE", 120); err != nil {
		return s, err
	}
	s.rateFailOpen = config.Bool("RATE_LIMIT_FAIL_OPEN", true)
	s.redisAddr = config.String("REDIS_ADDR", "")
	s.redisPassword = config.String("REDIS_PASSWORD", "")
	if s.redisDB, err = config.Int("REDIS_DB", 0); err != nil {
		return s, err
	}
	s.corsOrigins = config.List("CORS_ALLOWED_ORIGINS")
	if s.corsMaxAge, err = config.Duration("CORS_MAX_AGE", 10*time.Minute); err != nil {
		return s, err
	}
	return s, nil
}

func main() {
	cfg, err := loadSettings()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	logger := runtime.NewLogger(cfg.service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(cfg.service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	checks := []runtime.ReadyCheck{}
	var limiter httpx.Limiter
	if cfg.redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.redisAddr,
			Password: cfg.redisPassword,
			DB:       cfg.redisDB,
		})
		defer func() { _ = rdb.Close() }()
		limiter = httpx.NewRedisRateLimiter(rdb, cfg.ratePerMinute, time.Minute, "ratelimit:gateway:")
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
		logger.Info("rate limiting enabled (redis)", "per_minute", cfg.ratePerMinute, "redis_addr", cfg.redisAddr)
	} else {
		limiter = httpx.NewRateLimiter(cfg.ratePerMinute)
		logger.Info("rate limiting enabled (in-memory)", "per_minute", cfg.ratePerMinute)
	}

	mux := runtime.NewBaseMuxWithReady(checks...)
	registerRoutes(mux, cfg.up, cfg.jwtSecret)

	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithRecover(logger),
		httpx.WithAccessLog(logger),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: cfg.corsOrigins,
			AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-Id", "Idempotency-Key"},
			MaxAge:         cfg.corsMaxAge,
		}),
		httpx.WithBodyLimit(int64(cfg.bodyLimit)),
		httpx.WithTimeout(cfg.requestTimeout),
		httpx.WithRateLimit(limiter, logger, cfg.rateFailOpen),
	)
	handler = otelhttp.NewHandler(handler, "gateway")
	srv := &http.Server{
		Addr:              ":" + cfg.port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr, "auth_url", cfg.up.auth.String(), "booking_url", cfg.up.booking.String())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
