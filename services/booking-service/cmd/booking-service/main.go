package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/Bobtechma/schonheitslokal2/libs/auth"
	"github.com/Bobtechma/schonheitslokal2/libs/config"
	"github.com/Bobtechma/schonheitslokal2/libs/db"
	"github.com/Bobtechma/schonheitslokal2/libs/httpx"
	"github.com/Bobtechma/schonheitslokal2/libs/kafkax"
	otelx "github.com/Bobtechma/schonheitslokal2/libs/otel"
	"github.com/Bobtechma/schonheitslokal2/libs/runtime"
	"github.com/Bobtechma/schonheitslokal2/services/booking-service/internal/booking"
	"github.com/Bobtechma/schonheitslokal2/services/booking-service/internal/handlers"
	"github.com/Bobtechma/schonheitslokal2/services/booking-service/internal/metrics"
	"github.com/Bobtechma/schonheitslokal2/services/booking-service/internal/outbox"
	"github.com/Bobtechma/schonheitslokal2/services/booking-service/internal/review"
	"github.com/Bobtechma/schonheitslokal2/services/booking-service/internal/storage"
	"github.com/Bobtechma/schonheitslokal2/services/booking-service/migrations"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type settings struct {
	service       string
	port          string
	location      *time.Location
	interval      int
	mode          booking.Mode
	maxRetries    int
	cacheTTL      time.Duration
	databaseURL   string
	migrate       bool
	jwtSecret     string
	brokers       []string
	redisAddr     string
	ratePerMinute int
	rateFailOpen  bool
	corsOrigins   []string
	reviewEvery   time.Duration
	outboxEvery   time.Duration
}

func loadSettings() (settings, error) {
	var (
		s   settings
		err error
	)
	s.service = config.String("SERVICE_NAME", "booking-service")
	if s.port, err = config.Port("PORT", "8083"); err != nil {
		return s, err
	}
	if s.location, err = config.Location("BUSINESS_TIMEZONE", "Europe/Zurich"); err != nil {
		return s, err
	}
	if s.interval, err = config.PositiveInt("SLOT_INTERVAL_MINUTES", 30); err != nil {
		return s, err
	}
	if s.mode, err = booking.ParseMode(config.String("BOOKING_CONCURRENCY", string(booking.ModeSerializable))); err != nil {
		return s, err
	}
	if s.maxRetries, err = config.Int("BOOKING_TX_MAX_RETRIES", 3); err != nil {
		return s, err
	}
	if s.cacheTTL, err = config.Duration("CALENDAR_CACHE_TTL", 30*time.Second); err != nil {
		return s, err
	}
	s.databaseURL = config.String("DATABASE_URL", "")
	s.migrate = config.Bool("MIGRATE_ON_START", true)
	s.jwtSecret = config.String("JWT_SECRET", "")
	s.brokers = config.List("KAFKA_BROKERS")
	s.redisAddr = config.String("REDIS_ADDR", "")
	if s.ratePerMinute, err = config.PositiveInt("RATE_LIMIT_PER_MINUTE", 60); err != nil {
		return s, err
	}
	s.rateFailOpen = config.Bool("RATE_LIMIT_FAIL_OPEN", true)
	s.corsOrigins = config.List("CORS_ALLOWED_ORIGINS")
	if s.reviewEvery, err = config.Duration("REVIEW_WORKER_INTERVAL", 5*time.Minute); err != nil {
		return s, err
	}
	if s.outboxEvery, err = config.Duration("OUTBOX_POLL_INTERVAL", 2*time.Second); err != nil {
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

	loc := cfg.location

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

	m := metrics.New("schonheitslokal")
	checks := []runtime.ReadyCheck{}

	var (
		store  booking.Store
		source outbox.Source
	)
	if cfg.databaseURL == "" {
		logger.Warn("DATABASE_URL not set; using in-memory store, data is lost on restart")
		mem := storage.NewMemory()
		store, source = mem, mem
	} else {
		pool, err := db.Open(ctx, cfg.databaseURL)
		if err != nil {
			logger.Error("db connection failed", "err", err)
			os.Exit(1)
		}
		defer pool.Close()
		if cfg.migrate {
			applied, err := db.Migrate(ctx, pool, migrations.FS, ".")
			if err != nil {
				logger.Error("migrations failed", "err", err)
				os.Exit(1)
			}
			if len(applied) > 0 {
				logger.Info("migrations applied", "files", applied)
			}
		}
		pg := storage.NewPostgres(pool, outbox.NewRepository(pool))
		store, source = pg, pg
		checks = append(checks, runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)})
	}

	svc := booking.NewService(store, storage.NewCatalogCache(cfg.cacheTTL), m, logger, booking.Config{
		Location:        loc,
		IntervalMinutes: cfg.interval,
		Mode:            cfg.mode,
		MaxRetries:      cfg.maxRetries,
	})
	logger.Info("booking service configured", "mode", string(cfg.mode), "timezone", loc.String(), "slot_interval_minutes", cfg.interval)

	var writer outbox.Writer = outbox.LogWriter{Logger: logger}
	if len(cfg.brokers) > 0 {
		kw := kafkax.NewWriter(cfg.brokers)
		defer func() { _ = kw.Close() }()
		writer = kw
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(cfg.brokers)})
	} else {
		logger.Warn("KAFKA_BROKERS not set; events are only logged")
	}
	go outbox.NewPublisher(source, writer, logger, m, outbox.PublisherConfig{PollEvery: cfg.outboxEvery}).Run(ctx)
	go review.NewWorker(svc, logger, review.WorkerConfig{Interval: cfg.reviewEvery}).Run(ctx)

	var limiter httpx.Limiter = httpx.NewRateLimiter(cfg.ratePerMinute)
	if cfg.redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.redisAddr})
		defer func() { _ = rdb.Close() }()
		limiter = httpx.NewRedisRateLimiter(rdb, cfg.ratePerMinute, time.Minute, "ratelimit:booking:")
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}

	if cfg.jwtSecret == "" {
		logger.Warn("JWT_SECRET not set; admin endpoints will reject every request")
	}

	mux := runtime.NewBaseMuxWithReady(checks...)
	mux.Handle("/metrics", m.Handler())
	handlers.Routes{
		Public:     handlers.NewPublicHandler(svc, logger),
		Admin:      handlers.NewAdminHandler(svc, logger),
		PublicMW:   []httpx.Middleware{httpx.WithRateLimit(limiter, logger, cfg.rateFailOpen)},
		AdminMW:    []httpx.Middleware{auth.RequireRole(cfg.jwtSecret, auth.RoleAdmin, auth.RoleOwner)},
		Instrument: m.Instrument,
	}.Mount(mux)

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithRecover(logger),
		httpx.WithAccessLog(logger),
		httpx.WithCORS(httpx.CORSPolicy{AllowedOrigins: cfg.corsOrigins, MaxAge: 10 * time.Minute}),
		httpx.WithBodyLimit(1<<20),
		httpx.WithTimeout(15*time.Second),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")
	srv := &http.Server{
		Addr:              ":" + cfg.port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
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
