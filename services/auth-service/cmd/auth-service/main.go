package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/Bobtechma/schonheitslokal2/libs/config"
	"github.com/Bobtechma/schonheitslokal2/libs/db"
	"github.com/Bobtechma/schonheitslokal2/libs/httpx"
	otelx "github.com/Bobtechma/schonheitslokal2/libs/otel"
	"github.com/Bobtechma/schonheitslokal2/libs/runtime"
	"github.com/Bobtechma/schonheitslokal2/services/auth-service/internal/audit"
	"github.com/Bobtechma/schonheitslokal2/services/auth-service/internal/handlers"
	"github.com/Bobtechma/schonheitslokal2/services/auth-service/internal/sessions"
	"github.com/Bobtechma/schonheitslokal2/services/auth-service/internal/staff"
	"github.com/Bobtechma/schonheitslokal2/services/auth-service/migrations"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type settings struct {
	service        string
	port           string
	databaseURL    string
	migrate        bool
	jwtSecret      string
	accessTTL      time.Duration
	refreshTTL     time.Duration
	loginPerMinute int
	ownerEmail     string
	ownerPassword  string
	corsOrigins    []string
}

func loadSettings() (settings, error) {
	var (
		s   settings
		err error
	)
	s.service = config.String("SERVICE_NAME", "auth-service")
	if s.port, err = config.Port("PORT", "8081"); err != nil {
		return s, err
	}
	s.databaseURL = config.String("DATABASE_URL", "")
	s.migrate = config.Bool("MIGRATE_ON_START", true)
	if s.jwtSecret, err = config.RequiredString("JWT_SECRET"); err != nil {
		return s, err
	}
	if s.accessTTL, err = config.Duration("ACCESS_TOKEN_TTL", time.Hour); err != nil {
		return s, err
	}
	if s.refreshTTL, err = config.Duration("REFRESH_TOKEN_TTL", 30*24*time.Hour); err != nil {
		return s, err
	}
	if s.loginPerMinute, err = config.PositiveInt("LOGIN_RATE_LIMIT_PER_MINUTE", 10); err != nil {
		return s, err
	}
	s.ownerEmail = config.String("BOOTSTRAP_OWNER_EMAIL", "")
	s.ownerPassword = config.String("BOOTSTRAP_OWNER_PASSWORD", "")
	s.corsOrigins = config.List("CORS_ALLOWED_ORIGINS")
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
	var (
		dir      staff.Directory
		store    sessions.Store
		auditLog audit.Log
	)
	if cfg.databaseURL == "" {
		logger.Warn("DATABASE_URL not set; staff accounts and sessions are kept in memory")
		dir, store, auditLog = staff.NewMemory(), sessions.NewMemory(), audit.NewMemory(1000)
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
		dir = staff.NewRepository(pool)
		store = sessions.NewRefreshRepository(pool)
		auditLog = audit.NewRepository(pool)
		checks = append(checks, runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)})
	}

	if cfg.ownerEmail != "" {
		created, err := staff.EnsureOwner(ctx, dir, cfg.ownerEmail, cfg.ownerPassword)
		if err != nil {
			logger.Error("bootstrap owner failed", "err", err)
			os.Exit(1)
		}
		if created {
			logger.Info("bootstrap owner created", "email", staff.NormalizeEmail(cfg.ownerEmail))
		}
	}

	authHandler := handlers.NewAuthHandler(handlers.Config{
		Secret:     cfg.jwtSecret,
		AccessTTL:  cfg.accessTTL,
		RefreshTTL: cfg.refreshTTL,
	}, dir, store, auditLog, logger)

	mux := runtime.NewBaseMuxWithReady(checks...)
	authHandler.Mount(mux, httpx.WithRateLimit(httpx.NewRateLimiter(cfg.loginPerMinute), logger, false))

	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithRecover(logger),
		httpx.WithAccessLog(logger),
		httpx.WithCORS(httpx.CORSPolicy{AllowedOrigins: cfg.corsOrigins, MaxAge: 10 * time.Minute}),
		httpx.WithBodyLimit(64<<10),
		httpx.WithTimeout(10*time.Second),
	)
	handler = otelhttp.NewHandler(handler, "auth")
	srv := &http.Server{
		Addr:              ":" + cfg.port,
		Handler:           handler,
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
