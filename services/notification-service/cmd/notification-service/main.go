package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/Bobtechma/schonheitslokal2/libs/config"
	"github.com/Bobtechma/schonheitslokal2/libs/db"
	"github.com/Bobtechma/schonheitslokal2/libs/events"
	"github.com/Bobtechma/schonheitslokal2/libs/httpx"
	"github.com/Bobtechma/schonheitslokal2/libs/kafkax"
	otelx "github.com/Bobtechma/schonheitslokal2/libs/otel"
	"github.com/Bobtechma/schonheitslokal2/libs/runtime"
	"github.com/Bobtechma/schonheitslokal2/services/notification-service/internal/consumer"
	"github.com/Bobtechma/schonheitslokal2/services/notification-service/internal/email"
	"github.com/Bobtechma/schonheitslokal2/services/notification-service/internal/inbox"
	"github.com/Bobtechma/schonheitslokal2/services/notification-service/internal/message"
	"github.com/Bobtechma/schonheitslokal2/services/notification-service/internal/metrics"
	"github.com/Bobtechma/schonheitslokal2/services/notification-service/internal/notify"
	"github.com/Bobtechma/schonheitslokal2/services/notification-service/internal/storage"
	"github.com/Bobtechma/schonheitslokal2/services/notification-service/migrations"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const defaultReviewURL = "https://www.google.com/search?q=SCH%C3%96NHEITS+LOKAL,+Kalkbreitestrasse+129,+8003+Z%C3%BCrich#lrd=0x47900ba66e443055:0x6071f7102e98c44e,3"

type settings struct {
	service     string
	port        string
	databaseURL string
	migrate     bool
	brokers     []string
	groupID     string
	maxAttempts int
	inboxTTL    time.Duration
	smtp        email.SMTPConfig
	salon       message.Salon
}

func loadSettings() (settings, error) {
	var (
		s   settings
		err error
	)
	s.service = config.String("SERVICE_NAME", "notification-service")
	if s.port, err = config.Port("PORT", "8085"); err != nil {
		return s, err
	}
	s.databaseURL = config.String("DATABASE_URL", "")
	s.migrate = config.Bool("MIGRATE_ON_START", true)
	s.brokers = config.List("KAFKA_BROKERS")
	s.groupID = config.String("KAFKA_GROUP_ID", "notification-service")
	if s.maxAttempts, err = config.PositiveInt("NOTIFY_MAX_ATTEMPTS", 5); err != nil {
		return s, err
	}
	if s.inboxTTL, err = config.Duration("INBOX_TTL", 72*time.Hour); err != nil {
		return s, err
	}

	s.smtp = email.SMTPConfig{
		Host:     config.String("SMTP_HOST", ""),
		Username: config.String("SMTP_USER", ""),
		Password: config.String("SMTP_PASS", ""),
		From:     config.String("SMTP_FROM", ""),
		FromName: config.String("SMTP_FROM_NAME", email.DefaultFromName),
	}
	if s.smtp.Port, err = config.PositiveInt("SMTP_PORT", 587); err != nil {
		return s, err
	}

	s.salon = message.Salon{
		Name:      config.String("SALON_NAME", "Schönheitslokal"),
		Address:   config.String("SALON_ADDRESS", "Kalkbreitestrasse 129, 8003 Zürich"),
		Phone:     config.String("SALON_PHONE", "077 816 29 33"),
		ReviewURL: config.String("REVIEW_URL", defaultReviewURL),
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

	m := metrics.New("schonheitslokal_notification")
	checks := []runtime.ReadyCheck{}

	var (
		in      consumer.Inbox
		history notify.History
	)
	if cfg.databaseURL == "" {
		logger.Warn("DATABASE_URL not set; de-duplication is in memory and no delivery log is kept")
		in = inbox.NewMemory(cfg.inboxTTL)
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
		in = inbox.NewRepository(pool)
		history = storage.NewRepository(pool)
		checks = append(checks, runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)})
	}

	var sender email.Sender = email.LogSender{Logger: logger}
	if cfg.smtp.Host != "" {
		sender = email.NewSMTPSender(cfg.smtp)
	} else {
		logger.Warn("SMTP_HOST not set; emails are only logged")
	}

	renderer, err := message.NewRenderer(cfg.salon)
	if err != nil {
		logger.Error("email templates invalid", "err", err)
		os.Exit(1)
	}
	dispatcher := notify.NewDispatcher(renderer, sender, history, m, logger)

	if len(cfg.brokers) > 0 {
		reader := kafkax.NewReader(cfg.brokers, cfg.groupID, events.NotificationTopics)
		c := consumer.New(reader, logger, in, consumer.Config{
			MaxAttempts: cfg.maxAttempts,
			Observe: func(topic string, outcome consumer.Outcome) {
				m.EventsConsumed.WithLabelValues(topic, string(outcome)).Inc()
			},
		}, dispatcher.Handle)
		go c.Run(ctx)
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(cfg.brokers)})
		logger.Info("consuming booking events", "topics", events.NotificationTopics, "group_id", cfg.groupID)
	} else {
		logger.Warn("KAFKA_BROKERS not set; no events will be consumed")
	}

	mux := runtime.NewBaseMuxWithReady(checks...)
	mux.Handle("/metrics", m.Handler())
	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithRecover(logger),
		httpx.WithAccessLog(logger),
	)
	handler = otelhttp.NewHandler(handler, "notification")
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
