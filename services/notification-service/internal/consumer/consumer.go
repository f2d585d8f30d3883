package consumer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Bobtechma/schonheitslokal2/libs/kafkax"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrPermanent marks handler failures that retrying cannot fix, such as a
// payload that does not decode.
var ErrPermanent = errors.New("permanent failure")

type Handler func(ctx context.Context, msg kafka.Message) error

type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Inbox interface {
	Claim(ctx context.Context, eventID string, eventType string) (bool, error)
	Release(ctx context.Context, eventID string) error
}

// Outcome is reported once per fetched message.
type Outcome string

const (
	OutcomeHandled   Outcome = "handled"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
)

type Config struct {
	MaxAttempts int
	Backoff     time.Duration
	// Observe, when set, is called with the topic and outcome of every message.
	Observe func(topic string, outcome Outcome)
}

type Consumer struct {
	reader      Reader
	logger      *slog.Logger
	inbox       Inbox
	handler     Handler
	maxAttempts int
	backoff     time.Duration
	observe     func(string, Outcome)
}

func New(reader Reader, logger *slog.Logger, in Inbox, cfg Config, handler Handler) *Consumer {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 500 * time.Millisecond
	}
	if cfg.Observe == nil {
		cfg.Observe = func(string, Outcome) {}
	}
	return &Consumer{
		reader:      reader,
		logger:      logger,
		inbox:       in,
		handler:     handler,
		maxAttempts: cfg.MaxAttempts,
		backoff:     cfg.Backoff,
		observe:     cfg.Observe,
	}
}

func (c *Consumer) Run(ctx context.Context) {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("kafka fetch error", "err", err)
			if !sleep(ctx, time.Second) {
				return
			}
			continue
		}

		outcome := c.process(ctx, msg)
		if ctx.Err() != nil {
			// Uncommitted; the message is delivered again after restart.
			return
		}
		c.observe(msg.Topic, outcome)

		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error("kafka commit failed", "err", err, "topic", msg.Topic, "offset", msg.Offset)
		}
	}
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message) Outcome {
	ctxMsg := kafkax.ExtractTraceContext(ctx, msg)
	ctxSpan, span := otel.Tracer("kafka").Start(ctxMsg, "kafka.consume",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", msg.Topic),
		),
	)
	defer span.End()

	meta := kafkax.ExtractEventMeta(msg)
	logger := c.logger.With("event_id", meta.EventID, "event_type", meta.EventType)

	ok, err := c.claim(ctxSpan, meta)
	if err != nil {
		logger.Error("inbox claim failed", "err", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "inbox")
		return OutcomeFailed
	}
	if !ok {
		logger.Info("duplicate event ignored")
		return OutcomeDuplicate
	}

	for attempt := 1; ; attempt++ {
		err = c.handler(ctxSpan, msg)
		if err == nil {
			return OutcomeHandled
		}
		span.RecordError(err)
		if errors.Is(err, ErrPermanent) {
			logger.Warn("event skipped", "err", err)
			return OutcomeSkipped
		}
		if attempt >= c.maxAttempts || !sleep(ctx, c.backoff*time.Duration(1<<(attempt-1))) {
			break
		}
		logger.Warn("handler failed, retrying", "err", err, "attempt", attempt)
	}

	// Give the event back so a redelivery is not mistaken for a duplicate.
	if rerr := c.inbox.Release(context.WithoutCancel(ctx), meta.EventID); rerr != nil {
		logger.Error("inbox release failed", "err", rerr)
	}
	if ctx.Err() == nil {
		logger.Error("handler gave up", "err", err, "attempts", c.maxAttempts)
	}
	span.SetStatus(codes.Error, "handler")
	return OutcomeFailed
}

func (c *Consumer) claim(ctx context.Context, meta kafkax.EventMeta) (bool, error) {
	if meta.EventID == "" {
		// Nothing to de-duplicate on.
		return true, nil
	}
	return c.inbox.Claim(ctx, meta.EventID, meta.EventType)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
