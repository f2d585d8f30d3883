package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/Bobtechma/schonheitslokal2/libs/kafkax"
	otelx "github.com/Bobtechma/schonheitslokal2/libs/otel"
	"github.com/Bobtechma/schonheitslokal2/services/booking-service/internal/metrics"
	"github.com/segmentio/kafka-go"
)

// Source hands out unpublished events. Both the Postgres repository and the
// in-memory store implement it.
type Source interface {
	PublishBatch(ctx context.Context, limit int, publish func(context.Context, []Record) error) (int, error)
}

type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type PublisherConfig struct {
	PollEvery time.Duration
	BatchSize int
}

type Publisher struct {
	source    Source
	writer    Writer
	logger    *slog.Logger
	metrics   *metrics.Metrics
	pollEvery time.Duration
	batchSize int
}

func NewPublisher(source Source, writer Writer, logger *slog.Logger, m *metrics.Metrics, cfg PublisherConfig) *Publisher {
	if cfg.PollEvery <= 0 {
		cfg.PollEvery = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &Publisher{
		source:    source,
		writer:    writer,
		logger:    logger,
		metrics:   m,
		pollEvery: cfg.PollEvery,
		batchSize: cfg.BatchSize,
	}
}

func (p *Publisher) Run(ctx context.Context) {
	ticker := time.NewTicker(p.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Drain while full batches keep coming.
			for {
				n, err := p.PublishOnce(ctx)
				if err != nil {
					if ctx.Err() == nil {
						p.logger.Error("outbox publish failed", "err", err)
					}
					break
				}
				if n < p.batchSize {
					break
				}
			}
		}
	}
}

func (p *Publisher) PublishOnce(ctx context.Context) (int, error) {
	n, err := p.source.PublishBatch(ctx, p.batchSize, p.write)
	if err != nil {
		if p.metrics != nil {
			p.metrics.OutboxFailed.Inc()
		}
		return 0, err
	}
	if n > 0 {
		if p.metrics != nil {
			p.metrics.OutboxPublished.Add(float64(n))
		}
		p.logger.Debug("outbox events published", "count", n)
	}
	return n, nil
}

func (p *Publisher) write(ctx context.Context, records []Record) error {
	msgs := make([]kafka.Message, 0, len(records))
	for _, r := range records {
		msgCtx := otelx.ContextWithTraceContext(ctx, r.Traceparent, r.Tracestate)
		headers := []kafka.Header{
			{Key: kafkax.HeaderEventID, Value: []byte(r.ID)},
			{Key: kafkax.HeaderEventType, Value: []byte(r.EventType)},
		}
		msgs = append(msgs, kafka.Message{
			Topic:   r.EventType,
			Key:     []byte(r.AggregateID),
			Value:   r.Payload,
			Headers: kafkax.InjectTraceHeaders(msgCtx, headers),
		})
	}
	return p.writer.WriteMessages(ctx, msgs...)
}

// LogWriter stands in for Kafka when no brokers are configured. Events are
// logged and then treated as delivered.
type LogWriter struct {
	Logger *slog.Logger
}

func (w LogWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		w.Logger.Info("event (no broker configured)", "topic", m.Topic, "key", string(m.Key), "payload", string(m.Value))
	}
	return nil
}
