// Package notify turns booking events into client emails.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Bobtechma/schonheitslokal2/libs/events"
	"github.com/Bobtechma/schonheitslokal2/libs/kafkax"
	"github.com/Bobtechma/schonheitslokal2/services/notification-service/internal/consumer"
	"github.com/Bobtechma/schonheitslokal2/services/notification-service/internal/email"
	"github.com/Bobtechma/schonheitslokal2/services/notification-service/internal/message"
	"github.com/Bobtechma/schonheitslokal2/services/notification-service/internal/metrics"
	"github.com/Bobtechma/schonheitslokal2/services/notification-service/internal/storage"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// History keeps a log of delivery attempts. Optional.
type History interface {
	Insert(ctx context.Context, n storage.Notification) error
}

type Dispatcher struct {
	renderer *message.Renderer
	sender   email.Sender
	history  History
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func NewDispatcher(renderer *message.Renderer, sender email.Sender, history History, m *metrics.Metrics, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		renderer: renderer,
		sender:   sender,
		history:  history,
		metrics:  m,
		logger:   logger,
	}
}

// Handle is a consumer.Handler. Malformed or unsupported events fail with
// consumer.ErrPermanent; delivery errors are returned as is so they are
// retried.
func (d *Dispatcher) Handle(ctx context.Context, msg kafka.Message) error {
	meta := kafkax.ExtractEventMeta(msg)

	appointmentID, rendered, err := d.render(meta.EventType, msg.Value)
	if errors.Is(err, message.ErrNoRecipient) {
		d.logger.Info("no email address, nothing to send", "event_id", meta.EventID, "appointment_id", appointmentID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %v", consumer.ErrPermanent, meta.EventType, err)
	}

	ctx, span := otel.Tracer("notification").Start(ctx, "email.send",
		trace.WithAttributes(
			attribute.String("email.kind", string(rendered.Kind)),
			attribute.String("email.language", rendered.Language),
			attribute.String("appointment.id", appointmentID),
		),
	)
	defer span.End()

	n := storage.Notification{
		EventID:       meta.EventID,
		AppointmentID: appointmentID,
		Kind:          string(rendered.Kind),
		Language:      rendered.Language,
		Recipient:     rendered.To,
		Subject:       rendered.Subject,
		Provider:      d.sender.ProviderID(),
		Status:        storage.StatusSent,
	}
	sendErr := d.sender.Send(ctx, rendered)
	if sendErr != nil {
		span.RecordError(sendErr)
		n.Status = storage.StatusFailed
		n.Error = sendErr.Error()
	}
	d.metrics.Emails.WithLabelValues(n.Kind, n.Status).Inc()
	d.record(ctx, n)

	if sendErr != nil {
		return sendErr
	}
	d.logger.Info("email sent", "event_id", meta.EventID, "appointment_id", appointmentID, "kind", n.Kind, "language", n.Language)
	return nil
}

func (d *Dispatcher) render(eventType string, raw []byte) (string, message.Message, error) {
	switch eventType {
	case events.AppointmentBooked:
		var p events.AppointmentBookedPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return "", message.Message{}, err
		}
		m, err := d.renderer.Confirmation(p)
		return p.AppointmentID, m, err
	case events.AppointmentCancelled:
		var p events.AppointmentCancelledPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return "", message.Message{}, err
		}
		m, err := d.renderer.Cancellation(p)
		return p.AppointmentID, m, err
	case events.ReviewRequested:
		var p events.ReviewRequestedPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return "", message.Message{}, err
		}
		m, err := d.renderer.ReviewRequest(p)
		return p.AppointmentID, m, err
	default:
		return "", message.Message{}, errors.New("unsupported event type")
	}
}

func (d *Dispatcher) record(ctx context.Context, n storage.Notification) {
	if d.history == nil {
		return
	}
	if err := d.history.Insert(context.WithoutCancel(ctx), n); err != nil {
		d.logger.Error("failed to persist notification", "err", err, "event_id", n.EventID)
	}
}
