package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/Bobtechma/schonheitslokal2/libs/events"
	"github.com/Bobtechma/schonheitslokal2/libs/kafkax"
	"github.com/Bobtechma/schonheitslokal2/services/notification-service/internal/consumer"
	"github.com/Bobtechma/schonheitslokal2/services/notification-service/internal/message"
	"github.com/Bobtechma/schonheitslokal2/services/notification-service/internal/metrics"
	"github.com/Bobtechma/schonheitslokal2/services/notification-service/internal/storage"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	sent []message.Message
	err  error
}

func (f *fakeSender) ProviderID() string { return "fake" }

func (f *fakeSender) Send(_ context.Context, msg message.Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

type fakeHistory struct {
	rows []storage.Notification
}

func (f *fakeHistory) Insert(_ context.Context, n storage.Notification) error {
	f.rows = append(f.rows, n)
	return nil
}

func newDispatcher(t *testing.T, sender *fakeSender, history History) (*Dispatcher, *metrics.Metrics) {
	t.Helper()
	r, err := message.NewRenderer(message.Salon{Name: "Schönheitslokal", ReviewURL: "https://example.com/review"})
	require.NoError(t, err)
	m := metrics.New("test")
	return NewDispatcher(r, sender, history, m, slog.New(slog.NewTextHandler(io.Discard, nil))), m
}

func event(t *testing.T, topic string, payload any) kafka.Message {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return kafka.Message{
		Topic: topic,
		Value: raw,
		Headers: []kafka.Header{
			{Key: kafkax.HeaderEventID, Value: []byte("e-1")},
			{Key: kafkax.HeaderEventType, Value: []byte(topic)},
		},
	}
}

func TestHandleBookedSendsConfirmation(t *testing.T) {
	sender := &fakeSender{}
	history := &fakeHistory{}
	d, m := newDispatcher(t, sender, history)

	err := d.Handle(context.Background(), event(t, events.AppointmentBooked, events.AppointmentBookedPayload{
		AppointmentID: "a-1",
		Date:          "2026-03-03",
		Start:         "10:00",
		TotalCents:    8000,
		Services:      []events.ServiceLine{{Name: "Cut", PriceCents: 8000, DurationMinutes: 60}},
		Client:        events.Client{Name: "Anna", Email: "anna@example.ch", Language: "en"},
	}))
	require.NoError(t, err)

	require.Len(t, sender.sent, 1)
	assert.Equal(t, message.KindConfirmation, sender.sent[0].Kind)
	assert.Equal(t, "anna@example.ch", sender.sent[0].To)

	require.Len(t, history.rows, 1)
	assert.Equal(t, storage.StatusSent, history.rows[0].Status)
	assert.Equal(t, "a-1", history.rows[0].AppointmentID)
	assert.Equal(t, "e-1", history.rows[0].EventID)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Emails.WithLabelValues("confirmation", "sent")))
}

func TestHandleCancelledAndReview(t *testing.T) {
	sender := &fakeSender{}
	d, _ := newDispatcher(t, sender, nil)
	client := events.Client{Name: "Anna", Email: "anna@example.ch"}

	require.NoError(t, d.Handle(context.Background(), event(t, events.AppointmentCancelled,
		events.AppointmentCancelledPayload{AppointmentID: "a-1", Date: "2026-03-03", Start: "10:00", Client: client})))
	require.NoError(t, d.Handle(context.Background(), event(t, events.ReviewRequested,
		events.ReviewRequestedPayload{AppointmentID: "a-1", Date: "2026-03-03", Start: "10:00", Client: client})))

	require.Len(t, sender.sent, 2)
	assert.Equal(t, message.KindCancellation, sender.sent[0].Kind)
	assert.Equal(t, message.KindReviewRequest, sender.sent[1].Kind)
	assert.Equal(t, "de-CH", sender.sent[1].Language)
}

func TestHandlePermanentFailures(t *testing.T) {
	sender := &fakeSender{}
	d, _ := newDispatcher(t, sender, nil)

	bad := event(t, events.AppointmentBooked, nil)
	bad.Value = []byte("{not json")
	assert.ErrorIs(t, d.Handle(context.Background(), bad), consumer.ErrPermanent)

	unknown := event(t, events.AppointmentStatusChanged, events.AppointmentStatusChangedPayload{AppointmentID: "a-1"})
	assert.ErrorIs(t, d.Handle(context.Background(), unknown), consumer.ErrPermanent)

	assert.Empty(t, sender.sent)
}

func TestHandleWithoutEmailIsANoop(t *testing.T) {
	sender := &fakeSender{}
	d, _ := newDispatcher(t, sender, nil)
	err := d.Handle(context.Background(), event(t, events.AppointmentBooked,
		events.AppointmentBookedPayload{AppointmentID: "a-1", Date: "2026-03-03", Start: "10:00", Client: events.Client{Name: "Walk-in"}}))
	require.NoError(t, err)
	assert.Empty(t, sender.sent)
}

func TestHandleDeliveryFailureIsRetryable(t *testing.T) {
	sendErr := errors.New("smtp: 421 service not available")
	sender := &fakeSender{err: sendErr}
	history := &fakeHistory{}
	d, m := newDispatcher(t, sender, history)

	err := d.Handle(context.Background(), event(t, events.ReviewRequested,
		events.ReviewRequestedPayload{AppointmentID: "a-1", Date: "2026-03-03", Start: "10:00", Client: events.Client{Email: "anna@example.ch"}}))
	require.ErrorIs(t, err, sendErr)
	assert.NotErrorIs(t, err, consumer.ErrPermanent)

	require.Len(t, history.rows, 1)
	assert.Equal(t, storage.StatusFailed, history.rows[0].Status)
	assert.Equal(t, sendErr.Error(), history.rows[0].Error)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Emails.WithLabelValues("review", "failed")))
}
