package outbox

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/Bobtechma/schonheitslokal2/libs/kafkax"
	"github.com/Bobtechma/schonheitslokal2/services/booking-service/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	pending   []Record
	published []Record
}

func (s *fakeSource) PublishBatch(ctx context.Context, limit int, publish func(context.Context, []Record) error) (int, error) {
	n := limit
	if n > len(s.pending) {
		n = len(s.pending)
	}
	if n == 0 {
		return 0, nil
	}
	batch := s.pending[:n]
	if err := publish(ctx, batch); err != nil {
		return 0, err
	}
	s.published = append(s.published, batch...)
	s.pending = s.pending[n:]
	return n, nil
}

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func record(t *testing.T, id string) Record {
	t.Helper()
	evt, err := NewAppointmentEvent("booking.appointment.booked.v1", id, map[string]string{"appointment_id": id})
	require.NoError(t, err)
	return Record{Event: evt}
}

func TestPublishOnceWritesHeadersAndMarks(t *testing.T) {
	src := &fakeSource{pending: []Record{record(t, "a1"), record(t, "a2"), record(t, "a3")}}
	w := &fakeWriter{}
	m := metrics.New("test")
	p := NewPublisher(src, w, slog.New(slog.NewTextHandler(io.Discard, nil)), m, PublisherConfig{BatchSize: 2})

	n, err := p.PublishOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, w.msgs, 2)

	msg := w.msgs[0]
	assert.Equal(t, "booking.appointment.booked.v1", msg.Topic)
	assert.Equal(t, "a1", string(msg.Key))
	assert.Equal(t, src.published[0].ID, kafkax.HeaderValue(msg.Headers, kafkax.HeaderEventID))
	assert.Equal(t, msg.Topic, kafkax.HeaderValue(msg.Headers, kafkax.HeaderEventType))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.OutboxPublished))
	assert.Len(t, src.pending, 1)
}

func TestPublishOnceKeepsEventsOnWriteFailure(t *testing.T) {
	src := &fakeSource{pending: []Record{record(t, "a1")}}
	m := metrics.New("test")
	p := NewPublisher(src, &fakeWriter{err: errors.New("broker down")}, slog.New(slog.NewTextHandler(io.Discard, nil)), m, PublisherConfig{})

	_, err := p.PublishOnce(context.Background())
	assert.Error(t, err)
	assert.Len(t, src.pending, 1)
	assert.Empty(t, src.published)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OutboxFailed))
}
