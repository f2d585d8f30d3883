package email

import (
	"bytes"
	"context"
	"testing"

	"github.com/Bobtechma/schonheitslokal2/services/notification-service/internal/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMessageHeaders(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{Host: "mailpit", Port: 1025, Username: "salon@example.ch"})
	assert.Equal(t, "salon@example.ch", s.from)
	assert.Equal(t, DefaultFromName, s.fromName)

	m := s.build(message.Message{
		Language: "en",
		To:       "anna@example.ch",
		ToName:   "Anna",
		Subject:  "Booking confirmation",
		Body:     "Hello Anna,",
	})
	assert.Equal(t, []string{"Booking confirmation"}, m.GetHeader("Subject"))
	assert.Equal(t, []string{"en"}, m.GetHeader("Content-Language"))

	var buf bytes.Buffer
	_, err := m.WriteTo(&buf)
	require.NoError(t, err)
	raw := buf.String()
	assert.Contains(t, raw, "salon@example.ch")
	assert.Contains(t, raw, "anna@example.ch")
	assert.Contains(t, raw, "text/plain")
}

func TestSendHonoursCancelledContext(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{Host: "127.0.0.1", Port: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.Send(ctx, message.Message{To: "anna@example.ch"})
	assert.ErrorIs(t, err, context.Canceled)
}
