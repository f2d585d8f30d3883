package message

import (
	"testing"

	"github.com/Bobtechma/schonheitslokal2/libs/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var salon = Salon{
	Name:      "Schönheitslokal",
	Address:   "Kalkbreitestrasse 129, 8003 Zürich",
	Phone:     "077 816 29 33",
	ReviewURL: "https://g.page/r/example/review",
}

func booked(lang string) events.AppointmentBookedPayload {
	return events.AppointmentBookedPayload{
		AppointmentID: "a-1",
		Date:          "2026-03-03",
		Start:         "10:00",
		End:           "12:30",
		TotalCents:    16200,
		Services: []events.ServiceLine{
			{Name: "Haarschnitt", PriceCents: 7200, DurationMinutes: 60},
			{Name: "Färben", PriceCents: 9000, DurationMinutes: 90},
		},
		Client: events.Client{Name: "Anna", Email: "anna@example.ch", Language: lang},
	}
}

func TestConfirmationPerLanguage(t *testing.T) {
	r, err := NewRenderer(salon)
	require.NoError(t, err)

	cases := []struct {
		lang, subject, greeting, date string
	}{
		{"de-CH", "Buchungsbestätigung - Schönheitslokal", "Hallo Anna,", "03.03.2026 10:00"},
		{"en", "Booking confirmation - Schönheitslokal", "Hello Anna,", "3 March 2026 10:00"},
		{"pt-BR", "Confirmação de Agendamento - Schönheitslokal", "Olá Anna,", "03/03/2026 10:00"},
		{"fr", "Buchungsbestätigung - Schönheitslokal", "Hallo Anna,", "03.03.2026 10:00"},
	}
	for _, tc := range cases {
		t.Run(tc.lang, func(t *testing.T) {
			msg, err := r.Confirmation(booked(tc.lang))
			require.NoError(t, err)
			assert.Equal(t, KindConfirmation, msg.Kind)
			assert.Equal(t, "anna@example.ch", msg.To)
			assert.Equal(t, tc.subject, msg.Subject)
			assert.Contains(t, msg.Body, tc.greeting)
			assert.Contains(t, msg.Body, tc.date)
			assert.Contains(t, msg.Body, "Haarschnitt (CHF 72.00)")
			assert.Contains(t, msg.Body, "CHF 162.00")
			assert.Contains(t, msg.Body, "a-1")
			assert.Contains(t, msg.Body, salon.Address)
		})
	}
}

func TestCancellationAndReview(t *testing.T) {
	r, err := NewRenderer(salon)
	require.NoError(t, err)

	msg, err := r.Cancellation(events.AppointmentCancelledPayload{
		AppointmentID: "a-1",
		Date:          "2026-03-03",
		Start:         "10:00",
		Reason:        "Krankheit",
		Client:        events.Client{Name: "Anna", Email: "anna@example.ch", Language: "de-CH"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Stornierung bestätigt - Schönheitslokal", msg.Subject)
	assert.Contains(t, msg.Body, "03.03.2026 um 10:00")
	assert.Contains(t, msg.Body, "Grund: Krankheit")

	msg, err = r.ReviewRequest(events.ReviewRequestedPayload{
		AppointmentID: "a-1",
		Date:          "2026-03-03",
		Start:         "10:00",
		Client:        events.Client{Email: "joao@example.com", Language: "pt"},
	})
	require.NoError(t, err)
	assert.Equal(t, "pt-BR", msg.Language)
	assert.Contains(t, msg.Body, "Olá cliente,")
	assert.Contains(t, msg.Body, salon.ReviewURL)
}

func TestMissingRecipient(t *testing.T) {
	r, err := NewRenderer(salon)
	require.NoError(t, err)
	p := booked("de-CH")
	p.Client.Email = "  "
	_, err = r.Confirmation(p)
	assert.ErrorIs(t, err, ErrNoRecipient)
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "CHF 0.05", FormatPrice(5))
	assert.Equal(t, "CHF 1234.50", FormatPrice(123450))
	assert.Equal(t, "not-a-date", FormatDate("not-a-date", "en"))
	assert.Equal(t, "en", Language("en-GB"))
	assert.Equal(t, "de-CH", Language(""))
}
