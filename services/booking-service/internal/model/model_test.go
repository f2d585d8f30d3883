package model

import (
	"testing"

	"github.com/Bobtechma/schonheitslokal2/services/booking-service/internal/calendar"
)

func TestStatusBlocksTime(t *testing.T) {
	cases := map[Status]bool{
		StatusConfirmed: true,
		StatusCompleted: true,
		StatusCancelled: false,
		StatusNoShow:    false,
	}
	for st, want := range cases {
		if got := st.BlocksTime(); got != want {
			t.Fatalf("%s.BlocksTime() = %v, want %v", st, got, want)
		}
	}
}

func TestParseStatus(t *testing.T) {
	if st, ok := ParseStatus("no_show"); !ok || st != StatusNoShow {
		t.Fatalf("expected no_show to parse, got %q %v", st, ok)
	}
	if _, ok := ParseStatus("pending"); ok {
		t.Fatalf("unknown statuses must not parse")
	}
}

func TestAppointmentEnd(t *testing.T) {
	a := Appointment{Start: calendar.NewClock(9, 30), DurationMinutes: 75}
	if a.End() != calendar.NewClock(10, 45) {
		t.Fatalf("unexpected end %s", a.End())
	}
}

func TestNormalizeLanguage(t *testing.T) {
	cases := map[string]string{
		"":      "de-CH",
		"de":    "de-CH",
		"EN-us": "en",
		"pt-BR": "pt-BR",
		"pt":    "pt-BR",
		"fr":    "de-CH",
	}
	for in, want := range cases {
		if got := NormalizeLanguage(in); got != want {
			t.Fatalf("NormalizeLanguage(%q) = %q, want %q", in, got, want)
		}
	}
}
