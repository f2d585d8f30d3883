package availability

import (
	"errors"

	"github.com/Bobtechma/schonheitslokal2/services/booking-service/internal/calendar"
)

const DefaultIntervalMinutes = 30

var (
	// ErrInvalidInterval is a misconfiguration rather than a bad request,
	// so it surfaces as a *calendar.ConfigurationError.
	ErrInvalidInterval error = &calendar.ConfigurationError{Setting: "slot interval", Msg: "must be positive"}
	ErrInvalidDuration       = errors.New("duration must be positive")
)

// GenerateSlots returns open, open+interval, ... for every value strictly
// before close. It does not check whether a booking would fit.
func GenerateSlots(open, close calendar.Clock, intervalMinutes int) ([]calendar.Clock, error) {
	if intervalMinutes <= 0 {
		return nil, ErrInvalidInterval
	}
	if open >= close {
		return nil, nil
	}
	slots := make([]calendar.Clock, 0, (close-open).Minutes()/intervalMinutes+1)
	for s := open; s < close; s = s.Add(intervalMinutes) {
		slots = append(slots, s)
	}
	return slots, nil
}

// overlaps compares half-open intervals: [s, s+d) and [a, a+ad) share a
// minute iff s < a+ad && s+d > a. Touching endpoints do not overlap.
func overlaps(s calendar.Clock, d int, a calendar.Clock, ad int) bool {
	return s < a.Add(ad) && s.Add(d) > a
}
