package calendar

import (
	"fmt"
	"time"
)

// ConfigurationError reports opening hours or a scheduling setting that
// cannot be used, such as a closing time at or before the opening time.
// Setting names the offending setting; when empty the error is about the
// hours of Weekday.
type ConfigurationError struct {
	Setting string
	Weekday time.Weekday
	Msg     string
}

func (e *ConfigurationError) Error() string {
	if e.Setting != "" {
		return fmt.Sprintf("%s: %s", e.Setting, e.Msg)
	}
	return fmt.Sprintf("business hours for %s: %s", e.Weekday, e.Msg)
}

// DefaultOpen and DefaultClose apply to a weekday that was never configured.
const (
	DefaultOpen  Clock = 9 * 60
	DefaultClose Clock = 18 * 60
)

type DayHours struct {
	Closed bool  `json:"closed"`
	Open   Clock `json:"open"`
	Close  Clock `json:"close"`
}

func (h DayHours) validate(wd time.Weekday) error {
	if h.Closed {
		return nil
	}
	if h.Open < Midnight || h.Open >= EndOfDay {
		return &ConfigurationError{Weekday: wd, Msg: fmt.Sprintf("open %s out of range", h.Open)}
	}
	if h.Close > EndOfDay {
		return &ConfigurationError{Weekday: wd, Msg: fmt.Sprintf("close %s out of range", h.Close)}
	}
	if h.Close <= h.Open {
		return &ConfigurationError{Weekday: wd, Msg: fmt.Sprintf("close %s is not after open %s", h.Close, h.Open)}
	}
	return nil
}

// BusinessHours is indexed by time.Weekday, Sunday first.
type BusinessHours [7]DayHours

func DefaultBusinessHours() BusinessHours {
	var bh BusinessHours
	for i := range bh {
		bh[i] = DayHours{Open: DefaultOpen, Close: DefaultClose}
	}
	return bh
}

// Validate checks all seven days. Admin writes call it so that an inverted
// window never reaches the slot engine.
func (bh BusinessHours) Validate() error {
	for i, h := range bh {
		if err := h.validate(time.Weekday(i)); err != nil {
			return err
		}
	}
	return nil
}

// Window is the half-open opening interval [Open, Close) of one day.
type Window struct {
	Open  Clock
	Close Clock
}

func (w Window) Contains(start Clock, minutes int) bool {
	return start >= w.Open && start.Add(minutes) <= w.Close
}

// Rules answers whether and when the salon is open on a date.
type Rules struct {
	Hours   BusinessHours
	Blocked map[Date]string
}

func (r Rules) IsBlocked(d Date) bool {
	_, ok := r.Blocked[d]
	return ok
}

func (r Rules) IsOpen(d Date) bool {
	if r.IsBlocked(d) {
		return false
	}
	return !r.Hours[d.Weekday()].Closed
}

// OpenWindow returns the opening window of d. ok is false when the date is
// blocked or its weekday is closed. A configured window whose close is not
// after its open yields a *ConfigurationError.
func (r Rules) OpenWindow(d Date) (w Window, ok bool, err error) {
	if !r.IsOpen(d) {
		return Window{}, false, nil
	}
	wd := d.Weekday()
	h := r.Hours[wd]
	if h.Close <= h.Open {
		return Window{}, false, &ConfigurationError{Weekday: wd, Msg: fmt.Sprintf("close %s is not after open %s", h.Close, h.Open)}
	}
	return Window{Open: h.Open, Close: h.Close}, true, nil
}
