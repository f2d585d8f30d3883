package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Bobtechma/schonheitslokal2/services/booking-service/internal/availability"
	"github.com/Bobtechma/schonheitslokal2/services/booking-service/internal/calendar"
	"github.com/Bobtechma/schonheitslokal2/services/booking-service/internal/model"
)

const maxListDays = 62

// StatusChange is the result of an admin status update. Decision is not
// accepted when reinstating the appointment would overlap another one.
type StatusChange struct {
	Appointment model.Appointment
	Decision    availability.Decision
}

// UpdateStatus moves an appointment to status to. Moving it back into a
// status that blocks time re-checks for overlaps, since the slot may have
// been booked by someone else while it was cancelled.
func (s *Service) UpdateStatus(ctx context.Context, id string, to model.Status, reason string) (StatusChange, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return StatusChange{}, fmt.Errorf("%w: appointment id is required", ErrInvalidRequest)
	}
	if _, ok := model.ParseStatus(string(to)); !ok {
		return StatusChange{}, fmt.Errorf("%w: unknown status %q", ErrInvalidRequest, to)
	}
	reason = strings.TrimSpace(reason)

	var date calendar.Date
	err := s.store.InTx(ctx, func(tx Tx) error {
		a, err := tx.GetAppointment(ctx, id)
		date = a.Date
		return err
	})
	if err != nil {
		return StatusChange{}, err
	}

	compensate := s.cfg.Mode == ModeCompensate
	var (
		change StatusChange
		from   model.Status
		prev   string
	)
	run := func(tx Tx) error {
		a, err := tx.GetAppointment(ctx, id)
		if err != nil {
			return err
		}
		from, prev = a.Status, a.CancelReason
		if a.Status == to {
			change = StatusChange{Appointment: a, Decision: availability.Decision{Accepted: true}}
			return nil
		}
		if to.BlocksTime() && !a.Status.BlocksTime() {
			existing, err := tx.AppointmentsBetween(ctx, a.Date, a.Date)
			if err != nil {
				return err
			}
			if c, hit := availability.FirstConflict(availability.Candidate{
				Date:            a.Date,
				Start:           a.Start,
				DurationMinutes: a.DurationMinutes,
				ExcludeID:       a.ID,
			}, existing); hit {
				change = StatusChange{Appointment: a, Decision: availability.Decision{Reason: availability.ReasonOverlap, ConflictID: c.ID}}
				return nil
			}
		}
		updated, err := tx.SetStatus(ctx, id, to, reason, s.now())
		if err != nil {
			return err
		}
		change = StatusChange{Appointment: updated, Decision: availability.Decision{Accepted: true}}
		if compensate && to.BlocksTime() && !from.BlocksTime() {
			// Announced once settle confirms the slot.
			return nil
		}
		return enqueueStatus(ctx, tx, updated, from)
	}

	if compensate {
		err = s.store.InTx(ctx, run)
	} else {
		err = s.inDateTx(ctx, date, run)
	}
	if errors.Is(err, ErrSlotTaken) {
		return StatusChange{Decision: availability.Decision{Reason: availability.ReasonOverlap}}, nil
	}
	if err != nil {
		return StatusChange{}, err
	}

	if compensate && change.Decision.Accepted && to.BlocksTime() && !from.BlocksTime() {
		kept, err := s.settle(ctx, id, "",
			func(tx Tx, a model.Appointment) error {
				return enqueueStatus(ctx, tx, a, from)
			},
			func(tx Tx, a model.Appointment) error {
				_, err := tx.SetStatus(ctx, a.ID, from, prev, s.now())
				return err
			})
		if err != nil {
			return StatusChange{}, err
		}
		if !kept {
			change.Decision = availability.Decision{Reason: availability.ReasonOverlap}
			change.Appointment.Status = from
			change.Appointment.CancelReason = prev
		}
	}

	if change.Decision.Accepted && from != to {
		s.logger.Info("appointment status changed", "appointment_id", id, "from", string(from), "to", string(to))
	}
	return change, nil
}

func enqueueStatus(ctx context.Context, tx Tx, a model.Appointment, from model.Status) error {
	if a.Status == model.StatusCancelled {
		evt, err := cancelledEvent(a)
		if err != nil {
			return err
		}
		return tx.Enqueue(ctx, evt)
	}
	evt, err := statusChangedEvent(a.ID, from, a.Status)
	if err != nil {
		return err
	}
	return tx.Enqueue(ctx, evt)
}

// ListAppointments returns appointments of every status from from to to,
// both inclusive.
func (s *Service) ListAppointments(ctx context.Context, from, to calendar.Date) ([]model.Appointment, error) {
	if from.IsZero() || to.IsZero() || to.Before(from) {
		return nil, fmt.Errorf("%w: invalid date range", ErrInvalidRequest)
	}
	if from.AddDays(maxListDays).Before(to) {
		return nil, fmt.Errorf("%w: date range longer than %d days", ErrInvalidRequest, maxListDays)
	}
	var out []model.Appointment
	err := s.store.InTx(ctx, func(tx Tx) error {
		var err error
		out, err = tx.AppointmentsBetween(ctx, from, to)
		return err
	})
	return out, err
}

func (s *Service) GetAppointment(ctx context.Context, id string) (model.Appointment, error) {
	var a model.Appointment
	err := s.store.InTx(ctx, func(tx Tx) error {
		var err error
		a, err = tx.GetAppointment(ctx, id)
		return err
	})
	return a, err
}
