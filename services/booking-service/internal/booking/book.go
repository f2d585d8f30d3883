package booking

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/Bobtechma/schonheitslokal2/services/booking-service/internal/availability"
	"github.com/Bobtechma/schonheitslokal2/services/booking-service/internal/calendar"
	"github.com/Bobtechma/schonheitslokal2/services/booking-service/internal/model"
	"github.com/Bobtechma/schonheitslokal2/services/booking-service/internal/pricing"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const compensationReason = "slot taken by a concurrent booking"

type BookRequest struct {
	Date           calendar.Date
	Start          calendar.Clock
	ServiceIDs     []string
	Client         model.Client
	Notes          string
	IdempotencyKey string
}

// Outcome is the result of a booking attempt. A rejection is an ordinary
// outcome with Accepted false and Reason set; errors are reserved for
// invalid requests and infrastructure failures.
type Outcome struct {
	Accepted    bool
	Reason      availability.Reason
	Appointment model.Appointment
	// Replayed is set when the outcome was stored by an earlier request
	// with the same idempotency key.
	Replayed bool

	// unsettled marks a compensate-mode acceptance that settle has not
	// confirmed yet.
	unsettled bool
}

func (s *Service) Book(ctx context.Context, req BookRequest) (Outcome, error) {
	ctx, span := s.tracer.Start(ctx, "booking.Book", trace.WithAttributes(
		attribute.String("booking.date", req.Date.String()),
		attribute.String("booking.start", req.Start.String()),
		attribute.String("booking.mode", string(s.cfg.Mode)),
	))
	defer span.End()

	began := time.Now()
	out, err := s.book(ctx, req)
	if s.metrics != nil {
		s.metrics.BookingLatency.Observe(time.Since(began).Seconds())
	}

	result := "accepted"
	switch {
	case err != nil:
		result = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	case !out.Accepted:
		result = string(out.Reason)
	}
	span.SetAttributes(attribute.String("booking.result", result))
	if s.metrics != nil {
		s.metrics.BookingOutcomes.WithLabelValues(result).Inc()
	}
	return out, err
}

func (s *Service) book(ctx context.Context, req BookRequest) (Outcome, error) {
	ids, err := normalizeIDs(req.ServiceIDs)
	if err != nil {
		return Outcome{}, err
	}
	req.ServiceIDs = ids
	if err := validateClient(&req.Client); err != nil {
		return Outcome{}, err
	}
	if req.Date.IsZero() {
		return Outcome{}, fmt.Errorf("%w: date is required", ErrInvalidRequest)
	}
	if req.Start < calendar.Midnight || req.Start >= calendar.EndOfDay {
		return Outcome{}, fmt.Errorf("%w: start %s out of range", ErrInvalidRequest, req.Start)
	}
	req.Notes = strings.TrimSpace(req.Notes)
	req.IdempotencyKey = strings.TrimSpace(req.IdempotencyKey)
	if s.started(req.Date, req.Start) {
		return Outcome{}, ErrSlotInPast
	}

	if s.cfg.Mode == ModeCompensate {
		return s.bookCompensating(ctx, req)
	}

	var out Outcome
	err = s.inDateTx(ctx, req.Date, func(tx Tx) error {
		var err error
		out, err = s.commit(ctx, tx, req, true)
		return err
	})
	if errors.Is(err, ErrSlotTaken) {
		return Outcome{Reason: availability.ReasonOverlap}, nil
	}
	return out, err
}

// inDateTx re-runs fn after a serialization failure, up to MaxRetries times.
// The failed attempt was rolled back in full, so nothing is written twice.
func (s *Service) inDateTx(ctx context.Context, d calendar.Date, fn func(Tx) error) error {
	for attempt := 0; ; attempt++ {
		err := s.store.InDateTx(ctx, d, fn)
		if err == nil || !errors.Is(err, ErrSerialization) || attempt >= s.cfg.MaxRetries {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if s.metrics != nil {
			s.metrics.BookingTxRetries.Inc()
		}
		s.logger.Debug("retrying date transaction", "date", d.String(), "attempt", attempt+1)
	}
}

// commit validates against what tx sees and inserts on success. announce
// controls whether the booked event is enqueued in the same transaction.
func (s *Service) commit(ctx context.Context, tx Tx, req BookRequest, announce bool) (Outcome, error) {
	key := req.IdempotencyKey
	if key != "" {
		rec, err := tx.LockIdempotencyKey(ctx, key)
		if err != nil {
			return Outcome{}, fmt.Errorf("lock idempotency key: %w", err)
		}
		if rec.Done() {
			return s.replay(ctx, tx, rec)
		}
	}

	settings, err := tx.Settings(ctx)
	if err != nil {
		return Outcome{}, err
	}
	if settings.BookingPaused {
		return Outcome{}, ErrBookingPaused
	}
	all, err := tx.Services(ctx)
	if err != nil {
		return Outcome{}, err
	}
	selected, err := pickServices(all, req.ServiceIDs)
	if err != nil {
		return Outcome{}, err
	}
	quote := pricing.Build(selected, settings)

	rules, err := tx.Rules(ctx)
	if err != nil {
		return Outcome{}, err
	}
	existing, err := tx.AppointmentsBetween(ctx, req.Date, req.Date)
	if err != nil {
		return Outcome{}, err
	}
	dec, err := availability.ValidateBooking(availability.Candidate{
		Date:            req.Date,
		Start:           req.Start,
		DurationMinutes: quote.DurationMinutes,
	}, rules, existing)
	if err != nil {
		return Outcome{}, err
	}
	if !dec.Accepted {
		if key != "" {
			if err := tx.FinalizeIdempotency(ctx, key, Idempotency{Reason: string(dec.Reason)}); err != nil {
				return Outcome{}, fmt.Errorf("finalize idempotency key: %w", err)
			}
		}
		return Outcome{Reason: dec.Reason}, nil
	}

	appt := model.Appointment{
		ID:              uuid.NewString(),
		Date:            req.Date,
		Start:           req.Start,
		DurationMinutes: quote.DurationMinutes,
		Status:          model.StatusConfirmed,
		Client:          req.Client,
		Notes:           req.Notes,
		TotalCents:      quote.TotalCents,
		Items:           quote.Items,
	}
	if err := tx.InsertAppointment(ctx, &appt); err != nil {
		return Outcome{}, fmt.Errorf("insert appointment: %w", err)
	}
	if announce {
		if err := enqueueBooked(ctx, tx, appt); err != nil {
			return Outcome{}, err
		}
	}
	if key != "" {
		rec := Idempotency{AppointmentID: appt.ID}
		if !announce {
			rec.Reason = pendingSettle
		}
		if err := tx.FinalizeIdempotency(ctx, key, rec); err != nil {
			return Outcome{}, fmt.Errorf("finalize idempotency key: %w", err)
		}
	}
	return Outcome{Accepted: true, Appointment: appt, unsettled: !announce}, nil
}

func (s *Service) replay(ctx context.Context, tx Tx, rec Idempotency) (Outcome, error) {
	if rec.settling() {
		a, err := tx.GetAppointment(ctx, rec.AppointmentID)
		if err != nil {
			return Outcome{}, fmt.Errorf("load replayed appointment: %w", err)
		}
		return Outcome{Accepted: true, Appointment: a, Replayed: true, unsettled: true}, nil
	}
	if rec.Reason != "" {
		return Outcome{Reason: availability.Reason(rec.Reason), Replayed: true}, nil
	}
	a, err := tx.GetAppointment(ctx, rec.AppointmentID)
	if err != nil {
		return Outcome{}, fmt.Errorf("load replayed appointment: %w", err)
	}
	return Outcome{Accepted: true, Appointment: a, Replayed: true}, nil
}

// bookCompensating inserts without cross-request serialization and then
// checks for a conflicting appointment that committed first. The one with
// the lower sequence number keeps the slot; the other is cancelled and
// reported as OVERLAP. A replay that finds the key still pending settles
// the appointment itself, so an interrupted request never replays as an
// acceptance that settle would later revoke.
func (s *Service) bookCompensating(ctx context.Context, req BookRequest) (Outcome, error) {
	var out Outcome
	err := s.store.InTx(ctx, func(tx Tx) error {
		var err error
		out, err = s.commit(ctx, tx, req, false)
		return err
	})
	if errors.Is(err, ErrSlotTaken) {
		return Outcome{Reason: availability.ReasonOverlap}, nil
	}
	if err != nil || !out.Accepted || !out.unsettled {
		return out, err
	}

	kept, err := s.settle(ctx, out.Appointment.ID, req.IdempotencyKey,
		func(tx Tx, a model.Appointment) error {
			return enqueueBooked(ctx, tx, a)
		},
		func(tx Tx, a model.Appointment) error {
			_, err := tx.SetStatus(ctx, a.ID, model.StatusCancelled, compensationReason, s.now())
			return err
		})
	if err != nil {
		return Outcome{}, err
	}
	if !kept {
		return Outcome{Reason: availability.ReasonOverlap, Replayed: out.Replayed}, nil
	}
	out.unsettled = false
	return out, nil
}

// settle decides a compensate-mode race for appointment id. It keeps the
// appointment when no blocking appointment with a lower sequence number
// overlaps it. Stores used in this mode assign sequence numbers in commit
// order, so the earlier committer is always visible here. When key is set
// the decision is recorded under it, and a decision already recorded there
// by a concurrent replay is returned as is.
func (s *Service) settle(ctx context.Context, id, key string, keep, lose func(Tx, model.Appointment) error) (bool, error) {
	var kept, decided bool
	err := s.store.InTx(ctx, func(tx Tx) error {
		if key != "" {
			rec, err := tx.LockIdempotencyKey(ctx, key)
			if err != nil {
				return fmt.Errorf("lock idempotency key: %w", err)
			}
			if !rec.settling() {
				kept, decided = rec.AppointmentID == id && rec.Reason == "", true
				return nil
			}
		}
		record := func(rec Idempotency) error {
			if key == "" {
				return nil
			}
			return tx.FinalizeIdempotency(ctx, key, rec)
		}

		a, err := tx.GetAppointment(ctx, id)
		if err != nil {
			return err
		}
		if !a.Status.BlocksTime() {
			// Changed by someone else in the meantime; nothing to defend.
			kept = true
			return record(Idempotency{AppointmentID: id})
		}
		existing, err := tx.AppointmentsBetween(ctx, a.Date, a.Date)
		if err != nil {
			return err
		}
		earlier := existing[:0:0]
		for _, e := range existing {
			if e.Seq < a.Seq {
				earlier = append(earlier, e)
			}
		}
		_, conflict := availability.FirstConflict(availability.Candidate{
			Date:            a.Date,
			Start:           a.Start,
			DurationMinutes: a.DurationMinutes,
			ExcludeID:       a.ID,
		}, earlier)
		if !conflict {
			kept = true
			if err := keep(tx, a); err != nil {
				return err
			}
			return record(Idempotency{AppointmentID: id})
		}
		kept = false
		if err := lose(tx, a); err != nil {
			return err
		}
		return record(Idempotency{Reason: string(availability.ReasonOverlap)})
	})
	if err != nil {
		return false, fmt.Errorf("settle appointment %s: %w", id, err)
	}
	if !kept && !decided {
		if s.metrics != nil {
			s.metrics.Compensations.Inc()
		}
		s.logger.Info("appointment lost a concurrent booking race", "appointment_id", id)
	}
	return kept, nil
}

func validateClient(c *model.Client) error {
	c.Name = strings.TrimSpace(c.Name)
	c.Email = strings.TrimSpace(c.Email)
	c.Phone = strings.TrimSpace(c.Phone)
	c.Language = model.NormalizeLanguage(c.Language)
	if c.Name == "" {
		return fmt.Errorf("%w: client name is required", ErrInvalidRequest)
	}
	if c.Email == "" {
		return fmt.Errorf("%w: client email is required", ErrInvalidRequest)
	}
	if _, err := mail.ParseAddress(c.Email); err != nil {
		return fmt.Errorf("%w: invalid client email", ErrInvalidRequest)
	}
	return nil
}

func enqueueBooked(ctx context.Context, tx Tx, a model.Appointment) error {
	evt, err := bookedEvent(a)
	if err != nil {
		return err
	}
	return tx.Enqueue(ctx, evt)
}
