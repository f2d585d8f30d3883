package booking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Bobtechma/schonheitslokal2/services/booking-service/internal/model"
)

// RequestDueReviews marks confirmed appointments that ended at least the
// configured delay ago and enqueues a review request for each, at most
// limit per call. It returns how many were requested.
func (s *Service) RequestDueReviews(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = 100
	}
	now := s.now()
	var n int
	err := s.store.InTx(ctx, func(tx Tx) error {
		settings, err := tx.Settings(ctx)
		if err != nil {
			return err
		}
		// Zero means right after the appointment ends.
		delay := time.Duration(settings.ReviewDelayHours) * time.Hour

		candidates, err := tx.PendingReviews(ctx, s.Today(), limit)
		if err != nil {
			return err
		}
		for _, a := range candidates {
			if a.Status != model.StatusConfirmed || a.ReviewRequested {
				continue
			}
			end := a.Date.At(a.End(), s.cfg.Location)
			if end.Add(delay).After(now) {
				continue
			}
			if err := tx.MarkReviewRequested(ctx, a.ID); err != nil {
				return err
			}
			evt, err := reviewRequestedEvent(a)
			if err != nil {
				return err
			}
			if err := tx.Enqueue(ctx, evt); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("request reviews: %w", err)
	}
	if n > 0 && s.metrics != nil {
		s.metrics.ReviewsRequested.Add(float64(n))
	}
	return n, nil
}

// RequestReview asks the client of one appointment for a review right away,
// whatever its status and even if a request was already sent. The flag and
// the event are written in the same transaction.
func (s *Service) RequestReview(ctx context.Context, id string) (model.Appointment, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return model.Appointment{}, fmt.Errorf("%w: appointment id is required", ErrInvalidRequest)
	}
	var out model.Appointment
	err := s.store.InTx(ctx, func(tx Tx) error {
		a, err := tx.GetAppointment(ctx, id)
		if err != nil {
			return err
		}
		if strings.TrimSpace(a.Client.Email) == "" {
			return fmt.Errorf("%w: client has no email address", ErrInvalidRequest)
		}
		if err := tx.MarkReviewRequested(ctx, a.ID); err != nil {
			return err
		}
		evt, err := reviewRequestedEvent(a)
		if err != nil {
			return err
		}
		if err := tx.Enqueue(ctx, evt); err != nil {
			return err
		}
		a.ReviewRequested = true
		out = a
		return nil
	})
	if err != nil {
		return model.Appointment{}, err
	}
	if s.metrics != nil {
		s.metrics.ReviewsRequested.Inc()
	}
	s.logger.Info("review requested manually", "appointment_id", id)
	return out, nil
}
