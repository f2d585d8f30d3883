package booking

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/Bobtechma/schonheitslokal2/services/booking-service/internal/calendar"
	"github.com/Bobtechma/schonheitslokal2/services/booking-service/internal/model"
	"github.com/google/uuid"
)

func (s *Service) BusinessHours(ctx context.Context) (calendar.BusinessHours, error) {
	var bh calendar.BusinessHours
	err := s.store.InTx(ctx, func(tx Tx) error {
		r, err := tx.Rules(ctx)
		bh = r.Hours
		return err
	})
	return bh, err
}

// SetBusinessHours rejects inverted windows with a *calendar.ConfigurationError.
func (s *Service) SetBusinessHours(ctx context.Context, bh calendar.BusinessHours) error {
	if err := bh.Validate(); err != nil {
		return err
	}
	if err := s.store.InTx(ctx, func(tx Tx) error { return tx.PutBusinessHours(ctx, bh) }); err != nil {
		return err
	}
	s.invalidate()
	return nil
}

type BlockedDate struct {
	Date   calendar.Date `json:"date"`
	Reason string        `json:"reason,omitempty"`
}

func (s *Service) BlockedDates(ctx context.Context) ([]BlockedDate, error) {
	var r calendar.Rules
	err := s.store.InTx(ctx, func(tx Tx) error {
		var err error
		r, err = tx.Rules(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	out := make([]BlockedDate, 0, len(r.Blocked))
	for d, reason := range r.Blocked {
		out = append(out, BlockedDate{Date: d, Reason: reason})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// BlockDate closes d for new bookings. Appointments already on d are kept.
func (s *Service) BlockDate(ctx context.Context, d calendar.Date, reason string) error {
	if d.IsZero() {
		return fmt.Errorf("%w: date is required", ErrInvalidRequest)
	}
	if err := s.store.InTx(ctx, func(tx Tx) error { return tx.BlockDate(ctx, d, strings.TrimSpace(reason)) }); err != nil {
		return err
	}
	s.invalidate()
	return nil
}

func (s *Service) UnblockDate(ctx context.Context, d calendar.Date) error {
	var found bool
	err := s.store.InTx(ctx, func(tx Tx) error {
		var err error
		found, err = tx.UnblockDate(ctx, d)
		return err
	})
	if err != nil {
		return err
	}
	if !found {
		return ErrNotFound
	}
	s.invalidate()
	return nil
}

// Services lists the whole menu, inactive services included.
func (s *Service) Services(ctx context.Context) ([]model.Service, error) {
	var out []model.Service
	err := s.store.InTx(ctx, func(tx Tx) error {
		var err error
		out, err = tx.Services(ctx)
		return err
	})
	return out, err
}

func (s *Service) CreateService(ctx context.Context, svc model.Service) (model.Service, error) {
	svc.ID = uuid.NewString()
	if err := validateService(&svc); err != nil {
		return model.Service{}, err
	}
	if err := s.store.InTx(ctx, func(tx Tx) error { return tx.SaveService(ctx, &svc) }); err != nil {
		return model.Service{}, err
	}
	s.invalidate()
	return svc, nil
}

// UpdateService changes a service in place. Existing appointments keep the
// name, price and duration they were booked with.
func (s *Service) UpdateService(ctx context.Context, svc model.Service) (model.Service, error) {
	if err := validateService(&svc); err != nil {
		return model.Service{}, err
	}
	err := s.store.InTx(ctx, func(tx Tx) error {
		all, err := tx.Services(ctx)
		if err != nil {
			return err
		}
		for _, existing := range all {
			if existing.ID == svc.ID {
				return tx.SaveService(ctx, &svc)
			}
		}
		return ErrNotFound
	})
	if err != nil {
		return model.Service{}, err
	}
	s.invalidate()
	return svc, nil
}

func validateService(svc *model.Service) error {
	svc.Name = strings.TrimSpace(svc.Name)
	svc.Description = strings.TrimSpace(svc.Description)
	switch {
	case svc.ID == "":
		return fmt.Errorf("%w: service id is required", ErrInvalidRequest)
	case svc.Name == "":
		return fmt.Errorf("%w: service name is required", ErrInvalidRequest)
	case svc.DurationMinutes <= 0 || svc.DurationMinutes > 24*60:
		return fmt.Errorf("%w: duration must be between 1 and 1440 minutes", ErrInvalidRequest)
	case svc.PriceCents < 0:
		return fmt.Errorf("%w: price must not be negative", ErrInvalidRequest)
	}
	return nil
}

func (s *Service) Settings(ctx context.Context) (model.Settings, error) {
	var st model.Settings
	err := s.store.InTx(ctx, func(tx Tx) error {
		var err error
		st, err = tx.Settings(ctx)
		return err
	})
	return st, err
}

func (s *Service) SaveSettings(ctx context.Context, st model.Settings) error {
	if st.StoreDiscountPct < 0 || st.StoreDiscountPct > 100 {
		return fmt.Errorf("%w: store discount must be between 0 and 100", ErrInvalidRequest)
	}
	for id, pct := range st.ServiceDiscountPct {
		if pct < 0 || pct > 100 {
			return fmt.Errorf("%w: discount for service %s must be between 0 and 100", ErrInvalidRequest, id)
		}
	}
	if st.ReviewDelayHours < 0 {
		return fmt.Errorf("%w: review delay must not be negative", ErrInvalidRequest)
	}
	if st.ServiceDiscountPct == nil {
		st.ServiceDiscountPct = map[string]int{}
	}
	if err := s.store.InTx(ctx, func(tx Tx) error { return tx.PutSettings(ctx, st) }); err != nil {
		return err
	}
	s.invalidate()
	return nil
}
