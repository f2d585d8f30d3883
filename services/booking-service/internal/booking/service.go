// Package booking turns availability decisions into committed appointments.
// Every write that could create an overlap re-validates inside a transaction
// that is serialized per date, or, in compensate mode, verifies afterwards
// and cancels the loser.
package booking

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Bobtechma/schonheitslokal2/services/booking-service/internal/availability"
	"github.com/Bobtechma/schonheitslokal2/services/booking-service/internal/calendar"
	"github.com/Bobtechma/schonheitslokal2/services/booking-service/internal/metrics"
	"github.com/Bobtechma/schonheitslokal2/services/booking-service/internal/model"
	"github.com/Bobtechma/schonheitslokal2/services/booking-service/internal/pricing"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

type Mode string

const (
	ModeSerializable Mode = "serializable"
	ModeCompensate   Mode = "compensate"
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "", ModeSerializable:
		return ModeSerializable, nil
	case ModeCompensate:
		return m, nil
	}
	return "", fmt.Errorf("unknown booking concurrency mode %q", s)
}

type Config struct {
	// Location decides what "now" and "today" mean for the salon.
	Location        *time.Location
	IntervalMinutes int
	Mode            Mode
	// MaxRetries bounds re-runs after ErrSerialization.
	MaxRetries int
	Now        func() time.Time
}

type Service struct {
	store   Store
	cache   CatalogCache
	metrics *metrics.Metrics
	logger  *slog.Logger
	tracer  trace.Tracer
	cfg     Config
}

// NewService wires the booking logic. cache and m may be nil.
func NewService(store Store, cache CatalogCache, m *metrics.Metrics, logger *slog.Logger, cfg Config) *Service {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.IntervalMinutes <= 0 {
		cfg.IntervalMinutes = availability.DefaultIntervalMinutes
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeSerializable
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		store:   store,
		cache:   cache,
		metrics: m,
		logger:  logger,
		tracer:  otel.Tracer("booking-service/booking"),
		cfg:     cfg,
	}
}

func (s *Service) Mode() Mode { return s.cfg.Mode }

func (s *Service) now() time.Time { return s.cfg.Now().In(s.cfg.Location) }

// Today is the current date at the salon.
func (s *Service) Today() calendar.Date { return calendar.DateOf(s.now()) }

// started reports whether the wall-clock time c on d is not in the future.
func (s *Service) started(d calendar.Date, c calendar.Clock) bool {
	return !d.At(c, s.cfg.Location).After(s.now())
}

func (s *Service) catalog(ctx context.Context) (Catalog, error) {
	if s.cache != nil {
		if c, ok := s.cache.Get(); ok {
			return c, nil
		}
	}
	var c Catalog
	err := s.store.InTx(ctx, func(tx Tx) error {
		var err error
		if c.Rules, err = tx.Rules(ctx); err != nil {
			return err
		}
		if c.Settings, err = tx.Settings(ctx); err != nil {
			return err
		}
		c.Services, err = tx.Services(ctx)
		return err
	})
	if err != nil {
		return Catalog{}, fmt.Errorf("load catalog: %w", err)
	}
	if s.cache != nil {
		s.cache.Set(c)
	}
	return c, nil
}

func (s *Service) invalidate() {
	if s.cache != nil {
		s.cache.Invalidate()
	}
}

// SlotQuery asks for start times on Date for the combined length of
// ServiceIDs.
type SlotQuery struct {
	Date       calendar.Date
	ServiceIDs []string
}

type Slots struct {
	Date            calendar.Date
	DurationMinutes int
	Starts          []calendar.Clock
}

// AvailableSlots is advisory: the list may be stale by the time the client
// books. Slots that already started are dropped.
func (s *Service) AvailableSlots(ctx context.Context, q SlotQuery) (Slots, error) {
	ids, err := normalizeIDs(q.ServiceIDs)
	if err != nil {
		return Slots{}, err
	}
	if q.Date.IsZero() {
		return Slots{}, fmt.Errorf("%w: date is required", ErrInvalidRequest)
	}

	cat, err := s.catalog(ctx)
	if err != nil {
		return Slots{}, err
	}
	selected, err := pickServices(cat.Services, ids)
	if err != nil {
		return Slots{}, err
	}
	out := Slots{Date: q.Date, Starts: []calendar.Clock{}}
	for _, svc := range selected {
		out.DurationMinutes += svc.DurationMinutes
	}
	if cat.Settings.BookingPaused || q.Date.Before(s.Today()) {
		s.countSlots(0)
		return out, nil
	}

	var existing []model.Appointment
	err = s.store.InTx(ctx, func(tx Tx) error {
		var err error
		existing, err = tx.AppointmentsBetween(ctx, q.Date, q.Date)
		return err
	})
	if err != nil {
		return Slots{}, fmt.Errorf("load appointments: %w", err)
	}

	starts, err := availability.ComputeAvailableSlots(availability.Query{
		Date:            q.Date,
		DurationMinutes: out.DurationMinutes,
		IntervalMinutes: s.cfg.IntervalMinutes,
	}, cat.Rules, existing)
	if err != nil {
		return Slots{}, err
	}
	for _, c := range starts {
		if !s.started(q.Date, c) {
			out.Starts = append(out.Starts, c)
		}
	}
	s.countSlots(len(out.Starts))
	return out, nil
}

func (s *Service) countSlots(n int) {
	if s.metrics == nil {
		return
	}
	result := "some"
	if n == 0 {
		result = "none"
	}
	s.metrics.SlotQueries.WithLabelValues(result).Inc()
}

// ActiveServices lists the bookable menu.
func (s *Service) ActiveServices(ctx context.Context) ([]model.Service, error) {
	cat, err := s.catalog(ctx)
	if err != nil {
		return nil, err
	}
	return activeOnly(cat.Services), nil
}

func activeOnly(all []model.Service) []model.Service {
	out := make([]model.Service, 0, len(all))
	for _, svc := range all {
		if svc.Active {
			out = append(out, svc)
		}
	}
	return out
}

// MenuItem is an active service with the price a client would pay today.
type MenuItem struct {
	model.Service
	DiscountPct          int   `json:"discount_pct"`
	DiscountedPriceCents int64 `json:"discounted_price_cents"`
}

func (s *Service) Menu(ctx context.Context) ([]MenuItem, error) {
	cat, err := s.catalog(ctx)
	if err != nil {
		return nil, err
	}
	active := activeOnly(cat.Services)
	out := make([]MenuItem, 0, len(active))
	for _, svc := range active {
		pct := pricing.DiscountPct(svc.ID, cat.Settings)
		out = append(out, MenuItem{
			Service:              svc,
			DiscountPct:          pct,
			DiscountedPriceCents: pricing.Discounted(svc.PriceCents, pct),
		})
	}
	return out, nil
}

func normalizeIDs(ids []string) ([]string, error) {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: at least one service is required", ErrInvalidRequest)
	}
	return out, nil
}

// pickServices returns the active services named by ids, in ids order.
func pickServices(all []model.Service, ids []string) ([]model.Service, error) {
	byID := make(map[string]model.Service, len(all))
	for _, svc := range all {
		byID[svc.ID] = svc
	}
	out := make([]model.Service, 0, len(ids))
	for _, id := range ids {
		svc, ok := byID[id]
		if !ok || !svc.Active || svc.DurationMinutes <= 0 {
			return nil, fmt.Errorf("%w: %s", ErrUnknownService, id)
		}
		out = append(out, svc)
	}
	return out, nil
}
