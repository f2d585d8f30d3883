package booking

import (
	"context"
	"errors"
	"time"

	"github.com/Bobtechma/schonheitslokal2/services/booking-service/internal/calendar"
	"github.com/Bobtechma/schonheitslokal2/services/booking-service/internal/model"
	"github.com/Bobtechma/schonheitslokal2/services/booking-service/internal/outbox"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidRequest = errors.New("invalid request")
	ErrUnknownService = errors.New("unknown or inactive service")
	ErrBookingPaused  = errors.New("online booking is paused")
	ErrSlotInPast     = errors.New("requested time has already started")

	// ErrSerialization marks a transaction that was rolled back because it
	// could not be serialized with a concurrent one. Nothing it wrote is
	// visible, so it is safe to run again.
	ErrSerialization = errors.New("transaction serialization failure")

	// ErrSlotTaken is returned by a store whose own constraint rejected an
	// overlapping appointment.
	ErrSlotTaken = errors.New("time range already taken")
)

// Idempotency is the stored result of a booking request made with an
// Idempotency-Key. Exactly one of AppointmentID and Reason is set once the
// request has finished. In compensate mode an inserted appointment is
// recorded with Reason pendingSettle until settle has decided its fate.
type Idempotency struct {
	AppointmentID string
	Reason        string
}

const pendingSettle = "PENDING_SETTLE"

func (i Idempotency) Done() bool { return i.AppointmentID != "" || i.Reason != "" }

func (i Idempotency) settling() bool { return i.AppointmentID != "" && i.Reason == pendingSettle }

// Tx is the unit of work the booking logic runs in. Writes become visible
// to others only when the surrounding Store call returns nil.
type Tx interface {
	Rules(ctx context.Context) (calendar.Rules, error)
	Settings(ctx context.Context) (model.Settings, error)
	// Services returns every service, inactive ones included, in menu order.
	Services(ctx context.Context) ([]model.Service, error)

	// AppointmentsBetween returns appointments of every status with
	// from <= date <= to.
	AppointmentsBetween(ctx context.Context, from, to calendar.Date) ([]model.Appointment, error)
	GetAppointment(ctx context.Context, id string) (model.Appointment, error)
	// InsertAppointment stores a with its ID already set and fills Seq and
	// CreatedAt.
	InsertAppointment(ctx context.Context, a *model.Appointment) error
	// SetStatus assigns a fresh Seq whenever the appointment starts blocking
	// time again.
	SetStatus(ctx context.Context, id string, st model.Status, reason string, at time.Time) (model.Appointment, error)

	// LockIdempotencyKey returns the record for key, creating an empty one
	// if needed, and holds it until the transaction ends.
	LockIdempotencyKey(ctx context.Context, key string) (Idempotency, error)
	FinalizeIdempotency(ctx context.Context, key string, rec Idempotency) error

	PendingReviews(ctx context.Context, through calendar.Date, limit int) ([]model.Appointment, error)
	MarkReviewRequested(ctx context.Context, id string) error

	Enqueue(ctx context.Context, evt outbox.Event) error

	PutBusinessHours(ctx context.Context, bh calendar.BusinessHours) error
	BlockDate(ctx context.Context, d calendar.Date, reason string) error
	UnblockDate(ctx context.Context, d calendar.Date) (bool, error)
	SaveService(ctx context.Context, svc *model.Service) error
	PutSettings(ctx context.Context, s model.Settings) error
}

type Store interface {
	// InTx runs fn in a read-committed style transaction.
	InTx(ctx context.Context, fn func(Tx) error) error
	// InDateTx runs fn so that it is serialized with every other InDateTx
	// call for the same date. It may fail with ErrSerialization.
	InDateTx(ctx context.Context, d calendar.Date, fn func(Tx) error) error
}

// Catalog is the slowly changing configuration the slot query needs.
type Catalog struct {
	Rules    calendar.Rules
	Settings model.Settings
	Services []model.Service
}

// CatalogCache holds a Catalog for the advisory slot query only. Booking
// commits always read through the transaction.
type CatalogCache interface {
	Get() (Catalog, bool)
	Set(Catalog)
	Invalidate()
}
