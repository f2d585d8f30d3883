package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Bobtechma/schonheitslokal2/libs/db"
	"github.com/Bobtechma/schonheitslokal2/services/booking-service/internal/booking"
	"github.com/Bobtechma/schonheitslokal2/services/booking-service/internal/calendar"
	"github.com/Bobtechma/schonheitslokal2/services/booking-service/internal/model"
	"github.com/Bobtechma/schonheitslokal2/services/booking-service/internal/outbox"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	settingBookingPaused   = "booking_paused"
	settingStoreDiscount   = "store_discount_pct"
	settingReviewDelay     = "review_email_delay_hours"
	settingServiceDiscount = "service_discount_pct_"

	appointmentColumns = `id::text, seq, appointment_date, start_minute, duration_minutes, status, client_name, client_email, client_phone, client_language, notes, total_cents, cancellation_reason, cancelled_at, review_requested, created_at`

	seqLockKey     = "appointments:seq"
	dateLockPrefix = "appointments:"
)

// Postgres is the production Store. Date transactions run at read committed
// behind a per-date advisory lock taken as their first statement, so every
// later statement sees what the previous holder committed. The
// appointments_no_overlap exclusion constraint backs this up.
type Postgres struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewPostgres(pool *db.Pool, ob *outbox.Repository) *Postgres {
	return &Postgres{pool: pool, outbox: ob}
}

func (p *Postgres) InTx(ctx context.Context, fn func(booking.Tx) error) error {
	return p.run(ctx, "", fn)
}

func (p *Postgres) InDateTx(ctx context.Context, d calendar.Date, fn func(booking.Tx) error) error {
	return p.run(ctx, dateLockPrefix+d.String(), fn)
}

func (p *Postgres) run(ctx context.Context, lockKey string, fn func(booking.Tx) error) error {
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if lockKey != "" {
		if err := advisoryLock(ctx, tx, lockKey); err != nil {
			return classify(err)
		}
	}
	if err := fn(&pgTx{tx: tx, outbox: p.outbox}); err != nil {
		return classify(err)
	}
	return classify(tx.Commit(ctx))
}

func advisoryLock(ctx context.Context, tx pgx.Tx, key string) error {
	_, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key)
	return err
}

func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, booking.ErrSerialization), errors.Is(err, booking.ErrSlotTaken):
		return err
	case db.IsSerializationFailure(err):
		return fmt.Errorf("%w: %v", booking.ErrSerialization, err)
	case db.IsExclusionViolation(err):
		return fmt.Errorf("%w: %v", booking.ErrSlotTaken, err)
	}
	return err
}

// PublishBatch lets the outbox publisher drain this store.
func (p *Postgres) PublishBatch(ctx context.Context, limit int, publish func(context.Context, []outbox.Record) error) (int, error) {
	return p.outbox.PublishBatch(ctx, limit, publish)
}

type pgTx struct {
	tx        pgx.Tx
	outbox    *outbox.Repository
	seqLocked bool
}

func (t *pgTx) Rules(ctx context.Context) (calendar.Rules, error) {
	rules := calendar.Rules{Hours: calendar.DefaultBusinessHours(), Blocked: map[calendar.Date]string{}}

	rows, err := t.tx.Query(ctx, `SELECT weekday, is_closed, open_minute, close_minute FROM business_hours`)
	if err != nil {
		return calendar.Rules{}, err
	}
	for rows.Next() {
		var (
			wd                int16
			closed            bool
			openMin, closeMin int16
		)
		if err := rows.Scan(&wd, &closed, &openMin, &closeMin); err != nil {
			rows.Close()
			return calendar.Rules{}, err
		}
		if wd < 0 || wd > 6 {
			continue
		}
		rules.Hours[wd] = calendar.DayHours{Closed: closed, Open: calendar.Clock(openMin), Close: calendar.Clock(closeMin)}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return calendar.Rules{}, err
	}

	rows, err = t.tx.Query(ctx, `SELECT blocked_date, reason FROM blocked_dates`)
	if err != nil {
		return calendar.Rules{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			day    time.Time
			reason string
		)
		if err := rows.Scan(&day, &reason); err != nil {
			return calendar.Rules{}, err
		}
		rules.Blocked[calendar.DateOf(day)] = reason
	}
	return rules, rows.Err()
}

func (t *pgTx) Settings(ctx context.Context) (model.Settings, error) {
	st := model.DefaultSettings()
	rows, err := t.tx.Query(ctx, `SELECT key, value FROM system_settings`)
	if err != nil {
		return model.Settings{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return model.Settings{}, err
		}
		applySetting(&st, key, value)
	}
	return st, rows.Err()
}

// applySetting ignores values it cannot parse, leaving the default in place.
func applySetting(st *model.Settings, key, value string) {
	value = strings.TrimSpace(value)
	switch {
	case key == settingBookingPaused:
		st.BookingPaused = value == "true"
	case key == settingStoreDiscount:
		if n, err := strconv.Atoi(value); err == nil {
			st.StoreDiscountPct = n
		}
	case key == settingReviewDelay:
		if n, err := strconv.Atoi(value); err == nil {
			st.ReviewDelayHours = n
		}
	case strings.HasPrefix(key, settingServiceDiscount):
		if n, err := strconv.Atoi(value); err == nil {
			st.ServiceDiscountPct[strings.TrimPrefix(key, settingServiceDiscount)] = n
		}
	}
}

func (t *pgTx) Services(ctx context.Context) ([]model.Service, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id::text, name, description, duration_minutes, price_cents, active, display_order, updated_at
		FROM services
		ORDER BY display_order, name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Service
	for rows.Next() {
		var svc model.Service
		if err := rows.Scan(&svc.ID, &svc.Name, &svc.Description, &svc.DurationMinutes, &svc.PriceCents,
			&svc.Active, &svc.DisplayOrder, &svc.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, svc)
	}
	return out, rows.Err()
}

func (t *pgTx) AppointmentsBetween(ctx context.Context, from, to calendar.Date) ([]model.Appointment, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE appointment_date BETWEEN $1::date AND $2::date
		ORDER BY appointment_date, start_minute, seq
	`, from.String(), to.String())
	if err != nil {
		return nil, err
	}
	appts, err := scanAppointments(rows)
	if err != nil {
		return nil, err
	}
	return appts, t.loadItems(ctx, appts)
}

func (t *pgTx) GetAppointment(ctx context.Context, id string) (model.Appointment, error) {
	if _, err := uuid.Parse(id); err != nil {
		return model.Appointment{}, fmt.Errorf("appointment %s: %w", id, booking.ErrNotFound)
	}
	rows, err := t.tx.Query(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id)
	if err != nil {
		return model.Appointment{}, err
	}
	appts, err := scanAppointments(rows)
	if err != nil {
		return model.Appointment{}, err
	}
	if len(appts) == 0 {
		return model.Appointment{}, fmt.Errorf("appointment %s: %w", id, booking.ErrNotFound)
	}
	if err := t.loadItems(ctx, appts); err != nil {
		return model.Appointment{}, err
	}
	return appts[0], nil
}

func scanAppointments(rows pgx.Rows) ([]model.Appointment, error) {
	defer rows.Close()
	var out []model.Appointment
	for rows.Next() {
		var (
			a      model.Appointment
			day    time.Time
			start  int32
			status string
		)
		if err := rows.Scan(&a.ID, &a.Seq, &day, &start, &a.DurationMinutes, &status,
			&a.Client.Name, &a.Client.Email, &a.Client.Phone, &a.Client.Language, &a.Notes, &a.TotalCents,
			&a.CancelReason, &a.CancelledAt, &a.ReviewRequested, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Date = calendar.DateOf(day)
		a.Start = calendar.Clock(start)
		a.Status = model.Status(status)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (t *pgTx) loadItems(ctx context.Context, appts []model.Appointment) error {
	if len(appts) == 0 {
		return nil
	}
	ids := make([]string, len(appts))
	byID := make(map[string]int, len(appts))
	for i, a := range appts {
		ids[i] = a.ID
		byID[a.ID] = i
	}
	rows, err := t.tx.Query(ctx, `
		SELECT appointment_id::text, order_index, service_id::text, name, price_cents, discount_pct, duration_minutes
		FROM appointment_services
		WHERE appointment_id = ANY($1::uuid[])
		ORDER BY appointment_id, order_index
	`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			apptID string
			item   model.LineItem
		)
		if err := rows.Scan(&apptID, &item.OrderIndex, &item.ServiceID, &item.Name, &item.PriceCents,
			&item.DiscountPct, &item.DurationMinutes); err != nil {
			return err
		}
		if i, ok := byID[apptID]; ok {
			appts[i].Items = append(appts[i].Items, item)
		}
	}
	return rows.Err()
}

// lockSeq makes sequence numbers follow commit order: the lock is held from
// the moment a number is drawn until the transaction ends.
func (t *pgTx) lockSeq(ctx context.Context) error {
	if t.seqLocked {
		return nil
	}
	if err := advisoryLock(ctx, t.tx, seqLockKey); err != nil {
		return err
	}
	t.seqLocked = true
	return nil
}

func (t *pgTx) InsertAppointment(ctx context.Context, a *model.Appointment) error {
	if err := t.lockSeq(ctx); err != nil {
		return err
	}
	err := t.tx.QueryRow(ctx, `
		INSERT INTO appointments
			(id, appointment_date, start_minute, duration_minutes, status, client_name, client_email,
			 client_phone, client_language, notes, total_cents)
		VALUES ($1, $2::date, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING seq, created_at
	`, a.ID, a.Date.String(), int32(a.Start), a.DurationMinutes, string(a.Status), a.Client.Name, a.Client.Email,
		a.Client.Phone, a.Client.Language, a.Notes, a.TotalCents).Scan(&a.Seq, &a.CreatedAt)
	if err != nil {
		if db.IsExclusionViolation(err) {
			return fmt.Errorf("%w: %v", booking.ErrSlotTaken, err)
		}
		return err
	}

	batch := &pgx.Batch{}
	for _, item := range a.Items {
		batch.Queue(`
			INSERT INTO appointment_services
				(appointment_id, order_index, service_id, name, price_cents, discount_pct, duration_minutes)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, a.ID, item.OrderIndex, item.ServiceID, item.Name, item.PriceCents, item.DiscountPct, item.DurationMinutes)
	}
	if batch.Len() == 0 {
		return nil
	}
	return t.tx.SendBatch(ctx, batch).Close()
}

func (t *pgTx) SetStatus(ctx context.Context, id string, to model.Status, reason string, at time.Time) (model.Appointment, error) {
	cur, err := t.GetAppointment(ctx, id)
	if err != nil {
		return model.Appointment{}, err
	}
	reblocks := to.BlocksTime() && !cur.Status.BlocksTime()
	if reblocks {
		if err := t.lockSeq(ctx); err != nil {
			return model.Appointment{}, err
		}
	}

	var (
		cancelledAt *time.Time
		cancelWhy   string
	)
	switch to {
	case model.StatusCancelled:
		ts := at.UTC()
		cancelledAt = &ts
		cancelWhy = reason
	case model.StatusNoShow:
		cancelWhy = reason
	}

	_, err = t.tx.Exec(ctx, `
		UPDATE appointments
		SET status = $2,
			cancellation_reason = $3,
			cancelled_at = $4,
			seq = CASE WHEN $5 THEN nextval('appointment_seq') ELSE seq END,
			updated_at = now()
		WHERE id = $1
	`, id, string(to), cancelWhy, cancelledAt, reblocks)
	if err != nil {
		if db.IsExclusionViolation(err) {
			return model.Appointment{}, fmt.Errorf("%w: %v", booking.ErrSlotTaken, err)
		}
		return model.Appointment{}, err
	}
	return t.GetAppointment(ctx, id)
}

func (t *pgTx) LockIdempotencyKey(ctx context.Context, key string) (booking.Idempotency, error) {
	if _, err := t.tx.Exec(ctx, `
		INSERT INTO booking_idempotency_keys (idempotency_key)
		VALUES ($1)
		ON CONFLICT (idempotency_key) DO NOTHING
	`, key); err != nil {
		return booking.Idempotency{}, err
	}
	var rec booking.Idempotency
	err := t.tx.QueryRow(ctx, `
		SELECT COALESCE(appointment_id::text, ''), reason
		FROM booking_idempotency_keys
		WHERE idempotency_key = $1
		FOR UPDATE
	`, key).Scan(&rec.AppointmentID, &rec.Reason)
	return rec, err
}

func (t *pgTx) FinalizeIdempotency(ctx context.Context, key string, rec booking.Idempotency) error {
	var apptID *string
	if rec.AppointmentID != "" {
		apptID = &rec.AppointmentID
	}
	_, err := t.tx.Exec(ctx, `
		UPDATE booking_idempotency_keys
		SET appointment_id = $2::uuid, reason = $3, updated_at = now()
		WHERE idempotency_key = $1
	`, key, apptID, rec.Reason)
	return err
}

func (t *pgTx) PendingReviews(ctx context.Context, through calendar.Date, limit int) ([]model.Appointment, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status = 'confirmed'
			AND NOT review_requested
			AND appointment_date <= $1::date
		ORDER BY appointment_date, start_minute, seq
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`, through.String(), limit)
	if err != nil {
		return nil, err
	}
	appts, err := scanAppointments(rows)
	if err != nil {
		return nil, err
	}
	return appts, t.loadItems(ctx, appts)
}

func (t *pgTx) MarkReviewRequested(ctx context.Context, id string) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE appointments SET review_requested = true, updated_at = now() WHERE id = $1
	`, id)
	return err
}

func (t *pgTx) Enqueue(ctx context.Context, evt outbox.Event) error {
	return t.outbox.Insert(ctx, t.tx, evt)
}

func (t *pgTx) PutBusinessHours(ctx context.Context, bh calendar.BusinessHours) error {
	batch := &pgx.Batch{}
	for wd, h := range bh {
		batch.Queue(`
			INSERT INTO business_hours (weekday, is_closed, open_minute, close_minute)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (weekday) DO UPDATE
			SET is_closed = EXCLUDED.is_closed,
				open_minute = EXCLUDED.open_minute,
				close_minute = EXCLUDED.close_minute,
				updated_at = now()
		`, int16(wd), h.Closed, int16(h.Open), int16(h.Close))
	}
	return t.tx.SendBatch(ctx, batch).Close()
}

func (t *pgTx) BlockDate(ctx context.Context, d calendar.Date, reason string) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO blocked_dates (blocked_date, reason)
		VALUES ($1::date, $2)
		ON CONFLICT (blocked_date) DO UPDATE SET reason = EXCLUDED.reason
	`, d.String(), reason)
	return err
}

func (t *pgTx) UnblockDate(ctx context.Context, d calendar.Date) (bool, error) {
	tag, err := t.tx.Exec(ctx, `DELETE FROM blocked_dates WHERE blocked_date = $1::date`, d.String())
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (t *pgTx) SaveService(ctx context.Context, svc *model.Service) error {
	return t.tx.QueryRow(ctx, `
		INSERT INTO services (id, name, description, duration_minutes, price_cents, active, display_order)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
			description = EXCLUDED.description,
			duration_minutes = EXCLUDED.duration_minutes,
			price_cents = EXCLUDED.price_cents,
			active = EXCLUDED.active,
			display_order = EXCLUDED.display_order,
			updated_at = now()
		RETURNING updated_at
	`, svc.ID, svc.Name, svc.Description, svc.DurationMinutes, svc.PriceCents, svc.Active, svc.DisplayOrder).Scan(&svc.UpdatedAt)
}

func (t *pgTx) PutSettings(ctx context.Context, s model.Settings) error {
	values := map[string]string{
		settingBookingPaused: strconv.FormatBool(s.BookingPaused),
		settingStoreDiscount: strconv.Itoa(s.StoreDiscountPct),
		settingReviewDelay:   strconv.Itoa(s.ReviewDelayHours),
	}
	for id, pct := range s.ServiceDiscountPct {
		values[settingServiceDiscount+id] = strconv.Itoa(pct)
	}

	batch := &pgx.Batch{}
	batch.Queue(`DELETE FROM system_settings WHERE key LIKE 'service\_discount\_pct\_%'`)
	for key, value := range values {
		batch.Queue(`
			INSERT INTO system_settings (key, value)
			VALUES ($1, $2)
			ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()
		`, key, value)
	}
	return t.tx.SendBatch(ctx, batch).Close()
}

var (
	_ booking.Store = (*Postgres)(nil)
	_ outbox.Source = (*Postgres)(nil)
)
