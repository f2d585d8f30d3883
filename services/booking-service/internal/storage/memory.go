package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Bobtechma/schonheitslokal2/services/booking-service/internal/booking"
	"github.com/Bobtechma/schonheitslokal2/services/booking-service/internal/calendar"
	"github.com/Bobtechma/schonheitslokal2/services/booking-service/internal/model"
	"github.com/Bobtechma/schonheitslokal2/services/booking-service/internal/outbox"
)

const memoryOutboxCap = 10000

// Memory is a process-local Store for development and tests. Each
// transaction works on a snapshot taken when it starts and applies its
// writes atomically on commit. Sequence numbers are assigned at commit, so
// they follow commit order.
type Memory struct {
	mu    sync.Mutex
	state memState
	locks map[string]chan struct{}
	now   func() time.Time

	outboxMu sync.Mutex
	outbox   []memEvent
}

type memEvent struct {
	rec       outbox.Record
	published bool
}

type memState struct {
	seq      int64
	hours    calendar.BusinessHours
	blocked  map[calendar.Date]string
	services map[string]model.Service
	settings model.Settings
	appts    map[string]model.Appointment
	idem     map[string]booking.Idempotency
}

func NewMemory() *Memory {
	return &Memory{
		state: memState{
			hours:    calendar.DefaultBusinessHours(),
			blocked:  map[calendar.Date]string{},
			services: map[string]model.Service{},
			settings: model.DefaultSettings(),
			appts:    map[string]model.Appointment{},
			idem:     map[string]booking.Idempotency{},
		},
		locks: map[string]chan struct{}{},
		now:   time.Now,
	}
}

func (s memState) clone() memState {
	c := s
	c.blocked = make(map[calendar.Date]string, len(s.blocked))
	for k, v := range s.blocked {
		c.blocked[k] = v
	}
	c.services = make(map[string]model.Service, len(s.services))
	for k, v := range s.services {
		c.services[k] = v
	}
	c.appts = make(map[string]model.Appointment, len(s.appts))
	for k, v := range s.appts {
		c.appts[k] = v
	}
	c.settings.ServiceDiscountPct = copyPct(s.settings.ServiceDiscountPct)
	// idem is read from the live state only, under the key lock.
	return c
}

func copyPct(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (m *Memory) InTx(ctx context.Context, fn func(booking.Tx) error) error {
	return m.run(ctx, fn)
}

// InDateTx holds a per-date lock from before the snapshot until after the
// commit, so date transactions observe each other's writes.
func (m *Memory) InDateTx(ctx context.Context, d calendar.Date, fn func(booking.Tx) error) error {
	unlock, err := m.lock(ctx, "date:"+d.String())
	if err != nil {
		return err
	}
	defer unlock()
	return m.run(ctx, fn)
}

func (m *Memory) run(ctx context.Context, fn func(booking.Tx) error) error {
	m.mu.Lock()
	tx := &memTx{store: m, snap: m.state.clone()}
	m.mu.Unlock()
	defer tx.release()

	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.commit(tx)
	return nil
}

func (m *Memory) commit(tx *memTx) {
	m.mu.Lock()
	for _, op := range tx.ops {
		op(&m.state)
	}
	m.mu.Unlock()

	if len(tx.events) == 0 {
		return
	}
	m.outboxMu.Lock()
	defer m.outboxMu.Unlock()
	for _, evt := range tx.events {
		m.outbox = append(m.outbox, memEvent{rec: evt})
	}
	if over := len(m.outbox) - memoryOutboxCap; over > 0 {
		m.outbox = append([]memEvent(nil), m.outbox[over:]...)
	}
}

// lock acquires a named lock that can be abandoned through ctx.
func (m *Memory) lock(ctx context.Context, name string) (func(), error) {
	m.mu.Lock()
	ch, ok := m.locks[name]
	if !ok {
		ch = make(chan struct{}, 1)
		m.locks[name] = ch
	}
	m.mu.Unlock()

	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// PublishBatch hands out unpublished events in commit order.
func (m *Memory) PublishBatch(ctx context.Context, limit int, publish func(context.Context, []outbox.Record) error) (int, error) {
	m.outboxMu.Lock()
	defer m.outboxMu.Unlock()

	var (
		idx   []int
		batch []outbox.Record
	)
	for i := range m.outbox {
		if len(batch) == limit {
			break
		}
		if !m.outbox[i].published {
			idx = append(idx, i)
			batch = append(batch, m.outbox[i].rec)
		}
	}
	if len(batch) == 0 {
		return 0, nil
	}
	if err := publish(ctx, batch); err != nil {
		return 0, err
	}
	for _, i := range idx {
		m.outbox[i].published = true
	}
	return len(batch), nil
}

// Events returns every event still held in the outbox, oldest first.
func (m *Memory) Events() []outbox.Event {
	m.outboxMu.Lock()
	defer m.outboxMu.Unlock()
	out := make([]outbox.Event, 0, len(m.outbox))
	for _, e := range m.outbox {
		out = append(out, e.rec.Event)
	}
	return out
}

type memTx struct {
	store    *Memory
	snap     memState
	ops      []func(*memState)
	events   []outbox.Record
	releases []func()
}

func (tx *memTx) release() {
	for i := len(tx.releases) - 1; i >= 0; i-- {
		tx.releases[i]()
	}
}

func (tx *memTx) apply(op func(*memState)) {
	op(&tx.snap)
	tx.ops = append(tx.ops, op)
}

func (tx *memTx) Rules(context.Context) (calendar.Rules, error) {
	blocked := make(map[calendar.Date]string, len(tx.snap.blocked))
	for k, v := range tx.snap.blocked {
		blocked[k] = v
	}
	return calendar.Rules{Hours: tx.snap.hours, Blocked: blocked}, nil
}

func (tx *memTx) Settings(context.Context) (model.Settings, error) {
	st := tx.snap.settings
	st.ServiceDiscountPct = copyPct(st.ServiceDiscountPct)
	return st, nil
}

func (tx *memTx) Services(context.Context) ([]model.Service, error) {
	out := make([]model.Service, 0, len(tx.snap.services))
	for _, svc := range tx.snap.services {
		out = append(out, svc)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DisplayOrder != out[j].DisplayOrder {
			return out[i].DisplayOrder < out[j].DisplayOrder
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (tx *memTx) AppointmentsBetween(_ context.Context, from, to calendar.Date) ([]model.Appointment, error) {
	var out []model.Appointment
	for _, a := range tx.snap.appts {
		if a.Date.Before(from) || to.Before(a.Date) {
			continue
		}
		out = append(out, a)
	}
	sortAppointments(out)
	return out, nil
}

func sortAppointments(out []model.Appointment) {
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date.Before(out[j].Date)
		}
		if out[i].Start != out[j].Start {
			return out[i].Start < out[j].Start
		}
		return out[i].Seq < out[j].Seq
	})
}

func (tx *memTx) GetAppointment(_ context.Context, id string) (model.Appointment, error) {
	a, ok := tx.snap.appts[id]
	if !ok {
		return model.Appointment{}, fmt.Errorf("appointment %s: %w", id, booking.ErrNotFound)
	}
	return a, nil
}

func (tx *memTx) InsertAppointment(_ context.Context, a *model.Appointment) error {
	if _, exists := tx.snap.appts[a.ID]; exists {
		return fmt.Errorf("appointment %s already exists", a.ID)
	}
	a.CreatedAt = tx.store.now().UTC()
	row := *a
	tx.apply(func(st *memState) {
		st.seq++
		row.Seq = st.seq
		st.appts[row.ID] = row
	})
	return nil
}

func (tx *memTx) SetStatus(_ context.Context, id string, to model.Status, reason string, at time.Time) (model.Appointment, error) {
	a, ok := tx.snap.appts[id]
	if !ok {
		return model.Appointment{}, fmt.Errorf("appointment %s: %w", id, booking.ErrNotFound)
	}
	reblocks := to.BlocksTime() && !a.Status.BlocksTime()
	update := func(st *memState) {
		cur, ok := st.appts[id]
		if !ok {
			return
		}
		if reblocks {
			st.seq++
			cur.Seq = st.seq
		}
		cur.Status = to
		if to == model.StatusCancelled {
			t := at.UTC()
			cur.CancelledAt = &t
			cur.CancelReason = reason
		} else {
			cur.CancelledAt = nil
			cur.CancelReason = ""
			if to == model.StatusNoShow {
				cur.CancelReason = reason
			}
		}
		st.appts[id] = cur
	}
	tx.apply(update)
	return tx.snap.appts[id], nil
}

func (tx *memTx) LockIdempotencyKey(ctx context.Context, key string) (booking.Idempotency, error) {
	unlock, err := tx.store.lock(ctx, "idem:"+key)
	if err != nil {
		return booking.Idempotency{}, err
	}
	tx.releases = append(tx.releases, unlock)

	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()
	// Like a read-committed statement after SELECT ... FOR UPDATE, reads
	// that follow the lock see what the previous holder committed.
	if len(tx.ops) == 0 {
		tx.snap = tx.store.state.clone()
	}
	return tx.store.state.idem[key], nil
}

func (tx *memTx) FinalizeIdempotency(_ context.Context, key string, rec booking.Idempotency) error {
	tx.ops = append(tx.ops, func(st *memState) { st.idem[key] = rec })
	return nil
}

func (tx *memTx) PendingReviews(_ context.Context, through calendar.Date, limit int) ([]model.Appointment, error) {
	var out []model.Appointment
	for _, a := range tx.snap.appts {
		if a.Status != model.StatusConfirmed || a.ReviewRequested || through.Before(a.Date) {
			continue
		}
		out = append(out, a)
	}
	sortAppointments(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (tx *memTx) MarkReviewRequested(_ context.Context, id string) error {
	tx.apply(func(st *memState) {
		if a, ok := st.appts[id]; ok {
			a.ReviewRequested = true
			st.appts[id] = a
		}
	})
	return nil
}

func (tx *memTx) Enqueue(_ context.Context, evt outbox.Event) error {
	tx.events = append(tx.events, outbox.Record{Event: evt})
	return nil
}

func (tx *memTx) PutBusinessHours(_ context.Context, bh calendar.BusinessHours) error {
	tx.apply(func(st *memState) { st.hours = bh })
	return nil
}

func (tx *memTx) BlockDate(_ context.Context, d calendar.Date, reason string) error {
	tx.apply(func(st *memState) { st.blocked[d] = reason })
	return nil
}

func (tx *memTx) UnblockDate(_ context.Context, d calendar.Date) (bool, error) {
	if _, ok := tx.snap.blocked[d]; !ok {
		return false, nil
	}
	tx.apply(func(st *memState) { delete(st.blocked, d) })
	return true, nil
}

func (tx *memTx) SaveService(_ context.Context, svc *model.Service) error {
	svc.UpdatedAt = tx.store.now().UTC()
	row := *svc
	tx.apply(func(st *memState) { st.services[row.ID] = row })
	return nil
}

func (tx *memTx) PutSettings(_ context.Context, s model.Settings) error {
	s.ServiceDiscountPct = copyPct(s.ServiceDiscountPct)
	tx.apply(func(st *memState) {
		st.settings = s
		st.settings.ServiceDiscountPct = copyPct(s.ServiceDiscountPct)
	})
	return nil
}

var (
	_ booking.Store = (*Memory)(nil)
	_ outbox.Source = (*Memory)(nil)
)
