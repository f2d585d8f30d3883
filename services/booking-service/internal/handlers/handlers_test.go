package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Bobtechma/schonheitslokal2/libs/auth"
	"github.com/Bobtechma/schonheitslokal2/libs/httpx"
	"github.com/Bobtechma/schonheitslokal2/services/booking-service/internal/booking"
	"github.com/Bobtechma/schonheitslokal2/services/booking-service/internal/handlers"
	"github.com/Bobtechma/schonheitslokal2/services/booking-service/internal/metrics"
	"github.com/Bobtechma/schonheitslokal2/services/booking-service/internal/model"
	"github.com/Bobtechma/schonheitslokal2/services/booking-service/internal/storage"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

type server struct {
	t     *testing.T
	mux   *http.ServeMux
	token string
}

func newServer(t *testing.T) *server {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Zurich")
	require.NoError(t, err)

	mem := storage.NewMemory()
	require.NoError(t, mem.InTx(context.Background(), func(tx booking.Tx) error {
		return tx.SaveService(context.Background(), &model.Service{
			ID: "cut", Name: "Haarschnitt", DurationMinutes: 60, PriceCents: 8000, Active: true,
		})
	}))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.New("test")
	svc := booking.NewService(mem, storage.NewCatalogCache(time.Minute), m, logger, booking.Config{
		Location: loc,
		Now:      func() time.Time { return time.Date(2026, time.March, 2, 8, 0, 0, 0, loc) },
	})

	mux := http.NewServeMux()
	handlers.Routes{
		Public:     handlers.NewPublicHandler(svc, logger),
		Admin:      handlers.NewAdminHandler(svc, logger),
		AdminMW:    []httpx.Middleware{auth.RequireRole(secret, auth.RoleAdmin)},
		Instrument: m.Instrument,
	}.Mount(mux)

	return &server{t: t, mux: mux, token: sign(t, auth.RoleAdmin)}
}

func sign(t *testing.T, role string) string {
	t.Helper()
	tok, err := auth.SignHS256(auth.Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "owner-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}, secret)
	require.NoError(t, err)
	return tok
}

func (s *server) do(method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	s.t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(s.t, err)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	return rec
}

func (s *server) admin(method, path string, body any) *httptest.ResponseRecorder {
	return s.do(method, path, body, map[string]string{"Authorization": "Bearer " + s.token})
}

func bookBody(date, start string) map[string]any {
	return map[string]any{
		"date":        date,
		"start":       start,
		"service_ids": []string{"cut"},
		"client":      map[string]any{"name": "Anna Muster", "email": "anna@example.ch", "language": "en"},
	}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestBookFlow(t *testing.T) {
	s := newServer(t)

	rec := s.do(http.MethodPost, "/api/v1/public/book", bookBody("2026-03-03", "10:00"), map[string]string{"Idempotency-Key": "abc"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decode(t, rec)
	id := body["appointment_id"].(string)
	assert.NotEmpty(t, id)
	assert.Equal(t, "10:00", body["start"])
	assert.Equal(t, "11:00", body["end"])
	assert.Equal(t, float64(8000), body["total_cents"])

	rec = s.do(http.MethodPost, "/api/v1/public/book", bookBody("2026-03-03", "10:00"), map[string]string{"Idempotency-Key": "abc"})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "true", rec.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, id, decode(t, rec)["appointment_id"])

	rec = s.do(http.MethodPost, "/api/v1/public/book", bookBody("2026-03-03", "10:30"), nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "OVERLAP", decode(t, rec)["reason"])

	rec = s.do(http.MethodPost, "/api/v1/public/book", bookBody("2026-03-03", "17:30"), nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "OUTSIDE_HOURS", decode(t, rec)["reason"])

	rec = s.do(http.MethodGet, "/api/v1/public/slots?date=2026-03-03&service_ids=cut", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	slots := decode(t, rec)["slots"].([]any)
	assert.Len(t, slots, 14)
	assert.Equal(t, "09:00", slots[0])
	assert.NotContains(t, slots, "10:00")
}

func TestBookValidation(t *testing.T) {
	s := newServer(t)

	badEmail := bookBody("2026-03-03", "10:00")
	badEmail["client"] = map[string]any{"name": "Anna", "email": "nope"}
	badDate := bookBody("03.03.2026", "10:00")
	noServices := bookBody("2026-03-03", "10:00")
	noServices["service_ids"] = []string{}

	cases := map[string]struct {
		body any
		want int
	}{
		"bad email":       {badEmail, http.StatusBadRequest},
		"bad date":        {badDate, http.StatusBadRequest},
		"no services":     {noServices, http.StatusBadRequest},
		"unknown field":   {`{"date":"2026-03-03","bogus":1}`, http.StatusBadRequest},
		"empty body":      {"", http.StatusBadRequest},
		"unknown service": {map[string]any{"date": "2026-03-03", "start": "10:00", "service_ids": []string{"perm"}, "client": map[string]any{"name": "A", "email": "a@example.ch"}}, http.StatusBadRequest},
		"in the past":     {bookBody("2026-03-02", "07:00"), http.StatusUnprocessableEntity},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			rec := s.do(http.MethodPost, "/api/v1/public/book", tc.body, nil)
			assert.Equal(t, tc.want, rec.Code, rec.Body.String())
		})
	}

	rec := s.do(http.MethodGet, "/api/v1/public/book", nil, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestBookingPausedReturnsLocked(t *testing.T) {
	s := newServer(t)

	rec := s.admin(http.MethodPut, "/api/v1/admin/settings", map[string]any{"booking_paused": true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, true, decode(t, rec)["booking_paused"])

	rec = s.do(http.MethodPost, "/api/v1/public/book", bookBody("2026-03-03", "10:00"), nil)
	assert.Equal(t, http.StatusLocked, rec.Code)

	rec = s.admin(http.MethodPut, "/api/v1/admin/settings", map[string]any{"store_discount_pct": 150})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminRequiresRole(t *testing.T) {
	s := newServer(t)

	rec := s.do(http.MethodGet, "/api/v1/admin/settings", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodGet, "/api/v1/admin/settings", nil, map[string]string{"Authorization": "Bearer " + sign(t, "client")})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodGet, "/api/v1/admin/settings", nil, map[string]string{"Authorization": "Bearer garbage"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminCalendar(t *testing.T) {
	s := newServer(t)

	rec := s.admin(http.MethodPut, "/api/v1/admin/business-hours", map[string]any{
		"days": []map[string]any{{"weekday": 1, "open": "18:00", "close": "09:00"}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	rec = s.admin(http.MethodPut, "/api/v1/admin/business-hours", map[string]any{
		"days": []map[string]any{
			{"weekday": 0, "closed": true},
			{"weekday": 2, "open": "12:00", "close": "14:00"},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	days := decode(t, rec)["days"].([]any)
	require.Len(t, days, 7)
	assert.Equal(t, true, days[0].(map[string]any)["closed"])
	assert.Equal(t, "12:00", days[2].(map[string]any)["open"])

	rec = s.do(http.MethodGet, "/api/v1/public/slots?date=2026-03-03&service_id=cut", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{"12:00", "12:30", "13:00"}, decode(t, rec)["slots"])

	rec = s.admin(http.MethodPost, "/api/v1/admin/blocked-dates", map[string]any{"date": "2026-03-03", "reason": "Ferien"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(http.MethodPost, "/api/v1/public/book", bookBody("2026-03-03", "12:00"), nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "DATE_BLOCKED", decode(t, rec)["reason"])

	rec = s.admin(http.MethodGet, "/api/v1/admin/blocked-dates", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["blocked_dates"], 1)

	rec = s.admin(http.MethodDelete, "/api/v1/admin/blocked-dates?date=2026-03-03", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.admin(http.MethodDelete, "/api/v1/admin/blocked-dates?date=2026-03-03", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminAppointmentStatus(t *testing.T) {
	s := newServer(t)

	rec := s.do(http.MethodPost, "/api/v1/public/book", bookBody("2026-03-03", "10:00"), nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	first := decode(t, rec)["appointment_id"].(string)

	rec = s.admin(http.MethodPost, "/api/v1/admin/appointments/status", map[string]any{
		"appointment_id": first, "status": "cancelled", "reason": "Kundin krank",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "cancelled", decode(t, rec)["status"])

	rec = s.do(http.MethodPost, "/api/v1/public/book", bookBody("2026-03-03", "10:00"), nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	second := decode(t, rec)["appointment_id"].(string)

	rec = s.admin(http.MethodPost, "/api/v1/admin/appointments/status", map[string]any{
		"appointment_id": first, "status": "confirmed",
	})
	require.Equal(t, http.StatusConflict, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "OVERLAP", body["reason"])
	assert.Equal(t, second, body["conflict_id"])

	rec = s.admin(http.MethodPost, "/api/v1/admin/appointments/status", map[string]any{
		"appointment_id": first, "status": "archived",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.admin(http.MethodPost, "/api/v1/admin/appointments/status", map[string]any{
		"appointment_id": "missing", "status": "cancelled",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.admin(http.MethodGet, "/api/v1/admin/appointments?date=2026-03-03", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["appointments"], 2)

	rec = s.admin(http.MethodGet, "/api/v1/admin/appointments?id="+second, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "confirmed", decode(t, rec)["status"])
}

func TestAdminServices(t *testing.T) {
	s := newServer(t)

	rec := s.admin(http.MethodPost, "/api/v1/admin/services", map[string]any{
		"name": "Färben", "duration_minutes": 90, "price_cents": 12000, "display_order": 2,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode(t, rec)
	id := created["id"].(string)
	assert.Equal(t, true, created["active"])

	rec = s.admin(http.MethodPut, "/api/v1/admin/services", map[string]any{
		"id": id, "name": "Färben lang", "duration_minutes": 120, "price_cents": 15000, "active": false,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.admin(http.MethodPut, "/api/v1/admin/services", map[string]any{
		"id": "nope", "name": "x", "duration_minutes": 30,
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.admin(http.MethodPost, "/api/v1/admin/services", map[string]any{"name": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, "/api/v1/public/services", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	services := decode(t, rec)["services"].([]any)
	require.Len(t, services, 1, "inactive services are hidden")
	assert.Equal(t, "cut", services[0].(map[string]any)["id"])
	assert.Equal(t, float64(8000), services[0].(map[string]any)["discounted_price_cents"])

	rec = s.admin(http.MethodGet, "/api/v1/admin/services", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["services"], 2)
}

func TestBookRejectsLooseClock(t *testing.T) {
	s := newServer(t)

	// Open around the clock so a start silently read as 00:00 would be
	// accepted.
	rec := s.admin(http.MethodPut, "/api/v1/admin/business-hours", map[string]any{
		"days": []map[string]any{{"weekday": 2, "open": "00:00", "close": "24:00"}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	for _, start := range []string{"9:30", "09:3", "930"} {
		rec = s.do(http.MethodPost, "/api/v1/public/book", bookBody("2026-03-03", start), nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "start %q: %s", start, rec.Body.String())
	}

	rec = s.admin(http.MethodGet, "/api/v1/admin/appointments?date=2026-03-03", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode(t, rec)["appointments"])

	rec = s.admin(http.MethodPost, "/api/v1/admin/blocked-dates", map[string]any{"date": "2026-3-3"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminAppointmentReview(t *testing.T) {
	s := newServer(t)

	rec := s.do(http.MethodPost, "/api/v1/public/book", bookBody("2026-03-03", "10:00"), nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode(t, rec)["appointment_id"].(string)

	rec = s.admin(http.MethodPost, "/api/v1/admin/appointments/review", map[string]any{"appointment_id": id})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.Equal(t, true, decode(t, rec)["review_requested"])

	rec = s.admin(http.MethodPost, "/api/v1/admin/appointments/review", map[string]any{"appointment_id": "missing"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.admin(http.MethodPost, "/api/v1/admin/appointments/review", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/api/v1/admin/appointments/review", map[string]any{"appointment_id": id}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
