package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstrumentCountsByRoute(t *testing.T) {
	m := New("salon")
	h := m.Instrument("/api/v1/public/book", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/public/book", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/public/book", nil))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("POST", "/api/v1/public/book", "409")))
}

func TestHandlerExposesBookingCounters(t *testing.T) {
	m := New("salon")
	m.BookingOutcomes.WithLabelValues("OVERLAP").Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `salon_booking_outcomes_total{result="OVERLAP"} 1`))
}

func TestInstancesAreIndependent(t *testing.T) {
	a, b := New("salon"), New("salon")
	a.Compensations.Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(a.Compensations))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.Compensations))
}
