package main

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/Bobtechma/schonheitslokal2/libs/auth"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backend(t *testing.T, name string) *url.URL {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, name+" "+r.URL.Path)
	}))
	t.Cleanup(srv.Close)
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	return u
}

func TestRoutesForwardByPrefix(t *testing.T) {
	secret := "test-secret"
	mux := http.NewServeMux()
	registerRoutes(mux, upstreams{auth: backend(t, "auth"), booking: backend(t, "booking")}, secret)
	gw := httptest.NewServer(mux)
	defer gw.Close()

	get := func(path, token string) (int, string) {
		req, err := http.NewRequest(http.MethodGet, gw.URL+path, nil)
		require.NoError(t, err)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, string(body)
	}

	code, body := get("/api/v1/auth/me", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "auth /api/v1/auth/me", body)

	code, body = get("/api/v1/public/slots?date=2026-03-03", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "booking /api/v1/public/slots", body)

	code, _ = get("/api/v1/admin/settings", "")
	assert.Equal(t, http.StatusUnauthorized, code)

	now := time.Now()
	token, err := auth.SignHS256(auth.Claims{
		Role: auth.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "staff-1",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}, secret)
	require.NoError(t, err)
	code, body = get("/api/v1/admin/settings", token)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "booking /api/v1/admin/settings", body)
}

func TestUnavailableUpstream(t *testing.T) {
	dead, err := url.Parse("http://127.0.0.1:1")
	require.NoError(t, err)
	mux := http.NewServeMux()
	registerRoutes(mux, upstreams{auth: dead, booking: dead}, "s")

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/public/services", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestParseUpstream(t *testing.T) {
	_, err := parseUpstream("booking-service:8083")
	assert.Error(t, err)
	u, err := parseUpstream(" http://booking-service:8083 ")
	require.NoError(t, err)
	assert.Equal(t, "booking-service:8083", u.Host)
}
