package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func newClaims(role string, ttl time.Duration) Claims {
	now := time.Now()
	return Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "staff-1",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
}

func TestHS256RoundTrip(t *testing.T) {
	secret := "test-secret"
	token, err := SignHS256(newClaims(RoleAdmin, time.Hour), secret)
	if err != nil {
		t.Fatalf("SignHS256 failed: %v", err)
	}
	parsed, err := ParseAndVerifyHS256(token, secret)
	if err != nil {
		t.Fatalf("ParseAndVerifyHS256 failed: %v", err)
	}
	if parsed.Subject != "staff-1" || parsed.Role != RoleAdmin {
		t.Fatalf("claims mismatch: got %+v", parsed)
	}
	if _, err := ParseAndVerifyHS256(token, "wrong-secret"); err == nil {
		t.Fatal("expected verification error with wrong secret")
	}
	if _, err := ParseAndVerifyHS256(token, ""); err == nil {
		t.Fatal("an empty secret must never verify")
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	token, err := SignHS256(newClaims(RoleAdmin, -time.Hour), "s")
	if err != nil {
		t.Fatalf("SignHS256 failed: %v", err)
	}
	if _, err := ParseAndVerifyHS256(token, "s"); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestRequireRole(t *testing.T) {
	secret := "s3cret"
	var seen *Claims
	h := RequireRole(secret, RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	do := func(authz string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/settings", nil)
		if authz != "" {
			req.Header.Set("Authorization", authz)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := do(""); code != http.StatusUnauthorized {
		t.Fatalf("missing token: got %d", code)
	}
	if code := do("Basic abc"); code != http.StatusUnauthorized {
		t.Fatalf("wrong scheme: got %d", code)
	}

	client, _ := SignHS256(newClaims("client", time.Hour), secret)
	if code := do("Bearer " + client); code != http.StatusForbidden {
		t.Fatalf("non-admin: got %d", code)
	}

	admin, _ := SignHS256(newClaims(RoleAdmin, time.Hour), secret)
	if code := do("bearer " + admin); code != http.StatusNoContent {
		t.Fatalf("admin: got %d", code)
	}
	if seen == nil || seen.Subject != "staff-1" {
		t.Fatalf("claims not stored in context: %+v", seen)
	}
}
