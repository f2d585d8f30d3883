package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":        slog.LevelInfo,
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestReadyzReportsFailingChecks(t *testing.T) {
	mux := NewBaseMuxWithReady(
		ReadyCheck{Name: "db", Check: func(context.Context) error { return nil }},
		ReadyCheck{Name: "kafka", Check: func(context.Context) error { return errors.New("no brokers") }},
	)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	var body readyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	want := []checkResult{{Name: "db", OK: true}, {Name: "kafka", Error: "no brokers"}}
	if body.Status != "unavailable" || len(body.Checks) != 2 || body.Checks[0] != want[0] || body.Checks[1] != want[1] {
		t.Fatalf("unexpected body %+v", body)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from healthz, got %d", rec.Code)
	}
}

func TestReadyzWithoutChecks(t *testing.T) {
	rec := httptest.NewRecorder()
	NewBaseMuxWithReady().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Fatalf("got %d %q", rec.Code, rec.Body.String())
	}
}

func TestRunChecksConcurrently(t *testing.T) {
	// Each check waits for the other to start, which only works when they
	// run at the same time.
	var started sync.WaitGroup
	started.Add(2)
	meet := func(ctx context.Context) error {
		started.Done()
		waited := make(chan struct{})
		go func() { started.Wait(); close(waited) }()
		select {
		case <-waited:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	results, ready := runChecks(context.Background(), []ReadyCheck{
		{Name: "db", Check: meet, Timeout: time.Second},
		{Name: "redis", Check: meet, Timeout: time.Second},
		{Name: "optional"},
	})
	if !ready {
		t.Fatalf("expected ready, got %+v", results)
	}
	if len(results) != 3 || results[2].Name != "optional" || !results[2].OK {
		t.Fatalf("unexpected results %+v", results)
	}
}

func TestRunChecksAppliesTimeout(t *testing.T) {
	slow := func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}
	start := time.Now()
	results, ready := runChecks(context.Background(), []ReadyCheck{{Check: slow, Timeout: 20 * time.Millisecond}})
	if ready {
		t.Fatal("a timed out check must not be ready")
	}
	if results[0].Name != "dependency" || !strings.Contains(results[0].Error, "deadline exceeded") {
		t.Fatalf("unexpected result %+v", results[0])
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("check ran for %s", elapsed)
	}
}
