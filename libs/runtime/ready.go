package runtime

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

const defaultCheckTimeout = 2 * time.Second

// ReadyCheck is a named dependency probe for /readyz. Timeout defaults to
// two seconds.
type ReadyCheck struct {
	Name    string
	Check   func(context.Context) error
	Timeout time.Duration
}

type checkResult struct {
	Name  string `json:"name"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

type readyResponse struct {
	Status string        `json:"status"`
	Checks []checkResult `json:"checks"`
}

// runChecks runs every check concurrently and reports the results in
// registration order.
func runChecks(ctx context.Context, checks []ReadyCheck) ([]checkResult, bool) {
	results := make([]checkResult, len(checks))
	var g errgroup.Group
	for i, check := range checks {
		name := check.Name
		if name == "" {
			name = "dependency"
		}
		results[i] = checkResult{Name: name, OK: true}
		if check.Check == nil {
			continue
		}
		g.Go(func() error {
			timeout := check.Timeout
			if timeout <= 0 {
				timeout = defaultCheckTimeout
			}
			cctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			if err := check.Check(cctx); err != nil {
				results[i] = checkResult{Name: name, Error: err.Error()}
			}
			return nil
		})
	}
	_ = g.Wait()

	ready := true
	for _, res := range results {
		ready = ready && res.OK
	}
	return results, ready
}

func NewBaseMuxWithReady(checks ...ReadyCheck) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		results, ready := runChecks(r.Context(), checks)
		resp := readyResponse{Status: "ok", Checks: results}
		code := http.StatusOK
		if !ready {
			resp.Status = "unavailable"
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(resp)
	})
	return mux
}
