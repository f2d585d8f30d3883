package main

import (
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/Bobtechma/schonheitslokal2/libs/auth"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type upstreams struct {
	auth    *url.URL
	booking *url.URL
}

// registerRoutes forwards each API prefix to the service that owns it. Admin
// calls are checked here as well as in booking-service so that a bad token
// never reaches the backend.
func registerRoutes(mux *http.ServeMux, up upstreams, jwtSecret string) {
	transport := otelhttp.NewTransport(http.DefaultTransport)
	authProxy := newProxy(up.auth, transport)
	bookingProxy := newProxy(up.booking, transport)

	registerProxy(mux, "/api/v1/auth", authProxy)
	registerProxy(mux, "/api/v1/public", bookingProxy)
	registerProxy(mux, "/api/v1/admin", auth.RequireRole(jwtSecret, auth.RoleOwner, auth.RoleAdmin)(bookingProxy))
}

func newProxy(target *url.URL, transport http.RoundTripper) *httputil.ReverseProxy {
	p := httputil.NewSingleHostReverseProxy(target)
	p.Transport = transport
	p.ErrorHandler = func(w http.ResponseWriter, _ *http.Request, _ error) {
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
	}
	return p
}

func registerProxy(mux *http.ServeMux, prefix string, handler http.Handler) {
	if !strings.HasSuffix(prefix, "/") {
		mux.Handle(prefix, handler)
		mux.Handle(prefix+"/", handler)
		return
	}
	mux.Handle(prefix, handler)
}

func parseUpstream(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, &url.Error{Op: "parse", URL: raw, Err: errMissingHost}
	}
	return u, nil
}
