package handlers

import (
	"net/http"

	"github.com/Bobtechma/schonheitslokal2/libs/httpx"
)

// Routes decides how each group of endpoints is wrapped. Nil fields leave
// the handlers as they are.
type Routes struct {
	Public     *PublicHandler
	Admin      *AdminHandler
	PublicMW   []httpx.Middleware
	AdminMW    []httpx.Middleware
	Instrument func(route string, h http.Handler) http.Handler
}

func (rt Routes) Mount(mux *http.ServeMux) {
	public := map[string]http.HandlerFunc{
		"/api/v1/public/services": rt.Public.Services,
		"/api/v1/public/slots":    rt.Public.Slots,
		"/api/v1/public/book":     rt.Public.Book,
	}
	admin := map[string]http.HandlerFunc{
		"/api/v1/admin/business-hours":      rt.Admin.BusinessHours,
		"/api/v1/admin/blocked-dates":       rt.Admin.BlockedDates,
		"/api/v1/admin/services":            rt.Admin.Services,
		"/api/v1/admin/settings":            rt.Admin.Settings,
		"/api/v1/admin/appointments":        rt.Admin.Appointments,
		"/api/v1/admin/appointments/status": rt.Admin.AppointmentStatus,
		"/api/v1/admin/appointments/review": rt.Admin.AppointmentReview,
	}
	for route, h := range public {
		mux.Handle(route, rt.wrap(route, h, rt.PublicMW))
	}
	for route, h := range admin {
		mux.Handle(route, rt.wrap(route, h, rt.AdminMW))
	}
}

func (rt Routes) wrap(route string, h http.Handler, mw []httpx.Middleware) http.Handler {
	h = httpx.Chain(h, mw...)
	if rt.Instrument != nil {
		h = rt.Instrument(route, h)
	}
	return h
}
