// Package pricing snapshots what the client pays for a set of services at
// booking time.
package pricing

import "github.com/Bobtechma/schonheitslokal2/services/booking-service/internal/model"

type Quote struct {
	Items           []model.LineItem
	TotalCents      int64
	DurationMinutes int
}

// DiscountPct is the larger of the service's own promotion and the
// store-wide one, clamped to 0..100.
func DiscountPct(serviceID string, s model.Settings) int {
	pct := s.StoreDiscountPct
	if p := s.ServiceDiscountPct[serviceID]; p > pct {
		pct = p
	}
	return clampPct(pct)
}

// Discounted applies pct to cents, rounding half up to a whole cent.
func Discounted(cents int64, pct int) int64 {
	pct = clampPct(pct)
	if cents <= 0 {
		return 0
	}
	return (cents*int64(100-pct) + 50) / 100
}

// Build prices services in the given order.
func Build(services []model.Service, s model.Settings) Quote {
	q := Quote{Items: make([]model.LineItem, 0, len(services))}
	for i, svc := range services {
		pct := DiscountPct(svc.ID, s)
		price := Discounted(svc.PriceCents, pct)
		q.Items = append(q.Items, model.LineItem{
			ServiceID:       svc.ID,
			Name:            svc.Name,
			PriceCents:      price,
			DiscountPct:     pct,
			DurationMinutes: svc.DurationMinutes,
			OrderIndex:      i,
		})
		q.TotalCents += price
		q.DurationMinutes += svc.DurationMinutes
	}
	return q
}

func clampPct(p int) int {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}
