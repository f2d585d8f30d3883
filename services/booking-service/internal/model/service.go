package model

import "time"

// Service is a bookable treatment from the salon's menu.
type Service struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description,omitempty"`
	DurationMinutes int       `json:"duration_minutes"`
	PriceCents      int64     `json:"price_cents"`
	Active          bool      `json:"active"`
	DisplayOrder    int       `json:"display_order"`
	UpdatedAt       time.Time `json:"updated_at"`
}

const DefaultReviewDelayHours = 2

// Settings are the salon-wide switches an admin can flip at runtime.
type Settings struct {
	BookingPaused      bool           `json:"booking_paused"`
	StoreDiscountPct   int            `json:"store_discount_pct"`
	ServiceDiscountPct map[string]int `json:"service_discount_pct"`
	ReviewDelayHours   int            `json:"review_email_delay_hours"`
}

func DefaultSettings() Settings {
	return Settings{
		ServiceDiscountPct: map[string]int{},
		ReviewDelayHours:   DefaultReviewDelayHours,
	}
}
