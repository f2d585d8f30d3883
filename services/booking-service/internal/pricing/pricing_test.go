package pricing

import (
	"testing"

	"github.com/Bobtechma/schonheitslokal2/services/booking-service/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestDiscountPct(t *testing.T) {
	s := model.Settings{StoreDiscountPct: 10, ServiceDiscountPct: map[string]int{"nails": 25, "brows": 5}}
	assert.Equal(t, 25, DiscountPct("nails", s))
	assert.Equal(t, 10, DiscountPct("brows", s), "store promotion is larger")
	assert.Equal(t, 10, DiscountPct("hair", s))
	assert.Equal(t, 0, DiscountPct("hair", model.Settings{}))
	assert.Equal(t, 100, DiscountPct("x", model.Settings{StoreDiscountPct: 150}))
}

func TestDiscounted(t *testing.T) {
	assert.Equal(t, int64(4500), Discounted(5000, 10))
	assert.Equal(t, int64(3349), Discounted(4999, 33), "3349.33 rounds down")
	assert.Equal(t, int64(2), Discounted(3, 50), "1.5 rounds half up")
	assert.Equal(t, int64(0), Discounted(5000, 100))
	assert.Equal(t, int64(0), Discounted(-10, 0))
}

func TestBuild(t *testing.T) {
	services := []model.Service{
		{ID: "cut", Name: "Haarschnitt", DurationMinutes: 45, PriceCents: 6000},
		{ID: "color", Name: "Farbe", DurationMinutes: 90, PriceCents: 12000},
	}
	q := Build(services, model.Settings{ServiceDiscountPct: map[string]int{"color": 20}})

	assert.Equal(t, 135, q.DurationMinutes)
	assert.Equal(t, int64(6000+9600), q.TotalCents)
	if assert.Len(t, q.Items, 2) {
		assert.Equal(t, 0, q.Items[0].OrderIndex)
		assert.Equal(t, "color", q.Items[1].ServiceID)
		assert.Equal(t, 20, q.Items[1].DiscountPct)
		assert.Equal(t, int64(9600), q.Items[1].PriceCents)
	}
}
