package storage

import (
	"time"

	"github.com/Bobtechma/schonheitslokal2/services/booking-service/internal/booking"
	gocache "github.com/patrickmn/go-cache"
)

const catalogKey = "catalog"

// CatalogCache keeps the salon configuration for the slot query for a short
// TTL. Admin writes invalidate it immediately.
type CatalogCache struct {
	c *gocache.Cache
}

func NewCatalogCache(ttl time.Duration) *CatalogCache {
	return &CatalogCache{c: gocache.New(ttl, 2*ttl)}
}

func (c *CatalogCache) Get() (booking.Catalog, bool) {
	v, ok := c.c.Get(catalogKey)
	if !ok {
		return booking.Catalog{}, false
	}
	cat, ok := v.(booking.Catalog)
	return cat, ok
}

func (c *CatalogCache) Set(cat booking.Catalog) {
	c.c.SetDefault(catalogKey, cat)
}

func (c *CatalogCache) Invalidate() {
	c.c.Delete(catalogKey)
}

var _ booking.CatalogCache = (*CatalogCache)(nil)
