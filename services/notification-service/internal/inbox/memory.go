package inbox

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

// Memory is the inbox used when no database is configured. Claims expire
// after ttl, which bounds memory but also bounds the de-duplication window.
type Memory struct {
	seen *cache.Cache
}

func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Memory{seen: cache.New(ttl, ttl/2)}
}

func (m *Memory) Claim(_ context.Context, eventID string, eventType string) (bool, error) {
	// Add fails when the key is already present, atomically.
	if err := m.seen.Add(eventID, eventType, cache.DefaultExpiration); err != nil {
		return false, nil
	}
	return true, nil
}

func (m *Memory) Release(_ context.Context, eventID string) error {
	m.seen.Delete(eventID)
	return nil
}
