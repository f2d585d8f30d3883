package inbox

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryClaimOnce(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(time.Hour)

	ok, err := m.Claim(ctx, "e-1", "booking.appointment.booked.v1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.Claim(ctx, "e-1", "booking.appointment.booked.v1")
	require.NoError(t, err)
	assert.False(t, ok, "second claim must be reported as duplicate")

	require.NoError(t, m.Release(ctx, "e-1"))
	ok, err = m.Claim(ctx, "e-1", "booking.appointment.booked.v1")
	require.NoError(t, err)
	assert.True(t, ok, "released events can be claimed again")
}

func TestMemoryConcurrentClaims(t *testing.T) {
	m := NewMemory(time.Hour)
	var won atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := m.Claim(context.Background(), "same", "t"); ok {
				won.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), won.Load())
}
