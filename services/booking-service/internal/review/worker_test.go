package review

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRequester struct {
	mu      sync.Mutex
	batches []int
	err     error
	calls   int
}

func (f *fakeRequester) RequestDueReviews(_ context.Context, limit int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	if len(f.batches) == 0 {
		return 0, nil
	}
	n := f.batches[0]
	f.batches = f.batches[1:]
	if n > limit {
		n = limit
	}
	return n, nil
}

func (f *fakeRequester) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestRunOnceDrainsFullBatches(t *testing.T) {
	req := &fakeRequester{batches: []int{2, 2, 1}}
	w := NewWorker(req, discard(), WorkerConfig{BatchSize: 2})

	n, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, 3, req.Calls())
}

func TestRunOnceStopsOnError(t *testing.T) {
	req := &fakeRequester{err: errors.New("db down")}
	w := NewWorker(req, discard(), WorkerConfig{BatchSize: 2})

	_, err := w.RunOnce(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 1, req.Calls())
}

func TestRunTicksUntilCancelled(t *testing.T) {
	req := &fakeRequester{}
	w := NewWorker(req, discard(), WorkerConfig{Interval: 5 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return req.Calls() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}
