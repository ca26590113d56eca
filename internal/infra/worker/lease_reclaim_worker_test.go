package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type countingReclaimer struct {
	calls atomic.Int32
}

func (r *countingReclaimer) Reclaim(ctx context.Context) (int, error) {
	if r.calls.Add(1) == 2 {
		return 0, errors.New("db down")
	}
	return 1, nil
}

func TestLeaseReclaimWorker_RunsUntilCancelled(t *testing.T) {
	r := &countingReclaimer{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewLeaseReclaimWorker(r, 5*time.Millisecond).Start(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		return r.calls.Load() >= 3
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}
