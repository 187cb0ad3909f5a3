package jobs

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

type countingSweeper struct {
	calls int32
}

func (c *countingSweeper) Sweep() int {
	atomic.AddInt32(&c.calls, 1)
	return 1
}

func TestCacheSweepJobRunsUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sweeper := &countingSweeper{}

	StartCacheSweepJob(ctx, 5*time.Millisecond, sweeper)

	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&sweeper.calls) < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("expected sweeps, got %d", atomic.LoadInt32(&sweeper.calls))
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	time.Sleep(20 * time.Millisecond)
	stopped := atomic.LoadInt32(&sweeper.calls)
	time.Sleep(30 * time.Millisecond)
	if got := atomic.LoadInt32(&sweeper.calls); got != stopped {
		t.Fatalf("expected no sweeps after cancel, got %d then %d", stopped, got)
	}
}

func TestCacheSweepJobWithoutCache(t *testing.T) {
	StartCacheSweepJob(context.Background(), time.Millisecond, nil)
}
