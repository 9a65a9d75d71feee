package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type countingSweeper struct {
	calls atomic.Int32
	err   error
}

func (s *countingSweeper) Sweep(ctx context.Context) (int, error) {
	s.calls.Add(1)
	return 1, s.err
}

func TestSweepWorkerRunsUntilCancelled(t *testing.T) {
	target := &countingSweeper{}
	w := NewSweepWorker("tokens", target, 5*time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return target.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestSweepWorkerKeepsRunningAfterError(t *testing.T) {
	target := &countingSweeper{err: errors.New("boom")}
	w := NewSweepWorker("tokens", target, time.Hour, zerolog.Nop())

	err := w.sweep(context.Background())
	assert.EqualError(t, err, "failed to sweep tokens: boom")
	assert.Equal(t, int32(1), target.calls.Load())
}
