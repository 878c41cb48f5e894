package sched

import (
	"bytes"
	"context"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/stretchr/testify/require"
)

// newTestScheduler creates a scheduler that is closed on test cleanup.
func newTestScheduler(t *testing.T, n int, opts ...Option) *Scheduler {
	t.Helper()
	s, err := New(n, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// joinAll joins every thread, failing the test on error or timeout.
func joinAll(t *testing.T, threads ...*Thread) []any {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	results := make([]any, len(threads))
	for i, th := range threads {
		v, err := th.Join(ctx)
		require.NoError(t, err, "thread %d", th.ID())
		results[i] = v
	}
	return results
}

// waitForState polls until th reaches want.
func waitForState(t *testing.T, th *Thread, want ThreadState) {
	t.Helper()
	require.Eventually(t, func() bool {
		return th.State() == want
	}, 5*time.Second, time.Millisecond, "thread %d never reached %s", th.ID(), want)
}

// checkNumGoroutines returns a func that fails the test if the number of
// goroutines has not returned to the starting count within timeout.
func checkNumGoroutines(timeout time.Duration) func(t *testing.T) {
	before := runtime.NumGoroutine()
	return func(t *testing.T) {
		t.Helper()
		deadline := time.Now().Add(timeout)
		for {
			after := runtime.NumGoroutine()
			if after <= before {
				return
			}
			if time.Now().After(deadline) {
				t.Errorf("goroutine leak: %d before, %d after", before, after)
				return
			}
			time.Sleep(10 * time.Millisecond)
		}
	}
}

// gate is a one-shot barrier, built only from Sleep and Queue.
type gate struct {
	mu      SpinLock
	waiters []*Thread
	open    bool
}

func (g *gate) wait(t *Thread) {
	g.mu.Lock()
	for !g.open {
		g.waiters = append(g.waiters, t)
		t.Sleep(&g.mu)
		g.mu.Lock()
	}
	g.mu.Unlock()
}

// numWaiters returns the number of threads that are fully asleep.
func (g *gate) numWaiters() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.waiters)
}

func (g *gate) release() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.open = true
	waiters := g.waiters
	g.waiters = nil
	for _, w := range waiters {
		if err := w.Queue(); err != nil {
			return err
		}
	}
	return nil
}

// syncBuffer is a bytes.Buffer safe for use as a log writer by many
// dispatchers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (x *syncBuffer) Write(p []byte) (int, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.buf.Write(p)
}

func (x *syncBuffer) String() string {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.buf.String()
}

func newTestLogger(w *syncBuffer, level logiface.Level) *logiface.Logger[logiface.Event] {
	return stumpy.L.New(
		stumpy.L.WithStumpy(
			stumpy.WithWriter(w),
			stumpy.WithTimeField(``),
		),
		stumpy.L.WithLevel(level),
	).Logger()
}
