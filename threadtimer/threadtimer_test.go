package threadtimer

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joeycumines/go-eventloop"
	"github.com/joeycumines/go-mnsched/sched"
	"github.com/joeycumines/go-mnsched/threadsync"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, n int) (*sched.Scheduler, *Service) {
	t.Helper()
	s, err := sched.New(n)
	require.NoError(t, err)
	svc, err := New(s)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = svc.Close()
		_ = s.Close()
	})
	return s, svc
}

func join(t *testing.T, th *sched.Thread) any {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	v, err := th.Join(ctx)
	require.NoError(t, err)
	return v
}

func TestService_Sleep(t *testing.T) {
	s, svc := newTestService(t, 2)

	const delay = 30 * time.Millisecond
	th, err := s.Go(func(t *sched.Thread) any {
		start := time.Now()
		if err := svc.Sleep(t, delay); err != nil {
			return err
		}
		return time.Since(start)
	}, sched.Joinable())
	require.NoError(t, err)

	require.Eventually(t, func() bool { return th.State() == sched.StateSleeping }, 5*time.Second, time.Millisecond)

	v := join(t, th)
	elapsed, ok := v.(time.Duration)
	require.True(t, ok, "got %v", v)
	assert.GreaterOrEqual(t, elapsed, delay)
}

func TestService_SleepNeverWakesEarly(t *testing.T) {
	s, svc := newTestService(t, 4)

	threads, sleeps := 200, 5
	if testing.Short() {
		threads = 20
	}
	const delay = 5 * time.Millisecond

	var (
		early    atomic.Int64
		shortest atomic.Int64
	)
	shortest.Store(int64(time.Hour))

	all := make([]*sched.Thread, threads)
	for i := range all {
		th, err := s.Go(func(t *sched.Thread) any {
			for range sleeps {
				start := time.Now()
				if err := svc.Sleep(t, delay); err != nil {
					return err
				}
				elapsed := time.Since(start)
				if elapsed < delay {
					early.Add(1)
				}
				for {
					v := shortest.Load()
					if int64(elapsed) >= v || shortest.CompareAndSwap(v, int64(elapsed)) {
						break
					}
				}
			}
			return nil
		}, sched.Joinable())
		require.NoError(t, err)
		all[i] = th
	}
	for _, th := range all {
		assert.Nil(t, join(t, th))
	}

	assert.Zero(t, early.Load(), "shortest sleep %s", time.Duration(shortest.Load()))
	assert.GreaterOrEqual(t, time.Duration(shortest.Load()), delay)
}

func TestTimer_NeverFiresEarly(t *testing.T) {
	_, svc := newTestService(t, 2)

	const (
		timers = 100
		delay  = 5 * time.Millisecond
	)

	elapsed := make(chan time.Duration, timers)
	for range timers {
		start := time.Now()
		_, err := svc.AfterFunc(delay, func(*sched.Thread, *Timer) {
			elapsed <- time.Since(start)
		})
		require.NoError(t, err)
	}

	for range timers {
		select {
		case d := <-elapsed:
			assert.GreaterOrEqual(t, d, delay)
		case <-time.After(5 * time.Second):
			t.Fatal("timer did not fire")
		}
	}
}

func TestService_SleepDoesNotBlockDispatcher(t *testing.T) {
	s, svc := newTestService(t, 1)

	sleeper, err := s.Go(func(t *sched.Thread) any {
		return svc.Sleep(t, 200*time.Millisecond)
	}, sched.Joinable())
	require.NoError(t, err)
	require.Eventually(t, func() bool { return sleeper.State() == sched.StateSleeping }, 5*time.Second, time.Millisecond)

	other, err := s.Go(func(*sched.Thread) any { return "ran" }, sched.Joinable())
	require.NoError(t, err)
	assert.Equal(t, "ran", join(t, other))
	assert.Equal(t, sched.StateSleeping, sleeper.State())

	assert.Nil(t, join(t, sleeper))
}

func TestTimer_FiresOnLightweightThread(t *testing.T) {
	_, svc := newTestService(t, 2)

	fired := make(chan *sched.Thread, 1)
	timer, err := svc.AfterFunc(10*time.Millisecond, func(th *sched.Thread, timer *Timer) {
		assert.False(t, timer.IsCanceled())
		assert.Equal(t, sched.StateRunning, th.State())
		assert.Equal(t, "threadtimer", th.Name())
		fired <- th
	})
	require.NoError(t, err)

	select {
	case th := <-fired:
		assert.NotNil(t, th)
	case <-time.After(5 * time.Second):
		t.Fatal("timer did not fire")
	}
	assert.False(t, timer.Cancel(), "already fired")
	assert.True(t, timer.IsCanceled())
}

func TestTimer_Cancel(t *testing.T) {
	_, svc := newTestService(t, 1)

	var fired atomic.Bool
	timer, err := svc.AfterFunc(50*time.Millisecond, func(*sched.Thread, *Timer) {
		fired.Store(true)
	})
	require.NoError(t, err)

	assert.True(t, timer.Cancel())
	assert.True(t, timer.IsCanceled())
	assert.False(t, timer.Cancel())

	time.Sleep(150 * time.Millisecond)
	assert.False(t, fired.Load())
}

// TestTimer_CondWake is the timer test pattern: a thread waits on a
// condition variable, which a timer callback broadcasts under the same
// mutex.
func TestTimer_CondWake(t *testing.T) {
	s, svc := newTestService(t, 2)

	const iterations = 5

	var (
		mu threadsync.Mutex
		cv threadsync.Cond
	)

	th, err := s.Go(func(t *sched.Thread) any {
		count := 0
		mu.Lock(t)
		defer mu.Unlock()
		for count < iterations {
			var woken bool
			_, err := svc.AfterFunc(5*time.Millisecond, func(t *sched.Thread, timer *Timer) {
				mu.Lock(t)
				defer mu.Unlock()
				if timer.IsCanceled() {
					return
				}
				woken = true
				cv.Broadcast()
			})
			if err != nil {
				return err
			}
			for !woken {
				cv.Wait(t, &mu)
			}
			count++
		}
		return count
	}, sched.Joinable())
	require.NoError(t, err)

	assert.Equal(t, iterations, join(t, th))
}

func TestNew_WaitsForLoop(t *testing.T) {
	for range 20 {
		s, err := sched.New(1)
		require.NoError(t, err)
		svc, err := New(s)
		require.NoError(t, err)
		assert.NotEqual(t, eventloop.StateAwake, svc.loop.State())
		require.NoError(t, svc.Close())
		require.NoError(t, s.Close())
	}
}

func TestService_Closed(t *testing.T) {
	s, err := sched.New(1)
	require.NoError(t, err)
	defer s.Close()

	svc, err := New(s)
	require.NoError(t, err)
	require.NoError(t, svc.Close())
	require.ErrorIs(t, svc.Close(), ErrClosed)

	_, err = svc.AfterFunc(time.Millisecond, func(*sched.Thread, *Timer) {})
	require.ErrorIs(t, err, ErrClosed)
}
