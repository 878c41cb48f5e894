package threadtimer

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/joeycumines/go-eventloop"
	"github.com/joeycumines/go-mnsched/sched"
	"github.com/joeycumines/logiface"
)

// ErrClosed is returned when scheduling on a closed Service.
var ErrClosed = errors.New("threadtimer: service closed")

// Func is a timer callback. It runs on a new lightweight thread, t, which
// terminates once the callback returns.
type Func func(t *sched.Thread, timer *Timer)

// Service provides timers for the lightweight threads of one scheduler.
//
// Deadlines are tracked by an event loop, running on its own goroutine, so a
// pending timer never occupies a dispatcher.
type Service struct {
	_ [0]func()

	sched  *sched.Scheduler
	loop   *eventloop.Loop
	logger *logiface.Logger[logiface.Event]
	cancel context.CancelFunc
	done   chan struct{}
	closed atomic.Bool
}

// Option configures a Service.
type Option func(*Service)

// WithLogger attaches a structured logger, used to report timers that could
// not be delivered.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return func(x *Service) {
		x.logger = logger
	}
}

// New starts a timer service for s. It must be closed to release its
// event loop.
func New(s *sched.Scheduler, opts ...Option) (*Service, error) {
	if s == nil {
		return nil, errors.New("threadtimer: nil scheduler")
	}

	loop, err := eventloop.New()
	if err != nil {
		return nil, fmt.Errorf("threadtimer: failed to create event loop: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	x := &Service{
		sched:  s,
		loop:   loop,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(x)
		}
	}

	go func() {
		defer close(x.done)
		if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, eventloop.ErrLoopTerminated) {
			x.logger.Err().
				Str("category", "threadtimer").
				Err(err).
				Log("event loop exited")
		}
	}()

	// wait for the loop to process a task, so timers scheduled from here on
	// are measured from a running loop
	ready := make(chan struct{})
	if err := loop.Submit(eventloop.Task{Runnable: func() { close(ready) }}); err != nil {
		cancel()
		<-x.done
		return nil, fmt.Errorf("threadtimer: failed to start event loop: %w", err)
	}
	select {
	case <-ready:
	case <-x.done:
		return nil, errors.New("threadtimer: event loop exited during startup")
	}

	return x, nil
}

// Close stops the service. Pending timers never fire.
func (x *Service) Close() error {
	if !x.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := x.loop.Shutdown(ctx)
	x.cancel()
	<-x.done
	if errors.Is(err, eventloop.ErrLoopTerminated) {
		err = nil
	}
	return err
}

// AfterFunc starts a timer that calls fn, on a new lightweight thread, once
// d has elapsed, unless canceled first.
func (x *Service) AfterFunc(d time.Duration, fn Func) (*Timer, error) {
	if fn == nil {
		return nil, errors.New("threadtimer: nil timer func")
	}
	timer := &Timer{
		svc: x,
		fn:  fn,
	}
	if err := timer.start(d); err != nil {
		return nil, err
	}
	return timer, nil
}

// Sleep suspends t, which must be the calling thread, until d has elapsed.
// The thread may resume on any dispatcher. If the service is closed while
// re-arming an early expiry, t is woken before d, and ErrClosed is returned.
func (x *Service) Sleep(t *sched.Thread, d time.Duration) error {
	var (
		mu       sched.SpinLock
		fired    bool
		wakeErr  error
		deadline = time.Now().Add(d)
		wake     func()
	)

	wake = func() {
		var err error
		if remaining := time.Until(deadline); remaining > 0 {
			// the loop fired early
			if _, err = x.schedule(remaining, wake); err == nil {
				return
			}
		}
		mu.Lock()
		defer mu.Unlock()
		fired = true
		wakeErr = err
		// holding mu means t is asleep
		if err := t.Queue(); err != nil {
			x.logger.Err().
				Str("category", "threadtimer").
				Uint64("thread", t.ID()).
				Err(err).
				Log("failed to wake sleeping thread")
		}
	}

	mu.Lock()
	if _, err := x.schedule(d, wake); err != nil {
		mu.Unlock()
		return err
	}

	for !fired {
		t.Sleep(&mu)
		mu.Lock()
	}
	err := wakeErr
	mu.Unlock()

	return err
}

// schedule arms a loop timer. The loop measures delay from its cached tick
// time, which may be stale, so fn can run before delay has elapsed. Callers
// track their own deadline, and re-arm for the remainder.
func (x *Service) schedule(d time.Duration, fn func()) (eventloop.TimerID, error) {
	if x.closed.Load() {
		return 0, ErrClosed
	}
	id, err := x.loop.ScheduleTimer(d, fn)
	if err != nil {
		return 0, fmt.Errorf("threadtimer: failed to schedule timer: %w", err)
	}
	return id, nil
}

// deliver runs fn on a new thread.
func (x *Service) deliver(timer *Timer) {
	_, err := x.sched.Go(func(t *sched.Thread) any {
		timer.fn(t, timer)
		return nil
	}, sched.WithName("threadtimer"))
	if err != nil {
		x.logger.Err().
			Str("category", "threadtimer").
			Err(err).
			Log("failed to start timer thread")
	}
}
