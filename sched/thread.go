package sched

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Entry is the application function run by a lightweight thread. The thread
// itself is passed, to allow calling Sleep, and the returned value is made
// available to Join.
type Entry func(t *Thread) any

// Thread is a lightweight, cooperatively scheduled thread of execution.
//
// A thread runs on at most one Dispatcher at a time, and only gives up its
// dispatcher by calling Sleep or returning from its Entry. It may resume on
// a different dispatcher from the one it slept on.
//
// Instances must be created using Scheduler.NewThread (or NewThread).
type Thread struct {
	_ [0]func()

	sched *Scheduler
	entry Entry
	name  string

	// ctx is the saved execution context, see execContext
	ctx execContext

	// engine is the dispatcher currently running the thread, only valid
	// while StateRunning
	engine atomic.Pointer[Dispatcher]

	// queuedAt is the UnixNano of the last Queue, if metrics are enabled
	queuedAt atomic.Int64

	// done is closed on termination, after result and err are set
	done   chan struct{}
	result any
	err    error

	id       uint64
	state    threadState
	joinable bool
}

// ID returns the thread's identity, unique for the lifetime of its scheduler.
func (t *Thread) ID() uint64 { return t.id }

// Name returns the name given using WithName, if any.
func (t *Thread) Name() string { return t.name }

// Scheduler returns the scheduler that owns the thread.
func (t *Thread) Scheduler() *Scheduler { return t.sched }

// State returns the current scheduling state. The value may be stale by the
// time it is observed, unless the caller holds whatever guard lock the thread
// sleeps on.
func (t *Thread) State() ThreadState { return t.state.Load() }

// Engine returns the dispatcher currently running the thread, or nil if the
// thread is not running.
func (t *Thread) Engine() *Dispatcher { return t.engine.Load() }

// Joinable reports whether the thread was created with Joinable.
func (t *Thread) Joinable() bool { return t.joinable }

// Done returns a channel that is closed once the thread has terminated.
func (t *Thread) Done() <-chan struct{} { return t.done }

// Queue makes the thread runnable, on the dispatcher selected by the
// scheduler's Placement. It is valid only for a thread that has never been
// queued, or one that is sleeping, see Dispatcher.QueueThread.
func (t *Thread) Queue() error {
	s := t.sched
	n := len(s.dispatchers)
	i := s.placement.Place(t.id, n)
	if i < 0 || i >= n {
		return fmt.Errorf("sched: placement selected dispatcher %d of %d", i, n)
	}
	return s.dispatchers[i].QueueThread(t)
}

// Sleep suspends the calling thread, releasing guard only once the thread's
// execution context has been vacated, then returns after some other party
// queues the thread again (e.g. via Queue). It must be called by the thread
// itself, while running, and while holding guard, which is typically the lock
// protecting the condition being waited on. Any waker must take guard before
// queuing the thread, which guarantees the thread is fully suspended by the
// time it can be resumed, possibly on another dispatcher.
//
// Sleep returns WITHOUT guard held. Callers re-acquire it and re-evaluate
// their condition. A nil guard is allowed, in which case the thread may be
// queued as soon as it is Sleeping.
//
// Only guard is released. Any other lock held by the caller stays held for
// the duration of the sleep.
func (t *Thread) Sleep(guard sync.Locker) {
	s := t.sched

	d := t.engine.Load()
	if d == nil || d.current.Load() != t {
		s.log.contractViolation(t, ErrNotRunning)
	}

	d.current.Store(nil)

	// going to sleep: the thread may not be queued from here until Sleeping
	if !t.state.TryTransition(StateRunning, StateSuspending) {
		s.log.contractViolation(t, &TransitionError{ThreadID: t.id, From: t.state.Load(), To: StateSuspending})
	}
	t.engine.Store(nil)

	if m := s.metrics; m != nil {
		m.slept.Add(1)
	}

	// The snapshot is the capture below, nothing past this point touches the
	// thread's scheduling state. Clearing the suspending flag happens-before
	// vacating (handoff), which happens-before guard is released (by the
	// idle context), which happens-before any waker can queue the thread.
	t.state.TryTransition(StateSuspending, StateSleeping)
	s.deactivate()
	d.idle.handoff(guard)

	// resumed: some dispatcher restored the context, Running on it
	t.ctx.capture()
}

// Join blocks the calling goroutine until the thread terminates, returning
// the value returned by its Entry. If the entry panicked, the error will be
// a *PanicError. Join is intended for use from outside the scheduler (e.g.
// from main): calling it from a lightweight thread blocks that thread's
// dispatcher, without yielding.
//
// Any number of calls to Join may observe the same completion. The thread is
// removed from its scheduler's registry by the first.
func (t *Thread) Join(ctx context.Context) (any, error) {
	if !t.joinable {
		return nil, ErrNotJoinable
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-t.done:
	}
	t.sched.registry.remove(t.id)
	return t.result, t.err
}

// top is the context entry point, it runs the entry on the first restore,
// and is responsible for termination.
func (t *Thread) top(*Dispatcher) {
	s := t.sched

	result, err := t.run()

	// the engine at exit may differ from the first engine
	d := t.engine.Load()
	d.current.Store(nil)
	t.engine.Store(nil)

	t.result, t.err = result, err
	if !t.state.TryTransition(StateRunning, StateTerminated) {
		s.log.contractViolation(t, &TransitionError{ThreadID: t.id, From: t.state.Load(), To: StateTerminated})
	}
	s.deactivate()
	if m := s.metrics; m != nil {
		m.terminated.Add(1)
	}

	s.log.threadEvent(s.log.l.Trace(), t).
		Int("dispatcher", d.id).
		Log("thread terminated")

	close(t.done)
	if !t.joinable {
		s.registry.remove(t.id)
	}

	// the goroutine exits, releasing the stack
	d.idle.handoff(nil)
}

// run calls the entry with panic recovery.
func (t *Thread) run() (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			if v, ok := r.(*ContractViolation); ok {
				panic(v)
			}
			err = &PanicError{Value: r, ThreadID: t.id}
			s := t.sched
			s.log.threadEvent(s.log.l.Err(), t).
				Err(err).
				Log("thread panicked")
		}
	}()
	return t.entry(t), nil
}

// stampQueued records the start of the Runnable interval, for metrics.
func (t *Thread) stampQueued() {
	if t.sched.metrics != nil {
		t.queuedAt.Store(time.Now().UnixNano())
	}
}
