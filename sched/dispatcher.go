package sched

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// Dispatcher is one engine of a Scheduler: a goroutine (by default locked to
// its own OS thread) that repeatedly takes a thread from its run queue, runs
// it until it sleeps or terminates, and parks when there is nothing to run.
//
// Dispatchers are created by New, and live until the scheduler is closed.
type Dispatcher struct {
	// Prevent copying
	_ [0]func()

	sched *Scheduler

	// runCV is signalled, under runMu, when sleeping is cleared
	runCV *sync.Cond

	// current is the thread holding the engine, nil while idle
	current atomic.Pointer[Thread]

	runQueue threadQueue

	idle idleContext

	id int

	// runQueueLock guards runQueue and stopped
	runQueueLock SpinLock

	// runMu guards the park/unpark handshake, see sleeping
	runMu sync.Mutex

	// sleeping is set (under runQueueLock) just before parking, and cleared
	// (under runMu) by whoever wakes the dispatcher
	sleeping atomic.Bool

	stopped bool

	state dispatcherState

	wakeups atomic.Uint64
}

func newDispatcher(s *Scheduler, id int) *Dispatcher {
	d := &Dispatcher{
		sched: s,
		id:    id,
	}
	d.runCV = sync.NewCond(&d.runMu)
	d.idle.init(d)
	return d
}

// ID returns the dispatcher's index within its scheduler.
func (d *Dispatcher) ID() int { return d.id }

// State returns the dispatcher's current state.
func (d *Dispatcher) State() DispatcherState { return d.state.Load() }

// Current returns the thread holding the engine, or nil.
func (d *Dispatcher) Current() *Thread { return d.current.Load() }

// Wakeups returns the number of times the dispatcher has returned from being
// parked.
func (d *Dispatcher) Wakeups() uint64 { return d.wakeups.Load() }

// QueueLen returns the number of threads in the run queue.
func (d *Dispatcher) QueueLen() int {
	d.runQueueLock.Lock()
	defer d.runQueueLock.Unlock()
	return d.runQueue.Len()
}

// QueueThread makes t runnable on this dispatcher, waking it if parked. The
// thread must belong to the dispatcher's scheduler, and must be either newly
// created or sleeping, otherwise a *TransitionError is returned.
//
// QueueThread may be called from any goroutine, including lightweight
// threads running on any dispatcher. To wake a thread that sleeps on a guard
// lock, hold that lock while calling QueueThread (or Thread.Queue).
func (d *Dispatcher) QueueThread(t *Thread) error {
	s := d.sched
	if t.sched != s {
		return fmt.Errorf("sched: thread %d belongs to a different scheduler", t.id)
	}

	from, ok := t.state.TransitionAny([]ThreadState{StateSleeping, StateCreated}, StateRunnable)
	if !ok {
		return &TransitionError{ThreadID: t.id, From: from, To: StateRunnable}
	}
	s.activate()
	t.stampQueued()

	d.runQueueLock.Lock()
	if d.stopped {
		d.runQueueLock.Unlock()
		t.state.TryTransition(StateRunnable, from)
		s.deactivate()
		return ErrSchedulerClosed
	}
	d.runQueue.Push(t)
	depth := d.runQueue.Len()
	wake := d.sleeping.Load()
	d.runQueueLock.Unlock()

	if wake {
		d.runMu.Lock()
		d.sleeping.Store(false)
		d.runMu.Unlock()
		d.runCV.Broadcast()
		if m := s.metrics; m != nil {
			m.wakes.Add(1)
		}
	}

	if m := s.metrics; m != nil {
		m.queues[d.id].update(depth)
	}
	s.log.queueDepth(d, depth, s.opts.queueDepthWarning)

	return nil
}

// dispatch returns the next thread to run, parking while there is none, or
// nil once the dispatcher is stopped and the run queue is empty.
func (d *Dispatcher) dispatch() *Thread {
	for {
		d.state.Store(DispatcherScanning)

		d.runQueueLock.Lock()
		if t := d.runQueue.Pop(); t != nil {
			depth := d.runQueue.Len()
			d.runQueueLock.Unlock()
			if m := d.sched.metrics; m != nil {
				m.queues[d.id].update(depth)
			}
			return t
		}
		if d.stopped {
			d.runQueueLock.Unlock()
			d.state.Store(DispatcherStopped)
			return nil
		}
		// any QueueThread after this point observes sleeping
		d.sleeping.Store(true)
		d.runQueueLock.Unlock()

		d.park()
	}
}

func (d *Dispatcher) park() {
	s := d.sched

	d.state.Store(DispatcherParked)
	if m := s.metrics; m != nil {
		m.parks.Add(1)
	}
	s.log.dispatcherEvent(s.log.l.Trace(), d).
		Log("dispatcher parked")

	d.runMu.Lock()
	for d.sleeping.Load() {
		d.runCV.Wait()
	}
	d.runMu.Unlock()

	d.wakeups.Add(1)
	s.log.dispatcherEvent(s.log.l.Trace(), d).
		Log("dispatcher unparked")
}

// resume gives the engine to t, which must be Runnable. Must be called from
// the idle context.
func (d *Dispatcher) resume(t *Thread) {
	s := d.sched

	if !t.state.TryTransition(StateRunnable, StateRunning) {
		s.log.contractViolation(t, &TransitionError{ThreadID: t.id, From: t.state.Load(), To: StateRunning})
	}

	if m := s.metrics; m != nil {
		now := time.Now()
		if queuedAt := t.queuedAt.Load(); queuedAt != 0 {
			m.latency.record(time.Duration(now.UnixNano() - queuedAt))
		}
		m.resumed.Add(1)
		m.resumeRate.record(now)
	}

	d.current.Store(t)
	t.engine.Store(d)
	d.state.Store(DispatcherRunningThread)

	t.ctx.restore(d)
}

// stop prevents further queuing, and wakes the dispatcher if parked, so it
// exits once it has drained its run queue.
func (d *Dispatcher) stop() {
	d.runQueueLock.Lock()
	d.stopped = true
	d.runQueueLock.Unlock()

	d.runMu.Lock()
	d.sleeping.Store(false)
	d.runMu.Unlock()
	d.runCV.Broadcast()
}

// run is the engine goroutine.
func (d *Dispatcher) run() {
	s := d.sched
	defer s.wg.Done()

	if s.opts.lockOSThread {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
	}

	s.log.dispatcherEvent(s.log.l.Debug(), d).
		Log("dispatcher started")

	d.idle.start()

	s.log.dispatcherEvent(s.log.l.Debug(), d).
		Log("dispatcher stopped")
}
