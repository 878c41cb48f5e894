package sched

import (
	"sync"
)

// idleContext is the per-dispatcher trampoline. It runs on the dispatcher's
// engine goroutine whenever no lightweight thread holds the engine, and is
// never queued.
//
// A thread gives the engine back by calling handoff, which restores the idle
// context. Any lock stashed by handoff is released by the idle context, i.e.
// only after the thread has stopped touching its own state.
type idleContext struct {
	disp *Dispatcher
	ctx  execContext

	// pendingUnlock is written by the thread that holds the engine, right
	// before handoff, and read (then cleared) by the idle context, right
	// after it regains control. The restore orders the two.
	pendingUnlock sync.Locker
}

func (x *idleContext) init(d *Dispatcher) {
	x.disp = d
	// unlike a thread's, the idle context starts out running, on the engine
	// goroutine, so there is no goroutine to spawn
	x.ctx.resume = make(chan *Dispatcher, 1)
}

// handoff gives the engine back to the idle context, which will unlock lock
// (if non-nil). The caller must not touch scheduler state afterwards.
func (x *idleContext) handoff(lock sync.Locker) {
	x.pendingUnlock = lock
	x.ctx.restore(x.disp)
}

func (x *idleContext) takePendingUnlock() sync.Locker {
	lock := x.pendingUnlock
	x.pendingUnlock = nil
	return lock
}

// start runs the trampoline loop, until the dispatcher is stopped and its run
// queue is empty.
func (x *idleContext) start() {
	for {
		if lock := x.takePendingUnlock(); lock != nil {
			lock.Unlock()
		}

		t := x.disp.dispatch()
		if t == nil {
			return
		}

		x.disp.resume(t)

		// blocks until the thread sleeps or terminates
		x.ctx.capture()
	}
}
