package sched

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// spinsBeforeYield bounds pure busy-waiting, after which Lock yields the
// processor between attempts, so a holder that was descheduled by the Go
// runtime can make progress.
const spinsBeforeYield = 64

// SpinLock is a minimal busy-waiting mutual exclusion lock, for critical
// sections of O(1) length that are shared across dispatchers (run queues,
// the thread registry, and the guard locks of layered primitives).
//
// It is not reentrant, and must never be held across a blocking call, or
// across a context handoff, with the single exception of the guard passed to
// [Thread.Sleep], which is released on the thread's behalf.
//
// The zero value is an unlocked lock. A SpinLock must not be copied after
// first use.
type SpinLock struct {
	_     [0]func()
	state atomic.Uint32
}

var _ sync.Locker = (*SpinLock)(nil)

// Lock busy-waits until the lock is acquired.
func (x *SpinLock) Lock() {
	for spins := 0; ; spins++ {
		if x.state.Load() == 0 && x.state.CompareAndSwap(0, 1) {
			return
		}
		if spins >= spinsBeforeYield {
			runtime.Gosched()
		}
	}
}

// TryLock attempts to acquire the lock without waiting.
func (x *SpinLock) TryLock() bool {
	return x.state.CompareAndSwap(0, 1)
}

// Unlock releases the lock. Unlocking an unlocked SpinLock panics.
func (x *SpinLock) Unlock() {
	if !x.state.CompareAndSwap(1, 0) {
		panic("sched: unlock of unlocked SpinLock")
	}
}
