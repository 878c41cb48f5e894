package threadsync

import (
	"fmt"

	"github.com/joeycumines/go-mnsched/sched"
)

// Mutex is a mutual exclusion lock for lightweight threads. A thread that
// blocks in Lock sleeps, giving up its dispatcher, rather than spinning.
//
// Ownership is handed directly to the longest waiting thread on Unlock, so
// waiters acquire the lock in FIFO order.
//
// The zero value is an unlocked mutex. A Mutex must not be copied after first
// use.
type Mutex struct {
	_ [0]func()

	owner   *sched.Thread
	waiters []*sched.Thread
	guard   sched.SpinLock
}

// Lock acquires the mutex on behalf of t, which must be the calling thread.
// The mutex is not reentrant.
func (m *Mutex) Lock(t *sched.Thread) {
	m.guard.Lock()
	if m.owner == nil {
		m.owner = t
		m.guard.Unlock()
		return
	}
	if m.owner == t {
		m.guard.Unlock()
		panic(fmt.Errorf("threadsync: thread %d locked Mutex twice", t.ID()))
	}

	m.waiters = append(m.waiters, t)
	for {
		t.Sleep(&m.guard)
		m.guard.Lock()
		if m.owner == t {
			m.guard.Unlock()
			return
		}
	}
}

// TryLock acquires the mutex on behalf of t, if it is not held.
func (m *Mutex) TryLock(t *sched.Thread) bool {
	m.guard.Lock()
	defer m.guard.Unlock()
	if m.owner != nil {
		return false
	}
	m.owner = t
	return true
}

// Unlock releases the mutex, waking the next waiter, if any. It may be
// called by any thread (or goroutine), not just the owner. Unlocking an
// unlocked Mutex panics.
func (m *Mutex) Unlock() {
	m.guard.Lock()
	defer m.guard.Unlock()

	if m.owner == nil {
		panic("threadsync: unlock of unlocked Mutex")
	}

	if len(m.waiters) == 0 {
		m.owner = nil
		return
	}

	next := m.waiters[0]
	m.waiters[0] = nil
	m.waiters = m.waiters[1:]
	m.owner = next
	wake(next)
}

// Owner returns the thread holding the mutex, or nil.
func (m *Mutex) Owner() *sched.Thread {
	m.guard.Lock()
	defer m.guard.Unlock()
	return m.owner
}

// wake queues a thread that is sleeping on a guard held by the caller.
func wake(t *sched.Thread) {
	if err := t.Queue(); err != nil {
		panic(fmt.Errorf("threadsync: failed to wake thread %d: %w", t.ID(), err))
	}
}
