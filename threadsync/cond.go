package threadsync

import (
	"github.com/joeycumines/go-mnsched/sched"
)

// Cond is a condition variable for lightweight threads, paired with a Mutex.
//
// Signal and Broadcast may be called with or without the associated Mutex
// held, from a lightweight thread or any other goroutine.
type Cond struct {
	_ [0]func()

	waiters []*sched.Thread
	guard   sched.SpinLock
}

// Wait atomically unlocks m and suspends t, which must be the calling thread,
// and holds m. It re-locks m before returning. As with sync.Cond, callers
// must re-check their condition in a loop.
func (c *Cond) Wait(t *sched.Thread, m *Mutex) {
	c.guard.Lock()
	c.waiters = append(c.waiters, t)
	// a Signal cannot find t until the guard is released, by which point t
	// is asleep
	m.Unlock()
	t.Sleep(&c.guard)
	m.Lock(t)
}

// Signal wakes the longest waiting thread, if any.
func (c *Cond) Signal() {
	c.guard.Lock()
	defer c.guard.Unlock()
	if len(c.waiters) == 0 {
		return
	}
	next := c.waiters[0]
	c.waiters[0] = nil
	c.waiters = c.waiters[1:]
	wake(next)
}

// Broadcast wakes all waiting threads.
func (c *Cond) Broadcast() {
	c.guard.Lock()
	defer c.guard.Unlock()
	waiters := c.waiters
	c.waiters = nil
	for _, t := range waiters {
		wake(t)
	}
}
