package sched

// execContext is the saved execution state of a lightweight thread.
//
// The thread's goroutine is its stack. While that goroutine is blocked in
// capture, the context is "parked, owned by no engine"; restore moves
// ownership to the engine passed as the token, and the goroutine continues
// from the point it captured, as if capture had returned a second time.
//
// The resume slot holds at most one token. A restore that finds the slot
// occupied means two engines tried to resume the same context, which is
// raised as a *ContractViolation (ErrContextReused), never silently queued.
type execContext struct {
	resume chan *Dispatcher
}

// initialize builds a new context that, when first restored, runs entry on
// a fresh goroutine, passing the restoring engine.
func (c *execContext) initialize(entry func(d *Dispatcher)) {
	c.resume = make(chan *Dispatcher, 1)
	go func() {
		if d, ok := <-c.resume; ok {
			entry(d)
		}
	}()
}

// release discards a context that was never restored, ending its goroutine
// without running entry.
func (c *execContext) release() {
	close(c.resume)
}

// capture blocks until the context is restored, returning the engine that
// now owns it.
func (c *execContext) capture() *Dispatcher {
	return <-c.resume
}

// restore transfers control to the context, on engine d. The caller must
// not touch the context's owner after this call.
func (c *execContext) restore(d *Dispatcher) {
	select {
	case c.resume <- d:
	default:
		panic(&ContractViolation{Err: ErrContextReused})
	}
}
