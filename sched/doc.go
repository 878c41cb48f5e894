// Package sched provides an M:N cooperative scheduler, multiplexing many
// lightweight threads over a fixed set of engines ([Dispatcher]).
//
// # Architecture
//
// A [Scheduler] owns N dispatchers, each an engine goroutine that is, by
// default, locked to its own OS thread. Every dispatcher has a FIFO run
// queue, guarded by a [SpinLock], and an idle context (the trampoline) that
// runs whenever no lightweight thread holds the engine. The idle context
// pops a thread, resumes it, and waits for the engine to be handed back.
//
// A [Thread] holds its engine until it calls [Thread.Sleep] or its [Entry]
// returns. There is no preemption, no time slicing, and no work stealing.
//
// # Sleep and Wake
//
// Sleep is the only suspension point, and it takes a guard lock, which the
// caller must hold. The guard is released by the idle context, only after
// the sleeping thread has vacated its execution context. Any party that
// wakes a thread does so by acquiring the same guard, then queuing it
// ([Thread.Queue] or [Dispatcher.QueueThread]). This is the handoff that
// guarantees a thread is never resumed on a second engine before it has
// finished suspending on the first.
//
//	var (
//	    mu    sched.SpinLock
//	    ready bool
//	)
//	// waiter, running as a lightweight thread
//	mu.Lock()
//	for !ready {
//	    t.Sleep(&mu)
//	    mu.Lock()
//	}
//	mu.Unlock()
//	// waker, anywhere
//	mu.Lock()
//	ready = true
//	_ = waiter.Queue()
//	mu.Unlock()
//
// Layered primitives (mutexes, condition variables, timers) are built on
// exactly this protocol, see the threadsync and threadtimer packages.
//
// # Thread States
//
// See [ThreadState] for the full state machine. In brief, a thread is
// Created, Runnable (in exactly one run queue), Running (holding exactly one
// engine), Suspending (inside Sleep, not yet vacated), Sleeping (owned by no
// engine), or Terminated.
//
// # Usage
//
//	s, err := sched.New(4, sched.WithLogger(logger))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer s.Close()
//
//	t, err := s.NewThread(func(t *sched.Thread) any {
//	    return "done"
//	}, sched.Joinable())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := t.Queue(); err != nil {
//	    log.Fatal(err)
//	}
//	result, err := t.Join(context.Background())
//
// A process-wide default scheduler may be installed using [Setup], after
// which the package-level [NewThread] and [Go] may be used.
package sched
