// Package threadsync provides blocking synchronization primitives for the
// lightweight threads of package sched.
//
// Every primitive is a thin layer over the sched sleep/wake protocol: state is
// guarded by a sched.SpinLock, a blocked thread records itself as a waiter
// then sleeps on that guard, and a waker takes the guard before queuing it.
package threadsync
