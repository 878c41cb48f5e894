package sched

import (
	"sync/atomic"
)

// ThreadState is the scheduling state of a lightweight [Thread].
//
// State Machine:
//
//	StateCreated (0)    → StateRunnable (1)   [Queue()]
//	StateRunnable (1)   → StateRunning (2)    [dispatcher resume, via CAS]
//	StateRunning (2)    → StateSuspending (3) [Sleep(), before the snapshot]
//	StateSuspending (3) → StateSleeping (4)   [Sleep(), snapshot complete, before vacating]
//	StateSleeping (4)   → StateRunnable (1)   [Queue() / QueueThread(), via CAS]
//	StateRunning (2)    → StateTerminated (5) [entry returned]
//
// Rules:
//   - StateSuspending is the "going to sleep" window, a thread in this state
//     must never be present in a run queue, and may not be queued
//   - StateSleeping is only ever stored after the thread has stopped touching
//     scheduler state, and before the guard lock is released
//   - StateTerminated is terminal
type ThreadState uint32

const (
	// StateCreated indicates the thread has been created but never queued.
	StateCreated ThreadState = iota
	// StateRunnable indicates the thread is present in exactly one run queue.
	StateRunnable
	// StateRunning indicates the thread currently holds an engine.
	StateRunning
	// StateSuspending indicates the thread is inside Sleep, and has not yet
	// completed its snapshot.
	StateSuspending
	// StateSleeping indicates the thread is suspended, owned by no engine,
	// waiting to be queued.
	StateSleeping
	// StateTerminated indicates the entry function has returned.
	StateTerminated
)

// String returns a human-readable representation of the state.
func (s ThreadState) String() string {
	switch s {
	case StateCreated:
		return "Created"
	case StateRunnable:
		return "Runnable"
	case StateRunning:
		return "Running"
	case StateSuspending:
		return "Suspending"
	case StateSleeping:
		return "Sleeping"
	case StateTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// DispatcherState is the observable state of a [Dispatcher].
//
//	DispatcherScanning      → DispatcherParked        [run queue empty]
//	DispatcherScanning      → DispatcherRunningThread [thread resumed]
//	DispatcherParked        → DispatcherScanning      [woken by QueueThread or Close]
//	DispatcherRunningThread → DispatcherScanning      [idle context restored]
//	DispatcherScanning      → DispatcherStopped       [closed, run queue drained]
type DispatcherState uint32

const (
	// DispatcherScanning indicates the dispatcher is consulting its run queue.
	DispatcherScanning DispatcherState = iota
	// DispatcherParked indicates the dispatcher is blocked waiting for work.
	DispatcherParked
	// DispatcherRunningThread indicates a lightweight thread holds the engine.
	DispatcherRunningThread
	// DispatcherStopped indicates the engine goroutine has exited.
	DispatcherStopped
)

// String returns a human-readable representation of the state.
func (s DispatcherState) String() string {
	switch s {
	case DispatcherScanning:
		return "Scanning"
	case DispatcherParked:
		return "Parked"
	case DispatcherRunningThread:
		return "RunningThread"
	case DispatcherStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// threadState is a lock-free thread state machine.
type threadState struct {
	v atomic.Uint32
}

func (s *threadState) Load() ThreadState {
	return ThreadState(s.v.Load())
}

// Store is only valid for irreversible states (StateTerminated).
func (s *threadState) Store(state ThreadState) {
	s.v.Store(uint32(state))
}

// TryTransition attempts to atomically transition from one state to another.
func (s *threadState) TryTransition(from, to ThreadState) bool {
	return s.v.CompareAndSwap(uint32(from), uint32(to))
}

// TransitionAny attempts each of validFrom in order, returning the state
// that was replaced, and whether any transition succeeded.
func (s *threadState) TransitionAny(validFrom []ThreadState, to ThreadState) (ThreadState, bool) {
	for _, from := range validFrom {
		if s.v.CompareAndSwap(uint32(from), uint32(to)) {
			return from, true
		}
	}
	return s.Load(), false
}

// dispatcherState is only written by the owning engine, and read by anyone.
type dispatcherState struct {
	v atomic.Uint32
}

func (s *dispatcherState) Load() DispatcherState {
	return DispatcherState(s.v.Load())
}

func (s *dispatcherState) Store(state DispatcherState) {
	s.v.Store(uint32(state))
}
