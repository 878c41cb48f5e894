// Package threadtimer provides timers and timed sleeps for the lightweight
// threads of package sched, backed by a go-eventloop timer heap.
//
// Expired timers wake sleeping threads using the sched guard protocol, and
// timer callbacks run on freshly created lightweight threads, so they may
// use blocking primitives such as threadsync.Mutex.
package threadtimer
