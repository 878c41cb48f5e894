package main

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/joeycumines/go-mnsched/sched"
	"github.com/joeycumines/go-mnsched/threadsync"
	"github.com/joeycumines/go-mnsched/threadtimer"
)

const (
	timerTestDelay   = 100 * time.Millisecond
	sleepTestDelay   = 150 * time.Millisecond
	cancelTestPeriod = 100 * time.Millisecond
	cancelTestRun    = 499 * time.Millisecond
	cancelTestPause  = 100 * time.Millisecond
	cancelTestRearm  = 50 * time.Millisecond
)

type harness struct {
	svc      *threadtimer.Service
	out      *lineWriter
	maxCount int

	// timer test
	timerMu threadsync.Mutex
	timerCV threadsync.Cond

	// cancel test
	cancelMu    threadsync.Mutex
	cancelTimer *threadtimer.Timer
}

// timerTest waits on a condition variable, broadcast by a timer, until
// maxCount iterations have passed.
func (h *harness) timerTest(t *sched.Thread) any {
	h.timerMu.Lock(t)
	defer h.timerMu.Unlock()

	for counter := 1; ; counter++ {
		fired := false
		if _, err := h.svc.AfterFunc(timerTestDelay, func(t *sched.Thread, timer *threadtimer.Timer) {
			h.timerMu.Lock(t)
			defer h.timerMu.Unlock()
			if timer.IsCanceled() {
				return
			}
			fired = true
			h.timerCV.Broadcast()
		}); err != nil {
			return err
		}
		for !fired {
			h.timerCV.Wait(t, &h.timerMu)
		}

		h.out.println("Timer fired and woke us up")
		if counter > h.maxCount {
			h.out.println("Timer test done")
			return nil
		}
		h.out.printf("Timer test iteration %d\n", counter)
	}
}

// sleepTest repeatedly sleeps on a timer.
func (h *harness) sleepTest(t *sched.Thread) any {
	for counter := 1; ; counter++ {
		h.out.println("Sleep test ran")
		if err := h.svc.Sleep(t, sleepTestDelay); err != nil {
			return err
		}
		if counter > h.maxCount {
			break
		}
		h.out.printf("Sleep test iteration %d\n", counter)
	}
	h.out.println("Sleep test done")
	return nil
}

// cancelFired re-arms the cancel test timer, unless it was canceled after it
// began firing.
func (h *harness) cancelFired(t *sched.Thread, timer *threadtimer.Timer) {
	h.cancelMu.Lock(t)
	defer h.cancelMu.Unlock()
	if timer.IsCanceled() {
		return
	}
	h.out.println("Timer fired")
	if err := h.armCancelTimer(cancelTestPeriod); err != nil {
		h.out.printf("Failed to re-arm timer: %v\n", err)
	}
}

// armCancelTimer must be called with cancelMu held.
func (h *harness) armCancelTimer(d time.Duration) error {
	timer, err := h.svc.AfterFunc(d, h.cancelFired)
	if err != nil {
		h.cancelTimer = nil
		return err
	}
	h.cancelTimer = timer
	return nil
}

// stopCancelTimer must be called with cancelMu held.
func (h *harness) stopCancelTimer() {
	if h.cancelTimer != nil {
		h.cancelTimer.Cancel()
		h.cancelTimer = nil
	}
}

// cancelTest repeatedly lets a self re-arming timer run, then cancels it,
// pauses, and restarts it.
func (h *harness) cancelTest(t *sched.Thread) any {
	h.out.printf("Cancel test thread=%d\n", t.ID())

	h.cancelMu.Lock(t)
	err := h.armCancelTimer(cancelTestPeriod)
	h.cancelMu.Unlock()
	if err != nil {
		return err
	}

	for counter := 1; ; counter++ {
		if err := h.svc.Sleep(t, cancelTestRun); err != nil {
			return err
		}
		h.out.println("Stopping timer")
		h.cancelMu.Lock(t)
		h.stopCancelTimer()
		h.cancelMu.Unlock()

		if err := h.svc.Sleep(t, cancelTestPause); err != nil {
			return err
		}

		h.out.println("Restarting timer")
		h.cancelMu.Lock(t)
		err := h.armCancelTimer(cancelTestRearm)
		h.cancelMu.Unlock()
		if err != nil {
			return err
		}

		if counter > h.maxCount {
			h.cancelMu.Lock(t)
			h.stopCancelTimer()
			h.cancelMu.Unlock()
			h.out.println("Cancel test done")
			return nil
		}
		h.out.printf("Cancel test iteration %d\n", counter)
	}
}

// lineWriter serializes output from many dispatchers.
type lineWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func newLineWriter(w io.Writer) *lineWriter {
	return &lineWriter{w: w}
}

func (x *lineWriter) println(s string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	_, _ = fmt.Fprintln(x.w, s)
}

func (x *lineWriter) printf(format string, args ...any) {
	x.mu.Lock()
	defer x.mu.Unlock()
	_, _ = fmt.Fprintf(x.w, format, args...)
}
