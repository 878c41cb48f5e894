package threadtimer

import (
	"sync/atomic"
	"time"

	"github.com/joeycumines/go-eventloop"
	"github.com/joeycumines/go-mnsched/sched"
)

// timerState is the lifecycle of a Timer.
//
//	timerPending → timerFired    [deadline reached]
//	timerPending → timerCanceled [Cancel]
type timerState uint8

const (
	timerPending timerState = iota
	timerFired
	timerCanceled
)

// Timer is a one-shot timer, created by Service.AfterFunc.
//
// Cancel may race with firing. A callback that shares state with the
// canceling party should take the same lock as the canceler, then consult
// IsCanceled, which stays accurate after the timer has fired.
type Timer struct {
	_ [0]func()

	svc      *Service
	fn       Func
	id       eventloop.TimerID
	deadline time.Time
	mu       sched.SpinLock
	state    timerState
	canceled atomic.Bool
}

func (x *Timer) start(d time.Duration) error {
	// held until id is set, so the callback cannot observe a zero id
	x.mu.Lock()
	defer x.mu.Unlock()
	x.deadline = time.Now().Add(d)
	id, err := x.svc.schedule(d, x.fire)
	if err != nil {
		return err
	}
	x.id = id
	return nil
}

// fire runs on the event loop.
func (x *Timer) fire() {
	x.mu.Lock()
	if x.state != timerPending {
		x.mu.Unlock()
		return
	}
	if remaining := time.Until(x.deadline); remaining > 0 {
		// early, re-arm (fails only once the service is closed)
		if id, err := x.svc.schedule(remaining, x.fire); err == nil {
			x.id = id
		}
		x.mu.Unlock()
		return
	}
	x.state = timerFired
	x.mu.Unlock()

	x.svc.deliver(x)
}

// Cancel stops the timer, returning true if it had not yet fired. After
// Cancel, IsCanceled reports true, even if the callback already started.
func (x *Timer) Cancel() bool {
	x.canceled.Store(true)

	x.mu.Lock()
	if x.state != timerPending {
		x.mu.Unlock()
		return false
	}
	x.state = timerCanceled
	id := x.id
	x.mu.Unlock()

	// may have already been removed, if racing fire
	_ = x.svc.loop.CancelTimer(id)
	return true
}

// IsCanceled reports whether Cancel has been called.
func (x *Timer) IsCanceled() bool {
	return x.canceled.Load()
}
