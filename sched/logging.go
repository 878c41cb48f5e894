package sched

import (
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
)

// Log categories, used as the "category" field.
const (
	logCategoryScheduler  = "scheduler"
	logCategoryDispatcher = "dispatcher"
	logCategoryThread     = "thread"
)

// logger wraps the (optional) structured logger of a scheduler. All methods
// are safe to call with a nil *logiface.Logger, which logs nothing.
type logger struct {
	l *logiface.Logger[logiface.Event]

	// depthLimiter rate limits queue depth warnings, per dispatcher.
	depthLimiter *catrate.Limiter
}

func newLogger(l *logiface.Logger[logiface.Event]) *logger {
	return &logger{
		l: l,
		depthLimiter: catrate.NewLimiter(map[time.Duration]int{
			time.Second: 1,
			time.Minute: 10,
		}),
	}
}

func (x *logger) dispatcherEvent(b *logiface.Builder[logiface.Event], d *Dispatcher) *logiface.Builder[logiface.Event] {
	return b.Str("category", logCategoryDispatcher).
		Int("dispatcher", d.id)
}

func (x *logger) threadEvent(b *logiface.Builder[logiface.Event], t *Thread) *logiface.Builder[logiface.Event] {
	b = b.Str("category", logCategoryThread).
		Uint64("thread", t.id)
	if t.name != "" {
		b = b.Str("name", t.name)
	}
	return b
}

// queueDepth warns if depth exceeds the configured threshold, at most once
// per second per dispatcher.
func (x *logger) queueDepth(d *Dispatcher, depth, threshold int) {
	if threshold <= 0 || depth <= threshold {
		return
	}
	if _, ok := x.depthLimiter.Allow(d.id); !ok {
		return
	}
	x.dispatcherEvent(x.l.Warning(), d).
		Int("depth", depth).
		Int("threshold", threshold).
		Log("run queue depth over threshold")
}

// contractViolation logs at critical level, then panics with a
// *ContractViolation wrapping err. Thread entries cannot recover these.
func (x *logger) contractViolation(t *Thread, err error) {
	x.threadEvent(x.l.Crit(), t).
		Err(err).
		Log("scheduler contract violated")
	panic(&ContractViolation{Err: err})
}
