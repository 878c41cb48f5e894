package sched

import (
	"fmt"

	"github.com/joeycumines/logiface"
)

// schedulerOptions holds configuration options for Scheduler creation.
type schedulerOptions struct {
	logger            *logiface.Logger[logiface.Event]
	placement         Placement
	maxThreads        int
	queueDepthWarning int
	metricsEnabled    bool
	lockOSThread      bool
}

// --- Scheduler Options ---

// Option configures a Scheduler instance.
type Option interface {
	applyScheduler(*schedulerOptions) error
}

// optionImpl implements Option.
type optionImpl struct {
	applySchedulerFunc func(*schedulerOptions) error
}

func (o *optionImpl) applyScheduler(opts *schedulerOptions) error {
	return o.applySchedulerFunc(opts)
}

// WithLogger attaches a structured logger. A nil logger disables logging,
// which is also the default.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *schedulerOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithPlacement sets the policy used by Thread.Queue to select a
// dispatcher. Defaults to HashPlacement.
func WithPlacement(placement Placement) Option {
	return &optionImpl{func(opts *schedulerOptions) error {
		if placement == nil {
			return fmt.Errorf("sched: nil placement")
		}
		opts.placement = placement
		return nil
	}}
}

// WithMaxThreads limits the number of live (not yet reaped) threads. Thread
// creation beyond the limit fails with ErrResourceExhausted. Zero or a
// negative value means unlimited, the default.
func WithMaxThreads(n int) Option {
	return &optionImpl{func(opts *schedulerOptions) error {
		opts.maxThreads = n
		return nil
	}}
}

// WithMetrics enables runtime metrics collection, accessible via
// Scheduler.Metrics. Adds a clock read per queue and resume.
func WithMetrics(enabled bool) Option {
	return &optionImpl{func(opts *schedulerOptions) error {
		opts.metricsEnabled = enabled
		return nil
	}}
}

// WithLockOSThread sets whether each dispatcher's engine goroutine is wired
// to its own OS thread for its lifetime. Enabled by default.
//
// Only the dispatcher's idle context runs on that goroutine. Each
// lightweight thread runs on a goroutine of its own, which is NOT locked, so
// thread code may execute on any OS thread, and must not rely on
// thread-local OS state. Disabling this avoids waking a locked OS thread on
// every handoff back to the idle context.
func WithLockOSThread(enabled bool) Option {
	return &optionImpl{func(opts *schedulerOptions) error {
		opts.lockOSThread = enabled
		return nil
	}}
}

// WithQueueDepthWarning logs a (rate limited) warning whenever a run queue
// grows beyond depth. Zero disables the warning, the default.
func WithQueueDepthWarning(depth int) Option {
	return &optionImpl{func(opts *schedulerOptions) error {
		if depth < 0 {
			return fmt.Errorf("sched: negative queue depth warning: %d", depth)
		}
		opts.queueDepthWarning = depth
		return nil
	}}
}

// resolveOptions applies Option instances to schedulerOptions.
func resolveOptions(opts []Option) (*schedulerOptions, error) {
	cfg := &schedulerOptions{
		placement:    HashPlacement{},
		lockOSThread: true,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyScheduler(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// --- Thread Options ---

// threadOptions holds configuration options for Thread creation.
type threadOptions struct {
	name     string
	joinable bool
}

// ThreadOption configures a Thread instance.
type ThreadOption interface {
	applyThread(*threadOptions)
}

type threadOptionImpl func(*threadOptions)

func (f threadOptionImpl) applyThread(opts *threadOptions) { f(opts) }

// Joinable marks the thread as joinable, see Thread.Join. A joinable
// thread remains registered until a Join observes its completion.
func Joinable() ThreadOption {
	return threadOptionImpl(func(opts *threadOptions) {
		opts.joinable = true
	})
}

// WithName sets a name, used only for logging.
func WithName(name string) ThreadOption {
	return threadOptionImpl(func(opts *threadOptions) {
		opts.name = name
	})
}

func resolveThreadOptions(opts []ThreadOption) threadOptions {
	var cfg threadOptions
	for _, opt := range opts {
		if opt != nil {
			opt.applyThread(&cfg)
		}
	}
	return cfg
}
