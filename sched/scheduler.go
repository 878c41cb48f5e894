package sched

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
)

// Scheduler multiplexes lightweight threads over a fixed set of dispatchers.
//
// The set of dispatchers is fixed at construction, and is never mutated, so
// it may be read without synchronization. Each dispatcher owns a run queue,
// and there is no work stealing: a thread runs on the dispatcher it was last
// queued on.
type Scheduler struct {
	// Prevent copying
	_ [0]func()

	placement Placement
	registry  *registry
	log       *logger
	metrics   *metrics
	opts      *schedulerOptions

	// quiesced receives a signal when active drops to zero while closing
	quiesced chan struct{}

	dispatchers []*Dispatcher

	wg sync.WaitGroup

	// active counts threads that are Runnable or Running
	active atomic.Int64

	closeOnce sync.Once

	closing atomic.Bool
}

// New creates a scheduler with n dispatchers, and starts them. Each starts
// out parked, until a thread is queued to it.
func New(n int, opts ...Option) (*Scheduler, error) {
	if n <= 0 {
		return nil, ErrNoDispatchers
	}

	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}

	s := &Scheduler{
		placement: cfg.placement,
		registry:  newRegistry(),
		log:       newLogger(cfg.logger),
		opts:      cfg,
		quiesced:  make(chan struct{}, 1),
	}
	if cfg.metricsEnabled {
		s.metrics = newMetrics(n)
	}

	// all dispatchers must exist before any engine starts
	s.dispatchers = make([]*Dispatcher, n)
	for i := range s.dispatchers {
		s.dispatchers[i] = newDispatcher(s, i)
	}

	s.wg.Add(n)
	for _, d := range s.dispatchers {
		go d.run()
	}

	s.log.l.Info().
		Str("category", logCategoryScheduler).
		Int("dispatchers", n).
		Log("scheduler started")

	return s, nil
}

// NewThread creates a thread that will run entry once queued. The thread
// starts in StateCreated, and must be queued (e.g. using Thread.Queue) to
// run.
func (s *Scheduler) NewThread(entry Entry, opts ...ThreadOption) (*Thread, error) {
	if entry == nil {
		return nil, ErrNilEntry
	}
	if s.closing.Load() {
		return nil, ErrSchedulerClosed
	}

	cfg := resolveThreadOptions(opts)
	t := &Thread{
		sched:    s,
		entry:    entry,
		name:     cfg.name,
		joinable: cfg.joinable,
		done:     make(chan struct{}),
	}
	if !s.registry.add(t, s.opts.maxThreads) {
		return nil, fmt.Errorf("%w: limit of %d threads reached", ErrResourceExhausted, s.opts.maxThreads)
	}

	t.ctx.initialize(t.top)

	if m := s.metrics; m != nil {
		m.created.Add(1)
	}

	s.log.threadEvent(s.log.l.Trace(), t).
		Log("thread created")

	return t, nil
}

// Go is a convenience that creates a thread, then queues it.
func (s *Scheduler) Go(entry Entry, opts ...ThreadOption) (*Thread, error) {
	t, err := s.NewThread(entry, opts...)
	if err != nil {
		return nil, err
	}
	if err := t.Queue(); err != nil {
		// never queued, so nothing else can restore it
		t.ctx.release()
		s.registry.remove(t.id)
		return nil, err
	}
	return t, nil
}

// Dispatcher returns the dispatcher at index i, which must be in the range
// [0, NumDispatchers).
func (s *Scheduler) Dispatcher(i int) *Dispatcher { return s.dispatchers[i] }

// Dispatchers returns all dispatchers, indexed by ID.
func (s *Scheduler) Dispatchers() []*Dispatcher { return slices.Clone(s.dispatchers) }

// NumDispatchers returns the number of dispatchers.
func (s *Scheduler) NumDispatchers() int { return len(s.dispatchers) }

// Threads returns the live threads, in creation order. Terminated joinable
// threads remain live until joined.
func (s *Scheduler) Threads() []*Thread { return s.registry.snapshot() }

// NumThreads returns the number of live threads.
func (s *Scheduler) NumThreads() int { return s.registry.len() }

// Metrics returns a snapshot of runtime metrics, or nil if not enabled using
// WithMetrics.
func (s *Scheduler) Metrics() *Metrics {
	if s.metrics == nil {
		return nil
	}
	return s.metrics.snapshot()
}

func (s *Scheduler) activate() {
	s.active.Add(1)
}

func (s *Scheduler) deactivate() {
	if s.active.Add(-1) == 0 && s.closing.Load() {
		select {
		case s.quiesced <- struct{}{}:
		default:
		}
	}
}

// Shutdown stops accepting new threads, waits until no thread is runnable
// or running (sleeping threads are not waited for), then closes the
// scheduler. If ctx is cancelled first, the scheduler is closed anyway, and
// ctx.Err() is returned.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.closing.Store(true)
	for s.active.Load() > 0 {
		select {
		case <-s.quiesced:
		case <-ctx.Done():
			_ = s.Close()
			return ctx.Err()
		}
	}
	return s.Close()
}

// Close stops the dispatchers, and waits for their engine goroutines to exit.
// Threads already queued run until they sleep or terminate, further queuing
// fails with ErrSchedulerClosed, and threads left sleeping are never resumed.
//
// Close must not be called from a lightweight thread. Subsequent calls return
// ErrSchedulerClosed.
func (s *Scheduler) Close() error {
	err := ErrSchedulerClosed
	s.closeOnce.Do(func() {
		err = nil
		s.closing.Store(true)
		for _, d := range s.dispatchers {
			d.stop()
		}
		s.wg.Wait()
		s.log.l.Info().
			Str("category", logCategoryScheduler).
			Int("threads", s.registry.len()).
			Log("scheduler closed")
	})
	return err
}

var (
	defaultMu        sync.Mutex
	defaultScheduler atomic.Pointer[Scheduler]
)

// Setup creates the process-wide default scheduler, with n dispatchers. It
// may be called at most once, subsequent calls return ErrAlreadySetup.
func Setup(n int, opts ...Option) (*Scheduler, error) {
	if n <= 0 {
		return nil, ErrNoDispatchers
	}

	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultScheduler.Load() != nil {
		return nil, ErrAlreadySetup
	}

	s, err := New(n, opts...)
	if err != nil {
		return nil, err
	}
	defaultScheduler.Store(s)
	return s, nil
}

// Default returns the scheduler installed by Setup, or nil.
func Default() *Scheduler { return defaultScheduler.Load() }

// NewThread creates a thread on the default scheduler, see
// Scheduler.NewThread.
func NewThread(entry Entry, opts ...ThreadOption) (*Thread, error) {
	s := Default()
	if s == nil {
		return nil, ErrNotSetup
	}
	return s.NewThread(entry, opts...)
}

// Go creates and queues a thread on the default scheduler, see Scheduler.Go.
func Go(entry Entry, opts ...ThreadOption) (*Thread, error) {
	s := Default()
	if s == nil {
		return nil, ErrNotSetup
	}
	return s.Go(entry, opts...)
}
