package sched

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics is a point-in-time snapshot of scheduler statistics, returned by
// Scheduler.Metrics. Collection must be enabled using WithMetrics.
//
// Example:
//
//	s, _ := sched.New(4, sched.WithMetrics(true))
//	// ...
//	m := s.Metrics()
//	fmt.Printf("resumes/s: %.2f, P99 queue wait: %v\n", m.TPS, m.QueueWait.P99)
type Metrics struct {
	// QueueWait is the distribution of time spent Runnable, from Queue to
	// resume, over a rolling window of samples.
	QueueWait LatencyMetrics

	// Queues holds run queue depth statistics, indexed by dispatcher ID.
	Queues []QueueMetrics

	// TPS is the rolling rate of thread resumes per second.
	TPS float64

	Created    uint64
	Resumed    uint64
	Slept      uint64
	Terminated uint64
	Parks      uint64
	Wakes      uint64
}

// LatencyMetrics summarizes a latency distribution.
type LatencyMetrics struct {
	P50   time.Duration
	P90   time.Duration
	P95   time.Duration
	P99   time.Duration
	Max   time.Duration
	Mean  time.Duration
	Count int
}

// QueueMetrics summarizes the depth of one run queue.
type QueueMetrics struct {
	Current int
	Max     int
	// Avg is an exponential moving average with alpha=0.1, initialized to
	// the first observed value.
	Avg float64
}

// sampleSize is the maximum number of latency samples to retain.
const sampleSize = 1000

// metrics is the collector, shared by all dispatchers of a scheduler.
type metrics struct {
	created    atomic.Uint64
	resumed    atomic.Uint64
	slept      atomic.Uint64
	terminated atomic.Uint64
	parks      atomic.Uint64
	wakes      atomic.Uint64
	latency    latencySampler
	queues     []queueSampler
	resumeRate *resumeRate
}

func newMetrics(dispatchers int) *metrics {
	return &metrics{
		queues:     make([]queueSampler, dispatchers),
		resumeRate: newResumeRate(10*time.Second, 100*time.Millisecond),
	}
}

func (m *metrics) snapshot() *Metrics {
	out := Metrics{
		QueueWait:  m.latency.sample(),
		Queues:     make([]QueueMetrics, len(m.queues)),
		TPS:        m.resumeRate.perSecond(time.Now()),
		Created:    m.created.Load(),
		Resumed:    m.resumed.Load(),
		Slept:      m.slept.Load(),
		Terminated: m.terminated.Load(),
		Parks:      m.parks.Load(),
		Wakes:      m.wakes.Load(),
	}
	for i := range m.queues {
		out.Queues[i] = m.queues[i].load()
	}
	return &out
}

// latencySampler keeps a rolling buffer of samples.
type latencySampler struct {
	mu          sync.Mutex
	samples     [sampleSize]time.Duration
	sampleIdx   int
	sampleCount int
	sum         time.Duration
}

// record records a latency sample.
func (l *latencySampler) record(d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	// if buffer is full, subtract the old sample that we're replacing
	if l.sampleCount >= sampleSize {
		l.sum -= l.samples[l.sampleIdx]
	}

	l.samples[l.sampleIdx] = d
	l.sum += d
	l.sampleIdx++
	if l.sampleIdx >= sampleSize {
		l.sampleIdx = 0
	}
	if l.sampleCount < sampleSize {
		l.sampleCount++
	}
}

// sample computes percentiles from the collected samples.
func (l *latencySampler) sample() LatencyMetrics {
	l.mu.Lock()
	count := l.sampleCount
	sorted := make([]time.Duration, count)
	copy(sorted, l.samples[:count])
	sum := l.sum
	l.mu.Unlock()

	if count == 0 {
		return LatencyMetrics{}
	}

	slices.Sort(sorted)

	return LatencyMetrics{
		P50:   sorted[percentileIndex(count, 50)],
		P90:   sorted[percentileIndex(count, 90)],
		P95:   sorted[percentileIndex(count, 95)],
		P99:   sorted[percentileIndex(count, 99)],
		Max:   sorted[count-1],
		Mean:  sum / time.Duration(count),
		Count: count,
	}
}

// percentileIndex computes the index for a given percentile (0-100).
func percentileIndex(n, p int) int {
	index := (p * n) / 100
	if index >= n {
		return n - 1
	}
	return index
}

type queueSampler struct {
	mu             sync.Mutex
	current        int
	max            int
	avg            float64
	emaInitialized bool
}

func (q *queueSampler) update(depth int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.current = depth
	if depth > q.max {
		q.max = depth
	}
	if !q.emaInitialized {
		q.avg = float64(depth)
		q.emaInitialized = true
	} else {
		q.avg = 0.9*q.avg + 0.1*float64(depth)
	}
}

func (q *queueSampler) load() QueueMetrics {
	q.mu.Lock()
	defer q.mu.Unlock()
	return QueueMetrics{Current: q.current, Max: q.max, Avg: q.avg}
}

// resumeRate is the rolling rate of thread resumes, counted in fixed width
// intervals. Each slot records which interval it counts, and is reset when
// reused for a later one, so intervals with no resumes need no bookkeeping.
type resumeRate struct {
	start time.Time
	width time.Duration
	mu    sync.Mutex
	slots []rateSlot
}

type rateSlot struct {
	interval int64
	count    int64
}

func newResumeRate(window, width time.Duration) *resumeRate {
	n := max(int(window/width), 1)
	return &resumeRate{
		start: time.Now(),
		width: width,
		slots: make([]rateSlot, n),
	}
}

func (r *resumeRate) interval(now time.Time) int64 {
	return int64(now.Sub(r.start) / r.width)
}

func (r *resumeRate) record(now time.Time) {
	i := r.interval(now)
	r.mu.Lock()
	slot := &r.slots[i%int64(len(r.slots))]
	if slot.interval != i {
		*slot = rateSlot{interval: i}
	}
	slot.count++
	r.mu.Unlock()
}

// perSecond averages the resumes of the window ending at now. It
// under-reports until a full window has elapsed since start.
func (r *resumeRate) perSecond(now time.Time) float64 {
	newest := r.interval(now)
	oldest := newest - int64(len(r.slots)) + 1

	var sum int64
	r.mu.Lock()
	for _, slot := range r.slots {
		if slot.interval >= oldest && slot.interval <= newest {
			sum += slot.count
		}
	}
	r.mu.Unlock()

	return float64(sum) / (r.width * time.Duration(len(r.slots))).Seconds()
}
