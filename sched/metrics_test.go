package sched

import (
	"testing"
	"time"
)

func TestLatencySampler_Percentiles(t *testing.T) {
	var l latencySampler
	if got := l.sample(); got.Count != 0 {
		t.Fatalf("empty sampler count = %d", got.Count)
	}

	for i := 1; i <= 100; i++ {
		l.record(time.Duration(i) * time.Millisecond)
	}

	m := l.sample()
	if m.Count != 100 {
		t.Errorf("Count = %d, want 100", m.Count)
	}
	if m.P50 != 51*time.Millisecond {
		t.Errorf("P50 = %v", m.P50)
	}
	if m.P99 != 100*time.Millisecond {
		t.Errorf("P99 = %v", m.P99)
	}
	if m.Max != 100*time.Millisecond {
		t.Errorf("Max = %v", m.Max)
	}
	if m.Mean != 50500*time.Microsecond {
		t.Errorf("Mean = %v", m.Mean)
	}
}

func TestLatencySampler_RollingWindow(t *testing.T) {
	var l latencySampler
	for i := 0; i < sampleSize; i++ {
		l.record(time.Second)
	}
	for i := 0; i < sampleSize; i++ {
		l.record(time.Millisecond)
	}
	m := l.sample()
	if m.Count != sampleSize {
		t.Errorf("Count = %d, want %d", m.Count, sampleSize)
	}
	if m.Max != time.Millisecond || m.Mean != time.Millisecond {
		t.Errorf("old samples retained: max=%v mean=%v", m.Max, m.Mean)
	}
}

func TestQueueSampler(t *testing.T) {
	var q queueSampler
	q.update(10)
	q.update(0)
	m := q.load()
	if m.Current != 0 || m.Max != 10 {
		t.Errorf("got %+v", m)
	}
	if m.Avg != 9 {
		t.Errorf("Avg = %v, want 9", m.Avg)
	}
}

func TestResumeRate(t *testing.T) {
	r := newResumeRate(time.Second, 100*time.Millisecond)
	base := r.start

	if v := r.perSecond(base); v != 0 {
		t.Fatalf("perSecond = %v, want 0", v)
	}

	for i := 0; i < 50; i++ {
		r.record(base.Add(50 * time.Millisecond))
	}
	for i := 0; i < 30; i++ {
		r.record(base.Add(550 * time.Millisecond))
	}
	if v := r.perSecond(base.Add(900 * time.Millisecond)); v != 80 {
		t.Errorf("perSecond = %v, want 80", v)
	}

	// the first interval has left the window
	if v := r.perSecond(base.Add(1050 * time.Millisecond)); v != 30 {
		t.Errorf("perSecond = %v, want 30", v)
	}

	// reuses the slot of interval 5, resetting it
	r.record(base.Add(1550 * time.Millisecond))
	if v := r.perSecond(base.Add(1600 * time.Millisecond)); v != 1 {
		t.Errorf("perSecond = %v, want 1", v)
	}

	if v := r.perSecond(base.Add(10 * time.Second)); v != 0 {
		t.Errorf("perSecond = %v, want 0", v)
	}
}
