package sched

import (
	"testing"
)

func TestThreadQueue_FIFOAcrossChunks(t *testing.T) {
	var q threadQueue

	if q.Pop() != nil {
		t.Fatal("Pop on empty queue returned a thread")
	}

	const n = chunkSize*2 + 17
	threads := make([]*Thread, n)
	for i := range threads {
		threads[i] = &Thread{id: uint64(i + 1)}
		q.Push(threads[i])
	}
	if q.Len() != n {
		t.Fatalf("Len = %d, want %d", q.Len(), n)
	}

	for i := range threads {
		got := q.Pop()
		if got != threads[i] {
			t.Fatalf("Pop %d: got thread %v, want %d", i, got, threads[i].id)
		}
	}
	if q.Len() != 0 {
		t.Fatalf("Len = %d after draining", q.Len())
	}
	if q.Pop() != nil {
		t.Fatal("Pop on drained queue returned a thread")
	}
}

func TestThreadQueue_InterleavedPushPop(t *testing.T) {
	var q threadQueue
	var next, want uint64 = 1, 1

	// keeps the queue short, reusing the single chunk in place
	for round := 0; round < 1000; round++ {
		for i := 0; i < 3; i++ {
			q.Push(&Thread{id: next})
			next++
		}
		for i := 0; i < 2; i++ {
			got := q.Pop()
			if got == nil || got.id != want {
				t.Fatalf("round %d: got %v, want id %d", round, got, want)
			}
			want++
		}
	}
	if q.Len() != 1000 {
		t.Fatalf("Len = %d, want 1000", q.Len())
	}
	for q.Len() > 0 {
		if got := q.Pop(); got.id != want {
			t.Fatalf("got id %d, want %d", got.id, want)
		}
		want++
	}
}
