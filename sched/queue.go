package sched

import (
	"sync"
)

// chunkSize is the number of threads per node in a threadQueue.
const chunkSize = 128

// threadQueue is a chunked linked-list FIFO of runnable threads.
//
// Thread Safety: NOT thread-safe. The owning dispatcher's run queue lock
// must be held for every method.
//
// Fixed-size chunks amortize allocation, and are recycled via chunkPool.
type threadQueue struct {
	head   *chunk
	tail   *chunk
	length int
}

var chunkPool = sync.Pool{
	New: func() any {
		return &chunk{}
	},
}

// chunk uses readPos/pos cursors for O(1) push/pop without shifting.
type chunk struct {
	threads [chunkSize]*Thread
	next    *chunk
	readPos int // first unread slot
	pos     int // first unused slot
}

func newChunk() *chunk {
	c := chunkPool.Get().(*chunk)
	c.pos = 0
	c.readPos = 0
	c.next = nil
	return c
}

// returnChunk recycles an exhausted chunk, clearing slots so no thread is
// retained by the pool.
func returnChunk(c *chunk) {
	for i := 0; i < c.pos; i++ {
		c.threads[i] = nil
	}
	c.pos = 0
	c.readPos = 0
	c.next = nil
	chunkPool.Put(c)
}

// Push appends a thread at the tail.
func (q *threadQueue) Push(t *Thread) {
	if q.tail == nil {
		q.tail = newChunk()
		q.head = q.tail
	}

	if q.tail.pos == len(q.tail.threads) {
		newTail := newChunk()
		q.tail.next = newTail
		q.tail = newTail
	}

	q.tail.threads[q.tail.pos] = t
	q.tail.pos++
	q.length++
}

// Pop removes the thread at the head, returning nil if the queue is empty.
func (q *threadQueue) Pop() *Thread {
	if q.head == nil || q.head.readPos >= q.head.pos {
		return nil
	}

	t := q.head.threads[q.head.readPos]
	q.head.threads[q.head.readPos] = nil
	q.head.readPos++
	q.length--

	if q.head.readPos >= q.head.pos {
		if q.head == q.tail {
			// only chunk, reuse it in place
			q.head.pos = 0
			q.head.readPos = 0
		} else {
			oldHead := q.head
			q.head = q.head.next
			returnChunk(oldHead)
		}
	}

	return t
}

// Len returns the number of queued threads.
func (q *threadQueue) Len() int {
	return q.length
}
