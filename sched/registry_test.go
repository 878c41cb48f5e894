package sched

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_AddAssignsIncreasingIDs(t *testing.T) {
	r := newRegistry()
	var prev uint64
	for i := 0; i < 10; i++ {
		th := &Thread{}
		require.True(t, r.add(th, 0))
		assert.Greater(t, th.id, prev)
		prev = th.id
	}
	assert.Equal(t, 10, r.len())
}

func TestRegistry_Limit(t *testing.T) {
	r := newRegistry()
	a, b, c := &Thread{}, &Thread{}, &Thread{}
	require.True(t, r.add(a, 2))
	require.True(t, r.add(b, 2))
	require.False(t, r.add(c, 2))

	r.remove(a.id)
	require.True(t, r.add(c, 2))
	assert.Equal(t, []*Thread{b, c}, r.snapshot())
}

func TestRegistry_RemoveIsIdempotent(t *testing.T) {
	r := newRegistry()
	th := &Thread{}
	require.True(t, r.add(th, 0))
	r.remove(th.id)
	r.remove(th.id)
	assert.Equal(t, 0, r.len())
	assert.Empty(t, r.snapshot())
}

func TestRegistry_Compaction(t *testing.T) {
	r := newRegistry()
	threads := make([]*Thread, 300)
	for i := range threads {
		threads[i] = &Thread{}
		require.True(t, r.add(threads[i], 0))
	}

	for _, th := range threads[:250] {
		r.remove(th.id)
	}

	assert.Equal(t, 50, r.len())
	assert.Less(t, len(r.ring), 300, "ring should have been compacted")
	assert.Equal(t, threads[250:], r.snapshot())

	for _, th := range threads[250:] {
		idx, ok := r.index[th.id]
		require.True(t, ok)
		assert.Equal(t, th.id, r.ring[idx])
	}
}

func TestRegistry_ConcurrentAddRemove(t *testing.T) {
	r := newRegistry()
	const (
		goroutines = 8
		perG       = 500
	)
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perG; j++ {
				th := &Thread{}
				if !r.add(th, 0) {
					panic("add failed")
				}
				if j%2 == 0 {
					r.remove(th.id)
				}
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, goroutines*perG/2, r.len())
	assert.Len(t, r.snapshot(), goroutines*perG/2)
}
