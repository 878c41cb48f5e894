package sched

import (
	"sync/atomic"
)

// Placement selects the dispatcher a thread is queued on by Thread.Queue.
//
// Place must return an index in [0, n), and must be safe for concurrent use.
// Placement is static: it is never load aware, and queued threads are never
// stolen by other dispatchers.
type Placement interface {
	Place(threadID uint64, n int) int
}

// PlacementFunc adapts a function to Placement.
type PlacementFunc func(threadID uint64, n int) int

// Place implements Placement.
func (f PlacementFunc) Place(threadID uint64, n int) int { return f(threadID, n) }

// HashPlacement is the default placement, (id mod 127) mod n. It is
// deterministic per thread, so a thread that is repeatedly woken via Queue
// always lands on the same dispatcher, but it has no rebalancing.
type HashPlacement struct{}

// Place implements Placement.
func (HashPlacement) Place(threadID uint64, n int) int {
	return int((threadID % 127) % uint64(n))
}

// RoundRobinPlacement spreads successive Queue calls across all
// dispatchers, regardless of thread identity.
type RoundRobinPlacement struct {
	next atomic.Uint64
}

// Place implements Placement.
func (x *RoundRobinPlacement) Place(_ uint64, n int) int {
	return int((x.next.Add(1) - 1) % uint64(n))
}
