package sched

// registry tracks all live threads of a scheduler, for enumeration and join
// bookkeeping. It is never consulted for scheduling decisions.
//
// It uses a ring of IDs (creation order) alongside the map, removals mark the
// ring slot as 0 (null marker), and the ring is compacted when its load
// factor drops below 25%.
type registry struct {
	data map[uint64]*Thread

	// ring holds IDs in creation order, 0 marks a removed entry.
	ring []uint64

	// index maps ID to its position in ring, for O(1) removal.
	index map[uint64]int

	// nextID is the counter for generating unique thread IDs.
	nextID uint64

	mu SpinLock
}

func newRegistry() *registry {
	return &registry{
		data:   make(map[uint64]*Thread),
		ring:   make([]uint64, 0, 1024),
		index:  make(map[uint64]int),
		nextID: 1, // 0 is the null marker
	}
}

// add assigns an ID and registers the thread, unless the limit (if
// positive) of live threads has been reached.
func (r *registry) add(t *Thread, limit int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if limit > 0 && len(r.data) >= limit {
		return false
	}

	id := r.nextID
	r.nextID++

	t.id = id
	r.data[id] = t
	r.index[id] = len(r.ring)
	r.ring = append(r.ring, id)

	return true
}

// remove unregisters the thread, it is a no-op if already removed.
func (r *registry) remove(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.data[id]; !ok {
		return
	}

	delete(r.data, id)
	if idx, ok := r.index[id]; ok {
		if idx < len(r.ring) && r.ring[idx] == id {
			r.ring[idx] = 0
		}
		delete(r.index, id)
	}

	if capacity := len(r.ring); capacity > 256 && float64(len(r.data)) < float64(capacity)*0.25 {
		r.compactAndRenew()
	}
}

// len returns the number of live threads.
func (r *registry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.data)
}

// snapshot returns the live threads, in creation order.
func (r *registry) snapshot() []*Thread {
	r.mu.Lock()
	defer r.mu.Unlock()

	threads := make([]*Thread, 0, len(r.data))
	for _, id := range r.ring {
		if id != 0 {
			threads = append(threads, r.data[id])
		}
	}
	return threads
}

// compactAndRenew removes null markers from the ring AND rebuilds the maps,
// since delete does not shrink a map's buckets.
// Must be called with mu held.
func (r *registry) compactAndRenew() {
	newRing := make([]uint64, 0, len(r.data))
	newIndex := make(map[uint64]int, len(r.data))
	newData := make(map[uint64]*Thread, len(r.data))

	for _, id := range r.ring {
		if id == 0 {
			continue
		}
		if t, ok := r.data[id]; ok {
			newIndex[id] = len(newRing)
			newRing = append(newRing, id)
			newData[id] = t
		}
	}

	r.ring = newRing
	r.index = newIndex
	r.data = newData
}
