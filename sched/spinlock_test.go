package sched

import (
	"sync"
	"testing"
)

func TestSpinLock_MutualExclusion(t *testing.T) {
	const (
		goroutines = 8
		iterations = 10000
	)

	var (
		lock    SpinLock
		counter int
		wg      sync.WaitGroup
	)

	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				lock.Lock()
				counter++
				lock.Unlock()
			}
		}()
	}
	wg.Wait()

	if counter != goroutines*iterations {
		t.Fatalf("counter = %d, want %d", counter, goroutines*iterations)
	}
}

func TestSpinLock_TryLock(t *testing.T) {
	var lock SpinLock
	if !lock.TryLock() {
		t.Fatal("TryLock on unlocked lock failed")
	}
	if lock.TryLock() {
		t.Fatal("TryLock on locked lock succeeded")
	}
	lock.Unlock()
	if !lock.TryLock() {
		t.Fatal("TryLock after Unlock failed")
	}
	lock.Unlock()
}

func TestSpinLock_UnlockOfUnlockedPanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic")
		}
	}()
	var lock SpinLock
	lock.Unlock()
}
