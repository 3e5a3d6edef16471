// Package sync provides the spinlock this kernel's singleton subsystems
// (PMM bitmap, VMM PML4, heap free lists) guard their state with, per
// spec.md's own note that a future-proof implementation should wrap that
// state in a spinlock without changing external contracts, even though the
// current single-core, no-preemption design never contends it.
package sync

import "sync/atomic"

// Spinlock is a busy-wait mutual-exclusion lock. Re-acquiring a lock already
// held by the current caller deadlocks; this kernel never nests Acquire
// calls on the same lock.
type Spinlock struct {
	state uint32
}

// Acquire blocks until the lock is free, then takes it.
func (l *Spinlock) Acquire() {
	for !atomic.CompareAndSwapUint32(&l.state, 0, 1) {
	}
}

// TryAcquire takes the lock if it is free and reports whether it succeeded.
func (l *Spinlock) TryAcquire() bool {
	return atomic.CompareAndSwapUint32(&l.state, 0, 1)
}

// Release frees the lock. Calling Release on a free lock has no effect.
func (l *Spinlock) Release() {
	atomic.StoreUint32(&l.state, 0)
}
