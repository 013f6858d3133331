package runner

import (
	"context"
	"sync"
)

// LockManager hands out per-directory locks so two requests never pull the
// same working tree at the same time. It is only used when pulls are
// configured to be serialized.
//
// The outer mutex protects the map; each directory has a one-slot channel
// acting as its lock, which lets Lock give up when the context is done.
type LockManager struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

// NewLockManager creates a new lock manager
func NewLockManager() *LockManager {
	return &LockManager{
		locks: make(map[string]chan struct{}),
	}
}

func (lm *LockManager) slot(dir string) chan struct{} {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	lock, exists := lm.locks[dir]
	if !exists {
		lock = make(chan struct{}, 1)
		lm.locks[dir] = lock
	}
	return lock
}

// TryLock acquires the lock for dir without blocking.
// Returns false if another pull currently holds it.
func (lm *LockManager) TryLock(dir string) bool {
	select {
	case lm.slot(dir) <- struct{}{}:
		return true
	default:
		return false
	}
}

// Lock blocks until the lock for dir is acquired or ctx is done.
func (lm *LockManager) Lock(ctx context.Context, dir string) error {
	select {
	case lm.slot(dir) <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Unlock releases the lock for dir.
// It is safe to call this even if the lock was never taken (no-op).
func (lm *LockManager) Unlock(dir string) {
	lm.mu.Lock()
	lock := lm.locks[dir]
	lm.mu.Unlock()

	if lock == nil {
		return
	}
	select {
	case <-lock:
	default:
	}
}
