package runner

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLockManager_BasicLocking(t *testing.T) {
	lm := NewLockManager()

	if !lm.TryLock("/srv/site") {
		t.Fatal("First TryLock should succeed")
	}
	if lm.TryLock("/srv/site") {
		t.Error("Second TryLock on same directory should fail")
	}

	lm.Unlock("/srv/site")

	if !lm.TryLock("/srv/site") {
		t.Error("TryLock should succeed after unlock")
	}
	lm.Unlock("/srv/site")
}

func TestLockManager_MultipleDirectories(t *testing.T) {
	lm := NewLockManager()

	for _, dir := range []string{"/srv/a", "/srv/b", "/srv/c"} {
		if !lm.TryLock(dir) {
			t.Errorf("%s lock should succeed", dir)
		}
	}
	if lm.TryLock("/srv/a") {
		t.Error("Second lock on /srv/a should fail")
	}

	lm.Unlock("/srv/a")
	lm.Unlock("/srv/b")
	lm.Unlock("/srv/c")

	if !lm.TryLock("/srv/a") {
		t.Error("/srv/a should be lockable after unlock")
	}
	lm.Unlock("/srv/a")
}

func TestLockManager_UnlockNonExistent(t *testing.T) {
	lm := NewLockManager()

	lm.Unlock("nonexistent")

	if !lm.TryLock("nonexistent") {
		t.Error("Should be able to lock after unlocking non-existent")
	}
	lm.Unlock("nonexistent")
}

func TestLockManager_LockWaitsForUnlock(t *testing.T) {
	lm := NewLockManager()
	if err := lm.Lock(context.Background(), "/srv/site"); err != nil {
		t.Fatalf("Lock() error = %v", err)
	}

	acquired := make(chan struct{})
	go func() {
		if err := lm.Lock(context.Background(), "/srv/site"); err == nil {
			close(acquired)
		}
	}()

	select {
	case <-acquired:
		t.Fatal("second Lock should block while the first is held")
	case <-time.After(50 * time.Millisecond):
	}

	lm.Unlock("/srv/site")

	select {
	case <-acquired:
	case <-time.After(5 * time.Second):
		t.Fatal("second Lock did not proceed after unlock")
	}
	lm.Unlock("/srv/site")
}

func TestLockManager_LockHonorsContext(t *testing.T) {
	lm := NewLockManager()
	if !lm.TryLock("/srv/site") {
		t.Fatal("TryLock should succeed")
	}
	defer lm.Unlock("/srv/site")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := lm.Lock(ctx, "/srv/site")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Lock() error = %v, want deadline exceeded", err)
	}
}

func TestLockManager_MutualExclusion(t *testing.T) {
	lm := NewLockManager()

	var active, maxActive int32
	const goroutineCount = 50
	var wg sync.WaitGroup
	wg.Add(goroutineCount)

	for i := 0; i < goroutineCount; i++ {
		go func() {
			defer wg.Done()
			if err := lm.Lock(context.Background(), "/srv/shared"); err != nil {
				t.Errorf("Lock() error = %v", err)
				return
			}
			n := atomic.AddInt32(&active, 1)
			for {
				m := atomic.LoadInt32(&maxActive)
				if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&active, -1)
			lm.Unlock("/srv/shared")
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("lock holders did not finish, possible deadlock")
	}

	if maxActive != 1 {
		t.Errorf("max concurrent holders = %d, want 1", maxActive)
	}
}

func TestLockManager_ConcurrentDifferentDirectories(t *testing.T) {
	lm := NewLockManager()

	const dirCount = 20
	var successCount int32
	var wg sync.WaitGroup
	wg.Add(dirCount)

	for i := 0; i < dirCount; i++ {
		dir := "/srv/site-" + string(rune('a'+i))
		go func() {
			defer wg.Done()
			if lm.TryLock(dir) {
				atomic.AddInt32(&successCount, 1)
				time.Sleep(5 * time.Millisecond)
				lm.Unlock(dir)
			}
		}()
	}
	wg.Wait()

	if successCount != dirCount {
		t.Errorf("successCount = %d, want %d", successCount, dirCount)
	}
}

func BenchmarkLockManager_TryLock(b *testing.B) {
	lm := NewLockManager()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		lm.TryLock("/srv/bench")
		lm.Unlock("/srv/bench")
	}
}
