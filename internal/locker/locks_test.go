package locker

import (
	"sync"
	"testing"
)

func TestLockSerializesPerKey(t *testing.T) {
	k := New()
	var mu sync.Mutex
	counts := map[string]int{}

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		key := "a"
		if i%2 == 0 {
			key = "b"
		}
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			release := k.Lock(key)
			defer release()
			mu.Lock()
			counts[key]++
			mu.Unlock()
		}(key)
	}
	wg.Wait()

	if counts["a"] != 16 || counts["b"] != 16 {
		t.Fatalf("unexpected counts: %+v", counts)
	}
	k.mu.Lock()
	remaining := len(k.locks)
	k.mu.Unlock()
	if remaining != 0 {
		t.Fatalf("expected lock table to drain, %d entries remain", remaining)
	}
}

func TestLockReleaseIsReentrantPerKey(t *testing.T) {
	k := New()
	release := k.Lock("key")
	release()
	// A fresh acquisition after release must not deadlock.
	release = k.Lock("key")
	release()
}
