package cache

import (
	"bytes"
	"fmt"
	"io"
	"testing"

	"log/slog"

	"zimg/internal/config"
)

func newTestManager(maxEntry, capacity int64) *Manager {
	cfg := &config.Config{
		Cache: config.CacheConfig{
			MaxEntrySize: maxEntry,
			Capacity:     capacity,
		},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewManager(cfg, logger)
}

func TestPutGetDelete(t *testing.T) {
	m := newTestManager(1024, 0)

	if _, ok := m.Get("img:a:0:0:1:0"); ok {
		t.Fatalf("unexpected hit on empty cache")
	}
	blob := []byte("encoded-bytes")
	m.Put("img:a:0:0:1:0", blob)
	got, ok := m.Get("img:a:0:0:1:0")
	if !ok || !bytes.Equal(got, blob) {
		t.Fatalf("get after put = %q, %v", got, ok)
	}
	if !m.Exists("img:a:0:0:1:0") {
		t.Fatalf("Exists returned false for present key")
	}
	m.Delete("img:a:0:0:1:0")
	if m.Exists("img:a:0:0:1:0") {
		t.Fatalf("Exists returned true after delete")
	}
}

func TestPutRejectsOversizedBlob(t *testing.T) {
	m := newTestManager(16, 0)

	m.Put("small", make([]byte, 15))
	if !m.Exists("small") {
		t.Fatalf("blob under the limit was rejected")
	}
	// The limit is exclusive: a blob of exactly the limit is refused.
	m.Put("exact", make([]byte, 16))
	if m.Exists("exact") {
		t.Fatalf("blob at the limit was accepted")
	}
	m.Put("large", make([]byte, 64))
	if m.Exists("large") {
		t.Fatalf("oversized blob was accepted")
	}
}

func TestEvictionIsLRU(t *testing.T) {
	// Room for three 10-byte entries.
	m := newTestManager(1024, 30)

	for i := 0; i < 3; i++ {
		m.Put(fmt.Sprintf("key-%d", i), make([]byte, 10))
	}
	// Touch key-0 so key-1 becomes the eviction candidate.
	if _, ok := m.Get("key-0"); !ok {
		t.Fatalf("key-0 missing before eviction")
	}
	m.Put("key-3", make([]byte, 10))

	if m.Exists("key-1") {
		t.Fatalf("least recently used entry survived eviction")
	}
	for _, key := range []string{"key-0", "key-2", "key-3"} {
		if !m.Exists(key) {
			t.Fatalf("entry %s evicted unexpectedly", key)
		}
	}
	if s := m.Stats(); s.Evictions != 1 || s.Entries != 3 || s.SizeBytes != 30 {
		t.Fatalf("unexpected stats after eviction: %+v", s)
	}
}

func TestPutReplacesExistingEntry(t *testing.T) {
	m := newTestManager(1024, 100)
	m.Put("key", make([]byte, 40))
	m.Put("key", make([]byte, 10))
	if s := m.Stats(); s.SizeBytes != 10 || s.Entries != 1 {
		t.Fatalf("unexpected stats after replace: %+v", s)
	}
}

func TestStatsCounters(t *testing.T) {
	m := newTestManager(1024, 0)
	m.Put("key", []byte("v"))
	m.Get("key")
	m.Get("absent")
	s := m.Stats()
	if s.Hits != 1 || s.Misses != 1 {
		t.Fatalf("hits/misses = %d/%d, want 1/1", s.Hits, s.Misses)
	}
}
