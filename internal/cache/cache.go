// Package cache holds the in-memory hot-object cache: a bounded LRU mapping
// rendition keys to encoded image blobs. Entries are opaque; the cache never
// interprets them.
package cache

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
	"time"

	"log/slog"

	"zimg/internal/config"
	"zimg/pkg/human"
)

// Manager is a process-wide LRU byte-blob cache, safe for concurrent use.
type Manager struct {
	cfg    *config.Config
	logger *slog.Logger

	mu        sync.Mutex
	items     map[string]*list.Element
	order     *list.List // front = most recent, back = least recent
	usedBytes int64

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

type entry struct {
	key  string
	blob []byte
}

// Stats reports hit/miss counts for observability.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Entries   int
	SizeBytes int64
}

// NewManager creates a cache manager bound to configuration.
func NewManager(cfg *config.Config, logger *slog.Logger) *Manager {
	return &Manager{
		cfg:    cfg,
		logger: logger.With("component", "cache"),
		items:  make(map[string]*list.Element),
		order:  list.New(),
	}
}

// Get returns the cached blob for key, promoting it to most recently used.
func (m *Manager) Get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	elem, ok := m.items[key]
	if !ok {
		m.misses.Add(1)
		return nil, false
	}
	m.order.MoveToFront(elem)
	m.hits.Add(1)
	return elem.Value.(*entry).blob, true
}

// Exists reports whether key is present without promoting it.
func (m *Manager) Exists(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.items[key]
	return ok
}

// Put stores the blob under key. Blobs at or above the per-entry limit are
// silently skipped; they are served from disk instead.
func (m *Manager) Put(key string, blob []byte) {
	limit := m.cfg.Cache.MaxEntrySize
	if limit > 0 && int64(len(blob)) >= limit {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if elem, ok := m.items[key]; ok {
		old := elem.Value.(*entry)
		m.usedBytes += int64(len(blob)) - int64(len(old.blob))
		old.blob = blob
		m.order.MoveToFront(elem)
	} else {
		m.items[key] = m.order.PushFront(&entry{key: key, blob: blob})
		m.usedBytes += int64(len(blob))
	}
	m.evictOverflow()
}

// Delete removes key from the cache if present.
func (m *Manager) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if elem, ok := m.items[key]; ok {
		m.removeElement(elem)
	}
}

// Stats returns a point-in-time snapshot of cache counters.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	entries := len(m.items)
	size := m.usedBytes
	m.mu.Unlock()
	return Stats{
		Hits:      m.hits.Load(),
		Misses:    m.misses.Load(),
		Evictions: m.evictions.Load(),
		Entries:   entries,
		SizeBytes: size,
	}
}

// evictOverflow drops least recently used entries until usage fits the
// configured capacity. Caller holds m.mu.
func (m *Manager) evictOverflow() {
	capacity := m.cfg.Cache.Capacity
	if capacity <= 0 {
		return
	}
	for m.usedBytes > capacity {
		back := m.order.Back()
		if back == nil {
			return
		}
		m.removeElement(back)
		m.evictions.Add(1)
	}
}

func (m *Manager) removeElement(elem *list.Element) {
	e := elem.Value.(*entry)
	m.order.Remove(elem)
	delete(m.items, e.key)
	m.usedBytes -= int64(len(e.blob))
}

// StartReporter launches periodic stats logging until the context is
// cancelled. A non-positive interval disables it.
func (m *Manager) StartReporter(ctx context.Context) {
	interval := m.cfg.Cache.StatsInterval.Duration
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s := m.Stats()
				m.logger.Info(
					"hot cache stats",
					slog.Uint64("hits", s.Hits),
					slog.Uint64("misses", s.Misses),
					slog.Uint64("evictions", s.Evictions),
					slog.Int("entries", s.Entries),
					slog.String("size", human.FormatBytes(s.SizeBytes)),
				)
			}
		}
	}()
}
