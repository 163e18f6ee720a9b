package cache

import (
	"container/list"
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// Memory is a bounded in-process cache with LRU eviction and read-time TTL
// expiry. Lookups are O(1) via a map into a doubly-linked recency list.
type Memory struct {
	mu      sync.Mutex
	maxSize int
	logger  *log.Logger

	list  *list.List
	items map[string]*list.Element

	hits   uint64
	misses uint64
	sets   uint64
}

type memoryEntry struct {
	key       string
	value     []byte
	expiresAt time.Time // zero means no expiry
}

// NewMemory creates a memory cache bounded to maxSize entries.
func NewMemory(maxSize int, logger *log.Logger) *Memory {
	if maxSize <= 0 {
		maxSize = 1000
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[CACHE] ", log.LstdFlags)
	}
	return &Memory{
		maxSize: maxSize,
		logger:  logger,
		list:    list.New(),
		items:   make(map[string]*list.Element, maxSize),
	}
}

// Get returns the value for key when present and unexpired. Expired entries
// are evicted and counted as misses.
func (m *Memory) Get(ctx context.Context, key string) ([]byte, bool) {
	m.mu.Lock()
	elem, ok := m.items[key]
	if !ok {
		m.mu.Unlock()
		atomic.AddUint64(&m.misses, 1)
		cacheRequests.WithLabelValues("memory", "miss").Inc()
		return nil, false
	}

	entry := elem.Value.(*memoryEntry)
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		m.removeElement(elem)
		m.mu.Unlock()
		atomic.AddUint64(&m.misses, 1)
		cacheRequests.WithLabelValues("memory", "miss").Inc()
		return nil, false
	}

	m.list.MoveToFront(elem)
	value := entry.value
	m.mu.Unlock()

	atomic.AddUint64(&m.hits, 1)
	cacheRequests.WithLabelValues("memory", "hit").Inc()
	return value, true
}

// Set stores value under key, evicting the least recently used entries once
// the configured bound is exceeded. ttl <= 0 means no expiry.
func (m *Memory) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if elem, ok := m.items[key]; ok {
		entry := elem.Value.(*memoryEntry)
		entry.value = value
		entry.expiresAt = expiresAt
		m.list.MoveToFront(elem)
		atomic.AddUint64(&m.sets, 1)
		return
	}

	for m.list.Len() >= m.maxSize {
		if oldest := m.list.Back(); oldest != nil {
			m.removeElement(oldest)
		}
	}

	elem := m.list.PushFront(&memoryEntry{key: key, value: value, expiresAt: expiresAt})
	m.items[key] = elem
	atomic.AddUint64(&m.sets, 1)
}

// Stats returns a snapshot of hit/miss accounting.
func (m *Memory) Stats() Stats {
	hits := atomic.LoadUint64(&m.hits)
	misses := atomic.LoadUint64(&m.misses)
	return newStats(hits, misses, atomic.LoadUint64(&m.sets), 0)
}

// Clear removes all entries.
func (m *Memory) Clear(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.list.Init()
	m.items = make(map[string]*list.Element, m.maxSize)
}

// Len returns the number of live entries.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.list.Len()
}

// removeElement drops an entry. Caller must hold the lock.
func (m *Memory) removeElement(elem *list.Element) {
	m.list.Remove(elem)
	entry := elem.Value.(*memoryEntry)
	delete(m.items, entry.key)
}

func newStats(hits, misses, sets, errs uint64) Stats {
	total := hits + misses
	var rate float64
	if total > 0 {
		rate = float64(hits) / float64(total)
	}
	return Stats{
		Hits:          hits,
		Misses:        misses,
		Sets:          sets,
		Errors:        errs,
		TotalRequests: total,
		HitRate:       rate,
	}
}
