package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/sentientsats/cryptointel/internal/metrics"
)

// MemoryTier is an in-process LRU cache tier with per-entry TTL.
// TTL expiry is checked lazily on read; exceeding the capacity bound
// evicts the least-recently-used entry regardless of remaining TTL.
type MemoryTier struct {
	mu         sync.Mutex
	maxEntries int
	entries    map[string]*list.Element
	order      *list.List // front = most recently used

	now func() time.Time

	evicted uint64
}

type memoryItem struct {
	key   string
	entry *Entry
}

// NewMemoryTier creates a memory tier bounded to maxEntries
func NewMemoryTier(maxEntries int) *MemoryTier {
	return &MemoryTier{
		maxEntries: maxEntries,
		entries:    make(map[string]*list.Element),
		order:      list.New(),
		now:        time.Now,
	}
}

// Get returns the entry for key, or (nil, nil) if absent or expired
func (m *MemoryTier) Get(_ context.Context, key string) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	el, ok := m.entries[key]
	if !ok {
		return nil, nil
	}

	item := el.Value.(*memoryItem)
	if item.entry.Expired(m.now()) {
		m.removeLocked(el)
		return nil, nil
	}

	m.order.MoveToFront(el)
	return item.entry, nil
}

// Set stores the entry, evicting the LRU entry if the tier is full
func (m *MemoryTier) Set(_ context.Context, key string, entry *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if el, ok := m.entries[key]; ok {
		el.Value.(*memoryItem).entry = entry
		m.order.MoveToFront(el)
		return nil
	}

	m.entries[key] = m.order.PushFront(&memoryItem{key: key, entry: entry})

	for m.order.Len() > m.maxEntries {
		oldest := m.order.Back()
		if oldest == nil {
			break
		}
		m.removeLocked(oldest)
		m.evicted++
		metrics.Default().CacheEvictions.WithLabelValues(metrics.TierMemory).Inc()
	}
	return nil
}

// Delete removes the entry for key if present
func (m *MemoryTier) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if el, ok := m.entries[key]; ok {
		m.removeLocked(el)
	}
	return nil
}

// Len returns the current number of entries, including any not yet
// lazily expired
func (m *MemoryTier) Len(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.order.Len(), nil
}

// Evicted returns the number of LRU evictions since creation
func (m *MemoryTier) Evicted() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.evicted
}

func (m *MemoryTier) removeLocked(el *list.Element) {
	item := el.Value.(*memoryItem)
	m.order.Remove(el)
	delete(m.entries, item.key)
}
