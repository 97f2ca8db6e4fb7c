package cache

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Entry describes one stored artifact.
type Entry struct {
	Fingerprint string `json:"fingerprint"`
	Scene       string `json:"scene"`
	// Object is the artifact path relative to the store root.
	Object   string    `json:"object"`
	Size     int64     `json:"size"`
	Width    int       `json:"width"`
	Height   int       `json:"height"`
	Duration float64   `json:"duration"`
	Created  time.Time `json:"created"`
	LastUsed time.Time `json:"last_used"`
}

// Index records the entries of a store. Implementations must be safe for
// concurrent use.
type Index interface {
	Get(ctx context.Context, fp string) (Entry, bool, error)
	Put(ctx context.Context, e Entry) error
	Touch(ctx context.Context, fp string, at time.Time) error
	Delete(ctx context.Context, fp string) error
	// List returns all entries, least recently used first.
	List(ctx context.Context) ([]Entry, error)
	// Clear removes every entry and reports how many there were.
	Clear(ctx context.Context) (int, error)
	Close() error
}

// MemoryIndex keeps entries in process memory. It is used by tests and by
// stores that only live for one run.
type MemoryIndex struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemoryIndex creates an empty in-memory index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{entries: make(map[string]Entry)}
}

func (m *MemoryIndex) Get(_ context.Context, fp string) (Entry, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[fp]
	return e, ok, nil
}

func (m *MemoryIndex) Put(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[e.Fingerprint] = e
	return nil
}

func (m *MemoryIndex) Touch(_ context.Context, fp string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[fp]; ok {
		e.LastUsed = at
		m.entries[fp] = e
	}
	return nil
}

func (m *MemoryIndex) Delete(_ context.Context, fp string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, fp)
	return nil
}

func (m *MemoryIndex) List(_ context.Context) ([]Entry, error) {
	m.mu.RLock()
	out := make([]Entry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e)
	}
	m.mu.RUnlock()
	sortLRU(out)
	return out, nil
}

func (m *MemoryIndex) Clear(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.entries)
	m.entries = make(map[string]Entry)
	return n, nil
}

func (m *MemoryIndex) Close() error { return nil }

// sortLRU orders entries by last use, oldest first, with the fingerprint as
// a tie-breaker so eviction order is deterministic.
func sortLRU(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.LastUsed.Equal(b.LastUsed) {
			return a.LastUsed.Before(b.LastUsed)
		}
		return a.Fingerprint < b.Fingerprint
	})
}

var _ Index = (*MemoryIndex)(nil)
