// Package dedupe coalesces run requests: a calculator with a run already
// waiting in the queue does not need a second one.
package dedupe

import (
	"container/list"
	"context"
	"sync"
)

// PendingSet tracks keys that have a queued, not yet started, unit of work.
type PendingSet interface {
	// MarkPending atomically records key and reports whether it was already pending.
	MarkPending(ctx context.Context, key string) bool

	// Clear removes key. Workers clear a key just before they start the work,
	// so a change arriving during the run schedules another one.
	Clear(ctx context.Context, key string)

	Size() int64
}

type inMemoryPendingSet struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List // oldest first
	maxSize int        // 0 or negative = unbounded
}

// NewInMemoryPendingSet creates an empty pending set.
func NewInMemoryPendingSet(opts ...Option) PendingSet {
	s := &inMemoryPendingSet{
		entries: make(map[string]*list.Element),
		order:   list.New(),
		maxSize: 1024,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *inMemoryPendingSet) MarkPending(_ context.Context, key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[key]; ok {
		return true
	}
	// When full the oldest mark is dropped; at worst that key runs twice.
	if s.maxSize > 0 && len(s.entries) >= s.maxSize {
		oldest := s.order.Front()
		s.order.Remove(oldest)
		delete(s.entries, oldest.Value.(string))
	}
	s.entries[key] = s.order.PushBack(key)
	return false
}

func (s *inMemoryPendingSet) Clear(_ context.Context, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[key]; ok {
		s.order.Remove(e)
		delete(s.entries, key)
	}
}

func (s *inMemoryPendingSet) Size() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.entries))
}
