package cache

import (
	"sync"
	"time"
)

// Kind is a category of cached data. Each (kind, key) pair maps to one
// freshness partition, e.g. "course_<id>" or "progress_<uid>/<courseID>".
type Kind string

const (
	KindCourse     Kind = "course"
	KindLessons    Kind = "lessons"
	KindProgress   Kind = "progress"
	KindNote       Kind = "note"
	KindInstructor Kind = "instructor"
	KindStats      Kind = "stats"
	KindReviews    Kind = "reviews"
)

// Partition returns the freshness-timestamp bucket for a (kind, key) pair.
func Partition(kind Kind, key string) string {
	return string(kind) + "_" + key
}

// Store holds the latest known value per (kind, key) pair plus a
// last-updated stamp per partition. It is the single session-scoped cache
// shared by all readers; construct one at session start and tear it down
// with the session. Entries are never evicted; staleness is decided by
// stamp comparison, not by removal.
//
// Values handed out by Get are read-only by contract; callers must not
// mutate them in place.
type Store struct {
	mu       sync.RWMutex
	values   map[string]interface{}
	stamps   map[string]time.Time
	inflight map[string]bool
	lastErr  map[string]error
	subs     map[string]map[int]chan struct{}
	nextSub  int

	now func() time.Time
}

type StoreOption func(*Store)

// WithClock overrides the store's time source.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		values:   make(map[string]interface{}),
		stamps:   make(map[string]time.Time),
		inflight: make(map[string]bool),
		lastErr:  make(map[string]error),
		subs:     make(map[string]map[int]chan struct{}),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the cached value for (kind, key). Synchronous, no side effects.
func (s *Store) Get(kind Kind, key string) (interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[Partition(kind, key)]
	return v, ok
}

// Set replaces the value for (kind, key), stamps the partition with the
// current time and notifies subscribers. Within one partition the last
// Set wins; there is no version reconciliation.
func (s *Store) Set(kind Kind, key string, v interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := Partition(kind, key)
	s.values[p] = v
	s.stamps[p] = s.now()
	delete(s.lastErr, p)
	s.notifyLocked(p)
}

// IsFresh reports whether the partition was stamped within the last ttl.
// A partition that was never stamped is always stale. ttl <= 0 means any
// prior stamp is trusted until overwritten.
func (s *Store) IsFresh(kind Kind, key string, ttl time.Duration) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stamp, ok := s.stamps[Partition(kind, key)]
	if !ok {
		return false
	}
	if ttl <= 0 {
		return true
	}
	return s.now().Sub(stamp) <= ttl
}

// Invalidate drops the partition's stamp (and any recorded fetch error)
// so the next read refetches. The cached value itself is kept and keeps
// being served until the refetch lands.
func (s *Store) Invalidate(kind Kind, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := Partition(kind, key)
	delete(s.stamps, p)
	delete(s.lastErr, p)
	s.notifyLocked(p)
}

// Err returns the error recorded by the last failed fetch for (kind, key),
// if any. It is cleared by the next successful Set or by Invalidate.
func (s *Store) Err(kind Kind, key string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr[Partition(kind, key)]
}

// Loading reports whether a fetch for (kind, key) is outstanding.
func (s *Store) Loading(kind Kind, key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inflight[Partition(kind, key)]
}

// Subscribe registers for change notifications on (kind, key).
// Notifications are coalesced; after receiving one, re-read the store for
// the current value. The returned cancel func must be called when the
// consumer goes away.
func (s *Store) Subscribe(kind Kind, key string) (<-chan struct{}, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := Partition(kind, key)
	if s.subs[p] == nil {
		s.subs[p] = make(map[int]chan struct{})
	}
	id := s.nextSub
	s.nextSub++
	ch := make(chan struct{}, 1)
	s.subs[p][id] = ch
	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs[p], id)
	}
}

// beginFetch marks a fetch outstanding for the partition; it returns false
// if one already is, so a key never has two concurrent fetches.
func (s *Store) beginFetch(kind Kind, key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := Partition(kind, key)
	if s.inflight[p] {
		return false
	}
	s.inflight[p] = true
	return true
}

// finishFetch lands a fetched value atomically: value replaced, partition
// stamped, in-flight flag cleared, subscribers notified. A reader never
// sees the new value still marked loading.
func (s *Store) finishFetch(kind Kind, key string, v interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := Partition(kind, key)
	s.values[p] = v
	s.stamps[p] = s.now()
	delete(s.lastErr, p)
	delete(s.inflight, p)
	s.notifyLocked(p)
}

// failFetch records a fetch failure. The previous value (if any) keeps
// being served; the error is surfaced on subsequent reads and no retry is
// attempted until an explicit Set or Invalidate.
func (s *Store) failFetch(kind Kind, key string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := Partition(kind, key)
	s.lastErr[p] = err
	delete(s.inflight, p)
	s.notifyLocked(p)
}

func (s *Store) notifyLocked(partition string) {
	for _, ch := range s.subs[partition] {
		select {
		case ch <- struct{}{}:
		default: // already pending
		}
	}
}
