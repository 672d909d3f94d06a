package report

import (
	"container/list"
	"sync"
)

// LRUStore keeps the most recent reports in memory and delegates to a
// backing Store on miss. A nil backing store makes it memory-only.
type LRUStore struct {
	mu    sync.Mutex
	cap   int
	back  Store
	order *list.List               // front is most recent
	items map[string]*list.Element // run id -> element holding *lruEntry
}

type lruEntry struct {
	key    string
	report *Report
}

// NewLRUStore creates an LRU cache holding up to cap reports.
// Capacity below 1 is raised to 1.
func NewLRUStore(cap int, back Store) *LRUStore {
	if cap < 1 {
		cap = 1
	}
	return &LRUStore{
		cap:   cap,
		back:  back,
		order: list.New(),
		items: make(map[string]*list.Element, cap),
	}
}

// Save caches r and writes it through to the backing store.
func (s *LRUStore) Save(r *Report) error {
	s.put(r.RunID, r)
	if s.back == nil {
		return nil
	}
	return s.back.Save(r)
}

// Load returns a cached report or loads it from the backing store and
// promotes it.
func (s *LRUStore) Load(runID string) (*Report, error) {
	s.mu.Lock()
	if e, ok := s.items[runID]; ok {
		s.order.MoveToFront(e)
		r := e.Value.(*lruEntry).report
		s.mu.Unlock()
		return r, nil
	}
	s.mu.Unlock()

	if s.back == nil {
		return nil, errNotFound(runID)
	}
	r, err := s.back.Load(runID)
	if err != nil {
		return nil, err
	}
	s.put(runID, r)
	return r, nil
}

// Recent returns cached run ids, most recent first.
func (s *LRUStore) Recent() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, s.order.Len())
	for e := s.order.Front(); e != nil; e = e.Next() {
		ids = append(ids, e.Value.(*lruEntry).key)
	}
	return ids
}

func (s *LRUStore) put(runID string, r *Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.items[runID]; ok {
		e.Value.(*lruEntry).report = r
		s.order.MoveToFront(e)
		return
	}
	s.items[runID] = s.order.PushFront(&lruEntry{key: runID, report: r})
	for s.order.Len() > s.cap {
		oldest := s.order.Back()
		s.order.Remove(oldest)
		delete(s.items, oldest.Value.(*lruEntry).key)
	}
}
