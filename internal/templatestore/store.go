// Package templatestore implements the bounded, ordered template store
// (C2): a mapping from monotonically assigned template ids to stored
// vectors, evicted by least usage when capacity is exceeded.
package templatestore

import (
	"iter"
	"sync"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Template is an immutable stored vector plus its usage counter. Only the
// counter mutates after creation, via Bump.
type Template struct {
	ID     int
	Values []float64
	Usage  int
}

// Store is a capacity-bounded, insertion-ordered mapping from template id
// to Template. Ids are never reused: a freshly inserted id is strictly
// greater than every id ever issued by this Store, including evicted ones.
// Store is safe for concurrent use, though the engine that owns it drives
// it single-threaded per §5 of the spec.
type Store struct {
	mu       sync.RWMutex
	capacity int
	entries  *orderedmap.OrderedMap[int, *Template]
	nextID   int
}

// New creates an empty Store with the given capacity (Cmax). A
// non-positive capacity is treated as 1: the store always holds at least
// the most recently inserted template.
func New(capacity int) *Store {
	if capacity <= 0 {
		capacity = 1
	}
	return &Store{
		capacity: capacity,
		entries:  orderedmap.New[int, *Template](),
	}
}

// Insert adds vector as a new template and returns its freshly assigned id.
// If the store is at capacity, the least-used existing template is evicted
// first (ties broken by smallest id). Insertion always succeeds.
func (s *Store) Insert(values []float64) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++

	cp := make([]float64, len(values))
	copy(cp, values)

	if s.entries.Len() >= s.capacity {
		s.evictLocked()
	}
	s.entries.Set(id, &Template{ID: id, Values: cp, Usage: 1})
	return id
}

// evictLocked removes the template with the smallest usage counter,
// breaking ties by smallest id. Caller must hold s.mu.
func (s *Store) evictLocked() {
	var victim *Template
	for pair := s.entries.Oldest(); pair != nil; pair = pair.Next() {
		t := pair.Value
		if victim == nil || t.Usage < victim.Usage || (t.Usage == victim.Usage && t.ID < victim.ID) {
			victim = t
		}
	}
	if victim != nil {
		s.entries.Delete(victim.ID)
	}
}

// Get returns a copy of the stored vector for id, or false if absent.
func (s *Store) Get(id int) ([]float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.entries.Get(id)
	if !ok {
		return nil, false
	}
	cp := make([]float64, len(t.Values))
	copy(cp, t.Values)
	return cp, true
}

// Bump increments the usage counter for id. It is a no-op if id is absent
// (e.g. it was evicted concurrently with the caller's match decision).
func (s *Store) Bump(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.entries.Get(id); ok {
		t.Usage++
	}
}

// Len returns the current number of stored templates.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries.Len()
}

// All returns an iterator over (id, vector) pairs in insertion order,
// matching the matcher's tie-break-by-smallest-id expectations.
func (s *Store) All() iter.Seq2[int, []float64] {
	return func(yield func(int, []float64) bool) {
		s.mu.RLock()
		pairs := make([]*Template, 0, s.entries.Len())
		for pair := s.entries.Oldest(); pair != nil; pair = pair.Next() {
			pairs = append(pairs, pair.Value)
		}
		s.mu.RUnlock()

		for _, t := range pairs {
			if !yield(t.ID, t.Values) {
				return
			}
		}
	}
}

// Prune keeps only the upper half of templates by usage count (half the
// live count, rounded down), discarding the rest, on every call regardless
// of capacity. Intended to be called every CleanInterval processed samples
// to bound long-run memory.
func (s *Store) Prune() {
	s.mu.Lock()
	defer s.mu.Unlock()

	keep := s.entries.Len() / 2

	all := make([]*Template, 0, s.entries.Len())
	for pair := s.entries.Oldest(); pair != nil; pair = pair.Next() {
		all = append(all, pair.Value)
	}
	sortByUsageDesc(all)

	toRemove := all[keep:]
	for _, t := range toRemove {
		s.entries.Delete(t.ID)
	}
}

// sortByUsageDesc sorts templates by usage count descending, ties broken
// by smallest id, so that Prune keeps the most-used (and, among ties, the
// oldest) half.
func sortByUsageDesc(ts []*Template) {
	for i := 1; i < len(ts); i++ {
		j := i
		for j > 0 && less(ts[j], ts[j-1]) {
			ts[j], ts[j-1] = ts[j-1], ts[j]
			j--
		}
	}
}

func less(a, b *Template) bool {
	if a.Usage != b.Usage {
		return a.Usage > b.Usage
	}
	return a.ID < b.ID
}

// Seed inserts a template at a caller-supplied id, for cross-run
// continuity: a fresh engine whose store has been Seed-ed from a
// previously decoded record's template table can produce References
// against those ids immediately. Seeding does not go through the normal
// eviction path and does not count against capacity bookkeeping beyond
// the usual Len() check on the next Insert.
//
// Seeding breaks the "every Reference has an earlier Template in this
// run's stream" invariant for the seeded ids; callers that seed accept
// this explicitly, and a record produced from a seeded store is only
// decodable by a consumer that was given the same seed templates.
func (s *Store) Seed(id int, values []float64, usage int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := make([]float64, len(values))
	copy(cp, values)
	s.entries.Set(id, &Template{ID: id, Values: cp, Usage: usage})
	if id >= s.nextID {
		s.nextID = id + 1
	}
}
