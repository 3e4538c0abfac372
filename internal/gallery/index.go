package gallery

import (
	"sync"
	"sync/atomic"
)

// Index is an immutable, ordered collection of gallery records built at one
// point in time. It is never mutated after construction; a rebuild produces
// a new Index that replaces the old one atomically via the Store.
type Index struct {
	records []Record
	dim     int
}

// NewIndex assembles an index from records. The dimensionality is taken from
// the first record; records are assumed pre-validated by the builder.
func NewIndex(records []Record) *Index {
	dim := 0
	if len(records) > 0 {
		dim = len(records[0].Embedding)
	}
	return &Index{records: records, dim: dim}
}

// Records returns the underlying record slice. Callers must treat it as
// read-only.
func (idx *Index) Records() []Record {
	if idx == nil {
		return nil
	}
	return idx.records
}

// Len returns the number of records.
func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.records)
}

// Dim returns the embedding dimensionality, 0 for an empty index.
func (idx *Index) Dim() int {
	if idx == nil {
		return 0
	}
	return idx.dim
}

// BuildState tracks the lifecycle of the index owned by a Store.
type BuildState int32

const (
	StateNotStarted BuildState = iota
	StateBuilding
	StateReady
)

// String returns the state name for logs and status responses.
func (s BuildState) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateBuilding:
		return "building"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// Store owns the currently served index. Readers get the current index
// without locking; builds run off to the side and publish their result with
// a single atomic swap. The mutex only guards build-state transitions, so a
// slow build never blocks queries against the previous index.
type Store struct {
	mu      sync.Mutex
	state   BuildState
	current atomic.Pointer[Index]
}

// NewStore creates an empty store in the NotStarted state.
func NewStore() *Store {
	return &Store{state: StateNotStarted}
}

// Current returns the currently served index, which may be nil before the
// first successful build or snapshot load.
func (s *Store) Current() *Index {
	return s.current.Load()
}

// State returns the current build state.
func (s *Store) State() BuildState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Ready reports whether a nonempty index is being served.
func (s *Store) Ready() bool {
	return s.State() == StateReady && s.Current().Len() > 0
}

// TryBeginBuild transitions to Building unless a build is already running.
// Returns false when another build is in progress; the caller must then
// back off without touching the store.
func (s *Store) TryBeginBuild() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateBuilding {
		return false
	}
	s.state = StateBuilding
	return true
}

// CompleteBuild publishes a fully constructed index and marks the store
// ready. Concurrent readers observe either the old complete index or the
// new one, never a partial state.
func (s *Store) CompleteBuild(idx *Index) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current.Store(idx)
	s.state = StateReady
}

// FailBuild abandons an in-progress build, leaving any previously published
// index in place.
func (s *Store) FailBuild() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current.Load() != nil {
		s.state = StateReady
	} else {
		s.state = StateNotStarted
	}
}
