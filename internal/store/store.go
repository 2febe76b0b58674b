// Package store wires together the dictionary and six-permutation index
// into a reader/writer-locked triple store. It exposes the ingestion and
// admin operations over those two components.
//
// Grounded on internal/store/store.go's method shape (InsertTriple, Count,
// ContainsQuad) reworked from a Badger-backed KV abstraction to the
// in-memory internal/index.Index, and from quads to triples.
package store

import (
	"sync"

	"github.com/kbergstrom/rdfkit/internal/dictionary"
	"github.com/kbergstrom/rdfkit/internal/index"
	"github.com/kbergstrom/rdfkit/pkg/rdf"
)

// Store is the multi-reader/single-writer triple store: a shared
// dictionary and six-permutation index.
type Store struct {
	mu   sync.RWMutex
	dict *dictionary.Dictionary
	ix   *index.Index
}

// New creates an empty Store.
func New() *Store {
	return &Store{dict: dictionary.New(), ix: index.New()}
}

// Dictionary returns the store's dictionary. Encoding still requires the
// dictionary's own exclusive-write discipline; this handle
// is shared with components — such as the reasoner — that must intern new
// terms under that same discipline.
func (st *Store) Dictionary() *dictionary.Dictionary { return st.dict }

// Index returns the store's six-permutation index, for read-only planning
// and execution access (callers must go through AddTriple/DeleteTriple to
// mutate it so the store's lock discipline is respected).
func (st *Store) Index() *index.Index { return st.ix }

// AddTriple encodes s/p/o and inserts the resulting identifier triple.
func (st *Store) AddTriple(s, p, o rdf.Term) (index.Triple, error) {
	sid, err := st.dict.Encode(s)
	if err != nil {
		return index.Triple{}, err
	}
	pid, err := st.dict.Encode(p)
	if err != nil {
		return index.Triple{}, err
	}
	oid, err := st.dict.Encode(o)
	if err != nil {
		return index.Triple{}, err
	}
	t := index.Triple{S: sid, P: pid, O: oid}
	st.mu.Lock()
	st.ix.Insert(t)
	st.mu.Unlock()
	return t, nil
}

// InsertEncoded inserts an already-encoded triple, used by the reasoner
// when adding derived conclusions and by parse_and_insert
// callers that already hold identifier triples.
func (st *Store) InsertEncoded(t index.Triple) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.ix.Insert(t)
}

// ParseAndInsert accepts the already-parsed triples an external textual
// parser would yield; textual parsing itself is out of scope.
// A triple whose terms cannot be encoded is skipped and ingestion
// continues.
func (st *Store) ParseAndInsert(triples []rdf.Triple) int {
	inserted := 0
	for _, t := range triples {
		if _, err := st.AddTriple(t.Subject, t.Predicate, t.Object); err != nil {
			continue
		}
		inserted++
	}
	return inserted
}

// ContainsTriple reports whether the given terms, if all known to the
// dictionary, form a stored triple.
func (st *Store) ContainsTriple(s, p, o rdf.Term) bool {
	sid, ok := st.dict.Lookup(s)
	if !ok {
		return false
	}
	pid, ok := st.dict.Lookup(p)
	if !ok {
		return false
	}
	oid, ok := st.dict.Lookup(o)
	if !ok {
		return false
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.ix.Contains(index.Triple{S: sid, P: pid, O: oid})
}

// DeleteTriple removes a triple if all its terms are already known; a
// triple mentioning an unknown term cannot be stored, so there is nothing
// to delete.
func (st *Store) DeleteTriple(s, p, o rdf.Term) {
	sid, ok := st.dict.Lookup(s)
	if !ok {
		return
	}
	pid, ok := st.dict.Lookup(p)
	if !ok {
		return
	}
	oid, ok := st.dict.Lookup(o)
	if !ok {
		return
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	st.ix.Delete(index.Triple{S: sid, P: pid, O: oid})
}

// Count returns the total number of triples recorded by the last statistics
// refresh (BuildIndexes); inserts and deletes since then are not reflected
// until the next refresh.
func (st *Store) Count() int64 {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.ix.Statistics().TotalTriples
}

// BuildIndexes rebuilds the six permutations from the canonical set and
// refreshes statistics; intended for use after a bulk load.
func (st *Store) BuildIndexes() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.ix.Optimize()
	st.ix.RefreshStatistics()
}

// Stats returns the current predicate/join statistics.
func (st *Store) Stats() index.Statistics {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.ix.Statistics()
}

// RLock/RUnlock and Lock/Unlock expose the store's reader/writer
// discipline directly to callers — such as the query executor — that need
// to hold the lock across a whole pull-iterator drain rather than a single
// call.
func (st *Store) RLock()   { st.mu.RLock() }
func (st *Store) RUnlock() { st.mu.RUnlock() }
func (st *Store) Lock()    { st.mu.Lock() }
func (st *Store) Unlock()  { st.mu.Unlock() }
