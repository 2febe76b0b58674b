// Package dictionary implements the store's term dictionary: the
// bidirectional mapping between RDF terms and the 32-bit identifiers the
// rest of the core operates on (see SPEC_FULL.md §4.A).
package dictionary

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/zeebo/xxh3"

	"github.com/kbergstrom/rdfkit/internal/kberrs"
	"github.com/kbergstrom/rdfkit/pkg/rdf"
)

// numShards bounds encode contention to one shard instead of one global
// lock; chosen as a power of two so shardFor can mask instead of mod.
const numShards = 32

// entry is what a shard stores for one interned term.
type entry struct {
	id   uint32
	term rdf.Term
}

type shard struct {
	mu      sync.RWMutex
	forward map[string]entry
}

// Dictionary is the store's bidirectional term↔id mapping. It grows
// monotonically and never evicts. Readers may decode concurrently; encode
// takes an exclusive lock on the term's shard only, per SPEC_FULL.md §4.A's
// "Implementations may shard" guidance.
type Dictionary struct {
	shards  [numShards]*shard
	inverse [numShards]*invShard
	nextID  atomic.Uint32
}

type invShard struct {
	mu  sync.RWMutex
	ids map[uint32]rdf.Term
}

// New creates an empty dictionary. Identifier 0 is reserved and never
// assigned.
func New() *Dictionary {
	d := &Dictionary{}
	for i := range d.shards {
		d.shards[i] = &shard{forward: make(map[string]entry)}
		d.inverse[i] = &invShard{ids: make(map[uint32]rdf.Term)}
	}
	return d
}

func shardIndex(key string) uint32 {
	return uint32(xxh3.HashString(key)) & (numShards - 1)
}

// Encode returns the existing id for term if known, otherwise allocates the
// next id and records both the forward and inverse entry. Idempotent.
func (d *Dictionary) Encode(term rdf.Term) (uint32, error) {
	key := term.String()
	sh := d.shards[shardIndex(key)]

	sh.mu.RLock()
	if e, ok := sh.forward[key]; ok {
		sh.mu.RUnlock()
		return e.id, nil
	}
	sh.mu.RUnlock()

	sh.mu.Lock()
	defer sh.mu.Unlock()

	if e, ok := sh.forward[key]; ok {
		return e.id, nil
	}

	id := d.nextID.Add(1)
	if id == 0 {
		// Wrapped past math.MaxUint32: the id space is exhausted. This is
		// fatal and not recoverable, per SPEC_FULL.md §4.A.
		return 0, kberrs.ErrIDSpaceExhausted
	}

	sh.forward[key] = entry{id: id, term: term}

	inv := d.inverse[id&(numShards-1)]
	inv.mu.Lock()
	inv.ids[id] = term
	inv.mu.Unlock()

	return id, nil
}

// Decode returns the term for a known id, or false if the id is unknown.
func (d *Dictionary) Decode(id uint32) (rdf.Term, bool) {
	inv := d.inverse[id&(numShards-1)]
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	term, ok := inv.ids[id]
	return term, ok
}

// Lookup returns the id already assigned to term, without allocating a new
// one. Used by the executor and reasoner to test "reference to unknown
// identifier" (SPEC_FULL.md §4.C) without side effects.
func (d *Dictionary) Lookup(term rdf.Term) (uint32, bool) {
	key := term.String()
	sh := d.shards[shardIndex(key)]
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	e, ok := sh.forward[key]
	return e.id, ok
}

// Len returns the number of distinct terms interned so far.
func (d *Dictionary) Len() int {
	total := 0
	for _, sh := range d.shards {
		sh.mu.RLock()
		total += len(sh.forward)
		sh.mu.RUnlock()
	}
	return total
}

// entries returns every (term, id) pair currently held. Used by Merge; not
// exported because callers outside the package should never need a raw
// enumeration of the dictionary's contents.
func (d *Dictionary) entries() []entry {
	var all []entry
	for _, sh := range d.shards {
		sh.mu.RLock()
		for _, e := range sh.forward {
			all = append(all, e)
		}
		sh.mu.RUnlock()
	}
	return all
}

// Merge ensures this dictionary contains every term in other, possibly
// under a different local id, and returns the remap from other's ids to
// this dictionary's ids. Callers re-encoding triples that cross the
// dictionary boundary must rewrite ids through the returned map.
//
// Merge takes no global lock: each term is encoded independently through
// the normal per-shard path, so concurrent encodes against either
// dictionary during a merge are safe but may interleave.
func (d *Dictionary) Merge(other *Dictionary) (map[uint32]uint32, error) {
	remap := make(map[uint32]uint32)
	for _, e := range other.entries() {
		id, err := d.Encode(e.term)
		if err != nil {
			return nil, fmt.Errorf("merge: encoding %s: %w", e.term, err)
		}
		remap[e.id] = id
	}
	return remap, nil
}
