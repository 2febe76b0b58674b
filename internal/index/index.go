// Package index implements the six-permutation triple index described in
// SPEC_FULL.md §4.B: SPO/POS/OSP/PSO/OPS/SOP maps over identifier triples,
// kept consistent under a single store-level reader/writer lock.
//
// Grounded on internal/store/store.go's insertQuadInTxn/deleteQuadInTxn
// shape (which maintained three-plus-six on-disk permutations per quad);
// reshaped here into six in-memory nested maps over bare triples, since
// persistence and the graph (quad) dimension are out of this core's scope.
package index

// Triple is an ordered (subject, predicate, object) of dictionary ids.
type Triple struct {
	S, P, O uint32
}

// level3 is the innermost set of a permutation: the set of bound-third ids
// for a given (first, second) pair.
type level3 = map[uint32]struct{}

// level2 maps the second dimension to its level3 set.
type level2 = map[uint32]level3

// level1 maps the first (leading) dimension of a permutation to level2.
type level1 = map[uint32]level2

// Index is the store's six-permutation triple index. The zero value is not
// usable; construct with New.
type Index struct {
	spo level1
	pos level1
	osp level1
	pso level1
	ops level1
	sop level1

	// stats is refreshed lazily; see Statistics/RefreshStatistics.
	stats Statistics
}

// New creates an empty index.
func New() *Index {
	return &Index{
		spo: make(level1),
		pos: make(level1),
		osp: make(level1),
		pso: make(level1),
		ops: make(level1),
		sop: make(level1),
	}
}

func set3(m level1, a, b, c uint32) bool {
	l2, ok := m[a]
	if !ok {
		l2 = make(level2)
		m[a] = l2
	}
	l3, ok := l2[b]
	if !ok {
		l3 = make(level3)
		l2[b] = l3
	}
	if _, exists := l3[c]; exists {
		return false
	}
	l3[c] = struct{}{}
	return true
}

func del3(m level1, a, b, c uint32) {
	l2, ok := m[a]
	if !ok {
		return
	}
	l3, ok := l2[b]
	if !ok {
		return
	}
	delete(l3, c)
	if len(l3) == 0 {
		delete(l2, b)
	}
	if len(l2) == 0 {
		delete(m, a)
	}
}

func has3(m level1, a, b, c uint32) bool {
	l2, ok := m[a]
	if !ok {
		return false
	}
	l3, ok := l2[b]
	if !ok {
		return false
	}
	_, ok = l3[c]
	return ok
}

// Insert adds a triple to all six permutations, returning true iff it was
// new. Idempotent: re-inserting an existing triple is a no-op that returns
// false. Callers must hold the store-level write lock.
func (ix *Index) Insert(t Triple) bool {
	if has3(ix.spo, t.S, t.P, t.O) {
		return false
	}
	set3(ix.spo, t.S, t.P, t.O)
	set3(ix.pos, t.P, t.O, t.S)
	set3(ix.osp, t.O, t.S, t.P)
	set3(ix.pso, t.P, t.S, t.O)
	set3(ix.ops, t.O, t.P, t.S)
	set3(ix.sop, t.S, t.O, t.P)
	return true
}

// Delete removes a triple from all six permutations. Idempotent.
func (ix *Index) Delete(t Triple) {
	del3(ix.spo, t.S, t.P, t.O)
	del3(ix.pos, t.P, t.O, t.S)
	del3(ix.osp, t.O, t.S, t.P)
	del3(ix.pso, t.P, t.S, t.O)
	del3(ix.ops, t.O, t.P, t.S)
	del3(ix.sop, t.S, t.O, t.P)
}

// Contains reports whether a triple is present.
func (ix *Index) Contains(t Triple) bool {
	return has3(ix.spo, t.S, t.P, t.O)
}

// Clear removes every triple.
func (ix *Index) Clear() {
	ix.spo = make(level1)
	ix.pos = make(level1)
	ix.osp = make(level1)
	ix.pso = make(level1)
	ix.ops = make(level1)
	ix.sop = make(level1)
	ix.stats = Statistics{}
}

// MergeFrom inserts every triple of other into ix.
func (ix *Index) MergeFrom(other *Index) {
	for _, t := range other.All() {
		ix.Insert(t)
	}
}

// Optimize compacts internal storage. A Go map does not shrink its bucket
// array after deletes, so a map that shrank a lot keeps its old buckets.
// Rebuilding each permutation
// from its own contents is the only "shrink a container" move available
// without reaching for a third-party arena allocator the rest of the pack
// never uses for this purpose either.
func (ix *Index) Optimize() {
	all := ix.All()
	ix.Clear()
	for _, t := range all {
		ix.Insert(t)
	}
}

// All returns every triple in the index, in unspecified order.
func (ix *Index) All() []Triple {
	out := make([]Triple, 0)
	for s, l2 := range ix.spo {
		for p, l3 := range l2 {
			for o := range l3 {
				out = append(out, Triple{S: s, P: p, O: o})
			}
		}
	}
	return out
}

// wildcard is the sentinel meaning "this component is unbound". Id 0 is
// never assigned by the dictionary, so it is safe to reuse as
// the wildcard marker in a query pattern.
const wildcard = 0

// Query returns every triple matching the bound components of (s, p, o);
// each argument is either a bound id or wildcard (0). The permutation whose
// leading dimensions are bound is chosen so that no full scan is ever
// performed when at least one component is bound.
func (ix *Index) Query(s, p, o uint32) []Triple {
	switch {
	case s != wildcard && p != wildcard && o != wildcard:
		if has3(ix.spo, s, p, o) {
			return []Triple{{S: s, P: p, O: o}}
		}
		return nil
	case s != wildcard && p != wildcard:
		out := make([]Triple, 0)
		for oo := range ix.ScanSP(s, p) {
			out = append(out, Triple{S: s, P: p, O: oo})
		}
		return out
	case p != wildcard && o != wildcard:
		out := make([]Triple, 0)
		for ss := range ix.ScanPO(p, o) {
			out = append(out, Triple{S: ss, P: p, O: o})
		}
		return out
	case o != wildcard && s != wildcard:
		out := make([]Triple, 0)
		for pp := range ix.ScanOS(o, s) {
			out = append(out, Triple{S: s, P: pp, O: o})
		}
		return out
	case s != wildcard:
		out := make([]Triple, 0)
		for p2, l3 := range ix.spo[s] {
			for o2 := range l3 {
				out = append(out, Triple{S: s, P: p2, O: o2})
			}
		}
		return out
	case p != wildcard:
		out := make([]Triple, 0)
		for o2, l3 := range ix.pos[p] {
			for s2 := range l3 {
				out = append(out, Triple{S: s2, P: p, O: o2})
			}
		}
		return out
	case o != wildcard:
		out := make([]Triple, 0)
		for s2, l3 := range ix.osp[o] {
			for p2 := range l3 {
				out = append(out, Triple{S: s2, P: p2, O: o})
			}
		}
		return out
	default:
		return ix.All()
	}
}

// ScanSP returns the set of object ids bound to (s, p), via SPO.
func (ix *Index) ScanSP(s, p uint32) map[uint32]struct{} { return l3Of(ix.spo, s, p) }

// ScanPO returns the set of subject ids bound to (p, o), via POS.
func (ix *Index) ScanPO(p, o uint32) map[uint32]struct{} { return l3Of(ix.pos, p, o) }

// ScanOS returns the set of predicate ids bound to (o, s), via OSP.
func (ix *Index) ScanOS(o, s uint32) map[uint32]struct{} { return l3Of(ix.osp, o, s) }

// ScanPS returns the set of object ids bound to (p, s), via PSO.
func (ix *Index) ScanPS(p, s uint32) map[uint32]struct{} { return l3Of(ix.pso, p, s) }

// ScanOP returns the set of subject ids bound to (o, p), via OPS.
func (ix *Index) ScanOP(o, p uint32) map[uint32]struct{} { return l3Of(ix.ops, o, p) }

// ScanSO returns the set of predicate ids bound to (s, o), via SOP.
func (ix *Index) ScanSO(s, o uint32) map[uint32]struct{} { return l3Of(ix.sop, s, o) }

func l3Of(m level1, a, b uint32) map[uint32]struct{} {
	l2, ok := m[a]
	if !ok {
		return nil
	}
	return l2[b]
}

// Statistics holds the cardinality estimates the planner's cost model reads.
type Statistics struct {
	TotalTriples     int64
	PredicateCount   map[uint32]int64
	PredObjectCount  map[[2]uint32]int64
}

// RefreshStatistics recomputes per-predicate and per-(predicate,object)
// counts from the current contents. Refreshed lazily: callers invoke this
// after bulk changes, not on every insert.
func (ix *Index) RefreshStatistics() {
	stats := Statistics{
		PredicateCount:  make(map[uint32]int64),
		PredObjectCount: make(map[[2]uint32]int64),
	}
	for p, l3byO := range ix.pos {
		for o, subjects := range l3byO {
			n := int64(len(subjects))
			stats.PredicateCount[p] += n
			stats.PredObjectCount[[2]uint32{p, o}] += n
			stats.TotalTriples += n
		}
	}
	ix.stats = stats
}

// Statistics returns the statistics computed by the last RefreshStatistics
// call (zero value if never called).
func (ix *Index) Statistics() Statistics { return ix.stats }
