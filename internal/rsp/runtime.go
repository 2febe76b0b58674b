package rsp

import (
	"sync"

	"github.com/kbergstrom/rdfkit/internal/dictionary"
	"github.com/kbergstrom/rdfkit/internal/index"
	"github.com/kbergstrom/rdfkit/internal/logicalplan"
	"github.com/kbergstrom/rdfkit/internal/physical"
	"github.com/kbergstrom/rdfkit/internal/planner"
)

// Runtime ties together a set of windows, a static store, and a
// coordinator for one registered RSP-QL query. It shares the engine's dictionary so ids pushed into a
// window and ids held in the static store decode consistently.
type Runtime struct {
	mu         sync.Mutex
	dict       *dictionary.Dictionary
	opts       physical.EngineOptions
	wins       []*Window
	coord      *Coordinator
	static     *index.Index
	staticPlan logicalplan.Node
}

// New creates a Runtime with windows desc (already-validated Descriptors),
// a synchronization policy, the optional static-pattern sub-plan, and the
// shared dictionary every push/scan uses to encode and decode terms.
func New(dict *dictionary.Dictionary, opts physical.EngineOptions, descs []Descriptor, policy SyncPolicy, staticPlan logicalplan.Node) *Runtime {
	wins := make([]*Window, len(descs))
	iris := make([]string, len(descs))
	for i, d := range descs {
		wins[i] = NewWindow(d)
		iris[i] = d.WindowIRI
	}
	return &Runtime{
		dict:       dict,
		opts:       opts,
		wins:       wins,
		coord:      NewCoordinator(policy, iris),
		static:     index.New(),
		staticPlan: staticPlan,
	}
}

// AddStaticTriple inserts an already-encoded triple into the static store,
// then re-evaluates the query's static sub-plan against it and installs
// the result in the coordinator.
func (r *Runtime) AddStaticTriple(t index.Triple) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.static.Insert(t)
	if r.staticPlan == nil {
		return
	}
	rows := r.evaluate(r.static, r.staticPlan)
	r.coord.SetStatic(rows)
}

// Push dispatches an event to every window whose stream IRI matches
// streamIRI, feeding each a chance to
// fire, executing its sub-plan over its own per-firing content only, and
// handing the result to the coordinator. It returns any rows the
// coordinator emitted as a consequence (zero or more windows may fire on
// the same push).
func (r *Runtime) Push(streamIRI string, t index.Triple, timestamp int64) []physical.Row {
	r.mu.Lock()
	defer r.mu.Unlock()

	var emitted []physical.Row
	for _, w := range r.wins {
		if !w.Matches(streamIRI) {
			continue
		}
		fire, content := w.Push(timestamp, t)
		if !fire {
			continue
		}
		firingIndex := index.New()
		for _, triple := range content {
			firingIndex.Insert(triple)
		}
		rows := r.evaluate(firingIndex, w.desc.SubPlan)
		if out := r.coord.OnWindowResult(w.desc.WindowIRI, rows); out != nil {
			emitted = append(emitted, out...)
		}
	}
	return emitted
}

// evaluate plans and drains plan against ix using a fresh, private
// Context — this is what keeps one window's content and the static store
// invisible to every other sub-plan.
func (r *Runtime) evaluate(ix *index.Index, plan logicalplan.Node) []physical.Row {
	if plan == nil {
		return nil
	}
	ctx := physical.NewContext(ix, r.dict, r.opts, nil)
	p := planner.New(ix, ctx)
	op, err := p.Plan(plan)
	if err != nil {
		return nil
	}
	var rows []physical.Row
	for op.Next() {
		rows = append(rows, op.Row())
	}
	_ = op.Close()
	return rows
}
