// Package engine implements the external interface over the core: plain
// execute() over a caller-built logical plan, and RSP-QL stream-query
// registration/push/subscribe wrapping internal/rsp. It is the one place
// session ids, boundary error translation, and admin operations live.
//
// Grounded on internal/server/server.go's handler method shape (adapted
// away from HTTP, since an HTTP front-end is out of scope here) and on
// roach88-nysm/brutalist/internal/engine/flow.go's use of
// github.com/google/uuid for session identifiers.
package engine

import (
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/kbergstrom/rdfkit/internal/index"
	"github.com/kbergstrom/rdfkit/internal/kberrs"
	"github.com/kbergstrom/rdfkit/internal/logicalplan"
	"github.com/kbergstrom/rdfkit/internal/physical"
	"github.com/kbergstrom/rdfkit/internal/planner"
	"github.com/kbergstrom/rdfkit/internal/rsp"
	"github.com/kbergstrom/rdfkit/internal/store"
)

// RegisteredQuery is the input to Register: one or more named windows over
// source streams, an optional static pattern evaluated once, and the
// synchronization policy governing coordinator emission.
type RegisteredQuery struct {
	Windows    []rsp.Descriptor
	Policy     rsp.SyncPolicy
	StaticPlan logicalplan.Node
}

// subscriber is an unbounded outbound queue for one Subscribe call.
// Push's fan-out enqueues without ever blocking; a background goroutine
// drains the queue into ch at the consumer's own pace, so a slow reader
// causes the queue to grow rather than an emission being dropped.
type subscriber struct {
	mu    sync.Mutex
	cond  *sync.Cond
	queue [][]physical.Row
	ch    chan []physical.Row
}

func newSubscriber() *subscriber {
	s := &subscriber{ch: make(chan []physical.Row)}
	s.cond = sync.NewCond(&s.mu)
	go s.pump()
	return s
}

func (s *subscriber) pump() {
	for {
		s.mu.Lock()
		for len(s.queue) == 0 {
			s.cond.Wait()
		}
		rows := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()
		s.ch <- rows
	}
}

func (s *subscriber) enqueue(rows []physical.Row) {
	s.mu.Lock()
	s.queue = append(s.queue, rows)
	s.cond.Signal()
	s.mu.Unlock()
}

// session is one registered streaming query.
type session struct {
	runtime     *rsp.Runtime
	mu          sync.Mutex
	subscribers []*subscriber
}

// Engine is the top-level facade: a store, the operator engine options
// that every plain execute() call plans with (each call builds its own
// planner and context), and the set of registered streaming sessions.
type Engine struct {
	store *store.Store
	opts  physical.EngineOptions

	mu       sync.RWMutex
	sessions map[string]*session
}

// New creates an Engine over an empty store with the default operator
// engine options.
func New() *Engine {
	return &Engine{
		store:    store.New(),
		opts:     physical.DefaultEngineOptions(),
		sessions: make(map[string]*session),
	}
}

// Store exposes the underlying store for ingestion and reasoner wiring.
func (e *Engine) Store() *store.Store { return e.store }

// Execute plans and runs a logical plan against the store, returning rows
// of bindings. The store's read lock is held for the whole drain so
// concurrent writers cannot observe or produce a torn read.
func (e *Engine) Execute(plan logicalplan.Node) []physical.Row {
	e.store.RLock()
	defer e.store.RUnlock()

	ctx := physical.NewContext(e.store.Index(), e.store.Dictionary(), e.opts, nil)
	p := planner.New(e.store.Index(), ctx)
	op, err := p.Plan(plan)
	if err != nil {
		log.Printf("engine: execute: %v", err)
		return nil
	}
	var rows []physical.Row
	for op.Next() {
		rows = append(rows, op.Row())
	}
	_ = op.Close()
	return rows
}

// Register builds an RSP runtime for query and returns a session id. A
// query with no windows is a malformed registration; no session is
// created for it.
func (e *Engine) Register(query RegisteredQuery) (string, error) {
	if len(query.Windows) == 0 {
		return "", fmt.Errorf("%w: registered query must declare at least one window", kberrs.ErrQueryParseError)
	}
	for _, d := range query.Windows {
		if err := d.Validate(); err != nil {
			return "", fmt.Errorf("%w: %v", kberrs.ErrQueryParseError, err)
		}
	}

	id := uuid.NewString()
	runtime := rsp.New(e.store.Dictionary(), e.opts, query.Windows, query.Policy, query.StaticPlan)

	e.mu.Lock()
	e.sessions[id] = &session{runtime: runtime}
	e.mu.Unlock()
	return id, nil
}

// Push delivers one stream event to session_id. An unknown session id is the only
// condition this call reports as an error; a stream with no matching
// window is dropped silently by the runtime itself.
func (e *Engine) Push(sessionID, streamIRI string, t index.Triple, timestamp int64) error {
	sess, err := e.lookup(sessionID)
	if err != nil {
		return err
	}
	emitted := sess.runtime.Push(streamIRI, t, timestamp)
	if len(emitted) == 0 {
		return nil
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	for _, sub := range sess.subscribers {
		// Delivery is at-least-once per coordinator emission: enqueue is
		// unbounded and never drops, so a slow subscriber falls behind
		// rather than losing a firing.
		sub.enqueue(emitted)
	}
	return nil
}

// AddStatic seeds session_id's static store with an already-encoded
// triple; static_rdf/static_format parsing is external, so callers supply
// pre-encoded triples the same way store.ParseAndInsert does for the main
// store.
func (e *Engine) AddStatic(sessionID string, t index.Triple) error {
	sess, err := e.lookup(sessionID)
	if err != nil {
		return err
	}
	sess.runtime.AddStaticTriple(t)
	return nil
}

// Subscribe returns a channel of emitted binding-row batches for
// session_id. The channel itself is unbuffered; emissions queue ahead of
// it in the subscriber's own unbounded buffer, so a slow reader never
// causes Push to block or an emission to be dropped.
func (e *Engine) Subscribe(sessionID string) (<-chan []physical.Row, error) {
	sess, err := e.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	sub := newSubscriber()
	sess.mu.Lock()
	sess.subscribers = append(sess.subscribers, sub)
	sess.mu.Unlock()
	return sub.ch, nil
}

func (e *Engine) lookup(sessionID string) (*session, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	sess, ok := e.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", kberrs.ErrSessionNotFound, sessionID)
	}
	return sess, nil
}

// BuildIndexes and Stats expose the store's admin operations.
func (e *Engine) BuildIndexes() { e.store.BuildIndexes() }

func (e *Engine) Stats() index.Statistics { return e.store.Stats() }
