package engine

import (
	"testing"
	"time"

	"github.com/kbergstrom/rdfkit/internal/index"
	"github.com/kbergstrom/rdfkit/internal/logicalplan"
	"github.com/kbergstrom/rdfkit/internal/rsp"
	"github.com/kbergstrom/rdfkit/pkg/rdf"
)

// S1: execute a single bound-predicate scan over ingested triples.
func TestExecuteBasicScan(t *testing.T) {
	e := New()
	st := e.Store()
	age := rdf.NewNamedNode("http://example.org/age")
	alice := rdf.NewNamedNode("http://example.org/alice")
	if _, err := st.AddTriple(alice, age, rdf.NewIntegerLiteral(30)); err != nil {
		t.Fatalf("add: %v", err)
	}
	e.BuildIndexes()

	ageID, ok := st.Dictionary().Lookup(age)
	if !ok {
		t.Fatalf("expected age predicate to already be interned")
	}
	plan := &logicalplan.Scan{Pattern: logicalplan.TriplePattern{S: logicalplan.Var("s"), P: logicalplan.Const(ageID), O: logicalplan.Var("a")}}

	rows := e.Execute(plan)
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d: %v", len(rows), rows)
	}
}

func TestRegisterRejectsEmptyWindowList(t *testing.T) {
	e := New()
	if _, err := e.Register(RegisteredQuery{}); err == nil {
		t.Fatalf("expected an error registering a query with no windows")
	}
}

func TestRegisterRejectsInvalidDescriptor(t *testing.T) {
	e := New()
	_, err := e.Register(RegisteredQuery{
		Windows: []rsp.Descriptor{{WindowIRI: "w1", Width: 5, Slide: 10}},
	})
	if err == nil {
		t.Fatalf("expected an error registering a window with slide > width")
	}
}

func TestPushUnknownSessionErrors(t *testing.T) {
	e := New()
	if err := e.Push("nonexistent", "events", index.Triple{}, 1); err == nil {
		t.Fatalf("expected an error pushing to an unregistered session")
	}
}

// Registering a single window, pushing one event, and observing its firing
// delivered through the subscriber channel as exactly one row.
func TestRegisterPushSubscribeEndToEnd(t *testing.T) {
	e := New()
	st := e.Store()
	dict := st.Dictionary()

	typeT := rdf.NewNamedNode("http://example.org/TypeT")
	predA := rdf.NewNamedNode("http://example.org/a")
	predAID, err := dict.Encode(predA)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	typeID, err := dict.Encode(typeT)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	windowPlan := &logicalplan.Scan{Pattern: logicalplan.TriplePattern{S: logicalplan.Var("s"), P: logicalplan.Const(predAID), O: logicalplan.Const(typeID)}}
	sessionID, err := e.Register(RegisteredQuery{
		Windows: []rsp.Descriptor{{
			WindowIRI: "w1",
			StreamIRI: "events",
			Width:     10,
			Slide:     10,
			Report:    rsp.ReportStrategy{Kind: rsp.ReportOnContentChange},
			SubPlan:   windowPlan,
		}},
		Policy: rsp.SyncPolicy{Kind: rsp.SyncWait},
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	sub, err := e.Subscribe(sessionID)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	subjID, err := dict.Encode(rdf.NewNamedNode("http://example.org/s1"))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := e.Push(sessionID, "events", index.Triple{S: subjID, P: predAID, O: typeID}, 1); err != nil {
		t.Fatalf("push: %v", err)
	}

	select {
	case rows := <-sub:
		if len(rows) != 1 || rows[0]["s"] != subjID {
			t.Fatalf("unexpected emitted rows: %v", rows)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected a window firing to be delivered to the subscriber")
	}
}

func TestPushUnmatchedStreamIsDroppedSilently(t *testing.T) {
	e := New()
	sessionID, err := e.Register(RegisteredQuery{
		Windows: []rsp.Descriptor{{WindowIRI: "w1", StreamIRI: "events", Width: 10, Slide: 10}},
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := e.Push(sessionID, "other-stream", index.Triple{S: 1, P: 2, O: 3}, 1); err != nil {
		t.Fatalf("push to an unmatched stream should not itself be an error: %v", err)
	}
}
