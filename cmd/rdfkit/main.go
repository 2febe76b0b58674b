// Command rdfkit is a thin demo entrypoint exercising ingestion, a star
// join, RSP-QL window registration/push, and reasoner saturation. It is
// not a general CLI front-end — that surface is out of scope
// — just scaffolding to drive the core end-to-end.
//
// Grounded on cmd/trigo/main.go's runDemo shape: print-annotated sections
// walking through store setup, ingestion, then a query.
package main

import (
	"fmt"
	"log"

	"github.com/kbergstrom/rdfkit/internal/engine"
	"github.com/kbergstrom/rdfkit/internal/index"
	"github.com/kbergstrom/rdfkit/internal/logicalplan"
	"github.com/kbergstrom/rdfkit/internal/reasoner"
	"github.com/kbergstrom/rdfkit/internal/rsp"
	"github.com/kbergstrom/rdfkit/pkg/rdf"
)

func main() {
	fmt.Println("=== rdfkit demo ===")
	runDemo()
}

func runDemo() {
	eng := engine.New()
	st := eng.Store()
	dict := st.Dictionary()

	fmt.Println("\n-- ingestion --")
	alice := rdf.NewNamedNode("http://example.org/alice")
	bob := rdf.NewNamedNode("http://example.org/bob")
	age := rdf.NewNamedNode("http://example.org/age")
	city := rdf.NewNamedNode("http://example.org/city")
	job := rdf.NewNamedNode("http://example.org/job")

	must := func(t index.Triple, err error) index.Triple {
		if err != nil {
			log.Fatalf("rdfkit: ingest failed: %v", err)
		}
		return t
	}
	must(st.AddTriple(alice, age, rdf.NewIntegerLiteral(30)))
	must(st.AddTriple(alice, city, rdf.NewLiteral("NYC")))
	must(st.AddTriple(alice, job, rdf.NewLiteral("eng")))
	must(st.AddTriple(bob, age, rdf.NewIntegerLiteral(40)))
	must(st.AddTriple(bob, city, rdf.NewLiteral("LA")))
	eng.BuildIndexes()
	fmt.Printf("stored %d triples\n", st.Count())

	fmt.Println("\n-- star join: ?s age ?a, ?s city ?c, ?s job ?j --")
	plan := &logicalplan.Join{
		Left: &logicalplan.Join{
			Left:  &logicalplan.Scan{Pattern: logicalplan.TriplePattern{S: logicalplan.Var("s"), P: constOf(dict, age), O: logicalplan.Var("a")}},
			Right: &logicalplan.Scan{Pattern: logicalplan.TriplePattern{S: logicalplan.Var("s"), P: constOf(dict, city), O: logicalplan.Var("c")}},
		},
		Right: &logicalplan.Scan{Pattern: logicalplan.TriplePattern{S: logicalplan.Var("s"), P: constOf(dict, job), O: logicalplan.Var("j")}},
	}
	for _, row := range eng.Execute(plan) {
		fmt.Printf("  s=%v a=%v c=%v j=%v\n", decode(dict, row["s"]), decode(dict, row["a"]), decode(dict, row["c"]), decode(dict, row["j"]))
	}

	fmt.Println("\n-- RSP-QL window over stream :events --")
	typeT := rdf.NewNamedNode("http://example.org/TypeT")
	predA := rdf.NewNamedNode("http://example.org/a")
	predAID, err := dict.Encode(predA)
	if err != nil {
		log.Fatalf("rdfkit: %v", err)
	}
	typeID, err := dict.Encode(typeT)
	if err != nil {
		log.Fatalf("rdfkit: %v", err)
	}

	windowPlan := &logicalplan.Scan{Pattern: logicalplan.TriplePattern{S: logicalplan.Var("s"), P: logicalplan.Const(predAID), O: logicalplan.Const(typeID)}}
	sessionID, err := eng.Register(engine.RegisteredQuery{
		Windows: []rsp.Descriptor{{
			WindowIRI: "w1",
			StreamIRI: "events",
			Width:     10,
			Slide:     10,
			Tick:      rsp.TickTime,
			Report:    rsp.ReportStrategy{Kind: rsp.ReportOnContentChange},
			SubPlan:   windowPlan,
		}},
		Policy: rsp.SyncPolicy{Kind: rsp.SyncWait},
	})
	if err != nil {
		log.Fatalf("rdfkit: register: %v", err)
	}
	sub, err := eng.Subscribe(sessionID)
	if err != nil {
		log.Fatalf("rdfkit: subscribe: %v", err)
	}

	for i, subj := range []*rdf.NamedNode{
		rdf.NewNamedNode("http://example.org/s1"),
		rdf.NewNamedNode("http://example.org/s2"),
		rdf.NewNamedNode("http://example.org/s3"),
	} {
		subjID, err := dict.Encode(subj)
		if err != nil {
			log.Fatalf("rdfkit: %v", err)
		}
		ts := int64(1 + i*10)
		if err := eng.Push(sessionID, "events", index.Triple{S: subjID, P: predAID, O: typeID}, ts); err != nil {
			log.Fatalf("rdfkit: push: %v", err)
		}
	}
	for i := 0; i < 3; i++ {
		rows := <-sub
		for _, row := range rows {
			fmt.Printf("  window fired: s=%v\n", decode(dict, row["s"]))
		}
	}

	fmt.Println("\n-- reasoner fixpoint --")
	rs := reasoner.New(st)
	p := rdf.NewNamedNode("http://example.org/p")
	pID, _ := dict.Encode(p)
	must(st.AddTriple(rdf.NewNamedNode("http://example.org/a"), p, rdf.NewNamedNode("http://example.org/b")))
	must(st.AddTriple(rdf.NewNamedNode("http://example.org/b"), p, rdf.NewNamedNode("http://example.org/c")))
	must(st.AddTriple(rdf.NewNamedNode("http://example.org/c"), p, rdf.NewNamedNode("http://example.org/d")))
	qID, _ := dict.Encode(rdf.NewNamedNode("http://example.org/q"))
	rs.AddRule(reasoner.Rule{
		Premises: []logicalplan.TriplePattern{
			{S: logicalplan.Var("x"), P: logicalplan.Const(pID), O: logicalplan.Var("y")},
			{S: logicalplan.Var("y"), P: logicalplan.Const(pID), O: logicalplan.Var("z")},
		},
		Conclusion: logicalplan.TriplePattern{S: logicalplan.Var("x"), P: logicalplan.Const(qID), O: logicalplan.Var("z")},
	})
	derived := rs.RunFixpoint()
	fmt.Printf("derived %d new triples\n", derived)
}

func constOf(dict interface {
	Encode(t rdf.Term) (uint32, error)
}, term rdf.Term) logicalplan.Term {
	id, err := dict.Encode(term)
	if err != nil {
		log.Fatalf("rdfkit: encode: %v", err)
	}
	return logicalplan.Const(id)
}

func decode(dict interface {
	Decode(id uint32) (rdf.Term, bool)
}, id uint32) string {
	t, ok := dict.Decode(id)
	if !ok {
		return "?"
	}
	return t.String()
}
