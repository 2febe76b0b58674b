// Package rsp implements an RSP-QL windowing runtime: windows over logical
// streams, each evicting events older than its width on every push and
// firing per its report strategy (a descriptor's Slide is validated but
// affects neither eviction nor firing), a coordinator that buffers
// per-window result sets and performs a cross-window natural join, and a
// stream-dispatch
// layer routing pushed events to the windows registered on their stream
// IRI.
//
// Semantics are grounded on original_source/kolibrie/src/rsp_engine.rs,
// expressed in the idiom of this repo's other components
// (mutex-guarded state, pull-executed sub-plans via internal/planner
// and internal/physical) rather than ported line-for-line.
package rsp

import (
	"fmt"

	"github.com/kbergstrom/rdfkit/internal/index"
	"github.com/kbergstrom/rdfkit/internal/logicalplan"
)

// TickMode names what drives a window's tick evaluation. It is carried on
// the Descriptor but Window never reads it, so every mode behaves the same:
// each push is evaluated against the report strategy.
type TickMode int

const (
	TickTime TickMode = iota
	TickTuple
	TickBatch
)

// ReportStrategyKind selects when a window fires.
type ReportStrategyKind int

const (
	ReportOnWindowClose ReportStrategyKind = iota
	ReportOnContentChange
	ReportNonEmpty
	ReportPeriodic
)

// ReportStrategy configures firing behaviour; Period is only meaningful
// when Kind is ReportPeriodic.
type ReportStrategy struct {
	Kind   ReportStrategyKind
	Period int64
}

// Descriptor is a window descriptor: window IRI, stream IRI, width, slide,
// tick mode, report strategy, and the sub-plan evaluated against its
// content on each firing.
type Descriptor struct {
	WindowIRI string
	// StreamIRI is the stream this window is attached to. An empty string
	// denotes a variable stream IRI, matching every stream.
	StreamIRI string
	Width     int64
	Slide     int64
	Tick      TickMode
	Report    ReportStrategy
	// SubPlan is executed against this window's per-firing content only,
	// through a private Context the runtime builds over that content. The
	// runtime registers no Buffer resolver, so a Buffer node in SubPlan
	// fails to plan and that firing yields no rows.
	SubPlan logicalplan.Node
}

// Validate checks the descriptor's width/slide invariant.
func (d Descriptor) Validate() error {
	if d.Slide <= 0 {
		return fmt.Errorf("rsp: window %q: slide must be > 0", d.WindowIRI)
	}
	if d.Width < d.Slide {
		return fmt.Errorf("rsp: window %q: width must be >= slide", d.WindowIRI)
	}
	return nil
}

// event is one timestamped triple held in a window's content container.
type event struct {
	triple    index.Triple
	timestamp int64
}

// Window holds one window's content and fire bookkeeping. Content is
// exclusive to the window's own goroutine/call path.
type Window struct {
	desc       Descriptor
	content    []event
	windowOpen int64
	lastFire   int64
	everFired  bool
}

// NewWindow creates a Window for desc. windowOpen starts at the
// zero-timestamp so the first close/non-empty evaluation measures from
// t=0.
func NewWindow(desc Descriptor) *Window {
	return &Window{desc: desc}
}

func (w *Window) Descriptor() Descriptor { return w.desc }

// Push appends a new event and evicts everything that has fallen outside
// the active window, then reports whether the window should fire and, if
// so, the content it should fire with.
//
// evict keeps only events with timestamp in (t-width, t], i.e. strictly
// newer than t-width — so an event exactly `width` ticks old has already
// left the window by the time a firing `width` ticks later occurs.
func (w *Window) Push(t int64, triple index.Triple) (fire bool, content []index.Triple) {
	w.content = append(w.content, event{triple: triple, timestamp: t})
	kept := w.content[:0]
	for _, e := range w.content {
		if e.timestamp > t-w.desc.Width {
			kept = append(kept, e)
		}
	}
	w.content = kept

	fire = w.shouldFire(t)
	if !fire {
		return false, nil
	}
	w.everFired = true
	w.lastFire = t
	out := make([]index.Triple, len(w.content))
	for i, e := range w.content {
		out[i] = e.triple
	}
	return true, out
}

func (w *Window) shouldFire(t int64) bool {
	switch w.desc.Report.Kind {
	case ReportOnWindowClose:
		if t-w.windowOpen >= w.desc.Width {
			w.windowOpen = t
			return true
		}
		return false
	case ReportOnContentChange:
		return true
	case ReportNonEmpty:
		if t-w.windowOpen >= w.desc.Width {
			w.windowOpen = t
			return len(w.content) > 0
		}
		return false
	case ReportPeriodic:
		if !w.everFired || t-w.lastFire >= w.desc.Report.Period {
			return true
		}
		return false
	default:
		return false
	}
}

// normalizeStreamIRI strips the `<>` wrapping and a leading `:` prefix.
func normalizeStreamIRI(s string) string {
	if len(s) >= 2 && s[0] == '<' && s[len(s)-1] == '>' {
		s = s[1 : len(s)-1]
	}
	if len(s) > 0 && s[0] == ':' {
		s = s[1:]
	}
	return s
}

// Matches reports whether an event on streamIRI belongs to this window.
func (w *Window) Matches(streamIRI string) bool {
	if w.desc.StreamIRI == "" {
		return true
	}
	return normalizeStreamIRI(w.desc.StreamIRI) == normalizeStreamIRI(streamIRI)
}
