// Package callgraph builds, per handler, the directed acyclic graph of
// constructor invocations needed to satisfy its inputs, plus the single
// shared application-state graph built from every handler's required
// singletons. It also renders graphs to DOT for snapshot testing.
package callgraph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/architect-io/bpcompile/pkg/component"
	"github.com/architect-io/bpcompile/pkg/computation"
	"github.com/architect-io/bpcompile/pkg/constructible"
	"github.com/architect-io/bpcompile/pkg/diagnostics"
	"github.com/architect-io/bpcompile/pkg/pkggraph"
	"github.com/architect-io/bpcompile/pkg/rawid"
	"github.com/architect-io/bpcompile/pkg/rtype"
)

// NodeKind discriminates the roles a call-graph node can play.
type NodeKind int

const (
	// NodeSource is a leaf: either a framework-provided binding or a
	// required singleton backed by application state.
	NodeSource NodeKind = iota
	// NodeConstructor invokes a registered constructor.
	NodeConstructor
	// NodeErrorHandler invokes the error handler fused to a fallible
	// producer, consuming its error branch.
	NodeErrorHandler
	// NodeSink is the graph's root: a handler's own computation.
	NodeSink
)

// Node is one vertex of a call graph.
type Node struct {
	Kind      NodeKind
	Component component.ID // meaningful for Constructor, ErrorHandler, Sink
	Type      rtype.Type   // the type this node produces; a framework binding keeps its declared (possibly reference) type

	FrameworkBinding  bool // Source only
	RequiredSingleton bool // Source only
}

// Edge is a directed producer -> consumer dependency. ErrorBranch marks
// the edge that carries a fallible producer's error value into its
// spliced-in error handler.
type Edge struct {
	From, To    int
	ErrorBranch bool
}

// Required records one required-singleton input discovered while
// building a graph: the owned type, and the raw id whose registration
// first demanded it (used to pin later diagnostics).
type Required struct {
	Type     rtype.Type
	FirstUse rawid.ID
}

// Graph is one handler's call graph (or the application-state graph).
type Graph struct {
	Handler  component.ID
	Nodes    []Node
	Edges    []Edge
	Required []Required
}

func (g *Graph) addNode(n Node) int {
	g.Nodes = append(g.Nodes, n)
	return len(g.Nodes) - 1
}

func (g *Graph) addEdge(from, to int, errorBranch bool) {
	if from < 0 || to < 0 {
		return
	}
	g.Edges = append(g.Edges, Edge{From: from, To: to, ErrorBranch: errorBranch})
}

// builder holds the stage-local state shared by every resolve call
// within one BuildHandler invocation.
type builder struct {
	raw            *rawid.DB
	comps          *component.DB
	constructibles *constructible.DB
	bindings       map[string]rtype.Type
	sink           *diagnostics.Sink

	graph         *Graph
	memo          map[component.ID]int
	bindingNodes  map[string]int
	requiredNodes map[string]int
}

// BuildHandler builds handler's call graph: a DAG whose sink is the
// handler's own computation and whose sources are framework bindings or
// required singletons.
func BuildHandler(handler component.ID, raw *rawid.DB, comps *component.DB, constructibles *constructible.DB, bindings map[string]rtype.Type, sink *diagnostics.Sink) *Graph {
	b := &builder{
		raw:            raw,
		comps:          comps,
		constructibles: constructibles,
		bindings:       bindings,
		sink:           sink,
		graph:          &Graph{Handler: handler},
		memo:           map[component.ID]int{},
		bindingNodes:   map[string]int{},
		requiredNodes:  map[string]int{},
	}

	handlerComp := comps.Get(handler)
	sinkIdx := b.graph.addNode(Node{Kind: NodeSink, Component: handler, Type: handlerComp.Output})
	b.memo[handler] = sinkIdx

	for _, in := range handlerComp.Inputs {
		idx := b.resolve(in, handlerComp, []component.ID{handler})
		b.graph.addEdge(idx, sinkIdx, false)
	}

	if handlerComp.Fallible && handlerComp.ErrorHandler != nil {
		b.spliceErrorHandler(sinkIdx, handlerComp, []component.ID{handler})
	}

	return b.graph
}

// resolve finds or builds the node that produces t, recording a
// ConstructibleError diagnostic for a missing constructor, a cycle, or a
// lifecycle violation. It returns -1 for a missing constructor or a
// cycle; after a lifecycle violation it still returns the node.
func (b *builder) resolve(t rtype.Type, consumer *component.Component, ancestors []component.ID) int {
	owned := t.Owned()
	key := owned.Key()

	if name, bt, ok := lookupBinding(b.bindings, key); ok {
		if idx, ok := b.bindingNodes[key]; ok {
			return idx
		}
		idx := b.graph.addNode(Node{Kind: NodeSource, Type: bt, FrameworkBinding: true})
		b.bindingNodes[key] = idx
		_ = name
		return idx
	}

	if cid, ok := b.constructibles.Lookup(owned); ok {
		for _, a := range ancestors {
			if a == cid {
				b.diagnoseCycle(append(ancestors, cid))
				return -1
			}
		}

		dep := b.comps.Get(cid)
		b.checkLifecycle(cid, dep, consumer)

		if idx, ok := b.memo[cid]; ok {
			return idx
		}

		idx := b.graph.addNode(Node{Kind: NodeConstructor, Component: cid, Type: dep.Output})
		b.memo[cid] = idx

		childAncestors := append(append([]component.ID{}, ancestors...), cid)
		for _, in := range dep.Inputs {
			childIdx := b.resolve(in, dep, childAncestors)
			b.graph.addEdge(childIdx, idx, false)
		}
		if dep.Fallible && dep.ErrorHandler != nil {
			b.spliceErrorHandler(idx, dep, childAncestors)
		}
		return idx
	}

	if t.Kind == rtype.KindReference && t.IsStatic() {
		if idx, ok := b.requiredNodes[key]; ok {
			return idx
		}
		idx := b.graph.addNode(Node{Kind: NodeSource, Type: owned, RequiredSingleton: true})
		b.requiredNodes[key] = idx
		b.graph.Required = append(b.graph.Required, Required{Type: owned, FirstUse: consumer.RawID})
		return idx
	}

	loc := b.raw.GetLocation(consumer.RawID)
	span := diagnostics.Span{File: loc.File, ByteStart: loc.ByteStart, ByteEnd: loc.ByteEnd}
	b.sink.Push(diagnostics.New(diagnostics.Error, "ConstructibleError",
		fmt.Sprintf("no constructor for %s", t)).
		Label(span, "required here").
		WithHelp("register a constructor for this type, or a framework binding that provides it").
		Build())
	return -1
}

func (b *builder) checkLifecycle(depID component.ID, dep *component.Component, consumer *component.Component) {
	if dep.Lifecycle.Outranks(consumer.Lifecycle) {
		return
	}
	depLoc := b.raw.GetLocation(dep.RawID)
	depSpan := diagnostics.Span{File: depLoc.File, ByteStart: depLoc.ByteStart, ByteEnd: depLoc.ByteEnd}
	consumerLoc := b.raw.GetLocation(consumer.RawID)
	consumerSpan := diagnostics.Span{File: consumerLoc.File, ByteStart: consumerLoc.ByteStart, ByteEnd: consumerLoc.ByteEnd}
	b.sink.Push(diagnostics.New(diagnostics.Error, "ConstructibleError",
		fmt.Sprintf("the lifecycle of %s is insufficient for %s", dep.Output, consumer.Output)).
		Label(depSpan, fmt.Sprintf("registered as %s", dep.Lifecycle)).
		Label(consumerSpan, fmt.Sprintf("required by a %s component", consumer.Lifecycle)).
		WithHelp("raise the dependency's lifecycle, or lower the consumer's").
		Build())
}

func (b *builder) diagnoseCycle(path []component.ID) {
	names := make([]string, len(path))
	var first diagnostics.Span
	for i, id := range path {
		c := b.comps.Get(id)
		names[i] = c.Output.String()
		loc := b.raw.GetLocation(c.RawID)
		span := diagnostics.Span{File: loc.File, ByteStart: loc.ByteStart, ByteEnd: loc.ByteEnd}
		if i == 0 {
			first = span
		}
	}
	b.sink.Push(diagnostics.New(diagnostics.Error, "ConstructibleError",
		fmt.Sprintf("cycle among constructors: %s", strings.Join(names, " -> "))).
		Label(first, "cycle detected while resolving this dependency").
		Build())
}

// spliceErrorHandler resolves the inputs of producer's fused error
// handler and wires it as a sibling consumer of producer's error branch.
func (b *builder) spliceErrorHandler(producerIdx int, producer *component.Component, ancestors []component.ID) {
	errID := *producer.ErrorHandler
	errComp := b.comps.Get(errID)
	errKey := producer.ErrorType.Owned().Key()

	errIdx := b.graph.addNode(Node{Kind: NodeErrorHandler, Component: errID, Type: errComp.Output})

	for _, in := range errComp.Inputs {
		if in.Owned().Key() == errKey {
			b.graph.addEdge(producerIdx, errIdx, true)
			continue
		}
		childIdx := b.resolve(in, errComp, ancestors)
		b.graph.addEdge(childIdx, errIdx, false)
	}
}

func lookupBinding(bindings map[string]rtype.Type, key string) (string, rtype.Type, bool) {
	names := make([]string, 0, len(bindings))
	for name := range bindings {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		t := bindings[name]
		if t.Owned().Key() == key {
			return name, t, true
		}
	}
	return "", rtype.Type{}, false
}

// RequiredSingletons collects the deduplicated set of required-singleton
// types across every handler graph, excluding anything already covered
// by a framework binding.
func RequiredSingletons(graphs []*Graph, bindings map[string]rtype.Type) []Required {
	bound := map[string]bool{}
	for _, t := range bindings {
		bound[t.Owned().Key()] = true
	}

	seen := map[string]bool{}
	var out []Required
	for _, g := range graphs {
		for _, r := range g.Required {
			key := r.Type.Key()
			if bound[key] || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type.Key() < out[j].Type.Key() })
	return out
}

// ApplicationState is the single synthetic graph gathering every
// required singleton, built once at process start-up.
type ApplicationState struct {
	Graph *Graph
}

// singletonTraits are the marker traits every value stored in
// application state must implement: it must be safely shared across
// concurrently-handled requests (Send, Sync) and cheaply duplicated into
// each request's handler graph (Clone).
var singletonTraits = []string{"Send", "Sync", "Clone"}

// BuildApplicationState assembles the synthetic "application state"
// graph: one source node per required singleton, verifying the marker
// traits each singleton type must implement.
func BuildApplicationState(required []Required, docs interface {
	Implements(typeKey, trait string) bool
}, sink *diagnostics.Sink, raw *rawid.DB) *ApplicationState {
	graph := &Graph{}
	sinkIdx := graph.addNode(Node{Kind: NodeSink})

	sorted := append([]Required{}, required...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Type.Key() < sorted[j].Type.Key() })

	for _, r := range sorted {
		idx := graph.addNode(Node{Kind: NodeSource, Type: r.Type, RequiredSingleton: true})
		graph.addEdge(idx, sinkIdx, false)

		key := r.Type.Key()
		loc := raw.GetLocation(r.FirstUse)
		span := diagnostics.Span{File: loc.File, ByteStart: loc.ByteStart, ByteEnd: loc.ByteEnd}
		for _, trait := range singletonTraits {
			if docs.Implements(key, trait) {
				continue
			}
			sink.Push(diagnostics.New(diagnostics.Error, "TraitBoundError",
				fmt.Sprintf("%s does not implement %s, required of every application-state value", r.Type, trait)).
				Label(span, "made reachable as a singleton here").
				WithHelp(fmt.Sprintf("implement %s for %s, or stop requiring it by 'static reference", trait, r.Type)).
				Build())
		}
	}

	return &ApplicationState{Graph: graph}
}

// Dot renders g as a Graphviz DOT document. Node and edge ordering is
// exactly insertion order, which is itself deterministic across runs
// over the same blueprint - the snapshot-test boundary depends on it.
func (g *Graph) Dot(names func(pkggraph.PackageID) string, comps *component.DB, computations *computation.DB) string {
	var b strings.Builder
	b.WriteString("digraph {\n")
	for i, n := range g.Nodes {
		label := nodeLabel(n, names, comps, computations)
		b.WriteString(fmt.Sprintf("  n%d [label=%q];\n", i, label))
	}
	for _, e := range g.Edges {
		if e.ErrorBranch {
			b.WriteString(fmt.Sprintf("  n%d -> n%d [label=\"err\"];\n", e.From, e.To))
			continue
		}
		b.WriteString(fmt.Sprintf("  n%d -> n%d;\n", e.From, e.To))
	}
	b.WriteString("}\n")
	return b.String()
}

// Mermaid renders g as a Mermaid flowchart, the same node-then-edges
// shape as Dot but in the syntax a browser-based viewer can render
// directly.
func (g *Graph) Mermaid(names func(pkggraph.PackageID) string, comps *component.DB, computations *computation.DB) string {
	var b strings.Builder
	b.WriteString("flowchart TD\n")
	for i, n := range g.Nodes {
		label := nodeLabel(n, names, comps, computations)
		b.WriteString(fmt.Sprintf("    n%d[%q]\n", i, escapeMermaidLabel(label)))
	}
	b.WriteString("\n")
	for _, e := range g.Edges {
		if e.ErrorBranch {
			b.WriteString(fmt.Sprintf("    n%d -->|err| n%d\n", e.From, e.To))
			continue
		}
		b.WriteString(fmt.Sprintf("    n%d --> n%d\n", e.From, e.To))
	}
	return b.String()
}

// escapeMermaidLabel escapes characters with special meaning inside a
// Mermaid node label.
func escapeMermaidLabel(s string) string {
	return strings.ReplaceAll(s, `"`, `#quot;`)
}

func nodeLabel(n Node, names func(pkggraph.PackageID) string, comps *component.DB, computations *computation.DB) string {
	switch n.Kind {
	case NodeSource:
		if n.FrameworkBinding {
			return "binding: " + renderType(n.Type, names)
		}
		return "singleton: " + renderType(n.Type, names)
	case NodeConstructor, NodeErrorHandler, NodeSink:
		c := comps.Get(n.Component)
		if c == nil {
			return "application state"
		}
		arity := 0
		if comp, ok := computations.Get(c.RawID); ok {
			arity = len(comp.Inputs)
		}
		verb := map[NodeKind]string{NodeConstructor: "construct", NodeErrorHandler: "recover", NodeSink: "handle"}[n.Kind]
		return fmt.Sprintf("%s %s (%d inputs)", verb, renderType(n.Type, names), arity)
	default:
		return "?"
	}
}

// renderType is rtype.Type.String with package ids swapped for their
// display name, the DOT-rendering analogue of rtype's own String.
func renderType(t rtype.Type, names func(pkggraph.PackageID) string) string {
	switch t.Kind {
	case rtype.KindPath:
		p := t.PathValue()
		segs := make([]string, len(p.Segments))
		for i, s := range p.Segments {
			segs[i] = s.Name
		}
		s := names(p.Package) + "::" + strings.Join(segs, "::")
		if args := t.TypeArgs(); len(args) > 0 {
			parts := make([]string, len(args))
			for i, a := range args {
				parts[i] = renderType(a, names)
			}
			s = fmt.Sprintf("%s<%s>", s, strings.Join(parts, ", "))
		}
		return s
	case rtype.KindReference:
		prefix := "&"
		if t.IsStatic() {
			prefix += "'static "
		}
		if t.IsMutable() {
			prefix += "mut "
		}
		return prefix + renderType(t.Inner(), names)
	case rtype.KindTuple:
		parts := make([]string, len(t.Tuple()))
		for i, e := range t.Tuple() {
			parts[i] = renderType(e, names)
		}
		return "(" + strings.Join(parts, ", ") + ")"
	case rtype.KindSlice:
		return "[" + renderType(t.Inner(), names) + "]"
	default:
		return t.String()
	}
}
