// Package compiler is the top-level orchestrator: it drives every
// pipeline stage in the fixed, gated order the rest of this module
// implements, and exposes the finished call graphs for code generation.
package compiler

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/architect-io/bpcompile/pkg/blueprint"
	"github.com/architect-io/bpcompile/pkg/callgraph"
	"github.com/architect-io/bpcompile/pkg/component"
	"github.com/architect-io/bpcompile/pkg/computation"
	"github.com/architect-io/bpcompile/pkg/constructible"
	"github.com/architect-io/bpcompile/pkg/cratedoc"
	"github.com/architect-io/bpcompile/pkg/diagnostics"
	"github.com/architect-io/bpcompile/pkg/framework"
	"github.com/architect-io/bpcompile/pkg/pkggraph"
	"github.com/architect-io/bpcompile/pkg/rawid"
	"github.com/architect-io/bpcompile/pkg/resolvedpath"
	"github.com/architect-io/bpcompile/pkg/rtype"
	"github.com/architect-io/bpcompile/pkg/usercomp"
)

// App is the finished result of compiling one blueprint: every handler's
// call graph, the shared application-state graph, and the pieces of the
// pipeline later stages (code generation) still need to consult.
type App struct {
	Raw            *rawid.DB
	Users          *usercomp.DB
	Computations   *computation.DB
	Components     *component.DB
	Constructibles *constructible.DB

	Bindings     map[string]rtype.Type
	CodegenTypes []rtype.Type

	HandlerGraphs map[string]*callgraph.Graph // route -> graph
	AppState      *callgraph.ApplicationState

	pkgs pkggraph.Graph
}

// Compile runs the full analysis pipeline over bp in this order: raw-id
// DB, user-component DB, resolved-path DB, computation DB, component DB,
// framework bindings and codegen types, constructible DB, per-handler
// call graphs, required-singleton collection, then the application-state
// call graph with its singleton trait verification. Every stage that
// reports into the sink is followed by a gate. A non-nil
// diagnostics slice means the pipeline aborted at the stage that
// produced it.
func Compile(bp *blueprint.Blueprint, pkgs pkggraph.Graph, docs cratedoc.Collection) (*App, []diagnostics.Diagnostic) {
	return CompileWithSink(bp, pkgs, docs, diagnostics.NewSink())
}

// CompileWithSink runs the same pipeline as Compile, but against a
// caller-supplied sink. Every stage pushes into that *diagnostics.Sink
// directly, so a pkg/diagnostics/stream.Sink wrapped around it does not
// see those pushes.
func CompileWithSink(bp *blueprint.Blueprint, pkgs pkggraph.Graph, docs cratedoc.Collection, sink *diagnostics.Sink) (*App, []diagnostics.Diagnostic) {
	raw := rawid.Build(bp)

	users := usercomp.Build(bp, raw, sink)
	if err := sink.Gate(); err != nil {
		return nil, sink.Errors()
	}

	paths := resolvedpath.Build(raw, pkgs, sink)
	if err := sink.Gate(); err != nil {
		return nil, sink.Errors()
	}

	comps := computation.Build(raw, paths, pkgs, docs, sink)
	if err := sink.Gate(); err != nil {
		return nil, sink.Errors()
	}

	components := component.Build(raw, users, comps, sink)
	if err := sink.Gate(); err != nil {
		return nil, sink.Errors()
	}

	bindings := framework.Bindings(pkgs, docs)
	codegenTypes := framework.CodegenTypes(pkgs, docs)

	constructibles := constructible.Build(raw, components, bindings, sink)
	if err := sink.Gate(); err != nil {
		return nil, sink.Errors()
	}

	handlerGraphs := map[string]*callgraph.Graph{}
	var allGraphs []*callgraph.Graph
	for route, handlerID := range users.Router() {
		g := callgraph.BuildHandler(handlerID, raw, components, constructibles, bindings, sink)
		handlerGraphs[route] = g
		allGraphs = append(allGraphs, g)
	}
	if err := sink.Gate(); err != nil {
		return nil, sink.Errors()
	}

	required := callgraph.RequiredSingletons(allGraphs, bindings)

	appState := callgraph.BuildApplicationState(required, newTraitChecker(docs, required), sink, raw)
	if err := sink.Gate(); err != nil {
		return nil, sink.Errors()
	}

	return &App{
		Raw:            raw,
		Users:          users,
		Computations:   comps,
		Components:     components,
		Constructibles: constructibles,
		Bindings:       bindings,
		CodegenTypes:   codegenTypes,
		HandlerGraphs:  handlerGraphs,
		AppState:       appState,
		pkgs:           pkgs,
	}, nil
}

// Persist writes one .dot file per route under dir/handlers/, plus a
// single dir/app_state.dot.
func (a *App) Persist(dir string) error {
	handlersDir := filepath.Join(dir, "handlers")
	if err := os.MkdirAll(handlersDir, 0o755); err != nil {
		return err
	}
	names := a.displayNames()

	for route, g := range a.HandlerGraphs {
		name := strings.Trim(strings.ReplaceAll(route, "/", "_"), "_")
		if name == "" {
			name = "root"
		}
		path := filepath.Join(handlersDir, name+".dot")
		if err := os.WriteFile(path, []byte(g.Dot(names, a.Components, a.Computations)), 0o644); err != nil {
			return err
		}
	}

	appStatePath := filepath.Join(dir, "app_state.dot")
	return os.WriteFile(appStatePath, []byte(a.AppState.Graph.Dot(names, a.Components, a.Computations)), 0o644)
}

// PersistFlat concatenates every handler graph plus the application-
// state graph into a single file at path.
func (a *App) PersistFlat(path string) error {
	names := a.displayNames()
	var b strings.Builder

	routes := make([]string, 0, len(a.HandlerGraphs))
	for route := range a.HandlerGraphs {
		routes = append(routes, route)
	}
	sortStrings(routes)

	for _, route := range routes {
		fmt.Fprintf(&b, "// route: %s\n", route)
		b.WriteString(a.HandlerGraphs[route].Dot(names, a.Components, a.Computations))
		b.WriteString("\n")
	}
	b.WriteString("// application state\n")
	b.WriteString(a.AppState.Graph.Dot(names, a.Components, a.Computations))

	return os.WriteFile(path, []byte(b.String()), 0o644)
}

// PersistMermaid concatenates every handler graph plus the application-
// state graph into a single Mermaid flowchart file, for a browser-based
// viewer rather than Graphviz.
func (a *App) PersistMermaid(path string) error {
	names := a.displayNames()
	var b strings.Builder

	routes := make([]string, 0, len(a.HandlerGraphs))
	for route := range a.HandlerGraphs {
		routes = append(routes, route)
	}
	sortStrings(routes)

	for _, route := range routes {
		fmt.Fprintf(&b, "%%%% route: %s\n", route)
		b.WriteString(a.HandlerGraphs[route].Mermaid(names, a.Components, a.Computations))
		b.WriteString("\n")
	}
	b.WriteString("%% application state\n")
	b.WriteString(a.AppState.Graph.Mermaid(names, a.Components, a.Computations))

	return os.WriteFile(path, []byte(b.String()), 0o644)
}

func (a *App) displayNames() func(pkggraph.PackageID) string {
	return func(id pkggraph.PackageID) string {
		if id == pkggraph.CurrentPackageID {
			return "crate"
		}
		if p, ok := a.pkgs.Package(id); ok {
			return p.ImportPath
		}
		return string(id)
	}
}

// traitChecker adapts a cratedoc.Collection into the single flat
// Implements(typeKey, trait) lookup callgraph.BuildApplicationState
// needs, by remembering which package each required type's key came
// from up front.
type traitChecker struct {
	docs  cratedoc.Collection
	pkgOf map[string]pkggraph.PackageID
}

func newTraitChecker(docs cratedoc.Collection, required []callgraph.Required) *traitChecker {
	pkgOf := make(map[string]pkggraph.PackageID, len(required))
	for _, r := range required {
		if r.Type.Kind == rtype.KindPath {
			pkgOf[r.Type.Key()] = r.Type.PathValue().Package
		}
	}
	return &traitChecker{docs: docs, pkgOf: pkgOf}
}

func (c *traitChecker) Implements(typeKey, trait string) bool {
	pkg, ok := c.pkgOf[typeKey]
	if !ok {
		return false
	}
	idx, err := c.docs.Get(pkg)
	if err != nil {
		return false
	}
	return idx.Implements(typeKey, trait)
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}
