// Package framework is the external contract the core consumes for the
// small, fixed table of types the framework itself provides: what every
// handler receives as a source input, and what the generated scaffold
// code needs regardless of any particular blueprint. Both functions are
// pure in the package graph and crate collection alone - never in the
// blueprint - matching spec.md ssec 4.10.
package framework

import (
	"github.com/architect-io/bpcompile/pkg/cratedoc"
	"github.com/architect-io/bpcompile/pkg/pkggraph"
	"github.com/architect-io/bpcompile/pkg/rtype"
)

// Bindings returns the framework-provided input types every handler
// graph treats as a source, keyed by a display name used in
// diagnostics and DOT labels.
func Bindings(pkgs pkggraph.Graph, docs cratedoc.Collection) map[string]rtype.Type {
	current := pkgs.Current().ID
	return map[string]rtype.Type{
		"request": rtype.NewReference(
			rtype.NewPath(rtype.Path{Package: current, Segments: []rtype.Segment{{Name: "Request"}}}),
			false, false,
		),
		"response_writer": rtype.NewReference(
			rtype.NewPath(rtype.Path{Package: "net/http", Segments: []rtype.Segment{{Name: "ResponseWriter"}}}),
			false, true,
		),
		"context": rtype.NewPath(rtype.Path{Package: "context", Segments: []rtype.Segment{{Name: "Context"}}}),
	}
}

// CodegenTypes returns the set of resolved types the generated scaffold
// needs regardless of which handlers or constructors a blueprint
// registers - e.g. the framework's own error type, used to seed the
// code-gen dependency set ahead of any per-handler analysis.
func CodegenTypes(pkgs pkggraph.Graph, docs cratedoc.Collection) []rtype.Type {
	current := pkgs.Current().ID
	return []rtype.Type{
		rtype.NewPath(rtype.Path{Package: current, Segments: []rtype.Segment{{Name: "Response"}}}),
		rtype.NewPath(rtype.Path{Package: "net/http", Segments: []rtype.Segment{{Name: "Handler"}}}),
	}
}
