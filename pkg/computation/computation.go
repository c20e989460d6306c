// Package computation derives the concrete callable signature behind
// every resolved path: its ordered input types and its output, detecting
// the failure-carrying Result<Ok, Err> convention along the way.
package computation

import (
	"fmt"

	"github.com/architect-io/bpcompile/pkg/blueprint"
	"github.com/architect-io/bpcompile/pkg/cratedoc"
	"github.com/architect-io/bpcompile/pkg/diagnostics"
	"github.com/architect-io/bpcompile/pkg/pkggraph"
	"github.com/architect-io/bpcompile/pkg/rawid"
	"github.com/architect-io/bpcompile/pkg/resolvedpath"
	"github.com/architect-io/bpcompile/pkg/rtype"
)

// Output is a computation's return type: either an infallible resolved
// type, or a failure-carrying (ok, err) pair.
type Output struct {
	OK  rtype.Type
	Err *rtype.Type
}

// Fallible reports whether this output carries a failure branch.
func (o Output) Fallible() bool {
	return o.Err != nil
}

// Computation is the resolved signature behind a component: its ordered
// input types and its output.
type Computation struct {
	Inputs []rtype.Type
	Output Output
}

// DB maps each raw id with a resolved path to its Computation.
type DB struct {
	computations map[rawid.ID]Computation
}

// Build resolves a Computation for every raw id that successfully
// resolved to a path. Ids without a resolved path (already diagnosed by
// the resolved-path DB) are skipped.
func Build(raw *rawid.DB, paths *resolvedpath.DB, pkgs pkggraph.Graph, docs cratedoc.Collection, sink *diagnostics.Sink) *DB {
	db := &DB{computations: map[rawid.ID]Computation{}}

	raw.All(func(id rawid.ID, _ blueprint.RawCallable) bool {
		path, ok := paths.Lookup(id)
		if !ok {
			return true
		}
		loc := raw.GetLocation(id)
		span := diagnostics.Span{File: loc.File, ByteStart: loc.ByteStart, ByteEnd: loc.ByteEnd}

		idx, err := docs.Get(path.Package)
		if err != nil {
			sink.Push(diagnostics.New(diagnostics.Error, "ItemNotFound",
				fmt.Sprintf("could not load documentation for package %q: %v", path.Package, err)).
				Label(span, "referenced here").
				Build())
			return true
		}

		item, ok := idx.LookupItem(path.Segments)
		if !ok {
			sink.Push(diagnostics.New(diagnostics.Error, "ItemNotFound",
				fmt.Sprintf("%s does not exist in %q", path, path.Package)).
				Label(span, "referenced here").
				WithHelp("check for a typo in the path, or that the item is public").
				Build())
			return true
		}
		if item.Kind != cratedoc.ItemFunction {
			sink.Push(diagnostics.New(diagnostics.Error, "ItemNotCallable",
				fmt.Sprintf("%s is not a callable item", path)).
				Label(span, "referenced here").
				WithHelp("constructors, handlers, and error handlers must all be free functions").
				Build())
			return true
		}
		sig := item.Signature
		if sig.HigherRankedInputLifetimes || sig.ImplTraitInputs {
			sink.Push(diagnostics.New(diagnostics.Error, "UnsupportedSignature",
				fmt.Sprintf("the signature of %s uses a construct this compiler does not model", path)).
				Label(span, "referenced here").
				WithHelp("avoid higher-ranked lifetimes and impl-Trait in argument position on registered callables").
				Build())
			return true
		}

		inputs := make([]rtype.Type, 0, len(sig.Inputs))
		failed := false
		for _, in := range sig.Inputs {
			resolved, err := resolveTypeExpr(path.Package, in, pkgs)
			if err != nil {
				sink.Push(diagnostics.New(diagnostics.Error, "UnsupportedSignature",
					fmt.Sprintf("failed to resolve an input type of %s: %v", path, err)).
					Label(span, "referenced here").
					Build())
				failed = true
				break
			}
			inputs = append(inputs, resolved)
		}
		if failed {
			return true
		}

		outputExpr, err := resolveTypeExpr(path.Package, sig.Output, pkgs)
		if err != nil {
			sink.Push(diagnostics.New(diagnostics.Error, "UnsupportedSignature",
				fmt.Sprintf("failed to resolve the return type of %s: %v", path, err)).
				Label(span, "referenced here").
				Build())
			return true
		}

		db.computations[id] = Computation{Inputs: inputs, Output: splitOutput(outputExpr)}
		return true
	})

	return db
}

// Get returns the computation resolved for id, if any.
func (db *DB) Get(id rawid.ID) (Computation, bool) {
	c, ok := db.computations[id]
	return c, ok
}

// splitOutput detects the Result<Ok, Err> convention: a path type whose
// final segment is named "Result" with exactly two generic arguments is
// treated as a failure-carrying pair; everything else is infallible.
func splitOutput(t rtype.Type) Output {
	if t.Kind == rtype.KindPath {
		segs := t.PathValue().Segments
		args := t.TypeArgs()
		if len(segs) > 0 && segs[len(segs)-1].Name == "Result" && len(args) == 2 {
			err := args[1]
			return Output{OK: args[0], Err: &err}
		}
	}
	return Output{OK: t}
}

func resolveTypeExpr(owner pkggraph.PackageID, expr cratedoc.TypeExpr, pkgs pkggraph.Graph) (rtype.Type, error) {
	switch expr.Kind {
	case cratedoc.ExprPath:
		if len(expr.PathSegments) == 0 {
			return rtype.Type{}, fmt.Errorf("empty type path")
		}
		leading := expr.PathSegments[0]
		var pkgID pkggraph.PackageID
		switch {
		case leading == "crate":
			pkgID = owner
		case isStdlib(leading):
			pkgID = pkggraph.PackageID(leading)
		default:
			dep, ok := pkgs.Dependency(owner, leading)
			if !ok {
				return rtype.Type{}, fmt.Errorf("unknown crate %q", leading)
			}
			pkgID = dep.ID
		}

		args := make([]rtype.Type, len(expr.TypeArgs))
		for i, a := range expr.TypeArgs {
			r, err := resolveTypeExpr(owner, a, pkgs)
			if err != nil {
				return rtype.Type{}, err
			}
			args[i] = r
		}

		rest := expr.PathSegments[1:]
		if len(rest) == 0 {
			rest = []string{leading}
		}
		segs := make([]rtype.Segment, len(rest))
		for i, s := range rest {
			segs[i] = rtype.Segment{Name: s}
		}
		return rtype.NewPath(rtype.Path{Package: pkgID, Segments: segs}, args...), nil

	case cratedoc.ExprReference:
		inner, err := resolveTypeExpr(owner, *expr.Inner, pkgs)
		if err != nil {
			return rtype.Type{}, err
		}
		return rtype.NewReference(inner, expr.IsStatic, expr.IsMutable), nil

	case cratedoc.ExprTuple:
		elems := make([]rtype.Type, len(expr.Tuple))
		for i, e := range expr.Tuple {
			r, err := resolveTypeExpr(owner, e, pkgs)
			if err != nil {
				return rtype.Type{}, err
			}
			elems[i] = r
		}
		return rtype.NewTuple(elems...), nil

	case cratedoc.ExprSlice:
		inner, err := resolveTypeExpr(owner, *expr.Inner, pkgs)
		if err != nil {
			return rtype.Type{}, err
		}
		return rtype.NewSlice(inner), nil

	case cratedoc.ExprPrimitive:
		return rtype.NewPrimitive(expr.Primitive), nil

	case cratedoc.ExprGeneric:
		return rtype.NewGeneric(expr.Generic), nil

	case cratedoc.ExprNever:
		return rtype.Never(), nil

	default:
		return rtype.Type{}, fmt.Errorf("unknown type expression kind %d", expr.Kind)
	}
}

func isStdlib(name string) bool {
	for _, s := range pkggraph.StdlibPackages {
		if s == name {
			return true
		}
	}
	return false
}
