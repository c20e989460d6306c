// Package resolvedpath binds every user component's symbolic textual
// path to a real package: the literal "crate" binds to the current
// package, any other leading segment must name a direct dependency.
package resolvedpath

import (
	"fmt"
	"strings"

	"github.com/architect-io/bpcompile/pkg/blueprint"
	"github.com/architect-io/bpcompile/pkg/diagnostics"
	"github.com/architect-io/bpcompile/pkg/pkggraph"
	"github.com/architect-io/bpcompile/pkg/rawid"
)

// Path is a package-pinned symbolic path: a sequence of plain segments
// plus the id of the owning package. Created here; immutable thereafter.
type Path struct {
	Package  pkggraph.PackageID
	Segments []string
}

func (p Path) String() string {
	return string(p.Package) + ":" + strings.Join(p.Segments, "::")
}

// DB maps each raw callable id to its resolved, package-pinned path.
type DB struct {
	paths map[rawid.ID]Path
}

// Build resolves the path of every raw id in raw against pkgs. Failures
// are pushed into sink as UnknownCrate or MalformedPath diagnostics and
// that raw id is simply left unresolved; callers consult Lookup and
// treat a miss as "already diagnosed".
func Build(raw *rawid.DB, pkgs pkggraph.Graph, sink *diagnostics.Sink) *DB {
	db := &DB{paths: map[rawid.ID]Path{}}

	raw.All(func(id rawid.ID, callable blueprint.RawCallable) bool {
		path, err := parse(string(callable))
		loc := raw.GetLocation(id)
		span := diagnostics.Span{File: loc.File, ByteStart: loc.ByteStart, ByteEnd: loc.ByteEnd}
		if err != nil {
			sink.Push(diagnostics.New(diagnostics.Error, "MalformedPath",
				fmt.Sprintf("cannot parse %q as a path: %v", callable, err)).
				Label(span, "offending reference").
				WithHelp("paths must be a sequence of identifiers separated by \"::\", with no lifetime or turbofish syntax").
				Build())
			return true
		}

		leading := path[0]
		var pkgID pkggraph.PackageID
		if leading == "crate" {
			pkgID = pkgs.Current().ID
		} else if dep, ok := pkgs.Dependency(pkgs.Current().ID, leading); ok {
			pkgID = dep.ID
		} else {
			names := pkggraph.DependencyNames(pkgs.Current())
			help := fmt.Sprintf("add %q as a dependency", leading)
			if len(names) > 0 {
				help = fmt.Sprintf("%s (direct dependencies: %s)", help, strings.Join(names, ", "))
			}
			sink.Push(diagnostics.New(diagnostics.Error, "UnknownCrate",
				fmt.Sprintf("%q is neither \"crate\" nor a direct dependency", leading)).
				Label(span, "unresolved leading segment").
				WithHelp(help).
				Build())
			return true
		}

		db.paths[id] = Path{Package: pkgID, Segments: path[1:]}
		return true
	})

	return db
}

// Lookup returns the resolved path for a raw id.
func (db *DB) Lookup(id rawid.ID) (Path, bool) {
	p, ok := db.paths[id]
	return p, ok
}

// parse splits a textual callable reference into path segments,
// rejecting the syntax the resolver does not model (generic arguments,
// lifetimes, whitespace).
func parse(raw string) ([]string, error) {
	if raw == "" {
		return nil, fmt.Errorf("empty path")
	}
	if strings.ContainsAny(raw, "<>'") {
		return nil, fmt.Errorf("generic arguments and lifetimes are not supported in a callable path")
	}
	segments := strings.Split(raw, "::")
	for _, s := range segments {
		if s == "" {
			return nil, fmt.Errorf("empty path segment")
		}
		if strings.ContainsAny(s, " \t\n") {
			return nil, fmt.Errorf("path segment %q contains whitespace", s)
		}
	}
	return segments, nil
}
