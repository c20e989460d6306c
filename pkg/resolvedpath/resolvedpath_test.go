package resolvedpath

import (
	"testing"

	"github.com/architect-io/bpcompile/pkg/blueprint"
	"github.com/architect-io/bpcompile/pkg/diagnostics"
	"github.com/architect-io/bpcompile/pkg/lifecycle"
	"github.com/architect-io/bpcompile/pkg/pkggraph"
	"github.com/architect-io/bpcompile/pkg/rawid"
)

func testGraph() pkggraph.Graph {
	return pkggraph.NewStatic("crate", []pkggraph.Package{
		{ID: "crate", ImportPath: "myapp", Dependencies: map[string]pkggraph.PackageID{
			"hyper": "hyper@1.0",
		}},
		{ID: "hyper@1.0", ImportPath: "hyper"},
	})
}

func TestResolvesCrateAndDependency(t *testing.T) {
	bp := blueprint.NewBuilder().
		Constructor("crate::config", lifecycle.Singleton, blueprint.Location{File: "a.rs"}).
		Constructor("hyper::Body::new", lifecycle.Transient, blueprint.Location{File: "b.rs"}).
		Build()

	raw := rawid.Build(bp)
	sink := diagnostics.NewSink()
	db := Build(raw, testGraph(), sink)

	if sink.HasErrors() {
		t.Fatalf("unexpected diagnostics: %+v", sink.Errors())
	}

	configID := raw.Intern("crate::config")
	path, ok := db.Lookup(configID)
	if !ok {
		t.Fatalf("expected crate::config to resolve")
	}
	if path.Package != "crate" || path.Segments[0] != "config" {
		t.Fatalf("unexpected resolved path: %+v", path)
	}

	hyperID := raw.Intern("hyper::Body::new")
	hyperPath, ok := db.Lookup(hyperID)
	if !ok {
		t.Fatalf("expected hyper::Body::new to resolve")
	}
	if hyperPath.Package != "hyper@1.0" {
		t.Fatalf("expected hyper dependency to resolve to its package id, got %v", hyperPath.Package)
	}
}

func TestUnknownCrateDiagnosed(t *testing.T) {
	bp := blueprint.NewBuilder().
		Constructor("unknown_crate::thing", lifecycle.Singleton, blueprint.Location{File: "a.rs"}).
		Build()

	raw := rawid.Build(bp)
	sink := diagnostics.NewSink()
	Build(raw, testGraph(), sink)

	if !sink.HasErrors() {
		t.Fatalf("expected UnknownCrate diagnostic")
	}
	if sink.Errors()[0].Code != "UnknownCrate" {
		t.Fatalf("expected UnknownCrate code, got %s", sink.Errors()[0].Code)
	}
}

func TestMalformedPathDiagnosed(t *testing.T) {
	bp := blueprint.NewBuilder().
		Constructor("crate::Option<'a, T>", lifecycle.Singleton, blueprint.Location{File: "a.rs"}).
		Build()

	raw := rawid.Build(bp)
	sink := diagnostics.NewSink()
	Build(raw, testGraph(), sink)

	if !sink.HasErrors() {
		t.Fatalf("expected MalformedPath diagnostic")
	}
	if sink.Errors()[0].Code != "MalformedPath" {
		t.Fatalf("expected MalformedPath code, got %s", sink.Errors()[0].Code)
	}
}
