package computation

import (
	"testing"

	"github.com/architect-io/bpcompile/pkg/blueprint"
	"github.com/architect-io/bpcompile/pkg/cratedoc"
	"github.com/architect-io/bpcompile/pkg/diagnostics"
	"github.com/architect-io/bpcompile/pkg/lifecycle"
	"github.com/architect-io/bpcompile/pkg/pkggraph"
	"github.com/architect-io/bpcompile/pkg/rawid"
	"github.com/architect-io/bpcompile/pkg/resolvedpath"
	"github.com/architect-io/bpcompile/pkg/rtype"
)

func testGraph() pkggraph.Graph {
	return pkggraph.NewStatic("crate", []pkggraph.Package{
		{ID: "crate", ImportPath: "myapp", Dependencies: map[string]pkggraph.PackageID{
			"hyper": "hyper@1.0",
		}},
		{ID: "hyper@1.0", ImportPath: "hyper"},
	})
}

func testDocs() cratedoc.Collection {
	crate := cratedoc.NewStaticIndex().
		AddFunction("config", cratedoc.FunctionSignature{
			Output: cratedoc.Path([]string{"crate", "Config"}),
		}).
		AddFunction("connect", cratedoc.FunctionSignature{
			Inputs: []cratedoc.TypeExpr{
				cratedoc.Reference(cratedoc.Path([]string{"crate", "Config"}), false, false),
			},
			Output: cratedoc.Path([]string{"crate", "Result"},
				cratedoc.Path([]string{"crate", "Connection"}),
				cratedoc.Path([]string{"crate", "ConnectError"}),
			),
		}).
		AddItem("Config", cratedoc.ItemStruct).
		AddFunction("bad_signature", cratedoc.FunctionSignature{
			Output:          cratedoc.Primitive("bool"),
			ImplTraitInputs: true,
		})
	hyper := cratedoc.NewStaticIndex().
		AddFunction("Body::new", cratedoc.FunctionSignature{
			// Rustdoc-style documentation always refers to a crate's own
			// items as "crate::...", regardless of the crate's own name.
			Output: cratedoc.Path([]string{"crate", "Body"}),
		})

	return cratedoc.NewCached(cratedoc.NewStaticSource(map[pkggraph.PackageID]cratedoc.DocIndex{
		"crate":     crate,
		"hyper@1.0": hyper,
	}))
}

func TestResolvesInfallibleComputation(t *testing.T) {
	bp := blueprint.NewBuilder().
		Constructor("crate::config", lifecycle.Singleton, blueprint.Location{File: "a.rs"}).
		Build()

	raw := rawid.Build(bp)
	sink := diagnostics.NewSink()
	paths := resolvedpath.Build(raw, testGraph(), sink)
	db := Build(raw, paths, testGraph(), testDocs(), sink)

	if sink.HasErrors() {
		t.Fatalf("unexpected diagnostics: %+v", sink.Errors())
	}

	id := raw.Intern("crate::config")
	comp, ok := db.Get(id)
	if !ok {
		t.Fatalf("expected a computation for crate::config")
	}
	if len(comp.Inputs) != 0 {
		t.Fatalf("expected no inputs, got %+v", comp.Inputs)
	}
	if comp.Output.Fallible() {
		t.Fatalf("expected an infallible output")
	}
	want := rtype.NewPath(rtype.Path{Package: "crate", Segments: []rtype.Segment{{Name: "Config"}}})
	if !comp.Output.OK.Equal(want) {
		t.Fatalf("unexpected output type: %s", comp.Output.OK)
	}
}

func TestResolvesFallibleComputationAndReferenceInput(t *testing.T) {
	bp := blueprint.NewBuilder().
		Constructor("crate::connect", lifecycle.Singleton, blueprint.Location{File: "a.rs"}).
		Build()

	raw := rawid.Build(bp)
	sink := diagnostics.NewSink()
	paths := resolvedpath.Build(raw, testGraph(), sink)
	db := Build(raw, paths, testGraph(), testDocs(), sink)

	if sink.HasErrors() {
		t.Fatalf("unexpected diagnostics: %+v", sink.Errors())
	}

	id := raw.Intern("crate::connect")
	comp, ok := db.Get(id)
	if !ok {
		t.Fatalf("expected a computation for crate::connect")
	}
	if len(comp.Inputs) != 1 || comp.Inputs[0].Kind != rtype.KindReference {
		t.Fatalf("expected a single reference input, got %+v", comp.Inputs)
	}
	if !comp.Output.Fallible() {
		t.Fatalf("expected a fallible output")
	}
	wantOK := rtype.NewPath(rtype.Path{Package: "crate", Segments: []rtype.Segment{{Name: "Connection"}}})
	if !comp.Output.OK.Equal(wantOK) {
		t.Fatalf("unexpected ok type: %s", comp.Output.OK)
	}
}

func TestResolvesDependencyPackageInSignature(t *testing.T) {
	bp := blueprint.NewBuilder().
		Constructor("hyper::Body::new", lifecycle.Transient, blueprint.Location{File: "a.rs"}).
		Build()

	raw := rawid.Build(bp)
	sink := diagnostics.NewSink()
	paths := resolvedpath.Build(raw, testGraph(), sink)
	db := Build(raw, paths, testGraph(), testDocs(), sink)

	if sink.HasErrors() {
		t.Fatalf("unexpected diagnostics: %+v", sink.Errors())
	}

	id := raw.Intern("hyper::Body::new")
	comp, ok := db.Get(id)
	if !ok {
		t.Fatalf("expected a computation for hyper::Body::new")
	}
	if comp.Output.OK.PathValue().Package != "hyper@1.0" {
		t.Fatalf("expected output type pinned to the hyper package, got %+v", comp.Output.OK)
	}
}

func TestItemNotFoundDiagnosed(t *testing.T) {
	bp := blueprint.NewBuilder().
		Constructor("crate::missing", lifecycle.Singleton, blueprint.Location{File: "a.rs"}).
		Build()

	raw := rawid.Build(bp)
	sink := diagnostics.NewSink()
	paths := resolvedpath.Build(raw, testGraph(), sink)
	Build(raw, paths, testGraph(), testDocs(), sink)

	if !sink.HasErrors() {
		t.Fatalf("expected ItemNotFound diagnostic")
	}
	if sink.Errors()[0].Code != "ItemNotFound" {
		t.Fatalf("expected ItemNotFound code, got %s", sink.Errors()[0].Code)
	}
}

func TestItemNotCallableDiagnosed(t *testing.T) {
	bp := blueprint.NewBuilder().
		Constructor("crate::Config", lifecycle.Singleton, blueprint.Location{File: "a.rs"}).
		Build()

	raw := rawid.Build(bp)
	sink := diagnostics.NewSink()
	paths := resolvedpath.Build(raw, testGraph(), sink)
	Build(raw, paths, testGraph(), testDocs(), sink)

	if !sink.HasErrors() {
		t.Fatalf("expected ItemNotCallable diagnostic")
	}
	if sink.Errors()[0].Code != "ItemNotCallable" {
		t.Fatalf("expected ItemNotCallable code, got %s", sink.Errors()[0].Code)
	}
}

func TestUnsupportedSignatureDiagnosed(t *testing.T) {
	bp := blueprint.NewBuilder().
		Constructor("crate::bad_signature", lifecycle.Singleton, blueprint.Location{File: "a.rs"}).
		Build()

	raw := rawid.Build(bp)
	sink := diagnostics.NewSink()
	paths := resolvedpath.Build(raw, testGraph(), sink)
	Build(raw, paths, testGraph(), testDocs(), sink)

	if !sink.HasErrors() {
		t.Fatalf("expected UnsupportedSignature diagnostic")
	}
	if sink.Errors()[0].Code != "UnsupportedSignature" {
		t.Fatalf("expected UnsupportedSignature code, got %s", sink.Errors()[0].Code)
	}
}
