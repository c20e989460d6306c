package compiler

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/architect-io/bpcompile/pkg/blueprint"
	"github.com/architect-io/bpcompile/pkg/cratedoc"
	"github.com/architect-io/bpcompile/pkg/lifecycle"
	"github.com/architect-io/bpcompile/pkg/pkggraph"
)

func testGraph() pkggraph.Graph {
	return pkggraph.NewStatic("crate", []pkggraph.Package{
		{ID: "crate", ImportPath: "myapp"},
	})
}

func TestCompilesMinimalBlueprint(t *testing.T) {
	docs := cratedoc.NewStaticIndex().
		AddFunction("request_handler", cratedoc.FunctionSignature{
			Inputs: []cratedoc.TypeExpr{
				cratedoc.Path([]string{"crate", "Request"}),
				cratedoc.Path([]string{"crate", "Config"}),
			},
			Output: cratedoc.Path([]string{"crate", "Response"}),
		}).
		AddFunction("config", cratedoc.FunctionSignature{
			Output: cratedoc.Path([]string{"crate", "Config"}),
		})
	collection := cratedoc.NewCached(cratedoc.NewStaticSource(map[pkggraph.PackageID]cratedoc.DocIndex{"crate": docs}))

	bp := blueprint.NewBuilder().
		Handler("/home", "crate::request_handler", blueprint.Location{File: "a.rs"}).
		Constructor("crate::config", lifecycle.Singleton, blueprint.Location{File: "b.rs"}).
		Build()

	app, diags := Compile(bp, testGraph(), collection)
	if diags != nil {
		t.Fatalf("unexpected diagnostics: %+v", diags)
	}
	if app == nil {
		t.Fatalf("expected a non-nil App")
	}
	if len(app.HandlerGraphs) != 1 {
		t.Fatalf("expected one handler graph, got %d", len(app.HandlerGraphs))
	}
	g, ok := app.HandlerGraphs["/home"]
	if !ok {
		t.Fatalf("expected a graph for /home")
	}
	if len(g.Nodes) != 3 {
		t.Fatalf("expected 3 nodes (binding, constructor, sink), got %d: %+v", len(g.Nodes), g.Nodes)
	}
	if app.AppState == nil || app.AppState.Graph == nil {
		t.Fatalf("expected an application-state graph")
	}
	if len(app.CodegenTypes) == 0 {
		t.Fatalf("expected non-empty codegen types")
	}
}

func TestCompileStopsAtFirstFailingGate(t *testing.T) {
	docs := cratedoc.NewStaticIndex().
		AddFunction("request_handler", cratedoc.FunctionSignature{
			Inputs: []cratedoc.TypeExpr{
				cratedoc.Path([]string{"crate", "Config"}),
			},
			Output: cratedoc.Path([]string{"crate", "Response"}),
		})
	collection := cratedoc.NewCached(cratedoc.NewStaticSource(map[pkggraph.PackageID]cratedoc.DocIndex{"crate": docs}))

	bp := blueprint.NewBuilder().
		Handler("/home", "crate::request_handler", blueprint.Location{File: "a.rs"}).
		Build()

	app, diags := Compile(bp, testGraph(), collection)
	if app != nil {
		t.Fatalf("expected a nil App on failure")
	}
	if len(diags) == 0 {
		t.Fatalf("expected at least one diagnostic")
	}
	if diags[0].Code != "ConstructibleError" {
		t.Fatalf("expected a ConstructibleError from the call-graph stage, got %s", diags[0].Code)
	}
}

func TestPersistWritesOneDotFilePerHandler(t *testing.T) {
	docs := cratedoc.NewStaticIndex().
		AddFunction("request_handler", cratedoc.FunctionSignature{
			Inputs: []cratedoc.TypeExpr{
				cratedoc.Path([]string{"crate", "Request"}),
			},
			Output: cratedoc.Path([]string{"crate", "Response"}),
		})
	collection := cratedoc.NewCached(cratedoc.NewStaticSource(map[pkggraph.PackageID]cratedoc.DocIndex{"crate": docs}))

	bp := blueprint.NewBuilder().
		Handler("/widgets", "crate::request_handler", blueprint.Location{File: "a.rs"}).
		Build()

	app, diags := Compile(bp, testGraph(), collection)
	if diags != nil {
		t.Fatalf("unexpected diagnostics: %+v", diags)
	}

	dir := t.TempDir()
	if err := app.Persist(dir); err != nil {
		t.Fatalf("Persist failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "handlers", "widgets.dot")); err != nil {
		t.Fatalf("expected handlers/widgets.dot: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "app_state.dot")); err != nil {
		t.Fatalf("expected app_state.dot: %v", err)
	}
}

func TestPersistFlatConcatenatesGraphs(t *testing.T) {
	docs := cratedoc.NewStaticIndex().
		AddFunction("request_handler", cratedoc.FunctionSignature{
			Inputs: []cratedoc.TypeExpr{
				cratedoc.Path([]string{"crate", "Request"}),
			},
			Output: cratedoc.Path([]string{"crate", "Response"}),
		})
	collection := cratedoc.NewCached(cratedoc.NewStaticSource(map[pkggraph.PackageID]cratedoc.DocIndex{"crate": docs}))

	bp := blueprint.NewBuilder().
		Handler("/widgets", "crate::request_handler", blueprint.Location{File: "a.rs"}).
		Build()

	app, diags := Compile(bp, testGraph(), collection)
	if diags != nil {
		t.Fatalf("unexpected diagnostics: %+v", diags)
	}

	path := filepath.Join(t.TempDir(), "graphs.dot")
	if err := app.PersistFlat(path); err != nil {
		t.Fatalf("PersistFlat failed: %v", err)
	}
	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading flat file: %v", err)
	}
	if len(contents) == 0 {
		t.Fatalf("expected non-empty flat graph file")
	}
}

func TestPersistMermaidWritesFlowchart(t *testing.T) {
	docs := cratedoc.NewStaticIndex().
		AddFunction("request_handler", cratedoc.FunctionSignature{
			Inputs: []cratedoc.TypeExpr{
				cratedoc.Path([]string{"crate", "Request"}),
			},
			Output: cratedoc.Path([]string{"crate", "Response"}),
		})
	collection := cratedoc.NewCached(cratedoc.NewStaticSource(map[pkggraph.PackageID]cratedoc.DocIndex{"crate": docs}))

	bp := blueprint.NewBuilder().
		Handler("/widgets", "crate::request_handler", blueprint.Location{File: "a.rs"}).
		Build()

	app, diags := Compile(bp, testGraph(), collection)
	if diags != nil {
		t.Fatalf("unexpected diagnostics: %+v", diags)
	}

	path := filepath.Join(t.TempDir(), "graphs.mmd")
	if err := app.PersistMermaid(path); err != nil {
		t.Fatalf("PersistMermaid failed: %v", err)
	}
	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading mermaid file: %v", err)
	}
	if !strings.Contains(string(contents), "flowchart TD") {
		t.Fatalf("expected a mermaid flowchart header, got: %s", string(contents))
	}
}
