package callgraph

import (
	"strings"
	"testing"

	"github.com/architect-io/bpcompile/pkg/blueprint"
	"github.com/architect-io/bpcompile/pkg/component"
	"github.com/architect-io/bpcompile/pkg/computation"
	"github.com/architect-io/bpcompile/pkg/cratedoc"
	"github.com/architect-io/bpcompile/pkg/lifecycle"
	"github.com/architect-io/bpcompile/pkg/pkggraph"
	"github.com/architect-io/bpcompile/pkg/rtype"
	"github.com/architect-io/bpcompile/pkg/usercomp"
)

func TestMermaidRendersNodesAndEdges(t *testing.T) {
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

	requestType := rtype.NewPath(rtype.Path{Package: "crate", Segments: []rtype.Segment{{Name: "Request"}}})
	bindings := map[string]rtype.Type{"request": requestType}

	f := pipeline(bp, collection, bindings)
	if f.sink.HasErrors() {
		t.Fatalf("unexpected diagnostics: %+v", f.sink.Errors())
	}

	var handler component.ID
	f.comps.All(func(id component.ID, c *component.Component) bool {
		if c.Kind == usercomp.RequestHandler {
			handler = id
		}
		return true
	})

	g := BuildHandler(handler, f.raw, f.comps, f.constr, bindings, f.sink)

	names := func(id pkggraph.PackageID) string { return string(id) }
	out := g.Mermaid(names, f.comps, &computation.DB{})

	if !strings.HasPrefix(out, "flowchart TD\n") {
		t.Fatalf("expected mermaid flowchart header, got: %s", out)
	}
	if strings.Count(out, "-->") != len(g.Edges) {
		t.Fatalf("expected %d edges rendered, got output: %s", len(g.Edges), out)
	}
	for i := range g.Nodes {
		want := "n" + itoa(i) + "["
		if !strings.Contains(out, want) {
			t.Fatalf("expected node declaration %q in output: %s", want, out)
		}
	}
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	digits := []byte{}
	for i > 0 {
		digits = append([]byte{byte('0' + i%10)}, digits...)
		i /= 10
	}
	return string(digits)
}
