// Package hclformat loads a Blueprint from an HCL document, for users who
// prefer a declarative block syntax over YAML. It decodes into exactly
// the same blueprint.Blueprint value the YAML front-end produces.
package hclformat

import (
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"

	"github.com/architect-io/bpcompile/pkg/blueprint"
	"github.com/architect-io/bpcompile/pkg/errs"
	"github.com/architect-io/bpcompile/pkg/lifecycle"
)

type hclRoot struct {
	Handlers     []hclHandler     `hcl:"handler,block"`
	Constructors []hclConstructor `hcl:"constructor,block"`
}

type hclHandler struct {
	Route        string         `hcl:"route,label"`
	Handler      string         `hcl:"handler"`
	ErrorHandler string         `hcl:"error_handler,optional"`
	When         hcl.Expression `hcl:"when,optional"`
}

type hclConstructor struct {
	Callable     string         `hcl:"callable,label"`
	Lifecycle    string         `hcl:"lifecycle"`
	ErrorHandler string         `hcl:"error_handler,optional"`
	When         hcl.Expression `hcl:"when,optional"`
}

// Load reads and decodes a blueprint HCL file at path.
func Load(path string) (*blueprint.Blueprint, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, errs.Wrap(errs.CodeBlueprint, fmt.Sprintf("failed to parse %s", path), diags)
	}
	return decode(file, path)
}

func decode(file *hcl.File, path string) (*blueprint.Blueprint, error) {
	var root hclRoot
	if diags := gohcl.DecodeBody(file.Body, nil, &root); diags.HasErrors() {
		return nil, errs.Wrap(errs.CodeBlueprint, fmt.Sprintf("failed to decode %s", path), diags)
	}

	evalCtx := envEvalContext()

	b := blueprint.NewBuilder()
	for _, h := range root.Handlers {
		enabled, err := evalWhen(h.When, evalCtx)
		if err != nil {
			return nil, errs.Wrap(errs.CodeBlueprint, fmt.Sprintf("handler %q: %v", h.Route, err), err)
		}
		if !enabled {
			continue
		}
		loc := blueprint.Location{File: path}
		b.Handler(h.Route, blueprint.RawCallable(h.Handler), loc)
		if h.ErrorHandler != "" {
			b.HandlerErrorHandler(h.Route, blueprint.RawCallable(h.ErrorHandler), loc)
		}
	}
	for _, c := range root.Constructors {
		enabled, err := evalWhen(c.When, evalCtx)
		if err != nil {
			return nil, errs.Wrap(errs.CodeBlueprint, fmt.Sprintf("constructor %q: %v", c.Callable, err), err)
		}
		if !enabled {
			continue
		}
		lc, err := parseLifecycle(c.Lifecycle)
		if err != nil {
			return nil, errs.Wrap(errs.CodeBlueprint, fmt.Sprintf("constructor %q: %v", c.Callable, err), err)
		}
		loc := blueprint.Location{File: path}
		callable := blueprint.RawCallable(c.Callable)
		b.Constructor(callable, lc, loc)
		if c.ErrorHandler != "" {
			b.ConstructorErrorHandler(callable, blueprint.RawCallable(c.ErrorHandler), loc)
		}
	}
	return b.Build(), nil
}

// envFunc looks up an environment variable, returning "" when it is
// unset so a "when" expression can compare it without a prior exists
// check - the same Params/Impl shape as the teacher's base64/json
// helper functions, just backed by os.LookupEnv instead of a codec.
var envFunc = function.New(&function.Spec{
	Params: []function.Parameter{
		{Name: "name", Type: cty.String},
	},
	Type: function.StaticReturnType(cty.String),
	Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
		val, _ := os.LookupEnv(args[0].AsString())
		return cty.StringVal(val), nil
	},
})

// envEvalContext gives "when" expressions an env(name) function to read
// the process environment, the same function-table shape the teacher's
// datacenter schema builds for its own HCL evaluation context.
func envEvalContext() *hcl.EvalContext {
	return &hcl.EvalContext{Functions: map[string]function.Function{"env": envFunc}}
}

// evalWhen reports whether a registration's optional "when" attribute
// gates it in. An omitted attribute (gohcl decodes it as an expression
// whose value is null) always passes, matching the teacher's
// EvaluateWhen treatment of a nil condition.
func evalWhen(expr hcl.Expression, ctx *hcl.EvalContext) (bool, error) {
	if expr == nil {
		return true, nil
	}
	val, diags := expr.Value(ctx)
	if diags.HasErrors() {
		return false, diags
	}
	if val.IsNull() {
		return true, nil
	}
	switch {
	case val.Type() == cty.Bool:
		return val.True(), nil
	case val.Type() == cty.String:
		return val.AsString() != "", nil
	default:
		return !val.IsNull(), nil
	}
}

func parseLifecycle(s string) (lifecycle.Lifecycle, error) {
	switch s {
	case "singleton":
		return lifecycle.Singleton, nil
	case "request_scoped", "request-scoped":
		return lifecycle.RequestScoped, nil
	case "transient":
		return lifecycle.Transient, nil
	default:
		return 0, fmt.Errorf("unknown lifecycle %q (expected singleton, request_scoped, or transient)", s)
	}
}
