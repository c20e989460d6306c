// Package yamlformat loads a Blueprint from a YAML document. YAML is the
// format used for every user-facing schema in the surrounding tooling,
// so it is the default on-disk format for a blueprint as well.
package yamlformat

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/architect-io/bpcompile/pkg/blueprint"
	"github.com/architect-io/bpcompile/pkg/errs"
	"github.com/architect-io/bpcompile/pkg/lifecycle"
)

type rawHandler struct {
	Handler      blueprint.RawCallable `yaml:"handler"`
	ErrorHandler blueprint.RawCallable `yaml:"error_handler,omitempty"`
}

type rawConstructor struct {
	Callable     blueprint.RawCallable `yaml:"callable"`
	Lifecycle    string                `yaml:"lifecycle"`
	ErrorHandler blueprint.RawCallable `yaml:"error_handler,omitempty"`
}

type rawBlueprint struct {
	Handlers     map[string]rawHandler `yaml:"handlers"`
	Constructors []rawConstructor       `yaml:"constructors"`
}

// Load reads and decodes a blueprint YAML file at path.
func Load(path string) (*blueprint.Blueprint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.CodeIO, fmt.Sprintf("failed to read %s", path), err)
	}
	return LoadBytes(data, path)
}

// LoadBytes decodes a blueprint YAML document already in memory. path is
// used only to annotate Locations.
func LoadBytes(data []byte, path string) (*blueprint.Blueprint, error) {
	// Decode twice: once into the typed struct for values, once into a
	// yaml.Node tree so every registration can be pinned to a line/column
	// inside the source document (yaml.v3 only exposes Line/Column, not
	// byte offsets, on the Node API - that's the granularity Locations
	// get from this front-end).
	var raw rawBlueprint
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errs.Wrap(errs.CodeBlueprint, fmt.Sprintf("failed to parse %s", path), err)
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, errs.Wrap(errs.CodeBlueprint, fmt.Sprintf("failed to parse %s", path), err)
	}

	lines := newLineIndex(&root)
	b := blueprint.NewBuilder()

	for route, h := range raw.Handlers {
		loc := lines.location(path, "handlers", route, "handler")
		b.Handler(route, h.Handler, loc)
		if h.ErrorHandler != "" {
			ehLoc := lines.location(path, "handlers", route, "error_handler")
			b.HandlerErrorHandler(route, h.ErrorHandler, ehLoc)
		}
	}

	for i, c := range raw.Constructors {
		lc, err := parseLifecycle(c.Lifecycle)
		if err != nil {
			return nil, errs.Wrap(errs.CodeBlueprint, fmt.Sprintf("constructor %q: %v", c.Callable, err), err)
		}
		loc := lines.constructorLocation(path, i)
		b.Constructor(c.Callable, lc, loc)
		if c.ErrorHandler != "" {
			b.ConstructorErrorHandler(c.Callable, c.ErrorHandler, loc)
		}
	}

	return b.Build(), nil
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

// lineIndex provides best-effort line lookups for registrations found by
// walking a decoded yaml.Node tree. It does not attempt to handle every
// YAML shape, only the Blueprint schema above.
type lineIndex struct {
	root *yaml.Node
}

func newLineIndex(root *yaml.Node) *lineIndex {
	return &lineIndex{root: root}
}

func (l *lineIndex) location(path string, keys ...string) blueprint.Location {
	node := l.root
	if len(node.Content) > 0 {
		node = node.Content[0]
	}
	for _, key := range keys {
		node = mapValue(node, key)
		if node == nil {
			return blueprint.Location{File: path}
		}
	}
	return blueprint.Location{File: path, ByteStart: node.Line, ByteEnd: node.Line}
}

func (l *lineIndex) constructorLocation(path string, index int) blueprint.Location {
	node := l.root
	if len(node.Content) > 0 {
		node = node.Content[0]
	}
	seq := mapValue(node, "constructors")
	if seq == nil || index >= len(seq.Content) {
		return blueprint.Location{File: path}
	}
	entry := seq.Content[index]
	return blueprint.Location{File: path, ByteStart: entry.Line, ByteEnd: entry.Line}
}

func mapValue(mapping *yaml.Node, key string) *yaml.Node {
	if mapping == nil || mapping.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return mapping.Content[i+1]
		}
	}
	return nil
}
