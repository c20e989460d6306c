// Package gomod is a pkggraph.Graph front-end that scans a real Go
// module with `go list`, the way the teacher's module builder shells
// out to external tooling (os/exec) rather than reimplementing it.
package gomod

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"path"
	"strings"

	"github.com/architect-io/bpcompile/pkg/errs"
	"github.com/architect-io/bpcompile/pkg/pkggraph"
)

// listEntry mirrors the subset of `go list -json` output this front-end
// needs.
type listEntry struct {
	ImportPath string   `json:"ImportPath"`
	Module     *module  `json:"Module"`
	Deps       []string `json:"Deps"`
	Imports    []string `json:"Imports"`
}

type module struct {
	Path    string `json:"Path"`
	Version string `json:"Version"`
	Main    bool   `json:"Main"`
}

// Build scans the Go module rooted at dir and returns the pkggraph.Graph
// the resolved-path DB resolves "crate::..." and dependency paths
// against. The current package is the module's root import path; every
// other listed package joins the graph keyed by its full import path.
// The direct imports of the root package become the current package's
// dependencies, each named by its last import-path segment, matching how
// a bare "name::..." path names its crate.
func Build(ctx context.Context, dir string) (*pkggraph.Static, error) {
	out, err := runGoList(ctx, dir)
	if err != nil {
		return nil, err
	}

	entries, err := decodeListStream(out)
	if err != nil {
		return nil, errs.Wrap(errs.CodePathResolution, "decoding `go list -json` output", err)
	}
	if len(entries) == 0 {
		return nil, errs.New(errs.CodePathResolution, fmt.Sprintf("`go list` found no packages under %s", dir))
	}

	var rootImportPath string
	packages := map[pkggraph.PackageID]pkggraph.Package{}
	for _, e := range entries {
		if e.Module != nil && e.Module.Main && rootImportPath == "" {
			rootImportPath = e.Module.Path
		}
	}
	if rootImportPath == "" {
		return nil, errs.New(errs.CodePathResolution, fmt.Sprintf("could not determine the main module path under %s", dir))
	}

	packages[pkggraph.CurrentPackageID] = pkggraph.Package{
		ID:           pkggraph.CurrentPackageID,
		ImportPath:   rootImportPath,
		Dependencies: map[string]pkggraph.PackageID{},
	}

	seen := map[string]bool{rootImportPath: true}
	for _, e := range entries {
		if e.ImportPath == rootImportPath || seen[e.ImportPath] {
			continue
		}
		seen[e.ImportPath] = true

		id := pkggraph.PackageID(e.ImportPath)
		version := ""
		if e.Module != nil {
			version = e.Module.Version
		}
		packages[id] = pkggraph.Package{
			ID:           id,
			ImportPath:   e.ImportPath,
			Version:      version,
			Dependencies: map[string]pkggraph.PackageID{},
		}
	}

	root := packages[pkggraph.CurrentPackageID]
	for _, e := range entries {
		if e.ImportPath != rootImportPath {
			continue
		}
		for _, dep := range e.Imports {
			if dep == rootImportPath {
				continue
			}
			name := crateName(dep)
			if _, ok := root.Dependencies[name]; !ok {
				root.Dependencies[name] = pkggraph.PackageID(dep)
			}
		}
	}
	packages[pkggraph.CurrentPackageID] = root

	list := make([]pkggraph.Package, 0, len(packages))
	for _, p := range packages {
		list = append(list, p)
	}
	return pkggraph.NewStatic(pkggraph.CurrentPackageID, list), nil
}

func runGoList(ctx context.Context, dir string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "go", "list", "-json", "-deps", "./...")
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, errs.Wrap(errs.CodePathResolution, "`go list` failed", fmt.Errorf("%s", string(exitErr.Stderr)))
		}
		return nil, errs.Wrap(errs.CodePathResolution, "running `go list`", err)
	}
	return out, nil
}

// decodeListStream decodes the newline-delimited sequence of JSON
// objects `go list -json` prints, one per package.
func decodeListStream(data []byte) ([]listEntry, error) {
	dec := json.NewDecoder(strings.NewReader(string(data)))
	var entries []listEntry
	for dec.More() {
		var e listEntry
		if err := dec.Decode(&e); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// crateName derives the bare name a dependency is addressed by in a
// "name::..." path from its full import path: the final path segment.
func crateName(importPath string) string {
	return path.Base(importPath)
}
