// Package pkggraph is the external collaborator that resolves the user's
// workspace into a set of versioned packages and an id for each. The
// compiler core only ever queries it by package id and by dependency
// relation; how the graph itself is computed (module proxy, vendor
// directory, local replace directives) is outside the core's concerns.
package pkggraph

import "sort"

// PackageID identifies a package within the graph. The literal "crate"
// is reserved for the current (root) package, matching the distinguished
// id the core always resolves "crate::..." paths against.
type PackageID string

// CurrentPackageID is the distinguished id of the package under
// compilation.
const CurrentPackageID PackageID = "crate"

// StdlibPackages are always present, regardless of what the workspace's
// own manifest declares - the Go analogue of pavex's TOOLCHAIN_CRATES.
var StdlibPackages = []string{
	"context", "errors", "fmt", "io", "net/http", "sync", "time",
}

// Package describes one node in the graph: its id, its module path, and
// the set of packages it directly imports.
type Package struct {
	ID           PackageID
	ImportPath   string
	Version      string
	Dependencies map[string]PackageID // import-name -> dependency package id
}

// Graph answers the two questions the resolved-path DB needs: what is
// the current package, and does a given package have a direct
// dependency with this name.
type Graph interface {
	// Current returns the package under compilation.
	Current() Package
	// Dependency resolves a direct dependency of `of` by its declared
	// name (the leading segment of a "name::..." path), case-sensitively.
	Dependency(of PackageID, name string) (Package, bool)
	// Package looks up a package by id.
	Package(id PackageID) (Package, bool)
}

// Static is an in-memory Graph, built once from a fixed package list.
// Production front-ends populate a Static graph from `go list -json`
// or an equivalent workspace scan; the core has no opinion on how.
type Static struct {
	current PackageID
	byID    map[PackageID]Package
}

// NewStatic builds a Static graph. current must appear in packages.
func NewStatic(current PackageID, packages []Package) *Static {
	byID := make(map[PackageID]Package, len(packages))
	for _, p := range packages {
		byID[p.ID] = p
	}
	return &Static{current: current, byID: byID}
}

func (g *Static) Current() Package {
	return g.byID[g.current]
}

func (g *Static) Package(id PackageID) (Package, bool) {
	p, ok := g.byID[id]
	return p, ok
}

func (g *Static) Dependency(of PackageID, name string) (Package, bool) {
	pkg, ok := g.byID[of]
	if !ok {
		return Package{}, false
	}
	depID, ok := pkg.Dependencies[name]
	if !ok {
		return Package{}, false
	}
	dep, ok := g.byID[depID]
	return dep, ok
}

// DependencyNames returns the sorted direct-dependency names of a
// package, for error messages ("did you mean one of: ...").
func DependencyNames(p Package) []string {
	names := make([]string, 0, len(p.Dependencies))
	for name := range p.Dependencies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
