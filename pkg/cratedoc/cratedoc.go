// Package cratedoc is the external collaborator that, on demand, returns
// structured documentation for a package: its items, their types, and
// trait implementations. The computation DB consults it to turn a
// resolved path into a concrete callable signature.
package cratedoc

import (
	"fmt"
	"sync"

	"github.com/architect-io/bpcompile/pkg/pkggraph"
)

// ExprKind discriminates the shapes an unresolved type expression from a
// package's documentation can take. It mirrors rtype.Kind but keeps path
// segments textual - nested paths are only bound to a package once the
// computation DB resolves them through the same path-resolution
// mechanism used for the callable itself.
type ExprKind int

const (
	ExprPath ExprKind = iota
	ExprReference
	ExprTuple
	ExprSlice
	ExprPrimitive
	ExprGeneric
	ExprNever
)

// TypeExpr is an unresolved type as reported by a package's
// documentation: a textual path (e.g. ["crate", "Config"] or
// ["hyper", "Body"]), not yet bound to a package id.
type TypeExpr struct {
	Kind ExprKind

	PathSegments []string
	TypeArgs     []TypeExpr

	Inner     *TypeExpr
	IsStatic  bool
	IsMutable bool

	Tuple []TypeExpr

	Primitive string
	Generic   string
}

// Path builds an ExprPath TypeExpr.
func Path(segments []string, typeArgs ...TypeExpr) TypeExpr {
	return TypeExpr{Kind: ExprPath, PathSegments: segments, TypeArgs: typeArgs}
}

// Reference builds an ExprReference TypeExpr.
func Reference(inner TypeExpr, isStatic, isMutable bool) TypeExpr {
	return TypeExpr{Kind: ExprReference, Inner: &inner, IsStatic: isStatic, IsMutable: isMutable}
}

// Tuple builds an ExprTuple TypeExpr.
func Tuple(elems ...TypeExpr) TypeExpr {
	return TypeExpr{Kind: ExprTuple, Tuple: elems}
}

// Slice builds an ExprSlice TypeExpr.
func Slice(elem TypeExpr) TypeExpr {
	return TypeExpr{Kind: ExprSlice, Inner: &elem}
}

// Primitive builds an ExprPrimitive TypeExpr.
func Primitive(kind string) TypeExpr {
	return TypeExpr{Kind: ExprPrimitive, Primitive: kind}
}

// Generic builds an ExprGeneric TypeExpr.
func Generic(name string) TypeExpr {
	return TypeExpr{Kind: ExprGeneric, Generic: name}
}

// ItemKind classifies a documented item.
type ItemKind int

const (
	ItemFunction ItemKind = iota
	ItemStruct
	ItemEnum
	ItemTrait
	ItemOther
)

// FunctionSignature is a callable's documented signature: its ordered
// parameter types and its return type. A return type shaped like
// Result<Ok, Err> is detected by the computation DB, not here - this
// layer only reports what the documentation literally says.
type FunctionSignature struct {
	Inputs []TypeExpr
	Output TypeExpr
	// HigherRankedInputLifetimes and ImplTraitInputs flag constructs the
	// computation DB does not model (UnsupportedSignature, spec ssec 4.5).
	HigherRankedInputLifetimes bool
	ImplTraitInputs            bool
}

// Item is a single documented item: a function, a struct, an enum, or a
// trait.
type Item struct {
	Kind ItemKind
	// Signature is populated only when Kind == ItemFunction.
	Signature *FunctionSignature
}

// TraitImpl records that a concrete type implements a named trait.
type TraitImpl struct {
	Trait string
	Type  TypeExpr
}

// DocIndex is the documentation for a single package: item lookup and
// trait-implementation enumeration.
type DocIndex interface {
	// LookupItem finds an item by its path segments relative to the
	// package root (e.g. ["http_client"] or ["errors", "LoggerError"]).
	LookupItem(segments []string) (Item, bool)
	// Implements reports whether typeKey (an rtype.Type.Key()) has a
	// recorded implementation of the named trait.
	Implements(typeKey string, trait string) bool
}

// Collection is the crate collection: fetches (and caches) the
// documentation index for a package by id.
type Collection interface {
	Get(pkg pkggraph.PackageID) (DocIndex, error)
}

// Source fetches a fresh DocIndex for a package. Implementations live in
// the ociremote, gitremote, and dockerremote subpackages plus an
// in-memory Static source for tests.
type Source interface {
	Fetch(pkg pkggraph.PackageID) (DocIndex, error)
}

// StaticIndex is an in-memory DocIndex, populated directly - the shape
// tests and the Static Source use.
type StaticIndex struct {
	Items       map[string]Item
	TraitImpls  map[string]map[string]bool // typeKey -> trait -> true
}

// NewStaticIndex creates an empty StaticIndex.
func NewStaticIndex() *StaticIndex {
	return &StaticIndex{Items: map[string]Item{}, TraitImpls: map[string]map[string]bool{}}
}

// AddFunction registers a function item under the given dotted path key
// (segments joined with "::").
func (s *StaticIndex) AddFunction(key string, sig FunctionSignature) *StaticIndex {
	s.Items[key] = Item{Kind: ItemFunction, Signature: &sig}
	return s
}

// AddItem registers a non-function item (struct/enum/trait) under key.
func (s *StaticIndex) AddItem(key string, kind ItemKind) *StaticIndex {
	s.Items[key] = Item{Kind: kind}
	return s
}

// AddTraitImpl records that typeKey implements trait.
func (s *StaticIndex) AddTraitImpl(typeKey, trait string) *StaticIndex {
	if s.TraitImpls[typeKey] == nil {
		s.TraitImpls[typeKey] = map[string]bool{}
	}
	s.TraitImpls[typeKey][trait] = true
	return s
}

func (s *StaticIndex) LookupItem(segments []string) (Item, bool) {
	key := joinSegments(segments)
	item, ok := s.Items[key]
	return item, ok
}

func (s *StaticIndex) Implements(typeKey, trait string) bool {
	return s.TraitImpls[typeKey] != nil && s.TraitImpls[typeKey][trait]
}

func joinSegments(segments []string) string {
	out := ""
	for i, s := range segments {
		if i > 0 {
			out += "::"
		}
		out += s
	}
	return out
}

// StaticSource wraps a fixed map of per-package indexes as a Source.
type StaticSource struct {
	indexes map[pkggraph.PackageID]DocIndex
}

// NewStaticSource builds a Source from a fixed package->index map.
func NewStaticSource(indexes map[pkggraph.PackageID]DocIndex) *StaticSource {
	return &StaticSource{indexes: indexes}
}

func (s *StaticSource) Fetch(pkg pkggraph.PackageID) (DocIndex, error) {
	idx, ok := s.indexes[pkg]
	if !ok {
		return nil, fmt.Errorf("no documentation available for package %q", pkg)
	}
	return idx, nil
}

// Cached is the crate collection's cache layer: a monotone map from
// package id to its documentation index. Entries, once populated, are
// never invalidated for the duration of a run. The mutex is only ever
// held around the map access, not the fetch itself, so a Fetch that
// recursively calls back into Get (resolving a nested package's
// documentation while resolving this one) cannot deadlock.
type Cached struct {
	source Source

	mu    sync.Mutex
	cache map[pkggraph.PackageID]DocIndex
}

// NewCached wraps a Source with the monotone cache described in the
// concurrency model.
func NewCached(source Source) *Cached {
	return &Cached{source: source, cache: map[pkggraph.PackageID]DocIndex{}}
}

func (c *Cached) Get(pkg pkggraph.PackageID) (DocIndex, error) {
	c.mu.Lock()
	if idx, ok := c.cache[pkg]; ok {
		c.mu.Unlock()
		return idx, nil
	}
	c.mu.Unlock()

	idx, err := c.source.Fetch(pkg)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	// Another in-flight fetch (reached via recursive resolution) may have
	// populated this entry first; keep whichever was cached first so the
	// map stays monotone.
	if existing, ok := c.cache[pkg]; ok {
		c.mu.Unlock()
		return existing, nil
	}
	c.cache[pkg] = idx
	c.mu.Unlock()
	return idx, nil
}
