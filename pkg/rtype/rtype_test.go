package rtype

import (
	"testing"

	"github.com/architect-io/bpcompile/pkg/pkggraph"
)

func configType() Type {
	return NewPath(Path{Package: pkggraph.CurrentPackageID, Segments: []Segment{{Name: "Config"}}})
}

func TestEqualStructural(t *testing.T) {
	a := configType()
	b := configType()
	if !a.Equal(b) {
		t.Fatalf("expected structurally identical types to be equal")
	}
}

func TestEqualModuloGenericNaming(t *testing.T) {
	a := NewPath(Path{Package: "crate", Segments: []Segment{{Name: "Wrapper", Args: []Type{NewGeneric("T")}}}})
	b := NewPath(Path{Package: "crate", Segments: []Segment{{Name: "Wrapper", Args: []Type{NewGeneric("U")}}}})
	if !a.Equal(b) {
		t.Fatalf("expected generics bound at the same position to compare equal regardless of name")
	}
}

func TestReferenceOwned(t *testing.T) {
	owned := configType()
	ref := NewReference(owned, true, false)
	if !ref.Owned().Equal(owned) {
		t.Fatalf("expected Owned() to strip the reference wrapper")
	}
}

func TestDistinctPathsNotEqual(t *testing.T) {
	a := configType()
	b := NewPath(Path{Package: pkggraph.CurrentPackageID, Segments: []Segment{{Name: "HttpClient"}}})
	if a.Equal(b) {
		t.Fatalf("expected distinct named types to differ")
	}
}
