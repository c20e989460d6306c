// Package rtype implements the ResolvedType data model: a tagged variant
// over the handful of shapes a parameter or return type can take once
// every symbolic path inside it has been bound to a real package. Values
// are immutable and freely copied; equality is structural, modulo
// generic-parameter names bound in the same position (alpha-equivalence).
package rtype

import (
	"fmt"
	"strings"

	"github.com/architect-io/bpcompile/pkg/pkggraph"
)

// Kind discriminates the Type variants.
type Kind int

const (
	KindPath Kind = iota
	KindReference
	KindTuple
	KindSlice
	KindPrimitive
	KindGeneric
	KindNever
)

// Segment is one element of a dotted/colon-separated path, with its own
// generic arguments (e.g. the "Option" in "std::option::Option<T>").
type Segment struct {
	Name string
	Args []Type
}

// Path is a package-pinned symbolic path: a sequence of segments plus the
// id of the owning package. Created by the resolved-path DB; immutable
// thereafter.
type Path struct {
	Package  pkggraph.PackageID
	Segments []Segment
}

func (p Path) String() string {
	parts := make([]string, len(p.Segments))
	for i, s := range p.Segments {
		if len(s.Args) == 0 {
			parts[i] = s.Name
			continue
		}
		args := make([]string, len(s.Args))
		for j, a := range s.Args {
			args[j] = a.String()
		}
		parts[i] = fmt.Sprintf("%s<%s>", s.Name, strings.Join(args, ", "))
	}
	return strings.Join(parts, "::")
}

// Type is a resolved type: a tagged variant over Path, Reference, Tuple,
// Slice, Primitive, Generic, and Never.
type Type struct {
	Kind Kind

	path      Path   // KindPath
	typeArgs  []Type // KindPath: top-level generic arguments
	inner     *Type  // KindReference, KindSlice
	isStatic  bool   // KindReference
	isMutable bool   // KindReference
	tuple     []Type // KindTuple
	primitive string // KindPrimitive
	generic   string // KindGeneric
}

// NewPath builds a Path-kind type.
func NewPath(path Path, typeArgs ...Type) Type {
	return Type{Kind: KindPath, path: path, typeArgs: typeArgs}
}

// NewReference builds a Reference-kind type.
func NewReference(innerType Type, isStatic, isMutable bool) Type {
	inner := innerType
	return Type{Kind: KindReference, inner: &inner, isStatic: isStatic, isMutable: isMutable}
}

// NewTuple builds a Tuple-kind type.
func NewTuple(elems ...Type) Type {
	return Type{Kind: KindTuple, tuple: elems}
}

// NewSlice builds a Slice-kind type.
func NewSlice(elem Type) Type {
	return Type{Kind: KindSlice, inner: &elem}
}

// NewPrimitive builds a Primitive-kind type (e.g. "bool", "i32", "str").
func NewPrimitive(kind string) Type {
	return Type{Kind: KindPrimitive, primitive: kind}
}

// NewGeneric builds a Generic-kind type, symbolic until (if ever)
// monomorphised by a later, out-of-core stage.
func NewGeneric(name string) Type {
	return Type{Kind: KindGeneric, generic: name}
}

// Never is the uninhabited bottom type.
func Never() Type {
	return Type{Kind: KindNever}
}

// PathValue returns the underlying Path for a KindPath type.
func (t Type) PathValue() Path { return t.path }

// TypeArgs returns the top-level generic arguments for a KindPath type.
func (t Type) TypeArgs() []Type { return t.typeArgs }

// Inner returns the referenced/sliced type for KindReference/KindSlice.
func (t Type) Inner() Type {
	if t.inner == nil {
		return Type{}
	}
	return *t.inner
}

// IsStatic reports whether a KindReference type has a 'static lifetime.
func (t Type) IsStatic() bool { return t.isStatic }

// IsMutable reports whether a KindReference type is mutable.
func (t Type) IsMutable() bool { return t.isMutable }

// Tuple returns the element types for a KindTuple type.
func (t Type) Tuple() []Type { return t.tuple }

// Primitive returns the primitive kind name for a KindPrimitive type.
func (t Type) Primitive() string { return t.primitive }

// GenericName returns the parameter name for a KindGeneric type.
func (t Type) GenericName() string { return t.generic }

// Owned strips any reference, 'static or not, down to its inner type, the way
// application state only ever stores owned values: a required input
// typed `&'static T` is satisfied by a singleton of type T, and a
// non-'static `&T` is expected to resolve to the same singleton T.
func (t Type) Owned() Type {
	if t.Kind == KindReference {
		return t.Inner().Owned()
	}
	return t
}

// Key returns a canonical string uniquely identifying t up to
// alpha-equivalence of generic parameter names (two generics bound in
// the same left-to-right position compare equal even if spelled
// differently). Safe to use as a map key.
func (t Type) Key() string {
	b := &strings.Builder{}
	names := map[string]int{}
	writeKey(b, t, names)
	return b.String()
}

// Equal reports structural equality modulo generic-parameter naming.
func (t Type) Equal(other Type) bool {
	return t.Key() == other.Key()
}

func writeKey(b *strings.Builder, t Type, names map[string]int) {
	switch t.Kind {
	case KindPath:
		b.WriteString(string(t.path.Package))
		for _, seg := range t.path.Segments {
			b.WriteByte(':')
			b.WriteString(seg.Name)
			if len(seg.Args) > 0 {
				b.WriteByte('<')
				for i, a := range seg.Args {
					if i > 0 {
						b.WriteByte(',')
					}
					writeKey(b, a, names)
				}
				b.WriteByte('>')
			}
		}
		if len(t.typeArgs) > 0 {
			b.WriteByte('[')
			for i, a := range t.typeArgs {
				if i > 0 {
					b.WriteByte(',')
				}
				writeKey(b, a, names)
			}
			b.WriteByte(']')
		}
	case KindReference:
		b.WriteByte('&')
		if t.isStatic {
			b.WriteString("'static ")
		}
		if t.isMutable {
			b.WriteString("mut ")
		}
		writeKey(b, t.Inner(), names)
	case KindTuple:
		b.WriteByte('(')
		for i, e := range t.tuple {
			if i > 0 {
				b.WriteByte(',')
			}
			writeKey(b, e, names)
		}
		b.WriteByte(')')
	case KindSlice:
		b.WriteByte('[')
		writeKey(b, t.Inner(), names)
		b.WriteByte(']')
	case KindPrimitive:
		b.WriteString("prim:")
		b.WriteString(t.primitive)
	case KindGeneric:
		idx, ok := names[t.generic]
		if !ok {
			idx = len(names)
			names[t.generic] = idx
		}
		fmt.Fprintf(b, "gen:%d", idx)
	case KindNever:
		b.WriteString("!")
	}
}

// String renders a human-readable form, used in diagnostics.
func (t Type) String() string {
	switch t.Kind {
	case KindPath:
		s := t.path.String()
		if len(t.typeArgs) > 0 {
			args := make([]string, len(t.typeArgs))
			for i, a := range t.typeArgs {
				args[i] = a.String()
			}
			s = fmt.Sprintf("%s<%s>", s, strings.Join(args, ", "))
		}
		return s
	case KindReference:
		prefix := "&"
		if t.isStatic {
			prefix += "'static "
		}
		if t.isMutable {
			prefix += "mut "
		}
		return prefix + t.Inner().String()
	case KindTuple:
		parts := make([]string, len(t.tuple))
		for i, e := range t.tuple {
			parts[i] = e.String()
		}
		return "(" + strings.Join(parts, ", ") + ")"
	case KindSlice:
		return "[" + t.Inner().String() + "]"
	case KindPrimitive:
		return t.primitive
	case KindGeneric:
		return t.generic
	case KindNever:
		return "!"
	default:
		return "<invalid>"
	}
}
