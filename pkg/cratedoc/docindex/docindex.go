// Package docindex is the on-the-wire JSON shape a doc-index artifact
// takes once it leaves the package it describes: every remote source
// (OCI, git, docker) fetches or extracts a document in this shape and
// converts it into a cratedoc.StaticIndex, the in-memory DocIndex every
// downstream stage actually queries.
package docindex

import (
	"encoding/json"
	"fmt"

	"github.com/architect-io/bpcompile/pkg/cratedoc"
)

// Document is the decoded form of a package's exported doc-index: every
// documented item, keyed by its dotted path relative to the package
// root, plus the trait implementations recorded for its types.
type Document struct {
	Items      map[string]Item          `json:"items"`
	TraitImpls map[string]map[string]bool `json:"trait_impls"`
}

// Item mirrors cratedoc.Item, but as a JSON-friendly plain struct.
type Item struct {
	Kind      string     `json:"kind"`
	Signature *Signature `json:"signature,omitempty"`
}

// Signature mirrors cratedoc.FunctionSignature.
type Signature struct {
	Inputs                     []TypeExpr `json:"inputs,omitempty"`
	Output                     TypeExpr   `json:"output"`
	HigherRankedInputLifetimes bool       `json:"higher_ranked_input_lifetimes,omitempty"`
	ImplTraitInputs            bool       `json:"impl_trait_inputs,omitempty"`
}

// TypeExpr mirrors cratedoc.TypeExpr.
type TypeExpr struct {
	Kind      string     `json:"kind"`
	Path      []string   `json:"path,omitempty"`
	TypeArgs  []TypeExpr `json:"type_args,omitempty"`
	Inner     *TypeExpr  `json:"inner,omitempty"`
	IsStatic  bool       `json:"is_static,omitempty"`
	IsMutable bool       `json:"is_mutable,omitempty"`
	Tuple     []TypeExpr `json:"tuple,omitempty"`
	Primitive string     `json:"primitive,omitempty"`
	Generic   string     `json:"generic,omitempty"`
}

// Decode parses a doc-index document from its JSON wire form.
func Decode(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding doc-index: %w", err)
	}
	return &doc, nil
}

// Build converts a decoded Document into the cratedoc.StaticIndex that
// satisfies cratedoc.DocIndex.
func (d *Document) Build() (*cratedoc.StaticIndex, error) {
	idx := cratedoc.NewStaticIndex()
	for key, item := range d.Items {
		switch item.Kind {
		case "function":
			if item.Signature == nil {
				return nil, fmt.Errorf("item %q is a function but has no signature", key)
			}
			idx.AddFunction(key, toFunctionSignature(*item.Signature))
		case "struct":
			idx.AddItem(key, cratedoc.ItemStruct)
		case "enum":
			idx.AddItem(key, cratedoc.ItemEnum)
		case "trait":
			idx.AddItem(key, cratedoc.ItemTrait)
		default:
			idx.AddItem(key, cratedoc.ItemOther)
		}
	}
	for typeKey, traits := range d.TraitImpls {
		for trait, ok := range traits {
			if ok {
				idx.AddTraitImpl(typeKey, trait)
			}
		}
	}
	return idx, nil
}

func toFunctionSignature(s Signature) cratedoc.FunctionSignature {
	inputs := make([]cratedoc.TypeExpr, len(s.Inputs))
	for i, in := range s.Inputs {
		inputs[i] = toTypeExpr(in)
	}
	return cratedoc.FunctionSignature{
		Inputs:                     inputs,
		Output:                     toTypeExpr(s.Output),
		HigherRankedInputLifetimes: s.HigherRankedInputLifetimes,
		ImplTraitInputs:            s.ImplTraitInputs,
	}
}

func toTypeExpr(e TypeExpr) cratedoc.TypeExpr {
	switch e.Kind {
	case "reference":
		inner := toTypeExpr(*e.Inner)
		return cratedoc.Reference(inner, e.IsStatic, e.IsMutable)
	case "tuple":
		elems := make([]cratedoc.TypeExpr, len(e.Tuple))
		for i, t := range e.Tuple {
			elems[i] = toTypeExpr(t)
		}
		return cratedoc.Tuple(elems...)
	case "slice":
		return cratedoc.Slice(toTypeExpr(*e.Inner))
	case "primitive":
		return cratedoc.Primitive(e.Primitive)
	case "generic":
		return cratedoc.Generic(e.Generic)
	case "never":
		return cratedoc.TypeExpr{Kind: cratedoc.ExprNever}
	default:
		args := make([]cratedoc.TypeExpr, len(e.TypeArgs))
		for i, a := range e.TypeArgs {
			args[i] = toTypeExpr(a)
		}
		return cratedoc.Path(e.Path, args...)
	}
}
