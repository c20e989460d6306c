// Package constructible inverts the registered constructor set into a
// map from resolved type to the component id that builds it, so the
// call-graph builder can answer "what provides a T" in constant time.
package constructible

import (
	"fmt"

	"github.com/architect-io/bpcompile/pkg/component"
	"github.com/architect-io/bpcompile/pkg/diagnostics"
	"github.com/architect-io/bpcompile/pkg/rawid"
	"github.com/architect-io/bpcompile/pkg/rtype"
	"github.com/architect-io/bpcompile/pkg/usercomp"
)

// DB maps a resolved, owned type to the constructor component that
// builds it. References are never keys: a request for &T is satisfied
// by the constructor of T, with the borrow handled by the call-graph
// builder.
type DB struct {
	byKey  map[string]component.ID
	typeOf map[string]rtype.Type
}

// Build inverts every constructor component in comps. bindings is the
// set of framework-provided types (keyed by name, for display only);
// a framework binding always wins a collision against a user
// constructor for the same type, but the collision is still reported.
func Build(raw *rawid.DB, comps *component.DB, bindings map[string]rtype.Type, sink *diagnostics.Sink) *DB {
	db := &DB{byKey: map[string]component.ID{}, typeOf: map[string]rtype.Type{}}

	bound := map[string]bool{}
	for _, t := range bindings {
		bound[t.Owned().Key()] = true
	}

	firstRaw := map[string]rawid.ID{}

	comps.All(func(id component.ID, c *component.Component) bool {
		if c.Kind != usercomp.Constructor {
			return true
		}
		key := c.Output.Owned().Key()
		loc := raw.GetLocation(c.RawID)
		span := diagnostics.Span{File: loc.File, ByteStart: loc.ByteStart, ByteEnd: loc.ByteEnd}

		if bound[key] {
			sink.Push(diagnostics.New(diagnostics.Error, "ConstructibleError",
				fmt.Sprintf("%s is already provided by the framework", c.Output)).
				Label(span, "duplicate constructor registered here").
				WithHelp("remove this constructor; the framework already provides this type").
				Build())
			return true
		}

		if existingRaw, ok := firstRaw[key]; ok {
			existingLoc := raw.GetLocation(existingRaw)
			existingSpan := diagnostics.Span{File: existingLoc.File, ByteStart: existingLoc.ByteStart, ByteEnd: existingLoc.ByteEnd}
			sink.Push(diagnostics.New(diagnostics.Error, "ConstructibleError",
				fmt.Sprintf("%s has more than one constructor", c.Output)).
				Label(existingSpan, "first constructor registered here").
				Label(span, "also registered here").
				WithHelp("remove one of the two constructors").
				Build())
			return true
		}

		firstRaw[key] = c.RawID
		db.byKey[key] = id
		db.typeOf[key] = c.Output
		return true
	})

	return db
}

// Lookup finds the constructor component for t, stripping any reference
// wrapper first.
func (db *DB) Lookup(t rtype.Type) (component.ID, bool) {
	id, ok := db.byKey[t.Owned().Key()]
	return id, ok
}
