// Package component derives the authoritative component for every user
// component: its lifecycle, its resolved signature, and - where it is
// fallible - the error handler fused to it. This is where the fusion
// rule lives: every fallible constructor or request handler must have
// exactly one registered error handler, and an error handler itself
// must never be fallible.
package component

import (
	"fmt"

	"github.com/architect-io/bpcompile/pkg/computation"
	"github.com/architect-io/bpcompile/pkg/diagnostics"
	"github.com/architect-io/bpcompile/pkg/ident"
	"github.com/architect-io/bpcompile/pkg/lifecycle"
	"github.com/architect-io/bpcompile/pkg/rawid"
	"github.com/architect-io/bpcompile/pkg/rtype"
	"github.com/architect-io/bpcompile/pkg/usercomp"
)

// ID identifies a resolved component. Stable across a DB's lifetime, one
// to one with a usercomp.ID.
type ID = ident.ID

// Component is a fully resolved user component: its role, its
// lifecycle, its signature, and - where applicable - its error-recovery
// wiring.
type Component struct {
	UserID usercomp.ID
	RawID  rawid.ID
	Kind   usercomp.Kind
	Route  string

	Lifecycle lifecycle.Lifecycle

	Inputs []rtype.Type
	// Output is the success type: for a fallible component, the Ok
	// branch of its Result; for an infallible one, its plain return type.
	Output rtype.Type

	Fallible  bool
	ErrorType rtype.Type // zero value unless Fallible

	// ErrorHandler is the component id of the error handler fused to this
	// component. Set only when Fallible is true and a handler was found.
	ErrorHandler *ID
	// RecoversFrom is the component id this error handler recovers from.
	// Set only when Kind == usercomp.ErrorHandler.
	RecoversFrom *ID
}

// DB is the authoritative, fully-resolved set of components.
type DB struct {
	components map[usercomp.ID]*Component
	order      []usercomp.ID
}

// Build derives a Component for every classified user component, applies
// the fusion rule, and pushes MissingErrorHandler, SpuriousErrorHandler,
// or FallibleErrorHandler diagnostics for every violation found.
func Build(raw *rawid.DB, users *usercomp.DB, comps *computation.DB, sink *diagnostics.Sink) *DB {
	db := &DB{components: map[usercomp.ID]*Component{}}

	users.All(func(id usercomp.ID, uc usercomp.Component) bool {
		comp, ok := comps.Get(uc.RawID)
		if !ok {
			// Already diagnosed by the computation DB; nothing to build.
			return true
		}

		c := &Component{
			UserID: id,
			RawID:  uc.RawID,
			Kind:   uc.Kind,
			Route:  uc.Route,
			Inputs: comp.Inputs,
			Output: comp.Output.OK,
		}
		if comp.Output.Fallible() {
			c.Fallible = true
			c.ErrorType = *comp.Output.Err
		}

		switch uc.Kind {
		case usercomp.RequestHandler:
			c.Lifecycle = lifecycle.RequestScoped
		case usercomp.Constructor:
			lc, _ := raw.GetLifecycle(uc.RawID)
			c.Lifecycle = lc
		case usercomp.ErrorHandler:
			// Lifecycle and RecoversFrom are filled in the second pass,
			// once the recovered-from component's own lifecycle is known.
		}

		db.components[id] = c
		db.order = append(db.order, id)
		return true
	})

	// Second pass: wire error handlers to the component they recover
	// from, and validate the fusion rule.
	users.All(func(id usercomp.ID, uc usercomp.Component) bool {
		if uc.Kind != usercomp.ErrorHandler {
			return true
		}
		handler, ok := db.components[id]
		if !ok {
			return true
		}
		target, ok := db.components[uc.RecoversFrom]
		if !ok {
			return true
		}

		loc := raw.GetLocation(handler.RawID)
		span := diagnostics.Span{File: loc.File, ByteStart: loc.ByteStart, ByteEnd: loc.ByteEnd}

		if !target.Fallible {
			sink.Push(diagnostics.New(diagnostics.Error, "SpuriousErrorHandler",
				fmt.Sprintf("an error handler was registered for %s, which never fails", target.Kind)).
				Label(span, "error handler registered here").
				WithHelp("remove the error handler, or make the constructor/handler it recovers from fallible").
				Build())
			return true
		}
		if handler.Fallible {
			sink.Push(diagnostics.New(diagnostics.Error, "FallibleErrorHandler",
				"an error handler must not itself be fallible").
				Label(span, "fallible error handler").
				WithHelp("error handlers must always produce a response, never another error").
				Build())
			return true
		}
		if target.ErrorHandler != nil {
			// usercomp already rejects two handlers on the same route, but
			// constructor error handlers are only deduplicated by raw id,
			// not by target - keep the first one, diagnose the rest.
			sink.Push(diagnostics.New(diagnostics.Error, "SpuriousErrorHandler",
				"more than one error handler was registered for the same fallible component").
				Label(span, "duplicate error handler registered here").
				Build())
			return true
		}

		recoversFrom := uc.RecoversFrom
		handler.RecoversFrom = &recoversFrom
		handler.Lifecycle = target.Lifecycle
		target.ErrorHandler = idPtr(id)
		return true
	})

	// Third pass: every fallible constructor or handler needs a fused
	// error handler.
	for _, id := range db.order {
		c := db.components[id]
		if c.Kind == usercomp.ErrorHandler || !c.Fallible || c.ErrorHandler != nil {
			continue
		}
		loc := raw.GetLocation(c.RawID)
		span := diagnostics.Span{File: loc.File, ByteStart: loc.ByteStart, ByteEnd: loc.ByteEnd}
		sink.Push(diagnostics.New(diagnostics.Error, "MissingErrorHandler",
			fmt.Sprintf("this %s can fail but has no registered error handler", c.Kind)).
			Label(span, "fallible component registered here").
			WithHelp("register an error handler that recovers from this component").
			Build())
	}

	return db
}

func idPtr(id ID) *ID {
	return &id
}

// Get returns the resolved component behind id.
func (db *DB) Get(id ID) *Component {
	return db.components[id]
}

// All iterates over every resolved component, in the order its user
// component was first classified.
func (db *DB) All(fn func(ID, *Component) bool) {
	for _, id := range db.order {
		if !fn(id, db.components[id]) {
			return
		}
	}
}
