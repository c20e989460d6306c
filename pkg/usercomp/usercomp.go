// Package usercomp classifies every raw callable identifier by role
// (constructor / request handler / error handler) and, for error
// handlers, records which component they recover from.
package usercomp

import (
	"fmt"

	"github.com/architect-io/bpcompile/pkg/blueprint"
	"github.com/architect-io/bpcompile/pkg/diagnostics"
	"github.com/architect-io/bpcompile/pkg/ident"
	"github.com/architect-io/bpcompile/pkg/rawid"
)

// Kind classifies a user component by the role it plays in the
// blueprint.
type Kind int

const (
	Constructor Kind = iota
	RequestHandler
	ErrorHandler
)

func (k Kind) String() string {
	switch k {
	case Constructor:
		return "constructor"
	case RequestHandler:
		return "request handler"
	case ErrorHandler:
		return "error handler"
	default:
		return "unknown"
	}
}

// ID identifies a user component.
type ID = ident.ID

// Component is a classified raw callable: its role, and (for handlers)
// its route, or (for error handlers) the component it recovers from.
type Component struct {
	RawID rawid.ID
	Kind  Kind

	// Route is set only when Kind == RequestHandler.
	Route string
	// RecoversFrom is set only when Kind == ErrorHandler: the id of the
	// fallible component (handler or constructor) this handler recovers
	// errors from.
	RecoversFrom ID
}

// DB is the authoritative set of user-registered components, derived
// from a single walk of the blueprint.
type DB struct {
	interner   *ident.Interner[rawid.ID]
	components []Component
	router     map[string]ID
}

// Build classifies every raw id referenced by bp. Diagnostics for
// duplicate routes are pushed into sink; the DB is still returned so
// later stages can keep working on the rest of the blueprint (the
// stage gate, not this function, decides whether to abort).
func Build(bp *blueprint.Blueprint, raw *rawid.DB, sink *diagnostics.Sink) *DB {
	db := &DB{
		interner: ident.New[rawid.ID](),
		router:   map[string]ID{},
	}

	routeLocation := map[string]blueprint.Location{}

	// 1. Request handlers, plus route.
	for _, reg := range bp.Handlers {
		rawID := raw.Intern(reg.Handler)
		id := db.getOrCreate(rawID, RequestHandler)
		db.components[id].Route = reg.Route

		if existing, ok := db.router[reg.Route]; ok && existing != id {
			sink.Push(diagnostics.New(diagnostics.Error, "BlueprintError",
				fmt.Sprintf("route %q is registered to more than one handler", reg.Route)).
				Label(toSpan(routeLocation[reg.Route]), "first registered here").
				Label(toSpan(reg.Location), "also registered here").
				WithHelp("remove one of the two registrations, or change one of the routes").
				Build())
			continue
		}
		db.router[reg.Route] = id
		routeLocation[reg.Route] = reg.Location
	}

	// 2. Request-handler error-handlers: recover from the handler
	// registered for the same route.
	for _, reg := range bp.HandlerErrorHandlers {
		handlerID, ok := db.router[reg.Route]
		if !ok {
			// No handler was successfully registered for this route (most
			// likely because it lost a duplicate-route diagnostic above);
			// nothing to attach the error-handler to.
			continue
		}
		rawID := raw.Intern(reg.ErrorHandler)
		id := db.getOrCreate(rawID, ErrorHandler)
		db.components[id].RecoversFrom = handlerID
	}

	// 3. Constructor error-handlers: recover from that constructor.
	for _, reg := range bp.ConstructorErrorHandlers {
		constructorRawID := raw.Intern(reg.Constructor)
		constructorID := db.getOrCreate(constructorRawID, Constructor)

		errRawID := raw.Intern(reg.ErrorHandler)
		id := db.getOrCreate(errRawID, ErrorHandler)
		db.components[id].RecoversFrom = constructorID
	}

	// 4. Constructors.
	for _, reg := range bp.Constructors {
		rawID := raw.Intern(reg.Callable)
		db.getOrCreate(rawID, Constructor)
	}

	return db
}

func (db *DB) getOrCreate(rawID rawid.ID, kind Kind) ID {
	id := db.interner.Intern(rawID)
	if int(id) == len(db.components) {
		db.components = append(db.components, Component{RawID: rawID, Kind: kind})
	}
	return id
}

// Get returns the component behind id.
func (db *DB) Get(id ID) Component {
	return db.components[id]
}

// Lookup finds the component id for a raw id, if one was classified.
func (db *DB) Lookup(rawID rawid.ID) (ID, bool) {
	return db.interner.TryIntern(rawID)
}

// Router returns the route -> handler component id mapping.
func (db *DB) Router() map[string]ID {
	return db.router
}

// All iterates over every user component in assignment order.
func (db *DB) All(fn func(ID, Component) bool) {
	for i, c := range db.components {
		if !fn(ID(i), c) {
			return
		}
	}
}

func toSpan(loc blueprint.Location) diagnostics.Span {
	return diagnostics.Span{File: loc.File, ByteStart: loc.ByteStart, ByteEnd: loc.ByteEnd}
}
