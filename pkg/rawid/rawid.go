// Package rawid interns every symbolic callable reference mentioned in a
// blueprint, attaching each its source location and (where the
// blueprint declares one) its lifecycle.
package rawid

import (
	"github.com/architect-io/bpcompile/pkg/blueprint"
	"github.com/architect-io/bpcompile/pkg/ident"
	"github.com/architect-io/bpcompile/pkg/lifecycle"
)

// ID identifies one interned raw callable reference.
type ID = ident.ID

// DB interns every raw callable reference found in a blueprint, in a
// fixed order: request handlers, request-handler error-handlers,
// constructor error-handlers, constructors. The order matters because it
// determines dense-id assignment, which in turn is part of the
// snapshot-determinism guarantee (every run over the same blueprint must
// assign the same ids in the same order).
type DB struct {
	interner   *ident.Interner[blueprint.RawCallable]
	locations  map[ID]blueprint.Location
	lifecycles map[ID]lifecycle.Lifecycle
	// routesOf records, for handler ids, every route they were registered
	// against (usually one, but duplicates are kept visible so the
	// user-component DB can diagnose them).
	routesOf map[ID][]string
}

// Build interns every raw callable referenced by bp.
func Build(bp *blueprint.Blueprint) *DB {
	db := &DB{
		interner:   ident.New[blueprint.RawCallable](),
		locations:  map[ID]blueprint.Location{},
		lifecycles: map[ID]lifecycle.Lifecycle{},
		routesOf:   map[ID][]string{},
	}

	// 1. Request handlers, plus route.
	for _, reg := range bp.Handlers {
		id := db.interner.Intern(reg.Handler)
		if _, ok := db.locations[id]; !ok {
			db.locations[id] = reg.Location
		}
		db.lifecycles[id] = lifecycle.RequestScoped
		db.routesOf[id] = append(db.routesOf[id], reg.Route)
	}

	// 2. Request-handler error-handlers.
	for _, reg := range bp.HandlerErrorHandlers {
		id := db.interner.Intern(reg.ErrorHandler)
		if _, ok := db.locations[id]; !ok {
			db.locations[id] = reg.Location
		}
	}

	// 3. Constructor error-handlers.
	for _, reg := range bp.ConstructorErrorHandlers {
		id := db.interner.Intern(reg.ErrorHandler)
		if _, ok := db.locations[id]; !ok {
			db.locations[id] = reg.Location
		}
	}

	// 4. Constructors.
	for _, reg := range bp.Constructors {
		id := db.interner.Intern(reg.Callable)
		if _, ok := db.locations[id]; !ok {
			db.locations[id] = reg.Location
		}
		db.lifecycles[id] = reg.Lifecycle
	}

	return db
}

// Intern interns a raw callable reference, returning its (possibly
// pre-existing) id.
func (db *DB) Intern(raw blueprint.RawCallable) ID {
	return db.interner.Intern(raw)
}

// Lookup returns the raw callable reference behind id.
func (db *DB) Lookup(id ID) (blueprint.RawCallable, bool) {
	return db.interner.Lookup(id)
}

// GetLocation returns the source location a raw id was first registered
// at.
func (db *DB) GetLocation(id ID) blueprint.Location {
	return db.locations[id]
}

// GetLifecycle returns the declared lifecycle for id, if any. Handlers
// always have one (RequestScoped); error-handlers never do here - their
// effective lifecycle is derived later by the component DB from the
// component they recover from.
func (db *DB) GetLifecycle(id ID) (lifecycle.Lifecycle, bool) {
	lc, ok := db.lifecycles[id]
	return lc, ok
}

// Routes returns every route a handler id was registered against.
func (db *DB) Routes(id ID) []string {
	return db.routesOf[id]
}

// All iterates over every interned raw id in assignment order.
func (db *DB) All(fn func(ID, blueprint.RawCallable) bool) {
	db.interner.All(fn)
}
