// Package blueprint defines the input to the compiler: a declarative
// registry of constructors, request handlers, and error handlers, each
// annotated with a source Location and (for constructors) a lifecycle.
//
// The core only ever reads from a Blueprint; it is produced elsewhere
// (the authoring API is out of scope for this module, per the
// specification) and never mutated once handed to the pipeline.
package blueprint

import "github.com/architect-io/bpcompile/pkg/lifecycle"

// RawCallable is an unresolved textual reference to a callable, as
// written by the user (e.g. "crate::http_client" or
// "crate::errors::handle_extract_path_error").
type RawCallable string

// Location pins a registration to a byte range in a source file.
type Location struct {
	File      string
	ByteStart int
	ByteEnd   int
}

// HandlerRegistration binds a route to the request handler that serves
// it. Registrations are kept as an ordered list, not a map, so that two
// handlers registered against the same route are both visible to the
// user-component DB's duplicate-route check (spec property: router
// uniqueness).
type HandlerRegistration struct {
	Route    string
	Handler  RawCallable
	Location Location
}

// HandlerErrorHandlerRegistration attaches an error handler to a route's
// request handler.
type HandlerErrorHandlerRegistration struct {
	Route        string
	ErrorHandler RawCallable
	Location     Location
}

// ConstructorErrorHandlerRegistration attaches an error handler to a
// fallible constructor.
type ConstructorErrorHandlerRegistration struct {
	Constructor  RawCallable
	ErrorHandler RawCallable
	Location     Location
}

// ConstructorRegistration registers a constructor with its lifecycle.
type ConstructorRegistration struct {
	Callable  RawCallable
	Lifecycle lifecycle.Lifecycle
	Location  Location
}

// Blueprint is the user's declarative registry. Field order mirrors the
// fixed processing order the raw-identifier DB relies on: request
// handlers, request-handler error-handlers, constructor error-handlers,
// constructors.
type Blueprint struct {
	Handlers                 []HandlerRegistration
	HandlerErrorHandlers     []HandlerErrorHandlerRegistration
	ConstructorErrorHandlers []ConstructorErrorHandlerRegistration
	Constructors             []ConstructorRegistration
}

// New returns an empty Blueprint, ready for a Builder to populate.
func New() *Blueprint {
	return &Blueprint{}
}

// Builder offers a small fluent authoring surface over a Blueprint.
// It is not itself the framework's authoring API (that is out of
// scope); it exists so tests and alternative front-ends (YAML, HCL)
// have a single place to populate a Blueprint correctly.
type Builder struct {
	bp *Blueprint
}

// NewBuilder starts building a fresh Blueprint.
func NewBuilder() *Builder {
	return &Builder{bp: New()}
}

// Handler registers a request handler for a route.
func (b *Builder) Handler(route string, callable RawCallable, loc Location) *Builder {
	b.bp.Handlers = append(b.bp.Handlers, HandlerRegistration{Route: route, Handler: callable, Location: loc})
	return b
}

// HandlerErrorHandler attaches an error handler to a route's request
// handler.
func (b *Builder) HandlerErrorHandler(route string, callable RawCallable, loc Location) *Builder {
	b.bp.HandlerErrorHandlers = append(b.bp.HandlerErrorHandlers, HandlerErrorHandlerRegistration{
		Route: route, ErrorHandler: callable, Location: loc,
	})
	return b
}

// Constructor registers a constructor with its lifecycle.
func (b *Builder) Constructor(callable RawCallable, lc lifecycle.Lifecycle, loc Location) *Builder {
	b.bp.Constructors = append(b.bp.Constructors, ConstructorRegistration{Callable: callable, Lifecycle: lc, Location: loc})
	return b
}

// ConstructorErrorHandler attaches an error handler to a fallible
// constructor.
func (b *Builder) ConstructorErrorHandler(constructor, handler RawCallable, loc Location) *Builder {
	b.bp.ConstructorErrorHandlers = append(b.bp.ConstructorErrorHandlers, ConstructorErrorHandlerRegistration{
		Constructor: constructor, ErrorHandler: handler, Location: loc,
	})
	return b
}

// Build returns the populated Blueprint.
func (b *Builder) Build() *Blueprint {
	return b.bp
}
