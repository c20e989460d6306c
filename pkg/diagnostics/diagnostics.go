// Package diagnostics accumulates compiler-style diagnostics across the
// analysis pipeline. Each stage pushes errors into the sink rather than
// returning early, so a single compilation reports as many issues as it
// can; the pipeline only aborts at a stage gate.
package diagnostics

import (
	"fmt"

	"github.com/google/uuid"
)

// Severity classifies a diagnostic. Only Error severities trip a stage
// gate; Warning and Help are informational.
type Severity int

const (
	Error Severity = iota
	Warning
	Help
)

func (s Severity) String() string {
	switch s {
	case Error:
		return "error"
	case Warning:
		return "warning"
	default:
		return "help"
	}
}

// Span pins a diagnostic (or one of its labels) to a byte range within a
// source file.
type Span struct {
	File       string
	ByteStart  int
	ByteEnd    int
	SourceLine string
}

// Label attaches a message to a span. The first label on a Diagnostic is
// always the primary site; any further labels are contextual (e.g. the
// competing registration in a duplicate-constructor diagnostic).
type Label struct {
	Span    Span
	Message string
}

// Diagnostic is a single compiler-style finding: a severity, a primary
// message, a source excerpt, zero or more labelled sub-spans, and an
// optional one-line help string.
type Diagnostic struct {
	// ID opaquely identifies this diagnostic for the lifetime of one
	// compilation - a watching client (pkg/diagnostics/stream) can use
	// it to tell a re-pushed diagnostic apart from a new one. It plays
	// no role in diagnostic equality or stage-gating.
	ID       string
	Severity Severity
	Code     string
	Message  string
	Labels   []Label
	Help     string
}

// Builder incrementally constructs a Diagnostic.
type Builder struct {
	d Diagnostic
}

// New starts building a diagnostic with the given code and message,
// assigning it a fresh opaque id the way the teacher's resolver and
// state packages mint uuid.New() handles for ephemeral objects.
func New(severity Severity, code, message string) *Builder {
	return &Builder{d: Diagnostic{ID: uuid.New().String(), Severity: severity, Code: code, Message: message}}
}

// Label appends a labelled span. The first call sets the primary site.
func (b *Builder) Label(span Span, message string) *Builder {
	b.d.Labels = append(b.d.Labels, Label{Span: span, Message: message})
	return b
}

// WithHelp attaches a one-line help string.
func (b *Builder) WithHelp(help string) *Builder {
	b.d.Help = help
	return b
}

// Build finalises the diagnostic.
func (b *Builder) Build() Diagnostic {
	return b.d
}

// Sink is an append-only buffer of diagnostics. The pipeline uses it as
// a stage gate: after each stage, if the sink contains any Error
// severity diagnostic, the pipeline aborts with the accumulated errors.
type Sink struct {
	diagnostics []Diagnostic
}

// NewSink creates an empty sink.
func NewSink() *Sink {
	return &Sink{}
}

// Push appends a diagnostic to the sink.
func (s *Sink) Push(d Diagnostic) {
	s.diagnostics = append(s.diagnostics, d)
}

// HasErrors reports whether the sink contains at least one Error
// severity diagnostic.
func (s *Sink) HasErrors() bool {
	for _, d := range s.diagnostics {
		if d.Severity == Error {
			return true
		}
	}
	return false
}

// All returns every diagnostic pushed so far, in push order.
func (s *Sink) All() []Diagnostic {
	return s.diagnostics
}

// Errors returns only the Error severity diagnostics.
func (s *Sink) Errors() []Diagnostic {
	var out []Diagnostic
	for _, d := range s.diagnostics {
		if d.Severity == Error {
			out = append(out, d)
		}
	}
	return out
}

// GateError is returned by a stage gate when the sink contains errors.
type GateError struct {
	Diagnostics []Diagnostic
}

func (e *GateError) Error() string {
	if len(e.Diagnostics) == 1 {
		return fmt.Sprintf("1 diagnostic error: %s", e.Diagnostics[0].Message)
	}
	return fmt.Sprintf("%d diagnostic errors, first: %s", len(e.Diagnostics), e.Diagnostics[0].Message)
}

// Gate returns a *GateError if the sink has accumulated any errors,
// nil otherwise. Call after every pipeline stage.
func (s *Sink) Gate() error {
	if !s.HasErrors() {
		return nil
	}
	return &GateError{Diagnostics: s.Errors()}
}
