// Package diag implements the compiler's diagnostic model: span-tracked
// errors and warnings, accumulated into a shared Sink across every pass,
// and rendered in either a mechanical line:column form or a human-readable
// snippet form.
//
// Every pass in this compiler follows the same "collect then surface"
// discipline: a pass appends every diagnostic it finds to the Sink and
// keeps going, rather than stopping at the first problem. A pass
// succeeded if and only if it added no diagnostic of Severity Error.
package diag

import (
	"fmt"

	"go.jacobcolvin.com/devicedesc/ast"
)

// Severity distinguishes diagnostics that block IR production from those
// that merely inform the user.
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityError
)

func (s Severity) String() string {
	if s == SeverityError {
		return "error"
	}

	return "warning"
}

// Kind is a stable code identifying the category of problem. Kinds are
// grouped by the taxonomy in spec.md §7: Syntax, Schema, Semantic,
// Pragmatic.
type Kind string

const (
	KindSyntax   Kind = "syntax"
	KindSchema   Kind = "schema"
	KindSemantic Kind = "semantic"
	KindPragma   Kind = "pragmatic"
)

// LabeledSpan is a secondary span with a short explanatory label, used to
// point at the "other half" of a two-sided problem (e.g. both fields in
// an overlap).
type LabeledSpan struct {
	Span  ast.Span
	Label string
}

// Diagnostic is one reported problem.
type Diagnostic struct {
	Severity  Severity
	Kind      Kind
	Code      string // stable machine-readable kind code, e.g. "E-FIELD-OVERLAP"
	Message   string
	Primary   ast.Span
	Secondary []LabeledSpan
}

// Sink accumulates diagnostics across every pass of one compilation.
type Sink struct {
	diagnostics []Diagnostic
}

// NewSink returns an empty Sink.
func NewSink() *Sink {
	return &Sink{}
}

// Add appends a diagnostic to the sink.
func (s *Sink) Add(d Diagnostic) {
	s.diagnostics = append(s.diagnostics, d)
}

// Errorf appends an error-severity diagnostic built from a kind, code,
// primary span, and formatted message.
func (s *Sink) Errorf(kind Kind, code string, span ast.Span, format string, args ...any) {
	s.Add(Diagnostic{
		Severity: SeverityError,
		Kind:     kind,
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Primary:  span,
	})
}

// Warnf appends a warning-severity diagnostic built from a kind, code,
// primary span, and formatted message.
func (s *Sink) Warnf(kind Kind, code string, span ast.Span, format string, args ...any) {
	s.Add(Diagnostic{
		Severity: SeverityWarning,
		Kind:     kind,
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Primary:  span,
	})
}

// All returns every diagnostic added so far, in the order they were added
// (which, by construction, is source order: passes run in a fixed order
// and each pass visits objects in their declared order).
func (s *Sink) All() []Diagnostic {
	return s.diagnostics
}

// HasErrors reports whether any diagnostic in the sink has Severity Error.
// The compiler returns an IR only when this is false.
func (s *Sink) HasErrors() bool {
	for _, d := range s.diagnostics {
		if d.Severity == SeverityError {
			return true
		}
	}

	return false
}

// Errors returns only the error-severity diagnostics.
func (s *Sink) Errors() []Diagnostic {
	var out []Diagnostic

	for _, d := range s.diagnostics {
		if d.Severity == SeverityError {
			out = append(out, d)
		}
	}

	return out
}

// Warnings returns only the warning-severity diagnostics.
func (s *Sink) Warnings() []Diagnostic {
	var out []Diagnostic

	for _, d := range s.diagnostics {
		if d.Severity == SeverityWarning {
			out = append(out, d)
		}
	}

	return out
}
