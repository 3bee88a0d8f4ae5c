// Package ast defines the surface abstract syntax tree: a representation
// that closely mirrors user input (DSL source or a manifest document),
// preserving attributes and source spans for diagnostics. It is produced
// by the DSL parser (package dsl) and by the manifest deserializer
// (package deserialize), and consumed only by the lowering pass (package
// lower). It is never retained past one compilation.
package ast

// Span identifies a region of source text by byte offset and length. For
// manifest-derived nodes, Offset/Length describe a location in the
// re-serialized form of the document when the backing format does not
// expose byte offsets (see manifest.Value.Span for details); for DSL
// nodes they are exact.
type Span struct {
	Offset int
	Length int
}

// Zero reports whether the span carries no useful position information.
func (s Span) Zero() bool {
	return s.Offset == 0 && s.Length == 0
}

// Spanned pairs a value with the span of the syntax that produced it.
type Spanned[T any] struct {
	Value T
	Span  Span
}
