// Package ir defines the canonical, fully-elaborated device model (spec.md
// §3 IR entities): the output of lower+sema and the sole input to the
// out-of-scope backend emitter. The IR is a closed, struct-only tree:
// every node is reachable from exactly one Device and is immutable once
// built. Blocks, registers, commands, buffers, fields and enum variants
// retain a span for diagnostic rendering after lowering.
package ir

import (
	"math/big"

	"go.jacobcolvin.com/devicedesc/ast"
)

// Defaults holds the device-wide settings materialized from
// GlobalConfig, with documented fallbacks already applied.
type Defaults struct {
	RegisterAccess ast.Access
	FieldAccess    ast.Access
	BufferAccess   ast.Access
	ByteOrder      ast.ByteOrder
	BitOrder       ast.BitOrder
}

// AddressTypes names the three address-type slots a device may declare;
// each is mandatory once an object of the corresponding kind exists.
type AddressTypes struct {
	Register ast.AddressType
	Command  ast.AddressType
	Buffer   ast.AddressType
}

// Repeat is the {count, stride} multiplier preserved (not expanded) on a
// repeated object, per spec.md §4.E step 4.
type Repeat struct {
	Count  *big.Int
	Stride *big.Int
}

// WordBoundary is one rule a name normalizer may apply when splitting an
// identifier into its component words.
type WordBoundary int

const (
	BoundaryUnderscore WordBoundary = iota
	BoundaryHyphen
	BoundarySpace
	BoundaryLowerUpper
	BoundaryUpperDigit
	BoundaryDigitUpper
	BoundaryDigitLower
	BoundaryLowerDigit
	BoundaryAcronym
)

// WordBoundarySet is the union of boundary rules in effect for a device,
// defaulting to every rule named in spec.md §4.E step 2.
type WordBoundarySet map[WordBoundary]bool

// DefaultWordBoundaries returns the documented default set: every
// boundary rule enabled.
func DefaultWordBoundaries() WordBoundarySet {
	return WordBoundarySet{
		BoundaryUnderscore: true,
		BoundaryHyphen:     true,
		BoundarySpace:      true,
		BoundaryLowerUpper: true,
		BoundaryUpperDigit: true,
		BoundaryDigitUpper: true,
		BoundaryDigitLower: true,
		BoundaryLowerDigit: true,
		BoundaryAcronym:    true,
	}
}

// Device is the root of the IR.
type Device struct {
	Name           string
	Version        string // supplemental: free-form version string from GlobalConfig, spec.md §3 supplement
	AddressTypes   AddressTypes
	Defaults       Defaults
	NameBoundary   WordBoundarySet
	ConditionalTag *string
	Root           *Block
}

// Block is a named grouping of objects sharing an address offset.
type Block struct {
	Name          string
	OriginalName  string
	Doc           []string
	Attr          *string
	AddressOffset *big.Int
	Repeat        *Repeat
	Blocks        []*Block
	Registers     []*Register
	Commands      []*Command
	Buffers       []*Buffer
	Span          ast.Span
}

// Register is a named, addressable, bit-packed datum with fields.
type Register struct {
	Name                string
	OriginalName        string
	Doc                 []string
	Attr                *string
	Access              ast.Access
	ByteOrder           ast.ByteOrder
	BitOrder            ast.BitOrder
	Address             *big.Int
	SizeBits            int
	ResetValue          []byte
	Repeat              *Repeat
	AllowBitOverlap     bool
	AllowAddressOverlap bool
	Fields              []*Field
	RefResetOverrides   map[string][]byte
	Span                ast.Span
}

// FieldSet is the ordered collection of fields belonging to one command
// direction.
type FieldSet struct {
	SizeBits int
	Fields   []*Field
}

// Command is an addressable action with optional input and output
// field-sets.
type Command struct {
	Name                string
	OriginalName        string
	Doc                 []string
	Attr                *string
	ByteOrder           ast.ByteOrder
	BitOrder            ast.BitOrder
	Address             *big.Int
	Repeat              *Repeat
	AllowBitOverlap     bool
	AllowAddressOverlap bool
	In                  *FieldSet
	Out                 *FieldSet
	Span                ast.Span
}

// Buffer is an addressable byte-stream endpoint.
type Buffer struct {
	Name         string
	OriginalName string
	Doc          []string
	Attr         *string
	Access       ast.Access
	Address      *big.Int
	Span         ast.Span
}

// ConversionKind discriminates the Conversion tagged variant.
type ConversionKind int

const (
	ConversionNone ConversionKind = iota
	ConversionInfallible
	ConversionFallible
	ConversionInlineEnum
	ConversionInferredInfallible
)

// Conversion is the fully-classified transformation between a field's raw
// integer and a user-facing typed value. Exactly the fields relevant to
// Kind are populated.
type Conversion struct {
	Kind     ConversionKind
	TypePath string
	Enum     *EnumSpec
}

// EnumVariantKind discriminates how an enum variant's integer value was
// specified.
type EnumVariantKind int

const (
	EnumVariantExplicit EnumVariantKind = iota
	EnumVariantDefault
	EnumVariantCatchAll
)

// EnumVariant is one member of a fully-elaborated inline enum.
type EnumVariant struct {
	Name         string
	OriginalName string
	Doc          []string
	Attr         *string
	Kind         EnumVariantKind
	Value        *big.Int // meaningful when Kind == EnumVariantExplicit
	Span         ast.Span
}

// EnumSpec is a fully-elaborated inline enum attached to a Field's
// Conversion.
type EnumSpec struct {
	Name     string
	Doc      []string
	Variants []EnumVariant
}

// Field is a contiguous bit range within a register or command field-set.
type Field struct {
	Name         string
	OriginalName string
	Doc          []string
	Attr         *string
	Access       ast.Access
	BaseType     ast.BaseType
	Start        int
	End          int
	Conversion   *Conversion
	Span         ast.Span
}

// Width returns the field's bit width, end-start.
func (f *Field) Width() int { return f.End - f.Start }

// SizeBytes returns the number of bytes needed to hold n bits, rounding
// up, matching the ⌈size_bits/8⌉ rule used throughout spec.md §3.
func SizeBytes(sizeBits int) int {
	return (sizeBits + 7) / 8
}
