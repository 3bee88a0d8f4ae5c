// Package sema implements the semantic analyzer of spec.md §4.F: a set
// of deterministic checks over the IR, each accumulating diagnostics into
// a shared sink rather than stopping at the first problem. Analyze
// returns nothing; the IR is safe to hand to the emitter if and only if
// Analyze added no error-severity diagnostic to the sink.
package sema

import (
	devast "go.jacobcolvin.com/devicedesc/ast"
	"go.jacobcolvin.com/devicedesc/diag"
	"go.jacobcolvin.com/devicedesc/ir"
)

// Analyze runs every check of spec.md §4.F over dev, reporting problems
// to sink.
func Analyze(dev *ir.Device, sink *diag.Sink) {
	a := &analyzer{dev: dev, sink: sink}
	a.analyzeBlock(dev.Root)
}

type analyzer struct {
	dev  *ir.Device
	sink *diag.Sink
}

// analyzeBlock validates one block's direct children (name uniqueness,
// address overlap among siblings) and recurses into nested blocks.
func (a *analyzer) analyzeBlock(b *ir.Block) {
	a.checkNameUniqueness(b)
	a.checkAddressOverlap("register", registerAddresses(b))
	a.checkAddressOverlap("command", commandAddresses(b))

	for _, r := range b.Registers {
		a.analyzeRegister(r)
	}

	for _, c := range b.Commands {
		a.analyzeCommand(c)
	}

	for _, buf := range b.Buffers {
		a.analyzeBuffer(buf)
	}

	for _, nested := range b.Blocks {
		a.analyzeBlock(nested)
	}
}

type namedSpan struct {
	name string
	span devast.Span
}

// checkNameUniqueness enforces invariant 1/6 of spec.md §3/§8: within a
// block, no two direct children normalize to the same name.
func (a *analyzer) checkNameUniqueness(b *ir.Block) {
	var all []namedSpan

	for _, x := range b.Blocks {
		all = append(all, namedSpan{x.Name, x.Span})
	}

	for _, x := range b.Registers {
		all = append(all, namedSpan{x.Name, x.Span})
	}

	for _, x := range b.Commands {
		all = append(all, namedSpan{x.Name, x.Span})
	}

	for _, x := range b.Buffers {
		all = append(all, namedSpan{x.Name, x.Span})
	}

	seen := make(map[string]bool, len(all))

	for _, n := range all {
		if seen[n.name] {
			a.sink.Errorf(diag.KindSemantic, "sema-duplicate-name", n.span, "duplicate name %q within block %q", n.name, b.Name)

			continue
		}

		seen[n.name] = true
	}
}

// checkFieldSetUniqueness enforces the field-set half of invariant 1:
// within a field-set, no two fields normalize to the same name.
func (a *analyzer) checkFieldSetUniqueness(fields []*ir.Field, span devast.Span) {
	seen := make(map[string]bool, len(fields))

	for _, f := range fields {
		if seen[f.Name] {
			a.sink.Errorf(diag.KindSemantic, "sema-duplicate-field-name", f.Span, "duplicate field name %q", f.Name)

			continue
		}

		seen[f.Name] = true
	}

	_ = span
}

func (a *analyzer) analyzeRegister(r *ir.Register) {
	if r.SizeBits <= 0 {
		a.sink.Errorf(diag.KindSemantic, "sema-register-size", r.Span, "register %q must have size_bits > 0", r.Name)
	}

	a.checkFieldSetUniqueness(r.Fields, r.Span)
	a.checkFieldRanges(r.Fields, r.SizeBits)
	a.checkFieldOverlap(r.Fields, r.SizeBits, r.AllowBitOverlap, r.Span)
	a.checkAddressFit(r.Address, a.dev.AddressTypes.Register, r.Span, "register", r.Name)
	a.checkResetValueSize(r, r.SizeBits)
	a.checkByteOrderRequired(r.SizeBits, r.ByteOrder, r.Span, "register", r.Name)

	for _, f := range r.Fields {
		a.checkEnum(f)
	}
}

func (a *analyzer) analyzeCommand(c *ir.Command) {
	a.checkAddressFit(c.Address, a.dev.AddressTypes.Command, c.Span, "command", c.Name)

	if c.In != nil {
		a.checkFieldSetUniqueness(c.In.Fields, c.Span)
		a.checkFieldRanges(c.In.Fields, c.In.SizeBits)
		a.checkFieldOverlap(c.In.Fields, c.In.SizeBits, c.AllowBitOverlap, c.Span)
		a.checkByteOrderRequired(c.In.SizeBits, c.ByteOrder, c.Span, "command in", c.Name)

		for _, f := range c.In.Fields {
			a.checkEnum(f)
		}
	}

	if c.Out != nil {
		a.checkFieldSetUniqueness(c.Out.Fields, c.Span)
		a.checkFieldRanges(c.Out.Fields, c.Out.SizeBits)
		a.checkFieldOverlap(c.Out.Fields, c.Out.SizeBits, c.AllowBitOverlap, c.Span)
		a.checkByteOrderRequired(c.Out.SizeBits, c.ByteOrder, c.Span, "command out", c.Name)

		for _, f := range c.Out.Fields {
			a.checkEnum(f)
		}
	}
}

func (a *analyzer) analyzeBuffer(buf *ir.Buffer) {
	a.checkAddressFit(buf.Address, a.dev.AddressTypes.Buffer, buf.Span, "buffer", buf.Name)
}

// checkFieldRanges enforces "0 ≤ start < end ≤ size_bits, end-start ≥ 1"
// and the bool-must-be-one-bit rule, per spec.md §4.F.
func (a *analyzer) checkFieldRanges(fields []*ir.Field, sizeBits int) {
	for _, f := range fields {
		if f.Start < 0 || f.Start >= f.End || f.End > sizeBits {
			a.sink.Errorf(diag.KindSemantic, "sema-field-range", f.Span, "field %q has an invalid bit range [%d, %d) for a %d-bit container", f.Name, f.Start, f.End, sizeBits)

			continue
		}

		if f.BaseType == devast.BaseTypeBool && f.Width() != 1 {
			a.sink.Errorf(diag.KindSemantic, "sema-bool-width", f.Span, "bool field %q must span exactly one bit, has width %d", f.Name, f.Width())
		}
	}
}

// checkFieldOverlap partitions a bitmap of length sizeBits and reports
// any collision, unless allowBitOverlap is set (spec.md §4.F).
func (a *analyzer) checkFieldOverlap(fields []*ir.Field, sizeBits int, allowBitOverlap bool, span devast.Span) {
	if allowBitOverlap || sizeBits <= 0 {
		return
	}

	owner := make([]string, sizeBits)

	for _, f := range fields {
		for i := f.Start; i < f.End && i < sizeBits && i >= 0; i++ {
			if owner[i] != "" && owner[i] != f.Name {
				a.sink.Errorf(diag.KindSemantic, "sema-field-overlap", f.Span, "field %q overlaps field %q at bit %d", f.Name, owner[i], i)

				continue
			}

			owner[i] = f.Name
		}
	}
}

// checkResetValueSize enforces invariant 3: the reset-value byte sequence
// length equals ⌈size_bits/8⌉, and any trailing bits above size_bits in
// the last byte are zero.
func (a *analyzer) checkResetValueSize(r *ir.Register, sizeBits int) {
	want := ir.SizeBytes(sizeBits)
	if len(r.ResetValue) != want {
		a.sink.Errorf(diag.KindSemantic, "sema-reset-value-size", r.Span, "register %q reset_value has %d bytes, want %d", r.Name, len(r.ResetValue), want)

		return
	}

	if sizeBits%8 == 0 || len(r.ResetValue) == 0 {
		return
	}

	last := r.ResetValue[len(r.ResetValue)-1]
	usedBits := uint(sizeBits % 8)
	mask := byte(0xFF << usedBits)

	if last&mask != 0 {
		a.sink.Errorf(diag.KindSemantic, "sema-reset-value-high-bits", r.Span, "register %q reset_value has nonzero bits above size_bits", r.Name)
	}
}

// checkByteOrderRequired enforces "if a register/command data section
// spans more than one byte, a byte order must be specified."
func (a *analyzer) checkByteOrderRequired(sizeBits int, order devast.ByteOrder, span devast.Span, kind, name string) {
	if sizeBits > 8 && order == devast.ByteOrderUnset {
		a.sink.Errorf(diag.KindSemantic, "sema-byte-order-required", span, "%s %q spans more than one byte and has no byte order", kind, name)
	}
}
