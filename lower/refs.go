package lower

import (
	devast "go.jacobcolvin.com/devicedesc/ast"
	"go.jacobcolvin.com/devicedesc/diag"
)

// resolveRef returns o unchanged if it is not a Ref. If it is a Ref, it
// locates the target in scope, deep-copies it, applies the ref's
// override, and returns the merged object in place of the Ref — ready to
// be lowered exactly like a freestanding object of the target's kind.
// The bool result is false when the ref could not be resolved (already
// diagnosed), and the caller should skip it.
func (l *lowerer) resolveRef(o *devast.Object, scope map[string]*devast.Object) (*devast.Object, bool) {
	if o.Kind != devast.KindRef {
		return o, true
	}

	body := o.Ref

	target, ok := scope[body.TargetName.Name]
	if !ok {
		l.sink.Errorf(diag.KindSemantic, "lower-ref-target", body.TargetName.Span, "ref target %q not found in scope", body.TargetName.Name)

		return nil, false
	}

	if target.Kind == devast.KindRef {
		l.sink.Errorf(diag.KindSemantic, "lower-ref-indirection", o.Span, "ref %q targets another ref %q: indirection is forbidden", o.Name.Name, target.Name.Name)

		return nil, false
	}

	if target.Kind != body.TargetKind {
		l.sink.Errorf(diag.KindSemantic, "lower-ref-kind-mismatch", o.Span, "ref %q declared as %s but target %q is %s", o.Name.Name, body.TargetKind, target.Name.Name, target.Kind)

		return nil, false
	}

	merged := deepCopyObject(target)
	merged.Name = o.Name
	merged.Doc = firstNonEmpty(o.Doc, target.Doc)
	merged.Attr = firstNonNilAttr(o.Attr, target.Attr)

	if body.Override != nil {
		l.applyOverride(merged, body.Override, o.Name.Name)
	}

	return merged, true
}

func firstNonEmpty(a, b []string) []string {
	if len(a) > 0 {
		return a
	}

	return b
}

func firstNonNilAttr(a, b *string) *string {
	if a != nil {
		return a
	}

	return b
}

// applyOverride merges override's non-zero body fields into dst
// field-by-field, forbidding structural properties, and recording a
// reset-value override separately (spec.md §4.E step 3: "the original
// field-set acquires a ref_reset_overrides[ref-name] entry").
func (l *lowerer) applyOverride(dst, override *devast.Object, refName string) {
	switch dst.Kind {
	case devast.KindRegister:
		l.applyRegisterOverride(dst.Register, override.Register, override.Span, refName)
	case devast.KindCommand:
		l.applyCommandOverride(dst.Command, override.Command, override.Span)
	case devast.KindBlock:
		l.applyBlockOverride(dst.Block, override.Block)
	case devast.KindBuffer:
		l.applyBufferOverride(dst.Buffer, override.Buffer)
	}
}

func (l *lowerer) applyRegisterOverride(dst, src *devast.RegisterBody, span devast.Span, refName string) {
	if src == nil {
		return
	}

	if src.SizeBits != nil {
		l.sink.Errorf(diag.KindSemantic, "lower-ref-override-structural", span, "ref override may not change size_bits")
	}

	if len(src.Fields) > 0 {
		l.sink.Errorf(diag.KindSemantic, "lower-ref-override-structural", span, "ref override may not change fields")
	}

	if src.ByteOrder != devast.ByteOrderUnset {
		l.sink.Errorf(diag.KindSemantic, "lower-ref-override-structural", span, "ref override may not change byte_order")
	}

	if src.BitOrder != devast.BitOrderUnset {
		l.sink.Errorf(diag.KindSemantic, "lower-ref-override-structural", span, "ref override may not change bit_order")
	}

	if src.Access != devast.AccessUnset {
		dst.Access = src.Access
	}

	if src.Address != nil {
		dst.Address = src.Address
	}

	if src.Repeat != nil {
		dst.Repeat = src.Repeat
	}

	if src.AllowBitOverlap {
		dst.AllowBitOverlap = true
	}

	if src.AllowAddressOverlap {
		dst.AllowAddressOverlap = true
	}

	if src.ResetValue != nil {
		if dst.RefResetOverrides == nil {
			dst.RefResetOverrides = make(map[string]*devast.ResetValue)
		}

		dst.RefResetOverrides[refName] = src.ResetValue
	}
}

func (l *lowerer) applyCommandOverride(dst, src *devast.CommandBody, span devast.Span) {
	if src == nil {
		return
	}

	if src.ByteOrder != devast.ByteOrderUnset {
		l.sink.Errorf(diag.KindSemantic, "lower-ref-override-structural", span, "ref override may not change byte_order")
	}

	if src.BitOrder != devast.BitOrderUnset {
		l.sink.Errorf(diag.KindSemantic, "lower-ref-override-structural", span, "ref override may not change bit_order")
	}

	if src.In != nil || src.Out != nil {
		l.sink.Errorf(diag.KindSemantic, "lower-ref-override-structural", span, "ref override may not change fields_in/fields_out")
	}

	if src.Address != nil {
		dst.Address = src.Address
	}

	if src.Repeat != nil {
		dst.Repeat = src.Repeat
	}

	if src.AllowBitOverlap {
		dst.AllowBitOverlap = true
	}

	if src.AllowAddressOverlap {
		dst.AllowAddressOverlap = true
	}
}

func (l *lowerer) applyBlockOverride(dst, src *devast.BlockBody) {
	if src == nil {
		return
	}

	if src.AddressOffset != nil {
		dst.AddressOffset = src.AddressOffset
	}

	if src.Repeat != nil {
		dst.Repeat = src.Repeat
	}
}

func (l *lowerer) applyBufferOverride(dst, src *devast.BufferBody) {
	if src == nil {
		return
	}

	if src.Access != devast.AccessUnset {
		dst.Access = src.Access
	}

	if src.Address != nil {
		dst.Address = src.Address
	}
}

// deepCopyObject clones target so a Ref can apply its override without
// mutating the original object definition (spec.md §4.E step 3: "Produce
// a deep copy of the target, then apply the ref's override body
// field-by-field").
func deepCopyObject(target *devast.Object) *devast.Object {
	cp := *target

	switch target.Kind {
	case devast.KindBlock:
		b := *target.Block
		b.Objects = append([]*devast.Object(nil), target.Block.Objects...)
		cp.Block = &b
	case devast.KindRegister:
		r := *target.Register
		r.Fields = append([]devast.Field(nil), target.Register.Fields...)
		cp.Register = &r
	case devast.KindCommand:
		c := *target.Command
		cp.Command = &c
	case devast.KindBuffer:
		b := *target.Buffer
		cp.Buffer = &b
	}

	return &cp
}
