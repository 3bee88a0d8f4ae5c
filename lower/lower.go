// Package lower implements lowering and normalization (spec.md §4.E):
// global config elaboration, identifier normalization, reference
// resolution and override merging, logical repeat preservation, default
// propagation, and reset-value canonicalization. It operates purely on
// the surface AST (package ast) and produces the IR (package ir),
// structurally complete but not yet validated — validation is the
// Semantic Analyzer's job (package sema), run over the IR this package
// returns.
package lower

import (
	"math/big"

	devast "go.jacobcolvin.com/devicedesc/ast"
	"go.jacobcolvin.com/devicedesc/diag"
	"go.jacobcolvin.com/devicedesc/ir"
	"go.jacobcolvin.com/devicedesc/pack"
)

// defaultDeviceName is the implicit root block's name when no better name is
// known; the manifest/DSL surface does not carry a top-level device
// name, so the emitter-facing name is supplied by the caller (typically
// derived from the source file name) and threaded in here.
const defaultDeviceName = "Device"

// Lower elaborates surface into a Device IR. name, if non-empty,
// overrides the default device name.
func Lower(surface *devast.Device, name string, sink *diag.Sink) *ir.Device {
	l := &lowerer{sink: sink}

	return l.lowerDevice(surface, name)
}

type lowerer struct {
	sink       *diag.Sink
	boundaries ir.WordBoundarySet
}

func (l *lowerer) lowerDevice(surface *devast.Device, name string) *ir.Device {
	dev := &ir.Device{Name: name}
	if dev.Name == "" {
		dev.Name = defaultDeviceName
	}

	l.elaborateConfig(surface.Config, dev)
	l.boundaries = dev.NameBoundary

	root := &ir.Block{
		Name:          normalize(dev.Name, l.boundaries),
		OriginalName:  dev.Name,
		AddressOffset: big.NewInt(0),
		Span:          surface.Span,
	}

	l.lowerScope(surface.Objects, dev, root)

	dev.Root = root

	return dev
}

// elaborateConfig materializes Device-wide defaults from GlobalConfig,
// substituting the documented fallbacks where absent (spec.md §4.E step 1).
func (l *lowerer) elaborateConfig(cfg *devast.GlobalConfig, dev *ir.Device) {
	dev.Defaults.BitOrder = devast.BitOrderLSB0
	dev.NameBoundary = ir.DefaultWordBoundaries()

	if cfg == nil {
		return
	}

	for _, item := range cfg.Items {
		l.applyConfigItem(item, dev)
	}
}

func (l *lowerer) applyConfigItem(item devast.GlobalConfigItem, dev *ir.Device) {
	word := item.Value.Word
	if item.Value.String != nil {
		word = *item.Value.String
	}

	switch item.Name {
	case "DefaultRegisterAccess":
		dev.Defaults.RegisterAccess = mustAccess(word, item.Span, l.sink)
	case "DefaultFieldAccess":
		dev.Defaults.FieldAccess = mustAccess(word, item.Span, l.sink)
	case "DefaultBufferAccess":
		dev.Defaults.BufferAccess = mustAccess(word, item.Span, l.sink)
	case "DefaultByteOrder":
		dev.Defaults.ByteOrder = mustByteOrder(word, item.Span, l.sink)
	case "DefaultBitOrder":
		dev.Defaults.BitOrder = mustBitOrder(word, item.Span, l.sink)
	case "RegisterAddressType":
		dev.AddressTypes.Register = mustAddressType(word, item.Span, l.sink)
	case "CommandAddressType":
		dev.AddressTypes.Command = mustAddressType(word, item.Span, l.sink)
	case "BufferAddressType":
		dev.AddressTypes.Buffer = mustAddressType(word, item.Span, l.sink)
	case "NameWordBoundaries":
		dev.NameBoundary = parseWordBoundaries(word)
	case "Version":
		dev.Version = word
	case "DefmtFeature":
		// Recognized but not meaningful to this core (out-of-scope
		// feature-flag plumbing per spec.md §1 Non-goals); accepted
		// silently so it does not trip the unknown-config diagnostic.
	default:
		l.sink.Warnf(diag.KindPragma, "lower-unknown-config", item.Span, "unrecognized global config item %q", item.Name)
	}
}

func mustAccess(word string, span devast.Span, sink *diag.Sink) devast.Access {
	a, ok := devast.ParseAccess(word)
	if !ok {
		sink.Errorf(diag.KindSemantic, "lower-config-access", span, "invalid access %q", word)
	}

	return a
}

func mustByteOrder(word string, span devast.Span, sink *diag.Sink) devast.ByteOrder {
	o, ok := devast.ParseByteOrder(word)
	if !ok {
		sink.Errorf(diag.KindSemantic, "lower-config-byte-order", span, "invalid byte order %q", word)
	}

	return o
}

func mustBitOrder(word string, span devast.Span, sink *diag.Sink) devast.BitOrder {
	o, ok := devast.ParseBitOrder(word)
	if !ok {
		sink.Errorf(diag.KindSemantic, "lower-config-bit-order", span, "invalid bit order %q", word)
	}

	return o
}

func mustAddressType(word string, span devast.Span, sink *diag.Sink) devast.AddressType {
	t, ok := devast.ParseAddressType(word)
	if !ok {
		sink.Errorf(diag.KindSemantic, "lower-config-address-type", span, "invalid address type %q", word)
	}

	return t
}

// lowerScope lowers one sibling scope (the device's top level, or one
// block's Objects), resolving refs against the scope's own object names
// (spec.md §4.E step 3: "locate the target by name in the surrounding
// scope") and appending each lowered child to parent.
func (l *lowerer) lowerScope(objects []*devast.Object, dev *ir.Device, parent *ir.Block) {
	byName := make(map[string]*devast.Object, len(objects))
	for _, o := range objects {
		byName[o.Name.Name] = o
	}

	for _, o := range objects {
		resolved, ok := l.resolveRef(o, byName)
		if !ok {
			continue
		}

		l.lowerObjectInto(resolved, dev, parent)
	}
}

func (l *lowerer) lowerObjectInto(o *devast.Object, dev *ir.Device, parent *ir.Block) {
	switch o.Kind {
	case devast.KindBlock:
		b := l.lowerBlock(o, dev)
		parent.Blocks = append(parent.Blocks, b)
	case devast.KindRegister:
		r := l.lowerRegister(o, dev)
		parent.Registers = append(parent.Registers, r)
	case devast.KindCommand:
		c := l.lowerCommand(o, dev)
		parent.Commands = append(parent.Commands, c)
	case devast.KindBuffer:
		b := l.lowerBuffer(o, dev)
		parent.Buffers = append(parent.Buffers, b)
	case devast.KindRef:
		// A Ref that itself resolved to another Ref is caught in
		// resolveRef; reaching here would be an internal error.
		l.sink.Errorf(diag.KindSemantic, "lower-ref-unresolved", o.Span, "internal: ref %q reached lowering unresolved", o.Name.Name)
	}
}

func (l *lowerer) lowerBlock(o *devast.Object, dev *ir.Device) *ir.Block {
	body := o.Block

	b := &ir.Block{
		Name:         normalize(o.Name.Name, l.boundaries),
		OriginalName: o.Name.Name,
		Doc:          o.Doc,
		Attr:         o.Attr,
		Span:         o.Span,
	}

	if body.AddressOffset != nil {
		b.AddressOffset = body.AddressOffset
	} else {
		b.AddressOffset = big.NewInt(0)
	}

	if body.Repeat != nil {
		b.Repeat = &ir.Repeat{Count: body.Repeat.Count, Stride: body.Repeat.Stride}
	}

	l.lowerScope(body.Objects, dev, b)

	return b
}

func (l *lowerer) lowerRegister(o *devast.Object, dev *ir.Device) *ir.Register {
	body := o.Register

	r := &ir.Register{
		Name:                normalize(o.Name.Name, l.boundaries),
		OriginalName:        o.Name.Name,
		Doc:                 o.Doc,
		Attr:                o.Attr,
		Access:              propagateAccess(body.Access, dev.Defaults.RegisterAccess),
		ByteOrder:           propagateByteOrder(body.ByteOrder, dev.Defaults.ByteOrder),
		BitOrder:            propagateBitOrder(body.BitOrder, dev.Defaults.BitOrder),
		Address:             orZero(body.Address),
		AllowBitOverlap:     body.AllowBitOverlap,
		AllowAddressOverlap: body.AllowAddressOverlap,
		Span:                o.Span,
	}

	if body.SizeBits != nil {
		r.SizeBits = *body.SizeBits
	}

	if body.Repeat != nil {
		r.Repeat = &ir.Repeat{Count: body.Repeat.Count, Stride: body.Repeat.Stride}
	}

	r.Fields = l.lowerFields(body.Fields, dev, dev.Defaults.FieldAccess)

	r.ResetValue = l.canonicalizeResetValue(body.ResetValue, r.SizeBits, r.ByteOrder, r.BitOrder, o.Span)

	if len(body.RefResetOverrides) > 0 {
		r.RefResetOverrides = make(map[string][]byte, len(body.RefResetOverrides))
		for refName, rv := range body.RefResetOverrides {
			r.RefResetOverrides[refName] = l.canonicalizeResetValue(rv, r.SizeBits, r.ByteOrder, r.BitOrder, o.Span)
		}
	}

	return r
}

func (l *lowerer) lowerFields(fields []devast.Field, dev *ir.Device, defaultAccess devast.Access) []*ir.Field {
	out := make([]*ir.Field, 0, len(fields))

	for _, f := range fields {
		out = append(out, l.lowerField(f, dev, defaultAccess))
	}

	return out
}

func (l *lowerer) lowerField(f devast.Field, dev *ir.Device, defaultAccess devast.Access) *ir.Field {
	field := &ir.Field{
		Name:         normalize(f.Name.Name, l.boundaries),
		OriginalName: f.Name.Name,
		Doc:          f.Doc,
		Attr:         f.Attr,
		Access:       propagateAccess(f.Access, defaultAccess),
		BaseType:     f.BaseType,
		Start:        f.Start,
		End:          f.End,
		Span:         f.Span,
	}

	if f.Conversion != nil {
		field.Conversion = l.lowerConversion(f.Conversion, field.Width())
	}

	return field
}

func (l *lowerer) lowerConversion(c *devast.Conversion, width int) *ir.Conversion {
	if c.InlineEnum != nil {
		enum := l.lowerEnum(c.InlineEnum)

		// A non-exhaustive enum without an explicit try is still Fallible:
		// only an exhaustive variant set (or an explicit default/catch_all,
		// handled inside enumIsInfallible) earns Infallible.
		kind := ir.ConversionFallible
		if !c.Fallible && enumIsInfallible(enum, width) {
			kind = ir.ConversionInfallible
		}

		return &ir.Conversion{Kind: kind, Enum: enum}
	}

	kind := ir.ConversionInfallible
	if c.Fallible {
		kind = ir.ConversionFallible
	}

	return &ir.Conversion{Kind: kind, TypePath: c.TypePath}
}

func (l *lowerer) lowerEnum(e *devast.InlineEnum) *ir.EnumSpec {
	spec := &ir.EnumSpec{Name: normalize(e.Name, l.boundaries)}

	next := big.NewInt(0)

	for _, v := range e.Variants {
		variant := ir.EnumVariant{
			Name:         normalize(v.Name.Name, l.boundaries),
			OriginalName: v.Name.Name,
			Doc:          v.Doc,
			Attr:         v.Attr,
			Span:         v.Span,
		}

		switch v.Kind {
		case devast.EnumVariantDefault:
			variant.Kind = ir.EnumVariantDefault
		case devast.EnumVariantCatchAll:
			variant.Kind = ir.EnumVariantCatchAll
		case devast.EnumVariantExplicit:
			variant.Kind = ir.EnumVariantExplicit
			variant.Value = v.Explicit
			next = new(big.Int).Add(v.Explicit, big.NewInt(1))
		default: // Auto
			variant.Kind = ir.EnumVariantExplicit
			variant.Value = new(big.Int).Set(next)
			next = new(big.Int).Add(next, big.NewInt(1))
		}

		spec.Variants = append(spec.Variants, variant)
	}

	return spec
}

// enumIsInfallible reports whether an inline enum's variants exhaust
// every value a field of the given width can hold, per spec.md §3
// (Conversion) and §4.F ("Enum exhaustiveness").
func enumIsInfallible(e *ir.EnumSpec, width int) bool {
	for _, v := range e.Variants {
		if v.Kind == ir.EnumVariantDefault || v.Kind == ir.EnumVariantCatchAll {
			return true
		}
	}

	total := new(big.Int).Lsh(big.NewInt(1), uint(width))
	explicit := make(map[string]bool)

	for _, v := range e.Variants {
		if v.Kind == ir.EnumVariantExplicit && v.Value != nil {
			explicit[v.Value.String()] = true
		}
	}

	return big.NewInt(int64(len(explicit))).Cmp(total) >= 0
}

func (l *lowerer) lowerCommand(o *devast.Object, dev *ir.Device) *ir.Command {
	body := o.Command

	c := &ir.Command{
		Name:                normalize(o.Name.Name, l.boundaries),
		OriginalName:        o.Name.Name,
		Doc:                 o.Doc,
		Attr:                o.Attr,
		ByteOrder:           propagateByteOrder(body.ByteOrder, dev.Defaults.ByteOrder),
		BitOrder:            propagateBitOrder(body.BitOrder, dev.Defaults.BitOrder),
		Address:             orZero(body.Address),
		AllowBitOverlap:     body.AllowBitOverlap,
		AllowAddressOverlap: body.AllowAddressOverlap,
		Span:                o.Span,
	}

	if body.Repeat != nil {
		c.Repeat = &ir.Repeat{Count: body.Repeat.Count, Stride: body.Repeat.Stride}
	}

	if body.In != nil {
		c.In = l.lowerFieldSet(body.In, dev)
	}

	if body.Out != nil {
		c.Out = l.lowerFieldSet(body.Out, dev)
	}

	return c
}

func (l *lowerer) lowerFieldSet(fs *devast.FieldSet, dev *ir.Device) *ir.FieldSet {
	out := &ir.FieldSet{Fields: l.lowerFields(fs.Fields, dev, dev.Defaults.FieldAccess)}
	if fs.SizeBits != nil {
		out.SizeBits = *fs.SizeBits
	}

	return out
}

func (l *lowerer) lowerBuffer(o *devast.Object, dev *ir.Device) *ir.Buffer {
	body := o.Buffer

	return &ir.Buffer{
		Name:         normalize(o.Name.Name, l.boundaries),
		OriginalName: o.Name.Name,
		Doc:          o.Doc,
		Attr:         o.Attr,
		Access:       propagateAccess(body.Access, dev.Defaults.BufferAccess),
		Address:      orZero(body.Address),
		Span:         o.Span,
	}
}

// canonicalizeResetValue implements spec.md §4.E step 6: an explicit
// integer reset value is serialized using the register's final ordering;
// an explicit byte array is accepted verbatim (length is checked by
// sema, not here).
func (l *lowerer) canonicalizeResetValue(rv *devast.ResetValue, sizeBits int, byteOrder devast.ByteOrder, bitOrder devast.BitOrder, span devast.Span) []byte {
	size := ir.SizeBytes(sizeBits)

	if rv == nil {
		return make([]byte, size)
	}

	if rv.Bytes != nil {
		return rv.Bytes
	}

	buf := make([]byte, size)
	pack.StoreUint(buf, 0, sizeBits, rv.Integer, toPackByteOrder(byteOrder), toPackBitOrder(bitOrder))

	return buf
}

func toPackByteOrder(o devast.ByteOrder) pack.ByteOrder {
	if o == devast.ByteOrderBE {
		return pack.BE
	}

	return pack.LE
}

func toPackBitOrder(o devast.BitOrder) pack.BitOrder {
	if o == devast.BitOrderMSB0 {
		return pack.MSB0
	}

	return pack.LSB0
}

func propagateAccess(v, fallback devast.Access) devast.Access {
	if v != devast.AccessUnset {
		return v
	}

	return fallback
}

func propagateByteOrder(v, fallback devast.ByteOrder) devast.ByteOrder {
	if v != devast.ByteOrderUnset {
		return v
	}

	return fallback
}

func propagateBitOrder(v, fallback devast.BitOrder) devast.BitOrder {
	if v != devast.BitOrderUnset {
		return v
	}

	return fallback
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}

	return v
}
