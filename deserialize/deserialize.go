// Package deserialize implements the manifest deserializer of spec.md
// §4.B: it walks a manifest.Value (itself produced by one of the
// manifest/json, manifest/yaml, or manifest/toml backends) into the same
// surface AST the DSL parser builds, so every later pass is written
// exactly once regardless of source syntax.
package deserialize

import (
	"math/big"

	devast "go.jacobcolvin.com/devicedesc/ast"
	"go.jacobcolvin.com/devicedesc/diag"
	"go.jacobcolvin.com/devicedesc/manifest"
)

const (
	keyType                = "type"
	keyDescription         = "description"
	keyAccess              = "access"
	keyByteOrder           = "byte_order"
	keyBitOrder            = "bit_order"
	keyRepeat              = "repeat"
	keyAddress             = "address"
	keyAddressOffset       = "address_offset"
	keySizeBits            = "size_bits"
	keySizeBitsIn          = "size_bits_in"
	keySizeBitsOut         = "size_bits_out"
	keyResetValue          = "reset_value"
	keyAllowBitOverlap     = "allow_bit_overlap"
	keyAllowAddressOverlap = "allow_address_overlap"
	keyFields              = "fields"
	keyFieldsIn            = "fields_in"
	keyFieldsOut           = "fields_out"
	keyObjects             = "objects"
	keyTarget              = "target"
	keyOverride            = "override"
	keyConfig              = "config"
	keyCfg                 = "cfg"
	keyConversion          = "conversion"
	keyTryConversion       = "try_conversion"
	keyName                = "name"
	keyValue               = "value"
	keyCount               = "count"
	keyStride              = "stride"
)

// recognizedKeys lists, per object kind, which of the manifest keys named
// in spec.md §4.B apply. Any key on an object map outside its kind's set
// (plus the universally-recognized "type", "cfg", "description") is a
// schema diagnostic.
var recognizedKeys = map[string]map[string]bool{
	"block": {
		keyAddressOffset: true, keyRepeat: true, keyObjects: true,
	},
	"register": {
		keyAccess: true, keyByteOrder: true, keyBitOrder: true, keyRepeat: true,
		keyAddress: true, keySizeBits: true, keyResetValue: true,
		keyAllowBitOverlap: true, keyAllowAddressOverlap: true, keyFields: true,
	},
	"command": {
		keyByteOrder: true, keyBitOrder: true, keyRepeat: true, keyAddress: true,
		keyAllowBitOverlap: true, keyAllowAddressOverlap: true,
		keyFieldsIn: true, keyFieldsOut: true, keySizeBitsIn: true, keySizeBitsOut: true,
	},
	"buffer": {
		keyAccess: true, keyAddress: true,
	},
	"ref": {
		keyTarget: true, keyOverride: true,
	},
}

// universalKeys are accepted on any object map regardless of kind.
var universalKeys = map[string]bool{
	keyType: true, keyCfg: true, keyDescription: true,
}

// Deserialize walks a manifest Map representing a Device into the
// surface AST, reporting every schema problem to sink. The returned
// Device is always non-nil.
func Deserialize(doc manifest.Value, sink *diag.Sink) *devast.Device {
	dev := &devast.Device{Span: doc.Span}

	entries, err := doc.AsMap()
	if err != nil {
		sink.Errorf(diag.KindSchema, "manifest-root", doc.Span, "device manifest root must be a map: %v", err)

		return dev
	}

	for _, e := range entries {
		if e.Key == keyConfig {
			dev.Config = deserializeGlobalConfig(e.Value, sink)

			continue
		}

		obj := deserializeObject(e.Key, e.KeySpan, e.Value, sink)
		if obj != nil {
			dev.Objects = append(dev.Objects, obj)
		}
	}

	return dev
}

func deserializeGlobalConfig(v manifest.Value, sink *diag.Sink) *devast.GlobalConfig {
	entries, err := v.AsMap()
	if err != nil {
		sink.Errorf(diag.KindSchema, "manifest-config", v.Span, "config must be a map: %v", err)

		return nil
	}

	cfg := &devast.GlobalConfig{Span: v.Span}

	for _, e := range entries {
		cfg.Items = append(cfg.Items, devast.GlobalConfigItem{
			Name:  e.Key,
			Value: configValueFrom(e.Value),
			Span:  e.Value.Span,
		})
	}

	return cfg
}

func configValueFrom(v manifest.Value) devast.ConfigValue {
	switch v.Kind {
	case manifest.KindString:
		s, _ := v.AsString()

		return devast.ConfigValue{String: &s}
	case manifest.KindInteger:
		i, _ := v.AsInteger()

		return devast.ConfigValue{Word: i.String()}
	case manifest.KindBool:
		b, _ := v.AsBool()
		if b {
			return devast.ConfigValue{Word: "true"}
		}

		return devast.ConfigValue{Word: "false"}
	default:
		s, _ := v.AsString()

		return devast.ConfigValue{Word: s}
	}
}

func checkKeys(kind string, entries []manifest.Entry, sink *diag.Sink) {
	allowed := recognizedKeys[kind]

	for _, e := range entries {
		if universalKeys[e.Key] || allowed[e.Key] {
			continue
		}

		sink.Errorf(diag.KindSchema, "manifest-unknown-key", e.KeySpan, "unrecognized key %q for object of type %q", e.Key, kind)
	}
}

func deserializeObject(name string, nameSpan devast.Span, v manifest.Value, sink *diag.Sink) *devast.Object {
	entries, err := v.AsMap()
	if err != nil {
		sink.Errorf(diag.KindSchema, "manifest-object", v.Span, "object %q must be a map: %v", name, err)

		return nil
	}

	typeVal, ok := v.Get(keyType)
	if !ok {
		sink.Errorf(diag.KindSchema, "manifest-missing-type", nameSpan, "object %q is missing its %q discriminator", name, keyType)

		return nil
	}

	kindWord, err := typeVal.AsString()
	if err != nil {
		sink.Errorf(diag.KindSchema, "manifest-type-kind", typeVal.Span, "%q must be a string: %v", keyType, err)

		return nil
	}

	checkKeys(kindWord, entries, sink)

	ident := devast.Ident{Name: name, Span: nameSpan}
	doc, attr := docAndAttrFrom(v)

	obj := &devast.Object{Name: ident, Doc: doc, Attr: attr, Span: v.Span}

	switch kindWord {
	case "block":
		obj.Kind = devast.KindBlock
		obj.Block = deserializeBlockBody(v, sink)
	case "register":
		obj.Kind = devast.KindRegister
		obj.Register = deserializeRegisterBody(v, sink)
	case "command":
		obj.Kind = devast.KindCommand
		obj.Command = deserializeCommandBody(v, sink)
	case "buffer":
		obj.Kind = devast.KindBuffer
		obj.Buffer = deserializeBufferBody(v, sink)
	case "ref":
		obj.Kind = devast.KindRef
		obj.Ref = deserializeRefBody(v, sink)
	default:
		sink.Errorf(diag.KindSchema, "manifest-unknown-type", typeVal.Span, "unknown object type %q", kindWord)

		return nil
	}

	return obj
}

func docAndAttrFrom(v manifest.Value) (doc []string, attr *string) {
	if d, ok := v.Get(keyDescription); ok {
		if s, err := d.AsString(); err == nil {
			doc = []string{s}
		}
	}

	if c, ok := v.Get(keyCfg); ok {
		if s, err := c.AsString(); err == nil {
			attr = &s
		}
	}

	return doc, attr
}

func deserializeBlockBody(v manifest.Value, sink *diag.Sink) *devast.BlockBody {
	body := &devast.BlockBody{}

	if off, ok := v.Get(keyAddressOffset); ok {
		body.AddressOffset = intFrom(off, sink)
	}

	if rep, ok := v.Get(keyRepeat); ok {
		body.Repeat = repeatFrom(rep, sink)
	}

	if objs, ok := v.Get(keyObjects); ok {
		entries, err := objs.AsMap()
		if err != nil {
			sink.Errorf(diag.KindSchema, "manifest-objects", objs.Span, "objects must be a map: %v", err)

			return body
		}

		for _, e := range entries {
			obj := deserializeObject(e.Key, e.KeySpan, e.Value, sink)
			if obj != nil {
				body.Objects = append(body.Objects, obj)
			}
		}
	}

	return body
}

func deserializeRegisterBody(v manifest.Value, sink *diag.Sink) *devast.RegisterBody {
	body := &devast.RegisterBody{}

	if a, ok := v.Get(keyAccess); ok {
		body.Access = accessFrom(a, sink)
	}

	if bo, ok := v.Get(keyByteOrder); ok {
		body.ByteOrder = byteOrderFrom(bo, sink)
	}

	if bi, ok := v.Get(keyBitOrder); ok {
		body.BitOrder = bitOrderFrom(bi, sink)
	}

	if addr, ok := v.Get(keyAddress); ok {
		body.Address = intFrom(addr, sink)
	}

	if sb, ok := v.Get(keySizeBits); ok {
		n := int(mustInt(sb, sink))
		body.SizeBits = &n
	}

	if rv, ok := v.Get(keyResetValue); ok {
		body.ResetValue = resetValueFrom(rv, sink)
	}

	if rep, ok := v.Get(keyRepeat); ok {
		body.Repeat = repeatFrom(rep, sink)
	}

	if ov, ok := v.Get(keyAllowBitOverlap); ok {
		body.AllowBitOverlap, _ = ov.AsBool()
	}

	if ov, ok := v.Get(keyAllowAddressOverlap); ok {
		body.AllowAddressOverlap, _ = ov.AsBool()
	}

	if fs, ok := v.Get(keyFields); ok {
		body.Fields = fieldsFrom(fs, sink)
	}

	return body
}

func deserializeCommandBody(v manifest.Value, sink *diag.Sink) *devast.CommandBody {
	body := &devast.CommandBody{}

	if bo, ok := v.Get(keyByteOrder); ok {
		body.ByteOrder = byteOrderFrom(bo, sink)
	}

	if bi, ok := v.Get(keyBitOrder); ok {
		body.BitOrder = bitOrderFrom(bi, sink)
	}

	if addr, ok := v.Get(keyAddress); ok {
		body.Address = intFrom(addr, sink)
	}

	if rep, ok := v.Get(keyRepeat); ok {
		body.Repeat = repeatFrom(rep, sink)
	}

	if ov, ok := v.Get(keyAllowBitOverlap); ok {
		body.AllowBitOverlap, _ = ov.AsBool()
	}

	if ov, ok := v.Get(keyAllowAddressOverlap); ok {
		body.AllowAddressOverlap, _ = ov.AsBool()
	}

	if fs, ok := v.Get(keyFieldsIn); ok {
		body.In = &devast.FieldSet{Fields: fieldsFrom(fs, sink), Span: fs.Span}
	}

	if fs, ok := v.Get(keyFieldsOut); ok {
		body.Out = &devast.FieldSet{Fields: fieldsFrom(fs, sink), Span: fs.Span}
	}

	if sb, ok := v.Get(keySizeBitsIn); ok {
		n := int(mustInt(sb, sink))
		if body.In == nil {
			body.In = &devast.FieldSet{}
		}

		body.In.SizeBits = &n
	}

	if sb, ok := v.Get(keySizeBitsOut); ok {
		n := int(mustInt(sb, sink))
		if body.Out == nil {
			body.Out = &devast.FieldSet{}
		}

		body.Out.SizeBits = &n
	}

	return body
}

func deserializeBufferBody(v manifest.Value, sink *diag.Sink) *devast.BufferBody {
	body := &devast.BufferBody{}

	if a, ok := v.Get(keyAccess); ok {
		body.Access = accessFrom(a, sink)
	}

	if addr, ok := v.Get(keyAddress); ok {
		body.Address = intFrom(addr, sink)
	}

	return body
}

func deserializeRefBody(v manifest.Value, sink *diag.Sink) *devast.RefBody {
	body := &devast.RefBody{}

	target, ok := v.Get(keyTarget)
	if !ok {
		sink.Errorf(diag.KindSchema, "manifest-ref-target", v.Span, "ref is missing its %q", keyTarget)

		return body
	}

	targetEntries, err := target.AsMap()
	if err != nil || len(targetEntries) != 1 {
		sink.Errorf(diag.KindSchema, "manifest-ref-target", target.Span, "ref target must be a single-key map of kind to name")

		return body
	}

	e := targetEntries[0]

	switch e.Key {
	case "block":
		body.TargetKind = devast.KindBlock
	case "register":
		body.TargetKind = devast.KindRegister
	case "command":
		body.TargetKind = devast.KindCommand
	case "buffer":
		body.TargetKind = devast.KindBuffer
	default:
		sink.Errorf(diag.KindSchema, "manifest-ref-kind", target.Span, "unknown ref target kind %q", e.Key)

		return body
	}

	name, err := e.Value.AsString()
	if err != nil {
		sink.Errorf(diag.KindSchema, "manifest-ref-name", e.Value.Span, "ref target name must be a string: %v", err)

		return body
	}

	body.TargetName = devast.Ident{Name: name, Span: e.Value.Span}

	if ov, ok := v.Get(keyOverride); ok {
		body.Override = deserializeObject(body.TargetName.Name, body.TargetName.Span, overrideAsTyped(ov, e.Key), sink)
	}

	return body
}

// overrideAsTyped injects the ref's own target-kind discriminator into
// the override map so deserializeObject can process it through the same
// per-kind path as a freestanding object.
func overrideAsTyped(ov manifest.Value, kind string) manifest.Value {
	entries, err := ov.AsMap()
	if err != nil {
		return ov
	}

	out := append([]manifest.Entry{{Key: keyType, Value: manifest.String(kind, ov.Span)}}, entries...)

	return manifest.Map(out, ov.Span)
}

func fieldsFrom(v manifest.Value, sink *diag.Sink) []devast.Field {
	entries, err := v.AsMap()
	if err != nil {
		sink.Errorf(diag.KindSchema, "manifest-fields", v.Span, "fields must be a map: %v", err)

		return nil
	}

	fields := make([]devast.Field, 0, len(entries))

	for _, e := range entries {
		fields = append(fields, fieldFrom(e.Key, e.KeySpan, e.Value, sink))
	}

	return fields
}

func fieldFrom(name string, nameSpan devast.Span, v manifest.Value, sink *diag.Sink) devast.Field {
	f := devast.Field{Name: devast.Ident{Name: name, Span: nameSpan}, Span: v.Span}

	f.Doc, f.Attr = docAndAttrFrom(v)

	if a, ok := v.Get(keyAccess); ok {
		f.Access = accessFrom(a, sink)
	}

	if bt, ok := v.Get("base_type"); ok {
		word, _ := bt.AsString()

		baseType, ok := devast.ParseBaseType(word)
		if !ok {
			sink.Errorf(diag.KindSchema, "manifest-base-type", bt.Span, "unknown base type %q", word)
		}

		f.BaseType = baseType
	}

	if addr, ok := v.Get("bits"); ok {
		f.Start, f.End = bitRangeFrom(addr, sink)
	}

	if conv, ok := v.Get(keyConversion); ok {
		f.Conversion = conversionFrom(conv, false, sink)
	} else if conv, ok := v.Get(keyTryConversion); ok {
		f.Conversion = conversionFrom(conv, true, sink)
	}

	return f
}

func bitRangeFrom(v manifest.Value, sink *diag.Sink) (start, end int) {
	switch v.Kind {
	case manifest.KindInteger:
		n := int(mustInt(v, sink))

		return n, n + 1
	case manifest.KindArray:
		items, _ := v.AsArray()
		if len(items) != 2 {
			sink.Errorf(diag.KindSchema, "manifest-bit-range", v.Span, "bit range array must have exactly 2 elements")

			return 0, 0
		}

		return int(mustInt(items[0], sink)), int(mustInt(items[1], sink))
	default:
		sink.Errorf(diag.KindSchema, "manifest-bit-range", v.Span, "bit range must be an integer or a 2-element array")

		return 0, 0
	}
}

func conversionFrom(v manifest.Value, fallible bool, sink *diag.Sink) *devast.Conversion {
	if s, err := v.AsString(); err == nil {
		return &devast.Conversion{Fallible: fallible, TypePath: s, Span: v.Span}
	}

	entries, err := v.AsMap()
	if err != nil {
		sink.Errorf(diag.KindSchema, "manifest-conversion", v.Span, "conversion must be a string or a map: %v", err)

		return nil
	}

	enumName := ""
	var variants []devast.EnumVariant

	for _, e := range entries {
		if e.Key == keyName {
			enumName, _ = e.Value.AsString()

			continue
		}

		variants = append(variants, enumVariantFrom(e.Key, e.KeySpan, e.Value, sink))
	}

	return &devast.Conversion{
		Fallible: fallible,
		InlineEnum: &devast.InlineEnum{
			Name:     enumName,
			Variants: variants,
			Span:     v.Span,
		},
		Span: v.Span,
	}
}

func enumVariantFrom(name string, nameSpan devast.Span, v manifest.Value, sink *diag.Sink) devast.EnumVariant {
	variant := devast.EnumVariant{Name: devast.Ident{Name: name, Span: nameSpan}, Kind: devast.EnumVariantAuto, Span: v.Span}

	switch v.Kind {
	case manifest.KindNull:
		return variant
	case manifest.KindString:
		word, _ := v.AsString()
		applyEnumWord(&variant, word)

		return variant
	case manifest.KindInteger:
		variant.Kind = devast.EnumVariantExplicit
		variant.Explicit = mustBig(v, sink)

		return variant
	case manifest.KindMap:
		if d, ok := v.Get(keyDescription); ok {
			if s, err := d.AsString(); err == nil {
				variant.Doc = []string{s}
			}
		}

		if val, ok := v.Get(keyValue); ok {
			switch val.Kind {
			case manifest.KindString:
				word, _ := val.AsString()
				applyEnumWord(&variant, word)
			case manifest.KindInteger:
				variant.Kind = devast.EnumVariantExplicit
				variant.Explicit = mustBig(val, sink)
			}
		}

		return variant
	default:
		sink.Errorf(diag.KindSchema, "manifest-enum-variant", v.Span, "invalid enum variant value")

		return variant
	}
}

func applyEnumWord(variant *devast.EnumVariant, word string) {
	switch word {
	case "default":
		variant.Kind = devast.EnumVariantDefault
	case "catch_all":
		variant.Kind = devast.EnumVariantCatchAll
	default:
		variant.Kind = devast.EnumVariantAuto
	}
}

func repeatFrom(v manifest.Value, sink *diag.Sink) *devast.Repeat {
	entries, err := v.AsMap()
	if err != nil {
		sink.Errorf(diag.KindSchema, "manifest-repeat", v.Span, "repeat must be a map with count and stride: %v", err)

		return nil
	}

	rep := &devast.Repeat{Span: v.Span}

	for _, e := range entries {
		switch e.Key {
		case keyCount:
			rep.Count = mustBig(e.Value, sink)
		case keyStride:
			rep.Stride = mustBig(e.Value, sink)
		default:
			sink.Errorf(diag.KindSchema, "manifest-unknown-key", e.KeySpan, "unrecognized repeat key %q", e.Key)
		}
	}

	return rep
}

func resetValueFrom(v manifest.Value, sink *diag.Sink) *devast.ResetValue {
	switch v.Kind {
	case manifest.KindInteger:
		return &devast.ResetValue{Integer: mustBig(v, sink), Span: v.Span}
	case manifest.KindArray:
		items, _ := v.AsArray()

		bytes := make([]byte, 0, len(items))
		for _, item := range items {
			bytes = append(bytes, byte(mustInt(item, sink)))
		}

		return &devast.ResetValue{Bytes: bytes, Span: v.Span}
	default:
		sink.Errorf(diag.KindSchema, "manifest-reset-value", v.Span, "reset_value must be an integer or an array of bytes")

		return nil
	}
}

func accessFrom(v manifest.Value, sink *diag.Sink) devast.Access {
	word, err := v.AsString()
	if err != nil {
		sink.Errorf(diag.KindSchema, "manifest-access", v.Span, "access must be a string: %v", err)

		return devast.AccessUnset
	}

	access, ok := devast.ParseAccess(word)
	if !ok {
		sink.Errorf(diag.KindSchema, "manifest-access", v.Span, "unknown access %q", word)
	}

	return access
}

func byteOrderFrom(v manifest.Value, sink *diag.Sink) devast.ByteOrder {
	word, err := v.AsString()
	if err != nil {
		sink.Errorf(diag.KindSchema, "manifest-byte-order", v.Span, "byte_order must be a string: %v", err)

		return devast.ByteOrderUnset
	}

	order, ok := devast.ParseByteOrder(word)
	if !ok {
		sink.Errorf(diag.KindSchema, "manifest-byte-order", v.Span, "unknown byte order %q", word)
	}

	return order
}

func bitOrderFrom(v manifest.Value, sink *diag.Sink) devast.BitOrder {
	word, err := v.AsString()
	if err != nil {
		sink.Errorf(diag.KindSchema, "manifest-bit-order", v.Span, "bit_order must be a string: %v", err)

		return devast.BitOrderUnset
	}

	order, ok := devast.ParseBitOrder(word)
	if !ok {
		sink.Errorf(diag.KindSchema, "manifest-bit-order", v.Span, "unknown bit order %q", word)
	}

	return order
}

func intFrom(v manifest.Value, sink *diag.Sink) *big.Int {
	return mustBig(v, sink)
}

func mustBig(v manifest.Value, sink *diag.Sink) *big.Int {
	i, err := v.AsInteger()
	if err != nil {
		sink.Errorf(diag.KindSchema, "manifest-integer", v.Span, "expected an integer: %v", err)

		return big.NewInt(0)
	}

	return i
}

func mustInt(v manifest.Value, sink *diag.Sink) int64 {
	return mustBig(v, sink).Int64()
}
