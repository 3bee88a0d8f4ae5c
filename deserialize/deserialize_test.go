package deserialize_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	devast "go.jacobcolvin.com/devicedesc/ast"
	"go.jacobcolvin.com/devicedesc/deserialize"
	"go.jacobcolvin.com/devicedesc/diag"
	"go.jacobcolvin.com/devicedesc/manifest"
)

func str(s string) manifest.Value    { return manifest.String(s, devast.Span{}) }
func integer(n int64) manifest.Value { return manifest.Integer(big.NewInt(n), devast.Span{}) }
func boolean(b bool) manifest.Value  { return manifest.Bool(b, devast.Span{}) }

func entry(key string, v manifest.Value) manifest.Entry {
	return manifest.Entry{Key: key, Value: v}
}

func mapOf(entries ...manifest.Entry) manifest.Value {
	return manifest.Map(entries, devast.Span{})
}

func TestDeserializeRegisterWithFields(t *testing.T) {
	t.Parallel()

	doc := mapOf(
		entry("STATUS", mapOf(
			entry("type", str("register")),
			entry("address", integer(0x10)),
			entry("size_bits", integer(8)),
			entry("access", str("read_write")),
			entry("fields", mapOf(
				entry("ready", mapOf(
					entry("base_type", str("bool")),
					entry("bits", integer(0)),
				)),
				entry("code", mapOf(
					entry("base_type", str("uint")),
					entry("bits", manifest.Array([]manifest.Value{integer(1), integer(4)}, devast.Span{})),
				)),
			)),
		)),
	)

	sink := diag.NewSink()
	dev := deserialize.Deserialize(doc, sink)

	require.False(t, sink.HasErrors(), "unexpected errors: %v", sink.All())
	require.Len(t, dev.Objects, 1)

	obj := dev.Objects[0]
	require.Equal(t, devast.KindRegister, obj.Kind)
	require.Equal(t, "STATUS", obj.Name.Name)

	require.NotNil(t, obj.Register.SizeBits)
	require.Equal(t, 8, *obj.Register.SizeBits)
	require.Len(t, obj.Register.Fields, 2)

	code := obj.Register.Fields[1]
	require.Equal(t, 1, code.Start)
	require.Equal(t, 4, code.End)
}

func TestDeserializeCommandSizeBitsInOut(t *testing.T) {
	t.Parallel()

	doc := mapOf(
		entry("PING", mapOf(
			entry("type", str("command")),
			entry("address", integer(0x20)),
			entry("size_bits_in", integer(8)),
			entry("size_bits_out", integer(16)),
		)),
	)

	sink := diag.NewSink()
	dev := deserialize.Deserialize(doc, sink)

	require.False(t, sink.HasErrors(), "unexpected errors: %v", sink.All())

	obj := dev.Objects[0]
	require.NotNil(t, obj.Command.In)
	require.NotNil(t, obj.Command.In.SizeBits)
	require.Equal(t, 8, *obj.Command.In.SizeBits)

	require.NotNil(t, obj.Command.Out)
	require.NotNil(t, obj.Command.Out.SizeBits)
	require.Equal(t, 16, *obj.Command.Out.SizeBits)
}

func TestDeserializeCommandSizeBitsWithExplicitFields(t *testing.T) {
	t.Parallel()

	doc := mapOf(
		entry("PING", mapOf(
			entry("type", str("command")),
			entry("size_bits_in", integer(8)),
			entry("fields_in", mapOf(
				entry("arg", mapOf(entry("base_type", str("uint")), entry("bits", integer(0)))),
			)),
		)),
	)

	sink := diag.NewSink()
	dev := deserialize.Deserialize(doc, sink)

	require.False(t, sink.HasErrors(), "unexpected errors: %v", sink.All())

	in := dev.Objects[0].Command.In
	require.NotNil(t, in)
	require.NotNil(t, in.SizeBits)
	require.Equal(t, 8, *in.SizeBits)
	require.Len(t, in.Fields, 1)
}

func TestDeserializeUnknownKeyIsSchemaDiagnostic(t *testing.T) {
	t.Parallel()

	doc := mapOf(
		entry("FOO", mapOf(
			entry("type", str("buffer")),
			entry("not_a_real_key", str("oops")),
		)),
	)

	sink := diag.NewSink()
	deserialize.Deserialize(doc, sink)

	require.True(t, sink.HasErrors(), "expected a schema diagnostic for the unrecognized key")
}

func TestDeserializeMissingTypeDiscriminator(t *testing.T) {
	t.Parallel()

	doc := mapOf(entry("FOO", mapOf(entry("address", integer(0)))))

	sink := diag.NewSink()
	dev := deserialize.Deserialize(doc, sink)

	require.True(t, sink.HasErrors(), "expected a schema diagnostic for missing type")
	require.Empty(t, dev.Objects)
}

func TestDeserializeRefWithOverride(t *testing.T) {
	t.Parallel()

	doc := mapOf(
		entry("BASE", mapOf(
			entry("type", str("register")),
			entry("address", integer(0)),
		)),
		entry("DERIVED", mapOf(
			entry("type", str("ref")),
			entry("target", mapOf(entry("register", str("BASE")))),
			entry("override", mapOf(entry("address", integer(4)))),
		)),
	)

	sink := diag.NewSink()
	dev := deserialize.Deserialize(doc, sink)

	require.False(t, sink.HasErrors(), "unexpected errors: %v", sink.All())

	ref := dev.Objects[1]
	require.Equal(t, devast.KindRef, ref.Kind)
	require.Equal(t, "BASE", ref.Ref.TargetName.Name)

	require.NotNil(t, ref.Ref.Override)
	require.NotNil(t, ref.Ref.Override.Register)
	require.Zero(t, ref.Ref.Override.Register.Address.Cmp(big.NewInt(4)))
}

func TestDeserializeInlineEnumConversion(t *testing.T) {
	t.Parallel()

	doc := mapOf(
		entry("MODE", mapOf(
			entry("type", str("register")),
			entry("address", integer(0)),
			entry("fields", mapOf(
				entry("mode", mapOf(
					entry("base_type", str("uint")),
					entry("bits", manifest.Array([]manifest.Value{integer(0), integer(2)}, devast.Span{})),
					entry("conversion", mapOf(
						entry("Off", integer(0)),
						entry("On", integer(1)),
						entry("Unknown", str("catch_all")),
					)),
				)),
			)),
		)),
	)

	sink := diag.NewSink()
	dev := deserialize.Deserialize(doc, sink)

	require.False(t, sink.HasErrors(), "unexpected errors: %v", sink.All())

	field := dev.Objects[0].Register.Fields[0]
	require.NotNil(t, field.Conversion)
	require.NotNil(t, field.Conversion.InlineEnum)

	variants := field.Conversion.InlineEnum.Variants
	require.Len(t, variants, 3)
	require.Equal(t, devast.EnumVariantCatchAll, variants[2].Kind)
}

func TestDeserializeResetValueAsByteArray(t *testing.T) {
	t.Parallel()

	doc := mapOf(
		entry("REG", mapOf(
			entry("type", str("register")),
			entry("address", integer(0)),
			entry("reset_value", manifest.Array([]manifest.Value{integer(0xDE), integer(0xAD)}, devast.Span{})),
		)),
	)

	sink := diag.NewSink()
	dev := deserialize.Deserialize(doc, sink)

	require.False(t, sink.HasErrors(), "unexpected errors: %v", sink.All())

	rv := dev.Objects[0].Register.ResetValue
	require.NotNil(t, rv)
	require.Equal(t, []byte{0xDE, 0xAD}, rv.Bytes)
}

func TestDeserializeGlobalConfig(t *testing.T) {
	t.Parallel()

	doc := mapOf(
		entry("config", mapOf(
			entry("default_byte_order", str("LE")),
			entry("default_bit_order", str("LSB0")),
		)),
	)

	sink := diag.NewSink()
	dev := deserialize.Deserialize(doc, sink)

	require.False(t, sink.HasErrors(), "unexpected errors: %v", sink.All())
	require.NotNil(t, dev.Config)
	require.Len(t, dev.Config.Items, 2)
}

func TestDeserializeGlobalConfigBoolValue(t *testing.T) {
	t.Parallel()

	doc := mapOf(entry("config", mapOf(entry("strict", boolean(true)))))

	sink := diag.NewSink()
	dev := deserialize.Deserialize(doc, sink)

	require.False(t, sink.HasErrors(), "unexpected errors: %v", sink.All())
	require.Equal(t, "true", dev.Config.Items[0].Value.Word)
}
