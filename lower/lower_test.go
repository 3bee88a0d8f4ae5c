package lower_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	devast "go.jacobcolvin.com/devicedesc/ast"
	"go.jacobcolvin.com/devicedesc/diag"
	"go.jacobcolvin.com/devicedesc/ir"
	"go.jacobcolvin.com/devicedesc/lower"
)

func TestLowerAppliesDefaultsAndNormalizesNames(t *testing.T) {
	t.Parallel()

	surface := &devast.Device{
		Config: &devast.GlobalConfig{Items: []devast.GlobalConfigItem{
			{Name: "DefaultRegisterAccess", Value: devast.ConfigValue{Word: "RW"}},
			{Name: "DefaultByteOrder", Value: devast.ConfigValue{Word: "LE"}},
			{Name: "RegisterAddressType", Value: devast.ConfigValue{Word: "u16"}},
		}},
		Objects: []*devast.Object{
			{
				Name: devast.Ident{Name: "StatusRegister"},
				Kind: devast.KindRegister,
				Register: &devast.RegisterBody{
					Address: big.NewInt(0x10),
				},
			},
		},
	}

	sink := diag.NewSink()
	dev := lower.Lower(surface, "my-device", sink)

	require.False(t, sink.HasErrors(), "unexpected errors: %v", sink.All())

	require.Equal(t, "my_device", dev.Root.Name)
	require.Len(t, dev.Root.Registers, 1)

	r := dev.Root.Registers[0]
	require.Equal(t, "status_register", r.Name)
	require.Equal(t, devast.AccessReadWrite, r.Access)
	require.Equal(t, devast.ByteOrderLE, r.ByteOrder)
}

func TestLowerRefResolvesOverrideAndPreservesReset(t *testing.T) {
	t.Parallel()

	base := &devast.Object{
		Name: devast.Ident{Name: "BASE"},
		Kind: devast.KindRegister,
		Register: &devast.RegisterBody{
			Address:    big.NewInt(0),
			ResetValue: &devast.ResetValue{Integer: big.NewInt(5)},
		},
	}

	ref := &devast.Object{
		Name: devast.Ident{Name: "DERIVED"},
		Kind: devast.KindRef,
		Ref: &devast.RefBody{
			TargetKind: devast.KindRegister,
			TargetName: devast.Ident{Name: "BASE"},
			Override: &devast.Object{
				Register: &devast.RegisterBody{
					Address:    big.NewInt(8),
					ResetValue: &devast.ResetValue{Integer: big.NewInt(9)},
				},
			},
		},
	}

	surface := &devast.Device{Objects: []*devast.Object{base, ref}}

	sink := diag.NewSink()
	dev := lower.Lower(surface, "dev", sink)

	require.False(t, sink.HasErrors(), "unexpected errors: %v", sink.All())
	require.Len(t, dev.Root.Registers, 2)

	baseOut, derivedOut := dev.Root.Registers[0], dev.Root.Registers[1]
	if baseOut.Name != "base" {
		baseOut, derivedOut = derivedOut, baseOut
	}

	require.Zero(t, derivedOut.Address.Cmp(big.NewInt(8)))
	require.NotNil(t, baseOut.RefResetOverrides)
	require.NotNil(t, baseOut.RefResetOverrides["DERIVED"])
}

func TestLowerNonExhaustiveEnumWithoutTryIsFallible(t *testing.T) {
	t.Parallel()

	// A 2-bit field can hold 4 values; only 2 are named, no try_conversion,
	// no default/catch_all variant — this must classify Fallible, not
	// infallible, since a register read of 2 or 3 has no named variant.
	surface := &devast.Device{
		Objects: []*devast.Object{
			{
				Name: devast.Ident{Name: "MODE"},
				Kind: devast.KindRegister,
				Register: &devast.RegisterBody{
					Address: big.NewInt(0),
					Fields: []devast.Field{
						{
							Name:     devast.Ident{Name: "mode"},
							BaseType: devast.BaseTypeUint,
							Start:    0,
							End:      2,
							Conversion: &devast.Conversion{
								InlineEnum: &devast.InlineEnum{
									Name: "Mode",
									Variants: []devast.EnumVariant{
										{Name: devast.Ident{Name: "Off"}, Kind: devast.EnumVariantExplicit, Explicit: big.NewInt(0)},
										{Name: devast.Ident{Name: "On"}, Kind: devast.EnumVariantExplicit, Explicit: big.NewInt(1)},
									},
								},
							},
						},
					},
				},
			},
		},
	}

	sink := diag.NewSink()
	dev := lower.Lower(surface, "dev", sink)

	require.False(t, sink.HasErrors(), "unexpected errors: %v", sink.All())
	require.Len(t, dev.Root.Registers, 1)

	field := dev.Root.Registers[0].Fields[0]
	require.NotNil(t, field.Conversion)
	require.Equal(t, ir.ConversionFallible, field.Conversion.Kind,
		"a non-exhaustive inline enum without try_conversion must classify Fallible")
}

func TestLowerRefIndirectionIsForbidden(t *testing.T) {
	t.Parallel()

	base := &devast.Object{
		Name: devast.Ident{Name: "BASE"},
		Kind: devast.KindRegister,
		Register: &devast.RegisterBody{
			Address: big.NewInt(0),
		},
	}

	refA := &devast.Object{
		Name: devast.Ident{Name: "REF_A"},
		Kind: devast.KindRef,
		Ref:  &devast.RefBody{TargetKind: devast.KindRegister, TargetName: devast.Ident{Name: "BASE"}},
	}

	refB := &devast.Object{
		Name: devast.Ident{Name: "REF_B"},
		Kind: devast.KindRef,
		Ref:  &devast.RefBody{TargetKind: devast.KindRegister, TargetName: devast.Ident{Name: "REF_A"}},
	}

	surface := &devast.Device{Objects: []*devast.Object{base, refA, refB}}

	sink := diag.NewSink()
	lower.Lower(surface, "dev", sink)

	require.True(t, sink.HasErrors(), "expected an error for a ref targeting another ref")
}

func TestLowerUnrecognizedConfigItemIsWarning(t *testing.T) {
	t.Parallel()

	surface := &devast.Device{
		Config: &devast.GlobalConfig{Items: []devast.GlobalConfigItem{
			{Name: "NotARealSetting", Value: devast.ConfigValue{Word: "x"}},
		}},
	}

	sink := diag.NewSink()
	lower.Lower(surface, "dev", sink)

	require.False(t, sink.HasErrors(), "unrecognized config item should warn, not error: %v", sink.All())
	require.NotEmpty(t, sink.All(), "expected a pragma diagnostic for the unrecognized config item")
}
