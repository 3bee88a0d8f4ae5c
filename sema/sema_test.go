package sema_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	devast "go.jacobcolvin.com/devicedesc/ast"
	"go.jacobcolvin.com/devicedesc/diag"
	"go.jacobcolvin.com/devicedesc/ir"
	"go.jacobcolvin.com/devicedesc/sema"
)

func baseDevice() *ir.Device {
	return &ir.Device{
		Name:         "dev",
		AddressTypes: ir.AddressTypes{Register: devast.AddressU16, Command: devast.AddressU16, Buffer: devast.AddressU16},
		Root:         &ir.Block{Name: "dev"},
	}
}

func TestAnalyzeAddressOverlapBetweenRegisters(t *testing.T) {
	t.Parallel()

	dev := baseDevice()
	dev.Root.Registers = []*ir.Register{
		{Name: "a", Address: big.NewInt(4), SizeBits: 8, ByteOrder: devast.ByteOrderLE, ResetValue: []byte{0}},
		{Name: "b", Address: big.NewInt(4), SizeBits: 8, ByteOrder: devast.ByteOrderLE, ResetValue: []byte{0}},
	}

	sink := diag.NewSink()
	sema.Analyze(dev, sink)

	require.True(t, sink.HasErrors(), "expected an address-overlap error between two registers at the same address")
}

func TestAnalyzeAddressOverlapAllowed(t *testing.T) {
	t.Parallel()

	dev := baseDevice()
	dev.Root.Registers = []*ir.Register{
		{Name: "a", Address: big.NewInt(4), SizeBits: 8, ByteOrder: devast.ByteOrderLE, ResetValue: []byte{0}, AllowAddressOverlap: true},
		{Name: "b", Address: big.NewInt(4), SizeBits: 8, ByteOrder: devast.ByteOrderLE, ResetValue: []byte{0}, AllowAddressOverlap: true},
	}

	sink := diag.NewSink()
	sema.Analyze(dev, sink)

	require.False(t, sink.HasErrors(), "unexpected errors when both registers allow address overlap: %v", sink.All())
}

func TestAnalyzeRepeatExpandsAddresses(t *testing.T) {
	t.Parallel()

	dev := baseDevice()
	dev.Root.Registers = []*ir.Register{
		{
			Name: "a", Address: big.NewInt(0), SizeBits: 8, ByteOrder: devast.ByteOrderLE, ResetValue: []byte{0},
			Repeat: &ir.Repeat{Count: big.NewInt(4), Stride: big.NewInt(4)},
		},
		{Name: "b", Address: big.NewInt(8), SizeBits: 8, ByteOrder: devast.ByteOrderLE, ResetValue: []byte{0}},
	}

	sink := diag.NewSink()
	sema.Analyze(dev, sink)

	require.True(t, sink.HasErrors(), "expected register b's address to collide with one of a's repeated instances")
}

func TestAnalyzeRepeatZeroStrideIsError(t *testing.T) {
	t.Parallel()

	dev := baseDevice()
	dev.Root.Registers = []*ir.Register{
		{
			Name: "a", Address: big.NewInt(0), SizeBits: 8, ByteOrder: devast.ByteOrderLE, ResetValue: []byte{0},
			Repeat: &ir.Repeat{Count: big.NewInt(3), Stride: big.NewInt(0)},
		},
	}

	sink := diag.NewSink()
	sema.Analyze(dev, sink)

	require.True(t, sink.HasErrors(), "expected an error for a zero-stride repeat with count > 1")
}

func TestAnalyzeFieldOverlapDetected(t *testing.T) {
	t.Parallel()

	dev := baseDevice()
	dev.Root.Registers = []*ir.Register{
		{
			Name: "r", Address: big.NewInt(0), SizeBits: 8, ByteOrder: devast.ByteOrderLE, ResetValue: []byte{0},
			Fields: []*ir.Field{
				{Name: "x", BaseType: devast.BaseTypeUint, Start: 0, End: 4},
				{Name: "y", BaseType: devast.BaseTypeUint, Start: 2, End: 6},
			},
		},
	}

	sink := diag.NewSink()
	sema.Analyze(dev, sink)

	require.True(t, sink.HasErrors(), "expected a field-overlap error")
}

func TestAnalyzeBoolFieldMustBeOneBit(t *testing.T) {
	t.Parallel()

	dev := baseDevice()
	dev.Root.Registers = []*ir.Register{
		{
			Name: "r", Address: big.NewInt(0), SizeBits: 8, ByteOrder: devast.ByteOrderLE, ResetValue: []byte{0},
			Fields: []*ir.Field{
				{Name: "flag", BaseType: devast.BaseTypeBool, Start: 0, End: 2},
			},
		},
	}

	sink := diag.NewSink()
	sema.Analyze(dev, sink)

	require.True(t, sink.HasErrors(), "expected an error for a 2-bit bool field")
}

func TestAnalyzeResetValueWrongLength(t *testing.T) {
	t.Parallel()

	dev := baseDevice()
	dev.Root.Registers = []*ir.Register{
		{Name: "r", Address: big.NewInt(0), SizeBits: 16, ByteOrder: devast.ByteOrderLE, ResetValue: []byte{0}},
	}

	sink := diag.NewSink()
	sema.Analyze(dev, sink)

	require.True(t, sink.HasErrors(), "expected an error: a 16-bit register needs a 2-byte reset value")
}

func TestAnalyzeDuplicateEnumValueIsError(t *testing.T) {
	t.Parallel()

	dev := baseDevice()
	dev.Root.Registers = []*ir.Register{
		{
			Name: "r", Address: big.NewInt(0), SizeBits: 8, ByteOrder: devast.ByteOrderLE, ResetValue: []byte{0},
			Fields: []*ir.Field{
				{
					Name: "mode", BaseType: devast.BaseTypeUint, Start: 0, End: 2,
					Conversion: &ir.Conversion{
						Kind: ir.ConversionFallible,
						Enum: &ir.EnumSpec{
							Name: "mode",
							Variants: []ir.EnumVariant{
								{Name: "a", Kind: ir.EnumVariantExplicit, Value: big.NewInt(1)},
								{Name: "b", Kind: ir.EnumVariantExplicit, Value: big.NewInt(1)},
							},
						},
					},
				},
			},
		},
	}

	sink := diag.NewSink()
	sema.Analyze(dev, sink)

	require.True(t, sink.HasErrors(), "expected an error for two enum variants sharing value 1")
}

func TestAnalyzeEnumValueNegativeRejectedForUintField(t *testing.T) {
	t.Parallel()

	dev := baseDevice()
	dev.Root.Registers = []*ir.Register{
		{
			Name: "r", Address: big.NewInt(0), SizeBits: 8, ByteOrder: devast.ByteOrderLE, ResetValue: []byte{0},
			Fields: []*ir.Field{
				{
					Name: "mode", BaseType: devast.BaseTypeUint, Start: 0, End: 2,
					Conversion: &ir.Conversion{
						Kind: ir.ConversionFallible,
						Enum: &ir.EnumSpec{
							Name: "mode",
							Variants: []ir.EnumVariant{
								{Name: "a", Kind: ir.EnumVariantExplicit, Value: big.NewInt(-1)},
							},
						},
					},
				},
			},
		},
	}

	sink := diag.NewSink()
	sema.Analyze(dev, sink)

	require.True(t, sink.HasErrors(), "expected an error: -1 does not fit a uint field, regardless of width")
}

func TestAnalyzeEnumValueExceedingSignedMaxRejectedForIntField(t *testing.T) {
	t.Parallel()

	dev := baseDevice()
	dev.Root.Registers = []*ir.Register{
		{
			Name: "r", Address: big.NewInt(0), SizeBits: 8, ByteOrder: devast.ByteOrderLE, ResetValue: []byte{0},
			Fields: []*ir.Field{
				{
					// A 2-bit int field's range is [-2, 1]; 2 fits the unsigned
					// max (3) but not the signed max and must be rejected.
					Name: "mode", BaseType: devast.BaseTypeInt, Start: 0, End: 2,
					Conversion: &ir.Conversion{
						Kind: ir.ConversionFallible,
						Enum: &ir.EnumSpec{
							Name: "mode",
							Variants: []ir.EnumVariant{
								{Name: "a", Kind: ir.EnumVariantExplicit, Value: big.NewInt(2)},
							},
						},
					},
				},
			},
		},
	}

	sink := diag.NewSink()
	sema.Analyze(dev, sink)

	require.True(t, sink.HasErrors(), "expected an error: 2 exceeds the signed max (1) of a 2-bit int field")
}

func TestAnalyzeEnumValueWithinSignedRangeAccepted(t *testing.T) {
	t.Parallel()

	dev := baseDevice()
	dev.Root.Registers = []*ir.Register{
		{
			Name: "r", Address: big.NewInt(0), SizeBits: 8, ByteOrder: devast.ByteOrderLE, ResetValue: []byte{0},
			Fields: []*ir.Field{
				{
					Name: "mode", BaseType: devast.BaseTypeInt, Start: 0, End: 2,
					Conversion: &ir.Conversion{
						Kind: ir.ConversionFallible,
						Enum: &ir.EnumSpec{
							Name: "mode",
							Variants: []ir.EnumVariant{
								{Name: "a", Kind: ir.EnumVariantExplicit, Value: big.NewInt(-2)},
								{Name: "b", Kind: ir.EnumVariantExplicit, Value: big.NewInt(1)},
							},
						},
					},
				},
			},
		},
	}

	sink := diag.NewSink()
	sema.Analyze(dev, sink)

	require.False(t, sink.HasErrors(), "unexpected errors: -2 and 1 both fit a 2-bit int field: %v", sink.All())
}

func TestAnalyzeAddressTypeMissingForConfiguredlessDevice(t *testing.T) {
	t.Parallel()

	dev := &ir.Device{Name: "dev", Root: &ir.Block{Name: "dev"}}
	dev.Root.Registers = []*ir.Register{
		{Name: "r", Address: big.NewInt(0), SizeBits: 8, ByteOrder: devast.ByteOrderLE, ResetValue: []byte{0}},
	}

	sink := diag.NewSink()
	sema.Analyze(dev, sink)

	require.True(t, sink.HasErrors(), "expected an error: register has an address but no register address type is configured")
}
