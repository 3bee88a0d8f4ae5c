package sema

import (
	"math/big"

	devast "go.jacobcolvin.com/devicedesc/ast"
	"go.jacobcolvin.com/devicedesc/diag"
	"go.jacobcolvin.com/devicedesc/ir"
)

// checkEnum validates "Enum value coherence" from spec.md §4.F: explicit
// values among non-default/catch_all variants are pairwise distinct, and
// at most one default and one catch_all variant are present. Auto-number
// assignment itself already happened during lowering (lower.lowerEnum);
// this only re-validates the result, since a manifest author may also
// have supplied explicit values that collide with an auto-numbered one.
func (a *analyzer) checkEnum(f *ir.Field) {
	if f.Conversion == nil || f.Conversion.Enum == nil {
		return
	}

	enum := f.Conversion.Enum

	seen := make(map[string]string) // value string -> variant name
	defaultCount, catchAllCount := 0, 0

	for _, v := range enum.Variants {
		switch v.Kind {
		case ir.EnumVariantDefault:
			defaultCount++
		case ir.EnumVariantCatchAll:
			catchAllCount++
		case ir.EnumVariantExplicit:
			if v.Value == nil {
				continue
			}

			key := v.Value.String()
			if prev, ok := seen[key]; ok {
				a.sink.Errorf(diag.KindSemantic, "sema-enum-duplicate-value", v.Span, "enum %q: variants %q and %q both have value %s", enum.Name, prev, v.Name, key)

				continue
			}

			seen[key] = v.Name

			if !fitsBaseType(v.Value, f) {
				a.sink.Errorf(diag.KindSemantic, "sema-enum-value-range", v.Span, "enum %q variant %q value %s does not fit field %q", enum.Name, v.Name, key, f.Name)
			}
		}
	}

	if defaultCount > 1 {
		a.sink.Errorf(diag.KindSemantic, "sema-enum-multiple-default", f.Span, "enum %q has more than one default variant", enum.Name)
	}

	if catchAllCount > 1 {
		a.sink.Errorf(diag.KindSemantic, "sema-enum-multiple-catchall", f.Span, "enum %q has more than one catch_all variant", enum.Name)
	}
}

// fitsBaseType reports whether v is representable by field f's base type
// and width ("each explicit integer must be representable by the field's
// base type"). The range depends on f.BaseType, not on v's own sign: a uint
// field never admits a negative value, and an int field's positive half
// tops out at 2^(width-1)-1, not 2^width-1.
func fitsBaseType(v *big.Int, f *ir.Field) bool {
	width := uint(f.Width())
	if width == 0 {
		return true
	}

	switch f.BaseType {
	case devast.BaseTypeInt:
		min := new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), width-1))
		max := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), width-1), big.NewInt(1))

		return v.Cmp(min) >= 0 && v.Cmp(max) <= 0
	default:
		if v.Sign() < 0 {
			return false
		}

		max := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), width), big.NewInt(1))

		return v.Cmp(max) <= 0
	}
}
