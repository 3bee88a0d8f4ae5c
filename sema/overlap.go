package sema

import (
	"math/big"

	devast "go.jacobcolvin.com/devicedesc/ast"
	"go.jacobcolvin.com/devicedesc/diag"
	"go.jacobcolvin.com/devicedesc/ir"
)

// addressRange describes the signed/unsigned bounds of an AddressType,
// for the "address fit" check.
type addressRange struct {
	signed bool
	bits   uint
}

var addressRanges = map[devast.AddressType]addressRange{
	devast.AddressU8:  {signed: false, bits: 8},
	devast.AddressU16: {signed: false, bits: 16},
	devast.AddressU32: {signed: false, bits: 32},
	devast.AddressU64: {signed: false, bits: 64},
	devast.AddressI8:  {signed: true, bits: 8},
	devast.AddressI16: {signed: true, bits: 16},
	devast.AddressI32: {signed: true, bits: 32},
	devast.AddressI64: {signed: true, bits: 64},
}

// checkAddressFit validates invariant 6 (and testable property 1): every
// address fits its declared address type.
func (a *analyzer) checkAddressFit(address *big.Int, addrType devast.AddressType, span devast.Span, kind, name string) {
	if address == nil {
		return
	}

	rng, ok := addressRanges[addrType]
	if !ok {
		a.sink.Errorf(diag.KindSemantic, "sema-address-type-missing", span, "%s %q has an address but no %s address type is configured", kind, name, kind)

		return
	}

	var lo, hi *big.Int

	if rng.signed {
		hi = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), rng.bits-1), big.NewInt(1))
		lo = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), rng.bits-1))
	} else {
		lo = big.NewInt(0)
		hi = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), rng.bits), big.NewInt(1))
	}

	if address.Cmp(lo) < 0 || address.Cmp(hi) > 0 {
		a.sink.Errorf(diag.KindSemantic, "sema-address-fit", span, "%s %q address %s does not fit address type %s", kind, name, address, addrType)
	}
}

// addressed is one register or command's address, plus the information
// needed to expand its repeat and to resolve an overlap.
type addressed struct {
	name         string
	address      *big.Int
	repeat       *ir.Repeat
	allowOverlap bool
	span         devast.Span
}

func registerAddresses(b *ir.Block) []addressed {
	out := make([]addressed, 0, len(b.Registers))

	for _, r := range b.Registers {
		out = append(out, addressed{name: r.Name, address: r.Address, repeat: r.Repeat, allowOverlap: r.AllowAddressOverlap, span: r.Span})
	}

	return out
}

func commandAddresses(b *ir.Block) []addressed {
	out := make([]addressed, 0, len(b.Commands))

	for _, c := range b.Commands {
		out = append(out, addressed{name: c.Name, address: c.Address, repeat: c.Repeat, allowOverlap: c.AllowAddressOverlap, span: c.Span})
	}

	return out
}

// expandedAddresses returns every effective address a (possibly
// repeated) object occupies, per the (base, stride, count) expansion
// described in spec.md §4.F. A zero stride with count > 1 is rejected as
// an explicit error, per this project's resolution of an open question
// in spec.md ("Open questions").
func (a addressed) expandedAddresses(sink *diag.Sink) []*big.Int {
	if a.repeat == nil || a.repeat.Count == nil {
		return []*big.Int{a.address}
	}

	count := a.repeat.Count

	stride := big.NewInt(0)
	if a.repeat.Stride != nil {
		stride = a.repeat.Stride
	}

	if stride.Sign() == 0 && count.Cmp(big.NewInt(1)) > 0 {
		sink.Errorf(diag.KindSemantic, "sema-repeat-zero-stride", a.span, "%q has a zero-stride repeat with count > 1", a.name)

		return []*big.Int{a.address}
	}

	n := count.Int64()
	out := make([]*big.Int, 0, n)

	for i := int64(0); i < n; i++ {
		offset := new(big.Int).Mul(big.NewInt(i), stride)
		out = append(out, new(big.Int).Add(a.address, offset))
	}

	return out
}

// checkAddressOverlap detects exact address equality among sibling
// objects of the same kind, excluding buffers entirely (spec.md §4.F,
// §8 invariant omits buffer-to-buffer/buffer-to-register checks).
func (a *analyzer) checkAddressOverlap(kind string, items []addressed) {
	type occurrence struct {
		item addressed
		addr string
	}

	var occ []occurrence

	for _, item := range items {
		for _, addr := range item.expandedAddresses(a.sink) {
			occ = append(occ, occurrence{item: item, addr: addr.String()})
		}
	}

	byAddr := make(map[string][]occurrence)
	for _, o := range occ {
		byAddr[o.addr] = append(byAddr[o.addr], o)
	}

	for addr, group := range byAddr {
		if len(group) < 2 {
			continue
		}

		allAllow := true

		for _, g := range group {
			if !g.item.allowOverlap {
				allAllow = false
			}
		}

		if allAllow {
			continue
		}

		for _, g := range group {
			a.sink.Errorf(diag.KindSemantic, "sema-address-overlap", g.item.span, "%s %q collides with another %s at address %s", kind, g.item.name, kind, addr)
		}
	}
}
