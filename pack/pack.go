// Package pack implements the bit/byte packing contract frozen in
// spec.md §4.G: load and store of arbitrary bit ranges within a register
// buffer, parameterized by independent byte and bit orderings. The core
// compiler does not execute this contract at runtime (the emitted driver
// does), but freezes it here because the IR's byte_order/bit_order
// choices are meaningful only relative to this definition, and because
// property 9 of spec.md §8 (pack/unpack round-trip) is tested against it.
//
// Grounded on the C++ codegen emitter's to_bytes/from_bytes shift-and-mask
// loops seen elsewhere in this corpus (see DESIGN.md) — the same
// bit-numbering contract, expressed here as the one place that owns it
// rather than duplicated per emitted language.
package pack

import "math/big"

// ByteOrder selects how a register's logical byte order maps onto its
// storage order.
type ByteOrder int

const (
	// LE: logical byte order matches storage order (byte 0 first).
	LE ByteOrder = iota
	// BE: logical byte 0 is the highest-index storage byte.
	BE
)

// BitOrder selects which physical bit within a byte is logical bit 0.
type BitOrder int

const (
	// LSB0: bit index 0 is the least-significant bit of byte 0.
	LSB0 BitOrder = iota
	// MSB0: bit index 0 is the most-significant bit of byte 0.
	MSB0
)

// storageIndex maps a logical byte index to its index within buf, given
// the register's total size in bytes and byte order.
func storageIndex(logicalByte, sizeBytes int, order ByteOrder) int {
	if order == LE {
		return logicalByte
	}

	return sizeBytes - 1 - logicalByte
}

// bitInByte maps a logical bit position (0..7) within a byte to a
// physical bit position (0..7), given bit order.
func bitInByte(logicalBit int, order BitOrder) int {
	if order == LSB0 {
		return logicalBit
	}

	return 7 - logicalBit
}

// getBit reads the physical bit at logical bit index i of buf.
func getBit(buf []byte, i int, sizeBytes int, byteOrder ByteOrder, bitOrder BitOrder) bool {
	logicalByte := i / 8
	logicalBit := i % 8

	idx := storageIndex(logicalByte, sizeBytes, byteOrder)
	bit := bitInByte(logicalBit, bitOrder)

	return buf[idx]&(1<<uint(bit)) != 0
}

// setBit writes the physical bit at logical bit index i of buf.
func setBit(buf []byte, i int, v bool, sizeBytes int, byteOrder ByteOrder, bitOrder BitOrder) {
	logicalByte := i / 8
	logicalBit := i % 8

	idx := storageIndex(logicalByte, sizeBytes, byteOrder)
	bit := bitInByte(logicalBit, bitOrder)

	if v {
		buf[idx] |= 1 << uint(bit)
	} else {
		buf[idx] &^= 1 << uint(bit)
	}
}

// LoadUint reads the [start, end) bit range of buf (a register of
// sizeBytes bytes) as a zero-extended unsigned integer.
func LoadUint(buf []byte, start, end int, byteOrder ByteOrder, bitOrder BitOrder) *big.Int {
	sizeBytes := len(buf)
	result := new(big.Int)

	for i := end - 1; i >= start; i-- {
		result.Lsh(result, 1)

		if getBit(buf, i, sizeBytes, byteOrder, bitOrder) {
			result.SetBit(result, 0, 1)
		}
	}

	return result
}

// LoadInt reads the [start, end) bit range of buf as a sign-extended
// signed integer, per invariant 9 of spec.md §3 ("a signed-integer int
// field is sign-extended from end-start bits when loaded").
func LoadInt(buf []byte, start, end int, byteOrder ByteOrder, bitOrder BitOrder) *big.Int {
	width := end - start
	unsigned := LoadUint(buf, start, end, byteOrder, bitOrder)

	signBit := width - 1
	if unsigned.Bit(signBit) == 0 {
		return unsigned
	}

	// Sign-extend: subtract 2^width.
	full := new(big.Int).Lsh(big.NewInt(1), uint(width))

	return new(big.Int).Sub(unsigned, full)
}

// StoreUint writes v, truncated mod 2^(end-start), into the [start, end)
// bit range of buf.
func StoreUint(buf []byte, start, end int, v *big.Int, byteOrder ByteOrder, bitOrder BitOrder) {
	sizeBytes := len(buf)
	width := end - start

	masked := new(big.Int).Set(v)
	if masked.Sign() < 0 {
		full := new(big.Int).Lsh(big.NewInt(1), uint(width))
		masked.Add(masked, full)
	}

	for i := start; i < end; i++ {
		bit := masked.Bit(i - start)
		setBit(buf, i, bit == 1, sizeBytes, byteOrder, bitOrder)
	}
}

// StoreInt writes a signed value into the [start, end) bit range of buf,
// two's-complement-encoded to width bits.
func StoreInt(buf []byte, start, end int, v *big.Int, byteOrder ByteOrder, bitOrder BitOrder) {
	StoreUint(buf, start, end, v, byteOrder, bitOrder)
}
