package pack_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"go.jacobcolvin.com/devicedesc/pack"
)

func TestStoreLoadUintRoundTrip(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		start     int
		end       int
		byteOrder pack.ByteOrder
		bitOrder  pack.BitOrder
		bufLen    int
		value     int64
	}{
		"lsb0-le-byte-aligned": {0, 8, pack.LE, pack.LSB0, 1, 0xAB},
		"lsb0-le-unaligned":    {4, 12, pack.LE, pack.LSB0, 2, 0xF0},
		"msb0-be-byte-aligned": {0, 8, pack.BE, pack.MSB0, 1, 0x5A},
		"lsb0-be-multi-byte":   {0, 16, pack.BE, pack.LSB0, 2, 0x1234},
		"lsb0-le-multi-byte":   {0, 16, pack.LE, pack.LSB0, 2, 0x1234},
		"single-bit":           {3, 4, pack.LE, pack.LSB0, 1, 1},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			buf := make([]byte, tc.bufLen)
			want := big.NewInt(tc.value)

			pack.StoreUint(buf, tc.start, tc.end, want, tc.byteOrder, tc.bitOrder)
			got := pack.LoadUint(buf, tc.start, tc.end, tc.byteOrder, tc.bitOrder)

			require.Zero(t, got.Cmp(want), "round-trip mismatch: stored %s, loaded %s", want, got)
		})
	}
}

func TestLoadIntSignExtends(t *testing.T) {
	t.Parallel()

	buf := make([]byte, 1)
	// Store -1 in a 4-bit field: all four bits set.
	pack.StoreUint(buf, 0, 4, big.NewInt(-1), pack.LE, pack.LSB0)

	got := pack.LoadInt(buf, 0, 4, pack.LE, pack.LSB0)
	require.Zero(t, got.Cmp(big.NewInt(-1)), "expected sign-extended -1, got %s", got)

	unsigned := pack.LoadUint(buf, 0, 4, pack.LE, pack.LSB0)
	require.Zero(t, unsigned.Cmp(big.NewInt(0xF)), "expected unsigned load 0xF, got %s", unsigned)
}

func TestStoreUintDoesNotDisturbAdjacentBits(t *testing.T) {
	t.Parallel()

	buf := []byte{0xFF}

	// Field occupies bits [2,4); the rest of the byte must survive.
	pack.StoreUint(buf, 2, 4, big.NewInt(0), pack.LE, pack.LSB0)

	low := pack.LoadUint(buf, 0, 2, pack.LE, pack.LSB0)
	require.Zero(t, low.Cmp(big.NewInt(0x3)), "expected untouched low bits 0x3, got %s", low)

	high := pack.LoadUint(buf, 4, 8, pack.LE, pack.LSB0)
	require.Zero(t, high.Cmp(big.NewInt(0xF)), "expected untouched high bits 0xF, got %s", high)
}
