package yaml_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	manifestyaml "go.jacobcolvin.com/devicedesc/manifest/yaml"
)

func TestParseMappingPreservesKeyOrder(t *testing.T) {
	t.Parallel()

	src := []byte("z: 1\na: 2\nm: 3\n")

	v, err := manifestyaml.Parse(src)
	require.NoError(t, err)

	entries, err := v.AsMap()
	require.NoError(t, err)

	want := []string{"z", "a", "m"}
	for i, k := range want {
		require.Equal(t, k, entries[i].Key, "entry %d", i)
	}
}

func TestParseAnchorAndAlias(t *testing.T) {
	t.Parallel()

	src := []byte("base: &b\n  access: read_only\nregs:\n  r1: *b\n")

	v, err := manifestyaml.Parse(src)
	require.NoError(t, err)

	regs, ok := v.Get("regs")
	require.True(t, ok)

	r1, ok := regs.Get("r1")
	require.True(t, ok)

	access, ok := r1.Get("access")
	require.True(t, ok, "expected key \"access\" resolved via alias")

	s, err := access.AsString()
	require.NoError(t, err)
	require.Equal(t, "read_only", s)
}

func TestParseMergeKey(t *testing.T) {
	t.Parallel()

	src := []byte("base: &b\n  byte_order: LE\n  bit_order: LSB0\nreg1:\n  <<: *b\n  address: 0\n")

	v, err := manifestyaml.Parse(src)
	require.NoError(t, err)

	reg1, ok := v.Get("reg1")
	require.True(t, ok)

	for _, key := range []string{"byte_order", "bit_order", "address"} {
		_, ok := reg1.Get(key)
		require.True(t, ok, "expected merged key %q present on reg1", key)
	}
}

func TestParseSequence(t *testing.T) {
	t.Parallel()

	v, err := manifestyaml.Parse([]byte("- 1\n- 2\n- 3\n"))
	require.NoError(t, err)

	arr, err := v.AsArray()
	require.NoError(t, err)
	require.Len(t, arr, 3)

	i, err := arr[1].AsInteger()
	require.NoError(t, err)
	require.Zero(t, i.Cmp(big.NewInt(2)))
}

func TestParseMultipleDocumentsIsError(t *testing.T) {
	t.Parallel()

	_, err := manifestyaml.Parse([]byte("a: 1\n---\nb: 2\n"))
	require.Error(t, err)
}

func TestParseSyntaxError(t *testing.T) {
	t.Parallel()

	_, err := manifestyaml.Parse([]byte("a: [1, 2\n"))
	require.Error(t, err)
}
