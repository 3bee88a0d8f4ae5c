package json_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	manifestjson "go.jacobcolvin.com/devicedesc/manifest/json"
)

func TestParseScalars(t *testing.T) {
	t.Parallel()

	v, err := manifestjson.Parse([]byte(`42`))
	require.NoError(t, err)

	i, err := v.AsInteger()
	require.NoError(t, err)
	require.Zero(t, i.Cmp(big.NewInt(42)))
}

func TestParseObjectPreservesKeyOrder(t *testing.T) {
	t.Parallel()

	v, err := manifestjson.Parse([]byte(`{"z": 1, "a": 2, "m": 3}`))
	require.NoError(t, err)

	entries, err := v.AsMap()
	require.NoError(t, err)

	want := []string{"z", "a", "m"}
	require.Len(t, entries, len(want))

	for i, k := range want {
		require.Equal(t, k, entries[i].Key, "entry %d", i)
	}
}

func TestParseNestedArrayAndMap(t *testing.T) {
	t.Parallel()

	v, err := manifestjson.Parse([]byte(`{"items": [1, 2, {"nested": true}]}`))
	require.NoError(t, err)

	items, ok := v.Get("items")
	require.True(t, ok)

	arr, err := items.AsArray()
	require.NoError(t, err)
	require.Len(t, arr, 3)

	nested, ok := arr[2].Get("nested")
	require.True(t, ok)

	b, err := nested.AsBool()
	require.NoError(t, err)
	require.True(t, b)
}

func TestParseFloat(t *testing.T) {
	t.Parallel()

	v, err := manifestjson.Parse([]byte(`3.5`))
	require.NoError(t, err)

	f, err := v.AsFloat()
	require.NoError(t, err)
	require.Equal(t, 3.5, f)
}

func TestParseSyntaxError(t *testing.T) {
	t.Parallel()

	_, err := manifestjson.Parse([]byte(`{not valid`))
	require.Error(t, err)
}

func TestParseBigIntegerBeyond64Bits(t *testing.T) {
	t.Parallel()

	// 2^100, well beyond int64 range; the manifest tree must preserve it
	// exactly via math/big.
	const huge = "1267650600228229401496703205376"

	v, err := manifestjson.Parse([]byte(huge))
	require.NoError(t, err)

	i, err := v.AsInteger()
	require.NoError(t, err)

	want, ok := new(big.Int).SetString(huge, 10)
	require.True(t, ok, "test setup: could not parse expected big int")

	require.Zero(t, i.Cmp(want))
}
