// Package json implements the JSON backend of the manifest tree
// (spec.md §4.A): a Parser that turns JSON source into a manifest.Value,
// preserving object key insertion order.
//
// encoding/json's map-based decoding does not preserve key order, and no
// dependency anywhere in this module's source corpus supplies
// order-preserving JSON decoding — so this one backend is deliberately
// built directly on encoding/json.Decoder's token stream rather than on a
// third-party library (see DESIGN.md).
package json

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"

	"go.jacobcolvin.com/devicedesc/ast"
	"go.jacobcolvin.com/devicedesc/manifest"
)

// ErrSyntax is returned when the input is not well-formed JSON.
var ErrSyntax = errors.New("json: syntax error")

// Parse parses JSON source into a manifest.Value tree.
//
// Byte offsets are not tracked precisely: encoding/json.Decoder reports
// offsets only at token boundaries, and after a value has been consumed
// there is no way to recover the offset of, say, a nested object's
// opening brace without re-scanning. Every Value built here instead
// carries a best-effort span covering the bytes consumed for that value,
// which is sufficient for diagnostics to point at "roughly here."
func Parse(source []byte) (manifest.Value, error) {
	dec := json.NewDecoder(newOffsetReader(source))
	dec.UseNumber()

	v, err := parseValue(dec, source)
	if err != nil {
		return manifest.Value{}, err
	}

	return v, nil
}

// New returns a manifest.Parser for the JSON backend, for registration in
// a manifest.Registry.
func New() manifest.Parser {
	return manifest.ParserFunc(Parse)
}

func parseValue(dec *json.Decoder, source []byte) (manifest.Value, error) {
	start := dec.InputOffset()

	tok, err := dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return manifest.Null(spanFrom(start, dec.InputOffset())), nil
		}

		return manifest.Value{}, fmt.Errorf("%w: %w", ErrSyntax, err)
	}

	return valueFromToken(dec, tok, source, start)
}

func valueFromToken(dec *json.Decoder, tok json.Token, source []byte, start int64) (manifest.Value, error) {
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return parseObject(dec, source, start)
		case '[':
			return parseArray(dec, source, start)
		default:
			return manifest.Value{}, fmt.Errorf("%w: unexpected delimiter %q", ErrSyntax, t)
		}

	case nil:
		return manifest.Null(spanFrom(start, dec.InputOffset())), nil

	case bool:
		return manifest.Bool(t, spanFrom(start, dec.InputOffset())), nil

	case json.Number:
		return numberValue(t, spanFrom(start, dec.InputOffset())), nil

	case string:
		return manifest.String(t, spanFrom(start, dec.InputOffset())), nil

	default:
		return manifest.Value{}, fmt.Errorf("%w: unsupported token %T", ErrSyntax, tok)
	}
}

func numberValue(n json.Number, span ast.Span) manifest.Value {
	if i, ok := new(big.Int).SetString(n.String(), 10); ok {
		return manifest.Integer(i, span)
	}

	f, err := n.Float64()
	if err != nil {
		return manifest.Integer(big.NewInt(0), span)
	}

	return manifest.Float(f, span)
}

func parseObject(dec *json.Decoder, source []byte, start int64) (manifest.Value, error) {
	var entries []manifest.Entry

	for dec.More() {
		keyStart := dec.InputOffset()

		keyTok, err := dec.Token()
		if err != nil {
			return manifest.Value{}, fmt.Errorf("%w: %w", ErrSyntax, err)
		}

		key, ok := keyTok.(string)
		if !ok {
			return manifest.Value{}, fmt.Errorf("%w: object key is not a string", ErrSyntax)
		}

		keySpan := spanFrom(keyStart, dec.InputOffset())

		val, err := parseValue(dec, source)
		if err != nil {
			return manifest.Value{}, err
		}

		entries = append(entries, manifest.Entry{Key: key, KeySpan: keySpan, Value: val})
	}

	// Consume the closing '}'.
	if _, err := dec.Token(); err != nil {
		return manifest.Value{}, fmt.Errorf("%w: %w", ErrSyntax, err)
	}

	return manifest.Map(entries, spanFrom(start, dec.InputOffset())), nil
}

func parseArray(dec *json.Decoder, source []byte, start int64) (manifest.Value, error) {
	var values []manifest.Value

	for dec.More() {
		val, err := parseValue(dec, source)
		if err != nil {
			return manifest.Value{}, err
		}

		values = append(values, val)
	}

	// Consume the closing ']'.
	if _, err := dec.Token(); err != nil {
		return manifest.Value{}, fmt.Errorf("%w: %w", ErrSyntax, err)
	}

	return manifest.Array(values, spanFrom(start, dec.InputOffset())), nil
}

func spanFrom(start, end int64) ast.Span {
	length := int(end - start)
	if length < 0 {
		length = 0
	}

	return ast.Span{Offset: int(start), Length: length}
}

// newOffsetReader wraps a byte slice as an io.Reader; json.Decoder.InputOffset
// reports offsets relative to what it has read through this reader, which
// for a single in-memory read is the same as the offset into source.
func newOffsetReader(source []byte) io.Reader {
	return &sliceReader{b: source}
}

type sliceReader struct {
	b   []byte
	pos int
}

func (r *sliceReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.b) {
		return 0, io.EOF
	}

	n := copy(p, r.b[r.pos:])
	r.pos += n

	return n, nil
}
