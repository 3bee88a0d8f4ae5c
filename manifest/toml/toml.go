// Package toml implements the TOML backend of the manifest tree (spec.md
// §4.A): a Parser that turns TOML source into a manifest.Value, preserving
// table and key declaration order.
//
// BurntSushi/toml decodes into a map[string]interface{} with no ordering
// guarantee of its own, but its toml.MetaData carries the declaration
// order of every key as a side channel (MetaData.Keys()). This backend
// decodes into interface{} for the payload and replays MetaData.Keys() to
// reconstruct manifest.Entry order, rather than walking an AST directly —
// BurntSushi/toml does not expose one.
package toml

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"

	"github.com/BurntSushi/toml"

	"go.jacobcolvin.com/devicedesc/ast"
	"go.jacobcolvin.com/devicedesc/manifest"
)

// ErrSyntax is returned when the input is not well-formed TOML.
var ErrSyntax = errors.New("toml: syntax error")

// Parse parses TOML source into a manifest.Value tree.
//
// Spans are not tracked: toml.MetaData exposes no byte offsets, only key
// paths, so every Value built here carries a zero Span.
func Parse(source []byte) (manifest.Value, error) {
	var payload any

	meta, err := toml.NewDecoder(bytes.NewReader(source)).Decode(&payload)
	if err != nil {
		return manifest.Value{}, fmt.Errorf("%w: %w", ErrSyntax, err)
	}

	root, ok := payload.(map[string]any)
	if !ok {
		return manifest.Value{}, fmt.Errorf("%w: document root is not a table", ErrSyntax)
	}

	order := buildOrder(meta.Keys())

	return buildMap(root, nil, order), nil
}

// New returns a manifest.Parser for the TOML backend, for registration in
// a manifest.Registry.
func New() manifest.Parser {
	return manifest.ParserFunc(Parse)
}

// orderNode holds, for one table, the declaration order of its direct
// children, recovered from toml.MetaData.Keys().
type orderNode struct {
	children map[string]int
	next     map[string]*orderNode
}

func newOrderNode() *orderNode {
	return &orderNode{children: make(map[string]int), next: make(map[string]*orderNode)}
}

// buildOrder flattens MetaData.Keys() (every key path ever visited, in
// declaration order, including every ancestor prefix) into one orderNode
// tree so sibling order can be looked up per table during buildMap.
func buildOrder(keys []toml.Key) *orderNode {
	root := newOrderNode()

	for _, key := range keys {
		node := root

		for _, part := range key {
			if _, ok := node.children[part]; !ok {
				node.children[part] = len(node.children)
			}

			child, ok := node.next[part]
			if !ok {
				child = newOrderNode()
				node.next[part] = child
			}

			node = child
		}
	}

	return root
}

func buildValue(v any, span ast.Span, order *orderNode) manifest.Value {
	switch t := v.(type) {
	case nil:
		return manifest.Null(span)
	case bool:
		return manifest.Bool(t, span)
	case int64:
		return manifest.Integer(big.NewInt(t), span)
	case float64:
		return manifest.Float(t, span)
	case string:
		return manifest.String(t, span)
	case []any:
		return buildArray(t, order)
	case map[string]any:
		return buildMap(t, nil, order)
	default:
		return manifest.String(fmt.Sprintf("%v", t), span)
	}
}

func buildArray(items []any, order *orderNode) manifest.Value {
	values := make([]manifest.Value, 0, len(items))

	for _, item := range items {
		values = append(values, buildValue(item, ast.Span{}, order))
	}

	return manifest.Array(values, ast.Span{})
}

func buildMap(table map[string]any, _ []string, order *orderNode) manifest.Value {
	keys := orderedKeys(table, order)

	entries := make([]manifest.Entry, 0, len(keys))

	for _, key := range keys {
		var childOrder *orderNode
		if order != nil {
			childOrder = order.next[key]
		}

		entries = append(entries, manifest.Entry{
			Key:   key,
			Value: buildValue(table[key], ast.Span{}, childOrder),
		})
	}

	return manifest.Map(entries, ast.Span{})
}

// orderedKeys returns table's keys sorted by the declaration order
// recorded in order, falling back to map iteration order (arbitrary) for
// any key MetaData did not record (should not happen for a well-formed
// decode, but guards against a partial MetaData).
func orderedKeys(table map[string]any, order *orderNode) []string {
	keys := make([]string, 0, len(table))
	for k := range table {
		keys = append(keys, k)
	}

	if order == nil {
		return keys
	}

	rank := func(k string) int {
		if r, ok := order.children[k]; ok {
			return r
		}

		return len(order.children) + 1
	}

	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && rank(keys[j-1]) > rank(keys[j]); j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}

	return keys
}
