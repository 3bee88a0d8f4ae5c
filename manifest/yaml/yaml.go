// Package yaml implements the YAML backend of the manifest tree
// (spec.md §4.A): a Parser that turns YAML source into a manifest.Value,
// preserving mapping key order and resolving anchors, aliases, and merge
// keys.
//
// The walk below is adapted from this codebase's own YAML-AST-walking
// lineage (an AST walk that classifies each node and recurses into
// mappings/sequences, resolving anchors before classification) — here
// building a manifest.Value tree instead of inferring a JSON Schema.
package yaml

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/goccy/go-yaml/ast"
	"github.com/goccy/go-yaml/parser"

	devast "go.jacobcolvin.com/devicedesc/ast"
	"go.jacobcolvin.com/devicedesc/manifest"
)

// ErrSyntax is returned when the input is not well-formed YAML, or when
// it contains more than one document (this compiler, like the rest of
// its input surface, compiles exactly one device per call).
var ErrSyntax = errors.New("yaml: syntax error")

// Parse parses YAML source into a manifest.Value tree.
func Parse(source []byte) (manifest.Value, error) {
	file, err := parser.ParseBytes(source, parser.ParseComments)
	if err != nil {
		return manifest.Value{}, fmt.Errorf("%w: %w", ErrSyntax, err)
	}

	if len(file.Docs) == 0 || file.Docs[0].Body == nil {
		return manifest.Null(devast.Span{}), nil
	}

	if len(file.Docs) > 1 {
		return manifest.Value{}, fmt.Errorf("%w: multiple documents", ErrSyntax)
	}

	doc := file.Docs[0]
	anchors := buildAnchorMap(doc.Body)

	return walk(doc.Body, anchors)
}

// New returns a manifest.Parser for the YAML backend, for registration in
// a manifest.Registry.
func New() manifest.Parser {
	return manifest.ParserFunc(Parse)
}

func walk(node ast.Node, anchors map[string]ast.Node) (manifest.Value, error) {
	node = resolveAlias(node, anchors)
	node = unwrap(node)

	if node == nil {
		return manifest.Null(devast.Span{}), nil
	}

	switch n := node.(type) {
	case *ast.MappingNode:
		return walkMapping(n.Values, anchors, spanOf(n))
	case *ast.MappingValueNode:
		return walkMapping([]*ast.MappingValueNode{n}, anchors, spanOf(n))
	case *ast.SequenceNode:
		return walkSequence(n, anchors)
	case *ast.NullNode:
		return manifest.Null(spanOf(n)), nil
	case *ast.BoolNode:
		return manifest.Bool(n.Value, spanOf(n)), nil
	case *ast.IntegerNode:
		return walkInteger(n)
	case *ast.FloatNode:
		return manifest.Float(n.Value, spanOf(n)), nil
	case *ast.StringNode:
		return manifest.String(n.Value, spanOf(n)), nil
	case *ast.LiteralNode:
		return manifest.String(n.String(), spanOf(n)), nil
	case *ast.AnchorNode:
		return walk(n.Value, anchors)
	default:
		return manifest.String(node.String(), devast.Span{}), nil
	}
}

func walkInteger(n *ast.IntegerNode) (manifest.Value, error) {
	span := spanOf(n)

	switch v := n.Value.(type) {
	case int64:
		return manifest.Integer(big.NewInt(v), span), nil
	case uint64:
		return manifest.Integer(new(big.Int).SetUint64(v), span), nil
	default:
		text := n.String()
		if i, ok := new(big.Int).SetString(text, 0); ok {
			return manifest.Integer(i, span), nil
		}

		return manifest.Value{}, fmt.Errorf("%w: invalid integer %q", ErrSyntax, text)
	}
}

func walkMapping(values []*ast.MappingValueNode, anchors map[string]ast.Node, span devast.Span) (manifest.Value, error) {
	var entries []manifest.Entry

	seen := make(map[string]int)

	appendEntry := func(key string, keySpan devast.Span, val manifest.Value) {
		if idx, ok := seen[key]; ok {
			entries[idx] = manifest.Entry{Key: key, KeySpan: keySpan, Value: val}

			return
		}

		seen[key] = len(entries)
		entries = append(entries, manifest.Entry{Key: key, KeySpan: keySpan, Value: val})
	}

	for _, mvn := range values {
		if _, ok := mvn.Key.(*ast.MergeKeyNode); ok {
			if err := mergeInto(mvn.Value, anchors, appendEntry); err != nil {
				return manifest.Value{}, err
			}

			continue
		}

		keyNode, ok := mvn.Key.(ast.Node)
		keySpan := devast.Span{}

		if ok {
			keySpan = spanOf(keyNode)
		}

		val, err := walk(mvn.Value, anchors)
		if err != nil {
			return manifest.Value{}, err
		}

		appendEntry(mvn.Key.String(), keySpan, val)
	}

	return manifest.Map(entries, span), nil
}

func mergeInto(node ast.Node, anchors map[string]ast.Node, appendEntry func(string, devast.Span, manifest.Value)) error {
	resolved := unwrap(resolveAlias(node, anchors))

	switch n := resolved.(type) {
	case *ast.MappingNode:
		merged, err := walkMapping(n.Values, anchors, spanOf(n))
		if err != nil {
			return err
		}

		entries, _ := merged.AsMap()
		for _, e := range entries {
			appendEntry(e.Key, e.KeySpan, e.Value)
		}

	case *ast.SequenceNode:
		for _, seqVal := range n.Values {
			if err := mergeInto(seqVal, anchors, appendEntry); err != nil {
				return err
			}
		}
	}

	return nil
}

func walkSequence(seq *ast.SequenceNode, anchors map[string]ast.Node) (manifest.Value, error) {
	values := make([]manifest.Value, 0, len(seq.Values))

	for _, v := range seq.Values {
		val, err := walk(v, anchors)
		if err != nil {
			return manifest.Value{}, err
		}

		values = append(values, val)
	}

	return manifest.Array(values, spanOf(seq)), nil
}

// unwrap resolves TagNode wrappers to the underlying value node.
func unwrap(node ast.Node) ast.Node {
	for {
		tag, ok := node.(*ast.TagNode)
		if !ok {
			return node
		}

		node = tag.Value
	}
}

// buildAnchorMap walks the AST once and records every anchor definition,
// so aliases can be resolved in any later position regardless of document
// order.
func buildAnchorMap(node ast.Node) map[string]ast.Node {
	anchors := make(map[string]ast.Node)

	ast.Walk(&anchorVisitor{anchors: anchors}, node)

	return anchors
}

type anchorVisitor struct {
	anchors map[string]ast.Node
}

func (v *anchorVisitor) Visit(node ast.Node) ast.Visitor {
	if anchor, ok := node.(*ast.AnchorNode); ok {
		v.anchors[anchor.Name.String()] = anchor.Value
	}

	return v
}

// resolveAlias resolves an alias node using the anchor map. An
// unresolvable alias is treated as null, matching the forgiving,
// best-effort posture of this project's YAML handling elsewhere.
func resolveAlias(node ast.Node, anchors map[string]ast.Node) ast.Node {
	alias, ok := node.(*ast.AliasNode)
	if !ok {
		return node
	}

	if resolved, found := anchors[alias.Value.String()]; found {
		return resolved
	}

	return nil
}

func spanOf(node ast.Node) devast.Span {
	tok := node.GetToken()
	if tok == nil || tok.Position == nil {
		return devast.Span{}
	}

	return devast.Span{Offset: tok.Position.Offset, Length: len(tok.Value)}
}
