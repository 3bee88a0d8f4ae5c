package manifest

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Syntax names one of the four concrete input syntaxes from spec.md §6.
type Syntax string

const (
	SyntaxDSL  Syntax = "dsl"
	SyntaxJSON Syntax = "json"
	SyntaxYAML Syntax = "yaml"
	SyntaxTOML Syntax = "toml"
)

// ErrUnsupportedSyntax is returned when a file extension or explicit
// --format value does not name a registered syntax.
var ErrUnsupportedSyntax = errors.New("manifest: unsupported syntax")

// Parser parses a manifest document of one concrete syntax into a Value
// tree. Each of manifest/json, manifest/yaml, and manifest/toml provides
// one.
type Parser interface {
	Parse(source []byte) (Value, error)
}

// ParserFunc adapts a plain function to the Parser interface.
type ParserFunc func(source []byte) (Value, error)

// Parse implements Parser.
func (f ParserFunc) Parse(source []byte) (Value, error) { return f(source) }

// Registry maps a Syntax to the Parser that handles it, mirroring the
// extension-keyed constructor registries used throughout this codebase's
// lineage (e.g. an annotator-name-to-constructor map) — here keyed by
// manifest syntax instead of annotation style.
type Registry struct {
	parsers map[Syntax]Parser
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[Syntax]Parser)}
}

// Register associates a Syntax with the Parser that handles it.
func (r *Registry) Register(syntax Syntax, p Parser) {
	r.parsers[syntax] = p
}

// Lookup returns the Parser registered for syntax, if any.
func (r *Registry) Lookup(syntax Syntax) (Parser, bool) {
	p, ok := r.parsers[syntax]

	return p, ok
}

// Parse resolves syntax to a registered Parser and parses source with it.
func (r *Registry) Parse(syntax Syntax, source []byte) (Value, error) {
	p, ok := r.parsers[syntax]
	if !ok {
		return Value{}, fmt.Errorf("%w: %s", ErrUnsupportedSyntax, syntax)
	}

	return p.Parse(source)
}

// SyntaxForPath infers a Syntax from a file extension. It returns
// SyntaxDSL for ".dsl" and for any unrecognized or missing extension,
// matching the "source order" ordering guarantee table of spec.md §6
// (the DSL is the fallback/default input form).
func SyntaxForPath(path string) Syntax {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return SyntaxJSON
	case ".yaml", ".yml":
		return SyntaxYAML
	case ".toml":
		return SyntaxTOML
	default:
		return SyntaxDSL
	}
}
