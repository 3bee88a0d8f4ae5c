// Package compiler wires together the four input surfaces (package dsl
// and package manifest's three backends via package deserialize), the
// lowering pass (package lower), the semantic analyzer (package sema),
// and the IR (package ir) into the single entry point described by
// spec.md §6: a pure function from source text plus a syntax to an IR
// plus diagnostics.
package compiler

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	devast "go.jacobcolvin.com/devicedesc/ast"
	"go.jacobcolvin.com/devicedesc/deserialize"
	"go.jacobcolvin.com/devicedesc/diag"
	"go.jacobcolvin.com/devicedesc/dsl"
	"go.jacobcolvin.com/devicedesc/ir"
	"go.jacobcolvin.com/devicedesc/lower"
	"go.jacobcolvin.com/devicedesc/manifest"
	manifestjson "go.jacobcolvin.com/devicedesc/manifest/json"
	manifesttoml "go.jacobcolvin.com/devicedesc/manifest/toml"
	manifestyaml "go.jacobcolvin.com/devicedesc/manifest/yaml"
	"go.jacobcolvin.com/devicedesc/sema"
)

// ErrReadInput indicates a manifest file could not be read from disk.
var ErrReadInput = errors.New("compiler: read input")

// NewManifestRegistry returns a manifest.Registry with the JSON, YAML,
// and TOML backends registered, ready for Compile.
func NewManifestRegistry() *manifest.Registry {
	reg := manifest.NewRegistry()
	reg.Register(manifest.SyntaxJSON, manifestjson.New())
	reg.Register(manifest.SyntaxYAML, manifestyaml.New())
	reg.Register(manifest.SyntaxTOML, manifesttoml.New())

	return reg
}

// Compile runs the full pipeline described by spec.md's data flow —
// `source text → (DSL | manifest+deserializer) → Surface AST → lower →
// sema → IR` — for one syntax and one device name, returning the
// resulting IR (always non-nil) and the sink of every diagnostic
// produced. The compiler is a single-threaded, stateless batch process
// (spec.md §5); parallel calls are safe provided each uses its own sink.
func Compile(reg *manifest.Registry, syntax manifest.Syntax, source []byte, deviceName string) (*ir.Device, *diag.Sink) {
	sink := diag.NewSink()

	surface := parseSurface(reg, syntax, source, sink)
	if sink.HasErrors() {
		// Syntax errors short-circuit later passes: a missing AST
		// prevents semantic checks, per spec.md §7.
		return &ir.Device{Name: deviceName}, sink
	}

	dev := lower.Lower(surface, deviceName, sink)
	if sink.HasErrors() {
		return dev, sink
	}

	sema.Analyze(dev, sink)

	return dev, sink
}

func parseSurface(reg *manifest.Registry, syntax manifest.Syntax, source []byte, sink *diag.Sink) *devast.Device {
	if syntax == manifest.SyntaxDSL {
		return dsl.Parse(source, sink)
	}

	value, err := reg.Parse(syntax, source)
	if err != nil {
		sink.Errorf(diag.KindSyntax, "compiler-manifest-parse", devast.Span{}, "%v", err)

		return &devast.Device{}
	}

	return deserialize.Deserialize(value, sink)
}

// CompileFile reads path, infers its syntax from its extension (falling
// back to the DSL, per manifest.SyntaxForPath), and compiles it. The
// device name defaults to the file's base name without extension.
func CompileFile(reg *manifest.Registry, path string) (*ir.Device, *diag.Sink, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrReadInput, err)
	}

	syntax := manifest.SyntaxForPath(path)
	dev, sink := Compile(reg, syntax, source, deviceNameFromPath(path))

	return dev, sink, nil
}

func deviceNameFromPath(path string) string {
	base := filepath.Base(path)

	return strings.TrimSuffix(base, filepath.Ext(base))
}
