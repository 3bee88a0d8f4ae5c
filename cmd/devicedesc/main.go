// Command devicedesc compiles a device description (in the DSL, JSON,
// YAML, or TOML syntax) to an intermediate representation and reports
// diagnostics. It is pure front-end plumbing over package compiler: it
// performs no code generation of its own.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"go.jacobcolvin.com/devicedesc/compiler"
	"go.jacobcolvin.com/devicedesc/diag"
	"go.jacobcolvin.com/devicedesc/log"
	"go.jacobcolvin.com/devicedesc/manifest"
	"go.jacobcolvin.com/devicedesc/manifestschema"
	"go.jacobcolvin.com/devicedesc/profiler"
	"go.jacobcolvin.com/devicedesc/version"
)

var errMissingFile = errors.New("a device description file is required unless --schema is set")

func main() {
	logCfg := log.NewConfig()
	prof := profiler.New()

	var (
		formatFlag string
		emitIR     bool
		schemaFlag bool
		snippets   bool
	)

	rootCmd := &cobra.Command{
		Use:           "devicedesc [flags] <file>",
		Short:         "Compile a device description to an intermediate representation",
		Version:       version.Version,
		Args:          cobra.MaximumNArgs(1),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(_ *cobra.Command, args []string) error {
			handler, err := logCfg.NewHandler(os.Stderr)
			if err != nil {
				return fmt.Errorf("configure logging: %w", err)
			}

			slog.SetDefault(slog.New(handler))

			if err := prof.Start(); err != nil {
				return fmt.Errorf("start profiling: %w", err)
			}
			defer func() {
				if stopErr := prof.Stop(); stopErr != nil {
					slog.Error("stop profiling", "error", stopErr)
				}
			}()

			if schemaFlag {
				out, err := manifestschema.String()
				if err != nil {
					return err
				}

				fmt.Println(out)

				return nil
			}

			if len(args) != 1 {
				return errMissingFile
			}

			return run(args[0], formatFlag, emitIR, snippets)
		},
	}

	rootCmd.Flags().StringVar(&formatFlag, "format", "",
		"force an input syntax (dsl, json, yaml, toml) instead of inferring it from the file extension")
	rootCmd.Flags().BoolVar(&emitIR, "emit-ir", false, "print the compiled intermediate representation as JSON")
	rootCmd.Flags().BoolVar(&schemaFlag, "schema", false, "print the manifest JSON Schema and exit")
	rootCmd.Flags().BoolVar(&snippets, "snippets", false, "render diagnostics as source snippets instead of line:column form")

	logCfg.RegisterFlags(rootCmd.Flags())
	prof.RegisterFlags(rootCmd.Flags())

	if err := logCfg.RegisterCompletions(rootCmd); err != nil {
		fmt.Fprintf(os.Stderr, "register completions: %v\n", err)
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func run(path, formatFlag string, emitIR, snippets bool) error {
	reg := compiler.NewManifestRegistry()

	source, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: %w", compiler.ErrReadInput, err)
	}

	syntax := manifest.SyntaxForPath(path)
	if formatFlag != "" {
		syntax = manifest.Syntax(formatFlag)
	}

	base := filepath.Base(path)
	deviceName := strings.TrimSuffix(base, filepath.Ext(base))

	dev, sink := compiler.Compile(reg, syntax, source, deviceName)

	for _, d := range sink.All() {
		if snippets {
			fmt.Fprint(os.Stderr, diag.RenderSnippet(source, d))
		} else {
			fmt.Fprintln(os.Stderr, diag.RenderCompact(source, d))
		}
	}

	if sink.HasErrors() {
		return fmt.Errorf("%d error(s) compiling %s", len(sink.Errors()), path)
	}

	if emitIR {
		out, err := json.MarshalIndent(dev, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal ir: %w", err)
		}

		fmt.Println(string(out))
	}

	return nil
}
