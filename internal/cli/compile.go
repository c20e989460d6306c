package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/architect-io/bpcompile/pkg/blueprint"
	"github.com/architect-io/bpcompile/pkg/blueprint/hclformat"
	"github.com/architect-io/bpcompile/pkg/blueprint/yamlformat"
	"github.com/architect-io/bpcompile/pkg/compiler"
	"github.com/architect-io/bpcompile/pkg/config"
	"github.com/architect-io/bpcompile/pkg/cratedoc"
	"github.com/architect-io/bpcompile/pkg/cratedoc/dockerremote"
	"github.com/architect-io/bpcompile/pkg/cratedoc/gitremote"
	"github.com/architect-io/bpcompile/pkg/cratedoc/ociremote"
	"github.com/architect-io/bpcompile/pkg/diagnostics"
	"github.com/architect-io/bpcompile/pkg/diagnostics/stream"
	"github.com/architect-io/bpcompile/pkg/pkggraph"
	"github.com/architect-io/bpcompile/pkg/pkggraph/gomod"
)

func newCompileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compile [blueprint-file]",
		Short: "Compile a blueprint into per-handler call graphs",
		Long: `compile runs the full analysis pipeline over a blueprint file:
it resolves every constructor and handler path against the workspace's
package graph, fuses fallible constructors with their error handlers,
builds one call graph per route, and collects the application-state
graph shared across them.

With --watch, the blueprint file is recompiled on every change and the
resulting diagnostics are pushed to any client connected to the
diagnostics stream server.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runCompile,
	}
	cmd.Flags().Bool("quiet", false, "suppress the success summary on a clean compile")
	return cmd
}

func runCompile(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	path := blueprintPath(args)
	quiet, _ := cmd.Flags().GetBool("quiet")

	if cfg.Watch {
		return watchAndCompile(cmd.Context(), cfg, path)
	}

	app, diags := compileOnce(cmd.Context(), cfg, path)
	printDiagnostics(diags)
	if app == nil {
		return fmt.Errorf("compile failed with %d error(s)", len(diags))
	}
	if err := app.Persist(cfg.OutputDir); err != nil {
		return fmt.Errorf("writing call graphs: %w", err)
	}
	if !quiet {
		fmt.Fprintf(os.Stdout, "compiled %d route(s) into %s\n", len(app.HandlerGraphs), cfg.OutputDir)
	}
	return nil
}

func blueprintPath(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return "blueprint.yaml"
}

func loadBlueprint(cfg *config.Config, path string) (*blueprint.Blueprint, error) {
	if cfg.BlueprintFormat == "hcl" {
		return hclformat.Load(path)
	}
	return yamlformat.Load(path)
}

// compileOnce runs one full compile: load the blueprint, scan the
// package graph, and run the pipeline. The crate-doc collection comes
// from whichever remote source --doc-source selects; with no
// --doc-source set, every package resolves with no external
// documentation at all.
func compileOnce(ctx context.Context, cfg *config.Config, path string) (*compiler.App, []diagnostics.Diagnostic) {
	bp, err := loadBlueprint(cfg, path)
	if err != nil {
		return nil, loadErrorDiagnostic(path, err)
	}

	pkgs, err := gomod.Build(ctx, cfg.PackageDir)
	if err != nil {
		return nil, loadErrorDiagnostic(cfg.PackageDir, err)
	}

	docs, err := docSource(cfg)
	if err != nil {
		return nil, loadErrorDiagnostic(cfg.DocSource, err)
	}

	return compiler.Compile(bp, pkgs, docs)
}

// docSource builds the crate-doc collection cfg.DocSource names:
// "oci", "git", or "docker" dispatch to the matching remote source in
// pkg/cratedoc, each driven by cfg.DocSourceRef as a one-%s-verb
// template for the package id; anything else (including the empty
// default) falls back to an empty static collection.
func docSource(cfg *config.Config) (cratedoc.Collection, error) {
	switch cfg.DocSource {
	case "oci":
		src := ociremote.NewSource(func(pkg pkggraph.PackageID) (string, error) {
			return fmt.Sprintf(cfg.DocSourceRef, pkg), nil
		})
		return cratedoc.NewCached(src), nil

	case "git":
		src := gitremote.NewSource(func(pkg pkggraph.PackageID) (gitremote.Location, error) {
			return gitremote.Location{
				URL:      fmt.Sprintf(cfg.DocSourceRef, pkg),
				Ref:      cfg.DocSourceGitRef,
				DocIndex: cfg.DocIndexPath,
			}, nil
		})
		return cratedoc.NewCached(src), nil

	case "docker":
		cli, err := dockerremote.NewClient(cfg.DockerHost)
		if err != nil {
			return nil, fmt.Errorf("connecting to Docker host %q: %w", cfg.DockerHost, err)
		}
		src := dockerremote.NewSource(cli, func(pkg pkggraph.PackageID) (string, string, error) {
			return fmt.Sprintf(cfg.DocSourceRef, pkg), cfg.DocIndexPath, nil
		})
		return cratedoc.NewCached(src), nil

	default:
		return cratedoc.NewCached(cratedoc.NewStaticSource(map[pkggraph.PackageID]cratedoc.DocIndex{})), nil
	}
}

func loadErrorDiagnostic(path string, err error) []diagnostics.Diagnostic {
	return []diagnostics.Diagnostic{
		diagnostics.New(diagnostics.Error, "LoadError", fmt.Sprintf("failed to prepare compilation for %s: %v", path, err)).Build(),
	}
}

// watchAndCompile serves a diagnostics stream on cfg.StreamAddr and
// recompiles path every time its modification time changes, broadcasting
// the resulting diagnostics to every connected watcher.
func watchAndCompile(ctx context.Context, cfg *config.Config, path string) error {
	hub := stream.NewHub()
	sink := stream.NewSink(diagnostics.NewSink(), hub)

	srv := &http.Server{Addr: cfg.StreamAddr, Handler: hub}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "diagnostics stream server: %v\n", err)
		}
	}()
	defer srv.Close()

	fmt.Fprintf(os.Stdout, "watching %s, streaming diagnostics on ws://%s\n", path, cfg.StreamAddr)

	var lastMod time.Time
	for {
		info, err := os.Stat(path)
		if err == nil && info.ModTime().After(lastMod) {
			lastMod = info.ModTime()

			app, diags := compileOnce(ctx, cfg, path)
			for _, d := range diags {
				sink.Push(d)
			}
			if app != nil {
				sink.Push(diagnostics.New(diagnostics.Help, "CompileOK", fmt.Sprintf("compiled %d route(s)", len(app.HandlerGraphs))).Build())
				if err := app.Persist(cfg.OutputDir); err != nil {
					fmt.Fprintf(os.Stderr, "writing call graphs: %v\n", err)
				}
			}
			printDiagnostics(diags)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(500 * time.Millisecond):
		}
	}
}

// printDiagnostics renders diagnostics the way the pipeline itself
// thinks about them: primary message first, then each labelled span,
// then an optional help line. No third-party pretty-printer is wired in
// here - diagnostics stay plain fmt output, same as the sink that
// produces them.
func printDiagnostics(diags []diagnostics.Diagnostic) {
	for _, d := range diags {
		fmt.Fprintf(os.Stderr, "%s[%s]: %s\n", d.Severity, d.Code, d.Message)
		for _, l := range d.Labels {
			if l.Span.File != "" {
				fmt.Fprintf(os.Stderr, "  --> %s:%d:%d: %s\n", l.Span.File, l.Span.ByteStart, l.Span.ByteEnd, l.Message)
			} else {
				fmt.Fprintf(os.Stderr, "  note: %s\n", l.Message)
			}
		}
		if d.Help != "" {
			fmt.Fprintf(os.Stderr, "  help: %s\n", d.Help)
		}
	}
}
