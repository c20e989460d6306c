package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/architect-io/bpcompile/pkg/config"
)

func newGraphCmd() *cobra.Command {
	var flat bool
	var mermaid bool
	var out string

	cmd := &cobra.Command{
		Use:   "graph [blueprint-file]",
		Short: "Compile a blueprint and write its call graphs as DOT",
		Long: `graph is compile without the success summary: it runs the same
pipeline and writes the resulting call graphs as Graphviz DOT files,
either one per route under --output, or concatenated into a single
file with --flat. --mermaid writes a Mermaid flowchart instead, for a
browser-based viewer rather than Graphviz.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			path := blueprintPath(args)

			app, diags := compileOnce(cmd.Context(), cfg, path)
			printDiagnostics(diags)
			if app == nil {
				return fmt.Errorf("compile failed with %d error(s)", len(diags))
			}

			if mermaid {
				dest := out
				if dest == "" {
					dest = cfg.OutputDir + ".mmd"
				}
				if err := app.PersistMermaid(dest); err != nil {
					return fmt.Errorf("writing mermaid call graph: %w", err)
				}
				fmt.Printf("wrote %s\n", dest)
				return nil
			}

			if flat {
				dest := out
				if dest == "" {
					dest = cfg.OutputDir + ".dot"
				}
				if err := app.PersistFlat(dest); err != nil {
					return fmt.Errorf("writing flat call graph: %w", err)
				}
				fmt.Printf("wrote %s\n", dest)
				return nil
			}

			dir := out
			if dir == "" {
				dir = cfg.OutputDir
			}
			if err := app.Persist(dir); err != nil {
				return fmt.Errorf("writing call graphs: %w", err)
			}
			fmt.Printf("wrote %d handler graph(s) and app_state.dot under %s\n", len(app.HandlerGraphs), dir)
			return nil
		},
	}

	cmd.Flags().BoolVar(&flat, "flat", false, "concatenate every graph into a single DOT file")
	cmd.Flags().BoolVar(&mermaid, "mermaid", false, "write a Mermaid flowchart instead of Graphviz DOT")
	cmd.Flags().StringVar(&out, "output", "", "output path (directory for per-handler graphs, file with --flat/--mermaid)")
	return cmd
}
