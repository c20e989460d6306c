// Package cli implements the bpcompile CLI commands.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/architect-io/bpcompile/pkg/config"
)

var rootCmd = &cobra.Command{
	Use:   "bpcompile",
	Short: "Compile a blueprint into its dependency-injected call graphs",
	Long: `bpcompile analyzes a blueprint of routes and constructors and
produces, for every route, the ordered construction sequence its
handler needs - resolved entirely at compile time, with no runtime
reflection or service-locator lookups.

Command Structure:
  bpcompile <command> [arguments] [flags]

Examples:
  bpcompile compile ./blueprint.yaml
  bpcompile compile ./blueprint.yaml --watch
  bpcompile graph ./blueprint.yaml --flat
  bpcompile version`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	config.BindFlags(rootCmd)

	rootCmd.AddCommand(newCompileCmd())
	rootCmd.AddCommand(newGraphCmd())
	rootCmd.AddCommand(newVersionCmd())
}
