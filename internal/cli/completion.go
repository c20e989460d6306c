package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newCompletionCmd())
	cobra.OnInitialize(registerCompletions)
}

func newCompletionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for bpcompile.

To load completions:

Bash:
  $ source <(bpcompile completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ bpcompile completion bash > /etc/bash_completion.d/bpcompile
  # macOS:
  $ bpcompile completion bash > $(brew --prefix)/etc/bash_completion.d/bpcompile

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. You can execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ bpcompile completion zsh > "${fpath[1]}/_bpcompile"

  # You will need to start a new shell for this setup to take effect.

Fish:
  $ bpcompile completion fish | source

  # To load completions for each session, execute once:
  $ bpcompile completion fish > ~/.config/fish/completions/bpcompile.fish

PowerShell:
  PS> bpcompile completion powershell | Out-String | Invoke-Expression

  # To load completions for every new session, run:
  PS> bpcompile completion powershell > bpcompile.ps1
  # and source this file from your PowerShell profile.
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return rootCmd.GenBashCompletionV2(os.Stdout, true)
			case "zsh":
				return rootCmd.GenZshCompletion(os.Stdout)
			case "fish":
				return rootCmd.GenFishCompletion(os.Stdout, true)
			case "powershell":
				return rootCmd.GenPowerShellCompletionWithDesc(os.Stdout)
			default:
				return fmt.Errorf("unknown shell: %s", args[0])
			}
		},
	}

	return cmd
}

// registerCompletions wires blueprint-file completion onto compile and
// graph's positional argument.
func registerCompletions() {
	for _, name := range []string{"compile", "graph"} {
		cmd, _, err := rootCmd.Find([]string{name})
		if err != nil {
			continue
		}
		cmd.ValidArgsFunction = completeBlueprintFiles
	}
}

// completeBlueprintFiles suggests blueprint.yaml/blueprint.hcl files
// found under the current directory.
func completeBlueprintFiles(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	files, err := findBlueprintFiles(".")
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return files, cobra.ShellCompDirectiveNoFileComp
}

// findBlueprintFiles recursively finds blueprint.yaml/.yml/.hcl files.
func findBlueprintFiles(dir string) ([]string, error) {
	var files []string

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	for _, entry := range entries {
		switch entry.Name() {
		case "blueprint.yaml", "blueprint.yml", "blueprint.hcl":
			files = append(files, dir+"/"+entry.Name())
		}
		if entry.IsDir() && entry.Name() != ".git" {
			subFiles, err := findBlueprintFiles(dir + "/" + entry.Name())
			if err == nil {
				files = append(files, subFiles...)
			}
		}
	}

	return files, nil
}
