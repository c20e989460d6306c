// Package config is the compiler's viper-backed configuration layer,
// bound to the root command's persistent flags exactly the way the
// teacher's internal/cli wires --backend into viper.
package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envPrefix = "BPCOMPILE"

// Keys are the viper keys every setting is stored and looked up under.
const (
	KeyPackageDir       = "package_dir"
	KeyBlueprintFormat  = "blueprint_format"
	KeyOutputDir        = "output_dir"
	KeyWatch            = "watch"
	KeyStreamAddr       = "stream_addr"
	KeyDocSource        = "doc_source"
	KeyDocSourceRef     = "doc_source_ref"
	KeyDocSourceGitRef  = "doc_source_git_ref"
	KeyDocIndexPath     = "doc_index_path"
	KeyDockerHost       = "docker_host"
)

// Config is the resolved configuration for one compiler invocation.
type Config struct {
	// PackageDir is the workspace root pkggraph scans to build the
	// package graph the pipeline resolves paths against.
	PackageDir string
	// BlueprintFormat selects the blueprint front-end: "yaml" (default)
	// or "hcl".
	BlueprintFormat string
	// OutputDir is where Persist writes the per-handler DOT files.
	OutputDir string
	// Watch starts a diagnostics/stream websocket server, recompiles the
	// blueprint whenever it changes, and pushes each recompile's
	// diagnostics once that recompile finishes.
	Watch bool
	// StreamAddr is the address the watch server listens on.
	StreamAddr string

	// DocSource selects the remote crate-doc source: "" (no external
	// documentation, the default), "oci", "git", or "docker".
	DocSource string
	// DocSourceRef is a fmt.Sprintf template with one %s verb for the
	// package id, e.g. "ghcr.io/acme/%s-docs:latest" (oci/docker) or
	// "https://github.com/acme/%s-docs.git" (git).
	DocSourceRef string
	// DocSourceGitRef is the branch or tag cloned when DocSource is
	// "git".
	DocSourceGitRef string
	// DocIndexPath is the path to the doc-index file within a git
	// clone or Docker image, when DocSource is "git" or "docker".
	DocIndexPath string
	// DockerHost is the Docker daemon address dialed when DocSource is
	// "docker" (same forms as DOCKER_HOST).
	DockerHost string
}

// BindFlags registers the persistent flags every subcommand shares and
// binds them into viper, mirroring the teacher's
// rootCmd.PersistentFlags()/viper.BindPFlag pattern.
func BindFlags(cmd *cobra.Command) {
	var cfgFile string
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.bpcompile/config.yaml)")
	cmd.PersistentFlags().String("package-dir", ".", "workspace root to scan for the package graph")
	cmd.PersistentFlags().String("blueprint-format", "yaml", "blueprint file format (yaml or hcl)")
	cmd.PersistentFlags().String("output-dir", "./bpcompile-out", "directory to write compiled DOT graphs to")
	cmd.PersistentFlags().Bool("watch", false, "recompile on blueprint changes and stream each recompile's diagnostics over a websocket")
	cmd.PersistentFlags().String("stream-addr", "127.0.0.1:7337", "address the diagnostics stream server listens on")
	cmd.PersistentFlags().String("doc-source", "", "remote crate-doc source to query for signatures/traits: oci, git, or docker (default: none)")
	cmd.PersistentFlags().String("doc-source-ref", "", "template (one %s verb for the package id) naming where doc-source fetches from")
	cmd.PersistentFlags().String("doc-source-git-ref", "main", "branch or tag to clone when --doc-source=git")
	cmd.PersistentFlags().String("doc-index-path", "doc-index.json", "path to the doc-index file within a git clone or Docker image")
	cmd.PersistentFlags().String("docker-host", "unix:///var/run/docker.sock", "Docker daemon address to dial when --doc-source=docker")

	_ = viper.BindPFlag(KeyPackageDir, cmd.PersistentFlags().Lookup("package-dir"))
	_ = viper.BindPFlag(KeyBlueprintFormat, cmd.PersistentFlags().Lookup("blueprint-format"))
	_ = viper.BindPFlag(KeyOutputDir, cmd.PersistentFlags().Lookup("output-dir"))
	_ = viper.BindPFlag(KeyWatch, cmd.PersistentFlags().Lookup("watch"))
	_ = viper.BindPFlag(KeyStreamAddr, cmd.PersistentFlags().Lookup("stream-addr"))
	_ = viper.BindPFlag(KeyDocSource, cmd.PersistentFlags().Lookup("doc-source"))
	_ = viper.BindPFlag(KeyDocSourceRef, cmd.PersistentFlags().Lookup("doc-source-ref"))
	_ = viper.BindPFlag(KeyDocSourceGitRef, cmd.PersistentFlags().Lookup("doc-source-git-ref"))
	_ = viper.BindPFlag(KeyDocIndexPath, cmd.PersistentFlags().Lookup("doc-index-path"))
	_ = viper.BindPFlag(KeyDockerHost, cmd.PersistentFlags().Lookup("docker-host"))

	viper.SetEnvPrefix(envPrefix)
	viper.AutomaticEnv()

	cobra.OnInitialize(func() { initConfigFile(cfgFile) })
}

// initConfigFile points viper at an explicit --config file, or the
// default $HOME/.bpcompile/config.yaml if one exists.
func initConfigFile(cfgFile string) {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(filepath.Join(home, ".bpcompile"))
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}
	_ = viper.ReadInConfig()
}

// Load resolves the current Config from viper's bound flags, env, and
// config file, in viper's usual precedence order.
func Load() *Config {
	return &Config{
		PackageDir:      viper.GetString(KeyPackageDir),
		BlueprintFormat: viper.GetString(KeyBlueprintFormat),
		OutputDir:       viper.GetString(KeyOutputDir),
		Watch:           viper.GetBool(KeyWatch),
		StreamAddr:      viper.GetString(KeyStreamAddr),
		DocSource:       viper.GetString(KeyDocSource),
		DocSourceRef:    viper.GetString(KeyDocSourceRef),
		DocSourceGitRef: viper.GetString(KeyDocSourceGitRef),
		DocIndexPath:    viper.GetString(KeyDocIndexPath),
		DockerHost:      viper.GetString(KeyDockerHost),
	}
}
