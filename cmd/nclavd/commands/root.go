// Package commands wires nclavd's cobra command tree. Per spec.md §1
// the HTTP API is the only operator surface; this CLI exists only to
// start (and introspect) that server, not to replace it with a second
// edge.
package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var configPath string

// Execute runs the root command.
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "nclavd",
		Short: "nclav - declarative cloud infrastructure orchestrator",
		Long: `nclavd reconciles declared enclaves and partitions against applied
state, drives cloud drivers and IaC subprocesses to close the gap, and
serves the Terraform HTTP backend its own partitions use for state.

All operator interaction after startup goes through its HTTP API; this
CLI only starts (and reports the version of) that process.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")

	rootCmd.AddCommand(newServeCommand())

	return rootCmd
}
