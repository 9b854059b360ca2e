package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// @title Lockbox API
// @version 1.0
// @description Upload, lock, unlock and overwrite files namespaced by company and project.
// @BasePath /
func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "lockbox",
		Short: "Lockbox file service",
		Long: `Lockbox stores files namespaced by company and project in an object store,
keeps a record per file in a document database and lets clients lock files
while they edit them.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newReconcileCommand())

	return rootCmd
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func newReconcileCommand() *cobra.Command {
	var failOnDrift bool

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Report blobs without records and records without blobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReconcile(cmd.Context(), cmd.OutOrStdout(), failOnDrift)
		},
	}
	cmd.Flags().BoolVar(&failOnDrift, "fail-on-drift", false, "Exit with an error when the stores disagree")

	return cmd
}
