package main

import (
	"github.com/spf13/cobra"

	"intermap/internal/crossproject"
)

var depsCmd = &cobra.Command{
	Use:   "deps [root]",
	Short: "Map cross-project dependencies in a monorepo",
	Long: `Discover projects under a monorepo root and detect the edges between
them: go.mod replace directives, pyproject path dependencies, and plugin
manifest references.

Examples:
  intermap deps
  intermap deps ~/work/monorepo`,
	Args: cobra.MaximumNArgs(1),
	Run:  runDeps,
}

func init() {
	rootCmd.AddCommand(depsCmd)
}

func runDeps(cmd *cobra.Command, args []string) {
	root := mustProject()
	if len(args) == 1 {
		root = args[0]
	}
	emit(crossproject.Scan(root))
}
