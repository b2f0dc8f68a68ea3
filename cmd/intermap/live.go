package main

import (
	"github.com/spf13/cobra"
)

var liveBaseline string

var liveCmd = &cobra.Command{
	Use:   "live",
	Short: "Show uncommitted changes with the symbols they affect",
	Long: `Diff the working tree against a baseline revision and annotate every
changed file with the functions, classes, and methods its hunks touch.

Examples:
  intermap live
  intermap live --baseline main
  intermap live --mode legacy --format yaml`,
	Run: runLive,
}

func init() {
	liveCmd.Flags().StringVar(&liveBaseline, "baseline", "HEAD", "Revision to diff against")
	rootCmd.AddCommand(liveCmd)
}

func runLive(cmd *cobra.Command, args []string) {
	project := mustProject()
	cfg := loadConfig(project)
	logger := newLogger(cfg)

	engine := newEngine(cfg, logger)
	result := engine.LiveChanges(newContext(), project, liveBaseline)
	emit(result)
}
