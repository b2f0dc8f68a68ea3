package main

import (
	"github.com/spf13/cobra"

	"intermap/internal/patterns"
)

var patternsLanguage string

var patternsCmd = &cobra.Command{
	Use:   "patterns",
	Short: "Detect architectural patterns in a project",
	Long: `Scan a project for architectural patterns: HTTP route registrations,
MCP tool definitions, middleware chains, interfaces, and CLI commands.

Examples:
  intermap patterns
  intermap patterns --language go`,
	Run: runPatterns,
}

func init() {
	patternsCmd.Flags().StringVar(&patternsLanguage, "language", "auto", "Language hint (go, python, auto)")
	rootCmd.AddCommand(patternsCmd)
}

func runPatterns(cmd *cobra.Command, args []string) {
	project := mustProject()

	detector, err := patterns.NewDetector(project)
	if err != nil {
		fatalf("loading ignore rules: %v", err)
	}
	report, err := detector.Detect(project, patternsLanguage)
	if err != nil {
		fatalf("detecting patterns: %v", err)
	}
	emit(report)
}
