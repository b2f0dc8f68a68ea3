package main

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"intermap/internal/diffsummary"
	"intermap/internal/gitio"
)

var diffSummaryBaseline string

var diffSummaryCmd = &cobra.Command{
	Use:   "diff-summary [file]",
	Short: "Summarize a unified diff into per-file line statistics",
	Long: `Summarize diff text into added/removed line counts per file. Reads a
diff from the given file, from stdin with "-", or generates one against a
baseline revision when no input is given.

Examples:
  intermap diff-summary
  intermap diff-summary --baseline main
  git diff HEAD~3 | intermap diff-summary -`,
	Args: cobra.MaximumNArgs(1),
	Run:  runDiffSummary,
}

func init() {
	diffSummaryCmd.Flags().StringVar(&diffSummaryBaseline, "baseline", "HEAD", "Revision to diff against when no input is given")
	rootCmd.AddCommand(diffSummaryCmd)
}

func runDiffSummary(cmd *cobra.Command, args []string) {
	var diffText string

	switch {
	case len(args) == 1 && args[0] == "-":
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			fatalf("reading stdin: %v", err)
		}
		diffText = gitio.DecodeText(data)
	case len(args) == 1:
		data, err := os.ReadFile(args[0])
		if err != nil {
			fatalf("reading %s: %v", args[0], err)
		}
		diffText = gitio.DecodeText(data)
	default:
		project := mustProject()
		git := gitio.New(0)
		text, err := git.DiffUnified(project, diffSummaryBaseline)
		if err != nil {
			fatalf("running git diff: %v", err)
		}
		diffText = text
	}

	summary, err := diffsummary.Parse(diffText)
	if err != nil {
		fatalf("parsing diff: %v", err)
	}
	emit(summary)
}
