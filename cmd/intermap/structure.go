package main

import (
	"github.com/spf13/cobra"

	"intermap/internal/ignore"
	"intermap/internal/structure"
)

var structureMaxResults int

var structureCmd = &cobra.Command{
	Use:   "structure [file]",
	Short: "Outline source files: functions, classes, methods, imports",
	Long: `Extract the structural outline of one file, or of every supported
source file in the project when no file is given.

Examples:
  intermap structure
  intermap structure internal/app/server.py
  intermap structure --max-results 50`,
	Args: cobra.MaximumNArgs(1),
	Run:  runStructure,
}

func init() {
	structureCmd.Flags().IntVar(&structureMaxResults, "max-results", 0,
		"Maximum files in a project scan (0 uses the configured limit)")
	rootCmd.AddCommand(structureCmd)
}

type structureResponse struct {
	Project    string                   `json:"project"`
	Files      []*structure.FileSummary `json:"files"`
	TotalFiles int                      `json:"total_files"`
}

func runStructure(cmd *cobra.Command, args []string) {
	project := mustProject()
	cfg := loadConfig(project)
	extractor := structure.NewExtractor()
	ctx := newContext()

	if len(args) == 1 {
		summary, err := extractor.Summarize(ctx, args[0])
		if err != nil {
			fatalf("summarizing %s: %v", args[0], err)
		}
		emit(summary)
		return
	}

	matcher, err := ignore.NewMatcher(project, cfg.Ignore.IncludeGitignore)
	if err != nil {
		fatalf("loading ignore rules: %v", err)
	}

	maxResults := structureMaxResults
	if maxResults <= 0 {
		maxResults = cfg.Structure.MaxResults
	}

	summaries, err := extractor.SummarizeProject(ctx, project, matcher, maxResults)
	if err != nil {
		fatalf("scanning project: %v", err)
	}
	if summaries == nil {
		summaries = []*structure.FileSummary{}
	}
	emit(structureResponse{Project: project, Files: summaries, TotalFiles: len(summaries)})
}
