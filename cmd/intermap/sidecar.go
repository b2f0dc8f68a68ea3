package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"intermap/internal/crossproject"
	"intermap/internal/diagnostics"
	"intermap/internal/diffsummary"
	"intermap/internal/gitio"
	"intermap/internal/ignore"
	"intermap/internal/patterns"
	"intermap/internal/sidecar"
	"intermap/internal/structure"
)

var sidecarCmd = &cobra.Command{
	Use:   "sidecar",
	Short: "Run as a persistent stdin/stdout request loop",
	Long: `Serve JSON requests from stdin, one per line, writing responses to
stdout. A parent process keeps the sidecar alive so repeated analysis calls
skip process startup. The first output line is a ready signal.`,
	Run: runSidecar,
}

func init() {
	rootCmd.AddCommand(sidecarCmd)
}

func runSidecar(cmd *cobra.Command, args []string) {
	project := mustProject()
	cfg := loadConfig(project)
	logger := newLogger(cfg)

	engine := newEngine(cfg, logger)
	extractor := structure.NewExtractor()

	srv := sidecar.NewServer(logger)

	srv.Register("live_changes", func(ctx context.Context, project string, raw json.RawMessage) (any, error) {
		var args struct {
			Baseline string `json:"baseline"`
		}
		if err := decodeArgs(raw, &args); err != nil {
			return nil, err
		}
		if args.Baseline == "" {
			args.Baseline = "HEAD"
		}
		return engine.LiveChanges(ctx, project, args.Baseline), nil
	})

	srv.Register("structure", func(ctx context.Context, project string, raw json.RawMessage) (any, error) {
		var args struct {
			MaxResults int `json:"max_results"`
		}
		if err := decodeArgs(raw, &args); err != nil {
			return nil, err
		}
		if args.MaxResults <= 0 {
			args.MaxResults = cfg.Structure.MaxResults
		}
		matcher, err := ignore.NewMatcher(project, cfg.Ignore.IncludeGitignore)
		if err != nil {
			return nil, err
		}
		summaries, err := extractor.SummarizeProject(ctx, project, matcher, args.MaxResults)
		if err != nil {
			return nil, err
		}
		if summaries == nil {
			summaries = []*structure.FileSummary{}
		}
		return structureResponse{Project: project, Files: summaries, TotalFiles: len(summaries)}, nil
	})

	srv.Register("patterns", func(ctx context.Context, project string, raw json.RawMessage) (any, error) {
		var args struct {
			Language string `json:"language"`
		}
		if err := decodeArgs(raw, &args); err != nil {
			return nil, err
		}
		detector, err := patterns.NewDetector(project)
		if err != nil {
			return nil, err
		}
		return detector.Detect(project, args.Language)
	})

	srv.Register("cross_project", func(ctx context.Context, project string, raw json.RawMessage) (any, error) {
		return crossproject.Scan(project), nil
	})

	analyzer := diagnostics.New(diagnostics.Options{Logger: logger})
	srv.Register("diagnostics", func(ctx context.Context, project string, raw json.RawMessage) (any, error) {
		var args struct {
			File        string `json:"file"`
			Language    string `json:"language"`
			IncludeLint *bool  `json:"include_lint"`
		}
		if err := decodeArgs(raw, &args); err != nil {
			return nil, err
		}
		includeLint := args.IncludeLint == nil || *args.IncludeLint
		if args.File != "" {
			return analyzer.File(ctx, args.File, args.Language, includeLint)
		}
		return analyzer.Project(ctx, project, args.Language, includeLint)
	})

	srv.Register("diff_summary", func(ctx context.Context, project string, raw json.RawMessage) (any, error) {
		var args struct {
			Baseline string `json:"baseline"`
		}
		if err := decodeArgs(raw, &args); err != nil {
			return nil, err
		}
		if args.Baseline == "" {
			args.Baseline = "HEAD"
		}
		text, err := gitio.New(0).DiffUnified(project, args.Baseline)
		if err != nil {
			return nil, err
		}
		return diffsummary.Parse(text)
	})

	if err := srv.Run(newContext(), os.Stdin, os.Stdout); err != nil {
		fatalf("sidecar: %v", err)
	}
}

func decodeArgs(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return &sidecar.Error{Type: "InvalidArgs", Message: err.Error()}
	}
	return nil
}
