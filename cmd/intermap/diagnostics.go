package main

import (
	"github.com/spf13/cobra"

	"intermap/internal/diagnostics"
)

var (
	diagnosticsLanguage string
	diagnosticsNoLint   bool
)

var diagnosticsCmd = &cobra.Command{
	Use:   "diagnostics [file]",
	Short: "Run type checkers and linters, reporting structured findings",
	Long: `Run the type checker and linter for the detected language and report
their findings as structured diagnostics. Checks one file when given, or
the whole project otherwise. Tools that are not installed are skipped.

Examples:
  intermap diagnostics
  intermap diagnostics internal/app/server.py
  intermap diagnostics --language go --no-lint`,
	Args: cobra.MaximumNArgs(1),
	Run:  runDiagnostics,
}

func init() {
	diagnosticsCmd.Flags().StringVar(&diagnosticsLanguage, "language", "auto", "Language hint (python, go, typescript, rust, auto)")
	diagnosticsCmd.Flags().BoolVar(&diagnosticsNoLint, "no-lint", false, "Skip linters, run type checkers only")
	rootCmd.AddCommand(diagnosticsCmd)
}

func runDiagnostics(cmd *cobra.Command, args []string) {
	project := mustProject()
	cfg := loadConfig(project)
	logger := newLogger(cfg)

	analyzer := diagnostics.New(diagnostics.Options{Logger: logger})
	ctx := newContext()

	var (
		report *diagnostics.Report
		err    error
	)
	if len(args) == 1 {
		report, err = analyzer.File(ctx, args[0], diagnosticsLanguage, !diagnosticsNoLint)
	} else {
		report, err = analyzer.Project(ctx, project, diagnosticsLanguage, !diagnosticsNoLint)
	}
	if err != nil {
		fatalf("%v", err)
	}
	emit(report)
}
