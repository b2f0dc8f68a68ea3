package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"intermap/internal/config"
	"intermap/internal/gitio"
	"intermap/internal/livechange"
	"intermap/internal/slogutil"
	"intermap/internal/structure"
	"intermap/internal/version"
)

var (
	formatFlag   string
	logLevelFlag string
	modeFlag     string
	projectFlag  string
)

var rootCmd = &cobra.Command{
	Use:   "intermap",
	Short: "intermap - structural change intelligence for codebases",
	Long: `intermap maps uncommitted changes onto the functions, classes, and
methods they touch, and provides structural views of source trees for
tooling that needs to reason about code without reading all of it.`,
	Version: version.Version,
}

func init() {
	rootCmd.SetVersionTemplate("intermap version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&formatFlag, "format", "json", "Output format (json, yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&modeFlag, "mode", "", "Live-change strategy (optimized, legacy)")
	rootCmd.PersistentFlags().StringVar(&projectFlag, "project", "", "Project directory (default: current directory)")
}

// newLogger builds the process logger on stderr so stdout stays clean for
// structured output.
func newLogger(cfg *config.Config) *slog.Logger {
	level := cfg.Logging.Level
	if logLevelFlag != "" {
		level = logLevelFlag
	}
	return slogutil.NewLogger(os.Stderr, slogutil.LevelFromString(level))
}

// resolveProject returns the absolute project path from the flag or the
// working directory.
func resolveProject() (string, error) {
	dir := projectFlag
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		dir = wd
	}
	return filepath.Abs(dir)
}

func mustProject() string {
	dir, err := resolveProject()
	if err != nil {
		fatalf("resolving project path: %v", err)
	}
	return dir
}

func loadConfig(project string) *config.Config {
	cfg, err := config.LoadConfig(project)
	if err != nil {
		fatalf("loading config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		fatalf("%v", err)
	}
	return cfg
}

// resolveLiveMode applies the precedence flag > environment > config file.
func resolveLiveMode(cfg *config.Config, logger *slog.Logger) livechange.Mode {
	raw := modeFlag
	if raw == "" {
		raw = os.Getenv(livechange.ModeEnvVar)
	}
	if raw == "" {
		raw = cfg.LiveChanges.Mode
	}
	return livechange.ResolveMode(raw, logger)
}

func newEngine(cfg *config.Config, logger *slog.Logger) *livechange.Engine {
	return livechange.New(livechange.Options{
		Git:     gitio.New(time.Duration(cfg.LiveChanges.GitTimeoutSeconds) * time.Second),
		Mode:    resolveLiveMode(cfg, logger),
		Logger:  logger,
		Outline: structure.NewExtractor(),
		SymbolCache: livechange.CacheLimits{
			MaxEntries: cfg.LiveChanges.SymbolCache.MaxEntries,
			MaxBytes:   cfg.LiveChanges.SymbolCache.MaxBytes,
		},
		BaselineCache: livechange.CacheLimits{
			MaxEntries: cfg.LiveChanges.BaselineCache.MaxEntries,
			MaxBytes:   cfg.LiveChanges.BaselineCache.MaxBytes,
		},
	})
}

func newContext() context.Context {
	return context.Background()
}
