package main

import (
	"github.com/spf13/cobra"

	"intermap/internal/config"
	"intermap/internal/ignore"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration and ignore file for a project",
	Run:   runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) {
	project := mustProject()

	cfg := config.DefaultConfig()
	if err := cfg.Save(project); err != nil {
		fatalf("writing config: %v", err)
	}

	wrote, err := ignore.WriteDefault(project)
	if err != nil {
		fatalf("writing %s: %v", ignore.IgnoreFileName, err)
	}

	emit(map[string]any{
		"project":      project,
		"config":       true,
		"ignore_file":  ignore.IgnoreFileName,
		"ignore_wrote": wrote,
	})
}
