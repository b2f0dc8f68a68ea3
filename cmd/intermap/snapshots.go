package main

import (
	"os"

	"github.com/spf13/cobra"

	"intermap/internal/storage"
)

var (
	snapshotsLimit      int
	snapshotsKeep       int
	snapshotsBaseline   string
	snapshotsExportPath string
)

var snapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "Manage persisted change-detection snapshots",
}

var snapshotsSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Run change detection and persist the result",
	Run:   runSnapshotsSave,
}

var snapshotsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored snapshots, newest first",
	Run:   runSnapshotsList,
}

var snapshotsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one snapshot with its full result",
	Args:  cobra.ExactArgs(1),
	Run:   runSnapshotsShow,
}

var snapshotsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a snapshot by id",
	Args:  cobra.ExactArgs(1),
	Run:   runSnapshotsDelete,
}

var snapshotsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove old snapshots, keeping the newest ones",
	Run:   runSnapshotsPrune,
}

var snapshotsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export snapshots as gzip-compressed JSON",
	Run:   runSnapshotsExport,
}

var snapshotsImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import snapshots from an export file",
	Args:  cobra.ExactArgs(1),
	Run:   runSnapshotsImport,
}

func init() {
	snapshotsSaveCmd.Flags().StringVar(&snapshotsBaseline, "baseline", "HEAD", "Revision to diff against")
	snapshotsListCmd.Flags().IntVar(&snapshotsLimit, "limit", 20, "Maximum snapshots to list (0 for all)")
	snapshotsPruneCmd.Flags().IntVar(&snapshotsKeep, "keep", 10, "Snapshots to keep per project")
	snapshotsExportCmd.Flags().StringVar(&snapshotsExportPath, "out", "", "Output file (default: stdout)")

	snapshotsCmd.AddCommand(snapshotsSaveCmd, snapshotsListCmd, snapshotsShowCmd,
		snapshotsDeleteCmd, snapshotsPruneCmd, snapshotsExportCmd, snapshotsImportCmd)
	rootCmd.AddCommand(snapshotsCmd)
}

func openStore(project string) (*storage.SnapshotStore, func()) {
	cfg := loadConfig(project)
	logger := newLogger(cfg)
	db, err := storage.Open(project, logger)
	if err != nil {
		fatalf("opening database: %v", err)
	}
	return storage.NewSnapshotStore(db), func() { db.Close() }
}

func runSnapshotsSave(cmd *cobra.Command, args []string) {
	project := mustProject()
	cfg := loadConfig(project)
	logger := newLogger(cfg)

	engine := newEngine(cfg, logger)
	result := engine.LiveChanges(newContext(), project, snapshotsBaseline)

	store, closeDB := openStore(project)
	defer closeDB()

	snap, err := store.Save(newContext(), result, engine.Mode())
	if err != nil {
		fatalf("saving snapshot: %v", err)
	}
	emit(snap)
}

func runSnapshotsList(cmd *cobra.Command, args []string) {
	project := mustProject()
	store, closeDB := openStore(project)
	defer closeDB()

	list, err := store.List(newContext(), project, snapshotsLimit)
	if err != nil {
		fatalf("listing snapshots: %v", err)
	}
	emit(list)
}

func runSnapshotsShow(cmd *cobra.Command, args []string) {
	project := mustProject()
	store, closeDB := openStore(project)
	defer closeDB()

	snap, err := store.Get(newContext(), args[0])
	if err != nil {
		fatalf("%v", err)
	}
	emit(snap)
}

func runSnapshotsDelete(cmd *cobra.Command, args []string) {
	project := mustProject()
	store, closeDB := openStore(project)
	defer closeDB()

	if err := store.Delete(newContext(), args[0]); err != nil {
		fatalf("deleting snapshot: %v", err)
	}
	emit(map[string]string{"deleted": args[0]})
}

func runSnapshotsPrune(cmd *cobra.Command, args []string) {
	project := mustProject()
	store, closeDB := openStore(project)
	defer closeDB()

	removed, err := store.Prune(newContext(), project, snapshotsKeep)
	if err != nil {
		fatalf("pruning snapshots: %v", err)
	}
	emit(map[string]int{"removed": removed, "kept": snapshotsKeep})
}

func runSnapshotsExport(cmd *cobra.Command, args []string) {
	project := mustProject()
	store, closeDB := openStore(project)
	defer closeDB()

	out := os.Stdout
	if snapshotsExportPath != "" {
		f, err := os.Create(snapshotsExportPath)
		if err != nil {
			fatalf("creating %s: %v", snapshotsExportPath, err)
		}
		defer f.Close()
		out = f
	}
	if err := store.Export(newContext(), out, project); err != nil {
		fatalf("exporting snapshots: %v", err)
	}
}

func runSnapshotsImport(cmd *cobra.Command, args []string) {
	project := mustProject()
	store, closeDB := openStore(project)
	defer closeDB()

	f, err := os.Open(args[0])
	if err != nil {
		fatalf("opening %s: %v", args[0], err)
	}
	defer f.Close()

	count, err := store.Import(newContext(), f)
	if err != nil {
		fatalf("importing snapshots: %v", err)
	}
	emit(map[string]int{"imported": count})
}
