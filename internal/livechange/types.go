// Package livechange implements git-diff based change detection with
// structural annotation: changed files are mapped onto the functions,
// classes, and methods their hunks touch.
package livechange

// Status classifies a changed file relative to the baseline.
type Status string

const (
	StatusModified Status = "modified"
	StatusAdded    Status = "added"
	StatusDeleted  Status = "deleted"
	StatusRenamed  Status = "renamed"
)

// statusFromCode maps the first letter of a git status token to a Status.
// Unknown letters default to modified.
func statusFromCode(code byte) Status {
	switch code {
	case 'M':
		return StatusModified
	case 'A':
		return StatusAdded
	case 'D':
		return StatusDeleted
	case 'R':
		return StatusRenamed
	default:
		return StatusModified
	}
}

// Hunk is one contiguous change region from a unified diff.
// A NewCount of 0 is a pure deletion; an OldCount of 0 is a pure insertion.
type Hunk struct {
	OldStart int `json:"old_start"`
	OldCount int `json:"old_count"`
	NewStart int `json:"new_start"`
	NewCount int `json:"new_count"`
}

// Symbol references a declared symbol affected by a change.
type Symbol struct {
	Name string `json:"name"`
	Kind string `json:"type"` // "function", "class", "method"
	Line int    `json:"line"`
}

// ChangeRecord is one changed file with its hunks and affected symbols.
// The pre-rename path is tracked internally for baseline lookups but never
// serialized.
type ChangeRecord struct {
	File            string   `json:"file"`
	Status          Status   `json:"status"`
	Hunks           []Hunk   `json:"hunks"`
	SymbolsAffected []Symbol `json:"symbols_affected"`

	oldFile string
}

// Result is the orchestrator's return value.
type Result struct {
	Project              string          `json:"project"`
	Baseline             string          `json:"baseline"`
	Changes              []*ChangeRecord `json:"changes"`
	TotalFiles           int             `json:"total_files"`
	TotalSymbolsAffected int             `json:"total_symbols_affected"`
}

// Mode selects the diff parsing and symbol matching strategy.
type Mode string

const (
	// ModeOptimized uses a single combined raw+patch diff invocation and
	// span-overlap symbol matching with baseline attribution for deletions.
	ModeOptimized Mode = "optimized"
	// ModeLegacy uses two diff invocations and declaration-line matching.
	ModeLegacy Mode = "legacy"
)

// GitClient is the version-control backend the engine consumes.
// *gitio.Git satisfies it; tests substitute counting fakes.
type GitClient interface {
	DiffNameStatus(project, baseline string) (string, error)
	DiffUnifiedZero(project, baseline string) (string, error)
	DiffPatchWithRaw(project, baseline string) (string, error)
	ResolveCommit(project, ref string) (string, error)
	ShowFile(project, revision, path string) ([]byte, error)
}
