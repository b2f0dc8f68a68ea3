package diagnostics

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// fakeRunner serves canned tool output and records invocations.
type fakeRunner struct {
	tools  map[string]bool   // tool name -> available
	stdout map[string]string // tool name -> stdout
	stderr map[string]string // tool name -> stderr
	ran    []string
}

func (f *fakeRunner) Available(tool string) bool { return f.tools[tool] }

func (f *fakeRunner) Run(_ context.Context, _, name string, _ ...string) (string, string) {
	f.ran = append(f.ran, name)
	return f.stdout[name], f.stderr[name]
}

func newAnalyzer(run *fakeRunner) *Analyzer {
	return New(Options{Runner: run})
}

func tempFile(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("x\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const pyrightOutput = `{
  "generalDiagnostics": [
    {
      "file": "app.py",
      "range": {"start": {"line": 9, "character": 4}},
      "severity": "error",
      "message": "Operator \"+\" not supported",
      "rule": "reportOperatorIssue"
    }
  ]
}`

const ruffOutput = `[
  {
    "filename": "app.py",
    "location": {"row": 3, "column": 1},
    "message": "os imported but unused",
    "code": "F401"
  }
]`

func TestPythonFileDiagnostics(t *testing.T) {
	run := &fakeRunner{
		tools:  map[string]bool{"pyright": true, "ruff": true},
		stdout: map[string]string{"pyright": pyrightOutput, "ruff": ruffOutput},
	}
	a := newAnalyzer(run)

	rep, err := a.File(context.Background(), tempFile(t, "app.py"), "", true)
	if err != nil {
		t.Fatal(err)
	}

	if rep.Language != "python" {
		t.Errorf("language = %q, want python", rep.Language)
	}
	if len(rep.Diagnostics) != 2 {
		t.Fatalf("diagnostics = %+v, want 2", rep.Diagnostics)
	}

	// Sorted by line: ruff's row 3 before pyright's zero-based line 9 -> 10.
	if rep.Diagnostics[0].Source != "ruff" || rep.Diagnostics[0].Line != 3 {
		t.Errorf("unexpected first finding: %+v", rep.Diagnostics[0])
	}
	if rep.Diagnostics[1].Line != 10 || rep.Diagnostics[1].Column != 5 {
		t.Errorf("pyright positions must convert to one-based: %+v", rep.Diagnostics[1])
	}
	if rep.ErrorCount != 1 || rep.WarningCount != 1 {
		t.Errorf("counts = %d/%d, want 1/1", rep.ErrorCount, rep.WarningCount)
	}
	if len(rep.Tools) != 2 {
		t.Errorf("tools = %v, want pyright and ruff", rep.Tools)
	}
}

func TestPythonLintSkipped(t *testing.T) {
	run := &fakeRunner{
		tools:  map[string]bool{"pyright": true, "ruff": true},
		stdout: map[string]string{"pyright": `{"generalDiagnostics": []}`, "ruff": ruffOutput},
	}
	a := newAnalyzer(run)

	rep, err := a.File(context.Background(), tempFile(t, "app.py"), "", false)
	if err != nil {
		t.Fatal(err)
	}
	for _, tool := range run.ran {
		if tool == "ruff" {
			t.Error("ruff must not run when lint is disabled")
		}
	}
	if len(rep.Diagnostics) != 0 {
		t.Errorf("diagnostics = %+v, want none", rep.Diagnostics)
	}
}

func TestUnavailableToolsSkipped(t *testing.T) {
	run := &fakeRunner{tools: map[string]bool{}}
	a := newAnalyzer(run)

	rep, err := a.File(context.Background(), tempFile(t, "app.py"), "", true)
	if err != nil {
		t.Fatal(err)
	}
	if len(run.ran) != 0 {
		t.Errorf("no tools installed, but ran %v", run.ran)
	}
	if len(rep.Tools) != 0 || len(rep.Diagnostics) != 0 {
		t.Errorf("expected empty report, got %+v", rep)
	}
}

func TestMalformedToolOutputIgnored(t *testing.T) {
	run := &fakeRunner{
		tools:  map[string]bool{"pyright": true},
		stdout: map[string]string{"pyright": "pyright crashed\n"},
	}
	a := newAnalyzer(run)

	rep, err := a.File(context.Background(), tempFile(t, "app.py"), "", false)
	if err != nil {
		t.Fatal(err)
	}
	if len(rep.Diagnostics) != 0 {
		t.Errorf("diagnostics = %+v, want none", rep.Diagnostics)
	}
	if len(rep.Tools) != 0 {
		t.Errorf("a tool whose output did not parse must not be listed: %v", rep.Tools)
	}
}

func TestGoVetLineParsing(t *testing.T) {
	run := &fakeRunner{
		tools: map[string]bool{"go": true},
		stderr: map[string]string{"go": `# example
pkg/util.go:14:2: unreachable code
pkg/util.go:30:9: result of fmt.Sprintf call not used
`},
	}
	a := newAnalyzer(run)

	rep, err := a.File(context.Background(), tempFile(t, "main.go"), "", true)
	if err != nil {
		t.Fatal(err)
	}
	if len(rep.Diagnostics) != 2 {
		t.Fatalf("diagnostics = %+v, want 2", rep.Diagnostics)
	}
	first := rep.Diagnostics[0]
	if first.File != "pkg/util.go" || first.Line != 14 || first.Column != 2 {
		t.Errorf("unexpected finding: %+v", first)
	}
	if first.Severity != "error" || first.Source != "go vet" {
		t.Errorf("unexpected finding: %+v", first)
	}
	if rep.ErrorCount != 2 {
		t.Errorf("ErrorCount = %d, want 2", rep.ErrorCount)
	}
}

func TestTscOutputParsing(t *testing.T) {
	run := &fakeRunner{
		tools: map[string]bool{"tsc": true},
		stdout: map[string]string{"tsc": `app.ts(5,10): error TS2339: Property 'nope' does not exist on type 'Server'.
`},
	}
	a := newAnalyzer(run)

	rep, err := a.File(context.Background(), tempFile(t, "app.ts"), "", true)
	if err != nil {
		t.Fatal(err)
	}
	if len(rep.Diagnostics) != 1 {
		t.Fatalf("diagnostics = %+v, want 1", rep.Diagnostics)
	}
	f := rep.Diagnostics[0]
	if f.Rule != "TS2339" || f.Line != 5 || f.Column != 10 || f.Severity != "error" {
		t.Errorf("unexpected finding: %+v", f)
	}
	if !strings.Contains(f.Message, "Property 'nope'") {
		t.Errorf("unexpected message: %q", f.Message)
	}
}

func TestCargoJSONLines(t *testing.T) {
	run := &fakeRunner{
		tools: map[string]bool{"cargo": true},
		stdout: map[string]string{"cargo": `{"reason":"compiler-artifact","target":{"name":"app"}}
{"reason":"compiler-message","message":{"level":"warning","message":"unused variable: x","code":{"code":"unused_variables"},"spans":[{"file_name":"src/main.rs","line_start":7,"column_start":9}]}}
{"reason":"build-finished","success":true}
`},
	}
	a := newAnalyzer(run)

	rep, err := a.File(context.Background(), tempFile(t, "main.rs"), "", true)
	if err != nil {
		t.Fatal(err)
	}
	if len(rep.Diagnostics) != 1 {
		t.Fatalf("diagnostics = %+v, want 1", rep.Diagnostics)
	}
	f := rep.Diagnostics[0]
	if f.File != "src/main.rs" || f.Line != 7 || f.Rule != "unused_variables" {
		t.Errorf("unexpected finding: %+v", f)
	}
	if rep.WarningCount != 1 {
		t.Errorf("WarningCount = %d, want 1", rep.WarningCount)
	}
}

func TestFileNotFound(t *testing.T) {
	a := newAnalyzer(&fakeRunner{})
	if _, err := a.File(context.Background(), filepath.Join(t.TempDir(), "absent.py"), "", true); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestProjectLanguageMarkers(t *testing.T) {
	tests := []struct {
		marker string
		want   string
	}{
		{"go.mod", "go"},
		{"pyproject.toml", "python"},
		{"tsconfig.json", "typescript"},
		{"Cargo.toml", "rust"},
	}
	for _, tt := range tests {
		root := t.TempDir()
		if err := os.WriteFile(filepath.Join(root, tt.marker), []byte(""), 0o644); err != nil {
			t.Fatal(err)
		}
		if got := detectProjectLanguage(root); got != tt.want {
			t.Errorf("detectProjectLanguage with %s = %q, want %q", tt.marker, got, tt.want)
		}
	}
	if got := detectProjectLanguage(t.TempDir()); got != "python" {
		t.Errorf("bare directory should default to python, got %q", got)
	}
}

func TestProjectReportFileCount(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "go.mod"), []byte("module example\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	run := &fakeRunner{
		tools: map[string]bool{"go": true},
		stderr: map[string]string{"go": `a.go:1:1: first
a.go:2:1: second
b.go:3:1: third
`},
	}
	a := newAnalyzer(run)

	rep, err := a.Project(context.Background(), root, "auto", true)
	if err != nil {
		t.Fatal(err)
	}
	if rep.Language != "go" {
		t.Errorf("language = %q, want go", rep.Language)
	}
	if rep.FileCount != 2 {
		t.Errorf("FileCount = %d, want 2: %+v", rep.FileCount, rep.Diagnostics)
	}
	if len(rep.Diagnostics) != 3 {
		t.Errorf("diagnostics = %+v, want 3", rep.Diagnostics)
	}
}
