// Package diagnostics wraps external type checkers and linters into
// structured per-file findings: pyright and ruff for Python, go vet for
// Go, tsc for TypeScript, cargo check for Rust. Missing tools are
// skipped rather than reported as failures.
package diagnostics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"intermap/internal/gitio"
	"intermap/internal/slogutil"
	"intermap/internal/structure"
)

// DefaultTimeout bounds a single tool invocation. Project-wide type
// checking can be slow, so this is generous compared to gitio's.
const DefaultTimeout = 120 * time.Second

// Finding is one diagnostic reported by an external tool.
type Finding struct {
	File     string `json:"file"`
	Line     int    `json:"line"`
	Column   int    `json:"column"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
	Rule     string `json:"rule"`
	Source   string `json:"source"`
}

// Report collects the findings for one file or one project tree.
type Report struct {
	Path         string    `json:"path"`
	Language     string    `json:"language"`
	Tools        []string  `json:"tools"`
	Diagnostics  []Finding `json:"diagnostics"`
	ErrorCount   int       `json:"error_count"`
	WarningCount int       `json:"warning_count"`
	FileCount    int       `json:"file_count,omitempty"`
}

// Runner executes external analysis tools. The default implementation
// shells out; tests substitute canned output.
type Runner interface {
	// Available reports whether the named tool can be invoked.
	Available(tool string) bool
	// Run executes the tool in dir and returns its stdout and stderr.
	// A non-zero exit is not a failure: linters exit non-zero whenever
	// they find something.
	Run(ctx context.Context, dir, name string, args ...string) (stdout, stderr string)
}

type execRunner struct {
	timeout time.Duration
	logger  *slog.Logger
}

func (r *execRunner) Available(tool string) bool {
	_, err := exec.LookPath(tool)
	return err == nil
}

func (r *execRunner) Run(ctx context.Context, dir, name string, args ...string) (string, string) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		r.logger.Debug("diagnostics.tool_exit",
			"tool", name,
			"error_message", err.Error())
	}
	return gitio.DecodeText(stdout.Bytes()), gitio.DecodeText(stderr.Bytes())
}

// Options configures an Analyzer. A nil Runner shells out with Timeout;
// a nil Logger discards.
type Options struct {
	Runner  Runner
	Logger  *slog.Logger
	Timeout time.Duration
}

// Analyzer produces diagnostic reports by driving external tools.
type Analyzer struct {
	run    Runner
	logger *slog.Logger
}

// New builds an Analyzer.
func New(opts Options) *Analyzer {
	logger := opts.Logger
	if logger == nil {
		logger = slogutil.NewDiscardLogger()
	}
	run := opts.Runner
	if run == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		run = &execRunner{timeout: timeout, logger: logger}
	}
	return &Analyzer{run: run, logger: logger}
}

// File reports diagnostics for a single source file. An empty or "auto"
// language is detected from the extension.
func (a *Analyzer) File(ctx context.Context, path, language string, includeLint bool) (*Report, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(abs); err != nil {
		return nil, fmt.Errorf("file not found: %s", path)
	}

	lang := language
	if lang == "" || lang == "auto" {
		lang = detectFileLanguage(abs)
	}

	rep := newReport(abs, lang)
	dir := filepath.Dir(abs)
	switch lang {
	case "python":
		a.pythonChecks(ctx, abs, dir, includeLint, rep)
	case "go":
		a.goVet(ctx, abs, dir, rep)
	case "typescript":
		a.tscCheck(ctx, abs, dir, rep)
	case "rust":
		a.cargoCheck(ctx, dir, rep)
	}
	finish(rep)
	return rep, nil
}

// Project reports diagnostics for a whole tree. An empty or "auto"
// language is detected from project markers, falling back to python.
func (a *Analyzer) Project(ctx context.Context, root, language string, includeLint bool) (*Report, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if info, err := os.Stat(abs); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("project not found: %s", root)
	}

	lang := language
	if lang == "" || lang == "auto" {
		lang = detectProjectLanguage(abs)
	}

	rep := newReport(abs, lang)
	switch lang {
	case "python":
		a.pythonChecks(ctx, abs, abs, includeLint, rep)
	case "go":
		a.goVet(ctx, "./...", abs, rep)
	case "typescript":
		a.tscCheck(ctx, "", abs, rep)
	}
	finish(rep)

	files := map[string]struct{}{}
	for _, f := range rep.Diagnostics {
		files[f.File] = struct{}{}
	}
	rep.FileCount = len(files)
	return rep, nil
}

func newReport(path, lang string) *Report {
	return &Report{
		Path:        path,
		Language:    lang,
		Tools:       []string{},
		Diagnostics: []Finding{},
	}
}

func finish(rep *Report) {
	sort.SliceStable(rep.Diagnostics, func(i, j int) bool {
		if rep.Diagnostics[i].File != rep.Diagnostics[j].File {
			return rep.Diagnostics[i].File < rep.Diagnostics[j].File
		}
		return rep.Diagnostics[i].Line < rep.Diagnostics[j].Line
	})
	for _, f := range rep.Diagnostics {
		switch f.Severity {
		case "error":
			rep.ErrorCount++
		case "warning":
			rep.WarningCount++
		}
	}
}

func detectFileLanguage(path string) string {
	if strings.ToLower(filepath.Ext(path)) == ".rs" {
		return "rust"
	}
	switch structure.DetectLanguage(path) {
	case structure.LangPython:
		return "python"
	case structure.LangGo:
		return "go"
	case structure.LangTypeScript, structure.LangTSX:
		return "typescript"
	case structure.LangJavaScript:
		return "javascript"
	default:
		return "unknown"
	}
}

func detectProjectLanguage(root string) string {
	markers := []struct {
		file string
		lang string
	}{
		{"go.mod", "go"},
		{"pyproject.toml", "python"},
		{"setup.py", "python"},
		{"tsconfig.json", "typescript"},
		{"Cargo.toml", "rust"},
	}
	for _, m := range markers {
		if _, err := os.Stat(filepath.Join(root, m.file)); err == nil {
			return m.lang
		}
	}
	return "python"
}

// pythonChecks runs pyright then ruff against target, which is either a
// file path or a project root. A tool only lands in the report's tool
// list when its output parsed.
func (a *Analyzer) pythonChecks(ctx context.Context, target, dir string, includeLint bool, rep *Report) {
	if a.run.Available("pyright") {
		stdout, _ := a.run.Run(ctx, dir, "pyright", "--outputjson", target)
		if findings, ok := parsePyright(stdout); ok {
			rep.Diagnostics = append(rep.Diagnostics, findings...)
			rep.Tools = append(rep.Tools, "pyright")
		} else {
			a.logger.Debug("diagnostics.parse_failure", "tool", "pyright")
		}
	}
	if includeLint && a.run.Available("ruff") {
		stdout, _ := a.run.Run(ctx, dir, "ruff", "check", "--output-format=json", target)
		if findings, ok := parseRuff(stdout); ok {
			rep.Diagnostics = append(rep.Diagnostics, findings...)
			rep.Tools = append(rep.Tools, "ruff")
		} else {
			a.logger.Debug("diagnostics.parse_failure", "tool", "ruff")
		}
	}
}

func (a *Analyzer) goVet(ctx context.Context, target, dir string, rep *Report) {
	if !a.run.Available("go") {
		return
	}
	_, stderr := a.run.Run(ctx, dir, "go", "vet", target)
	rep.Diagnostics = append(rep.Diagnostics, parseVet(stderr)...)
	rep.Tools = append(rep.Tools, "go vet")
}

func (a *Analyzer) tscCheck(ctx context.Context, target, dir string, rep *Report) {
	if !a.run.Available("tsc") {
		return
	}
	args := []string{"--noEmit", "--pretty", "false"}
	if target != "" {
		args = append(args, target)
	}
	stdout, stderr := a.run.Run(ctx, dir, "tsc", args...)
	rep.Diagnostics = append(rep.Diagnostics, parseTsc(stdout+stderr)...)
	rep.Tools = append(rep.Tools, "tsc")
}

func (a *Analyzer) cargoCheck(ctx context.Context, dir string, rep *Report) {
	if !a.run.Available("cargo") {
		return
	}
	stdout, _ := a.run.Run(ctx, dir, "cargo", "check", "--message-format=json")
	rep.Diagnostics = append(rep.Diagnostics, parseCargo(stdout)...)
	rep.Tools = append(rep.Tools, "cargo check")
}

// pyright emits zero-based positions.
func parsePyright(stdout string) ([]Finding, bool) {
	var doc struct {
		GeneralDiagnostics []struct {
			File  string `json:"file"`
			Range struct {
				Start struct {
					Line      int `json:"line"`
					Character int `json:"character"`
				} `json:"start"`
			} `json:"range"`
			Severity string `json:"severity"`
			Message  string `json:"message"`
			Rule     string `json:"rule"`
		} `json:"generalDiagnostics"`
	}
	if err := json.Unmarshal([]byte(stdout), &doc); err != nil {
		return nil, false
	}

	findings := make([]Finding, 0, len(doc.GeneralDiagnostics))
	for _, d := range doc.GeneralDiagnostics {
		severity := d.Severity
		if severity == "" {
			severity = "error"
		}
		findings = append(findings, Finding{
			File:     d.File,
			Line:     d.Range.Start.Line + 1,
			Column:   d.Range.Start.Character + 1,
			Severity: severity,
			Message:  d.Message,
			Rule:     d.Rule,
			Source:   "pyright",
		})
	}
	return findings, true
}

func parseRuff(stdout string) ([]Finding, bool) {
	var doc []struct {
		Filename string `json:"filename"`
		Location struct {
			Row    int `json:"row"`
			Column int `json:"column"`
		} `json:"location"`
		Message string `json:"message"`
		Code    string `json:"code"`
	}
	if err := json.Unmarshal([]byte(stdout), &doc); err != nil {
		return nil, false
	}

	findings := make([]Finding, 0, len(doc))
	for _, d := range doc {
		findings = append(findings, Finding{
			File:     d.Filename,
			Line:     d.Location.Row,
			Column:   d.Location.Column,
			Severity: "warning",
			Message:  d.Message,
			Rule:     d.Code,
			Source:   "ruff",
		})
	}
	return findings, true
}

var vetLineRe = regexp.MustCompile(`^(.+?):(\d+):(\d+): (.+)$`)

func parseVet(stderr string) []Finding {
	var findings []Finding
	for _, line := range strings.Split(strings.TrimSpace(stderr), "\n") {
		m := vetLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		lineNo, _ := strconv.Atoi(m[2])
		col, _ := strconv.Atoi(m[3])
		findings = append(findings, Finding{
			File:     m[1],
			Line:     lineNo,
			Column:   col,
			Severity: "error",
			Message:  m[4],
			Source:   "go vet",
		})
	}
	return findings
}

var tscLineRe = regexp.MustCompile(`^(.+?)\((\d+),(\d+)\): (error|warning) (TS\d+): (.+)$`)

func parseTsc(output string) []Finding {
	var findings []Finding
	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		m := tscLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		lineNo, _ := strconv.Atoi(m[2])
		col, _ := strconv.Atoi(m[3])
		findings = append(findings, Finding{
			File:     m[1],
			Line:     lineNo,
			Column:   col,
			Severity: m[4],
			Message:  m[6],
			Rule:     m[5],
			Source:   "tsc",
		})
	}
	return findings
}

// parseCargo reads cargo's JSON-lines stream and keeps compiler
// messages that carry at least one span.
func parseCargo(stdout string) []Finding {
	var findings []Finding
	for _, line := range strings.Split(strings.TrimSpace(stdout), "\n") {
		var msg struct {
			Reason  string `json:"reason"`
			Message struct {
				Level   string `json:"level"`
				Message string `json:"message"`
				Code    *struct {
					Code string `json:"code"`
				} `json:"code"`
				Spans []struct {
					FileName    string `json:"file_name"`
					LineStart   int    `json:"line_start"`
					ColumnStart int    `json:"column_start"`
				} `json:"spans"`
			} `json:"message"`
		}
		if err := json.Unmarshal([]byte(line), &msg); err != nil {
			continue
		}
		if msg.Reason != "compiler-message" || len(msg.Message.Spans) == 0 {
			continue
		}
		rule := ""
		if msg.Message.Code != nil {
			rule = msg.Message.Code.Code
		}
		span := msg.Message.Spans[0]
		findings = append(findings, Finding{
			File:     span.FileName,
			Line:     span.LineStart,
			Column:   span.ColumnStart,
			Severity: msg.Message.Level,
			Message:  msg.Message.Message,
			Rule:     rule,
			Source:   "cargo",
		})
	}
	return findings
}
