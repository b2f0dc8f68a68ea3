// Package patterns detects architectural patterns in a project by scanning
// source files for registration idioms: HTTP routes, MCP tools, middleware
// chains, interfaces, and CLI command definitions.
package patterns

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"intermap/internal/gitio"
	"intermap/internal/ignore"
)

// Pattern is one detected architectural pattern occurrence.
type Pattern struct {
	Type        string  `json:"type"`
	Location    string  `json:"location"`
	Confidence  float64 `json:"confidence"`
	Description string  `json:"description"`
}

// Report is the result of scanning one project.
type Report struct {
	Project       string    `json:"project"`
	Language      string    `json:"language"`
	Patterns      []Pattern `json:"patterns"`
	TotalPatterns int       `json:"total_patterns"`
}

// Detector scans projects for architectural patterns.
type Detector struct {
	matcher *ignore.Matcher
}

// NewDetector builds a Detector honoring the project's ignore rules.
func NewDetector(root string) (*Detector, error) {
	matcher, err := ignore.NewMatcher(root, false)
	if err != nil {
		return nil, err
	}
	return &Detector{matcher: matcher}, nil
}

// Detect scans the project for patterns. The language hint "auto" infers
// the primary language from build manifests at the root.
func (d *Detector) Detect(root, language string) (*Report, error) {
	if language == "" || language == "auto" {
		language = DetectLanguage(root)
	}

	report := &Report{Project: root, Language: language, Patterns: []Pattern{}}

	var scanErr error
	switch language {
	case "go":
		scanErr = d.scan(root, ".go", goDetectors, report)
	case "python":
		scanErr = d.scan(root, ".py", pythonDetectors, report)
	}
	if scanErr != nil {
		return nil, scanErr
	}

	report.Patterns = append(report.Patterns, detectPluginPatterns(root)...)
	report.TotalPatterns = len(report.Patterns)
	return report, nil
}

// DetectLanguage infers the project's primary language from the build
// manifest at its root.
func DetectLanguage(root string) string {
	checks := []struct {
		file string
		lang string
	}{
		{"go.mod", "go"},
		{"pyproject.toml", "python"},
		{"package.json", "typescript"},
	}
	for _, c := range checks {
		if _, err := os.Stat(filepath.Join(root, c.file)); err == nil {
			return c.lang
		}
	}
	return "unknown"
}

// detector matches one pattern type within a single file's content.
type detector func(rel, content string) *Pattern

func (d *Detector) scan(root, ext string, detectors []detector, report *Report) error {
	return filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if d.matcher.Ignored(rel) {
			if entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if entry.IsDir() || !strings.HasSuffix(path, ext) {
			return nil
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		content := gitio.DecodeText(raw)
		for _, detect := range detectors {
			if p := detect(rel, content); p != nil {
				report.Patterns = append(report.Patterns, *p)
			}
		}
		return nil
	})
}

var (
	// Route registrations need a router-like receiver so bare method
	// names in unrelated code do not count.
	goRouteRe = regexp.MustCompile(`(?:r|router|mux|app|srv|server|e|g|api)\.(?:HandleFunc|Handle|Get|Post|Put|Delete)\s*\(\s*"([^"]+)"`)
	goToolRe  = regexp.MustCompile(`mcp\.NewTool\s*\(\s*"([^"]+)"`)
	goIfaceRe = regexp.MustCompile(`type\s+(\w+)\s+interface\s*\{`)
	goMidRe   = regexp.MustCompile(`func\s+\w+Middleware|\.Use\(|next\.ServeHTTP`)
	goCobraRe = regexp.MustCompile(`(?s)&cobra\.Command\s*\{[^}]*Use:\s*"([^"]+)"`)

	// Decorator arguments may be named, so the argument list is matched
	// non-greedily rather than assuming it is empty.
	pyToolRe  = regexp.MustCompile(`@\w+\.tool\s*\([^)]*\)\s*\n\s*(?:async\s+)?def\s+(\w+)`)
	pyClickRe = regexp.MustCompile(`@\w+\.command\s*\([^)]*\)\s*\n\s*def\s+(\w+)`)
)

var goDetectors = []detector{
	func(rel, content string) *Pattern {
		routes := captures(goRouteRe, content)
		if len(routes) < 2 {
			return nil
		}
		confidence := 0.5 + float64(len(routes))*0.1
		if confidence > 0.9 {
			confidence = 0.9
		}
		return &Pattern{
			Type:        "http_handlers",
			Location:    rel,
			Confidence:  confidence,
			Description: fmt.Sprintf("%d HTTP routes registered", len(routes)),
		}
	},
	func(rel, content string) *Pattern {
		tools := captures(goToolRe, content)
		if len(tools) == 0 {
			return nil
		}
		return &Pattern{
			Type:        "mcp_tools",
			Location:    rel,
			Confidence:  0.95,
			Description: fmt.Sprintf("%d MCP tools: %s", len(tools), joinHead(tools, 5)),
		}
	},
	func(rel, content string) *Pattern {
		ifaces := captures(goIfaceRe, content)
		if len(ifaces) == 0 {
			return nil
		}
		return &Pattern{
			Type:        "interface_impl",
			Location:    rel,
			Confidence:  0.85,
			Description: "Interfaces: " + joinHead(ifaces, 5),
		}
	},
	func(rel, content string) *Pattern {
		if !goMidRe.MatchString(content) {
			return nil
		}
		return &Pattern{
			Type:        "middleware_stack",
			Location:    rel,
			Confidence:  0.8,
			Description: "HTTP middleware chain detected",
		}
	},
	func(rel, content string) *Pattern {
		cmds := captures(goCobraRe, content)
		if len(cmds) == 0 {
			return nil
		}
		return &Pattern{
			Type:        "cli_commands",
			Location:    rel,
			Confidence:  0.9,
			Description: "Cobra commands: " + joinHead(cmds, 5),
		}
	},
}

var pythonDetectors = []detector{
	func(rel, content string) *Pattern {
		tools := captures(pyToolRe, content)
		if len(tools) == 0 {
			return nil
		}
		return &Pattern{
			Type:        "mcp_tools",
			Location:    rel,
			Confidence:  0.95,
			Description: fmt.Sprintf("%d FastMCP tools: %s", len(tools), joinHead(tools, 5)),
		}
	},
	func(rel, content string) *Pattern {
		cmds := captures(pyClickRe, content)
		if len(cmds) == 0 {
			return nil
		}
		return &Pattern{
			Type:        "cli_commands",
			Location:    rel,
			Confidence:  0.9,
			Description: "Click commands: " + joinHead(cmds, 5),
		}
	},
}

// detectPluginPatterns recognizes editor-plugin layouts regardless of
// language: skill directories and hook registration manifests.
func detectPluginPatterns(root string) []Pattern {
	var patterns []Pattern

	skillsDir := filepath.Join(root, "skills")
	if entries, err := os.ReadDir(skillsDir); err == nil {
		total := 0
		for _, e := range entries {
			if e.IsDir() || strings.HasSuffix(e.Name(), ".md") {
				total++
			}
		}
		if total > 0 {
			patterns = append(patterns, Pattern{
				Type:        "plugin_skills",
				Location:    "skills/",
				Confidence:  0.95,
				Description: fmt.Sprintf("%d skills detected", total),
			})
		}
	}

	if _, err := os.Stat(filepath.Join(root, "hooks", "hooks.json")); err == nil {
		patterns = append(patterns, Pattern{
			Type:        "plugin_hooks",
			Location:    "hooks/hooks.json",
			Confidence:  0.95,
			Description: "Hook registrations detected",
		})
	}
	return patterns
}

func captures(re *regexp.Regexp, content string) []string {
	matches := re.FindAllStringSubmatch(content, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m[1])
	}
	return out
}

func joinHead(items []string, n int) string {
	if len(items) > n {
		items = items[:n]
	}
	return strings.Join(items, ", ")
}
