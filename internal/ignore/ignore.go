// Package ignore decides which project files are excluded from scanning.
// Rules come from an .intermapignore file at the project root, optionally
// supplemented by .gitignore, on top of a built-in default set.
package ignore

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// IgnoreFileName is the project-local rule file.
const IgnoreFileName = ".intermapignore"

// defaultRules are always active. Build output and dependency trees
// dominate file counts in real projects and never contain project symbols.
var defaultRules = []string{
	".git/",
	".hg/",
	".svn/",
	"node_modules/",
	"vendor/",
	"dist/",
	"build/",
	"target/",
	"__pycache__/",
	"*.pyc",
	".venv/",
	"venv/",
	".intermap/",
	".idea/",
	".vscode/",
}

// Matcher answers whether a project-relative path is ignored.
type Matcher struct {
	patterns []string
	negated  []string
}

// NewMatcher loads rules for the project rooted at root. A missing rule
// file is not an error; the defaults still apply.
func NewMatcher(root string, includeGitignore bool) (*Matcher, error) {
	m := &Matcher{}
	for _, rule := range defaultRules {
		m.patterns = append(m.patterns, expandPattern(rule)...)
	}

	if err := m.loadFile(filepath.Join(root, IgnoreFileName)); err != nil {
		return nil, err
	}
	if includeGitignore {
		if err := m.loadFile(filepath.Join(root, ".gitignore")); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Matcher) loadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		negated := strings.HasPrefix(line, "!")
		if negated {
			line = strings.TrimSpace(line[1:])
			if line == "" {
				continue
			}
		}
		for _, p := range expandPattern(line) {
			if negated {
				m.negated = append(m.negated, p)
			} else {
				m.patterns = append(m.patterns, p)
			}
		}
	}
	return scanner.Err()
}

// expandPattern translates one gitignore-style line into doublestar globs.
// A pattern without an inner slash matches at any depth unless anchored
// with a leading slash; every pattern also covers the contents of any
// directory it names.
func expandPattern(line string) []string {
	line = filepath.ToSlash(line)
	anchored := strings.HasPrefix(line, "/")
	line = strings.TrimPrefix(line, "/")
	line = strings.TrimSuffix(line, "/")
	if line == "" {
		return nil
	}

	bases := []string{line}
	if !anchored && !strings.Contains(line, "/") {
		bases = append(bases, "**/"+line)
	}

	out := make([]string, 0, len(bases)*2)
	for _, base := range bases {
		out = append(out, base, base+"/**")
	}
	return out
}

// Ignored reports whether the project-relative path is excluded.
// Negated rules win over positive ones.
func (m *Matcher) Ignored(rel string) bool {
	normalized := filepath.ToSlash(rel)
	for _, g := range m.negated {
		if ok, err := doublestar.Match(g, normalized); err == nil && ok {
			return false
		}
	}
	for _, g := range m.patterns {
		if ok, err := doublestar.Match(g, normalized); err == nil && ok {
			return true
		}
	}
	return false
}

// WriteDefault writes a starter rule file at the project root unless one
// already exists. It returns true when a file was created.
func WriteDefault(root string) (bool, error) {
	path := filepath.Join(root, IgnoreFileName)
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, err
	}

	content := `# Paths excluded from intermap scanning, one glob per line.
# Lines starting with ! re-include a previously excluded path.
node_modules/
dist/
build/
*.min.js
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return false, err
	}
	return true, nil
}
