// Package crossproject detects dependencies between sibling projects in a
// monorepo: go.mod replace directives, pyproject path dependencies, and
// plugin manifest references.
package crossproject

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"intermap/internal/gitio"
)

// Dependency is one edge from a project to a sibling it depends on.
type Dependency struct {
	Project string `json:"project"`
	Type    string `json:"type"` // "go_module", "python_path", "plugin_ref"
	Via     string `json:"via"`
}

// Project is a discovered repository with its outgoing edges.
type Project struct {
	Name      string       `json:"project"`
	Path      string       `json:"path"`
	Group     string       `json:"-"`
	DependsOn []Dependency `json:"depends_on"`
}

// Graph is the dependency structure of a monorepo root.
type Graph struct {
	Root          string    `json:"root"`
	Projects      []Project `json:"projects"`
	TotalProjects int       `json:"total_projects"`
	TotalEdges    int       `json:"total_edges"`
}

// Scan walks a monorepo root and builds its cross-project dependency graph.
func Scan(root string) *Graph {
	projects := discoverProjects(root)

	// First discovery wins when two groups contain a same-named project.
	lookup := map[string]string{}
	for _, p := range projects {
		if _, ok := lookup[p.Name]; !ok {
			lookup[p.Name] = p.Path
		}
	}

	graph := &Graph{Root: root, Projects: []Project{}}
	for _, proj := range projects {
		var deps []Dependency
		deps = append(deps, scanGoDeps(proj.Path, lookup)...)
		deps = append(deps, scanPythonDeps(proj.Path, lookup)...)
		deps = append(deps, scanPluginDeps(proj.Path, lookup)...)

		seen := map[[2]string]struct{}{}
		unique := []Dependency{}
		for _, d := range deps {
			key := [2]string{d.Project, d.Type}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			unique = append(unique, d)
		}

		proj.DependsOn = unique
		graph.Projects = append(graph.Projects, proj)
		graph.TotalEdges += len(unique)
	}
	graph.TotalProjects = len(graph.Projects)
	return graph
}

// discoverProjects finds repositories two levels under root: every
// group/<name> directory carrying a .git marker.
func discoverProjects(root string) []Project {
	var projects []Project
	groups, err := os.ReadDir(root)
	if err != nil {
		return projects
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Name() < groups[j].Name() })

	for _, group := range groups {
		if !group.IsDir() || strings.HasPrefix(group.Name(), ".") {
			continue
		}
		groupPath := filepath.Join(root, group.Name())
		entries, err := os.ReadDir(groupPath)
		if err != nil {
			continue
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

		for _, entry := range entries {
			if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
				continue
			}
			projPath := filepath.Join(groupPath, entry.Name())
			if info, err := os.Stat(filepath.Join(projPath, ".git")); err != nil || !info.IsDir() {
				continue
			}
			projects = append(projects, Project{
				Name:  entry.Name(),
				Path:  projPath,
				Group: group.Name(),
			})
		}
	}
	return projects
}

// replaceRe matches replace targets in both single-line and block form,
// so the directive keyword itself is not anchored on.
var replaceRe = regexp.MustCompile(`\S+\s+=>\s+(\.\./\S+)`)

func scanGoDeps(projectPath string, lookup map[string]string) []Dependency {
	raw, err := os.ReadFile(filepath.Join(projectPath, "go.mod"))
	if err != nil {
		return nil
	}

	// Commented-out directives must not produce edges.
	var kept []string
	for _, line := range strings.Split(gitio.DecodeText(raw), "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "//") {
			continue
		}
		kept = append(kept, line)
	}

	var deps []Dependency
	for _, m := range replaceRe.FindAllStringSubmatch(strings.Join(kept, "\n"), -1) {
		rel := m[1]
		target := filepath.Base(filepath.Clean(filepath.Join(projectPath, rel)))
		if _, ok := lookup[target]; ok {
			deps = append(deps, Dependency{
				Project: target,
				Type:    "go_module",
				Via:     "replace => " + rel,
			})
		}
	}
	return deps
}

func scanPythonDeps(projectPath string, lookup map[string]string) []Dependency {
	raw, err := os.ReadFile(filepath.Join(projectPath, "pyproject.toml"))
	if err != nil {
		return nil
	}

	var deps []Dependency
	addDep := func(name, rel string) {
		target := filepath.Base(filepath.Clean(filepath.Join(projectPath, rel)))
		if _, ok := lookup[target]; ok {
			deps = append(deps, Dependency{
				Project: target,
				Type:    "python_path",
				Via:     name + " path=" + rel,
			})
		}
	}

	var doc map[string]any
	if err := toml.Unmarshal(raw, &doc); err != nil {
		// Malformed TOML still gets a line-level scan so a broken table
		// elsewhere in the file does not hide path dependencies.
		for _, m := range pathDepRe.FindAllStringSubmatch(gitio.DecodeText(raw), -1) {
			addDep(m[1], m[2])
		}
		return deps
	}

	walkPathDeps(doc, addDep)
	return deps
}

var pathDepRe = regexp.MustCompile(`(?m)^\s*([\w][\w.-]*)\s*=\s*\{[^}]*path\s*=\s*"([^"]+)"`)

// walkPathDeps visits every `name = {path = "..."}` table in the document,
// wherever the dependency section lives.
func walkPathDeps(node map[string]any, visit func(name, rel string)) {
	keys := make([]string, 0, len(node))
	for k := range node {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		child, ok := node[key].(map[string]any)
		if !ok {
			continue
		}
		if rel, ok := child["path"].(string); ok {
			visit(key, rel)
			continue
		}
		walkPathDeps(child, visit)
	}
}

type pluginManifest struct {
	MCPServers map[string]struct {
		Env map[string]string `json:"env"`
	} `json:"mcpServers"`
}

// scanPluginDeps emits edges only for explicit well-known env patterns;
// generic substring matching over manifests produced false positives.
func scanPluginDeps(projectPath string, lookup map[string]string) []Dependency {
	var deps []Dependency
	for _, rel := range []string{"plugin.json", filepath.Join(".claude-plugin", "plugin.json")} {
		raw, err := os.ReadFile(filepath.Join(projectPath, rel))
		if err != nil {
			continue
		}
		var manifest pluginManifest
		if err := json.Unmarshal(raw, &manifest); err != nil {
			continue
		}
		for _, srv := range manifest.MCPServers {
			keys := make([]string, 0, len(srv.Env))
			for k := range srv.Env {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, key := range keys {
				if strings.Contains(strings.ToUpper(key), "INTERMUTE") {
					if _, ok := lookup["intermute"]; ok {
						deps = append(deps, Dependency{
							Project: "intermute",
							Type:    "plugin_ref",
							Via:     "env." + key,
						})
					}
				}
			}
		}
	}
	return deps
}
