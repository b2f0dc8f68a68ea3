package crossproject

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func addProject(t *testing.T, root, group, name string) string {
	t.Helper()
	path := filepath.Join(root, group, name)
	if err := os.MkdirAll(filepath.Join(path, ".git"), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func projectByName(t *testing.T, g *Graph, name string) Project {
	t.Helper()
	for _, p := range g.Projects {
		if p.Name == name {
			return p
		}
	}
	t.Fatalf("project %s not found in %+v", name, g.Projects)
	return Project{}
}

func TestScanDiscoversGitProjects(t *testing.T) {
	root := t.TempDir()
	addProject(t, root, "tools", "alpha")
	addProject(t, root, "tools", "beta")

	// No .git marker, must not be discovered.
	if err := os.MkdirAll(filepath.Join(root, "tools", "scratch"), 0o755); err != nil {
		t.Fatal(err)
	}
	// Hidden groups are skipped.
	addProject(t, root, ".cache", "ghost")

	g := Scan(root)
	if g.TotalProjects != 2 {
		t.Fatalf("TotalProjects = %d, want 2: %+v", g.TotalProjects, g.Projects)
	}
	for _, p := range g.Projects {
		if p.Name == "scratch" || p.Name == "ghost" {
			t.Errorf("unexpected project discovered: %+v", p)
		}
	}
}

func TestScanGoReplaceEdges(t *testing.T) {
	root := t.TempDir()
	alpha := addProject(t, root, "tools", "alpha")
	addProject(t, root, "tools", "beta")

	writeFile(t, alpha, "go.mod", `module example.com/alpha

go 1.24

require example.com/beta v0.0.0

replace (
	example.com/beta => ../beta
)

// replace example.com/gone => ../gone
`)

	g := Scan(root)
	deps := projectByName(t, g, "alpha").DependsOn
	if len(deps) != 1 {
		t.Fatalf("deps = %+v, want one go_module edge", deps)
	}
	if deps[0].Project != "beta" || deps[0].Type != "go_module" {
		t.Errorf("unexpected edge: %+v", deps[0])
	}
	if g.TotalEdges != 1 {
		t.Errorf("TotalEdges = %d, want 1", g.TotalEdges)
	}
}

func TestScanIgnoresCommentedReplace(t *testing.T) {
	root := t.TempDir()
	alpha := addProject(t, root, "tools", "alpha")
	addProject(t, root, "tools", "beta")

	writeFile(t, alpha, "go.mod", `module example.com/alpha

// replace example.com/beta => ../beta
`)

	g := Scan(root)
	if deps := projectByName(t, g, "alpha").DependsOn; len(deps) != 0 {
		t.Errorf("commented replace should not create edges: %+v", deps)
	}
}

func TestScanPythonPathDeps(t *testing.T) {
	root := t.TempDir()
	svc := addProject(t, root, "services", "svc")
	addProject(t, root, "libs", "shared-lib")

	writeFile(t, svc, "pyproject.toml", `[project]
name = "svc"

[tool.poetry.dependencies]
requests = "^2.0"
shared-lib = {path = "../../libs/shared-lib"}
`)

	g := Scan(root)
	deps := projectByName(t, g, "svc").DependsOn
	if len(deps) != 1 {
		t.Fatalf("deps = %+v, want one python_path edge", deps)
	}
	if deps[0].Project != "shared-lib" || deps[0].Type != "python_path" {
		t.Errorf("unexpected edge: %+v", deps[0])
	}
}

func TestScanPythonPathDepsMalformedTOML(t *testing.T) {
	root := t.TempDir()
	svc := addProject(t, root, "services", "svc")
	addProject(t, root, "libs", "shared-lib")

	// Broken table header later in the file; the path dependency line
	// itself is still recoverable.
	writeFile(t, svc, "pyproject.toml", `[tool.poetry.dependencies]
shared-lib = {path = "../../libs/shared-lib"}

[broken
`)

	g := Scan(root)
	deps := projectByName(t, g, "svc").DependsOn
	if len(deps) != 1 {
		t.Fatalf("deps = %+v, want one python_path edge", deps)
	}
	if deps[0].Project != "shared-lib" {
		t.Errorf("unexpected edge: %+v", deps[0])
	}
}

func TestScanPluginEnvReferences(t *testing.T) {
	root := t.TempDir()
	plugin := addProject(t, root, "plugins", "helper")
	addProject(t, root, "services", "intermute")

	writeFile(t, plugin, "plugin.json", `{
  "mcpServers": {
    "helper": {
      "env": {
        "INTERMUTE_URL": "http://localhost:8080",
        "UNRELATED": "x"
      }
    }
  }
}`)

	g := Scan(root)
	deps := projectByName(t, g, "helper").DependsOn
	if len(deps) != 1 {
		t.Fatalf("deps = %+v, want one plugin_ref edge", deps)
	}
	if deps[0].Project != "intermute" || deps[0].Via != "env.INTERMUTE_URL" {
		t.Errorf("unexpected edge: %+v", deps[0])
	}
}

func TestScanDeduplicatesEdges(t *testing.T) {
	root := t.TempDir()
	alpha := addProject(t, root, "tools", "alpha")
	addProject(t, root, "tools", "beta")

	writeFile(t, alpha, "go.mod", `module example.com/alpha

replace example.com/beta => ../beta
replace example.com/beta/v2 => ../beta
`)

	g := Scan(root)
	deps := projectByName(t, g, "alpha").DependsOn
	if len(deps) != 1 {
		t.Errorf("duplicate (project, type) edges must collapse: %+v", deps)
	}
}

func TestScanMissingRoot(t *testing.T) {
	g := Scan(filepath.Join(t.TempDir(), "absent"))
	if g.TotalProjects != 0 || g.TotalEdges != 0 {
		t.Errorf("missing root should scan empty: %+v", g)
	}
}
