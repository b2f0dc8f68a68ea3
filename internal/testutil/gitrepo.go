// Package testutil provides synthetic git repository fixtures for tests.
package testutil

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

// Git runs a git command in dir, failing the test on error.
func Git(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %v failed: %v\n%s", args, err, out)
	}
	return string(out)
}

// InitRepo initializes a git repository with test identity configured.
func InitRepo(t *testing.T, dir string) {
	t.Helper()
	Git(t, dir, "init")
	Git(t, dir, "config", "user.email", "test@test.invalid")
	Git(t, dir, "config", "user.name", "Test")
	Git(t, dir, "config", "commit.gpgsign", "false")
}

// WriteFile writes content to a path relative to dir, creating parents.
func WriteFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	WriteFileBytes(t, dir, rel, []byte(content))
}

// WriteFileBytes writes raw bytes to a path relative to dir.
func WriteFileBytes(t *testing.T, dir, rel string, content []byte) {
	t.Helper()
	full := filepath.Join(dir, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		t.Fatalf("mkdir for %s: %v", rel, err)
	}
	if err := os.WriteFile(full, content, 0644); err != nil {
		t.Fatalf("write %s: %v", rel, err)
	}
}

// CommitAll stages everything and commits.
func CommitAll(t *testing.T, dir, message string) {
	t.Helper()
	Git(t, dir, "add", "-A")
	Git(t, dir, "commit", "-m", message)
}

// HeadCommit returns the current HEAD commit id.
func HeadCommit(t *testing.T, dir string) string {
	t.Helper()
	out := Git(t, dir, "rev-parse", "HEAD")
	return out[:len(out)-1]
}

// RequireGit skips the test when git is not installed.
func RequireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
}
