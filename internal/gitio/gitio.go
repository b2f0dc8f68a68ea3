// Package gitio runs the git subprocess primitives intermap needs:
// change listings, unified diffs, revision resolution, and historical
// file content retrieval.
package gitio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// DefaultTimeout bounds a single git invocation.
const DefaultTimeout = 10 * time.Second

// Git executes git commands against a working copy with a per-call timeout.
type Git struct {
	timeout time.Duration
}

// New creates a Git runner. A non-positive timeout falls back to DefaultTimeout.
func New(timeout time.Duration) *Git {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Git{timeout: timeout}
}

// RunError describes a failed git invocation with enough context to log.
type RunError struct {
	Args     []string
	ExitCode int // -1 when the process did not run or was killed
	Stderr   string
	Err      error
}

func (e *RunError) Error() string {
	if e.ExitCode >= 0 {
		return fmt.Sprintf("git %s: exit %d: %s", strings.Join(e.Args, " "), e.ExitCode, e.Stderr)
	}
	return fmt.Sprintf("git %s: %v", strings.Join(e.Args, " "), e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }

// IsTimeout reports whether the invocation was killed by its deadline.
func (e *RunError) IsTimeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// run executes git with the configured timeout. On non-zero exit or any
// other failure it returns a *RunError; partial stdout is still returned.
func (g *Git) run(dir string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), g.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return stdout.Bytes(), nil
	}

	runErr := &RunError{
		Args:     args,
		ExitCode: -1,
		Stderr:   stderr.String(),
		Err:      err,
	}
	if ctx.Err() != nil {
		runErr.Err = ctx.Err()
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && ctx.Err() == nil {
		runErr.ExitCode = exitErr.ExitCode()
	}
	return stdout.Bytes(), runErr
}

// DiffNameStatus returns `git diff --name-status <baseline>` output.
func (g *Git) DiffNameStatus(project, baseline string) (string, error) {
	out, err := g.run(project, "diff", "--name-status", baseline)
	return DecodeText(out), err
}

// DiffUnified returns `git diff <baseline>` output with default context.
func (g *Git) DiffUnified(project, baseline string) (string, error) {
	out, err := g.run(project, "diff", baseline)
	return DecodeText(out), err
}

// DiffUnifiedZero returns `git diff --unified=0 <baseline>` output.
func (g *Git) DiffUnifiedZero(project, baseline string) (string, error) {
	out, err := g.run(project, "diff", "--unified=0", baseline)
	return DecodeText(out), err
}

// DiffPatchWithRaw returns the combined raw+patch diff used by the
// single-pass parser: `git diff --patch-with-raw --unified=0 <baseline>`.
func (g *Git) DiffPatchWithRaw(project, baseline string) (string, error) {
	out, err := g.run(project, "diff", "--patch-with-raw", "--unified=0", baseline)
	return DecodeText(out), err
}

// ResolveCommit resolves any revision expression (branch, tag, HEAD~1, or a
// hex-looking token that may itself be a branch name) to the immutable commit
// id it currently points to.
func (g *Git) ResolveCommit(project, ref string) (string, error) {
	out, err := g.run(project, "rev-parse", ref+"^{commit}")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// ShowFile returns the content of path as of the given revision.
func (g *Git) ShowFile(project, revision, path string) ([]byte, error) {
	return g.run(project, "show", revision+":"+path)
}

// IsWorkTree reports whether dir is inside a git working copy.
func (g *Git) IsWorkTree(dir string) bool {
	_, err := g.run(dir, "rev-parse", "--git-dir")
	return err == nil
}

// RepoRoot finds the repository root from the given directory.
func (g *Git) RepoRoot(dir string) (string, error) {
	out, err := g.run(dir, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// DecodeText converts raw subprocess output to a string, substituting any
// invalid UTF-8 so binary or foreign-encoded content never aborts parsing.
func DecodeText(b []byte) string {
	return strings.ToValidUTF8(string(b), "�")
}

// TruncateStderr trims stderr for log payloads.
func TruncateStderr(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 500 {
		return s[:500]
	}
	return s
}
