// Package diffsummary turns unified diff text into per-file line
// statistics for reporting. It parses arbitrary diff input, including
// diffs produced outside this tool.
package diffsummary

import (
	"fmt"
	"strings"

	godiff "github.com/sourcegraph/go-diff/diff"
)

// FileStat summarizes one file's changes in a diff.
type FileStat struct {
	Path     string `json:"path"`
	OldPath  string `json:"old_path,omitempty"`
	Added    int    `json:"added"`
	Removed  int    `json:"removed"`
	Hunks    int    `json:"hunks"`
	IsNew    bool   `json:"is_new,omitempty"`
	Deleted  bool   `json:"deleted,omitempty"`
	Renamed  bool   `json:"renamed,omitempty"`
	IsBinary bool   `json:"is_binary,omitempty"`
}

// Summary aggregates diff statistics across all files.
type Summary struct {
	Files        []FileStat `json:"files"`
	TotalFiles   int        `json:"total_files"`
	TotalAdded   int        `json:"total_added"`
	TotalRemoved int        `json:"total_removed"`
}

// Parse builds a Summary from unified diff text.
func Parse(diffContent string) (*Summary, error) {
	summary := &Summary{Files: []FileStat{}}
	if strings.TrimSpace(diffContent) == "" {
		return summary, nil
	}

	fileDiffs, err := godiff.ParseMultiFileDiff([]byte(diffContent))
	if err != nil {
		return nil, fmt.Errorf("parse diff: %w", err)
	}

	for _, fd := range fileDiffs {
		stat := fileStat(fd)
		summary.Files = append(summary.Files, stat)
		summary.TotalAdded += stat.Added
		summary.TotalRemoved += stat.Removed
	}
	summary.TotalFiles = len(summary.Files)
	return summary, nil
}

func fileStat(fd *godiff.FileDiff) FileStat {
	oldPath := cleanPath(fd.OrigName)
	newPath := cleanPath(fd.NewName)

	stat := FileStat{Path: newPath, Hunks: len(fd.Hunks)}
	switch {
	case oldPath == "" && newPath != "":
		stat.IsNew = true
	case newPath == "" && oldPath != "":
		stat.Deleted = true
		stat.Path = oldPath
	case oldPath != newPath:
		stat.Renamed = true
		stat.OldPath = oldPath
	}

	if len(fd.Hunks) == 0 && len(fd.Extended) > 0 {
		for _, ext := range fd.Extended {
			if strings.HasPrefix(ext, "Binary files ") || strings.HasPrefix(ext, "GIT binary patch") {
				stat.IsBinary = true
				break
			}
		}
	}

	for _, hunk := range fd.Hunks {
		added, removed := countHunkLines(hunk.Body)
		stat.Added += added
		stat.Removed += removed
	}
	return stat
}

func countHunkLines(body []byte) (added, removed int) {
	for _, line := range strings.Split(string(body), "\n") {
		if len(line) == 0 {
			continue
		}
		switch line[0] {
		case '+':
			added++
		case '-':
			removed++
		}
	}
	return added, removed
}

// cleanPath strips the a/ and b/ prefixes git puts on diff paths and
// normalizes /dev/null to empty.
func cleanPath(path string) string {
	if path == "" || path == "/dev/null" {
		return ""
	}
	if strings.HasPrefix(path, "a/") || strings.HasPrefix(path, "b/") {
		return path[2:]
	}
	return path
}
