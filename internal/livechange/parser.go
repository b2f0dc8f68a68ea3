package livechange

import (
	"errors"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"intermap/internal/gitio"
)

// strategy is one of the two diff-parsing implementations. Both must agree
// on the (file, status) pairs and per-file hunk lists they produce for the
// same repository state; parserConformance_test guards that equivalence.
type strategy interface {
	Mode() Mode
	Parse(project, baseline string) []*ChangeRecord
}

func newStrategy(mode Mode, git GitClient, logger *slog.Logger) strategy {
	if mode == ModeLegacy {
		return &legacyStrategy{git: git, logger: logger}
	}
	return &optimizedStrategy{git: git, logger: logger}
}

// changeSet accumulates records keyed by path in first-seen order.
type changeSet struct {
	byFile map[string]*ChangeRecord
	order  []string
}

func newChangeSet() *changeSet {
	return &changeSet{byFile: map[string]*ChangeRecord{}}
}

func (s *changeSet) add(file string, status Status, oldFile string) {
	if _, ok := s.byFile[file]; !ok {
		s.order = append(s.order, file)
	}
	s.byFile[file] = &ChangeRecord{
		File:    file,
		Status:  status,
		Hunks:   []Hunk{},
		oldFile: oldFile,
	}
}

func (s *changeSet) records() []*ChangeRecord {
	out := make([]*ChangeRecord, 0, len(s.order))
	for _, f := range s.order {
		out = append(out, s.byFile[f])
	}
	return out
}

// legacyStrategy runs two git invocations: a name/status summary and a
// zero-context patch, merged by file path.
type legacyStrategy struct {
	git    GitClient
	logger *slog.Logger
}

func (p *legacyStrategy) Mode() Mode { return ModeLegacy }

func (p *legacyStrategy) Parse(project, baseline string) []*ChangeRecord {
	nameStatus, err := p.git.DiffNameStatus(project, baseline)
	if err != nil {
		logDiffFailure(p.logger, ModeLegacy, "name_status", project, baseline, err)
		return nil
	}

	set := newChangeSet()
	for _, line := range strings.Split(strings.TrimSpace(nameStatus), "\n") {
		if line == "" {
			continue
		}
		parts := strings.Split(line, "\t")
		if parts[0] == "" {
			continue
		}
		statusCode := parts[0][0]
		oldFile := ""
		var fname string
		if statusCode == 'R' && len(parts) >= 3 {
			oldFile = parts[1]
			fname = parts[2]
		} else {
			fname = parts[len(parts)-1]
		}
		set.add(fname, statusFromCode(statusCode), oldFile)
	}

	patch, err := p.git.DiffUnifiedZero(project, baseline)
	if err != nil {
		logDiffFailure(p.logger, ModeLegacy, "unified_0", project, baseline, err)
		return set.records()
	}

	applyPatch(set, patch)
	return set.records()
}

// optimizedStrategy parses a single combined raw+patch diff in one pass.
type optimizedStrategy struct {
	git    GitClient
	logger *slog.Logger
}

func (p *optimizedStrategy) Mode() Mode { return ModeOptimized }

func (p *optimizedStrategy) Parse(project, baseline string) []*ChangeRecord {
	output, err := p.git.DiffPatchWithRaw(project, baseline)
	if err != nil {
		logDiffFailure(p.logger, ModeOptimized, "patch_with_raw", project, baseline, err)
		return nil
	}

	set := newChangeSet()
	var current string

	for _, line := range strings.Split(output, "\n") {
		if strings.HasPrefix(line, ":") {
			current = ""
			parts := strings.Split(line, "\t")
			meta := strings.Fields(parts[0])
			if len(meta) == 0 {
				continue
			}
			statusToken := meta[len(meta)-1]
			statusCode := byte('M')
			if statusToken != "" {
				statusCode = statusToken[0]
			}
			oldFile := ""
			var fname string
			if statusCode == 'R' && len(parts) >= 3 {
				oldFile = parts[len(parts)-2]
				fname = parts[len(parts)-1]
			} else if len(parts) > 1 {
				fname = parts[len(parts)-1]
			}
			if fname == "" {
				continue
			}
			set.add(fname, statusFromCode(statusCode), oldFile)
			continue
		}

		current = applyPatchLine(set, line, current)
	}

	return set.records()
}

// applyPatch walks a zero-context patch attaching hunks to the files the
// headers introduce.
func applyPatch(set *changeSet, patch string) {
	var current string
	for _, line := range strings.Split(patch, "\n") {
		current = applyPatchLine(set, line, current)
	}
}

// applyPatchLine advances the patch state machine by one line and returns
// the file hunks should currently attach to. A `+++ b/` header switches
// files; a `--- a/` header only switches when it names a known deleted file
// (deleted files never get a `+++ b/` side). This keeps hunks after a
// deleted-file block from leaking onto the previously seen file.
func applyPatchLine(set *changeSet, line, current string) string {
	switch {
	case strings.HasPrefix(line, "--- a/"):
		candidate := line[6:]
		if rec, ok := set.byFile[candidate]; ok && rec.Status == StatusDeleted {
			return candidate
		}
		return current
	case strings.HasPrefix(line, "+++ b/"):
		return line[6:]
	case strings.HasPrefix(line, "+++ /dev/null"):
		return current
	case strings.HasPrefix(line, "@@ "):
		if current == "" {
			return current
		}
		rec, ok := set.byFile[current]
		if !ok {
			return current
		}
		if hunk, ok := parseHunkHeader(line); ok {
			rec.Hunks = append(rec.Hunks, hunk)
		}
	}
	return current
}

var (
	hunkOldRe = regexp.MustCompile(`-(\d+)(?:,(\d+))?`)
	hunkNewRe = regexp.MustCompile(`\+(\d+)(?:,(\d+))?`)
)

// parseHunkHeader extracts the old/new (start, count) pairs from a hunk
// header. An absent count defaults to 1; an absent old side defaults to
// (new_start, 1). Headers without a new side are skipped.
func parseHunkHeader(line string) (Hunk, bool) {
	newMatch := hunkNewRe.FindStringSubmatch(line)
	if newMatch == nil {
		return Hunk{}, false
	}

	newStart, _ := strconv.Atoi(newMatch[1])
	newCount := 1
	if newMatch[2] != "" {
		newCount, _ = strconv.Atoi(newMatch[2])
	}

	oldStart := newStart
	oldCount := 1
	if oldMatch := hunkOldRe.FindStringSubmatch(line); oldMatch != nil {
		oldStart, _ = strconv.Atoi(oldMatch[1])
		if oldMatch[2] != "" {
			oldCount, _ = strconv.Atoi(oldMatch[2])
		}
	}

	return Hunk{
		OldStart: oldStart,
		OldCount: oldCount,
		NewStart: newStart,
		NewCount: newCount,
	}, true
}

// logDiffFailure records a failed diff invocation with enough structured
// context to diagnose without crashing the caller.
func logDiffFailure(logger *slog.Logger, mode Mode, stage, project, baseline string, err error) {
	attrs := []any{
		"mode", string(mode),
		"stage", stage,
		"project_path", project,
		"baseline", baseline,
	}
	var runErr *gitio.RunError
	if errors.As(err, &runErr) && runErr.ExitCode >= 0 {
		attrs = append(attrs,
			"returncode", runErr.ExitCode,
			"stderr", gitio.TruncateStderr(runErr.Stderr))
	} else {
		attrs = append(attrs,
			"error_type", errType(err),
			"error_message", err.Error())
	}
	logger.Warn("live_changes.git_diff_failure", attrs...)
}

func errType(err error) string {
	var runErr *gitio.RunError
	if errors.As(err, &runErr) && runErr.IsTimeout() {
		return "timeout"
	}
	return "exec_error"
}
