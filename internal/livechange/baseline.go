package livechange

import (
	"context"
	"errors"
	"log/slog"

	"intermap/internal/gitio"
	"intermap/internal/symbols"
)

// baselineResolver retrieves symbol spans as of a baseline revision, for
// attributing pure deletions to symbols that no longer exist in the
// working tree.
type baselineResolver struct {
	git       GitClient
	extractor *symbols.Extractor
	cache     *spanCache[baselineKey]
	logger    *slog.Logger
}

// resolve converts a possibly-mutable reference to the immutable commit id
// it currently points to. A hex-looking token is still resolved: the same
// literal could be a branch name whose target can move. On failure the raw
// reference is returned and the degraded cache keying is accepted.
func (r *baselineResolver) resolve(project, ref string) string {
	resolved, err := r.git.ResolveCommit(project, ref)
	if err != nil {
		r.logger.Debug("live_changes.baseline_resolve_error",
			"project_path", project,
			"baseline", ref,
			"error_message", err.Error())
		return ref
	}
	if resolved == "" {
		return ref
	}
	return resolved
}

// symbolsAt extracts symbol spans from the file content at the resolved
// revision. Content comes from version control, never the filesystem: the
// working tree no longer has the old version. Failures yield an empty list.
func (r *baselineResolver) symbolsAt(ctx context.Context, project, identity, relPath string) []symbols.Span {
	if !symbols.IsSupported(relPath) {
		return nil
	}

	key := baselineKey{project: project, revision: identity, path: relPath}
	if spans, ok := r.cache.get(key); ok {
		return spans
	}

	content, err := r.git.ShowFile(project, identity, relPath)
	if err != nil {
		attrs := []any{
			"project_path", project,
			"baseline", identity,
			"file", relPath,
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
		r.logger.Debug("live_changes.baseline_symbol_extract_error", attrs...)
		return nil
	}

	spans, err := r.extractor.ExtractSource(ctx, []byte(gitio.DecodeText(content)))
	if err != nil {
		r.logger.Debug("live_changes.baseline_symbol_parse_error",
			"project_path", project,
			"baseline", identity,
			"file", relPath,
			"error_message", err.Error())
		return nil
	}

	r.cache.put(key, spans)
	return spans
}
