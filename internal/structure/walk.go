package structure

import (
	"context"
	"io/fs"
	"path/filepath"

	"intermap/internal/ignore"
)

// SummarizeProject walks the project rooted at root and outlines every
// supported source file not excluded by matcher. At most maxResults files
// are returned; zero or negative means unlimited. Files that fail to read
// or parse are skipped rather than failing the walk.
func (e *Extractor) SummarizeProject(ctx context.Context, root string, matcher *ignore.Matcher, maxResults int) ([]*FileSummary, error) {
	var summaries []*FileSummary

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if path == root {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if matcher != nil && matcher.Ignored(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if DetectLanguage(path) == LangUnknown {
			return nil
		}

		summary, err := e.Summarize(ctx, path)
		if err != nil {
			return nil
		}
		summary.Path = rel
		summaries = append(summaries, summary)

		if maxResults > 0 && len(summaries) >= maxResults {
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return summaries, nil
}
