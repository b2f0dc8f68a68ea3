package livechange

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"intermap/internal/slogutil"
	"intermap/internal/structure"
	"intermap/internal/symbols"
)

// OutlineExtractor provides declaration-line symbols for files where span
// extraction yields nothing, and for all files in legacy mode.
type OutlineExtractor interface {
	Declarations(ctx context.Context, path string) ([]structure.Declaration, error)
}

// Options configures an Engine. Zero-valued cache limits get defaults;
// a nil Logger discards; a nil Outline uses the built-in multi-language
// structure extractor.
type Options struct {
	Git           GitClient
	Mode          Mode
	Logger        *slog.Logger
	Outline       OutlineExtractor
	SymbolCache   CacheLimits
	BaselineCache CacheLimits
}

// Engine detects uncommitted changes against a baseline revision and
// annotates each changed file with the symbols its hunks touch.
type Engine struct {
	git       GitClient
	mode      Mode
	parser    strategy
	extractor *symbols.Extractor
	outline   OutlineExtractor
	baseline  *baselineResolver
	symCache  *spanCache[fileKey]
	logger    *slog.Logger
}

const (
	defaultSymbolCacheEntries   = 2048
	defaultBaselineCacheEntries = 1024
	defaultCacheBytes           = 8 << 20
)

// New builds an Engine for the given mode.
func New(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slogutil.NewDiscardLogger()
	}
	if opts.SymbolCache.MaxEntries <= 0 {
		opts.SymbolCache.MaxEntries = defaultSymbolCacheEntries
	}
	if opts.SymbolCache.MaxBytes <= 0 {
		opts.SymbolCache.MaxBytes = defaultCacheBytes
	}
	if opts.BaselineCache.MaxEntries <= 0 {
		opts.BaselineCache.MaxEntries = defaultBaselineCacheEntries
	}
	if opts.BaselineCache.MaxBytes <= 0 {
		opts.BaselineCache.MaxBytes = defaultCacheBytes
	}

	mode := opts.Mode
	if mode != ModeLegacy {
		mode = ModeOptimized
	}

	outline := opts.Outline
	if outline == nil {
		outline = structure.NewExtractor()
	}

	extractor := symbols.NewExtractor()
	baseCache := newSpanCache[baselineKey](opts.BaselineCache)

	return &Engine{
		git:       opts.Git,
		mode:      mode,
		parser:    newStrategy(mode, opts.Git, logger),
		extractor: extractor,
		outline:   outline,
		baseline: &baselineResolver{
			git:       opts.Git,
			extractor: extractor,
			cache:     baseCache,
			logger:    logger,
		},
		symCache: newSpanCache[fileKey](opts.SymbolCache),
		logger:   logger,
	}
}

// Mode reports the diff strategy the engine was built with.
func (e *Engine) Mode() Mode { return e.mode }

// LiveChanges diffs the working tree of project against baseline and
// returns every changed file with its hunks and affected symbols. All
// failures degrade to empty results at the smallest scope they occur in;
// the call itself never fails.
func (e *Engine) LiveChanges(ctx context.Context, project, baseline string) *Result {
	records := e.parser.Parse(project, baseline)
	if records == nil {
		records = []*ChangeRecord{}
	}

	// The baseline identity is resolved at most once per call, and only
	// when a pure deletion actually needs old-side attribution.
	identity := ""
	identityDone := false
	resolveIdentity := func() string {
		if !identityDone {
			identity = e.baseline.resolve(project, baseline)
			identityDone = true
		}
		return identity
	}

	total := 0
	for _, rec := range records {
		rec.SymbolsAffected = []Symbol{}
		if rec.Status == StatusDeleted {
			continue
		}
		abs := filepath.Join(project, rec.File)
		if _, err := os.Stat(abs); err != nil {
			continue
		}

		if e.mode == ModeLegacy {
			rec.SymbolsAffected = e.legacyMatch(ctx, abs, project, baseline, rec.Hunks)
		} else {
			rec.SymbolsAffected = e.optimizedMatch(ctx, abs, project, baseline, resolveIdentity, rec)
		}
		total += len(rec.SymbolsAffected)
	}

	return &Result{
		Project:              project,
		Baseline:             baseline,
		Changes:              records,
		TotalFiles:           len(records),
		TotalSymbolsAffected: total,
	}
}

// optimizedMatch attributes a file's hunks to symbols via span overlap.
// Pure-deletion hunks have no new-side lines, so deleted symbols are
// recovered from the baseline version of the file. When span extraction
// yields nothing the match degrades to declaration-line containment with
// no baseline attribution.
func (e *Engine) optimizedMatch(ctx context.Context, abs, project, baseline string, resolveIdentity func() string, rec *ChangeRecord) []Symbol {
	spans := e.currentSpans(ctx, abs, project, baseline)
	if len(spans) == 0 {
		return e.fallbackMatch(ctx, abs, project, baseline, rec.Hunks)
	}

	ranges := newLineRanges(rec.Hunks)
	seen := map[Symbol]struct{}{}
	var matched []Symbol
	for _, sp := range spans {
		if !OverlapsAny(ranges, sp.Start, sp.End) {
			continue
		}
		sym := Symbol{Name: sp.Name, Kind: sp.Kind, Line: sp.Line}
		if _, ok := seen[sym]; ok {
			continue
		}
		seen[sym] = struct{}{}
		matched = append(matched, sym)
	}

	if delRanges := oldDeletionRanges(rec.Hunks); len(delRanges) > 0 {
		basePath := rec.File
		if rec.oldFile != "" {
			basePath = rec.oldFile
		}
		baseSpans := e.baseline.symbolsAt(ctx, project, resolveIdentity(), basePath)
		for _, sp := range baseSpans {
			if !OverlapsAny(delRanges, sp.Start, sp.End) {
				continue
			}
			sym := Symbol{Name: sp.Name, Kind: sp.Kind, Line: sp.Line}
			if _, ok := seen[sym]; ok {
				continue
			}
			seen[sym] = struct{}{}
			matched = append(matched, sym)
		}
	}

	return flattenSymbols(matched)
}

// fallbackMatch matches declaration lines against the new-side changed
// ranges. Used for files the span extractor cannot handle.
func (e *Engine) fallbackMatch(ctx context.Context, abs, project, baseline string, hunks []Hunk) []Symbol {
	decls := e.declarations(ctx, abs, project, baseline)
	ranges := newLineRanges(hunks)
	out := []Symbol{}
	for _, d := range decls {
		if ContainsLine(ranges, d.Line) {
			out = append(out, Symbol{Name: d.Name, Kind: d.Kind, Line: d.Line})
		}
	}
	return out
}

// legacyMatch matches declaration lines against the exact set of new-side
// changed line numbers.
func (e *Engine) legacyMatch(ctx context.Context, abs, project, baseline string, hunks []Hunk) []Symbol {
	decls := e.declarations(ctx, abs, project, baseline)
	lines := legacyChangedLines(hunks)
	out := []Symbol{}
	for _, d := range decls {
		if _, ok := lines[d.Line]; ok {
			out = append(out, Symbol{Name: d.Name, Kind: d.Kind, Line: d.Line})
		}
	}
	return out
}

func (e *Engine) declarations(ctx context.Context, abs, project, baseline string) []structure.Declaration {
	decls, err := e.outline.Declarations(ctx, abs)
	if err != nil {
		e.logger.Debug("live_changes.extractor_error",
			"file", abs,
			"project_path", project,
			"baseline", baseline,
			"error_type", "structure_error",
			"error_message", err.Error())
		return nil
	}
	return decls
}

// currentSpans extracts spans from the working-tree file, cached by the
// file's stat identity. A stat failure skips the cache entirely; a read
// failure yields an empty list without caching, since the content the key
// would describe was never observed.
func (e *Engine) currentSpans(ctx context.Context, abs, project, baseline string) []symbols.Span {
	if !symbols.IsSupported(abs) {
		return nil
	}

	key, statErr := fileIdentity(abs)
	if statErr == nil {
		if spans, ok := e.symCache.get(key); ok {
			return spans
		}
	}

	source, err := os.ReadFile(abs)
	if err != nil {
		e.logger.Debug("live_changes.extractor_error",
			"file", abs,
			"project_path", project,
			"baseline", baseline,
			"error_type", "read_error",
			"error_message", err.Error())
		return nil
	}

	spans, err := e.extractor.ExtractSource(ctx, source)
	if err != nil {
		e.logger.Debug("live_changes.extractor_error",
			"file", abs,
			"project_path", project,
			"baseline", baseline,
			"error_type", "parse_error",
			"error_message", err.Error())
		return nil
	}

	if statErr == nil {
		e.symCache.put(key, spans)
	}
	return spans
}

// flattenSymbols drops a class entry when one of its methods is also
// present: a change inside a method body is attributed to the method, not
// to the class that happens to span it.
func flattenSymbols(matched []Symbol) []Symbol {
	classesWithMethods := map[string]struct{}{}
	for _, s := range matched {
		if s.Kind != "method" {
			continue
		}
		if i := strings.Index(s.Name, "."); i > 0 {
			classesWithMethods[s.Name[:i]] = struct{}{}
		}
	}

	out := make([]Symbol, 0, len(matched))
	for _, s := range matched {
		if s.Kind == "class" {
			if _, ok := classesWithMethods[s.Name]; ok {
				continue
			}
		}
		out = append(out, s)
	}
	return out
}
