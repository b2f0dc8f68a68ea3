package livechange

import "sort"

// LineRange is an inclusive range of 1-based line numbers.
type LineRange struct {
	Start int
	End   int
}

// MergeRanges sorts ranges by start and merges overlapping or adjacent
// ones. The result is sorted, disjoint, and non-adjacent.
func MergeRanges(ranges []LineRange) []LineRange {
	if len(ranges) == 0 {
		return nil
	}
	ordered := make([]LineRange, len(ranges))
	copy(ordered, ranges)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Start != ordered[j].Start {
			return ordered[i].Start < ordered[j].Start
		}
		return ordered[i].End < ordered[j].End
	})

	merged := []LineRange{ordered[0]}
	for _, r := range ordered[1:] {
		last := &merged[len(merged)-1]
		if r.Start <= last.End+1 {
			if r.End > last.End {
				last.End = r.End
			}
		} else {
			merged = append(merged, r)
		}
	}
	return merged
}

// OverlapsAny reports whether [start, end] intersects any range
// (closed-interval test).
func OverlapsAny(ranges []LineRange, start, end int) bool {
	for _, r := range ranges {
		if r.Start <= end && start <= r.End {
			return true
		}
	}
	return false
}

// ContainsLine reports whether any range includes the given line.
func ContainsLine(ranges []LineRange, line int) bool {
	for _, r := range ranges {
		if r.Start <= line && line <= r.End {
			return true
		}
	}
	return false
}

// newLineRanges derives the new-side changed ranges from hunks.
// Pure deletions contribute nothing on the new side; they are handled via
// old-side baseline attribution in optimized mode.
func newLineRanges(hunks []Hunk) []LineRange {
	var ranges []LineRange
	for _, h := range hunks {
		if h.NewCount > 0 {
			ranges = append(ranges, LineRange{Start: h.NewStart, End: h.NewStart + h.NewCount - 1})
		}
	}
	return MergeRanges(ranges)
}

// oldDeletionRanges derives the old-side ranges of pure-deletion hunks.
func oldDeletionRanges(hunks []Hunk) []LineRange {
	var ranges []LineRange
	for _, h := range hunks {
		if h.NewCount != 0 {
			continue
		}
		count := h.OldCount
		if count < 1 {
			count = 1
		}
		ranges = append(ranges, LineRange{Start: h.OldStart, End: h.OldStart + count - 1})
	}
	return MergeRanges(ranges)
}

// legacyChangedLines expands hunks into the raw set of new-side line
// numbers used by legacy declaration-line matching.
func legacyChangedLines(hunks []Hunk) map[int]struct{} {
	lines := map[int]struct{}{}
	for _, h := range hunks {
		for i := 0; i < h.NewCount; i++ {
			lines[h.NewStart+i] = struct{}{}
		}
	}
	return lines
}
