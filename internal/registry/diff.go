package registry

import "strings"

// changedSpan computes the 1-based inclusive line range that differs
// between old and new content. It trims the common prefix and suffix of
// the two line slices; everything in between counts as changed. Returns
// changed=false when the contents are identical.
//
// Line insertions and deletions widen the span to cover every shifted
// line, which errs toward rejecting an edit rather than letting one slip
// past a held lock.
func changedSpan(oldContent, newContent string) (start, end int, changed bool) {
	if oldContent == newContent {
		return 0, 0, false
	}

	oldLines := strings.Split(oldContent, "\n")
	newLines := strings.Split(newContent, "\n")

	shorter := min(len(oldLines), len(newLines))

	prefix := 0
	for prefix < shorter && oldLines[prefix] == newLines[prefix] {
		prefix++
	}

	suffix := 0
	for suffix < shorter-prefix &&
		oldLines[len(oldLines)-1-suffix] == newLines[len(newLines)-1-suffix] {
		suffix++
	}

	start = prefix + 1
	end = max(len(oldLines), len(newLines)) - suffix
	if end < start {
		end = start
	}
	return start, end, true
}
