package diff

import (
	"bytes"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Do computes a line-granularity diff between src and dst. Both strings are
// first tokenized into synthetic runes (one per distinct line) so the Myers
// algorithm operates over lines instead of characters, then the result is
// expanded back into the original line text.
func Do(src, dst string) []diffmatchpatch.Diff {
	dmp := diffmatchpatch.New()
	wSrc, wDst, lines := dmp.DiffLinesToRunes(src, dst)
	diffs := dmp.DiffMainRunes(wSrc, wDst, false)
	diffs = dmp.DiffCharsToLines(diffs, lines)
	return diffs
}

// Src reconstructs the source text implied by diffs (DiffInsert segments
// dropped).
func Src(diffs []diffmatchpatch.Diff) string {
	var buf bytes.Buffer
	for _, d := range diffs {
		if d.Type != diffmatchpatch.DiffInsert {
			buf.WriteString(d.Text)
		}
	}
	return buf.String()
}

// Dst reconstructs the destination text implied by diffs (DiffDelete
// segments dropped).
func Dst(diffs []diffmatchpatch.Diff) string {
	var buf bytes.Buffer
	for _, d := range diffs {
		if d.Type != diffmatchpatch.DiffDelete {
			buf.WriteString(d.Text)
		}
	}
	return buf.String()
}

// Histogram computes a line diff the same way as Do but additionally runs
// semantic cleanup, trading a little precision for hunks that align closer
// to how a human would group the change (git's "histogram"-style output:
// fewer, larger, more readable hunks rather than the raw Myers minimum).
func Histogram(src, dst string) []diffmatchpatch.Diff {
	dmp := diffmatchpatch.New()
	wSrc, wDst, lines := dmp.DiffLinesToRunes(src, dst)
	diffs := dmp.DiffMainRunes(wSrc, wDst, false)
	diffs = dmp.DiffCharsToLines(diffs, lines)
	diffs = dmp.DiffCleanupSemantic(diffs)
	return diffs
}
