package diff

import (
	"testing"

	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/stretchr/testify/assert"
)

func TestDoRoundTripsSrcDst(t *testing.T) {
	cases := []struct{ src, dst string }{
		{"", ""},
		{"a\nb\nc\n", "a\nb\nc\n"},
		{"a\nbbbbb\n\tccc\ndd\n\tfffffffff\n", "bbbbb\n\tccc\n\tDD\n\tffff\n"},
	}
	for _, c := range cases {
		diffs := Do(c.src, c.dst)
		assert.Equal(t, c.src, Src(diffs))
		assert.Equal(t, c.dst, Dst(diffs))
	}
}

func TestDoDetectsInsertDeleteModify(t *testing.T) {
	diffs := Do("abc\nbcd\ncde", "000\nabc\n111\nBCD\n")
	require := assert.New(t)
	require.Equal("abc\nbcd\ncde", Src(diffs))
	require.Equal("000\nabc\n111\nBCD\n", Dst(diffs))

	var sawInsert, sawDelete, sawEqual bool
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			sawInsert = true
		case diffmatchpatch.DiffDelete:
			sawDelete = true
		case diffmatchpatch.DiffEqual:
			sawEqual = true
		}
	}
	assert.True(t, sawInsert)
	assert.True(t, sawDelete)
	assert.True(t, sawEqual)
}

func TestHistogramProducesFewerOrEqualHunks(t *testing.T) {
	src := "a\nb\nc\nd\ne\n"
	dst := "a\nb\nX\nd\ne\n"
	plain := Do(src, dst)
	hist := Histogram(src, dst)
	assert.Equal(t, src, Src(hist))
	assert.Equal(t, dst, Dst(hist))
	assert.LessOrEqual(t, len(hist), len(plain))
}
