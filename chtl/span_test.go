package chtl

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSpan_IsZero(t *testing.T) {
	require.True(t, Span{}.IsZero())
	require.False(t, Span{Line: 1}.IsZero())
	require.False(t, Span{Offset: 4}.IsZero())
}

func TestSpan_End(t *testing.T) {
	s := Span{Offset: 10, Length: 5}
	require.Equal(t, 15, s.End())
}

func TestSynthetic_IsZero(t *testing.T) {
	require.True(t, Synthetic{}.IsZero())
	require.False(t, Synthetic{Reason: "template"}.IsZero())
}

// TestTokenizer_PositionsAreMonotoneNonDecreasing checks that positions
// are monotone non-decreasing across a token stream spanning several lines
// and constructs.
func TestTokenizer_PositionsAreMonotoneNonDecreasing(t *testing.T) {
	src := `div {
	id: "main";
	style { color: red; }
}`
	tz := NewTokenizer([]byte(src))
	var prevOffset, prevLine, prevCol int
	for {
		tok := tz.Next()
		if tok.Kind == TokEOF {
			break
		}
		require.GreaterOrEqual(t, tok.Span.Offset, prevOffset, "byte offsets must never go backwards")
		if tok.Span.Line == prevLine {
			require.GreaterOrEqual(t, tok.Span.Column, prevCol)
		} else {
			require.Greater(t, tok.Span.Line, prevLine)
		}
		prevOffset, prevLine, prevCol = tok.Span.Offset, tok.Span.Line, tok.Span.Column
	}
}

// TestTokenizer_SpansCoverSourceMinusWhitespace checks that with no
// whitespace or comments to skip, token spans exactly tile the source
// byte-for-byte (no byte range is skipped or duplicated).
func TestTokenizer_SpansCoverSourceMinusWhitespace(t *testing.T) {
	src := `div{id:1;}`
	tz := NewTokenizer([]byte(src))
	var covered int
	for {
		tok := tz.Next()
		if tok.Kind == TokEOF {
			break
		}
		require.Equal(t, covered, tok.Span.Offset, "no gap or overlap between consecutive token spans")
		covered = tok.Span.End()
	}
	require.Equal(t, len(src), covered)
}
