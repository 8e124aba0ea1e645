package chtl

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func lexAll(src string) []Token {
	tz := NewTokenizer([]byte(src))
	var out []Token
	for {
		t := tz.Next()
		out = append(out, t)
		if t.Kind == TokEOF {
			return out
		}
	}
}

func kinds(toks []Token) []TokenKind {
	out := make([]TokenKind, len(toks))
	for i, t := range toks {
		out[i] = t.Kind
	}
	return out
}

func TestTokenizer_Punctuation(t *testing.T) {
	toks := lexAll(`div { id: "x"; }`)
	require.Equal(t,
		[]TokenKind{TokIdent, TokLBrace, TokIdent, TokColon, TokString, TokSemicolon, TokRBrace, TokEOF},
		kinds(toks))
}

func TestTokenizer_KeywordBracketAndAtKeyword(t *testing.T) {
	toks := lexAll(`[Template] @Style Card {}`)
	require.Equal(t, TokKeywordBracket, toks[0].Kind)
	require.Equal(t, "Template", toks[0].Literal)
	require.Equal(t, TokAtKeyword, toks[1].Kind)
	require.Equal(t, "Style", toks[1].Literal)
	require.Equal(t, TokIdent, toks[2].Kind)
	require.Equal(t, "Card", toks[2].Literal)
}

func TestTokenizer_Comments(t *testing.T) {
	toks := lexAll("// line\n/* block */\n-- generator\ndiv {}")
	require.Equal(t, TokLineComment, toks[0].Kind)
	require.Equal(t, TokBlockComment, toks[1].Kind)
	require.Equal(t, TokGeneratorComment, toks[2].Kind)
	require.Equal(t, TokIdent, toks[3].Kind)
}

func TestTokenizer_NumberVsIdentWithUnits(t *testing.T) {
	toks := lexAll(`100px 42`)
	require.Equal(t, TokIdent, toks[0].Kind, "100px is not a pure number")
	require.Equal(t, "100px", toks[0].Literal)
	require.Equal(t, TokNumber, toks[1].Kind)
}

func TestTokenizer_CompoundOperators(t *testing.T) {
	toks := lexAll(`a && b || c == d != e <= f >= g -> h`)
	var got []TokenKind
	for _, tok := range toks {
		if tok.Kind != TokIdent {
			got = append(got, tok.Kind)
		}
	}
	require.Equal(t, []TokenKind{TokAndAnd, TokOrOr, TokEqEq, TokNotEq, TokLE, TokGE, TokArrow, TokEOF}, got)
}

func TestTokenizer_UnterminatedBlockCommentIsIllegal(t *testing.T) {
	toks := lexAll("/* never closed")
	require.Equal(t, TokIllegal, toks[0].Kind)
}

func TestTokenizer_UnterminatedStringIsIllegal(t *testing.T) {
	toks := lexAll(`"never closed`)
	require.Equal(t, TokIllegal, toks[0].Kind)
}
