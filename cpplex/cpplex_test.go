package cpplex

import (
	"testing"

	"github.com/coregx/patrex"
	"github.com/stretchr/testify/require"
)

func tokenTexts(t *testing.T, toks []patrex.Token) []string {
	t.Helper()
	var out []string
	for _, tok := range toks {
		tr, ok := tok.(patrex.TextRange)
		require.True(t, ok, "expected a TextRange token, got %T", tok)
		out = append(out, tr.String())
	}
	return out
}

func TestLexCppSnippet(t *testing.T) {
	tok, _, err := New()
	require.NoError(t, err)

	toks, err := tok.Tokenize("int x = 42; // c\n", 0, nil).All()
	require.NoError(t, err)

	require.Equal(t, []string{"int", "x", "=", "42", ";"}, tokenTexts(t, toks))

	for i, want := range []string{"int", "x"} {
		tr := toks[i].(patrex.TextRange)
		require.Equal(t, want, tr.String())
		require.Equal(t, "id", tr.Tag)
	}
}

func TestLexKeywordRetagging(t *testing.T) {
	tok, _, err := New(Keywords([]string{"int", "return"}))
	require.NoError(t, err)

	toks, err := tok.Tokenize("int x return", 0, nil).All()
	require.NoError(t, err)

	require.Equal(t, "keyword", toks[0].(patrex.TextRange).Tag)
	require.Equal(t, "id", toks[1].(patrex.TextRange).Tag)
	require.Equal(t, "keyword", toks[2].(patrex.TextRange).Tag)
}

func TestTreeifyBrackets(t *testing.T) {
	tok, tree, err := New()
	require.NoError(t, err)

	toks, err := tok.Tokenize("f ( a , b )", 0, nil).All()
	require.NoError(t, err)

	forest, err := tree.MakeTree(toks, "")
	require.NoError(t, err)

	require.Equal(t, "f", forest[0].(patrex.TextRange).String())
	require.Equal(t, "(", forest[1].(patrex.TextRange).String())

	inner, ok := patrex.IsList(forest[2])
	require.True(t, ok, "expected a nested list for the parenthesized group")
	require.Equal(t, []string{"a", ",", "b"}, tokenTexts(t, inner))
	require.Equal(t, ")", forest[3].(patrex.TextRange).String())
}

func TestUnterminatedBlockCommentIsAnError(t *testing.T) {
	tok, _, err := New()
	require.NoError(t, err)

	_, err = tok.Tokenize("int x /* oops", 0, nil).All()
	require.Error(t, err)
}

func TestUnterminatedLiteralNeverMatches(t *testing.T) {
	tok, _, err := New()
	require.NoError(t, err)

	// No rule accepts an unterminated quote, so it falls through to the
	// single-character fallback rule; the identifier rule then picks up
	// the remaining run normally.
	toks, err := tok.Tokenize(`"abc`, 0, nil).All()
	require.NoError(t, err)
	require.Equal(t, []string{`"`, "abc"}, tokenTexts(t, toks))
}
