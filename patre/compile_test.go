package patre

import (
	"testing"

	"github.com/coregx/patrex"
	"github.com/coregx/patrex/cpplex"
	"github.com/coregx/patrex/nfa"
	"github.com/stretchr/testify/require"
)

func tree(t *testing.T, src string) patrex.List {
	t.Helper()
	tok, tf, err := cpplex.New()
	require.NoError(t, err)
	toks, err := tok.Tokenize(src, 0, nil).All()
	require.NoError(t, err)
	forest, err := tf.MakeTree(toks, "")
	require.NoError(t, err)
	return forest
}

func compileAndMatch(t *testing.T, pattern, src string) (patrex.Captures, bool) {
	t.Helper()
	tok, tf, err := cpplex.New()
	require.NoError(t, err)
	n := nfa.New()
	cfg := NewConfig(tok, tf)
	start, end, err := Compile(n, pattern, cfg)
	require.NoError(t, err)
	return Match(n, tree(t, src), start, end)
}

func TestIdentifierMatchWithCapture(t *testing.T) {
	kv, ok := compileAndMatch(t, `${id}|name|`, "foo")
	require.True(t, ok)

	r, ok := kv.Range("name")
	require.True(t, ok)
	require.Equal(t, "foo", r.String())
}

func TestRepetitionWithSeparatorAndListCapture(t *testing.T) {
	kv, ok := compileAndMatch(t, `${id}|x|*(,)[items]`, "a , b , c")
	require.True(t, ok)

	items, ok := kv.Items("items")
	require.True(t, ok)
	require.Len(t, items, 3)

	// Each list entry should itself be the text covered by one repetition
	// of the body, which in turn bound "x" to the matched identifier.
	var got []string
	for _, it := range items {
		got = append(got, it.String())
	}
	require.Equal(t, []string{"a", "b", "c"}, got)
}

func TestAnchorBindsZeroWidthBoundaryPosition(t *testing.T) {
	// The anchor captures a position marker at the token gap, not the
	// text of either flanking token: Start == End == the offset where
	// the preceding token ends.
	kv, ok := compileAndMatch(t, `${id}$<|pos|${id}`, "a b")
	require.True(t, ok)

	r, ok := kv.Range("pos")
	require.True(t, ok)
	require.Equal(t, r.Start, r.End)
	require.Equal(t, 1, r.Start)
}

func TestNegationRejectsMatchingToken(t *testing.T) {
	_, ok := compileAndMatch(t, `$!{id}`, "a")
	require.False(t, ok, "negation should reject a token the sub-pattern does match")

	_, ok = compileAndMatch(t, `$!{id}`, "+")
	require.True(t, ok, "negation should consume a token the sub-pattern does not match")
}

func TestAlternationMatchesEitherBranch(t *testing.T) {
	_, ok := compileAndMatch(t, `$|(a)(b)`, "a")
	require.True(t, ok)

	_, ok = compileAndMatch(t, `$|(a)(b)`, "b")
	require.True(t, ok)

	_, ok = compileAndMatch(t, `$|(a)(b)`, "c")
	require.False(t, ok)
}

func TestTaggedSubpatternReference(t *testing.T) {
	tok, tf, err := cpplex.New()
	require.NoError(t, err)

	sub := nfa.New()
	cfg := NewConfig(tok, tf)
	idStart, idEnd, err := Compile(sub, `${id}`, cfg)
	require.NoError(t, err)
	cfg.Tags["ident"] = TagRef{Nfa: sub, Start: idStart, End: idEnd}

	n := nfa.New()
	start, end, err := Compile(n, `${ident}|val|`, cfg)
	require.NoError(t, err)

	kv, ok := Match(n, tree(t, "foo"), start, end)
	require.True(t, ok)
	r, ok := kv.Range("val")
	require.True(t, ok)
	require.Equal(t, "foo", r.String())
}

func TestLiteralBracketsMatchNestedList(t *testing.T) {
	// "(" and ")" in the pattern text are themselves ordinary characters
	// to the shared tokenizer/treeifier, so they bracket-match into a
	// literal-token / nested-list / literal-token sequence exactly the
	// way the same treeifier nests the source being matched.
	kv, ok := compileAndMatch(t, `${id}(${id})`, "f(x)")
	require.True(t, ok)
	require.NotNil(t, kv)
}

func TestSelfReferentialTagIsAnError(t *testing.T) {
	tok, tf, err := cpplex.New()
	require.NoError(t, err)
	n := nfa.New()
	cfg := NewConfig(tok, tf)
	cfg.Tags["self"] = TagRef{Nfa: n, Start: 0, End: 0}

	_, _, err = Compile(n, `${self}`, cfg)
	require.Error(t, err)
}

func TestUnknownEscapeIsAnError(t *testing.T) {
	tok, tf, err := cpplex.New()
	require.NoError(t, err)
	n := nfa.New()
	cfg := NewConfig(tok, tf)

	_, _, err = Compile(n, `$?`, cfg)
	require.Error(t, err)
}
