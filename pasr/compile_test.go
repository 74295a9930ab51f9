package pasr

import (
	"testing"

	"github.com/coregx/patrex"
	"github.com/coregx/patrex/cpplex"
	"github.com/coregx/patrex/cyk"
	"github.com/stretchr/testify/require"
)

func treeOf(t *testing.T, src string) patrex.List {
	t.Helper()
	tok, tf, err := cpplex.New()
	require.NoError(t, err)
	toks, err := tok.Tokenize(src, 0, nil).All()
	require.NoError(t, err)
	forest, err := tf.MakeTree(toks, "")
	require.NoError(t, err)
	return forest
}

func TestRecursiveSubpatternCapturesFullSpan(t *testing.T) {
	tok, tf, err := cpplex.New()
	require.NoError(t, err)
	cfg := NewConfig(tok, tf)

	var all []*cyk.Production
	for _, lit := range []string{"a", "b"} {
		prods, err := Compile("expr", lit, cfg)
		require.NoError(t, err)
		all = append(all, prods...)
	}

	prods, err := Compile("sum", `$(=($(expr) + $(expr))=)|sum|`, cfg)
	require.NoError(t, err)
	all = append(all, prods...)

	tree := treeOf(t, "a + b")
	sumTag := cfg.Tags.Get("sum")
	captures, ok := Match(cfg.Tags, tree, all, sumTag)
	require.True(t, ok, "expected the whole span to match the recursive sum pattern")

	r, ok := captures.Range("sum")
	require.True(t, ok)
	require.Equal(t, "a + b", r.String())
}

func TestSelfReferentialProductionBuildsLeftRecursiveRuns(t *testing.T) {
	tok, tf, err := cpplex.New()
	require.NoError(t, err)
	cfg := NewConfig(tok, tf)

	var all []*cyk.Production
	base, err := Compile("run", "a", cfg)
	require.NoError(t, err)
	all = append(all, base...)

	recur, err := Compile("run", "$(run) a", cfg)
	require.NoError(t, err)
	all = append(all, recur...)

	tree := treeOf(t, "a a a b a a")
	result := cyk.Run(cfg.Tags, tree, all)

	var count int
	result.ForGreedyMax(cfg.Tags.Get("run"), func(kv patrex.Captures) {
		count++
	})
	require.Equal(t, 2, count, "expected two maximal runs separated by the non-matching \"b\" token")
}

func TestAnyStarMatchesAllChildrenOfABlock(t *testing.T) {
	tok, tf, err := cpplex.New()
	require.NoError(t, err)
	cfg := NewConfig(tok, tf)

	prods, err := Compile("call", `f ( $*|args| )`, cfg)
	require.NoError(t, err)

	tree := treeOf(t, "f ( a , b )")
	result := cyk.Run(cfg.Tags, tree, prods)

	callTag := cfg.Tags.Get("call")
	var captures patrex.Captures
	for _, e := range result.Root().MatchesAt(0, len(tree)) {
		if e.Tag == callTag {
			captures = e.Captures
		}
	}
	require.NotNil(t, captures)

	args, ok := captures.Range("args")
	require.True(t, ok)
	require.Equal(t, "a , b", args.String())
}

func TestUnknownEscapeIsAnError(t *testing.T) {
	tok, tf, err := cpplex.New()
	require.NoError(t, err)
	cfg := NewConfig(tok, tf)

	_, err = Compile("bad", "$?", cfg)
	require.Error(t, err)
}
