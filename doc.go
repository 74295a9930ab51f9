// Package patrex provides the text and token-tree model shared by the two
// pattern-matching engines in this module: patre (an NFA-based engine, see
// github.com/coregx/patrex/patre) and pasr (a CFG/CYK-based engine, see
// github.com/coregx/patrex/pasr).
//
// A source text is lexed by a Tokenizer into a flat sequence of TextRange
// tokens, then nested by a Treeifier into a token tree according to a
// configured set of bracket pairs. Both pattern engines compile a small
// pattern language against that token tree and bind named captures to
// sub-ranges of the original text.
//
// Basic usage:
//
//	tok := patrex.NewTokenizer()
//	tok.AddRule(0, patrex.TokRegex(idRe, "id"))
//	tok.AddRule(-100, patrex.TokWhitespace(" \t\n"))
//	tok.AddRule(100, patrex.TokFallback())
//
//	tree := patrex.NewTreeifier()
//	tree.AddParens("(", ")")
//
//	tokens, err := tok.Tokenize(text, 0, nil).All()
//	forest, err := tree.MakeTree(tokens, "")
package patrex
