// Package cpplex provides a Tokenizer and Treeifier configuration suitable
// for C++ source (and many languages sharing its comment syntax). It is a
// thin collaborator for the patre/pasr engines, not part of their core:
// identifier lexing, comment/literal skipping, and bracket nesting, nothing
// more.
package cpplex

import (
	"regexp"

	"github.com/coregx/ahocorasick"
	"github.com/coregx/patrex"
)

var identifierRe = regexp.MustCompile(`[a-zA-Z_0-9]+`)

// comment recognizes "// ... \n" and "/* ... */" comments, discarding them.
// An unterminated "/* */" is a tokenizer error.
func comment(text string, pos int) (patrex.Token, int) {
	switch {
	case hasPrefixAt(text, pos, "//"):
		end := indexFrom(text, pos+2, '\n')
		if end == -1 {
			return nil, len(text)
		}
		return nil, end + 1
	case hasPrefixAt(text, pos, "/*"):
		end := indexOfFrom(text, pos+2, "*/")
		if end == -1 {
			// Reported as a tokenizer failure at the opening position by
			// returning an empty match; the staged tokenizer rejects any
			// empty match with a TextError there. Returning "no match"
			// instead would let the fallback rule silently split the
			// comment opener into single characters.
			return nil, pos
		}
		return nil, end + 2
	}
	return nil, -1
}

// literal recognizes single- or double-quoted literals with backslash
// escapes, tagging the whole quoted range "literal".
func literal(text string, pos int) (patrex.Token, int) {
	if text[pos] != '"' && text[pos] != '\'' {
		return nil, -1
	}
	quote := text[pos]
	end := pos + 1
	for end < len(text) {
		if text[end] == quote {
			return patrex.TextRange{Text: text, Start: pos, End: end + 1, Tag: "literal"}, end + 1
		}
		if text[end] == '\\' {
			end++
		}
		end++
	}
	return nil, -1
}

func hasPrefixAt(text string, pos int, prefix string) bool {
	return pos+len(prefix) <= len(text) && text[pos:pos+len(prefix)] == prefix
}

func indexFrom(text string, from int, b byte) int {
	for i := from; i < len(text); i++ {
		if text[i] == b {
			return i
		}
	}
	return -1
}

func indexOfFrom(text string, from int, sub string) int {
	for i := from; i+len(sub) <= len(text); i++ {
		if text[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

// Option configures New.
type Option func(*config)

type config struct {
	keywords []string
}

// Keywords retags identifier tokens whose text is one of words as
// "keyword" instead of "id", using an Aho-Corasick automaton over the
// keyword set so the retagging cost is independent of how many keywords
// are registered — the same tradeoff the corpus's meta regex engine makes
// when dispatching large literal alternations.
func Keywords(words []string) Option {
	return func(c *config) { c.keywords = words }
}

// New returns a Tokenizer and Treeifier configured for C++-flavored source:
// identifier regex (tag "id"; it matches any run of letters, digits and
// underscores, so a number such as "42" is one "id" token), comments and
// string/char literals (tag
// "literal"), whitespace discarded at the earliest stage, and a
// single-character fallback at the last stage. The treeifier nests "()",
// "[]" and "{}".
func New(opts ...Option) (*patrex.Tokenizer, *patrex.Treeifier, error) {
	var cfg config
	for _, o := range opts {
		o(&cfg)
	}

	tok := patrex.NewTokenizer()

	idRule := patrex.TokRegex(identifierRe, "id")
	if len(cfg.keywords) > 0 {
		builder := ahocorasick.NewBuilder()
		for _, kw := range cfg.keywords {
			builder.AddPattern([]byte(kw))
		}
		automaton, err := builder.Build()
		if err != nil {
			return nil, nil, err
		}
		idRule = func(text string, pos int) (patrex.Token, int) {
			out, end := patrex.TokRegex(identifierRe, "id")(text, pos)
			if end == -1 {
				return out, end
			}
			tr := out.(patrex.TextRange)
			word := []byte(tr.String())
			// IsMatch reports substring containment, which would
			// wrongly retag e.g. "mint" on keyword "int"; Find's
			// match span lets us require the whole identifier match
			// one keyword exactly.
			if m := automaton.Find(word, 0); m != nil && m.Start == 0 && m.End == len(word) {
				tr.Tag = "keyword"
			}
			return tr, end
		}
	}

	tok.AddRule(0, idRule)
	tok.AddRule(0, comment)
	tok.AddRule(0, literal)
	tok.AddRule(-100, patrex.TokWhitespace(" \t\n"))
	tok.AddRule(100, patrex.TokFallback())

	tree := patrex.NewTreeifier()
	tree.AddParens("(", ")")
	tree.AddParens("[", "]")
	tree.AddParens("{", "}")

	return tok, tree, nil
}
