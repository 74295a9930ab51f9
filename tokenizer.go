package patrex

import (
	"regexp"
	"sort"
)

// RuleFunc attempts to produce a token from text at pos. end == -1 means
// "did not match"; otherwise the tokenizer advances to end, and emits out
// as a token unless out is nil (silently discarded — e.g. whitespace). out
// is almost always a TextRange, but an override rule (see Tokenize) may
// emit any Token — patre's escape-sequence override, for instance, emits
// already-compiled NFA fragments that the Treeifier passes through
// opaquely rather than a TextRange.
type RuleFunc func(text string, pos int) (out Token, end int)

type stagedRule struct {
	stage int
	fn    RuleFunc
}

// Tokenizer is a staged greedy tokenizer: a list of (stage, fn) rules,
// stably sorted by ascending stage. Per position, rules are invoked in
// stage order and the first one that matches wins. A single override rule
// may be supplied per invocation (see Tokenize) and is tried before any
// staged rule — this is how patre/pasr inject escape-sequence parsing
// without mutating the Tokenizer itself.
type Tokenizer struct {
	rules []stagedRule
}

// NewTokenizer returns an empty Tokenizer.
func NewTokenizer() *Tokenizer {
	return &Tokenizer{}
}

// AddRule registers fn at the given stage. Lower stages run first.
func (t *Tokenizer) AddRule(stage int, fn RuleFunc) {
	t.rules = append(t.rules, stagedRule{stage, fn})
	sort.SliceStable(t.rules, func(i, j int) bool { return t.rules[i].stage < t.rules[j].stage })
}

// TokenStream is a pull-style iterator over the tokens produced by a
// Tokenizer invocation — the idiomatic Go rendition of the source's
// generator-based Instance.__call__.
type TokenStream struct {
	tok      *Tokenizer
	text     string
	pos      int
	override RuleFunc
}

// Tokenize begins tokenizing text starting at pos. override, if non-nil, is
// tried before every staged rule at every position.
func (t *Tokenizer) Tokenize(text string, pos int, override RuleFunc) *TokenStream {
	return &TokenStream{tok: t, text: text, pos: pos, override: override}
}

// Pos returns the stream's current position in the text.
func (s *TokenStream) Pos() int {
	return s.pos
}

// Next advances the stream and returns the next emitted token. ok is false
// once the text is exhausted. A tokenization failure (no rule matched, or a
// zero-length match from any rule) is reported as err.
func (s *TokenStream) Next() (tok Token, ok bool, err error) {
	for s.pos < len(s.text) {
		if s.override != nil {
			out, end := s.override(s.text, s.pos)
			if end != -1 {
				if end == s.pos {
					return nil, false, NewTextErrorf(s.text, s.pos, "empty match from override rule")
				}
				s.pos = end
				if out != nil {
					return out, true, nil
				}
				continue
			}
		}

		matched := false
		for _, r := range s.tok.rules {
			out, end := r.fn(s.text, s.pos)
			if end != -1 {
				if end == s.pos {
					return nil, false, NewTextErrorf(s.text, s.pos, "empty match from tokenizer rule")
				}
				s.pos = end
				matched = true
				if out != nil {
					return out, true, nil
				}
				break
			}
		}
		if !matched {
			Logger().Tracef("patrex: no rule matched at pos %d", s.pos)
			return nil, false, NewTextErrorf(s.text, s.pos, "failed to tokenize")
		}
	}
	return nil, false, nil
}

// All drains the stream into a slice, for callers that do not need to
// interleave further escape parsing mid-stream (the ordinary case:
// tokenizing a plain source text rather than a pattern).
func (s *TokenStream) All() ([]Token, error) {
	var out []Token
	for {
		tok, ok, err := s.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, tok)
	}
}

// AllRanges is All, asserting every emitted token is a plain TextRange —
// the common case for a Tokenizer invoked without an override.
func (s *TokenStream) AllRanges() ([]TextRange, error) {
	toks, err := s.All()
	if err != nil {
		return nil, err
	}
	out := make([]TextRange, len(toks))
	for i, t := range toks {
		tr, ok := t.(TextRange)
		if !ok {
			return nil, NewTextErrorf(s.text, 0, "tokenizer produced a non-TextRange token without an override")
		}
		out[i] = tr
	}
	return out, nil
}

// TokWhitespace returns a rule that consumes a run of characters in chars
// and discards them (emits no token).
func TokWhitespace(chars string) RuleFunc {
	set := make(map[byte]bool, len(chars))
	for i := 0; i < len(chars); i++ {
		set[chars[i]] = true
	}
	return func(text string, pos int) (Token, int) {
		if !set[text[pos]] {
			return nil, -1
		}
		end := pos + 1
		for end < len(text) && set[text[end]] {
			end++
		}
		return nil, end
	}
}

// TokFallback returns a rule that always emits the next single character as
// an untagged TextRange. It should be registered at the last stage, as a
// catch-all.
func TokFallback() RuleFunc {
	return func(text string, pos int) (Token, int) {
		return TextRange{Text: text, Start: pos, End: pos + 1}, pos + 1
	}
}

// TokRegex returns a rule that matches re anchored at pos and emits a
// TextRange tagged tag. A zero-length match is a tokenizer error (it would
// otherwise cause an infinite loop) — detected generically by
// TokenStream.Next, since it treats any rule's end == pos as failure.
func TokRegex(re *regexp.Regexp, tag string) RuleFunc {
	return func(text string, pos int) (Token, int) {
		loc := re.FindStringIndex(text[pos:])
		if loc == nil || loc[0] != 0 {
			return nil, -1
		}
		end := pos + loc[1]
		return TextRange{Text: text, Start: pos, End: end, Tag: tag}, end
	}
}
