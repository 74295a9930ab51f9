package nfa

import "github.com/coregx/patrex"

// Matcher is a labelled-transition predicate. tree[idx] is the current
// token; prev/next are the tokens flanking it (at the edges of tree, the
// simulation's beforeToken/afterToken, so a token can still be anchored
// against context outside tree); tree[idx:] is visible in full so look-ahead matchers (Not) can
// simulate a sub-pattern over the remaining suffix rather than just the
// current token. Per spec this is a sum type (rather than a Python closure
// over captured state) so predicates stay inspectable — Tag/Token/Any/
// List/Not below are its variants.
type Matcher interface {
	Match(prev patrex.Token, tree patrex.List, idx int, next patrex.Token) (patrex.Captures, bool)
}

// TokenMatcher matches a leaf token whose text equals Text exactly (by
// lexical content, matching the source's plain string comparison — tag is
// not compared here).
type TokenMatcher struct {
	Text string
}

// Token returns a Matcher accepting a leaf whose text equals tok's.
func Token(tok patrex.TextRange) *TokenMatcher {
	return &TokenMatcher{Text: tok.String()}
}

func (m *TokenMatcher) Match(prev patrex.Token, tree patrex.List, idx int, next patrex.Token) (patrex.Captures, bool) {
	tr, ok := tree[idx].(patrex.TextRange)
	if !ok || tr.String() != m.Text {
		return nil, false
	}
	return nil, true
}

// TagMatcher matches a leaf token carrying the given tag.
type TagMatcher struct {
	Tag string
}

// Tag returns a Matcher accepting a leaf tagged tag.
func Tag(tag string) *TagMatcher {
	return &TagMatcher{Tag: tag}
}

func (m *TagMatcher) Match(prev patrex.Token, tree patrex.List, idx int, next patrex.Token) (patrex.Captures, bool) {
	tr, ok := tree[idx].(patrex.TextRange)
	if !ok || !tr.HasTag(m.Tag) {
		return nil, false
	}
	return nil, true
}

// AnyMatcher matches any single token (leaf or list).
type AnyMatcher struct{}

// Any returns a Matcher accepting any token.
func Any() *AnyMatcher { return &AnyMatcher{} }

func (m *AnyMatcher) Match(prev patrex.Token, tree patrex.List, idx int, next patrex.Token) (patrex.Captures, bool) {
	return nil, true
}

// ListMatcher matches a List token whose contents are accepted by Sub,
// starting at Start and ending exactly at End.
type ListMatcher struct {
	Sub   *Nfa
	Start StateID
	End   StateID
}

// List returns a Matcher accepting a List token that sub accepts, from
// start to end.
func List(sub *Nfa, start, end StateID) *ListMatcher {
	return &ListMatcher{Sub: sub, Start: start, End: end}
}

func (m *ListMatcher) Match(prev patrex.Token, tree patrex.List, idx int, next patrex.Token) (patrex.Captures, bool) {
	l, ok := patrex.IsList(tree[idx])
	if !ok {
		return nil, false
	}
	_, goalCaptures, reached := m.Sub.Simulate(l, m.Start, prev, next, m.End)
	if !reached {
		return nil, false
	}
	return goalCaptures, true
}

// NotMatcher matches the current token (consuming exactly one) iff running
// Sub from Start over the remaining suffix tree[idx:] — with the same
// prev/next boundary context as the outer match — does NOT reach End. This
// is a bounded look-ahead: the sub-simulation uses goalState early-exit, so
// it costs no more than an ordinary sub-match attempt.
type NotMatcher struct {
	Sub        *Nfa
	Start, End StateID
}

// Not returns a Matcher accepting the current token iff the pattern
// starting there does not match sub from start to end.
func Not(sub *Nfa, start, end StateID) *NotMatcher {
	return &NotMatcher{Sub: sub, Start: start, End: end}
}

func (m *NotMatcher) Match(prev patrex.Token, tree patrex.List, idx int, next patrex.Token) (patrex.Captures, bool) {
	_, _, reached := m.Sub.Simulate(tree[idx:], m.Start, prev, next, m.End)
	if reached {
		return nil, false
	}
	return nil, true
}
