package patrex

// Token is either a TextRange (a leaf) or a List of Tokens (a sub-list
// flanked, in its parent, by the opening bracket token before it and the
// closing bracket token after it). The nil interface value never appears in
// a well-formed tree.
type Token any

// List is a nested sequence of Tokens produced by a Treeifier.
type List []Token

// IsList reports whether tok is a List rather than a leaf TextRange.
func IsList(tok Token) (List, bool) {
	l, ok := tok.(List)
	return l, ok
}

type parenPair struct {
	open, close string
}

// Treeifier nests a flat token sequence by a configured set of paired
// brackets into a token tree.
type Treeifier struct {
	parens []parenPair
}

// NewTreeifier returns a Treeifier with no registered bracket pairs.
func NewTreeifier() *Treeifier {
	return &Treeifier{}
}

// AddParens registers a bracket pair. open and close are compared against
// token text verbatim (e.g. "(" and ")").
func (t *Treeifier) AddParens(open, close string) {
	t.parens = append(t.parens, parenPair{open, close})
}

// MakeTree nests tokens by the registered bracket pairs. Only TextRange
// tokens participate in bracket matching; any other Token (e.g. an
// already-compiled pattern fragment produced by an override rule) is
// opaque to the treeifier and simply appended to the current list.
//
// If close is non-empty, matching it at the top level of the token
// sequence ends the tree early and returns the list accumulated so far —
// this supports patre's sub-expression parsing, where the token slice
// continues past the delimiter that ends a "(group)" and the tokens after
// that delimiter are not part of the returned tree.
//
// Unmatched closers, or unclosed openers at end of input, are reported as a
// *TextError pointing at the offending token.
func (t *Treeifier) MakeTree(tokens []Token, close string) (List, error) {
	listStack := []List{{}}
	closeStack := []string{close}

	for _, tok := range tokens {
		tr, isRange := tok.(TextRange)
		if !isRange {
			top := len(listStack) - 1
			listStack[top] = append(listStack[top], tok)
			continue
		}
		s := tr.String()

		matchedParen := false
		for _, pp := range t.parens {
			switch s {
			case pp.open:
				top := len(listStack) - 1
				listStack[top] = append(listStack[top], tok)
				listStack = append(listStack, List{})
				closeStack = append(closeStack, pp.close)
				matchedParen = true
			case pp.close:
				if closeStack[len(closeStack)-1] != s {
					Logger().Tracef("patrex: unexpected closing %q at pos %d", s, tr.Start)
					return nil, NewTextErrorf(tr.Text, tr.Start, "unexpected closing '%s'", s)
				}
				if len(listStack) == 1 {
					return listStack[0], nil
				}
				finished := listStack[len(listStack)-1]
				listStack = listStack[:len(listStack)-1]
				top := len(listStack) - 1
				listStack[top] = append(listStack[top], finished)
				listStack[top] = append(listStack[top], tok)
				closeStack = closeStack[:len(closeStack)-1]
				matchedParen = true
			}
			if matchedParen {
				break
			}
		}
		if !matchedParen {
			top := len(listStack) - 1
			listStack[top] = append(listStack[top], tok)
		}
	}

	if len(listStack) > 1 {
		parent := listStack[len(listStack)-2]
		opener := parent[len(parent)-1].(TextRange)
		Logger().Tracef("patrex: unclosed %q at pos %d", opener.String(), opener.Start)
		return nil, NewTextErrorf(opener.Text, opener.Start, "unclosed '%s'", opener.String())
	}

	Logger().Tracef("patrex: treeified %d top-level tokens", len(listStack[0]))
	return listStack[0], nil
}

// TextStart returns the start offset of the elt-th child of node: the
// opener's End if the child is itself a List (peeking the flanking
// opener, which immediately precedes it in node), otherwise the leaf's own
// Start.
func TextStart(node List, elt int) int {
	if _, ok := IsList(node[elt]); ok {
		return node[elt-1].(TextRange).End
	}
	return node[elt].(TextRange).Start
}

// TextEnd returns the end offset of the elt-th child of node: the closer's
// Start if the child is itself a List (peeking the flanking closer, which
// immediately follows it in node), otherwise the leaf's own End.
func TextEnd(node List, elt int) int {
	if _, ok := IsList(node[elt]); ok {
		return node[elt+1].(TextRange).Start
	}
	return node[elt].(TextRange).End
}
