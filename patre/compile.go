// Package patre compiles a regex-like pattern language into an *nfa.Nfa
// that walks tokenized trees. The pattern language shares its escape
// prefix and tokenizer/treeifier plumbing with the surrounding patrex
// package, but compiles into the nfa package's state machine rather than
// interpreting the pattern at match time.
package patre

import (
	"fmt"
	"strings"

	"github.com/coregx/patrex"
	"github.com/coregx/patrex/nfa"
)

// TagRef names a previously compiled sub-pattern, inlined by "${tag}" via
// nfa.Nfa.Insert rather than shared by reference, so that a tag may be
// referenced from more than one pattern without state-id collisions.
type TagRef struct {
	Nfa        *nfa.Nfa
	Start, End nfa.StateID
}

// Config configures Compile: the escape prefix, the Tokenizer/Treeifier
// used to lex and nest the token tree outside of the pattern's own escape
// grammar, and any named sub-patterns usable via "${tag}".
type Config struct {
	Escape    byte
	Tokenizer *patrex.Tokenizer
	Treeifier *patrex.Treeifier
	Tags      map[string]TagRef
}

// NewConfig returns a Config using patrex.DefaultEscape and no registered
// tags.
func NewConfig(tok *patrex.Tokenizer, tree *patrex.Treeifier) *Config {
	return &Config{Escape: patrex.DefaultEscape, Tokenizer: tok, Treeifier: tree, Tags: map[string]TagRef{}}
}

// fragment is the opaque token the escape override emits for an
// already-compiled piece of automaton (an escape construct and its
// postfix modifiers). compileTransitions splices it into the surrounding
// automaton instead of treating it as a literal token or a sub-list —
// this is exactly the non-TextRange pass-through patrex.Treeifier.MakeTree
// supports.
type fragment struct {
	start, end nfa.StateID
}

// parserState tracks the override rule's "previous character was an
// escaped escape" flag across successive calls. It replaces the
// closure-captured mutable cell of the language this was ported from with
// an explicit struct the override closure mutates in place.
type parserState struct {
	escaped bool
}

func readUntil(text string, pos int, delim byte) (string, int, error) {
	rel := strings.IndexByte(text[pos:], delim)
	if rel == -1 {
		return "", 0, patrex.NewTextErrorf(text, pos, "no delimiting '%c' found", delim)
	}
	end := pos + rel
	return text[pos:end], end + 1, nil
}

// compiler threads the automaton being built, the compile-time Config, and
// a counter used to mint collision-free internal capture keys for the
// implicit per-repetition span of "X*[key]"/"X+[key]".
type compiler struct {
	nfa *nfa.Nfa
	cfg *Config
	seq int
}

func (c *compiler) internalKey(prefix string) string {
	c.seq++
	return fmt.Sprintf("\x00%s:%d", prefix, c.seq)
}

// subexpr handles a "{tag}" or "(group)" construct starting at pos (the
// character right after the introducing escape), wiring it from startState
// and returning the state it leaves off at.
func (c *compiler) subexpr(text string, startState nfa.StateID, pos int) (nfa.StateID, int, error) {
	switch text[pos] {
	case '{':
		tag, p, err := readUntil(text, pos+1, '}')
		if err != nil {
			return 0, 0, err
		}
		if ref, ok := c.cfg.Tags[tag]; ok {
			if ref.Nfa == c.nfa {
				return 0, 0, patrex.NewTextErrorf(text, pos, "tag %q cannot reference its own automaton", tag)
			}
			stateMap := c.nfa.Insert(ref.Nfa)
			sub := stateMap[ref.Start]
			endState := stateMap[ref.End]
			c.nfa.Transition(startState, sub, nil)
			return endState, p, nil
		}
		endState := c.nfa.NewState()
		c.nfa.Transition(startState, endState, nfa.Tag(tag))
		return endState, p, nil
	case '(':
		tree, p, err := c.maketree(text, pos+1, ")")
		if err != nil {
			return 0, 0, err
		}
		endState, err := c.compileTransitions(startState, tree)
		if err != nil {
			return 0, 0, err
		}
		return endState, p, nil
	default:
		return 0, 0, patrex.NewTextErrorf(text, pos, "expected '{' or '(' after escape")
	}
}

// escapeConstruct parses one primary escape construct together with its
// negate prefix and any chain of star/plus/range-capture postfix
// modifiers, starting at pos (the character right after the introducing
// escape character).
func (c *compiler) escapeConstruct(text string, pos int) (start, end nfa.StateID, newPos int, err error) {
	startState := c.nfa.NewState()

	if pos < len(text) && (text[pos] == '<' || text[pos] == '>') {
		prev := text[pos] == '<'
		if pos+1 >= len(text) || text[pos+1] != '|' {
			return 0, 0, 0, patrex.NewTextErrorf(text, pos, "expected '|' after '%c'", text[pos])
		}
		tag, p, rerr := readUntil(text, pos+2, '|')
		if rerr != nil {
			return 0, 0, 0, rerr
		}
		endState := c.nfa.NewState()
		t := c.nfa.Transition(startState, endState, nil)
		if prev {
			t.PrevCapture = tag
		} else {
			t.NextCapture = tag
		}
		return startState, endState, p, nil
	}

	negate := false
	if pos < len(text) && text[pos] == '!' {
		negate = true
		pos++
	}

	var endState nfa.StateID
	switch {
	case pos < len(text) && (text[pos] == '{' || text[pos] == '('):
		endState, pos, err = c.subexpr(text, startState, pos)
		if err != nil {
			return 0, 0, 0, err
		}
	case pos < len(text) && text[pos] == '.':
		endState = c.nfa.NewState()
		c.nfa.Transition(startState, endState, nfa.Any())
		pos++
	case pos < len(text) && text[pos] == '|':
		pos++
		endState = c.nfa.NewState()
		prio := 0
		for pos < len(text) && (text[pos] == '{' || text[pos] == '(') {
			var subEnd nfa.StateID
			subEnd, pos, err = c.subexpr(text, startState, pos)
			if err != nil {
				return 0, 0, 0, err
			}
			t := c.nfa.Transition(subEnd, endState, nil)
			t.Priority = prio
			prio++
		}
	default:
		return 0, 0, 0, patrex.NewTextErrorf(text, pos, "unknown escape construct")
	}

	if negate {
		newStart := c.nfa.NewState()
		newEnd := c.nfa.NewState()
		c.nfa.Transition(newStart, newEnd, nfa.Not(c.nfa, startState, endState))
		startState, endState = newStart, newEnd
	}

	for {
		switch {
		case pos < len(text) && (text[pos] == '*' || text[pos] == '+'):
			star := text[pos] == '*'
			pos++

			// storeT leaves the body before any separator, so a list
			// capture's per-repetition span never includes the separator.
			var repeatT, storeT *nfa.Transition
			if pos < len(text) && (text[pos] == '{' || text[pos] == '(') {
				sepStart := c.nfa.NewState()
				storeT = c.nfa.Transition(endState, sepStart, nil)
				var sepEnd nfa.StateID
				sepEnd, pos, err = c.subexpr(text, sepStart, pos)
				if err != nil {
					return 0, 0, 0, err
				}
				repeatT = c.nfa.Transition(sepEnd, startState, nil)
			} else {
				repeatT = c.nfa.Transition(endState, startState, nil)
				storeT = repeatT
			}

			if star {
				c.nfa.Transition(startState, endState, nil)
			}

			if pos < len(text) && text[pos] == '[' {
				var key string
				key, pos, err = readUntil(text, pos+1, ']')
				if err != nil {
					return 0, 0, 0, err
				}

				itemKey := c.internalKey("item")
				newStart := c.nfa.NewState()
				newEnd := c.nfa.NewState()

				entry := c.nfa.Transition(newStart, startState, nil)
				entry.RangeStartKey = itemKey
				entry.StackOp = nfa.Push
				entry.StackKey = key

				storeT.RangeEndKey = itemKey
				storeT.StackOp = nfa.Store
				storeT.StackKey = key
				storeT.StoreCaptureKey = itemKey
				repeatT.RangeStartKey = itemKey

				pop := c.nfa.Transition(endState, newEnd, nil)
				pop.RangeEndKey = itemKey
				pop.StackOp = nfa.Pop
				pop.StackKey = key
				pop.StoreCaptureKey = itemKey

				startState, endState = newStart, newEnd
			}

		case pos < len(text) && text[pos] == '|':
			var key string
			key, pos, err = readUntil(text, pos+1, '|')
			if err != nil {
				return 0, 0, 0, err
			}

			newStart := c.nfa.NewState()
			t1 := c.nfa.Transition(newStart, startState, nil)
			t1.RangeStartKey = key
			startState = newStart

			newEnd := c.nfa.NewState()
			t2 := c.nfa.Transition(endState, newEnd, nil)
			t2.RangeEndKey = key
			endState = newEnd

		default:
			return startState, endState, pos, nil
		}
	}
}

// maketree tokenizes and nests expr[pos:] into a token tree, with escape
// constructs compiled in place into fragment tokens. close behaves exactly
// as in patrex.Treeifier.MakeTree — matching it at the top level ends the
// tree early (used for "(group)" sub-expressions), and the returned
// position is then just past that closing token.
func (c *compiler) maketree(text string, pos int, close string) (patrex.List, int, error) {
	ps := &parserState{}
	var failure error

	override := func(t string, p int) (patrex.Token, int) {
		if failure != nil {
			return nil, -1
		}
		if t[p] != c.cfg.Escape || ps.escaped {
			ps.escaped = false
			return nil, -1
		}
		p++
		if p >= len(t) {
			failure = patrex.NewTextErrorf(t, p-1, "dangling escape character")
			return nil, -1
		}
		if t[p] == c.cfg.Escape {
			ps.escaped = true
			return nil, p
		}

		start, end, newPos, err := c.escapeConstruct(t, p)
		if err != nil {
			failure = err
			return nil, -1
		}
		return fragment{start, end}, newPos
	}

	stream := c.cfg.Tokenizer.Tokenize(text, pos, override)
	toks, err := stream.All()
	if failure != nil {
		return nil, 0, failure
	}
	if err != nil {
		return nil, 0, err
	}

	list, err := c.cfg.Treeifier.MakeTree(toks, close)
	if err != nil {
		return nil, 0, err
	}

	// MakeTree stops at a top-level close without consuming the tokens
	// after it; count the tokens the tree holds to find that closer.
	var count func(l patrex.List) int
	count = func(l patrex.List) int {
		n := len(l)
		for _, t := range l {
			if sub, ok := patrex.IsList(t); ok {
				n += count(sub) - 1
			}
		}
		return n
	}
	if n := count(list); n < len(toks) {
		return list, toks[n].(patrex.TextRange).End, nil
	}
	return list, stream.Pos(), nil
}

// compileTransitions wires tree's elements in sequence from current,
// returning the state reached after the last element: a TextRange becomes
// a literal token match, a List recurses into a sub-automaton wrapped in
// nfa.List, and a fragment (an already-compiled escape construct) is
// spliced in directly via an epsilon transition.
func (c *compiler) compileTransitions(current nfa.StateID, tree patrex.List) (nfa.StateID, error) {
	for _, tok := range tree {
		switch v := tok.(type) {
		case patrex.TextRange:
			next := c.nfa.NewState()
			c.nfa.Transition(current, next, nfa.Token(v))
			current = next
		case patrex.List:
			startInner := c.nfa.NewState()
			endInner, err := c.compileTransitions(startInner, v)
			if err != nil {
				return 0, err
			}
			next := c.nfa.NewState()
			c.nfa.Transition(current, next, nfa.List(c.nfa, startInner, endInner))
			current = next
		case fragment:
			c.nfa.Transition(current, v.start, nil)
			current = v.end
		default:
			return 0, fmt.Errorf("patre: unexpected token %T in compiled pattern", tok)
		}
	}
	return current, nil
}

// Compile turns pattern into a fragment of n, returning the states that
// bound it. A successful match of the returned (start, end) pair over a
// token tree accumulates whatever captures the pattern's escape constructs
// bound along the way.
func Compile(n *nfa.Nfa, pattern string, cfg *Config) (start, end nfa.StateID, err error) {
	c := &compiler{nfa: n, cfg: cfg}
	start = n.NewState()
	tree, _, err := c.maketree(pattern, 0, "")
	if err != nil {
		return 0, 0, err
	}
	end, err = c.compileTransitions(start, tree)
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

// Match reports whether pattern (already compiled to start/end in n)
// matches tree in its entirety, returning the captures bound along the
// accepting path.
func Match(n *nfa.Nfa, tree patrex.List, start, end nfa.StateID) (patrex.Captures, bool) {
	all, _, _ := n.Simulate(tree, start, nil, nil, nfa.InvalidState)
	kv, reached := all[end]
	return kv, reached
}
