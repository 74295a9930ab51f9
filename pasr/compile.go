// Package pasr compiles a grammar-like pattern language into a set of
// cyk.Productions matched against tokenized trees by the CYK dynamic
// program. Where patre inlines sub-patterns into one automaton, pasr keeps
// every named sub-pattern as its own set of productions, joined only by
// shared Tag identity.
package pasr

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/coregx/patrex"
	"github.com/coregx/patrex/cyk"
)

var recursiveOpenRe = regexp.MustCompile(`=*\(`)

// Config configures Compile: the escape prefix, the Tokenizer/Treeifier
// used outside of the pattern's own escape grammar, and the shared tag
// interner a whole grammar's worth of Compile calls must use so that
// "$(name)" in one pattern resolves to another pattern's own production
// tag by name.
type Config struct {
	Escape    byte
	Tokenizer *patrex.Tokenizer
	Treeifier *patrex.Treeifier
	Tags      *cyk.Tags
}

// NewConfig returns a Config using patrex.DefaultEscape and a fresh tag
// interner.
func NewConfig(tok *patrex.Tokenizer, tree *patrex.Treeifier) *Config {
	return &Config{Escape: patrex.DefaultEscape, Tokenizer: tok, Treeifier: tree, Tags: cyk.NewTags()}
}

// matchTextRange matches a single child position against a literal token
// by text and tag.
type matchTextRange struct {
	token patrex.TextRange
}

func (m *matchTextRange) UnitLength() bool { return true }

func (m *matchTextRange) Match(node *cyk.AnnotatedNode, start, end int) (patrex.Captures, bool) {
	if end != start+1 {
		return nil, false
	}
	tok, ok := node.Token()[start].(patrex.TextRange)
	if !ok || !tok.Equal(m.token) {
		return nil, false
	}
	return patrex.Captures{}, true
}

// matchNonTerminal matches any span already tagged by a production with
// the given Tag — "$(name)" and every compiler-synthesized sub-pattern
// reference compile down to this. unit is set for a nested block's
// reference, which always occupies exactly one child position.
type matchNonTerminal struct {
	tag  cyk.Tag
	unit bool
}

func (m *matchNonTerminal) UnitLength() bool { return m.unit }

func (m *matchNonTerminal) Match(node *cyk.AnnotatedNode, start, end int) (patrex.Captures, bool) {
	for _, e := range node.MatchesAt(start, end) {
		if e.Tag == m.tag {
			return e.Captures, true
		}
	}
	return nil, false
}

// matchAnyStar matches any span — "$*". Match itself accepts an empty
// span, but cyk never applies a non-unit-length element to an empty span,
// so within a production "$*" covers at least one child position.
type matchAnyStar struct{}

func (m *matchAnyStar) UnitLength() bool { return false }

func (m *matchAnyStar) Match(node *cyk.AnnotatedNode, start, end int) (patrex.Captures, bool) {
	return patrex.Captures{}, true
}

// matchStore wraps another element, binding the text it spans to key on
// success — "$(...)|key|" and "$*|key|".
type matchStore struct {
	child cyk.Element
	key   string
}

func (m *matchStore) UnitLength() bool { return m.child.UnitLength() }

func (m *matchStore) Match(node *cyk.AnnotatedNode, start, end int) (patrex.Captures, bool) {
	kv, ok := m.child.Match(node, start, end)
	if !ok {
		return nil, false
	}
	out := kv.Clone()
	if out == nil {
		out = patrex.Captures{}
	}
	out.SetRange(m.key, node.TextRange(start, end))
	return out, true
}

func readUntilByte(text string, pos int, delim byte) (string, int, error) {
	rel := strings.IndexByte(text[pos:], delim)
	if rel == -1 {
		return "", 0, patrex.NewTextErrorf(text, pos, "no delimiting '%c' found", delim)
	}
	end := pos + rel
	return text[pos:end], end + 1, nil
}

// compiler accumulates the productions for one Compile call (and, via
// compileRecursive, any nested "$(=(...)=)" sub-patterns compiled as part
// of it) along with the counters used to mint collision-free synthetic tag
// names.
type compiler struct {
	cfg         *Config
	name        string
	nest        int
	productions []*cyk.Production
}

// makeProduction normalizes elements into one or more productions tagged
// t (and, for a split, synthetic sub-tags derived from t's name), so that
// no single production ends up with more than two non-unit-length
// elements — the limit cyk.Production enforces.
func (c *compiler) makeProduction(t cyk.Tag, tName string, elements []cyk.Element, atStart, atEnd bool) {
	var nonUnit []int
	for i, e := range elements {
		if !e.UnitLength() {
			nonUnit = append(nonUnit, i)
		}
	}
	if len(nonUnit) <= 2 {
		c.productions = append(c.productions, cyk.NewProduction(t, elements, atStart, atEnd))
		return
	}

	var prev []cyk.Element
	prevEnd := nonUnit[0]
	nr := 1
	for nr+1 < len(nonUnit) {
		c.nest++
		subtag := cyk.NewTag(fmt.Sprintf("%s:split:%d", tName, nr))
		chunk := append(append([]cyk.Element{}, prev...), elements[prevEnd:nonUnit[nr]+1]...)
		c.productions = append(c.productions, cyk.NewProduction(subtag, chunk, atStart && nonUnit[0] == 0, false))

		prev = []cyk.Element{&matchNonTerminal{tag: subtag}}
		prevEnd = nonUnit[nr] + 1
		nr++
	}

	final := append(append(append([]cyk.Element{}, elements[:nonUnit[0]]...), prev...), elements[prevEnd:]...)
	c.productions = append(c.productions, cyk.NewProduction(t, final, atStart, atEnd))
}

// compileRecursive compiles text as its own grammar (a fresh compiler, a
// fresh nest counter) producing subtag as its root tag, and appends its
// productions to c's — the "$(=(...)=)" construct.
func (c *compiler) compileRecursive(subtagName, text string) (cyk.Tag, error) {
	subtag := cyk.NewTag(subtagName)
	sub := &compiler{cfg: c.cfg, name: subtagName}
	if err := sub.compile(subtag, subtagName, text); err != nil {
		return nil, err
	}
	c.productions = append(c.productions, sub.productions...)
	return subtag, nil
}

// parseEscape handles one "$..." construct starting at pos (just after the
// escape character), returning the Element it compiles to and the position
// just past it.
func (c *compiler) parseEscape(text string, pos int) (cyk.Element, int, error) {
	var elt cyk.Element
	var err error

	switch {
	case pos < len(text) && text[pos] == '(':
		pos++
		if pos < len(text) && (text[pos] == '=' || text[pos] == '(') {
			loc := recursiveOpenRe.FindStringIndex(text[pos:])
			if loc == nil || loc[0] != 0 {
				return nil, 0, patrex.NewTextErrorf(text, pos, "bad recursive match opening")
			}
			nrEquals := loc[1] - 1
			pos += loc[1]
			closer := ")" + strings.Repeat("=", nrEquals) + ")"
			rel := strings.Index(text[pos:], closer)
			if rel == -1 {
				return nil, 0, patrex.NewTextErrorf(text, pos, "recursive match not closed")
			}
			end := pos + rel

			c.nest++
			subtagName := fmt.Sprintf("%s:rec:%d", c.name, c.nest)
			var tag cyk.Tag
			tag, err = c.compileRecursive(subtagName, text[pos:end])
			if err != nil {
				return nil, 0, err
			}
			elt = &matchNonTerminal{tag: tag}
			pos = end + nrEquals + 2
		} else {
			var name string
			name, pos, err = readUntilByte(text, pos, ')')
			if err != nil {
				return nil, 0, err
			}
			elt = &matchNonTerminal{tag: c.cfg.Tags.Get(name)}
		}
	case pos < len(text) && text[pos] == '*':
		pos++
		elt = &matchAnyStar{}
	default:
		return nil, 0, patrex.NewTextErrorf(text, pos, "unknown escape sequence")
	}

	if pos < len(text) && text[pos] == '|' {
		var key string
		key, pos, err = readUntilByte(text, pos+1, '|')
		if err != nil {
			return nil, 0, err
		}
		elt = &matchStore{child: elt, key: key}
	}

	return elt, pos, nil
}

// maketree tokenizes and nests expr, compiling "$..." escapes to Elements
// in place (emitted as opaque Token values, passed through the treeifier
// exactly as patre's compiled fragments are).
func (c *compiler) maketree(expr string) (patrex.List, error) {
	escaped := false
	var failure error

	override := func(t string, p int) (patrex.Token, int) {
		if failure != nil {
			return nil, -1
		}
		if t[p] != c.cfg.Escape || escaped {
			escaped = false
			return nil, -1
		}
		p++
		if p >= len(t) {
			failure = patrex.NewTextErrorf(t, p-1, "dangling escape character")
			return nil, -1
		}
		if t[p] == c.cfg.Escape {
			escaped = true
			return nil, p
		}

		elt, newPos, err := c.parseEscape(t, p)
		if err != nil {
			failure = err
			return nil, -1
		}
		return elt, newPos
	}

	stream := c.cfg.Tokenizer.Tokenize(expr, 0, override)
	toks, err := stream.All()
	if failure != nil {
		return nil, failure
	}
	if err != nil {
		return nil, err
	}
	return c.cfg.Treeifier.MakeTree(toks, "")
}

// compileBlock flattens tree's elements, collapsing each nested sub-list
// into its own ":nest:N"-tagged production (matched as a single
// unit-length non-terminal in the surrounding block) exactly as a
// parenthesized group in the source text does.
func (c *compiler) compileBlock(tree patrex.List) ([]cyk.Element, error) {
	var out []cyk.Element
	for _, tok := range tree {
		switch v := tok.(type) {
		case patrex.List:
			sub, err := c.compileBlock(v)
			if err != nil {
				return nil, err
			}
			c.nest++
			subtagName := fmt.Sprintf("%s:nest:%d", c.name, c.nest)
			subtag := cyk.NewTag(subtagName)
			c.makeProduction(subtag, subtagName, sub, true, true)
			out = append(out, &matchNonTerminal{tag: subtag, unit: true})
		case patrex.TextRange:
			out = append(out, &matchTextRange{token: v})
		case cyk.Element:
			out = append(out, v)
		default:
			return nil, fmt.Errorf("pasr: unexpected token %T in compiled pattern", tok)
		}
	}
	return out, nil
}

// compile is the unexported recursive core Compile and compileRecursive
// both call; it leaves its result productions in c.productions.
func (c *compiler) compile(tag cyk.Tag, name, expr string) error {
	tree, err := c.maketree(expr)
	if err != nil {
		return err
	}
	elements, err := c.compileBlock(tree)
	if err != nil {
		return err
	}
	c.makeProduction(tag, name, elements, false, false)
	return nil
}

// Match runs productions (the accumulated result of one or more Compile
// calls sharing a single cfg.Tags interner) over tree via cyk.Run and
// reports whether tag matches tree's entire span, returning the captures
// bound along the way.
func Match(tags *cyk.Tags, tree patrex.List, productions []*cyk.Production, tag cyk.Tag) (patrex.Captures, bool) {
	if len(tree) == 0 {
		return nil, false
	}
	result := cyk.Run(tags, tree, productions)
	for _, e := range result.Root().MatchesAt(0, len(tree)) {
		if e.Tag == tag {
			return e.Captures, true
		}
	}
	return nil, false
}

// Compile returns the productions needed to match name against expr: a
// grammar-like pattern string using "$(name)" for a named non-terminal
// reference, "$(=(...)=)" for an inline recursive sub-pattern, "$*" for
// any span, and a trailing "|key|" on either to capture the spanned text.
// The returned productions' root is tagged cfg.Tags.Get(name), so other
// Compile calls sharing cfg can reference it by that same name.
func Compile(name, expr string, cfg *Config) ([]*cyk.Production, error) {
	c := &compiler{cfg: cfg, name: name}
	if err := c.compile(cfg.Tags.Get(name), name, expr); err != nil {
		return nil, err
	}
	return c.productions, nil
}
