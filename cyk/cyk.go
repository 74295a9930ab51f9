// Package cyk matches context-free grammar productions against a token
// tree using a variant of the Cocke-Younger-Kasami algorithm, restricted
// to productions with at most two variable-length ("non-unit-length")
// elements so the dynamic-programming step stays a closed-form split
// instead of a general chart parse.
package cyk

import "github.com/coregx/patrex"

// tag is an opaque, pointer-identity production label: two Tags name the
// same production target iff they are the same pointer, matching the
// source language's plain object identity (there, any distinct object
// serves as a tag).
type tag struct {
	Name string
}

// Tag names a production's left-hand side, or a leaf token's seeded tag.
type Tag = *tag

// NewTag returns a fresh Tag, distinct from every other Tag regardless of
// name collisions — used for compiler-synthesized production names (a
// split, a nested block, a recursive sub-pattern) that must never alias a
// user-chosen tag name even if the text happens to coincide.
func NewTag(name string) Tag {
	return &tag{Name: name}
}

// Tags interns tag names to pointer-identity Tag values, so a leaf
// token's string tag and a grammar's references to the same name by
// string compare equal by pointer once looked up through the same Tags.
type Tags struct {
	byName map[string]Tag
}

// NewTags returns an empty interner.
func NewTags() *Tags {
	return &Tags{byName: map[string]Tag{}}
}

// Get returns the Tag for name, creating it on first use.
func (t *Tags) Get(name string) Tag {
	if tg, ok := t.byName[name]; ok {
		return tg
	}
	tg := NewTag(name)
	t.byName[name] = tg
	return tg
}

// Element is one position in a Production's right-hand side.
type Element interface {
	// UnitLength reports whether this element always spans exactly one
	// tree position. A production may have at most two elements for
	// which this is false.
	UnitLength() bool

	// Match reports the captures bound by this element matching
	// node.Children()[start:end], or ok == false if it doesn't. If
	// UnitLength is true, callers only ever invoke Match with
	// end == start+1; an Element may panic otherwise, since that would
	// be a caller bug rather than a matchable condition.
	Match(node *AnnotatedNode, start, end int) (patrex.Captures, bool)
}

// Production restricts its Element list to at most two non-unit-length
// elements so produce can apply it in closed form: zero such elements
// means a fixed total span; one means a single variable-length split;
// two means a dynamic-programming search over the midpoint.
type Production struct {
	Tag      Tag
	Elements []Element

	// AtStart/AtEnd require the production's span to begin at position 0
	// / end at the node's full length, respectively — used for
	// productions that only make sense as a whole-list match (pasr's
	// nested-block collapsing relies on this).
	AtStart bool
	AtEnd   bool

	nonUnit     []int
	spanLengths []int
}

// NewProduction validates elements (at most two non-unit-length) and
// precomputes the fixed-length spans between and around them.
func NewProduction(t Tag, elements []Element, atStart, atEnd bool) *Production {
	p := &Production{Tag: t, Elements: elements, AtStart: atStart, AtEnd: atEnd}
	for i, e := range elements {
		if !e.UnitLength() {
			p.nonUnit = append(p.nonUnit, i)
		}
	}
	if len(p.nonUnit) > 2 {
		panic("cyk: productions can have at most two non-unit-length elements")
	}

	switch len(p.nonUnit) {
	case 2:
		p.spanLengths = []int{
			p.nonUnit[0],
			p.nonUnit[1] - p.nonUnit[0] - 1,
			len(elements) - p.nonUnit[1] - 1,
		}
	case 1:
		p.spanLengths = []int{
			p.nonUnit[0],
			len(elements) - p.nonUnit[0] - 1,
		}
	default:
		p.spanLengths = []int{len(elements)}
	}
	return p
}

// unitCache is one entry from cacheUnitlengths: a candidate start position
// for a fixed-length run of unit-length elements, and the captures that
// run bound there.
type unitCache struct {
	start int
	kv    patrex.Captures
}

// cacheUnitlengths precomputes, for each maximal run of unit-length
// elements between (or around) the production's non-unit-length elements,
// every start position at which that run's elements all match — the set
// of candidate anchor points produce searches from.
func (p *Production) cacheUnitlengths(node *AnnotatedNode) [][]unitCache {
	cache := make([][]unitCache, len(p.nonUnit)+1)
	n := len(node.children)

	for span := 0; span <= len(p.nonUnit); span++ {
		left := 0
		if span > 0 {
			left = p.nonUnit[span-1] + 1
		}
		right := len(p.Elements)
		if span < len(p.nonUnit) {
			right = p.nonUnit[span]
		}
		runLen := right - left

		for start := left; start <= n-(len(p.Elements)-left); start++ {
			if p.AtStart && span == 0 && start != 0 {
				continue
			}
			if p.AtEnd && span == len(p.nonUnit) && start+runLen != n {
				continue
			}

			kv := patrex.Captures{}
			ok := true
			for idx := 0; idx < runLen; idx++ {
				subkv, matched := p.Elements[left+idx].Match(node, start+idx, start+idx+1)
				if !matched {
					ok = false
					break
				}
				kv = kv.Merge(subkv)
			}
			if ok {
				cache[span] = append(cache[span], unitCache{start: start, kv: kv})
			}
		}
	}
	return cache
}

// intersectEnds filters the leftmost and rightmost unit-length caches down
// to start positions consistent with a total span of length, merging
// their captures. Both caches are already ascending by start position
// (built by an ascending scan in cacheUnitlengths), so a two-pointer merge
// suffices.
func (p *Production) intersectEnds(cache [][]unitCache, length int) []unitCache {
	left := cache[0]
	right := cache[len(cache)-1]
	rightOffset := p.spanLengths[len(p.spanLengths)-1] - length

	var out []unitCache
	i, j := 0, 0
	for i < len(left) && j < len(right) {
		leftStart := left[i].start
		rightStart := right[j].start + rightOffset
		switch {
		case leftStart < rightStart:
			i++
		case leftStart > rightStart:
			j++
		default:
			out = append(out, unitCache{start: leftStart, kv: left[i].kv.Merge(right[j].kv)})
			i++
			j++
		}
	}
	return out
}

// produce applies the production at every tree position spanning the
// given length, recording matches on node via addMatch. When more than
// one midpoint could complete a two-non-unit production over the same
// span, the first one tried wins — spec's "first middle wins" rule.
func (p *Production) produce(node *AnnotatedNode, length int, cache [][]unitCache) {
	if length < len(p.Elements) {
		return
	}

	switch len(p.nonUnit) {
	case 0:
		if length == len(p.Elements) {
			for _, c := range cache[0] {
				node.addMatch(c.start, c.start+length, p.Tag, c.kv)
			}
		}

	case 1:
		nu := p.nonUnit[0]
		for _, c := range p.intersectEnds(cache, length) {
			subkv, ok := p.Elements[nu].Match(node, c.start+nu, c.start+length-p.spanLengths[len(p.spanLengths)-1])
			if !ok {
				continue
			}
			node.addMatch(c.start, c.start+length, p.Tag, c.kv.Merge(subkv))
		}

	default:
		left, right := p.nonUnit[0], p.nonUnit[1]
		for _, c := range p.intersectEnds(cache, length) {
			for _, m := range cache[1] {
				mid := m.start
				if mid <= c.start+left {
					continue
				}
				if mid+p.spanLengths[1]+1+p.spanLengths[2] > c.start+length {
					continue
				}

				leftkv, ok := p.Elements[left].Match(node, c.start+left, mid)
				if !ok {
					continue
				}
				rightkv, ok := p.Elements[right].Match(node, mid+p.spanLengths[1], c.start+length-p.spanLengths[2])
				if !ok {
					continue
				}

				kv := c.kv.Merge(m.kv).Merge(leftkv).Merge(rightkv)
				node.addMatch(c.start, c.start+length, p.Tag, kv)
				break
			}
		}
	}
}

// matchEntry is one recorded production match over a span.
type matchEntry struct {
	tag Tag
	kv  patrex.Captures
}

// MatchEntry is one recorded production match over a span, as seen by an
// Element implementation (pasr's MatchNonTerminal filters these by tag).
type MatchEntry struct {
	Tag      Tag
	Captures patrex.Captures
}

// AnnotatedNode mirrors one node of a token tree (leaf or list), holding
// — for a list node — the triangular table of production matches found
// over its children's spans.
type AnnotatedNode struct {
	token    patrex.List
	leaf     patrex.TextRange
	isLeaf   bool
	children []*AnnotatedNode
	matches  [][]matchEntry // flat, indexed by spanIndex(start,end); nil for a leaf
}

func newAnnotatedNode(tok patrex.Token) *AnnotatedNode {
	if l, ok := patrex.IsList(tok); ok {
		n := &AnnotatedNode{token: l}
		n.children = make([]*AnnotatedNode, len(l))
		for i, elt := range l {
			n.children[i] = newAnnotatedNode(elt)
		}
		n.matches = make([][]matchEntry, len(l)*(len(l)+1)/2)
		return n
	}
	return &AnnotatedNode{leaf: tok.(patrex.TextRange), isLeaf: true}
}

// IsList reports whether this node wraps a sub-list rather than a leaf
// token.
func (n *AnnotatedNode) IsList() bool {
	return !n.isLeaf
}

// Children returns the node's children. Only valid if IsList.
func (n *AnnotatedNode) Children() []*AnnotatedNode {
	return n.children
}

// Token returns the raw List this node annotates. Only valid if IsList.
func (n *AnnotatedNode) Token() patrex.List {
	return n.token
}

// Leaf returns the raw TextRange this node wraps. Only valid if !IsList.
func (n *AnnotatedNode) Leaf() patrex.TextRange {
	return n.leaf
}

// TextStart and TextEnd delegate to patrex's flanking-bracket peek, so
// Elements can report the text span a production covers the same way
// patrex.TextStart/TextEnd do for any other token-tree consumer.
func (n *AnnotatedNode) TextStart(elt int) int { return patrex.TextStart(n.token, elt) }
func (n *AnnotatedNode) TextEnd(elt int) int   { return patrex.TextEnd(n.token, elt) }

// TextRange returns the TextRange spanning [start, end) of node's children,
// for an Element (pasr's MatchStore) to attach as a capture.
func (n *AnnotatedNode) TextRange(start, end int) patrex.TextRange {
	startPos := n.TextStart(start)
	endPos := n.TextEnd(end - 1)
	text := ""
	if _, ok := patrex.IsList(n.token[start]); ok {
		text = n.token[start+1].(patrex.TextRange).Text
	} else {
		text = n.token[start].(patrex.TextRange).Text
	}
	return patrex.TextRange{Text: text, Start: startPos, End: endPos}
}

// spanIndex addresses the flat matches buffer using the same
// end*(end-1)/2+start triangular-number formula used throughout this
// module, so a single backing slice serves every (start, end) pair
// without an allocation per span.
func spanIndex(start, end int) int {
	return end*(end-1)/2 + start
}

// MatchesAt returns the matches recorded for the span [start, end), in the
// order productions produced them — the order pasr's MatchNonTerminal
// relies on to pick the first matching tag.
func (n *AnnotatedNode) MatchesAt(start, end int) []MatchEntry {
	entries := n.matches[spanIndex(start, end)]
	out := make([]MatchEntry, len(entries))
	for i, e := range entries {
		out[i] = MatchEntry{Tag: e.tag, Captures: e.kv}
	}
	return out
}

func (n *AnnotatedNode) addMatch(start, end int, t Tag, kv patrex.Captures) {
	idx := spanIndex(start, end)
	n.matches[idx] = append(n.matches[idx], matchEntry{tag: t, kv: kv})
}

// visitLists calls fn on every list-node of the tree rooted at n, in
// post-order (children before parents) — bottom-up, since a parent's
// productions may consume a fully-matched child's tag as if it were a
// single unit-length token.
func visitLists(n *AnnotatedNode, fn func(*AnnotatedNode)) {
	if !n.IsList() {
		return
	}
	for _, c := range n.children {
		if c.IsList() {
			visitLists(c, fn)
		}
	}
	fn(n)
}

// Result holds a token tree annotated with every Production's matches,
// ready for querying via ForGreedyMax or directly via Root().MatchesAt.
type Result struct {
	root *AnnotatedNode
}

// Root returns the annotated root node, for callers that want to query a
// specific span directly (e.g. the full-tree span) rather than enumerate
// maximal occurrences via ForGreedyMax.
func (r *Result) Root() *AnnotatedNode {
	return r.root
}

// Run annotates tree bottom-up with productions, seeding each list node
// with its children's own leaf tags (and fully-matched sub-list tags)
// before applying productions over increasing span lengths.
func Run(tags *Tags, tree patrex.List, productions []*Production) *Result {
	patrex.Logger().Tracef("patrex/cyk: running %d productions over %d top-level tokens", len(productions), len(tree))
	root := newAnnotatedNode(tree)
	visitLists(root, func(node *AnnotatedNode) {
		seed(tags, node)

		caches := make([][][]unitCache, len(productions))
		for i, p := range productions {
			caches[i] = p.cacheUnitlengths(node)
		}
		for length := 1; length <= len(node.children); length++ {
			for i, p := range productions {
				p.produce(node, length, caches[i])
			}
		}
	})
	return &Result{root: root}
}

// seed marks each child position with its own already-known tag: a leaf's
// TextRange.Tag (if non-empty), or — for a child that is itself a fully
// matched list — every tag that child's own full span matched, promoted
// up as if the child were a single unit-length token of that tag.
func seed(tags *Tags, node *AnnotatedNode) {
	for idx, child := range node.children {
		if !child.IsList() {
			if child.leaf.Tag != "" {
				node.addMatch(idx, idx+1, tags.Get(child.leaf.Tag), patrex.Captures{})
			}
			continue
		}
		if len(child.children) == 0 {
			continue
		}
		full := spanIndex(0, len(child.children))
		for _, e := range child.matches[full] {
			node.addMatch(idx, idx+1, e.tag, e.kv)
		}
	}
}

// ForGreedyMax calls fn with the captures of a greedy, left-to-right
// selection of inclusion-wise maximal occurrences of tag: at each
// position it prefers the longest match found, and otherwise descends
// into an unmatched list child before advancing past it.
func (r *Result) ForGreedyMax(t Tag, fn func(patrex.Captures)) {
	var visit func(n *AnnotatedNode)
	visit = func(n *AnnotatedNode) {
		start := 0
		for start < len(n.token) {
			found := false
			for end := len(n.token); end > start; end-- {
				for _, e := range n.matches[spanIndex(start, end)] {
					if e.tag == t {
						fn(e.kv)
						found = true
						break
					}
				}
				if found {
					start = end
					break
				}
			}
			if !found {
				if child := n.children[start]; child.IsList() {
					visit(child)
				}
				start++
			}
		}
	}
	visit(r.root)
}
