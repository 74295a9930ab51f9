// Package nfa implements the NFA core shared by the patre pattern engine:
// a flat pool of integer-indexed states with labelled and epsilon
// transitions, sub-automaton inlining, capture metadata, and a simulation
// loop that walks a token tree.
package nfa

import (
	"sort"

	"github.com/coregx/patrex"
	"github.com/coregx/patrex/internal/conv"
	"github.com/coregx/patrex/internal/sparse"
)

// StateID uniquely identifies an Nfa state.
type StateID uint32

// InvalidState is the sentinel returned where no state applies.
const InvalidState StateID = ^StateID(0)

// StackOp identifies a list-capture stack operation carried by an epsilon
// transition.
type StackOp uint8

const (
	// NoStackOp means the transition carries no stack effect.
	NoStackOp StackOp = iota
	// Push begins a new list-capture frame for StackKey.
	Push
	// Store appends the capture named StoreCaptureKey to the top-of-stack
	// frame for StackKey.
	Store
	// Pop finalizes the top frame for StackKey and writes it as a
	// []TextRange capture under StackKey. If StoreCaptureKey is also set,
	// it is stored before the frame is finalized — this is how the last
	// repetition of a "X*[key]" construct is captured, since it exits
	// directly through the Pop edge rather than looping back through a
	// Store edge.
	Pop
)

// Transition is an edge in the Nfa: labelled if Match is non-nil, epsilon
// otherwise.
type Transition struct {
	Start, End StateID
	Match      Matcher // nil for epsilon transitions

	// PrevCapture/NextCapture name a capture key to bind, on traversal, to
	// the end of the token preceding the current gap / the start of the
	// token following it, respectively. Only meaningful on epsilon
	// transitions.
	PrevCapture string
	NextCapture string

	// RangeStartKey/RangeEndKey implement a wrapped sub-pattern's full-span
	// capture: RangeStartKey stashes the position of the following token as
	// the pending start of a span; RangeEndKey closes the pending start
	// against the position of the preceding token and writes the merged
	// span as a capture under the same key. Used by patre's "X|key|" range
	// capture and, with a compiler-generated key, by the implicit
	// per-repetition span of "X*[key]".
	RangeStartKey string
	RangeEndKey   string

	// StackOp/StackKey carry a list-capture stack effect; StoreCaptureKey
	// names the capture that Store (or a Pop that also stores) appends to
	// the list. Only meaningful on epsilon transitions.
	StackOp         StackOp
	StackKey        string
	StoreCaptureKey string

	// Priority orders alternatives inside a $|{a}{b}... choice: lower
	// wins when multiple epsilon transitions from the same state reach
	// the same target in a single epsilon-closure expansion.
	Priority int
}

// State owns its outgoing transitions, split into labelled and epsilon
// lists so simulation can treat them differently.
type State struct {
	transitions []*Transition
	epsilons    []*Transition
}

// Nfa is a flat, integer-indexed pool of States. States and transitions are
// never removed once added; cycles (e.g. the back-epsilon of a Kleene star)
// are ordinary graph edges addressed by StateID.
type Nfa struct {
	states []State
}

// New returns an empty Nfa.
func New() *Nfa {
	return &Nfa{}
}

// NewState appends a fresh state with no transitions and returns its id.
func (n *Nfa) NewState() StateID {
	n.states = append(n.states, State{})
	return StateID(conv.IntToUint32(len(n.states) - 1))
}

// NumStates returns the number of states in the pool.
func (n *Nfa) NumStates() int {
	return len(n.states)
}

// Transition appends a transition from start to end. match == nil produces
// an epsilon transition; the returned *Transition may be further annotated
// with captures, a stack op, or a priority before simulation.
func (n *Nfa) Transition(start, end StateID, match Matcher) *Transition {
	t := &Transition{Start: start, End: end, Match: match}
	if match != nil {
		n.states[start].transitions = append(n.states[start].transitions, t)
	} else {
		n.states[start].epsilons = append(n.states[start].epsilons, t)
	}
	return t
}

// Insert copies all of sub's states into n, returning the state-id mapping
// from sub's ids to their new ids in n. Used when a named sub-pattern is
// inlined by the patre compiler; copying (rather than sharing) avoids id
// collisions between the two automatons.
func (n *Nfa) Insert(sub *Nfa) map[StateID]StateID {
	base := len(n.states)
	stateMap := make(map[StateID]StateID, len(sub.states))
	for i := range sub.states {
		stateMap[StateID(conv.IntToUint32(i))] = StateID(conv.IntToUint32(base + i))
	}
	for range sub.states {
		n.NewState()
	}

	for oldIdx, oldState := range sub.states {
		for _, t := range oldState.transitions {
			n.Transition(stateMap[StateID(oldIdx)], stateMap[t.End], t.Match)
		}
		for _, t := range oldState.epsilons {
			nt := n.Transition(stateMap[StateID(oldIdx)], stateMap[t.End], nil)
			nt.PrevCapture = t.PrevCapture
			nt.NextCapture = t.NextCapture
			nt.RangeStartKey = t.RangeStartKey
			nt.RangeEndKey = t.RangeEndKey
			nt.StackOp = t.StackOp
			nt.StackKey = t.StackKey
			nt.StoreCaptureKey = t.StoreCaptureKey
			nt.Priority = t.Priority
		}
	}
	return stateMap
}

// captureFrame is one list-capture's in-progress accumulation.
type captureFrame struct {
	key    string
	ranges []patrex.TextRange
}

// threadState is the per-live-state bookkeeping carried through expansion
// and simulation: the bound captures, any open list-capture frames, and any
// pending (not yet closed) range-capture starts. Frames and pending starts
// are per-thread and copied on branch, so two threads that diverge after a
// shared PUSH (or range-capture open) accumulate independently.
type threadState struct {
	captures    patrex.Captures
	stack       []captureFrame
	rangeStarts map[string]patrex.TextRange
}

func (ts threadState) clone() threadState {
	out := threadState{captures: ts.captures.Clone()}
	if len(ts.stack) > 0 {
		out.stack = make([]captureFrame, len(ts.stack))
		for i, f := range ts.stack {
			out.stack[i] = captureFrame{key: f.key, ranges: append([]patrex.TextRange(nil), f.ranges...)}
		}
	}
	if len(ts.rangeStarts) > 0 {
		out.rangeStarts = make(map[string]patrex.TextRange, len(ts.rangeStarts))
		for k, v := range ts.rangeStarts {
			out.rangeStarts[k] = v
		}
	}
	return out
}

func (ts *threadState) ensureCaptures() {
	if ts.captures == nil {
		ts.captures = patrex.Captures{}
	}
}

func (ts *threadState) push(key string) {
	ts.stack = append(ts.stack, captureFrame{key: key})
}

func (ts *threadState) storeTop(key string, r patrex.TextRange) {
	for i := len(ts.stack) - 1; i >= 0; i-- {
		if ts.stack[i].key == key {
			ts.stack[i].ranges = append(ts.stack[i].ranges, r)
			return
		}
	}
}

func (ts *threadState) pop(key string) {
	for i := len(ts.stack) - 1; i >= 0; i-- {
		if ts.stack[i].key == key {
			frame := ts.stack[i]
			ts.stack = append(ts.stack[:i], ts.stack[i+1:]...)
			ts.ensureCaptures()
			ts.captures.SetList(key, frame.ranges)
			return
		}
	}
}

func (ts *threadState) setRangeStart(key string, r patrex.TextRange) {
	if ts.rangeStarts == nil {
		ts.rangeStarts = map[string]patrex.TextRange{}
	}
	ts.rangeStarts[key] = r
}

func (ts *threadState) closeRange(key string, end patrex.TextRange) {
	start, ok := ts.rangeStarts[key]
	if !ok {
		return
	}
	delete(ts.rangeStarts, key)
	ts.ensureCaptures()
	ts.captures.SetRange(key, patrex.TextRange{Text: start.Text, Start: start.Start, End: end.End})
}

// reachable is the live-state map threaded through expandEpsilons and the
// simulation loop: state id -> accumulated thread state.
type reachable map[StateID]threadState

// flatten reduces tok to the representative leaf TextRange used for
// capture anchoring: nil stays nil, a leaf is itself, and a non-empty list
// is flattened to its last (dir<0) or first (dir>0) child, recursively.
// An empty list flattens to nil, matching the source's truthiness check
// ("if prev:") before binding a capture off of it.
func flatten(tok patrex.Token, dir int) *patrex.TextRange {
	for {
		if tok == nil {
			return nil
		}
		if l, ok := patrex.IsList(tok); ok {
			if len(l) == 0 {
				return nil
			}
			if dir < 0 {
				tok = l[len(l)-1]
			} else {
				tok = l[0]
			}
			continue
		}
		tr := tok.(patrex.TextRange)
		return &tr
	}
}

// expandEpsilons computes the epsilon closure of states in place. prev/next
// are the tokens adjacent to the current gap, flattened per the rule above
// before being used for capture anchoring. A state reached along multiple
// epsilon paths keeps the first-discovered arrival in breadth-first
// traversal order, except where two transitions from the same expansion
// target the same state: there, the lower-Priority transition's capture
// set wins. Priority is compared only between transitions leaving the
// same state; the alternatives of a $|{a}{b}... choice each end in a state
// of their own, so which of them reaches the shared end state first is
// decided by discovery order (ascending state id among the starting
// states), not by Priority.
func (n *Nfa) expandEpsilons(states reachable, prevTok, nextTok patrex.Token) {
	prev := flatten(prevTok, -1)
	next := flatten(nextTok, +1)

	visited := sparse.NewSparseSet(conv.IntToUint32(len(n.states)))
	queue := make([]StateID, 0, len(states))
	for s := range states {
		visited.Insert(uint32(s))
		queue = append(queue, s)
	}
	sort.Slice(queue, func(i, j int) bool { return queue[i] < queue[j] })

	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]
		ts := states[s]

		type arrival struct {
			priority int
			ts       threadState
		}
		byTarget := map[StateID]arrival{}

		for _, t := range n.states[s].epsilons {
			if visited.Contains(uint32(t.End)) {
				continue
			}
			cand := ts.clone()
			if t.PrevCapture != "" && prev != nil {
				cand.ensureCaptures()
				cand.captures.SetRange(t.PrevCapture, patrex.TextRange{Text: prev.Text, Start: prev.End, End: prev.End})
			}
			if t.NextCapture != "" && next != nil {
				cand.ensureCaptures()
				cand.captures.SetRange(t.NextCapture, patrex.TextRange{Text: next.Text, Start: next.Start, End: next.Start})
			}
			if t.RangeEndKey != "" && prev != nil {
				cand.closeRange(t.RangeEndKey, *prev)
			}
			if t.RangeStartKey != "" && next != nil {
				cand.setRangeStart(t.RangeStartKey, *next)
			}
			switch t.StackOp {
			case Push:
				cand.push(t.StackKey)
			case Store:
				if r, ok := cand.captures.Range(t.StoreCaptureKey); ok {
					cand.storeTop(t.StackKey, r)
				}
			case Pop:
				if t.StoreCaptureKey != "" {
					if r, ok := cand.captures.Range(t.StoreCaptureKey); ok {
						cand.storeTop(t.StackKey, r)
					}
				}
				cand.pop(t.StackKey)
			}

			if existing, ok := byTarget[t.End]; !ok || t.Priority < existing.priority {
				byTarget[t.End] = arrival{priority: t.Priority, ts: cand}
			}
		}

		targets := make([]StateID, 0, len(byTarget))
		for tgt := range byTarget {
			targets = append(targets, tgt)
		}
		sort.Slice(targets, func(i, j int) bool { return targets[i] < targets[j] })

		for _, tgt := range targets {
			if visited.Contains(uint32(tgt)) {
				continue
			}
			visited.Insert(uint32(tgt))
			states[tgt] = byTarget[tgt].ts
			queue = append(queue, tgt)
		}
	}

	patrex.Logger().Tracef("patrex/nfa: epsilon closure reached %d states", len(states))
}

// Simulate runs the Nfa over tree starting at startState, with beforeToken
// and afterToken as the (possibly nil) context tokens flanking tree — used
// when tree is itself a sub-list's contents, so that "$<|k|"/"$>|k|"
// anchors at its boundary can still see the enclosing tokens.
//
// If goalState != InvalidState, Simulate returns as soon as it is reached
// (earliest-match; this also backs nfa_not's bounded look-ahead) via the
// (goalCaptures, true) result; otherwise it runs to completion and returns
// the full reached-state capture map via (all, false).
func (n *Nfa) Simulate(tree patrex.List, startState StateID, beforeToken, afterToken patrex.Token, goalState StateID) (all map[StateID]patrex.Captures, goalCaptures patrex.Captures, reachedGoal bool) {
	states := reachable{startState: {captures: patrex.Captures{}}}

	checkGoal := func() (patrex.Captures, bool) {
		if goalState == InvalidState {
			return nil, false
		}
		if ts, ok := states[goalState]; ok {
			return ts.captures, true
		}
		return nil, false
	}

	if len(tree) == 0 {
		n.expandEpsilons(states, beforeToken, afterToken)
		if c, ok := checkGoal(); ok {
			return nil, c, true
		}
		return toCaptureMap(states), nil, false
	}

	var token, nextToken patrex.Token = beforeToken, tree[0]

	for idx := 0; idx < len(tree); idx++ {
		prevToken := token
		token = nextToken
		if idx+1 == len(tree) {
			nextToken = afterToken
		} else {
			nextToken = tree[idx+1]
		}

		n.expandEpsilons(states, prevToken, token)

		if c, ok := checkGoal(); ok {
			return nil, c, true
		}

		newStates := reachable{}
		live := make([]StateID, 0, len(states))
		for s := range states {
			live = append(live, s)
		}
		sort.Slice(live, func(i, j int) bool { return live[i] < live[j] })
		for _, s := range live {
			ts := states[s]
			for _, t := range n.states[s].transitions {
				if _, already := newStates[t.End]; already {
					continue
				}
				matchKV, ok := t.Match.Match(prevToken, tree, idx, nextToken)
				if !ok {
					continue
				}
				cand := ts.clone()
				if len(matchKV) > 0 {
					cand.ensureCaptures()
					for k, v := range matchKV {
						cand.captures[k] = v
					}
				}
				newStates[t.End] = cand
			}
		}
		states = newStates
	}

	n.expandEpsilons(states, token, nextToken)

	if c, ok := checkGoal(); ok {
		return nil, c, true
	}
	if goalState != InvalidState {
		return nil, nil, false
	}
	return toCaptureMap(states), nil, false
}

func toCaptureMap(states reachable) map[StateID]patrex.Captures {
	out := make(map[StateID]patrex.Captures, len(states))
	for s, ts := range states {
		out[s] = ts.captures
	}
	return out
}
