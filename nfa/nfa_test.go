package nfa

import (
	"testing"

	"github.com/coregx/patrex"
	"github.com/stretchr/testify/require"
)

func tr(text string, start, end int) patrex.TextRange {
	return patrex.TextRange{Text: text, Start: start, End: end}
}

func TestSimulateMatchesSingleToken(t *testing.T) {
	n := New()
	start := n.NewState()
	end := n.NewState()
	n.Transition(start, end, Token(tr("a", 0, 1)))

	tree := patrex.List{tr("a", 0, 1)}
	_, _, reached := n.Simulate(tree, start, nil, nil, end)
	require.True(t, reached)
}

func TestSimulateRejectsWrongToken(t *testing.T) {
	n := New()
	start := n.NewState()
	end := n.NewState()
	n.Transition(start, end, Token(tr("a", 0, 1)))

	tree := patrex.List{tr("b", 0, 1)}
	_, _, reached := n.Simulate(tree, start, nil, nil, end)
	require.False(t, reached)
}

func TestSimulateRequiresFullConsumption(t *testing.T) {
	n := New()
	start := n.NewState()
	end := n.NewState()
	n.Transition(start, end, Token(tr("a", 0, 1)))

	// Run to completion (no goal early exit, which stops at the earliest
	// match) and check the end state is not live after the trailing token.
	tree := patrex.List{tr("a b", 0, 1), tr("a b", 2, 3)}
	all, _, _ := n.Simulate(tree, start, nil, nil, InvalidState)
	_, reached := all[end]
	require.False(t, reached, "an extra trailing token should prevent reaching the goal state")
}

func TestSimulateListMatcherDescendsIntoNestedList(t *testing.T) {
	n := New()

	innerStart := n.NewState()
	innerEnd := n.NewState()
	n.Transition(innerStart, innerEnd, Token(tr("x", 0, 1)))

	start := n.NewState()
	end := n.NewState()
	n.Transition(start, end, List(n, innerStart, innerEnd))

	tree := patrex.List{patrex.List{tr("x", 0, 1)}}
	_, _, reached := n.Simulate(tree, start, nil, nil, end)
	require.True(t, reached)
}

func TestSimulateNotMatcherRejectsOnSubMatch(t *testing.T) {
	n := New()
	subStart := n.NewState()
	subEnd := n.NewState()
	n.Transition(subStart, subEnd, Token(tr("a", 0, 1)))

	start := n.NewState()
	end := n.NewState()
	n.Transition(start, end, Not(n, subStart, subEnd))

	matching := patrex.List{tr("a", 0, 1)}
	_, _, reached := n.Simulate(matching, start, nil, nil, end)
	require.False(t, reached, "Not should reject a token the wrapped pattern does match")

	nonMatching := patrex.List{tr("b", 0, 1)}
	_, _, reached = n.Simulate(nonMatching, start, nil, nil, end)
	require.True(t, reached, "Not should accept a token the wrapped pattern does not match")
}

func TestExpandEpsilonsBindsPrevAndNextCaptures(t *testing.T) {
	n := New()
	startA := n.NewState()
	midA := n.NewState()
	n.Transition(startA, midA, Token(tr("a b", 0, 1)))

	gap := n.NewState()
	t1 := n.Transition(midA, gap, nil)
	t1.PrevCapture = "before"
	t1.NextCapture = "after"

	endB := n.NewState()
	n.Transition(gap, endB, Token(tr("a b", 2, 3)))

	tree := patrex.List{tr("a b", 0, 1), tr("a b", 2, 3)}
	_, goalCaptures, reached := n.Simulate(tree, startA, nil, nil, endB)
	require.True(t, reached)

	before, ok := goalCaptures.Range("before")
	require.True(t, ok)
	require.Equal(t, 1, before.Start)
	require.Equal(t, 1, before.End)

	after, ok := goalCaptures.Range("after")
	require.True(t, ok)
	require.Equal(t, 2, after.Start)
	require.Equal(t, 2, after.End)
}

func TestExpandEpsilonsPushStoreAndPopBuildsListCapture(t *testing.T) {
	n := New()

	start := n.NewState()
	body := n.NewState()
	end := n.NewState()

	open := n.Transition(start, body, nil)
	open.StackOp = Push
	open.StackKey = "items"
	open.RangeStartKey = "cur"

	n.Transition(body, end, Token(tr("needle", 0, 6)))

	// A single transition both closes the pending "cur" range and, via
	// Pop's StoreCaptureKey, appends it to the "items" frame before
	// finalizing the frame as a list capture.
	goal := n.NewState()
	pop := n.Transition(end, goal, nil)
	pop.RangeEndKey = "cur"
	pop.StackOp = Pop
	pop.StackKey = "items"
	pop.StoreCaptureKey = "cur"

	tree := patrex.List{tr("needle", 0, 6)}
	_, goalCaptures, reached := n.Simulate(tree, start, nil, nil, goal)
	require.True(t, reached)

	items, ok := goalCaptures.Items("items")
	require.True(t, ok)
	require.Len(t, items, 1)
	require.Equal(t, "needle", items[0].String())
}

func TestInsertCopiesStatesWithoutCollision(t *testing.T) {
	sub := New()
	subStart := sub.NewState()
	subEnd := sub.NewState()
	sub.Transition(subStart, subEnd, Token(tr("a", 0, 1)))

	n := New()
	n.NewState() // occupy state 0 so the inserted ids are guaranteed to shift
	stateMap := n.Insert(sub)

	start := stateMap[subStart]
	end := stateMap[subEnd]
	require.NotEqual(t, subStart, start)
	require.NotEqual(t, subEnd, end)

	tree := patrex.List{tr("a", 0, 1)}
	_, _, reached := n.Simulate(tree, start, nil, nil, end)
	require.True(t, reached)
}
