package patrex

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEditorApplyWithNoOperationsReturnsTextUnchanged(t *testing.T) {
	e := NewEditor()
	out, err := e.Apply("hello world")
	require.NoError(t, err)
	require.Equal(t, "hello world", out)
}

func TestEditorApplyInsertsAtPosition(t *testing.T) {
	e := NewEditor()
	e.Insert(5, ",")
	out, err := e.Apply("hello world")
	require.NoError(t, err)
	require.Equal(t, "hello, world", out)
}

func TestEditorApplyErasesRange(t *testing.T) {
	e := NewEditor()
	e.Erase(5, 11)
	out, err := e.Apply("hello world!")
	require.NoError(t, err)
	require.Equal(t, "hello!", out)
}

func TestEditorApplyCommutesNonOverlappingEdits(t *testing.T) {
	text := "the quick brown fox"

	a := NewEditor()
	a.Insert(4, "very ")
	a.Erase(10, 16) // "brown "

	b := NewEditor()
	b.Erase(10, 16)
	b.Insert(4, "very ")

	outA, errA := a.Apply(text)
	outB, errB := b.Apply(text)
	require.NoError(t, errA)
	require.NoError(t, errB)
	require.Equal(t, outA, outB, "order of recording non-overlapping edits must not affect the result")
	require.Equal(t, "the very quick fox", outA)
}

func TestEditorApplyInsertAtEraseStartPrefersInsertFirst(t *testing.T) {
	e := NewEditor()
	e.Erase(4, 9)
	e.Insert(4, "XXX")
	out, err := e.Apply("the quick brown fox")
	require.NoError(t, err)
	require.Equal(t, "the XXX brown fox", out)
}

func TestEditorApplyInsertStrictlyInsideErasedRegionIsDropped(t *testing.T) {
	e := NewEditor()
	e.Erase(0, 10)
	e.Insert(5, "MID")
	out, err := e.Apply("0123456789tail")
	require.NoError(t, err)
	require.Equal(t, "tail", out, "an insert whose position is consumed by a surrounding erase is dropped")
}

func TestEditorApplyRejectsOutOfBoundsInsert(t *testing.T) {
	e := NewEditor()
	e.Insert(100, "x")
	_, err := e.Apply("short")
	require.Error(t, err)
}

func TestEditorApplyRejectsOutOfBoundsErase(t *testing.T) {
	e := NewEditor()
	e.Erase(2, 100)
	_, err := e.Apply("short")
	require.Error(t, err)
}

func TestEditorApplyIsIdempotentOverAnUnmodifiedReplay(t *testing.T) {
	e := NewEditor()
	e.Insert(0, "[")
	e.Insert(5, "]")

	first, err := e.Apply("hello")
	require.NoError(t, err)

	second, err := e.Apply("hello")
	require.NoError(t, err)

	require.Equal(t, first, second, "the same Editor replayed against the same text must produce the same output")
}
