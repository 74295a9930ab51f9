package patrex

import (
	"fmt"
	"strings"
)

// LineFromPos computes the 1-based line number of pos within text.
func LineFromPos(text string, pos int) int {
	if pos > len(text) {
		pos = len(text)
	}
	return strings.Count(text[:pos], "\n") + 1
}

// ColFromPos computes the 1-based column number of pos within text.
func ColFromPos(text string, pos int) int {
	if pos > len(text) {
		pos = len(text)
	}
	prev := strings.LastIndex(text[:pos], "\n")
	// prev == -1 on failure is exactly the offset we need: col = pos - (-1).
	return pos - prev
}

// WhereFromPos formats pos within text as "line:col", both 1-based.
func WhereFromPos(text string, pos int) string {
	return fmt.Sprintf("%d:%d", LineFromPos(text, pos), ColFromPos(text, pos))
}

// TextRange is a range of text within a larger multi-line text, used as the
// token representation throughout the module. Equality for matching
// purposes is by lexical content plus Tag, not by offset — two TextRanges
// over different texts (or different offsets of the same text) that quote
// the same characters and carry the same tag are considered equal matches.
type TextRange struct {
	Text  string
	Start int
	End   int
	Tag   string // empty means "no tag"
}

// String returns the quoted text this range covers.
func (r TextRange) String() string {
	return r.Text[r.Start:r.End]
}

// GoString is a debug representation including the tag, mirroring the
// source's repr() which appends ":tag" when present.
func (r TextRange) GoString() string {
	if r.Tag != "" {
		return fmt.Sprintf("<%s:%q>", r.String(), r.Tag)
	}
	return fmt.Sprintf("<%s>", r.String())
}

// Equal compares two TextRanges by lexical content and tag, per the data
// model's equality rule — not by Start/End offsets.
func (r TextRange) Equal(o TextRange) bool {
	return r.Tag == o.Tag && r.String() == o.String()
}

// HasTag reports whether this range has a non-empty tag equal to tag.
func (r TextRange) HasTag(tag string) bool {
	return r.Tag != "" && r.Tag == tag
}

// TextError is a syntactic error in input text or pattern text. It always
// carries a formatted position so the caller gets a human-readable location
// without re-deriving it from Pos.
type TextError struct {
	Text string
	Pos  int
	Msg  string
}

func (e *TextError) Error() string {
	return fmt.Sprintf("%s: %s", WhereFromPos(e.Text, e.Pos), e.Msg)
}

// NewTextError constructs a TextError at pos in text with the given message.
func NewTextError(text string, pos int, msg string) *TextError {
	return &TextError{Text: text, Pos: pos, Msg: msg}
}

// NewTextErrorf is NewTextError with Printf-style formatting.
func NewTextErrorf(text string, pos int, format string, args ...any) *TextError {
	return NewTextError(text, pos, fmt.Sprintf(format, args...))
}
