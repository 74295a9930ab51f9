package patrex

import (
	"fmt"
	"sort"
	"strings"
)

type editorInsert struct {
	where int
	what  string
}

type editorErase struct {
	start, end int
}

// Editor batches a number of insert and erase operations on a text, all
// indexed to the original text's character positions, then applies them in
// one left-to-right pass. It does not mutate the text it is constructed
// with — each call to Apply takes the text to edit explicitly, so the same
// Editor can be replayed against equivalent texts.
type Editor struct {
	inserts []editorInsert
	erases  []editorErase
}

// NewEditor returns an empty Editor.
func NewEditor() *Editor {
	return &Editor{}
}

// Insert records that the text "what" should be inserted at position where.
func (e *Editor) Insert(where int, what string) {
	e.inserts = append(e.inserts, editorInsert{where, what})
}

// Erase records that the text in [start, end) should be erased.
func (e *Editor) Erase(start, end int) {
	e.erases = append(e.erases, editorErase{start, end})
}

// Apply merges all recorded operations against text, left to right,
// inserting first when an insert and an erase start at the same position.
// An insert positioned strictly inside an erased region is dropped, since
// the erase consumes the cursor past the insert's recorded position before
// it is ever reached.
func (e *Editor) Apply(text string) (string, error) {
	inserts := append([]editorInsert(nil), e.inserts...)
	erases := append([]editorErase(nil), e.erases...)

	sort.SliceStable(inserts, func(i, j int) bool { return inserts[i].where < inserts[j].where })
	sort.SliceStable(erases, func(i, j int) bool { return erases[i].start < erases[j].start })

	var out strings.Builder
	idxInsert, idxErase := 0, 0
	where := 0

	for {
		for idxErase < len(erases) && erases[idxErase].start < where {
			idxErase++
		}
		for idxInsert < len(inserts) && inserts[idxInsert].where < where {
			idxInsert++
		}

		var nextErase, nextInsert *int
		if idxErase < len(erases) {
			v := erases[idxErase].start
			nextErase = &v
		}
		if idxInsert < len(inserts) {
			v := inserts[idxInsert].where
			nextInsert = &v
		}

		if nextErase == nil && nextInsert == nil {
			if where > len(text) {
				return "", fmt.Errorf("patrex: editor position %d past end of text (len %d)", where, len(text))
			}
			out.WriteString(text[where:])
			break
		}

		if nextErase != nil && (nextInsert == nil || *nextErase < *nextInsert) {
			if *nextErase > len(text) || erases[idxErase].end > len(text) {
				return "", fmt.Errorf("patrex: erase [%d,%d) out of bounds for text of length %d", erases[idxErase].start, erases[idxErase].end, len(text))
			}
			out.WriteString(text[where:*nextErase])
			where = erases[idxErase].end
			idxErase++
		} else {
			ins := inserts[idxInsert]
			if ins.where > len(text) {
				return "", fmt.Errorf("patrex: insert at %d out of bounds for text of length %d", ins.where, len(text))
			}
			out.WriteString(text[where:ins.where])
			where = ins.where
			out.WriteString(ins.what)
			idxInsert++
		}
	}

	return out.String(), nil
}
