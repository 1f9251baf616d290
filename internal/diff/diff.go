// Package diff derives an instruction sequence that turns one text snapshot
// into another.
//
// The diff itself comes from diffmatchpatch; this package only folds the
// edit script into hunks and expands hunks into instructions whose indices
// account for every earlier instruction in the list.
package diff

import (
	"fmt"
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/roach88/tandem/internal/ir"
)

// Change is one contiguous hunk: Remove runes are deleted at Index and Text
// is inserted in their place. Index is expressed against the text produced
// by the preceding hunks.
type Change struct {
	Index  int
	Remove int
	Text   string
}

func (c Change) String() string {
	return fmt.Sprintf("c,%d,%d,%s", c.Index, c.Remove, c.Text)
}

// Instructions expands the hunk into a delete followed by an insert at the
// same index. Empty halves are omitted.
func (c Change) Instructions() []ir.Instruction {
	out := make([]ir.Instruction, 0, 2)
	if c.Remove > 0 {
		out = append(out, ir.Delete{Index: c.Index, Length: c.Remove})
	}
	if c.Text != "" {
		out = append(out, ir.Insert{Index: c.Index, Text: c.Text})
	}
	return out
}

// Changes returns the hunks that rewrite oldText into newText, in document
// order. Identical inputs yield no hunks.
func Changes(oldText, newText string) []Change {
	if oldText == newText {
		return []Change{}
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(oldText, newText, false)
	diffs = dmp.DiffCleanupMerge(diffs)

	changes := []Change{}
	index := 0
	var cur *Change
	flush := func() {
		if cur == nil {
			return
		}
		changes = append(changes, *cur)
		index = cur.Index + utf8.RuneCountInString(cur.Text)
		cur = nil
	}

	for _, d := range diffs {
		n := utf8.RuneCountInString(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			flush()
			index += n
		case diffmatchpatch.DiffDelete:
			if cur == nil {
				cur = &Change{Index: index}
			}
			cur.Remove += n
		case diffmatchpatch.DiffInsert:
			if cur == nil {
				cur = &Change{Index: index}
			}
			cur.Text += d.Text
		}
	}
	flush()
	return changes
}

// Derive returns the instruction sequence that rewrites oldText into
// newText. Applying it in order to a buffer holding oldText yields newText.
func Derive(oldText, newText string) []ir.Instruction {
	out := []ir.Instruction{}
	for _, c := range Changes(oldText, newText) {
		out = append(out, c.Instructions()...)
	}
	return out
}
