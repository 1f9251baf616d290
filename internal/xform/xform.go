package xform

import "github.com/roach88/tandem/internal/ir"

// Transform resolves concurrent instructions a and b, both derived from the
// same buffer state. aPrime is a rewritten to apply after b; bPrime is b
// rewritten to apply after a. Inputs are never modified.
func Transform(a, b ir.Instruction, aIsPrimary bool) (aPrime, bPrime ir.Ops, err error) {
	switch av := a.(type) {
	case ir.NoOp:
		switch b.(type) {
		case ir.Insert, ir.Delete, ir.NoOp:
			return ir.Ops{a}, ir.Ops{b}, nil
		}
	case ir.Insert:
		switch bv := b.(type) {
		case ir.Insert:
			return insertInsert(av, bv, aIsPrimary)
		case ir.Delete:
			return insertDelete(av, bv)
		case ir.NoOp:
			return ir.Ops{a}, ir.Ops{b}, nil
		}
	case ir.Delete:
		switch bv := b.(type) {
		case ir.Insert:
			bp, ap, err := insertDelete(bv, av)
			return ap, bp, err
		case ir.Delete:
			return deleteDelete(av, bv)
		case ir.NoOp:
			return ir.Ops{a}, ir.Ops{b}, nil
		}
	}
	return nil, nil, &UnsupportedCombinationError{A: a, B: b}
}

func insertInsert(a, b ir.Insert, aIsPrimary bool) (ir.Ops, ir.Ops, error) {
	if a.Index < b.Index || (a.Index == b.Index && aIsPrimary) {
		return ir.Ops{a}, ir.Ops{ir.Insert{Index: b.Index + a.Len(), Text: b.Text}}, nil
	}
	return ir.Ops{ir.Insert{Index: a.Index + b.Len(), Text: a.Text}}, ir.Ops{b}, nil
}

// insertDelete returns (ins', del').
func insertDelete(ins ir.Insert, del ir.Delete) (ir.Ops, ir.Ops, error) {
	switch {
	case ins.Index <= del.Index:
		return ir.Ops{ins}, ir.Ops{ir.Delete{Index: del.Index + ins.Len(), Length: del.Length}}, nil
	case ins.Index >= del.End():
		return ir.Ops{ir.Insert{Index: ins.Index - del.Length, Text: ins.Text}}, ir.Ops{del}, nil
	default:
		// The insertion point lies strictly inside the deleted range. The
		// inserted text survives at the start of the range and the delete
		// removes the original runes on both sides of it.
		left := ins.Index - del.Index
		right := del.End() - ins.Index
		return ir.Ops{ir.Insert{Index: del.Index, Text: ins.Text}},
			ir.Ops{
				ir.Delete{Index: del.Index, Length: left},
				ir.Delete{Index: del.Index + ins.Len(), Length: right},
			}, nil
	}
}

func deleteDelete(a, b ir.Delete) (ir.Ops, ir.Ops, error) {
	switch {
	case a.End() <= b.Index:
		return ir.Ops{a}, ir.Ops{ir.Delete{Index: b.Index - a.Length, Length: b.Length}}, nil
	case b.End() <= a.Index:
		return ir.Ops{ir.Delete{Index: a.Index - b.Length, Length: a.Length}}, ir.Ops{b}, nil
	}
	overlap := min(a.End(), b.End()) - max(a.Index, b.Index)
	start := min(a.Index, b.Index)
	return ir.Ops{shrink(start, a.Length-overlap)}, ir.Ops{shrink(start, b.Length-overlap)}, nil
}

// shrink returns the surviving remainder of a delete, or NoOp when the other
// side already removed every rune.
func shrink(index, length int) ir.Instruction {
	if length <= 0 {
		return ir.NoOp{}
	}
	return ir.Delete{Index: index, Length: length}
}
