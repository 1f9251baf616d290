package xform

import "github.com/roach88/tandem/internal/ir"

// TransformOps extends Transform to instruction sequences. Both sequences
// must be derived from the same buffer state; aPrime applies after b and
// bPrime applies after a.
//
// The result is the transform grid of the two sequences: every element of a
// is transformed against every element of b, each against the other's
// already-transformed predecessors. Split results refine the grid, so the
// outcome does not depend on traversal order, and
// TransformOps(b, a, !p) mirrors TransformOps(a, b, p).
func TransformOps(a, b ir.Ops, aIsPrimary bool) (aPrime, bPrime ir.Ops, err error) {
	switch {
	case len(a) == 0 || len(b) == 0:
		return a.Clone(), b.Clone(), nil
	case len(a) == 1 && len(b) == 1:
		return Transform(a[0], b[0], aIsPrimary)
	case len(a) > 1:
		head, bMid, err := TransformOps(a[:1], b, aIsPrimary)
		if err != nil {
			return nil, nil, err
		}
		tail, bOut, err := TransformOps(a[1:], bMid, aIsPrimary)
		if err != nil {
			return nil, nil, err
		}
		return concat(head, tail), bOut, nil
	default:
		aMid, head, err := TransformOps(a, b[:1], aIsPrimary)
		if err != nil {
			return nil, nil, err
		}
		aOut, tail, err := TransformOps(aMid, b[1:], aIsPrimary)
		if err != nil {
			return nil, nil, err
		}
		return aOut, concat(head, tail), nil
	}
}

// Compact drops NoOp elements. An empty result is returned as a single NoOp
// so it still reads as an edit.
func Compact(ops ir.Ops) ir.Ops {
	out := make(ir.Ops, 0, len(ops))
	for _, op := range ops {
		if _, ok := op.(ir.NoOp); ok {
			continue
		}
		out = append(out, op)
	}
	if len(out) == 0 {
		return ir.Ops{ir.NoOp{}}
	}
	return out
}

func concat(a, b ir.Ops) ir.Ops {
	out := make(ir.Ops, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}
