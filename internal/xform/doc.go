// Package xform resolves two concurrent instructions into a commuting pair.
//
// Transform(a, b, aIsPrimary) returns (a', b') such that, for the buffer
// state S both were derived from:
//
//	apply(apply(S, a), b') == apply(apply(S, b), a')
//
// The aIsPrimary flag breaks the only symmetric case, two inserts at the
// same index. The replica computing Transform(a, b, true) is mirrored on its
// peer by Transform(b, a, false), and the results are mirror images.
//
// Case matrix:
//
//	Insert(i) x Insert(j)   lower index first; equal index -> primary first
//	Insert(i) x Delete(j,n) i <= j: delete shifts right
//	                        i >= j+n: insert shifts left
//	                        j < i < j+n: delete splits around the insert
//	Delete    x Delete      disjoint: later one shifts left
//	                        overlap: each keeps only its remainder
//	NoOp      x any         identity
//
// A delete that straddles an insertion point is split into its left part
// followed by its right part shifted past the inserted text. That is why
// results are ir.Ops rather than single instructions.
package xform
