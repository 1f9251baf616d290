package xform_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tandem/internal/buffer"
	"github.com/roach88/tandem/internal/ir"
	"github.com/roach88/tandem/internal/xform"
)

func apply(t *testing.T, s string, ops ir.Ops) string {
	t.Helper()
	b := buffer.NewRunes(s)
	require.NoError(t, ops.ApplyTo(b))
	return b.Text()
}

// converges checks the transform property for a single pair in both
// directions and returns the shared result.
func converges(t *testing.T, s string, a, b ir.Instruction, aIsPrimary bool) string {
	t.Helper()
	ap, bp, err := xform.Transform(a, b, aIsPrimary)
	require.NoError(t, err)

	left := apply(t, apply(t, s, ir.Ops{a}), bp)
	right := apply(t, apply(t, s, ir.Ops{b}), ap)
	require.Equal(t, left, right, "diverged: s=%q a=%s b=%s primary=%v a'=%s b'=%s", s, a, b, aIsPrimary, ap, bp)

	bm, am, err := xform.Transform(b, a, !aIsPrimary)
	require.NoError(t, err)
	require.Equal(t, ap, am, "mirror a' for a=%s b=%s", a, b)
	require.Equal(t, bp, bm, "mirror b' for a=%s b=%s", a, b)
	return left
}

func TestTransform_CaseMatrix(t *testing.T) {
	const s = "abcdefgh"

	tests := []struct {
		name    string
		a, b    ir.Instruction
		primary bool
		aPrime  ir.Ops
		bPrime  ir.Ops
		result  string
	}{
		{
			name: "insert before insert",
			a:    ir.Insert{Index: 1, Text: "X"}, b: ir.Insert{Index: 3, Text: "Y"},
			aPrime: ir.Ops{ir.Insert{Index: 1, Text: "X"}}, bPrime: ir.Ops{ir.Insert{Index: 4, Text: "Y"}},
			result: "aXbcYdefgh",
		},
		{
			name: "insert after insert",
			a:    ir.Insert{Index: 5, Text: "XX"}, b: ir.Insert{Index: 2, Text: "Y"}, primary: true,
			aPrime: ir.Ops{ir.Insert{Index: 6, Text: "XX"}}, bPrime: ir.Ops{ir.Insert{Index: 2, Text: "Y"}},
			result: "abYcdeXXfgh",
		},
		{
			name: "insert tie primary goes first",
			a:    ir.Insert{Index: 2, Text: "X"}, b: ir.Insert{Index: 2, Text: "YY"}, primary: true,
			aPrime: ir.Ops{ir.Insert{Index: 2, Text: "X"}}, bPrime: ir.Ops{ir.Insert{Index: 3, Text: "YY"}},
			result: "abXYYcdefgh",
		},
		{
			name: "insert tie secondary goes second",
			a:    ir.Insert{Index: 2, Text: "X"}, b: ir.Insert{Index: 2, Text: "YY"}, primary: false,
			aPrime: ir.Ops{ir.Insert{Index: 4, Text: "X"}}, bPrime: ir.Ops{ir.Insert{Index: 2, Text: "YY"}},
			result: "abYYXcdefgh",
		},
		{
			name: "insert before delete",
			a:    ir.Insert{Index: 1, Text: "XY"}, b: ir.Delete{Index: 3, Length: 2},
			aPrime: ir.Ops{ir.Insert{Index: 1, Text: "XY"}}, bPrime: ir.Ops{ir.Delete{Index: 5, Length: 2}},
			result: "aXYbcfgh",
		},
		{
			name: "insert at delete start",
			a:    ir.Insert{Index: 3, Text: "X"}, b: ir.Delete{Index: 3, Length: 2},
			aPrime: ir.Ops{ir.Insert{Index: 3, Text: "X"}}, bPrime: ir.Ops{ir.Delete{Index: 4, Length: 2}},
			result: "abcXfgh",
		},
		{
			name: "insert at delete end",
			a:    ir.Insert{Index: 5, Text: "X"}, b: ir.Delete{Index: 3, Length: 2},
			aPrime: ir.Ops{ir.Insert{Index: 3, Text: "X"}}, bPrime: ir.Ops{ir.Delete{Index: 3, Length: 2}},
			result: "abcXfgh",
		},
		{
			name: "insert after delete",
			a:    ir.Insert{Index: 7, Text: "X"}, b: ir.Delete{Index: 1, Length: 3},
			aPrime: ir.Ops{ir.Insert{Index: 4, Text: "X"}}, bPrime: ir.Ops{ir.Delete{Index: 1, Length: 3}},
			result: "aefgXh",
		},
		{
			name: "delete straddles insert",
			a:    ir.Insert{Index: 4, Text: "XY"}, b: ir.Delete{Index: 2, Length: 4},
			aPrime: ir.Ops{ir.Insert{Index: 2, Text: "XY"}},
			bPrime: ir.Ops{ir.Delete{Index: 2, Length: 2}, ir.Delete{Index: 4, Length: 2}},
			result: "abXYgh",
		},
		{
			name: "delete straddles insert mirrored",
			a:    ir.Delete{Index: 2, Length: 4}, b: ir.Insert{Index: 4, Text: "XY"},
			aPrime: ir.Ops{ir.Delete{Index: 2, Length: 2}, ir.Delete{Index: 4, Length: 2}},
			bPrime: ir.Ops{ir.Insert{Index: 2, Text: "XY"}},
			result: "abXYgh",
		},
		{
			name: "delete before delete",
			a:    ir.Delete{Index: 0, Length: 2}, b: ir.Delete{Index: 4, Length: 2},
			aPrime: ir.Ops{ir.Delete{Index: 0, Length: 2}}, bPrime: ir.Ops{ir.Delete{Index: 2, Length: 2}},
			result: "cdgh",
		},
		{
			name: "adjacent deletes",
			a:    ir.Delete{Index: 2, Length: 2}, b: ir.Delete{Index: 4, Length: 1},
			aPrime: ir.Ops{ir.Delete{Index: 2, Length: 2}}, bPrime: ir.Ops{ir.Delete{Index: 2, Length: 1}},
			result: "abfgh",
		},
		{
			name: "partially overlapping deletes",
			a:    ir.Delete{Index: 1, Length: 3}, b: ir.Delete{Index: 2, Length: 4},
			aPrime: ir.Ops{ir.Delete{Index: 1, Length: 1}}, bPrime: ir.Ops{ir.Delete{Index: 1, Length: 2}},
			result: "agh",
		},
		{
			name: "containing delete",
			a:    ir.Delete{Index: 1, Length: 6}, b: ir.Delete{Index: 2, Length: 2},
			aPrime: ir.Ops{ir.Delete{Index: 1, Length: 4}}, bPrime: ir.Ops{ir.NoOp{}},
			result: "ah",
		},
		{
			name: "identical deletes",
			a:    ir.Delete{Index: 2, Length: 2}, b: ir.Delete{Index: 2, Length: 2},
			aPrime: ir.Ops{ir.NoOp{}}, bPrime: ir.Ops{ir.NoOp{}},
			result: "abefgh",
		},
		{
			name: "noop against insert",
			a:    ir.NoOp{}, b: ir.Insert{Index: 1, Text: "X"},
			aPrime: ir.Ops{ir.NoOp{}}, bPrime: ir.Ops{ir.Insert{Index: 1, Text: "X"}},
			result: "aXbcdefgh",
		},
		{
			name: "delete against noop",
			a:    ir.Delete{Index: 0, Length: 1}, b: ir.NoOp{},
			aPrime: ir.Ops{ir.Delete{Index: 0, Length: 1}}, bPrime: ir.Ops{ir.NoOp{}},
			result: "bcdefgh",
		},
		{
			name: "noop against noop",
			a:    ir.NoOp{}, b: ir.NoOp{},
			aPrime: ir.Ops{ir.NoOp{}}, bPrime: ir.Ops{ir.NoOp{}},
			result: s,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ap, bp, err := xform.Transform(tt.a, tt.b, tt.primary)
			require.NoError(t, err)
			assert.Equal(t, tt.aPrime, ap, "a'")
			assert.Equal(t, tt.bPrime, bp, "b'")
			assert.Equal(t, tt.result, converges(t, s, tt.a, tt.b, tt.primary))
		})
	}
}

func TestTransform_DoesNotMutateInputs(t *testing.T) {
	a := ir.Insert{Index: 4, Text: "XY"}
	b := ir.Delete{Index: 2, Length: 4}
	_, _, err := xform.Transform(a, b, true)
	require.NoError(t, err)
	assert.Equal(t, ir.Insert{Index: 4, Text: "XY"}, a)
	assert.Equal(t, ir.Delete{Index: 2, Length: 4}, b)
}

func TestTransform_Unsupported(t *testing.T) {
	_, _, err := xform.Transform(nil, ir.Insert{Index: 0, Text: "a"}, true)
	require.Error(t, err)
	assert.True(t, xform.IsUnsupportedCombination(err))
	assert.Contains(t, err.Error(), "<nil> x ir.Insert")

	_, _, err = xform.Transform(ir.Delete{Index: 0, Length: 1}, nil, false)
	assert.True(t, xform.IsUnsupportedCombination(err))

	_, _, err = xform.Transform(ir.NoOp{}, nil, false)
	assert.True(t, xform.IsUnsupportedCombination(err))
}

// TestTransform_ScenarioPairs covers the two-replica pairs used end to end.
func TestTransform_ScenarioPairs(t *testing.T) {
	// Inserts at the same index: the primary text lands first.
	got := converges(t, "12345", ir.Insert{Index: 1, Text: "b"}, ir.Insert{Index: 1, Text: "a"}, true)
	assert.Equal(t, "1ba2345", got)

	got = converges(t, "12345", ir.Insert{Index: 1, Text: "b"}, ir.Delete{Index: 2, Length: 1}, true)
	assert.Equal(t, "1b245", got)
}

func randomInstruction(rng *rand.Rand, length int) ir.Instruction {
	alphabet := []rune("xyzñ")
	if length == 0 || rng.Intn(2) == 0 {
		n := rng.Intn(3) + 1
		text := make([]rune, n)
		for i := range text {
			text[i] = alphabet[rng.Intn(len(alphabet))]
		}
		return ir.Insert{Index: rng.Intn(length + 1), Text: string(text)}
	}
	at := rng.Intn(length)
	return ir.Delete{Index: at, Length: rng.Intn(length-at) + 1}
}

func randomSequence(rng *rand.Rand, s string, n int) ir.Ops {
	b := buffer.NewRunes(s)
	ops := make(ir.Ops, 0, n)
	for i := 0; i < n; i++ {
		op := randomInstruction(rng, b.Len())
		if err := op.ApplyTo(b); err != nil {
			panic(err)
		}
		ops = append(ops, op)
	}
	return ops
}

func TestTransform_RandomPairsConverge(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 2000; trial++ {
		s := string([]rune("abcdefghij")[:rng.Intn(11)])
		a := randomInstruction(rng, len([]rune(s)))
		b := randomInstruction(rng, len([]rune(s)))
		converges(t, s, a, b, rng.Intn(2) == 0)
	}
}

func TestTransformOps_RandomSequencesConverge(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for trial := 0; trial < 500; trial++ {
		s := string([]rune("0123456789")[:rng.Intn(11)])
		a := randomSequence(rng, s, rng.Intn(4)+1)
		b := randomSequence(rng, s, rng.Intn(4)+1)
		primary := rng.Intn(2) == 0

		ap, bp, err := xform.TransformOps(a, b, primary)
		require.NoError(t, err)

		left := apply(t, apply(t, s, a), bp)
		right := apply(t, apply(t, s, b), ap)
		require.Equal(t, left, right, "trial %d: s=%q a=%s b=%s", trial, s, a, b)

		bm, am, err := xform.TransformOps(b, a, !primary)
		require.NoError(t, err)
		require.Equal(t, ap, am, "trial %d mirror a'", trial)
		require.Equal(t, bp, bm, "trial %d mirror b'", trial)
	}
}

func TestTransformOps_Empty(t *testing.T) {
	b := ir.Ops{ir.Insert{Index: 0, Text: "a"}}
	ap, bp, err := xform.TransformOps(nil, b, true)
	require.NoError(t, err)
	assert.Empty(t, ap)
	assert.Equal(t, b, bp)
}

func TestCompact(t *testing.T) {
	assert.Equal(t, ir.Ops{ir.NoOp{}}, xform.Compact(ir.Ops{ir.NoOp{}, ir.NoOp{}}))
	assert.Equal(t, ir.Ops{ir.NoOp{}}, xform.Compact(nil))
	assert.Equal(t,
		ir.Ops{ir.Delete{Index: 1, Length: 1}},
		xform.Compact(ir.Ops{ir.NoOp{}, ir.Delete{Index: 1, Length: 1}}))
}
