package harness

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/roach88/tandem/internal/buffer"
	"github.com/roach88/tandem/internal/replica"
	"github.com/roach88/tandem/internal/testutil"
	"github.com/roach88/tandem/internal/transport"
)

// FuzzConfig configures convergence trials.
type FuzzConfig struct {
	// Seeds is the number of trials; trial i uses seed FirstSeed+i.
	Seeds     int
	FirstSeed int64

	// Edits is the number of local edits each replica makes per trial. The
	// two replicas' edits are interleaved at random.
	Edits int

	// Initial is the shared starting document.
	Initial string

	// Alphabet supplies inserted runes. Default: testutil.DefaultAlphabet.
	Alphabet string

	// PieceTable selects the piece-table buffer.
	PieceTable bool
}

// FuzzFailure is one diverging or failing trial.
type FuzzFailure struct {
	Seed  int64  `json:"seed"`
	TextA string `json:"text_a"`
	TextB string `json:"text_b"`
	Error string `json:"error,omitempty"`
}

// FuzzResult summarizes a fuzz run. Edits is the total over both replicas;
// ReplicaEdits breaks it down by label.
type FuzzResult struct {
	Trials       int            `json:"trials"`
	Edits        int            `json:"edits"`
	ReplicaEdits map[string]int `json:"replica_edits"`
	Failures     []FuzzFailure  `json:"failures"`
}

// Pass reports whether every trial converged.
func (r FuzzResult) Pass() bool {
	return len(r.Failures) == 0
}

// Fuzz runs seeded convergence trials. Each trial pairs two replicas over
// wire-encoding in-memory channels, applies random local edits, processes
// received messages at random points, drains both sides and compares texts.
func Fuzz(ctx context.Context, cfg FuzzConfig) FuzzResult {
	result := FuzzResult{ReplicaEdits: map[string]int{}, Failures: []FuzzFailure{}}
	for i := 0; i < cfg.Seeds; i++ {
		seed := cfg.FirstSeed + int64(i)
		result.Trials++
		edits := map[string]int{}
		if f, ok := fuzzTrial(ctx, cfg, seed, edits); !ok {
			result.Failures = append(result.Failures, f)
		}
		for label, n := range edits {
			result.ReplicaEdits[label] += n
			result.Edits += n
		}
	}
	return result
}

func fuzzTrial(ctx context.Context, cfg FuzzConfig, seed int64, edits map[string]int) (FuzzFailure, bool) {
	rng := rand.New(rand.NewSource(seed))
	factory := buffer.NewRunes
	if cfg.PieceTable {
		factory = buffer.NewPieceTableBuffer
	}
	alphabet := cfg.Alphabet
	if alphabet == "" {
		alphabet = testutil.DefaultAlphabet
	}

	chA := transport.NewMemory(transport.WithWireEncoding())
	chB := transport.NewMemory(transport.WithWireEncoding())
	a := replica.New(1, "A", chA, replica.WithText(cfg.Initial), replica.WithBuffer(factory))
	b := replica.New(2, "B", chB, replica.WithText(cfg.Initial), replica.WithBuffer(factory))
	_, _ = replica.Connect(chA, b)
	_, _ = replica.Connect(chB, a)

	failure := func(err error) (FuzzFailure, bool) {
		f := FuzzFailure{Seed: seed, TextA: a.Text(), TextB: b.Text()}
		if err != nil {
			f.Error = err.Error()
		}
		return f, false
	}

	remaining := map[*replica.State]int{a: cfg.Edits, b: cfg.Edits}
	for i := 0; remaining[a]+remaining[b] > 0; i++ {
		target := a
		if remaining[a] == 0 || (remaining[b] > 0 && rng.Intn(2) == 1) {
			target = b
		}
		if _, err := target.LocalUpdate(ctx, testutil.RandomEdit(rng, target.Text(), alphabet)); err != nil {
			return failure(fmt.Errorf("edit %d: %w", i, err))
		}
		remaining[target]--
		edits[target.Label()]++
		for _, r := range []*replica.State{a, b} {
			if rng.Intn(4) == 0 {
				if err := r.ProcessReceived(); err != nil {
					return failure(fmt.Errorf("edit %d: %w", i, err))
				}
			}
		}
	}

	if err := a.ProcessReceived(); err != nil {
		return failure(err)
	}
	if err := b.ProcessReceived(); err != nil {
		return failure(err)
	}
	if a.Text() != b.Text() {
		return failure(nil)
	}
	return FuzzFailure{}, true
}
