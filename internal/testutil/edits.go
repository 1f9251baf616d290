package testutil

import "math/rand"

// DefaultAlphabet mixes ASCII with multi-byte runes so random edits cover
// rune-indexed arithmetic.
const DefaultAlphabet = "abcdeé中"

// RandomEdit returns text with one random edit applied: an insertion of one
// to three runes, a deletion of one to four runes, or a one-rune
// replacement of up to three runes. Empty text always receives an insertion.
//
// The result depends only on rng's state, so a seeded rng replays the same
// edits.
func RandomEdit(rng *rand.Rand, text, alphabet string) string {
	runes := []rune(text)
	letters := []rune(alphabet)
	if len(letters) == 0 {
		letters = []rune(DefaultAlphabet)
	}

	switch {
	case len(runes) == 0 || rng.Intn(3) == 0:
		pos := rng.Intn(len(runes) + 1)
		ins := make([]rune, 1+rng.Intn(3))
		for i := range ins {
			ins[i] = letters[rng.Intn(len(letters))]
		}
		return string(runes[:pos]) + string(ins) + string(runes[pos:])
	case rng.Intn(2) == 0:
		pos := rng.Intn(len(runes))
		end := min(len(runes), pos+1+rng.Intn(4))
		return string(runes[:pos]) + string(runes[end:])
	default:
		pos := rng.Intn(len(runes))
		end := min(len(runes), pos+1+rng.Intn(3))
		return string(runes[:pos]) + string(letters[rng.Intn(len(letters))]) + string(runes[end:])
	}
}
