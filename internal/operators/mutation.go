package operators

import (
	"fmt"
	"math/rand"
	"slices"

	"evogen/internal/ga"
)

// PointMutation replaces each symbol, with probability rate, by a different
// symbol drawn uniformly from alphabet. Symbols outside the alphabet are
// replaced by any alphabet symbol.
func PointMutation[S comparable](rate float64, alphabet []S) ga.MutationOp[S] {
	symbols := slices.Clone(alphabet)
	return func(rng *rand.Rand, genome ga.Genome[S]) (ga.Genome[S], error) {
		if len(symbols) < 2 {
			return nil, fmt.Errorf("point mutation: alphabet needs at least 2 symbols, got %d", len(symbols))
		}
		out := genome.Clone()
		for i, symbol := range out {
			if rng.Float64() >= rate {
				continue
			}
			current := slices.Index(symbols, symbol)
			if current < 0 {
				out[i] = symbols[rng.Intn(len(symbols))]
				continue
			}
			pick := rng.Intn(len(symbols) - 1)
			if pick >= current {
				pick++
			}
			out[i] = symbols[pick]
		}
		return out, nil
	}
}

// BitFlip flips '0' and '1' independently with probability rate.
func BitFlip(rate float64) ga.MutationOp[byte] {
	return PointMutation(rate, []byte(BinaryAlphabet))
}

// IdentityMutation returns its input untouched.
func IdentityMutation[S any]() ga.MutationOp[S] {
	return func(_ *rand.Rand, genome ga.Genome[S]) (ga.Genome[S], error) {
		return genome, nil
	}
}
