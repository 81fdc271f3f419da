package operators

import (
	"math/rand"

	"evogen/internal/ga"
)

// SinglePoint cuts both parents at the same position and swaps the tails,
// with probability rate. Otherwise the children are copies of the parents.
// One Float64 is always drawn; the cut point is drawn only on crossover.
func SinglePoint[S any](rate float64) ga.RecombinationOp[S] {
	return func(rng *rand.Rand, a, b ga.Genome[S]) (ga.Genome[S], ga.Genome[S], error) {
		if rng.Float64() >= rate {
			return a.Clone(), b.Clone(), nil
		}
		shortest := min(len(a), len(b))
		if shortest < 2 {
			return a.Clone(), b.Clone(), nil
		}
		cut := 1 + rng.Intn(shortest-1)

		c1 := make(ga.Genome[S], 0, len(b))
		c1 = append(c1, a[:cut]...)
		c1 = append(c1, b[cut:]...)
		c2 := make(ga.Genome[S], 0, len(a))
		c2 = append(c2, b[:cut]...)
		c2 = append(c2, a[cut:]...)
		return c1, c2, nil
	}
}

// Uniform swaps each aligned position with probability swap, provided the
// pair was picked for crossover with probability rate.
func Uniform[S any](rate, swap float64) ga.RecombinationOp[S] {
	return func(rng *rand.Rand, a, b ga.Genome[S]) (ga.Genome[S], ga.Genome[S], error) {
		c1, c2 := a.Clone(), b.Clone()
		if rng.Float64() >= rate {
			return c1, c2, nil
		}
		for i := 0; i < min(len(c1), len(c2)); i++ {
			if rng.Float64() < swap {
				c1[i], c2[i] = c2[i], c1[i]
			}
		}
		return c1, c2, nil
	}
}

// IdentityRecombination returns the parents untouched.
func IdentityRecombination[S any]() ga.RecombinationOp[S] {
	return func(_ *rand.Rand, a, b ga.Genome[S]) (ga.Genome[S], ga.Genome[S], error) {
		return a, b, nil
	}
}
