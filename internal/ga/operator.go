package ga

import "math/rand"

// FitnessFunc scores one genome in the context of its full sibling list. It
// must be a pure function of its inputs.
type FitnessFunc[S any] func(genome Genome[S], siblings []Genome[S]) (float64, error)

// SelectionFunc picks the genomes that proceed to reproduction. A well-behaved
// strategy returns as many genomes as it received, and always an even number
// when a two-parent recombination follows.
type SelectionFunc[S any] func(rng *rand.Rand, pop Population[S]) ([]Genome[S], error)

// RecombinationOp turns two parents into two children.
type RecombinationOp[S any] func(rng *rand.Rand, a, b Genome[S]) (Genome[S], Genome[S], error)

// MutationOp produces a possibly altered copy of one genome.
type MutationOp[S any] func(rng *rand.Rand, genome Genome[S]) (Genome[S], error)
