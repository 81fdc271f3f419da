package ga

import "math/rand"

// Recombine applies op to the disjoint adjacent pairs (0,1), (2,3), ... of
// genomes and returns the children in pair order. An empty list yields an
// empty list; an odd list yields a *PairingError without calling op.
func Recombine[S any](rng *rand.Rand, op RecombinationOp[S], genomes []Genome[S]) ([]Genome[S], error) {
	return recombineAt(rng, op, genomes, -1)
}

func recombineAt[S any](rng *rand.Rand, op RecombinationOp[S], genomes []Genome[S], generation int) ([]Genome[S], error) {
	if len(genomes)%2 != 0 {
		return nil, &PairingError{Generation: generation, Count: len(genomes)}
	}
	children := make([]Genome[S], 0, len(genomes))
	for i := 0; i < len(genomes); i += 2 {
		a, b, err := op(rng, genomes[i], genomes[i+1])
		if err != nil {
			return nil, err
		}
		children = append(children, a, b)
	}
	return children, nil
}

func mutateAll[S any](rng *rand.Rand, op MutationOp[S], genomes []Genome[S]) ([]Genome[S], error) {
	out := make([]Genome[S], len(genomes))
	for i, genome := range genomes {
		mutated, err := op(rng, genome)
		if err != nil {
			return nil, err
		}
		out[i] = mutated
	}
	return out, nil
}
