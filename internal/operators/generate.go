package operators

import (
	"fmt"
	"math/rand"

	"evogen/internal/ga"
)

const BinaryAlphabet = "01"

// RandomGenome draws length symbols uniformly from alphabet.
func RandomGenome[S any](rng *rand.Rand, alphabet []S, length int) (ga.Genome[S], error) {
	if len(alphabet) == 0 {
		return nil, fmt.Errorf("alphabet is required")
	}
	if length < 0 {
		return nil, fmt.Errorf("genome length must be >= 0")
	}
	genome := make(ga.Genome[S], length)
	for i := range genome {
		genome[i] = alphabet[rng.Intn(len(alphabet))]
	}
	return genome, nil
}

// RandomPopulation draws size genomes of the given length.
func RandomPopulation[S any](rng *rand.Rand, alphabet []S, length, size int) ([]ga.Genome[S], error) {
	if size <= 0 {
		return nil, fmt.Errorf("population size must be > 0")
	}
	out := make([]ga.Genome[S], 0, size)
	for i := 0; i < size; i++ {
		genome, err := RandomGenome(rng, alphabet, length)
		if err != nil {
			return nil, err
		}
		out = append(out, genome)
	}
	return out, nil
}
