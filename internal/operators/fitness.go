package operators

import (
	"github.com/xrash/smetrics"

	"evogen/internal/ga"
)

// CountSymbol scores a genome by how many times symbol occurs in it. With
// '1' over binary genomes this is OneMax.
func CountSymbol[S comparable](symbol S) ga.FitnessFunc[S] {
	return func(genome ga.Genome[S], _ []ga.Genome[S]) (float64, error) {
		n := 0
		for _, s := range genome {
			if s == symbol {
				n++
			}
		}
		return float64(n), nil
	}
}

// MatchTarget scores len(target) minus the distance to target: Hamming for
// equal lengths, unit-cost edit distance otherwise. An exact match scores
// len(target).
func MatchTarget(target string) ga.FitnessFunc[byte] {
	return func(genome ga.Genome[byte], _ []ga.Genome[byte]) (float64, error) {
		return float64(len(target) - Distance(string(genome), target)), nil
	}
}

// Distance is the Hamming distance of equal-length strings and the
// Wagner-Fischer edit distance of all others.
func Distance(a, b string) int {
	if d, err := smetrics.Hamming(a, b); err == nil {
		return d
	}
	return smetrics.WagnerFischer(a, b, 1, 1, 1)
}

// Proportional divides the base fitness of a genome by the base fitness
// summed over its siblings. The result depends on the whole population, so
// it changes whenever any sibling changes.
func Proportional[S any](base ga.FitnessFunc[S]) ga.FitnessFunc[S] {
	return func(genome ga.Genome[S], siblings []ga.Genome[S]) (float64, error) {
		own, err := base(genome, siblings)
		if err != nil {
			return 0, err
		}
		total := 0.0
		for _, sibling := range siblings {
			f, err := base(sibling, siblings)
			if err != nil {
				return 0, err
			}
			total += f
		}
		if total == 0 {
			return 0, nil
		}
		return own / total, nil
	}
}
