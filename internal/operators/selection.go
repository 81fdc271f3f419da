package operators

import (
	"fmt"
	"math/rand"
	"sort"

	"evogen/internal/ga"
)

// Roulette samples genomes with replacement, proportionally to fitness. When
// no individual has positive fitness every genome is equally likely.
func Roulette[S any]() ga.SelectionFunc[S] {
	return func(rng *rand.Rand, pop ga.Population[S]) ([]ga.Genome[S], error) {
		total := 0.0
		for i, ind := range pop {
			if ind.Fitness < 0 {
				return nil, fmt.Errorf("roulette selection: negative fitness %g at index %d", ind.Fitness, i)
			}
			total += ind.Fitness
		}

		weights := pop.Fitnesses()
		out := make([]ga.Genome[S], len(pop))
		for i := range out {
			if total <= 0 {
				out[i] = pop[rng.Intn(len(pop))].Genome
				continue
			}
			out[i] = pop[spin(rng, weights, total)].Genome
		}
		return out, nil
	}
}

// Rank samples with replacement using linear rank weights: the worst
// individual has weight 1 and the best has weight len(pop).
func Rank[S any]() ga.SelectionFunc[S] {
	return func(rng *rand.Rand, pop ga.Population[S]) ([]ga.Genome[S], error) {
		order := rankOrder(pop)
		weights := make([]float64, len(pop))
		for rank, idx := range order {
			weights[idx] = float64(rank + 1)
		}
		total := float64(len(pop)*(len(pop)+1)) / 2

		out := make([]ga.Genome[S], len(pop))
		for i := range out {
			out[i] = pop[spin(rng, weights, total)].Genome
		}
		return out, nil
	}
}

// Tournament runs one size-way tournament with replacement per slot.
func Tournament[S any](size int) ga.SelectionFunc[S] {
	if size <= 0 {
		size = 3
	}
	return func(rng *rand.Rand, pop ga.Population[S]) ([]ga.Genome[S], error) {
		out := make([]ga.Genome[S], len(pop))
		for i := range out {
			best := pop[rng.Intn(len(pop))]
			for k := 1; k < size; k++ {
				candidate := pop[rng.Intn(len(pop))]
				if candidate.Fitness > best.Fitness {
					best = candidate
				}
			}
			out[i] = best.Genome
		}
		return out, nil
	}
}

// Elitist keeps the keep fittest genomes in rank order and fills the rest of
// the population with copies of the best one. It draws nothing from rng.
func Elitist[S any](keep int) ga.SelectionFunc[S] {
	return func(_ *rand.Rand, pop ga.Population[S]) ([]ga.Genome[S], error) {
		ranked := rankedDescending(pop)
		n := min(max(keep, 1), len(ranked))
		out := make([]ga.Genome[S], 0, len(pop))
		for i := 0; i < n; i++ {
			out = append(out, ranked[i].Genome)
		}
		for len(out) < len(pop) {
			out = append(out, ranked[0].Genome)
		}
		return out, nil
	}
}

// Truncation cycles through the count fittest genomes until the population
// is refilled. A count <= 0 keeps the fitter half.
func Truncation[S any](count int) ga.SelectionFunc[S] {
	return func(_ *rand.Rand, pop ga.Population[S]) ([]ga.Genome[S], error) {
		ranked := rankedDescending(pop)
		if count <= 0 {
			count = len(ranked) / 2
		}
		n := min(max(count, 1), len(ranked))
		out := make([]ga.Genome[S], len(pop))
		for i := range out {
			out[i] = ranked[i%n].Genome
		}
		return out, nil
	}
}

// Scaled hands inner a copy of the population whose fitness values went
// through transform.
func Scaled[S any](transform ScalingFunc, inner ga.SelectionFunc[S]) ga.SelectionFunc[S] {
	return func(rng *rand.Rand, pop ga.Population[S]) ([]ga.Genome[S], error) {
		scaled := transform(pop.Fitnesses())
		if len(scaled) != len(pop) {
			return nil, fmt.Errorf("scaling returned %d values for %d individuals", len(scaled), len(pop))
		}
		view := make(ga.Population[S], len(pop))
		for i, ind := range pop {
			view[i] = ga.Individual[S]{Genome: ind.Genome, Fitness: scaled[i]}
		}
		return inner(rng, view)
	}
}

// Even drops the last genome whenever inner returns an odd count, so that a
// two-parent recombination can always pair the result.
func Even[S any](inner ga.SelectionFunc[S]) ga.SelectionFunc[S] {
	return func(rng *rand.Rand, pop ga.Population[S]) ([]ga.Genome[S], error) {
		out, err := inner(rng, pop)
		if err != nil {
			return nil, err
		}
		if len(out)%2 != 0 {
			out = out[:len(out)-1]
		}
		return out, nil
	}
}

func spin(rng *rand.Rand, weights []float64, total float64) int {
	pick := rng.Float64() * total
	acc := 0.0
	last := 0
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		acc += w
		last = i
		if pick < acc {
			return i
		}
	}
	// Rounding can leave pick just above the accumulated total.
	return last
}

// rankOrder returns population indexes from worst to best; ties keep their
// population order.
func rankOrder[S any](pop ga.Population[S]) []int {
	order := make([]int, len(pop))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return pop[order[i]].Fitness < pop[order[j]].Fitness
	})
	return order
}

func rankedDescending[S any](pop ga.Population[S]) ga.Population[S] {
	ranked := make(ga.Population[S], len(pop))
	copy(ranked, pop)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Fitness > ranked[j].Fitness
	})
	return ranked
}
