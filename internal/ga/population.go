package ga

// Genome is an ordered sequence of symbols. The engine never inspects the
// symbols; operators must return new slices instead of editing their inputs.
type Genome[S any] []S

// Clone returns a copy that shares no backing array with g.
func (g Genome[S]) Clone() Genome[S] {
	if g == nil {
		return nil
	}
	out := make(Genome[S], len(g))
	copy(out, g)
	return out
}

type Individual[S any] struct {
	Genome  Genome[S]
	Fitness float64
}

// Population is one evaluated generation. Every fitness value was computed
// against the genomes of this same population.
type Population[S any] []Individual[S]

// Clone copies the population and every genome in it.
func (p Population[S]) Clone() Population[S] {
	if p == nil {
		return nil
	}
	out := make(Population[S], len(p))
	for i, ind := range p {
		out[i] = Individual[S]{Genome: ind.Genome.Clone(), Fitness: ind.Fitness}
	}
	return out
}

func (p Population[S]) Len() int {
	return len(p)
}

func (p Population[S]) Genomes() []Genome[S] {
	out := make([]Genome[S], len(p))
	for i, ind := range p {
		out[i] = ind.Genome
	}
	return out
}

func (p Population[S]) Fitnesses() []float64 {
	out := make([]float64, len(p))
	for i, ind := range p {
		out[i] = ind.Fitness
	}
	return out
}

// Best returns the first individual with the highest fitness. ok is false for
// an empty population.
func (p Population[S]) Best() (best Individual[S], ok bool) {
	for i, ind := range p {
		if i == 0 || ind.Fitness > best.Fitness {
			best = ind
		}
	}
	return best, len(p) > 0
}

// Evaluate pairs every genome with its fitness computed against the whole
// genome list. The first fitness error is returned as is.
func Evaluate[S any](fitness FitnessFunc[S], genomes []Genome[S]) (Population[S], error) {
	pop := make(Population[S], len(genomes))
	for i, genome := range genomes {
		f, err := fitness(genome, genomes)
		if err != nil {
			return nil, err
		}
		pop[i] = Individual[S]{Genome: genome, Fitness: f}
	}
	return pop, nil
}
