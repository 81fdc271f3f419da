package ga

import (
	"fmt"
	"iter"
	"math/rand"
)

type Config[S any] struct {
	Fitness       FitnessFunc[S]
	Selection     SelectionFunc[S]
	Recombination RecombinationOp[S]
	Mutation      MutationOp[S]
	Seed          int64
}

// Sequence is the lazily produced, unbounded list of generations of one run.
// Each call to Next performs at most one generation step. A Sequence owns its
// random stream and is not safe for concurrent use; replaying a prefix means
// calling Run again with the same inputs.
type Sequence[S any] struct {
	cfg     Config[S]
	rng     *rand.Rand
	start   []Genome[S]
	current Population[S]
	next    int
	err     error
}

// RunEA starts a run from positional operators. It is equivalent to Run with
// the matching Config.
func RunEA[S any](
	start []Genome[S],
	fitness FitnessFunc[S],
	selection SelectionFunc[S],
	recombination RecombinationOp[S],
	mutation MutationOp[S],
	seed int64,
) (*Sequence[S], error) {
	return Run(start, Config[S]{
		Fitness:       fitness,
		Selection:     selection,
		Recombination: recombination,
		Mutation:      mutation,
		Seed:          seed,
	})
}

// Run validates the inputs and returns the generation sequence. Nothing is
// evaluated until the first call to Next.
func Run[S any](start []Genome[S], cfg Config[S]) (*Sequence[S], error) {
	if len(start) == 0 {
		return nil, ErrEmptyPopulation
	}
	if cfg.Fitness == nil {
		return nil, fmt.Errorf("fitness function is required")
	}
	if cfg.Selection == nil {
		return nil, fmt.Errorf("selection function is required")
	}
	if cfg.Recombination == nil {
		return nil, fmt.Errorf("recombination operator is required")
	}
	if cfg.Mutation == nil {
		return nil, fmt.Errorf("mutation operator is required")
	}

	genomes := make([]Genome[S], len(start))
	for i, genome := range start {
		genomes[i] = genome.Clone()
	}

	return &Sequence[S]{
		cfg:   cfg,
		rng:   rand.New(rand.NewSource(cfg.Seed)),
		start: genomes,
	}, nil
}

// Index is the index of the generation the next call to Next will return.
func (s *Sequence[S]) Index() int {
	return s.next
}

// Err returns the error that ended the sequence, if any.
func (s *Sequence[S]) Err() error {
	return s.err
}

// Next returns generation Index(). The caller owns the returned population;
// changing it does not affect later generations. Once a step fails the
// sequence is finished and every later call returns the same error.
func (s *Sequence[S]) Next() (Population[S], error) {
	if s.err != nil {
		return nil, s.err
	}

	var (
		pop Population[S]
		err error
	)
	if s.next == 0 {
		pop, err = Evaluate(s.cfg.Fitness, s.start)
		s.start = nil
	} else {
		pop, err = s.step(s.next)
	}
	if err != nil {
		s.err = err
		s.current = nil
		return nil, err
	}

	s.current = pop
	s.next++
	return pop.Clone(), nil
}

// step derives generation index from s.current. The random stream is used
// by selection, then by each pair in order, then by each genome in order.
func (s *Sequence[S]) step(index int) (Population[S], error) {
	selected, err := s.cfg.Selection(s.rng, s.current)
	if err != nil {
		return nil, err
	}
	children, err := recombineAt(s.rng, s.cfg.Recombination, selected, index)
	if err != nil {
		return nil, err
	}
	mutated, err := mutateAll(s.rng, s.cfg.Mutation, children)
	if err != nil {
		return nil, err
	}
	return Evaluate(s.cfg.Fitness, mutated)
}

// Take returns the next n generations.
func (s *Sequence[S]) Take(n int) ([]Population[S], error) {
	out := make([]Population[S], 0, max(n, 0))
	for i := 0; i < n; i++ {
		pop, err := s.Next()
		if err != nil {
			return out, err
		}
		out = append(out, pop)
	}
	return out, nil
}

// TakeWhile returns generations for as long as keep holds. The first
// generation rejected by keep is computed but not returned.
func (s *Sequence[S]) TakeWhile(keep func(index int, pop Population[S]) bool) ([]Population[S], error) {
	var out []Population[S]
	for {
		index := s.next
		pop, err := s.Next()
		if err != nil {
			return out, err
		}
		if !keep(index, pop) {
			return out, nil
		}
		out = append(out, pop)
	}
}

// TakeUntil returns generations up to and including the first one for
// which done holds.
func (s *Sequence[S]) TakeUntil(done func(index int, pop Population[S]) bool) ([]Population[S], error) {
	var out []Population[S]
	for {
		index := s.next
		pop, err := s.Next()
		if err != nil {
			return out, err
		}
		out = append(out, pop)
		if done(index, pop) {
			return out, nil
		}
	}
}

// All ranges over the remaining generations with their indexes. Iteration
// stops early on failure; check Err afterwards.
func (s *Sequence[S]) All() iter.Seq2[int, Population[S]] {
	return func(yield func(int, Population[S]) bool) {
		for {
			index := s.next
			pop, err := s.Next()
			if err != nil {
				return
			}
			if !yield(index, pop) {
				return
			}
		}
	}
}
