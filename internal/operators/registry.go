package operators

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"evogen/internal/ga"
)

const (
	defaultCrossoverRate = 0.7
	defaultSwapRate      = 0.5
	defaultMutationRate  = 0.01

	// linearScalingMultiple maps the best genome to twice the mean.
	linearScalingMultiple = 2.0
)

var (
	ErrOperatorExists   = errors.New("operator already registered")
	ErrOperatorNotFound = errors.New("operator not found")
)

// Params carries the tunables the built-in factories read. Nil rates and
// zero counts fall back to defaults; an explicit rate of 0 is kept.
type Params struct {
	CrossoverRate *float64
	SwapRate      *float64
	MutationRate  *float64
	// TournamentSize is the number of contestants per tournament.
	TournamentSize int
	// EliteCount is how many of the fittest genomes elitist and truncation
	// selection keep.
	EliteCount int
	Target     string
	Alphabet   string
}

func (p Params) alphabet() string {
	if p.Alphabet == "" {
		return BinaryAlphabet
	}
	return p.Alphabet
}

type (
	SelectionFactory     func(Params) (ga.SelectionFunc[byte], error)
	RecombinationFactory func(Params) (ga.RecombinationOp[byte], error)
	MutationFactory      func(Params) (ga.MutationOp[byte], error)
	FitnessFactory       func(Params) (ga.FitnessFunc[byte], error)
)

type registry[F any] struct {
	kind string
	mu   sync.RWMutex
	m    map[string]F
}

func newRegistry[F any](kind string) *registry[F] {
	return &registry[F]{kind: kind, m: make(map[string]F)}
}

func (r *registry[F]) register(name string, factory F, isNil bool) error {
	if name == "" {
		return fmt.Errorf("%s name is required", r.kind)
	}
	if isNil {
		return fmt.Errorf("%s factory is required", r.kind)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.m[name]; exists {
		return fmt.Errorf("%w: %s %s", ErrOperatorExists, r.kind, name)
	}
	r.m[name] = factory
	return nil
}

func (r *registry[F]) resolve(name string) (F, error) {
	r.mu.RLock()
	factory, ok := r.m[name]
	r.mu.RUnlock()
	if !ok {
		var zero F
		return zero, fmt.Errorf("%w: %s %s", ErrOperatorNotFound, r.kind, name)
	}
	return factory, nil
}

func (r *registry[F]) names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.m))
	for name := range r.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var (
	selections     = newRegistry[SelectionFactory]("selection")
	recombinations = newRegistry[RecombinationFactory]("recombination")
	mutations      = newRegistry[MutationFactory]("mutation")
	problems       = newRegistry[FitnessFactory]("problem")
)

func RegisterSelection(name string, f SelectionFactory) error {
	return selections.register(name, f, f == nil)
}

func RegisterRecombination(name string, f RecombinationFactory) error {
	return recombinations.register(name, f, f == nil)
}

func RegisterMutation(name string, f MutationFactory) error {
	return mutations.register(name, f, f == nil)
}

func RegisterProblem(name string, f FitnessFactory) error {
	return problems.register(name, f, f == nil)
}

// evenPrefix wraps any registered selection in Even, e.g. "even_truncation".
const evenPrefix = "even_"

func NewSelection(name string, p Params) (ga.SelectionFunc[byte], error) {
	f, err := selections.resolve(name)
	if errors.Is(err, ErrOperatorNotFound) && strings.HasPrefix(name, evenPrefix) {
		inner, innerErr := NewSelection(strings.TrimPrefix(name, evenPrefix), p)
		if innerErr != nil {
			return nil, innerErr
		}
		return Even(inner), nil
	}
	if err != nil {
		return nil, err
	}
	return f(p)
}

func NewRecombination(name string, p Params) (ga.RecombinationOp[byte], error) {
	f, err := recombinations.resolve(name)
	if err != nil {
		return nil, err
	}
	return f(p)
}

func NewMutation(name string, p Params) (ga.MutationOp[byte], error) {
	f, err := mutations.resolve(name)
	if err != nil {
		return nil, err
	}
	return f(p)
}

func NewProblem(name string, p Params) (ga.FitnessFunc[byte], error) {
	f, err := problems.resolve(name)
	if err != nil {
		return nil, err
	}
	return f(p)
}

func SelectionNames() []string     { return selections.names() }
func RecombinationNames() []string { return recombinations.names() }
func MutationNames() []string      { return mutations.names() }
func ProblemNames() []string       { return problems.names() }

func init() {
	mustRegister(RegisterSelection("roulette", func(Params) (ga.SelectionFunc[byte], error) {
		return Roulette[byte](), nil
	}))
	mustRegister(RegisterSelection("rank", func(Params) (ga.SelectionFunc[byte], error) {
		return Rank[byte](), nil
	}))
	mustRegister(RegisterSelection("tournament", func(p Params) (ga.SelectionFunc[byte], error) {
		return Tournament[byte](p.TournamentSize), nil
	}))
	mustRegister(RegisterSelection("elitist", func(p Params) (ga.SelectionFunc[byte], error) {
		keep := p.EliteCount
		if keep <= 0 {
			keep = 1
		}
		return Elitist[byte](keep), nil
	}))
	mustRegister(RegisterSelection("sigma_roulette", func(Params) (ga.SelectionFunc[byte], error) {
		return Scaled(SigmaScaling, Roulette[byte]()), nil
	}))
	mustRegister(RegisterSelection("rank_roulette", func(Params) (ga.SelectionFunc[byte], error) {
		return Scaled(RankScaling, Roulette[byte]()), nil
	}))
	mustRegister(RegisterSelection("linear_roulette", func(Params) (ga.SelectionFunc[byte], error) {
		return Scaled(LinearScaling(linearScalingMultiple), Roulette[byte]()), nil
	}))
	mustRegister(RegisterSelection("truncation", func(p Params) (ga.SelectionFunc[byte], error) {
		return Truncation[byte](p.EliteCount), nil
	}))

	mustRegister(RegisterRecombination("single_point", func(p Params) (ga.RecombinationOp[byte], error) {
		rate, err := rateOr("crossover rate", p.CrossoverRate, defaultCrossoverRate)
		if err != nil {
			return nil, err
		}
		return SinglePoint[byte](rate), nil
	}))
	mustRegister(RegisterRecombination("uniform", func(p Params) (ga.RecombinationOp[byte], error) {
		rate, err := rateOr("crossover rate", p.CrossoverRate, defaultCrossoverRate)
		if err != nil {
			return nil, err
		}
		swap, err := rateOr("swap rate", p.SwapRate, defaultSwapRate)
		if err != nil {
			return nil, err
		}
		return Uniform[byte](rate, swap), nil
	}))
	mustRegister(RegisterRecombination("identity", func(Params) (ga.RecombinationOp[byte], error) {
		return IdentityRecombination[byte](), nil
	}))

	mustRegister(RegisterMutation("bit_flip", func(p Params) (ga.MutationOp[byte], error) {
		rate, err := rateOr("mutation rate", p.MutationRate, defaultMutationRate)
		if err != nil {
			return nil, err
		}
		return PointMutation(rate, []byte(p.alphabet())), nil
	}))
	mustRegister(RegisterMutation("identity", func(Params) (ga.MutationOp[byte], error) {
		return IdentityMutation[byte](), nil
	}))

	mustRegister(RegisterProblem("onemax", func(Params) (ga.FitnessFunc[byte], error) {
		return CountSymbol[byte]('1'), nil
	}))
	mustRegister(RegisterProblem("target", func(p Params) (ga.FitnessFunc[byte], error) {
		if p.Target == "" {
			return nil, errors.New("target problem requires a target string")
		}
		return MatchTarget(p.Target), nil
	}))
	mustRegister(RegisterProblem("proportional_onemax", func(Params) (ga.FitnessFunc[byte], error) {
		return Proportional(CountSymbol[byte]('1')), nil
	}))
}

// rateOr returns *rate, or fallback when rate is nil. Probabilities outside
// [0, 1] are rejected.
func rateOr(name string, rate *float64, fallback float64) (float64, error) {
	if rate == nil {
		return fallback, nil
	}
	if *rate < 0 || *rate > 1 || math.IsNaN(*rate) {
		return 0, fmt.Errorf("%s must be within [0, 1], got %g", name, *rate)
	}
	return *rate, nil
}

func mustRegister(err error) {
	if err != nil {
		panic(err)
	}
}
