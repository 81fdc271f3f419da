package operators

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evogen/internal/ga"
)

func pop(entries ...any) ga.Population[byte] {
	out := make(ga.Population[byte], 0, len(entries)/2)
	for i := 0; i < len(entries); i += 2 {
		out = append(out, ga.Individual[byte]{
			Genome:  ga.Genome[byte](entries[i].(string)),
			Fitness: entries[i+1].(float64),
		})
	}
	return out
}

func asStrings(genomes []ga.Genome[byte]) []string {
	out := make([]string, len(genomes))
	for i, g := range genomes {
		out[i] = string(g)
	}
	return out
}

func TestRouletteRejectsNegativeFitness(t *testing.T) {
	_, err := Roulette[byte]()(rand.New(rand.NewSource(1)), pop("a", 1.0, "b", -1.0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "negative fitness")
}

func TestRouletteOnlyPicksPositiveFitness(t *testing.T) {
	out, err := Roulette[byte]()(rand.New(rand.NewSource(1)), pop("a", 0.0, "b", 5.0, "c", 0.0))
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "b", "b"}, asStrings(out))
}

func TestRouletteAllZeroFallsBackToUniform(t *testing.T) {
	p := pop("a", 0.0, "b", 0.0, "c", 0.0, "d", 0.0)
	out, err := Roulette[byte]()(rand.New(rand.NewSource(3)), p)
	require.NoError(t, err)
	require.Len(t, out, 4)
	for _, g := range asStrings(out) {
		assert.Contains(t, []string{"a", "b", "c", "d"}, g)
	}
}

func TestRankAndTournamentKeepPopulationSize(t *testing.T) {
	p := pop("a", 1.0, "b", 2.0, "c", 3.0, "d", 4.0, "e", 5.0)
	for name, sel := range map[string]ga.SelectionFunc[byte]{
		"rank":       Rank[byte](),
		"tournament": Tournament[byte](0),
	} {
		out, err := sel(rand.New(rand.NewSource(9)), p)
		require.NoError(t, err, name)
		require.Len(t, out, 5, name)
		for _, g := range asStrings(out) {
			assert.Contains(t, []string{"a", "b", "c", "d", "e"}, g, name)
		}
	}
}

func TestTournamentOfOneIsUniformDraw(t *testing.T) {
	p := pop("a", 1.0, "b", 2.0, "c", 3.0)
	out, err := Tournament[byte](1)(rand.New(rand.NewSource(4)), p)
	require.NoError(t, err)

	ref := rand.New(rand.NewSource(4))
	want := make([]string, 3)
	for i := range want {
		want[i] = string(p[ref.Intn(3)].Genome)
	}
	assert.Equal(t, want, asStrings(out))
}

func TestElitistAndTruncation(t *testing.T) {
	p := pop("a", 1.0, "b", 3.0, "c", 2.0)

	out, err := Elitist[byte](2)(nil, p)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c", "b"}, asStrings(out))

	out, err = Truncation[byte](2)(nil, p)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c", "b"}, asStrings(out))

	out, err = Truncation[byte](1)(nil, p)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "b", "b"}, asStrings(out))
}

func TestScaledHandsTransformedFitnessToInner(t *testing.T) {
	var seen []float64
	inner := func(_ *rand.Rand, p ga.Population[byte]) ([]ga.Genome[byte], error) {
		seen = p.Fitnesses()
		return p.Genomes(), nil
	}
	p := pop("a", 5.0, "b", 1.0, "c", 5.0)
	_, err := Scaled(RankScaling, inner)(nil, p)
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 1, 3}, seen)
	assert.Equal(t, []float64{5, 1, 5}, p.Fitnesses())
}

func TestEvenDropsTrailingGenome(t *testing.T) {
	out, err := Even(Truncation[byte](1))(nil, pop("a", 1.0, "b", 2.0, "c", 0.0))
	require.NoError(t, err)
	assert.Len(t, out, 2)
}

func TestSigmaScaling(t *testing.T) {
	assert.InDeltaSlice(t, []float64{0.5, 1.5}, SigmaScaling([]float64{0, 2}), 1e-9)
	assert.Equal(t, []float64{1, 1, 1}, SigmaScaling([]float64{4, 4, 4}))

	scaled := SigmaScaling([]float64{0, 100, 100, 100, 100, 100, 100, 100, 100, 100})
	assert.InDelta(t, 0.1, scaled[0], 1e-9)
}

func TestLinearScalingKeepsMean(t *testing.T) {
	scaled := LinearScaling(2)([]float64{1, 2, 3})
	assert.InDeltaSlice(t, []float64{0, 2, 4}, scaled, 1e-9)

	flat := LinearScaling(2)([]float64{3, 3})
	assert.Equal(t, []float64{3, 3}, flat)
}

func TestSinglePointSwapsTails(t *testing.T) {
	op := SinglePoint[byte](1)
	c1, c2, err := op(rand.New(rand.NewSource(5)), ga.Genome[byte]("000000"), ga.Genome[byte]("111111"))
	require.NoError(t, err)
	require.Len(t, c1, 6)
	require.Len(t, c2, 6)
	assert.Equal(t, byte('0'), c1[0])
	assert.Equal(t, byte('1'), c1[5])
	for i := range c1 {
		assert.NotEqual(t, c1[i], c2[i])
	}
}

func TestSinglePointBelowRateCopiesParents(t *testing.T) {
	a, b := ga.Genome[byte]("0000"), ga.Genome[byte]("1111")
	rng := rand.New(rand.NewSource(5))
	c1, c2, err := SinglePoint[byte](0)(rng, a, b)
	require.NoError(t, err)
	assert.Equal(t, a, c1)
	assert.Equal(t, b, c2)

	c1[0] = 'x'
	assert.Equal(t, ga.Genome[byte]("0000"), a)

	ref := rand.New(rand.NewSource(5))
	ref.Float64()
	assert.Equal(t, ref.Int63(), rng.Int63())
}

func TestUniformFullSwap(t *testing.T) {
	c1, c2, err := Uniform[byte](1, 1)(rand.New(rand.NewSource(2)), ga.Genome[byte]("abc"), ga.Genome[byte]("xyz"))
	require.NoError(t, err)
	assert.Equal(t, "xyz", string(c1))
	assert.Equal(t, "abc", string(c2))
}

func TestIdentityOperators(t *testing.T) {
	a, b := ga.Genome[byte]("ab"), ga.Genome[byte]("cd")
	c1, c2, err := IdentityRecombination[byte]()(nil, a, b)
	require.NoError(t, err)
	assert.Equal(t, a, c1)
	assert.Equal(t, b, c2)

	m, err := IdentityMutation[byte]()(nil, a)
	require.NoError(t, err)
	assert.Equal(t, a, m)
}

func TestPointMutationAlwaysChangesSymbol(t *testing.T) {
	in := ga.Genome[byte]("0101")
	out, err := BitFlip(1)(rand.New(rand.NewSource(8)), in)
	require.NoError(t, err)
	assert.Equal(t, "1010", string(out))
	assert.Equal(t, "0101", string(in))

	out, err = PointMutation(1, []byte("abc"))(rand.New(rand.NewSource(8)), ga.Genome[byte]("aaaa"))
	require.NoError(t, err)
	for _, s := range out {
		assert.Contains(t, []byte("bc"), s)
	}
}

func TestPointMutationNeedsTwoSymbols(t *testing.T) {
	_, err := PointMutation(0.5, []byte("x"))(rand.New(rand.NewSource(1)), ga.Genome[byte]("x"))
	require.Error(t, err)
}

func TestFitnessFunctions(t *testing.T) {
	f, err := CountSymbol[byte]('1')(ga.Genome[byte]("0110"), nil)
	require.NoError(t, err)
	assert.Equal(t, 2.0, f)

	match := MatchTarget("hello")
	for genome, want := range map[string]float64{"hello": 5, "hellx": 4, "hell": 4, "": 0} {
		got, err := match(ga.Genome[byte](genome), nil)
		require.NoError(t, err)
		assert.Equal(t, want, got, genome)
	}

	siblings := []ga.Genome[byte]{ga.Genome[byte]("11"), ga.Genome[byte]("10"), ga.Genome[byte]("00")}
	prop := Proportional(CountSymbol[byte]('1'))
	got, err := prop(siblings[0], siblings)
	require.NoError(t, err)
	assert.InDelta(t, 2.0/3.0, got, 1e-9)

	zero := []ga.Genome[byte]{ga.Genome[byte]("00")}
	got, err = prop(zero[0], zero)
	require.NoError(t, err)
	assert.Zero(t, got)
}

func TestRandomPopulationIsSeeded(t *testing.T) {
	a, err := RandomPopulation(rand.New(rand.NewSource(42)), []byte(BinaryAlphabet), 8, 4)
	require.NoError(t, err)
	b, err := RandomPopulation(rand.New(rand.NewSource(42)), []byte(BinaryAlphabet), 8, 4)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	require.Len(t, a, 4)
	for _, g := range a {
		require.Len(t, g, 8)
		for _, s := range g {
			assert.Contains(t, []byte("01"), s)
		}
	}

	_, err = RandomPopulation(rand.New(rand.NewSource(1)), []byte("01"), 4, 0)
	require.Error(t, err)
	_, err = RandomGenome[byte](rand.New(rand.NewSource(1)), nil, 4)
	require.Error(t, err)
}

func TestRegistryBuiltins(t *testing.T) {
	assert.Contains(t, SelectionNames(), "tournament")
	assert.Contains(t, RecombinationNames(), "single_point")
	assert.Contains(t, MutationNames(), "bit_flip")
	assert.Equal(t, []string{"onemax", "proportional_onemax", "target"}, ProblemNames())

	_, err := NewSelection("missing", Params{})
	require.ErrorIs(t, err, ErrOperatorNotFound)

	_, err = NewProblem("target", Params{})
	require.Error(t, err)
	fitness, err := NewProblem("target", Params{Target: "01"})
	require.NoError(t, err)
	got, err := fitness(ga.Genome[byte]("01"), nil)
	require.NoError(t, err)
	assert.Equal(t, 2.0, got)

	err = RegisterSelection("roulette", func(Params) (ga.SelectionFunc[byte], error) { return Rank[byte](), nil })
	require.ErrorIs(t, err, ErrOperatorExists)
	require.Error(t, RegisterMutation("", nil))
}

func TestRegisterCustomOperator(t *testing.T) {
	require.NoError(t, RegisterMutation("test_identity_custom", func(Params) (ga.MutationOp[byte], error) {
		return IdentityMutation[byte](), nil
	}))
	op, err := NewMutation("test_identity_custom", Params{})
	require.NoError(t, err)
	out, err := op(nil, ga.Genome[byte]("1"))
	require.NoError(t, err)
	assert.Equal(t, "1", string(out))
}

func rate(v float64) *float64 { return &v }

func TestRegistryKeepsExplicitZeroRates(t *testing.T) {
	rng := rand.New(rand.NewSource(3))

	mutate, err := NewMutation("bit_flip", Params{MutationRate: rate(0)})
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		out, err := mutate(rng, ga.Genome[byte]("0101010101"))
		require.NoError(t, err)
		assert.Equal(t, "0101010101", string(out))
	}

	cross, err := NewRecombination("single_point", Params{CrossoverRate: rate(0)})
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		a, b, err := cross(rng, ga.Genome[byte]("0000"), ga.Genome[byte]("1111"))
		require.NoError(t, err)
		assert.Equal(t, []string{"0000", "1111"}, []string{string(a), string(b)})
	}
}

func TestRegistryRejectsRatesOutsideUnitInterval(t *testing.T) {
	_, err := NewMutation("bit_flip", Params{MutationRate: rate(1.5)})
	require.ErrorContains(t, err, "mutation rate")
	_, err = NewRecombination("single_point", Params{CrossoverRate: rate(-0.1)})
	require.ErrorContains(t, err, "crossover rate")
	_, err = NewRecombination("uniform", Params{SwapRate: rate(2)})
	require.ErrorContains(t, err, "swap rate")
}

func TestUniformUsesSwapRate(t *testing.T) {
	rng := rand.New(rand.NewSource(5))

	always, err := NewRecombination("uniform", Params{CrossoverRate: rate(1), SwapRate: rate(1)})
	require.NoError(t, err)
	a, b, err := always(rng, ga.Genome[byte]("0000"), ga.Genome[byte]("1111"))
	require.NoError(t, err)
	assert.Equal(t, []string{"1111", "0000"}, []string{string(a), string(b)})

	never, err := NewRecombination("uniform", Params{CrossoverRate: rate(1), SwapRate: rate(0)})
	require.NoError(t, err)
	a, b, err = never(rng, ga.Genome[byte]("0000"), ga.Genome[byte]("1111"))
	require.NoError(t, err)
	assert.Equal(t, []string{"0000", "1111"}, []string{string(a), string(b)})
}

func TestRegistryScaledAndTruncationSelections(t *testing.T) {
	p := pop("a", 1.0, "b", 4.0, "c", 3.0, "d", 2.0)
	rng := rand.New(rand.NewSource(9))

	for _, name := range []string{"rank_roulette", "linear_roulette", "truncation"} {
		assert.Contains(t, SelectionNames(), name)
		sel, err := NewSelection(name, Params{})
		require.NoError(t, err, name)
		out, err := sel(rng, p)
		require.NoError(t, err, name)
		assert.Len(t, out, len(p), name)
	}

	half, err := NewSelection("truncation", Params{})
	require.NoError(t, err)
	out, err := half(nil, p)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c", "b", "c"}, asStrings(out))
}

func TestRegistryEvenPrefixWrapsSelection(t *testing.T) {
	p := pop("a", 1.0, "b", 2.0, "c", 0.0)

	sel, err := NewSelection("even_truncation", Params{EliteCount: 1})
	require.NoError(t, err)
	out, err := sel(nil, p)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "b"}, asStrings(out))

	_, err = NewSelection("even_missing", Params{})
	require.ErrorIs(t, err, ErrOperatorNotFound)
	assert.NotContains(t, SelectionNames(), "even_truncation")
}
