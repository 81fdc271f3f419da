package ga

import (
	"errors"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bits(values ...string) []Genome[byte] {
	out := make([]Genome[byte], len(values))
	for i, v := range values {
		out[i] = Genome[byte](v)
	}
	return out
}

func countOnes(g Genome[byte], _ []Genome[byte]) (float64, error) {
	n := 0
	for _, b := range g {
		if b == '1' {
			n++
		}
	}
	return float64(n), nil
}

func identitySelection(_ *rand.Rand, pop Population[byte]) ([]Genome[byte], error) {
	return pop.Genomes(), nil
}

func identityRecombination(_ *rand.Rand, a, b Genome[byte]) (Genome[byte], Genome[byte], error) {
	return a, b, nil
}

func identityMutation(_ *rand.Rand, g Genome[byte]) (Genome[byte], error) {
	return g, nil
}

func shuffleSelection(rng *rand.Rand, pop Population[byte]) ([]Genome[byte], error) {
	out := make([]Genome[byte], len(pop))
	for i := range out {
		out[i] = pop[rng.Intn(len(pop))].Genome
	}
	return out, nil
}

func cutRecombination(rng *rand.Rand, a, b Genome[byte]) (Genome[byte], Genome[byte], error) {
	cut := rng.Intn(len(a) + 1)
	c1 := append(a[:cut:cut].Clone(), b[cut:]...)
	c2 := append(b[:cut:cut].Clone(), a[cut:]...)
	return c1, c2, nil
}

func flipMutation(rng *rand.Rand, g Genome[byte]) (Genome[byte], error) {
	out := g.Clone()
	for i := range out {
		if rng.Float64() < 0.2 {
			if out[i] == '1' {
				out[i] = '0'
			} else {
				out[i] = '1'
			}
		}
	}
	return out, nil
}

func stochasticRun(t *testing.T, seed int64) *Sequence[byte] {
	t.Helper()
	seq, err := RunEA(bits("10101", "00000", "11100", "01011"), countOnes, shuffleSelection, cutRecombination, flipMutation, seed)
	require.NoError(t, err)
	return seq
}

func TestRunRejectsEmptyStartPopulation(t *testing.T) {
	_, err := RunEA(nil, countOnes, identitySelection, identityRecombination, identityMutation, 1)
	require.ErrorIs(t, err, ErrEmptyPopulation)
}

func TestRunRequiresOperators(t *testing.T) {
	start := bits("01")
	cases := map[string]Config[byte]{
		"fitness":       {Selection: identitySelection, Recombination: identityRecombination, Mutation: identityMutation},
		"selection":     {Fitness: countOnes, Recombination: identityRecombination, Mutation: identityMutation},
		"recombination": {Fitness: countOnes, Selection: identitySelection, Mutation: identityMutation},
		"mutation":      {Fitness: countOnes, Selection: identitySelection, Recombination: identityRecombination},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Run(start, cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), name)
		})
	}
}

func TestSequenceIsDeterministicForSeed(t *testing.T) {
	a, err := stochasticRun(t, 42).Take(25)
	require.NoError(t, err)
	b, err := stochasticRun(t, 42).Take(25)
	require.NoError(t, err)
	require.Equal(t, a, b)

	c, err := stochasticRun(t, 43).Take(25)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestSequencePrefixIsStableAcrossCalls(t *testing.T) {
	full, err := stochasticRun(t, 7).Take(10)
	require.NoError(t, err)

	seq := stochasticRun(t, 7)
	head, err := seq.Take(4)
	require.NoError(t, err)
	tail, err := seq.Take(6)
	require.NoError(t, err)

	assert.Equal(t, full, append(head, tail...))
	assert.Equal(t, 10, seq.Index())
}

func TestIdentityOperatorsPreserveGenerationZero(t *testing.T) {
	seq, err := RunEA(bits("0110", "1111", "0000", "1000"), countOnes, identitySelection, identityRecombination, identityMutation, 1)
	require.NoError(t, err)

	gens, err := seq.Take(6)
	require.NoError(t, err)
	for i, gen := range gens {
		assert.Equal(t, gens[0], gen, "generation %d", i)
	}
}

func TestFitnessIsRecomputedForEachGeneration(t *testing.T) {
	seq, err := RunEA(bits("111", "000"), countOnes, identitySelection, identityRecombination, identityMutation, 3)
	require.NoError(t, err)

	gens, err := seq.Take(2)
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 0}, gens[0].Fitnesses())
	assert.Equal(t, []float64{3, 0}, gens[1].Fitnesses())
}

func TestFitnessSeesSiblingsOfSameGeneration(t *testing.T) {
	share := func(g Genome[byte], siblings []Genome[byte]) (float64, error) {
		own, _ := countOnes(g, siblings)
		total := 0.0
		for _, s := range siblings {
			n, _ := countOnes(s, siblings)
			total += n
		}
		if total == 0 {
			return 0, nil
		}
		return own / total, nil
	}
	grow := func(_ *rand.Rand, g Genome[byte]) (Genome[byte], error) {
		out := g.Clone()
		for i := range out {
			if out[i] == '0' {
				out[i] = '1'
				break
			}
		}
		return out, nil
	}

	seq, err := RunEA(bits("100", "000"), share, identitySelection, identityRecombination, grow, 1)
	require.NoError(t, err)
	gens, err := seq.Take(2)
	require.NoError(t, err)

	assert.Equal(t, []float64{1, 0}, gens[0].Fitnesses())
	// "110" and "100" are scored against each other, not against generation 0.
	assert.InDeltaSlice(t, []float64{2.0 / 3.0, 1.0 / 3.0}, gens[1].Fitnesses(), 1e-12)
}

func TestOddSelectionFailsAtGenerationBoundary(t *testing.T) {
	dropLast := func(_ *rand.Rand, pop Population[byte]) ([]Genome[byte], error) {
		return pop.Genomes()[:len(pop)-1], nil
	}
	seq, err := RunEA(bits("1", "0", "1", "0"), countOnes, dropLast, identityRecombination, identityMutation, 1)
	require.NoError(t, err)

	first, err := seq.Next()
	require.NoError(t, err)
	require.Len(t, first, 4)

	_, err = seq.Next()
	require.ErrorIs(t, err, ErrOddPairing)
	var pairingErr *PairingError
	require.ErrorAs(t, err, &pairingErr)
	assert.Equal(t, 1, pairingErr.Generation)
	assert.Equal(t, 3, pairingErr.Count)
	assert.Contains(t, err.Error(), "generation 1")

	_, again := seq.Next()
	assert.Same(t, pairingErr, again.(*PairingError))
	assert.Equal(t, 1, seq.Index())
}

func TestOperatorErrorsPropagateUnmodified(t *testing.T) {
	boom := errors.New("boom")
	failing := func(_ *rand.Rand, _ Genome[byte]) (Genome[byte], error) {
		return nil, boom
	}
	seq, err := RunEA(bits("10", "01"), countOnes, identitySelection, identityRecombination, failing, 1)
	require.NoError(t, err)

	_, err = seq.Next()
	require.NoError(t, err)
	_, err = seq.Next()
	assert.True(t, err == boom, "expected the operator's own error value, got %v", err)
	assert.Equal(t, boom, seq.Err())
}

func TestSequenceIsLazy(t *testing.T) {
	const k = 3
	boom := errors.New("mutation reached forbidden generation")
	calls := 0
	perGeneration := 2
	mutation := func(_ *rand.Rand, g Genome[byte]) (Genome[byte], error) {
		calls++
		if calls > (k+4)*perGeneration {
			return nil, boom
		}
		return g, nil
	}

	seq, err := RunEA(bits("10", "01"), countOnes, identitySelection, identityRecombination, mutation, 1)
	require.NoError(t, err)
	gens, err := seq.Take(k)
	require.NoError(t, err)
	require.Len(t, gens, k)
	assert.Equal(t, (k-1)*perGeneration, calls)

	// The failure is still there for anyone who keeps pulling.
	_, err = seq.Take(10)
	assert.ErrorIs(t, err, boom)
}

func TestNothingIsEvaluatedBeforeNext(t *testing.T) {
	evaluated := 0
	fitness := func(g Genome[byte], s []Genome[byte]) (float64, error) {
		evaluated++
		return countOnes(g, s)
	}
	seq, err := RunEA(bits("1", "0"), fitness, identitySelection, identityRecombination, identityMutation, 1)
	require.NoError(t, err)
	assert.Zero(t, evaluated)

	_, err = seq.Next()
	require.NoError(t, err)
	assert.Equal(t, 2, evaluated)
}

func TestElitistSelectionKeepsMaximum(t *testing.T) {
	elitist := func(_ *rand.Rand, pop Population[byte]) ([]Genome[byte], error) {
		ranked := append(Population[byte](nil), pop...)
		sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Fitness > ranked[j].Fitness })
		return []Genome[byte]{ranked[0].Genome, ranked[1].Genome, ranked[0].Genome, ranked[0].Genome}, nil
	}
	seq, err := RunEA(bits("0001", "0111", "1111", "0011"), countOnes, elitist, identityRecombination, identityMutation, 9)
	require.NoError(t, err)

	gens, err := seq.Take(2)
	require.NoError(t, err)
	best, ok := gens[0].Best()
	require.True(t, ok)

	hits := 0
	for _, f := range gens[1].Fitnesses() {
		if f == best.Fitness {
			hits++
		}
	}
	assert.GreaterOrEqual(t, hits, 3)
}

func TestTakeWhileAndTakeUntil(t *testing.T) {
	grow := func(_ *rand.Rand, g Genome[byte]) (Genome[byte], error) {
		return append(g.Clone(), '1'), nil
	}
	newSeq := func() *Sequence[byte] {
		seq, err := RunEA(bits("", ""), countOnes, identitySelection, identityRecombination, grow, 1)
		require.NoError(t, err)
		return seq
	}

	below := func(_ int, pop Population[byte]) bool { return pop[0].Fitness < 3 }
	while, err := newSeq().TakeWhile(below)
	require.NoError(t, err)
	assert.Len(t, while, 3)

	reached := func(_ int, pop Population[byte]) bool { return pop[0].Fitness >= 3 }
	until, err := newSeq().TakeUntil(reached)
	require.NoError(t, err)
	require.Len(t, until, 4)
	assert.Equal(t, 3.0, until[3][0].Fitness)
}

func TestAllYieldsIndexes(t *testing.T) {
	seq := stochasticRun(t, 5)
	var indexes []int
	for index := range seq.All() {
		indexes = append(indexes, index)
		if index == 4 {
			break
		}
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4}, indexes)
	assert.NoError(t, seq.Err())
	assert.Equal(t, 5, seq.Index())
}

func TestReturnedGenerationsAreNotAliased(t *testing.T) {
	newSeq := func() *Sequence[byte] {
		seq, err := RunEA(bits("0000", "1110", "1000", "1100"), countOnes, identitySelection, identityRecombination, identityMutation, 1)
		require.NoError(t, err)
		return seq
	}

	untouched := newSeq()
	_, err := untouched.Next()
	require.NoError(t, err)
	want, err := untouched.Next()
	require.NoError(t, err)

	edited := newSeq()
	gen0, err := edited.Next()
	require.NoError(t, err)
	sort.SliceStable(gen0, func(i, j int) bool { return gen0[i].Fitness > gen0[j].Fitness })
	gen0[0].Genome[0] = 'x'
	gen0[1].Fitness = 100

	got, err := edited.Next()
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, []float64{0, 3, 1, 2}, got.Fitnesses())
}

func TestPopulationCloneIsDeep(t *testing.T) {
	pop := Population[byte]{{Genome: Genome[byte]("01"), Fitness: 1}}
	clone := pop.Clone()
	clone[0].Genome[0] = '1'
	clone[0].Fitness = 2
	assert.Equal(t, Genome[byte]("01"), pop[0].Genome)
	assert.Equal(t, 1.0, pop[0].Fitness)
	assert.Nil(t, Population[byte](nil).Clone())
}

func TestStartGenomesAreNotAliased(t *testing.T) {
	start := bits("101", "010")
	seq, err := RunEA(start, countOnes, identitySelection, identityRecombination, identityMutation, 1)
	require.NoError(t, err)
	start[0][0] = '0'

	gen, err := seq.Next()
	require.NoError(t, err)
	assert.Equal(t, Genome[byte]("101"), gen[0].Genome)
}
