package ga

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func swap(_ *rand.Rand, a, b Genome[byte]) (Genome[byte], Genome[byte], error) {
	return b, a, nil
}

func TestRecombineSwapsWithinPairsAndKeepsPairOrder(t *testing.T) {
	out, err := Recombine(nil, swap, bits("g0", "g1", "g2", "g3"))
	require.NoError(t, err)
	assert.Equal(t, bits("g1", "g0", "g3", "g2"), out)
}

func TestRecombineEmptyList(t *testing.T) {
	calls := 0
	op := func(_ *rand.Rand, a, b Genome[byte]) (Genome[byte], Genome[byte], error) {
		calls++
		return a, b, nil
	}
	out, err := Recombine(nil, op, nil)
	require.NoError(t, err)
	assert.NotNil(t, out)
	assert.Empty(t, out)
	assert.Zero(t, calls)
}

func TestRecombineOddListNeverCallsOperator(t *testing.T) {
	calls := 0
	op := func(_ *rand.Rand, a, b Genome[byte]) (Genome[byte], Genome[byte], error) {
		calls++
		return a, b, nil
	}
	out, err := Recombine(nil, op, bits("a", "b", "c"))
	require.ErrorIs(t, err, ErrOddPairing)
	assert.Nil(t, out)
	assert.Zero(t, calls)

	var pairingErr *PairingError
	require.ErrorAs(t, err, &pairingErr)
	assert.Equal(t, -1, pairingErr.Generation)
	assert.Equal(t, 3, pairingErr.Count)
	assert.NotContains(t, err.Error(), "generation")
}

func TestRecombineConsumesStreamPairByPair(t *testing.T) {
	var draws []int
	op := func(rng *rand.Rand, a, b Genome[byte]) (Genome[byte], Genome[byte], error) {
		draws = append(draws, rng.Intn(1000))
		return a, b, nil
	}
	_, err := Recombine(rand.New(rand.NewSource(11)), op, bits("a", "b", "c", "d", "e", "f"))
	require.NoError(t, err)

	ref := rand.New(rand.NewSource(11))
	assert.Equal(t, []int{ref.Intn(1000), ref.Intn(1000), ref.Intn(1000)}, draws)
}

func TestPopulationHelpers(t *testing.T) {
	pop := Population[byte]{
		{Genome: Genome[byte]("01"), Fitness: 1},
		{Genome: Genome[byte]("11"), Fitness: 2},
		{Genome: Genome[byte]("10"), Fitness: 2},
	}
	best, ok := pop.Best()
	require.True(t, ok)
	assert.Equal(t, Genome[byte]("11"), best.Genome)
	assert.Equal(t, []float64{1, 2, 2}, pop.Fitnesses())
	assert.Equal(t, bits("01", "11", "10"), pop.Genomes())

	_, ok = Population[byte]{}.Best()
	assert.False(t, ok)
}
