package stats

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"evogen/internal/model"
	"evogen/internal/operators"
)

// Summarize reduces one evaluated generation to its diagnostics. genomes and
// fitnesses are parallel; diversity is the mean pairwise distance between
// genomes.
func Summarize(generation int, fitnesses []float64, genomes []string) model.GenerationDiagnostics {
	out := model.GenerationDiagnostics{
		Generation:     generation,
		PopulationSize: len(fitnesses),
	}
	if len(fitnesses) > 0 {
		mean, variance := stat.PopMeanVariance(fitnesses, nil)
		out.BestFitness = floats.Max(fitnesses)
		out.MinFitness = floats.Min(fitnesses)
		out.MeanFitness = mean
		if variance > 0 {
			out.StdDevFitness = math.Sqrt(variance)
		}
	}

	distinct := make(map[string]struct{}, len(genomes))
	for _, g := range genomes {
		distinct[g] = struct{}{}
	}
	out.DistinctGenomes = len(distinct)
	out.MeanDistance = MeanPairwiseDistance(genomes)
	return out
}

func MeanPairwiseDistance(genomes []string) float64 {
	if len(genomes) < 2 {
		return 0
	}
	total := 0
	pairs := 0
	for i := 0; i < len(genomes); i++ {
		for j := i + 1; j < len(genomes); j++ {
			total += operators.Distance(genomes[i], genomes[j])
			pairs++
		}
	}
	return float64(total) / float64(pairs)
}

// AverageCurve averages aligned series point by point. Shorter series stop
// contributing once they run out.
func AverageCurve(series [][]float64) []float64 {
	longest := 0
	for _, s := range series {
		longest = max(longest, len(s))
	}
	out := make([]float64, 0, longest)
	for i := 0; i < longest; i++ {
		values := make([]float64, 0, len(series))
		for _, s := range series {
			if i < len(s) {
				values = append(values, s[i])
			}
		}
		out = append(out, stat.Mean(values, nil))
	}
	return out
}
