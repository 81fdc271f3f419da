package operators

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const sigmaScalingFloor = 0.1

// ScalingFunc maps raw fitness values to selection weights. It must return a
// new slice of the same length.
type ScalingFunc func(fitness []float64) []float64

// SigmaScaling maps f to 1 + (f-mean)/(2*stddev), floored at 0.1. A
// population without spread scales to all ones.
func SigmaScaling(fitness []float64) []float64 {
	out := make([]float64, len(fitness))
	if len(fitness) == 0 {
		return out
	}
	mean, std := meanStdDev(fitness)
	for i, f := range fitness {
		if std == 0 {
			out[i] = 1
			continue
		}
		out[i] = math.Max(sigmaScalingFloor, 1+(f-mean)/(2*std))
	}
	return out
}

// LinearScaling returns the transform f' = a*f + b that keeps the mean and
// maps the maximum to multiple*mean. Scaled values are clamped at zero.
func LinearScaling(multiple float64) ScalingFunc {
	return func(fitness []float64) []float64 {
		out := make([]float64, len(fitness))
		if len(fitness) == 0 {
			return out
		}
		mean := stat.Mean(fitness, nil)
		top := floats.Max(fitness)
		if top == mean || multiple <= 1 {
			copy(out, fitness)
			return out
		}
		a := (multiple - 1) * mean / (top - mean)
		b := mean * (top - multiple*mean) / (top - mean)
		for i, f := range fitness {
			out[i] = math.Max(0, a*f+b)
		}
		return out
	}
}

// RankScaling replaces every value by its rank, 1 for the lowest. Ties are
// ranked in input order.
func RankScaling(fitness []float64) []float64 {
	order := make([]int, len(fitness))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool { return fitness[order[i]] < fitness[order[j]] })
	out := make([]float64, len(fitness))
	for rank, idx := range order {
		out[idx] = float64(rank + 1)
	}
	return out
}

// meanStdDev returns the mean and the population standard deviation.
func meanStdDev(values []float64) (float64, float64) {
	mean, variance := stat.PopMeanVariance(values, nil)
	if variance <= 0 || math.IsNaN(variance) {
		return mean, 0
	}
	return mean, math.Sqrt(variance)
}
