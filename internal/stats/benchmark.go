package stats

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const benchmarkExperimentsDir = "experiments"

// BenchmarkRun is the outcome of one seed of a benchmark.
type BenchmarkRun struct {
	RunID          string  `json:"run_id"`
	Seed           int64   `json:"seed"`
	Generations    int     `json:"generations"`
	ReachedGoal    bool    `json:"reached_goal"`
	GoalGeneration int     `json:"goal_generation,omitempty"`
	FinalBest      float64 `json:"final_best"`
}

type BenchmarkStats struct {
	TotalRuns            int       `json:"total_runs"`
	SuccessRuns          int       `json:"success_runs"`
	SuccessRate          float64   `json:"success_rate"`
	AvgGenerationsToGoal float64   `json:"avg_generations_to_goal"`
	StdGenerationsToGoal float64   `json:"std_generations_to_goal"`
	MinGenerationsToGoal float64   `json:"min_generations_to_goal"`
	MaxGenerationsToGoal float64   `json:"max_generations_to_goal"`
	MeanFinalBest        float64   `json:"mean_final_best"`
	BestFinalBest        float64   `json:"best_final_best"`
	AverageBestCurve     []float64 `json:"average_best_curve,omitempty"`
}

// EvaluateSeries scores a best-by-generation series against goal. Without a
// goal every run counts as successful at its last generation.
func EvaluateSeries(runID string, seed int64, series []float64, goal *float64) BenchmarkRun {
	run := BenchmarkRun{RunID: runID, Seed: seed, Generations: len(series)}
	if len(series) > 0 {
		run.FinalBest = series[len(series)-1]
	}
	if goal == nil {
		run.ReachedGoal = true
		run.GoalGeneration = max(len(series)-1, 0)
		return run
	}
	for generation, best := range series {
		if best >= *goal {
			run.ReachedGoal = true
			run.GoalGeneration = generation
			return run
		}
	}
	return run
}

// BuildBenchmarkStats aggregates runs; the generation statistics cover
// successful runs only.
func BuildBenchmarkStats(runs []BenchmarkRun) BenchmarkStats {
	result := BenchmarkStats{TotalRuns: len(runs)}
	if len(runs) == 0 {
		return result
	}
	finals := make([]float64, 0, len(runs))
	reached := make([]float64, 0, len(runs))
	for _, run := range runs {
		finals = append(finals, run.FinalBest)
		if run.ReachedGoal {
			result.SuccessRuns++
			reached = append(reached, float64(run.GoalGeneration))
		}
	}
	result.SuccessRate = float64(result.SuccessRuns) / float64(result.TotalRuns)
	result.MeanFinalBest = stat.Mean(finals, nil)
	result.BestFinalBest = floats.Max(finals)
	if len(reached) > 0 {
		mean, variance := stat.PopMeanVariance(reached, nil)
		result.AvgGenerationsToGoal = mean
		if variance > 0 {
			result.StdGenerationsToGoal = math.Sqrt(variance)
		}
		result.MinGenerationsToGoal = floats.Min(reached)
		result.MaxGenerationsToGoal = floats.Max(reached)
	}
	return result
}

// BenchmarkExperiment records a finished benchmark so it can be listed later.
type BenchmarkExperiment struct {
	ID             string         `json:"id"`
	Problem        string         `json:"problem"`
	StartedAtUTC   string         `json:"started_at_utc,omitempty"`
	CompletedAtUTC string         `json:"completed_at_utc,omitempty"`
	RunIDs         []string       `json:"run_ids,omitempty"`
	Runs           []BenchmarkRun `json:"runs,omitempty"`
	Stats          BenchmarkStats `json:"stats"`
}

func WriteBenchmarkExperiment(baseDir string, exp BenchmarkExperiment) error {
	if exp.ID == "" {
		return fmt.Errorf("experiment id is required")
	}
	path := benchmarkExperimentPath(baseDir, exp.ID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return writeJSON(path, exp)
}

func ReadBenchmarkExperiment(baseDir, id string) (BenchmarkExperiment, bool, error) {
	if id == "" {
		return BenchmarkExperiment{}, false, fmt.Errorf("experiment id is required")
	}
	return readJSON[BenchmarkExperiment](benchmarkExperimentPath(baseDir, id))
}

// ListBenchmarkExperiments returns experiments newest first; experiments
// without a start time sort last.
func ListBenchmarkExperiments(baseDir string) ([]BenchmarkExperiment, error) {
	entries, err := os.ReadDir(filepath.Join(baseDir, benchmarkExperimentsDir))
	if err != nil {
		if os.IsNotExist(err) {
			return []BenchmarkExperiment{}, nil
		}
		return nil, err
	}

	exps := make([]BenchmarkExperiment, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		exp, ok, err := ReadBenchmarkExperiment(baseDir, entry.Name())
		if err != nil {
			return nil, err
		}
		if ok {
			exps = append(exps, exp)
		}
	}
	sort.Slice(exps, func(i, j int) bool {
		switch {
		case exps[i].StartedAtUTC == exps[j].StartedAtUTC:
			return exps[i].ID < exps[j].ID
		case exps[i].StartedAtUTC == "":
			return false
		case exps[j].StartedAtUTC == "":
			return true
		default:
			return exps[i].StartedAtUTC > exps[j].StartedAtUTC
		}
	})
	return exps, nil
}

func benchmarkExperimentPath(baseDir, id string) string {
	return filepath.Join(baseDir, benchmarkExperimentsDir, id, "experiment.json")
}
