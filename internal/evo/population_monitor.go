package evo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/sirupsen/logrus"

	"evogen/internal/ga"
	"evogen/internal/model"
	"evogen/internal/stats"
)

type StopReason string

const (
	StopGenerationLimit StopReason = "generation_limit"
	StopGoalReached     StopReason = "goal_reached"
	StopCanceled        StopReason = "canceled"
	StopError           StopReason = "error"
)

const defaultTopCount = 5

// Observer is notified once per evaluated generation, in order.
type Observer interface {
	ObserveGeneration(d model.GenerationDiagnostics)
}

type ObserverFunc func(d model.GenerationDiagnostics)

func (f ObserverFunc) ObserveGeneration(d model.GenerationDiagnostics) { f(d) }

type MonitorConfig[S any] struct {
	// Generations counts emitted generations, generation 0 included.
	Generations int
	// FitnessGoal stops the run at the first generation whose best fitness
	// reaches it.
	FitnessGoal *float64
	TopCount    int
	Encode      func(ga.Genome[S]) string
	Observers   []Observer
	Logger      logrus.FieldLogger
}

type RunResult[S any] struct {
	BestByGeneration      []float64
	GenerationDiagnostics []model.GenerationDiagnostics
	FinalPopulation       ga.Population[S]
	TopGenomes            []model.TopGenomeRecord
	StopReason            StopReason
	Generations           int
}

// PopulationMonitor drives a generation sequence and records what each
// generation looked like.
type PopulationMonitor[S any] struct {
	cfg MonitorConfig[S]
	log logrus.FieldLogger
}

func NewPopulationMonitor[S any](cfg MonitorConfig[S]) (*PopulationMonitor[S], error) {
	if cfg.Generations <= 0 {
		return nil, fmt.Errorf("generations must be > 0")
	}
	if cfg.TopCount < 0 {
		return nil, fmt.Errorf("top count must be >= 0")
	}
	if cfg.TopCount == 0 {
		cfg.TopCount = defaultTopCount
	}
	if cfg.Encode == nil {
		cfg.Encode = func(g ga.Genome[S]) string { return fmt.Sprint([]S(g)) }
	}
	for i, obs := range cfg.Observers {
		if obs == nil {
			return nil, fmt.Errorf("observer is required at index %d", i)
		}
	}
	log := cfg.Logger
	if log == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		log = discard
	}
	return &PopulationMonitor[S]{cfg: cfg, log: log}, nil
}

// Run pulls generations from seq until the generation limit, the fitness
// goal, or ctx ends the run. Cancellation is noticed between generations.
// On failure the partial result is returned with the error.
func (m *PopulationMonitor[S]) Run(ctx context.Context, seq *ga.Sequence[S]) (RunResult[S], error) {
	if seq == nil {
		return RunResult[S]{}, errors.New("sequence is required")
	}
	result := RunResult[S]{
		BestByGeneration:      make([]float64, 0, m.cfg.Generations),
		GenerationDiagnostics: make([]model.GenerationDiagnostics, 0, m.cfg.Generations),
	}

	for gen := 0; gen < m.cfg.Generations; gen++ {
		if err := ctx.Err(); err != nil {
			return m.finish(result, StopCanceled), err
		}

		index := seq.Index()
		pop, err := seq.Next()
		if err != nil {
			m.log.WithError(err).WithField("generation", index).Error("generation failed")
			return m.finish(result, StopError), err
		}

		genomes := make([]string, len(pop))
		for i, ind := range pop {
			genomes[i] = m.cfg.Encode(ind.Genome)
		}
		diag := stats.Summarize(index, pop.Fitnesses(), genomes)
		result.BestByGeneration = append(result.BestByGeneration, diag.BestFitness)
		result.GenerationDiagnostics = append(result.GenerationDiagnostics, diag)
		result.FinalPopulation = pop
		result.Generations = gen + 1
		for _, obs := range m.cfg.Observers {
			obs.ObserveGeneration(diag)
		}
		m.log.WithFields(logrus.Fields{
			"generation": index,
			"best":       diag.BestFitness,
			"mean":       diag.MeanFitness,
			"distinct":   diag.DistinctGenomes,
		}).Debug("generation evaluated")

		if m.cfg.FitnessGoal != nil && diag.BestFitness >= *m.cfg.FitnessGoal {
			return m.finish(result, StopGoalReached), nil
		}
	}
	return m.finish(result, StopGenerationLimit), nil
}

func (m *PopulationMonitor[S]) finish(result RunResult[S], reason StopReason) RunResult[S] {
	result.StopReason = reason
	if n := len(result.GenerationDiagnostics); n > 0 {
		result.TopGenomes = m.topGenomes(result.FinalPopulation, result.GenerationDiagnostics[n-1].Generation)
	}
	fields := logrus.Fields{
		"reason":      reason,
		"generations": result.Generations,
	}
	if n := len(result.BestByGeneration); n > 0 {
		fields["best"] = result.BestByGeneration[n-1]
	}
	m.log.WithFields(fields).Info("run stopped")
	return result
}

// topGenomes ranks the distinct genomes of pop by fitness; equal fitness
// keeps population order.
func (m *PopulationMonitor[S]) topGenomes(pop ga.Population[S], generation int) []model.TopGenomeRecord {
	if len(pop) == 0 {
		return nil
	}
	ranked := make(ga.Population[S], len(pop))
	copy(ranked, pop)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Fitness > ranked[j].Fitness
	})

	seen := make(map[string]struct{}, m.cfg.TopCount)
	top := make([]model.TopGenomeRecord, 0, m.cfg.TopCount)
	for _, ind := range ranked {
		if len(top) == m.cfg.TopCount {
			break
		}
		encoded := m.cfg.Encode(ind.Genome)
		if _, dup := seen[encoded]; dup {
			continue
		}
		seen[encoded] = struct{}{}
		top = append(top, model.TopGenomeRecord{
			Rank:       len(top) + 1,
			Generation: generation,
			Genome:     encoded,
			Fitness:    ind.Fitness,
		})
	}
	return top
}
