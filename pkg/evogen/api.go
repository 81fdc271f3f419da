package evogen

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/pool"

	"evogen/internal/evo"
	"evogen/internal/ga"
	"evogen/internal/metrics"
	"evogen/internal/model"
	"evogen/internal/operators"
	"evogen/internal/stats"
	"evogen/internal/storage"
)

const (
	defaultBenchmarksDir = "benchmarks"
	defaultExportsDir    = "exports"
	defaultDBPath        = "evogen.db"

	defaultProblem        = "onemax"
	defaultSelection      = "tournament"
	defaultRecombination  = "single_point"
	defaultMutation       = "bit_flip"
	defaultPopulation     = 50
	defaultGenomeLength   = 32
	defaultGenerations    = 100
	defaultTargetAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789 "
)

type Options struct {
	StoreKind     string
	DBPath        string
	BenchmarksDir string
	ExportsDir    string
	Logger        logrus.FieldLogger
	Metrics       *metrics.Recorder
}

type Client struct {
	store   storage.Store
	log     logrus.FieldLogger
	metrics *metrics.Recorder

	initOnce sync.Once
	initErr  error

	// guards the run index and artifact directories
	artifactsMu sync.Mutex

	benchmarksDir string
	exportsDir    string
}

type RunRequest struct {
	RunID          string
	Problem        string
	Target         string
	Alphabet       string
	Selection      string
	Recombination  string
	Mutation       string
	Population     int
	GenomeLength   int
	Generations    int
	FitnessGoal    *float64
	Seed           int64
	// Rates left nil use the operator defaults; 0 disables the operator.
	CrossoverRate  *float64
	SwapRate       *float64
	MutationRate   *float64
	TournamentSize int
	EliteCount     int
	TopCount       int
	Plot           bool
}

type RunSummary struct {
	RunID            string
	ArtifactsDir     string
	BestByGeneration []float64
	FinalBestFitness float64
	StopReason       string
	Generations      int
	TopGenomes       []model.TopGenomeRecord
}

type BenchmarkRequest struct {
	Run     RunRequest
	Seeds   []int64
	Workers int
}

type BenchmarkSummary struct {
	ExperimentID string
	RunIDs       []string
	Runs         []stats.BenchmarkRun
	Stats        stats.BenchmarkStats
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID            string
	CreatedAtUTC     string
	Problem          string
	Seed             int64
	Population       int
	Generations      int
	StopReason       string
	FinalBestFitness float64
}

// RunRef names a stored run, either by id or as the most recent one.
type RunRef struct {
	RunID  string
	Latest bool
	Limit  int
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

type PlotRequest struct {
	RunID  string
	Latest bool
	Out    string
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	benchmarksDir := opts.BenchmarksDir
	if benchmarksDir == "" {
		benchmarksDir = defaultBenchmarksDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}
	log := opts.Logger
	if log == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		log = discard
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:         store,
		log:           log,
		metrics:       opts.Metrics,
		benchmarksDir: benchmarksDir,
		exportsDir:    exportsDir,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	c.initOnce.Do(func() {
		c.initErr = c.store.Init(ctx)
	})
	return c.initErr
}

// Run evolves one population and persists what it produced. A run that fails
// part way is still recorded, with its error, before the error is returned.
func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	if err := c.Init(ctx); err != nil {
		return RunSummary{}, err
	}
	req, err := withRunDefaults(req)
	if err != nil {
		return RunSummary{}, err
	}
	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	log := c.log.WithField("run_id", runID)

	seq, err := newSequence(req)
	if err != nil {
		return RunSummary{}, err
	}

	var observers []evo.Observer
	if c.metrics != nil {
		observers = append(observers, c.metrics.Observer(req.Problem))
	}
	monitor, err := evo.NewPopulationMonitor(evo.MonitorConfig[byte]{
		Generations: req.Generations,
		FitnessGoal: req.FitnessGoal,
		TopCount:    req.TopCount,
		Encode:      func(g ga.Genome[byte]) string { return string(g) },
		Observers:   observers,
		Logger:      log,
	})
	if err != nil {
		return RunSummary{}, err
	}

	log.WithFields(logrus.Fields{
		"problem":    req.Problem,
		"population": req.Population,
		"seed":       req.Seed,
	}).Info("run started")
	result, runErr := monitor.Run(ctx, seq)
	if c.metrics != nil {
		c.metrics.RunFinished(req.Problem, string(result.StopReason))
	}

	finalBest := 0.0
	if n := len(result.BestByGeneration); n > 0 {
		finalBest = result.BestByGeneration[n-1]
	}
	now := time.Now().UTC()
	record := model.RunRecord{
		VersionedRecord:  storage.Versioned(),
		ID:               runID,
		CreatedAtUTC:     now.Format(time.RFC3339Nano),
		Problem:          req.Problem,
		Selection:        req.Selection,
		Recombination:    req.Recombination,
		Mutation:         req.Mutation,
		PopulationSize:   req.Population,
		GenomeLength:     req.GenomeLength,
		Generations:      result.Generations,
		Seed:             req.Seed,
		StopReason:       string(result.StopReason),
		FinalBestFitness: finalBest,
	}
	if req.FitnessGoal != nil {
		record.FitnessGoal = *req.FitnessGoal
	}
	if runErr != nil {
		record.Error = runErr.Error()
	}
	top := make([]model.TopGenomeRecord, len(result.TopGenomes))
	for i, t := range result.TopGenomes {
		t.VersionedRecord = storage.Versioned()
		top[i] = t
	}

	// A canceled context must not keep the run from being recorded.
	saveCtx := context.WithoutCancel(ctx)
	if err := c.persist(saveCtx, record, result, top); err != nil {
		return RunSummary{}, err
	}

	runDir, err := c.writeArtifacts(req, record, result, top)
	if err != nil {
		return RunSummary{}, err
	}
	if runErr != nil {
		return RunSummary{}, fmt.Errorf("run %s: %w", runID, runErr)
	}

	return RunSummary{
		RunID:            runID,
		ArtifactsDir:     filepath.Clean(runDir),
		BestByGeneration: append([]float64(nil), result.BestByGeneration...),
		FinalBestFitness: finalBest,
		StopReason:       string(result.StopReason),
		Generations:      result.Generations,
		TopGenomes:       top,
	}, nil
}

// Benchmark repeats a run once per seed. Runs are independent and execute
// concurrently; each is identical to running it alone.
func (c *Client) Benchmark(ctx context.Context, req BenchmarkRequest) (BenchmarkSummary, error) {
	if len(req.Seeds) == 0 {
		return BenchmarkSummary{}, errors.New("benchmark requires at least one seed")
	}
	if req.Run.RunID != "" {
		return BenchmarkSummary{}, errors.New("benchmark runs get their own ids")
	}
	workers := req.Workers
	if workers <= 0 {
		workers = 1
	}
	started := time.Now().UTC()

	summaries := make([]RunSummary, len(req.Seeds))
	p := pool.New().WithMaxGoroutines(workers).WithErrors()
	for i, seed := range req.Seeds {
		p.Go(func() error {
			runReq := req.Run
			runReq.Seed = seed
			summary, err := c.Run(ctx, runReq)
			if err != nil {
				return fmt.Errorf("seed %d: %w", seed, err)
			}
			summaries[i] = summary
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return BenchmarkSummary{}, err
	}

	out := BenchmarkSummary{
		ExperimentID: uuid.NewString(),
		RunIDs:       make([]string, 0, len(summaries)),
		Runs:         make([]stats.BenchmarkRun, 0, len(summaries)),
	}
	curves := make([][]float64, 0, len(summaries))
	for i, s := range summaries {
		out.RunIDs = append(out.RunIDs, s.RunID)
		out.Runs = append(out.Runs, stats.EvaluateSeries(s.RunID, req.Seeds[i], s.BestByGeneration, req.Run.FitnessGoal))
		curves = append(curves, s.BestByGeneration)
	}
	out.Stats = stats.BuildBenchmarkStats(out.Runs)
	out.Stats.AverageBestCurve = stats.AverageCurve(curves)

	problem := req.Run.Problem
	if problem == "" {
		problem = defaultProblem
	}
	c.artifactsMu.Lock()
	defer c.artifactsMu.Unlock()
	if err := stats.WriteBenchmarkExperiment(c.benchmarksDir, stats.BenchmarkExperiment{
		ID:             out.ExperimentID,
		Problem:        problem,
		StartedAtUTC:   started.Format(time.RFC3339Nano),
		CompletedAtUTC: time.Now().UTC().Format(time.RFC3339Nano),
		RunIDs:         out.RunIDs,
		Runs:           out.Runs,
		Stats:          out.Stats,
	}); err != nil {
		return BenchmarkSummary{}, err
	}
	c.log.WithFields(logrus.Fields{
		"experiment_id": out.ExperimentID,
		"runs":          out.Stats.TotalRuns,
		"success_rate":  out.Stats.SuccessRate,
	}).Info("benchmark finished")
	return out, nil
}

func (c *Client) Runs(_ context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}

	entries, err := stats.ListRunIndex(c.benchmarksDir)
	if err != nil {
		return nil, err
	}
	if len(entries) > req.Limit {
		entries = entries[:req.Limit]
	}

	out := make([]RunItem, 0, len(entries))
	for _, e := range entries {
		out = append(out, RunItem{
			RunID:            e.RunID,
			CreatedAtUTC:     e.CreatedAtUTC,
			Problem:          e.Problem,
			Seed:             e.Seed,
			Population:       e.PopulationSize,
			Generations:      e.Generations,
			StopReason:       e.StopReason,
			FinalBestFitness: e.FinalBestFitness,
		})
	}
	return out, nil
}

func (c *Client) Export(_ context.Context, req ExportRequest) (ExportSummary, error) {
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest, "export")
	if err != nil {
		return ExportSummary{}, err
	}
	exportedDir, err := stats.ExportRunArtifacts(c.benchmarksDir, runID, req.OutDir)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(exportedDir)}, nil
}

func (c *Client) FitnessHistory(ctx context.Context, req RunRef) ([]float64, error) {
	runID, err := c.resolveRef(ctx, req, "fitness history")
	if err != nil {
		return nil, err
	}
	history, ok, err := c.store.GetFitnessHistory(ctx, runID)
	if err == nil && !ok {
		history, ok, err = stats.ReadFitnessHistory(c.benchmarksDir, runID)
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("fitness history not found for run id: %s", runID)
	}
	return append([]float64(nil), limit(history, req.Limit)...), nil
}

func (c *Client) Diagnostics(ctx context.Context, req RunRef) ([]model.GenerationDiagnostics, error) {
	runID, err := c.resolveRef(ctx, req, "diagnostics")
	if err != nil {
		return nil, err
	}
	diagnostics, ok, err := c.loadDiagnostics(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("diagnostics not found for run id: %s", runID)
	}
	return append([]model.GenerationDiagnostics(nil), limit(diagnostics, req.Limit)...), nil
}

func (c *Client) TopGenomes(ctx context.Context, req RunRef) ([]model.TopGenomeRecord, error) {
	runID, err := c.resolveRef(ctx, req, "top genomes")
	if err != nil {
		return nil, err
	}
	top, ok, err := c.store.GetTopGenomes(ctx, runID)
	if err == nil && !ok {
		top, ok, err = stats.ReadTopGenomes(c.benchmarksDir, runID)
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("top genomes not found for run id: %s", runID)
	}
	return append([]model.TopGenomeRecord(nil), limit(top, req.Limit)...), nil
}

// Plot renders the fitness curve of a run. Without an output path the image
// goes into the run's artifact directory.
func (c *Client) Plot(ctx context.Context, req PlotRequest) (string, error) {
	runID, err := c.resolveRef(ctx, RunRef{RunID: req.RunID, Latest: req.Latest}, "plot")
	if err != nil {
		return "", err
	}
	diagnostics, ok, err := c.loadDiagnostics(ctx, runID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("diagnostics not found for run id: %s", runID)
	}
	out := req.Out
	if out == "" {
		out = filepath.Join(c.benchmarksDir, runID, stats.PlotImageFile)
	}
	if err := stats.RenderFitnessPlot(out, runID, diagnostics); err != nil {
		return "", err
	}
	return filepath.Clean(out), nil
}

// loadDiagnostics prefers the store and falls back to the run's artifact
// files, which outlive a memory store.
func (c *Client) loadDiagnostics(ctx context.Context, runID string) ([]model.GenerationDiagnostics, bool, error) {
	diagnostics, ok, err := c.store.GetGenerationDiagnostics(ctx, runID)
	if err != nil || ok {
		return diagnostics, ok, err
	}
	return stats.ReadGenerationDiagnostics(c.benchmarksDir, runID)
}

func (c *Client) persist(ctx context.Context, record model.RunRecord, result evo.RunResult[byte], top []model.TopGenomeRecord) error {
	if err := c.store.SaveRun(ctx, record); err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	if err := c.store.SaveFitnessHistory(ctx, record.ID, result.BestByGeneration); err != nil {
		return fmt.Errorf("save fitness history: %w", err)
	}
	if err := c.store.SaveGenerationDiagnostics(ctx, record.ID, result.GenerationDiagnostics); err != nil {
		return fmt.Errorf("save diagnostics: %w", err)
	}
	if err := c.store.SaveTopGenomes(ctx, record.ID, top); err != nil {
		return fmt.Errorf("save top genomes: %w", err)
	}
	return nil
}

func (c *Client) writeArtifacts(req RunRequest, record model.RunRecord, result evo.RunResult[byte], top []model.TopGenomeRecord) (string, error) {
	c.artifactsMu.Lock()
	defer c.artifactsMu.Unlock()

	cfg := stats.RunConfig{
		RunID:          record.ID,
		Problem:        req.Problem,
		Target:         req.Target,
		Alphabet:       req.Alphabet,
		Selection:      req.Selection,
		Recombination:  req.Recombination,
		Mutation:       req.Mutation,
		PopulationSize: req.Population,
		GenomeLength:   req.GenomeLength,
		Generations:    req.Generations,
		FitnessGoal:    record.FitnessGoal,
		Seed:           req.Seed,
		CrossoverRate:  req.CrossoverRate,
		SwapRate:       req.SwapRate,
		MutationRate:   req.MutationRate,
		TournamentSize: req.TournamentSize,
		EliteCount:     req.EliteCount,
	}
	runDir, err := stats.WriteRunArtifacts(c.benchmarksDir, stats.RunArtifacts{
		Config:                cfg,
		BestByGeneration:      result.BestByGeneration,
		GenerationDiagnostics: result.GenerationDiagnostics,
		FinalBestFitness:      record.FinalBestFitness,
		StopReason:            record.StopReason,
		TopGenomes:            top,
	})
	if err != nil {
		return "", err
	}
	if req.Plot && len(result.GenerationDiagnostics) > 0 {
		if err := stats.RenderFitnessPlot(filepath.Join(runDir, stats.PlotImageFile), record.ID, result.GenerationDiagnostics); err != nil {
			return "", err
		}
	}
	if err := stats.AppendRunIndex(c.benchmarksDir, stats.RunIndexEntry{
		RunID:            record.ID,
		Problem:          record.Problem,
		PopulationSize:   record.PopulationSize,
		Generations:      record.Generations,
		Seed:             record.Seed,
		StopReason:       record.StopReason,
		FinalBestFitness: record.FinalBestFitness,
		CreatedAtUTC:     record.CreatedAtUTC,
	}); err != nil {
		return "", err
	}
	return runDir, nil
}

func (c *Client) resolveRef(ctx context.Context, ref RunRef, what string) (string, error) {
	if ref.Limit < 0 {
		return "", errors.New("limit must be >= 0")
	}
	if err := c.Init(ctx); err != nil {
		return "", err
	}
	return c.resolveRunID(ref.RunID, ref.Latest, what)
}

func (c *Client) resolveRunID(runID string, latest bool, what string) (string, error) {
	if runID != "" && latest {
		return "", errors.New("use either run id or latest")
	}
	if runID != "" {
		return runID, nil
	}
	if !latest {
		return "", fmt.Errorf("%s requires run id or latest", what)
	}
	entries, err := stats.ListRunIndex(c.benchmarksDir)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", errors.New("no runs available")
	}
	return entries[0].RunID, nil
}

func withRunDefaults(req RunRequest) (RunRequest, error) {
	if req.Problem == "" {
		req.Problem = defaultProblem
	}
	if req.Selection == "" {
		req.Selection = defaultSelection
	}
	if req.Recombination == "" {
		req.Recombination = defaultRecombination
	}
	if req.Mutation == "" {
		req.Mutation = defaultMutation
	}
	if req.Population == 0 {
		req.Population = defaultPopulation
	}
	if req.Generations == 0 {
		req.Generations = defaultGenerations
	}
	if req.Problem == "target" {
		if req.Alphabet == "" {
			req.Alphabet = defaultTargetAlphabet
		}
		if req.GenomeLength == 0 {
			req.GenomeLength = len(req.Target)
		}
	}
	if req.Alphabet == "" {
		req.Alphabet = operators.BinaryAlphabet
	}
	if req.GenomeLength == 0 {
		req.GenomeLength = defaultGenomeLength
	}

	if req.Population < 0 {
		return RunRequest{}, errors.New("population must be > 0")
	}
	if req.Generations < 0 {
		return RunRequest{}, errors.New("generations must be > 0")
	}
	if req.GenomeLength < 0 {
		return RunRequest{}, errors.New("genome length must be >= 0")
	}
	return req, nil
}

func newSequence(req RunRequest) (*ga.Sequence[byte], error) {
	params := operators.Params{
		CrossoverRate:  req.CrossoverRate,
		SwapRate:       req.SwapRate,
		MutationRate:   req.MutationRate,
		TournamentSize: req.TournamentSize,
		EliteCount:     req.EliteCount,
		Target:         req.Target,
		Alphabet:       req.Alphabet,
	}
	fitness, err := operators.NewProblem(req.Problem, params)
	if err != nil {
		return nil, err
	}
	selection, err := operators.NewSelection(req.Selection, params)
	if err != nil {
		return nil, err
	}
	recombination, err := operators.NewRecombination(req.Recombination, params)
	if err != nil {
		return nil, err
	}
	mutation, err := operators.NewMutation(req.Mutation, params)
	if err != nil {
		return nil, err
	}

	start, err := operators.RandomPopulation(rand.New(rand.NewSource(req.Seed)), []byte(req.Alphabet), req.GenomeLength, req.Population)
	if err != nil {
		return nil, err
	}
	return ga.RunEA(start, fitness, selection, recombination, mutation, req.Seed)
}

func limit[T any](items []T, n int) []T {
	if n > 0 && len(items) > n {
		return items[:n]
	}
	return items
}
