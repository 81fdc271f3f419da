package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"evogen/internal/metrics"
	"evogen/internal/storage"
	api "evogen/pkg/evogen"
)

const (
	benchmarksDir = "benchmarks"
	exportsDir    = "exports"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "run":
		return runRun(ctx, args[1:], out)
	case "benchmark":
		return runBenchmark(ctx, args[1:], out)
	case "runs":
		return runRuns(ctx, args[1:], out)
	case "fitness":
		return runFitness(ctx, args[1:], out)
	case "diagnostics":
		return runDiagnostics(ctx, args[1:], out)
	case "top":
		return runTop(ctx, args[1:], out)
	case "export":
		return runExport(ctx, args[1:], out)
	case "plot":
		return runPlot(ctx, args[1:], out)
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

// commonFlags are shared by every subcommand that opens a client.
type commonFlags struct {
	storeKind     *string
	dbPath        *string
	benchmarksDir *string
	logLevel      *string
	logJSON       *bool
}

func addCommonFlags(fs *flag.FlagSet) commonFlags {
	return commonFlags{
		storeKind:     fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite"),
		dbPath:        fs.String("db-path", "evogen.db", "sqlite database path"),
		benchmarksDir: fs.String("dir", benchmarksDir, "run artifacts directory"),
		logLevel:      fs.String("log-level", "info", "log level: debug|info|warn|error"),
		logJSON:       fs.Bool("log-json", false, "emit logs as JSON"),
	}
}

func (c commonFlags) client(recorder *metrics.Recorder) (*api.Client, error) {
	logger, err := newLogger(*c.logLevel, *c.logJSON, os.Stderr)
	if err != nil {
		return nil, err
	}
	return api.New(api.Options{
		StoreKind:     *c.storeKind,
		DBPath:        *c.dbPath,
		BenchmarksDir: *c.benchmarksDir,
		ExportsDir:    exportsDir,
		Logger:        logger,
		Metrics:       recorder,
	})
}

// addRunFlags binds the run tunables. Defaults are zero so that only flags
// given on the command line override a config file.
func addRunFlags(fs *flag.FlagSet, cfg *runConfig) {
	fs.StringVar(&cfg.RunID, "run-id", "", "explicit run id (default: random UUID)")
	fs.StringVar(&cfg.Problem, "problem", "", "fitness problem: onemax|target|proportional_onemax (default onemax)")
	fs.StringVar(&cfg.Target, "target", "", "target string for problem=target")
	fs.StringVar(&cfg.Alphabet, "alphabet", "", "genome alphabet (default 01, letters and digits for target)")
	fs.StringVar(&cfg.Selection, "selection", "", "selection: roulette|rank|tournament|elitist|sigma_roulette (default tournament)")
	fs.StringVar(&cfg.Recombination, "recombination", "", "recombination: single_point|uniform|identity (default single_point)")
	fs.StringVar(&cfg.Mutation, "mutation", "", "mutation: bit_flip|identity (default bit_flip)")
	fs.IntVar(&cfg.Population, "pop", 0, "population size, must be even for pairwise recombination (default 50)")
	fs.IntVar(&cfg.GenomeLength, "genome-length", 0, "genome length (default 32, or the target length)")
	fs.IntVar(&cfg.Generations, "gens", 0, "generations to emit, generation 0 included (default 100)")
	floatPtrFlag(fs, &cfg.FitnessGoal, "fitness-goal", "stop once the best fitness reaches this value")
	fs.Int64Var(&cfg.Seed, "seed", 0, "rng seed")
	floatPtrFlag(fs, &cfg.CrossoverRate, "crossover-rate", "crossover probability per pair, 0 disables crossover (default 0.7)")
	floatPtrFlag(fs, &cfg.SwapRate, "swap-rate", "per-position swap probability of uniform recombination (default 0.5)")
	floatPtrFlag(fs, &cfg.MutationRate, "mutation-rate", "mutation probability per symbol, 0 disables mutation (default 0.01)")
	fs.IntVar(&cfg.TournamentSize, "tournament-size", 0, "tournament size (default 3)")
	fs.IntVar(&cfg.EliteCount, "elite-count", 0, "genomes kept by elitist selection (default 1)")
	fs.IntVar(&cfg.TopCount, "top", 0, "top genomes to record (default 5)")
	fs.BoolVar(&cfg.Plot, "plot", false, "render a fitness plot into the run directory")
}

// floatPtrFlag sets *dst only when the flag is given, so an explicit 0 is
// distinguishable from an absent flag.
func floatPtrFlag(fs *flag.FlagSet, dst **float64, name, usage string) {
	fs.Func(name, usage, func(v string) error {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		*dst = &parsed
		return nil
	})
}

func runRun(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	configPath := fs.String("config", "", "optional TOML run config path")
	metricsAddr := fs.String("metrics-addr", "", "serve Prometheus metrics on this address while running")
	jsonOut := fs.Bool("json", false, "emit the run summary as JSON")
	common := addCommonFlags(fs)
	var flagCfg runConfig
	addRunFlags(fs, &flagCfg)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := mergeRunConfig(*configPath, flagCfg)
	if err != nil {
		return err
	}

	recorder, shutdown := startMetrics(*metricsAddr)
	defer shutdown()
	client, err := common.client(recorder)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Run(ctx, cfg.runRequest())
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(out, summary)
	}

	fmt.Fprintf(out, "run_id=%s stop_reason=%s generations=%d final_best_fitness=%.6f\n",
		summary.RunID, summary.StopReason, summary.Generations, summary.FinalBestFitness)
	for _, top := range summary.TopGenomes {
		fmt.Fprintf(out, "rank=%d fitness=%.6f genome=%s\n", top.Rank, top.Fitness, top.Genome)
	}
	fmt.Fprintf(out, "artifacts=%s\n", summary.ArtifactsDir)
	return nil
}

func runBenchmark(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("benchmark", flag.ContinueOnError)
	configPath := fs.String("config", "", "optional TOML run config path")
	metricsAddr := fs.String("metrics-addr", "", "serve Prometheus metrics on this address while running")
	seedsRaw := fs.String("seeds", "", "comma separated seeds, e.g. 1,2,3")
	runs := fs.Int("runs", 0, "number of consecutive seeds starting at -seed when -seeds is not given")
	jsonOut := fs.Bool("json", false, "emit the benchmark summary as JSON")
	common := addCommonFlags(fs)
	var flagCfg runConfig
	addRunFlags(fs, &flagCfg)
	fs.IntVar(&flagCfg.Workers, "workers", 0, "runs executed concurrently (default 1)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	seeds, err := parseSeeds(*seedsRaw)
	if err != nil {
		return err
	}
	flagCfg.Seeds = seeds
	cfg, err := mergeRunConfig(*configPath, flagCfg)
	if err != nil {
		return err
	}
	if len(cfg.Seeds) == 0 {
		if *runs <= 0 {
			return errors.New("benchmark requires -seeds, -runs or seeds in the config")
		}
		cfg.Seeds = seedRange(cfg.Seed, *runs)
	}
	if cfg.RunID != "" {
		return errors.New("benchmark does not accept a run id")
	}

	recorder, shutdown := startMetrics(*metricsAddr)
	defer shutdown()
	client, err := common.client(recorder)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Benchmark(ctx, api.BenchmarkRequest{
		Run:     cfg.runRequest(),
		Seeds:   cfg.Seeds,
		Workers: cfg.Workers,
	})
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(out, summary)
	}

	for _, r := range summary.Runs {
		fmt.Fprintf(out, "run_id=%s seed=%d reached_goal=%t goal_generation=%d final_best=%.6f\n",
			r.RunID, r.Seed, r.ReachedGoal, r.GoalGeneration, r.FinalBest)
	}
	s := summary.Stats
	fmt.Fprintf(out, "experiment_id=%s runs=%d success_rate=%.3f avg_generations_to_goal=%.2f std=%.2f mean_final_best=%.6f\n",
		summary.ExperimentID, s.TotalRuns, s.SuccessRate, s.AvgGenerationsToGoal, s.StdGenerationsToGoal, s.MeanFinalBest)
	return nil
}

func runRuns(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "max runs to list")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	common := addCommonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	client, err := common.client(nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	items, err := client.Runs(ctx, api.RunsRequest{Limit: *limit})
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(out, items)
	}
	if len(items) == 0 {
		fmt.Fprintln(out, "no runs found")
		return nil
	}
	for _, item := range items {
		fmt.Fprintf(out, "run_id=%s created_at=%s problem=%s seed=%d pop=%d generations=%d stop_reason=%s final_best_fitness=%.6f\n",
			item.RunID, item.CreatedAtUTC, item.Problem, item.Seed, item.Population, item.Generations, item.StopReason, item.FinalBestFitness)
	}
	return nil
}

// runRefFlags binds the flags that pick a stored run.
func runRefFlags(fs *flag.FlagSet, defaultLimit int) (*string, *bool, *int) {
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "use the most recent run from the run index")
	limit := fs.Int("limit", defaultLimit, "max rows to print (<=0 for all)")
	return runID, latest, limit
}

func runFitness(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("fitness", flag.ContinueOnError)
	runID, latest, limit := runRefFlags(fs, 50)
	jsonOut := fs.Bool("json", false, "emit fitness history as JSON")
	common := addCommonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := common.client(nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	history, err := client.FitnessHistory(ctx, api.RunRef{RunID: *runID, Latest: *latest, Limit: max(*limit, 0)})
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(out, history)
	}
	if len(history) == 0 {
		fmt.Fprintln(out, "no fitness history")
		return nil
	}
	for i, best := range history {
		fmt.Fprintf(out, "generation=%d best_fitness=%.6f\n", i, best)
	}
	return nil
}

func runDiagnostics(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("diagnostics", flag.ContinueOnError)
	runID, latest, limit := runRefFlags(fs, 50)
	jsonOut := fs.Bool("json", false, "emit diagnostics as JSON")
	common := addCommonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := common.client(nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	diagnostics, err := client.Diagnostics(ctx, api.RunRef{RunID: *runID, Latest: *latest, Limit: max(*limit, 0)})
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(out, diagnostics)
	}
	for _, d := range diagnostics {
		fmt.Fprintf(out, "generation=%d best=%.6f mean=%.6f min=%.6f stddev=%.6f distinct=%d diversity=%.4f\n",
			d.Generation, d.BestFitness, d.MeanFitness, d.MinFitness, d.StdDevFitness, d.DistinctGenomes, d.MeanDistance)
	}
	return nil
}

func runTop(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("top", flag.ContinueOnError)
	runID, latest, limit := runRefFlags(fs, 5)
	jsonOut := fs.Bool("json", false, "emit top genomes as JSON")
	common := addCommonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := common.client(nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	top, err := client.TopGenomes(ctx, api.RunRef{RunID: *runID, Latest: *latest, Limit: max(*limit, 0)})
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(out, top)
	}
	for _, t := range top {
		fmt.Fprintf(out, "rank=%d generation=%d fitness=%.6f genome=%s\n", t.Rank, t.Generation, t.Fitness, t.Genome)
	}
	return nil
}

func runExport(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "export the most recent run from the run index")
	outDir := fs.String("out", exportsDir, "export output directory")
	common := addCommonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := common.client(nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	exported, err := client.Export(ctx, api.ExportRequest{RunID: *runID, Latest: *latest, OutDir: *outDir})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "exported run_id=%s to=%s\n", exported.RunID, exported.Directory)
	return nil
}

func runPlot(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("plot", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "plot the most recent run from the run index")
	outPath := fs.String("out", "", "image path, .png or .svg (default: fitness.png in the run directory)")
	common := addCommonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := common.client(nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	path, err := client.Plot(ctx, api.PlotRequest{RunID: *runID, Latest: *latest, Out: *outPath})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "plot=%s\n", path)
	return nil
}

func newLogger(level string, asJSON bool, w io.Writer) (*logrus.Logger, error) {
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	logger := logrus.New()
	logger.SetOutput(w)
	logger.SetLevel(parsed)
	if asJSON {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger, nil
}

// startMetrics serves /metrics on addr until the returned func is called.
// An empty addr disables metrics.
func startMetrics(addr string) (*metrics.Recorder, func()) {
	if addr == "" {
		return nil, func() {}
	}
	recorder := metrics.NewRecorder()
	mux := http.NewServeMux()
	mux.Handle("/metrics", recorder.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).WithField("addr", addr).Error("metrics server stopped")
		}
	}()
	return recorder, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: evogenctl <run|benchmark|runs|fitness|diagnostics|top|export|plot> [flags]", msg)
}
