package stats

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"evogen/internal/model"
)

// Files of one run directory.
const (
	runIndexFile       = "run_index.json"
	configFile         = "config.json"
	fitnessHistoryFile = "fitness_history.json"
	topGenomesFile     = "top_genomes.json"
	diagnosticsFile    = "generation_diagnostics.json"
)

// exportedFiles must exist in every run directory; the plot image is
// optional.
var exportedFiles = []string{configFile, fitnessHistoryFile, topGenomesFile, diagnosticsFile, plotCSVFile}

// RunConfig is the reproducible description of a run: replaying it with the
// same seed yields the same generations.
type RunConfig struct {
	RunID          string  `json:"run_id"`
	Problem        string  `json:"problem"`
	Target         string  `json:"target,omitempty"`
	Alphabet       string  `json:"alphabet,omitempty"`
	Selection      string  `json:"selection"`
	Recombination  string  `json:"recombination"`
	Mutation       string  `json:"mutation"`
	PopulationSize int     `json:"population_size"`
	GenomeLength   int     `json:"genome_length"`
	Generations    int     `json:"generations"`
	FitnessGoal    float64 `json:"fitness_goal,omitempty"`
	Seed           int64   `json:"seed"`
	CrossoverRate  *float64 `json:"crossover_rate,omitempty"`
	SwapRate       *float64 `json:"swap_rate,omitempty"`
	MutationRate   *float64 `json:"mutation_rate,omitempty"`
	TournamentSize int     `json:"tournament_size,omitempty"`
	EliteCount     int     `json:"elite_count,omitempty"`
}

type RunArtifacts struct {
	Config                RunConfig
	BestByGeneration      []float64
	GenerationDiagnostics []model.GenerationDiagnostics
	FinalBestFitness      float64
	StopReason            string
	TopGenomes            []model.TopGenomeRecord
}

type RunIndexEntry struct {
	RunID            string  `json:"run_id"`
	Problem          string  `json:"problem"`
	PopulationSize   int     `json:"population_size"`
	Generations      int     `json:"generations"`
	Seed             int64   `json:"seed"`
	StopReason       string  `json:"stop_reason"`
	FinalBestFitness float64 `json:"final_best_fitness"`
	CreatedAtUTC     string  `json:"created_at_utc"`
}

type fitnessHistory struct {
	BestByGeneration []float64 `json:"best_by_generation"`
	FinalBestFitness float64   `json:"final_best_fitness"`
	StopReason       string    `json:"stop_reason"`
}

// WriteRunArtifacts writes baseDir/<run id>/ and returns its path.
func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	runID := artifacts.Config.RunID
	if runID == "" {
		return "", errors.New("run id is required")
	}
	runDir := filepath.Join(baseDir, runID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	docs := []struct {
		name  string
		value any
	}{
		{configFile, artifacts.Config},
		{fitnessHistoryFile, fitnessHistory{
			BestByGeneration: artifacts.BestByGeneration,
			FinalBestFitness: artifacts.FinalBestFitness,
			StopReason:       artifacts.StopReason,
		}},
		{topGenomesFile, artifacts.TopGenomes},
		{diagnosticsFile, artifacts.GenerationDiagnostics},
	}
	for _, doc := range docs {
		if err := writeJSON(filepath.Join(runDir, doc.name), doc.value); err != nil {
			return "", fmt.Errorf("write %s for run %s: %w", doc.name, runID, err)
		}
	}

	csvFile, err := os.Create(filepath.Join(runDir, plotCSVFile))
	if err != nil {
		return "", err
	}
	if err := WritePlotCSV(csvFile, artifacts.GenerationDiagnostics); err != nil {
		_ = csvFile.Close()
		return "", err
	}
	return runDir, csvFile.Close()
}

// AppendRunIndex adds entry to baseDir's run index. An entry with the same
// run id is replaced in place.
func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return errors.New("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}
	index, err := readRunIndex(baseDir)
	if err != nil {
		return err
	}
	if i := slices.IndexFunc(index, func(e RunIndexEntry) bool { return e.RunID == entry.RunID }); i >= 0 {
		index[i] = entry
	} else {
		index = append(index, entry)
	}
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

// ListRunIndex returns index entries newest first. Of two entries created at
// the same instant, the later append comes first.
func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	index, err := readRunIndex(baseDir)
	if err != nil {
		return nil, err
	}
	slices.Reverse(index)
	slices.SortStableFunc(index, func(a, b RunIndexEntry) int {
		return strings.Compare(b.CreatedAtUTC, a.CreatedAtUTC)
	})
	return index, nil
}

// readRunIndex returns the index in append order.
func readRunIndex(baseDir string) ([]RunIndexEntry, error) {
	index, _, err := readJSON[[]RunIndexEntry](filepath.Join(baseDir, runIndexFile))
	if err != nil {
		return nil, fmt.Errorf("read run index: %w", err)
	}
	if index == nil {
		index = []RunIndexEntry{}
	}
	return index, nil
}

// ExportRunArtifacts copies a run directory to outDir/<run id>.
func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if runID == "" {
		return "", errors.New("run id is required")
	}
	src := filepath.Join(baseDir, runID)
	if _, err := os.Stat(src); err != nil {
		return "", err
	}
	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}

	for _, name := range exportedFiles {
		if err := copyFile(filepath.Join(src, name), filepath.Join(dst, name)); err != nil {
			return "", fmt.Errorf("export %s: %w", name, err)
		}
	}
	err := copyFile(filepath.Join(src, PlotImageFile), filepath.Join(dst, PlotImageFile))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("export %s: %w", PlotImageFile, err)
	}
	return dst, nil
}

func ReadRunConfig(baseDir, runID string) (RunConfig, bool, error) {
	return readJSON[RunConfig](filepath.Join(baseDir, runID, configFile))
}

// WriteRunConfig stores cfg as the config of runID. A config naming another
// run is rejected.
func WriteRunConfig(baseDir, runID string, cfg RunConfig) error {
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return errors.New("run id is required")
	}
	switch strings.TrimSpace(cfg.RunID) {
	case "":
		cfg.RunID = runID
	case runID:
	default:
		return fmt.Errorf("run config belongs to run %s, not %s", cfg.RunID, runID)
	}
	runDir := filepath.Join(baseDir, runID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return err
	}
	return writeJSON(filepath.Join(runDir, configFile), cfg)
}

func ReadTopGenomes(baseDir, runID string) ([]model.TopGenomeRecord, bool, error) {
	return readJSON[[]model.TopGenomeRecord](filepath.Join(baseDir, runID, topGenomesFile))
}

func ReadGenerationDiagnostics(baseDir, runID string) ([]model.GenerationDiagnostics, bool, error) {
	return readJSON[[]model.GenerationDiagnostics](filepath.Join(baseDir, runID, diagnosticsFile))
}

func ReadFitnessHistory(baseDir, runID string) ([]float64, bool, error) {
	history, ok, err := readJSON[fitnessHistory](filepath.Join(baseDir, runID, fitnessHistoryFile))
	return history.BestByGeneration, ok, err
}

// readJSON decodes path into a T. A missing file is not an error; ok
// reports whether it existed.
func readJSON[T any](path string) (T, bool, error) {
	var out T
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return out, false, nil
	}
	if err != nil {
		return out, false, err
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, false, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return out, true, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
