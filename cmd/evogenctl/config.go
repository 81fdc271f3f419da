package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/jinzhu/copier"

	api "evogen/pkg/evogen"
)

// runConfig is the TOML shape of a run or benchmark. Flag values are parsed
// into the same struct and copied over the file, so only flags that were
// given a non-zero value take effect.
type runConfig struct {
	RunID          string   `toml:"run_id"`
	Problem        string   `toml:"problem"`
	Target         string   `toml:"target"`
	Alphabet       string   `toml:"alphabet"`
	Selection      string   `toml:"selection"`
	Recombination  string   `toml:"recombination"`
	Mutation       string   `toml:"mutation"`
	Population     int      `toml:"population"`
	GenomeLength   int      `toml:"genome_length"`
	Generations    int      `toml:"generations"`
	FitnessGoal    *float64 `toml:"fitness_goal"`
	Seed           int64    `toml:"seed"`
	CrossoverRate  *float64 `toml:"crossover_rate"`
	SwapRate       *float64 `toml:"swap_rate"`
	MutationRate   *float64 `toml:"mutation_rate"`
	TournamentSize int      `toml:"tournament_size"`
	EliteCount     int      `toml:"elite_count"`
	TopCount       int      `toml:"top_count"`
	Plot           bool     `toml:"plot"`
	Seeds          []int64  `toml:"seeds"`
	Workers        int      `toml:"workers"`
}

func loadRunConfig(path string) (runConfig, error) {
	var cfg runConfig
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return runConfig{}, fmt.Errorf("read run config %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return runConfig{}, fmt.Errorf("unknown run config keys: %s", strings.Join(keys, ", "))
	}
	return cfg, nil
}

// mergeRunConfig loads path, if any, and lays the flag values over it.
func mergeRunConfig(path string, flags runConfig) (runConfig, error) {
	var cfg runConfig
	if path != "" {
		loaded, err := loadRunConfig(path)
		if err != nil {
			return runConfig{}, err
		}
		cfg = loaded
	}
	if err := copier.CopyWithOption(&cfg, flags, copier.Option{IgnoreEmpty: true}); err != nil {
		return runConfig{}, err
	}
	return cfg, nil
}

func (c runConfig) runRequest() api.RunRequest {
	return api.RunRequest{
		RunID:          c.RunID,
		Problem:        c.Problem,
		Target:         c.Target,
		Alphabet:       c.Alphabet,
		Selection:      c.Selection,
		Recombination:  c.Recombination,
		Mutation:       c.Mutation,
		Population:     c.Population,
		GenomeLength:   c.GenomeLength,
		Generations:    c.Generations,
		FitnessGoal:    c.FitnessGoal,
		Seed:           c.Seed,
		CrossoverRate:  c.CrossoverRate,
		SwapRate:       c.SwapRate,
		MutationRate:   c.MutationRate,
		TournamentSize: c.TournamentSize,
		EliteCount:     c.EliteCount,
		TopCount:       c.TopCount,
		Plot:           c.Plot,
	}
}

// parseSeeds accepts a comma separated list such as "1,2,3".
func parseSeeds(raw string) ([]int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	seeds := make([]int64, 0, len(parts))
	for _, part := range parts {
		seed, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid seed %q: %w", part, err)
		}
		seeds = append(seeds, seed)
	}
	return seeds, nil
}

// seedRange returns count consecutive seeds starting at base.
func seedRange(base int64, count int) []int64 {
	seeds := make([]int64, 0, count)
	for i := 0; i < count; i++ {
		seeds = append(seeds, base+int64(i))
	}
	return seeds
}
