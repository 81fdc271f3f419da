package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// RunRecord describes one evolutionary run: the operators it was configured
// with and how it ended.
type RunRecord struct {
	VersionedRecord
	ID               string  `json:"id"`
	CreatedAtUTC     string  `json:"created_at_utc"`
	Problem          string  `json:"problem"`
	Selection        string  `json:"selection"`
	Recombination    string  `json:"recombination"`
	Mutation         string  `json:"mutation"`
	PopulationSize   int     `json:"population_size"`
	GenomeLength     int     `json:"genome_length"`
	Generations      int     `json:"generations"`
	Seed             int64   `json:"seed"`
	FitnessGoal      float64 `json:"fitness_goal,omitempty"`
	StopReason       string  `json:"stop_reason"`
	FinalBestFitness float64 `json:"final_best_fitness"`
	Error            string  `json:"error,omitempty"`
}

type GenerationDiagnostics struct {
	Generation      int     `json:"generation"`
	BestFitness     float64 `json:"best_fitness"`
	MeanFitness     float64 `json:"mean_fitness"`
	MinFitness      float64 `json:"min_fitness"`
	StdDevFitness   float64 `json:"stddev_fitness"`
	PopulationSize  int     `json:"population_size"`
	DistinctGenomes int     `json:"distinct_genomes"`
	MeanDistance    float64 `json:"mean_distance"`
}

type TopGenomeRecord struct {
	VersionedRecord
	Rank       int     `json:"rank"`
	Generation int     `json:"generation"`
	Genome     string  `json:"genome"`
	Fitness    float64 `json:"fitness"`
}
