package storage

import (
	"encoding/json"
	"errors"
	"fmt"

	"evogen/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var (
	ErrVersionMismatch = errors.New("record version mismatch")
	ErrNotInitialized  = errors.New("store is not initialized")
)

// resultKind names one per-run payload next to the run record.
type resultKind string

const (
	kindFitnessHistory resultKind = "fitness_history"
	kindDiagnostics    resultKind = "generation_diagnostics"
	kindTopGenomes     resultKind = "top_genomes"
)

// Versioned stamps the current schema and codec versions.
func Versioned() model.VersionedRecord {
	return model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion}
}

func EncodeRun(r model.RunRecord) ([]byte, error) {
	return json.Marshal(r)
}

// DecodeRun rejects records written under another schema or codec version.
func DecodeRun(data []byte) (model.RunRecord, error) {
	run, err := decodeJSON[model.RunRecord](data)
	if err != nil {
		return model.RunRecord{}, err
	}
	if err := checkVersion(run.VersionedRecord); err != nil {
		return model.RunRecord{}, fmt.Errorf("run %s: %w", run.ID, err)
	}
	return run, nil
}

func EncodeTopGenomes(records []model.TopGenomeRecord) ([]byte, error) {
	return json.Marshal(records)
}

// DecodeTopGenomes requires every record to carry the current versions.
func DecodeTopGenomes(data []byte) ([]model.TopGenomeRecord, error) {
	records, err := decodeJSON[[]model.TopGenomeRecord](data)
	if err != nil {
		return nil, err
	}
	for _, record := range records {
		if err := checkVersion(record.VersionedRecord); err != nil {
			return nil, fmt.Errorf("top genome rank %d: %w", record.Rank, err)
		}
	}
	return records, nil
}

func EncodeFitnessHistory(history []float64) ([]byte, error) {
	return json.Marshal(history)
}

func DecodeFitnessHistory(data []byte) ([]float64, error) {
	return decodeJSON[[]float64](data)
}

func EncodeGenerationDiagnostics(diagnostics []model.GenerationDiagnostics) ([]byte, error) {
	return json.Marshal(diagnostics)
}

func DecodeGenerationDiagnostics(data []byte) ([]model.GenerationDiagnostics, error) {
	return decodeJSON[[]model.GenerationDiagnostics](data)
}

func decodeJSON[T any](data []byte) (T, error) {
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return fmt.Errorf("%w: schema %d codec %d", ErrVersionMismatch, v.SchemaVersion, v.CodecVersion)
	}
	return nil
}
