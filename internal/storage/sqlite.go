//go:build sqlite

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"evogen/internal/model"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	created_at_utc TEXT NOT NULL,
	problem TEXT NOT NULL,
	stop_reason TEXT NOT NULL,
	schema_version INTEGER NOT NULL,
	codec_version INTEGER NOT NULL,
	payload BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS runs_created_at ON runs (created_at_utc DESC, id);
CREATE TABLE IF NOT EXISTS run_results (
	run_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	payload BLOB NOT NULL,
	PRIMARY KEY (run_id, kind)
);
`

// SQLiteStore persists run reports in one database file. The run record
// goes to runs; every per-run result is a row of run_results.
type SQLiteStore struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

func newSQLiteStore(path string) (Store, error) {
	return NewSQLiteStore(path), nil
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}
	// Concurrent benchmark runs write through one connection.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return fmt.Errorf("create sqlite schema: %w", err)
	}

	s.db = db
	return nil
}

func (s *SQLiteStore) SaveRun(ctx context.Context, run model.RunRecord) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	payload, err := EncodeRun(run)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO runs (id, created_at_utc, problem, stop_reason, schema_version, codec_version, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			created_at_utc = excluded.created_at_utc,
			problem = excluded.problem,
			stop_reason = excluded.stop_reason,
			schema_version = excluded.schema_version,
			codec_version = excluded.codec_version,
			payload = excluded.payload
	`, run.ID, run.CreatedAtUTC, run.Problem, run.StopReason, run.SchemaVersion, run.CodecVersion, payload)
	if err != nil {
		return fmt.Errorf("save run %s: %w", run.ID, err)
	}
	return nil
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (model.RunRecord, bool, error) {
	db, err := s.conn()
	if err != nil {
		return model.RunRecord{}, false, err
	}

	var payload []byte
	err = db.QueryRowContext(ctx, `SELECT payload FROM runs WHERE id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return model.RunRecord{}, false, nil
	}
	if err != nil {
		return model.RunRecord{}, false, err
	}
	run, err := DecodeRun(payload)
	if err != nil {
		return model.RunRecord{}, false, err
	}
	return run, true, nil
}

// ListRuns returns runs newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context) ([]model.RunRecord, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT payload FROM runs ORDER BY created_at_utc DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []model.RunRecord
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		run, err := DecodeRun(payload)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *SQLiteStore) DeleteRun(ctx context.Context, id string) error {
	db, err := s.conn()
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM run_results WHERE run_id = ?`, id); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("delete results of run %s: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("delete run %s: %w", id, err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) SaveFitnessHistory(ctx context.Context, runID string, history []float64) error {
	return saveResult(ctx, s, runID, kindFitnessHistory, history, EncodeFitnessHistory)
}

func (s *SQLiteStore) GetFitnessHistory(ctx context.Context, runID string) ([]float64, bool, error) {
	return loadResult(ctx, s, runID, kindFitnessHistory, DecodeFitnessHistory)
}

func (s *SQLiteStore) SaveGenerationDiagnostics(ctx context.Context, runID string, diagnostics []model.GenerationDiagnostics) error {
	return saveResult(ctx, s, runID, kindDiagnostics, diagnostics, EncodeGenerationDiagnostics)
}

func (s *SQLiteStore) GetGenerationDiagnostics(ctx context.Context, runID string) ([]model.GenerationDiagnostics, bool, error) {
	return loadResult(ctx, s, runID, kindDiagnostics, DecodeGenerationDiagnostics)
}

func (s *SQLiteStore) SaveTopGenomes(ctx context.Context, runID string, top []model.TopGenomeRecord) error {
	return saveResult(ctx, s, runID, kindTopGenomes, top, EncodeTopGenomes)
}

func (s *SQLiteStore) GetTopGenomes(ctx context.Context, runID string) ([]model.TopGenomeRecord, bool, error) {
	return loadResult(ctx, s, runID, kindTopGenomes, DecodeTopGenomes)
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func saveResult[T any](ctx context.Context, s *SQLiteStore, runID string, kind resultKind, value T, encode func(T) ([]byte, error)) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	payload, err := encode(value)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO run_results (run_id, kind, payload)
		VALUES (?, ?, ?)
		ON CONFLICT(run_id, kind) DO UPDATE SET payload = excluded.payload
	`, runID, string(kind), payload)
	if err != nil {
		return fmt.Errorf("save %s of run %s: %w", kind, runID, err)
	}
	return nil
}

func loadResult[T any](ctx context.Context, s *SQLiteStore, runID string, kind resultKind, decode func([]byte) (T, error)) (T, bool, error) {
	var zero T
	db, err := s.conn()
	if err != nil {
		return zero, false, err
	}
	var payload []byte
	err = db.QueryRowContext(ctx, `SELECT payload FROM run_results WHERE run_id = ? AND kind = ?`, runID, string(kind)).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, err
	}
	value, err := decode(payload)
	if err != nil {
		return zero, false, fmt.Errorf("decode %s of run %s: %w", kind, runID, err)
	}
	return value, true, nil
}

func (s *SQLiteStore) conn() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, ErrNotInitialized
	}
	return s.db, nil
}
