package storage

import (
	"context"
	"slices"
	"sort"
	"sync"

	"evogen/internal/model"
)

// runEntry holds everything stored for one run id. Results may arrive
// before the run record itself.
type runEntry struct {
	record      *model.RunRecord
	history     []float64
	diagnostics []model.GenerationDiagnostics
	top         []model.TopGenomeRecord
}

// MemoryStore keeps run reports for the lifetime of the process. Slices are
// copied on the way in and on the way out.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*runEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Init resets the store.
func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	s.entries = make(map[string]*runEntry)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) SaveRun(_ context.Context, run model.RunRecord) error {
	return s.update(run.ID, func(e *runEntry) { e.record = &run })
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (model.RunRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	if !ok || e.record == nil {
		return model.RunRecord{}, false, nil
	}
	return *e.record, true, nil
}

// ListRuns returns runs newest first.
func (s *MemoryStore) ListRuns(_ context.Context) ([]model.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]model.RunRecord, 0, len(s.entries))
	for _, e := range s.entries {
		if e.record != nil {
			runs = append(runs, *e.record)
		}
	}
	sortRuns(runs)
	return runs, nil
}

func (s *MemoryStore) DeleteRun(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.entries, id)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) SaveFitnessHistory(_ context.Context, runID string, history []float64) error {
	return s.update(runID, func(e *runEntry) { e.history = slices.Clone(history) })
}

func (s *MemoryStore) GetFitnessHistory(_ context.Context, runID string) ([]float64, bool, error) {
	return lookup(s, runID, func(e *runEntry) []float64 { return e.history })
}

func (s *MemoryStore) SaveGenerationDiagnostics(_ context.Context, runID string, diagnostics []model.GenerationDiagnostics) error {
	return s.update(runID, func(e *runEntry) { e.diagnostics = slices.Clone(diagnostics) })
}

func (s *MemoryStore) GetGenerationDiagnostics(_ context.Context, runID string) ([]model.GenerationDiagnostics, bool, error) {
	return lookup(s, runID, func(e *runEntry) []model.GenerationDiagnostics { return e.diagnostics })
}

func (s *MemoryStore) SaveTopGenomes(_ context.Context, runID string, top []model.TopGenomeRecord) error {
	return s.update(runID, func(e *runEntry) { e.top = slices.Clone(top) })
}

func (s *MemoryStore) GetTopGenomes(_ context.Context, runID string) ([]model.TopGenomeRecord, bool, error) {
	return lookup(s, runID, func(e *runEntry) []model.TopGenomeRecord { return e.top })
}

func (s *MemoryStore) update(runID string, apply func(*runEntry)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.entries == nil {
		return ErrNotInitialized
	}
	e, ok := s.entries[runID]
	if !ok {
		e = &runEntry{}
		s.entries[runID] = e
	}
	apply(e)
	return nil
}

// lookup copies one result slice out of the run's entry. A nil slice means
// the result was never saved.
func lookup[T any](s *MemoryStore, runID string, field func(*runEntry) []T) ([]T, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[runID]
	if !ok {
		return nil, false, nil
	}
	values := field(e)
	if values == nil {
		return nil, false, nil
	}
	return append(make([]T, 0, len(values)), values...), true, nil
}

func sortRuns(runs []model.RunRecord) {
	sort.SliceStable(runs, func(i, j int) bool {
		if runs[i].CreatedAtUTC == runs[j].CreatedAtUTC {
			return runs[i].ID < runs[j].ID
		}
		return runs[i].CreatedAtUTC > runs[j].CreatedAtUTC
	})
}
