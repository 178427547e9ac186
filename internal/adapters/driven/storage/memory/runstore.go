package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/strata-cli/internal/core/domain"
	"github.com/custodia-labs/strata-cli/internal/core/ports/driven"
)

// Ensure RunStore implements the interface.
var _ driven.RunStore = (*RunStore)(nil)

// RunStore is an in-memory implementation of driven.RunStore.
// Documents are cloned on the way in and out.
type RunStore struct {
	mu       sync.RWMutex
	runs     map[string]domain.Run
	versions map[string][]*domain.Document
}

// NewRunStore creates a new in-memory run store.
func NewRunStore() *RunStore {
	return &RunStore{
		runs:     make(map[string]domain.Run),
		versions: make(map[string][]*domain.Document),
	}
}

// SaveRun stores or updates a run.
func (s *RunStore) SaveRun(_ context.Context, run *domain.Run) error {
	if run == nil || run.ID == "" {
		return fmt.Errorf("%w: run id is required", domain.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = *run
	return nil
}

// GetRun retrieves a run by ID.
func (s *RunStore) GetRun(_ context.Context, id string) (*domain.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &run, nil
}

// ListRuns returns all runs, most recent first.
func (s *RunStore) ListRuns(_ context.Context) ([]domain.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.Run, 0, len(s.runs))
	for id := range s.runs {
		result = append(result, s.runs[id])
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// DeleteRun removes a run and its versions.
func (s *RunStore) DeleteRun(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.runs, id)
	delete(s.versions, id)
	return nil
}

// AppendVersion stores the next history entry of a run.
func (s *RunStore) AppendVersion(_ context.Context, runID string, seq int, doc *domain.Document) error {
	if doc == nil {
		return fmt.Errorf("%w: document is required", domain.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[runID]; !ok {
		return domain.ErrNotFound
	}
	existing := s.versions[runID]
	if seq != len(existing) {
		return fmt.Errorf("%w: version %d out of sequence (next is %d)", domain.ErrInvalidInput, seq, len(existing))
	}
	s.versions[runID] = append(existing, doc.Clone())
	return nil
}

// GetVersion retrieves one history entry.
func (s *RunStore) GetVersion(_ context.Context, runID string, seq int) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	versions := s.versions[runID]
	if seq < 0 || seq >= len(versions) {
		return nil, domain.ErrNotFound
	}
	return versions[seq].Clone(), nil
}

// ListVersions returns the full history of a run.
func (s *RunStore) ListVersions(_ context.Context, runID string) ([]*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.runs[runID]; !ok {
		return nil, domain.ErrNotFound
	}
	versions := s.versions[runID]
	result := make([]*domain.Document, len(versions))
	for i, doc := range versions {
		result[i] = doc.Clone()
	}
	return result, nil
}
