package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/aescanero/synapse/pkg/domain"
)

// InMemoryRunStorage implements RunStorage using an in-memory map.
// Records are copied on the way in and out so callers never share state
// with the store.
type InMemoryRunStorage struct {
	runs map[string][]byte
	mu   sync.RWMutex
}

// NewInMemoryRunStorage creates a new in-memory run storage
func NewInMemoryRunStorage() *InMemoryRunStorage {
	return &InMemoryRunStorage{
		runs: make(map[string][]byte),
	}
}

// SaveRun creates or replaces a run record
func (s *InMemoryRunStorage) SaveRun(ctx context.Context, record *domain.RunRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs[record.ID] = data
	return nil
}

// GetRun retrieves a run record
func (s *InMemoryRunStorage) GetRun(ctx context.Context, runID string) (*domain.RunRecord, error) {
	s.mu.RLock()
	data, ok := s.runs[runID]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("run %s: %w", runID, domain.ErrRunNotFound)
	}
	return decode(data)
}

// ListRuns returns every stored run record
func (s *InMemoryRunStorage) ListRuns(ctx context.Context) ([]*domain.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]*domain.RunRecord, 0, len(s.runs))
	for _, data := range s.runs {
		record, err := decode(data)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

// DeleteRun removes a run record
func (s *InMemoryRunStorage) DeleteRun(ctx context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.runs, runID)
	return nil
}

func decode(data []byte) (*domain.RunRecord, error) {
	var record domain.RunRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run: %w", err)
	}
	return &record, nil
}
