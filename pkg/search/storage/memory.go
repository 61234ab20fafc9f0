package storage

import (
	"context"
	"errors"
	"sort"
	"sync"
)

var ErrNotInitialized = errors.New("store is not initialized")

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	archives    map[string]ArchiveSnapshot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.archives = make(map[string]ArchiveSnapshot)
	return nil
}

func (s *MemoryStore) SaveArchive(_ context.Context, snapshot ArchiveSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}
	s.archives[snapshot.Run.ID] = snapshot
	return nil
}

func (s *MemoryStore) GetArchive(_ context.Context, runID string) (ArchiveSnapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return ArchiveSnapshot{}, false, ErrNotInitialized
	}
	snapshot, ok := s.archives[runID]
	return snapshot, ok, nil
}

func (s *MemoryStore) ListRuns(_ context.Context) ([]RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return nil, ErrNotInitialized
	}
	out := make([]RunSummary, 0, len(s.archives))
	for _, snapshot := range s.archives {
		out = append(out, snapshot.Summary())
	}
	sortRuns(out)
	return out, nil
}

func sortRuns(runs []RunSummary) {
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].CreatedAt.Equal(runs[j].CreatedAt) {
			return runs[i].ID < runs[j].ID
		}
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})
}
