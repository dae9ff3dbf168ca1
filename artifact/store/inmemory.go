package store

import (
	"context"
	"sync"
	"time"

	"github.com/launchforge/launchforge/artifact"
	"github.com/launchforge/launchforge/errs"
)

// InMemoryStore keeps artifacts in process memory. Suitable for tests and
// single-node development setups.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]*artifact.Record
}

// NewInMemoryStore creates an empty in-memory artifact store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[string]*artifact.Record)}
}

func key(projectID, kind string) string {
	return projectID + "/" + kind
}

// Get implements artifact.Store.
func (s *InMemoryStore) Get(ctx context.Context, projectID, kind string) (*artifact.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[key(projectID, kind)]
	if !ok {
		return nil, errs.NotFoundf("artifact %s/%s", projectID, kind)
	}
	clone := *rec
	return &clone, nil
}

// Put implements artifact.Store.
func (s *InMemoryStore) Put(ctx context.Context, projectID, kind, data string) (*artifact.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(projectID, kind)
	rec, ok := s.records[k]
	if !ok {
		rec = &artifact.Record{ProjectID: projectID, Kind: kind}
		s.records[k] = rec
	}
	rec.PreviousData = rec.Data
	rec.Data = data
	rec.Version++
	rec.UpdatedAt = time.Now()

	clone := *rec
	return &clone, nil
}

// Undo implements artifact.Store.
func (s *InMemoryStore) Undo(ctx context.Context, projectID, kind string) (*artifact.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key(projectID, kind)]
	if !ok {
		return nil, errs.NotFoundf("artifact %s/%s", projectID, kind)
	}
	if rec.PreviousData == "" {
		return nil, errs.NotFoundf("artifact %s/%s has no previous version", projectID, kind)
	}
	rec.Data = rec.PreviousData
	rec.PreviousData = ""
	rec.Version++
	rec.UpdatedAt = time.Now()

	clone := *rec
	return &clone, nil
}
