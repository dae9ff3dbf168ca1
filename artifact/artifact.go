// Package artifact defines the versioned artifact records produced by the
// generation tools (website pages, brand kits) and the store contract for
// persisting them with exactly one level of undo.
package artifact

import (
	"context"
	"time"
)

// Record is one versioned artifact keyed by (ProjectID, Kind). PreviousData
// holds at most one prior version; there is no deeper history.
type Record struct {
	ProjectID    string    `json:"project_id"`
	Kind         string    `json:"kind"`
	Data         string    `json:"data"`
	Version      int       `json:"version"`
	PreviousData string    `json:"previous_data,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Store persists artifact records.
type Store interface {
	// Get returns the current record or an error wrapping errs.ErrNotFound.
	Get(ctx context.Context, projectID, kind string) (*Record, error)

	// Put writes data as the new current version, incrementing the version
	// counter and retaining the previous data for undo. Creating a record
	// that does not exist yet is version 1 with no previous data.
	Put(ctx context.Context, projectID, kind, data string) (*Record, error)

	// Undo restores the retained previous version as current and clears the
	// undo slot. Errors wrap errs.ErrNotFound when there is no record or no
	// previous version.
	Undo(ctx context.Context, projectID, kind string) (*Record, error)
}
