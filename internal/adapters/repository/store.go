// Package repository defines the session snapshot store and errors.
package repository

import (
	"context"

	"github.com/motionlab/stride/internal/domain/types"
)

// Store provides read/write access to per-session metric snapshots, ranked
// by fall-risk composite so the highest-risk sessions list first.
type Store interface {
	// Put replaces the stored snapshot for a session.
	Put(ctx context.Context, snap types.Snapshot) error

	// Get returns the latest snapshot for a session.
	// Returns ErrNotFound for unknown sessions.
	Get(ctx context.Context, sessionID string) (types.Snapshot, error)

	// Rank returns the session's current rank by fall-risk composite.
	// Returns ErrNotFound for unknown sessions.
	Rank(ctx context.Context, sessionID string) (types.SessionEntry, error)

	// TopN returns up to n sessions ordered by fall-risk composite desc.
	TopN(ctx context.Context, n int) ([]types.SessionEntry, error)

	// Remove drops a session's snapshot; removing an unknown session is a
	// no-op.
	Remove(ctx context.Context, sessionID string)

	// Count returns the number of tracked sessions.
	Count(ctx context.Context) int
}
