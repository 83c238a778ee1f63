// Package interfaces defines service contracts for Stockboard
package interfaces

import (
	"context"

	"github.com/mcurrie/stockboard/internal/models"
)

// SnapshotStore reads upstream leaderboard state and owns this system's
// reference snapshots and trigger marker.
//
// Upstream inputs (latest file, archive directory) are read-only; structural
// or parse failures on reads degrade to (nil, nil) or skipped entries, logged
// at the store, never fatal.
type SnapshotStore interface {
	// ReadLatest returns the producer's current leaderboard state, or
	// (nil, nil) when the source is absent or unparsable.
	ReadLatest(ctx context.Context) (*models.Snapshot, error)

	// ReadArchive re-scans the archival directory and returns entries
	// ascending by capture timestamp parsed from the filename. Entries whose
	// name or body fails to parse are skipped.
	ReadArchive(ctx context.Context) ([]models.ArchiveEntry, error)

	// ReadReference returns a system-owned reference snapshot, or (nil, nil)
	// when absent.
	ReadReference(ctx context.Context, name string) (*models.Snapshot, error)

	// WriteReference fully replaces the named reference snapshot. Readers
	// never observe a partial write.
	WriteReference(ctx context.Context, name string, snapshot *models.Snapshot) error

	// DeleteReference removes a consumed reference snapshot.
	DeleteReference(ctx context.Context, name string) error

	// GetMarker returns the persisted trigger marker, zero-valued when unset.
	GetMarker(ctx context.Context) (*models.TriggerMarker, error)

	// SetMarker fully replaces the persisted trigger marker.
	SetMarker(ctx context.Context, marker *models.TriggerMarker) error
}
