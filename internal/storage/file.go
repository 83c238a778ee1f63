// Package storage provides file-based persistence for leaderboard snapshots.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/mcurrie/stockboard/internal/common"
	"github.com/mcurrie/stockboard/internal/models"
)

const (
	latestFilename  = "leaderboard-latest.json"
	archiveDirname  = "in_time"
	archivePrefix   = "leaderboard-"
	archiveSuffix   = ".json"
	archiveTimeForm = "2006-01-02-15_04"
	markerFilename  = "trigger-marker.json"

	// referenceGateSize bounds concurrent reference-file operations so
	// overlapping tick, alarm, and on-demand work cannot exhaust handles.
	referenceGateSize = 4
)

// Reference snapshot names owned by this system.
const (
	RefCurrent = "current" // comparison base for change detection, replaced after each send
	RefMorning = "morning" // period-open baseline for the daily summary
)

// FileStore implements interfaces.SnapshotStore over the upstream feed
// directory (read-only) and a local snapshot directory (system-owned).
type FileStore struct {
	latestPath string
	archiveDir string
	refDir     string
	markerPath string
	gate       *semaphore.Weighted
	logger     *common.Logger
}

// NewFileStore creates a FileStore and ensures the local snapshot directory
// exists. The upstream feed directory is never created or written.
func NewFileStore(logger *common.Logger, config *common.DataConfig) (*FileStore, error) {
	if err := os.MkdirAll(config.SnapshotPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory %s: %w", config.SnapshotPath, err)
	}

	fs := &FileStore{
		latestPath: filepath.Join(config.LeaderboardPath, latestFilename),
		archiveDir: filepath.Join(config.LeaderboardPath, archiveDirname),
		refDir:     config.SnapshotPath,
		markerPath: filepath.Join(config.SnapshotPath, markerFilename),
		gate:       semaphore.NewWeighted(referenceGateSize),
		logger:     logger,
	}

	logger.Debug().Str("latest", fs.latestPath).Str("archive", fs.archiveDir).Str("snapshots", fs.refDir).Msg("FileStore opened")
	return fs, nil
}

// ParseArchiveTimestamp extracts the capture time from an archival snapshot
// filename of the form leaderboard-YYYY-MM-DD-HH_MM.json.
func ParseArchiveTimestamp(filename string) (time.Time, error) {
	if !strings.HasPrefix(filename, archivePrefix) || !strings.HasSuffix(filename, archiveSuffix) {
		return time.Time{}, fmt.Errorf("unrecognized archive filename %q", filename)
	}
	stamp := strings.TrimSuffix(strings.TrimPrefix(filename, archivePrefix), archiveSuffix)
	t, err := time.Parse(archiveTimeForm, stamp)
	if err != nil {
		return time.Time{}, fmt.Errorf("unparsable timestamp in %q: %w", filename, err)
	}
	return t, nil
}

// readSnapshot reads and decodes one snapshot file. Per-record shape failures
// inside the snapshot are skipped by the decoder and logged here.
func (fs *FileStore) readSnapshot(path string) (*models.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%s is empty", path)
	}

	snapshot := models.NewSnapshot()
	if err := json.Unmarshal(data, snapshot); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	for _, username := range snapshot.Skipped {
		fs.logger.Warn().Str("file", filepath.Base(path)).Str("username", username).Msg("Skipping malformed portfolio record")
	}
	return snapshot, nil
}

// ReadLatest returns the upstream latest snapshot, or (nil, nil) when the
// source is absent or unparsable.
func (fs *FileStore) ReadLatest(ctx context.Context) (*models.Snapshot, error) {
	snapshot, err := fs.readSnapshot(fs.latestPath)
	if err != nil {
		if !os.IsNotExist(err) {
			fs.logger.Warn().Err(err).Msg("Latest leaderboard unreadable")
		}
		return nil, nil
	}
	snapshot.CapturedAt = time.Now()
	if info, err := os.Stat(fs.latestPath); err == nil {
		snapshot.CapturedAt = info.ModTime()
	}
	return snapshot, nil
}

// ReadArchive re-scans the archival directory. Entries ascend by the
// timestamp parsed from each filename; lexical order is not trusted.
// Files with unparsable names or bodies are skipped and logged.
func (fs *FileStore) ReadArchive(ctx context.Context) ([]models.ArchiveEntry, error) {
	dirEntries, err := os.ReadDir(fs.archiveDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read archive directory %s: %w", fs.archiveDir, err)
	}

	var entries []models.ArchiveEntry
	for _, de := range dirEntries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), archiveSuffix) {
			continue
		}

		ts, err := ParseArchiveTimestamp(de.Name())
		if err != nil {
			fs.logger.Warn().Err(err).Str("file", de.Name()).Msg("Skipping archive file")
			continue
		}

		snapshot, err := fs.readSnapshot(filepath.Join(fs.archiveDir, de.Name()))
		if err != nil {
			fs.logger.Warn().Err(err).Str("file", de.Name()).Msg("Skipping unreadable archive file")
			continue
		}
		snapshot.CapturedAt = ts

		entries = append(entries, models.ArchiveEntry{Timestamp: ts, Snapshot: snapshot})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})
	return entries, nil
}

// sanitizeName makes a reference name safe for use as a filename.
func (fs *FileStore) sanitizeName(name string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", ":", "_", "..", "_")
	return r.Replace(name)
}

func (fs *FileStore) referencePath(name string) string {
	return filepath.Join(fs.refDir, fs.sanitizeName(name)+"-snapshot.json")
}

// ReadReference returns a system-owned reference snapshot, or (nil, nil)
// when absent.
func (fs *FileStore) ReadReference(ctx context.Context, name string) (*models.Snapshot, error) {
	if err := fs.gate.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("reference gate: %w", err)
	}
	defer fs.gate.Release(1)

	path := fs.referencePath(name)
	snapshot, err := fs.readSnapshot(path)
	if err != nil {
		if !os.IsNotExist(err) {
			fs.logger.Warn().Err(err).Str("reference", name).Msg("Reference snapshot unreadable")
		}
		return nil, nil
	}
	if info, err := os.Stat(path); err == nil {
		snapshot.CapturedAt = info.ModTime()
	}
	return snapshot, nil
}

// WriteReference replaces the named reference snapshot atomically: the new
// content is written to a temp file in the same directory, then renamed over
// the target, so no reader observes a partial write.
func (fs *FileStore) WriteReference(ctx context.Context, name string, snapshot *models.Snapshot) error {
	if err := fs.gate.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("reference gate: %w", err)
	}
	defer fs.gate.Release(1)

	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal reference %s: %w", name, err)
	}
	data = append(data, '\n')

	if err := fs.writeAtomic(fs.referencePath(name), data); err != nil {
		return fmt.Errorf("failed to write reference %s: %w", name, err)
	}
	fs.logger.Debug().Str("reference", name).Int("users", snapshot.Len()).Msg("Reference snapshot written")
	return nil
}

// DeleteReference removes a consumed reference snapshot. Deleting an absent
// reference is not an error.
func (fs *FileStore) DeleteReference(ctx context.Context, name string) error {
	if err := fs.gate.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("reference gate: %w", err)
	}
	defer fs.gate.Release(1)

	if err := os.Remove(fs.referencePath(name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete reference %s: %w", name, err)
	}
	fs.logger.Debug().Str("reference", name).Msg("Reference snapshot deleted")
	return nil
}

// GetMarker returns the persisted trigger marker, zero-valued when unset.
func (fs *FileStore) GetMarker(ctx context.Context) (*models.TriggerMarker, error) {
	data, err := os.ReadFile(fs.markerPath)
	if err != nil {
		if os.IsNotExist(err) {
			return &models.TriggerMarker{}, nil
		}
		return nil, fmt.Errorf("failed to read trigger marker: %w", err)
	}

	var marker models.TriggerMarker
	if err := json.Unmarshal(data, &marker); err != nil {
		fs.logger.Warn().Err(err).Msg("Trigger marker unparsable, resetting")
		return &models.TriggerMarker{}, nil
	}
	return &marker, nil
}

// SetMarker fully replaces the persisted trigger marker.
func (fs *FileStore) SetMarker(ctx context.Context, marker *models.TriggerMarker) error {
	data, err := json.MarshalIndent(marker, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal trigger marker: %w", err)
	}
	data = append(data, '\n')

	if err := fs.writeAtomic(fs.markerPath, data); err != nil {
		return fmt.Errorf("failed to write trigger marker: %w", err)
	}
	return nil
}

// writeAtomic writes data to a temp file in the target's directory and
// renames it into place.
func (fs *FileStore) writeAtomic(target string, data []byte) error {
	dir := filepath.Dir(target)

	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}
