package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"outlay/internal/core"
)

// SnapshotRepository persists the whole store snapshot to one of two file
// locations: a device-local path and an optional remote-synced container
// path. The whole-snapshot model is deliberate: every save is atomic with
// respect to partial corruption, and reconciliation works at file level.
type SnapshotRepository struct {
	localPath  string
	remotePath string

	// mu guards syncEnabled: the toggle arrives from the caller goroutine
	// while the saver goroutine reads it on every Save.
	mu          sync.RWMutex
	syncEnabled bool
}

// NewSnapshotRepository creates a repository over the two candidate paths.
// When syncEnabled is false only the local location is ever used.
func NewSnapshotRepository(localPath, remotePath string, syncEnabled bool) (*SnapshotRepository, error) {
	for _, p := range []string{localPath, remotePath} {
		if p == "" {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return nil, fmt.Errorf("create snapshot directory: %w", err)
		}
	}
	return &SnapshotRepository{
		localPath:   localPath,
		remotePath:  remotePath,
		syncEnabled: syncEnabled,
	}, nil
}

// SetSyncEnabled switches the active location policy. The caller is
// expected to follow a toggle-on with Reconcile.
func (r *SnapshotRepository) SetSyncEnabled(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.syncEnabled = enabled
}

func (r *SnapshotRepository) syncOn() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.syncEnabled
}

// ActivePath resolves the location reads and writes go to.
//
// With sync enabled: prefer an existing remote file; adopt a local-only file
// into the remote location; default to the remote location on first run.
// With sync disabled: always the local location.
func (r *SnapshotRepository) ActivePath(ctx context.Context) string {
	if !r.syncOn() || r.remotePath == "" {
		return r.localPath
	}
	if fileExists(r.remotePath) {
		return r.remotePath
	}
	if fileExists(r.localPath) {
		if err := copyFile(r.localPath, r.remotePath); err != nil {
			slog.WarnContext(ctx, "Failed to adopt local snapshot into remote location",
				"local", r.localPath, "remote", r.remotePath, "error", err)
			return r.localPath
		}
		slog.InfoContext(ctx, "Adopted local snapshot into remote location",
			"remote", r.remotePath)
	}
	return r.remotePath
}

// Load reads the snapshot from the active location. Any failure — missing
// file, unreadable file, unparsable content — degrades to "no prior
// snapshot": the caller starts from an empty state and the next save
// overwrites whatever was there.
func (r *SnapshotRepository) Load(ctx context.Context) *core.Snapshot {
	path := r.ActivePath(ctx)
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.WarnContext(ctx, "Failed to read snapshot, starting empty",
				"path", path, "error", err)
		}
		return nil
	}
	s, err := decodeSnapshot(data)
	if err != nil {
		slog.WarnContext(ctx, "Failed to decode snapshot, starting empty",
			"path", path, "error", err)
		return nil
	}
	slog.DebugContext(ctx, "Snapshot loaded",
		"path", path,
		"expenses", len(s.Expenses),
		"recurring", len(s.RecurringExpenses))
	return s
}

// Save serializes the snapshot and writes it atomically to the active
// location. When the active location is the remote one, a local backup copy
// is additionally maintained best-effort; a backup failure is logged and
// swallowed, never surfaced.
func (r *SnapshotRepository) Save(ctx context.Context, s *core.Snapshot) error {
	data, err := encodeSnapshot(s)
	if err != nil {
		return err
	}
	path := r.ActivePath(ctx)
	if err := writeFileAtomic(path, data); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if path == r.remotePath && r.localPath != "" && r.localPath != r.remotePath {
		if err := writeFileAtomic(r.localPath, data); err != nil {
			slog.WarnContext(ctx, "Failed to write local backup copy",
				"path", r.localPath, "error", err)
		}
	}
	slog.DebugContext(ctx, "Snapshot saved", "path", path, "bytes", len(data))
	return nil
}

// Reconcile propagates the more recently modified snapshot file over the
// other (whole-file last-write-wins, delete-then-copy, no merge). A missing
// side is populated from the existing one; equal timestamps and the
// neither-exists case are no-ops. Failures are logged and skipped; the next
// reconcile trigger retries.
func (r *SnapshotRepository) Reconcile(ctx context.Context) {
	if r.localPath == "" || r.remotePath == "" || r.localPath == r.remotePath {
		return
	}
	localInfo, localErr := os.Stat(r.localPath)
	remoteInfo, remoteErr := os.Stat(r.remotePath)
	localExists := localErr == nil
	remoteExists := remoteErr == nil

	switch {
	case !localExists && !remoteExists:
		return
	case localExists && !remoteExists:
		r.propagate(ctx, r.localPath, r.remotePath)
	case remoteExists && !localExists:
		r.propagate(ctx, r.remotePath, r.localPath)
	default:
		if localInfo.ModTime().Equal(remoteInfo.ModTime()) {
			return
		}
		if localInfo.ModTime().After(remoteInfo.ModTime()) {
			r.propagate(ctx, r.localPath, r.remotePath)
		} else {
			r.propagate(ctx, r.remotePath, r.localPath)
		}
	}
}

// propagate replaces dst with src. Delete-then-copy keeps the semantics
// obvious; the copy itself is still atomic via temp and rename.
func (r *SnapshotRepository) propagate(ctx context.Context, src, dst string) {
	if err := os.Remove(dst); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.WarnContext(ctx, "Reconcile skipped, cannot remove stale snapshot",
			"path", dst, "error", err)
		return
	}
	if err := copyFile(src, dst); err != nil {
		slog.WarnContext(ctx, "Reconcile skipped, cannot copy snapshot",
			"from", src, "to", dst, "error", err)
		return
	}
	// Carry the winner's mtime over so the next reconcile sees both sides
	// as equally fresh instead of copying back.
	if info, err := os.Stat(src); err == nil {
		if err := os.Chtimes(dst, info.ModTime(), info.ModTime()); err != nil {
			slog.WarnContext(ctx, "Failed to align snapshot timestamps",
				"path", dst, "error", err)
		}
	}
	slog.InfoContext(ctx, "Reconciled snapshot locations", "winner", src, "updated", dst)
}

// writeFileAtomic writes data to a temp file in the target directory and
// renames it into place, so readers never observe a partial file.
func writeFileAtomic(path string, data []byte) error {
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("replace file: %w", err)
	}
	return nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("read source: %w", err)
	}
	return writeFileAtomic(dst, data)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
