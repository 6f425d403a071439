package backup

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Lmdudester/Garcon/internal/apperr"
	"github.com/Lmdudester/Garcon/internal/domain"
	"github.com/Lmdudester/Garcon/internal/filestore"
)

const gzipLevel = gzip.DefaultCompression // level 6, per the archive format's own default

// Manager creates, lists, deletes, and restores compressed archives of a
// server's data directory.
type Manager struct {
	serversDir string
	backupsDir string
	store      *filestore.Store
	log        zerolog.Logger

	// DefaultRetention is the per-type cap applied when a server has no
	// override; MAX_BACKUPS_PER_TYPE from the environment.
	DefaultRetention int
}

func New(serversDir, backupsDir string, store *filestore.Store, defaultRetention int, log zerolog.Logger) *Manager {
	return &Manager{
		serversDir:       serversDir,
		backupsDir:       backupsDir,
		store:            store,
		log:              log.With().Str("component", "backup-manager").Logger(),
		DefaultRetention: defaultRetention,
	}
}

func (m *Manager) serverDataDir(serverID string) string {
	return filepath.Join(m.serversDir, serverID)
}

func (m *Manager) serverBackupDir(serverID string) string {
	return filepath.Join(m.backupsDir, serverID)
}

// List enumerates matching files under the server's backup directory,
// sorted descending by parsed timestamp. A missing backup directory
// yields an empty list.
func (m *Manager) List(serverID string) ([]domain.BackupRecord, error) {
	dir := m.serverBackupDir(serverID)
	names, err := m.store.ListDir(dir, ".gz")
	if err != nil {
		return nil, err
	}

	var records []domain.BackupRecord
	for _, name := range names {
		ts, typ, ok := parseFilename(name)
		if !ok {
			continue
		}
		path := filepath.Join(dir, name)
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		records = append(records, domain.BackupRecord{
			ServerID:  serverID,
			Timestamp: ts,
			Type:      typ,
			SizeBytes: info.Size(),
			Filename:  name,
			Path:      path,
		})
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Timestamp.After(records[j].Timestamp) })
	return records, nil
}

// Create streams a gzip-compressed tar of the server's data directory,
// then enforces the retention cap for its type. Precondition: the
// server's data directory must exist.
func (m *Manager) Create(ctx context.Context, serverID string, typ domain.BackupType, description string) (domain.BackupRecord, error) {
	dataDir := m.serverDataDir(serverID)
	if !m.store.IsDir(dataDir) {
		return domain.BackupRecord{}, apperr.NotFound("server data directory not found for %s", serverID)
	}

	if err := m.store.EnsureDir(m.serverBackupDir(serverID)); err != nil {
		return domain.BackupRecord{}, err
	}

	// Timestamp is taken after the precondition check, to millisecond
	// precision, UTC.
	ts := time.Now().UTC().Truncate(time.Millisecond)
	name := filename(ts, typ)
	finalPath := filepath.Join(m.serverBackupDir(serverID), name)
	tmpPath := finalPath + "." + uuid.NewString() + ".temp"

	if err := m.streamArchive(ctx, dataDir, tmpPath); err != nil {
		_ = os.Remove(tmpPath)
		return domain.BackupRecord{}, err
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		_ = os.Remove(tmpPath)
		return domain.BackupRecord{}, apperr.Wrap(apperr.KindFileSystem, "finalize backup archive", err)
	}

	info, err := os.Stat(finalPath)
	if err != nil {
		return domain.BackupRecord{}, apperr.Wrap(apperr.KindFileSystem, "stat backup archive", err)
	}

	record := domain.BackupRecord{
		ServerID:    serverID,
		Timestamp:   ts,
		Type:        typ,
		SizeBytes:   info.Size(),
		Description: description,
		Filename:    name,
		Path:        finalPath,
	}

	m.enforceRetention(serverID, typ)

	return record, nil
}

func (m *Manager) streamArchive(ctx context.Context, srcDir, dstPath string) error {
	out, err := os.Create(dstPath)
	if err != nil {
		return apperr.Wrap(apperr.KindFileSystem, "create archive", err)
	}
	defer out.Close()

	gz, err := gzip.NewWriterLevel(out, gzipLevel)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "create gzip writer", err)
	}
	defer gz.Close()

	tw := tar.NewWriter(gz)
	defer tw.Close()

	return filepath.Walk(srcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}

		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)

		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		_, err = io.Copy(tw, f)
		return err
	})
}

// enforceRetention deletes the oldest excess backups of typ for
// serverID beyond DefaultRetention. Best-effort: failures are logged and
// never fail the originating create.
func (m *Manager) enforceRetention(serverID string, typ domain.BackupType) {
	retentionCap := m.DefaultRetention
	if retentionCap <= 0 {
		retentionCap = 5
	}

	all, err := m.List(serverID)
	if err != nil {
		m.log.Warn().Err(err).Str("server_id", serverID).Msg("retention: failed to list backups")
		return
	}

	var ofType []domain.BackupRecord
	for _, r := range all {
		if r.Type == typ {
			ofType = append(ofType, r)
		}
	}
	if len(ofType) <= retentionCap {
		return
	}

	// ofType is already descending by timestamp; the tail is the oldest.
	excess := ofType[retentionCap:]
	for _, r := range excess {
		if err := os.Remove(r.Path); err != nil {
			m.log.Warn().Err(err).Str("path", r.Path).Msg("retention: failed to delete excess backup")
		}
	}
}

// Delete finds the single matching file by parsed timestamp equality and
// unlinks it. A missing match is not-found.
func (m *Manager) Delete(serverID string, ts time.Time) error {
	records, err := m.List(serverID)
	if err != nil {
		return err
	}
	for _, r := range records {
		if r.Timestamp.Equal(ts) {
			if err := os.Remove(r.Path); err != nil {
				return apperr.Wrap(apperr.KindFileSystem, "delete backup", err)
			}
			return nil
		}
	}
	return apperr.NotFound("no backup at timestamp %s for server %s", ts.Format(timestampLayout), serverID)
}

// DeleteAll removes the backup directory tree for serverID if present.
func (m *Manager) DeleteAll(serverID string) error {
	return m.store.RemoveTree(m.serverBackupDir(serverID))
}

// RestoreResult is returned by Restore.
type RestoreResult struct {
	ServerID         string
	RestoredFrom     time.Time
	PreRestoreBackup domain.BackupRecord
}

// Restore creates a pre-restore backup of the current server data
// directory, deletes it, and extracts the chosen backup archive into a
// fresh directory. Precondition checks (server exists, status stopped,
// update stage none) are the orchestrator's responsibility; this method
// only performs the file operations.
func (m *Manager) Restore(ctx context.Context, serverID string, ts time.Time) (RestoreResult, error) {
	records, err := m.List(serverID)
	if err != nil {
		return RestoreResult{}, err
	}

	var target *domain.BackupRecord
	for i := range records {
		if records[i].Timestamp.Equal(ts) {
			target = &records[i]
			break
		}
	}
	if target == nil {
		return RestoreResult{}, apperr.NotFound("no backup at timestamp %s for server %s", ts.Format(timestampLayout), serverID)
	}

	preRestore, err := m.Create(ctx, serverID, domain.BackupTypePreRestore, "")
	if err != nil {
		return RestoreResult{}, apperr.Wrap(apperr.KindFileSystem, "create pre-restore backup", err)
	}

	dataDir := m.serverDataDir(serverID)
	if err := m.store.RemoveTree(dataDir); err != nil {
		// The pre-restore backup is retained even though extraction
		// never started.
		return RestoreResult{}, err
	}

	if err := m.extractArchive(target.Path, dataDir); err != nil {
		// The pre-restore backup is retained; the error is surfaced.
		return RestoreResult{}, apperr.Wrap(apperr.KindFileSystem, "extract backup archive", err)
	}

	return RestoreResult{
		ServerID:         serverID,
		RestoredFrom:      target.Timestamp,
		PreRestoreBackup: preRestore,
	}, nil
}

func (m *Manager) extractArchive(archivePath, destDir string) error {
	if err := m.store.EnsureDir(destDir); err != nil {
		return err
	}

	f, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return err
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	cleanDest := filepath.Clean(destDir)

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		target := filepath.Join(destDir, hdr.Name)
		if target != cleanDest && !isWithinDir(target, cleanDest) {
			return apperr.Validation("archive entry %q escapes destination directory", hdr.Name)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, os.FileMode(hdr.Mode)); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode))
			if err != nil {
				return err
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return err
			}
			out.Close()
		}
	}
}

func isWithinDir(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !hasDotDotPrefix(rel)
}

func hasDotDotPrefix(rel string) bool {
	return len(rel) >= 2 && rel[0] == '.' && rel[1] == '.' &&
		(len(rel) == 2 || rel[2] == filepath.Separator)
}
