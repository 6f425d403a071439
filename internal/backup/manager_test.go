package backup

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/Lmdudester/Garcon/internal/domain"
	"github.com/Lmdudester/Garcon/internal/filestore"
)

func newManager(t *testing.T, retention int) (*Manager, string) {
	t.Helper()
	root := t.TempDir()
	serversDir := filepath.Join(root, "servers")
	backupsDir := filepath.Join(root, "backups")
	require.NoError(t, os.MkdirAll(filepath.Join(serversDir, "alpha"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(serversDir, "alpha", "world.dat"), []byte("data"), 0o644))

	m := New(serversDir, backupsDir, filestore.New(), retention, zerolog.Nop())
	return m, root
}

func TestCreateThenListRoundTrips(t *testing.T) {
	m, _ := newManager(t, 5)
	ctx := context.Background()

	rec, err := m.Create(ctx, "alpha", domain.BackupTypeManual, "before update")
	require.NoError(t, err)
	require.Equal(t, domain.BackupTypeManual, rec.Type)
	require.Greater(t, rec.SizeBytes, int64(0))

	list, err := m.List("alpha")
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.True(t, list[0].Timestamp.Equal(rec.Timestamp))
}

func TestCreateMissingServerIsNotFound(t *testing.T) {
	m, _ := newManager(t, 5)
	_, err := m.Create(context.Background(), "does-not-exist", domain.BackupTypeManual, "")
	require.Error(t, err)
}

func TestListMissingBackupDirIsEmptyNotError(t *testing.T) {
	m, _ := newManager(t, 5)
	list, err := m.List("alpha")
	require.NoError(t, err)
	require.Empty(t, list)
}

// TestRetentionCapEnforced reproduces spec scenario 5: cap=3, create 5
// manual backups; after the fourth and fifth create, listing must
// return exactly 3 entries.
func TestRetentionCapEnforced(t *testing.T) {
	m, _ := newManager(t, 3)
	ctx := context.Background()

	var created []domain.BackupRecord
	for i := 0; i < 5; i++ {
		rec, err := m.Create(ctx, "alpha", domain.BackupTypeManual, "")
		require.NoError(t, err)
		created = append(created, rec)

		list, err := m.List("alpha")
		require.NoError(t, err)
		if i >= 2 {
			require.LessOrEqual(t, len(list), 3)
		}
	}

	final, err := m.List("alpha")
	require.NoError(t, err)
	require.Len(t, final, 3)

	// The retained set must be the three most recent.
	wantLatest := map[string]bool{
		created[2].Filename: true,
		created[3].Filename: true,
		created[4].Filename: true,
	}
	for _, r := range final {
		require.True(t, wantLatest[r.Filename], "unexpected retained backup %s", r.Filename)
	}
}

func TestDeleteUnknownTimestampIsNotFound(t *testing.T) {
	m, _ := newManager(t, 5)
	ts, err := time.Parse(timestampLayout, "2026-01-01T00:00:00.000Z")
	require.NoError(t, err)

	err = m.Delete("alpha", ts)
	require.Error(t, err)
}

func TestRestoreCreatesPreRestoreBackupAndExtracts(t *testing.T) {
	m, _ := newManager(t, 5)
	ctx := context.Background()

	original, err := m.Create(ctx, "alpha", domain.BackupTypeManual, "")
	require.NoError(t, err)

	// Mutate the live directory so restore has something to overwrite.
	require.NoError(t, os.WriteFile(filepath.Join(m.serverDataDir("alpha"), "world.dat"), []byte("mutated"), 0o644))

	result, err := m.Restore(ctx, "alpha", original.Timestamp)
	require.NoError(t, err)
	require.Equal(t, domain.BackupTypePreRestore, result.PreRestoreBackup.Type)
	require.True(t, result.PreRestoreBackup.Timestamp.After(result.RestoredFrom))

	restored, err := os.ReadFile(filepath.Join(m.serverDataDir("alpha"), "world.dat"))
	require.NoError(t, err)
	require.Equal(t, "data", string(restored))
}
