package native

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/Lmdudester/Garcon/internal/filestore"
	"github.com/Lmdudester/Garcon/internal/template"
)

func newBackend(t *testing.T) (*Backend, string) {
	t.Helper()
	dataDir := t.TempDir()
	store := filestore.New()
	reg := template.New(filepath.Join(dataDir, "templates"), store, zerolog.Nop())
	require.NoError(t, reg.Load())
	b := New(dataDir, filepath.Join(dataDir, "logs"), store, reg, zerolog.Nop())
	return b, dataDir
}

func TestIsAlivePID1IsAlwaysAlive(t *testing.T) {
	require.True(t, isAlive(1))
}

func TestIsAliveImpossiblePIDIsDead(t *testing.T) {
	require.False(t, isAlive(1<<30))
}

// TestReconcileRejectsPIDReuse reproduces spec scenario 6: a persisted
// record names a pid and a process image; between restarts the OS
// reuses the pid for an unrelated process. Reconcile must not re-adopt
// the server, and must leave it untracked.
func TestReconcileRejectsPIDReuse(t *testing.T) {
	b, dataDir := newBackend(t)

	rec := record{
		ServerID:         "valheim-01",
		PID:              os.Getpid(), // alive, but not running the recorded image
		ProcessImageName: "valheim_server",
		StartedAt:        time.Now().UTC(),
	}
	require.NoError(t, b.store.WriteJSON(filepath.Join(dataDir, recordsFileName), []record{rec}))

	require.NoError(t, b.Reconcile(nil))

	status, err := b.GetProcessStatus(nil, "valheim-01")
	require.NoError(t, err)
	require.False(t, status.Exists)
}

func TestReconcileDropsDeadRecords(t *testing.T) {
	b, dataDir := newBackend(t)

	rec := record{ServerID: "dead-01", PID: 1 << 30, ProcessImageName: "whatever"}
	require.NoError(t, b.store.WriteJSON(filepath.Join(dataDir, recordsFileName), []record{rec}))

	require.NoError(t, b.Reconcile(nil))

	status, err := b.GetProcessStatus(nil, "dead-01")
	require.NoError(t, err)
	require.False(t, status.Exists)
}
