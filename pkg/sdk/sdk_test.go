package sdk

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/Lmdudester/Garcon/internal/api"
	"github.com/Lmdudester/Garcon/internal/backup"
	"github.com/Lmdudester/Garcon/internal/config"
	"github.com/Lmdudester/Garcon/internal/domain"
	"github.com/Lmdudester/Garcon/internal/eventbus"
	"github.com/Lmdudester/Garcon/internal/exec"
	"github.com/Lmdudester/Garcon/internal/filestore"
	"github.com/Lmdudester/Garcon/internal/orchestrator"
	"github.com/Lmdudester/Garcon/internal/template"
)

// fakeProvider is a minimal in-memory exec.Provider stand-in, local to
// this package's tests (mirrors internal/api's own test double, not
// reachable from here since both are unexported).
type fakeProvider struct {
	mu      sync.Mutex
	running map[string]bool
}

func newFakeProvider() *fakeProvider { return &fakeProvider{running: map[string]bool{}} }

func (f *fakeProvider) CheckAvailability(ctx context.Context) error { return nil }
func (f *fakeProvider) StartEventMonitoring(ctx context.Context)    {}
func (f *fakeProvider) OnProcessExit(cb exec.ExitCallback) exec.Unregister {
	return func() {}
}

func (f *fakeProvider) GetProcessStatus(ctx context.Context, serverID string) (exec.ProcessStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return exec.ProcessStatus{Exists: f.running[serverID], Running: f.running[serverID]}, nil
}

func (f *fakeProvider) Start(ctx context.Context, cfg exec.StartConfig) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running[cfg.Server.ID] = true
	return "fake-id", nil
}

func (f *fakeProvider) Stop(ctx context.Context, serverID string, tmpl *domain.Template, timeout int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.running, serverID)
	return nil
}

func (f *fakeProvider) Remove(ctx context.Context, serverID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.running, serverID)
	return nil
}

func (f *fakeProvider) Reconcile(ctx context.Context) error { return nil }

var _ exec.Provider = (*fakeProvider)(nil)

// newTestClient wires a full internal/api.Server behind httptest.NewServer
// and returns an sdk.Client pointed at it, plus a source directory an
// import can use.
func newTestClient(t *testing.T) (*Client, string) {
	t.Helper()
	root := t.TempDir()
	store := filestore.New()

	reg := template.New(filepath.Join(root, "templates"), store, zerolog.Nop())
	require.NoError(t, reg.Load())

	backups := backup.New(filepath.Join(root, "servers"), filepath.Join(root, "backups"), store, 5, zerolog.Nop())

	hub := eventbus.NewHub(zerolog.Nop())
	go hub.Run()
	t.Cleanup(hub.Stop)

	provider := newFakeProvider()
	orch := orchestrator.New(
		filepath.Join(root, "servers"),
		filepath.Join(root, "servers"),
		store,
		reg,
		backups,
		hub,
		orchestrator.Providers{Container: provider, Native: provider},
		true,
		zerolog.Nop(),
	)

	cfg := config.Config{Host: "0.0.0.0", Port: 3001, DataDir: root, MaxBackupsPerType: 5, AutoBackupOnStop: true}

	sourceDir := filepath.Join(root, "import", "alpha-src")
	require.NoError(t, os.MkdirAll(sourceDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sourceDir, "eula.txt"), []byte("true"), 0o644))

	apiServer := api.New(orch, reg, backups, hub, cfg, zerolog.Nop())
	server := httptest.NewServer(apiServer.Handler())
	t.Cleanup(server.Close)

	return NewClient(server.URL), sourceDir
}

// TestLifecycleOperationsAcceptNoContentResponses exercises the
// start/stop/restart endpoints, which respond 204: post()'s success check must
// accept http.StatusNoContent or these calls report a spurious API
// error despite succeeding server-side.
func TestLifecycleOperationsAcceptNoContentResponses(t *testing.T) {
	ctx := context.Background()
	client, sourceDir := newTestClient(t)

	server, err := client.ImportServer(ctx, ImportServerRequest{
		Name:       "Alpha",
		TemplateID: "minecraft",
		SourcePath: sourceDir,
	})
	require.NoError(t, err)
	require.Equal(t, "stopped", server.Status)

	require.NoError(t, client.StartServer(ctx, server.ID))

	got, err := client.GetServer(ctx, server.ID)
	require.NoError(t, err)
	require.Equal(t, "running", got.Status)

	require.NoError(t, client.StopServer(ctx, server.ID))

	require.NoError(t, client.StartServer(ctx, server.ID))
	require.NoError(t, client.RestartServer(ctx, server.ID))

	got, err = client.GetServer(ctx, server.ID)
	require.NoError(t, err)
	require.Equal(t, "running", got.Status)

	require.NoError(t, client.StopServer(ctx, server.ID))
}

func TestPatchServerAppliesPartialUpdate(t *testing.T) {
	ctx := context.Background()
	client, sourceDir := newTestClient(t)

	server, err := client.ImportServer(ctx, ImportServerRequest{
		Name:       "Bravo",
		TemplateID: "minecraft",
		SourcePath: sourceDir,
	})
	require.NoError(t, err)

	newName := "Bravo Renamed"
	patched, err := client.PatchServer(ctx, server.ID, PatchServerRequest{Name: &newName})
	require.NoError(t, err)
	require.Equal(t, newName, patched.Name)
}

func TestListTemplatesAndHealth(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestClient(t)

	require.NoError(t, client.Health(ctx))

	templates, err := client.ListTemplates(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, templates)
}
