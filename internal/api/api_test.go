package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

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
// this package's tests (the orchestrator package's own fakeProvider is
// unexported and not reachable from here).
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

func newTestServer(t *testing.T) (*Server, string) {
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

	cfg := config.Config{Host: "0.0.0.0", Port: 3001, DataDir: root, ImportDir: filepath.Join(root, "import"), MaxBackupsPerType: 5, AutoBackupOnStop: true}

	sourceDir := filepath.Join(root, "import", "alpha-src")
	require.NoError(t, os.MkdirAll(sourceDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sourceDir, "eula.txt"), []byte("true"), 0o644))

	return New(orch, reg, backups, hub, cfg, zerolog.Nop()), sourceDir
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndConfig(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	rec := doJSON(t, h, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/config", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var cfg configResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cfg))
	require.Equal(t, 3001, cfg.Port)
}

func TestImportFoldersListsSubdirectories(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv.Handler(), http.MethodGet, "/import/folders", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var folders []string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &folders))
	require.Contains(t, folders, "alpha-src")
}

func TestListTemplatesIncludesBuiltinMinecraft(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv.Handler(), http.MethodGet, "/templates", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var templates []domain.Template
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &templates))

	found := false
	for _, tmpl := range templates {
		if tmpl.ID == "minecraft" {
			found = true
		}
	}
	require.True(t, found)
}

func TestImportStartStopLifecycleOverHTTP(t *testing.T) {
	srv, sourceDir := newTestServer(t)
	h := srv.Handler()

	rec := doJSON(t, h, http.MethodPost, "/servers", importRequest{
		Name:       "Alpha",
		TemplateID: "minecraft",
		SourcePath: sourceDir,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created serverResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Regexp(t, `^alpha-[0-9a-f]{10}$`, created.ID)
	require.Equal(t, domain.StatusStopped, created.Status)

	rec = doJSON(t, h, http.MethodPost, "/servers/"+created.ID+"/start", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/servers/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got serverResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, domain.StatusRunning, got.Status)

	rec = doJSON(t, h, http.MethodPost, "/servers/"+created.ID+"/stop", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/servers/"+created.ID+"/backups", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var backups []backupResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &backups))
	require.Len(t, backups, 1)
	require.Equal(t, domain.BackupTypeAuto, backups[0].Type)

	// Deleting while stopped is legal per the state machine table.
	rec = doJSON(t, h, http.MethodDelete, "/servers/"+created.ID, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestDeleteRejectedWhileRunningReturnsConflict(t *testing.T) {
	srv, sourceDir := newTestServer(t)
	h := srv.Handler()

	rec := doJSON(t, h, http.MethodPost, "/servers", importRequest{
		Name:       "Bravo",
		TemplateID: "minecraft",
		SourcePath: sourceDir,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created serverResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = doJSON(t, h, http.MethodPost, "/servers/"+created.ID+"/start", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, h, http.MethodDelete, "/servers/"+created.ID, nil)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestGetUnknownServerReturnsNotFound(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv.Handler(), http.MethodGet, "/servers/does-not-exist", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}
