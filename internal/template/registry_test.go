package template

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/Lmdudester/Garcon/internal/domain"
	"github.com/Lmdudester/Garcon/internal/filestore"
)

func newRegistry(t *testing.T) (*Registry, string) {
	t.Helper()
	dir := t.TempDir()
	reg := New(dir, filestore.New(), zerolog.Nop())
	return reg, dir
}

func TestLoadSeedsBuiltinsOnce(t *testing.T) {
	reg, dir := newRegistry(t)
	require.NoError(t, reg.Load())

	mc, err := reg.Get("minecraft")
	require.NoError(t, err)
	require.Equal(t, domain.ExecutionModeContainer, mc.ExecutionMode)

	// Operator edits the seeded file; a second Load must not clobber it.
	path := filepath.Join(dir, "minecraft.yaml")
	custom := []byte("id: minecraft\nname: Renamed\nexecutionMode: container\ncontainer:\n  image: custom:latest\n  mountPath: /data\n")
	require.NoError(t, os.WriteFile(path, custom, 0o644))

	require.NoError(t, reg.Load())
	mc2, err := reg.Get("minecraft")
	require.NoError(t, err)
	require.Equal(t, "Renamed", mc2.Name)
}

func TestGetUnknownIsNotFound(t *testing.T) {
	reg, _ := newRegistry(t)
	require.NoError(t, reg.Load())

	_, err := reg.Get("does-not-exist")
	require.Error(t, err)
}

func TestLoadSkipsInvalidDocumentButKeepsOthers(t *testing.T) {
	reg, dir := newRegistry(t)
	bad := "id: broken\nexecutionMode: container\n" // missing container block
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte(bad), 0o644))

	require.NoError(t, reg.Load())

	_, err := reg.Get("broken")
	require.Error(t, err)

	_, err = reg.Get("minecraft")
	require.NoError(t, err)
}

func TestListTrimsSecretsAndCommands(t *testing.T) {
	reg, _ := newRegistry(t)
	require.NoError(t, reg.Load())

	for _, tpl := range reg.List() {
		require.Empty(t, tpl.RCON.Password)
		require.Empty(t, tpl.Command)
	}
}
