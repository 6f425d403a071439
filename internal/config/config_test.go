package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	require.Equal(t, "0.0.0.0", cfg.Host)
	require.Equal(t, 3001, cfg.Port)
	require.Equal(t, "./data", cfg.DataDir)
	require.Equal(t, cfg.DataDir, cfg.HostDataDir)
	require.Equal(t, 5, cfg.MaxBackupsPerType)
	require.True(t, cfg.AutoBackupOnStop)
}

func TestLoadHostDataDirOverride(t *testing.T) {
	t.Setenv("DATA_DIR", "/data")
	t.Setenv("HOST_DATA_DIR", "/srv/garcon-data")

	cfg := Load()
	require.Equal(t, "/data", cfg.DataDir)
	require.Equal(t, "/srv/garcon-data", cfg.HostDataDir)
}

func TestLoadBooleanAndIntParsing(t *testing.T) {
	t.Setenv("AUTO_BACKUP_ON_STOP", "false")
	t.Setenv("MAX_BACKUPS_PER_TYPE", "3")

	cfg := Load()
	require.False(t, cfg.AutoBackupOnStop)
	require.Equal(t, 3, cfg.MaxBackupsPerType)
}
