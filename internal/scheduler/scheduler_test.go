package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/Lmdudester/Garcon/internal/domain"
)

type fakeServers struct {
	mu       sync.Mutex
	views    []OrchestratorView
	stopped  []string
	started  []string
	stopErr  error
}

func (f *fakeServers) List() []OrchestratorView { return f.views }

func (f *fakeServers) Stop(ctx context.Context, serverID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopErr != nil {
		return f.stopErr
	}
	f.stopped = append(f.stopped, serverID)
	return nil
}

func (f *fakeServers) Start(ctx context.Context, serverID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, serverID)
	return nil
}

type fakeBackups struct {
	mu      sync.Mutex
	created []string
	failFor map[string]bool
}

func (f *fakeBackups) Create(ctx context.Context, serverID string, typ domain.BackupType, description string) (domain.BackupRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[serverID] {
		return domain.BackupRecord{}, context.DeadlineExceeded
	}
	f.created = append(f.created, serverID)
	return domain.BackupRecord{ServerID: serverID, Type: typ}, nil
}

func TestNextMaintenanceFireRollsToNextDayWhenPast(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	now := time.Date(2026, 3, 14, 5, 0, 0, 0, loc)
	next := nextMaintenanceFire(now, loc)
	require.Equal(t, 4, next.Hour())
	require.Equal(t, 15, next.Day())
}

func TestNextMaintenanceFireSameDayWhenBefore(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	now := time.Date(2026, 3, 14, 1, 0, 0, 0, loc)
	next := nextMaintenanceFire(now, loc)
	require.Equal(t, 4, next.Hour())
	require.Equal(t, 14, next.Day())
}

func TestNextMaintenanceFireAcrossSpringForwardStaysAtFourAM(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// 2026-03-08 is the US spring-forward date; a fire computed the day
	// before must still land at wall-clock 04:00 the day after.
	now := time.Date(2026, 3, 7, 5, 0, 0, 0, loc)
	next := nextMaintenanceFire(now, loc)
	require.Equal(t, 4, next.Hour())
	require.Equal(t, 8, next.Day())
}

func TestRunMaintenanceBacksUpStopsAndRestartsEligibleServers(t *testing.T) {
	servers := &fakeServers{views: []OrchestratorView{
		{ServerID: "running-restart", Status: domain.StatusRunning, AutoRestartAfterMaintenance: true},
		{ServerID: "running-no-restart", Status: domain.StatusRunning, AutoRestartAfterMaintenance: false},
		{ServerID: "already-stopped", Status: domain.StatusStopped},
	}}
	backups := &fakeBackups{failFor: map[string]bool{}}

	s := &Scheduler{servers: servers, backups: backups, log: zerolog.Nop()}
	s.runMaintenance(context.Background())

	require.ElementsMatch(t, []string{"running-restart", "running-no-restart"}, backups.created)
	require.ElementsMatch(t, []string{"running-restart", "running-no-restart"}, servers.stopped)
	require.Equal(t, []string{"running-restart"}, servers.started)
}

func TestRunMaintenanceSkipsRestartWhenBackupFails(t *testing.T) {
	servers := &fakeServers{views: []OrchestratorView{
		{ServerID: "flaky", Status: domain.StatusRunning, AutoRestartAfterMaintenance: true},
	}}
	backups := &fakeBackups{failFor: map[string]bool{"flaky": true}}

	s := &Scheduler{servers: servers, backups: backups, log: zerolog.Nop()}
	s.runMaintenance(context.Background())

	require.Empty(t, servers.stopped)
	require.Empty(t, servers.started)
}
