// Package app is the composition root: it wires the file store, template
// registry, execution providers, backup engine, orchestrator, event bus,
// scheduler, and HTTP facade into one Container. Grounded on the
// teacher's internal/app/container.go, generalized from a flat struct of
// pre-built dependencies into the New constructor that actually builds
// them, since the teacher's own wiring lived inline in cmd/server/main.go
// rather than in the app package itself.
package app

import (
	"context"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/Lmdudester/Garcon/internal/api"
	"github.com/Lmdudester/Garcon/internal/backup"
	"github.com/Lmdudester/Garcon/internal/config"
	"github.com/Lmdudester/Garcon/internal/eventbus"
	"github.com/Lmdudester/Garcon/internal/exec/container"
	"github.com/Lmdudester/Garcon/internal/exec/native"
	"github.com/Lmdudester/Garcon/internal/filestore"
	"github.com/Lmdudester/Garcon/internal/orchestrator"
	"github.com/Lmdudester/Garcon/internal/scheduler"
	"github.com/Lmdudester/Garcon/internal/template"
)

// Container holds every long-lived component of a running daemon.
type Container struct {
	Store     *filestore.Store
	Templates *template.Registry
	Backups   *backup.Manager
	Hub       *eventbus.Hub
	Orch      *orchestrator.Orchestrator
	Scheduler *scheduler.Scheduler
	API       *api.Server

	log zerolog.Logger
}

// New builds and wires every component named in cfg. It does not start
// long-running loops (event monitoring, the scheduler's timers) —
// call Start for that, once the caller is ready to accept requests.
func New(ctx context.Context, cfg config.Config, log zerolog.Logger) (*Container, error) {
	store := filestore.New()

	serversDir := filepath.Join(cfg.DataDir, "servers")
	hostServersDir := filepath.Join(cfg.HostDataDir, "servers")
	templatesDir := filepath.Join(cfg.DataDir, "templates")
	backupsDir := filepath.Join(cfg.DataDir, "backups")
	logsDir := filepath.Join(cfg.DataDir, "logs")
	configDir := filepath.Join(cfg.DataDir, "config")

	for _, dir := range []string{serversDir, templatesDir, backupsDir, logsDir, configDir} {
		if err := store.EnsureDir(dir); err != nil {
			return nil, err
		}
	}

	templates := template.New(templatesDir, store, log)
	if err := templates.Load(); err != nil {
		return nil, err
	}

	backups := backup.New(serversDir, backupsDir, store, cfg.MaxBackupsPerType, log)

	hub := eventbus.NewHub(log)
	go hub.Run()

	containerBackend, err := container.New(cfg.DockerHost, log)
	if err != nil {
		return nil, err
	}
	if err := containerBackend.CheckAvailability(ctx); err != nil {
		// Per the propagation policy, daemon unreachability at startup is
		// a warning, not a fatal error: the operator can still see
		// configured servers and recover once the daemon returns.
		log.Warn().Err(err).Msg("container daemon unreachable at startup")
	}

	nativeBackend := native.New(cfg.DataDir, logsDir, store, templates, log)

	providers := orchestrator.Providers{Container: containerBackend, Native: nativeBackend}

	orch := orchestrator.New(
		serversDir, hostServersDir,
		store, templates, backups, hub,
		providers, cfg.AutoBackupOnStop, log,
	)

	if err := orch.Reconcile(ctx); err != nil {
		return nil, err
	}

	sched, err := scheduler.New(&schedulerServers{orch: orch}, backups, log)
	if err != nil {
		return nil, err
	}

	apiServer := api.New(orch, templates, backups, hub, cfg, log)

	return &Container{
		Store:     store,
		Templates: templates,
		Backups:   backups,
		Hub:       hub,
		Orch:      orch,
		Scheduler: sched,
		API:       apiServer,
		log:       log.With().Str("component", "app").Logger(),
	}, nil
}

// Start arms the maintenance scheduler. The event bus and both execution
// providers are already live after New (Reconcile starts their event
// monitoring); this only concerns the scheduler's own timers, kept
// separate so tests can construct a Container without a background
// maintenance loop running.
func (c *Container) Start(ctx context.Context) {
	c.Scheduler.Start(ctx)
}

// Shutdown stops the scheduler and the event bus, in that order so no
// maintenance run is left publishing into a closed hub.
func (c *Container) Shutdown() {
	c.Scheduler.Stop()
	c.Hub.Stop()
}

// schedulerServers adapts *orchestrator.Orchestrator to
// scheduler.ServerLister, defined here rather than in either package to
// avoid an import cycle between orchestrator and scheduler.
type schedulerServers struct {
	orch *orchestrator.Orchestrator
}

func (s *schedulerServers) List() []scheduler.OrchestratorView {
	views := s.orch.List()
	out := make([]scheduler.OrchestratorView, 0, len(views))
	for _, v := range views {
		out = append(out, scheduler.OrchestratorView{
			ServerID:                    v.Config.ID,
			Status:                      v.Status,
			AutoRestartAfterMaintenance: v.Config.AutoRestartAfterMaintenance,
		})
	}
	return out
}

// Stop skips the orchestrator's own pre-stop auto backup: the scheduler
// already takes one immediately before calling this, and taking a
// second here would double-count against retention on every
// maintenance cycle.
func (s *schedulerServers) Stop(ctx context.Context, serverID string) error {
	return s.orch.StopWithoutAutoBackup(ctx, serverID)
}

func (s *schedulerServers) Start(ctx context.Context, serverID string) error {
	return s.orch.Start(ctx, serverID)
}
