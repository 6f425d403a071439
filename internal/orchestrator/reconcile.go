package orchestrator

import (
	"context"
	"path/filepath"
	"time"

	"github.com/Lmdudester/Garcon/internal/domain"
	"github.com/Lmdudester/Garcon/internal/exec"
)

// Reconcile loads every server's sidecar from the servers directory
// (directories lacking a valid sidecar are skipped with a warning),
// asks each execution backend for its ground-truth status, derives the
// initial in-memory state, then registers the crash callback and starts
// event monitoring on both backends. It must run once at startup before
// the facade accepts requests.
func (o *Orchestrator) Reconcile(ctx context.Context) error {
	names, err := o.store.ListDir(o.serversDir, "")
	if err != nil {
		return err
	}

	for _, name := range names {
		dir := filepath.Join(o.serversDir, name)
		if !o.store.IsDir(dir) {
			continue
		}

		sidecar := filepath.Join(dir, sidecarName)
		if !o.store.Exists(sidecar) {
			o.log.Warn().Str("dir", name).Msg("skipping server directory without a valid sidecar")
			continue
		}

		var cfg domain.ServerConfig
		if err := o.store.ReadYAML(sidecar, &cfg); err != nil {
			o.log.Warn().Err(err).Str("dir", name).Msg("skipping server directory with an unreadable sidecar")
			continue
		}

		rs := &domain.RuntimeState{Config: &cfg, UpdateStage: cfg.UpdateStage}

		tmpl := o.templates.Lookup(cfg.TemplateID)
		status, statusErr := o.providerFor(tmpl).GetProcessStatus(ctx, cfg.ID)
		switch {
		case statusErr != nil:
			o.log.Warn().Err(statusErr).Str("server_id", cfg.ID).Msg("execution backend unreachable during reconciliation, assuming stopped")
			rs.Status = o.reconciledRestStatus(cfg)
		case status.Running:
			now := time.Now().UTC()
			rs.Status = domain.StatusRunning
			rs.StartedAt = &now
		default:
			rs.Status = o.reconciledRestStatus(cfg)
		}

		o.mapMu.Lock()
		o.servers[cfg.ID] = rs
		o.mapMu.Unlock()
	}

	o.providers.Container.OnProcessExit(o.handleExit)
	o.providers.Container.StartEventMonitoring(ctx)
	o.providers.Native.OnProcessExit(o.handleExit)
	o.providers.Native.StartEventMonitoring(ctx)

	return nil
}

// reconciledRestStatus implements the "backend reports absent/stopped"
// branch: updating if a sidecar update was in flight, stopped
// otherwise. This is the flagged open question (SPEC_FULL.md/DESIGN.md):
// if the backend was unreachable, a server with update_stage=none is
// still reported stopped regardless of whether it is actually running.
func (o *Orchestrator) reconciledRestStatus(cfg domain.ServerConfig) domain.Status {
	if cfg.UpdateStage != domain.UpdateStageNone {
		return domain.StatusUpdating
	}
	return domain.StatusStopped
}

// handleExit is the crash callback registered with both execution
// backends. It reacts only when the orchestrator believed the server to
// be starting or running; exits observed while stopping, updating, or
// already stopped are either expected or already reconciled.
func (o *Orchestrator) handleExit(ev exec.ExitEvent) {
	lock := o.lockFor(ev.ServerID)
	lock.Lock()
	defer lock.Unlock()

	o.mapMu.Lock()
	rs, ok := o.servers[ev.ServerID]
	o.mapMu.Unlock()
	if !ok {
		return
	}

	if rs.Status != domain.StatusRunning && rs.Status != domain.StatusStarting {
		return
	}

	rs.Status = domain.StatusError
	rs.StartedAt = nil
	o.publishStatus(rs)
}
