package orchestrator

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/Lmdudester/Garcon/internal/apperr"
	"github.com/Lmdudester/Garcon/internal/domain"
	"github.com/Lmdudester/Garcon/internal/eventbus"
	"github.com/Lmdudester/Garcon/internal/exec"
)

// ImportRequest is the operator-supplied input to Import.
type ImportRequest struct {
	Name        string
	TemplateID  string
	SourcePath  string
	Ports       []domain.PortMapping
	Env         map[string]string
	MemoryLimit string
	CPUQuota    float64
}

// Import validates the source directory and template, copies the
// source tree into a freshly generated managed server directory,
// synthesises ports and merges environment defaults, persists the
// sidecar, and publishes a membership(created) event.
func (o *Orchestrator) Import(ctx context.Context, req ImportRequest) (ServerView, error) {
	if req.Name == "" {
		return ServerView{}, apperr.Validation("name is required")
	}
	if !o.store.IsDir(req.SourcePath) {
		return ServerView{}, apperr.Validation("source path %q is not a directory", req.SourcePath)
	}

	tmpl, err := o.templates.Get(req.TemplateID)
	if err != nil {
		return ServerView{}, err
	}
	for _, rf := range tmpl.RequiredFiles {
		if !o.store.Exists(filepath.Join(req.SourcePath, rf)) {
			return ServerView{}, apperr.Validation("required file %q missing from source path", rf)
		}
	}

	suffix, err := randomSuffix()
	if err != nil {
		return ServerView{}, apperr.Wrap(apperr.KindInternal, "generate server id", err)
	}
	id := fmt.Sprintf("%s-%s", slugify(req.Name), suffix)

	lock := o.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	dest := o.dataDir(id)
	if err := o.store.CopyTree(req.SourcePath, dest); err != nil {
		_ = o.store.RemoveTree(dest)
		return ServerView{}, err
	}

	ports := req.Ports
	if len(ports) == 0 {
		for _, dp := range tmpl.DefaultPorts {
			ports = append(ports, domain.PortMapping{
				HostPort:      dp.ContainerPort,
				ContainerPort: dp.ContainerPort,
				Protocol:      dp.Protocol,
			})
		}
	}

	env := map[string]string{}
	if tmpl.Container != nil {
		for k, v := range tmpl.Container.Env {
			env[k] = v
		}
	}
	for k, v := range req.Env {
		env[k] = v
	}

	now := time.Now().UTC()
	cfg := &domain.ServerConfig{
		ID:          id,
		Name:        req.Name,
		TemplateID:  tmpl.ID,
		SourcePath:  req.SourcePath,
		CreatedAt:   now,
		UpdatedAt:   now,
		Ports:       ports,
		Env:         env,
		MemoryLimit: req.MemoryLimit,
		CPUQuota:    req.CPUQuota,
		UpdateStage: domain.UpdateStageNone,
	}

	if err := o.store.WriteYAML(o.sidecarPath(id), cfg); err != nil {
		_ = o.store.RemoveTree(dest)
		return ServerView{}, err
	}

	rs := &domain.RuntimeState{Config: cfg, Status: domain.StatusStopped, UpdateStage: domain.UpdateStageNone}

	o.mapMu.Lock()
	o.servers[id] = rs
	o.mapMu.Unlock()

	o.publishMembership(id, eventbus.MembershipCreated)

	return toView(rs), nil
}

// ConfigPatch is the operator-supplied partial update to a server's
// configuration; nil fields are left untouched. Ports and env are only
// meaningful while the server is stopped, since the running backend
// artefact was created from the values at start time.
type ConfigPatch struct {
	Name                        *string
	Env                         map[string]string
	Ports                       []domain.PortMapping
	MemoryLimit                 *string
	CPUQuota                    *float64
	AutoRestartAfterMaintenance *bool
}

// UpdateConfig applies a partial configuration change and persists the
// sidecar. Legal from any status: it never touches the backend artefact,
// only the record the next start reads.
func (o *Orchestrator) UpdateConfig(serverID string, patch ConfigPatch) (ServerView, error) {
	lock := o.lockFor(serverID)
	lock.Lock()
	defer lock.Unlock()

	rs, err := o.get(serverID)
	if err != nil {
		return ServerView{}, err
	}

	if patch.Name != nil {
		if *patch.Name == "" {
			return ServerView{}, apperr.Validation("name cannot be empty")
		}
		rs.Config.Name = *patch.Name
	}
	if patch.Env != nil {
		rs.Config.Env = patch.Env
	}
	if patch.Ports != nil {
		rs.Config.Ports = patch.Ports
	}
	if patch.MemoryLimit != nil {
		rs.Config.MemoryLimit = *patch.MemoryLimit
	}
	if patch.CPUQuota != nil {
		rs.Config.CPUQuota = *patch.CPUQuota
	}
	if patch.AutoRestartAfterMaintenance != nil {
		rs.Config.AutoRestartAfterMaintenance = *patch.AutoRestartAfterMaintenance
	}
	rs.Config.UpdatedAt = time.Now().UTC()

	if err := o.persistConfig(rs); err != nil {
		return ServerView{}, err
	}
	o.publishMembership(serverID, eventbus.MembershipUpdated)
	return toView(rs), nil
}

// Delete is only legal from stopped or error (per the state machine
// table; every other state rejects it). It removes the backend
// artefact best-effort, deletes the server directory, and preserves
// backups.
func (o *Orchestrator) Delete(ctx context.Context, serverID string) error {
	lock := o.lockFor(serverID)
	lock.Lock()
	defer lock.Unlock()

	rs, err := o.get(serverID)
	if err != nil {
		return err
	}
	if rs.Status != domain.StatusStopped && rs.Status != domain.StatusError {
		return apperr.Conflict("cannot delete server %q from status %s", serverID, rs.Status)
	}

	tmpl := o.templates.Lookup(rs.Config.TemplateID)
	if err := o.providerFor(tmpl).Remove(ctx, serverID); err != nil {
		o.log.Warn().Err(err).Str("server_id", serverID).Msg("failed to remove backend artefact during delete")
	}

	if err := o.store.RemoveTree(o.dataDir(serverID)); err != nil {
		return err
	}

	o.mapMu.Lock()
	delete(o.servers, serverID)
	delete(o.locks, serverID)
	o.mapMu.Unlock()

	o.publishMembership(serverID, eventbus.MembershipDeleted)
	return nil
}

// Start is only legal from stopped with no update in progress.
func (o *Orchestrator) Start(ctx context.Context, serverID string) error {
	lock := o.lockFor(serverID)
	lock.Lock()
	defer lock.Unlock()
	return o.startLocked(ctx, serverID)
}

func (o *Orchestrator) startLocked(ctx context.Context, serverID string) error {
	rs, err := o.get(serverID)
	if err != nil {
		return err
	}
	if rs.Status != domain.StatusStopped {
		return apperr.Conflict("cannot start server %q from status %s", serverID, rs.Status)
	}
	if rs.UpdateStage != domain.UpdateStageNone {
		return apperr.Conflict("cannot start server %q while an update is in progress", serverID)
	}

	tmpl, err := o.templates.Get(rs.Config.TemplateID)
	if err != nil {
		return err
	}

	rs.Status = domain.StatusStarting
	o.publishStatus(rs)

	_, err = o.providerFor(tmpl).Start(ctx, exec.StartConfig{
		Server:   rs.Config,
		Template: tmpl,
		DataPath: o.startPathFor(tmpl, serverID),
	})
	if err != nil {
		rs.Status = domain.StatusError
		o.publishStatus(rs)
		return err
	}

	now := time.Now().UTC()
	rs.Status = domain.StatusRunning
	rs.StartedAt = &now
	o.publishStatus(rs)
	return nil
}

// Stop is only legal from running. If configured, an auto backup is
// created first; its failure aborts the stop and leaves status=error.
func (o *Orchestrator) Stop(ctx context.Context, serverID string) error {
	lock := o.lockFor(serverID)
	lock.Lock()
	defer lock.Unlock()
	return o.stopLocked(ctx, serverID, o.autoBackupOnStop)
}

// StopWithoutAutoBackup stops a running server without taking the
// configured pre-stop auto backup, for callers that have already taken
// their own backup immediately beforehand (the maintenance scheduler
// backs up every eligible server, then stops it; taking a second backup
// here would double retention-cap churn for no benefit).
func (o *Orchestrator) StopWithoutAutoBackup(ctx context.Context, serverID string) error {
	lock := o.lockFor(serverID)
	lock.Lock()
	defer lock.Unlock()
	return o.stopLocked(ctx, serverID, false)
}

func (o *Orchestrator) stopLocked(ctx context.Context, serverID string, takeBackup bool) error {
	rs, err := o.get(serverID)
	if err != nil {
		return err
	}
	if rs.Status != domain.StatusRunning {
		return apperr.Conflict("cannot stop server %q from status %s", serverID, rs.Status)
	}

	tmpl, err := o.templates.Get(rs.Config.TemplateID)
	if err != nil {
		return err
	}

	rs.Status = domain.StatusStopping
	o.publishStatus(rs)

	if takeBackup {
		if _, err := o.backups.Create(ctx, serverID, domain.BackupTypeAuto, ""); err != nil {
			rs.Status = domain.StatusError
			o.publishStatus(rs)
			return err
		}
	}

	if err := o.providerFor(tmpl).Stop(ctx, serverID, tmpl, tmpl.StopTimeout()); err != nil {
		rs.Status = domain.StatusError
		o.publishStatus(rs)
		return err
	}

	rs.Status = domain.StatusStopped
	rs.StartedAt = nil
	o.publishStatus(rs)
	return nil
}

// Restart stops then starts; a failure in either half bubbles up with
// the state reflecting wherever it stopped.
func (o *Orchestrator) Restart(ctx context.Context, serverID string) error {
	lock := o.lockFor(serverID)
	lock.Lock()
	defer lock.Unlock()

	if err := o.stopLocked(ctx, serverID, o.autoBackupOnStop); err != nil {
		return err
	}
	return o.startLocked(ctx, serverID)
}

// AcknowledgeCrash is only legal from error. It removes the backend
// artefact and returns the server to stopped.
func (o *Orchestrator) AcknowledgeCrash(ctx context.Context, serverID string) error {
	lock := o.lockFor(serverID)
	lock.Lock()
	defer lock.Unlock()

	rs, err := o.get(serverID)
	if err != nil {
		return err
	}
	if rs.Status != domain.StatusError {
		return apperr.Conflict("cannot acknowledge crash for server %q from status %s", serverID, rs.Status)
	}

	tmpl := o.templates.Lookup(rs.Config.TemplateID)
	if err := o.providerFor(tmpl).Remove(ctx, serverID); err != nil {
		o.log.Warn().Err(err).Str("server_id", serverID).Msg("failed to remove backend artefact during crash acknowledgement")
	}

	rs.Status = domain.StatusStopped
	rs.StartedAt = nil
	o.publishStatus(rs)
	return nil
}
