package orchestrator

import (
	"context"
	"time"

	"github.com/Lmdudester/Garcon/internal/apperr"
	"github.com/Lmdudester/Garcon/internal/domain"
	"github.com/Lmdudester/Garcon/internal/eventbus"
)

// InitiateResult is returned by InitiateUpdate so the operator can
// locate where to drop new files.
type InitiateResult struct {
	SourcePath      string
	BackupTimestamp time.Time
	BackupPath      string
}

// InitiateUpdate stops a running server first, takes a blocking
// pre-update backup, and marks the sidecar update_stage=initiated.
func (o *Orchestrator) InitiateUpdate(ctx context.Context, serverID string) (InitiateResult, error) {
	lock := o.lockFor(serverID)
	lock.Lock()
	defer lock.Unlock()

	rs, err := o.get(serverID)
	if err != nil {
		return InitiateResult{}, err
	}
	if rs.UpdateStage != domain.UpdateStageNone {
		return InitiateResult{}, apperr.Conflict("update already in progress for server %q", serverID)
	}

	switch rs.Status {
	case domain.StatusRunning:
		if err := o.stopLocked(ctx, serverID, o.autoBackupOnStop); err != nil {
			return InitiateResult{}, err
		}
	case domain.StatusStopped:
	default:
		return InitiateResult{}, apperr.Conflict("cannot initiate update for server %q from status %s", serverID, rs.Status)
	}

	record, err := o.backups.Create(ctx, serverID, domain.BackupTypePreUpdate, "")
	if err != nil {
		return InitiateResult{}, err
	}

	rs.Config.UpdateStage = domain.UpdateStageInitiated
	if err := o.persistConfig(rs); err != nil {
		return InitiateResult{}, err
	}

	ts := record.Timestamp
	rs.UpdateStage = domain.UpdateStageInitiated
	rs.PreUpdateBackupTime = &ts
	rs.Status = domain.StatusUpdating
	o.publishStatus(rs)

	return InitiateResult{
		SourcePath:      rs.Config.SourcePath,
		BackupTimestamp: record.Timestamp,
		BackupPath:      record.Path,
	}, nil
}

// ApplyUpdate copies the source path over the server directory (pure
// copy, no delete-then-copy) and clears the update stage on success.
func (o *Orchestrator) ApplyUpdate(ctx context.Context, serverID string) error {
	lock := o.lockFor(serverID)
	lock.Lock()
	defer lock.Unlock()

	rs, err := o.get(serverID)
	if err != nil {
		return err
	}
	if rs.UpdateStage != domain.UpdateStageInitiated {
		return apperr.Conflict("cannot apply update for server %q from stage %s", serverID, rs.UpdateStage)
	}

	rs.Config.UpdateStage = domain.UpdateStageApplying
	if err := o.persistConfig(rs); err != nil {
		return err
	}
	rs.UpdateStage = domain.UpdateStageApplying

	if err := o.store.CopyTree(rs.Config.SourcePath, o.dataDir(serverID)); err != nil {
		rs.Config.UpdateStage = domain.UpdateStageInitiated
		_ = o.persistConfig(rs)
		rs.UpdateStage = domain.UpdateStageInitiated
		rs.Status = domain.StatusError
		o.publishStatus(rs)
		return err
	}

	rs.Config.UpdatedAt = time.Now().UTC()
	rs.Config.UpdateStage = domain.UpdateStageNone
	if err := o.persistConfig(rs); err != nil {
		return err
	}

	rs.UpdateStage = domain.UpdateStageNone
	rs.PreUpdateBackupTime = nil
	rs.Status = domain.StatusStopped
	o.publishStatus(rs)
	o.publishMembership(serverID, eventbus.MembershipUpdated)
	return nil
}

// RestoreResult is returned by Restore.
type RestoreResult struct {
	ServerID         string
	RestoredFrom     time.Time
	PreRestoreBackup domain.BackupRecord
}

// Restore is only legal from stopped with no update in progress; both
// preconditions belong to the orchestrator, not the backup engine, since
// the shared server directory must not be touched mid-transition.
func (o *Orchestrator) Restore(ctx context.Context, serverID string, ts time.Time) (RestoreResult, error) {
	lock := o.lockFor(serverID)
	lock.Lock()
	defer lock.Unlock()

	rs, err := o.get(serverID)
	if err != nil {
		return RestoreResult{}, err
	}
	if rs.Status != domain.StatusStopped {
		return RestoreResult{}, apperr.Conflict("cannot restore server %q from status %s", serverID, rs.Status)
	}
	if rs.UpdateStage != domain.UpdateStageNone {
		return RestoreResult{}, apperr.Conflict("cannot restore server %q while an update is in progress", serverID)
	}

	result, err := o.backups.Restore(ctx, serverID, ts)
	if err != nil {
		return RestoreResult{}, err
	}

	rs.Config.UpdatedAt = time.Now().UTC()
	if err := o.persistConfig(rs); err != nil {
		return RestoreResult{}, err
	}
	o.publishMembership(serverID, eventbus.MembershipUpdated)

	return RestoreResult{
		ServerID:         result.ServerID,
		RestoredFrom:     result.RestoredFrom,
		PreRestoreBackup: result.PreRestoreBackup,
	}, nil
}

// CancelUpdate clears the update stage, returning to stopped. The
// pre-update backup is retained for a manual restore.
func (o *Orchestrator) CancelUpdate(ctx context.Context, serverID string) error {
	lock := o.lockFor(serverID)
	lock.Lock()
	defer lock.Unlock()

	rs, err := o.get(serverID)
	if err != nil {
		return err
	}
	if rs.UpdateStage == domain.UpdateStageNone {
		return apperr.Conflict("no update in progress for server %q", serverID)
	}

	rs.Config.UpdateStage = domain.UpdateStageNone
	if err := o.persistConfig(rs); err != nil {
		return err
	}

	rs.UpdateStage = domain.UpdateStageNone
	rs.PreUpdateBackupTime = nil
	rs.Status = domain.StatusStopped
	o.publishStatus(rs)
	return nil
}
