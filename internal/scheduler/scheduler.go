// Package scheduler implements the nightly maintenance loop: every day
// at 04:00 America/New_York it backs up and stops every running server,
// restarting those that request it. A second daily task, armed for
// 00:00 UTC, recomputes the next Eastern fire time so the wall-clock
// target survives the spring/fall DST transitions.
//
// No scheduling/cron library appears anywhere in the example pack (the
// closest analogue, a newsletter cron scheduler, is itself hand-rolled
// on top of time.Timer), so this package follows the same idiom: plain
// time.Timer re-armed from a computed next-fire time, with the IANA
// timezone database (blank-imported time/tzdata) doing the DST
// arithmetic instead of hand-rolled second-Sunday/first-Sunday rules.
package scheduler

import (
	"context"
	"sync"
	"time"

	_ "time/tzdata"

	"github.com/rs/zerolog"

	"github.com/Lmdudester/Garcon/internal/domain"
)

const maintenanceHour = 4

// ServerLister is the subset of the orchestrator the scheduler needs to
// discover eligible servers without depending on its full surface.
type ServerLister interface {
	List() []OrchestratorView
	Stop(ctx context.Context, serverID string) error
	Start(ctx context.Context, serverID string) error
}

// OrchestratorView mirrors the fields of orchestrator.ServerView the
// scheduler needs, kept as a local type to avoid an import cycle
// between orchestrator and scheduler.
type OrchestratorView struct {
	ServerID                    string
	Status                      domain.Status
	AutoRestartAfterMaintenance bool
}

// BackupCreator is the subset of the backup manager the scheduler uses.
type BackupCreator interface {
	Create(ctx context.Context, serverID string, typ domain.BackupType, description string) (domain.BackupRecord, error)
}

// Scheduler owns the two daily timers.
type Scheduler struct {
	servers ServerLister
	backups BackupCreator
	log     zerolog.Logger
	loc     *time.Location

	mu             sync.Mutex
	maintenance    *time.Timer
	rearm          *time.Timer
	stopped        bool
}

// New constructs a Scheduler. Failure to load the America/New_York zone
// (missing tzdata) is treated as a startup error by the caller.
func New(servers ServerLister, backups BackupCreator, log zerolog.Logger) (*Scheduler, error) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return nil, err
	}
	return &Scheduler{
		servers: servers,
		backups: backups,
		log:     log.With().Str("component", "scheduler").Logger(),
		loc:     loc,
	}, nil
}

// Start arms both timers and returns immediately.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.armMaintenanceLocked(ctx)
	s.armRearmLocked(ctx)
}

// Stop cancels both scheduled tasks.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	if s.maintenance != nil {
		s.maintenance.Stop()
	}
	if s.rearm != nil {
		s.rearm.Stop()
	}
}

func (s *Scheduler) armMaintenanceLocked(ctx context.Context) {
	if s.stopped {
		return
	}
	next := nextMaintenanceFire(time.Now().In(s.loc), s.loc)
	delay := time.Until(next)
	s.maintenance = time.AfterFunc(delay, func() {
		s.runMaintenance(ctx)
		s.mu.Lock()
		s.armMaintenanceLocked(ctx)
		s.mu.Unlock()
	})
}

func (s *Scheduler) armRearmLocked(ctx context.Context) {
	if s.stopped {
		return
	}
	next := nextMidnightUTC(time.Now().UTC())
	delay := time.Until(next)
	s.rearm = time.AfterFunc(delay, func() {
		s.mu.Lock()
		// Recomputing the maintenance timer's next fire time here is
		// redundant with armMaintenanceLocked's own recomputation after
		// each run, but guards against a long-running process whose
		// maintenance timer was armed before a DST transition changed
		// the UTC offset for 04:00 Eastern.
		if s.maintenance != nil {
			s.maintenance.Stop()
			s.armMaintenanceLocked(ctx)
		}
		s.armRearmLocked(ctx)
		s.mu.Unlock()
	})
}

// nextMaintenanceFire returns the next 04:00 instant in loc strictly
// after now.
func nextMaintenanceFire(now time.Time, loc *time.Location) time.Time {
	candidate := time.Date(now.Year(), now.Month(), now.Day(), maintenanceHour, 0, 0, 0, loc)
	if !candidate.After(now) {
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate
}

func nextMidnightUTC(now time.Time) time.Time {
	candidate := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if !candidate.After(now) {
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate
}

// runMaintenance backs up, stops, and optionally restarts every
// currently running server. Failures on one server are logged and never
// abort the loop.
func (s *Scheduler) runMaintenance(ctx context.Context) {
	for _, view := range s.servers.List() {
		if view.Status != domain.StatusRunning {
			continue
		}

		log := s.log.With().Str("server_id", view.ServerID).Logger()

		if _, err := s.backups.Create(ctx, view.ServerID, domain.BackupTypeAuto, "nightly maintenance"); err != nil {
			log.Warn().Err(err).Msg("nightly maintenance backup failed")
			continue
		}

		if err := s.servers.Stop(ctx, view.ServerID); err != nil {
			log.Warn().Err(err).Msg("nightly maintenance stop failed")
			continue
		}

		if view.AutoRestartAfterMaintenance {
			if err := s.servers.Start(ctx, view.ServerID); err != nil {
				log.Warn().Err(err).Msg("nightly maintenance restart failed")
			}
		}
	}
}
