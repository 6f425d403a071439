// Package orchestrator owns the per-server lifecycle state machine: the
// state machine table, the three-phase update protocol, crash handling
// via the execution provider's exit-callback registry, and startup
// reconciliation. A per-server mutex serializes every transition for
// that server; distinct servers transition concurrently.
//
// Grounded jointly on the teacher's internal/server/manager.go (id
// generation, port allocation, rollback-on-failure via RemoveTree) and
// internal/runner/supervisor.go (per-server mutex map, start/stop
// mechanics, crash-callback wiring).
package orchestrator

import (
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Lmdudester/Garcon/internal/apperr"
	"github.com/Lmdudester/Garcon/internal/backup"
	"github.com/Lmdudester/Garcon/internal/domain"
	"github.com/Lmdudester/Garcon/internal/eventbus"
	"github.com/Lmdudester/Garcon/internal/exec"
	"github.com/Lmdudester/Garcon/internal/filestore"
	"github.com/Lmdudester/Garcon/internal/template"
)

const sidecarName = ".garcon.yaml"

// Providers bundles the two execution backends the orchestrator picks
// between per template execution mode.
type Providers struct {
	Container exec.Provider
	Native    exec.Provider
}

// Orchestrator owns the per-server state machine, the three-phase update
// protocol, crash handling, and startup reconciliation.
type Orchestrator struct {
	serversDir     string
	hostServersDir string

	store     *filestore.Store
	templates *template.Registry
	backups   *backup.Manager
	hub       *eventbus.Hub
	providers Providers
	log       zerolog.Logger

	autoBackupOnStop bool

	mapMu   sync.Mutex
	servers map[string]*domain.RuntimeState
	locks   map[string]*sync.Mutex
}

// New constructs an Orchestrator. serversDir is the local path to
// <data>/servers; hostServersDir is the same directory as the container
// daemon sees it (equal to serversDir when the daemon runs on the same
// host filesystem view).
func New(
	serversDir, hostServersDir string,
	store *filestore.Store,
	templates *template.Registry,
	backups *backup.Manager,
	hub *eventbus.Hub,
	providers Providers,
	autoBackupOnStop bool,
	log zerolog.Logger,
) *Orchestrator {
	return &Orchestrator{
		serversDir:       serversDir,
		hostServersDir:   hostServersDir,
		store:            store,
		templates:        templates,
		backups:          backups,
		hub:              hub,
		providers:        providers,
		autoBackupOnStop: autoBackupOnStop,
		log:              log.With().Str("component", "orchestrator").Logger(),
		servers:          make(map[string]*domain.RuntimeState),
		locks:            make(map[string]*sync.Mutex),
	}
}

func (o *Orchestrator) providerFor(tmpl *domain.Template) exec.Provider {
	if tmpl != nil && tmpl.ExecutionMode == domain.ExecutionModeNative {
		return o.providers.Native
	}
	return o.providers.Container
}

func (o *Orchestrator) dataDir(serverID string) string {
	return filepath.Join(o.serversDir, serverID)
}

func (o *Orchestrator) hostDataDir(serverID string) string {
	return filepath.Join(o.hostServersDir, serverID)
}

func (o *Orchestrator) sidecarPath(serverID string) string {
	return filepath.Join(o.dataDir(serverID), sidecarName)
}

// startPathFor resolves the DataPath an exec.Provider should see: the
// container backend sees the host-visible bind-mount path, the native
// backend runs directly against the real local path.
func (o *Orchestrator) startPathFor(tmpl *domain.Template, serverID string) string {
	if tmpl != nil && tmpl.ExecutionMode == domain.ExecutionModeNative {
		return o.dataDir(serverID)
	}
	return o.hostDataDir(serverID)
}

// lockFor returns the per-server mutex, creating it on first use. The
// map mutex guards only the lock map and the servers map, and is never
// held across a transition.
func (o *Orchestrator) lockFor(serverID string) *sync.Mutex {
	o.mapMu.Lock()
	defer o.mapMu.Unlock()
	l, ok := o.locks[serverID]
	if !ok {
		l = &sync.Mutex{}
		o.locks[serverID] = l
	}
	return l
}

func (o *Orchestrator) get(serverID string) (*domain.RuntimeState, error) {
	o.mapMu.Lock()
	defer o.mapMu.Unlock()
	rs, ok := o.servers[serverID]
	if !ok {
		return nil, apperr.NotFound("server %q not found", serverID)
	}
	return rs, nil
}

func (o *Orchestrator) publishStatus(rs *domain.RuntimeState) {
	o.hub.Publish(eventbus.StatusEvent(rs.Config.ID, string(rs.Status), rs.StartedAt, string(rs.UpdateStage)))
}

func (o *Orchestrator) publishMembership(serverID string, action eventbus.MembershipAction) {
	o.hub.Publish(eventbus.MembershipEvent(serverID, action))
}

// persistConfig writes the sidecar for the server's current in-memory
// configuration, after a config patch, a reorder, a restore or an update
// stage change (plus UpdatedAt on a successful apply); Status lives only in
// RuntimeState and is rebuilt by Reconcile on every process start.
func (o *Orchestrator) persistConfig(rs *domain.RuntimeState) error {
	return o.store.WriteYAML(o.sidecarPath(rs.Config.ID), rs.Config)
}

// ServerView is the response DTO for the server list/detail endpoints:
// the persisted configuration layered with the current runtime state.
type ServerView struct {
	Config      domain.ServerConfig
	Status      domain.Status
	StartedAt   *time.Time
	UpdateStage domain.UpdateStage
}

func toView(rs *domain.RuntimeState) ServerView {
	return ServerView{
		Config:      *rs.Config,
		Status:      rs.Status,
		StartedAt:   rs.StartedAt,
		UpdateStage: rs.UpdateStage,
	}
}

// List returns every known server, ordered by the operator-controlled
// Order field (ties broken by name for stable output). Each server's
// view is snapshotted under its own per-server lock so a concurrent
// transition is never observed half-applied.
func (o *Orchestrator) List() []ServerView {
	o.mapMu.Lock()
	ids := make([]string, 0, len(o.servers))
	for id := range o.servers {
		ids = append(ids, id)
	}
	o.mapMu.Unlock()

	views := make([]ServerView, 0, len(ids))
	for _, id := range ids {
		lock := o.lockFor(id)
		lock.Lock()
		if rs, err := o.get(id); err == nil {
			views = append(views, toView(rs))
		}
		lock.Unlock()
	}

	sort.Slice(views, func(i, j int) bool {
		if views[i].Config.Order != views[j].Config.Order {
			return views[i].Config.Order < views[j].Config.Order
		}
		return views[i].Config.Name < views[j].Config.Name
	})
	return views
}

// Get returns one server's current view, failing not-found when absent.
// It is snapshotted under the server's own lock for the same reason as
// List.
func (o *Orchestrator) Get(serverID string) (ServerView, error) {
	lock := o.lockFor(serverID)
	lock.Lock()
	defer lock.Unlock()

	rs, err := o.get(serverID)
	if err != nil {
		return ServerView{}, err
	}
	return toView(rs), nil
}

// SetOrder applies an operator-supplied display order to the named
// servers, persisting each sidecar. Unknown ids are skipped with a
// warning rather than aborting the whole reorder.
func (o *Orchestrator) SetOrder(order []string) error {
	for i, id := range order {
		lock := o.lockFor(id)
		lock.Lock()
		rs, err := o.get(id)
		if err != nil {
			lock.Unlock()
			o.log.Warn().Str("server_id", id).Msg("skipping unknown server in order update")
			continue
		}
		rs.Config.Order = i
		err = o.persistConfig(rs)
		lock.Unlock()
		if err != nil {
			return err
		}
	}
	return nil
}
