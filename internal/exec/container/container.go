// Package container implements the container execution backend on top of
// the Docker Engine API client (github.com/docker/docker), grounded on
// the client SDK usage in the spacechunks-explorer example repo and on
// the general pull/create/start/stop lifecycle shape of cuemby-warren's
// containerd runtime and worker packages.
package container

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/events"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	"github.com/rs/zerolog"

	"github.com/Lmdudester/Garcon/internal/apperr"
	"github.com/Lmdudester/Garcon/internal/domain"
	"github.com/Lmdudester/Garcon/internal/exec"
)

const (
	namePrefix   = "garcon-"
	labelManaged = "managed"
	labelServer  = "server_id"

	// containerUser is the fixed non-root uid:gid every managed container
	// runs as. Game-server images in the pack (minecraft, valheim,
	// vrising) all run fine as an arbitrary uid with the mount path
	// writable, and running as root inside the container is unnecessary
	// privilege the host gains nothing from granting.
	containerUser = "1000:1000"
)

// Backend implements exec.Provider against a Docker Engine daemon.
type Backend struct {
	cli *client.Client
	log zerolog.Logger

	fanout *exec.ExitFanout

	mu    sync.Mutex
	byID  map[string]string // server id -> container id, a cache that may lag ground truth
}

// New constructs a Backend. dockerHost is the daemon socket; empty
// selects the OS default (DOCKER_HOST environment variable or the
// platform default socket), matching the external interface's
// DOCKER_HOST variable.
func New(dockerHost string, log zerolog.Logger) (*Backend, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if dockerHost != "" {
		opts = append(opts, client.WithHost(dockerHost))
	}
	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDocker, "create docker client", err)
	}
	return &Backend{
		cli:    cli,
		log:    log.With().Str("component", "container-backend").Logger(),
		fanout: exec.NewExitFanout(),
		byID:   make(map[string]string),
	}, nil
}

func containerName(serverID string) string { return namePrefix + serverID }

func (b *Backend) CheckAvailability(ctx context.Context) error {
	if _, err := b.cli.Ping(ctx); err != nil {
		return apperr.Wrap(apperr.KindDocker, "container daemon unreachable", err)
	}
	return nil
}

func (b *Backend) StartEventMonitoring(ctx context.Context) {
	go b.monitorEvents(ctx)
}

func (b *Backend) monitorEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		args := filters.NewArgs(
			filters.Arg("type", "container"),
			filters.Arg("event", "die"),
			filters.Arg("event", "stop"),
			filters.Arg("label", labelManaged+"=true"),
		)
		msgs, errs := b.cli.Events(ctx, events.ListOptions{Filters: args})

	stream:
		for {
			select {
			case <-ctx.Done():
				return
			case err := <-errs:
				if err != nil && err != io.EOF {
					b.log.Warn().Err(err).Msg("event stream error, reopening")
				}
				break stream
			case msg := <-msgs:
				b.handleEvent(msg)
			}
		}
	}
}

func (b *Backend) handleEvent(msg events.Message) {
	serverID := msg.Actor.Attributes[labelServer]
	if serverID == "" {
		return
	}
	var exitCode *int
	if raw, ok := msg.Actor.Attributes["exitCode"]; ok {
		if n, err := strconv.Atoi(raw); err == nil {
			exitCode = &n
		}
	}
	b.fanout.Dispatch(exec.ExitEvent{ServerID: serverID, ExitCode: exitCode})
}

func (b *Backend) OnProcessExit(cb exec.ExitCallback) exec.Unregister {
	return b.fanout.On(cb)
}

func (b *Backend) GetProcessStatus(ctx context.Context, serverID string) (exec.ProcessStatus, error) {
	id, ok := b.lookupID(ctx, serverID)
	if !ok {
		return exec.ProcessStatus{Exists: false}, nil
	}
	inspect, err := b.cli.ContainerInspect(ctx, id)
	if err != nil {
		if client.IsErrNotFound(err) {
			b.forgetID(serverID)
			return exec.ProcessStatus{Exists: false}, nil
		}
		return exec.ProcessStatus{}, apperr.Wrap(apperr.KindDocker, "inspect container", err)
	}
	return exec.ProcessStatus{
		Exists:   true,
		Running:  inspect.State != nil && inspect.State.Running,
		NativeID: id,
	}, nil
}

func (b *Backend) Start(ctx context.Context, cfg exec.StartConfig) (string, error) {
	if cfg.Template.Container == nil {
		return "", apperr.Validation("template %q has no container configuration", cfg.Template.ID)
	}

	name := containerName(cfg.Server.ID)

	if status, err := b.GetProcessStatus(ctx, cfg.Server.ID); err == nil && status.Running {
		return "", apperr.Conflict("server %s is already running", cfg.Server.ID)
	}

	// Remove any pre-existing container with the same name before create.
	_ = b.cli.ContainerRemove(ctx, name, container.RemoveOptions{Force: true})

	if err := b.ensureImage(ctx, cfg.Template.Container.Image); err != nil {
		return "", err
	}

	env := make([]string, 0, len(cfg.Template.Container.Env)+len(cfg.Server.Env)+1)
	env = append(env, "HOME="+cfg.Template.Container.MountPath)
	for k, v := range cfg.Template.Container.Env {
		env = append(env, k+"="+substituteVars(v, cfg.Server.Env))
	}
	for k, v := range cfg.Server.Env {
		env = append(env, k+"="+v)
	}

	exposedPorts, portBindings := portMappings(cfg.Server.Ports)

	binds := []string{cfg.DataPath + ":" + cfg.Template.Container.MountPath}
	for _, m := range cfg.Template.Container.Mounts {
		spec := m.HostPath + ":" + m.ContainerPath
		if m.ReadOnly {
			spec += ":ro"
		}
		binds = append(binds, spec)
	}

	var cmd []string
	if cfg.Template.Command != "" {
		cmd = []string{"sh", "-c", substituteVars(cfg.Template.Command, cfg.Server.Env)}
	}

	memBytes, err := parseMemory(cfg.Server.MemoryLimit)
	if err != nil {
		return "", apperr.Wrap(apperr.KindValidation, "parse memory limit", err)
	}

	containerCfg := &container.Config{
		Image:        cfg.Template.Container.Image,
		Env:          env,
		Cmd:          cmd,
		ExposedPorts: exposedPorts,
		WorkingDir:   cfg.Template.Container.WorkingDir,
		User:         containerUser,
		Labels: map[string]string{
			labelManaged: "true",
			labelServer:  cfg.Server.ID,
		},
	}

	hostCfg := &container.HostConfig{
		Binds:        binds,
		PortBindings: portBindings,
		RestartPolicy: container.RestartPolicy{
			Name: container.RestartPolicyDisabled,
		},
	}
	if memBytes > 0 {
		hostCfg.Resources.Memory = memBytes
	}
	if cfg.Server.CPUQuota > 0 {
		hostCfg.Resources.NanoCPUs = nanoCPUs(cfg.Server.CPUQuota)
	}

	created, err := b.cli.ContainerCreate(ctx, containerCfg, hostCfg, nil, nil, name)
	if err != nil {
		return "", apperr.Wrap(apperr.KindDocker, "create container", err)
	}

	if err := b.cli.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		return "", apperr.Wrap(apperr.KindDocker, "start container", err)
	}

	b.rememberID(cfg.Server.ID, created.ID)
	return created.ID, nil
}

func (b *Backend) ensureImage(ctx context.Context, ref string) error {
	_, _, err := b.cli.ImageInspectWithRaw(ctx, ref)
	if err == nil {
		return nil
	}
	rc, err := b.cli.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return apperr.Wrap(apperr.KindDocker, "pull image "+ref, err)
	}
	defer rc.Close()
	// Await pull progress to completion before creating the container.
	if _, err := io.Copy(io.Discard, rc); err != nil {
		return apperr.Wrap(apperr.KindDocker, "await image pull "+ref, err)
	}
	return nil
}

func (b *Backend) Stop(ctx context.Context, serverID string, tmpl *domain.Template, timeout int) error {
	id, ok := b.lookupID(ctx, serverID)
	if !ok {
		return nil // idempotent: already stopped/removed
	}

	if timeout <= 0 && tmpl != nil {
		timeout = tmpl.StopTimeout()
	}
	if timeout <= 0 {
		timeout = 30
	}
	t := timeout
	if err := b.cli.ContainerStop(ctx, id, container.StopOptions{Timeout: &t}); err != nil {
		b.log.Warn().Err(err).Str("server_id", serverID).Msg("graceful container stop failed, forcing removal")
	}

	// Data lives on the bind mount; the container itself is disposable.
	if err := b.cli.ContainerRemove(ctx, id, container.RemoveOptions{Force: true}); err != nil {
		return apperr.Wrap(apperr.KindDocker, "remove container", err)
	}
	b.forgetID(serverID)
	return nil
}

func (b *Backend) Remove(ctx context.Context, serverID string) error {
	id, ok := b.lookupID(ctx, serverID)
	if !ok {
		return nil
	}
	if err := b.cli.ContainerRemove(ctx, id, container.RemoveOptions{Force: true}); err != nil {
		if client.IsErrNotFound(err) {
			b.forgetID(serverID)
			return nil
		}
		return apperr.Wrap(apperr.KindDocker, "remove container", err)
	}
	b.forgetID(serverID)
	return nil
}

func (b *Backend) Reconcile(ctx context.Context) error {
	args := filters.NewArgs(filters.Arg("label", labelManaged+"=true"))
	containers, err := b.cli.ContainerList(ctx, container.ListOptions{All: true, Filters: args})
	if err != nil {
		return apperr.Wrap(apperr.KindDocker, "list managed containers", err)
	}

	b.mu.Lock()
	b.byID = make(map[string]string, len(containers))
	for _, c := range containers {
		if sid, ok := c.Labels[labelServer]; ok {
			b.byID[sid] = c.ID
		}
	}
	b.mu.Unlock()
	return nil
}

// lookupID resolves a server id to a container id, first via the cache
// and, if absent, via a substring name filter double-checked with an
// exact "/<name>" match — reproducing the daemon's substring-based name
// filter plus the standard post-filter workaround.
func (b *Backend) lookupID(ctx context.Context, serverID string) (string, bool) {
	b.mu.Lock()
	id, ok := b.byID[serverID]
	b.mu.Unlock()
	if ok {
		return id, true
	}

	name := containerName(serverID)
	args := filters.NewArgs(filters.Arg("name", name))
	containers, err := b.cli.ContainerList(ctx, container.ListOptions{All: true, Filters: args})
	if err != nil {
		return "", false
	}
	for _, c := range containers {
		for _, n := range c.Names {
			if n == "/"+name {
				b.rememberID(serverID, c.ID)
				return c.ID, true
			}
		}
	}
	return "", false
}

func (b *Backend) rememberID(serverID, containerID string) {
	b.mu.Lock()
	b.byID[serverID] = containerID
	b.mu.Unlock()
}

func (b *Backend) forgetID(serverID string) {
	b.mu.Lock()
	delete(b.byID, serverID)
	b.mu.Unlock()
}

func substituteVars(template string, vars map[string]string) string {
	out := template
	for k, v := range vars {
		out = strings.ReplaceAll(out, "{"+k+"}", v)
	}
	return out
}

func portMappings(ports []domain.PortMapping) (nat.PortSet, nat.PortMap) {
	exposed := make(nat.PortSet, len(ports))
	bindings := make(nat.PortMap, len(ports))
	for _, p := range ports {
		key := nat.Port(fmt.Sprintf("%d/%s", p.ContainerPort, p.Protocol))
		exposed[key] = struct{}{}
		bindings[key] = []nat.PortBinding{{HostPort: strconv.Itoa(p.HostPort)}}
	}
	return exposed, bindings
}
