// Package native implements the native-process execution backend,
// generalized from the teacher's internal/runner/supervisor.go (which
// launches only Java-based Minecraft servers) into "launch the
// template's configured executable and argument list, track it by pid,
// and re-adopt it after a restart". Platform-specific liveness/kill/
// process-image-name primitives live in native_unix.go and
// native_windows.go, mirroring the teacher's own cmd_windows.go split.
package native

import (
	"context"
	"fmt"
	"os"
	osexec "os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Lmdudester/Garcon/internal/apperr"
	"github.com/Lmdudester/Garcon/internal/domain"
	"github.com/Lmdudester/Garcon/internal/exec"
	"github.com/Lmdudester/Garcon/internal/exec/rcon"
	"github.com/Lmdudester/Garcon/internal/filestore"
	"github.com/Lmdudester/Garcon/internal/template"
)

const (
	recordsFileName = "native-processes.json"
	pollInterval    = 10 * time.Second
	killGrace       = 10 * time.Second
)

// record is a per-server tracking entry, persisted to
// <data>/native-processes.json on every mutation so that a restart of
// the control plane can re-adopt still-alive processes.
type record struct {
	ServerID         string    `json:"serverId"`
	PID              int       `json:"pid"`
	ProcessImageName string    `json:"processImageName"`
	StartedAt        time.Time `json:"startedAt"`
}

type tracked struct {
	record
	cmd *osexec.Cmd // nil for re-adopted processes with no live child handle
}

// Backend implements exec.Provider by launching and tracking OS
// processes directly.
type Backend struct {
	dataDir     string
	logsDir     string
	recordsPath string

	store    *filestore.Store
	registry *template.Registry
	log      zerolog.Logger
	fanout   *exec.ExitFanout

	mu       sync.Mutex
	tracked  map[string]*tracked
	pollStop map[string]chan struct{}
}

func New(dataDir, logsDir string, store *filestore.Store, registry *template.Registry, log zerolog.Logger) *Backend {
	return &Backend{
		dataDir:     dataDir,
		logsDir:     logsDir,
		recordsPath: filepath.Join(dataDir, recordsFileName),
		store:       store,
		registry:    registry,
		log:         log.With().Str("component", "native-backend").Logger(),
		fanout:      exec.NewExitFanout(),
		tracked:     make(map[string]*tracked),
		pollStop:    make(map[string]chan struct{}),
	}
}

func (b *Backend) CheckAvailability(ctx context.Context) error {
	if runtime.GOOS != "windows" {
		return apperr.Wrap(apperr.KindNativeProcess, "native backend requires Windows", fmt.Errorf("host OS is %s", runtime.GOOS))
	}
	return nil
}

// StartEventMonitoring is a no-op: freshly spawned children are watched
// by their own goroutine started in Start, and re-adopted processes are
// watched by poll timers armed in Reconcile.
func (b *Backend) StartEventMonitoring(ctx context.Context) {}

func (b *Backend) OnProcessExit(cb exec.ExitCallback) exec.Unregister {
	return b.fanout.On(cb)
}

func (b *Backend) GetProcessStatus(ctx context.Context, serverID string) (exec.ProcessStatus, error) {
	b.mu.Lock()
	t, ok := b.tracked[serverID]
	b.mu.Unlock()
	if !ok {
		return exec.ProcessStatus{Exists: false}, nil
	}
	return exec.ProcessStatus{
		Exists:   true,
		Running:  isAlive(t.PID),
		NativeID: strconv.Itoa(t.PID),
	}, nil
}

func (b *Backend) Start(ctx context.Context, cfg exec.StartConfig) (string, error) {
	b.mu.Lock()
	if _, exists := b.tracked[cfg.Server.ID]; exists {
		b.mu.Unlock()
		return "", apperr.Conflict("server %s is already running", cfg.Server.ID)
	}
	b.mu.Unlock()

	if cfg.Template.Executable == "" {
		return "", apperr.Validation("template %q has no executable configured", cfg.Template.ID)
	}

	exePath := filepath.Join(cfg.DataPath, cfg.Template.Executable)
	if _, err := os.Stat(exePath); err != nil {
		return "", apperr.Wrap(apperr.KindNativeProcess, "executable not found: "+exePath, err)
	}

	if err := b.store.EnsureDir(b.logsDir); err != nil {
		return "", err
	}
	logPath := filepath.Join(b.logsDir, cfg.Server.ID+".log")
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return "", apperr.Wrap(apperr.KindFileSystem, "open log file", err)
	}

	args := substituteArgs(cfg.Template.Args, cfg.Server.Env)
	cmd := osexec.Command(exePath, args...)
	cmd.Dir = cfg.DataPath
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	setProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		logFile.Close()
		return "", apperr.Wrap(apperr.KindNativeProcess, "start process", err)
	}

	imageName := processImageName(cmd.Process.Pid, filepath.Base(exePath))
	rec := record{
		ServerID:         cfg.Server.ID,
		PID:              cmd.Process.Pid,
		ProcessImageName: imageName,
		StartedAt:        time.Now().UTC(),
	}

	b.mu.Lock()
	b.tracked[cfg.Server.ID] = &tracked{record: rec, cmd: cmd}
	b.mu.Unlock()

	if err := b.persistRecords(); err != nil {
		b.log.Warn().Err(err).Msg("failed to persist native process record")
	}

	go b.watchFreshChild(cfg.Server.ID, cmd, logFile)

	return strconv.Itoa(rec.PID), nil
}

func (b *Backend) watchFreshChild(serverID string, cmd *osexec.Cmd, logFile *os.File) {
	err := cmd.Wait()
	logFile.Close()

	b.mu.Lock()
	delete(b.tracked, serverID)
	b.mu.Unlock()
	_ = b.persistRecords()

	var code *int
	if exitErr, ok := err.(*osexec.ExitError); ok {
		c := exitErr.ExitCode()
		code = &c
	}
	b.fanout.Dispatch(exec.ExitEvent{ServerID: serverID, ExitCode: code})
}

func (b *Backend) Stop(ctx context.Context, serverID string, tmpl *domain.Template, timeout int) error {
	b.mu.Lock()
	t, ok := b.tracked[serverID]
	b.mu.Unlock()
	if !ok {
		return nil // idempotent
	}

	if timeout <= 0 && tmpl != nil {
		timeout = tmpl.StopTimeout()
	}
	if timeout <= 0 {
		timeout = 30
	}

	if tmpl != nil && tmpl.RCON.Enabled {
		if b.tryGracefulRCONStop(serverID, tmpl, t.PID, timeout) {
			return nil
		}
	}

	if err := killProcessGroup(t.PID); err != nil {
		b.log.Warn().Err(err).Int("pid", t.PID).Msg("failed to signal process group")
	}

	deadline := time.Now().Add(killGrace)
	for time.Now().Before(deadline) {
		if !isAlive(t.PID) {
			break
		}
		time.Sleep(200 * time.Millisecond)
	}

	b.mu.Lock()
	delete(b.tracked, serverID)
	b.mu.Unlock()
	return b.persistRecords()
}

func (b *Backend) tryGracefulRCONStop(serverID string, tmpl *domain.Template, pid, timeoutSeconds int) bool {
	port := tmpl.RCON.Port
	password := tmpl.RCON.Password

	if hook, ok := b.registry.CredentialHookFor(tmpl.ID); ok {
		if p, pw, ok := hook(filepath.Dir(b.recordsPath)); ok {
			port = p
			password = pw
		}
	}

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	client, err := rcon.Dial(addr, password)
	if err != nil {
		b.log.Warn().Err(err).Str("server_id", serverID).Msg("rcon dial failed, falling back to tree-kill")
		return false
	}
	defer client.Close()

	cmd := tmpl.RCON.ShutdownCommand
	if cmd == "" {
		cmd = tmpl.StopCommand
	}
	if _, err := client.Command(cmd); err != nil {
		b.log.Warn().Err(err).Str("server_id", serverID).Msg("rcon shutdown command failed, falling back to tree-kill")
		return false
	}

	deadline := time.Now().Add(time.Duration(timeoutSeconds) * time.Second)
	for time.Now().Before(deadline) {
		if !isAlive(pid) {
			b.mu.Lock()
			delete(b.tracked, serverID)
			b.mu.Unlock()
			_ = b.persistRecords()
			return true
		}
		time.Sleep(200 * time.Millisecond)
	}
	return false
}

func (b *Backend) Remove(ctx context.Context, serverID string) error {
	b.mu.Lock()
	delete(b.tracked, serverID)
	b.mu.Unlock()
	return b.persistRecords()
}

// Reconcile loads persisted records and re-adopts those whose pid is
// still alive and whose process image matches the record, defending
// against pid reuse. Non-matching or dead entries are dropped with a
// warning and are not re-adopted.
func (b *Backend) Reconcile(ctx context.Context) error {
	var records []record
	if b.store.Exists(b.recordsPath) {
		if err := b.store.ReadJSON(b.recordsPath, &records); err != nil {
			return err
		}
	}

	b.mu.Lock()
	b.tracked = make(map[string]*tracked)
	b.mu.Unlock()

	for _, rec := range records {
		if !isAlive(rec.PID) {
			b.log.Warn().Str("server_id", rec.ServerID).Int("pid", rec.PID).Msg("recorded process is no longer alive; not re-adopting")
			continue
		}
		actual := processImageName(rec.PID, rec.ProcessImageName)
		if actual != rec.ProcessImageName {
			b.log.Warn().Str("server_id", rec.ServerID).Int("pid", rec.PID).
				Str("expected_image", rec.ProcessImageName).Str("actual_image", actual).
				Msg("pid reused by a different process; not re-adopting")
			continue
		}

		b.mu.Lock()
		b.tracked[rec.ServerID] = &tracked{record: rec}
		b.mu.Unlock()
		b.armPoller(rec.ServerID, rec.PID)
	}

	return b.persistRecords()
}

// armPoller watches a re-adopted process (no child handle survives a
// restart) at a fixed ~10s interval.
func (b *Backend) armPoller(serverID string, pid int) {
	stop := make(chan struct{})
	b.mu.Lock()
	b.pollStop[serverID] = stop
	b.mu.Unlock()

	go func() {
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if isAlive(pid) {
					continue
				}
				b.mu.Lock()
				delete(b.tracked, serverID)
				delete(b.pollStop, serverID)
				b.mu.Unlock()
				_ = b.persistRecords()
				b.fanout.Dispatch(exec.ExitEvent{ServerID: serverID, ExitCode: nil})
				return
			}
		}
	}()
}

func (b *Backend) persistRecords() error {
	b.mu.Lock()
	records := make([]record, 0, len(b.tracked))
	for _, t := range b.tracked {
		records = append(records, t.record)
	}
	b.mu.Unlock()
	return b.store.WriteJSON(b.recordsPath, records)
}

func substituteArgs(args []string, vars map[string]string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		for k, v := range vars {
			a = strings.ReplaceAll(a, "{"+k+"}", v)
		}
		out[i] = a
	}
	return out
}
