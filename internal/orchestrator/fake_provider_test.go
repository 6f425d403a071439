package orchestrator

import (
	"context"
	"sync"

	"github.com/Lmdudester/Garcon/internal/domain"
	"github.com/Lmdudester/Garcon/internal/exec"
)

// fakeProvider is a minimal in-memory exec.Provider double driven
// directly by the tests: Start/Stop/Remove flip a running-set, and
// crash lets a test simulate an asynchronous exit event.
type fakeProvider struct {
	mu        sync.Mutex
	running   map[string]bool
	startErr  error
	stopErr   error
	callbacks []exec.ExitCallback
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{running: make(map[string]bool)}
}

func (f *fakeProvider) CheckAvailability(ctx context.Context) error { return nil }
func (f *fakeProvider) StartEventMonitoring(ctx context.Context)    {}

func (f *fakeProvider) OnProcessExit(cb exec.ExitCallback) exec.Unregister {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callbacks = append(f.callbacks, cb)
	return func() {}
}

func (f *fakeProvider) GetProcessStatus(ctx context.Context, serverID string) (exec.ProcessStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	running := f.running[serverID]
	return exec.ProcessStatus{Exists: running, Running: running}, nil
}

func (f *fakeProvider) Start(ctx context.Context, cfg exec.StartConfig) (string, error) {
	if f.startErr != nil {
		return "", f.startErr
	}
	f.mu.Lock()
	f.running[cfg.Server.ID] = true
	f.mu.Unlock()
	return "fake-id", nil
}

func (f *fakeProvider) Stop(ctx context.Context, serverID string, tmpl *domain.Template, timeout int) error {
	if f.stopErr != nil {
		return f.stopErr
	}
	f.mu.Lock()
	delete(f.running, serverID)
	f.mu.Unlock()
	return nil
}

func (f *fakeProvider) Remove(ctx context.Context, serverID string) error {
	f.mu.Lock()
	delete(f.running, serverID)
	f.mu.Unlock()
	return nil
}

func (f *fakeProvider) Reconcile(ctx context.Context) error { return nil }

// crash simulates the backend observing an out-of-band exit: it clears
// the running flag and dispatches to every registered callback, exactly
// as the container/native backends' event monitoring would.
func (f *fakeProvider) crash(serverID string, exitCode *int) {
	f.mu.Lock()
	delete(f.running, serverID)
	cbs := append([]exec.ExitCallback(nil), f.callbacks...)
	f.mu.Unlock()

	for _, cb := range cbs {
		cb(exec.ExitEvent{ServerID: serverID, ExitCode: exitCode})
	}
}

var _ exec.Provider = (*fakeProvider)(nil)
