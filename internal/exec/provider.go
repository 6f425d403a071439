// Package exec defines the pluggable execution-provider contract
// implemented by the container and native backends: create/start/stop/
// remove plus status, crash events, and startup reconciliation.
package exec

import (
	"context"

	"github.com/Lmdudester/Garcon/internal/domain"
)

// StartConfig is what a Provider needs to start one instance: the
// server's persisted configuration, its template, and the absolute path
// to its data directory.
type StartConfig struct {
	Server   *domain.ServerConfig
	Template *domain.Template
	DataPath string
}

// ProcessStatus reports what a Provider currently observes for a server.
type ProcessStatus struct {
	Exists  bool
	Running bool
	// NativeID is a backend-specific identifier: a container id for the
	// container backend, a pid for the native backend.
	NativeID string
}

// ExitEvent is delivered to registered callbacks when a Provider
// observes an instance die.
type ExitEvent struct {
	ServerID string
	ExitCode *int
}

// ExitCallback is invoked, possibly concurrently across servers, whenever
// a Provider observes an instance exit.
type ExitCallback func(ExitEvent)

// Unregister removes a previously registered ExitCallback.
type Unregister func()

// Provider is the execution backend contract. Both the container and the
// native backend implement it identically from the orchestrator's point
// of view.
type Provider interface {
	// CheckAvailability reports whether this backend can operate on the
	// current host (container daemon reachable / OS is Windows).
	CheckAvailability(ctx context.Context) error

	// StartEventMonitoring begins asynchronous delivery of exit
	// notifications. It may be a no-op for backends that rely purely on
	// polling; it must not block.
	StartEventMonitoring(ctx context.Context)

	// OnProcessExit registers a callback invoked when any instance dies.
	// Multiple callbacks may be registered concurrently.
	OnProcessExit(cb ExitCallback) Unregister

	// GetProcessStatus reports the current backend-observed status of
	// one server.
	GetProcessStatus(ctx context.Context, serverID string) (ProcessStatus, error)

	// Start creates whatever artefact is needed and starts it. Fails
	// with an apperr conflict when an instance is already tracked and
	// alive.
	Start(ctx context.Context, cfg StartConfig) (nativeID string, err error)

	// Stop gracefully stops server, falling back to a forced stop on
	// timeout expiry. Idempotent if already stopped. A zero timeout
	// selects the template's configured default.
	Stop(ctx context.Context, serverID string, tmpl *domain.Template, timeout int) error

	// Remove frees backend resources (delete container / forget PID
	// record). Idempotent.
	Remove(ctx context.Context, serverID string) error

	// Reconcile aligns the provider's in-memory tracking with ground
	// truth at startup.
	Reconcile(ctx context.Context) error
}
