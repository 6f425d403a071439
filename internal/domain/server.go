package domain

import "time"

// Status is the per-server state-machine state.
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusStopping Status = "stopping"
	StatusError    Status = "error"
	StatusUpdating Status = "updating"
)

// UpdateStage tracks progress through the three-phase update protocol,
// orthogonal to Status.
type UpdateStage string

const (
	UpdateStageNone         UpdateStage = "none"
	UpdateStageInitiated    UpdateStage = "initiated"
	UpdateStageReadyToApply UpdateStage = "ready_to_apply"
	UpdateStageApplying     UpdateStage = "applying"
)

// PortMapping binds a host port to a container port for one protocol.
type PortMapping struct {
	HostPort      int      `yaml:"hostPort" json:"hostPort"`
	ContainerPort int      `yaml:"containerPort" json:"containerPort"`
	Protocol      Protocol `yaml:"protocol" json:"protocol"`
}

// ServerConfig is the mutable, persisted sidecar document: the
// authoritative record of a server's configuration.
type ServerConfig struct {
	ID         string            `yaml:"id"`
	Name       string            `yaml:"name"`
	TemplateID string            `yaml:"templateId"`
	SourcePath string            `yaml:"sourcePath"`
	CreatedAt  time.Time         `yaml:"createdAt"`
	UpdatedAt  time.Time         `yaml:"updatedAt"`
	Ports      []PortMapping     `yaml:"ports,omitempty"`
	Env        map[string]string `yaml:"env,omitempty"`
	MemoryLimit string           `yaml:"memoryLimit,omitempty"`
	CPUQuota    float64          `yaml:"cpuQuota,omitempty"`
	UpdateStage UpdateStage      `yaml:"updateStage"`

	// AutoRestartAfterMaintenance requests that the maintenance
	// scheduler start the server again after its nightly stop.
	AutoRestartAfterMaintenance bool `yaml:"autoRestartAfterMaintenance,omitempty"`

	// Order is the operator-controlled display order, mutated by
	// PUT /servers/order.
	Order int `yaml:"order,omitempty"`
}

// RuntimeState is the in-memory, rebuilt-on-startup runtime view of a
// server, layered on top of its persisted ServerConfig.
type RuntimeState struct {
	Config *ServerConfig

	Status              Status
	StartedAt           *time.Time
	UpdateStage         UpdateStage
	PreUpdateBackupTime *time.Time
}

// BackupType classifies why a backup was taken.
type BackupType string

const (
	BackupTypeManual     BackupType = "manual"
	BackupTypeAuto       BackupType = "auto"
	BackupTypePreUpdate  BackupType = "pre-update"
	BackupTypePreRestore BackupType = "pre-restore"
)

// BackupRecord describes one on-disk backup archive, derived from its
// filename plus a stat() call.
type BackupRecord struct {
	ServerID    string     `json:"serverId"`
	Timestamp   time.Time  `json:"timestamp"`
	Type        BackupType `json:"type"`
	SizeBytes   int64      `json:"sizeBytes"`
	Description string     `json:"description,omitempty"`
	Filename    string     `json:"filename"`
	Path        string     `json:"-"`
}
