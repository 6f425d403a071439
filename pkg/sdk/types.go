package sdk

// PortMapping binds a host port to a container port for one protocol,
// matching internal/domain.PortMapping's wire encoding.
type PortMapping struct {
	HostPort      int    `json:"hostPort"`
	ContainerPort int    `json:"containerPort"`
	Protocol      string `json:"protocol"`
}

// Server is the wire shape returned by the server list/detail endpoints.
type Server struct {
	ID                          string            `json:"id"`
	Name                        string            `json:"name"`
	TemplateID                  string            `json:"templateId"`
	Status                      string            `json:"status"`
	StartedAt                   *string           `json:"startedAt,omitempty"`
	UpdateStage                 string            `json:"updateStage"`
	Ports                       []PortMapping     `json:"ports,omitempty"`
	Env                         map[string]string `json:"env,omitempty"`
	MemoryLimit                 string            `json:"memoryLimit,omitempty"`
	CPUQuota                    float64           `json:"cpuQuota,omitempty"`
	AutoRestartAfterMaintenance bool              `json:"autoRestartAfterMaintenance"`
	Order                       int               `json:"order"`
}

// ImportServerRequest is the body of POST /servers.
type ImportServerRequest struct {
	Name        string            `json:"name"`
	TemplateID  string            `json:"templateId"`
	SourcePath  string            `json:"sourcePath"`
	Ports       []PortMapping     `json:"ports,omitempty"`
	Env         map[string]string `json:"env,omitempty"`
	MemoryLimit string            `json:"memoryLimit,omitempty"`
	CPUQuota    float64           `json:"cpuQuota,omitempty"`
}

// PatchServerRequest is the body of PATCH /servers/{id}; nil fields are
// left untouched server-side.
type PatchServerRequest struct {
	Name                        *string           `json:"name,omitempty"`
	Env                         map[string]string `json:"env,omitempty"`
	Ports                       []PortMapping     `json:"ports,omitempty"`
	MemoryLimit                 *string           `json:"memoryLimit,omitempty"`
	CPUQuota                    *float64          `json:"cpuQuota,omitempty"`
	AutoRestartAfterMaintenance *bool             `json:"autoRestartAfterMaintenance,omitempty"`
}

// SetOrderRequest is the body of PUT /servers/order.
type SetOrderRequest struct {
	Order []string `json:"order"`
}

// InitiateUpdateResult is returned by POST /servers/{id}/update/initiate.
type InitiateUpdateResult struct {
	SourcePath      string `json:"sourcePath"`
	BackupTimestamp string `json:"backupTimestamp"`
	BackupPath      string `json:"backupPath"`
}

// BackupRecord is the wire shape returned by the backup endpoints. The
// Timestamp field is the URL-safe, dash-separated form used as the
// {timestamp} path parameter, not a raw ISO-8601 string.
type BackupRecord struct {
	ServerID    string `json:"serverId"`
	Timestamp   string `json:"timestamp"`
	Type        string `json:"type"`
	SizeBytes   int64  `json:"sizeBytes"`
	Description string `json:"description,omitempty"`
	Filename    string `json:"filename"`
}

// CreateBackupRequest is the body of POST /servers/{id}/backups.
type CreateBackupRequest struct {
	Description string `json:"description,omitempty"`
}

// RestoreResult is returned by POST /servers/{id}/backups/{timestamp}/restore.
type RestoreResult struct {
	ServerID         string       `json:"serverId"`
	RestoredFrom     string       `json:"restoredFrom"`
	PreRestoreBackup BackupRecord `json:"preRestoreBackup"`
}

// Template is the wire shape returned by the template endpoints, with
// secrets and internal command strings already stripped server-side.
type Template struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Description   string        `json:"description,omitempty"`
	ExecutionMode string        `json:"executionMode"`
	DefaultPorts  []DefaultPort `json:"defaultPorts,omitempty"`
	RequiredFiles []string      `json:"requiredFiles,omitempty"`
}

// DefaultPort is a port a template's instances are expected to expose.
type DefaultPort struct {
	ContainerPort int    `json:"containerPort"`
	Protocol      string `json:"protocol"`
	Description   string `json:"description,omitempty"`
	UserFacing    bool   `json:"userFacing"`
}

// Config is the wire shape returned by GET /config.
type Config struct {
	Host              string `json:"host"`
	Port              int    `json:"port"`
	DataDir           string `json:"dataDir"`
	ImportDir         string `json:"importDir,omitempty"`
	MaxBackupsPerType int    `json:"maxBackupsPerType"`
	AutoBackupOnStop  bool   `json:"autoBackupOnStop"`
}
