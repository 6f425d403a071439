package sdk

import "context"

// Health returns nil if the daemon responds to GET /health.
func (c *Client) Health(ctx context.Context) error {
	var status struct {
		Status string `json:"status"`
	}
	return c.get(ctx, "/health", &status)
}

func (c *Client) GetConfig(ctx context.Context) (*Config, error) {
	var cfg Config
	err := c.get(ctx, "/config", &cfg)
	return &cfg, err
}

// ListImportFolders lists the immediate subdirectories of the daemon's
// configured import directory, candidates for ImportServer's SourcePath.
func (c *Client) ListImportFolders(ctx context.Context) ([]string, error) {
	var folders []string
	err := c.get(ctx, "/import/folders", &folders)
	return folders, err
}
