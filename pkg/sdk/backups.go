package sdk

import (
	"context"
	"fmt"
)

func (c *Client) ListBackups(ctx context.Context, serverID string) ([]BackupRecord, error) {
	var backups []BackupRecord
	err := c.get(ctx, fmt.Sprintf("/servers/%s/backups", serverID), &backups)
	return backups, err
}

// CreateBackup takes an on-demand backup of a stopped server.
func (c *Client) CreateBackup(ctx context.Context, serverID, description string) (*BackupRecord, error) {
	var backup BackupRecord
	err := c.post(ctx, fmt.Sprintf("/servers/%s/backups", serverID), CreateBackupRequest{Description: description}, &backup)
	return &backup, err
}

// DeleteBackup removes one backup archive. timestamp is the URL-safe
// dash-separated form returned as BackupRecord.Timestamp.
func (c *Client) DeleteBackup(ctx context.Context, serverID, timestamp string) error {
	return c.delete(ctx, fmt.Sprintf("/servers/%s/backups/%s", serverID, timestamp))
}

// RestoreBackup replaces a stopped server's files with the contents of
// the named backup, itself preceded by a fresh pre-restore backup.
func (c *Client) RestoreBackup(ctx context.Context, serverID, timestamp string) (*RestoreResult, error) {
	var result RestoreResult
	err := c.post(ctx, fmt.Sprintf("/servers/%s/backups/%s/restore", serverID, timestamp), nil, &result)
	return &result, err
}
