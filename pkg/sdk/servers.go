package sdk

import (
	"context"
	"fmt"
)

func (c *Client) ListServers(ctx context.Context) ([]Server, error) {
	var servers []Server
	err := c.get(ctx, "/servers", &servers)
	return servers, err
}

func (c *Client) GetServer(ctx context.Context, id string) (*Server, error) {
	var server Server
	err := c.get(ctx, "/servers/"+id, &server)
	return &server, err
}

// ImportServer registers a new server from an existing install rooted at
// req.SourcePath.
func (c *Client) ImportServer(ctx context.Context, req ImportServerRequest) (*Server, error) {
	var server Server
	err := c.post(ctx, "/servers", req, &server)
	return &server, err
}

// PatchServer applies a partial configuration change; nil fields on the
// request are left untouched.
func (c *Client) PatchServer(ctx context.Context, id string, patch PatchServerRequest) (*Server, error) {
	var server Server
	err := c.patch(ctx, "/servers/"+id, patch, &server)
	return &server, err
}

// DeleteServer removes a server and its backing directory. Only legal
// while the server is stopped or in error.
func (c *Client) DeleteServer(ctx context.Context, id string) error {
	return c.delete(ctx, fmt.Sprintf("/servers/%s", id))
}

// SetOrder reorders the server list for display.
func (c *Client) SetOrder(ctx context.Context, order []string) error {
	return c.put(ctx, "/servers/order", SetOrderRequest{Order: order})
}

func (c *Client) StartServer(ctx context.Context, id string) error {
	return c.post(ctx, fmt.Sprintf("/servers/%s/start", id), nil, nil)
}

func (c *Client) StopServer(ctx context.Context, id string) error {
	return c.post(ctx, fmt.Sprintf("/servers/%s/stop", id), nil, nil)
}

func (c *Client) RestartServer(ctx context.Context, id string) error {
	return c.post(ctx, fmt.Sprintf("/servers/%s/restart", id), nil, nil)
}

// AcknowledgeCrash clears a crashed server back to stopped.
func (c *Client) AcknowledgeCrash(ctx context.Context, id string) error {
	return c.post(ctx, fmt.Sprintf("/servers/%s/acknowledge-crash", id), nil, nil)
}

// InitiateUpdate takes a pre-update backup and stages the server for
// apply or cancel.
func (c *Client) InitiateUpdate(ctx context.Context, id string) (*InitiateUpdateResult, error) {
	var result InitiateUpdateResult
	err := c.post(ctx, fmt.Sprintf("/servers/%s/update/initiate", id), nil, &result)
	return &result, err
}

// ApplyUpdate commits a staged update.
func (c *Client) ApplyUpdate(ctx context.Context, id string) error {
	return c.post(ctx, fmt.Sprintf("/servers/%s/update/apply", id), nil, nil)
}

// CancelUpdate discards a staged update and returns the server to stopped;
// the pre-update backup is kept, not restored.
func (c *Client) CancelUpdate(ctx context.Context, id string) error {
	return c.post(ctx, fmt.Sprintf("/servers/%s/update/cancel", id), nil, nil)
}
