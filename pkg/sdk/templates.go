package sdk

import "context"

func (c *Client) ListTemplates(ctx context.Context) ([]Template, error) {
	var templates []Template
	err := c.get(ctx, "/templates", &templates)
	return templates, err
}

func (c *Client) GetTemplate(ctx context.Context, id string) (*Template, error) {
	var tmpl Template
	err := c.get(ctx, "/templates/"+id, &tmpl)
	return &tmpl, err
}
