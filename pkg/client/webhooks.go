package client

import (
	"context"
	"net/http"
	"net/url"
)

// CreateWebhook registers a delivery endpoint. The secret is used to sign
// deliveries and is never echoed back by the API.
func (c *Client) CreateWebhook(ctx context.Context, reg WebhookRegistration) (*Webhook, error) {
	var out Webhook
	if err := c.do(ctx, http.MethodPost, "/v1/webhooks", nil, reg, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListWebhooks returns all registered webhooks.
func (c *Client) ListWebhooks(ctx context.Context) ([]Webhook, error) {
	var out struct {
		Data []Webhook `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/webhooks", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// DeleteWebhook removes a registration.
func (c *Client) DeleteWebhook(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/v1/webhooks/"+url.PathEscape(id), nil, nil, nil)
}
