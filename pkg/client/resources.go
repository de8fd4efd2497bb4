package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// List returns a page of resources filtered and sorted per opts.
func (c *Client) List(ctx context.Context, opts ListOptions) (*ListResult, error) {
	query := url.Values{}
	if opts.Status != "" {
		query.Set("status", opts.Status)
	}
	if opts.Tag != "" {
		query.Set("tag", opts.Tag)
	}
	if opts.Sort != "" {
		query.Set("sort", opts.Sort)
	}
	addPage(query, opts.Page, opts.Limit)

	var out ListResult
	if err := c.do(ctx, http.MethodGet, "/v1/data", query, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Get fetches a single resource by id.
func (c *Client) Get(ctx context.Context, id string) (*Resource, error) {
	var out Resource
	if err := c.do(ctx, http.MethodGet, "/v1/data/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Create stores a new resource and returns it with server-assigned fields.
func (c *Client) Create(ctx context.Context, p ResourcePayload) (*Resource, error) {
	var out Resource
	if err := c.do(ctx, http.MethodPost, "/v1/data", nil, p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Update replaces a resource wholesale.
func (c *Client) Update(ctx context.Context, id string, p ResourcePayload) (*Resource, error) {
	var out Resource
	if err := c.do(ctx, http.MethodPut, "/v1/data/"+url.PathEscape(id), nil, p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Patch changes only the fields set in p.
func (c *Client) Patch(ctx context.Context, id string, p PatchPayload) (*Resource, error) {
	var out Resource
	if err := c.do(ctx, http.MethodPatch, "/v1/data/"+url.PathEscape(id), nil, p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete removes a resource and reports the server's confirmation.
func (c *Client) Delete(ctx context.Context, id string) (bool, error) {
	var out struct {
		Deleted bool `json:"deleted"`
	}
	if err := c.do(ctx, http.MethodDelete, "/v1/data/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return false, err
	}
	return out.Deleted, nil
}

type batchRequest struct {
	Operation string `json:"operation"`
	Items     any    `json:"items"`
}

// BatchCreate stores up to 100 resources in one call. Individual failures
// are reported in the result, not as an error.
func (c *Client) BatchCreate(ctx context.Context, items []ResourcePayload) (*BatchResult, error) {
	return c.batch(ctx, batchRequest{Operation: "create", Items: items})
}

// BatchUpdate replaces up to 100 resources in one call.
func (c *Client) BatchUpdate(ctx context.Context, items []BatchItem) (*BatchResult, error) {
	return c.batch(ctx, batchRequest{Operation: "update", Items: items})
}

// BatchDelete removes up to 100 resources in one call.
func (c *Client) BatchDelete(ctx context.Context, ids []string) (*BatchResult, error) {
	return c.batch(ctx, batchRequest{Operation: "delete", Items: ids})
}

func (c *Client) batch(ctx context.Context, req batchRequest) (*BatchResult, error) {
	var out BatchResult
	if err := c.do(ctx, http.MethodPost, "/v1/data/batch", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Search runs a full-text query over names, descriptions and tags.
func (c *Client) Search(ctx context.Context, opts SearchOptions) (*SearchResult, error) {
	query := url.Values{}
	query.Set("q", opts.Query)
	if opts.Status != "" {
		query.Set("status", opts.Status)
	}
	if opts.Tag != "" {
		query.Set("tag", opts.Tag)
	}
	if len(opts.Facets) > 0 {
		query.Set("facets", strings.Join(opts.Facets, ","))
	}
	addPage(query, opts.Page, opts.Limit)

	var out SearchResult
	if err := c.do(ctx, http.MethodGet, "/v1/search", query, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AnalyticsSummary returns aggregate counts over the whole dataset.
func (c *Client) AnalyticsSummary(ctx context.Context) (*Summary, error) {
	var out Summary
	if err := c.do(ctx, http.MethodGet, "/v1/analytics/summary", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func addPage(query url.Values, page, limit int) {
	if page > 0 {
		query.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
}
