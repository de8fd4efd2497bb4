package client

import "time"

// Resource statuses.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Resource is a record managed through the data API.
type Resource struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Status      string         `json:"status"`
	Tags        []string       `json:"tags"`
	Metadata    map[string]any `json:"metadata"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// ResourcePayload is the writable field set for create and update.
type ResourcePayload struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Status      string         `json:"status,omitempty"`
	Tags        []string       `json:"tags,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// PatchPayload carries only the fields to change; nil fields are left
// untouched by the server.
type PatchPayload struct {
	Name        *string        `json:"name,omitempty"`
	Description *string        `json:"description,omitempty"`
	Status      *string        `json:"status,omitempty"`
	Tags        *[]string      `json:"tags,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Pagination is the envelope returned with list results.
type Pagination struct {
	CurrentPage int  `json:"current_page"`
	PerPage     int  `json:"per_page"`
	Total       int  `json:"total"`
	TotalPages  int  `json:"total_pages"`
	HasNext     bool `json:"has_next"`
	HasPrev     bool `json:"has_prev"`
}

// ListOptions narrow and page list requests. Sort accepts a field name
// (name, created_at, updated_at) with an optional "-" prefix for
// descending order.
type ListOptions struct {
	Status string
	Tag    string
	Sort   string
	Page   int
	Limit  int
}

// ListResult is a page of resources.
type ListResult struct {
	Data       []Resource `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// SearchOptions drive full-text search. Facets selects the facet fields
// ("status", "tags") to compute.
type SearchOptions struct {
	Query  string
	Status string
	Tag    string
	Facets []string
	Page   int
	Limit  int
}

// SearchResult is a page of search hits plus facet distributions.
type SearchResult struct {
	Data        []Resource                `json:"data"`
	Facets      map[string]map[string]int `json:"facets"`
	Total       int                       `json:"total"`
	QueryTimeMS int64                     `json:"query_time_ms"`
}

// BatchItem names the resource a batch update applies to.
type BatchItem struct {
	ID string `json:"id"`
	ResourcePayload
}

// BatchError reports a single failed batch member.
type BatchError struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// BatchSummary counts batch outcomes.
type BatchSummary struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Deleted int `json:"deleted"`
	Failed  int `json:"failed"`
}

// BatchResult is the partial-failure report for a batch operation.
type BatchResult struct {
	Summary BatchSummary `json:"summary"`
	Errors  []BatchError `json:"errors"`
}

// Summary holds the analytics aggregates.
type Summary struct {
	Total          int            `json:"total"`
	ByStatus       map[string]int `json:"by_status"`
	TagCounts      map[string]int `json:"tag_counts"`
	UpdatedLast24h int            `json:"updated_last_24h"`
}

// WebhookRegistration is the payload for registering a webhook.
type WebhookRegistration struct {
	URL    string   `json:"url"`
	Events []string `json:"events,omitempty"`
	Secret string   `json:"secret"`
}

// Webhook is a registration as returned by the API; the secret is never
// echoed back.
type Webhook struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Events    []string  `json:"events"`
	CreatedAt time.Time `json:"created_at"`
}

// RateLimitInfo is the last rate-limit header snapshot seen on a response.
type RateLimitInfo struct {
	Limit     int
	Remaining int
	Reset     time.Time
}
