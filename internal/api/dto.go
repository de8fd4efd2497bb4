package api

import (
	"encoding/json"

	"github.com/meridianhq/meridian/internal/models"
)

// ListResponse wraps a resource page with its pagination envelope.
type ListResponse struct {
	Data       []models.Resource `json:"data"`
	Pagination models.Pagination `json:"pagination"`
}

// SearchResponse wraps search hits with facet distributions.
type SearchResponse struct {
	Data        []models.Resource         `json:"data"`
	Facets      map[string]map[string]int `json:"facets"`
	Total       int                       `json:"total"`
	QueryTimeMS int64                     `json:"query_time_ms"`
}

// DeleteResponse confirms a deletion.
type DeleteResponse struct {
	Deleted bool `json:"deleted"`
}

// Batch operations.
const (
	BatchOpCreate = "create"
	BatchOpUpdate = "update"
	BatchOpDelete = "delete"
)

// BatchRequest is the envelope for POST /data/batch. Items is decoded per
// operation: payloads for create, id+payload for update, ids for delete.
type BatchRequest struct {
	Operation string          `json:"operation"`
	Items     json.RawMessage `json:"items"`
}

// WebhookListResponse wraps webhook registrations (secrets excluded).
type WebhookListResponse struct {
	Data []models.Webhook `json:"data"`
}
