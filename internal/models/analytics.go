package models

// Summary holds live analytics aggregates over the resource collection.
type Summary struct {
	Total          int            `json:"total"`
	ByStatus       map[string]int `json:"by_status"`
	TagCounts      map[string]int `json:"tag_counts"`
	UpdatedLast24h int            `json:"updated_last_24h"`
}
