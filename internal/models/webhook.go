package models

import "time"

// Event types delivered to webhooks and the SSE stream.
const (
	EventResourceCreated = "resource.created"
	EventResourceUpdated = "resource.updated"
	EventResourceDeleted = "resource.deleted"
)

// EventTypes lists every deliverable event type.
func EventTypes() []string {
	return []string{EventResourceCreated, EventResourceUpdated, EventResourceDeleted}
}

// Webhook is a delivery registration. Secret is write-only: it is accepted
// on create and used to sign payloads, never echoed back.
type Webhook struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Events    []string  `json:"events"`
	Secret    string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// Wants reports whether the registration subscribes to eventType.
// An empty event list subscribes to everything.
func (w *Webhook) Wants(eventType string) bool {
	if len(w.Events) == 0 {
		return true
	}
	for _, e := range w.Events {
		if e == eventType {
			return true
		}
	}
	return false
}

// Event is a resource change notification. Resource is nil for deletions.
type Event struct {
	Type       string    `json:"type"`
	ResourceID string    `json:"resource_id"`
	Resource   *Resource `json:"resource,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
