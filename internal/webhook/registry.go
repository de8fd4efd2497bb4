package webhook

import (
	"fmt"
	"net/url"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/meridianhq/meridian/internal/apperr"
	"github.com/meridianhq/meridian/internal/models"
)

// Registration is the request payload for registering a webhook.
type Registration struct {
	URL    string   `json:"url"`
	Events []string `json:"events"`
	Secret string   `json:"secret"`
}

// Validate checks the registration payload.
func (r Registration) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.URL, validation.Required, validation.By(checkHTTPURL)),
		validation.Field(&r.Secret, validation.Required, validation.Length(8, 256)),
		validation.Field(&r.Events, validation.Each(validation.In(toAny(models.EventTypes())...))),
	)
}

func checkHTTPURL(value any) error {
	s, _ := value.(string)
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("must be a valid http or https URL")
	}
	return nil
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// Registry manages webhook registrations on top of the store.
type Registry struct {
	store Store
}

// Store is the persistence surface the registry and dispatcher need.
type Store interface {
	InsertWebhook(w *models.Webhook) error
	ListWebhooks() ([]models.Webhook, error)
	DeleteWebhook(id string) error
}

// NewRegistry creates a registry over the given store.
func NewRegistry(st Store) *Registry {
	return &Registry{store: st}
}

// Create validates and persists a new registration.
func (r *Registry) Create(reg Registration) (*models.Webhook, error) {
	if err := reg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", apperr.ErrValidation, err)
	}
	w := &models.Webhook{
		ID:        uuid.NewString(),
		URL:       reg.URL,
		Events:    reg.Events,
		Secret:    reg.Secret,
		CreatedAt: time.Now().UTC(),
	}
	if err := r.store.InsertWebhook(w); err != nil {
		return nil, err
	}
	return w, nil
}

// List returns all registrations.
func (r *Registry) List() ([]models.Webhook, error) {
	return r.store.ListWebhooks()
}

// Delete removes a registration by id.
func (r *Registry) Delete(id string) error {
	return r.store.DeleteWebhook(id)
}

// Matching returns the registrations subscribed to eventType.
func (r *Registry) Matching(eventType string) ([]models.Webhook, error) {
	all, err := r.store.ListWebhooks()
	if err != nil {
		return nil, err
	}
	out := all[:0:0]
	for _, w := range all {
		if w.Wants(eventType) {
			out = append(out, w)
		}
	}
	return out, nil
}
