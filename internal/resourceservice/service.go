// Package resourceservice implements the resource domain logic on top of the
// store, with an optional read-through cache and change notifications.
package resourceservice

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/meridianhq/meridian/internal/cache"
	"github.com/meridianhq/meridian/internal/models"
	"github.com/meridianhq/meridian/internal/store"
)

// Notifier receives resource change events. The service never blocks on it;
// implementations must enqueue and return.
type Notifier interface {
	Publish(evt models.Event)
}

// Service coordinates store, cache, and notification concerns.
type Service struct {
	store  *store.Store
	cache  cache.Cache
	notify Notifier
}

// NewService creates a resource service. notify may be nil.
func NewService(st *store.Store, c cache.Cache, notify Notifier) *Service {
	if c == nil {
		c = cache.Noop()
	}
	return &Service{store: st, cache: c, notify: notify}
}

// Get returns a resource by id, serving from cache when possible.
func (s *Service) Get(ctx context.Context, id string) (*models.Resource, error) {
	if r, ok := s.cache.Get(ctx, id); ok {
		return r, nil
	}
	r, err := s.store.GetResource(id)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, r)
	return r, nil
}

// Create validates the payload and stores a new resource with a
// server-assigned id and timestamps.
func (s *Service) Create(ctx context.Context, p Payload) (*models.Resource, error) {
	p.applyDefaults()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	r := &models.Resource{
		ID:          uuid.NewString(),
		Name:        p.Name,
		Description: p.Description,
		Status:      p.Status,
		Tags:        dedupeTags(p.Tags),
		Metadata:    p.Metadata,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.InsertResource(r); err != nil {
		return nil, err
	}
	s.publish(models.EventResourceCreated, r)
	return r, nil
}

// Update fully replaces the mutable fields of an existing resource.
func (s *Service) Update(ctx context.Context, id string, p Payload) (*models.Resource, error) {
	p.applyDefaults()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	existing, err := s.store.GetResource(id)
	if err != nil {
		return nil, err
	}
	r := &models.Resource{
		ID:          id,
		Name:        p.Name,
		Description: p.Description,
		Status:      p.Status,
		Tags:        dedupeTags(p.Tags),
		Metadata:    p.Metadata,
		CreatedAt:   existing.CreatedAt,
		UpdatedAt:   time.Now().UTC(),
	}
	if err := s.store.UpdateResource(r); err != nil {
		return nil, err
	}
	s.cache.Delete(ctx, id)
	s.publish(models.EventResourceUpdated, r)
	return r, nil
}

// Patch applies only the fields present in the patch. Metadata, when
// present, replaces the stored map wholesale.
func (s *Service) Patch(ctx context.Context, id string, pt PatchPayload) (*models.Resource, error) {
	existing, err := s.store.GetResource(id)
	if err != nil {
		return nil, err
	}
	p := Payload{
		Name:        existing.Name,
		Description: existing.Description,
		Status:      existing.Status,
		Tags:        existing.Tags,
		Metadata:    existing.Metadata,
	}
	if pt.Name != nil {
		p.Name = *pt.Name
	}
	if pt.Description != nil {
		p.Description = *pt.Description
	}
	if pt.Status != nil {
		p.Status = *pt.Status
	}
	if pt.Tags != nil {
		p.Tags = *pt.Tags
	}
	if pt.Metadata != nil {
		p.Metadata = pt.Metadata
	}
	return s.Update(ctx, id, p)
}

// Delete removes a resource.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteResource(id); err != nil {
		return err
	}
	s.cache.Delete(ctx, id)
	s.publishDeleted(id)
	return nil
}

// List returns a filtered, sorted page plus the pagination envelope.
// sortField must already be vetted by the caller.
func (s *Service) List(_ context.Context, f store.Filter, sortField string, desc bool, page, perPage int) ([]models.Resource, models.Pagination, error) {
	page, perPage = normalizePage(page, perPage)
	items, total, err := s.store.ListResources(f, sortField, desc, perPage, (page-1)*perPage)
	if err != nil {
		return nil, models.Pagination{}, err
	}
	return items, models.NewPagination(page, perPage, total), nil
}

// Search runs a full-text query and reports how long it took.
func (s *Service) Search(_ context.Context, query string, f store.Filter, page, perPage int) ([]models.Resource, int, store.Facets, time.Duration, error) {
	page, perPage = normalizePage(page, perPage)
	start := time.Now()
	items, total, facets, err := s.store.SearchResources(query, f, perPage, (page-1)*perPage)
	return items, total, facets, time.Since(start), err
}

// Summary returns live analytics aggregates.
func (s *Service) Summary(_ context.Context) (*models.Summary, error) {
	return s.store.Summary()
}

func (s *Service) publish(eventType string, r *models.Resource) {
	if s.notify == nil {
		return
	}
	s.notify.Publish(models.Event{
		Type:       eventType,
		ResourceID: r.ID,
		Resource:   r,
		OccurredAt: time.Now().UTC(),
	})
}

func (s *Service) publishDeleted(id string) {
	if s.notify == nil {
		return
	}
	s.notify.Publish(models.Event{
		Type:       models.EventResourceDeleted,
		ResourceID: id,
		OccurredAt: time.Now().UTC(),
	})
}

func normalizePage(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	switch {
	case perPage < 1:
		perPage = 20
	case perPage > 100:
		perPage = 100
	}
	return page, perPage
}

// dedupeTags keeps first occurrence order; tags are a set on the wire.
func dedupeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
